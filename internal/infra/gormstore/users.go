package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/unfloned/chronik/internal/domain"
)

// CreateUser inserts a user. A duplicate ID is domain.ErrConflict.
func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	row := userModelFromDomain(u)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", u.ID, domain.ErrConflict)
		}
		return err
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var row userModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, notFound(err, "user "+id, domain.ErrUserNotFound)
	}
	u := row.toDomain()
	return &u, nil
}

// ListUsers returns every user, oldest first.
func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	var rows []userModel
	if err := s.db.WithContext(ctx).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.User, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// UpdateNotificationPrefs replaces the user's reminder settings.
func (s *Store) UpdateNotificationPrefs(ctx context.Context, userID string, p domain.NotificationPrefs) error {
	res := s.db.WithContext(ctx).Model(&userModel{}).Where("id = ?", userID).Updates(map[string]any{
		"habit_reminders_enabled":   p.HabitRemindersEnabled,
		"reminder_time":             p.ReminderTime,
		"deadline_warnings_enabled": p.DeadlineWarningsEnabled,
		"deadline_warning_days":     domain.EncodeDays(p.DeadlineWarningDays),
		"streak_warnings_enabled":   p.StreakWarningsEnabled,
		"push_enabled":              p.PushEnabled,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %s: %w", userID, domain.ErrUserNotFound)
	}
	return nil
}

// AddXP increments the user's XP and appends a ledger row atomically.
func (s *Store) AddXP(ctx context.Context, entry domain.XPEntry) (domain.XPChange, error) {
	var change domain.XPChange
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		change, err = addXP(tx, entry)
		return err
	})
	return change, err
}

// addXP applies entry inside tx. The increment is a single UPDATE so
// concurrent awards never lose writes; a zero amount only reads.
func addXP(tx *gorm.DB, entry domain.XPEntry) (domain.XPChange, error) {
	if entry.Amount != 0 {
		res := tx.Model(&userModel{}).Where("id = ?", entry.UserID).
			Update("xp", gorm.Expr("xp + ?", entry.Amount))
		if res.Error != nil {
			return domain.XPChange{}, fmt.Errorf("update xp: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.XPChange{}, fmt.Errorf("user %s: %w", entry.UserID, domain.ErrUserNotFound)
		}
	}

	var row userModel
	if err := tx.Select("xp").Where("id = ?", entry.UserID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.XPChange{}, fmt.Errorf("user %s: %w", entry.UserID, domain.ErrUserNotFound)
		}
		return domain.XPChange{}, fmt.Errorf("read xp: %w", err)
	}
	change := domain.XPChange{OldXP: row.XP - entry.Amount, NewXP: row.XP}
	if entry.Amount == 0 {
		return change, nil
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	ledger := xpEntryModel{
		ID: entry.ID, UserID: entry.UserID, Amount: entry.Amount, Source: string(entry.Source),
		Reference: entry.Reference, Balance: change.NewXP, CreatedAt: entry.CreatedAt,
	}
	if err := tx.Create(&ledger).Error; err != nil {
		return domain.XPChange{}, fmt.Errorf("insert ledger: %w", err)
	}
	return change, nil
}

// XPHistory returns the user's most recent ledger entries, newest first.
func (s *Store) XPHistory(ctx context.Context, userID string, limit int) ([]domain.XPEntry, error) {
	var rows []xpEntryModel
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("balance DESC, created_at DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.XPEntry, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}
