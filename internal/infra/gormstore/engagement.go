package gormstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/unfloned/chronik/internal/domain"
)

// ─── Achievement Definitions ────────────────────────────────────────────────

// InsertAchievementDef inserts def unless its key exists. Existing rows are
// never updated.
func (s *Store) InsertAchievementDef(ctx context.Context, def domain.AchievementDef) (bool, error) {
	row := achievementDefModelFromDomain(def)
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListAchievementDefs returns every stored definition by key.
func (s *Store) ListAchievementDefs(ctx context.Context) ([]domain.AchievementDef, error) {
	var rows []achievementDefModel
	if err := s.db.WithContext(ctx).Order("key").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.AchievementDef, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// ─── Achievement Unlocks ────────────────────────────────────────────────────

// UnlockAchievement records an unlock and applies its XP reward in one
// transaction. Returns false if the (user, key, window) slot is taken.
func (s *Store) UnlockAchievement(ctx context.Context, u domain.AchievementUnlock, reward domain.XPEntry) (bool, domain.XPChange, error) {
	var (
		won    bool
		change domain.XPChange
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := unlockModel{
			ID: u.ID, UserID: u.UserID, AchievementKey: u.AchievementKey,
			WindowKey: u.WindowKey, UnlockedAt: u.UnlockedAt,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			if isUniqueViolation(res.Error) {
				return nil
			}
			return fmt.Errorf("insert unlock: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		won = true
		reward.UserID = u.UserID
		var err error
		change, err = addXP(tx, reward)
		return err
	})
	if err != nil {
		return false, domain.XPChange{}, err
	}
	return won, change, nil
}

// ListUnlocks returns the user's unlocks, newest first.
func (s *Store) ListUnlocks(ctx context.Context, userID string) ([]domain.AchievementUnlock, error) {
	var rows []unlockModel
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("unlocked_at DESC, id DESC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.AchievementUnlock, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// ─── Notifications ──────────────────────────────────────────────────────────

// InsertNotification stores an in-app notification.
func (s *Store) InsertNotification(ctx context.Context, n domain.Notification) error {
	row := notificationModel{
		ID: n.ID, UserID: n.UserID, Category: string(n.Category), Title: n.Title,
		Message: n.Message, Link: n.Link, IsRead: n.IsRead, CreatedAt: n.CreatedAt,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// ListNotifications returns the user's notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var rows []notificationModel
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Notification, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// MarkNotificationRead flags one of the user's notifications as read.
func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).Model(&notificationModel{}).
		Where("id = ? AND user_id = ?", id, userID).Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("notification %s: %w", id, domain.ErrNotificationNotFound)
	}
	return nil
}

// MarkNotificationUnread clears the read flag of one of the user's
// notifications.
func (s *Store) MarkNotificationUnread(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).Model(&notificationModel{}).
		Where("id = ? AND user_id = ?", id, userID).Update("is_read", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("notification %s: %w", id, domain.ErrNotificationNotFound)
	}
	return nil
}

// UnreadCount counts the user's unread notifications.
func (s *Store) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&notificationModel{}).
		Where("user_id = ? AND is_read = ?", userID, false).Count(&n).Error
	return int(n), err
}

// ─── Push Subscriptions ─────────────────────────────────────────────────────

// AddPushSubscription registers an endpoint. Known endpoints are ignored.
func (s *Store) AddPushSubscription(ctx context.Context, sub domain.PushSubscription) error {
	row := pushSubscriptionModel{
		ID: sub.ID, UserID: sub.UserID, Endpoint: sub.Endpoint, P256dh: sub.P256dh,
		Auth: sub.Auth, CreatedAt: sub.CreatedAt,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

// ListPushSubscriptions returns the user's push endpoints.
func (s *Store) ListPushSubscriptions(ctx context.Context, userID string) ([]domain.PushSubscription, error) {
	var rows []pushSubscriptionModel
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at, id").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.PushSubscription, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// DeletePushSubscription removes an endpoint.
func (s *Store) DeletePushSubscription(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&pushSubscriptionModel{}).Error
}

// ─── Reminder Reservations ──────────────────────────────────────────────────

// ReserveReminder claims (userID, tag). Returns false if already claimed.
func (s *Store) ReserveReminder(ctx context.Context, userID, tag string, at time.Time) (bool, error) {
	row := reminderModel{UserID: userID, Tag: tag, CreatedAt: at}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ReleaseReminder drops a reservation so a later tick can retry.
func (s *Store) ReleaseReminder(ctx context.Context, userID, tag string) error {
	return s.db.WithContext(ctx).Where("user_id = ? AND tag = ?", userID, tag).
		Delete(&reminderModel{}).Error
}
