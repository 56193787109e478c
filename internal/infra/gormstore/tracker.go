package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/unfloned/chronik/internal/domain"
)

// ─── Habits ─────────────────────────────────────────────────────────────────

// CreateHabit inserts a habit.
func (s *Store) CreateHabit(ctx context.Context, h domain.Habit) error {
	row := habitModelFromDomain(h)
	return s.db.WithContext(ctx).Create(&row).Error
}

// GetHabit retrieves a habit by ID.
func (s *Store) GetHabit(ctx context.Context, id string) (*domain.Habit, error) {
	var row habitModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, notFound(err, "habit "+id, domain.ErrHabitNotFound)
	}
	h := row.toDomain()
	return &h, nil
}

// ListHabits returns the user's active habits, oldest first.
func (s *Store) ListHabits(ctx context.Context, userID string) ([]domain.Habit, error) {
	var rows []habitModel
	err := s.db.WithContext(ctx).Where("user_id = ? AND archived = ?", userID, false).
		Order("created_at, id").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Habit, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// CountHabits counts the user's active habits.
func (s *Store) CountHabits(ctx context.Context, userID string) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&habitModel{}).
		Where("user_id = ? AND archived = ?", userID, false).Count(&n).Error
	return int(n), err
}

// UpdateStreak stores the habit's streak counters.
func (s *Store) UpdateStreak(ctx context.Context, habitID string, current, longest int) error {
	res := s.db.WithContext(ctx).Model(&habitModel{}).Where("id = ?", habitID).
		Updates(map[string]any{"current_streak": current, "longest_streak": longest})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("habit %s: %w", habitID, domain.ErrHabitNotFound)
	}
	return nil
}

// GetHabitLog returns the log for (habitID, date), or nil if there is none.
func (s *Store) GetHabitLog(ctx context.Context, habitID, date string) (*domain.HabitLog, error) {
	var row habitLogModel
	err := s.db.WithContext(ctx).Where("habit_id = ? AND date = ?", habitID, date).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	l := row.toDomain()
	return &l, nil
}

// UpsertHabitLog writes the day's log, updating the value of an existing
// (habit, date) row. Completion is sticky; the counted flag is claimed by a
// guarded update so one writer reports the new completion.
func (s *Store) UpsertHabitLog(ctx context.Context, l domain.HabitLog) (bool, error) {
	row := habitLogModel{
		ID: l.ID, HabitID: l.HabitID, Date: l.Date, UserID: l.UserID, Value: l.Value,
		Completed: l.Completed, CreatedAt: l.CreatedAt, UpdatedAt: l.UpdatedAt,
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	won := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "habit_id"}, {Name: "date"}},
			DoUpdates: clause.Assignments(map[string]any{
				"value":      row.Value,
				"completed":  gorm.Expr("habit_logs.completed OR excluded.completed"),
				"updated_at": row.UpdatedAt,
			}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
		res := tx.Model(&habitLogModel{}).
			Where("habit_id = ? AND date = ? AND completed = ? AND counted = ?", l.HabitID, l.Date, true, false).
			Update("counted", true)
		won = res.RowsAffected == 1
		return res.Error
	})
	return won, err
}

// CompletedHabitIDs returns the IDs of the user's habits completed on date.
func (s *Store) CompletedHabitIDs(ctx context.Context, userID, date string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&habitLogModel{}).
		Where("user_id = ? AND date = ? AND completed = ?", userID, date, true).
		Order("habit_id").Pluck("habit_id", &ids).Error
	return ids, err
}

// HabitCompletedBetween reports a completed log with from <= date <= to.
func (s *Store) HabitCompletedBetween(ctx context.Context, habitID, from, to string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&habitLogModel{}).
		Where("habit_id = ? AND completed = ? AND date >= ? AND date <= ?", habitID, true, from, to).
		Count(&n).Error
	return n > 0, err
}

// CountCompletions counts completed logs of the user on or after since.
func (s *Store) CountCompletions(ctx context.Context, userID, since string) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&habitLogModel{}).
		Where("user_id = ? AND completed = ? AND date >= ?", userID, true, since).
		Count(&n).Error
	return int(n), err
}

// ─── Deadlines ──────────────────────────────────────────────────────────────

// CreateDeadline inserts a deadline.
func (s *Store) CreateDeadline(ctx context.Context, d domain.Deadline) error {
	row := deadlineModel{
		ID: d.ID, UserID: d.UserID, Title: d.Title, DueDate: d.DueDate, Status: string(d.Status),
		Priority: d.Priority, CompletedAt: d.CompletedAt, CreatedAt: d.CreatedAt,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// GetDeadline retrieves a deadline by ID.
func (s *Store) GetDeadline(ctx context.Context, id string) (*domain.Deadline, error) {
	var row deadlineModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, notFound(err, "deadline "+id, domain.ErrDeadlineNotFound)
	}
	d := row.toDomain()
	return &d, nil
}

// CloseDeadline moves an open deadline to status.
func (s *Store) CloseDeadline(ctx context.Context, id string, status domain.DeadlineStatus, closedAt *time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&deadlineModel{}).
		Where("id = ? AND status IN ?", id, openStatuses).
		Updates(map[string]any{"status": string(status), "completed_at": closedAt})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}
	if _, err := s.GetDeadline(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

var openStatuses = []string{string(domain.DeadlinePending), string(domain.DeadlineInProgress)}

// ListOpenDeadlines returns pending and in-progress deadlines by due date.
func (s *Store) ListOpenDeadlines(ctx context.Context, userID string) ([]domain.Deadline, error) {
	var rows []deadlineModel
	err := s.db.WithContext(ctx).Where("user_id = ? AND status IN ?", userID, openStatuses).
		Order("due_date, id").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Deadline, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// DeadlineStats counts the user's deadlines relative to today.
func (s *Store) DeadlineStats(ctx context.Context, userID, today string) (domain.DeadlineStats, error) {
	var st struct {
		Total     int
		Open      int
		Completed int
		Overdue   int
	}
	err := s.db.WithContext(ctx).Model(&deadlineModel{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status IN ? THEN 1 ELSE 0 END), 0) AS open,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS completed,
			COALESCE(SUM(CASE WHEN status IN ? AND due_date < ? THEN 1 ELSE 0 END), 0) AS overdue`,
			openStatuses, string(domain.DeadlineCompleted), openStatuses, today).
		Where("user_id = ?", userID).Scan(&st).Error
	return domain.DeadlineStats{Total: st.Total, Open: st.Open, Completed: st.Completed, Overdue: st.Overdue}, err
}

// CountDeadlinesCompletedSince counts deadlines completed at or after since.
func (s *Store) CountDeadlinesCompletedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&deadlineModel{}).
		Where("user_id = ? AND status = ? AND completed_at >= ?", userID, string(domain.DeadlineCompleted), since).
		Count(&n).Error
	return int(n), err
}

// ─── Subscriptions ──────────────────────────────────────────────────────────

// CreateSubscription inserts a subscription.
func (s *Store) CreateSubscription(ctx context.Context, sub domain.Subscription) error {
	row := subscriptionModel{
		ID: sub.ID, UserID: sub.UserID, Name: sub.Name, AmountCents: sub.AmountCents,
		Currency: sub.Currency, BillingCycle: sub.BillingCycle, NextBillingDate: sub.NextBillingDate,
		Status: string(sub.Status), ReminderEnabled: sub.ReminderEnabled,
		ReminderDaysBefore: sub.ReminderDaysBefore, CreatedAt: sub.CreatedAt,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// ListRemindableSubscriptions returns active subscriptions with reminders
// enabled across all users.
func (s *Store) ListRemindableSubscriptions(ctx context.Context) ([]domain.Subscription, error) {
	var rows []subscriptionModel
	err := s.db.WithContext(ctx).
		Where("status = ? AND reminder_enabled = ?", string(domain.SubscriptionActive), true).
		Order("next_billing_date, id").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Subscription, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// CountSubscriptions counts the user's subscriptions that are not cancelled.
func (s *Store) CountSubscriptions(ctx context.Context, userID string) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&subscriptionModel{}).
		Where("user_id = ? AND status <> ?", userID, string(domain.SubscriptionCancelled)).
		Count(&n).Error
	return int(n), err
}
