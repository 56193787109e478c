package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/unfloned/chronik/internal/domain"
)

// ─── Deadlines ──────────────────────────────────────────────────────────────

const deadlineColumns = `id, user_id, title, due_date, status, priority, completed_at, created_at`

// CreateDeadline inserts a deadline.
func (d *DB) CreateDeadline(ctx context.Context, dl domain.Deadline) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO deadlines (`+deadlineColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		dl.ID, dl.UserID, dl.Title, dl.DueDate, string(dl.Status), dl.Priority,
		nullableUnix(dl.CompletedAt), dl.CreatedAt.Unix(),
	)
	return err
}

// GetDeadline retrieves a deadline by ID.
func (d *DB) GetDeadline(ctx context.Context, id string) (*domain.Deadline, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+deadlineColumns+` FROM deadlines WHERE id = ?`, id)
	dl, err := scanDeadline(row)
	if isNoRows(err) {
		return nil, fmt.Errorf("deadline %s: %w", id, domain.ErrDeadlineNotFound)
	}
	return dl, err
}

// CloseDeadline moves an open deadline to status.
func (d *DB) CloseDeadline(ctx context.Context, id string, status domain.DeadlineStatus, closedAt *time.Time) (bool, error) {
	res, err := d.db.ExecContext(ctx,
		`UPDATE deadlines SET status = ?, completed_at = ?
		 WHERE id = ? AND status IN ('pending', 'in_progress')`,
		string(status), nullableUnix(closedAt), id)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return true, nil
	}
	if _, err := d.GetDeadline(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// ListOpenDeadlines returns the user's pending and in-progress deadlines,
// soonest first.
func (d *DB) ListOpenDeadlines(ctx context.Context, userID string) ([]domain.Deadline, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+deadlineColumns+` FROM deadlines
		 WHERE user_id = ? AND status IN ('pending', 'in_progress')
		 ORDER BY due_date, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Deadline
	for rows.Next() {
		dl, err := scanDeadline(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *dl)
	}
	return out, rows.Err()
}

// DeadlineStats counts the user's deadlines relative to today.
func (d *DB) DeadlineStats(ctx context.Context, userID, today string) (domain.DeadlineStats, error) {
	var s domain.DeadlineStats
	err := d.db.QueryRowContext(ctx,
		`SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status IN ('pending', 'in_progress') THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status IN ('pending', 'in_progress') AND due_date < ? THEN 1 ELSE 0 END), 0)
		 FROM deadlines WHERE user_id = ?`, today, userID,
	).Scan(&s.Total, &s.Open, &s.Completed, &s.Overdue)
	return s, err
}

// CountDeadlinesCompletedSince counts deadlines completed at or after since.
func (d *DB) CountDeadlinesCompletedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM deadlines
		 WHERE user_id = ? AND status = 'completed' AND completed_at >= ?`,
		userID, since.Unix()).Scan(&n)
	return n, err
}

func scanDeadline(s scanner) (*domain.Deadline, error) {
	var dl domain.Deadline
	var completed sql.NullInt64
	var created int64
	err := s.Scan(&dl.ID, &dl.UserID, &dl.Title, &dl.DueDate, &dl.Status, &dl.Priority,
		&completed, &created)
	if err != nil {
		return nil, err
	}
	if completed.Valid {
		t := time.Unix(completed.Int64, 0)
		dl.CompletedAt = &t
	}
	dl.CreatedAt = time.Unix(created, 0)
	return &dl, nil
}

// ─── Subscriptions ──────────────────────────────────────────────────────────

const subscriptionColumns = `id, user_id, name, amount_cents, currency, billing_cycle,
	next_billing_date, status, reminder_enabled, reminder_days_before, created_at`

// CreateSubscription inserts a subscription.
func (d *DB) CreateSubscription(ctx context.Context, s domain.Subscription) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO subscriptions (`+subscriptionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.Name, s.AmountCents, s.Currency, s.BillingCycle,
		s.NextBillingDate, string(s.Status), s.ReminderEnabled, s.ReminderDaysBefore,
		s.CreatedAt.Unix(),
	)
	return err
}

// ListRemindableSubscriptions returns active subscriptions with reminders on.
func (d *DB) ListRemindableSubscriptions(ctx context.Context) ([]domain.Subscription, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE status = 'active' AND reminder_enabled = 1
		 ORDER BY next_billing_date, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Subscription
	for rows.Next() {
		var s domain.Subscription
		var created int64
		err := rows.Scan(&s.ID, &s.UserID, &s.Name, &s.AmountCents, &s.Currency, &s.BillingCycle,
			&s.NextBillingDate, &s.Status, &s.ReminderEnabled, &s.ReminderDaysBefore, &created)
		if err != nil {
			return nil, err
		}
		s.CreatedAt = time.Unix(created, 0)
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountSubscriptions counts the user's non-cancelled subscriptions.
func (d *DB) CountSubscriptions(ctx context.Context, userID string) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscriptions WHERE user_id = ? AND status != 'cancelled'`,
		userID).Scan(&n)
	return n, err
}
