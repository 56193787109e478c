package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/unfloned/chronik/internal/domain"
)

// ─── Users ──────────────────────────────────────────────────────────────────

const userColumns = `id, name, xp, habit_reminders_enabled, reminder_time,
	deadline_warnings_enabled, deadline_warning_days, streak_warnings_enabled,
	push_enabled, created_at`

// CreateUser inserts a user. A duplicate id yields domain.ErrConflict.
func (d *DB) CreateUser(ctx context.Context, u domain.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.XP,
		u.Prefs.HabitRemindersEnabled, u.Prefs.ReminderTime,
		u.Prefs.DeadlineWarningsEnabled, domain.EncodeDays(u.Prefs.DeadlineWarningDays),
		u.Prefs.StreakWarningsEnabled, u.Prefs.PushEnabled,
		u.CreatedAt.Unix(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("user %s: %w", u.ID, domain.ErrConflict)
	}
	return err
}

// GetUser retrieves a user by ID.
func (d *DB) GetUser(ctx context.Context, id string) (*domain.User, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if isNoRows(err) {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrUserNotFound)
	}
	return u, err
}

// ListUsers returns all users ordered by creation.
func (d *DB) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateNotificationPrefs replaces the user's reminder settings.
func (d *DB) UpdateNotificationPrefs(ctx context.Context, userID string, p domain.NotificationPrefs) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE users SET habit_reminders_enabled = ?, reminder_time = ?,
			deadline_warnings_enabled = ?, deadline_warning_days = ?,
			streak_warnings_enabled = ?, push_enabled = ?
		 WHERE id = ?`,
		p.HabitRemindersEnabled, p.ReminderTime,
		p.DeadlineWarningsEnabled, domain.EncodeDays(p.DeadlineWarningDays),
		p.StreakWarningsEnabled, p.PushEnabled, userID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", userID, domain.ErrUserNotFound)
	}
	return nil
}

func scanUser(s scanner) (*domain.User, error) {
	var u domain.User
	var days string
	var created int64
	err := s.Scan(&u.ID, &u.Name, &u.XP,
		&u.Prefs.HabitRemindersEnabled, &u.Prefs.ReminderTime,
		&u.Prefs.DeadlineWarningsEnabled, &days,
		&u.Prefs.StreakWarningsEnabled, &u.Prefs.PushEnabled, &created)
	if err != nil {
		return nil, err
	}
	u.Prefs.DeadlineWarningDays = domain.DecodeDays(days)
	u.CreatedAt = time.Unix(created, 0)
	return &u, nil
}

// ─── XP Ledger ──────────────────────────────────────────────────────────────

// AddXP increments the user's XP and appends a ledger row atomically.
func (d *DB) AddXP(ctx context.Context, entry domain.XPEntry) (domain.XPChange, error) {
	var change domain.XPChange
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		change, err = addXPTx(ctx, tx, entry)
		return err
	})
	return change, err
}

// addXPTx applies entry inside tx. A zero amount reads the balance without
// writing a ledger row.
func addXPTx(ctx context.Context, tx *sql.Tx, entry domain.XPEntry) (domain.XPChange, error) {
	var old int64
	err := tx.QueryRowContext(ctx, `SELECT xp FROM users WHERE id = ?`, entry.UserID).Scan(&old)
	if isNoRows(err) {
		return domain.XPChange{}, fmt.Errorf("user %s: %w", entry.UserID, domain.ErrUserNotFound)
	}
	if err != nil {
		return domain.XPChange{}, fmt.Errorf("read xp: %w", err)
	}
	change := domain.XPChange{OldXP: old, NewXP: old + entry.Amount}
	if entry.Amount == 0 {
		return change, nil
	}

	if _, err := tx.ExecContext(ctx, `UPDATE users SET xp = xp + ? WHERE id = ?`, entry.Amount, entry.UserID); err != nil {
		return domain.XPChange{}, fmt.Errorf("update xp: %w", err)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO xp_ledger (id, user_id, amount, source, reference, balance, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.Amount, string(entry.Source),
		nullStr(entry.Reference), change.NewXP, entry.CreatedAt.Unix(),
	)
	if err != nil {
		return domain.XPChange{}, fmt.Errorf("insert ledger: %w", err)
	}
	return change, nil
}

// XPHistory returns the user's most recent ledger entries, newest first.
func (d *DB) XPHistory(ctx context.Context, userID string, limit int) ([]domain.XPEntry, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, user_id, amount, source, reference, balance, created_at
		 FROM xp_ledger WHERE user_id = ? ORDER BY balance DESC, created_at DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.XPEntry
	for rows.Next() {
		var e domain.XPEntry
		var ref sql.NullString
		var ts int64
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Source, &ref, &e.Balance, &ts); err != nil {
			return nil, err
		}
		e.Reference = ref.String
		e.CreatedAt = time.Unix(ts, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
