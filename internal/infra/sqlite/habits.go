package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/unfloned/chronik/internal/domain"
)

// ─── Habits ─────────────────────────────────────────────────────────────────

const habitColumns = `id, user_id, name, kind, target_value, frequency, target_days,
	current_streak, longest_streak, archived, created_at`

// CreateHabit inserts a habit.
func (d *DB) CreateHabit(ctx context.Context, h domain.Habit) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO habits (`+habitColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.UserID, h.Name, string(h.Kind), h.TargetValue, string(h.Frequency),
		domain.EncodeDays(h.TargetDays), h.CurrentStreak, h.LongestStreak, h.Archived,
		h.CreatedAt.Unix(),
	)
	return err
}

// GetHabit retrieves a habit by ID.
func (d *DB) GetHabit(ctx context.Context, id string) (*domain.Habit, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+habitColumns+` FROM habits WHERE id = ?`, id)
	h, err := scanHabit(row)
	if isNoRows(err) {
		return nil, fmt.Errorf("habit %s: %w", id, domain.ErrHabitNotFound)
	}
	return h, err
}

// ListHabits returns the user's active habits, oldest first.
func (d *DB) ListHabits(ctx context.Context, userID string) ([]domain.Habit, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+habitColumns+` FROM habits WHERE user_id = ? AND archived = 0
		 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var habits []domain.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		habits = append(habits, *h)
	}
	return habits, rows.Err()
}

// CountHabits counts the user's active habits.
func (d *DB) CountHabits(ctx context.Context, userID string) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM habits WHERE user_id = ? AND archived = 0`, userID).Scan(&n)
	return n, err
}

// UpdateStreak stores the habit's streak counters.
func (d *DB) UpdateStreak(ctx context.Context, habitID string, current, longest int) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE habits SET current_streak = ?, longest_streak = ? WHERE id = ?`,
		current, longest, habitID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("habit %s: %w", habitID, domain.ErrHabitNotFound)
	}
	return nil
}

func scanHabit(s scanner) (*domain.Habit, error) {
	var h domain.Habit
	var days string
	var created int64
	err := s.Scan(&h.ID, &h.UserID, &h.Name, &h.Kind, &h.TargetValue, &h.Frequency,
		&days, &h.CurrentStreak, &h.LongestStreak, &h.Archived, &created)
	if err != nil {
		return nil, err
	}
	h.TargetDays = domain.DecodeDays(days)
	h.CreatedAt = time.Unix(created, 0)
	return &h, nil
}

// ─── Habit Logs ─────────────────────────────────────────────────────────────

// GetHabitLog returns the log for (habitID, date), or nil if there is none.
func (d *DB) GetHabitLog(ctx context.Context, habitID, date string) (*domain.HabitLog, error) {
	var l domain.HabitLog
	var created, updated int64
	err := d.db.QueryRowContext(ctx,
		`SELECT id, habit_id, user_id, date, value, completed, created_at, updated_at
		 FROM habit_logs WHERE habit_id = ? AND date = ?`, habitID, date,
	).Scan(&l.ID, &l.HabitID, &l.UserID, &l.Date, &l.Value, &l.Completed, &created, &updated)
	if isNoRows(err) {
		return nil, nil // Not found, no error
	}
	if err != nil {
		return nil, err
	}
	l.CreatedAt = time.Unix(created, 0)
	l.UpdatedAt = time.Unix(updated, 0)
	return &l, nil
}

// UpsertHabitLog inserts the day's log or updates its value. A completed
// day stays completed. The counted flag is claimed by a guarded update, so
// only the writer that flips it reports the new completion.
func (d *DB) UpsertHabitLog(ctx context.Context, l domain.HabitLog) (bool, error) {
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = l.CreatedAt
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO habit_logs (id, habit_id, user_id, date, value, completed, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(habit_id, date) DO UPDATE SET
			value=excluded.value,
			completed=(habit_logs.completed OR excluded.completed),
			updated_at=excluded.updated_at`,
		l.ID, l.HabitID, l.UserID, l.Date, l.Value, l.Completed,
		l.CreatedAt.Unix(), l.UpdatedAt.Unix(),
	)
	if err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE habit_logs SET counted = 1
		 WHERE habit_id = ? AND date = ? AND completed = 1 AND counted = 0`,
		l.HabitID, l.Date)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, tx.Commit()
}

// CompletedHabitIDs lists the user's habits completed on date.
func (d *DB) CompletedHabitIDs(ctx context.Context, userID, date string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT habit_id FROM habit_logs WHERE user_id = ? AND date = ? AND completed = 1`,
		userID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// HabitCompletedBetween reports a completed log with from <= date <= to.
func (d *DB) HabitCompletedBetween(ctx context.Context, habitID, from, to string) (bool, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM habit_logs
		 WHERE habit_id = ? AND completed = 1 AND date >= ? AND date <= ?`,
		habitID, from, to).Scan(&n)
	return n > 0, err
}

// CountCompletions counts completed logs of the user on or after since.
func (d *DB) CountCompletions(ctx context.Context, userID, since string) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM habit_logs WHERE user_id = ? AND completed = 1 AND date >= ?`,
		userID, since).Scan(&n)
	return n, err
}
