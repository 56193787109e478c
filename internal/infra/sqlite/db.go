// Package sqlite provides SQLite-based persistent storage for chronik.
// Uses WAL mode for concurrent reads and crash-safe writes. Uniqueness
// constraints carry the dedup guarantees of unlocks and reminders.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/unfloned/chronik/internal/domain"
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

var _ domain.Store = (*DB)(nil)

// Open creates or opens the SQLite database at dir/chronik.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "chronik.db")
	dsn := "file:" + dbPath +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Connection pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id                        TEXT PRIMARY KEY,
			name                      TEXT NOT NULL DEFAULT '',
			xp                        INTEGER NOT NULL DEFAULT 0 CHECK (xp >= 0),
			habit_reminders_enabled   BOOLEAN NOT NULL DEFAULT 1,
			reminder_time             TEXT NOT NULL DEFAULT '09:00',
			deadline_warnings_enabled BOOLEAN NOT NULL DEFAULT 1,
			deadline_warning_days     TEXT NOT NULL DEFAULT '3,1,0',
			streak_warnings_enabled   BOOLEAN NOT NULL DEFAULT 1,
			push_enabled              BOOLEAN NOT NULL DEFAULT 1,
			created_at                INTEGER NOT NULL
		)`,

		// XP ledger: one row per award, balance is the total after the award.
		`CREATE TABLE IF NOT EXISTS xp_ledger (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			amount     INTEGER NOT NULL,
			source     TEXT NOT NULL,
			reference  TEXT,
			balance    INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_xp_ledger_user ON xp_ledger(user_id, created_at)`,

		// ─── Tracker entities ──────────────────────────────────────────
		`CREATE TABLE IF NOT EXISTS habits (
			id             TEXT PRIMARY KEY,
			user_id        TEXT NOT NULL,
			name           TEXT NOT NULL,
			kind           TEXT NOT NULL DEFAULT 'boolean',
			target_value   INTEGER NOT NULL DEFAULT 1,
			frequency      TEXT NOT NULL DEFAULT 'daily',
			target_days    TEXT NOT NULL DEFAULT '',
			current_streak INTEGER NOT NULL DEFAULT 0,
			longest_streak INTEGER NOT NULL DEFAULT 0,
			archived       BOOLEAN NOT NULL DEFAULT 0,
			created_at     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_habits_user ON habits(user_id)`,
		`CREATE TABLE IF NOT EXISTS habit_logs (
			id         TEXT PRIMARY KEY,
			habit_id   TEXT NOT NULL REFERENCES habits(id) ON DELETE CASCADE,
			user_id    TEXT NOT NULL,
			date       TEXT NOT NULL,
			value      INTEGER NOT NULL DEFAULT 0,
			completed  BOOLEAN NOT NULL DEFAULT 0,
			counted    BOOLEAN NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			UNIQUE (habit_id, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_habit_logs_user_date ON habit_logs(user_id, date)`,
		`CREATE TABLE IF NOT EXISTS deadlines (
			id           TEXT PRIMARY KEY,
			user_id      TEXT NOT NULL,
			title        TEXT NOT NULL,
			due_date     TEXT NOT NULL,
			status       TEXT NOT NULL DEFAULT 'pending',
			priority     TEXT NOT NULL DEFAULT 'medium',
			completed_at INTEGER,
			created_at   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_deadlines_user_status ON deadlines(user_id, status)`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id                   TEXT PRIMARY KEY,
			user_id              TEXT NOT NULL,
			name                 TEXT NOT NULL,
			amount_cents         INTEGER NOT NULL DEFAULT 0,
			currency             TEXT NOT NULL DEFAULT 'EUR',
			billing_cycle        TEXT NOT NULL DEFAULT 'monthly',
			next_billing_date    TEXT NOT NULL,
			status               TEXT NOT NULL DEFAULT 'active',
			reminder_enabled     BOOLEAN NOT NULL DEFAULT 1,
			reminder_days_before INTEGER NOT NULL DEFAULT 3,
			created_at           INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_status ON subscriptions(status)`,

		// ─── Engagement ────────────────────────────────────────────────
		`CREATE TABLE IF NOT EXISTS achievement_defs (
			key          TEXT PRIMARY KEY,
			name         TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			category     TEXT NOT NULL,
			icon         TEXT NOT NULL DEFAULT '',
			xp_reward    INTEGER NOT NULL DEFAULT 0,
			requirement  INTEGER NOT NULL DEFAULT 0,
			hidden       BOOLEAN NOT NULL DEFAULT 0,
			type         TEXT NOT NULL,
			reset_period TEXT NOT NULL DEFAULT 'none',
			tier         INTEGER NOT NULL DEFAULT 1,
			trigger_name TEXT NOT NULL DEFAULT ''
		)`,
		// One winner per (user, achievement, window).
		`CREATE TABLE IF NOT EXISTS achievement_unlocks (
			id              TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL,
			achievement_key TEXT NOT NULL,
			window_key      TEXT NOT NULL,
			unlocked_at     INTEGER NOT NULL,
			UNIQUE (user_id, achievement_key, window_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_unlocks_user ON achievement_unlocks(user_id, unlocked_at)`,

		// ─── Notifications ─────────────────────────────────────────────
		`CREATE TABLE IF NOT EXISTS notifications (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			category   TEXT NOT NULL,
			title      TEXT NOT NULL,
			message    TEXT NOT NULL,
			link       TEXT NOT NULL DEFAULT '',
			is_read    BOOLEAN NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notif_user_created ON notifications(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS push_subscriptions (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			endpoint   TEXT NOT NULL UNIQUE,
			p256dh     TEXT NOT NULL DEFAULT '',
			auth       TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_push_user ON push_subscriptions(user_id)`,
		// Scheduled reminder dedup: one dispatch per (user, tag).
		`CREATE TABLE IF NOT EXISTS reminder_reservations (
			user_id    TEXT NOT NULL,
			tag        TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, tag)
		)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// withTx runs fn inside a transaction, rolling back on error.
func (d *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func nullableUnix(t *time.Time) sql.NullInt64 {
	if t == nil || t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
