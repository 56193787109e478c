package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/unfloned/chronik/internal/domain"
)

// ─── Achievement Catalog ────────────────────────────────────────────────────

// InsertAchievementDef seeds a definition. Existing keys are left untouched.
func (d *DB) InsertAchievementDef(ctx context.Context, def domain.AchievementDef) (bool, error) {
	result, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO achievement_defs
			(key, name, description, category, icon, xp_reward, requirement, hidden, type, reset_period, tier, trigger_name)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		def.Key, def.Name, def.Description, string(def.Category), def.Icon,
		def.XPReward, def.Requirement, def.Hidden, string(def.Type),
		string(def.ResetPeriod), def.Tier, string(def.Trigger),
	)
	if err != nil {
		return false, err
	}
	n, _ := result.RowsAffected()
	return n > 0, nil // true = newly seeded
}

// ListAchievementDefs returns every persisted definition.
func (d *DB) ListAchievementDefs(ctx context.Context) ([]domain.AchievementDef, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT key, name, description, category, icon, xp_reward, requirement, hidden,
			type, reset_period, tier, trigger_name
		 FROM achievement_defs ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []domain.AchievementDef
	for rows.Next() {
		var def domain.AchievementDef
		err := rows.Scan(&def.Key, &def.Name, &def.Description, &def.Category, &def.Icon,
			&def.XPReward, &def.Requirement, &def.Hidden, &def.Type, &def.ResetPeriod,
			&def.Tier, &def.Trigger)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// ─── Achievement Unlocks ────────────────────────────────────────────────────

// UnlockAchievement records an unlock and applies its XP reward in one
// transaction. Returns false if the (user, key, window) slot is taken.
func (d *DB) UnlockAchievement(ctx context.Context, u domain.AchievementUnlock, reward domain.XPEntry) (bool, domain.XPChange, error) {
	var (
		won    bool
		change domain.XPChange
	)
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO achievement_unlocks (id, user_id, achievement_key, window_key, unlocked_at)
			 VALUES (?, ?, ?, ?, ?)`,
			u.ID, u.UserID, u.AchievementKey, u.WindowKey, u.UnlockedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("insert unlock: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return nil // Already unlocked in this window
		}
		won = true
		reward.UserID = u.UserID
		change, err = addXPTx(ctx, tx, reward)
		return err
	})
	if err != nil {
		return false, domain.XPChange{}, err
	}
	return won, change, nil
}

// ListUnlocks returns the user's unlocks, newest first.
func (d *DB) ListUnlocks(ctx context.Context, userID string) ([]domain.AchievementUnlock, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, user_id, achievement_key, window_key, unlocked_at
		 FROM achievement_unlocks WHERE user_id = ? ORDER BY unlocked_at DESC, rowid DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AchievementUnlock
	for rows.Next() {
		var u domain.AchievementUnlock
		var ts int64
		if err := rows.Scan(&u.ID, &u.UserID, &u.AchievementKey, &u.WindowKey, &ts); err != nil {
			return nil, err
		}
		u.UnlockedAt = time.Unix(ts, 0)
		out = append(out, u)
	}
	return out, rows.Err()
}

// ─── Notifications ──────────────────────────────────────────────────────────

// InsertNotification stores an in-app notification.
func (d *DB) InsertNotification(ctx context.Context, n domain.Notification) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, category, title, message, link, is_read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, string(n.Category), n.Title, n.Message, n.Link, n.IsRead,
		n.CreatedAt.Unix(),
	)
	return err
}

// ListNotifications returns the user's notifications, newest first.
func (d *DB) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	query := `SELECT id, user_id, category, title, message, link, is_read, created_at
		FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`

	rows, err := d.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var ts int64
		err := rows.Scan(&n.ID, &n.UserID, &n.Category, &n.Title, &n.Message, &n.Link, &n.IsRead, &ts)
		if err != nil {
			return nil, err
		}
		n.CreatedAt = time.Unix(ts, 0)
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead flags one of the user's notifications as read.
func (d *DB) MarkNotificationRead(ctx context.Context, userID, id string) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("notification %s: %w", id, domain.ErrNotificationNotFound)
	}
	return nil
}

// MarkNotificationUnread clears the read flag of one of the user's
// notifications.
func (d *DB) MarkNotificationUnread(ctx context.Context, userID, id string) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 0 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("notification %s: %w", id, domain.ErrNotificationNotFound)
	}
	return nil
}

// UnreadCount counts the user's unread notifications.
func (d *DB) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0`, userID).Scan(&n)
	return n, err
}

// ─── Push Subscriptions ─────────────────────────────────────────────────────

// AddPushSubscription registers an endpoint. Known endpoints are ignored.
func (d *DB) AddPushSubscription(ctx context.Context, s domain.PushSubscription) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO push_subscriptions (id, user_id, endpoint, p256dh, auth, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.Endpoint, s.P256dh, s.Auth, s.CreatedAt.Unix(),
	)
	return err
}

// ListPushSubscriptions returns the user's push endpoints.
func (d *DB) ListPushSubscriptions(ctx context.Context, userID string) ([]domain.PushSubscription, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, user_id, endpoint, p256dh, auth, created_at
		 FROM push_subscriptions WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PushSubscription
	for rows.Next() {
		var s domain.PushSubscription
		var ts int64
		if err := rows.Scan(&s.ID, &s.UserID, &s.Endpoint, &s.P256dh, &s.Auth, &ts); err != nil {
			return nil, err
		}
		s.CreatedAt = time.Unix(ts, 0)
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeletePushSubscription removes an endpoint.
func (d *DB) DeletePushSubscription(ctx context.Context, id string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE id = ?`, id)
	return err
}

// ─── Reminder Reservations ──────────────────────────────────────────────────

// ReserveReminder claims (userID, tag). Returns false if already claimed.
func (d *DB) ReserveReminder(ctx context.Context, userID, tag string, at time.Time) (bool, error) {
	result, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO reminder_reservations (user_id, tag, created_at) VALUES (?, ?, ?)`,
		userID, tag, at.Unix(),
	)
	if err != nil {
		return false, err
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// ReleaseReminder drops a reservation so a later tick can retry.
func (d *DB) ReleaseReminder(ctx context.Context, userID, tag string) error {
	_, err := d.db.ExecContext(ctx,
		`DELETE FROM reminder_reservations WHERE user_id = ? AND tag = ?`, userID, tag)
	return err
}
