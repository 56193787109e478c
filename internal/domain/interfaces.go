package domain

import (
	"context"
	"time"
)

// ─── Store Ports ────────────────────────────────────────────────────────────
// These interfaces define the boundary between the engagement engine and
// persistence. infra/sqlite and infra/gormstore implement Store.

// UserStore persists users and their XP ledger.
type UserStore interface {
	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateNotificationPrefs(ctx context.Context, userID string, prefs NotificationPrefs) error

	// AddXP increments the user's XP by entry.Amount and appends the ledger
	// row in one transaction. entry.Balance is filled in by the store.
	AddXP(ctx context.Context, entry XPEntry) (XPChange, error)
	XPHistory(ctx context.Context, userID string, limit int) ([]XPEntry, error)
}

// HabitStore persists habits, their streak counters and daily logs.
type HabitStore interface {
	CreateHabit(ctx context.Context, h Habit) error
	GetHabit(ctx context.Context, id string) (*Habit, error)
	// ListHabits returns the user's non-archived habits.
	ListHabits(ctx context.Context, userID string) ([]Habit, error)
	CountHabits(ctx context.Context, userID string) (int, error)
	UpdateStreak(ctx context.Context, habitID string, current, longest int) error

	// GetHabitLog returns nil, nil when no log exists for the day.
	GetHabitLog(ctx context.Context, habitID, date string) (*HabitLog, error)
	// UpsertHabitLog writes the log for (HabitID, Date), replacing the value
	// of an existing row. Completion is sticky: once set it stays set. It
	// reports whether this write is the one that completed the day; of any
	// number of concurrent writers exactly one sees true.
	UpsertHabitLog(ctx context.Context, log HabitLog) (bool, error)
	// CompletedHabitIDs returns the IDs of the user's habits completed on date.
	CompletedHabitIDs(ctx context.Context, userID, date string) ([]string, error)
	// HabitCompletedBetween reports whether the habit has a completed log
	// with from <= date <= to.
	HabitCompletedBetween(ctx context.Context, habitID, from, to string) (bool, error)
	// CountCompletions counts the user's completed logs with date >= since.
	// An empty since counts all of them.
	CountCompletions(ctx context.Context, userID, since string) (int, error)
}

// DeadlineStore persists deadlines.
type DeadlineStore interface {
	CreateDeadline(ctx context.Context, d Deadline) error
	GetDeadline(ctx context.Context, id string) (*Deadline, error)
	// CloseDeadline moves an open (pending or in-progress) deadline to
	// status. It reports false, without error, when the deadline exists but
	// was no longer open, so exactly one caller closes it.
	CloseDeadline(ctx context.Context, id string, status DeadlineStatus, closedAt *time.Time) (bool, error)
	// ListOpenDeadlines returns pending and in-progress deadlines of the user.
	ListOpenDeadlines(ctx context.Context, userID string) ([]Deadline, error)
	// DeadlineStats counts the user's deadlines; overdue means open with a
	// due date before today.
	DeadlineStats(ctx context.Context, userID, today string) (DeadlineStats, error)
	CountDeadlinesCompletedSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// SubscriptionStore persists tracked subscriptions.
type SubscriptionStore interface {
	CreateSubscription(ctx context.Context, s Subscription) error
	// ListRemindableSubscriptions returns active subscriptions with
	// reminders enabled, across all users.
	ListRemindableSubscriptions(ctx context.Context) ([]Subscription, error)
	CountSubscriptions(ctx context.Context, userID string) (int, error)
}

// AchievementStore persists the achievement catalog and unlocks.
type AchievementStore interface {
	// InsertAchievementDef inserts the definition unless its key exists.
	// It reports whether a row was written.
	InsertAchievementDef(ctx context.Context, def AchievementDef) (bool, error)
	ListAchievementDefs(ctx context.Context) ([]AchievementDef, error)

	// UnlockAchievement inserts the unlock and, when it won the unique
	// (user, key, window) slot, applies reward in the same transaction.
	// A lost insert reports false and leaves XP untouched.
	UnlockAchievement(ctx context.Context, unlock AchievementUnlock, reward XPEntry) (bool, XPChange, error)
	ListUnlocks(ctx context.Context, userID string) ([]AchievementUnlock, error)
}

// NotificationStore persists in-app notifications.
type NotificationStore interface {
	InsertNotification(ctx context.Context, n Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
	MarkNotificationUnread(ctx context.Context, userID, id string) error
	UnreadCount(ctx context.Context, userID string) (int, error)
}

// PushStore persists push endpoints.
type PushStore interface {
	// AddPushSubscription registers the endpoint; re-registering an
	// existing endpoint is a no-op.
	AddPushSubscription(ctx context.Context, sub PushSubscription) error
	ListPushSubscriptions(ctx context.Context, userID string) ([]PushSubscription, error)
	DeletePushSubscription(ctx context.Context, id string) error
}

// ReminderStore holds the dedup reservations of scheduled reminders.
type ReminderStore interface {
	// ReserveReminder claims (userID, tag). Exactly one caller wins.
	ReserveReminder(ctx context.Context, userID, tag string, at time.Time) (bool, error)
	ReleaseReminder(ctx context.Context, userID, tag string) error
}

// Store is the full storage gateway.
type Store interface {
	UserStore
	HabitStore
	DeadlineStore
	SubscriptionStore
	AchievementStore
	NotificationStore
	PushStore
	ReminderStore

	Ping(ctx context.Context) error
	Close() error
}

// ─── Service Interfaces ─────────────────────────────────────────────────────

// Dispatcher delivers notifications to a user. Implemented by app/notify.
type Dispatcher interface {
	CreateInApp(ctx context.Context, userID string, category NotificationCategory, title, message, link string) (Notification, error)
	// SendPush delivers msg to every push endpoint of the user and returns
	// how many deliveries succeeded. It is a zero-sent no-op when push is
	// not configured.
	SendPush(ctx context.Context, userID string, msg PushMessage) (int, error)
}
