package domain

import "time"

// ─── Notification Types ─────────────────────────────────────────────────────

// NotificationCategory categorizes notifications.
type NotificationCategory string

const (
	NotifyAchievement          NotificationCategory = "achievement"
	NotifyLevelUp              NotificationCategory = "level_up"
	NotifyHabitReminder        NotificationCategory = "habit_reminder"
	NotifyDeadlineWarning      NotificationCategory = "deadline_warning"
	NotifySubscriptionReminder NotificationCategory = "subscription_reminder"
	NotifyStreakRisk           NotificationCategory = "streak_risk"
	NotifySystem               NotificationCategory = "system"
)

// Notification is a persisted in-app message.
type Notification struct {
	ID        string               `json:"id"`
	UserID    string               `json:"user_id"`
	Category  NotificationCategory `json:"category"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Link      string               `json:"link,omitempty"`
	IsRead    bool                 `json:"is_read"`
	CreatedAt time.Time            `json:"created_at"`
}

// PushMessage is the payload delivered to every registered push endpoint
// of a user. Tag lets clients collapse repeated messages.
type PushMessage struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Tag   string            `json:"tag,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
}

// PushSubscription is one registered push endpoint.
type PushSubscription struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"p256dh,omitempty"`
	Auth      string    `json:"auth,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
