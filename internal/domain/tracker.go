package domain

import (
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar-day format used for habit logs, deadlines and
// billing dates.
const DateLayout = "2006-01-02"

// ─── Users ──────────────────────────────────────────────────────────────────

// User is the engagement subset of an account.
type User struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	XP        int64             `json:"xp"`
	Prefs     NotificationPrefs `json:"notification_prefs"`
	CreatedAt time.Time         `json:"created_at"`
}

// NotificationPrefs are the per-user reminder settings.
type NotificationPrefs struct {
	HabitRemindersEnabled   bool   `json:"habit_reminders_enabled"`
	ReminderTime            string `json:"reminder_time" validate:"datetime=15:04"`
	DeadlineWarningsEnabled bool   `json:"deadline_warnings_enabled"`
	DeadlineWarningDays     []int  `json:"deadline_warning_days" validate:"max=10,dive,min=0,max=60"`
	StreakWarningsEnabled   bool   `json:"streak_warnings_enabled"`
	PushEnabled             bool   `json:"push_enabled"`
}

// DefaultNotificationPrefs returns the settings a new user starts with.
func DefaultNotificationPrefs() NotificationPrefs {
	return NotificationPrefs{
		HabitRemindersEnabled:   true,
		ReminderTime:            "09:00",
		DeadlineWarningsEnabled: true,
		DeadlineWarningDays:     []int{3, 1, 0},
		StreakWarningsEnabled:   true,
		PushEnabled:             true,
	}
}

// EncodeDays serializes warning offsets as "3,1,0" for storage.
func EncodeDays(days []int) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

// DecodeDays parses the storage form written by EncodeDays. Malformed
// entries are skipped.
func DecodeDays(s string) []int {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []int
	for _, p := range strings.Split(s, ",") {
		d, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	return out
}

// ─── Habits ─────────────────────────────────────────────────────────────────

// HabitKind distinguishes yes/no habits from counted ones.
type HabitKind string

const (
	HabitBoolean  HabitKind = "boolean"
	HabitQuantity HabitKind = "quantity"
)

// HabitFrequency decides on which days a habit is due.
type HabitFrequency string

const (
	FrequencyDaily  HabitFrequency = "daily"
	FrequencyWeekly HabitFrequency = "weekly"
	FrequencyCustom HabitFrequency = "custom"
)

// Habit is a recurring activity the user tracks.
type Habit struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	Name          string         `json:"name"`
	Kind          HabitKind      `json:"kind"`
	TargetValue   int            `json:"target_value"`
	Frequency     HabitFrequency `json:"frequency"`
	TargetDays    []int          `json:"target_days,omitempty"` // 0=Sunday … 6=Saturday
	CurrentStreak int            `json:"current_streak"`
	LongestStreak int            `json:"longest_streak"`
	Archived      bool           `json:"archived"`
	CreatedAt     time.Time      `json:"created_at"`
}

// ScheduledOn reports whether the habit's frequency rule includes the
// given weekday. Weekly habits are scheduled every day until they have
// been completed once in the week; callers check that separately.
func (h Habit) ScheduledOn(day time.Weekday) bool {
	switch h.Frequency {
	case FrequencyCustom:
		for _, d := range h.TargetDays {
			if time.Weekday(d) == day {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// IsCompletedBy reports whether value meets the habit's target.
func (h Habit) IsCompletedBy(value int) bool {
	if h.Kind == HabitQuantity {
		target := h.TargetValue
		if target < 1 {
			target = 1
		}
		return value >= target
	}
	return value > 0
}

// HabitLog is the record for one habit on one calendar day.
// (HabitID, Date) is unique in storage.
type HabitLog struct {
	ID        string    `json:"id"`
	HabitID   string    `json:"habit_id"`
	UserID    string    `json:"user_id"`
	Date      string    `json:"date"`
	Value     int       `json:"value"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ─── Deadlines ──────────────────────────────────────────────────────────────

// DeadlineStatus is the lifecycle state of a deadline.
type DeadlineStatus string

const (
	DeadlinePending    DeadlineStatus = "pending"
	DeadlineInProgress DeadlineStatus = "in_progress"
	DeadlineCompleted  DeadlineStatus = "completed"
	DeadlineCancelled  DeadlineStatus = "cancelled"
)

// IsOpen reports whether the deadline still needs work.
func (s DeadlineStatus) IsOpen() bool {
	return s == DeadlinePending || s == DeadlineInProgress
}

// Deadline is a dated task.
type Deadline struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	Title       string         `json:"title"`
	DueDate     string         `json:"due_date"`
	Status      DeadlineStatus `json:"status"`
	Priority    string         `json:"priority"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// DeadlineStats summarizes a user's deadlines relative to a calendar day.
type DeadlineStats struct {
	Total     int `json:"total"`
	Open      int `json:"open"`
	Completed int `json:"completed"`
	Overdue   int `json:"overdue"`
}

// ─── Subscriptions ──────────────────────────────────────────────────────────

// SubscriptionStatus is the billing state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPaused    SubscriptionStatus = "paused"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Subscription is a recurring payment the user tracks.
type Subscription struct {
	ID                 string             `json:"id"`
	UserID             string             `json:"user_id"`
	Name               string             `json:"name"`
	AmountCents        int64              `json:"amount_cents"`
	Currency           string             `json:"currency"`
	BillingCycle       string             `json:"billing_cycle"`
	NextBillingDate    string             `json:"next_billing_date"`
	Status             SubscriptionStatus `json:"status"`
	ReminderEnabled    bool               `json:"reminder_enabled"`
	ReminderDaysBefore int                `json:"reminder_days_before"`
	CreatedAt          time.Time          `json:"created_at"`
}
