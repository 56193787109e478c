package gormstore

import (
	"time"

	"github.com/unfloned/chronik/internal/domain"
)

type userModel struct {
	ID                      string `gorm:"primaryKey;size:64"`
	Name                    string `gorm:"size:200"`
	XP                      int64  `gorm:"not null"`
	HabitRemindersEnabled   bool
	ReminderTime            string `gorm:"size:5"`
	DeadlineWarningsEnabled bool
	DeadlineWarningDays     string `gorm:"size:64"`
	StreakWarningsEnabled   bool
	PushEnabled             bool
	CreatedAt               time.Time
}

func (userModel) TableName() string { return "users" }

func userModelFromDomain(u domain.User) userModel {
	return userModel{
		ID:                      u.ID,
		Name:                    u.Name,
		XP:                      u.XP,
		HabitRemindersEnabled:   u.Prefs.HabitRemindersEnabled,
		ReminderTime:            u.Prefs.ReminderTime,
		DeadlineWarningsEnabled: u.Prefs.DeadlineWarningsEnabled,
		DeadlineWarningDays:     domain.EncodeDays(u.Prefs.DeadlineWarningDays),
		StreakWarningsEnabled:   u.Prefs.StreakWarningsEnabled,
		PushEnabled:             u.Prefs.PushEnabled,
		CreatedAt:               u.CreatedAt,
	}
}

func (m userModel) toDomain() domain.User {
	return domain.User{
		ID:   m.ID,
		Name: m.Name,
		XP:   m.XP,
		Prefs: domain.NotificationPrefs{
			HabitRemindersEnabled:   m.HabitRemindersEnabled,
			ReminderTime:            m.ReminderTime,
			DeadlineWarningsEnabled: m.DeadlineWarningsEnabled,
			DeadlineWarningDays:     domain.DecodeDays(m.DeadlineWarningDays),
			StreakWarningsEnabled:   m.StreakWarningsEnabled,
			PushEnabled:             m.PushEnabled,
		},
		CreatedAt: m.CreatedAt,
	}
}

type xpEntryModel struct {
	ID        string `gorm:"primaryKey;size:64"`
	UserID    string `gorm:"index;size:64;not null"`
	Amount    int64
	Source    string `gorm:"size:32"`
	Reference string `gorm:"size:128"`
	Balance   int64
	CreatedAt time.Time
}

func (xpEntryModel) TableName() string { return "xp_ledger" }

func (m xpEntryModel) toDomain() domain.XPEntry {
	return domain.XPEntry{
		ID: m.ID, UserID: m.UserID, Amount: m.Amount, Source: domain.XPSource(m.Source),
		Reference: m.Reference, Balance: m.Balance, CreatedAt: m.CreatedAt,
	}
}

type habitModel struct {
	ID            string `gorm:"primaryKey;size:64"`
	UserID        string `gorm:"index;size:64;not null"`
	Name          string `gorm:"size:200"`
	Kind          string `gorm:"size:16"`
	TargetValue   int
	Frequency     string `gorm:"size:16"`
	TargetDays    string `gorm:"size:32"`
	CurrentStreak int
	LongestStreak int
	Archived      bool
	CreatedAt     time.Time
}

func (habitModel) TableName() string { return "habits" }

func habitModelFromDomain(h domain.Habit) habitModel {
	return habitModel{
		ID: h.ID, UserID: h.UserID, Name: h.Name, Kind: string(h.Kind), TargetValue: h.TargetValue,
		Frequency: string(h.Frequency), TargetDays: domain.EncodeDays(h.TargetDays),
		CurrentStreak: h.CurrentStreak, LongestStreak: h.LongestStreak, Archived: h.Archived,
		CreatedAt: h.CreatedAt,
	}
}

func (m habitModel) toDomain() domain.Habit {
	return domain.Habit{
		ID: m.ID, UserID: m.UserID, Name: m.Name, Kind: domain.HabitKind(m.Kind),
		TargetValue: m.TargetValue, Frequency: domain.HabitFrequency(m.Frequency),
		TargetDays: domain.DecodeDays(m.TargetDays), CurrentStreak: m.CurrentStreak,
		LongestStreak: m.LongestStreak, Archived: m.Archived, CreatedAt: m.CreatedAt,
	}
}

type habitLogModel struct {
	ID        string    `gorm:"primaryKey;size:64"`
	HabitID   string    `gorm:"uniqueIndex:idx_habit_logs_day;size:64;not null"`
	Date      string    `gorm:"uniqueIndex:idx_habit_logs_day;size:10;not null"`
	UserID    string    `gorm:"index:idx_habit_logs_user_date;size:64;not null"`
	Value     int
	Completed bool      `gorm:"index:idx_habit_logs_user_date"`
	Counted   bool      `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

func (habitLogModel) TableName() string { return "habit_logs" }

func (m habitLogModel) toDomain() domain.HabitLog {
	return domain.HabitLog{
		ID: m.ID, HabitID: m.HabitID, UserID: m.UserID, Date: m.Date, Value: m.Value,
		Completed: m.Completed, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
}

type deadlineModel struct {
	ID          string `gorm:"primaryKey;size:64"`
	UserID      string `gorm:"index;size:64;not null"`
	Title       string `gorm:"size:200"`
	DueDate     string `gorm:"size:10;index"`
	Status      string `gorm:"size:16"`
	Priority    string `gorm:"size:16"`
	CompletedAt *time.Time
	CreatedAt   time.Time
}

func (deadlineModel) TableName() string { return "deadlines" }

func (m deadlineModel) toDomain() domain.Deadline {
	return domain.Deadline{
		ID: m.ID, UserID: m.UserID, Title: m.Title, DueDate: m.DueDate,
		Status: domain.DeadlineStatus(m.Status), Priority: m.Priority,
		CompletedAt: m.CompletedAt, CreatedAt: m.CreatedAt,
	}
}

type subscriptionModel struct {
	ID                 string `gorm:"primaryKey;size:64"`
	UserID             string `gorm:"index;size:64;not null"`
	Name               string `gorm:"size:200"`
	AmountCents        int64
	Currency           string `gorm:"size:3"`
	BillingCycle       string `gorm:"size:16"`
	NextBillingDate    string `gorm:"size:10"`
	Status             string `gorm:"size:16"`
	ReminderEnabled    bool
	ReminderDaysBefore int
	CreatedAt          time.Time
}

func (subscriptionModel) TableName() string { return "subscriptions" }

func (m subscriptionModel) toDomain() domain.Subscription {
	return domain.Subscription{
		ID: m.ID, UserID: m.UserID, Name: m.Name, AmountCents: m.AmountCents, Currency: m.Currency,
		BillingCycle: m.BillingCycle, NextBillingDate: m.NextBillingDate,
		Status: domain.SubscriptionStatus(m.Status), ReminderEnabled: m.ReminderEnabled,
		ReminderDaysBefore: m.ReminderDaysBefore, CreatedAt: m.CreatedAt,
	}
}

type achievementDefModel struct {
	Key         string `gorm:"primaryKey;size:64"`
	Name        string `gorm:"size:120"`
	Description string `gorm:"size:500"`
	Category    string `gorm:"size:32"`
	Icon        string `gorm:"size:16"`
	XPReward    int64
	Requirement int
	Hidden      bool
	Type        string `gorm:"size:16"`
	ResetPeriod string `gorm:"size:16"`
	Tier        int
	Trigger     string `gorm:"column:trigger_name;size:32"`
}

func (achievementDefModel) TableName() string { return "achievement_defs" }

func achievementDefModelFromDomain(d domain.AchievementDef) achievementDefModel {
	return achievementDefModel{
		Key: d.Key, Name: d.Name, Description: d.Description, Category: string(d.Category),
		Icon: d.Icon, XPReward: d.XPReward, Requirement: d.Requirement, Hidden: d.Hidden,
		Type: string(d.Type), ResetPeriod: string(d.ResetPeriod), Tier: d.Tier,
		Trigger: string(d.Trigger),
	}
}

func (m achievementDefModel) toDomain() domain.AchievementDef {
	return domain.AchievementDef{
		Key: m.Key, Name: m.Name, Description: m.Description,
		Category: domain.AchievementCategory(m.Category), Icon: m.Icon, XPReward: m.XPReward,
		Requirement: m.Requirement, Hidden: m.Hidden, Type: domain.AchievementType(m.Type),
		ResetPeriod: domain.ResetPeriod(m.ResetPeriod), Tier: m.Tier,
		Trigger: domain.AchievementTrigger(m.Trigger),
	}
}

// unlockModel carries the uniqueness that makes unlocks single-winner.
type unlockModel struct {
	ID             string    `gorm:"primaryKey;size:64"`
	UserID         string    `gorm:"uniqueIndex:idx_unlock_window;size:64;not null"`
	AchievementKey string    `gorm:"uniqueIndex:idx_unlock_window;size:64;not null"`
	WindowKey      string    `gorm:"uniqueIndex:idx_unlock_window;size:64;not null"`
	UnlockedAt     time.Time `gorm:"index"`
}

func (unlockModel) TableName() string { return "achievement_unlocks" }

func (m unlockModel) toDomain() domain.AchievementUnlock {
	return domain.AchievementUnlock{
		ID: m.ID, UserID: m.UserID, AchievementKey: m.AchievementKey,
		WindowKey: m.WindowKey, UnlockedAt: m.UnlockedAt,
	}
}

type notificationModel struct {
	ID        string `gorm:"primaryKey;size:64"`
	UserID    string `gorm:"index:idx_notifications_user;size:64;not null"`
	Category  string `gorm:"size:32"`
	Title     string `gorm:"size:200"`
	Message   string `gorm:"size:1000"`
	Link      string `gorm:"size:200"`
	IsRead    bool   `gorm:"index:idx_notifications_user"`
	CreatedAt time.Time
}

func (notificationModel) TableName() string { return "notifications" }

func (m notificationModel) toDomain() domain.Notification {
	return domain.Notification{
		ID: m.ID, UserID: m.UserID, Category: domain.NotificationCategory(m.Category),
		Title: m.Title, Message: m.Message, Link: m.Link, IsRead: m.IsRead, CreatedAt: m.CreatedAt,
	}
}

type pushSubscriptionModel struct {
	ID        string `gorm:"primaryKey;size:64"`
	UserID    string `gorm:"index;size:64;not null"`
	Endpoint  string `gorm:"uniqueIndex;size:512;not null"`
	P256dh    string `gorm:"size:256"`
	Auth      string `gorm:"size:256"`
	CreatedAt time.Time
}

func (pushSubscriptionModel) TableName() string { return "push_subscriptions" }

func (m pushSubscriptionModel) toDomain() domain.PushSubscription {
	return domain.PushSubscription{
		ID: m.ID, UserID: m.UserID, Endpoint: m.Endpoint, P256dh: m.P256dh,
		Auth: m.Auth, CreatedAt: m.CreatedAt,
	}
}

type reminderModel struct {
	UserID    string `gorm:"primaryKey;size:64"`
	Tag       string `gorm:"primaryKey;size:200"`
	CreatedAt time.Time
}

func (reminderModel) TableName() string { return "reminder_reservations" }

func allModels() []any {
	return []any{
		&userModel{}, &xpEntryModel{}, &habitModel{}, &habitLogModel{}, &deadlineModel{},
		&subscriptionModel{}, &achievementDefModel{}, &unlockModel{}, &notificationModel{},
		&pushSubscriptionModel{}, &reminderModel{},
	}
}
