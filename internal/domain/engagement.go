// Package domain holds the engagement engine's entities, store ports and
// sentinel errors. It has no infrastructure dependency.
//
// Engagement rewards users for keeping their habits, deadlines and
// subscriptions in order: XP and levels, achievements, streaks, reminders
// and a dashboard chaos score.
package domain

import "time"

// ─── Level / XP Types ───────────────────────────────────────────────────────

// UserLevel is the read model for a user's XP standing. Level is derived
// from XP on every read and never persisted.
type UserLevel struct {
	Level     int           `json:"level"`
	CurrentXP int64         `json:"current_xp"`
	Progress  LevelProgress `json:"progress"`
}

// LevelProgress describes how far a user is into their current level.
type LevelProgress struct {
	CurrentInLevel       int64   `json:"current_in_level"`
	RequiredForNextLevel int64   `json:"required_for_next_level"`
	Percentage           float64 `json:"percentage"`
}

// XPSource categorizes how XP was earned.
type XPSource string

const (
	XPHabitCompleted    XPSource = "habit_completed"
	XPAchievement       XPSource = "achievement"
	XPDeadlineCompleted XPSource = "deadline_completed"
	XPManual            XPSource = "manual"
)

// XPEntry is one row of the XP ledger. Balance is the user's total XP
// after the entry was applied.
type XPEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Amount    int64     `json:"amount"`
	Source    XPSource  `json:"source"`
	Reference string    `json:"reference,omitempty"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

// XPChange reports a user's total XP before and after an award.
type XPChange struct {
	OldXP int64 `json:"old_xp"`
	NewXP int64 `json:"new_xp"`
}

// ─── Achievement Types ──────────────────────────────────────────────────────

// AchievementType controls how often an achievement can be earned.
type AchievementType string

const (
	AchievementOneTime    AchievementType = "one_time"
	AchievementRepeatable AchievementType = "repeatable"
	AchievementDaily      AchievementType = "daily"
	AchievementWeekly     AchievementType = "weekly"
	AchievementMonthly    AchievementType = "monthly"
)

// ResetPeriod is the window after which a periodic achievement can be
// earned again.
type ResetPeriod string

const (
	ResetNone    ResetPeriod = "none"
	ResetDaily   ResetPeriod = "daily"
	ResetWeekly  ResetPeriod = "weekly"
	ResetMonthly ResetPeriod = "monthly"
)

// AchievementCategory groups achievements by theme.
type AchievementCategory string

const (
	CatHabits        AchievementCategory = "habits"
	CatStreaks       AchievementCategory = "streaks"
	CatDeadlines     AchievementCategory = "deadlines"
	CatSubscriptions AchievementCategory = "subscriptions"
	CatMastery       AchievementCategory = "mastery"
)

// AchievementTrigger names the counter a threshold achievement is matched
// against. Requirement holds the threshold.
type AchievementTrigger string

const (
	TriggerNone                AchievementTrigger = ""
	TriggerStreak              AchievementTrigger = "streak"
	TriggerCompletionCount     AchievementTrigger = "completion_count"
	TriggerHabitCount          AchievementTrigger = "habit_count"
	TriggerDeadlineCount       AchievementTrigger = "deadline_count"
	TriggerDeadlinesCompleted  AchievementTrigger = "deadlines_completed"
	TriggerSubscriptionCount   AchievementTrigger = "subscription_count"
	TriggerLevel               AchievementTrigger = "level"
	TriggerPerfectDay          AchievementTrigger = "perfect_day"
	TriggerWeeklyDeadlines     AchievementTrigger = "weekly_deadlines"
	TriggerMonthlyCompletions  AchievementTrigger = "monthly_completions"
	TriggerEarlyDeadlineFinish AchievementTrigger = "early_deadline_finish"
)

// AchievementDef is a catalog entry. Rows are seeded by key and never
// overwritten once persisted.
type AchievementDef struct {
	Key         string              `json:"key" validate:"required,max=64"`
	Name        string              `json:"name" validate:"required"`
	Description string              `json:"description"`
	Category    AchievementCategory `json:"category" validate:"required"`
	Icon        string              `json:"icon,omitempty"`
	XPReward    int64               `json:"xp_reward" validate:"gte=0"`
	Requirement int                 `json:"requirement" validate:"gte=0"`
	Hidden      bool                `json:"hidden"`
	Type        AchievementType     `json:"type" validate:"oneof=one_time repeatable daily weekly monthly"`
	ResetPeriod ResetPeriod         `json:"reset_period" validate:"oneof=none daily weekly monthly"`
	Tier        int                 `json:"tier" validate:"min=1,max=5"`
	Trigger     AchievementTrigger  `json:"trigger,omitempty"`
}

// AchievementUnlock records one award of an achievement to a user.
// (UserID, AchievementKey, WindowKey) is unique in storage.
type AchievementUnlock struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	AchievementKey string    `json:"achievement_key"`
	WindowKey      string    `json:"window_key"`
	UnlockedAt     time.Time `json:"unlocked_at"`
}

// AchievementProgress is a catalog entry as seen by one user.
type AchievementProgress struct {
	Definition AchievementDef `json:"definition"`
	Unlocked   bool           `json:"unlocked"`
	Count      int            `json:"count"`
	UnlockedAt *time.Time     `json:"unlocked_at,omitempty"`
}
