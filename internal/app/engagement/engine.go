package engagement

import (
	"context"
	"log/slog"
	"time"

	"github.com/unfloned/chronik/internal/domain"
)

// Engine bundles the engagement services behind the three entry points
// domain code calls: TryUnlock, AwardXP and OnHabitCompleted.
type Engine struct {
	Catalog      *Catalog
	Levels       *LevelService
	Achievements *AchievementService
	Streaks      *StreakService
}

// NewEngine wires the engagement services over store. dispatcher may be
// nil, in which case no notifications are sent.
func NewEngine(store domain.Store, catalog *Catalog, dispatcher domain.Dispatcher, logger *slog.Logger) *Engine {
	levels := NewLevelService(store, dispatcher, logger)
	achievements := NewAchievementService(catalog, store, levels, dispatcher, logger)
	return &Engine{
		Catalog:      catalog,
		Levels:       levels,
		Achievements: achievements,
		Streaks:      NewStreakService(store, achievements, logger),
	}
}

// SetClock replaces the time source of every service. Tests only.
func (e *Engine) SetClock(now func() time.Time) {
	e.Levels.now = now
	e.Achievements.now = now
}

// TryUnlock awards an achievement if it is not yet held in the current window.
func (e *Engine) TryUnlock(ctx context.Context, userID, key string) (UnlockResult, error) {
	return e.Achievements.TryUnlock(ctx, userID, key)
}

// AwardXP adds XP and unlocks any level achievement the award crossed.
func (e *Engine) AwardXP(ctx context.Context, userID string, amount int64, source domain.XPSource, ref string) (domain.XPChange, error) {
	change, err := e.Levels.AwardXP(ctx, userID, amount, source, ref)
	if err != nil {
		return change, err
	}
	e.Achievements.CheckLevelMilestones(ctx, userID, change)
	return change, nil
}

// OnHabitCompleted advances the habit's streak for a new completion.
func (e *Engine) OnHabitCompleted(ctx context.Context, habitID, userID string, day time.Time) (StreakUpdate, error) {
	return e.Streaks.OnHabitCompleted(ctx, habitID, userID, day)
}

// Seed inserts missing catalog rows.
func (e *Engine) Seed(ctx context.Context) (int, error) {
	return e.Catalog.EnsureSeeded(ctx)
}
