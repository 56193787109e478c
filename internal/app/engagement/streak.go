// Package engagement implements the reward side of chronik: XP and levels,
// the achievement catalog and unlock engine, habit streaks and the
// dashboard chaos score.
package engagement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/unfloned/chronik/internal/domain"
)

// StreakUpdate is the state of a habit's streak after a completion.
type StreakUpdate struct {
	HabitID  string         `json:"habit_id"`
	Current  int            `json:"current"`
	Longest  int            `json:"longest"`
	Unlocked []UnlockResult `json:"unlocked,omitempty"`
}

// StreakService maintains per-habit streak counters.
// A day extends the streak when the habit was completed the day before;
// otherwise the streak restarts at 1. Longest never decreases.
type StreakService struct {
	habits       domain.HabitStore
	achievements *AchievementService
	logger       *slog.Logger
}

// NewStreakService creates a streak service. achievements may be nil, in
// which case milestones are not checked.
func NewStreakService(habits domain.HabitStore, achievements *AchievementService, logger *slog.Logger) *StreakService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreakService{
		habits:       habits,
		achievements: achievements,
		logger:       logger.With("component", "streaks"),
	}
}

// OnHabitCompleted updates the habit's streak for a new completion on day
// and unlocks the streak milestone matching the new length, if any.
// Callers must only invoke it when day transitioned from not completed to
// completed.
func (s *StreakService) OnHabitCompleted(ctx context.Context, habitID, userID string, day time.Time) (StreakUpdate, error) {
	h, err := s.habits.GetHabit(ctx, habitID)
	if err != nil {
		return StreakUpdate{}, fmt.Errorf("get habit: %w", err)
	}

	yesterday := day.AddDate(0, 0, -1).Format(domain.DateLayout)
	continued, err := s.habits.HabitCompletedBetween(ctx, habitID, yesterday, yesterday)
	if err != nil {
		return StreakUpdate{}, fmt.Errorf("check previous day: %w", err)
	}

	next := 1
	if continued {
		next = h.CurrentStreak + 1
	}
	longest := h.LongestStreak
	if next > longest {
		longest = next
	}
	if err := s.habits.UpdateStreak(ctx, habitID, next, longest); err != nil {
		return StreakUpdate{}, fmt.Errorf("save streak: %w", err)
	}

	update := StreakUpdate{HabitID: habitID, Current: next, Longest: longest}
	if s.achievements == nil {
		return update, nil
	}
	unlocked, err := s.achievements.CheckMilestones(ctx, userID, domain.TriggerStreak, next)
	if err != nil {
		s.logger.Warn("streak milestone check failed", "user_id", userID, "habit_id", habitID, "error", err)
	}
	update.Unlocked = unlocked
	return update, nil
}
