package tracker

import (
	"context"
	"fmt"

	"github.com/unfloned/chronik/internal/app/engagement"
	"github.com/unfloned/chronik/internal/domain"
	"github.com/unfloned/chronik/internal/infra/metrics"
)

// DashboardService assembles the dashboard read model.
type DashboardService struct {
	base
}

// HabitSummary is today's habit picture.
type HabitSummary struct {
	Total          int `json:"total"`
	DueToday       int `json:"due_today"`
	CompletedToday int `json:"completed_today"`
	BestStreak     int `json:"best_streak"`
}

// Summary is the dashboard payload. It is computed on every read.
type Summary struct {
	Level      domain.UserLevel     `json:"level"`
	Habits     HabitSummary         `json:"habits"`
	Deadlines  domain.DeadlineStats `json:"deadlines"`
	Unread     int                  `json:"unread_notifications"`
	ChaosScore int                  `json:"chaos_score"`
}

// Summary gathers the user's stats and scores them.
func (s *DashboardService) Summary(ctx context.Context, userID string) (Summary, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return Summary{}, fmt.Errorf("get user: %w", err)
	}
	now := s.now()
	today := now.Format(domain.DateLayout)

	habits, err := s.store.ListHabits(ctx, userID)
	if err != nil {
		return Summary{}, fmt.Errorf("list habits: %w", err)
	}
	due, err := engagement.DueHabits(ctx, s.store, userID, now)
	if err != nil {
		return Summary{}, err
	}
	pending, err := engagement.PendingHabits(ctx, s.store, userID, now)
	if err != nil {
		return Summary{}, err
	}
	hs := HabitSummary{Total: len(habits), DueToday: len(due), CompletedToday: len(due) - len(pending)}
	for _, h := range habits {
		if h.CurrentStreak > hs.BestStreak {
			hs.BestStreak = h.CurrentStreak
		}
	}

	stats, err := s.store.DeadlineStats(ctx, userID, today)
	if err != nil {
		return Summary{}, fmt.Errorf("deadline stats: %w", err)
	}
	unread, err := s.store.UnreadCount(ctx, userID)
	if err != nil {
		return Summary{}, fmt.Errorf("unread count: %w", err)
	}

	level := engagement.Snapshot(u.XP)
	score := engagement.ChaosScore(engagement.ChaosInput{
		HabitsTotal:          hs.Total,
		HabitsDueToday:       hs.DueToday,
		HabitsCompletedToday: hs.CompletedToday,
		BestCurrentStreak:    hs.BestStreak,
		DeadlinesTotal:       stats.Total,
		DeadlinesOverdue:     stats.Overdue,
		XP:                   u.XP,
		Level:                level.Level,
	})
	metrics.ChaosScore.Observe(float64(score))

	return Summary{
		Level:      level,
		Habits:     hs,
		Deadlines:  stats,
		Unread:     unread,
		ChaosScore: score,
	}, nil
}
