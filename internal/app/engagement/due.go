package engagement

import (
	"context"
	"fmt"
	"time"

	"github.com/unfloned/chronik/internal/domain"
)

// DueHabits returns the user's habits that are due on day. Custom habits
// are due on their target weekdays. Weekly habits stay due every day of
// the ISO week until a completion before day exists.
func DueHabits(ctx context.Context, store domain.HabitStore, userID string, day time.Time) ([]domain.Habit, error) {
	habits, err := store.ListHabits(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}

	weekStart := WindowStart(domain.ResetWeekly, day).Format(domain.DateLayout)
	yesterday := StartOfDay(day).AddDate(0, 0, -1).Format(domain.DateLayout)

	due := make([]domain.Habit, 0, len(habits))
	for _, h := range habits {
		if !h.ScheduledOn(day.Weekday()) {
			continue
		}
		if h.Frequency == domain.FrequencyWeekly && weekStart <= yesterday {
			done, err := store.HabitCompletedBetween(ctx, h.ID, weekStart, yesterday)
			if err != nil {
				return nil, fmt.Errorf("habit %s weekly state: %w", h.ID, err)
			}
			if done {
				continue
			}
		}
		due = append(due, h)
	}
	return due, nil
}

// PendingHabits returns the habits due on day that have no completed log
// for that day.
func PendingHabits(ctx context.Context, store domain.HabitStore, userID string, day time.Time) ([]domain.Habit, error) {
	due, err := DueHabits(ctx, store, userID, day)
	if err != nil {
		return nil, err
	}
	if len(due) == 0 {
		return nil, nil
	}
	ids, err := store.CompletedHabitIDs(ctx, userID, day.Format(domain.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("completed habits: %w", err)
	}
	done := make(map[string]bool, len(ids))
	for _, id := range ids {
		done[id] = true
	}
	var pending []domain.Habit
	for _, h := range due {
		if !done[h.ID] {
			pending = append(pending, h)
		}
	}
	return pending, nil
}
