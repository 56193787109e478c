package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/unfloned/chronik/internal/app/engagement"
	"github.com/unfloned/chronik/internal/domain"
)

// HabitReminderJob reminds users of today's open habits at their
// configured reminder time.
type HabitReminderJob struct {
	sender
}

// NewHabitReminderJob creates the job.
func NewHabitReminderJob(store Store, dispatcher domain.Dispatcher, logger *slog.Logger) *HabitReminderJob {
	return &HabitReminderJob{sender: newSender(JobHabitReminder, store, dispatcher, logger)}
}

// Name implements scheduler.Job.
func (j *HabitReminderJob) Name() string { return JobHabitReminder }

// Run implements scheduler.Job.
func (j *HabitReminderJob) Run(ctx context.Context, now time.Time) error {
	return j.eachUser(ctx, func(u domain.User) error {
		if !u.Prefs.HabitRemindersEnabled {
			return nil
		}
		h, m, ok := parseHHMM(u.Prefs.ReminderTime)
		if !ok || h != now.Hour() || m != now.Minute() {
			return nil
		}
		return j.remind(ctx, u, now)
	})
}

func (j *HabitReminderJob) remind(ctx context.Context, u domain.User, now time.Time) error {
	pending, err := engagement.PendingHabits(ctx, j.store, u.ID, now)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	names := make([]string, len(pending))
	for i, h := range pending {
		names[i] = h.Name
	}
	title := "Habits waiting for today"
	if len(pending) == 1 {
		title = "One habit waiting for today"
	}
	_, err = j.send(ctx, now, reminder{
		userID:   u.ID,
		tag:      fmt.Sprintf("habits:%s:%s", u.ID, now.Format(domain.DateLayout)),
		category: domain.NotifyHabitReminder,
		title:    title,
		message:  summarize(names, 3),
		link:     "/habits",
	})
	return err
}

// StreakRiskJob warns in the evening about streaks that break at midnight.
type StreakRiskJob struct {
	sender
	startHour int
	endHour   int
}

// NewStreakRiskJob creates the job acting when startHour <= hour < endHour.
func NewStreakRiskJob(store Store, dispatcher domain.Dispatcher, startHour, endHour int, logger *slog.Logger) *StreakRiskJob {
	return &StreakRiskJob{
		sender:    newSender(JobStreakRisk, store, dispatcher, logger),
		startHour: startHour,
		endHour:   endHour,
	}
}

// Name implements scheduler.Job.
func (j *StreakRiskJob) Name() string { return JobStreakRisk }

// Run implements scheduler.Job.
func (j *StreakRiskJob) Run(ctx context.Context, now time.Time) error {
	if now.Hour() < j.startHour || now.Hour() >= j.endHour {
		return nil
	}
	return j.eachUser(ctx, func(u domain.User) error {
		if !u.Prefs.StreakWarningsEnabled {
			return nil
		}
		return j.warn(ctx, u, now)
	})
}

func (j *StreakRiskJob) warn(ctx context.Context, u domain.User, now time.Time) error {
	habits, err := j.store.ListHabits(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("list habits: %w", err)
	}
	today := now.Format(domain.DateLayout)
	yesterday := engagement.StartOfDay(now).AddDate(0, 0, -1).Format(domain.DateLayout)

	var atRisk []domain.Habit
	for _, h := range habits {
		if h.CurrentStreak < 3 {
			continue
		}
		todayLog, err := j.store.GetHabitLog(ctx, h.ID, today)
		if err != nil {
			return fmt.Errorf("habit %s log: %w", h.ID, err)
		}
		if todayLog != nil && todayLog.Completed {
			continue
		}
		// A streak that already missed yesterday is gone; nothing to save.
		prev, err := j.store.GetHabitLog(ctx, h.ID, yesterday)
		if err != nil {
			return fmt.Errorf("habit %s log: %w", h.ID, err)
		}
		if prev == nil || !prev.Completed {
			continue
		}
		atRisk = append(atRisk, h)
	}
	if len(atRisk) == 0 {
		return nil
	}

	sort.SliceStable(atRisk, func(a, b int) bool { return atRisk[a].CurrentStreak > atRisk[b].CurrentStreak })
	names := make([]string, len(atRisk))
	for i, h := range atRisk {
		names[i] = fmt.Sprintf("%s (%d days)", h.Name, h.CurrentStreak)
	}
	_, err = j.send(ctx, now, reminder{
		userID:   u.ID,
		tag:      fmt.Sprintf("streak-risk:%s:%s", u.ID, today),
		category: domain.NotifyStreakRisk,
		title:    "Your streak is at risk",
		message:  summarize(names, 2),
		link:     "/habits",
		pushOnly: true,
	})
	return err
}
