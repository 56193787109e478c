package engagement

import "math"

// ChaosInput is the snapshot of a user's state the chaos score is computed
// from.
type ChaosInput struct {
	HabitsTotal          int   `json:"habits_total"`
	HabitsDueToday       int   `json:"habits_due_today"`
	HabitsCompletedToday int   `json:"habits_completed_today"`
	BestCurrentStreak    int   `json:"best_current_streak"`
	DeadlinesTotal       int   `json:"deadlines_total"`
	DeadlinesOverdue     int   `json:"deadlines_overdue"`
	XP                   int64 `json:"xp"`
	Level                int   `json:"level"`
}

// ChaosScore rates how disorganized a user is, 0 (calm) to 100 (chaos).
// Every user starts at 100; organized behavior subtracts, overdue
// deadlines add back up to 20.
func ChaosScore(in ChaosInput) int {
	score := 100.0

	if in.HabitsTotal > 0 {
		score -= 10
	}
	if in.HabitsDueToday > 0 {
		rate := float64(in.HabitsCompletedToday) / float64(in.HabitsDueToday)
		if rate > 1 {
			rate = 1
		}
		score -= rate * 20
	}
	switch {
	case in.BestCurrentStreak >= 7:
		score -= 10
	case in.BestCurrentStreak >= 3:
		score -= 5
	}

	if in.DeadlinesTotal > 0 {
		score -= 10
		if in.DeadlinesOverdue == 0 {
			score -= 10
		}
	}

	switch {
	case in.XP >= 1000:
		score -= 15
	case in.XP >= 500:
		score -= 10
	case in.XP >= 100:
		score -= 5
	}
	switch {
	case in.Level >= 5:
		score -= 10
	case in.Level >= 3:
		score -= 5
	}

	if in.DeadlinesOverdue > 0 {
		score += math.Min(float64(in.DeadlinesOverdue)*5, 20)
	}

	return int(math.Round(math.Max(0, math.Min(100, score))))
}
