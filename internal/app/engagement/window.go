package engagement

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/unfloned/chronik/internal/domain"
)

// OnceWindow is the window key of one-time achievements.
const OnceWindow = "once"

// WindowKey returns the unlock window an award at t falls into. Two unlocks
// of the same achievement collide exactly when their window keys match.
// Repeatable achievements without a reset period get a fresh key per call.
func WindowKey(def domain.AchievementDef, t time.Time) string {
	switch def.ResetPeriod {
	case domain.ResetDaily:
		return t.Format(domain.DateLayout)
	case domain.ResetWeekly:
		return isoWeek(t)
	case domain.ResetMonthly:
		return t.Format("2006-01")
	}
	if def.Type == domain.AchievementRepeatable {
		return uuid.NewString()
	}
	return OnceWindow
}

// WindowStart returns the local midnight at which the period containing t
// began. ResetNone yields the zero time.
func WindowStart(period domain.ResetPeriod, t time.Time) time.Time {
	day := StartOfDay(t)
	switch period {
	case domain.ResetDaily:
		return day
	case domain.ResetWeekly:
		// ISO weeks start on Monday.
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case domain.ResetMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	}
	return time.Time{}
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween counts calendar days from the day of from to the day of to.
// It is immune to DST because both days are compared as UTC dates.
func DaysBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// isoWeek returns "YYYY-Www" for the given time.
func isoWeek(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
