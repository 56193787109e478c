// Package tracker holds the domain services that feed the engagement
// engine: habit logging, deadlines, subscriptions and the dashboard.
//
// Engine calls are side effects of the primary write. The write commits
// first; streak, XP and achievement failures afterwards are logged and
// never undo or fail the user's action.
package tracker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/unfloned/chronik/internal/app/engagement"
	"github.com/unfloned/chronik/internal/domain"
)

// XP granted for tracked activity outside the achievement catalog.
const (
	HabitCompletionXP    int64 = 10
	DeadlineCompletionXP int64 = 5
)

var validate = validator.New()

func validateRequest(req any) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

// Tracker bundles the services.
type Tracker struct {
	Habits        *HabitService
	Deadlines     *DeadlineService
	Subscriptions *SubscriptionService
	Dashboard     *DashboardService
}

// New wires the tracker services over store and engine.
func New(store domain.Store, engine *engagement.Engine, logger *slog.Logger) *Tracker {
	b := newBase(store, engine, logger)
	return &Tracker{
		Habits:        &HabitService{base: b},
		Deadlines:     &DeadlineService{base: b},
		Subscriptions: &SubscriptionService{base: b},
		Dashboard:     &DashboardService{base: b},
	}
}

// SetClock replaces the time source of every service. Tests only.
func (t *Tracker) SetClock(now func() time.Time) {
	t.Habits.now = now
	t.Deadlines.now = now
	t.Subscriptions.now = now
	t.Dashboard.now = now
}

type base struct {
	store  domain.Store
	engine *engagement.Engine
	logger *slog.Logger
	now    func() time.Time
}

func newBase(store domain.Store, engine *engagement.Engine, logger *slog.Logger) base {
	if logger == nil {
		logger = slog.Default()
	}
	return base{
		store:  store,
		engine: engine,
		logger: logger.With("component", "tracker"),
		now:    time.Now,
	}
}

// sideEffect logs a failed engine call.
func (b base) sideEffect(step, userID string, err error) {
	if err != nil {
		b.logger.Warn("engagement side effect failed", "step", step, "user_id", userID, "error", err)
	}
}

// parseDay reads a YYYY-MM-DD day in server-local time; empty means today.
func (b base) parseDay(date string) (time.Time, error) {
	if date == "" {
		return engagement.StartOfDay(b.now()), nil
	}
	day, err := time.ParseInLocation(domain.DateLayout, date, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", domain.ErrInvalidInput, date)
	}
	return day, nil
}
