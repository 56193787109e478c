package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/unfloned/chronik/internal/app/engagement"
	"github.com/unfloned/chronik/internal/domain"
	"github.com/unfloned/chronik/internal/infra/metrics"
)

// HabitService creates habits and records daily progress.
type HabitService struct {
	base
}

// CreateHabitRequest describes a new habit.
type CreateHabitRequest struct {
	Name        string                `json:"name" validate:"required,max=120"`
	Kind        domain.HabitKind      `json:"kind" validate:"required,oneof=boolean quantity"`
	TargetValue int                   `json:"target_value" validate:"gte=0"`
	Frequency   domain.HabitFrequency `json:"frequency" validate:"required,oneof=daily weekly custom"`
	TargetDays  []int                 `json:"target_days" validate:"required_if=Frequency custom,dive,min=0,max=6"`
}

// Create stores a habit and checks habit-count achievements.
func (s *HabitService) Create(ctx context.Context, userID string, req CreateHabitRequest) (domain.Habit, error) {
	if err := validateRequest(req); err != nil {
		return domain.Habit{}, err
	}
	target := req.TargetValue
	if target < 1 {
		target = 1
	}
	h := domain.Habit{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        req.Name,
		Kind:        req.Kind,
		TargetValue: target,
		Frequency:   req.Frequency,
		TargetDays:  req.TargetDays,
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateHabit(ctx, h); err != nil {
		return domain.Habit{}, fmt.Errorf("create habit: %w", err)
	}

	count, err := s.store.CountHabits(ctx, userID)
	if err == nil {
		_, err = s.engine.Achievements.CheckMilestones(ctx, userID, domain.TriggerHabitCount, count)
	}
	s.sideEffect("habit_count", userID, err)
	return h, nil
}

// List returns the user's active habits.
func (s *HabitService) List(ctx context.Context, userID string) ([]domain.Habit, error) {
	return s.store.ListHabits(ctx, userID)
}

// LogResult reports what a habit log changed.
type LogResult struct {
	Log           domain.HabitLog          `json:"log"`
	NewCompletion bool                     `json:"new_completion"`
	Streak        *engagement.StreakUpdate `json:"streak,omitempty"`
	XP            *domain.XPChange         `json:"xp,omitempty"`
}

// Log records value for the habit on date (YYYY-MM-DD, empty for today).
// Completion of a day is sticky: once the target was met, lowering the
// value later keeps the day completed, so a day's completion is counted
// exactly once.
func (s *HabitService) Log(ctx context.Context, userID, habitID, date string, value int) (LogResult, error) {
	if value < 0 {
		return LogResult{}, fmt.Errorf("%w: negative value", domain.ErrInvalidInput)
	}
	day, err := s.parseDay(date)
	if err != nil {
		return LogResult{}, err
	}
	habit, err := s.store.GetHabit(ctx, habitID)
	if err != nil {
		return LogResult{}, err
	}
	if habit.UserID != userID {
		return LogResult{}, fmt.Errorf("habit %s: %w", habitID, domain.ErrHabitNotFound)
	}

	dayKey := day.Format(domain.DateLayout)
	prev, err := s.store.GetHabitLog(ctx, habitID, dayKey)
	if err != nil {
		return LogResult{}, fmt.Errorf("get habit log: %w", err)
	}

	now := s.now()
	log := domain.HabitLog{
		ID:        uuid.NewString(),
		HabitID:   habitID,
		UserID:    userID,
		Date:      dayKey,
		Value:     value,
		Completed: habit.IsCompletedBy(value),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if prev != nil {
		log.ID = prev.ID
		log.CreatedAt = prev.CreatedAt
		log.Completed = log.Completed || prev.Completed
	}
	// The store decides which write completed the day, so concurrent logs
	// from several instances award the completion once.
	newCompletion, err := s.store.UpsertHabitLog(ctx, log)
	if err != nil {
		return LogResult{}, fmt.Errorf("upsert habit log: %w", err)
	}

	res := LogResult{Log: log, NewCompletion: newCompletion}
	if !newCompletion {
		return res, nil
	}
	res.Log.Completed = true
	metrics.HabitCompletions.Inc()
	s.onCompletion(ctx, userID, habitID, day, &res)
	return res, nil
}

// onCompletion runs the engagement chain for a new completion, in the order
// streak, XP, then achievements.
func (s *HabitService) onCompletion(ctx context.Context, userID, habitID string, day time.Time, res *LogResult) {
	update, err := s.engine.OnHabitCompleted(ctx, habitID, userID, day)
	if err == nil {
		res.Streak = &update
	}
	s.sideEffect("streak", userID, err)

	change, err := s.engine.AwardXP(ctx, userID, HabitCompletionXP, domain.XPHabitCompleted, habitID)
	if err == nil {
		res.XP = &change
	}
	s.sideEffect("habit_xp", userID, err)

	s.sideEffect("completion_count", userID, s.checkCompletionCount(ctx, userID))
	s.sideEffect("perfect_day", userID, s.checkPerfectDay(ctx, userID, day))
	s.sideEffect("monthly_completions", userID, s.checkMonthly(ctx, userID, day))
}

func (s *HabitService) checkCompletionCount(ctx context.Context, userID string) error {
	total, err := s.store.CountCompletions(ctx, userID, "")
	if err != nil {
		return err
	}
	_, err = s.engine.Achievements.CheckMilestones(ctx, userID, domain.TriggerCompletionCount, total)
	return err
}

// checkPerfectDay fires when every habit due on day is completed.
func (s *HabitService) checkPerfectDay(ctx context.Context, userID string, day time.Time) error {
	due, err := engagement.DueHabits(ctx, s.store, userID, day)
	if err != nil {
		return err
	}
	pending, err := engagement.PendingHabits(ctx, s.store, userID, day)
	if err != nil {
		return err
	}
	if len(due) == 0 || len(pending) > 0 {
		return nil
	}
	_, err = s.engine.Achievements.CheckAtLeast(ctx, userID, domain.TriggerPerfectDay, len(due))
	return err
}

func (s *HabitService) checkMonthly(ctx context.Context, userID string, day time.Time) error {
	since := engagement.WindowStart(domain.ResetMonthly, day).Format(domain.DateLayout)
	n, err := s.store.CountCompletions(ctx, userID, since)
	if err != nil {
		return err
	}
	_, err = s.engine.Achievements.CheckAtLeast(ctx, userID, domain.TriggerMonthlyCompletions, n)
	return err
}

// ─── Subscriptions ──────────────────────────────────────────────────────────

// SubscriptionService tracks recurring payments.
type SubscriptionService struct {
	base
}

// CreateSubscriptionRequest describes a new subscription.
type CreateSubscriptionRequest struct {
	Name               string `json:"name" validate:"required,max=120"`
	AmountCents        int64  `json:"amount_cents" validate:"gte=0"`
	Currency           string `json:"currency" validate:"required,len=3"`
	BillingCycle       string `json:"billing_cycle" validate:"required,oneof=weekly monthly quarterly yearly"`
	NextBillingDate    string `json:"next_billing_date" validate:"required,datetime=2006-01-02"`
	ReminderEnabled    bool   `json:"reminder_enabled"`
	ReminderDaysBefore int    `json:"reminder_days_before" validate:"gte=0,lte=60"`
}

// Create stores an active subscription and checks subscription-count
// achievements.
func (s *SubscriptionService) Create(ctx context.Context, userID string, req CreateSubscriptionRequest) (domain.Subscription, error) {
	if err := validateRequest(req); err != nil {
		return domain.Subscription{}, err
	}
	sub := domain.Subscription{
		ID:                 uuid.NewString(),
		UserID:             userID,
		Name:               req.Name,
		AmountCents:        req.AmountCents,
		Currency:           req.Currency,
		BillingCycle:       req.BillingCycle,
		NextBillingDate:    req.NextBillingDate,
		Status:             domain.SubscriptionActive,
		ReminderEnabled:    req.ReminderEnabled,
		ReminderDaysBefore: req.ReminderDaysBefore,
		CreatedAt:          s.now(),
	}
	if err := s.store.CreateSubscription(ctx, sub); err != nil {
		return domain.Subscription{}, fmt.Errorf("create subscription: %w", err)
	}

	count, err := s.store.CountSubscriptions(ctx, userID)
	if err == nil {
		_, err = s.engine.Achievements.CheckMilestones(ctx, userID, domain.TriggerSubscriptionCount, count)
	}
	s.sideEffect("subscription_count", userID, err)
	return sub, nil
}
