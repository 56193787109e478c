package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/unfloned/chronik/internal/app/engagement"
	"github.com/unfloned/chronik/internal/domain"
)

// DeadlineWarningJob warns about open deadlines at the user's configured
// day offsets.
type DeadlineWarningJob struct {
	sender
}

// NewDeadlineWarningJob creates the job.
func NewDeadlineWarningJob(store Store, dispatcher domain.Dispatcher, logger *slog.Logger) *DeadlineWarningJob {
	return &DeadlineWarningJob{sender: newSender(JobDeadlineWarning, store, dispatcher, logger)}
}

// Name implements scheduler.Job.
func (j *DeadlineWarningJob) Name() string { return JobDeadlineWarning }

// Run implements scheduler.Job.
func (j *DeadlineWarningJob) Run(ctx context.Context, now time.Time) error {
	return j.eachUser(ctx, func(u domain.User) error {
		if !u.Prefs.DeadlineWarningsEnabled || len(u.Prefs.DeadlineWarningDays) == 0 {
			return nil
		}
		return j.warn(ctx, u, now)
	})
}

func (j *DeadlineWarningJob) warn(ctx context.Context, u domain.User, now time.Time) error {
	deadlines, err := j.store.ListOpenDeadlines(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("list deadlines: %w", err)
	}
	var errs []error
	for _, d := range deadlines {
		due, err := time.ParseInLocation(domain.DateLayout, d.DueDate, now.Location())
		if err != nil {
			errs = append(errs, fmt.Errorf("deadline %s due date: %w", d.ID, err))
			continue
		}
		days := engagement.DaysBetween(now, due)
		if days < 0 || !slices.Contains(u.Prefs.DeadlineWarningDays, days) {
			continue
		}
		if _, err := j.send(ctx, now, reminder{
			userID:   u.ID,
			tag:      fmt.Sprintf("deadline:%s:%d", d.ID, days),
			category: domain.NotifyDeadlineWarning,
			title:    deadlineTitle(days),
			message:  d.Title,
			link:     "/deadlines",
		}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func deadlineTitle(days int) string {
	switch days {
	case 0:
		return "Due today"
	case 1:
		return "Due tomorrow"
	}
	return fmt.Sprintf("Due in %d days", days)
}

// SubscriptionReminderJob reminds users ahead of a billing date.
type SubscriptionReminderJob struct {
	sender
}

// NewSubscriptionReminderJob creates the job.
func NewSubscriptionReminderJob(store Store, dispatcher domain.Dispatcher, logger *slog.Logger) *SubscriptionReminderJob {
	return &SubscriptionReminderJob{sender: newSender(JobSubscriptionReminder, store, dispatcher, logger)}
}

// Name implements scheduler.Job.
func (j *SubscriptionReminderJob) Name() string { return JobSubscriptionReminder }

// Run implements scheduler.Job. Subscriptions are scanned directly rather
// than per user; a failing subscription does not stop the scan.
func (j *SubscriptionReminderJob) Run(ctx context.Context, now time.Time) error {
	subs, err := j.store.ListRemindableSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}
	var errs []error
	for _, s := range subs {
		billing, err := time.ParseInLocation(domain.DateLayout, s.NextBillingDate, now.Location())
		if err != nil {
			errs = append(errs, fmt.Errorf("subscription %s billing date: %w", s.ID, err))
			continue
		}
		days := engagement.DaysBetween(now, billing)
		if days != s.ReminderDaysBefore {
			continue
		}
		if _, err := j.send(ctx, now, reminder{
			userID:   s.UserID,
			tag:      fmt.Sprintf("subscription:%s:%s", s.ID, s.NextBillingDate),
			category: domain.NotifySubscriptionReminder,
			title:    "Upcoming payment",
			message:  fmt.Sprintf("%s renews on %s (%s)", s.Name, s.NextBillingDate, formatAmount(s.AmountCents, s.Currency)),
			link:     "/subscriptions",
		}); err != nil {
			j.logger.Warn("subscription reminder failed", "user_id", s.UserID, "subscription_id", s.ID, "error", err)
			errs = append(errs, fmt.Errorf("user %s subscription %s: %w", s.UserID, s.ID, err))
		}
	}
	return errors.Join(errs...)
}

func formatAmount(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, currency)
}
