// Package reminder holds the periodic notification jobs: habit reminders,
// deadline warnings, subscription billing reminders and streak-risk
// warnings.
//
// Every job is a scan-and-decide pass over current state. Whether a
// reminder is due is derived from dates, never from elapsed ticks, so a
// skipped tick only delays a reminder. Duplicate sends are prevented by a
// storage reservation on (user, tag) taken before dispatch and released
// when dispatch fails.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/unfloned/chronik/internal/domain"
	"github.com/unfloned/chronik/internal/infra/metrics"
	"github.com/unfloned/chronik/internal/infra/scheduler"
)

// Job names as registered on the scheduler.
const (
	JobHabitReminder        = "habit-reminder"
	JobDeadlineWarning      = "deadline-warning"
	JobSubscriptionReminder = "subscription-reminder"
	JobStreakRisk           = "streak-risk"
)

// Store is the read side the jobs scan plus the reservation table.
type Store interface {
	domain.UserStore
	domain.HabitStore
	domain.DeadlineStore
	domain.SubscriptionStore
	domain.ReminderStore
}

// Config sets job cadence and the streak-risk evening window.
type Config struct {
	HabitInterval        time.Duration
	DeadlineInterval     time.Duration
	SubscriptionInterval time.Duration
	StreakInterval       time.Duration

	// Streak-risk warnings go out when EveningStart <= hour < EveningEnd.
	EveningStart int
	EveningEnd   int

	// Disabled lists job names that are not registered.
	Disabled []string
}

// DefaultConfig returns the standard cadence.
func DefaultConfig() Config {
	return Config{
		HabitInterval:        time.Minute,
		DeadlineInterval:     time.Hour,
		SubscriptionInterval: time.Hour,
		StreakInterval:       30 * time.Minute,
		EveningStart:         19,
		EveningEnd:           21,
	}
}

// Register adds the enabled jobs to s.
func Register(s *scheduler.Scheduler, store Store, dispatcher domain.Dispatcher, cfg Config, logger *slog.Logger) error {
	disabled := make(map[string]bool, len(cfg.Disabled))
	for _, name := range cfg.Disabled {
		disabled[name] = true
	}

	jobs := []struct {
		job  scheduler.Job
		spec scheduler.Spec
	}{
		{NewHabitReminderJob(store, dispatcher, logger), scheduler.Spec{Interval: cfg.HabitInterval}},
		{NewDeadlineWarningJob(store, dispatcher, logger), scheduler.Spec{Interval: cfg.DeadlineInterval, RunAtStart: true}},
		{NewSubscriptionReminderJob(store, dispatcher, logger), scheduler.Spec{Interval: cfg.SubscriptionInterval, RunAtStart: true}},
		{NewStreakRiskJob(store, dispatcher, cfg.EveningStart, cfg.EveningEnd, logger), scheduler.Spec{Interval: cfg.StreakInterval}},
	}
	for _, j := range jobs {
		if disabled[j.job.Name()] {
			continue
		}
		if err := s.Register(j.job, j.spec); err != nil {
			return err
		}
	}
	return nil
}

// sender is the reserve/dispatch/release sequence shared by all jobs.
type sender struct {
	job        string
	store      Store
	dispatcher domain.Dispatcher
	logger     *slog.Logger
}

func newSender(job string, store Store, dispatcher domain.Dispatcher, logger *slog.Logger) sender {
	if logger == nil {
		logger = slog.Default()
	}
	return sender{
		job:        job,
		store:      store,
		dispatcher: dispatcher,
		logger:     logger.With("component", "reminder", "job", job),
	}
}

// reminder is one message a job decided to send.
type reminder struct {
	userID   string
	tag      string
	category domain.NotificationCategory
	title    string
	message  string
	link     string
	pushOnly bool
}

// send reserves r.tag and dispatches. It reports whether anything was
// delivered. An already-held reservation is a silent skip.
func (s sender) send(ctx context.Context, now time.Time, r reminder) (bool, error) {
	won, err := s.store.ReserveReminder(ctx, r.userID, r.tag, now)
	if err != nil {
		return false, fmt.Errorf("reserve %s: %w", r.tag, err)
	}
	if !won {
		return false, nil
	}

	if err := s.dispatch(ctx, r); err != nil {
		if rerr := s.store.ReleaseReminder(ctx, r.userID, r.tag); rerr != nil {
			err = errors.Join(err, fmt.Errorf("release %s: %w", r.tag, rerr))
		}
		return false, err
	}
	metrics.RemindersSent.WithLabelValues(s.job).Inc()
	s.logger.Debug("reminder sent", "user_id", r.userID, "tag", r.tag)
	return true, nil
}

func (s sender) dispatch(ctx context.Context, r reminder) error {
	msg := domain.PushMessage{Title: r.title, Body: r.message, Tag: r.tag}
	if r.link != "" {
		msg.Data = map[string]string{"url": r.link}
	}

	if r.pushOnly {
		sent, err := s.dispatcher.SendPush(ctx, r.userID, msg)
		if err != nil && sent == 0 {
			return fmt.Errorf("push %s: %w", r.tag, err)
		}
		return nil
	}

	if _, err := s.dispatcher.CreateInApp(ctx, r.userID, r.category, r.title, r.message, r.link); err != nil {
		return fmt.Errorf("in-app %s: %w", r.tag, err)
	}
	if _, err := s.dispatcher.SendPush(ctx, r.userID, msg); err != nil {
		s.logger.Warn("push delivery failed", "user_id", r.userID, "tag", r.tag, "error", err)
	}
	return nil
}

// eachUser runs fn for every user. A failing user is logged and the scan
// continues; all failures are returned joined.
func (s sender) eachUser(ctx context.Context, fn func(u domain.User) error) error {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	var errs []error
	for _, u := range users {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := fn(u); err != nil {
			s.logger.Warn("user scan failed", "user_id", u.ID, "error", err)
			errs = append(errs, fmt.Errorf("user %s: %w", u.ID, err))
		}
	}
	return errors.Join(errs...)
}

// parseHHMM parses "HH:MM" into hour and minute.
func parseHHMM(s string) (int, int, bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

// summarize joins up to max names and appends the overflow count.
func summarize(names []string, max int) string {
	if len(names) <= max {
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(names[:max], ", "), len(names)-max)
}
