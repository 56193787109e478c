package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/unfloned/chronik/internal/app/engagement"
	"github.com/unfloned/chronik/internal/domain"
)

// DeadlineService tracks dated tasks.
type DeadlineService struct {
	base
}

// CreateDeadlineRequest describes a new deadline.
type CreateDeadlineRequest struct {
	Title    string `json:"title" validate:"required,max=200"`
	DueDate  string `json:"due_date" validate:"required,datetime=2006-01-02"`
	Priority string `json:"priority" validate:"omitempty,oneof=low medium high"`
}

// Create stores a pending deadline and checks deadline-count achievements.
func (s *DeadlineService) Create(ctx context.Context, userID string, req CreateDeadlineRequest) (domain.Deadline, error) {
	if err := validateRequest(req); err != nil {
		return domain.Deadline{}, err
	}
	priority := req.Priority
	if priority == "" {
		priority = "medium"
	}
	d := domain.Deadline{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     req.Title,
		DueDate:   req.DueDate,
		Status:    domain.DeadlinePending,
		Priority:  priority,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateDeadline(ctx, d); err != nil {
		return domain.Deadline{}, fmt.Errorf("create deadline: %w", err)
	}

	stats, err := s.store.DeadlineStats(ctx, userID, s.today())
	if err == nil {
		_, err = s.engine.Achievements.CheckMilestones(ctx, userID, domain.TriggerDeadlineCount, stats.Total)
	}
	s.sideEffect("deadline_count", userID, err)
	return d, nil
}

// Complete marks an open deadline completed and awards its XP. Completing
// an already completed deadline returns it unchanged; a cancelled one is a
// conflict.
func (s *DeadlineService) Complete(ctx context.Context, userID, id string) (domain.Deadline, error) {
	d, err := s.owned(ctx, userID, id)
	if err != nil {
		return domain.Deadline{}, err
	}
	switch {
	case d.Status == domain.DeadlineCompleted:
		return *d, nil
	case !d.Status.IsOpen():
		return domain.Deadline{}, fmt.Errorf("%w: deadline %s is %s", domain.ErrConflict, id, d.Status)
	}

	now := s.now()
	won, err := s.store.CloseDeadline(ctx, id, domain.DeadlineCompleted, &now)
	if err != nil {
		return domain.Deadline{}, fmt.Errorf("complete deadline: %w", err)
	}
	if !won {
		// Closed by a concurrent request in between; only that one rewards.
		cur, err := s.owned(ctx, userID, id)
		if err != nil {
			return domain.Deadline{}, err
		}
		if cur.Status != domain.DeadlineCompleted {
			return domain.Deadline{}, fmt.Errorf("%w: deadline %s is %s", domain.ErrConflict, id, cur.Status)
		}
		return *cur, nil
	}
	d.Status = domain.DeadlineCompleted
	d.CompletedAt = &now

	_, err = s.engine.AwardXP(ctx, userID, DeadlineCompletionXP, domain.XPDeadlineCompleted, id)
	s.sideEffect("deadline_xp", userID, err)
	s.sideEffect("deadlines_completed", userID, s.checkCompleted(ctx, userID))
	s.sideEffect("weekly_deadlines", userID, s.checkWeekly(ctx, userID, now))
	s.sideEffect("early_finish", userID, s.checkEarly(ctx, userID, *d, now))
	return *d, nil
}

// Cancel closes an open deadline without reward.
func (s *DeadlineService) Cancel(ctx context.Context, userID, id string) error {
	d, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if !d.Status.IsOpen() {
		return fmt.Errorf("%w: deadline %s is %s", domain.ErrConflict, id, d.Status)
	}
	won, err := s.store.CloseDeadline(ctx, id, domain.DeadlineCancelled, nil)
	if err != nil {
		return err
	}
	if !won {
		return fmt.Errorf("%w: deadline %s is no longer open", domain.ErrConflict, id)
	}
	return nil
}

// Stats summarizes the user's deadlines as of today.
func (s *DeadlineService) Stats(ctx context.Context, userID string) (domain.DeadlineStats, error) {
	return s.store.DeadlineStats(ctx, userID, s.today())
}

func (s *DeadlineService) owned(ctx context.Context, userID, id string) (*domain.Deadline, error) {
	d, err := s.store.GetDeadline(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.UserID != userID {
		return nil, fmt.Errorf("deadline %s: %w", id, domain.ErrDeadlineNotFound)
	}
	return d, nil
}

func (s *DeadlineService) today() string {
	return s.now().Format(domain.DateLayout)
}

func (s *DeadlineService) checkCompleted(ctx context.Context, userID string) error {
	stats, err := s.store.DeadlineStats(ctx, userID, s.today())
	if err != nil {
		return err
	}
	_, err = s.engine.Achievements.CheckMilestones(ctx, userID, domain.TriggerDeadlinesCompleted, stats.Completed)
	return err
}

func (s *DeadlineService) checkWeekly(ctx context.Context, userID string, now time.Time) error {
	n, err := s.store.CountDeadlinesCompletedSince(ctx, userID, engagement.WindowStart(domain.ResetWeekly, now))
	if err != nil {
		return err
	}
	_, err = s.engine.Achievements.CheckAtLeast(ctx, userID, domain.TriggerWeeklyDeadlines, n)
	return err
}

func (s *DeadlineService) checkEarly(ctx context.Context, userID string, d domain.Deadline, now time.Time) error {
	due, err := time.ParseInLocation(domain.DateLayout, d.DueDate, now.Location())
	if err != nil {
		return fmt.Errorf("due date: %w", err)
	}
	days := engagement.DaysBetween(now, due)
	if days <= 0 {
		return nil
	}
	_, err = s.engine.Achievements.CheckAtLeast(ctx, userID, domain.TriggerEarlyDeadlineFinish, days)
	return err
}
