package engagement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/unfloned/chronik/internal/domain"
	"github.com/unfloned/chronik/internal/infra/metrics"
)

// UnlockStatus is the outcome of an unlock attempt.
type UnlockStatus string

const (
	StatusUnlocked        UnlockStatus = "unlocked"
	StatusAlreadyUnlocked UnlockStatus = "already_unlocked"
)

// UnlockResult describes an unlock attempt. XP and UnlockedAt are only set
// when Status is StatusUnlocked.
type UnlockResult struct {
	Status     UnlockStatus          `json:"status"`
	Definition domain.AchievementDef `json:"definition"`
	UnlockedAt time.Time             `json:"unlocked_at,omitempty"`
	XP         domain.XPChange       `json:"xp"`
}

// AchievementService awards achievements. Storage uniqueness on
// (user, key, window) guarantees a single winner per window, so concurrent
// callers never double-award.
type AchievementService struct {
	catalog    *Catalog
	store      domain.AchievementStore
	levels     *LevelService
	dispatcher domain.Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

// NewAchievementService creates an achievement service. levels and
// dispatcher may be nil.
func NewAchievementService(catalog *Catalog, store domain.AchievementStore, levels *LevelService, dispatcher domain.Dispatcher, logger *slog.Logger) *AchievementService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AchievementService{
		catalog:    catalog,
		store:      store,
		levels:     levels,
		dispatcher: dispatcher,
		logger:     logger.With("component", "achievements"),
		now:        time.Now,
	}
}

// Catalog returns the catalog the service resolves keys against.
func (a *AchievementService) Catalog() *Catalog { return a.catalog }

// TryUnlock awards key to the user if it has not been awarded in the
// current window. The unlock row and its XP reward are written in one
// transaction; notifications are sent only by the winning caller.
func (a *AchievementService) TryUnlock(ctx context.Context, userID, key string) (UnlockResult, error) {
	def, err := a.catalog.ByKey(key)
	if err != nil {
		return UnlockResult{}, err
	}

	now := a.now()
	unlock := domain.AchievementUnlock{
		ID:             uuid.NewString(),
		UserID:         userID,
		AchievementKey: def.Key,
		WindowKey:      WindowKey(def, now),
		UnlockedAt:     now,
	}
	reward := domain.XPEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    def.XPReward,
		Source:    domain.XPAchievement,
		Reference: def.Key,
		CreatedAt: now,
	}

	won, change, err := a.store.UnlockAchievement(ctx, unlock, reward)
	if err != nil {
		return UnlockResult{}, fmt.Errorf("unlock %s: %w", key, err)
	}
	if !won {
		return UnlockResult{Status: StatusAlreadyUnlocked, Definition: def}, nil
	}

	metrics.AchievementsUnlocked.WithLabelValues(string(def.Category)).Inc()
	if def.XPReward > 0 {
		metrics.XPAwarded.WithLabelValues(string(domain.XPAchievement)).Add(float64(def.XPReward))
	}
	a.logger.Info("achievement unlocked", "user_id", userID, "key", def.Key, "window", unlock.WindowKey)

	a.announce(ctx, userID, def)
	if a.levels != nil {
		a.levels.NotifyLevelChange(ctx, userID, change)
	}
	a.CheckLevelMilestones(ctx, userID, change)

	return UnlockResult{
		Status:     StatusUnlocked,
		Definition: def,
		UnlockedAt: now,
		XP:         change,
	}, nil
}

// CheckMilestones tries every achievement bound to trigger whose
// requirement equals value exactly, in ascending order.
func (a *AchievementService) CheckMilestones(ctx context.Context, userID string, trigger domain.AchievementTrigger, value int) ([]UnlockResult, error) {
	return a.checkRange(ctx, userID, trigger, value-1, value)
}

// CheckAtLeast tries every achievement bound to trigger whose requirement
// is at most value. Meant for windowed achievements, where the window key
// keeps repeated checks from awarding twice.
func (a *AchievementService) CheckAtLeast(ctx context.Context, userID string, trigger domain.AchievementTrigger, value int) ([]UnlockResult, error) {
	return a.checkRange(ctx, userID, trigger, -1, value)
}

// CheckLevelMilestones unlocks level achievements crossed by change.
// Errors are logged.
func (a *AchievementService) CheckLevelMilestones(ctx context.Context, userID string, change domain.XPChange) {
	oldLevel, newLevel := LevelForXP(change.OldXP), LevelForXP(change.NewXP)
	if newLevel <= oldLevel {
		return
	}
	if _, err := a.checkRange(ctx, userID, domain.TriggerLevel, oldLevel, newLevel); err != nil {
		a.logger.Warn("level milestone check failed", "user_id", userID, "error", err)
	}
}

// checkRange tries achievements with from < requirement <= to.
func (a *AchievementService) checkRange(ctx context.Context, userID string, trigger domain.AchievementTrigger, from, to int) ([]UnlockResult, error) {
	var (
		unlocked []UnlockResult
		errs     []error
	)
	for _, def := range a.catalog.ByTrigger(trigger) {
		if def.Requirement <= from || def.Requirement > to {
			continue
		}
		res, err := a.TryUnlock(ctx, userID, def.Key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if res.Status == StatusUnlocked {
			unlocked = append(unlocked, res)
		}
	}
	return unlocked, errors.Join(errs...)
}

// Unlocks returns every unlock of the user, newest first.
func (a *AchievementService) Unlocks(ctx context.Context, userID string) ([]domain.AchievementUnlock, error) {
	return a.store.ListUnlocks(ctx, userID)
}

// Progress returns the catalog as seen by the user. Hidden achievements
// are left out until they have been unlocked.
func (a *AchievementService) Progress(ctx context.Context, userID string) ([]domain.AchievementProgress, error) {
	unlocks, err := a.store.ListUnlocks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list unlocks: %w", err)
	}
	counts := make(map[string]int)
	latest := make(map[string]time.Time)
	for _, u := range unlocks {
		counts[u.AchievementKey]++
		if u.UnlockedAt.After(latest[u.AchievementKey]) {
			latest[u.AchievementKey] = u.UnlockedAt
		}
	}

	var out []domain.AchievementProgress
	for _, def := range a.catalog.Definitions() {
		n := counts[def.Key]
		if def.Hidden && n == 0 {
			continue
		}
		p := domain.AchievementProgress{Definition: def, Unlocked: n > 0, Count: n}
		if n > 0 {
			at := latest[def.Key]
			p.UnlockedAt = &at
		}
		out = append(out, p)
	}
	return out, nil
}

// announce sends the in-app and push notification for a fresh unlock.
func (a *AchievementService) announce(ctx context.Context, userID string, def domain.AchievementDef) {
	if a.dispatcher == nil {
		return
	}
	title := "Achievement unlocked: " + def.Name
	msg := def.Description
	if def.XPReward > 0 {
		msg = fmt.Sprintf("%s (+%d XP)", def.Description, def.XPReward)
	}
	if _, err := a.dispatcher.CreateInApp(ctx, userID, domain.NotifyAchievement, title, msg, "/achievements"); err != nil {
		a.logger.Warn("achievement notification failed", "user_id", userID, "key", def.Key, "error", err)
	}
	push := domain.PushMessage{
		Title: title,
		Body:  msg,
		Tag:   "achievement:" + def.Key,
		Data:  map[string]string{"url": "/achievements", "key": def.Key},
	}
	if _, err := a.dispatcher.SendPush(ctx, userID, push); err != nil {
		a.logger.Warn("achievement push failed", "user_id", userID, "key", def.Key, "error", err)
	}
}
