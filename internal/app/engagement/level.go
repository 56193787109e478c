package engagement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/unfloned/chronik/internal/domain"
	"github.com/unfloned/chronik/internal/infra/metrics"
)

// MaxLevel is the highest reachable level.
const MaxLevel = 100

// levelThresholds[i] is the cumulative XP needed to reach level i+1.
// Level n starts at 10·n·(n−1): L2=20, L3=60, L4=120, L5=200, L10=900.
var levelThresholds = buildThresholds(MaxLevel)

func buildThresholds(max int) []int64 {
	t := make([]int64, max)
	for n := 1; n <= max; n++ {
		t[n-1] = int64(10 * n * (n - 1))
	}
	return t
}

// Thresholds returns a copy of the level table: element i is the cumulative
// XP at which level i+1 begins.
func Thresholds() []int64 {
	out := make([]int64, len(levelThresholds))
	copy(out, levelThresholds)
	return out
}

// XPForLevel returns the cumulative XP required to reach a given level.
func XPForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return levelThresholds[level-1]
}

// LevelForXP returns the highest level whose threshold is <= xp.
// Non-decreasing in xp; 1 for any xp below the level 2 threshold.
func LevelForXP(xp int64) int {
	level := 1
	for level < MaxLevel && xp >= levelThresholds[level] {
		level++
	}
	return level
}

// ProgressWithinLevel reports how far xp is into level. At the cap the
// remaining span is zero and the percentage is 100.
func ProgressWithinLevel(xp int64, level int) domain.LevelProgress {
	if level < 1 {
		level = 1
	}
	if level >= MaxLevel {
		return domain.LevelProgress{
			CurrentInLevel: xp - XPForLevel(MaxLevel),
			Percentage:     100,
		}
	}
	start := XPForLevel(level)
	span := XPForLevel(level+1) - start
	in := xp - start
	if in < 0 {
		in = 0
	}
	pct := float64(in) / float64(span) * 100.0
	if pct > 100 {
		pct = 100
	}
	return domain.LevelProgress{
		CurrentInLevel:       in,
		RequiredForNextLevel: span,
		Percentage:           pct,
	}
}

// Snapshot derives the level read model from a total XP value.
func Snapshot(xp int64) domain.UserLevel {
	level := LevelForXP(xp)
	return domain.UserLevel{
		Level:     level,
		CurrentXP: xp,
		Progress:  ProgressWithinLevel(xp, level),
	}
}

// LevelService is the only mutator of user XP.
type LevelService struct {
	store      domain.UserStore
	dispatcher domain.Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

// NewLevelService creates a level service. dispatcher may be nil, in which
// case level-up notifications are skipped.
func NewLevelService(store domain.UserStore, dispatcher domain.Dispatcher, logger *slog.Logger) *LevelService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LevelService{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger.With("component", "level"),
		now:        time.Now,
	}
}

// CurrentLevel returns the user's XP standing.
func (l *LevelService) CurrentLevel(ctx context.Context, userID string) (domain.UserLevel, error) {
	u, err := l.store.GetUser(ctx, userID)
	if err != nil {
		return domain.UserLevel{}, fmt.Errorf("get user: %w", err)
	}
	return Snapshot(u.XP), nil
}

// AwardXP adds amount to the user's XP and records a ledger entry. A level
// boundary crossing dispatches a level_up notification.
func (l *LevelService) AwardXP(ctx context.Context, userID string, amount int64, source domain.XPSource, ref string) (domain.XPChange, error) {
	if amount <= 0 {
		return domain.XPChange{}, fmt.Errorf("%w: got %d", domain.ErrNegativeXP, amount)
	}
	change, err := l.store.AddXP(ctx, domain.XPEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Source:    source,
		Reference: ref,
		CreatedAt: l.now(),
	})
	if err != nil {
		return domain.XPChange{}, fmt.Errorf("add xp: %w", err)
	}
	metrics.XPAwarded.WithLabelValues(string(source)).Add(float64(amount))
	l.NotifyLevelChange(ctx, userID, change)
	return change, nil
}

// History returns the most recent ledger entries, newest first.
func (l *LevelService) History(ctx context.Context, userID string, limit int) ([]domain.XPEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return l.store.XPHistory(ctx, userID, limit)
}

// NotifyLevelChange dispatches a level_up notification when change crossed
// a level boundary. Dispatch failures are logged, never returned.
func (l *LevelService) NotifyLevelChange(ctx context.Context, userID string, change domain.XPChange) {
	oldLevel, newLevel := LevelForXP(change.OldXP), LevelForXP(change.NewXP)
	if newLevel <= oldLevel || l.dispatcher == nil {
		return
	}
	metrics.LevelUps.Inc()
	title := fmt.Sprintf("Level %d reached", newLevel)
	msg := fmt.Sprintf("You climbed from level %d to level %d.", oldLevel, newLevel)
	if _, err := l.dispatcher.CreateInApp(ctx, userID, domain.NotifyLevelUp, title, msg, "/profile"); err != nil {
		l.logger.Warn("level-up notification failed", "user_id", userID, "error", err)
	}
}
