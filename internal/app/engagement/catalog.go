package engagement

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/unfloned/chronik/internal/domain"
)

// Catalog is the static achievement registry. After EnsureSeeded it reflects
// the persisted rows, so values already in storage win over code changes.
type Catalog struct {
	mu    sync.RWMutex
	defs  []domain.AchievementDef
	byKey map[string]int
	store domain.AchievementStore
}

// NewCatalog validates defs and builds a catalog backed by store.
func NewCatalog(store domain.AchievementStore, defs []domain.AchievementDef) (*Catalog, error) {
	if err := ValidateDefinitions(defs); err != nil {
		return nil, err
	}
	c := &Catalog{store: store}
	c.replace(defs)
	return c, nil
}

// NewDefaultCatalog builds the catalog from AllAchievements.
func NewDefaultCatalog(store domain.AchievementStore) (*Catalog, error) {
	return NewCatalog(store, AllAchievements())
}

var validate = validator.New()

// ValidateDefinitions checks field ranges, unique keys and that periodic
// types carry the matching reset period.
func ValidateDefinitions(defs []domain.AchievementDef) error {
	seen := make(map[string]bool, len(defs))
	var errs []error
	for _, d := range defs {
		if err := validate.Struct(d); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Key, err))
			continue
		}
		if seen[d.Key] {
			errs = append(errs, fmt.Errorf("%s: duplicate key", d.Key))
		}
		seen[d.Key] = true
		if want, ok := expectedReset[d.Type]; ok && d.ResetPeriod != want {
			errs = append(errs, fmt.Errorf("%s: type %s needs reset period %s, got %s", d.Key, d.Type, want, d.ResetPeriod))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrInvalidCatalog, errors.Join(errs...))
	}
	return nil
}

var expectedReset = map[domain.AchievementType]domain.ResetPeriod{
	domain.AchievementOneTime: domain.ResetNone,
	domain.AchievementDaily:   domain.ResetDaily,
	domain.AchievementWeekly:  domain.ResetWeekly,
	domain.AchievementMonthly: domain.ResetMonthly,
}

func (c *Catalog) replace(defs []domain.AchievementDef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defs = make([]domain.AchievementDef, len(defs))
	copy(c.defs, defs)
	c.byKey = make(map[string]int, len(defs))
	for i, d := range c.defs {
		c.byKey[d.Key] = i
	}
}

// EnsureSeeded inserts every definition whose key is not yet stored, then
// reloads the persisted values. Returns how many rows were inserted.
func (c *Catalog) EnsureSeeded(ctx context.Context) (int, error) {
	inserted := 0
	for _, d := range c.Definitions() {
		ok, err := c.store.InsertAchievementDef(ctx, d)
		if err != nil {
			return inserted, fmt.Errorf("seed %s: %w", d.Key, err)
		}
		if ok {
			inserted++
		}
	}

	persisted, err := c.store.ListAchievementDefs(ctx)
	if err != nil {
		return inserted, fmt.Errorf("load catalog: %w", err)
	}
	stored := make(map[string]domain.AchievementDef, len(persisted))
	for _, d := range persisted {
		stored[d.Key] = d
	}
	merged := c.Definitions()
	for i, d := range merged {
		if p, ok := stored[d.Key]; ok {
			merged[i] = p
		}
	}
	c.replace(merged)
	return inserted, nil
}

// Definitions returns the catalog in display order.
func (c *Catalog) Definitions() []domain.AchievementDef {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.AchievementDef, len(c.defs))
	copy(out, c.defs)
	return out
}

// ByKey resolves a definition.
func (c *Catalog) ByKey(key string) (domain.AchievementDef, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byKey[key]
	if !ok {
		return domain.AchievementDef{}, fmt.Errorf("%w: %q", domain.ErrUnknownAchievement, key)
	}
	return c.defs[i], nil
}

// ByTrigger returns the definitions bound to trigger, ordered by
// ascending requirement.
func (c *Catalog) ByTrigger(trigger domain.AchievementTrigger) []domain.AchievementDef {
	var out []domain.AchievementDef
	for _, d := range c.Definitions() {
		if d.Trigger == trigger && trigger != domain.TriggerNone {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Requirement < out[j].Requirement })
	return out
}

// ─── Achievement Definitions ────────────────────────────────────────────────

// StreakMilestones are the streak lengths that carry an achievement.
var StreakMilestones = []int{3, 7, 14, 30, 60, 100, 180, 365, 1000}

// AllAchievements returns the reference catalog.
func AllAchievements() []domain.AchievementDef {
	defs := []domain.AchievementDef{
		// ── Habits ─────────────────────────────────────────────────────
		oneTime("first_habit", "First Step", "Complete a habit for the first time",
			domain.CatHabits, "🌱", 15, 1, 1, domain.TriggerCompletionCount),
		oneTime("completions_50", "Regular", "Complete habits 50 times",
			domain.CatHabits, "📈", 50, 50, 2, domain.TriggerCompletionCount),
		oneTime("completions_250", "Routine Builder", "Complete habits 250 times",
			domain.CatHabits, "🧱", 150, 250, 3, domain.TriggerCompletionCount),
		oneTime("completions_1000", "Creature of Habit", "Complete habits 1000 times",
			domain.CatHabits, "🏗️", 500, 1000, 5, domain.TriggerCompletionCount),
		oneTime("habit_collector_5", "Collector", "Set up five habits",
			domain.CatHabits, "🗂️", 25, 5, 1, domain.TriggerHabitCount),
		oneTime("habit_collector_10", "Curator", "Set up ten habits",
			domain.CatHabits, "🗄️", 50, 10, 2, domain.TriggerHabitCount),
		{
			Key: "perfect_day", Name: "Perfect Day", Description: "Complete every habit due today (at least three)",
			Category: domain.CatHabits, Icon: "☀️", XPReward: 10, Requirement: 3,
			Type: domain.AchievementDaily, ResetPeriod: domain.ResetDaily, Tier: 1,
			Trigger: domain.TriggerPerfectDay,
		},
		{
			Key: "monthly_marathon", Name: "Marathon Month", Description: "Complete 60 habits within one month",
			Category: domain.CatHabits, Icon: "🏃", XPReward: 75, Requirement: 60,
			Type: domain.AchievementMonthly, ResetPeriod: domain.ResetMonthly, Tier: 3,
			Trigger: domain.TriggerMonthlyCompletions,
		},

		// ── Deadlines ──────────────────────────────────────────────────
		oneTime("first_deadline", "On the Radar", "Track your first deadline",
			domain.CatDeadlines, "📌", 10, 1, 1, domain.TriggerDeadlineCount),
		oneTime("deadlines_done_10", "Closer", "Complete ten deadlines",
			domain.CatDeadlines, "✅", 50, 10, 2, domain.TriggerDeadlinesCompleted),
		oneTime("deadlines_done_50", "Finisher", "Complete fifty deadlines",
			domain.CatDeadlines, "🏁", 150, 50, 3, domain.TriggerDeadlinesCompleted),
		{
			Key: "weekly_closer", Name: "Clean Sweep", Description: "Complete three deadlines within one week",
			Category: domain.CatDeadlines, Icon: "🧹", XPReward: 25, Requirement: 3,
			Type: domain.AchievementWeekly, ResetPeriod: domain.ResetWeekly, Tier: 2,
			Trigger: domain.TriggerWeeklyDeadlines,
		},
		{
			Key: "early_bird", Name: "Early Bird", Description: "Complete a deadline three or more days early",
			Category: domain.CatDeadlines, Icon: "🐦", XPReward: 5, Requirement: 3,
			Type: domain.AchievementRepeatable, ResetPeriod: domain.ResetNone, Tier: 1,
			Trigger: domain.TriggerEarlyDeadlineFinish,
		},

		// ── Subscriptions ──────────────────────────────────────────────
		oneTime("first_subscription", "Bookkeeper", "Track your first subscription",
			domain.CatSubscriptions, "💳", 10, 1, 1, domain.TriggerSubscriptionCount),
		oneTime("subscriptions_10", "Auditor", "Track ten subscriptions",
			domain.CatSubscriptions, "🧾", 40, 10, 2, domain.TriggerSubscriptionCount),

		// ── Mastery ────────────────────────────────────────────────────
		oneTime("level_5", "Rising", "Reach level 5",
			domain.CatMastery, "🌅", 25, 5, 1, domain.TriggerLevel),
		oneTime("level_10", "Established", "Reach level 10",
			domain.CatMastery, "🎖️", 50, 10, 2, domain.TriggerLevel),
		oneTime("level_25", "Veteran", "Reach level 25",
			domain.CatMastery, "🏅", 150, 25, 4, domain.TriggerLevel),
	}

	streakMeta := map[int]struct {
		name, icon string
		xp         int64
		tier       int
		hidden     bool
	}{
		3:    {"Warming Up", "🔥", 20, 1, false},
		7:    {"Week Warrior", "🔥", 50, 1, false},
		14:   {"Fortnight Force", "📅", 75, 2, false},
		30:   {"Monthly Machine", "💪", 150, 2, false},
		60:   {"Unshakable", "🪨", 250, 3, false},
		100:  {"Centurion", "🏛️", 400, 3, false},
		180:  {"Half a Year", "🌗", 600, 4, false},
		365:  {"Year of Power", "⭐", 1000, 5, false},
		1000: {"Legend", "👑", 5000, 5, true},
	}
	for _, days := range StreakMilestones {
		m := streakMeta[days]
		d := oneTime(fmt.Sprintf("streak_%d", days), m.name,
			fmt.Sprintf("Keep a habit going for %d days in a row", days),
			domain.CatStreaks, m.icon, m.xp, days, m.tier, domain.TriggerStreak)
		d.Hidden = m.hidden
		defs = append(defs, d)
	}
	return defs
}

func oneTime(key, name, desc string, cat domain.AchievementCategory, icon string, xp int64, req, tier int, trigger domain.AchievementTrigger) domain.AchievementDef {
	return domain.AchievementDef{
		Key: key, Name: name, Description: desc, Category: cat, Icon: icon,
		XPReward: xp, Requirement: req, Tier: tier, Trigger: trigger,
		Type: domain.AchievementOneTime, ResetPeriod: domain.ResetNone,
	}
}
