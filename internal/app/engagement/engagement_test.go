package engagement_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/unfloned/chronik/internal/app/engagement"
	"github.com/unfloned/chronik/internal/app/notify"
	"github.com/unfloned/chronik/internal/domain"
	"github.com/unfloned/chronik/internal/infra/sqlite"
)

// testDB creates a temporary SQLite database for testing.
func testDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(dir)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// testEngine wires a seeded engine with in-app notifications and a fixed clock.
func testEngine(t *testing.T, db *sqlite.DB, now time.Time) *engagement.Engine {
	t.Helper()
	catalog, err := engagement.NewDefaultCatalog(db)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	gw := notify.New(db, nil, nil)
	gw.SetClock(func() time.Time { return now })
	e := engagement.NewEngine(db, catalog, gw, nil)
	e.SetClock(func() time.Time { return now })
	if _, err := e.Seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return e
}

func addUser(t *testing.T, db *sqlite.DB, id string) {
	t.Helper()
	u := domain.User{ID: id, Name: id, Prefs: domain.DefaultNotificationPrefs(), CreatedAt: time.Now()}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
}

func userXP(t *testing.T, db *sqlite.DB, id string) int64 {
	t.Helper()
	u, err := db.GetUser(context.Background(), id)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	return u.XP
}

var fixedNow = time.Date(2026, 3, 4, 10, 0, 0, 0, time.Local) // Wednesday

// ═══════════════════════════════════════════════════════════════════════════
// Level Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestLevelForXP_Thresholds(t *testing.T) {
	cases := []struct {
		xp    int64
		level int
	}{
		{0, 1}, {19, 1}, {20, 2}, {59, 2}, {60, 3}, {120, 4}, {200, 5}, {899, 9}, {900, 10},
		{99_000, 100}, {10_000_000, 100},
	}
	for _, c := range cases {
		if got := engagement.LevelForXP(c.xp); got != c.level {
			t.Errorf("LevelForXP(%d): expected %d, got %d", c.xp, c.level, got)
		}
	}
}

func TestLevelForXP_Monotonic(t *testing.T) {
	prev := engagement.LevelForXP(0)
	for xp := int64(1); xp <= 120_000; xp += 7 {
		lvl := engagement.LevelForXP(xp)
		if lvl < prev {
			t.Fatalf("level decreased at xp=%d: %d -> %d", xp, prev, lvl)
		}
		prev = lvl
	}
}

func TestProgressWithinLevel_Range(t *testing.T) {
	for xp := int64(0); xp <= 120_000; xp += 13 {
		lvl := engagement.LevelForXP(xp)
		p := engagement.ProgressWithinLevel(xp, lvl)
		if p.Percentage < 0 || p.Percentage > 100 {
			t.Fatalf("xp=%d: percentage %.2f out of range", xp, p.Percentage)
		}
		if lvl < engagement.MaxLevel && p.CurrentInLevel >= p.RequiredForNextLevel {
			t.Fatalf("xp=%d: in-level %d should be below span %d", xp, p.CurrentInLevel, p.RequiredForNextLevel)
		}
	}
}

func TestProgressWithinLevel_Values(t *testing.T) {
	p := engagement.ProgressWithinLevel(25, 2)
	if p.CurrentInLevel != 5 || p.RequiredForNextLevel != 40 {
		t.Errorf("expected 5/40, got %d/%d", p.CurrentInLevel, p.RequiredForNextLevel)
	}
	if p.Percentage != 12.5 {
		t.Errorf("expected 12.5%%, got %.2f", p.Percentage)
	}

	max := engagement.ProgressWithinLevel(engagement.XPForLevel(engagement.MaxLevel)+50, engagement.MaxLevel)
	if max.Percentage != 100 || max.RequiredForNextLevel != 0 {
		t.Errorf("max level should report 100%% and no span, got %+v", max)
	}
}

func TestThresholds_StrictlyIncreasingCopy(t *testing.T) {
	th := engagement.Thresholds()
	if len(th) != engagement.MaxLevel {
		t.Fatalf("expected %d thresholds, got %d", engagement.MaxLevel, len(th))
	}
	for i := 1; i < len(th); i++ {
		if th[i] <= th[i-1] {
			t.Fatalf("threshold %d not increasing: %d <= %d", i, th[i], th[i-1])
		}
	}
	th[1] = -1
	if engagement.Thresholds()[1] != 20 {
		t.Error("Thresholds() must return a copy")
	}
}

func TestAwardXP_LevelUpNotification(t *testing.T) {
	db := testDB(t)
	e := testEngine(t, db, fixedNow)
	ctx := context.Background()
	addUser(t, db, "u1")

	change, err := e.AwardXP(ctx, "u1", 15, domain.XPManual, "")
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if change.OldXP != 0 || change.NewXP != 15 {
		t.Errorf("unexpected change %+v", change)
	}
	if n, _ := db.UnreadCount(ctx, "u1"); n != 0 {
		t.Errorf("no level crossed, expected 0 notifications, got %d", n)
	}

	if _, err := e.AwardXP(ctx, "u1", 10, domain.XPManual, ""); err != nil {
		t.Fatalf("award: %v", err)
	}
	list, _ := db.ListNotifications(ctx, "u1", false, 10)
	if len(list) != 1 || list[0].Category != domain.NotifyLevelUp {
		t.Errorf("expected one level_up notification, got %+v", list)
	}

	lvl, _ := e.Levels.CurrentLevel(ctx, "u1")
	if lvl.Level != 2 || lvl.CurrentXP != 25 {
		t.Errorf("expected level 2 at 25 xp, got %+v", lvl)
	}
	hist, _ := e.Levels.History(ctx, "u1", 10)
	if len(hist) != 2 {
		t.Errorf("expected 2 ledger entries, got %d", len(hist))
	}
}

func TestAwardXP_RejectsNonPositive(t *testing.T) {
	db := testDB(t)
	e := testEngine(t, db, fixedNow)
	addUser(t, db, "u1")

	_, err := e.AwardXP(context.Background(), "u1", 0, domain.XPManual, "")
	if !errors.Is(err, domain.ErrNegativeXP) {
		t.Errorf("expected ErrNegativeXP, got %v", err)
	}
}

func TestAwardXP_CrossesLevelMilestone(t *testing.T) {
	db := testDB(t)
	e := testEngine(t, db, fixedNow)
	ctx := context.Background()
	addUser(t, db, "u1")

	// 200 XP is level 5; level_5 awards 25 more.
	if _, err := e.AwardXP(ctx, "u1", 200, domain.XPManual, ""); err != nil {
		t.Fatalf("award: %v", err)
	}
	if xp := userXP(t, db, "u1"); xp != 225 {
		t.Errorf("expected 225 xp after level_5 bonus, got %d", xp)
	}
	unlocks, _ := db.ListUnlocks(ctx, "u1")
	if len(unlocks) != 1 || unlocks[0].AchievementKey != "level_5" {
		t.Errorf("expected level_5 unlock, got %+v", unlocks)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Catalog Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestCatalog_DefaultIsValid(t *testing.T) {
	if err := engagement.ValidateDefinitions(engagement.AllAchievements()); err != nil {
		t.Fatalf("default catalog invalid: %v", err)
	}
}

func TestCatalog_HasStreakMilestones(t *testing.T) {
	c, err := engagement.NewDefaultCatalog(testDB(t))
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	streaks := c.ByTrigger(domain.TriggerStreak)
	if len(streaks) != len(engagement.StreakMilestones) {
		t.Fatalf("expected %d streak achievements, got %d", len(engagement.StreakMilestones), len(streaks))
	}
	for i, d := range streaks {
		if d.Requirement != engagement.StreakMilestones[i] {
			t.Errorf("streak %d: expected requirement %d, got %d", i, engagement.StreakMilestones[i], d.Requirement)
		}
	}
}

func TestCatalog_RejectsInvalid(t *testing.T) {
	bad := []domain.AchievementDef{
		{Key: "a", Name: "A", Category: domain.CatHabits, Type: domain.AchievementOneTime, ResetPeriod: domain.ResetNone, Tier: 9},
		{Key: "b", Name: "B", Category: domain.CatHabits, Type: domain.AchievementDaily, ResetPeriod: domain.ResetWeekly, Tier: 1},
		{Key: "c", Name: "C", Category: domain.CatHabits, Type: domain.AchievementOneTime, ResetPeriod: domain.ResetNone, Tier: 1, XPReward: -1},
	}
	for _, d := range bad {
		if err := engagement.ValidateDefinitions([]domain.AchievementDef{d}); !errors.Is(err, domain.ErrInvalidCatalog) {
			t.Errorf("%s: expected ErrInvalidCatalog, got %v", d.Key, err)
		}
	}

	dup := []domain.AchievementDef{
		{Key: "x", Name: "X", Category: domain.CatHabits, Type: domain.AchievementOneTime, ResetPeriod: domain.ResetNone, Tier: 1},
		{Key: "x", Name: "X", Category: domain.CatHabits, Type: domain.AchievementOneTime, ResetPeriod: domain.ResetNone, Tier: 1},
	}
	if err := engagement.ValidateDefinitions(dup); err == nil {
		t.Error("duplicate keys should be rejected")
	}
}

func TestCatalog_ByKeyUnknown(t *testing.T) {
	c, _ := engagement.NewDefaultCatalog(testDB(t))
	if _, err := c.ByKey("no_such_key"); !errors.Is(err, domain.ErrUnknownAchievement) {
		t.Errorf("expected ErrUnknownAchievement, got %v", err)
	}
}

func TestCatalog_EnsureSeeded_PersistenceWins(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	c1, _ := engagement.NewDefaultCatalog(db)
	n, err := c1.EnsureSeeded(ctx)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if n != len(engagement.AllAchievements()) {
		t.Errorf("expected %d inserted, got %d", len(engagement.AllAchievements()), n)
	}

	// A later release changes first_habit's reward; the stored row wins.
	defs := engagement.AllAchievements()
	for i := range defs {
		if defs[i].Key == "first_habit" {
			defs[i].XPReward = 999
		}
	}
	c2, err := engagement.NewCatalog(db, defs)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	n, err = c2.EnsureSeeded(ctx)
	if err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if n != 0 {
		t.Errorf("reseed should insert nothing, got %d", n)
	}
	def, _ := c2.ByKey("first_habit")
	if def.XPReward != 15 {
		t.Errorf("persisted reward 15 should win, got %d", def.XPReward)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Window Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestWindowKey(t *testing.T) {
	at := time.Date(2026, 1, 1, 8, 0, 0, 0, time.Local) // ISO week 2026-W01
	cases := []struct {
		def  domain.AchievementDef
		want string
	}{
		{domain.AchievementDef{Type: domain.AchievementOneTime, ResetPeriod: domain.ResetNone}, engagement.OnceWindow},
		{domain.AchievementDef{Type: domain.AchievementDaily, ResetPeriod: domain.ResetDaily}, "2026-01-01"},
		{domain.AchievementDef{Type: domain.AchievementWeekly, ResetPeriod: domain.ResetWeekly}, "2026-W01"},
		{domain.AchievementDef{Type: domain.AchievementMonthly, ResetPeriod: domain.ResetMonthly}, "2026-01"},
	}
	for _, c := range cases {
		if got := engagement.WindowKey(c.def, at); got != c.want {
			t.Errorf("%s: expected %q, got %q", c.def.Type, c.want, got)
		}
	}

	rep := domain.AchievementDef{Type: domain.AchievementRepeatable, ResetPeriod: domain.ResetNone}
	if engagement.WindowKey(rep, at) == engagement.WindowKey(rep, at) {
		t.Error("repeatable achievements need a fresh window per call")
	}
}

func TestWindowStart(t *testing.T) {
	sunday := time.Date(2026, 3, 8, 18, 30, 0, 0, time.Local)
	got := engagement.WindowStart(domain.ResetWeekly, sunday)
	want := time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Errorf("weekly start: expected %v, got %v", want, got)
	}
	got = engagement.WindowStart(domain.ResetMonthly, sunday)
	if got.Day() != 1 || got.Month() != time.March {
		t.Errorf("monthly start: got %v", got)
	}
}

func TestDaysBetween(t *testing.T) {
	from := time.Date(2026, 3, 28, 23, 59, 0, 0, time.Local)
	to := time.Date(2026, 3, 31, 0, 1, 0, 0, time.Local)
	if d := engagement.DaysBetween(from, to); d != 3 {
		t.Errorf("expected 3 days, got %d", d)
	}
	if d := engagement.DaysBetween(to, from); d != -3 {
		t.Errorf("expected -3 days, got %d", d)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Unlock Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestTryUnlock_Idempotent(t *testing.T) {
	db := testDB(t)
	e := testEngine(t, db, fixedNow)
	ctx := context.Background()
	addUser(t, db, "u1")

	first, err := e.TryUnlock(ctx, "u1", "first_deadline")
	if err != nil {
		t.Fatalf("first unlock: %v", err)
	}
	if first.Status != engagement.StatusUnlocked {
		t.Errorf("expected unlocked, got %s", first.Status)
	}
	if first.Definition.Key != "first_deadline" || first.UnlockedAt.IsZero() {
		t.Errorf("result should carry definition and time, got %+v", first)
	}

	second, err := e.TryUnlock(ctx, "u1", "first_deadline")
	if err != nil {
		t.Fatalf("second unlock: %v", err)
	}
	if second.Status != engagement.StatusAlreadyUnlocked {
		t.Errorf("expected already_unlocked, got %s", second.Status)
	}

	unlocks, _ := db.ListUnlocks(ctx, "u1")
	if len(unlocks) != 1 {
		t.Errorf("expected 1 unlock row, got %d", len(unlocks))
	}
	if xp := userXP(t, db, "u1"); xp != 10 {
		t.Errorf("expected single award of 10 xp, got %d", xp)
	}
	if n, _ := db.UnreadCount(ctx, "u1"); n != 1 {
		t.Errorf("expected 1 achievement notification, got %d", n)
	}
}

func TestTryUnlock_Concurrent(t *testing.T) {
	db := testDB(t)
	e := testEngine(t, db, fixedNow)
	ctx := context.Background()
	addUser(t, db, "u1")

	var wg sync.WaitGroup
	results := make([]engagement.UnlockResult, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := e.TryUnlock(ctx, "u1", "first_subscription")
			if err != nil {
				t.Errorf("unlock: %v", err)
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	unlocked := 0
	for _, r := range results {
		if r.Status == engagement.StatusUnlocked {
			unlocked++
		}
	}
	if unlocked != 1 {
		t.Errorf("expected exactly one unlock, got %d", unlocked)
	}
	if xp := userXP(t, db, "u1"); xp != 10 {
		t.Errorf("expected 10 xp, got %d", xp)
	}
}

func TestTryUnlock_UnknownKey(t *testing.T) {
	db := testDB(t)
	e := testEngine(t, db, fixedNow)
	addUser(t, db, "u1")

	_, err := e.TryUnlock(context.Background(), "u1", "bogus")
	if !errors.Is(err, domain.ErrUnknownAchievement) {
		t.Errorf("expected ErrUnknownAchievement, got %v", err)
	}
}

func TestTryUnlock_DailyResets(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	addUser(t, db, "u1")

	day1 := testEngine(t, db, fixedNow)
	if r, _ := day1.TryUnlock(ctx, "u1", "perfect_day"); r.Status != engagement.StatusUnlocked {
		t.Fatalf("day 1: expected unlocked, got %s", r.Status)
	}
	if r, _ := day1.TryUnlock(ctx, "u1", "perfect_day"); r.Status != engagement.StatusAlreadyUnlocked {
		t.Errorf("day 1 again: expected already_unlocked, got %s", r.Status)
	}

	day2 := testEngine(t, db, fixedNow.AddDate(0, 0, 1))
	if r, _ := day2.TryUnlock(ctx, "u1", "perfect_day"); r.Status != engagement.StatusUnlocked {
		t.Errorf("day 2: expected unlocked, got %s", r.Status)
	}
}

func TestTryUnlock_RepeatableAlwaysWins(t *testing.T) {
	db := testDB(t)
	e := testEngine(t, db, fixedNow)
	ctx := context.Background()
	addUser(t, db, "u1")

	for i := 0; i < 3; i++ {
		r, err := e.TryUnlock(ctx, "u1", "early_bird")
		if err != nil || r.Status != engagement.StatusUnlocked {
			t.Fatalf("call %d: %s, %v", i, r.Status, err)
		}
	}
	progress, _ := e.Achievements.Progress(ctx, "u1")
	for _, p := range progress {
		if p.Definition.Key == "early_bird" && p.Count != 3 {
			t.Errorf("expected count 3, got %d", p.Count)
		}
	}
}

func TestProgress_HidesLockedHidden(t *testing.T) {
	db := testDB(t)
	e := testEngine(t, db, fixedNow)
	addUser(t, db, "u1")

	progress, err := e.Achievements.Progress(context.Background(), "u1")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	for _, p := range progress {
		if p.Definition.Key == "streak_1000" {
			t.Error("hidden locked achievement should not be listed")
		}
	}
	if len(progress) != len(engagement.AllAchievements())-1 {
		t.Errorf("expected all but one entry, got %d", len(progress))
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Streak Tests
// ═══════════════════════════════════════════════════════════════════════════

func addHabit(t *testing.T, db *sqlite.DB, id, userID string) {
	t.Helper()
	h := domain.Habit{ID: id, UserID: userID, Name: id, Kind: domain.HabitBoolean, TargetValue: 1,
		Frequency: domain.FrequencyDaily, CreatedAt: time.Now()}
	if err := db.CreateHabit(context.Background(), h); err != nil {
		t.Fatalf("create habit: %v", err)
	}
}

// complete logs a completion for day and runs the streak engine.
func complete(t *testing.T, db *sqlite.DB, e *engagement.Engine, habitID string, day time.Time) engagement.StreakUpdate {
	t.Helper()
	ctx := context.Background()
	date := day.Format(domain.DateLayout)
	_, err := db.UpsertHabitLog(ctx, domain.HabitLog{
		ID: habitID + date, HabitID: habitID, UserID: "u1", Date: date,
		Value: 1, Completed: true, CreatedAt: day,
	})
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	u, err := e.OnHabitCompleted(ctx, habitID, "u1", day)
	if err != nil {
		t.Fatalf("streak: %v", err)
	}
	return u
}

func TestStreak_SequenceAndReset(t *testing.T) {
	db := testDB(t)
	e := testEngine(t, db, fixedNow)
	addUser(t, db, "u1")
	addHabit(t, db, "h1", "u1")

	d := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)
	var got []int
	for _, offset := range []int{0, 1, 2, 5} {
		got = append(got, complete(t, db, e, "h1", d.AddDate(0, 0, offset)).Current)
	}
	want := []int{1, 2, 3, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected sequence %v, got %v", want, got)
		}
	}

	h, _ := db.GetHabit(context.Background(), "h1")
	if h.CurrentStreak != 1 || h.LongestStreak != 3 {
		t.Errorf("expected current 1 longest 3, got %d/%d", h.CurrentStreak, h.LongestStreak)
	}
}

func TestStreak_UnlocksMilestoneAtThree(t *testing.T) {
	db := testDB(t)
	e := testEngine(t, db, fixedNow)
	ctx := context.Background()
	addUser(t, db, "u1")
	addHabit(t, db, "h1", "u1")

	d := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)
	if u := complete(t, db, e, "h1", d); len(u.Unlocked) != 0 {
		t.Errorf("day 1 should unlock nothing, got %d", len(u.Unlocked))
	}
	complete(t, db, e, "h1", d.AddDate(0, 0, 1))
	u := complete(t, db, e, "h1", d.AddDate(0, 0, 2))
	if len(u.Unlocked) != 1 || u.Unlocked[0].Definition.Key != "streak_3" {
		t.Fatalf("expected streak_3 unlock, got %+v", u.Unlocked)
	}
	if xp := userXP(t, db, "u1"); xp != 20 {
		t.Errorf("expected 20 xp from streak_3, got %d", xp)
	}

	// A second habit reaching 3 does not award streak_3 again.
	addHabit(t, db, "h2", "u1")
	for i := 0; i < 3; i++ {
		complete(t, db, e, "h2", d.AddDate(0, 0, i))
	}
	unlocks, _ := db.ListUnlocks(ctx, "u1")
	if len(unlocks) != 1 {
		t.Errorf("expected 1 unlock total, got %d", len(unlocks))
	}
}

func TestStreak_UnknownHabit(t *testing.T) {
	db := testDB(t)
	e := testEngine(t, db, fixedNow)
	_, err := e.OnHabitCompleted(context.Background(), "missing", "u1", fixedNow)
	if !errors.Is(err, domain.ErrHabitNotFound) {
		t.Errorf("expected ErrHabitNotFound, got %v", err)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Chaos Score Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestChaosScore_EmptyUserIsPureChaos(t *testing.T) {
	if s := engagement.ChaosScore(engagement.ChaosInput{Level: 1}); s != 100 {
		t.Errorf("expected 100, got %d", s)
	}
}

func TestChaosScore_OrganizedUser(t *testing.T) {
	in := engagement.ChaosInput{
		HabitsTotal: 4, HabitsDueToday: 4, HabitsCompletedToday: 4, BestCurrentStreak: 10,
		DeadlinesTotal: 3, XP: 2000, Level: 14,
	}
	// 100 -10 -20 -10 -10 -10 -15 -10 = 15
	if s := engagement.ChaosScore(in); s != 15 {
		t.Errorf("expected 15, got %d", s)
	}
}

func TestChaosScore_OverduePenaltyCapped(t *testing.T) {
	base := engagement.ChaosInput{HabitsTotal: 1, HabitsDueToday: 2, HabitsCompletedToday: 1, DeadlinesTotal: 10, Level: 1}
	// 100 -10 -10 -10 = 70, then +min(overdue*5, 20)
	base.DeadlinesOverdue = 2
	if s := engagement.ChaosScore(base); s != 80 {
		t.Errorf("2 overdue: expected 80, got %d", s)
	}
	base.DeadlinesOverdue = 9
	if s := engagement.ChaosScore(base); s != 90 {
		t.Errorf("9 overdue: expected penalty capped at 20 -> 90, got %d", s)
	}
}

func TestChaosScore_Bounds(t *testing.T) {
	for habits := 0; habits <= 3; habits++ {
		for done := 0; done <= 4; done++ {
			for overdue := 0; overdue <= 6; overdue += 3 {
				for _, xp := range []int64{0, 150, 700, 5000} {
					in := engagement.ChaosInput{
						HabitsTotal: habits, HabitsDueToday: habits, HabitsCompletedToday: done,
						BestCurrentStreak: done * 3, DeadlinesTotal: overdue, DeadlinesOverdue: overdue,
						XP: xp, Level: engagement.LevelForXP(xp),
					}
					s := engagement.ChaosScore(in)
					if s < 0 || s > 100 {
						t.Fatalf("score %d out of range for %+v", s, in)
					}
				}
			}
		}
	}
}
