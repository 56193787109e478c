package tracker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/unfloned/chronik/internal/app/engagement"
	"github.com/unfloned/chronik/internal/app/notify"
	"github.com/unfloned/chronik/internal/app/tracker"
	"github.com/unfloned/chronik/internal/domain"
	"github.com/unfloned/chronik/internal/infra/sqlite"
)

// Wednesday, 2026-03-04.
var fixedNow = time.Date(2026, 3, 4, 10, 0, 0, 0, time.Local)

type env struct {
	db      *sqlite.DB
	tracker *tracker.Tracker
	engine  *engagement.Engine
}

func setup(t *testing.T) env {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	catalog, err := engagement.NewDefaultCatalog(db)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	clock := func() time.Time { return fixedNow }
	gw := notify.New(db, nil, nil)
	gw.SetClock(clock)
	eng := engagement.NewEngine(db, catalog, gw, nil)
	eng.SetClock(clock)
	if _, err := eng.Seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	tr := tracker.New(db, eng, nil)
	tr.SetClock(clock)

	u := domain.User{ID: "u1", Name: "Ada", Prefs: domain.DefaultNotificationPrefs(), CreatedAt: fixedNow}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return env{db: db, tracker: tr, engine: eng}
}

func (e env) xp(t *testing.T) int64 {
	t.Helper()
	u, err := e.db.GetUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	return u.XP
}

func (e env) unread(t *testing.T) int {
	t.Helper()
	n, err := e.db.UnreadCount(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	return n
}

func (e env) hasUnlock(t *testing.T, key string) bool {
	t.Helper()
	unlocks, err := e.db.ListUnlocks(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list unlocks: %v", err)
	}
	for _, u := range unlocks {
		if u.AchievementKey == key {
			return true
		}
	}
	return false
}

func (e env) habit(t *testing.T, name string, kind domain.HabitKind, target int) domain.Habit {
	t.Helper()
	h, err := e.tracker.Habits.Create(context.Background(), "u1", tracker.CreateHabitRequest{
		Name: name, Kind: kind, TargetValue: target, Frequency: domain.FrequencyDaily,
	})
	if err != nil {
		t.Fatalf("create habit: %v", err)
	}
	return h
}

// ─── Habits ─────────────────────────────────────────────────────────────────

func TestFirstHabitCompletion_EndToEnd(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	h := e.habit(t, "Meditate", domain.HabitBoolean, 0)
	before := e.unread(t)

	res, err := e.tracker.Habits.Log(ctx, "u1", h.ID, "", 1)
	if err != nil {
		t.Fatalf("Log() error: %v", err)
	}
	if !res.NewCompletion {
		t.Fatal("first completion should be new")
	}
	if res.Streak == nil || res.Streak.Current != 1 || len(res.Streak.Unlocked) != 0 {
		t.Errorf("expected streak 1 with no unlock, got %+v", res.Streak)
	}
	if got := e.xp(t); got != 25 {
		t.Errorf("expected 25 xp (10 habit + 15 first_habit), got %d", got)
	}
	if !e.hasUnlock(t, "first_habit") {
		t.Error("first_habit should be unlocked")
	}
	if got := e.unread(t) - before; got != 2 {
		t.Errorf("expected 2 new notifications (achievement + level up), got %d", got)
	}
}

func TestLog_RepeatSameDayIsNotNew(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	h := e.habit(t, "Read", domain.HabitBoolean, 0)

	if _, err := e.tracker.Habits.Log(ctx, "u1", h.ID, "2026-03-04", 1); err != nil {
		t.Fatalf("Log() error: %v", err)
	}
	res, err := e.tracker.Habits.Log(ctx, "u1", h.ID, "2026-03-04", 1)
	if err != nil {
		t.Fatalf("Log() error: %v", err)
	}
	if res.NewCompletion || res.XP != nil {
		t.Errorf("second log of the day should not count, got %+v", res)
	}
	if got := e.xp(t); got != 25 {
		t.Errorf("expected 25 xp, got %d", got)
	}
}

func TestLog_QuantityCompletionIsSticky(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	h := e.habit(t, "Water", domain.HabitQuantity, 5)

	steps := []struct {
		value   int
		newDone bool
		done    bool
	}{
		{3, false, false},
		{5, true, true},
		{2, false, true},
		{6, false, true},
	}
	for _, s := range steps {
		res, err := e.tracker.Habits.Log(ctx, "u1", h.ID, "", s.value)
		if err != nil {
			t.Fatalf("Log(%d) error: %v", s.value, err)
		}
		if res.NewCompletion != s.newDone || res.Log.Completed != s.done {
			t.Errorf("Log(%d) = new %v completed %v, want %v %v", s.value, res.NewCompletion, res.Log.Completed, s.newDone, s.done)
		}
	}
	if got := e.xp(t); got != 25 {
		t.Errorf("expected a single completion worth 25 xp, got %d", got)
	}
}

func TestLog_ConcurrentSameDayAwardsOnce(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	h := e.habit(t, "Stretch", domain.HabitBoolean, 0)

	const workers = 8
	var wg sync.WaitGroup
	news := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.tracker.Habits.Log(ctx, "u1", h.ID, "2026-03-04", 1)
			if err != nil {
				t.Errorf("Log() error: %v", err)
			}
			news <- res.NewCompletion
		}()
	}
	wg.Wait()
	close(news)

	count := 0
	for n := range news {
		if n {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly 1 new completion, got %d", count)
	}
	if got := e.xp(t); got != 25 {
		t.Errorf("expected 25 xp, got %d", got)
	}
}

func TestLog_ConsecutiveDaysBuildStreak(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	h := e.habit(t, "Run", domain.HabitBoolean, 0)

	var last tracker.LogResult
	for _, day := range []string{"2026-03-02", "2026-03-03", "2026-03-04"} {
		res, err := e.tracker.Habits.Log(ctx, "u1", h.ID, day, 1)
		if err != nil {
			t.Fatalf("Log(%s) error: %v", day, err)
		}
		last = res
	}
	if last.Streak == nil || last.Streak.Current != 3 {
		t.Fatalf("expected streak 3, got %+v", last.Streak)
	}
	if !e.hasUnlock(t, "streak_3") {
		t.Error("streak_3 should be unlocked")
	}
}

func TestLog_PerfectDay(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	var habits []domain.Habit
	for _, name := range []string{"A", "B", "C"} {
		habits = append(habits, e.habit(t, name, domain.HabitBoolean, 0))
	}

	for i, h := range habits {
		if _, err := e.tracker.Habits.Log(ctx, "u1", h.ID, "", 1); err != nil {
			t.Fatalf("Log() error: %v", err)
		}
		if i < 2 && e.hasUnlock(t, "perfect_day") {
			t.Fatalf("perfect_day unlocked after %d of 3 habits", i+1)
		}
	}
	if !e.hasUnlock(t, "perfect_day") {
		t.Error("perfect_day should unlock once all due habits are done")
	}
	// 3×10 habit + 15 first_habit + 10 perfect_day
	if got := e.xp(t); got != 55 {
		t.Errorf("expected 55 xp, got %d", got)
	}
}

func TestLog_Errors(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	h := e.habit(t, "Run", domain.HabitBoolean, 0)

	if _, err := e.tracker.Habits.Log(ctx, "someone-else", h.ID, "", 1); !errors.Is(err, domain.ErrHabitNotFound) {
		t.Errorf("foreign habit: expected ErrHabitNotFound, got %v", err)
	}
	if _, err := e.tracker.Habits.Log(ctx, "u1", "missing", "", 1); !errors.Is(err, domain.ErrHabitNotFound) {
		t.Errorf("missing habit: expected ErrHabitNotFound, got %v", err)
	}
	if _, err := e.tracker.Habits.Log(ctx, "u1", h.ID, "04.03.2026", 1); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("bad date: expected ErrInvalidInput, got %v", err)
	}
	if _, err := e.tracker.Habits.Log(ctx, "u1", h.ID, "", -1); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("negative value: expected ErrInvalidInput, got %v", err)
	}
}

func TestLog_EngineFailureKeepsLog(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	// A habit whose owner has no user row: every XP write fails.
	h := domain.Habit{ID: "orphan", UserID: "ghost", Name: "Orphan", Kind: domain.HabitBoolean,
		TargetValue: 1, Frequency: domain.FrequencyDaily, CreatedAt: fixedNow}
	if err := e.db.CreateHabit(ctx, h); err != nil {
		t.Fatalf("create habit: %v", err)
	}

	res, err := e.tracker.Habits.Log(ctx, "ghost", "orphan", "", 1)
	if err != nil {
		t.Fatalf("Log() should succeed despite engine errors, got %v", err)
	}
	if res.XP != nil {
		t.Errorf("xp award should have failed, got %+v", res.XP)
	}
	log, err := e.db.GetHabitLog(ctx, "orphan", "2026-03-04")
	if err != nil || log == nil || !log.Completed {
		t.Errorf("log should be persisted, got %+v, %v", log, err)
	}
}

func TestCreateHabit_Validation(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	bad := []tracker.CreateHabitRequest{
		{Kind: domain.HabitBoolean, Frequency: domain.FrequencyDaily},
		{Name: "x", Kind: "sometimes", Frequency: domain.FrequencyDaily},
		{Name: "x", Kind: domain.HabitBoolean, Frequency: domain.FrequencyCustom},
		{Name: "x", Kind: domain.HabitBoolean, Frequency: domain.FrequencyCustom, TargetDays: []int{7}},
	}
	for i, req := range bad {
		if _, err := e.tracker.Habits.Create(ctx, "u1", req); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestCreateHabit_CollectorMilestone(t *testing.T) {
	e := setup(t)
	for i := 0; i < 5; i++ {
		e.habit(t, string(rune('A'+i)), domain.HabitBoolean, 0)
	}
	if !e.hasUnlock(t, "habit_collector_5") {
		t.Error("habit_collector_5 should unlock with the fifth habit")
	}
}

// ─── Deadlines ──────────────────────────────────────────────────────────────

func TestDeadline_CreateAndCompleteEarly(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	d, err := e.tracker.Deadlines.Create(ctx, "u1", tracker.CreateDeadlineRequest{Title: "Tax return", DueDate: "2026-03-10"})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if d.Priority != "medium" || d.Status != domain.DeadlinePending {
		t.Errorf("unexpected deadline %+v", d)
	}
	if !e.hasUnlock(t, "first_deadline") {
		t.Error("first_deadline should unlock")
	}

	done, err := e.tracker.Deadlines.Complete(ctx, "u1", d.ID)
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if done.Status != domain.DeadlineCompleted || done.CompletedAt == nil {
		t.Errorf("unexpected completed deadline %+v", done)
	}
	if !e.hasUnlock(t, "early_bird") {
		t.Error("early_bird should unlock for a finish six days early")
	}
	// 10 first_deadline + 5 completion + 5 early_bird
	if got := e.xp(t); got != 20 {
		t.Errorf("expected 20 xp, got %d", got)
	}

	// Completing again is a no-op.
	if _, err := e.tracker.Deadlines.Complete(ctx, "u1", d.ID); err != nil {
		t.Fatalf("repeat Complete() error: %v", err)
	}
	if got := e.xp(t); got != 20 {
		t.Errorf("repeat completion should not award, got %d", got)
	}
}

func TestDeadline_ConcurrentCompleteAwardsOnce(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	d, err := e.tracker.Deadlines.Create(ctx, "u1", tracker.CreateDeadlineRequest{Title: "Report", DueDate: "2026-03-10"})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := e.tracker.Deadlines.Complete(ctx, "u1", d.ID)
			if err != nil {
				t.Errorf("Complete() error: %v", err)
				return
			}
			if got.Status != domain.DeadlineCompleted {
				t.Errorf("status = %s, want completed", got.Status)
			}
		}()
	}
	wg.Wait()

	// 10 first_deadline + 5 completion + 5 early_bird
	if got := e.xp(t); got != 20 {
		t.Errorf("expected 20 xp from a single completion, got %d", got)
	}
}

func TestDeadline_WeeklyCloser(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		d, err := e.tracker.Deadlines.Create(ctx, "u1", tracker.CreateDeadlineRequest{Title: "Task", DueDate: "2026-03-04", Priority: "high"})
		if err != nil {
			t.Fatalf("Create() error: %v", err)
		}
		if _, err := e.tracker.Deadlines.Complete(ctx, "u1", d.ID); err != nil {
			t.Fatalf("Complete() error: %v", err)
		}
	}
	if !e.hasUnlock(t, "weekly_closer") {
		t.Error("weekly_closer should unlock on the third completion of the week")
	}
	if e.hasUnlock(t, "early_bird") {
		t.Error("on-time completions are not early")
	}
	// 10 first_deadline + 3×5 completion + 25 weekly_closer
	if got := e.xp(t); got != 50 {
		t.Errorf("expected 50 xp, got %d", got)
	}
}

func TestDeadline_CancelAndOwnership(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	d, err := e.tracker.Deadlines.Create(ctx, "u1", tracker.CreateDeadlineRequest{Title: "Trip", DueDate: "2026-04-01"})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if _, err := e.tracker.Deadlines.Complete(ctx, "u2", d.ID); !errors.Is(err, domain.ErrDeadlineNotFound) {
		t.Errorf("foreign deadline: expected ErrDeadlineNotFound, got %v", err)
	}
	if err := e.tracker.Deadlines.Cancel(ctx, "u1", d.ID); err != nil {
		t.Fatalf("Cancel() error: %v", err)
	}
	if _, err := e.tracker.Deadlines.Complete(ctx, "u1", d.ID); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("cancelled deadline: expected ErrConflict, got %v", err)
	}
	if _, err := e.tracker.Deadlines.Create(ctx, "u1", tracker.CreateDeadlineRequest{Title: "x", DueDate: "soon"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("bad due date: expected ErrInvalidInput, got %v", err)
	}
}

// ─── Subscriptions ──────────────────────────────────────────────────────────

func TestSubscription_Create(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	sub, err := e.tracker.Subscriptions.Create(ctx, "u1", tracker.CreateSubscriptionRequest{
		Name: "Streaming", AmountCents: 1299, Currency: "EUR", BillingCycle: "monthly",
		NextBillingDate: "2026-03-20", ReminderEnabled: true, ReminderDaysBefore: 3,
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if sub.Status != domain.SubscriptionActive {
		t.Errorf("new subscription should be active, got %s", sub.Status)
	}
	if !e.hasUnlock(t, "first_subscription") {
		t.Error("first_subscription should unlock")
	}
	if _, err := e.tracker.Subscriptions.Create(ctx, "u1", tracker.CreateSubscriptionRequest{Name: "x", Currency: "EURO", BillingCycle: "monthly", NextBillingDate: "2026-03-20"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

// ─── Dashboard ──────────────────────────────────────────────────────────────

func TestDashboard_Summary(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	s, err := e.tracker.Dashboard.Summary(ctx, "u1")
	if err != nil {
		t.Fatalf("Summary() error: %v", err)
	}
	if s.ChaosScore != 100 || s.Level.Level != 1 {
		t.Errorf("fresh user should be at 100 chaos, level 1, got %+v", s)
	}

	h := e.habit(t, "Meditate", domain.HabitBoolean, 0)
	if _, err := e.tracker.Habits.Log(ctx, "u1", h.ID, "", 1); err != nil {
		t.Fatalf("Log() error: %v", err)
	}
	s, err = e.tracker.Dashboard.Summary(ctx, "u1")
	if err != nil {
		t.Fatalf("Summary() error: %v", err)
	}
	want := tracker.HabitSummary{Total: 1, DueToday: 1, CompletedToday: 1, BestStreak: 1}
	if s.Habits != want {
		t.Errorf("habits = %+v, want %+v", s.Habits, want)
	}
	// 100 − 10 (habits) − 20 (all done today)
	if s.ChaosScore != 70 {
		t.Errorf("expected chaos 70, got %d", s.ChaosScore)
	}
	if s.Level.Level != 2 || s.Unread != 2 {
		t.Errorf("expected level 2 with 2 unread, got %+v", s)
	}

	if _, err := e.tracker.Dashboard.Summary(ctx, "nobody"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}
