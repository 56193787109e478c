package health

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	dto "github.com/prometheus/client_model/go"

	"github.com/unfloned/chronik/internal/infra/metrics"
	"github.com/unfloned/chronik/internal/infra/sqlite"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func recoveries(t *testing.T, check string) float64 {
	t.Helper()
	var m dto.Metric
	if err := metrics.HealthRecoveries.WithLabelValues(check).Write(&m); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

type runState bool

func (r runState) Running() bool { return bool(r) }

type brokenPinger struct{}

func (brokenPinger) Ping(context.Context) error { return errors.New("connection refused") }

// ─── Checker Tests ──────────────────────────────────────────────────────────

func TestNewChecker(t *testing.T) {
	db := newTestDB(t)

	if c := NewChecker(db, runState(true), t.TempDir(), nil); len(c.checks) != 3 {
		t.Errorf("checks = %d, want 3", len(c.checks))
	}
	if c := NewChecker(db, runState(true), "", nil); len(c.checks) != 2 {
		t.Errorf("checks without data dir = %d, want 2", len(c.checks))
	}
}

func TestChecker_RunAllHealthy(t *testing.T) {
	db := newTestDB(t)
	c := NewChecker(db, runState(true), t.TempDir(), nil)

	statuses := c.RunOnce(context.Background())
	if len(statuses) != 3 {
		t.Fatalf("Statuses() = %d, want 3", len(statuses))
	}
	for _, s := range statuses {
		if !s.Healthy {
			t.Errorf("check %q should be healthy, got error: %s", s.Name, s.Error)
		}
	}
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true when all checks pass")
	}
}

func TestChecker_IsHealthy_BeforeRun(t *testing.T) {
	c := NewChecker(newTestDB(t), runState(false), "", nil)
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true before first run (no statuses)")
	}
}

func TestChecker_SchedulerStopped(t *testing.T) {
	c := NewChecker(newTestDB(t), runState(false), "", nil)
	c.runAll(context.Background())

	if c.IsHealthy() {
		t.Error("IsHealthy() should be false when the scheduler is stopped")
	}
	for _, s := range c.Statuses() {
		if s.Name == "scheduler" && s.Error == "" {
			t.Error("scheduler status should carry an error")
		}
	}
}

func TestChecker_StorageDown(t *testing.T) {
	c := NewChecker(brokenPinger{}, runState(true), "", nil)
	statuses := c.RunOnce(context.Background())
	if statuses[0].Name != "storage" || statuses[0].Healthy {
		t.Errorf("storage should be unhealthy, got %+v", statuses[0])
	}
}

func TestChecker_RecoverFnCalled(t *testing.T) {
	c := NewChecker(newTestDB(t), runState(true), "", nil)
	recovered := false
	c.checks = append(c.checks, Check{
		Name:      "flaky",
		CheckFn:   func(context.Context) error { return errors.New("down") },
		RecoverFn: func(context.Context) error { recovered = true; return nil },
	})
	c.runAll(context.Background())
	if !recovered {
		t.Error("RecoverFn should run after a failed check")
	}
	if c.IsHealthy() {
		t.Error("a check still failing after recovery should stay unhealthy")
	}
}

func TestChecker_DataDirRecovered(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "chronik")
	c := NewChecker(newTestDB(t), runState(true), dir, nil)
	before := recoveries(t, "data_dir")

	statuses := c.RunOnce(context.Background())
	for _, s := range statuses {
		if !s.Healthy {
			t.Errorf("check %q should be healthy after recovery, got %s", s.Name, s.Error)
		}
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("data dir should be recreated: %v", err)
	}
	if got := recoveries(t, "data_dir") - before; got != 1 {
		t.Errorf("recoveries = %v, want 1", got)
	}

	// Healthy now: no further recovery attempt.
	c.RunOnce(context.Background())
	if got := recoveries(t, "data_dir") - before; got != 1 {
		t.Errorf("recoveries after a healthy run = %v, want 1", got)
	}
}

func TestChecker_DataDirNotRecoverable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	c := NewChecker(newTestDB(t), runState(true), path, nil)
	c.runAll(context.Background())
	if c.IsHealthy() {
		t.Error("a data dir path holding a file should stay unhealthy")
	}
}

func TestChecker_StatusesReturnsCopy(t *testing.T) {
	c := NewChecker(newTestDB(t), runState(true), "", nil)
	c.runAll(context.Background())

	s1 := c.Statuses()
	s1[0].Name = "modified"
	if c.Statuses()[0].Name == "modified" {
		t.Error("Statuses() should return a copy")
	}
}

func TestChecker_RunCancelled(t *testing.T) {
	c := NewChecker(newTestDB(t), runState(true), "", nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	cancel()
	<-done
	if len(c.Statuses()) == 0 {
		t.Error("Run should perform an immediate check")
	}
}

// ─── Check Implementation Tests ─────────────────────────────────────────────

func TestCheckDataDir(t *testing.T) {
	dir := t.TempDir()
	if err := checkDataDir(dir); err != nil {
		t.Errorf("checkDataDir(existing) error: %v", err)
	}
	if err := checkDataDir(filepath.Join(dir, "missing")); err == nil {
		t.Error("missing dir should fail")
	}
	f := filepath.Join(dir, "file")
	os.WriteFile(f, []byte("x"), 0o644)
	if err := checkDataDir(f); err == nil {
		t.Error("file should fail")
	}
}

func TestNewChecker_NoScheduler(t *testing.T) {
	c := NewChecker(newTestDB(t), nil, "", nil)
	statuses := c.RunOnce(context.Background())
	if len(statuses) != 1 || statuses[0].Name != "storage" {
		t.Errorf("expected only the storage check, got %+v", statuses)
	}
}
