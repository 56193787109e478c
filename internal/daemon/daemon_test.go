package daemon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CHRONIK_HOME", dir)
	cfg := DefaultConfig()
	cfg.Storage.Dir = dir
	return cfg
}

func TestNewWithConfig_Wires(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.Enabled = false

	d, err := NewWithConfig(cfg, nil)
	if err != nil {
		t.Fatalf("NewWithConfig() error: %v", err)
	}
	defer d.Close()

	if len(d.Engine.Catalog.Definitions()) == 0 {
		t.Error("catalog should be loaded")
	}
	if got := len(d.Scheduler.Statuses()); got != 4 {
		t.Errorf("registered jobs = %d, want 4", got)
	}

	rec := httptest.NewRecorder()
	d.Server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/health = %d, want 200", rec.Code)
	}
}

func TestNewWithConfig_DisabledJobs(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.Disabled = []string{"streak-risk", "habit-reminder"}

	d, err := NewWithConfig(cfg, nil)
	if err != nil {
		t.Fatalf("NewWithConfig() error: %v", err)
	}
	defer d.Close()

	if got := len(d.Scheduler.Statuses()); got != 2 {
		t.Errorf("registered jobs = %d, want 2", got)
	}
}

func TestDaemon_StartClose(t *testing.T) {
	cfg := testConfig(t)
	d, err := NewWithConfig(cfg, nil)
	if err != nil {
		t.Fatalf("NewWithConfig() error: %v", err)
	}

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if !d.Scheduler.Running() {
		t.Error("scheduler should run after Start")
	}
	d.Close()
	if d.Scheduler.Running() {
		t.Error("scheduler should stop on Close")
	}
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	if _, err := OpenStore(StorageConfig{Driver: "mysql"}, nil); err == nil {
		t.Error("unknown driver should fail")
	}
}

func TestNewPushTransport(t *testing.T) {
	cfg := testConfig(t)

	tr, err := NewPushTransport(cfg.Push)
	if err != nil || tr != nil {
		t.Errorf("disabled push = (%v, %v), want (nil, nil)", tr, err)
	}

	cfg.Push.Enabled = true
	tr, err = NewPushTransport(cfg.Push)
	if err != nil || tr == nil {
		t.Fatalf("enabled push = (%v, %v)", tr, err)
	}
	if _, err := os.Stat(filepath.Join(ChronikHome(), "keys", "webhook.pub")); err != nil {
		t.Errorf("signing key should be created: %v", err)
	}
}
