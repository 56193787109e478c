// Package health runs periodic liveness checks for the daemon: storage
// reachability, scheduler state and the data directory.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/unfloned/chronik/internal/infra/metrics"
)

// Pinger is satisfied by both storage backends.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RunState reports whether a background component is running.
type RunState interface {
	Running() bool
}

// Check defines a single health check with optional recovery action. A
// check whose RecoverFn succeeds is run again before its status is
// recorded.
type Check struct {
	Name      string
	CheckFn   func(ctx context.Context) error
	RecoverFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker runs periodic health checks.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

// NewChecker creates a checker for the storage backend and the reminder
// scheduler. A nil sched or empty dataDir skips that check.
func NewChecker(store Pinger, sched RunState, dataDir string, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Checker{
		interval: 60 * time.Second,
		timeout:  5 * time.Second,
		logger:   logger.With("component", "health"),
	}
	c.checks = append(c.checks, Check{
		Name:    "storage",
		CheckFn: store.Ping,
	})
	if sched != nil {
		c.checks = append(c.checks, Check{
			Name: "scheduler",
			CheckFn: func(context.Context) error {
				if !sched.Running() {
					return errors.New("scheduler is not running")
				}
				return nil
			},
		})
	}
	if dataDir != "" {
		c.checks = append(c.checks, Check{
			Name:      "data_dir",
			CheckFn:   func(context.Context) error { return checkDataDir(dataDir) },
			RecoverFn: func(context.Context) error { return recoverDataDir(dataDir) },
		})
	}
	return c
}

// SetInterval changes the loop interval. Call before Run.
func (c *Checker) SetInterval(d time.Duration) {
	if d > 0 {
		c.interval = d
	}
}

// Run starts the health check loop. Call in a goroutine.
func (c *Checker) Run(ctx context.Context) {
	c.runAll(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runAll(ctx)
		}
	}
}

// RunOnce executes every check immediately and returns the results.
func (c *Checker) RunOnce(ctx context.Context) []Status {
	c.runAll(ctx)
	return c.Statuses()
}

func (c *Checker) runAll(ctx context.Context) {
	statuses := make([]Status, len(c.checks))
	for i, check := range c.checks {
		s := Status{Name: check.Name, CheckedAt: time.Now()}

		cctx, cancel := context.WithTimeout(ctx, c.timeout)
		err := check.CheckFn(cctx)
		cancel()

		if err != nil {
			c.logger.Warn("health check failed", "check", check.Name, "error", err)
			if check.RecoverFn != nil {
				err = c.tryRecover(ctx, check, err)
			}
		}
		if err != nil {
			s.Error = err.Error()
			metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(0)
		} else {
			s.Healthy = true
			metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(1)
		}
		statuses[i] = s
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// tryRecover runs the check's recovery and, if that succeeds, the check
// again. It returns the error that should be reported.
func (c *Checker) tryRecover(ctx context.Context, check Check, cause error) error {
	metrics.HealthRecoveries.WithLabelValues(check.Name).Inc()
	if err := check.RecoverFn(ctx); err != nil {
		c.logger.Warn("health recovery failed", "check", check.Name, "error", err)
		return cause
	}

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := check.CheckFn(cctx); err != nil {
		c.logger.Warn("health check still failing after recovery", "check", check.Name, "error", err)
		return err
	}
	c.logger.Info("health check recovered", "check", check.Name)
	return nil
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if all checks pass.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}

func checkDataDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("check data dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

// recoverDataDir recreates a missing data directory. A path occupied by a
// file is left alone.
func recoverDataDir(dir string) error {
	if _, err := os.Stat(dir); err == nil || !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("data dir %s is not recoverable", dir)
	}
	return os.MkdirAll(dir, 0o700)
}
