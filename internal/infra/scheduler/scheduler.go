// Package scheduler runs named periodic jobs, each on its own ticker.
//
// Jobs never block each other: every registered job gets a goroutine that
// ticks independently. A job that overruns its interval delays its own next
// tick only. Stop cancels every ticker and waits for in-flight runs to
// return.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/unfloned/chronik/internal/infra/metrics"
)

var (
	// ErrAlreadyRunning is returned by Start on a started scheduler.
	ErrAlreadyRunning = errors.New("scheduler already running")
	// ErrDuplicateJob is returned when a job name is registered twice.
	ErrDuplicateJob = errors.New("job already registered")
)

// Job is one unit of periodic work. now is the tick time.
type Job interface {
	Name() string
	Run(ctx context.Context, now time.Time) error
}

// JobFunc adapts a function to Job.
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context, now time.Time) error
}

// Name returns the job name.
func (f JobFunc) Name() string { return f.JobName }

// Run calls Fn.
func (f JobFunc) Run(ctx context.Context, now time.Time) error { return f.Fn(ctx, now) }

// Spec controls when a job runs.
type Spec struct {
	Interval   time.Duration
	RunAtStart bool
}

type entry struct {
	job  Job
	spec Spec

	mu      sync.Mutex
	lastRun time.Time
	lastErr error
	runs    int64
}

// JobStatus is a snapshot of one job.
type JobStatus struct {
	Name      string        `json:"name"`
	Interval  time.Duration `json:"interval"`
	Runs      int64         `json:"runs"`
	LastRun   time.Time     `json:"last_run,omitempty"`
	LastError string        `json:"last_error,omitempty"`
}

// Scheduler owns the timer handles of all registered jobs.
type Scheduler struct {
	mu      sync.Mutex
	entries map[string]*entry
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	now    func() time.Time
	logger *slog.Logger
}

// New creates an empty scheduler.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		entries: make(map[string]*entry),
		now:     time.Now,
		logger:  logger.With("component", "scheduler"),
	}
}

// SetClock replaces the tick time source. Tests only.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Register adds a job. Jobs registered while running start on the next Start.
func (s *Scheduler) Register(job Job, spec Spec) error {
	if spec.Interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", job.Name())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[job.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.Name())
	}
	s.entries[job.Name()] = &entry{job: job, spec: spec}
	return nil
}

// Start launches one ticker goroutine per job. The scheduler runs until
// Stop is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	for _, e := range s.entries {
		s.wg.Add(1)
		go s.loop(runCtx, e)
	}
	metrics.JobsRunning.Set(1)
	s.logger.Info("scheduler started", "jobs", len(s.entries))
	return nil
}

// Stop cancels every ticker and waits for in-flight runs to finish.
// Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	metrics.JobsRunning.Set(0)
	s.logger.Info("scheduler stopped")
}

// Running reports whether Start has been called without a matching Stop.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunNow runs a job once, synchronously, outside its ticker.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s not registered", name)
	}
	return s.runOnce(ctx, e)
}

// Statuses returns a snapshot of every job, sorted by name.
func (s *Scheduler) Statuses() []JobStatus {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	out := make([]JobStatus, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		st := JobStatus{Name: e.job.Name(), Interval: e.spec.Interval, Runs: e.runs, LastRun: e.lastRun}
		if e.lastErr != nil {
			st.LastError = e.lastErr.Error()
		}
		e.mu.Unlock()
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	defer s.wg.Done()

	if e.spec.RunAtStart {
		_ = s.runOnce(ctx, e)
	}

	ticker := time.NewTicker(e.spec.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.runOnce(ctx, e)
		}
	}
}

// runOnce executes the job, recording metrics and status. Panics are
// contained to the job.
func (s *Scheduler) runOnce(ctx context.Context, e *entry) (err error) {
	name := e.job.Name()
	s.mu.Lock()
	now := s.now()
	s.mu.Unlock()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", name, r)
		}
		metrics.JobRuns.WithLabelValues(name).Inc()
		metrics.JobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.JobErrors.WithLabelValues(name).Inc()
			s.logger.Warn("job run failed", "job", name, "error", err)
		}
		e.mu.Lock()
		e.runs++
		e.lastRun = now
		e.lastErr = err
		e.mu.Unlock()
	}()

	return e.job.Run(ctx, now)
}
