package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unfloned/chronik/internal/api"
	"github.com/unfloned/chronik/internal/app/engagement"
	"github.com/unfloned/chronik/internal/app/notify"
	"github.com/unfloned/chronik/internal/app/reminder"
	"github.com/unfloned/chronik/internal/app/tracker"
	"github.com/unfloned/chronik/internal/domain"
	"github.com/unfloned/chronik/internal/health"
	"github.com/unfloned/chronik/internal/infra/gormstore"
	"github.com/unfloned/chronik/internal/infra/push"
	"github.com/unfloned/chronik/internal/infra/scheduler"
	"github.com/unfloned/chronik/internal/infra/sqlite"
	"github.com/unfloned/chronik/internal/security"
)

// Daemon is the chronik runtime. It wires together all services.
type Daemon struct {
	Config    Config
	Store     domain.Store
	Notify    *notify.Gateway
	Engine    *engagement.Engine
	Tracker   *tracker.Tracker
	Scheduler *scheduler.Scheduler
	Health    *health.Checker
	Server    *api.Server

	logger *slog.Logger
	cancel context.CancelFunc
}

// NewWithConfig creates a Daemon with the given configuration. The
// achievement catalog is seeded before it returns.
func NewWithConfig(cfg Config, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := OpenStore(cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	catalog, err := engagement.NewDefaultCatalog(store)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	transport, err := NewPushTransport(cfg.Push)
	if err != nil {
		store.Close()
		return nil, err
	}
	gw := notify.New(store, transport, logger)
	eng := engagement.NewEngine(store, catalog, gw, logger)

	seedCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	n, err := eng.Seed(seedCtx)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("seed catalog: %w", err)
	}
	if n > 0 {
		logger.Info("achievement catalog seeded", "inserted", n)
	}

	sched := scheduler.New(logger)
	if err := reminder.Register(sched, store, gw, cfg.ReminderConfig(), logger); err != nil {
		store.Close()
		return nil, fmt.Errorf("register reminder jobs: %w", err)
	}

	dataDir := ""
	if cfg.Storage.Driver == "sqlite" {
		dataDir = cfg.Storage.Dir
	}
	var schedState health.RunState
	if cfg.Scheduler.Enabled {
		schedState = sched
	}
	checker := health.NewChecker(store, schedState, dataDir, logger)
	checker.SetInterval(parseDuration(cfg.Scheduler.HealthInterval, time.Minute))

	tr := tracker.New(store, eng, logger)

	srv := api.NewServer()
	srv.SetCORSOrigin(cfg.API.CORSOrigin)
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}
	srv.SetHealth(checker)
	srv.SetEngagement(api.NewEngagementAPI(eng, gw, tr.Dashboard))
	srv.SetTracker(api.NewTrackerAPI(tr))

	return &Daemon{
		Config:    cfg,
		Store:     store,
		Notify:    gw,
		Engine:    eng,
		Tracker:   tr,
		Scheduler: sched,
		Health:    checker,
		Server:    srv,
		logger:    logger.With("component", "daemon"),
	}, nil
}

// OpenStore opens the configured storage backend.
func OpenStore(cfg StorageConfig, logger *slog.Logger) (domain.Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		dir := cfg.Dir
		if dir == "" {
			dir = chronikHome()
		}
		db, err := sqlite.Open(dir)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		return db, nil
	case "postgres":
		s, err := gormstore.Open(cfg.DSN, logger)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// NewPushTransport builds the webhook transport for cfg, or nil when push
// is disabled.
func NewPushTransport(cfg PushConfig) (push.Transport, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	t := push.NewWebhookTransport(cfg.Gateway, parseDuration(cfg.Timeout, 10*time.Second))
	if cfg.Sign {
		signer, err := security.LoadOrCreateSigner(chronikHome())
		if err != nil {
			return nil, fmt.Errorf("load webhook key: %w", err)
		}
		t.SetSigner(signer)
	}
	return t, nil
}

// Start launches the background services: reminder scheduler, health
// loop and config watcher.
func (d *Daemon) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if d.Config.Scheduler.Enabled {
		if err := d.Scheduler.Start(ctx); err != nil {
			cancel()
			return fmt.Errorf("start scheduler: %w", err)
		}
	}
	go d.Health.Run(ctx)

	go func() {
		err := WatchConfig(ctx, ConfigPath(), d.logger, func(cfg Config) {
			SetLogLevel(cfg.Logging.Level)
		})
		if err != nil {
			d.logger.Warn("config watch disabled", "error", err)
		}
	}()
	return nil
}

// Serve starts the background services and the HTTP server and blocks
// until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	d.logger.Info("chronik serving", "addr", "http://"+addr,
		"storage", d.Config.Storage.Driver, "scheduler", d.Config.Scheduler.Enabled,
		"metrics", d.Config.Telemetry.Prometheus)

	err := httpServer.ListenAndServe()
	d.Close()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops background services and closes storage. In-flight
// scheduler runs finish first.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Scheduler != nil {
		d.Scheduler.Stop()
	}
	if d.Store != nil {
		_ = d.Store.Close()
	}
}
