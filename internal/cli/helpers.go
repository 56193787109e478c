package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/unfloned/chronik/internal/app/engagement"
	"github.com/unfloned/chronik/internal/app/notify"
	"github.com/unfloned/chronik/internal/daemon"
	"github.com/unfloned/chronik/internal/domain"
)

// offline is the slice of the runtime a one-shot command needs. It never
// starts the scheduler or the HTTP server.
type offline struct {
	cfg    daemon.Config
	store  domain.Store
	gw     *notify.Gateway
	engine *engagement.Engine
}

// openOffline loads the config and opens storage with a logger that only
// reports warnings.
func openOffline(w io.Writer) (*offline, error) {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelWarn}))

	store, err := daemon.OpenStore(cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	catalog, err := engagement.NewDefaultCatalog(store)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	transport, err := daemon.NewPushTransport(cfg.Push)
	if err != nil {
		store.Close()
		return nil, err
	}
	gw := notify.New(store, transport, logger)
	return &offline{
		cfg:    cfg,
		store:  store,
		gw:     gw,
		engine: engagement.NewEngine(store, catalog, gw, logger),
	}, nil
}

func (o *offline) Close() error {
	return o.store.Close()
}
