// Package app provides the top-level application lifecycle for the market
// tracker. It wires together all dependencies (store, cache, price source,
// notifications), builds the tracker and the HTTP API, and runs them until
// the context is cancelled.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/simdash/marktracker/internal/config"
	"github.com/simdash/marktracker/internal/server"
	"github.com/simdash/marktracker/internal/server/handler"
	"github.com/simdash/marktracker/internal/tracker"
)

const shutdownTimeout = 10 * time.Second

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the tracker
// schedule when autostart is enabled, serves the HTTP API, and blocks until
// the context is cancelled. On return it runs all registered cleanups.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
		slog.Duration("interval", a.cfg.Tracker.Interval.Duration),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	trk := tracker.New(
		deps.PositionStore,
		deps.PriceSource,
		deps.SnapshotCache,
		deps.Notifier,
		tracker.Config{
			Interval:         a.cfg.Tracker.Interval.Duration,
			FetchConcurrency: a.cfg.Tracker.FetchConcurrency,
		},
		a.logger,
	)
	a.closers = append(a.closers, trk.Stop)

	if a.cfg.Tracker.Autostart {
		trk.Start(a.cfg.Tracker.Interval.Duration)
	}

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
		},
		server.Handlers{
			Health:    handler.NewHealthHandler(),
			Tracker:   handler.NewTrackerHandler(trk, a.logger),
			Positions: handler.NewPositionHandler(deps.PositionStore, deps.PriceSource, a.logger),
			Markets:   handler.NewMarketHandler(deps.SnapshotCache, a.logger),
		},
		a.logger,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown failed", slog.String("error", err.Error()))
		}
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("app: server: %w", err)
		}
		return nil
	}
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
