// Package app provides the top-level application lifecycle: it wires the
// stores, caches, API clients, services, and HTTP server together and
// runs the enabled components until shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polytracker/internal/config"
	"github.com/alanyoungcy/polytracker/internal/server"
	"github.com/alanyoungcy/polytracker/internal/server/handler"
	"github.com/alanyoungcy/polytracker/internal/server/ws"
	"github.com/alanyoungcy/polytracker/internal/service"
)

// shutdownTimeout bounds how long a graceful HTTP shutdown may take.
const shutdownTimeout = 10 * time.Second

// App is the root application object. It owns the configuration, logger,
// and a list of cleanup functions called in reverse order on shutdown.
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

// Run wires all dependencies, starts the enabled components (HTTP server,
// poll loop, snapshot archiver), and blocks until the context is
// cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("storage_backend", a.cfg.Storage.Backend),
		slog.String("log_level", a.cfg.LogLevel),
	)
	a.logger.DebugContext(ctx, "active configuration",
		slog.Any("config", config.RedactedConfig(a.cfg)),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	positions := service.NewPositionService(
		deps.PositionStore,
		deps.Clob,
		deps.Gamma,
		deps.SignalBus,
		a.cfg.Poll.FetchTimeout.Duration,
		a.logger,
	)
	poll := service.NewPollService(
		deps.PositionStore,
		deps.AlertStore,
		deps.Clob,
		deps.Notifier,
		deps.PriceCache,
		deps.SignalBus,
		a.cfg.Poll.FetchTimeout.Duration,
		a.logger,
	)

	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.Poll.Enabled {
		g.Go(func() error {
			err := poll.Run(gctx, a.cfg.Poll.Interval.Duration)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if deps.Archiver != nil {
		g.Go(func() error {
			err := deps.Archiver.Run(gctx, a.cfg.S3.ArchiveInterval.Duration)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if a.cfg.Server.Enabled {
		hub := ws.NewHub(deps.SignalBus, a.logger)
		g.Go(func() error {
			err := hub.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})

		srv := server.NewServer(
			server.Config{
				Port:        a.cfg.Server.Port,
				CORSOrigins: a.cfg.Server.CORSOrigins,
			},
			server.Handlers{
				Health:    handler.NewHealthHandler(a.logger),
				Positions: handler.NewPositionHandler(positions, a.logger),
				Prices:    handler.NewPriceHandler(poll, a.logger),
				Alerts:    handler.NewAlertHandler(deps.AlertStore, a.logger),
			},
			hub,
			a.logger,
		)

		g.Go(srv.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close tears down all resources in reverse registration order. Safe to
// call multiple times.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
