// Package app provides the top-level lifecycle of the pool keeper. It wires
// together the ledger, decision and side-channel dependencies and runs the
// scheduler, the gas price feed and the optional ops listener until the
// context is cancelled.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/poolkeeper/internal/config"
	"github.com/alanyoungcy/poolkeeper/internal/server"
	"github.com/alanyoungcy/poolkeeper/internal/server/handler"
)

const shutdownTimeout = 10 * time.Second

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
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

// Run wires all dependencies, starts the keeper and its companions, and
// blocks until the context is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
		slog.Bool("audit", a.cfg.Audit.Enabled),
		slog.Bool("archive", a.cfg.Archive.Enabled),
		slog.Bool("ops", a.cfg.Ops.Enabled),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	if !deps.Notifier.Enabled() {
		a.logger.WarnContext(ctx, "no notification channel configured")
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Keeper.Run(ctx)
	})

	if deps.Refresher != nil {
		g.Go(func() error {
			return deps.Refresher.Run(ctx)
		})
	}

	if a.cfg.Ops.Enabled {
		a.startOpsServer(ctx, g, deps)
	}

	return g.Wait()
}

// startOpsServer serves health, metrics and, when the audit log is wired,
// the recent audit trail.
func (a *App) startOpsServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(deps.Keeper, a.logger),
		Metrics: deps.Metrics.Handler(),
	}
	if deps.Audit != nil {
		handlers.Audit = handler.NewAuditHandler(deps.Audit, a.logger)
	}
	srv := server.NewServer(server.Config{Addr: a.cfg.Ops.Addr}, handlers, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
