// Package app owns the application lifecycle: it wires the dependencies and
// supervises every long-running loop until shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mwalczyk/arbot/internal/config"
)

// shutdownGrace bounds how long the HTTP server may drain on shutdown.
const shutdownGrace = 10 * time.Second

// App is the root application object. Cleanup functions registered during
// wiring run in reverse order on Close.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies and blocks until the context is cancelled or a
// supervised loop fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("environment", a.cfg.Environment),
		slog.String("order_destination", a.cfg.HitBtc.OrderDestination),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	g, ctx := errgroup.WithContext(ctx)

	for _, run := range deps.Runners {
		run := run
		g.Go(func() error { return ignoreCancel(run(ctx)) })
	}

	g.Go(func() error { return ignoreCancel(deps.Agent.Run(ctx)) })
	g.Go(func() error { return ignoreCancel(deps.Recorder.Run(ctx)) })

	if deps.Archiver != nil {
		g.Go(func() error { return ignoreCancel(deps.Archiver.Run(ctx)) })
	}

	if deps.Publisher != nil {
		updates, cancelUpdates := deps.MD.Subscribe()
		g.Go(func() error {
			defer cancelUpdates()
			return ignoreCancel(deps.Publisher.Run(ctx, updates))
		})
	}

	if deps.Server != nil {
		g.Go(deps.Server.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			return deps.Server.Shutdown(shutdownCtx)
		})
	}

	if a.cfg.Engine.StartActive {
		deps.Agent.SetActive(true)
	}

	return g.Wait()
}

// Close tears down resources in reverse registration order.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// ignoreCancel maps context cancellation to a clean exit so one loop winding
// down does not read as a failure.
func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
