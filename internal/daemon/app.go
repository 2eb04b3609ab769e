// SPDX-License-Identifier: MIT

// Package daemon owns the long-lived runtime lifecycle: the monitoring
// engine, the HTTP server, the threshold watcher and the report writer.
package daemon

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vesselworks/spiritd/internal/config"
	"github.com/vesselworks/spiritd/internal/monitor"
	"github.com/vesselworks/spiritd/internal/report"
)

// ErrMissingEngine is returned when Run is called without an engine.
var ErrMissingEngine = errors.New("daemon: missing engine")

// App wires the background subsystems together and runs them under one
// errgroup until the context is cancelled or a fatal error occurs.
type App struct {
	logger       zerolog.Logger
	engine       *monitor.Engine
	httpServer   *http.Server
	thresholds   *config.ThresholdHolder
	reporter     *report.Writer // optional
	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator. reporter may be nil.
func NewApp(logger zerolog.Logger, engine *monitor.Engine, httpServer *http.Server, thresholds *config.ThresholdHolder, reporter *report.Writer) *App {
	return &App{
		logger:       logger,
		engine:       engine,
		httpServer:   httpServer,
		thresholds:   thresholds,
		reporter:     reporter,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run starts all owned subsystems and blocks until ctx is cancelled or a
// fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.engine == nil {
		return ErrMissingEngine
	}

	g, ctx := errgroup.WithContext(ctx)

	// Threshold watcher is best-effort: startup should not fail if the
	// watcher cannot be started.
	if a.thresholds != nil {
		if err := a.thresholds.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str("event", "thresholds.watcher_start_failed").Msg("failed to start threshold watcher")
		}
	}

	// SIGHUP trigger for manual threshold reload.
	if a.thresholds != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().Str("event", "thresholds.sighup").Msg("reload signal received")
					if err := a.thresholds.Reload(ctx); err != nil {
						a.logger.Error().Err(err).Str("event", "thresholds.sighup_failed").Msg("manual threshold reload failed")
					}
				}
			}
		})
	}

	// Monitoring engine cycle loop.
	g.Go(func() error {
		if err := a.engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	// Snapshot report writer.
	if a.reporter != nil {
		g.Go(func() error {
			if err := a.reporter.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	// HTTP server with graceful shutdown.
	if a.httpServer != nil {
		g.Go(func() error {
			a.logger.Info().
				Str("event", "http.listen").
				Str("addr", a.httpServer.Addr).
				Msg("HTTP server listening")
			if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn().Err(err).Str("event", "http.shutdown_error").Msg("HTTP server shutdown error")
			}
			return nil
		})
	}

	return g.Wait()
}
