// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/vesselworks/spiritd/internal/api"
	"github.com/vesselworks/spiritd/internal/bus"
	"github.com/vesselworks/spiritd/internal/cache"
	"github.com/vesselworks/spiritd/internal/config"
	"github.com/vesselworks/spiritd/internal/daemon"
	"github.com/vesselworks/spiritd/internal/health"
	"github.com/vesselworks/spiritd/internal/incidentlog"
	spdlog "github.com/vesselworks/spiritd/internal/log"
	"github.com/vesselworks/spiritd/internal/monitor"
	"github.com/vesselworks/spiritd/internal/report"
	"github.com/vesselworks/spiritd/internal/sensors"
	"github.com/vesselworks/spiritd/internal/store"
	"github.com/vesselworks/spiritd/internal/tracing"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configFile := flag.String("config", "", "alarm threshold YAML file (overrides SPIRITD_THRESHOLDS_FILE)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration before the logger so the level takes effect from
	// the first line.
	cfg, err := config.FromEnvAndFile(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "spiritd: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	spdlog.Configure(spdlog.Config{
		Level:   cfg.LogLevel,
		Service: "spiritd",
	})
	logger := spdlog.WithComponent("daemon")

	logger.Info().
		Str("event", "daemon.starting").
		Str("version", version).
		Str("commit", commit).
		Str("listen", cfg.ListenAddr).
		Dur("cycle_period", cfg.CyclePeriod).
		Msg("starting spiritd")

	// Tracing provider; no-op when disabled.
	tracerProvider, err := tracing.NewProvider(ctx, tracing.Config{
		Enabled:        cfg.TracingEnabled,
		ServiceName:    "spiritd",
		ServiceVersion: version,
		Environment:    config.ParseString("SPIRITD_ENV", "production"),
		ExporterType:   cfg.TracingExporter,
		Endpoint:       cfg.TracingEndpoint,
		SamplingRate:   cfg.TracingSampling,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("event", "tracing.init_failed").Msg("failed to initialize tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Str("event", "tracing.shutdown_failed").Msg("tracer shutdown error")
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		logger.Fatal().Err(err).Str("event", "storage.datadir_failed").Str("path", cfg.DataDir).Msg("cannot create data directory")
	}

	// Time-series sample store.
	samples, err := store.Open(filepath.Join(cfg.DataDir, "samples"), cfg.Retention)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "storage.open_failed").Msg("failed to open sample store")
	}
	defer func() {
		if err := samples.Close(); err != nil {
			logger.Warn().Err(err).Str("event", "storage.close_failed").Msg("sample store close error")
		}
	}()

	// Incident archive.
	incidents, err := incidentlog.Open(filepath.Join(cfg.DataDir, "incidents.db"))
	if err != nil {
		logger.Fatal().Err(err).Str("event", "incidentlog.open_failed").Msg("failed to open incident log")
	}
	defer func() {
		if err := incidents.Close(); err != nil {
			logger.Warn().Err(err).Str("event", "incidentlog.close_failed").Msg("incident log close error")
		}
	}()

	// Latest-state cache: Redis when configured, otherwise in-process.
	var stateCache cache.Cache
	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, spdlog.WithComponent("cache"))
		if err != nil {
			logger.Warn().Err(err).Str("event", "cache.redis_unavailable").Msg("redis unavailable, using in-memory cache")
			stateCache = cache.NewMemoryCache(time.Minute)
		} else {
			logger.Info().Str("event", "cache.redis_connected").Str("addr", cfg.RedisAddr).Msg("connected to redis")
			stateCache = redisCache
			defer func() {
				if err := redisCache.Close(); err != nil {
					logger.Warn().Err(err).Str("event", "cache.close_failed").Msg("redis close error")
				}
			}()
		}
	} else {
		stateCache = cache.NewMemoryCache(time.Minute)
	}

	// Hot-reloadable alarm thresholds.
	thresholds := config.NewThresholdHolder(cfg.Thresholds, cfg.ThresholdsFile)
	defer thresholds.Stop()

	eventBus := bus.NewMemoryBus()

	engine, err := monitor.New(monitor.Config{
		Period:           cfg.CyclePeriod,
		HistorySize:      cfg.HistorySize,
		IncidentCost:     cfg.IncidentCost,
		AnomalyWindow:    cfg.AnomalyWindow,
		AnomalyThreshold: cfg.AnomalyThreshold,
		Thresholds:       thresholds.Get,
	}, sensors.NewSimulator(cfg.SimulatorSeed), samples, incidents, eventBus)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "engine.init_failed").Msg("failed to create monitoring engine")
	}

	healthManager := health.NewManager(version)
	healthManager.RegisterChecker(health.NewDataDirChecker(cfg.DataDir))
	healthManager.RegisterChecker(health.NewLastCycleChecker(func() (time.Time, bool) {
		st := engine.Status()
		return st.LastCycleAt, st.State == monitor.StateMonitoring
	}, 5*cfg.CyclePeriod))

	apiServer := api.New(cfg, engine, healthManager,
		api.WithIncidents(incidents),
		api.WithCache(stateCache),
		api.WithBus(eventBus),
	)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	var reporter *report.Writer
	if cfg.ReportPath != "" {
		reporter, err = report.NewWriter(cfg.ReportPath, cfg.ReportInterval, engine)
		if err != nil {
			logger.Fatal().Err(err).Str("event", "report.init_failed").Msg("failed to create report writer")
		}
	}

	app := daemon.NewApp(logger, engine, httpServer, thresholds, reporter)
	if err := app.Run(ctx); err != nil {
		logger.Fatal().Err(err).Str("event", "daemon.failed").Msg("daemon exited with error")
	}

	logger.Info().Str("event", "daemon.stopped").Msg("spiritd stopped")
}
