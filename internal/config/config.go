// SPDX-License-Identifier: MIT

// Package config provides configuration management for spiritd. Settings are
// environment-first (SPIRITD_* keys) with an optional YAML file overlay for
// the alarm threshold table, which can be hot-reloaded at runtime.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vesselworks/spiritd/internal/alarm"
)

// AppConfig is the complete daemon configuration.
type AppConfig struct {
	// HTTP server
	ListenAddr string
	// CORS allowed origins (comma separated in env)
	AllowedOrigins []string
	// Rate limiting
	RateLimitRPS   int
	RateLimitBurst int

	// Storage
	DataDir   string
	Retention time.Duration

	// Monitoring engine
	CyclePeriod   time.Duration
	HistorySize   int
	SimulatorSeed int64

	// Anomaly detector
	AnomalyWindow    int
	AnomalyThreshold float64

	// Cost model for prevented incidents (USD per incident)
	IncidentCost float64

	// Snapshot reports
	ReportPath     string
	ReportInterval time.Duration

	// Redis latest-state cache (empty disables)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Tracing
	TracingEnabled  bool
	TracingEndpoint string
	TracingExporter string // "grpc" or "http"
	TracingSampling float64

	// Logging
	LogLevel string

	// Alarm thresholds; ThresholdsFile overlays the defaults and is watched
	// for changes.
	ThresholdsFile string
	Thresholds     alarm.Thresholds
}

// FromEnv builds the configuration from SPIRITD_* environment variables,
// applying the threshold file overlay when configured.
func FromEnv() (AppConfig, error) {
	return FromEnvAndFile("")
}

// FromEnvAndFile is FromEnv with an explicit threshold file path, which
// takes precedence over SPIRITD_THRESHOLDS_FILE. The daemon feeds the
// -config flag through here.
func FromEnvAndFile(thresholdsFile string) (AppConfig, error) {
	cfg := AppConfig{
		ListenAddr:       ParseString("SPIRITD_LISTEN", ":8080"),
		AllowedOrigins:   splitCSV(ParseString("SPIRITD_ALLOWED_ORIGINS", "")),
		RateLimitRPS:     ParseInt("SPIRITD_RATELIMIT_RPS", 50),
		RateLimitBurst:   ParseInt("SPIRITD_RATELIMIT_BURST", 100),
		DataDir:          ParseString("SPIRITD_DATA_DIR", "/var/lib/spiritd"),
		Retention:        ParseDuration("SPIRITD_RETENTION", 7*24*time.Hour),
		CyclePeriod:      ParseDuration("SPIRITD_CYCLE_PERIOD", 3*time.Second),
		HistorySize:      ParseInt("SPIRITD_HISTORY_SIZE", 50),
		SimulatorSeed:    int64(ParseInt("SPIRITD_SIM_SEED", 42)),
		AnomalyWindow:    ParseInt("SPIRITD_ANOMALY_WINDOW", 120),
		AnomalyThreshold: ParseFloat("SPIRITD_ANOMALY_THRESHOLD", 3.0),
		IncidentCost:     ParseFloat("SPIRITD_INCIDENT_COST", 250000),
		ReportPath:       ParseString("SPIRITD_REPORT_PATH", ""),
		ReportInterval:   ParseDuration("SPIRITD_REPORT_INTERVAL", 5*time.Minute),
		RedisAddr:        ParseString("SPIRITD_REDIS_ADDR", ""),
		RedisPassword:    ParseString("SPIRITD_REDIS_PASSWORD", ""),
		RedisDB:          ParseInt("SPIRITD_REDIS_DB", 0),
		TracingEnabled:   ParseBool("SPIRITD_TRACING_ENABLED", false),
		TracingEndpoint:  ParseString("SPIRITD_TRACING_ENDPOINT", "localhost:4317"),
		TracingExporter:  ParseString("SPIRITD_TRACING_EXPORTER", "grpc"),
		TracingSampling:  ParseFloat("SPIRITD_TRACING_SAMPLING", 1.0),
		LogLevel:         ParseString("SPIRITD_LOG_LEVEL", "info"),
		ThresholdsFile:   ParseString("SPIRITD_THRESHOLDS_FILE", ""),
		Thresholds:       alarm.Defaults(),
	}
	if thresholdsFile != "" {
		cfg.ThresholdsFile = thresholdsFile
	}

	if cfg.ThresholdsFile != "" {
		th, err := LoadThresholds(cfg.ThresholdsFile)
		if err != nil {
			return cfg, err
		}
		cfg.Thresholds = th
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadThresholds reads a YAML threshold table. Channels absent from the file
// keep their defaults.
func LoadThresholds(path string) (alarm.Thresholds, error) {
	th := alarm.Defaults()
	buf, err := os.ReadFile(path)
	if err != nil {
		return th, fmt.Errorf("read thresholds file: %w", err)
	}
	if err := yaml.Unmarshal(buf, &th); err != nil {
		return th, fmt.Errorf("parse thresholds file %s: %w", path, err)
	}
	if err := th.Validate(); err != nil {
		return th, fmt.Errorf("thresholds file %s: %w", path, err)
	}
	return th, nil
}

// Validate rejects configurations the daemon cannot run with.
func (c AppConfig) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address is empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data dir is empty")
	}
	if c.CyclePeriod < 100*time.Millisecond {
		return fmt.Errorf("cycle period %s is below the 100ms floor", c.CyclePeriod)
	}
	if c.HistorySize <= 0 {
		return fmt.Errorf("history size must be positive, got %d", c.HistorySize)
	}
	if c.AnomalyWindow < 2 {
		return fmt.Errorf("anomaly window must be at least 2, got %d", c.AnomalyWindow)
	}
	if c.AnomalyThreshold <= 0 {
		return fmt.Errorf("anomaly threshold must be positive, got %g", c.AnomalyThreshold)
	}
	if c.TracingEnabled && c.TracingExporter != "grpc" && c.TracingExporter != "http" {
		return fmt.Errorf("unsupported tracing exporter %q (supported: grpc, http)", c.TracingExporter)
	}
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	return nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
