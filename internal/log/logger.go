// SPDX-License-Identifier: MIT

// Package log provides the structured zerolog setup shared by every
// spiritd component.
package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config captures options for the process-wide logger.
type Config struct {
	Level   string    // log level ("debug", "info", ...), default info
	Output  io.Writer // defaults to os.Stdout
	Service string    // service field on every entry, default "spiritd"
}

var (
	once sync.Once
	base zerolog.Logger
)

// Configure initialises the process-wide logger. Only the first call takes
// effect; the implicit call from Base applies defaults, so the daemon must
// configure before the first log line.
func Configure(cfg Config) {
	once.Do(func() {
		zerolog.SetGlobalLevel(parseLevel(cfg.Level))
		zerolog.TimeFieldFormat = time.RFC3339

		out := cfg.Output
		if out == nil {
			out = os.Stdout
		}
		service := cfg.Service
		if service == "" {
			service = "spiritd"
		}

		base = zerolog.New(out).With().
			Timestamp().
			Str("service", service).
			Logger()
	})
}

func parseLevel(level string) zerolog.Level {
	if level == "" {
		level = os.Getenv("SPIRITD_LOG_LEVEL")
	}
	if level != "" {
		if parsed, err := zerolog.ParseLevel(level); err == nil {
			return parsed
		}
	}
	return zerolog.InfoLevel
}

// Base returns the process-wide logger, applying defaults on first use.
func Base() zerolog.Logger {
	Configure(Config{})
	return base
}

// WithComponent returns a child logger tagged with a component name.
func WithComponent(component string) zerolog.Logger {
	return Base().With().Str(FieldComponent, component).Logger()
}
