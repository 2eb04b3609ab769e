// SPDX-License-Identifier: MIT

// Package api provides the HTTP server for spiritd.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/vesselworks/spiritd/internal/alarm"
	"github.com/vesselworks/spiritd/internal/bus"
	"github.com/vesselworks/spiritd/internal/cache"
	"github.com/vesselworks/spiritd/internal/config"
	"github.com/vesselworks/spiritd/internal/damper"
	"github.com/vesselworks/spiritd/internal/health"
	"github.com/vesselworks/spiritd/internal/monitor"
	"github.com/vesselworks/spiritd/internal/sensors"
)

// Engine is the monitoring surface the API serves.
type Engine interface {
	Status() monitor.Status
	CurrentState() monitor.State
	Latest() (sensors.Sample, bool)
	History(n int) []sensors.Sample
	ActiveAlarms() []alarm.Alarm
	DamperCommands() []damper.Command
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	EmergencyStop(ctx context.Context) error
	Reset(ctx context.Context) error
}

// IncidentQuerier reads the incident archive.
type IncidentQuerier interface {
	Query(ctx context.Context, since time.Time, severity alarm.Severity, limit int) ([]alarm.Alarm, error)
}

// Server represents the HTTP API server for spiritd.
type Server struct {
	cfg           config.AppConfig
	engine        Engine
	incidents     IncidentQuerier // optional
	healthManager *health.Manager
	cache         cache.Cache // optional hot read path
	bus           bus.Bus     // optional, feeds the SSE stream
	startTime     time.Time

	// statusTTL bounds staleness of the cached status document.
	statusTTL time.Duration
}

// Option allows functional configuration of the Server.
type Option func(*Server)

// WithIncidents wires the incident archive query surface.
func WithIncidents(q IncidentQuerier) Option {
	return func(s *Server) { s.incidents = q }
}

// WithCache wires the latest-state cache.
func WithCache(c cache.Cache) Option {
	return func(s *Server) { s.cache = c }
}

// WithBus wires the event bus for the SSE stream.
func WithBus(b bus.Bus) Option {
	return func(s *Server) { s.bus = b }
}

// New creates the API server.
func New(cfg config.AppConfig, engine Engine, hm *health.Manager, opts ...Option) *Server {
	s := &Server{
		cfg:           cfg,
		engine:        engine,
		healthManager: hm,
		startTime:     time.Now(),
		statusTTL:     time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the fully wired HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.routes()
}
