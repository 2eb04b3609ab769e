// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vesselworks/spiritd/internal/api/middleware"
)

func (s *Server) routes() http.Handler {
	tracingService := ""
	if s.cfg.TracingEnabled {
		tracingService = "spiritd"
	}

	r := middleware.NewRouter(middleware.StackConfig{
		EnableCORS:            true,
		AllowedOrigins:        s.cfg.AllowedOrigins,
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        tracingService,
		EnableLogging:         true,
		EnableRateLimit:       s.cfg.RateLimitRPS > 0,
		RateLimitRPS:          s.cfg.RateLimitRPS,
		RateLimitBurst:        s.cfg.RateLimitBurst,
	})

	// Probes and metrics
	r.Get("/healthz", s.healthManager.ServeHealth)
	r.Get("/readyz", s.healthManager.ServeReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/sample", s.handleSample)
		r.Get("/history", s.handleHistory)
		r.Get("/alarms", s.handleAlarms)
		r.Get("/incidents", s.handleIncidents)
		r.Get("/dampers", s.handleDampers)
		r.Get("/stream", s.handleStream)

		r.Route("/control", func(r chi.Router) {
			r.Post("/start", s.handleStart)
			r.Post("/stop", s.handleStop)
			r.Post("/estop", s.handleEmergencyStop)
			r.Post("/reset", s.handleReset)
		})
	})

	return r
}
