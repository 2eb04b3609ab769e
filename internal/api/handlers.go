// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/vesselworks/spiritd/internal/alarm"
	"github.com/vesselworks/spiritd/internal/cache"
	"github.com/vesselworks/spiritd/internal/monitor"
)

// statusResponse extends the engine status with server uptime.
type statusResponse struct {
	monitor.Status
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// handleStatus returns the engine status. The document is served from the
// hot cache when available so status polls stay off the engine lock.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.cache != nil {
		if doc, ok := s.cache.Get(cache.KeyStatus); ok {
			writeRawJSON(w, http.StatusOK, doc)
			return
		}
	}

	resp := statusResponse{
		Status:        s.engine.Status(),
		UptimeSeconds: time.Since(s.startTime).Seconds(),
	}

	if s.cache != nil {
		if doc, err := json.Marshal(resp); err == nil {
			s.cache.Set(cache.KeyStatus, doc, s.statusTTL)
		}
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// handleSample returns the most recent telemetry sample.
func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	if s.cache != nil {
		if doc, ok := s.cache.Get(cache.KeyLatestSample); ok {
			writeRawJSON(w, http.StatusOK, doc)
			return
		}
	}

	smp, ok := s.engine.Latest()
	if !ok {
		writeError(w, r, http.StatusNotFound, "no sample acquired yet")
		return
	}

	if s.cache != nil {
		if doc, err := json.Marshal(smp); err == nil {
			s.cache.Set(cache.KeyLatestSample, doc, s.statusTTL)
		}
	}
	writeJSON(w, r, http.StatusOK, smp)
}

// handleHistory returns up to n recent samples, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	n := 0
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, r, http.StatusBadRequest, "invalid n parameter")
			return
		}
		n = parsed
	}
	writeJSON(w, r, http.StatusOK, s.engine.History(n))
}

// handleAlarms returns the active alarm set.
func (s *Server) handleAlarms(w http.ResponseWriter, r *http.Request) {
	alarms := s.engine.ActiveAlarms()
	if alarms == nil {
		alarms = []alarm.Alarm{}
	}
	writeJSON(w, r, http.StatusOK, alarms)
}

// handleIncidents queries the incident archive by time range and severity.
func (s *Server) handleIncidents(w http.ResponseWriter, r *http.Request) {
	if s.incidents == nil {
		writeError(w, r, http.StatusNotFound, "incident archive disabled")
		return
	}

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid since parameter (want RFC3339)")
			return
		}
		since = parsed
	}

	severity := alarm.Severity(r.URL.Query().Get("severity"))
	switch severity {
	case "", alarm.SeverityWarning, alarm.SeverityCritical:
	default:
		writeError(w, r, http.StatusBadRequest, "invalid severity parameter")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, r, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		limit = parsed
	}

	incidents, err := s.incidents.Query(r.Context(), since, severity, limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "incident query failed")
		return
	}
	if incidents == nil {
		incidents = []alarm.Alarm{}
	}
	writeJSON(w, r, http.StatusOK, incidents)
}

// handleDampers returns the latest damper commands.
func (s *Server) handleDampers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.engine.DamperCommands())
}
