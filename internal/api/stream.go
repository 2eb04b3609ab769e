// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/vesselworks/spiritd/internal/bus"
	"github.com/vesselworks/spiritd/internal/log"
	"github.com/vesselworks/spiritd/internal/monitor"
)

// streamEventLimit caps the SSE event rate per client so a fast cycle period
// cannot overwhelm slow consumers. Heartbeats bypass the limiter.
const streamEventLimit = rate.Limit(10)

// handleStream serves the live telemetry feed as Server-Sent Events. Each
// cycle emits a "sample" event; alarm transitions and engine state changes
// emit "alarm" and "state" events.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		writeError(w, r, http.StatusNotFound, "event stream disabled")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	logger := log.WithComponentFromContext(r.Context(), "stream")
	ctx := r.Context()

	samples, err := s.bus.Subscribe(ctx, bus.TopicSamples)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "subscribe failed")
		return
	}
	defer func() { _ = samples.Close() }()

	alarms, err := s.bus.Subscribe(ctx, bus.TopicAlarms)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "subscribe failed")
		return
	}
	defer func() { _ = alarms.Close() }()

	states, err := s.bus.Subscribe(ctx, bus.TopicState)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "subscribe failed")
		return
	}
	defer func() { _ = states.Close() }()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger.Debug().Str("event", "stream.opened").Str("remote_addr", r.RemoteAddr).Msg("SSE stream opened")

	limiter := rate.NewLimiter(streamEventLimit, int(streamEventLimit))
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	emit := func(event string, payload any) bool {
		if !limiter.Allow() {
			// Shed the event rather than buffer unboundedly.
			return true
		}
		doc, err := json.Marshal(payload)
		if err != nil {
			logger.Warn().Err(err).Str("event", "stream.encode_failed").Msg("event encoding failed")
			return true
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, doc); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Str("event", "stream.closed").Msg("SSE stream closed")
			return

		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case msg := <-samples.C():
			if ev, ok := msg.(monitor.SampleEvent); ok {
				if !emit("sample", ev) {
					return
				}
			}

		case msg := <-alarms.C():
			if ev, ok := msg.(monitor.AlarmEvent); ok {
				if !emit("alarm", ev) {
					return
				}
			}

		case msg := <-states.C():
			if ev, ok := msg.(monitor.StateEvent); ok {
				if !emit("state", ev) {
					return
				}
			}
		}
	}
}
