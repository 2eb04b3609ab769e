// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/vesselworks/spiritd/internal/cache"
	"github.com/vesselworks/spiritd/internal/log"
	"github.com/vesselworks/spiritd/internal/monitor"
)

// controlResponse reports the state after a control action.
type controlResponse struct {
	State monitor.State `json:"state"`
}

// control runs one engine transition and maps state errors to 409.
func (s *Server) control(w http.ResponseWriter, r *http.Request, action string, fn func(context.Context) error) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	if err := fn(r.Context()); err != nil {
		switch {
		case errors.Is(err, monitor.ErrAlreadyMonitoring),
			errors.Is(err, monitor.ErrNotMonitoring),
			errors.Is(err, monitor.ErrEmergencyStop),
			errors.Is(err, monitor.ErrNotEmergencyStop):
			writeError(w, r, http.StatusConflict, err.Error())
		default:
			logger.Error().Err(err).Str("event", "control.failed").Str("action", action).Msg("control action failed")
			writeError(w, r, http.StatusInternalServerError, "control action failed")
		}
		return
	}

	// Control actions invalidate the cached status document.
	if s.cache != nil {
		s.cache.Delete(cache.KeyStatus)
	}

	logger.Info().
		Str("event", "control.applied").
		Str("action", action).
		Str("new_state", string(s.engine.CurrentState())).
		Msg("control action applied")

	writeJSON(w, r, http.StatusOK, controlResponse{State: s.engine.CurrentState()})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.control(w, r, "start", s.engine.Start)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.control(w, r, "stop", s.engine.Stop)
}

func (s *Server) handleEmergencyStop(w http.ResponseWriter, r *http.Request) {
	s.control(w, r, "estop", s.engine.EmergencyStop)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.control(w, r, "reset", s.engine.Reset)
}
