// SPDX-License-Identifier: MIT

package monitor

import (
	"errors"
	"time"

	"github.com/vesselworks/spiritd/internal/alarm"
	"github.com/vesselworks/spiritd/internal/anomaly"
	"github.com/vesselworks/spiritd/internal/sensors"
)

// State is the engine lifecycle state.
type State string

const (
	StateReady         State = "ready"
	StateMonitoring    State = "monitoring"
	StateEmergencyStop State = "emergency_stop"
)

// State transition errors. Control handlers map these to 409 responses.
var (
	ErrAlreadyMonitoring = errors.New("monitor: already monitoring")
	ErrNotMonitoring     = errors.New("monitor: not monitoring")
	ErrEmergencyStop     = errors.New("monitor: emergency stop engaged")
	ErrNotEmergencyStop  = errors.New("monitor: no emergency stop to reset")
)

// Status is a point-in-time snapshot of the engine.
type Status struct {
	State              State          `json:"state"`
	Cycle              uint64         `json:"cycle"`
	Risk               alarm.Risk     `json:"risk"`
	Action             anomaly.Action `json:"action"`
	ActiveAlarms       int            `json:"active_alarms"`
	PreventedIncidents uint64         `json:"prevented_incidents"`
	CostSavings        float64        `json:"cost_savings"`
	LastCycleAt        time.Time      `json:"last_cycle_at,omitempty"`
	LastError          string         `json:"last_error,omitempty"`
	StartedAt          time.Time      `json:"started_at"`
}

// SampleEvent is published on bus.TopicSamples after every cycle.
type SampleEvent struct {
	Sample sensors.Sample `json:"sample"`
	Risk   alarm.Risk     `json:"risk"`
	Result anomaly.Result `json:"result"`
}

// AlarmEvent is published on bus.TopicAlarms for every alarm transition.
type AlarmEvent struct {
	Alarm  alarm.Alarm `json:"alarm"`
	Raised bool        `json:"raised"`
}

// StateEvent is published on bus.TopicState for every state transition.
type StateEvent struct {
	Old State `json:"old"`
	New State `json:"new"`
}
