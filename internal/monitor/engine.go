// SPDX-License-Identifier: MIT

// Package monitor runs the periodic monitoring cycle: acquire a sample,
// evaluate alarms, drive the damper controller, score the anomaly detector,
// persist and publish. It also owns the ready/monitoring/emergency-stop
// state machine.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vesselworks/spiritd/internal/alarm"
	"github.com/vesselworks/spiritd/internal/anomaly"
	"github.com/vesselworks/spiritd/internal/bus"
	"github.com/vesselworks/spiritd/internal/damper"
	spdlog "github.com/vesselworks/spiritd/internal/log"
	"github.com/vesselworks/spiritd/internal/metrics"
	"github.com/vesselworks/spiritd/internal/sensors"
	"github.com/vesselworks/spiritd/internal/store"
)

// SampleStore is the persistence surface the engine needs.
type SampleStore interface {
	PutSample(ctx context.Context, smp sensors.Sample) error
	Counters(ctx context.Context) (store.Counters, error)
	PutCounters(ctx context.Context, c store.Counters) error
}

// IncidentRecorder archives alarm transitions.
type IncidentRecorder interface {
	Record(ctx context.Context, tr alarm.Transition) error
}

// Config holds the engine tunables.
type Config struct {
	Period       time.Duration
	HistorySize  int
	IncidentCost float64 // USD credited per prevented incident

	// Anomaly detector tunables; zero values pick the defaults.
	AnomalyWindow    int
	AnomalyThreshold float64

	// Thresholds returns the current alarm table; hot-reloadable.
	Thresholds func() alarm.Thresholds
}

// Engine coordinates one monitoring pipeline.
type Engine struct {
	cfg       Config
	source    sensors.Source
	registry  *alarm.Registry
	ctrl      *damper.Controller
	detector  *anomaly.Detector
	samples   SampleStore
	incidents IncidentRecorder
	bus       bus.Bus

	mu       sync.RWMutex
	state    State
	status   Status
	history  []sensors.Sample // ring, newest last
	counters store.Counters
}

// New wires an engine. incidents may be nil when archival is disabled.
func New(cfg Config, source sensors.Source, samples SampleStore, incidents IncidentRecorder, b bus.Bus) (*Engine, error) {
	if cfg.Period <= 0 {
		return nil, fmt.Errorf("monitor: period must be positive")
	}
	if cfg.HistorySize <= 0 {
		return nil, fmt.Errorf("monitor: history size must be positive")
	}
	if cfg.Thresholds == nil {
		defaults := alarm.Defaults()
		cfg.Thresholds = func() alarm.Thresholds { return defaults }
	}
	if cfg.AnomalyWindow == 0 {
		cfg.AnomalyWindow = 120
	}
	if cfg.AnomalyThreshold == 0 {
		cfg.AnomalyThreshold = 3.0
	}

	e := &Engine{
		cfg:       cfg,
		source:    source,
		registry:  alarm.NewRegistry(),
		ctrl:      damper.NewController(),
		detector:  anomaly.New(cfg.AnomalyWindow, cfg.AnomalyThreshold),
		samples:   samples,
		incidents: incidents,
		bus:       b,
		state:     StateReady,
		status: Status{
			State:     StateReady,
			Risk:      alarm.RiskLow,
			Action:    anomaly.ActionMonitoring,
			StartedAt: time.Now(),
		},
	}
	metrics.SetEngineState(string(StateReady))
	return e, nil
}

// SetDetector replaces the default anomaly detector, for custom windows.
func (e *Engine) SetDetector(d *anomaly.Detector) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.detector = d
}

// Run drives the cycle loop until ctx is cancelled. Cycles execute only
// while the engine is in the monitoring state.
func (e *Engine) Run(ctx context.Context) error {
	logger := spdlog.WithComponentFromContext(ctx, "monitor")

	// Restore counters so prevented-incident figures survive restarts.
	if e.samples != nil {
		if c, err := e.samples.Counters(ctx); err == nil {
			e.mu.Lock()
			e.counters = c
			e.status.Cycle = c.Cycles
			e.status.PreventedIncidents = c.PreventedIncidents
			e.status.CostSavings = c.CostSavings
			e.mu.Unlock()
		} else if ctx.Err() == nil {
			logger.Warn().Err(err).Str("event", "engine.counters_restore_failed").Msg("starting with zero counters")
		}
	}

	ticker := time.NewTicker(e.cfg.Period)
	defer ticker.Stop()

	logger.Info().
		Str("event", "engine.run").
		Dur("period", e.cfg.Period).
		Msg("monitoring engine running")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Str("event", "engine.stopped").Msg("monitoring engine stopped")
			return ctx.Err()
		case <-ticker.C:
			if e.CurrentState() != StateMonitoring {
				continue
			}
			e.runCycle(ctx)
		}
	}
}

// runCycle executes one acquisition/evaluation pass. Persistence failures
// degrade the cycle but never abort it.
func (e *Engine) runCycle(ctx context.Context) {
	started := time.Now()

	e.mu.Lock()
	cycle := e.counters.Cycles
	e.mu.Unlock()

	cctx := spdlog.ContextWithCycleID(ctx, fmt.Sprintf("%d", cycle))
	logger := spdlog.WithComponentFromContext(cctx, "monitor")

	smp, err := e.source.Next(cctx, cycle)
	if err != nil {
		metrics.IncCycleFailure("acquire")
		e.setLastError(fmt.Errorf("acquire sample: %w", err))
		logger.Error().Err(err).Str("event", "cycle.acquire_failed").Msg("sample acquisition failed")
		return
	}

	thresholds := e.cfg.Thresholds()
	transitions := e.registry.Evaluate(smp, thresholds)
	result := e.detector.Score(smp)
	cmds := e.ctrl.Update(smp, result.Action == anomaly.ActionPreemptive)

	for _, cmd := range cmds {
		switch cmd.Equipment {
		case sensors.EquipmentDG1:
			smp.Dampers.DG1 = cmd.Force
		case sensors.EquipmentDG2:
			smp.Dampers.DG2 = cmd.Force
		}
		metrics.SetDamperForce(string(cmd.Equipment), cmd.Force)
	}

	active := e.registry.Active()
	prevented := result.Action == anomaly.ActionPreemptive && anyWarning(active)
	if prevented {
		metrics.IncPreventedIncident()
	}
	risk := e.registry.Risk(result.Anomaly)

	e.mu.Lock()
	e.counters.Cycles++
	if prevented {
		e.counters.PreventedIncidents++
		e.counters.CostSavings += e.cfg.IncidentCost
	}
	counters := e.counters
	e.history = append(e.history, smp)
	if len(e.history) > e.cfg.HistorySize {
		e.history = e.history[len(e.history)-e.cfg.HistorySize:]
	}
	e.status.Cycle = counters.Cycles
	e.status.Risk = risk
	e.status.Action = result.Action
	e.status.ActiveAlarms = len(active)
	e.status.PreventedIncidents = counters.PreventedIncidents
	e.status.CostSavings = counters.CostSavings
	e.status.LastCycleAt = smp.Timestamp
	e.status.LastError = ""
	e.mu.Unlock()

	e.persist(cctx, logger, smp, counters, transitions)
	e.publish(cctx, logger, smp, risk, result, transitions)
	e.observe(smp, transitions, active, result, started)

	if len(transitions) > 0 || result.Anomaly {
		logger.Info().
			Str("event", "cycle.complete").
			Uint64("cycle", smp.Seq).
			Str("risk", string(risk)).
			Str("action", string(result.Action)).
			Int("transitions", len(transitions)).
			Bool("anomaly", result.Anomaly).
			Msg("monitoring cycle completed")
	}
}

func anyWarning(active []alarm.Alarm) bool {
	for _, a := range active {
		if a.Severity == alarm.SeverityWarning {
			return true
		}
	}
	return false
}

// persist writes the sample, counters and incident rows. Failures are
// logged and counted but monitoring continues.
func (e *Engine) persist(ctx context.Context, logger zerolog.Logger, smp sensors.Sample, counters store.Counters, transitions []alarm.Transition) {
	if e.samples != nil {
		if err := e.samples.PutSample(ctx, smp); err != nil {
			metrics.IncCycleFailure("persist")
			metrics.IncStoreWriteError("badger")
			logger.Error().Err(err).Str("event", "cycle.persist_failed").Uint64("cycle", smp.Seq).Msg("sample persistence failed")
		}
		if err := e.samples.PutCounters(ctx, counters); err != nil {
			metrics.IncStoreWriteError("badger")
			logger.Error().Err(err).Str("event", "cycle.counters_persist_failed").Msg("counter persistence failed")
		}
	}
	if e.incidents != nil {
		for _, tr := range transitions {
			if err := e.incidents.Record(ctx, tr); err != nil {
				metrics.IncStoreWriteError("sqlite")
				logger.Error().Err(err).
					Str("event", "cycle.incident_record_failed").
					Str("alarm_id", tr.Alarm.ID).
					Str("channel", tr.Alarm.Channel).
					Msg("incident archive write failed")
			}
		}
	}
}

// publish pushes the cycle's events onto the bus with a short deadline so a
// stalled subscriber cannot block the loop.
func (e *Engine) publish(ctx context.Context, logger zerolog.Logger, smp sensors.Sample, risk alarm.Risk, result anomaly.Result, transitions []alarm.Transition) {
	if e.bus == nil {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := e.bus.Publish(pctx, bus.TopicSamples, SampleEvent{Sample: smp, Risk: risk, Result: result}); err != nil {
		metrics.IncCycleFailure("publish")
		logger.Warn().Err(err).Str("event", "cycle.publish_failed").Msg("sample event publish failed")
	}
	for _, tr := range transitions {
		if err := e.bus.Publish(pctx, bus.TopicAlarms, AlarmEvent{Alarm: tr.Alarm, Raised: tr.Raised}); err != nil {
			metrics.IncCycleFailure("publish")
			logger.Warn().Err(err).Str("event", "cycle.publish_failed").Msg("alarm event publish failed")
		}
	}
}

// observe updates the Prometheus gauges and counters for the cycle.
func (e *Engine) observe(smp sensors.Sample, transitions []alarm.Transition, active []alarm.Alarm, result anomaly.Result, started time.Time) {
	metrics.SetSample(smp.Hull.Stress, smp.Hull.BendingMoment, smp.Hull.ShearForce, smp.Hull.HeelAngle)
	metrics.SetVibration(string(sensors.EquipmentDG1), smp.Vibration.DG1DE)
	metrics.SetVibration(string(sensors.EquipmentDG2), smp.Vibration.DG2DE)
	metrics.SetVibration(string(sensors.EquipmentCargoPump), smp.Vibration.CargoPump)
	metrics.SetVibration(string(sensors.EquipmentBallastPump), smp.Vibration.BallastPump)
	metrics.SetMachineryTemp(string(sensors.EquipmentDG1), smp.Thermal.DG1)
	metrics.SetMachineryTemp(string(sensors.EquipmentDG2), smp.Thermal.DG2)
	metrics.SetMachineryTemp(string(sensors.EquipmentCargoPump), smp.Thermal.CargoPump)
	metrics.SetActiveAlarms(len(active))
	for _, tr := range transitions {
		if tr.Raised {
			metrics.IncAlarmRaised(string(tr.Alarm.Severity))
		}
	}
	if result.Anomaly {
		metrics.IncAnomaly()
	}
	metrics.IncCycle(time.Since(started).Seconds())
}

func (e *Engine) setLastError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.LastError = err.Error()
}

// CurrentState returns the engine state.
func (e *Engine) CurrentState() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Status returns a snapshot of the engine status.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st := e.status
	st.State = e.state
	return st
}

// History returns up to n recent samples, newest first.
func (e *Engine) History(n int) []sensors.Sample {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if n <= 0 || n > len(e.history) {
		n = len(e.history)
	}
	out := make([]sensors.Sample, 0, n)
	for i := len(e.history) - 1; i >= len(e.history)-n; i-- {
		out = append(out, e.history[i])
	}
	return out
}

// Latest returns the most recent sample, if any.
func (e *Engine) Latest() (sensors.Sample, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.history) == 0 {
		return sensors.Sample{}, false
	}
	return e.history[len(e.history)-1], true
}

// ActiveAlarms returns the current alarm set.
func (e *Engine) ActiveAlarms() []alarm.Alarm {
	return e.registry.Active()
}

// DamperCommands returns the most recent damper commands.
func (e *Engine) DamperCommands() []damper.Command {
	return e.ctrl.Commands()
}

// Start transitions ready -> monitoring.
func (e *Engine) Start(ctx context.Context) error {
	return e.transition(ctx, func(s State) (State, error) {
		switch s {
		case StateMonitoring:
			return s, ErrAlreadyMonitoring
		case StateEmergencyStop:
			return s, ErrEmergencyStop
		}
		return StateMonitoring, nil
	})
}

// Stop transitions monitoring -> ready.
func (e *Engine) Stop(ctx context.Context) error {
	return e.transition(ctx, func(s State) (State, error) {
		if s != StateMonitoring {
			return s, ErrNotMonitoring
		}
		return StateReady, nil
	})
}

// EmergencyStop halts monitoring from any state and zeroes the dampers.
func (e *Engine) EmergencyStop(ctx context.Context) error {
	err := e.transition(ctx, func(s State) (State, error) {
		return StateEmergencyStop, nil
	})
	if err == nil {
		e.ctrl.SetDisabled(true)
	}
	return err
}

// Reset transitions emergency_stop -> ready and re-enables the dampers.
func (e *Engine) Reset(ctx context.Context) error {
	err := e.transition(ctx, func(s State) (State, error) {
		if s != StateEmergencyStop {
			return s, ErrNotEmergencyStop
		}
		return StateReady, nil
	})
	if err == nil {
		e.ctrl.SetDisabled(false)
	}
	return err
}

func (e *Engine) transition(ctx context.Context, next func(State) (State, error)) error {
	e.mu.Lock()
	old := e.state
	nxt, err := next(old)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.state = nxt
	e.mu.Unlock()

	metrics.SetEngineState(string(nxt))
	logger := spdlog.WithComponentFromContext(ctx, "monitor")
	logger.Info().
		Str("event", "engine.state_change").
		Str("old_state", string(old)).
		Str("new_state", string(nxt)).
		Msg("engine state changed")

	if e.bus != nil {
		pctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := e.bus.Publish(pctx, bus.TopicState, StateEvent{Old: old, New: nxt}); err != nil {
			metrics.IncCycleFailure("publish")
		}
	}
	return nil
}
