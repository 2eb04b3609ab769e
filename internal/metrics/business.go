// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Telemetry gauges (last cycle)
	hullStress = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spiritd_hull_stress_percent",
		Help: "Hull stress as percent of allowable (last cycle)",
	})

	hullBendingMoment = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spiritd_hull_bending_moment_knm",
		Help: "Hull bending moment in kN*m (last cycle)",
	})

	hullShearForce = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spiritd_hull_shear_force_kn",
		Help: "Hull shear force in kN (last cycle)",
	})

	heelAngle = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spiritd_heel_angle_degrees",
		Help: "Vessel heel angle in degrees (last cycle)",
	})

	vibration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "spiritd_vibration_mms",
		Help: "Drive-end vibration velocity in mm/s RMS per equipment (last cycle)",
	}, []string{"equipment"})

	machineryTemp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "spiritd_machinery_temp_celsius",
		Help: "Machinery temperature in degrees Celsius (last cycle)",
	}, []string{"equipment"})

	damperForce = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "spiritd_damper_force_newtons",
		Help: "Commanded MR damper force in newtons per equipment",
	}, []string{"equipment"})

	// Cycle / engine metrics
	cyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spiritd_cycles_total",
		Help: "Total number of completed monitoring cycles",
	})

	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "spiritd_cycle_duration_seconds",
		Help:    "Monitoring cycle processing time in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	cycleFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spiritd_cycle_failures_total",
		Help: "Total number of cycle failures by stage",
	}, []string{"stage"}) // stage=acquire|persist|publish

	engineState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "spiritd_engine_state",
		Help: "Engine state as one-hot gauge (1 = current state)",
	}, []string{"state"}) // state=ready|monitoring|emergency_stop

	// Alarm metrics
	alarmsRaisedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spiritd_alarms_raised_total",
		Help: "Total alarms raised by severity",
	}, []string{"severity"})

	alarmsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spiritd_alarms_active",
		Help: "Number of currently active alarms",
	})

	// Anomaly metrics
	anomaliesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spiritd_anomalies_total",
		Help: "Total anomalous cycles flagged by the detector",
	})

	preventedIncidentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spiritd_prevented_incidents_total",
		Help: "Cycles where preemptive damping coincided with a warn-band reading",
	})

	// Bus metrics
	busDropsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spiritd_bus_drops_total",
		Help: "Messages dropped by the in-process bus by topic and reason",
	}, []string{"topic", "reason"})

	// Store metrics
	storeWriteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spiritd_store_write_errors_total",
		Help: "Persistence write failures by store",
	}, []string{"store"}) // store=badger|sqlite|report
)

// SetSample records the per-channel gauges for the latest sample.
func SetSample(stress, bending, shear, heel float64) {
	hullStress.Set(stress)
	hullBendingMoment.Set(bending)
	hullShearForce.Set(shear)
	heelAngle.Set(heel)
}

// SetVibration records the vibration gauge for one equipment.
func SetVibration(equipment string, v float64) {
	vibration.WithLabelValues(equipment).Set(v)
}

// SetMachineryTemp records the temperature gauge for one equipment.
func SetMachineryTemp(equipment string, v float64) {
	machineryTemp.WithLabelValues(equipment).Set(v)
}

// SetDamperForce records the commanded force for one equipment.
func SetDamperForce(equipment string, force float64) {
	damperForce.WithLabelValues(equipment).Set(force)
}

// IncCycle records a completed cycle and its duration.
func IncCycle(seconds float64) {
	cyclesTotal.Inc()
	cycleDuration.Observe(seconds)
}

// IncCycleFailure records a failed cycle stage.
func IncCycleFailure(stage string) {
	cycleFailuresTotal.WithLabelValues(stage).Inc()
}

// SetEngineState marks the current engine state as a one-hot gauge.
func SetEngineState(state string) {
	for _, s := range []string{"ready", "monitoring", "emergency_stop"} {
		v := 0.0
		if s == state {
			v = 1.0
		}
		engineState.WithLabelValues(s).Set(v)
	}
}

// IncAlarmRaised counts a raised alarm by severity.
func IncAlarmRaised(severity string) {
	alarmsRaisedTotal.WithLabelValues(severity).Inc()
}

// SetActiveAlarms records the size of the active alarm set.
func SetActiveAlarms(n int) {
	alarmsActive.Set(float64(n))
}

// IncAnomaly counts an anomalous cycle.
func IncAnomaly() {
	anomaliesTotal.Inc()
}

// IncPreventedIncident counts a prevented-incident cycle.
func IncPreventedIncident() {
	preventedIncidentsTotal.Inc()
}

// IncBusDropReason counts a dropped bus message.
func IncBusDropReason(topic, reason string) {
	busDropsTotal.WithLabelValues(topic, reason).Inc()
}

// IncStoreWriteError counts a persistence failure.
func IncStoreWriteError(store string) {
	storeWriteErrors.WithLabelValues(store).Inc()
}
