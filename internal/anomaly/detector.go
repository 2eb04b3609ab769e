// SPDX-License-Identifier: MIT

// Package anomaly implements a rolling z-score detector over a small
// feature vector drawn from each telemetry sample. It replaces a trained
// model with an online baseline: the first trainWindow samples establish
// per-feature mean and variance, after which a sample whose normalized
// distance exceeds the threshold is flagged.
package anomaly

import (
	"math"
	"sync"

	"github.com/vesselworks/spiritd/internal/sensors"
)

// Action is the recommendation attached to a detection result.
type Action string

const (
	ActionMonitoring Action = "MONITORING"
	ActionPreemptive Action = "PREEMPTIVE_DAMPING"
)

const featureCount = 4

// Result is the outcome of scoring one sample.
type Result struct {
	Anomaly    bool    `json:"anomaly"`
	Confidence float64 `json:"confidence"`
	Action     Action  `json:"action"`
	Training   bool    `json:"training"`
}

// Detector keeps Welford running statistics per feature. It never flags
// during its training window.
type Detector struct {
	mu        sync.Mutex
	window    int
	threshold float64
	n         int
	mean      [featureCount]float64
	m2        [featureCount]float64
}

// New creates a detector. window is the number of samples used to build the
// baseline; threshold is the mean absolute z-score above which a sample is
// anomalous.
func New(window int, threshold float64) *Detector {
	if window < 2 {
		window = 2
	}
	if threshold <= 0 {
		threshold = 3.0
	}
	return &Detector{window: window, threshold: threshold}
}

// features extracts the scored vector: hull stress, heel angle, DG1
// vibration and DG1 temperature.
func features(smp sensors.Sample) [featureCount]float64 {
	return [featureCount]float64{
		smp.Hull.Stress,
		smp.Hull.HeelAngle,
		smp.Vibration.DG1DE,
		smp.Thermal.DG1,
	}
}

// Score evaluates the sample and, while training, folds it into the
// baseline. Anomalous samples are not absorbed into the statistics so a
// sustained excursion keeps firing.
func (d *Detector) Score(smp sensors.Sample) Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	f := features(smp)

	if d.n < d.window {
		d.absorb(f)
		return Result{Action: ActionMonitoring, Training: true}
	}

	dist := d.distance(f)
	if dist >= d.threshold {
		// Confidence grows with distance beyond the threshold, capped at 1.
		conf := math.Min(1, (dist-d.threshold)/d.threshold+0.5)
		return Result{Anomaly: true, Confidence: conf, Action: ActionPreemptive}
	}

	d.absorb(f)
	return Result{Confidence: dist / d.threshold, Action: ActionMonitoring}
}

// absorb folds the vector into the running mean/variance (Welford).
func (d *Detector) absorb(f [featureCount]float64) {
	d.n++
	for i, v := range f {
		delta := v - d.mean[i]
		d.mean[i] += delta / float64(d.n)
		d.m2[i] += delta * (v - d.mean[i])
	}
}

// distance is the mean absolute z-score across features.
func (d *Detector) distance(f [featureCount]float64) float64 {
	var sum float64
	for i, v := range f {
		variance := d.m2[i] / float64(d.n-1)
		sd := math.Sqrt(variance)
		if sd < 1e-9 {
			sd = 1e-9
		}
		sum += math.Abs(v-d.mean[i]) / sd
	}
	return sum / featureCount
}

// Trained reports whether the baseline window is complete.
func (d *Detector) Trained() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.n >= d.window
}
