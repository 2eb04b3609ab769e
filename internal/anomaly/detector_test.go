// SPDX-License-Identifier: MIT
package anomaly

import (
	"math/rand"
	"testing"

	"github.com/vesselworks/spiritd/internal/sensors"
)

func baselineSample(rng *rand.Rand) sensors.Sample {
	return sensors.Sample{
		Hull: sensors.Hull{
			Stress:    25 + rng.NormFloat64()*2,
			HeelAngle: 0.3 + rng.NormFloat64()*0.1,
		},
		Vibration: sensors.Vibration{DG1DE: 1.2 + rng.NormFloat64()*0.2},
		Thermal:   sensors.Thermal{DG1: 85 + rng.NormFloat64()*3},
	}
}

func TestDetectorTrainingWindow(t *testing.T) {
	d := New(10, 3.0)
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 10; i++ {
		if d.Trained() {
			t.Fatalf("detector trained after %d samples, window is 10", i)
		}
		res := d.Score(baselineSample(rng))
		if !res.Training {
			t.Fatalf("sample %d: expected training result", i)
		}
		if res.Anomaly {
			t.Fatalf("sample %d: detector must not flag during training", i)
		}
		if res.Action != ActionMonitoring {
			t.Fatalf("sample %d: expected MONITORING, got %q", i, res.Action)
		}
	}
	if !d.Trained() {
		t.Fatal("detector not trained after full window")
	}
}

func TestDetectorFlagsExcursion(t *testing.T) {
	d := New(50, 3.0)
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 50; i++ {
		d.Score(baselineSample(rng))
	}

	normal := d.Score(baselineSample(rng))
	if normal.Anomaly {
		t.Fatalf("baseline sample flagged: %+v", normal)
	}
	if normal.Action != ActionMonitoring {
		t.Fatalf("expected MONITORING, got %q", normal.Action)
	}

	hot := baselineSample(rng)
	hot.Hull.Stress = 60
	hot.Vibration.DG1DE = 5.0
	hot.Thermal.DG1 = 120
	hot.Hull.HeelAngle = 3.0

	res := d.Score(hot)
	if !res.Anomaly {
		t.Fatalf("excursion not flagged: %+v", res)
	}
	if res.Action != ActionPreemptive {
		t.Fatalf("expected PREEMPTIVE_DAMPING, got %q", res.Action)
	}
	if res.Confidence <= 0 || res.Confidence > 1 {
		t.Fatalf("confidence out of range: %v", res.Confidence)
	}
}

func TestDetectorSustainedExcursionKeepsFiring(t *testing.T) {
	d := New(50, 3.0)
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 50; i++ {
		d.Score(baselineSample(rng))
	}

	hot := baselineSample(rng)
	hot.Hull.Stress = 60
	hot.Vibration.DG1DE = 5.0
	hot.Thermal.DG1 = 120
	hot.Hull.HeelAngle = 3.0

	// Anomalous samples are not absorbed, so the excursion cannot drag the
	// baseline towards itself.
	for i := 0; i < 20; i++ {
		if res := d.Score(hot); !res.Anomaly {
			t.Fatalf("excursion stopped firing at repeat %d", i)
		}
	}
}

func TestDetectorParameterFloors(t *testing.T) {
	d := New(0, -1)
	if d.window != 2 {
		t.Fatalf("expected window floor 2, got %d", d.window)
	}
	if d.threshold != 3.0 {
		t.Fatalf("expected default threshold 3.0, got %v", d.threshold)
	}
}
