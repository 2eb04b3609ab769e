// SPDX-License-Identifier: MIT
package sensors

import (
	"context"
	"math"
	"testing"
)

func TestSimulatorDeterministic(t *testing.T) {
	a := NewSimulator(42)
	b := NewSimulator(42)

	for cycle := uint64(0); cycle < 20; cycle++ {
		sa, err := a.Next(context.Background(), cycle)
		if err != nil {
			t.Fatalf("Next(%d): %v", cycle, err)
		}
		sb, err := b.Next(context.Background(), cycle)
		if err != nil {
			t.Fatalf("Next(%d): %v", cycle, err)
		}
		if sa.Hull.Stress != sb.Hull.Stress {
			t.Fatalf("cycle %d: hull stress diverged: %v vs %v", cycle, sa.Hull.Stress, sb.Hull.Stress)
		}
		if sa.Vibration.DG1DE != sb.Vibration.DG1DE {
			t.Fatalf("cycle %d: vibration diverged: %v vs %v", cycle, sa.Vibration.DG1DE, sb.Vibration.DG1DE)
		}
	}
}

func TestSimulatorSequenceNumbers(t *testing.T) {
	sim := NewSimulator(1)
	for cycle := uint64(0); cycle < 5; cycle++ {
		smp, err := sim.Next(context.Background(), cycle)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if smp.Seq != cycle {
			t.Fatalf("expected seq %d, got %d", cycle, smp.Seq)
		}
		if smp.Timestamp.IsZero() {
			t.Fatal("expected non-zero timestamp")
		}
	}
}

func TestSimulatorHoggingSaggingWave(t *testing.T) {
	sim := NewSimulator(7)
	// sin(cycle*0.05)*50 is deterministic and independent of the RNG.
	for _, cycle := range []uint64{0, 10, 31, 200} {
		smp, err := sim.Next(context.Background(), cycle)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		want := math.Sin(float64(cycle)*0.05) * 50
		if smp.Hull.HoggingSagging != want {
			t.Fatalf("cycle %d: hogging/sagging = %v, want %v", cycle, smp.Hull.HoggingSagging, want)
		}
	}
}

func TestSimulatorBallastClamped(t *testing.T) {
	sim := NewSimulator(99)
	for cycle := uint64(0); cycle < 200; cycle++ {
		smp, err := sim.Next(context.Background(), cycle)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		for name, level := range map[string]float64{
			"port_1": smp.Ballast.Port1,
			"stbd_1": smp.Ballast.Stbd1,
		} {
			if level < 0 || level > 100 {
				t.Fatalf("cycle %d: %s out of range: %v", cycle, name, level)
			}
		}
		for i, temp := range smp.CargoTemps {
			if math.IsNaN(temp) {
				t.Fatalf("cycle %d: cargo tank %d temperature is NaN", cycle, i+1)
			}
		}
	}
}

func TestSimulatorContextCancelled(t *testing.T) {
	sim := NewSimulator(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sim.Next(ctx, 0); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestVibrationByEquipment(t *testing.T) {
	v := Vibration{DG1DE: 1.5, DG2DE: 2.5, CargoPump: 0.5, BallastPump: 0.7}
	cases := []struct {
		eq   Equipment
		want float64
	}{
		{EquipmentDG1, 1.5},
		{EquipmentDG2, 2.5},
		{EquipmentCargoPump, 0.5},
		{EquipmentBallastPump, 0.7},
		{Equipment("unknown"), 0},
	}
	for _, tc := range cases {
		if got := v.ByEquipment(tc.eq); got != tc.want {
			t.Errorf("ByEquipment(%q) = %v, want %v", tc.eq, got, tc.want)
		}
	}
}
