// SPDX-License-Identifier: MIT
package damper

import (
	"testing"

	"github.com/vesselworks/spiritd/internal/sensors"
)

func sampleWithVibration(dg1, dg2 float64) sensors.Sample {
	return sensors.Sample{
		Vibration: sensors.Vibration{DG1DE: dg1, DG2DE: dg2, CargoPump: 5.0, BallastPump: 5.0},
	}
}

func TestForceTiers(t *testing.T) {
	cases := []struct {
		name       string
		vib        float64
		preemptive bool
		want       float64
	}{
		{"calm", 1.0, false, ForceBaseline},
		{"elevated band", 2.5, false, ForceElevated},
		{"max band", 3.5, false, ForceMax},
		{"band boundary low", 2.0, false, ForceBaseline},
		{"band boundary high", 3.0, false, ForceElevated},
		{"preemptive lifts floor", 1.0, true, ForceElevated},
		{"preemptive does not cap", 3.5, true, ForceMax},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := forceFor(tc.vib, tc.preemptive); got != tc.want {
				t.Fatalf("forceFor(%v, %v) = %v, want %v", tc.vib, tc.preemptive, got, tc.want)
			}
		})
	}
}

func TestUpdateCommandsGeneratorsOnly(t *testing.T) {
	c := NewController()
	cmds := c.Update(sampleWithVibration(1.0, 3.5), false)
	if len(cmds) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(cmds))
	}
	if cmds[0].Equipment != sensors.EquipmentDG1 || cmds[0].Force != ForceBaseline {
		t.Fatalf("dg1: %+v", cmds[0])
	}
	if cmds[1].Equipment != sensors.EquipmentDG2 || cmds[1].Force != ForceMax {
		t.Fatalf("dg2: %+v", cmds[1])
	}
}

func TestDisabledZeroesForces(t *testing.T) {
	c := NewController()
	c.Update(sampleWithVibration(3.5, 3.5), false)

	c.SetDisabled(true)
	for _, cmd := range c.Commands() {
		if cmd.Force != 0 {
			t.Fatalf("expected zero force while disabled, got %+v", cmd)
		}
	}

	// Updates while disabled also command zero.
	cmds := c.Update(sampleWithVibration(3.5, 3.5), true)
	for _, cmd := range cmds {
		if cmd.Force != 0 {
			t.Fatalf("expected zero force while disabled, got %+v", cmd)
		}
	}

	c.SetDisabled(false)
	cmds = c.Update(sampleWithVibration(3.5, 1.0), false)
	if cmds[0].Force != ForceMax {
		t.Fatalf("expected force restored after enable, got %+v", cmds[0])
	}
}

func TestCommandsStableOrder(t *testing.T) {
	c := NewController()
	c.Update(sampleWithVibration(1.0, 1.0), false)
	cmds := c.Commands()
	if len(cmds) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(cmds))
	}
	if cmds[0].Equipment != sensors.EquipmentDG1 || cmds[1].Equipment != sensors.EquipmentDG2 {
		t.Fatalf("unexpected order: %+v", cmds)
	}
}
