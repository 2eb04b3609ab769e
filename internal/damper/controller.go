// SPDX-License-Identifier: MIT

// Package damper implements the adaptive magnetorheological damper control
// law for the diesel generators.
package damper

import (
	"sync"

	"github.com/vesselworks/spiritd/internal/sensors"
)

// Force tiers in newtons. The controller steps the commanded force up with
// the measured vibration band and drops back to baseline when it clears.
const (
	ForceBaseline = 1000.0
	ForceElevated = 2000.0
	ForceMax      = 4000.0
)

// Vibration bands (mm/s RMS) that select the force tier.
const (
	bandElevated = 2.0
	bandMax      = 3.0
)

// Command is the damper output for one monitoring cycle.
type Command struct {
	Equipment sensors.Equipment `json:"equipment"`
	Force     float64           `json:"force"`
	Vibration float64           `json:"vibration"`
}

// Controller computes per-equipment damper commands. Only the diesel
// generators carry MR dampers; the pumps are monitored but not actuated.
type Controller struct {
	mu       sync.RWMutex
	last     map[sensors.Equipment]Command
	disabled bool
}

// NewController creates a controller with all dampers at baseline.
func NewController() *Controller {
	return &Controller{last: make(map[sensors.Equipment]Command)}
}

// forceFor maps a vibration reading to a force tier. preemptive lifts the
// floor to the elevated tier when the anomaly detector requests damping
// before a threshold is crossed.
func forceFor(vib float64, preemptive bool) float64 {
	switch {
	case vib > bandMax:
		return ForceMax
	case vib > bandElevated:
		return ForceElevated
	case preemptive:
		return ForceElevated
	}
	return ForceBaseline
}

// Update computes commands for the sample. During an emergency stop the
// controller is disabled and all forces are zero.
func (c *Controller) Update(smp sensors.Sample, preemptive bool) []Command {
	c.mu.Lock()
	defer c.mu.Unlock()

	cmds := make([]Command, 0, 2)
	for _, eq := range []sensors.Equipment{sensors.EquipmentDG1, sensors.EquipmentDG2} {
		vib := smp.Vibration.ByEquipment(eq)
		force := forceFor(vib, preemptive)
		if c.disabled {
			force = 0
		}
		cmd := Command{Equipment: eq, Force: force, Vibration: vib}
		c.last[eq] = cmd
		cmds = append(cmds, cmd)
	}
	return cmds
}

// SetDisabled switches actuation off (emergency stop) or back on.
func (c *Controller) SetDisabled(disabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disabled = disabled
	if disabled {
		for eq, cmd := range c.last {
			cmd.Force = 0
			c.last[eq] = cmd
		}
	}
}

// Commands returns the most recent command per equipment.
func (c *Controller) Commands() []Command {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Command, 0, len(c.last))
	for _, eq := range []sensors.Equipment{sensors.EquipmentDG1, sensors.EquipmentDG2} {
		if cmd, ok := c.last[eq]; ok {
			out = append(out, cmd)
		}
	}
	return out
}
