// SPDX-License-Identifier: MIT

// Package alarm evaluates telemetry samples against threshold tables and
// tracks active alarm state across monitoring cycles.
package alarm

import (
	"fmt"

	"github.com/vesselworks/spiritd/internal/sensors"
)

// Severity classifies an alarm.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Threshold holds a warn/critical limit pair for one channel class.
type Threshold struct {
	Warn     float64 `yaml:"warn" json:"warn"`
	Critical float64 `yaml:"critical" json:"critical"`
}

// Classify returns the severity for a reading, or "" when in the normal band.
func (t Threshold) Classify(v float64) Severity {
	switch {
	case v >= t.Critical:
		return SeverityCritical
	case v >= t.Warn:
		return SeverityWarning
	}
	return ""
}

// Thresholds is the complete alarm limit table. The defaults mirror the
// vessel's operating envelope; a YAML overlay can replace individual limits.
type Thresholds struct {
	Vibration     Threshold `yaml:"vibration" json:"vibration"`           // mm/s RMS
	CargoTemp     Threshold `yaml:"cargo_temp" json:"cargo_temp"`         // degrees C
	MachineryTemp Threshold `yaml:"machinery_temp" json:"machinery_temp"` // degrees C
	BendingMoment Threshold `yaml:"bending_moment" json:"bending_moment"` // kN*m
	ShearForce    Threshold `yaml:"shear_force" json:"shear_force"`       // kN
	HullStress    Threshold `yaml:"hull_stress" json:"hull_stress"`       // percent
	IGSO2         Threshold `yaml:"igs_o2" json:"igs_o2"`                 // percent
}

// Defaults returns the stock threshold table.
func Defaults() Thresholds {
	return Thresholds{
		Vibration:     Threshold{Warn: 2.0, Critical: 4.0},
		CargoTemp:     Threshold{Warn: 45, Critical: 55},
		MachineryTemp: Threshold{Warn: 95, Critical: 105},
		BendingMoment: Threshold{Warn: 1400, Critical: 1600},
		ShearForce:    Threshold{Warn: 1000, Critical: 1200},
		HullStress:    Threshold{Warn: 35, Critical: 45},
		IGSO2:         Threshold{Warn: 5, Critical: 8},
	}
}

// Validate rejects tables where a warn limit is not below its critical limit.
func (t Thresholds) Validate() error {
	check := func(name string, th Threshold) error {
		if th.Warn >= th.Critical {
			return fmt.Errorf("threshold %s: warn %.2f must be below critical %.2f", name, th.Warn, th.Critical)
		}
		return nil
	}
	for _, c := range []struct {
		name string
		th   Threshold
	}{
		{"vibration", t.Vibration},
		{"cargo_temp", t.CargoTemp},
		{"machinery_temp", t.MachineryTemp},
		{"bending_moment", t.BendingMoment},
		{"shear_force", t.ShearForce},
		{"hull_stress", t.HullStress},
		{"igs_o2", t.IGSO2},
	} {
		if err := check(c.name, c.th); err != nil {
			return err
		}
	}
	return nil
}

// Reading is one channel value paired with the threshold that governs it.
type Reading struct {
	Channel   string
	Value     float64
	Threshold Threshold
}

// Readings flattens a sample into the channels covered by the alarm table.
func Readings(smp sensors.Sample, t Thresholds) []Reading {
	out := []Reading{
		{Channel: "vibration.dg1_de", Value: smp.Vibration.DG1DE, Threshold: t.Vibration},
		{Channel: "vibration.dg2_de", Value: smp.Vibration.DG2DE, Threshold: t.Vibration},
		{Channel: "vibration.cargo_pump", Value: smp.Vibration.CargoPump, Threshold: t.Vibration},
		{Channel: "vibration.ballast_pump", Value: smp.Vibration.BallastPump, Threshold: t.Vibration},
		{Channel: "thermal.dg1", Value: smp.Thermal.DG1, Threshold: t.MachineryTemp},
		{Channel: "thermal.dg2", Value: smp.Thermal.DG2, Threshold: t.MachineryTemp},
		{Channel: "thermal.cargo_pump", Value: smp.Thermal.CargoPump, Threshold: t.MachineryTemp},
		{Channel: "hull.stress", Value: smp.Hull.Stress, Threshold: t.HullStress},
		{Channel: "hull.bending_moment", Value: smp.Hull.BendingMoment, Threshold: t.BendingMoment},
		{Channel: "hull.shear_force", Value: smp.Hull.ShearForce, Threshold: t.ShearForce},
		{Channel: "igs.o2_tank1", Value: smp.IGS.O2Tank1, Threshold: t.IGSO2},
	}
	for i, temp := range smp.CargoTemps {
		out = append(out, Reading{
			Channel:   fmt.Sprintf("cargo.tank%d_temp", i+1),
			Value:     temp,
			Threshold: t.CargoTemp,
		})
	}
	return out
}
