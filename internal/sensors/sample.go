// SPDX-License-Identifier: MIT

// Package sensors defines the telemetry sample model and the sources that
// produce samples. The default source is a physics-flavoured simulator; a
// hardware acquisition layer can replace it behind the Source interface.
package sensors

import (
	"context"
	"time"
)

// Equipment identifies a monitored rotating machine.
type Equipment string

const (
	EquipmentDG1         Equipment = "dg1"
	EquipmentDG2         Equipment = "dg2"
	EquipmentCargoPump   Equipment = "cargo_pump"
	EquipmentBallastPump Equipment = "ballast_pump"
)

// Hull carries the structural readings of a sample.
type Hull struct {
	TrimAngle      float64 `json:"trim_angle"`      // degrees
	HeelAngle      float64 `json:"heel_angle"`      // degrees
	DraftForward   float64 `json:"draft_forward"`   // metres
	DraftAft       float64 `json:"draft_aft"`       // metres
	Stress         float64 `json:"stress"`          // percent of allowable
	BendingMoment  float64 `json:"bending_moment"`  // kN*m
	ShearForce     float64 `json:"shear_force"`     // kN
	HoggingSagging float64 `json:"hogging_sagging"` // kN*m, positive hogging
}

// Vibration carries drive-end vibration velocity per machine in mm/s RMS.
type Vibration struct {
	DG1DE       float64 `json:"dg1_de"`
	DG2DE       float64 `json:"dg2_de"`
	CargoPump   float64 `json:"cargo_pump"`
	BallastPump float64 `json:"ballast_pump"`
}

// ByEquipment returns the reading for the given machine.
func (v Vibration) ByEquipment(eq Equipment) float64 {
	switch eq {
	case EquipmentDG1:
		return v.DG1DE
	case EquipmentDG2:
		return v.DG2DE
	case EquipmentCargoPump:
		return v.CargoPump
	case EquipmentBallastPump:
		return v.BallastPump
	}
	return 0
}

// Thermal carries machinery temperatures in degrees Celsius.
type Thermal struct {
	DG1       float64 `json:"dg1"`
	DG2       float64 `json:"dg2"`
	CargoPump float64 `json:"cargo_pump"`
}

// Ballast carries tank fill levels in percent.
type Ballast struct {
	Port1    float64 `json:"port_1"`
	Port2    float64 `json:"port_2"`
	Stbd1    float64 `json:"stbd_1"`
	Stbd2    float64 `json:"stbd_2"`
	Forepeak float64 `json:"forepeak"`
}

// IGS carries inert gas system readings.
type IGS struct {
	O2Tank1  float64 `json:"o2_tank1"` // percent
	Pressure float64 `json:"pressure"` // bar
}

// Dampers carries commanded magnetorheological damper forces in newtons.
type Dampers struct {
	DG1 float64 `json:"dg1"`
	DG2 float64 `json:"dg2"`
}

// Sample is one complete acquisition across all monitored systems.
type Sample struct {
	Seq        uint64     `json:"seq"`
	Timestamp  time.Time  `json:"timestamp"`
	Hull       Hull       `json:"hull"`
	Vibration  Vibration  `json:"vibration"`
	Thermal    Thermal    `json:"thermal"`
	CargoTemps [6]float64 `json:"cargo_temps"` // six cargo tanks, degrees C
	Ballast    Ballast    `json:"ballast"`
	IGS        IGS        `json:"igs"`
	Dampers    Dampers    `json:"dampers"`
}

// Source produces telemetry samples, one per monitoring cycle.
type Source interface {
	// Next returns the sample for the given cycle number.
	Next(ctx context.Context, cycle uint64) (Sample, error)
}
