// SPDX-License-Identifier: MIT

package sensors

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Simulator generates plausible vessel telemetry. The model is deliberately
// simple: baseline values per channel, Gaussian noise, a slow degradation
// term that grows with the cycle count, a sinusoidal wave load on the hull
// and a heel-driven ballast shift between the port-1 and stbd-1 tanks.
type Simulator struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewSimulator creates a simulator with the given seed. The same seed yields
// the same sample stream, which the tests rely on.
func NewSimulator(seed int64) *Simulator {
	return &Simulator{
		rng: rand.New(rand.NewSource(seed)),
		now: time.Now,
	}
}

// degradationPerCycle controls how quickly simulated wear accumulates.
// Capped at 1.0 after 1000 cycles.
const degradationPerCycle = 0.001

// Next implements Source.
func (s *Simulator) Next(ctx context.Context, cycle uint64) (Sample, error) {
	if err := ctx.Err(); err != nil {
		return Sample{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deg := math.Min(1.0, float64(cycle)*degradationPerCycle)
	waveEffect := math.Sin(float64(cycle)*0.1) * 5
	cargoEffect := s.rng.NormFloat64() * 3

	smp := Sample{
		Seq:       cycle,
		Timestamp: s.now(),
		Hull: Hull{
			TrimAngle:      0.5 + s.rng.NormFloat64()*0.3 + deg*0.3,
			HeelAngle:      0.3 + s.rng.NormFloat64()*0.2 + deg*0.2,
			DraftForward:   18.5 + s.rng.NormFloat64()*0.2,
			DraftAft:       18.2 + s.rng.NormFloat64()*0.2,
			Stress:         25 + waveEffect + cargoEffect + deg*10,
			BendingMoment:  1200 + s.rng.NormFloat64()*100 + deg*150,
			ShearForce:     800 + s.rng.NormFloat64()*80 + deg*100,
			HoggingSagging: math.Sin(float64(cycle)*0.05) * 50,
		},
		Vibration: Vibration{
			DG1DE:       1.2 + s.rng.NormFloat64()*0.3 + deg*0.5,
			DG2DE:       1.5 + s.rng.NormFloat64()*0.4 + deg*0.6,
			CargoPump:   2.1 + s.rng.NormFloat64()*0.5 + deg*0.8,
			BallastPump: 1.8 + s.rng.NormFloat64()*0.4 + deg*0.7,
		},
		Thermal: Thermal{
			DG1:       85 + s.rng.NormFloat64()*5 + deg*10,
			DG2:       82 + s.rng.NormFloat64()*6 + deg*8,
			CargoPump: 88 + s.rng.NormFloat64()*7 + deg*12,
		},
		CargoTemps: [6]float64{
			42 + s.rng.NormFloat64()*2,
			43 + s.rng.NormFloat64()*2,
			41 + s.rng.NormFloat64()*2,
			44 + s.rng.NormFloat64()*2,
			42.5 + s.rng.NormFloat64()*2,
			43.5 + s.rng.NormFloat64()*2,
		},
		Ballast: Ballast{
			Port1:    60 + s.rng.NormFloat64()*8,
			Port2:    55 + s.rng.NormFloat64()*8,
			Stbd1:    61 + s.rng.NormFloat64()*8,
			Stbd2:    56 + s.rng.NormFloat64()*8,
			Forepeak: 70 + s.rng.NormFloat64()*5,
		},
		IGS: IGS{
			O2Tank1:  2.0 + s.rng.NormFloat64()*0.3,
			Pressure: 0.15 + s.rng.NormFloat64()*0.02,
		},
	}

	// Heel shifts ballast from port to starboard.
	heelEffect := smp.Hull.HeelAngle * 2
	smp.Ballast.Port1 = clamp(smp.Ballast.Port1-heelEffect, 0, 100)
	smp.Ballast.Stbd1 = clamp(smp.Ballast.Stbd1+heelEffect, 0, 100)

	return smp, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
