// SPDX-License-Identifier: MIT
package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/vesselworks/spiritd/internal/alarm"
	"github.com/vesselworks/spiritd/internal/anomaly"
	"github.com/vesselworks/spiritd/internal/bus"
	"github.com/vesselworks/spiritd/internal/sensors"
	"github.com/vesselworks/spiritd/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// memStore is an in-memory SampleStore for engine tests.
type memStore struct {
	mu       sync.Mutex
	samples  map[uint64]sensors.Sample
	counters store.Counters
	putErr   error
}

func newMemStore() *memStore {
	return &memStore{samples: make(map[uint64]sensors.Sample)}
}

func (m *memStore) PutSample(ctx context.Context, smp sensors.Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.samples[smp.Seq] = smp
	return nil
}

func (m *memStore) Counters(ctx context.Context) (store.Counters, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters, nil
}

func (m *memStore) PutCounters(ctx context.Context, c store.Counters) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = c
	return nil
}

type memIncidents struct {
	mu  sync.Mutex
	trs []alarm.Transition
}

func (m *memIncidents) Record(ctx context.Context, tr alarm.Transition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trs = append(m.trs, tr)
	return nil
}

func (m *memIncidents) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.trs)
}

// scriptedSource replays a fixed sample per cycle.
type scriptedSource struct {
	mu      sync.Mutex
	current sensors.Sample
	err     error
}

func (s *scriptedSource) set(smp sensors.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = smp
}

func (s *scriptedSource) Next(ctx context.Context, cycle uint64) (sensors.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return sensors.Sample{}, s.err
	}
	smp := s.current
	smp.Seq = cycle
	smp.Timestamp = time.Now()
	return smp, nil
}

func calmSample() sensors.Sample {
	return sensors.Sample{
		Hull:       sensors.Hull{Stress: 25, BendingMoment: 1200, ShearForce: 800, HeelAngle: 0.3},
		Vibration:  sensors.Vibration{DG1DE: 1.2, DG2DE: 1.5, CargoPump: 2.1, BallastPump: 1.8},
		Thermal:    sensors.Thermal{DG1: 85, DG2: 82, CargoPump: 88},
		CargoTemps: [6]float64{42, 43, 41, 44, 42.5, 43.5},
		IGS:        sensors.IGS{O2Tank1: 2.0},
	}
}

func newTestEngine(t *testing.T, src sensors.Source, st SampleStore, inc IncidentRecorder, b bus.Bus) *Engine {
	t.Helper()
	e, err := New(Config{
		Period:       10 * time.Millisecond,
		HistorySize:  5,
		IncidentCost: 250000,
	}, src, st, inc, b)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestNewValidates(t *testing.T) {
	src := &scriptedSource{}
	if _, err := New(Config{Period: 0, HistorySize: 5}, src, nil, nil, nil); err == nil {
		t.Fatal("expected error for zero period")
	}
	if _, err := New(Config{Period: time.Second, HistorySize: 0}, src, nil, nil, nil); err == nil {
		t.Fatal("expected error for zero history size")
	}
}

func TestStateMachine(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, &scriptedSource{current: calmSample()}, nil, nil, nil)

	if e.CurrentState() != StateReady {
		t.Fatalf("initial state = %q", e.CurrentState())
	}
	if err := e.Stop(ctx); !errors.Is(err, ErrNotMonitoring) {
		t.Fatalf("Stop from ready: %v", err)
	}
	if err := e.Reset(ctx); !errors.Is(err, ErrNotEmergencyStop) {
		t.Fatalf("Reset from ready: %v", err)
	}

	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.Start(ctx); !errors.Is(err, ErrAlreadyMonitoring) {
		t.Fatalf("duplicate Start: %v", err)
	}

	if err := e.EmergencyStop(ctx); err != nil {
		t.Fatalf("EmergencyStop: %v", err)
	}
	if e.CurrentState() != StateEmergencyStop {
		t.Fatalf("state after e-stop = %q", e.CurrentState())
	}
	if err := e.Start(ctx); !errors.Is(err, ErrEmergencyStop) {
		t.Fatalf("Start during e-stop: %v", err)
	}

	if err := e.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if e.CurrentState() != StateReady {
		t.Fatalf("state after reset = %q", e.CurrentState())
	}
}

func TestRunCyclePipeline(t *testing.T) {
	ctx := context.Background()
	src := &scriptedSource{current: calmSample()}
	st := newMemStore()
	inc := &memIncidents{}
	e := newTestEngine(t, src, st, inc, nil)

	e.runCycle(ctx)

	status := e.Status()
	if status.Cycle != 1 {
		t.Fatalf("cycle count = %d, want 1", status.Cycle)
	}
	if status.Risk != alarm.RiskLow {
		t.Fatalf("risk = %q, want LOW", status.Risk)
	}
	smp, ok := e.Latest()
	if !ok {
		t.Fatal("no latest sample after cycle")
	}
	if smp.Dampers.DG1 != 1000 || smp.Dampers.DG2 != 1000 {
		t.Fatalf("expected baseline damper forces, got %+v", smp.Dampers)
	}
	if _, ok := st.samples[0]; !ok {
		t.Fatal("sample not persisted")
	}
	if st.counters.Cycles != 1 {
		t.Fatalf("persisted cycles = %d", st.counters.Cycles)
	}
}

func TestRunCycleRaisesAlarms(t *testing.T) {
	ctx := context.Background()
	hot := calmSample()
	hot.Vibration.DG1DE = 4.5 // critical
	hot.Hull.Stress = 40      // warning
	src := &scriptedSource{current: hot}
	inc := &memIncidents{}
	e := newTestEngine(t, src, newMemStore(), inc, nil)

	e.runCycle(ctx)

	status := e.Status()
	if status.Risk != alarm.RiskCritical {
		t.Fatalf("risk = %q, want CRITICAL", status.Risk)
	}
	if status.ActiveAlarms != 2 {
		t.Fatalf("active alarms = %d, want 2", status.ActiveAlarms)
	}
	if inc.count() != 2 {
		t.Fatalf("archived transitions = %d, want 2", inc.count())
	}

	smp, _ := e.Latest()
	if smp.Dampers.DG1 != 4000 {
		t.Fatalf("DG1 damper force = %v, want 4000", smp.Dampers.DG1)
	}

	// Back to calm: alarms clear, forces drop.
	src.set(calmSample())
	e.runCycle(ctx)
	if got := e.Status().ActiveAlarms; got != 0 {
		t.Fatalf("active alarms after recovery = %d", got)
	}
	smp, _ = e.Latest()
	if smp.Dampers.DG1 != 1000 {
		t.Fatalf("DG1 damper force after recovery = %v", smp.Dampers.DG1)
	}
	if inc.count() != 4 {
		t.Fatalf("archived transitions = %d, want 4 (2 raises + 2 clears)", inc.count())
	}
}

func TestPreventedIncidentRule(t *testing.T) {
	ctx := context.Background()
	src := &scriptedSource{current: calmSample()}
	e := newTestEngine(t, src, newMemStore(), nil, nil)

	// Train the detector on calm samples, then inject an excursion that
	// trips both the anomaly detector and a warning band.
	det := anomaly.New(30, 3.0)
	e.SetDetector(det)
	for i := 0; i < 30; i++ {
		e.runCycle(ctx)
	}
	if e.Status().PreventedIncidents != 0 {
		t.Fatal("prevented incidents counted during training")
	}

	hot := calmSample()
	hot.Hull.Stress = 40 // warning band and far off baseline
	hot.Vibration.DG1DE = 2.5
	hot.Thermal.DG1 = 100
	hot.Hull.HeelAngle = 3.0
	src.set(hot)
	e.runCycle(ctx)

	status := e.Status()
	if status.Action != anomaly.ActionPreemptive {
		t.Fatalf("action = %q, want PREEMPTIVE_DAMPING", status.Action)
	}
	if status.PreventedIncidents != 1 {
		t.Fatalf("prevented incidents = %d, want 1", status.PreventedIncidents)
	}
	if status.CostSavings != 250000 {
		t.Fatalf("cost savings = %v, want 250000", status.CostSavings)
	}
}

func TestHistoryRing(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, &scriptedSource{current: calmSample()}, newMemStore(), nil, nil)

	for i := 0; i < 8; i++ {
		e.runCycle(ctx)
	}

	hist := e.History(0)
	if len(hist) != 5 {
		t.Fatalf("history length = %d, want capped 5", len(hist))
	}
	// Newest first.
	if hist[0].Seq != 7 || hist[4].Seq != 3 {
		t.Fatalf("unexpected history window: first=%d last=%d", hist[0].Seq, hist[4].Seq)
	}

	two := e.History(2)
	if len(two) != 2 || two[0].Seq != 7 || two[1].Seq != 6 {
		t.Fatalf("History(2) = %v", []uint64{two[0].Seq, two[1].Seq})
	}
}

func TestAcquireFailureDegradesCycle(t *testing.T) {
	ctx := context.Background()
	src := &scriptedSource{err: errors.New("sensor offline")}
	e := newTestEngine(t, src, newMemStore(), nil, nil)

	e.runCycle(ctx)

	status := e.Status()
	if status.Cycle != 0 {
		t.Fatalf("cycle advanced despite acquisition failure: %d", status.Cycle)
	}
	if status.LastError == "" {
		t.Fatal("expected LastError to be set")
	}

	// Recovery clears the error.
	src.mu.Lock()
	src.err = nil
	src.current = calmSample()
	src.mu.Unlock()
	e.runCycle(ctx)
	if got := e.Status().LastError; got != "" {
		t.Fatalf("LastError after recovery = %q", got)
	}
}

func TestEmergencyStopZeroesDampers(t *testing.T) {
	ctx := context.Background()
	hot := calmSample()
	hot.Vibration.DG1DE = 3.5
	e := newTestEngine(t, &scriptedSource{current: hot}, newMemStore(), nil, nil)

	e.runCycle(ctx)
	if err := e.EmergencyStop(ctx); err != nil {
		t.Fatalf("EmergencyStop: %v", err)
	}
	for _, cmd := range e.DamperCommands() {
		if cmd.Force != 0 {
			t.Fatalf("damper force during e-stop = %+v", cmd)
		}
	}
}

func TestRunOnlyCyclesWhileMonitoring(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	st := newMemStore()
	e := newTestEngine(t, &scriptedSource{current: calmSample()}, st, nil, nil)

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	// Ready state: ticks pass but no cycles run.
	time.Sleep(50 * time.Millisecond)
	if got := e.Status().Cycle; got != 0 {
		t.Fatalf("cycles ran while ready: %d", got)
	}

	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.After(2 * time.Second)
	for e.Status().Cycle == 0 {
		select {
		case <-deadline:
			t.Fatal("no cycles after Start")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit on cancel")
	}
}

func TestRunRestoresCounters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := newMemStore()
	st.counters = store.Counters{Cycles: 10, PreventedIncidents: 2, CostSavings: 500000}
	e := newTestEngine(t, &scriptedSource{current: calmSample()}, st, nil, nil)

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for e.Status().Cycle != 10 {
		select {
		case <-deadline:
			t.Fatalf("counters not restored: %+v", e.Status())
		case <-time.After(5 * time.Millisecond):
		}
	}
	if got := e.Status().PreventedIncidents; got != 2 {
		t.Fatalf("prevented incidents = %d, want 2", got)
	}

	cancel()
	<-done
}

func TestPublishEvents(t *testing.T) {
	ctx := context.Background()
	b := bus.NewMemoryBus()
	sub, err := b.Subscribe(ctx, bus.TopicSamples)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	e := newTestEngine(t, &scriptedSource{current: calmSample()}, newMemStore(), nil, b)
	e.runCycle(ctx)

	select {
	case msg := <-sub.C():
		ev, ok := msg.(SampleEvent)
		if !ok {
			t.Fatalf("unexpected message type %T", msg)
		}
		if ev.Sample.Seq != 0 {
			t.Fatalf("unexpected seq %d", ev.Sample.Seq)
		}
	case <-time.After(time.Second):
		t.Fatal("no sample event published")
	}
}
