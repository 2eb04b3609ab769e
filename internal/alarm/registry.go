// SPDX-License-Identifier: MIT

package alarm

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vesselworks/spiritd/internal/sensors"
)

// Risk is the aggregate condition derived from the active alarm set.
type Risk string

const (
	RiskLow      Risk = "LOW"
	RiskElevated Risk = "ELEVATED"
	RiskHigh     Risk = "HIGH"
	RiskCritical Risk = "CRITICAL"
)

// Alarm is one active or historical threshold violation.
type Alarm struct {
	ID        string    `json:"id"`
	Channel   string    `json:"channel"`
	Severity  Severity  `json:"severity"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	RaisedAt  time.Time `json:"raised_at"`
	ClearedAt time.Time `json:"cleared_at,omitempty"`
}

// Transition describes an edge-triggered alarm state change produced by one
// evaluation pass.
type Transition struct {
	Alarm  Alarm
	Raised bool // true = raised or escalated, false = cleared
}

// Registry tracks active alarms and emits transitions. Raise and clear are
// edge-triggered: a channel that stays in the same band produces no event.
type Registry struct {
	mu     sync.RWMutex
	active map[string]*Alarm // keyed by channel
	now    func() time.Time
}

// NewRegistry creates an empty alarm registry.
func NewRegistry() *Registry {
	return &Registry{
		active: make(map[string]*Alarm),
		now:    time.Now,
	}
}

// Evaluate runs the sample through the threshold table and updates the
// active set. The returned transitions carry newly raised, escalated and
// cleared alarms, in channel order.
func (r *Registry) Evaluate(smp sensors.Sample, t Thresholds) []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Transition

	for _, rd := range Readings(smp, t) {
		sev := rd.Threshold.Classify(rd.Value)
		cur := r.active[rd.Channel]

		switch {
		case sev == "" && cur != nil:
			cur.ClearedAt = r.now()
			cleared := *cur
			delete(r.active, rd.Channel)
			out = append(out, Transition{Alarm: cleared, Raised: false})

		case sev != "" && cur == nil:
			a := &Alarm{
				ID:        uuid.New().String(),
				Channel:   rd.Channel,
				Severity:  sev,
				Value:     rd.Value,
				Threshold: thresholdFor(rd.Threshold, sev),
				RaisedAt:  r.now(),
			}
			r.active[rd.Channel] = a
			out = append(out, Transition{Alarm: *a, Raised: true})

		case sev != "" && cur != nil:
			// Track the latest reading; emit only on severity change.
			cur.Value = rd.Value
			if cur.Severity != sev {
				cur.Severity = sev
				cur.Threshold = thresholdFor(rd.Threshold, sev)
				out = append(out, Transition{Alarm: *cur, Raised: true})
			}
		}
	}

	return out
}

func thresholdFor(t Threshold, sev Severity) float64 {
	if sev == SeverityCritical {
		return t.Critical
	}
	return t.Warn
}

// Active returns the current alarm set sorted by channel.
func (r *Registry) Active() []Alarm {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Alarm, 0, len(r.active))
	for _, a := range r.active {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out
}

// Risk derives the aggregate risk level. An anomaly flag from the detector
// lifts LOW to ELEVATED and HIGH stays HIGH; critical alarms always win.
func (r *Registry) Risk(anomaly bool) Risk {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var warn, crit int
	for _, a := range r.active {
		switch a.Severity {
		case SeverityCritical:
			crit++
		case SeverityWarning:
			warn++
		}
	}

	switch {
	case crit > 0:
		return RiskCritical
	case warn > 1:
		return RiskHigh
	case warn == 1:
		return RiskElevated
	case anomaly:
		return RiskElevated
	}
	return RiskLow
}
