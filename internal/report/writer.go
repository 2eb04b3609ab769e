// SPDX-License-Identifier: MIT

// Package report writes periodic JSON snapshot reports for shore-side
// consumers that poll a file drop instead of the HTTP API.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/renameio/v2"

	"github.com/vesselworks/spiritd/internal/alarm"
	spdlog "github.com/vesselworks/spiritd/internal/log"
	"github.com/vesselworks/spiritd/internal/metrics"
	"github.com/vesselworks/spiritd/internal/monitor"
	"github.com/vesselworks/spiritd/internal/sensors"
)

// Snapshot is the report document.
type Snapshot struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Status      monitor.Status  `json:"status"`
	Sample      *sensors.Sample `json:"sample,omitempty"`
	Alarms      []alarm.Alarm   `json:"alarms"`
}

// Source is the state the writer snapshots each interval.
type Source interface {
	Status() monitor.Status
	Latest() (sensors.Sample, bool)
	ActiveAlarms() []alarm.Alarm
}

// Writer periodically serializes a Snapshot to a fixed path. Writes are
// atomic and durable: renameio fsyncs before the rename so a power failure
// never leaves a torn report.
type Writer struct {
	path     string
	interval time.Duration
	source   Source
}

// NewWriter creates a report writer. path must be non-empty.
func NewWriter(path string, interval time.Duration, source Source) (*Writer, error) {
	if path == "" {
		return nil, fmt.Errorf("report: path is empty")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("report: interval must be positive")
	}
	return &Writer{path: path, interval: interval, source: source}, nil
}

// Run writes reports until ctx is cancelled.
func (w *Writer) Run(ctx context.Context) error {
	logger := spdlog.WithComponentFromContext(ctx, "report")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.WriteOnce(ctx); err != nil {
				metrics.IncStoreWriteError("report")
				logger.Error().
					Err(err).
					Str("event", "report.write_failed").
					Str("path", w.path).
					Msg("snapshot report write failed")
			}
		}
	}
}

// WriteOnce serializes the current state to the report path.
func (w *Writer) WriteOnce(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	snap := Snapshot{
		GeneratedAt: time.Now(),
		Status:      w.source.Status(),
		Alarms:      w.source.ActiveAlarms(),
	}
	if smp, ok := w.source.Latest(); ok {
		snap.Sample = &smp
	}
	if snap.Alarms == nil {
		snap.Alarms = []alarm.Alarm{}
	}

	pendingFile, err := renameio.NewPendingFile(w.path)
	if err != nil {
		return fmt.Errorf("create pending report file: %w", err)
	}
	defer func() {
		// renameio removes the temp file if not committed.
		_ = pendingFile.Cleanup()
	}()

	enc := json.NewEncoder(pendingFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace report file: %w", err)
	}
	return nil
}
