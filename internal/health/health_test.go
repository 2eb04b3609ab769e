// SPDX-License-Identifier: MIT
package health

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type staticChecker struct {
	name   string
	result CheckResult
}

func (c staticChecker) Name() string                          { return c.name }
func (c staticChecker) Check(ctx context.Context) CheckResult { return c.result }

func TestHealthAlways200(t *testing.T) {
	m := NewManager("test")
	m.RegisterChecker(staticChecker{name: "broken", result: CheckResult{Status: StatusUnhealthy, Error: "down"}})

	w := httptest.NewRecorder()
	m.ServeHealth(w, httptest.NewRequest("GET", "/healthz", nil))
	if w.Code != 200 {
		t.Fatalf("liveness status = %d, want 200", w.Code)
	}

	// Verbose surfaces the failing checker without changing the HTTP code.
	w = httptest.NewRecorder()
	m.ServeHealth(w, httptest.NewRequest("GET", "/healthz?verbose=true", nil))
	if w.Code != 200 {
		t.Fatalf("verbose liveness status = %d, want 200", w.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != StatusUnhealthy {
		t.Fatalf("verbose status = %q, want unhealthy", resp.Status)
	}
}

func TestReadiness503OnUnhealthy(t *testing.T) {
	m := NewManager("test")
	m.RegisterChecker(staticChecker{name: "ok", result: CheckResult{Status: StatusHealthy}})

	w := httptest.NewRecorder()
	m.ServeReady(w, httptest.NewRequest("GET", "/readyz", nil))
	if w.Code != 200 {
		t.Fatalf("ready status = %d, want 200", w.Code)
	}

	m.RegisterChecker(staticChecker{name: "broken", result: CheckResult{Status: StatusUnhealthy}})
	w = httptest.NewRecorder()
	m.ServeReady(w, httptest.NewRequest("GET", "/readyz", nil))
	if w.Code != 503 {
		t.Fatalf("ready status = %d, want 503", w.Code)
	}
}

func TestReadinessDegradedStaysReady(t *testing.T) {
	m := NewManager("test")
	m.RegisterChecker(staticChecker{name: "slow", result: CheckResult{Status: StatusDegraded}})

	resp := m.Ready(context.Background(), false)
	if !resp.Ready {
		t.Fatal("degraded must remain ready")
	}
	if resp.Status != StatusDegraded {
		t.Fatalf("status = %q, want degraded", resp.Status)
	}
}

func TestDataDirChecker(t *testing.T) {
	dir := t.TempDir()
	c := NewDataDirChecker(dir)
	if got := c.Check(context.Background()); got.Status != StatusHealthy {
		t.Fatalf("existing dir: %+v", got)
	}

	c = NewDataDirChecker(filepath.Join(dir, "missing"))
	if got := c.Check(context.Background()); got.Status != StatusUnhealthy {
		t.Fatalf("missing dir: %+v", got)
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	c = NewDataDirChecker(file)
	if got := c.Check(context.Background()); got.Status != StatusUnhealthy {
		t.Fatalf("file instead of dir: %+v", got)
	}
}

func TestLastCycleChecker(t *testing.T) {
	var last time.Time
	monitoring := false
	c := NewLastCycleChecker(func() (time.Time, bool) { return last, monitoring }, 10*time.Second)

	// Idle engine is healthy.
	if got := c.Check(context.Background()); got.Status != StatusHealthy {
		t.Fatalf("idle: %+v", got)
	}

	// Monitoring with no cycle yet is degraded.
	monitoring = true
	if got := c.Check(context.Background()); got.Status != StatusDegraded {
		t.Fatalf("no cycle: %+v", got)
	}

	last = time.Now()
	if got := c.Check(context.Background()); got.Status != StatusHealthy {
		t.Fatalf("fresh cycle: %+v", got)
	}

	last = time.Now().Add(-time.Minute)
	if got := c.Check(context.Background()); got.Status != StatusUnhealthy {
		t.Fatalf("stale cycle: %+v", got)
	}
}
