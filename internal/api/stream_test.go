// SPDX-License-Identifier: MIT
package api

import (
	"bufio"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/vesselworks/spiritd/internal/alarm"
	"github.com/vesselworks/spiritd/internal/bus"
	"github.com/vesselworks/spiritd/internal/monitor"
	"github.com/vesselworks/spiritd/internal/sensors"
)

func TestStreamDisabledWithoutBus(t *testing.T) {
	ts := newTestServer(t, newFakeEngine())
	resp, _ := get(t, ts, "/api/stream")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestStreamDeliversEvents(t *testing.T) {
	b := bus.NewMemoryBus()
	ts := newTestServer(t, newFakeEngine(), WithBus(b))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	// Give the handler a moment to subscribe before publishing.
	time.Sleep(100 * time.Millisecond)

	ev := monitor.SampleEvent{Sample: sensors.Sample{Seq: 3}, Risk: alarm.RiskLow}
	if err := b.Publish(ctx, bus.TopicSamples, ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	scanner := bufio.NewScanner(resp.Body)
	var sawEvent, sawData bool
	for scanner.Scan() {
		line := scanner.Text()
		if line == "event: sample" {
			sawEvent = true
		}
		if sawEvent && strings.HasPrefix(line, "data: ") {
			if !strings.Contains(line, `"seq":3`) {
				t.Fatalf("unexpected data line: %q", line)
			}
			sawData = true
			break
		}
	}
	if !sawEvent || !sawData {
		t.Fatalf("did not observe sample event (event=%v data=%v, scan err %v)", sawEvent, sawData, scanner.Err())
	}
}

func TestStreamClosesOnClientDisconnect(t *testing.T) {
	b := bus.NewMemoryBus()
	ts := newTestServer(t, newFakeEngine(), WithBus(b))

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/stream: %v", err)
	}
	defer resp.Body.Close()

	cancel()

	// After the client goes away, publishing must keep succeeding since the
	// handler unsubscribes its channels.
	deadline := time.After(2 * time.Second)
	for {
		pctx, pcancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		err := b.Publish(pctx, bus.TopicSamples, monitor.SampleEvent{})
		pcancel()
		if err == nil {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("bus still blocked after disconnect: %v", err)
		case <-time.After(50 * time.Millisecond):
		}
	}
}
