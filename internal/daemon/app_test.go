// SPDX-License-Identifier: MIT
package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vesselworks/spiritd/internal/monitor"
	"github.com/vesselworks/spiritd/internal/sensors"
)

func testEngine(t *testing.T) *monitor.Engine {
	t.Helper()
	e, err := monitor.New(monitor.Config{
		Period:      10 * time.Millisecond,
		HistorySize: 5,
	}, sensors.NewSimulator(1), nil, nil, nil)
	if err != nil {
		t.Fatalf("monitor.New: %v", err)
	}
	return e
}

func TestRunRequiresEngine(t *testing.T) {
	app := NewApp(zerolog.Nop(), nil, nil, nil, nil)
	if err := app.Run(context.Background()); !errors.Is(err, ErrMissingEngine) {
		t.Fatalf("expected ErrMissingEngine, got %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	app := NewApp(zerolog.Nop(), testEngine(t), nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunServesHTTPAndShutsDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	srv := &http.Server{
		Addr: addr,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	}
	app := NewApp(zerolog.Nop(), testEngine(t), srv, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	var resp *http.Response
	deadline := time.After(2 * time.Second)
	for {
		resp, err = http.Get("http://" + addr + "/")
		if err == nil {
			resp.Body.Close()
			break
		}
		select {
		case <-deadline:
			t.Fatalf("server never came up: %v", err)
		case <-time.After(20 * time.Millisecond):
		}
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not shut down")
	}
}
