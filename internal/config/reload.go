// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/vesselworks/spiritd/internal/alarm"
	spdlog "github.com/vesselworks/spiritd/internal/log"
)

// ThresholdHolder holds the alarm threshold table with atomic reloading.
// The rest of the configuration is immutable for the process lifetime;
// thresholds are the piece operators tune while the vessel is monitored.
type ThresholdHolder struct {
	mu      sync.RWMutex
	current alarm.Thresholds
	path    string
	watcher *fsnotify.Watcher
	logger  zerolog.Logger

	reloadMu        sync.RWMutex
	reloadListeners []chan<- alarm.Thresholds
}

// NewThresholdHolder creates a holder with the initial table. path may be
// empty when thresholds come from defaults only.
func NewThresholdHolder(initial alarm.Thresholds, path string) *ThresholdHolder {
	return &ThresholdHolder{
		current: initial,
		path:    path,
		logger:  spdlog.WithComponent("config"),
	}
}

// Get returns the current threshold table (thread-safe read).
func (h *ThresholdHolder) Get() alarm.Thresholds {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload re-reads the threshold file and validates it. On any failure the
// old table is kept, so the swap is all-or-nothing.
func (h *ThresholdHolder) Reload(_ context.Context) error {
	if h.path == "" {
		return nil
	}
	h.logger.Info().Str("event", "thresholds.reload_start").Msg("reloading alarm thresholds")

	newTable, err := LoadThresholds(h.path)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("event", "thresholds.reload_failed").
			Msg("failed to load new thresholds")
		return fmt.Errorf("load thresholds: %w", err)
	}

	h.mu.Lock()
	h.current = newTable
	h.mu.Unlock()

	h.notifyListeners(newTable)

	h.logger.Info().
		Str("event", "thresholds.reload_success").
		Msg("alarm thresholds reloaded")
	return nil
}

// StartWatcher starts watching the threshold file for changes. A no-op when
// no file is configured.
func (h *ThresholdHolder) StartWatcher(ctx context.Context) error {
	if h.path == "" {
		h.logger.Info().
			Str("event", "thresholds.watcher_disabled").
			Msg("threshold file watcher disabled (defaults only)")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	h.watcher = watcher

	if err := watcher.Add(h.path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch thresholds file: %w", err)
	}

	h.logger.Info().
		Str("event", "thresholds.watcher_started").
		Str("path", h.path).
		Msg("watching thresholds file for changes")

	go h.watchLoop(ctx)
	return nil
}

func (h *ThresholdHolder) watchLoop(ctx context.Context) {
	// Debounce rapid editor write sequences into one reload.
	var debounceTimer *time.Timer
	debounceDuration := 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str("event", "thresholds.watcher_stopped").Msg("threshold watcher stopped")
			if h.watcher != nil {
				_ = h.watcher.Close()
			}
			return

		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			// Write and Create cover vim, nano and plain redirection.
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, func() {
					if err := h.Reload(ctx); err != nil {
						h.logger.Error().
							Err(err).
							Str("event", "thresholds.auto_reload_failed").
							Msg("automatic threshold reload failed")
					}
				})
			}

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().
				Err(err).
				Str("event", "thresholds.watcher_error").
				Msg("threshold watcher error")
		}
	}
}

// Stop stops the watcher (if running).
func (h *ThresholdHolder) Stop() {
	if h.watcher != nil {
		_ = h.watcher.Close()
	}
}

// RegisterListener registers a channel that receives the new table whenever
// a reload succeeds. The caller owns the channel.
func (h *ThresholdHolder) RegisterListener(ch chan<- alarm.Thresholds) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()
	h.reloadListeners = append(h.reloadListeners, ch)
}

func (h *ThresholdHolder) notifyListeners(t alarm.Thresholds) {
	h.reloadMu.RLock()
	defer h.reloadMu.RUnlock()

	for _, ch := range h.reloadListeners {
		select {
		case ch <- t:
		default:
			h.logger.Warn().
				Str("event", "thresholds.listener_skip").
				Msg("threshold listener channel full, skipping notification")
		}
	}
}
