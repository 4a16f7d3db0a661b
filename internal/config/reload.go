// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	xglog "github.com/ManuGH/gazegate/internal/log"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const reloadDebounce = 500 * time.Millisecond

// Holder holds configuration with atomic reloading capability.
// Reloaded configuration applies to sessions created afterwards; running
// sessions keep the ad breaks they were created with.
type Holder struct {
	mu      sync.RWMutex
	current AppConfig
	loader  *Loader
	logger  zerolog.Logger

	watchMu sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}

	listenMu  sync.RWMutex
	listeners []chan<- AppConfig
}

// NewHolder creates a holder with an already loaded configuration.
func NewHolder(initial AppConfig, loader *Loader) *Holder {
	return &Holder{
		current: initial,
		loader:  loader,
		logger:  xglog.WithComponent("config"),
	}
}

// Get returns a copy of the current configuration.
func (h *Holder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.Clone()
}

// Reload loads and validates the file again. On failure the old
// configuration stays in place.
func (h *Holder) Reload(_ context.Context) error {
	h.logger.Info().Str(xglog.FieldEvent, "config.reload_start").Msg("reloading configuration")

	next, err := h.loader.Load()
	if err != nil {
		h.logger.Error().Err(err).Str(xglog.FieldEvent, "config.reload_failed").Msg("failed to load new configuration")
		return fmt.Errorf("load config: %w", err)
	}

	h.mu.Lock()
	old := h.current
	h.current = next
	h.mu.Unlock()

	h.notifyListeners(next)
	h.logChanges(old, next)

	h.logger.Info().Str(xglog.FieldEvent, "config.reload_success").Msg("configuration reloaded successfully")
	return nil
}

// StartWatcher watches the directory of the config file so that atomic
// replace-by-rename writes are observed. No-op without a config file.
func (h *Holder) StartWatcher(ctx context.Context) error {
	path := h.loader.Path()
	if path == "" {
		h.logger.Info().Str(xglog.FieldEvent, "config.watcher_disabled").
			Msg("config file watcher disabled (using ENV-only configuration)")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}

	h.watchMu.Lock()
	h.watcher = watcher
	h.done = make(chan struct{})
	done := h.done
	h.watchMu.Unlock()

	h.logger.Info().Str(xglog.FieldEvent, "config.watcher_started").Str("path", path).
		Msg("watching config file for changes")

	go h.watchLoop(ctx, watcher, filepath.Clean(path), done)
	return nil
}

func (h *Holder) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string, done chan struct{}) {
	defer close(done)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str(xglog.FieldEvent, "config.watcher_stopped").Msg("config watcher stopped")
			_ = watcher.Close()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			h.logger.Debug().Str(xglog.FieldEvent, "config.file_changed").Str("op", event.Op.String()).
				Msg("config file changed")

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if ctx.Err() != nil {
					return
				}
				if err := h.Reload(ctx); err != nil {
					h.logger.Error().Err(err).Str(xglog.FieldEvent, "config.auto_reload_failed").
						Msg("automatic config reload failed")
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Str(xglog.FieldEvent, "config.watcher_error").Msg("config watcher error")
		}
	}
}

// Stop closes the watcher and waits for the watch loop to exit.
func (h *Holder) Stop() {
	h.watchMu.Lock()
	watcher, done := h.watcher, h.done
	h.watcher, h.done = nil, nil
	h.watchMu.Unlock()

	if watcher == nil {
		return
	}
	_ = watcher.Close()
	<-done
}

// RegisterListener registers a channel that receives every successfully
// reloaded configuration. Sends are non-blocking.
func (h *Holder) RegisterListener(ch chan<- AppConfig) {
	h.listenMu.Lock()
	defer h.listenMu.Unlock()
	h.listeners = append(h.listeners, ch)
}

func (h *Holder) notifyListeners(cfg AppConfig) {
	h.listenMu.RLock()
	defer h.listenMu.RUnlock()

	for _, ch := range h.listeners {
		select {
		case ch <- cfg.Clone():
		default:
			h.logger.Warn().Str(xglog.FieldEvent, "config.listener_skip").
				Msg("skipped notifying listener (channel full)")
		}
	}
}

func (h *Holder) logChanges(old, next AppConfig) {
	if old.LogLevel != next.LogLevel {
		h.logger.Info().Str("old", old.LogLevel).Str("new", next.LogLevel).Msg("config changed: log_level")
	}
	if old.Gaze.PollInterval != next.Gaze.PollInterval {
		h.logger.Info().Dur("old", old.Gaze.PollInterval).Dur("new", next.Gaze.PollInterval).
			Msg("config changed: gaze.poll_interval")
	}
	if old.Motion != next.Motion {
		h.logger.Info().Int("old_threshold", old.Motion.Threshold).Int("new_threshold", next.Motion.Threshold).
			Msg("config changed: motion")
	}
	if len(old.Player.AdBreaks) != len(next.Player.AdBreaks) {
		h.logger.Info().Int("old", len(old.Player.AdBreaks)).Int("new", len(next.Player.AdBreaks)).
			Msg("config changed: player.ad_breaks (applies to new sessions)")
	}
	if old.Inference.BaseURL != next.Inference.BaseURL {
		h.logger.Info().Str("new", next.Inference.BaseURL).Msg("config changed: inference.base_url (restart required)")
	}
}
