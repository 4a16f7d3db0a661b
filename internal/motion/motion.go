// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package motion compares consecutive downscaled camera frames and requests
// an out-of-cycle gaze poll when the viewer moves noticeably.
package motion

import (
	"context"
	"sync"
	"time"

	"github.com/ManuGH/gazegate/internal/frame"
	xglog "github.com/ManuGH/gazegate/internal/log"
	"github.com/ManuGH/gazegate/internal/metrics"
	"github.com/rs/zerolog"
)

const (
	DefaultInterval  = 500 * time.Millisecond
	DefaultWidth     = 16
	DefaultHeight    = 12
	DefaultThreshold = 3000
)

// Config sets the sampling grid and escalation threshold.
type Config struct {
	Width     int
	Height    int
	Threshold int
}

func (c Config) withDefaults() Config {
	if c.Width <= 0 {
		c.Width = DefaultWidth
	}
	if c.Height <= 0 {
		c.Height = DefaultHeight
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	return c
}

// Detector keeps the previous frame sample of one session.
type Detector struct {
	cfg     Config
	busy    func() bool
	trigger func()
	logger  zerolog.Logger

	mu   sync.Mutex
	prev frame.Samples
}

// New creates a detector. busy reports whether a gaze poll is outstanding;
// trigger requests one.
func New(cfg Config, busy func() bool, trigger func(), logger zerolog.Logger) *Detector {
	return &Detector{
		cfg:     cfg.withDefaults(),
		busy:    busy,
		trigger: trigger,
		logger:  logger.With().Str(xglog.FieldComponent, "motion").Logger(),
	}
}

// Tick samples src once. Ticks are skipped entirely while a poll is in
// flight; the stored frame is left untouched in that case.
func (d *Detector) Tick(src frame.Source) bool {
	if d.busy != nil && d.busy() {
		return false
	}
	img, ok := src.Snapshot()
	if !ok {
		return false
	}
	return d.Observe(frame.Reduce(img, d.cfg.Width, d.cfg.Height))
}

// Observe compares samples against the previous frame, stores them as the new
// previous frame and triggers a poll when the difference exceeds the
// threshold. It reports whether a poll was requested.
func (d *Detector) Observe(samples frame.Samples) bool {
	d.mu.Lock()
	prev := d.prev
	if len(samples) > 0 {
		d.prev = samples
	} else {
		d.prev = nil
	}
	d.mu.Unlock()

	sum, ok := frame.Diff(prev, samples)
	if !ok || sum <= d.cfg.Threshold {
		return false
	}
	metrics.IncMotionEscalation()
	d.logger.Debug().Str(xglog.FieldEvent, "motion.escalate").Int(xglog.FieldDiffSum, sum).
		Msg("high movement detected, requesting gaze check")
	if d.trigger != nil {
		d.trigger()
	}
	return true
}

// Run ticks every interval until ctx is done.
func (d *Detector) Run(ctx context.Context, src frame.Source, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			d.Tick(src)
		}
	}
}

// Reset forgets the previous frame.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.prev = nil
	d.mu.Unlock()
}
