// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package gaze polls the inference capability for the viewer's gaze
// direction. At most one analyze call is outstanding at any instant; poll
// requests arriving meanwhile are dropped, not queued.
package gaze

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/gazegate/internal/frame"
	"github.com/ManuGH/gazegate/internal/inference"
	xglog "github.com/ManuGH/gazegate/internal/log"
	"github.com/ManuGH/gazegate/internal/metrics"
	"github.com/rs/zerolog"
)

// DefaultInterval is the fixed polling period.
const DefaultInterval = 2 * time.Second

// Looking is a tri-state gaze result.
type Looking int8

const (
	Unknown Looking = iota
	Away
	AtScreen
)

// FromBool converts an inference answer.
func FromBool(b bool) Looking {
	if b {
		return AtScreen
	}
	return Away
}

func (l Looking) String() string {
	switch l {
	case AtScreen:
		return "true"
	case Away:
		return "false"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes Unknown as null and the known states as booleans.
func (l Looking) MarshalJSON() ([]byte, error) {
	switch l {
	case AtScreen:
		return []byte("true"), nil
	case Away:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// Trigger names what requested a poll.
type Trigger string

const (
	TriggerTimer  Trigger = metrics.PollSourceTimer
	TriggerMotion Trigger = metrics.PollSourceMotion
	TriggerManual Trigger = metrics.PollSourceManual
)

// Sample is the latest inference result. No history is kept.
type Sample struct {
	Looking  Looking   `json:"isLookingAtScreen"`
	InFlight bool      `json:"inFlight"`
	At       time.Time `json:"at,omitempty"`
}

// Monitor owns the latest sample of one viewer session.
type Monitor struct {
	capability inference.Capability
	logger     zerolog.Logger
	onChange   func(Sample)
	onFailure  func(error)

	inFlight atomic.Bool

	mu         sync.Mutex
	sample     Sample
	generation uint64
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithOnChange registers a callback invoked (outside any lock) whenever the
// looking state changes.
func WithOnChange(fn func(Sample)) Option {
	return func(m *Monitor) { m.onChange = fn }
}

// WithOnFailure registers a callback invoked when an analyze failure turns a
// known result into Unknown. Consecutive failures notify once.
func WithOnFailure(fn func(error)) Option {
	return func(m *Monitor) { m.onFailure = fn }
}

// New creates a monitor.
func New(capability inference.Capability, logger zerolog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		capability: capability,
		logger:     logger.With().Str(xglog.FieldComponent, "gaze").Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Poll captures a still from src and analyzes it. It returns false without
// calling the capability when another poll is outstanding or src has no
// usable frame. ctx bounds only the analyze call.
func (m *Monitor) Poll(ctx context.Context, src frame.Source, trigger Trigger) (Sample, bool) {
	if !m.inFlight.CompareAndSwap(false, true) {
		metrics.IncGazePollDropped(string(trigger))
		return m.Sample(), false
	}
	defer m.inFlight.Store(false)

	still, ok := frame.CaptureStill(src)
	if !ok {
		metrics.RecordGazePoll(metrics.PollOutcomeNoFrame, 0)
		return m.Sample(), false
	}

	m.mu.Lock()
	gen := m.generation
	m.mu.Unlock()

	start := time.Now()
	res, err := m.capability.Analyze(ctx, still)
	elapsed := time.Since(start).Seconds()

	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		metrics.RecordGazePoll(metrics.PollOutcomeStale, elapsed)
		m.logger.Debug().Str(xglog.FieldEvent, "gaze.result_discarded").Msg("discarding result for superseded session")
		return m.Sample(), false
	}
	prev := m.sample.Looking
	next := Unknown
	outcome := metrics.PollOutcomeFailed
	if err == nil {
		next = FromBool(res.IsLookingAtScreen)
		outcome = metrics.PollOutcomeNotLooking
		if next == AtScreen {
			outcome = metrics.PollOutcomeLooking
		}
	}
	m.sample = Sample{Looking: next, At: time.Now()}
	out := m.sample
	m.mu.Unlock()

	metrics.RecordGazePoll(outcome, elapsed)
	if err != nil {
		m.logger.Warn().Err(err).Str(xglog.FieldEvent, "gaze.poll_failed").Str("trigger", string(trigger)).
			Msg("gaze analysis failed, tracking continues")
		if prev != Unknown && m.onFailure != nil {
			m.onFailure(err)
		}
	}
	if prev != next {
		m.logger.Debug().Str(xglog.FieldEvent, "gaze.changed").Str(xglog.FieldLooking, next.String()).Msg("gaze state changed")
		if m.onChange != nil {
			m.onChange(out)
		}
	}
	return out, true
}

// Run polls src every interval until ctx is done. Analyze calls are issued
// with callCtx, so stopping the loop never aborts an outstanding call; its
// result is discarded by Reset instead. No poll starts after ctx is done.
func (m *Monitor) Run(ctx, callCtx context.Context, src frame.Source, interval time.Duration) {
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
			m.Poll(callCtx, src, TriggerTimer)
		}
	}
}

// Reset clears the sample and invalidates any outstanding call.
func (m *Monitor) Reset() {
	m.mu.Lock()
	m.generation++
	m.sample = Sample{}
	m.mu.Unlock()
}

// Sample returns the latest sample.
func (m *Monitor) Sample() Sample {
	m.mu.Lock()
	s := m.sample
	m.mu.Unlock()
	s.InFlight = m.inFlight.Load()
	return s
}

// InFlight reports whether an analyze call is outstanding.
func (m *Monitor) InFlight() bool { return m.inFlight.Load() }
