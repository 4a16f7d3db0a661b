// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package gate fuses liveness, calibration, gaze and focus into the play
// decision for the gated element. The gate is fail-closed: anything short of
// positive evidence on every input pauses playback.
package gate

import (
	"sync"

	"github.com/ManuGH/gazegate/internal/gaze"
	"github.com/ManuGH/gazegate/internal/metrics"
)

// Inputs are the four gate inputs.
type Inputs struct {
	Verified   bool         `json:"verified"`
	Calibrated bool         `json:"calibrated"`
	Looking    gaze.Looking `json:"looking"`
	Focused    bool         `json:"focused"`
}

// ShouldPlay is true iff every input is strictly true.
func ShouldPlay(in Inputs) bool {
	return in.Verified && in.Calibrated && in.Looking == gaze.AtScreen && in.Focused
}

// Reasons reported by Reason. The first failing input wins.
const (
	ReasonAttentive     = "attentive"
	ReasonNotVerified   = "not_verified"
	ReasonNotCalibrated = "not_calibrated"
	ReasonNotLooking    = "not_looking"
	ReasonUnfocused     = "unfocused"
)

// Reason names the input that keeps the gate closed.
func Reason(in Inputs) string {
	switch {
	case !in.Verified:
		return ReasonNotVerified
	case !in.Calibrated:
		return ReasonNotCalibrated
	case in.Looking != gaze.AtScreen:
		return ReasonNotLooking
	case !in.Focused:
		return ReasonUnfocused
	}
	return ReasonAttentive
}

// Target is the element the gate drives.
type Target interface {
	Play() error
	Pause() error
	Paused() bool
}

// Decision is one sequenced play/pause decision.
type Decision struct {
	Seq  uint64 `json:"seq"`
	Play bool   `json:"play"`
}

// Applier applies decisions to a target idempotently. Decisions older than
// the last applied one are ignored.
type Applier struct {
	mu      sync.Mutex
	target  Target
	next    uint64
	applied uint64
	last    Decision
}

// NewApplier creates an applier for target.
func NewApplier(target Target) *Applier {
	return &Applier{target: target}
}

// Decide computes the decision for in and assigns it the next sequence number.
func (a *Applier) Decide(in Inputs) Decision {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next++
	return Decision{Seq: a.next, Play: ShouldPlay(in)}
}

// Apply issues play or pause when the target is not already in the wanted
// state. It reports whether a command was sent.
func (a *Applier) Apply(d Decision) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if d.Seq != 0 && d.Seq <= a.applied {
		return false, nil
	}
	if d.Seq > a.applied {
		a.applied = d.Seq
	}
	a.last = d

	if a.target == nil {
		return false, nil
	}
	paused := a.target.Paused()
	switch {
	case d.Play && paused:
		metrics.RecordGateDecision(true)
		return true, a.target.Play()
	case !d.Play && !paused:
		metrics.RecordGateDecision(false)
		return true, a.target.Pause()
	}
	return false, nil
}

// Last returns the most recently applied decision.
func (a *Applier) Last() Decision {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// SetTarget swaps the driven element, e.g. when a break replaces the gated
// media. Sequence numbers carry over.
func (a *Applier) SetTarget(t Target) {
	a.mu.Lock()
	a.target = t
	a.mu.Unlock()
}
