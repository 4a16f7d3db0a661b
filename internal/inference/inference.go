// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package inference talks to the external gaze-inference capability.
package inference

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuGH/gazegate/internal/frame"
)

var (
	// ErrUnavailable means the capability could not be reached or is shedding
	// load (transport failure, 5xx, open circuit).
	ErrUnavailable = errors.New("inference: capability unavailable")
	// ErrRejected means the capability answered but refused the frame.
	ErrRejected = errors.New("inference: frame rejected")
	// ErrBadResponse means the answer could not be understood.
	ErrBadResponse = errors.New("inference: invalid response")
)

// Analysis is the result of one analyze call.
type Analysis struct {
	IsLookingAtScreen bool `json:"isLookingAtScreen"`
}

// Capability is the black-box gaze-inference service. Calls may take
// arbitrarily long and may fail; callers bound them with ctx.
type Capability interface {
	Calibrate(ctx context.Context, still frame.Still) error
	Analyze(ctx context.Context, still frame.Still) (Analysis, error)
}

// Error carries the failing operation and HTTP status next to a sentinel.
type Error struct {
	Sentinel error
	Op       string
	Status   int
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("inference: %s: %v", e.Op, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Sentinel }

// Funcs adapts plain functions to Capability. Nil functions succeed.
type Funcs struct {
	CalibrateFunc func(ctx context.Context, still frame.Still) error
	AnalyzeFunc   func(ctx context.Context, still frame.Still) (Analysis, error)
}

// Calibrate implements Capability.
func (f Funcs) Calibrate(ctx context.Context, still frame.Still) error {
	if f.CalibrateFunc == nil {
		return nil
	}
	return f.CalibrateFunc(ctx, still)
}

// Analyze implements Capability.
func (f Funcs) Analyze(ctx context.Context, still frame.Still) (Analysis, error) {
	if f.AnalyzeFunc == nil {
		return Analysis{}, nil
	}
	return f.AnalyzeFunc(ctx, still)
}
