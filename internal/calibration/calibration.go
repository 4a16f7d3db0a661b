// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package calibration performs the one-shot gaze baseline handshake.
//
// Calibration is never retried automatically: repeated silent camera captures
// without the viewer's knowledge are not acceptable, so every retry is an
// explicit caller action.
package calibration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/gazegate/internal/frame"
	"github.com/ManuGH/gazegate/internal/inference"
	xglog "github.com/ManuGH/gazegate/internal/log"
	"github.com/ManuGH/gazegate/internal/metrics"
	"github.com/rs/zerolog"
)

var (
	// ErrCalibrationFailed wraps every failure reported by the capability.
	ErrCalibrationFailed = errors.New("calibration failed")
	// ErrNotReady means the preview is not ready or no frame could be captured.
	ErrNotReady = errors.New("camera preview not ready")
	// ErrInProgress is returned while another calibration is outstanding.
	ErrInProgress = errors.New("calibration already in progress")
	// ErrSessionEnded means the camera session was released during the call.
	ErrSessionEnded = errors.New("camera session ended during calibration")
)

// Session is the camera session calibration runs against.
type Session interface {
	PreviewReady() bool
	Live() bool
	Source() frame.Source
}

// State is the session gaze baseline.
type State struct {
	Established bool      `json:"established"`
	LastError   string    `json:"lastError,omitempty"`
	At          time.Time `json:"at,omitempty"`
}

// Controller owns the calibration state of one viewer session.
type Controller struct {
	capability inference.Capability
	logger     zerolog.Logger
	inFlight   atomic.Bool

	mu    sync.Mutex
	state State
	epoch uint64
}

// New creates a calibration controller.
func New(capability inference.Capability, logger zerolog.Logger) *Controller {
	return &Controller{
		capability: capability,
		logger:     logger.With().Str(xglog.FieldComponent, "calibration").Logger(),
	}
}

// Calibrate captures one still from session and sends it to the capability's
// calibration entry point. On success the state becomes established.
func (c *Controller) Calibrate(ctx context.Context, session Session) error {
	if session == nil || !session.PreviewReady() {
		return ErrNotReady
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		return ErrInProgress
	}
	defer c.inFlight.Store(false)

	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	still, ok := frame.CaptureStill(session.Source())
	if !ok {
		c.fail(epoch, ErrNotReady)
		metrics.RecordCalibration(metrics.OutcomeNotReady)
		return fmt.Errorf("%w: failed to capture image for calibration", ErrNotReady)
	}

	err := c.capability.Calibrate(ctx, still)
	if err != nil {
		c.fail(epoch, err)
		metrics.RecordCalibration(metrics.OutcomeFailed)
		c.logger.Warn().Err(err).Str(xglog.FieldEvent, "calibration.failed").Msg("gaze calibration failed")
		return fmt.Errorf("%w: %w", ErrCalibrationFailed, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return ErrSessionEnded
	}
	if !session.Live() {
		return ErrSessionEnded
	}
	c.state = State{Established: true, At: time.Now()}
	metrics.RecordCalibration(metrics.OutcomeOK)
	c.logger.Info().Str(xglog.FieldEvent, "calibration.established").Msg("gaze calibration established")
	return nil
}

func (c *Controller) fail(epoch uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return
	}
	c.state = State{LastError: err.Error()}
}

// Reset clears the state. A calibration still outstanding cannot establish
// the new state.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.state = State{}
	c.epoch++
	c.mu.Unlock()
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Established is shorthand for State().Established.
func (c *Controller) Established() bool {
	return c.State().Established
}

// InProgress reports whether a calibration call is outstanding.
func (c *Controller) InProgress() bool { return c.inFlight.Load() }
