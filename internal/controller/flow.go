// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/gazegate/internal/adbreak"
	"github.com/ManuGH/gazegate/internal/bus"
	"github.com/ManuGH/gazegate/internal/calibration"
	"github.com/ManuGH/gazegate/internal/camera"
	"github.com/ManuGH/gazegate/internal/challenge"
	"github.com/ManuGH/gazegate/internal/gate"
	"github.com/ManuGH/gazegate/internal/gaze"
	xglog "github.com/ManuGH/gazegate/internal/log"
	"github.com/ManuGH/gazegate/internal/metrics"
	"github.com/ManuGH/gazegate/internal/motion"
	"github.com/ManuGH/gazegate/internal/telemetry"
)

// acquireLocked requests the camera on a tracked goroutine. A request that
// is already pending is reused. Callers hold c.mu.
func (c *Controller) acquireLocked() {
	if c.acquiring || (c.session != nil && c.session.Live()) {
		return
	}
	// A previous attempt ended in a denial or device error.
	c.cancelAcquireLocked()
	ctx, cancel := context.WithCancel(c.lifetime)
	epoch := c.camEpoch
	if !c.goLocked(func() { c.acquire(ctx, epoch) }) {
		cancel()
		return
	}
	c.acquiring = true
	c.acqCancel = cancel
	c.lastError = ""
	if c.sched != nil && c.sched.State() == adbreak.BreakTriggered {
		_ = c.sched.Fire(adbreak.EvCameraRequested)
	}
}

func (c *Controller) cancelAcquireLocked() {
	if c.acqCancel != nil {
		c.acqCancel()
		c.acqCancel = nil
	}
	c.acquiring = false
}

func (c *Controller) acquire(ctx context.Context, epoch uint64) {
	sess, err := c.camera.Acquire(ctx)

	c.mu.Lock()
	if c.camEpoch != epoch || c.closed {
		c.mu.Unlock()
		if err == nil {
			c.camera.Release(sess)
		}
		return
	}
	c.acquiring = false
	if err != nil {
		if errors.Is(err, context.Canceled) {
			c.mu.Unlock()
			return
		}
		denied := errors.Is(err, camera.ErrPermissionDenied)
		if denied {
			c.lastError = msgCameraDenied
		} else {
			c.lastError = fmt.Sprintf("Camera error: %v", err)
		}
		c.mu.Unlock()

		actions := c.escapeActions(bus.ActionRetryCamera)
		if denied {
			c.notify(bus.LevelError, "Camera Access Denied", msgCameraDenied, actions...)
		} else {
			c.notify(bus.LevelError, "Camera Error", err.Error(), actions...)
		}
		return
	}
	c.session = sess
	c.goLocked(func() { c.watchPreview(ctx, epoch, sess) })
	c.mu.Unlock()
}

// watchPreview waits for the first displayable frame of sess.
func (c *Controller) watchPreview(ctx context.Context, epoch uint64, sess *camera.Session) {
	select {
	case <-ctx.Done():
		return
	case <-sess.Stream().Ready():
	}
	c.onPreviewReady(epoch, sess)
}

func (c *Controller) onPreviewReady(epoch uint64, sess *camera.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.camEpoch != epoch || c.closed || c.session != sess {
		return
	}
	if !c.camera.MarkPreviewReady(sess) {
		return
	}
	c.logger.Debug().Str(xglog.FieldEvent, "camera.preview_ready").Str(xglog.FieldCameraID, sess.ID).Msg("camera preview ready")

	if c.sched != nil {
		if err := c.sched.Fire(adbreak.EvPreviewReady); err != nil {
			c.logger.Debug().Err(err).Msg("preview ready outside challenge flow")
		}
	}
	// Breaks pre-generate their challenge; this covers the demo and resets.
	if c.challenge == nil && !c.verified && !c.calib.Established() {
		c.newChallengeLocked()
	}
}

// newChallengeLocked replaces the active challenge and clears the answer.
func (c *Controller) newChallengeLocked() {
	ch := c.deps.Challenges.Generate()
	c.challenge = &ch
	c.challengeError = ""
	c.logger.Debug().Str(xglog.FieldEvent, "challenge.generated").Str(xglog.FieldChallengeID, ch.ID).Msg("challenge generated")
}

func (c *Controller) previewReadyLocked() bool {
	return c.session != nil && c.session.PreviewReady()
}

// SubmitAnswer checks input against the active challenge. A mismatch issues a
// fresh challenge; the returned bool reports whether the answer was accepted.
func (c *Controller) SubmitAnswer(input string) (bool, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, ErrClosed
	}
	c.touchLocked()
	if c.verified {
		c.mu.Unlock()
		return false, ErrAlreadyVerified
	}
	if c.challenge == nil {
		c.mu.Unlock()
		return false, ErrNoChallenge
	}
	if !c.previewReadyLocked() {
		c.mu.Unlock()
		return false, ErrPreviewNotReady
	}

	if !challenge.Verify(*c.challenge, input) {
		metrics.RecordChallenge("mismatch")
		c.newChallengeLocked()
		c.challengeError = msgMismatch
		c.mu.Unlock()
		c.notify(bus.LevelError, "Verification Failed", msgMismatch, c.escapeActions(bus.ActionRefreshChallenge)...)
		return false, nil
	}

	metrics.RecordChallenge("verified")
	c.verified = true
	c.challenge = nil
	c.challengeError = ""
	auto := c.opts.AutoCalibrate
	if c.sched != nil {
		if err := c.sched.Fire(adbreak.EvChallengeVerified); err != nil {
			c.logger.Warn().Err(err).Msg("verification outside challenge flow")
		}
	}
	if auto {
		gen := c.generation
		c.goLocked(func() { c.autoCalibrate(gen) })
	}
	c.mu.Unlock()

	c.logger.Info().Str(xglog.FieldEvent, "challenge.verified").Msg("liveness challenge verified")
	if !auto {
		c.notify(bus.LevelInfo, "Verification Successful", "You can now proceed with calibration.")
	}
	return true, nil
}

// RefreshChallenge discards the active challenge and issues a new one.
func (c *Controller) RefreshChallenge() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.touchLocked()
	if c.verified {
		return ErrAlreadyVerified
	}
	if !c.previewReadyLocked() {
		return ErrPreviewNotReady
	}
	metrics.RecordChallenge("refreshed")
	c.newChallengeLocked()
	return nil
}

func (c *Controller) autoCalibrate(gen uint64) {
	c.mu.Lock()
	stale := c.generation != gen
	c.mu.Unlock()
	if stale {
		return
	}
	_ = c.Calibrate(c.lifetime)
}

// Calibrate establishes the gaze baseline from one still. On success the
// monitoring loops start.
func (c *Controller) Calibrate(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.touchLocked()
	if !c.verified {
		c.mu.Unlock()
		c.notify(bus.LevelError, "Verification Required", "Please complete the verification step before calibrating.",
			c.escapeActions(bus.ActionRefreshChallenge)...)
		return ErrNotVerified
	}
	if !c.previewReadyLocked() {
		c.mu.Unlock()
		c.notify(bus.LevelError, "Camera Not Ready", "Please wait for the camera preview to load.",
			c.escapeActions(bus.ActionRetryCamera)...)
		return ErrPreviewNotReady
	}
	if c.calib.InProgress() {
		c.mu.Unlock()
		return calibration.ErrInProgress
	}
	gen := c.generation
	sess := c.session
	c.lastError = ""
	if c.sched != nil {
		if err := c.sched.Fire(adbreak.EvCalibrationStarted); err != nil {
			c.mu.Unlock()
			return err
		}
	}
	c.mu.Unlock()

	err := c.calib.Calibrate(ctx, sess)

	c.mu.Lock()
	if c.generation != gen || c.closed {
		c.mu.Unlock()
		c.logger.Debug().Str(xglog.FieldEvent, "calibration.stale").Msg("discarding calibration result")
		return calibration.ErrSessionEnded
	}
	if err != nil {
		if errors.Is(err, calibration.ErrInProgress) {
			c.mu.Unlock()
			return err
		}
		message := "Could not calibrate gaze. Please ensure your face is clear and well-lit."
		switch {
		case errors.Is(err, calibration.ErrNotReady):
			c.lastError = msgCaptureFailed
		case c.sched != nil:
			cause := calibrationCause(err)
			c.lastError = msgCalibrationFailedPrefix + cause
			message = "Could not calibrate gaze: " + cause
		default:
			c.lastError = msgCalibrationFailed
		}
		if c.sched != nil {
			_ = c.sched.Fire(adbreak.EvCalibrationFailed)
		}
		c.mu.Unlock()
		c.notify(bus.LevelError, "Calibration Failed", message, c.escapeActions(bus.ActionRetryCalibration)...)
		return err
	}
	if c.sched != nil {
		_ = c.sched.Fire(adbreak.EvCalibrated)
	}
	c.startLoopsLocked()
	c.mu.Unlock()

	c.notify(bus.LevelInfo, "Calibration Successful", "Gaze tracking is now active.")
	c.evaluate()
	return nil
}

// calibrationCause returns the capability's own message for a failed
// calibration.
func calibrationCause(err error) string {
	return strings.TrimPrefix(err.Error(), calibration.ErrCalibrationFailed.Error()+": ")
}

// startLoopsLocked starts the gaze, motion and attention clock loops for the
// live session. Callers hold c.mu.
func (c *Controller) startLoopsLocked() {
	c.stopLoopsLocked()
	if c.session == nil {
		return
	}
	ctx, cancel := context.WithCancel(c.lifetime)
	c.loopCancel = cancel
	src := c.session.Source()
	callCtx := c.lifetime

	det := motion.New(c.opts.Motion, c.gaze.InFlight, func() {
		if ctx.Err() == nil {
			c.gaze.Poll(callCtx, src, gaze.TriggerMotion)
		}
	}, c.logger)

	c.goLocked(func() { c.gaze.Run(ctx, callCtx, src, c.opts.GazeInterval) })
	c.goLocked(func() { det.Run(ctx, src, c.opts.MotionInterval) })
	if c.sched != nil {
		c.goLocked(func() { c.runClock(ctx) })
	}
	c.logger.Info().Str(xglog.FieldEvent, "monitoring.started").Msg("gaze monitoring started")
}

// stopLoopsLocked cancels the loops without waiting for them; outstanding
// gaze results are discarded by the monitor's generation.
func (c *Controller) stopLoopsLocked() {
	if c.loopCancel != nil {
		c.loopCancel()
		c.loopCancel = nil
		c.logger.Debug().Str(xglog.FieldEvent, "monitoring.stopped").Msg("gaze monitoring stopped")
	}
}

func (c *Controller) runClock(ctx context.Context) {
	ticker := time.NewTicker(c.opts.ClockInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			c.mu.Lock()
			play := gate.ShouldPlay(c.inputsLocked())
			c.mu.Unlock()
			c.sched.Tick(play)
		}
	}
}

func (c *Controller) inputsLocked() gate.Inputs {
	return gate.Inputs{
		Verified:   c.verified,
		Calibrated: c.calib.Established(),
		Looking:    c.gaze.Sample().Looking,
		Focused:    c.focus.Focused(),
	}
}

// evaluate recomputes the gate and applies it to the gated element. The
// decision is sequenced under c.mu and applied outside it; an older decision
// applied late is ignored.
func (c *Controller) evaluate() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.sched != nil && !c.sched.State().Active() {
		c.mu.Unlock()
		return
	}
	in := c.inputsLocked()
	d := c.applier.Decide(in)
	gen := c.generation
	c.mu.Unlock()

	changed, err := c.applier.Apply(d)
	if err != nil {
		c.logger.Warn().Err(err).Str(xglog.FieldEvent, "gate.apply_failed").Msg("failed to apply playback decision")
		return
	}
	if changed {
		if d.Play && c.sched != nil {
			_ = c.gated.SetMuted(false)
			_ = c.gated.SetVolume(1)
		}
		telemetry.EmitGateTransition(c.lifetime, c.id, string(c.opts.Variant), gen, d.Play, gate.Reason(in))
		c.logger.Debug().Str(xglog.FieldEvent, "gate.applied").
			Bool(xglog.FieldShouldPlay, d.Play).Bool(xglog.FieldFocused, in.Focused).
			Str(xglog.FieldLooking, in.Looking.String()).Uint64("seq", d.Seq).Msg("playback gate applied")
	}
}

func (c *Controller) onGazeFailure(err error) {
	c.logger.Debug().Err(err).Msg("gaze analysis failed")
	c.notify(bus.LevelWarning, "Gaze Analysis Error", "Could not determine gaze. Tracking will continue.", c.escapeActions()...)
}

// Reset clears verification and calibration and stops monitoring. The camera
// stays live; a fresh challenge is issued when the preview is ready.
func (c *Controller) Reset() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.touchLocked()
	if c.sched != nil {
		st := c.sched.State()
		if !st.Active() {
			c.mu.Unlock()
			return ErrNoBreak
		}
		if st == adbreak.Monitoring {
			if err := c.sched.Fire(adbreak.EvRecalibrate); err != nil {
				c.mu.Unlock()
				return err
			}
		} else if st != adbreak.ChallengePending && st != adbreak.CameraRequesting && st != adbreak.BreakTriggered {
			c.mu.Unlock()
			return fmt.Errorf("%w: reset from %s", adbreak.ErrIllegalTransition, st)
		}
	}
	c.generation++
	c.resetAttentionLocked()
	if c.previewReadyLocked() {
		c.newChallengeLocked()
	}
	c.lastError = ""
	c.mu.Unlock()

	c.logger.Info().Str(xglog.FieldEvent, "session.reset").Msg("verification and calibration reset")
	c.evaluate()
	return nil
}

// resetAttentionLocked drops every attention input except the camera.
func (c *Controller) resetAttentionLocked() {
	c.stopLoopsLocked()
	c.verified = false
	c.challenge = nil
	c.challengeError = ""
	c.calib.Reset()
	c.gaze.Reset()
}

// RetryCamera requests the camera again after a denial or device error.
func (c *Controller) RetryCamera() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.touchLocked()
	if c.sched != nil && !c.sched.State().Active() {
		return ErrNoBreak
	}
	c.acquireLocked()
	return nil
}

// SetFocused records the window focus state.
func (c *Controller) SetFocused(focused bool) {
	c.mu.Lock()
	c.touchLocked()
	c.mu.Unlock()
	c.focus.Set(focused)
}
