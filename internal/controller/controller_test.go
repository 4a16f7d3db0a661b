// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package controller

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/gazegate/internal/adbreak"
	"github.com/ManuGH/gazegate/internal/bus"
	"github.com/ManuGH/gazegate/internal/calibration"
	"github.com/ManuGH/gazegate/internal/camera"
	"github.com/ManuGH/gazegate/internal/frame"
	"github.com/ManuGH/gazegate/internal/gaze"
	"github.com/ManuGH/gazegate/internal/impressions"
	"github.com/ManuGH/gazegate/internal/inference"
	"github.com/ManuGH/gazegate/internal/media"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const (
	waitFor = 2 * time.Second
	tick    = 2 * time.Millisecond
)

type harness struct {
	t   *testing.T
	dev *camera.PushDevice
	c   *Controller
	rec *impressions.Recorder

	looking       atomic.Bool
	analyzeErr    atomic.Bool
	calibrateErr  atomic.Bool
	analyzeCalls  atomic.Int32
	calibrateHook func(ctx context.Context) error
}

func newHarness(t *testing.T, variant Variant, breaks []adbreak.Config) *harness {
	t.Helper()
	return newHarnessWithDevice(t, variant, breaks, nil)
}

// newHarnessWithDevice lets wrap put a device in front of the push device.
func newHarnessWithDevice(t *testing.T, variant Variant, breaks []adbreak.Config, wrap func(*camera.PushDevice) camera.Device) *harness {
	t.Helper()
	h := &harness{t: t, dev: camera.NewPushDevice()}
	var device camera.Device = h.dev
	if wrap != nil {
		device = wrap(h.dev)
	}
	capability := inference.Funcs{
		CalibrateFunc: func(ctx context.Context, _ frame.Still) error {
			if h.calibrateHook != nil {
				return h.calibrateHook(ctx)
			}
			if h.calibrateErr.Load() {
				return errors.New("face not found")
			}
			return nil
		},
		AnalyzeFunc: func(context.Context, frame.Still) (inference.Analysis, error) {
			h.analyzeCalls.Add(1)
			if h.analyzeErr.Load() {
				return inference.Analysis{}, errors.New("inference unavailable")
			}
			return inference.Analysis{IsLookingAtScreen: h.looking.Load()}, nil
		},
	}
	logger := zerolog.New(io.Discard)
	h.rec = impressions.NewRecorder(impressions.NewMemoryStore(), nil, logger)
	deps := Deps{Device: device, Capability: capability, Recorder: h.rec, Logger: logger}
	opts := Options{
		GazeInterval:   5 * time.Millisecond,
		MotionInterval: 5 * time.Millisecond,
		ClockInterval:  5 * time.Millisecond,
	}

	var err error
	if variant == VariantPlayer {
		h.c, err = NewPlayer(deps, "https://cdn.example.com/main.mp4", breaks, opts)
	} else {
		h.c, err = NewDemo(deps, "https://cdn.example.com/demo.mp4", opts)
	}
	require.NoError(t, err)
	require.NoError(t, h.c.Start())
	t.Cleanup(func() { _ = h.c.Close() })
	return h
}

// noLeaks verifies goroutines after the harness cleanup closed the controller.
func noLeaks(t *testing.T) {
	t.Helper()
	ignore := goleak.IgnoreCurrent()
	t.Cleanup(func() { goleak.VerifyNone(t, ignore) })
}

func pngFrame(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for x := 0; x < 32; x++ {
		for y := 0; y < 24; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 10), B: 80, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// grantCamera resolves the permission prompt and pushes the first frame.
func (h *harness) grantCamera() {
	h.t.Helper()
	h.dev.Resolve(true)
	require.Eventually(h.t, func() bool { return h.c.Snapshot(0).Camera.SessionID != "" }, waitFor, tick)
	require.NoError(h.t, h.dev.Push(pngFrame(h.t)))
	require.Eventually(h.t, func() bool { return h.c.Snapshot(0).Camera.PreviewReady }, waitFor, tick)
}

func (h *harness) challengeText() string {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	if h.c.challenge == nil {
		return ""
	}
	return h.c.challenge.Text
}

func (h *harness) verify() {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return h.challengeText() != "" }, waitFor, tick)
	ok, err := h.c.SubmitAnswer(h.challengeText())
	require.NoError(h.t, err)
	require.True(h.t, ok)
}

func hasNotification(ns []bus.Notification, title string, action bus.Action) bool {
	for _, n := range ns {
		if n.Title != title {
			continue
		}
		if action == "" {
			return true
		}
		for _, a := range n.Actions {
			if a == action {
				return true
			}
		}
	}
	return false
}

func TestDemo_VerifyCalibrateAndGate(t *testing.T) {
	noLeaks(t)

	h := newHarness(t, VariantDemo, nil)
	assert.Equal(t, "https://cdn.example.com/demo.mp4", h.c.gated.Src())

	h.grantCamera()
	snap := h.c.Snapshot(0)
	require.NotNil(t, snap.Challenge, "challenge is issued once the preview renders")
	assert.NotEmpty(t, snap.Challenge.Image)

	require.ErrorIs(t, h.c.Calibrate(context.Background()), ErrNotVerified)

	first := snap.Challenge.ID
	ok, err := h.c.SubmitAnswer("definitely wrong")
	require.NoError(t, err)
	assert.False(t, ok)
	snap = h.c.Snapshot(0)
	require.NotNil(t, snap.Challenge)
	assert.NotEqual(t, first, snap.Challenge.ID, "a mismatch issues a fresh challenge")
	assert.Equal(t, msgMismatch, snap.Challenge.Error)

	h.verify()
	snap = h.c.Snapshot(0)
	assert.True(t, snap.Verified)
	assert.Nil(t, snap.Challenge)
	assert.False(t, snap.ShouldPlay, "verified alone does not play")

	h.looking.Store(true)
	require.NoError(t, h.c.Calibrate(context.Background()))
	require.Eventually(t, func() bool { return !h.c.gated.Paused() }, waitFor, tick)

	h.c.SetFocused(false)
	assert.True(t, h.c.gated.Paused(), "blur pauses synchronously")
	h.c.SetFocused(true)
	assert.False(t, h.c.gated.Paused())

	h.looking.Store(false)
	require.Eventually(t, func() bool { return h.c.gated.Paused() }, waitFor, tick)
	assert.Equal(t, gaze.Away, h.c.Snapshot(0).Gaze.Looking)

	ns := h.c.Notifications()
	assert.True(t, hasNotification(ns, "Verification Failed", bus.ActionRefreshChallenge))
	assert.True(t, hasNotification(ns, "Verification Successful", ""))
	assert.True(t, hasNotification(ns, "Calibration Successful", ""))

	require.NoError(t, h.c.Close())
	require.NoError(t, h.c.Close())
}

func TestDemo_ResetStopsMonitoring(t *testing.T) {
	noLeaks(t)

	h := newHarness(t, VariantDemo, nil)
	h.grantCamera()
	h.verify()
	h.looking.Store(true)
	require.NoError(t, h.c.Calibrate(context.Background()))
	require.Eventually(t, func() bool { return h.analyzeCalls.Load() >= 2 }, waitFor, tick)

	require.NoError(t, h.c.Reset())
	require.NoError(t, h.c.Reset())

	snap := h.c.Snapshot(0)
	assert.False(t, snap.Verified)
	assert.False(t, snap.Calibration.Established)
	assert.Equal(t, gaze.Unknown, snap.Gaze.Looking)
	assert.NotNil(t, snap.Challenge, "preview is still ready so a new challenge is issued")
	assert.NotEmpty(t, snap.Camera.SessionID, "reset keeps the camera")
	assert.True(t, h.c.gated.Paused())

	time.Sleep(20 * time.Millisecond)
	settled := h.analyzeCalls.Load()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, settled, h.analyzeCalls.Load(), "no gaze polls after reset")
}

func TestDemo_GazeFailurePausesAndWarns(t *testing.T) {
	noLeaks(t)

	h := newHarness(t, VariantDemo, nil)
	h.grantCamera()
	h.verify()
	h.looking.Store(true)
	require.NoError(t, h.c.Calibrate(context.Background()))
	require.Eventually(t, func() bool { return !h.c.gated.Paused() }, waitFor, tick)

	h.analyzeErr.Store(true)
	require.Eventually(t, func() bool { return h.c.gated.Paused() }, waitFor, tick)
	assert.Equal(t, gaze.Unknown, h.c.Snapshot(0).Gaze.Looking)
	assert.True(t, hasNotification(h.c.Notifications(), "Gaze Analysis Error", ""))

	h.analyzeErr.Store(false)
	require.Eventually(t, func() bool { return !h.c.gated.Paused() }, waitFor, tick, "tracking continues after a failure")
}

func TestDemo_CameraDeniedOffersRetry(t *testing.T) {
	noLeaks(t)

	h := newHarness(t, VariantDemo, nil)
	h.dev.Resolve(false)
	require.Eventually(t, func() bool { return h.c.Snapshot(0).Error == msgCameraDenied }, waitFor, tick)
	assert.Equal(t, camera.PermissionDenied, h.c.Snapshot(0).Camera.Permission)
	assert.True(t, hasNotification(h.c.Notifications(), "Camera Access Denied", bus.ActionRetryCamera))

	require.NoError(t, h.c.RetryCamera())
	h.grantCamera()
	assert.Empty(t, h.c.Snapshot(0).Error)
}

// requestRecorder remembers the context of every camera request.
type requestRecorder struct {
	*camera.PushDevice

	mu   sync.Mutex
	ctxs []context.Context
}

func (d *requestRecorder) RequestAccess(ctx context.Context) (camera.Stream, error) {
	d.mu.Lock()
	d.ctxs = append(d.ctxs, ctx)
	d.mu.Unlock()
	return d.PushDevice.RequestAccess(ctx)
}

func (d *requestRecorder) requests() []context.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]context.Context(nil), d.ctxs...)
}

func TestDemo_RetryCameraCancelsDeniedRequest(t *testing.T) {
	noLeaks(t)

	var rec *requestRecorder
	h := newHarnessWithDevice(t, VariantDemo, nil, func(dev *camera.PushDevice) camera.Device {
		rec = &requestRecorder{PushDevice: dev}
		return rec
	})
	h.dev.Resolve(false)
	require.Eventually(t, func() bool { return h.c.Snapshot(0).Error == msgCameraDenied }, waitFor, tick)
	require.Len(t, rec.requests(), 1)
	denied := rec.requests()[0]

	require.NoError(t, h.c.RetryCamera())
	require.Eventually(t, func() bool { return len(rec.requests()) == 2 }, waitFor, tick)
	assert.ErrorIs(t, denied.Err(), context.Canceled, "the denied attempt's context is released")
	assert.NoError(t, rec.requests()[1].Err())

	h.grantCamera()
	assert.NoError(t, rec.requests()[1].Err(), "the live attempt keeps its context")
}

func TestDemo_CalibrationFailure(t *testing.T) {
	noLeaks(t)

	h := newHarness(t, VariantDemo, nil)
	h.grantCamera()
	h.verify()
	h.calibrateErr.Store(true)

	err := h.c.Calibrate(context.Background())
	require.ErrorIs(t, err, calibration.ErrCalibrationFailed)
	snap := h.c.Snapshot(0)
	assert.Equal(t, msgCalibrationFailed, snap.Error)
	assert.False(t, snap.Calibration.Established)
	assert.True(t, hasNotification(h.c.Notifications(), "Calibration Failed", bus.ActionRetryCalibration))

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, h.analyzeCalls.Load(), "monitoring never starts without calibration")

	h.calibrateErr.Store(false)
	require.NoError(t, h.c.Calibrate(context.Background()))
	assert.Empty(t, h.c.Snapshot(0).Error)
}

func TestDemo_ResetDiscardsOutstandingCalibration(t *testing.T) {
	noLeaks(t)

	h := newHarness(t, VariantDemo, nil)
	release := make(chan struct{})
	h.calibrateHook = func(ctx context.Context) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	h.grantCamera()
	h.verify()

	done := make(chan error, 1)
	go func() { done <- h.c.Calibrate(context.Background()) }()
	require.Eventually(t, func() bool { return h.c.Snapshot(0).Calibration.InProgress }, waitFor, tick)

	require.NoError(t, h.c.Reset())
	close(release)
	require.ErrorIs(t, <-done, calibration.ErrSessionEnded)
	assert.False(t, h.c.Snapshot(0).Calibration.Established)
	assert.Zero(t, h.analyzeCalls.Load())
}

func TestDemo_CloseCancelsPendingCamera(t *testing.T) {
	noLeaks(t)

	h := newHarness(t, VariantDemo, nil)
	require.Eventually(t, func() bool { return h.c.Snapshot(0).Camera.Acquiring }, waitFor, tick)
	require.NoError(t, h.c.Close())

	assert.True(t, h.c.Closed())
	assert.ErrorIs(t, h.c.Reset(), ErrClosed)
	_, err := h.c.SubmitAnswer("x")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Zero(t, h.c.gated.Subscribers())
}

func skipAfter(n int) *int { return &n }

func triggerBreak(t *testing.T, h *harness, at float64) {
	t.Helper()
	dur := 60.0
	_, err := h.c.HandleEvent(TargetPrimary, media.Report{Type: media.EventLoadedMetadata, Duration: &dur})
	require.NoError(t, err)
	_, err = h.c.HandleEvent(TargetPrimary, media.Report{Type: media.EventPlay})
	require.NoError(t, err)
	_, err = h.c.HandleEvent(TargetPrimary, media.Report{Type: media.EventTimeUpdate, CurrentTime: &at})
	require.NoError(t, err)
}

func TestPlayer_NoBreakBeforeDurationKnown(t *testing.T) {
	h := newHarness(t, VariantPlayer, []adbreak.Config{
		{ID: "pre", TriggerTime: 0, MediaSrc: "https://cdn.example.com/ads/pre.mp4"},
	})
	at := 1.0
	_, err := h.c.HandleEvent(TargetPrimary, media.Report{Type: media.EventTimeUpdate, CurrentTime: &at})
	require.NoError(t, err)
	assert.Equal(t, adbreak.Idle, h.c.sched.State())
}

func TestPlayer_SkipAfterAttentiveCountdown(t *testing.T) {
	noLeaks(t)

	h := newHarness(t, VariantPlayer, []adbreak.Config{
		{ID: "mid", TriggerTime: 5, MediaSrc: "https://cdn.example.com/ads/mid.mp4", SkipTime: skipAfter(2)},
	})
	triggerBreak(t, h, 6)

	assert.True(t, h.c.primary.Paused(), "the break pauses the primary video")
	assert.Equal(t, "https://cdn.example.com/ads/mid.mp4", h.c.gated.Src())
	assert.Equal(t, adbreak.CameraRequesting, h.c.sched.State())
	require.ErrorIs(t, h.c.Control(ControlToggle, 0), ErrBreakActive)
	require.ErrorIs(t, h.c.Skip(), adbreak.ErrIllegalTransition)

	h.looking.Store(true)
	h.grantCamera()
	h.verify()
	require.Eventually(t, func() bool { return h.c.sched.State() == adbreak.Monitoring }, waitFor, tick)
	require.Eventually(t, func() bool { return !h.c.gated.Paused() }, waitFor, tick)
	assert.False(t, h.c.gated.Muted())
	assert.Equal(t, 1.0, h.c.gated.Volume())

	require.Eventually(t, func() bool { return h.c.sched.SkipEligible() }, waitFor, tick)
	require.NoError(t, h.c.Skip())

	snap := h.c.Snapshot(0)
	assert.Equal(t, adbreak.Idle, snap.AdBreak.State)
	assert.Equal(t, []string{"mid"}, snap.AdBreak.Played)
	assert.Empty(t, snap.Camera.SessionID, "camera released on resume")
	assert.False(t, snap.Verified)
	assert.False(t, h.c.primary.Paused(), "primary resumes after the break")
	assert.True(t, h.c.gated.Paused())

	imps, err := h.rec.List(context.Background(), h.c.ID())
	require.NoError(t, err)
	require.Len(t, imps, 1)
	assert.Equal(t, "mid", imps[0].BreakID)
	assert.Equal(t, string(adbreak.OutcomeSkipped), imps[0].Outcome)
	assert.GreaterOrEqual(t, imps[0].AttentiveSeconds, 2)

	at := 10.0
	_, err = h.c.HandleEvent(TargetPrimary, media.Report{Type: media.EventTimeUpdate, CurrentTime: &at})
	require.NoError(t, err)
	assert.Equal(t, adbreak.Idle, h.c.sched.State(), "a played break never triggers again")
	require.NoError(t, h.c.Control(ControlToggle, 0))
}

func TestPlayer_ProceedBeforeCameraGranted(t *testing.T) {
	noLeaks(t)

	h := newHarness(t, VariantPlayer, []adbreak.Config{
		{ID: "mid", TriggerTime: 5, MediaSrc: "https://cdn.example.com/ads/mid.mp4", SkipTime: skipAfter(5)},
	})
	triggerBreak(t, h, 5)
	require.Equal(t, adbreak.CameraRequesting, h.c.sched.State())

	require.NoError(t, h.c.Proceed())
	assert.Equal(t, adbreak.Idle, h.c.sched.State())
	assert.False(t, h.c.primary.Paused())

	h.dev.Resolve(true)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, h.c.Snapshot(0).Camera.SessionID, "a late grant does not reopen the camera")

	imps, err := h.rec.List(context.Background(), h.c.ID())
	require.NoError(t, err)
	require.Len(t, imps, 1)
	assert.Equal(t, string(adbreak.OutcomeProceeded), imps[0].Outcome)
	require.NoError(t, h.c.Close())
}

func TestPlayer_ChallengeReadyAtBreakStart(t *testing.T) {
	noLeaks(t)

	h := newHarness(t, VariantPlayer, []adbreak.Config{
		{ID: "mid", TriggerTime: 5, MediaSrc: "https://cdn.example.com/ads/mid.mp4"},
	})
	triggerBreak(t, h, 5)

	issued := h.challengeText()
	require.NotEmpty(t, issued, "the challenge is generated when the break triggers")
	assert.Nil(t, h.c.Snapshot(0).Challenge, "not shown before the preview renders")
	_, err := h.c.SubmitAnswer(issued)
	require.ErrorIs(t, err, ErrPreviewNotReady)

	h.grantCamera()
	assert.Equal(t, issued, h.challengeText(), "the preview does not replace it")
	require.NotNil(t, h.c.Snapshot(0).Challenge)
	h.verify()
}

func TestPlayer_CalibrationFailureReportsCause(t *testing.T) {
	noLeaks(t)

	h := newHarness(t, VariantPlayer, []adbreak.Config{
		{ID: "mid", TriggerTime: 5, MediaSrc: "https://cdn.example.com/ads/mid.mp4", SkipTime: skipAfter(5)},
	})
	h.calibrateErr.Store(true)
	triggerBreak(t, h, 5)
	h.grantCamera()
	h.verify()

	require.Eventually(t, func() bool {
		return h.c.Snapshot(0).Error == "AI calibration failed. Error: face not found"
	}, waitFor, tick)
	assert.Equal(t, adbreak.ChallengeVerified, h.c.sched.State())

	var failed *bus.Notification
	for _, n := range h.c.Notifications() {
		if n.Title == "Calibration Failed" {
			failed = &n
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, "Could not calibrate gaze: face not found", failed.Message)
	assert.Contains(t, failed.Actions, bus.ActionRetryCalibration)
	assert.Contains(t, failed.Actions, bus.ActionProceed)
}

func TestPlayer_ProceedUnavailableWhileMonitoring(t *testing.T) {
	noLeaks(t)

	h := newHarness(t, VariantPlayer, []adbreak.Config{
		{ID: "mid", TriggerTime: 5, MediaSrc: "https://cdn.example.com/ads/mid.mp4", SkipTime: skipAfter(30)},
	})
	triggerBreak(t, h, 5)
	h.looking.Store(true)
	h.grantCamera()
	h.verify()
	require.Eventually(t, func() bool { return h.c.sched.State() == adbreak.Monitoring }, waitFor, tick)

	require.ErrorIs(t, h.c.Proceed(), adbreak.ErrIllegalTransition)
	snap := h.c.Snapshot(0)
	assert.Equal(t, adbreak.Monitoring, snap.AdBreak.State)
	assert.False(t, snap.AdBreak.CanProceed)
	assert.Empty(t, snap.AdBreak.Played)

	h.analyzeErr.Store(true)
	var warnings []bus.Notification
	require.Eventually(t, func() bool {
		for _, n := range h.c.Notifications() {
			if n.Title == "Gaze Analysis Error" {
				warnings = append(warnings, n)
			}
		}
		return len(warnings) > 0
	}, waitFor, tick)
	for _, n := range warnings {
		assert.NotContains(t, n.Actions, bus.ActionProceed)
	}
}

func TestPlayer_UnskippableBreak(t *testing.T) {
	noLeaks(t)

	h := newHarness(t, VariantPlayer, []adbreak.Config{
		{ID: "pre", TriggerTime: 0, MediaSrc: "https://cdn.example.com/ads/pre.mp4"},
	})
	triggerBreak(t, h, 0)

	assert.ErrorIs(t, h.c.Proceed(), adbreak.ErrNotSkippable)
	assert.Error(t, h.c.Skip())

	h.looking.Store(true)
	h.grantCamera()
	h.verify()
	require.Eventually(t, func() bool { return h.c.sched.State() == adbreak.Monitoring }, waitFor, tick)

	_, err := h.c.HandleEvent(TargetGated, media.Report{Type: media.EventEnded})
	require.NoError(t, err)
	assert.Equal(t, adbreak.Idle, h.c.sched.State())

	imps, err := h.rec.List(context.Background(), h.c.ID())
	require.NoError(t, err)
	require.Len(t, imps, 1)
	assert.Equal(t, string(adbreak.OutcomeCompleted), imps[0].Outcome)
}

func TestPlayer_CameraDeniedOffersProceed(t *testing.T) {
	noLeaks(t)

	h := newHarness(t, VariantPlayer, []adbreak.Config{
		{ID: "mid", TriggerTime: 5, MediaSrc: "https://cdn.example.com/ads/mid.mp4", SkipTime: skipAfter(3)},
	})
	triggerBreak(t, h, 7)
	h.dev.Resolve(false)

	require.Eventually(t, func() bool { return h.c.Snapshot(0).Error == msgCameraDenied }, waitFor, tick)
	ns := h.c.Notifications()
	assert.True(t, hasNotification(ns, "Camera Access Denied", bus.ActionRetryCamera))
	assert.True(t, hasNotification(ns, "Camera Access Denied", bus.ActionProceed))
}

func TestPlayer_ControlsOutsideBreak(t *testing.T) {
	h := newHarness(t, VariantPlayer, nil)

	require.NoError(t, h.c.Control(ControlVolume, 0))
	assert.True(t, h.c.primary.Muted())
	require.NoError(t, h.c.Control(ControlMute, 0))
	assert.False(t, h.c.primary.Muted())
	assert.Equal(t, 0.5, h.c.primary.Volume())
	require.ErrorIs(t, h.c.Control(ControlVolume, 2), media.ErrInvalidValue)
	require.ErrorIs(t, h.c.Control("rewind", 0), ErrUnknownAction)

	require.NoError(t, h.c.Control(ControlToggle, 0))
	assert.False(t, h.c.primary.Paused())

	dirs := h.c.Snapshot(0).Directives
	require.NotEmpty(t, dirs)
	for i := 1; i < len(dirs); i++ {
		assert.Less(t, dirs[i-1].Seq, dirs[i].Seq)
	}
	last := dirs[len(dirs)-1].Seq
	assert.Empty(t, h.c.Snapshot(last).Directives)
}

func TestDemo_PlayerOnlyOperations(t *testing.T) {
	h := newHarness(t, VariantDemo, nil)
	assert.ErrorIs(t, h.c.Skip(), ErrNotSupported)
	assert.ErrorIs(t, h.c.Proceed(), ErrNotSupported)
	assert.ErrorIs(t, h.c.Control(ControlToggle, 0), ErrNotSupported)
	_, err := h.c.HandleEvent(TargetPrimary, media.Report{Type: media.EventPlay})
	assert.ErrorIs(t, err, ErrUnknownTarget)
}

func TestMergeDirectives(t *testing.T) {
	a := []media.Directive{{Seq: 1}, {Seq: 4}}
	b := []media.Directive{{Seq: 2}, {Seq: 3}, {Seq: 5}}
	out := mergeDirectives(a, b)
	seqs := make([]uint64, len(out))
	for i, d := range out {
		seqs[i] = d.Seq
	}
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, seqs)
}
