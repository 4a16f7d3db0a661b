// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package controller is the attention-gated playback controller. One
// Controller hosts one viewer session: it acquires the camera, runs the
// liveness challenge and calibration, polls gaze and drives the gated
// element. The player variant adds a primary timeline with ad breaks.
package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/gazegate/internal/adbreak"
	"github.com/ManuGH/gazegate/internal/bus"
	"github.com/ManuGH/gazegate/internal/calibration"
	"github.com/ManuGH/gazegate/internal/camera"
	"github.com/ManuGH/gazegate/internal/challenge"
	"github.com/ManuGH/gazegate/internal/focus"
	"github.com/ManuGH/gazegate/internal/gate"
	"github.com/ManuGH/gazegate/internal/gaze"
	"github.com/ManuGH/gazegate/internal/impressions"
	"github.com/ManuGH/gazegate/internal/inference"
	xglog "github.com/ManuGH/gazegate/internal/log"
	"github.com/ManuGH/gazegate/internal/media"
	"github.com/ManuGH/gazegate/internal/metrics"
	"github.com/ManuGH/gazegate/internal/motion"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrClosed          = errors.New("controller: session closed")
	ErrNotSupported    = errors.New("controller: operation not supported by this variant")
	ErrNoChallenge     = errors.New("controller: no active challenge")
	ErrAlreadyVerified = errors.New("controller: challenge already verified")
	ErrNotVerified     = errors.New("controller: challenge not verified")
	ErrPreviewNotReady = errors.New("controller: camera preview not ready")
	ErrBreakActive     = errors.New("controller: ad break in progress")
	ErrNoBreak         = errors.New("controller: no ad break in progress")
	ErrUnknownTarget   = errors.New("controller: unknown element")
	ErrUnknownAction   = errors.New("controller: unknown control action")
)

// Variant selects the call site.
type Variant string

const (
	// VariantDemo gates a single element with no primary timeline.
	VariantDemo Variant = "demo"
	// VariantPlayer gates ad breaks inserted into a primary video.
	VariantPlayer Variant = "player"
)

// Valid reports whether v is a known variant.
func (v Variant) Valid() bool { return v == VariantDemo || v == VariantPlayer }

// Element names used in events and directives.
const (
	TargetGated   = "gated"
	TargetPrimary = "primary"
)

const (
	DefaultClockInterval = time.Second

	msgCameraDenied            = "Camera access denied. Please enable camera permissions in your browser settings."
	msgCalibrationFailed       = "AI calibration failed. Please try again."
	msgCalibrationFailedPrefix = "AI calibration failed. Error: "
	msgCaptureFailed           = "Failed to capture image for calibration."
	msgMismatch                = "Incorrect characters. Please try again."
)

// Deps are the collaborators of a controller.
type Deps struct {
	Device     camera.Device
	Capability inference.Capability
	Challenges *challenge.Generator
	// Bus receives viewer notifications. A private memory bus is used when nil.
	Bus      bus.Bus
	Recorder *impressions.Recorder
	Logger   zerolog.Logger
}

// Options parameterise a controller.
type Options struct {
	Variant        Variant
	GazeInterval   time.Duration
	MotionInterval time.Duration
	ClockInterval  time.Duration
	Motion         motion.Config
	// MediaSrc is the gated element source of the demo variant.
	MediaSrc string
	// MainSrc is the primary element source of the player variant.
	MainSrc  string
	AdBreaks []adbreak.Config
	// AutoCalibrate starts calibration as soon as the challenge is verified.
	AutoCalibrate bool
}

// Controller hosts one viewer session.
type Controller struct {
	id     string
	opts   Options
	deps   Deps
	logger zerolog.Logger

	camera  *camera.Manager
	calib   *calibration.Controller
	gaze    *gaze.Monitor
	focus   *focus.Tracker
	seq     *media.Sequencer
	gated   *media.RemoteElement
	primary *media.RemoteElement
	applier *gate.Applier
	sched   *adbreak.Scheduler

	bus     bus.Bus
	ownBus  *bus.MemoryBus
	topic   string
	inbox   bus.Subscriber
	unsubs  []func()
	created time.Time

	lifetime context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu             sync.Mutex
	closed         bool
	generation     uint64
	camEpoch       uint64
	session        *camera.Session
	acquiring      bool
	acqCancel      context.CancelFunc
	challenge      *challenge.Challenge
	verified       bool
	challengeError string
	lastError      string
	loopCancel     context.CancelFunc
	pausedByBreak  bool
	lastActivity   time.Time
}

// New creates a controller. Call Start to begin the session.
func New(deps Deps, opts Options) (*Controller, error) {
	if !opts.Variant.Valid() {
		return nil, ErrNotSupported
	}
	if deps.Device == nil || deps.Capability == nil {
		return nil, errors.New("controller: device and capability are required")
	}
	if deps.Challenges == nil {
		deps.Challenges = challenge.NewGenerator()
	}
	if opts.GazeInterval <= 0 {
		opts.GazeInterval = gaze.DefaultInterval
	}
	if opts.MotionInterval <= 0 {
		opts.MotionInterval = motion.DefaultInterval
	}
	if opts.ClockInterval <= 0 {
		opts.ClockInterval = DefaultClockInterval
	}

	id := uuid.NewString()
	logger := deps.Logger.With().
		Str(xglog.FieldSessionID, id).
		Str(xglog.FieldVariant, string(opts.Variant)).
		Logger()

	c := &Controller{
		id:           id,
		opts:         opts,
		deps:         deps,
		logger:       logger.With().Str(xglog.FieldComponent, "controller").Logger(),
		camera:       camera.NewManager(deps.Device, logger),
		calib:        calibration.New(deps.Capability, logger),
		focus:        focus.NewTracker(),
		seq:          &media.Sequencer{},
		created:      time.Now(),
		lastActivity: time.Now(),
	}
	c.gaze = gaze.New(deps.Capability, logger,
		gaze.WithOnChange(func(gaze.Sample) { c.evaluate() }),
		gaze.WithOnFailure(c.onGazeFailure),
	)
	c.gated = media.NewRemoteElement(TargetGated, c.seq)
	c.applier = gate.NewApplier(c.gated)

	if opts.Variant == VariantPlayer {
		sched, err := adbreak.New(opts.AdBreaks, logger)
		if err != nil {
			return nil, err
		}
		c.sched = sched
		c.primary = media.NewRemoteElement(TargetPrimary, c.seq)
	}

	c.bus = deps.Bus
	if c.bus == nil {
		c.ownBus = bus.NewMemoryBus(0)
		c.bus = c.ownBus
	}
	c.topic = bus.SessionTopic(id)
	c.lifetime, c.cancel = context.WithCancel(context.Background())
	inbox, err := c.bus.Subscribe(c.lifetime, c.topic)
	if err != nil {
		c.cancel()
		return nil, err
	}
	c.inbox = inbox
	return c, nil
}

// NewDemo is the standalone call site: one gated element, manual calibration.
func NewDemo(deps Deps, mediaSrc string, opts Options) (*Controller, error) {
	opts.Variant = VariantDemo
	opts.MediaSrc = mediaSrc
	return New(deps, opts)
}

// NewPlayer is the embedded call site: a primary timeline with ad breaks and
// calibration starting right after verification.
func NewPlayer(deps Deps, mainSrc string, breaks []adbreak.Config, opts Options) (*Controller, error) {
	opts.Variant = VariantPlayer
	opts.MainSrc = mainSrc
	opts.AdBreaks = breaks
	opts.AutoCalibrate = true
	return New(deps, opts)
}

// ID returns the session id.
func (c *Controller) ID() string { return c.id }

// Variant returns the call site variant.
func (c *Controller) Variant() Variant { return c.opts.Variant }

// Start wires subscriptions and, in the demo variant, requests the camera.
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.unsubs = append(c.unsubs,
		c.focus.Subscribe(func(bool) { c.evaluate() }),
		c.gated.Subscribe(c.onGatedEvent),
	)
	if c.primary != nil {
		c.unsubs = append(c.unsubs, c.primary.Subscribe(c.onPrimaryEvent))
	}
	if c.opts.Variant == VariantDemo {
		c.acquireLocked()
	}
	c.mu.Unlock()

	metrics.SessionOpened()
	if c.opts.Variant == VariantDemo && c.opts.MediaSrc != "" {
		_ = c.gated.Load(c.opts.MediaSrc)
	}
	if c.primary != nil && c.opts.MainSrc != "" {
		_ = c.primary.Load(c.opts.MainSrc)
	}
	c.logger.Info().Str(xglog.FieldEvent, "session.started").Msg("controller session started")
	return nil
}

// Close tears the session down: loops stop, the camera is released and every
// subscription is removed. Safe to call repeatedly.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.generation++
	c.camEpoch++
	c.stopLoopsLocked()
	c.cancelAcquireLocked()
	c.session = nil
	unsubs := c.unsubs
	c.unsubs = nil
	c.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
	c.cancel()
	c.camera.ReleaseAll()
	c.gaze.Reset()
	c.calib.Reset()
	c.wg.Wait()

	_ = c.inbox.Close()
	if c.ownBus != nil {
		c.ownBus.Close()
	}
	metrics.SessionClosed()
	c.logger.Info().Str(xglog.FieldEvent, "session.closed").Msg("controller session closed")
	return nil
}

// Closed reports whether Close was called.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// LastActivity returns the time of the last client interaction.
func (c *Controller) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// Touch records client activity that does not go through an operation, such
// as polling or frame pushes.
func (c *Controller) Touch() {
	c.mu.Lock()
	c.touchLocked()
	c.mu.Unlock()
}

func (c *Controller) touchLocked() { c.lastActivity = time.Now() }

// Notifications drains pending viewer notifications.
func (c *Controller) Notifications() []bus.Notification {
	return bus.Drain(c.inbox)
}

// goLocked runs fn on a tracked goroutine unless the controller is closed.
// Callers hold c.mu.
func (c *Controller) goLocked(fn func()) bool {
	if c.closed {
		return false
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
	return true
}

func (c *Controller) notify(level bus.Level, title, message string, actions ...bus.Action) {
	n := bus.New(level, title, message, actions...)
	n.Session = c.id
	if err := c.bus.Publish(context.Background(), c.topic, n); err != nil && !errors.Is(err, bus.ErrClosed) {
		c.logger.Warn().Err(err).Str(xglog.FieldEvent, "notification.publish_failed").Msg("failed to publish notification")
	}
}

// escapeActions returns the proceed action when the active break offers it.
func (c *Controller) escapeActions(actions ...bus.Action) []bus.Action {
	if c.sched != nil && c.sched.CanProceed() {
		actions = append(actions, bus.ActionProceed)
	}
	return actions
}
