// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package controller

import (
	"errors"
	"fmt"

	"github.com/ManuGH/gazegate/internal/adbreak"
	"github.com/ManuGH/gazegate/internal/impressions"
	xglog "github.com/ManuGH/gazegate/internal/log"
	"github.com/ManuGH/gazegate/internal/media"
)

// Control actions on the primary element.
const (
	ControlToggle = "toggle"
	ControlSeek   = "seek"
	ControlVolume = "volume"
	ControlMute   = "mute"
)

// HandleEvent applies a client report to the named element.
func (c *Controller) HandleEvent(target string, r media.Report) (media.Event, error) {
	if !r.Type.Valid() {
		return media.Event{}, fmt.Errorf("%w: event %q", ErrUnknownAction, r.Type)
	}
	el, err := c.element(target)
	if err != nil {
		return media.Event{}, err
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return media.Event{}, ErrClosed
	}
	c.touchLocked()
	c.mu.Unlock()
	return el.Dispatch(r), nil
}

func (c *Controller) element(target string) (*media.RemoteElement, error) {
	switch target {
	case TargetGated:
		return c.gated, nil
	case TargetPrimary:
		if c.primary != nil {
			return c.primary, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, target)
}

func (c *Controller) onGatedEvent(ev media.Event) {
	switch ev.Type {
	case media.EventEnded:
		if c.sched != nil && c.sched.State() == adbreak.Monitoring {
			if err := c.endBreak(adbreak.OutcomeCompleted); err != nil {
				c.logger.Debug().Err(err).Msg("ad ended outside monitoring")
			}
		}
	case media.EventPlay, media.EventPause:
		// The viewer may use the native controls; the gate wins.
		c.evaluate()
	}
}

func (c *Controller) onPrimaryEvent(ev media.Event) {
	switch ev.Type {
	case media.EventPlay:
		if c.sched.State().Active() {
			// The primary stays paused for the whole break.
			c.mu.Lock()
			c.pausedByBreak = true
			c.mu.Unlock()
			_ = c.primary.Pause()
		}
	case media.EventTimeUpdate:
		dur, _ := media.FiniteDuration(ev.Duration)
		if cfg, ok := c.sched.OnTimeUpdate(ev.CurrentTime, dur); ok {
			c.startBreak(cfg)
		}
	}
}

// startBreak pauses the primary video, loads the ad into the gated element,
// pre-generates the challenge and requests the camera.
func (c *Controller) startBreak(cfg adbreak.Config) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.generation++
	c.resetAttentionLocked()
	// Ready the instant the preview renders.
	c.newChallengeLocked()
	c.lastError = ""
	c.pausedByBreak = !c.primary.Paused()
	pause := c.pausedByBreak
	c.acquireLocked()
	c.mu.Unlock()

	if pause {
		_ = c.primary.Pause()
	}
	_ = c.gated.Load(cfg.MediaSrc)
	c.logger.Info().Str(xglog.FieldEvent, "adbreak.started").Str(xglog.FieldBreakID, cfg.ID).Msg("ad break started")
	c.evaluate()
}

// Skip ends the active break once the skip countdown reached zero.
func (c *Controller) Skip() error {
	if c.sched == nil {
		return ErrNotSupported
	}
	return c.endBreak(adbreak.OutcomeSkipped)
}

// Proceed ends a skippable break before monitoring starts, whatever the
// attention state. Once monitoring runs only Skip ends the break early.
func (c *Controller) Proceed() error {
	if c.sched == nil {
		return ErrNotSupported
	}
	return c.endBreak(adbreak.OutcomeProceeded)
}

// endBreak releases the camera, clears the attention state, resumes the
// primary video when the break paused it and records the impression.
func (c *Controller) endBreak(outcome adbreak.Outcome) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.touchLocked()
	if _, ok := c.sched.Active(); !ok {
		c.mu.Unlock()
		return ErrNoBreak
	}
	res, err := c.sched.Resume(outcome)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.generation++
	c.camEpoch++
	c.resetAttentionLocked()
	c.cancelAcquireLocked()
	c.session = nil
	c.lastError = ""
	resume := c.pausedByBreak
	c.pausedByBreak = false
	c.mu.Unlock()

	c.camera.ReleaseAll()
	_ = c.gated.Pause()
	if resume {
		_ = c.primary.Play()
	}
	c.record(res)
	if err := c.sched.Finish(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to finish ad break")
	}
	return nil
}

func (c *Controller) record(res adbreak.Result) {
	if c.deps.Recorder == nil {
		return
	}
	_, err := c.deps.Recorder.Record(c.lifetime, impressions.Impression{
		SessionID:        c.id,
		BreakID:          res.Config.ID,
		MediaSrc:         res.Config.MediaSrc,
		Outcome:          string(res.Outcome),
		AttentiveSeconds: res.AttentiveSeconds,
		StartedAt:        res.StartedAt,
		EndedAt:          res.EndedAt,
	})
	if err != nil {
		c.logger.Error().Err(err).Str(xglog.FieldBreakID, res.Config.ID).Msg("failed to record impression")
	}
}

// Control applies a viewer control to the primary element. Controls are
// rejected while a break is active.
func (c *Controller) Control(action string, value float64) error {
	if c.primary == nil {
		return ErrNotSupported
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.touchLocked()
	c.mu.Unlock()
	if c.sched.State() != adbreak.Idle {
		return ErrBreakActive
	}

	ctl := media.NewControls(c.primary)
	var err error
	switch action {
	case ControlToggle:
		_, err = ctl.TogglePlay()
	case ControlSeek:
		err = ctl.Seek(value)
	case ControlVolume:
		err = ctl.SetVolume(value)
	case ControlMute:
		_, err = ctl.ToggleMute()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if err != nil && !errors.Is(err, media.ErrInvalidValue) {
		c.logger.Warn().Err(err).Str("action", action).Msg("control failed")
	}
	return err
}
