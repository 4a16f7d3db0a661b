// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package media

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidValue is returned for out-of-range control values.
var ErrInvalidValue = errors.New("media: invalid control value")

// unmuteVolume is restored when unmuting an element at volume zero.
const unmuteVolume = 0.5

// Controls are the viewer-facing player controls of the primary element.
type Controls struct {
	el Element
}

// NewControls wraps el.
func NewControls(el Element) Controls { return Controls{el: el} }

// TogglePlay plays a paused or ended element and pauses a playing one.
// It returns the new playing state.
func (c Controls) TogglePlay() (bool, error) {
	if c.el.Paused() || c.el.Ended() {
		return true, c.el.Play()
	}
	return false, c.el.Pause()
}

// Seek moves the playhead, clamped to the known duration.
func (c Controls) Seek(t float64) error {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return fmt.Errorf("%w: seek to %v", ErrInvalidValue, t)
	}
	if t < 0 {
		t = 0
	}
	if d, ok := FiniteDuration(c.el.Duration()); ok && t > d {
		t = d
	}
	return c.el.Seek(t)
}

// SetVolume sets the volume in [0,1]; volume zero mutes.
func (c Controls) SetVolume(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%w: volume %v", ErrInvalidValue, v)
	}
	if err := c.el.SetVolume(v); err != nil {
		return err
	}
	return c.el.SetMuted(v == 0)
}

// ToggleMute flips the muted flag. Unmuting at volume zero restores half
// volume so the unmute is audible.
func (c Controls) ToggleMute() (bool, error) {
	muted := !c.el.Muted()
	if err := c.el.SetMuted(muted); err != nil {
		return c.el.Muted(), err
	}
	if !muted && c.el.Volume() == 0 {
		if err := c.el.SetVolume(unmuteVolume); err != nil {
			return muted, err
		}
	}
	return muted, nil
}

// Duration returns the element duration when it is finite.
func (c Controls) Duration() (float64, bool) {
	return FiniteDuration(c.el.Duration())
}
