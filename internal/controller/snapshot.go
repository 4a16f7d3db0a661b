// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package controller

import (
	"time"

	"github.com/ManuGH/gazegate/internal/adbreak"
	"github.com/ManuGH/gazegate/internal/calibration"
	"github.com/ManuGH/gazegate/internal/camera"
	"github.com/ManuGH/gazegate/internal/gate"
	"github.com/ManuGH/gazegate/internal/gaze"
	"github.com/ManuGH/gazegate/internal/media"
)

// CameraView is the camera part of a snapshot.
type CameraView struct {
	Permission   camera.Permission `json:"permission"`
	SessionID    string            `json:"sessionId,omitempty"`
	Acquiring    bool              `json:"acquiring"`
	PreviewReady bool              `json:"previewReady"`
}

// ChallengeView exposes the challenge image, never its text.
type ChallengeView struct {
	ID    string `json:"id"`
	Image string `json:"image"`
	Error string `json:"error,omitempty"`
}

// CalibrationView is the calibration part of a snapshot.
type CalibrationView struct {
	calibration.State
	InProgress bool `json:"inProgress"`
}

// Snapshot is the state the client renders.
type Snapshot struct {
	ID          string            `json:"id"`
	Variant     Variant           `json:"variant"`
	Generation  uint64            `json:"generation"`
	CreatedAt   time.Time         `json:"createdAt"`
	Camera      CameraView        `json:"camera"`
	Challenge   *ChallengeView    `json:"challenge,omitempty"`
	Verified    bool              `json:"verified"`
	Calibration CalibrationView   `json:"calibration"`
	Gaze        gaze.Sample       `json:"gaze"`
	Focused     bool              `json:"focused"`
	ShouldPlay  bool              `json:"shouldPlay"`
	Decision    gate.Decision     `json:"decision"`
	Error       string            `json:"error,omitempty"`
	Gated       media.State       `json:"gated"`
	Primary     *media.State      `json:"primary,omitempty"`
	AdBreak     *adbreak.Runtime  `json:"adBreak,omitempty"`
	Directives  []media.Directive `json:"directives"`
	Breaks      []adbreak.Config  `json:"breaks,omitempty"`
}

// Snapshot returns the session state and the directives queued after seq.
func (c *Controller) Snapshot(after uint64) Snapshot {
	c.mu.Lock()
	perm, _ := c.camera.Permission()
	snap := Snapshot{
		ID:         c.id,
		Variant:    c.opts.Variant,
		Generation: c.generation,
		CreatedAt:  c.created,
		Camera: CameraView{
			Permission:   perm,
			Acquiring:    c.acquiring,
			PreviewReady: c.previewReadyLocked(),
		},
		Verified: c.verified,
		Calibration: CalibrationView{
			State:      c.calib.State(),
			InProgress: c.calib.InProgress(),
		},
		Gaze:    c.gaze.Sample(),
		Focused: c.focus.Focused(),
		Error:   c.lastError,
	}
	if c.session != nil {
		snap.Camera.SessionID = c.session.ID
	}
	// The challenge is shown next to the preview, never before it.
	if c.challenge != nil && c.previewReadyLocked() {
		snap.Challenge = &ChallengeView{ID: c.challenge.ID, Image: c.challenge.Image, Error: c.challengeError}
	}
	snap.ShouldPlay = gate.ShouldPlay(c.inputsLocked())
	c.mu.Unlock()

	snap.Decision = c.applier.Last()
	snap.Gated = c.gated.State()
	snap.Directives = c.gated.Directives(after)
	if c.primary != nil {
		st := c.primary.State()
		snap.Primary = &st
		snap.Directives = mergeDirectives(snap.Directives, c.primary.Directives(after))
	}
	if c.sched != nil {
		rt := c.sched.Runtime()
		snap.AdBreak = &rt
		snap.Breaks = c.sched.Configs()
	}
	return snap
}

// mergeDirectives merges two seq-ordered slices.
func mergeDirectives(a, b []media.Directive) []media.Directive {
	out := make([]media.Directive, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].Seq < b[j].Seq {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}
