// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package adbreak schedules ad breaks on a primary video timeline and tracks
// the per-break lifecycle, skip eligibility and the played set.
package adbreak

import (
	"errors"
	"fmt"
	"sync"
	"time"

	xglog "github.com/ManuGH/gazegate/internal/log"
	"github.com/ManuGH/gazegate/internal/metrics"
	"github.com/rs/zerolog"
)

var (
	// ErrIllegalTransition is returned for events the current state forbids.
	ErrIllegalTransition = errors.New("adbreak: illegal transition")
	// ErrNotSkippable means the active break has no skip time.
	ErrNotSkippable = errors.New("adbreak: break is not skippable")
	// ErrSkipNotReady means the skip countdown has not reached zero.
	ErrSkipNotReady = errors.New("adbreak: skip countdown still running")
)

// Outcome is how a break ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeProceeded Outcome = "proceeded"
)

// Result summarises a finished break.
type Result struct {
	Config           Config
	Outcome          Outcome
	AttentiveSeconds int
	StartedAt        time.Time
	EndedAt          time.Time
}

// Runtime is a point-in-time view of the scheduler.
type Runtime struct {
	State            State    `json:"state"`
	Active           *Config  `json:"active,omitempty"`
	Countdown        *int     `json:"skipCountdown,omitempty"`
	AttentiveSeconds int      `json:"attentiveSeconds"`
	SkipEligible     bool     `json:"skipEligible"`
	CanProceed       bool     `json:"canProceed"`
	Played           []string `json:"played"`
}

// Scheduler owns the break runtime of one primary-video session.
type Scheduler struct {
	configs []Config
	logger  zerolog.Logger
	now     func() time.Time

	mu        sync.Mutex
	state     State
	active    *Config
	played    map[string]struct{}
	countdown *int
	attentive int
	startedAt time.Time
}

// New validates configs and creates an idle scheduler.
func New(configs []Config, logger zerolog.Logger) (*Scheduler, error) {
	if err := ValidateConfigs(configs); err != nil {
		return nil, err
	}
	cp := make([]Config, len(configs))
	for i, c := range configs {
		cp[i] = cloneConfig(c)
	}
	return &Scheduler{
		configs: cp,
		logger:  logger.With().Str(xglog.FieldComponent, "adbreak").Logger(),
		now:     time.Now,
		played:  make(map[string]struct{}),
	}, nil
}

// OnTimeUpdate scans the break list in order and triggers the first unplayed
// break whose trigger time has been reached. Nothing fires while a break is
// active or before the primary duration is known.
func (s *Scheduler) OnTimeUpdate(currentTime, duration float64) (Config, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Idle || !(duration > 0) {
		return Config{}, false
	}
	for _, c := range s.configs {
		if _, done := s.played[c.ID]; done {
			continue
		}
		if currentTime < c.TriggerTime {
			continue
		}
		if err := s.fireLocked(EvTriggered); err != nil {
			return Config{}, false
		}
		active := cloneConfig(c)
		s.active = &active
		s.countdown = nil
		s.attentive = 0
		s.startedAt = s.now()
		metrics.RecordAdBreak("triggered")
		s.logger.Info().Str(xglog.FieldEvent, "adbreak.triggered").Str(xglog.FieldBreakID, c.ID).
			Float64("current_time", currentTime).Msg("ad break triggered")
		return cloneConfig(c), true
	}
	return Config{}, false
}

// Fire applies ev. EvCalibrated arms the skip countdown when the active break
// has a skip time and no countdown is armed yet.
func (s *Scheduler) Fire(ev EventKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev {
	case EvTriggered, EvSkip, EvProceed, EvEnded, EvResumed:
		return fmt.Errorf("%w: %s is driven by the scheduler", ErrIllegalTransition, ev)
	}
	if err := s.fireLocked(ev); err != nil {
		return err
	}
	if ev == EvCalibrated && s.active != nil && s.active.SkipTime != nil && s.countdown == nil {
		v := *s.active.SkipTime
		s.countdown = &v
	}
	return nil
}

func (s *Scheduler) fireLocked(ev EventKind) error {
	d, ok := DecisionFor(s.state, ev)
	if !ok {
		return fmt.Errorf("%w: no decision for %s + %s", ErrIllegalTransition, s.state, ev)
	}
	if !d.Allowed {
		return fmt.Errorf("%w: %s + %s (%s)", ErrIllegalTransition, s.state, ev, d.Reason)
	}
	tr, ok := TransitionFor(s.state, ev)
	if !ok {
		return fmt.Errorf("%w: %s + %s has no edge", ErrIllegalTransition, s.state, ev)
	}
	s.logger.Debug().Str(xglog.FieldEvent, "adbreak.transition").
		Str(xglog.FieldOldState, s.state.String()).Str(xglog.FieldNewState, tr.To.String()).
		Str("trigger", ev.String()).Msg("ad break state transition")
	s.state = tr.To
	return nil
}

// Tick advances the attention clock by one second. The countdown and the
// attentive time only move while shouldPlay is true.
func (s *Scheduler) Tick(shouldPlay bool) (countdown *int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Monitoring || !shouldPlay {
		return copyInt(s.countdown)
	}
	s.attentive++
	metrics.AddAttentiveSeconds(1)
	if s.countdown != nil && *s.countdown > 0 {
		*s.countdown--
		if *s.countdown == 0 {
			s.logger.Info().Str(xglog.FieldEvent, "adbreak.skip_eligible").Str(xglog.FieldBreakID, s.active.ID).
				Msg("skip enabled")
		}
	}
	return copyInt(s.countdown)
}

// SkipEligible reports whether the skip action is enabled.
func (s *Scheduler) SkipEligible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipEligibleLocked()
}

func (s *Scheduler) skipEligibleLocked() bool {
	return s.state == Monitoring && s.countdown != nil && *s.countdown == 0
}

// CanProceed reports whether the escape hatch is available: while a
// skippable break is active but not yet monitored, regardless of attention.
// Once monitoring runs the countdown has to be earned and skip takes over.
func (s *Scheduler) CanProceed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canProceedLocked()
}

func (s *Scheduler) canProceedLocked() bool {
	return s.active != nil && s.active.Skippable() &&
		s.state != Idle && s.state != Monitoring && s.state != Resuming
}

// Resume ends the active break: it moves to Resuming and marks the id played.
// The caller releases the camera and resumes the primary video, then calls
// Finish.
func (s *Scheduler) Resume(outcome Outcome) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ev EventKind
	switch outcome {
	case OutcomeCompleted:
		ev = EvEnded
	case OutcomeSkipped:
		if s.active != nil && !s.active.Skippable() {
			return Result{}, ErrNotSkippable
		}
		if s.state == Monitoring && !s.skipEligibleLocked() {
			return Result{}, ErrSkipNotReady
		}
		ev = EvSkip
	case OutcomeProceeded:
		if s.active != nil && !s.active.Skippable() {
			return Result{}, ErrNotSkippable
		}
		ev = EvProceed
	default:
		return Result{}, fmt.Errorf("%w: unknown outcome %q", ErrIllegalTransition, outcome)
	}
	if err := s.fireLocked(ev); err != nil {
		return Result{}, err
	}

	res := Result{
		Config:           cloneConfig(*s.active),
		Outcome:          outcome,
		AttentiveSeconds: s.attentive,
		StartedAt:        s.startedAt,
		EndedAt:          s.now(),
	}
	s.played[s.active.ID] = struct{}{}
	metrics.RecordAdBreak(string(outcome))
	s.logger.Info().Str(xglog.FieldEvent, "adbreak.resuming").Str(xglog.FieldBreakID, res.Config.ID).
		Str("outcome", string(outcome)).Int("attentive_seconds", res.AttentiveSeconds).Msg("ad break finished")
	return res, nil
}

// Finish clears the break runtime and returns to Idle.
func (s *Scheduler) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fireLocked(EvResumed); err != nil {
		return err
	}
	s.active = nil
	s.countdown = nil
	s.attentive = 0
	s.startedAt = time.Time{}
	return nil
}

// ResetTimeline forgets the played set. Used when the primary source changes.
// An active break is abandoned.
func (s *Scheduler) ResetTimeline() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Idle
	s.active = nil
	s.countdown = nil
	s.attentive = 0
	s.played = make(map[string]struct{})
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Active returns the active break.
func (s *Scheduler) Active() (Config, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return Config{}, false
	}
	return cloneConfig(*s.active), true
}

// Played returns the played ids in configuration order.
func (s *Scheduler) Played() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playedLocked()
}

func (s *Scheduler) playedLocked() []string {
	out := make([]string, 0, len(s.played))
	for _, c := range s.configs {
		if _, ok := s.played[c.ID]; ok {
			out = append(out, c.ID)
		}
	}
	return out
}

// Configs returns a copy of the break list.
func (s *Scheduler) Configs() []Config {
	out := make([]Config, len(s.configs))
	for i, c := range s.configs {
		out[i] = cloneConfig(c)
	}
	return out
}

// Runtime returns a snapshot.
func (s *Scheduler) Runtime() Runtime {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt := Runtime{
		State:            s.state,
		Countdown:        copyInt(s.countdown),
		AttentiveSeconds: s.attentive,
		SkipEligible:     s.skipEligibleLocked(),
		CanProceed:       s.canProceedLocked(),
		Played:           s.playedLocked(),
	}
	if s.active != nil {
		a := cloneConfig(*s.active)
		rt.Active = &a
	}
	return rt
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
