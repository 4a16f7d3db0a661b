// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package media

import (
	"math"
	"sync"
)

// Actions carried by directives.
const (
	ActionPlay   = "play"
	ActionPause  = "pause"
	ActionSeek   = "seek"
	ActionVolume = "volume"
	ActionMute   = "mute"
	ActionLoad   = "load"
)

const directiveBacklog = 64

// Directive is a command for the client to apply to its element.
type Directive struct {
	Seq    uint64  `json:"seq"`
	Target string  `json:"target"`
	Action string  `json:"action"`
	Value  float64 `json:"value,omitempty"`
	Muted  bool    `json:"muted,omitempty"`
	Src    string  `json:"src,omitempty"`
}

// Sequencer hands out directive sequence numbers shared by the elements of a
// session so clients can order directives across elements.
type Sequencer struct {
	mu  sync.Mutex
	seq uint64
}

func (s *Sequencer) next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

var _ Element = (*RemoteElement)(nil)

// RemoteElement mirrors a browser element. Commands update the mirrored state
// optimistically and queue a directive; client events overwrite the state and
// are fanned out to subscribers.
type RemoteElement struct {
	name string
	seq  *Sequencer

	mu          sync.Mutex
	src         string
	paused      bool
	ended       bool
	currentTime float64
	duration    float64
	volume      float64
	muted       bool
	backlog     []Directive

	subMu   sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

// NewRemoteElement creates a paused element with no metadata.
func NewRemoteElement(name string, seq *Sequencer) *RemoteElement {
	if seq == nil {
		seq = &Sequencer{}
	}
	return &RemoteElement{
		name:     name,
		seq:      seq,
		paused:   true,
		duration: math.NaN(),
		volume:   1,
		subs:     make(map[int]func(Event)),
	}
}

// Name identifies the element in directives.
func (e *RemoteElement) Name() string { return e.name }

func (e *RemoteElement) queueLocked(d Directive) {
	d.Seq = e.seq.next()
	d.Target = e.name
	e.backlog = append(e.backlog, d)
	if len(e.backlog) > directiveBacklog {
		e.backlog = append([]Directive(nil), e.backlog[len(e.backlog)-directiveBacklog:]...)
	}
}

func (e *RemoteElement) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = false
	e.ended = false
	e.queueLocked(Directive{Action: ActionPlay})
	return nil
}

func (e *RemoteElement) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = true
	e.queueLocked(Directive{Action: ActionPause})
	return nil
}

func (e *RemoteElement) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

func (e *RemoteElement) Ended() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ended
}

func (e *RemoteElement) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentTime
}

func (e *RemoteElement) Seek(t float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.currentTime = t
	e.ended = false
	e.queueLocked(Directive{Action: ActionSeek, Value: t})
	return nil
}

func (e *RemoteElement) Duration() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duration
}

func (e *RemoteElement) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

func (e *RemoteElement) SetVolume(v float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = v
	e.queueLocked(Directive{Action: ActionVolume, Value: v})
	return nil
}

func (e *RemoteElement) Muted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muted
}

func (e *RemoteElement) SetMuted(m bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.muted = m
	e.queueLocked(Directive{Action: ActionMute, Muted: m})
	return nil
}

func (e *RemoteElement) Src() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.src
}

// Load switches the source and resets playback state.
func (e *RemoteElement) Load(src string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.src = src
	e.paused = true
	e.ended = false
	e.currentTime = 0
	e.duration = math.NaN()
	e.queueLocked(Directive{Action: ActionLoad, Src: src})
	return nil
}

func (e *RemoteElement) Subscribe(fn func(Event)) func() {
	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	e.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.subMu.Lock()
			delete(e.subs, id)
			e.subMu.Unlock()
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (e *RemoteElement) Subscribers() int {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	return len(e.subs)
}

// Report is a client-side observation of the element.
type Report struct {
	Type        EventType
	CurrentTime *float64
	Duration    *float64
	Volume      *float64
	Muted       *bool
}

// Dispatch applies a client event to the mirrored state and notifies
// subscribers outside the lock. Non-finite durations are ignored.
func (e *RemoteElement) Dispatch(r Report) Event {
	e.mu.Lock()
	if r.CurrentTime != nil && !math.IsNaN(*r.CurrentTime) && *r.CurrentTime >= 0 {
		e.currentTime = *r.CurrentTime
	}
	if r.Duration != nil {
		if d, ok := FiniteDuration(*r.Duration); ok {
			e.duration = d
		}
	}
	if r.Volume != nil && *r.Volume >= 0 && *r.Volume <= 1 {
		e.volume = *r.Volume
	}
	if r.Muted != nil {
		e.muted = *r.Muted
	}
	switch r.Type {
	case EventPlay:
		e.paused = false
		e.ended = false
	case EventPause:
		e.paused = true
	case EventEnded:
		e.paused = true
		e.ended = true
	}
	ev := Event{
		Type:        r.Type,
		CurrentTime: e.currentTime,
		Duration:    e.duration,
		Volume:      e.volume,
		Muted:       e.muted,
		Paused:      e.paused,
		Ended:       e.ended,
	}
	e.mu.Unlock()

	e.subMu.Lock()
	fns := make([]func(Event), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.subMu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
	return ev
}

// Directives returns queued directives with a sequence number above after.
func (e *RemoteElement) Directives(after uint64) []Directive {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Directive, 0, len(e.backlog))
	for _, d := range e.backlog {
		if d.Seq > after {
			out = append(out, d)
		}
	}
	return out
}

// State is the mirrored element state.
type State struct {
	Src         string   `json:"src,omitempty"`
	Paused      bool     `json:"paused"`
	Ended       bool     `json:"ended"`
	CurrentTime float64  `json:"currentTime"`
	Duration    *float64 `json:"duration,omitempty"`
	Volume      float64  `json:"volume"`
	Muted       bool     `json:"muted"`
}

// State returns the mirrored state.
func (e *RemoteElement) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := State{
		Src:         e.src,
		Paused:      e.paused,
		Ended:       e.ended,
		CurrentTime: e.currentTime,
		Volume:      e.volume,
		Muted:       e.muted,
	}
	if d, ok := FiniteDuration(e.duration); ok {
		st.Duration = &d
	}
	return st
}
