// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package focus tracks whether the viewer's window has focus.
package focus

import "sync"

// Tracker holds the window focus flag. It starts focused; only Set mutates it.
type Tracker struct {
	mu      sync.Mutex
	focused bool
	subs    map[int]func(bool)
	nextSub int
}

// NewTracker returns a focused tracker.
func NewTracker() *Tracker {
	return &Tracker{focused: true, subs: make(map[int]func(bool))}
}

// Set records a focus or blur event. Subscribers are notified outside the
// lock and only when the value changes. It reports whether it changed.
func (t *Tracker) Set(focused bool) bool {
	t.mu.Lock()
	if t.focused == focused {
		t.mu.Unlock()
		return false
	}
	t.focused = focused
	fns := make([]func(bool), 0, len(t.subs))
	for _, fn := range t.subs {
		fns = append(fns, fn)
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn(focused)
	}
	return true
}

// Focused reports the current value.
func (t *Tracker) Focused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.focused
}

// Subscribe registers fn for focus changes and returns an idempotent
// unsubscribe function.
func (t *Tracker) Subscribe(fn func(bool)) func() {
	t.mu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, id)
			t.mu.Unlock()
		})
	}
}
