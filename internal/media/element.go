// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package media is the control surface of the gated and primary video
// elements. The elements themselves live in the browser; RemoteElement
// mirrors their reported state and queues the commands the client applies.
package media

import "math"

// EventType names an element event.
type EventType string

const (
	EventLoadedMetadata EventType = "loadedmetadata"
	EventDurationChange EventType = "durationchange"
	EventPlay           EventType = "play"
	EventPause          EventType = "pause"
	EventTimeUpdate     EventType = "timeupdate"
	EventVolumeChange   EventType = "volumechange"
	EventEnded          EventType = "ended"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventLoadedMetadata, EventDurationChange, EventPlay, EventPause,
		EventTimeUpdate, EventVolumeChange, EventEnded:
		return true
	}
	return false
}

// Event is an element event with the element state at the time it fired.
type Event struct {
	Type        EventType
	CurrentTime float64
	Duration    float64
	Volume      float64
	Muted       bool
	Paused      bool
	Ended       bool
}

// Element is a video element.
type Element interface {
	Play() error
	Pause() error
	Paused() bool
	Ended() bool
	CurrentTime() float64
	Seek(t float64) error
	// Duration is NaN until metadata is loaded.
	Duration() float64
	Volume() float64
	SetVolume(v float64) error
	Muted() bool
	SetMuted(m bool) error
	Src() string
	Load(src string) error
	// Subscribe registers fn for every event. The returned function removes
	// the subscription and is safe to call more than once.
	Subscribe(fn func(Event)) (unsubscribe func())
}

// FiniteDuration returns d when it is a usable media duration.
func FiniteDuration(d float64) (float64, bool) {
	if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
		return 0, false
	}
	return d, true
}
