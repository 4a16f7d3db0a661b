// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package camera

import (
	"context"
	"errors"
	"image"
	"sync"

	"github.com/ManuGH/gazegate/internal/frame"
)

var (
	// ErrNoStream is returned when frames are pushed before access was granted.
	ErrNoStream = errors.New("no live camera stream")
)

// PushDevice is a Device driven by a remote client: the client resolves the
// permission prompt and pushes encoded frames over the control API.
type PushDevice struct {
	decisions chan bool
	maxPixels int

	mu     sync.Mutex
	stream *PushStream
}

// PushOption configures a PushDevice.
type PushOption func(*PushDevice)

// WithMaxPixels bounds the decoded size of pushed frames.
func WithMaxPixels(n int) PushOption {
	return func(d *PushDevice) {
		if n > 0 {
			d.maxPixels = n
		}
	}
}

// NewPushDevice creates an idle push device.
func NewPushDevice(opts ...PushOption) *PushDevice {
	d := &PushDevice{decisions: make(chan bool, 1), maxPixels: frame.DefaultMaxPixels}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RequestAccess blocks until the client resolves the permission or ctx ends.
func (d *PushDevice) RequestAccess(ctx context.Context) (Stream, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case granted := <-d.decisions:
		if !granted {
			return nil, ErrPermissionDenied
		}
	}

	st := newPushStream()
	d.mu.Lock()
	if d.stream != nil {
		d.stream.Stop()
	}
	d.stream = st
	d.mu.Unlock()
	return st, nil
}

// Resolve records the client's answer to the permission prompt. A decision
// made before the request is pending is kept for the next request; a newer
// decision replaces an unconsumed older one.
func (d *PushDevice) Resolve(granted bool) {
	for {
		select {
		case d.decisions <- granted:
			return
		default:
		}
		select {
		case <-d.decisions:
		default:
		}
	}
}

// Push decodes and stores a frame on the live stream.
func (d *PushDevice) Push(data []byte) error {
	d.mu.Lock()
	st := d.stream
	d.mu.Unlock()
	if st == nil {
		return ErrNoStream
	}
	img, _, err := frame.DecodeLimited(data, d.maxPixels)
	if err != nil {
		return err
	}
	return st.push(img)
}

// PushStream is the stream handed out by PushDevice.
type PushStream struct {
	latest frame.Latest
	ready  chan struct{}
	track  *pushTrack

	once sync.Once
}

func newPushStream() *PushStream {
	return &PushStream{ready: make(chan struct{}), track: &pushTrack{}}
}

// Tracks implements Stream.
func (s *PushStream) Tracks() []Track { return []Track{streamTrack{s}} }

// Source implements Stream.
func (s *PushStream) Source() frame.Source { return &s.latest }

// Ready implements Stream.
func (s *PushStream) Ready() <-chan struct{} { return s.ready }

// Stop stops the stream's only track and drops the last frame.
func (s *PushStream) Stop() {
	s.track.Stop()
	s.latest.Clear()
}

// Stopped reports whether the track has been stopped.
func (s *PushStream) Stopped() bool { return s.track.Stopped() }

func (s *PushStream) push(img image.Image) error {
	if s.track.Stopped() {
		return ErrNoStream
	}
	s.latest.Store(img)
	s.once.Do(func() { close(s.ready) })
	return nil
}

// streamTrack stops the whole stream so the stored frame is dropped too.
type streamTrack struct{ s *PushStream }

func (t streamTrack) Stop() { t.s.Stop() }

type pushTrack struct {
	mu      sync.Mutex
	stopped bool
}

func (t *pushTrack) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *pushTrack) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}
