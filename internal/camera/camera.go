// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package camera owns acquisition and release of the camera stream used for
// liveness and gaze checks.
package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/gazegate/internal/frame"
	xglog "github.com/ManuGH/gazegate/internal/log"
	"github.com/ManuGH/gazegate/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrPermissionDenied means the viewer (or the platform) refused access.
	ErrPermissionDenied = errors.New("camera permission denied")
	// ErrDevice covers every other acquisition failure.
	ErrDevice = errors.New("camera device error")
	// ErrSuperseded is returned when the manager was released while an
	// acquisition was in flight; the late stream is stopped immediately.
	ErrSuperseded = errors.New("camera acquisition superseded")
)

// Permission is the camera permission state.
type Permission int

const (
	PermissionPending Permission = iota
	PermissionGranted
	PermissionDenied
)

func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "pending"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Permission) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Track is an individually stoppable media track.
type Track interface {
	Stop()
}

// Stream is a live camera capture.
type Stream interface {
	Tracks() []Track
	// Source exposes the live frames.
	Source() frame.Source
	// Ready is closed once the first displayable frame has arrived.
	Ready() <-chan struct{}
}

// Device is the platform camera capability.
type Device interface {
	RequestAccess(ctx context.Context) (Stream, error)
}

// Session is one live camera capture. At most one is live per Manager.
type Session struct {
	ID        string
	CreatedAt time.Time

	stream Stream

	mu           sync.Mutex
	previewReady bool
	released     bool
}

// Stream returns the underlying stream.
func (s *Session) Stream() Stream { return s.stream }

// Source returns the live frame source.
func (s *Session) Source() frame.Source { return s.stream.Source() }

// PreviewReady reports whether the first displayable frame has rendered.
func (s *Session) PreviewReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.previewReady && !s.released
}

// Live reports whether the session has not been released.
func (s *Session) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.released
}

// stop stops every track once. It reports whether this call did the work.
func (s *Session) stop() bool {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return false
	}
	s.released = true
	s.previewReady = false
	s.mu.Unlock()

	stopTracks(s.stream)
	return true
}

func stopTracks(st Stream) {
	if st == nil {
		return
	}
	for _, t := range st.Tracks() {
		t.Stop()
	}
}

// Manager acquires and releases camera sessions. Acquire is idempotent while
// a request is pending or a session is live.
type Manager struct {
	device Device
	group  singleflight.Group
	logger zerolog.Logger

	mu         sync.Mutex
	current    *Session
	permission Permission
	lastErr    error
	epoch      uint64
}

// NewManager creates a manager for device.
func NewManager(device Device, logger zerolog.Logger) *Manager {
	return &Manager{
		device: device,
		logger: logger.With().Str(xglog.FieldComponent, "camera").Logger(),
	}
}

// Acquire returns the live session, requesting device access if needed.
// Concurrent callers share one device request.
func (m *Manager) Acquire(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	if m.current != nil {
		s := m.current
		m.mu.Unlock()
		return s, nil
	}
	m.permission = PermissionPending
	m.lastErr = nil
	epoch := m.epoch
	m.mu.Unlock()

	ch := m.group.DoChan(fmt.Sprintf("acquire-%d", epoch), func() (any, error) {
		return m.request(ctx, epoch)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Session), nil
	}
}

func (m *Manager) request(ctx context.Context, epoch uint64) (*Session, error) {
	m.mu.Lock()
	if m.current != nil && m.epoch == epoch {
		s := m.current
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	stream, err := m.device.RequestAccess(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.epoch != epoch {
		stopTracks(stream)
		m.logger.Debug().Str(xglog.FieldEvent, "camera.acquire_superseded").Msg("discarding late camera stream")
		return nil, ErrSuperseded
	}

	if err != nil {
		m.lastErr = err
		switch {
		case errors.Is(err, ErrPermissionDenied):
			m.permission = PermissionDenied
			metrics.RecordCameraAcquisition("denied")
			m.logger.Warn().Str(xglog.FieldEvent, "camera.denied").Msg("camera access denied")
			return nil, err
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			m.permission = PermissionPending
			return nil, err
		default:
			metrics.RecordCameraAcquisition("error")
			m.logger.Error().Err(err).Str(xglog.FieldEvent, "camera.error").Msg("camera acquisition failed")
			return nil, fmt.Errorf("%w: %v", ErrDevice, err)
		}
	}
	if m.current != nil {
		// Another acquisition completed first (only possible across epochs).
		stopTracks(stream)
		return m.current, nil
	}

	s := &Session{ID: uuid.NewString(), CreatedAt: time.Now(), stream: stream}
	m.current = s
	m.permission = PermissionGranted
	metrics.RecordCameraAcquisition("granted")
	m.logger.Info().Str(xglog.FieldEvent, "camera.acquired").Str(xglog.FieldCameraID, s.ID).Msg("camera session acquired")
	return s, nil
}

// MarkPreviewReady sets the first-frame signal on s if it is still current.
func (m *Manager) MarkPreviewReady(s *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s == nil || s != m.current {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return false
	}
	s.previewReady = true
	return true
}

// Release stops every track of s. Releasing a stale or already released
// session is a no-op.
func (m *Manager) Release(s *Session) {
	if s == nil {
		return
	}
	m.mu.Lock()
	if m.current == s {
		m.current = nil
		m.epoch++
		m.permission = PermissionPending
	}
	m.mu.Unlock()

	if s.stop() {
		m.logger.Info().Str(xglog.FieldEvent, "camera.released").Str(xglog.FieldCameraID, s.ID).Msg("camera session released")
	}
}

// ReleaseAll releases the current session and invalidates any acquisition
// still in flight. Safe to call repeatedly.
func (m *Manager) ReleaseAll() {
	m.mu.Lock()
	s := m.current
	m.current = nil
	m.epoch++
	m.permission = PermissionPending
	m.mu.Unlock()

	if s != nil && s.stop() {
		m.logger.Info().Str(xglog.FieldEvent, "camera.released").Str(xglog.FieldCameraID, s.ID).Msg("camera session released")
	}
}

// Current returns the live session or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Permission returns the permission state and the last acquisition error.
func (m *Manager) Permission() (Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.permission, m.lastErr
}
