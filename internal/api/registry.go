// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/gazegate/internal/camera"
	"github.com/ManuGH/gazegate/internal/controller"
	xglog "github.com/ManuGH/gazegate/internal/log"
	"github.com/rs/zerolog"
)

var (
	// ErrSessionNotFound is returned for unknown or already closed sessions.
	ErrSessionNotFound = errors.New("api: session not found")
	// ErrTooManySessions is returned when the session limit is reached.
	ErrTooManySessions = errors.New("api: session limit reached")
	// ErrRegistryClosed is returned after Shutdown.
	ErrRegistryClosed = errors.New("api: registry closed")
)

// Session is one viewer session: the controller and the push device the
// client feeds frames and permission answers into.
type Session struct {
	Controller *controller.Controller
	Device     *camera.PushDevice
}

// Factory builds an unstarted controller for a variant, reading from device.
type Factory func(variant controller.Variant, device *camera.PushDevice) (*controller.Controller, error)

// RegistryStats is a point-in-time view of the registry.
type RegistryStats struct {
	Active  int   `json:"active"`
	Max     int   `json:"max"`
	Created int64 `json:"created"`
	Expired int64 `json:"expired"`
}

// Registry owns the live sessions. Idle sessions are closed by the janitor.
type Registry struct {
	factory Factory
	max     int
	idle    time.Duration
	devOpts []camera.PushOption
	logger  zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	pending  int
	closed   bool
	created  int64
	expired  int64
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithDeviceOptions applies opts to every session's push device.
func WithDeviceOptions(opts ...camera.PushOption) RegistryOption {
	return func(r *Registry) { r.devOpts = append(r.devOpts, opts...) }
}

// NewRegistry creates a registry. max <= 0 means unlimited; idle <= 0
// disables expiry.
func NewRegistry(factory Factory, max int, idle time.Duration, logger zerolog.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		factory:  factory,
		max:      max,
		idle:     idle,
		logger:   logger.With().Str(xglog.FieldComponent, "registry").Logger(),
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create builds and starts a session.
func (r *Registry) Create(variant controller.Variant) (*Session, error) {
	if !variant.Valid() {
		return nil, controller.ErrNotSupported
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	if r.max > 0 && len(r.sessions)+r.pending >= r.max {
		r.mu.Unlock()
		return nil, ErrTooManySessions
	}
	// Hold the slot while the controller starts.
	r.pending++
	r.mu.Unlock()

	dev := camera.NewPushDevice(r.devOpts...)
	ctl, err := r.factory(variant, dev)
	if err == nil {
		err = ctl.Start()
		if err != nil {
			_ = ctl.Close()
		}
	}

	if err != nil {
		r.mu.Lock()
		r.pending--
		r.mu.Unlock()
		return nil, err
	}

	r.mu.Lock()
	r.pending--
	if r.closed {
		r.mu.Unlock()
		_ = ctl.Close()
		return nil, ErrRegistryClosed
	}
	s := &Session{Controller: ctl, Device: dev}
	r.sessions[ctl.ID()] = s
	r.created++
	active := len(r.sessions)
	r.mu.Unlock()

	r.logger.Info().
		Str(xglog.FieldSessionID, ctl.ID()).
		Str(xglog.FieldVariant, string(variant)).
		Int("active", active).
		Msg("session created")
	return s, nil
}

// Get returns a live session.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok || s.Controller.Closed() {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove closes and forgets a session.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	return s.Controller.Close()
}

// Sweep closes sessions idle since before now-idle and reports how many.
func (r *Registry) Sweep(now time.Time) int {
	if r.idle <= 0 {
		return 0
	}
	var stale []*Session
	r.mu.Lock()
	for id, s := range r.sessions {
		if s.Controller.Closed() || now.Sub(s.Controller.LastActivity()) > r.idle {
			delete(r.sessions, id)
			stale = append(stale, s)
		}
	}
	r.expired += int64(len(stale))
	r.mu.Unlock()

	for _, s := range stale {
		_ = s.Controller.Close()
		r.logger.Info().Str(xglog.FieldSessionID, s.Controller.ID()).Msg("idle session expired")
	}
	return len(stale)
}

// Run sweeps idle sessions every interval until ctx ends.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}

// Stats returns registry counters.
func (r *Registry) Stats() RegistryStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RegistryStats{Active: len(r.sessions), Max: r.max, Created: r.created, Expired: r.expired}
}

// Shutdown closes every session and rejects new ones.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	r.closed = true
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	clear(r.sessions)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range all {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			_ = s.Controller.Close()
		}(s)
	}
	wg.Wait()
}
