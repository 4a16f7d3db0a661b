// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package impressions is the ad-impression ledger: one record per finished
// ad break, persisted to a pluggable store and optionally published as an
// event.
package impressions

import (
	"context"
	"errors"
	"fmt"
	"time"

	xglog "github.com/ManuGH/gazegate/internal/log"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrInvalid is returned for impressions missing required fields.
var ErrInvalid = errors.New("impressions: invalid impression")

// Impression records how one ad break ended.
type Impression struct {
	ID               string    `json:"id"`
	SessionID        string    `json:"sessionId"`
	BreakID          string    `json:"breakId"`
	MediaSrc         string    `json:"mediaSrc"`
	Outcome          string    `json:"outcome"`
	AttentiveSeconds int       `json:"attentiveSeconds"`
	StartedAt        time.Time `json:"startedAt"`
	EndedAt          time.Time `json:"endedAt"`
}

// Validate checks required fields.
func (i Impression) Validate() error {
	switch {
	case i.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalid)
	case i.SessionID == "":
		return fmt.Errorf("%w: missing session id", ErrInvalid)
	case i.BreakID == "":
		return fmt.Errorf("%w: missing break id", ErrInvalid)
	case i.AttentiveSeconds < 0:
		return fmt.Errorf("%w: negative attentive seconds", ErrInvalid)
	}
	return nil
}

// Store persists impressions.
type Store interface {
	// Init prepares the schema. It is safe to call repeatedly.
	Init(ctx context.Context) error
	Save(ctx context.Context, imp Impression) error
	// List returns the impressions of one session ordered by end time.
	List(ctx context.Context, sessionID string) ([]Impression, error)
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// Publisher emits impressions to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, imp Impression) error
	Close() error
}

// Recorder saves impressions and publishes them. Publishing is best-effort:
// a publish failure is logged but does not fail the record.
type Recorder struct {
	store     Store
	publisher Publisher
	logger    zerolog.Logger
}

// NewRecorder creates a recorder. publisher may be nil.
func NewRecorder(store Store, publisher Publisher, logger zerolog.Logger) *Recorder {
	return &Recorder{
		store:     store,
		publisher: publisher,
		logger:    logger.With().Str(xglog.FieldComponent, "impressions").Logger(),
	}
}

// Record fills in a missing id, then saves and publishes imp.
func (r *Recorder) Record(ctx context.Context, imp Impression) (Impression, error) {
	if imp.ID == "" {
		imp.ID = uuid.NewString()
	}
	if err := imp.Validate(); err != nil {
		return imp, err
	}
	if err := r.store.Save(ctx, imp); err != nil {
		return imp, fmt.Errorf("save impression: %w", err)
	}
	r.logger.Info().Str(xglog.FieldEvent, "impression.recorded").
		Str(xglog.FieldSessionID, imp.SessionID).Str(xglog.FieldBreakID, imp.BreakID).
		Str("outcome", imp.Outcome).Int("attentive_seconds", imp.AttentiveSeconds).
		Msg("ad impression recorded")

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, imp); err != nil {
			r.logger.Warn().Err(err).Str(xglog.FieldEvent, "impression.publish_failed").
				Str(xglog.FieldSessionID, imp.SessionID).Msg("failed to publish impression")
		}
	}
	return imp, nil
}

// List proxies to the store.
func (r *Recorder) List(ctx context.Context, sessionID string) ([]Impression, error) {
	return r.store.List(ctx, sessionID)
}

// Ping probes the store.
func (r *Recorder) Ping(ctx context.Context) error { return r.store.Ping(ctx) }

// Close closes the publisher and the store.
func (r *Recorder) Close() error {
	var errs []error
	if r.publisher != nil {
		errs = append(errs, r.publisher.Close())
	}
	errs = append(errs, r.store.Close())
	return errors.Join(errs...)
}
