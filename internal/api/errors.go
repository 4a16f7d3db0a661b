// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"errors"
	"net/http"

	"github.com/ManuGH/gazegate/internal/adbreak"
	"github.com/ManuGH/gazegate/internal/api/problem"
	"github.com/ManuGH/gazegate/internal/calibration"
	"github.com/ManuGH/gazegate/internal/camera"
	"github.com/ManuGH/gazegate/internal/controller"
	"github.com/ManuGH/gazegate/internal/frame"
	"github.com/ManuGH/gazegate/internal/inference"
	xglog "github.com/ManuGH/gazegate/internal/log"
	"github.com/ManuGH/gazegate/internal/media"
)

// APIError is a problem response template.
type APIError struct {
	Status int
	Code   string
	Title  string
}

var (
	ErrInvalidInput    = &APIError{http.StatusBadRequest, "invalid_input", "Invalid Input"}
	ErrInvalidFrame    = &APIError{http.StatusBadRequest, "invalid_frame", "Invalid Frame"}
	ErrNotSupported    = &APIError{http.StatusBadRequest, "not_supported", "Not Supported"}
	ErrNotFound        = &APIError{http.StatusNotFound, "session_not_found", "Session Not Found"}
	ErrGone            = &APIError{http.StatusGone, "session_closed", "Session Closed"}
	ErrConflict        = &APIError{http.StatusConflict, "conflict", "Conflict"}
	ErrFrameTooLarge   = &APIError{http.StatusRequestEntityTooLarge, "frame_too_large", "Frame Too Large"}
	ErrUnsupportedType = &APIError{http.StatusUnsupportedMediaType, "unsupported_media_type", "Unsupported Media Type"}
	ErrSessionLimit    = &APIError{http.StatusTooManyRequests, "session_limit", "Too Many Sessions"}
	ErrUpstream        = &APIError{http.StatusBadGateway, "inference_failed", "Inference Failed"}
	ErrUnavailable     = &APIError{http.StatusServiceUnavailable, "unavailable", "Service Unavailable"}
	ErrInternal        = &APIError{http.StatusInternalServerError, "internal", "Internal Server Error"}
)

// conflict codes per precondition; the detail carries the error text.
var conflictCodes = []struct {
	err  error
	code string
}{
	{controller.ErrNoChallenge, "no_challenge"},
	{controller.ErrAlreadyVerified, "already_verified"},
	{controller.ErrNotVerified, "not_verified"},
	{controller.ErrPreviewNotReady, "preview_not_ready"},
	{controller.ErrBreakActive, "break_active"},
	{controller.ErrNoBreak, "no_break"},
	{adbreak.ErrIllegalTransition, "illegal_transition"},
	{adbreak.ErrNotSkippable, "not_skippable"},
	{adbreak.ErrSkipNotReady, "skip_not_ready"},
	{calibration.ErrInProgress, "calibration_in_progress"},
	{calibration.ErrNotReady, "preview_not_ready"},
	{calibration.ErrSessionEnded, "session_reset"},
	{camera.ErrNoStream, "no_stream"},
}

// writeError maps domain errors to problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, c := range conflictCodes {
		if errors.Is(err, c.err) {
			problem.Write(w, r, http.StatusConflict, c.code, ErrConflict.Title, err.Error())
			return
		}
	}

	var tmpl *APIError
	switch {
	case errors.As(err, &tmpl):
		problem.Write(w, r, tmpl.Status, tmpl.Code, tmpl.Title, "")
		return
	case errors.Is(err, ErrSessionNotFound):
		tmpl = ErrNotFound
	case errors.Is(err, controller.ErrClosed):
		tmpl = ErrGone
	case errors.Is(err, ErrTooManySessions):
		tmpl = ErrSessionLimit
	case errors.Is(err, ErrRegistryClosed):
		tmpl = ErrUnavailable
	case errors.Is(err, controller.ErrNotSupported):
		tmpl = ErrNotSupported
	case errors.Is(err, controller.ErrUnknownTarget),
		errors.Is(err, controller.ErrUnknownAction),
		errors.Is(err, media.ErrInvalidValue):
		tmpl = ErrInvalidInput
	case errors.Is(err, frame.ErrTooLarge):
		tmpl = ErrFrameTooLarge
	case errors.Is(err, frame.ErrEmptyFrame), errors.Is(err, frame.ErrUndecodable):
		tmpl = ErrInvalidFrame
	case errors.Is(err, calibration.ErrCalibrationFailed),
		errors.Is(err, inference.ErrUnavailable),
		errors.Is(err, inference.ErrRejected),
		errors.Is(err, inference.ErrBadResponse):
		tmpl = ErrUpstream
	default:
		logger := xglog.WithComponentFromContext(r.Context(), "api")
		logger.Error().
			Err(err).
			Str("path", r.URL.Path).
			Msg("unhandled API error")
		problem.Write(w, r, ErrInternal.Status, ErrInternal.Code, ErrInternal.Title, "")
		return
	}
	problem.Write(w, r, tmpl.Status, tmpl.Code, tmpl.Title, err.Error())
}

// Error implements error so templates can be returned directly.
func (e *APIError) Error() string { return e.Title }

// respondError writes a template with an optional detail.
func respondError(w http.ResponseWriter, r *http.Request, e *APIError, detail string) {
	problem.Write(w, r, e.Status, e.Code, e.Title, detail)
}
