// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package problem writes RFC 7807 problem details responses.
package problem

import (
	"encoding/json"
	"net/http"

	xglog "github.com/ManuGH/gazegate/internal/log"
)

const (
	// HeaderRequestID carries the request correlation id.
	HeaderRequestID = "X-Request-ID"
	// ContentType is the problem details media type.
	ContentType = "application/problem+json"

	typePrefix = "gazegate/"
)

// Details is the response body.
type Details struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Code      string `json:"code"`
	Detail    string `json:"detail,omitempty"`
	Instance  string `json:"instance,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// Write writes a problem response. code is the stable machine-readable
// identifier ("session_not_found"); title is the short human label.
func Write(w http.ResponseWriter, r *http.Request, status int, code, title, detail string) {
	d := Details{
		Type:   typePrefix + code,
		Title:  title,
		Status: status,
		Code:   code,
		Detail: detail,
	}
	if r != nil {
		d.Instance = r.URL.EscapedPath()
		d.RequestID = xglog.RequestIDFromContext(r.Context())
	}
	if d.RequestID == "" {
		d.RequestID = w.Header().Get(HeaderRequestID)
	}
	if d.RequestID != "" {
		w.Header().Set(HeaderRequestID, d.RequestID)
	}

	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(d); err != nil {
		logger := xglog.WithComponent("api")
		logger.Error().
			Err(err).
			Str("code", code).
			Int("status", status).
			Msg("failed to encode problem response")
	}
}
