// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"net/http"
	"time"

	xglog "github.com/ManuGH/gazegate/internal/log"
	"github.com/rs/zerolog"
)

// AccessLog logs one line per request with the request id and, when a span
// is active, the trace ids. Probes and scrapes log at debug.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := newStatusWriter(w)
		next.ServeHTTP(sw, r)

		logger := xglog.WithTraceContext(r.Context())
		var ev *zerolog.Event
		switch {
		case !shouldTrace(r):
			ev = logger.Debug()
		case sw.status >= http.StatusInternalServerError:
			ev = logger.Error()
		case sw.status >= http.StatusBadRequest:
			ev = logger.Warn()
		default:
			ev = logger.Info()
		}
		ev.Str(xglog.FieldComponent, "api").
			Str(xglog.FieldEvent, "http.request").
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route", routePattern(r)).
			Int("status", sw.status).
			Int("bytes", sw.bytes).
			Dur("duration", time.Since(start)).
			Str("remote_addr", r.RemoteAddr).
			Msg("http request")
	})
}
