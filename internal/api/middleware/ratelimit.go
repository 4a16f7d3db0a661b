// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ManuGH/gazegate/internal/api/problem"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	// RequestLimit is the maximum number of requests allowed in the window.
	RequestLimit int
	// WindowSize is the sliding window. Defaults to one minute.
	WindowSize time.Duration
	// KeyFunc extracts the rate limit key. Defaults to the client IP.
	KeyFunc func(r *http.Request) (string, error)
}

// RateLimit creates a sliding-window rate limiter backed by httprate.
// Rejected requests get a problem response with Retry-After.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}
	window := cfg.WindowSize
	if window <= 0 {
		window = time.Minute
	}
	retryAfter := strconv.Itoa(max(1, int(window.Seconds())))

	return httprate.Limit(
		cfg.RequestLimit,
		window,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", retryAfter)
			problem.Write(w, r, http.StatusTooManyRequests, "rate_limited", "Too Many Requests",
				"Too many requests. Please try again later.")
		}),
	)
}
