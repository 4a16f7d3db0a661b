// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api is the HTTP control API the browser client talks to: it
// creates viewer sessions, accepts camera frames and element events, and
// serves session snapshots with the directives the client must apply.
package api

import (
	"context"
	"net/http"

	"github.com/ManuGH/gazegate/internal/api/middleware"
	"github.com/ManuGH/gazegate/internal/api/problem"
	"github.com/ManuGH/gazegate/internal/health"
	"github.com/ManuGH/gazegate/internal/impressions"
	xglog "github.com/ManuGH/gazegate/internal/log"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// DefaultMaxFrameBytes bounds a pushed camera frame.
const DefaultMaxFrameBytes int64 = 2 << 20

// maxJSONBytes bounds JSON request bodies.
const maxJSONBytes = 64 << 10

// Config configures the server.
type Config struct {
	MaxFrameBytes int64
	Stack         middleware.StackConfig
}

// Server serves the control API.
type Server struct {
	cfg      Config
	sessions *Registry
	recorder *impressions.Recorder
	health   *health.Manager
	logger   zerolog.Logger
	router   *chi.Mux
}

// NewServer builds the router. recorder and hm may be nil.
func NewServer(cfg Config, sessions *Registry, recorder *impressions.Recorder, hm *health.Manager) *Server {
	if cfg.MaxFrameBytes <= 0 {
		cfg.MaxFrameBytes = DefaultMaxFrameBytes
	}
	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		recorder: recorder,
		health:   hm,
		logger:   xglog.WithComponent("api"),
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *chi.Mux {
	r := middleware.NewRouter(s.cfg.Stack)
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		problem.Write(w, req, http.StatusNotFound, "not_found", "Not Found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		problem.Write(w, req, http.StatusMethodNotAllowed, "method_not_allowed", "Method Not Allowed", "")
	})

	if s.health != nil {
		r.Get("/healthz", s.health.ServeHealth)
		r.Get("/readyz", s.health.ServeReady)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			// Impressions outlive the session.
			r.Get("/impressions", s.handleImpressions)

			r.Group(func(r chi.Router) {
				r.Use(s.withSession)
				r.Get("/", s.handleSnapshot)
				r.Delete("/", s.handleDeleteSession)
				r.Post("/camera", s.handleCamera)
				r.Post("/camera/retry", s.handleCameraRetry)
				r.Post("/frames", s.handleFrame)
				r.Post("/events", s.handleEvent)
				r.Post("/challenge", s.handleChallenge)
				r.Post("/challenge/refresh", s.handleChallengeRefresh)
				r.Post("/calibrate", s.handleCalibrate)
				r.Post("/reset", s.handleReset)
				r.Post("/skip", s.handleSkip)
				r.Post("/proceed", s.handleProceed)
				r.Post("/controls", s.handleControls)
				r.Get("/notifications", s.handleNotifications)
			})
		})
	})
	return r
}

type sessionKey struct{}

// withSession resolves {id} to a live session.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		sess, err := s.sessions.Get(id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx := xglog.ContextWithSessionID(r.Context(), id)
		ctx = context.WithValue(ctx, sessionKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) *Session {
	sess, _ := r.Context().Value(sessionKey{}).(*Session)
	return sess
}
