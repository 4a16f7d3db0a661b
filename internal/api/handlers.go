// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/ManuGH/gazegate/internal/bus"
	"github.com/ManuGH/gazegate/internal/controller"
	"github.com/ManuGH/gazegate/internal/impressions"
	xglog "github.com/ManuGH/gazegate/internal/log"
	"github.com/ManuGH/gazegate/internal/media"
	"github.com/go-chi/chi/v5"
)

// Window targets of POST /events.
const (
	targetWindow = "window"
	eventFocus   = "focus"
	eventBlur    = "blur"
)

type createSessionRequest struct {
	Variant controller.Variant `json:"variant"`
}

type cameraRequest struct {
	Granted bool `json:"granted"`
}

type eventRequest struct {
	Target      string   `json:"target"`
	Type        string   `json:"type"`
	CurrentTime *float64 `json:"currentTime,omitempty"`
	Duration    *float64 `json:"duration,omitempty"`
	Volume      *float64 `json:"volume,omitempty"`
	Muted       *bool    `json:"muted,omitempty"`
}

type challengeRequest struct {
	Answer string `json:"answer"`
}

type challengeResponse struct {
	Accepted bool `json:"accepted"`
}

type controlRequest struct {
	Action string  `json:"action"`
	Value  float64 `json:"value"`
}

type notificationsResponse struct {
	Notifications []bus.Notification `json:"notifications"`
}

type impressionsResponse struct {
	Impressions []impressions.Impression `json:"impressions"`
}

var frameTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := xglog.WithComponent("api")
		logger.Error().Err(err).Msg("failed to encode response")
	}
}

// decodeJSON decodes a bounded JSON body into dst. An empty body is accepted
// when optional is set. It writes the error response itself.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		respondError(w, r, ErrInvalidInput, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	req := createSessionRequest{Variant: controller.VariantDemo}
	if !decodeJSON(w, r, &req, true) {
		return
	}
	if !req.Variant.Valid() {
		respondError(w, r, ErrInvalidInput, fmt.Sprintf("unknown variant %q", req.Variant))
		return
	}
	sess, err := s.sessions.Create(req.Variant)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/sessions/"+sess.Controller.ID())
	writeJSON(w, http.StatusCreated, sess.Controller.Snapshot(0))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	var after uint64
	if raw := r.URL.Query().Get("after"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			respondError(w, r, ErrInvalidInput, "after must be a non-negative integer")
			return
		}
		after = v
	}
	ctl := sessionFrom(r).Controller
	ctl.Touch()
	writeJSON(w, http.StatusOK, ctl.Snapshot(after))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Remove(chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCamera(w http.ResponseWriter, r *http.Request) {
	var req cameraRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	sess := sessionFrom(r)
	sess.Controller.Touch()
	sess.Device.Resolve(req.Granted)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleCameraRetry(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, sessionFrom(r).Controller.RetryCamera)
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !frameTypes[mt] {
		respondError(w, r, ErrUnsupportedType, "frames must be image/jpeg, image/png or image/webp")
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxFrameBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, ErrFrameTooLarge, fmt.Sprintf("frame exceeds %d bytes", tooLarge.Limit))
			return
		}
		respondError(w, r, ErrInvalidFrame, err.Error())
		return
	}
	if len(data) == 0 {
		respondError(w, r, ErrInvalidFrame, "empty frame")
		return
	}
	sess := sessionFrom(r)
	sess.Controller.Touch()
	if err := sess.Device.Push(data); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	ctl := sessionFrom(r).Controller

	if req.Target == targetWindow {
		switch req.Type {
		case eventFocus:
			ctl.SetFocused(true)
		case eventBlur:
			ctl.SetFocused(false)
		default:
			respondError(w, r, ErrInvalidInput, fmt.Sprintf("unknown window event %q", req.Type))
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	_, err := ctl.HandleEvent(req.Target, media.Report{
		Type:        media.EventType(req.Type),
		CurrentTime: req.CurrentTime,
		Duration:    req.Duration,
		Volume:      req.Volume,
		Muted:       req.Muted,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	var req challengeRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	ok, err := sessionFrom(r).Controller.SubmitAnswer(req.Answer)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, challengeResponse{Accepted: ok})
}

func (s *Server) handleChallengeRefresh(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, sessionFrom(r).Controller.RefreshChallenge)
}

func (s *Server) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	ctl := sessionFrom(r).Controller
	if err := ctl.Calibrate(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ctl.Snapshot(0))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, sessionFrom(r).Controller.Reset)
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, sessionFrom(r).Controller.Skip)
}

func (s *Server) handleProceed(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, sessionFrom(r).Controller.Proceed)
}

func (s *Server) handleControls(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if err := sessionFrom(r).Controller.Control(req.Action, req.Value); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	ctl := sessionFrom(r).Controller
	ctl.Touch()
	out := ctl.Notifications()
	if out == nil {
		out = []bus.Notification{}
	}
	writeJSON(w, http.StatusOK, notificationsResponse{Notifications: out})
}

func (s *Server) handleImpressions(w http.ResponseWriter, r *http.Request) {
	out := []impressions.Impression{}
	if s.recorder != nil {
		list, err := s.recorder.List(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if list != nil {
			out = list
		}
	}
	writeJSON(w, http.StatusOK, impressionsResponse{Impressions: out})
}

// act runs a parameterless operation and answers 204 on success.
func (s *Server) act(w http.ResponseWriter, r *http.Request, op func() error) {
	if err := op(); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
