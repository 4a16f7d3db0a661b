// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ManuGH/gazegate/internal/adbreak"
	"github.com/ManuGH/gazegate/internal/api/middleware"
	"github.com/ManuGH/gazegate/internal/api/problem"
	"github.com/ManuGH/gazegate/internal/bus"
	"github.com/ManuGH/gazegate/internal/camera"
	"github.com/ManuGH/gazegate/internal/challenge"
	"github.com/ManuGH/gazegate/internal/controller"
	"github.com/ManuGH/gazegate/internal/frame"
	"github.com/ManuGH/gazegate/internal/health"
	"github.com/ManuGH/gazegate/internal/impressions"
	"github.com/ManuGH/gazegate/internal/inference"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 2 * time.Millisecond
)

// fixedRandom makes every challenge read "AAAA".
type fixedRandom struct{}

func (fixedRandom) IntN(int) int     { return 0 }
func (fixedRandom) Float64() float64 { return 0.5 }

type testEnv struct {
	t        *testing.T
	srv      *Server
	registry *Registry
	recorder *impressions.Recorder
}

type envOptions struct {
	max            int
	maxFrameBytes  int64
	maxFramePixels int
	breaks         []adbreak.Config
}

func newEnv(t *testing.T, o envOptions) *testEnv {
	t.Helper()
	logger := zerolog.Nop()
	rec := impressions.NewRecorder(impressions.NewMemoryStore(), nil, logger)
	capability := inference.Funcs{
		AnalyzeFunc: func(context.Context, frame.Still) (inference.Analysis, error) {
			return inference.Analysis{IsLookingAtScreen: true}, nil
		},
	}
	gen := challenge.NewGenerator(challenge.WithRandom(fixedRandom{}))
	factory := func(v controller.Variant, dev *camera.PushDevice) (*controller.Controller, error) {
		deps := controller.Deps{Device: dev, Capability: capability, Challenges: gen, Recorder: rec, Logger: logger}
		opts := controller.Options{
			GazeInterval:   5 * time.Millisecond,
			MotionInterval: 5 * time.Millisecond,
			ClockInterval:  5 * time.Millisecond,
		}
		if v == controller.VariantPlayer {
			return controller.NewPlayer(deps, "https://cdn.example.com/main.mp4", o.breaks, opts)
		}
		return controller.NewDemo(deps, "https://cdn.example.com/demo.mp4", opts)
	}

	reg := NewRegistry(factory, o.max, time.Minute, logger, WithDeviceOptions(camera.WithMaxPixels(o.maxFramePixels)))
	t.Cleanup(reg.Shutdown)

	hm := health.NewManager("test")
	srv := NewServer(Config{
		MaxFrameBytes: o.maxFrameBytes,
		Stack:         middleware.StackConfig{EnableMetrics: true, EnableSecurityHeaders: true},
	}, reg, rec, hm)
	return &testEnv{t: t, srv: srv, registry: reg, recorder: rec}
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(e.t, err)
		rd = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

func (e *testEnv) raw(method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	e.t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

// snapshotBody is the part of a snapshot the tests look at.
type snapshotBody struct {
	ID         string `json:"id"`
	Variant    string `json:"variant"`
	Generation uint64 `json:"generation"`
	Camera     struct {
		Permission   string `json:"permission"`
		SessionID    string `json:"sessionId"`
		PreviewReady bool   `json:"previewReady"`
	} `json:"camera"`
	Challenge *struct {
		ID    string `json:"id"`
		Image string `json:"image"`
		Error string `json:"error"`
	} `json:"challenge"`
	Verified   bool `json:"verified"`
	Focused    bool `json:"focused"`
	ShouldPlay bool `json:"shouldPlay"`
	Directives []struct {
		Seq    uint64 `json:"seq"`
		Target string `json:"target"`
		Action string `json:"action"`
	} `json:"directives"`
	AdBreak *struct {
		State      string `json:"state"`
		CanProceed bool   `json:"canProceed"`
	} `json:"adBreak"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}

func (e *testEnv) create(variant controller.Variant) string {
	e.t.Helper()
	w := e.do(http.MethodPost, "/api/v1/sessions", map[string]any{"variant": variant})
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	snap := decode[snapshotBody](e.t, w)
	require.NotEmpty(e.t, snap.ID)
	assert.Equal(e.t, "/api/v1/sessions/"+snap.ID, w.Header().Get("Location"))
	return snap.ID
}

func (e *testEnv) snapshot(id string) snapshotBody {
	e.t.Helper()
	w := e.do(http.MethodGet, "/api/v1/sessions/"+id, nil)
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
	return decode[snapshotBody](e.t, w)
}

func (e *testEnv) event(id string, body map[string]any) {
	e.t.Helper()
	w := e.do(http.MethodPost, "/api/v1/sessions/"+id+"/events", body)
	require.Equal(e.t, http.StatusNoContent, w.Code, w.Body.String())
}

func assertProblem(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	assert.Equal(t, problem.ContentType, w.Header().Get("Content-Type"))
	body := decode[problem.Details](t, w)
	assert.Equal(t, code, body.Code)
	assert.NotEmpty(t, body.RequestID)
}

func pngFrame(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for x := 0; x < 32; x++ {
		for y := 0; y < 24; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 10), B: 60, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// grant answers the permission prompt and feeds the first frame.
func (e *testEnv) grant(id string) {
	e.t.Helper()
	w := e.do(http.MethodPost, "/api/v1/sessions/"+id+"/camera", map[string]any{"granted": true})
	require.Equal(e.t, http.StatusAccepted, w.Code)
	require.Eventually(e.t, func() bool { return e.snapshot(id).Camera.SessionID != "" }, waitFor, tick)

	w = e.raw(http.MethodPost, "/api/v1/sessions/"+id+"/frames", "image/png", pngFrame(e.t))
	require.Equal(e.t, http.StatusNoContent, w.Code, w.Body.String())
	require.Eventually(e.t, func() bool {
		s := e.snapshot(id)
		return s.Camera.PreviewReady && s.Challenge != nil
	}, waitFor, tick)
}

func TestDemoFlow(t *testing.T) {
	e := newEnv(t, envOptions{})
	id := e.create(controller.VariantDemo)

	snap := e.snapshot(id)
	assert.Equal(t, "demo", snap.Variant)
	assert.Equal(t, "pending", snap.Camera.Permission)
	assert.Nil(t, snap.Challenge)

	e.grant(id)
	snap = e.snapshot(id)
	assert.Equal(t, "granted", snap.Camera.Permission)
	require.NotNil(t, snap.Challenge)
	assert.True(t, strings.HasPrefix(snap.Challenge.Image, "data:image/svg+xml;base64,"))

	w := e.do(http.MethodPost, "/api/v1/sessions/"+id+"/challenge", map[string]any{"answer": "zzzz"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[challengeResponse](t, w).Accepted)

	w = e.do(http.MethodGet, "/api/v1/sessions/"+id+"/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	notes := decode[notificationsResponse](t, w).Notifications
	require.NotEmpty(t, notes)
	assert.Equal(t, "Verification Failed", notes[len(notes)-1].Title)
	assert.Contains(t, notes[len(notes)-1].Actions, bus.ActionRefreshChallenge)

	w = e.do(http.MethodPost, "/api/v1/sessions/"+id+"/challenge", map[string]any{"answer": "aaaa"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[challengeResponse](t, w).Accepted, "answers are case-insensitive")

	w = e.do(http.MethodPost, "/api/v1/sessions/"+id+"/calibrate", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.Eventually(t, func() bool { return e.snapshot(id).ShouldPlay }, waitFor, tick)
	require.Eventually(t, func() bool {
		for _, d := range e.snapshot(id).Directives {
			if d.Target == controller.TargetGated && d.Action == "play" {
				return true
			}
		}
		return false
	}, waitFor, tick)

	e.event(id, map[string]any{"target": "window", "type": "blur"})
	snap = e.snapshot(id)
	assert.False(t, snap.Focused)
	assert.False(t, snap.ShouldPlay)

	w = e.do(http.MethodPost, "/api/v1/sessions/"+id+"/reset", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	snap = e.snapshot(id)
	assert.False(t, snap.Verified)
	assert.NotEmpty(t, snap.Camera.SessionID, "reset keeps the camera")

	w = e.do(http.MethodDelete, "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	assertProblem(t, e.do(http.MethodGet, "/api/v1/sessions/"+id, nil), http.StatusNotFound, "session_not_found")
}

func TestSnapshot_AfterFiltersDirectives(t *testing.T) {
	e := newEnv(t, envOptions{})
	id := e.create(controller.VariantDemo)

	all := e.snapshot(id).Directives
	require.NotEmpty(t, all, "loading the demo source queues a directive")
	last := all[len(all)-1].Seq

	w := e.do(http.MethodGet, "/api/v1/sessions/"+id+"?after="+strconv.FormatUint(last, 10), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[snapshotBody](t, w).Directives)

	assertProblem(t, e.do(http.MethodGet, "/api/v1/sessions/"+id+"?after=-1", nil), http.StatusBadRequest, "invalid_input")
}

func TestCreateSession_Validation(t *testing.T) {
	e := newEnv(t, envOptions{})

	assertProblem(t, e.do(http.MethodPost, "/api/v1/sessions", map[string]any{"variant": "kiosk"}),
		http.StatusBadRequest, "invalid_input")
	assertProblem(t, e.do(http.MethodPost, "/api/v1/sessions", map[string]any{"variant": "demo", "extra": 1}),
		http.StatusBadRequest, "invalid_input")

	w := e.raw(http.MethodPost, "/api/v1/sessions", "application/json", nil)
	require.Equal(t, http.StatusCreated, w.Code, "an empty body creates a demo session")
	assert.Equal(t, "demo", decode[snapshotBody](t, w).Variant)
}

func TestCreateSession_Limit(t *testing.T) {
	e := newEnv(t, envOptions{max: 1})
	id := e.create(controller.VariantDemo)

	assertProblem(t, e.do(http.MethodPost, "/api/v1/sessions", map[string]any{"variant": "demo"}),
		http.StatusTooManyRequests, "session_limit")

	require.Equal(t, http.StatusNoContent, e.do(http.MethodDelete, "/api/v1/sessions/"+id, nil).Code)
	e.create(controller.VariantDemo)
}

func TestUnknownSessionAndRoute(t *testing.T) {
	e := newEnv(t, envOptions{})

	assertProblem(t, e.do(http.MethodGet, "/api/v1/sessions/nope", nil), http.StatusNotFound, "session_not_found")
	assertProblem(t, e.do(http.MethodPost, "/api/v1/sessions/nope/skip", nil), http.StatusNotFound, "session_not_found")
	assertProblem(t, e.do(http.MethodDelete, "/api/v1/sessions/nope", nil), http.StatusNotFound, "session_not_found")
	assertProblem(t, e.do(http.MethodGet, "/api/v1/nothing", nil), http.StatusNotFound, "not_found")
	assertProblem(t, e.do(http.MethodPut, "/api/v1/sessions", nil), http.StatusMethodNotAllowed, "method_not_allowed")
}

func TestFrames(t *testing.T) {
	e := newEnv(t, envOptions{maxFrameBytes: 4 << 10})
	id := e.create(controller.VariantDemo)
	path := "/api/v1/sessions/" + id + "/frames"

	assertProblem(t, e.raw(http.MethodPost, path, "image/png", pngFrame(t)), http.StatusConflict, "no_stream")
	assertProblem(t, e.raw(http.MethodPost, path, "text/plain", []byte("hi")), http.StatusUnsupportedMediaType, "unsupported_media_type")
	assertProblem(t, e.raw(http.MethodPost, path, "image/png", nil), http.StatusBadRequest, "invalid_frame")
	assertProblem(t, e.raw(http.MethodPost, path, "image/jpeg", make([]byte, 8<<10)), http.StatusRequestEntityTooLarge, "frame_too_large")

	e.grant(id)
	assertProblem(t, e.raw(http.MethodPost, path, "image/png", []byte("not a png")), http.StatusBadRequest, "invalid_frame")
}

func TestFrames_PixelLimit(t *testing.T) {
	e := newEnv(t, envOptions{maxFramePixels: 1024})
	id := e.create(controller.VariantDemo)
	path := "/api/v1/sessions/" + id + "/frames"
	e.grant(id)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 64, 64))))
	assertProblem(t, e.raw(http.MethodPost, path, "image/png", buf.Bytes()), http.StatusRequestEntityTooLarge, "frame_too_large")
	require.Equal(t, http.StatusNoContent, e.raw(http.MethodPost, path, "image/png", pngFrame(t)).Code)
}

func TestCameraDenied(t *testing.T) {
	e := newEnv(t, envOptions{})
	id := e.create(controller.VariantDemo)

	w := e.do(http.MethodPost, "/api/v1/sessions/"+id+"/camera", map[string]any{"granted": false})
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Eventually(t, func() bool { return e.snapshot(id).Camera.Permission == "denied" }, waitFor, tick)

	w = e.do(http.MethodGet, "/api/v1/sessions/"+id+"/notifications", nil)
	notes := decode[notificationsResponse](t, w).Notifications
	require.NotEmpty(t, notes)
	assert.Contains(t, notes[0].Actions, bus.ActionRetryCamera)

	require.Equal(t, http.StatusNoContent, e.do(http.MethodPost, "/api/v1/sessions/"+id+"/camera/retry", nil).Code)
	e.grant(id)
}

func TestPreconditions(t *testing.T) {
	e := newEnv(t, envOptions{})
	id := e.create(controller.VariantDemo)
	base := "/api/v1/sessions/" + id

	assertProblem(t, e.do(http.MethodPost, base+"/challenge", map[string]any{"answer": "AAAA"}), http.StatusConflict, "no_challenge")
	assertProblem(t, e.do(http.MethodPost, base+"/challenge/refresh", nil), http.StatusConflict, "preview_not_ready")
	assertProblem(t, e.do(http.MethodPost, base+"/calibrate", nil), http.StatusConflict, "not_verified")

	assertProblem(t, e.do(http.MethodPost, base+"/skip", nil), http.StatusBadRequest, "not_supported")
	assertProblem(t, e.do(http.MethodPost, base+"/proceed", nil), http.StatusBadRequest, "not_supported")
	assertProblem(t, e.do(http.MethodPost, base+"/controls", map[string]any{"action": "toggle"}), http.StatusBadRequest, "not_supported")

	assertProblem(t, e.do(http.MethodPost, base+"/events", map[string]any{"target": "primary", "type": "play"}), http.StatusBadRequest, "invalid_input")
	assertProblem(t, e.do(http.MethodPost, base+"/events", map[string]any{"target": "gated", "type": "explode"}), http.StatusBadRequest, "invalid_input")
	assertProblem(t, e.do(http.MethodPost, base+"/events", map[string]any{"target": "window", "type": "resize"}), http.StatusBadRequest, "invalid_input")

	e.grant(id)
	require.Equal(t, http.StatusNoContent, e.do(http.MethodPost, base+"/challenge/refresh", nil).Code)
	w := e.do(http.MethodPost, base+"/challenge", map[string]any{"answer": "AAAA"})
	require.True(t, decode[challengeResponse](t, w).Accepted)
	assertProblem(t, e.do(http.MethodPost, base+"/challenge", map[string]any{"answer": "AAAA"}), http.StatusConflict, "already_verified")
}

func TestPlayerBreakAndImpressions(t *testing.T) {
	skip := 5
	e := newEnv(t, envOptions{breaks: []adbreak.Config{
		{ID: "mid", TriggerTime: 5, MediaSrc: "https://cdn.example.com/ads/mid.mp4", SkipTime: &skip},
	}})
	id := e.create(controller.VariantPlayer)
	base := "/api/v1/sessions/" + id

	snap := e.snapshot(id)
	require.NotNil(t, snap.AdBreak)
	assert.Equal(t, "idle", snap.AdBreak.State)

	assertProblem(t, e.do(http.MethodPost, base+"/proceed", nil), http.StatusConflict, "no_break")
	require.Equal(t, http.StatusNoContent, e.do(http.MethodPost, base+"/controls", map[string]any{"action": "volume", "value": 0.5}).Code)
	assertProblem(t, e.do(http.MethodPost, base+"/controls", map[string]any{"action": "volume", "value": 3}), http.StatusBadRequest, "invalid_input")
	assertProblem(t, e.do(http.MethodPost, base+"/controls", map[string]any{"action": "rewind"}), http.StatusBadRequest, "invalid_input")

	e.event(id, map[string]any{"target": "primary", "type": "loadedmetadata", "duration": 60})
	e.event(id, map[string]any{"target": "primary", "type": "play"})
	e.event(id, map[string]any{"target": "primary", "type": "timeupdate", "currentTime": 5.2})

	snap = e.snapshot(id)
	require.NotNil(t, snap.AdBreak)
	assert.NotEqual(t, "idle", snap.AdBreak.State)
	assert.True(t, snap.AdBreak.CanProceed)
	assertProblem(t, e.do(http.MethodPost, base+"/controls", map[string]any{"action": "toggle"}), http.StatusConflict, "break_active")
	assertProblem(t, e.do(http.MethodPost, base+"/skip", nil), http.StatusConflict, "illegal_transition")

	require.Equal(t, http.StatusNoContent, e.do(http.MethodPost, base+"/proceed", nil).Code)
	assert.Equal(t, "idle", e.snapshot(id).AdBreak.State)

	w := e.do(http.MethodGet, base+"/impressions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	imps := decode[impressionsResponse](t, w).Impressions
	require.Len(t, imps, 1)
	assert.Equal(t, "mid", imps[0].BreakID)
	assert.Equal(t, string(adbreak.OutcomeProceeded), imps[0].Outcome)

	// Impressions stay readable after the session is gone.
	require.Equal(t, http.StatusNoContent, e.do(http.MethodDelete, base, nil).Code)
	w = e.do(http.MethodGet, base+"/impressions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[impressionsResponse](t, w).Impressions, 1)
}

func TestProbesAndMetrics(t *testing.T) {
	e := newEnv(t, envOptions{})
	e.create(controller.VariantDemo)

	w := e.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = e.do(http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "gazegate_http_request_duration_seconds")
	assert.Contains(t, body, `path="/api/v1/sessions"`)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}
