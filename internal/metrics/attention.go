// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	PollOutcomeLooking    = "looking"
	PollOutcomeNotLooking = "not_looking"
	PollOutcomeFailed     = "failed"
	PollOutcomeNoFrame    = "no_frame"
	PollOutcomeStale      = "stale"

	PollSourceTimer  = "timer"
	PollSourceMotion = "motion"
	PollSourceManual = "manual"

	OutcomeOK       = "ok"
	OutcomeFailed   = "failed"
	OutcomeNotReady = "not_ready"
)

var (
	gazePollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gazegate_gaze_polls_total",
		Help: "Completed gaze polls by outcome",
	}, []string{"outcome"})

	gazePollsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gazegate_gaze_polls_dropped_total",
		Help: "Gaze poll requests dropped because another poll was in flight, by trigger source",
	}, []string{"source"})

	gazePollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gazegate_gaze_poll_duration_seconds",
		Help:    "Latency of analyze calls to the gaze inference capability",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
	})

	motionEscalations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gazegate_motion_escalations_total",
		Help: "Frame differences above threshold that requested an out-of-cycle gaze poll",
	})

	calibrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gazegate_calibrations_total",
		Help: "Calibration attempts by outcome",
	}, []string{"outcome"})

	challengesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gazegate_challenges_total",
		Help: "Liveness challenge events by outcome",
	}, []string{"outcome"})

	cameraAcquisitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gazegate_camera_acquisitions_total",
		Help: "Camera acquisition results by outcome",
	}, []string{"outcome"})

	gateDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gazegate_gate_decisions_total",
		Help: "Play/pause commands issued to gated elements",
	}, []string{"decision"})

	adBreaksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gazegate_ad_breaks_total",
		Help: "Ad break lifecycle events by outcome",
	}, []string{"outcome"})

	attentiveSeconds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gazegate_attentive_seconds_total",
		Help: "Seconds of gated playback with confirmed attention",
	})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gazegate_sessions_active",
		Help: "Controller sessions currently hosted by the daemon",
	})

	inferenceRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gazegate_inference_requests_total",
		Help: "Requests to the gaze inference capability by operation and outcome",
	}, []string{"op", "outcome"})
)

// RecordGazePoll records a completed poll.
func RecordGazePoll(outcome string, seconds float64) {
	gazePollsTotal.WithLabelValues(normalizePollOutcome(outcome)).Inc()
	if seconds > 0 {
		gazePollDuration.Observe(seconds)
	}
}

// IncGazePollDropped records a poll dropped by the in-flight guard.
func IncGazePollDropped(source string) {
	gazePollsDropped.WithLabelValues(normalizePollSource(source)).Inc()
}

// IncMotionEscalation records a motion-triggered poll request.
func IncMotionEscalation() {
	motionEscalations.Inc()
}

// RecordCalibration records a calibration attempt.
func RecordCalibration(outcome string) {
	calibrationsTotal.WithLabelValues(normalizeOutcome(outcome)).Inc()
}

// RecordChallenge records generated, verified and mismatched challenges.
func RecordChallenge(outcome string) {
	switch outcome {
	case "generated", "verified", "mismatch", "refreshed":
	default:
		outcome = "unknown"
	}
	challengesTotal.WithLabelValues(outcome).Inc()
}

// RecordCameraAcquisition records a camera acquisition result.
func RecordCameraAcquisition(outcome string) {
	switch outcome {
	case "granted", "denied", "error":
	default:
		outcome = "unknown"
	}
	cameraAcquisitions.WithLabelValues(outcome).Inc()
}

// RecordGateDecision records a play or pause command.
func RecordGateDecision(play bool) {
	if play {
		gateDecisions.WithLabelValues("play").Inc()
		return
	}
	gateDecisions.WithLabelValues("pause").Inc()
}

// RecordAdBreak records break lifecycle outcomes.
func RecordAdBreak(outcome string) {
	switch outcome {
	case "triggered", "completed", "skipped", "proceeded":
	default:
		outcome = "unknown"
	}
	adBreaksTotal.WithLabelValues(outcome).Inc()
}

// AddAttentiveSeconds adds confirmed attentive playback time.
func AddAttentiveSeconds(seconds float64) {
	if seconds > 0 {
		attentiveSeconds.Add(seconds)
	}
}

// SessionOpened increments the active session gauge.
func SessionOpened() { sessionsActive.Inc() }

// SessionClosed decrements the active session gauge.
func SessionClosed() { sessionsActive.Dec() }

// RecordInferenceRequest records a request to the inference capability.
func RecordInferenceRequest(op, outcome string) {
	switch op {
	case "calibrate", "analyze":
	default:
		op = "unknown"
	}
	inferenceRequests.WithLabelValues(op, normalizeOutcome(outcome)).Inc()
}

func normalizePollOutcome(outcome string) string {
	switch strings.ToLower(strings.TrimSpace(outcome)) {
	case PollOutcomeLooking, PollOutcomeNotLooking, PollOutcomeFailed, PollOutcomeNoFrame, PollOutcomeStale:
		return strings.ToLower(strings.TrimSpace(outcome))
	default:
		return "unknown"
	}
}

func normalizePollSource(source string) string {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case PollSourceTimer, PollSourceMotion, PollSourceManual:
		return strings.ToLower(strings.TrimSpace(source))
	default:
		return "unknown"
	}
}

func normalizeOutcome(outcome string) string {
	switch strings.ToLower(strings.TrimSpace(outcome)) {
	case OutcomeOK, OutcomeFailed, OutcomeNotReady, "circuit_open":
		return strings.ToLower(strings.TrimSpace(outcome))
	default:
		return "unknown"
	}
}
