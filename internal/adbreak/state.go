// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package adbreak

// State is the scheduler position in the break lifecycle.
type State int

const (
	Idle State = iota
	BreakTriggered
	CameraRequesting
	ChallengePending
	ChallengeVerified
	Calibrating
	Monitoring
	Resuming
)

var stateNames = [...]string{
	Idle:              "idle",
	BreakTriggered:    "break_triggered",
	CameraRequesting:  "camera_requesting",
	ChallengePending:  "challenge_pending",
	ChallengeVerified: "challenge_verified",
	Calibrating:       "calibrating",
	Monitoring:        "monitoring",
	Resuming:          "resuming",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Active reports whether a break is in progress.
func (s State) Active() bool { return s != Idle }

// EventKind drives a state transition.
type EventKind int

const (
	EvUnknown EventKind = iota
	EvTriggered
	EvCameraRequested
	EvPreviewReady
	EvChallengeVerified
	EvCalibrationStarted
	EvCalibrated
	EvCalibrationFailed
	EvRecalibrate
	EvEnded
	EvSkip
	EvProceed
	EvResumed
)

var eventNames = [...]string{
	EvUnknown:            "unknown",
	EvTriggered:          "triggered",
	EvCameraRequested:    "camera_requested",
	EvPreviewReady:       "preview_ready",
	EvChallengeVerified:  "challenge_verified",
	EvCalibrationStarted: "calibration_started",
	EvCalibrated:         "calibrated",
	EvCalibrationFailed:  "calibration_failed",
	EvRecalibrate:        "recalibrate",
	EvEnded:              "ended",
	EvSkip:               "skip",
	EvProceed:            "proceed",
	EvResumed:            "resumed",
}

func (e EventKind) String() string {
	if e < 0 || int(e) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[e]
}

// AllStates lists every state in lifecycle order.
func AllStates() []State {
	return []State{Idle, BreakTriggered, CameraRequesting, ChallengePending, ChallengeVerified, Calibrating, Monitoring, Resuming}
}

// AllEvents lists every event kind except EvUnknown.
func AllEvents() []EventKind {
	return []EventKind{
		EvTriggered, EvCameraRequested, EvPreviewReady, EvChallengeVerified, EvCalibrationStarted,
		EvCalibrated, EvCalibrationFailed, EvRecalibrate, EvEnded, EvSkip, EvProceed, EvResumed,
	}
}
