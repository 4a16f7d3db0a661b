// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package adbreak

// Transition is a single allowed edge in the break state machine.
type Transition struct {
	From  State
	To    State
	Event EventKind
}

// Decision records whether an event is allowed in a state and why not.
type Decision struct {
	Allowed bool
	Reason  string
}

const (
	ForbiddenNoActiveBreak  = "no_active_break"
	ForbiddenBreakActive    = "break_already_active"
	ForbiddenOutOfOrder     = "out_of_order"
	ForbiddenAlreadyInState = "already_in_state"
	ForbiddenRequiresLive   = "requires_monitoring"
	ForbiddenResuming       = "resuming"
	ForbiddenUseSkip        = "use_skip"
)

var transitionsTable = []Transition{
	{From: Idle, To: BreakTriggered, Event: EvTriggered},
	{From: BreakTriggered, To: CameraRequesting, Event: EvCameraRequested},
	{From: CameraRequesting, To: ChallengePending, Event: EvPreviewReady},
	{From: ChallengePending, To: ChallengeVerified, Event: EvChallengeVerified},
	{From: ChallengeVerified, To: Calibrating, Event: EvCalibrationStarted},
	{From: Calibrating, To: Monitoring, Event: EvCalibrated},
	{From: Calibrating, To: ChallengeVerified, Event: EvCalibrationFailed},
	{From: Monitoring, To: ChallengePending, Event: EvRecalibrate},

	// Exits
	{From: Monitoring, To: Resuming, Event: EvEnded},
	{From: Monitoring, To: Resuming, Event: EvSkip},
	{From: BreakTriggered, To: Resuming, Event: EvProceed},
	{From: CameraRequesting, To: Resuming, Event: EvProceed},
	{From: ChallengePending, To: Resuming, Event: EvProceed},
	{From: ChallengeVerified, To: Resuming, Event: EvProceed},
	{From: Calibrating, To: Resuming, Event: EvProceed},
	{From: Resuming, To: Idle, Event: EvResumed},
}

func allowed() Decision        { return Decision{Allowed: true} }
func forbid(r string) Decision { return Decision{Reason: r} }

// decisionTable holds an explicit decision for every State x Event pair.
var decisionTable = map[State]map[EventKind]Decision{
	Idle: {
		EvTriggered:          allowed(),
		EvCameraRequested:    forbid(ForbiddenNoActiveBreak),
		EvPreviewReady:       forbid(ForbiddenNoActiveBreak),
		EvChallengeVerified:  forbid(ForbiddenNoActiveBreak),
		EvCalibrationStarted: forbid(ForbiddenNoActiveBreak),
		EvCalibrated:         forbid(ForbiddenNoActiveBreak),
		EvCalibrationFailed:  forbid(ForbiddenNoActiveBreak),
		EvRecalibrate:        forbid(ForbiddenNoActiveBreak),
		EvEnded:              forbid(ForbiddenNoActiveBreak),
		EvSkip:               forbid(ForbiddenNoActiveBreak),
		EvProceed:            forbid(ForbiddenNoActiveBreak),
		EvResumed:            forbid(ForbiddenNoActiveBreak),
	},
	BreakTriggered: {
		EvTriggered:          forbid(ForbiddenBreakActive),
		EvCameraRequested:    allowed(),
		EvPreviewReady:       forbid(ForbiddenOutOfOrder),
		EvChallengeVerified:  forbid(ForbiddenOutOfOrder),
		EvCalibrationStarted: forbid(ForbiddenOutOfOrder),
		EvCalibrated:         forbid(ForbiddenOutOfOrder),
		EvCalibrationFailed:  forbid(ForbiddenOutOfOrder),
		EvRecalibrate:        forbid(ForbiddenRequiresLive),
		EvEnded:              forbid(ForbiddenRequiresLive),
		EvSkip:               forbid(ForbiddenRequiresLive),
		EvProceed:            allowed(),
		EvResumed:            forbid(ForbiddenOutOfOrder),
	},
	CameraRequesting: {
		EvTriggered:          forbid(ForbiddenBreakActive),
		EvCameraRequested:    forbid(ForbiddenAlreadyInState),
		EvPreviewReady:       allowed(),
		EvChallengeVerified:  forbid(ForbiddenOutOfOrder),
		EvCalibrationStarted: forbid(ForbiddenOutOfOrder),
		EvCalibrated:         forbid(ForbiddenOutOfOrder),
		EvCalibrationFailed:  forbid(ForbiddenOutOfOrder),
		EvRecalibrate:        forbid(ForbiddenRequiresLive),
		EvEnded:              forbid(ForbiddenRequiresLive),
		EvSkip:               forbid(ForbiddenRequiresLive),
		EvProceed:            allowed(),
		EvResumed:            forbid(ForbiddenOutOfOrder),
	},
	ChallengePending: {
		EvTriggered:          forbid(ForbiddenBreakActive),
		EvCameraRequested:    forbid(ForbiddenOutOfOrder),
		EvPreviewReady:       forbid(ForbiddenAlreadyInState),
		EvChallengeVerified:  allowed(),
		EvCalibrationStarted: forbid(ForbiddenOutOfOrder),
		EvCalibrated:         forbid(ForbiddenOutOfOrder),
		EvCalibrationFailed:  forbid(ForbiddenOutOfOrder),
		EvRecalibrate:        forbid(ForbiddenAlreadyInState),
		EvEnded:              forbid(ForbiddenRequiresLive),
		EvSkip:               forbid(ForbiddenRequiresLive),
		EvProceed:            allowed(),
		EvResumed:            forbid(ForbiddenOutOfOrder),
	},
	ChallengeVerified: {
		EvTriggered:          forbid(ForbiddenBreakActive),
		EvCameraRequested:    forbid(ForbiddenOutOfOrder),
		EvPreviewReady:       forbid(ForbiddenOutOfOrder),
		EvChallengeVerified:  forbid(ForbiddenAlreadyInState),
		EvCalibrationStarted: allowed(),
		EvCalibrated:         forbid(ForbiddenOutOfOrder),
		EvCalibrationFailed:  forbid(ForbiddenOutOfOrder),
		EvRecalibrate:        forbid(ForbiddenRequiresLive),
		EvEnded:              forbid(ForbiddenRequiresLive),
		EvSkip:               forbid(ForbiddenRequiresLive),
		EvProceed:            allowed(),
		EvResumed:            forbid(ForbiddenOutOfOrder),
	},
	Calibrating: {
		EvTriggered:          forbid(ForbiddenBreakActive),
		EvCameraRequested:    forbid(ForbiddenOutOfOrder),
		EvPreviewReady:       forbid(ForbiddenOutOfOrder),
		EvChallengeVerified:  forbid(ForbiddenOutOfOrder),
		EvCalibrationStarted: forbid(ForbiddenAlreadyInState),
		EvCalibrated:         allowed(),
		EvCalibrationFailed:  allowed(),
		EvRecalibrate:        forbid(ForbiddenRequiresLive),
		EvEnded:              forbid(ForbiddenRequiresLive),
		EvSkip:               forbid(ForbiddenRequiresLive),
		EvProceed:            allowed(),
		EvResumed:            forbid(ForbiddenOutOfOrder),
	},
	Monitoring: {
		EvTriggered:          forbid(ForbiddenBreakActive),
		EvCameraRequested:    forbid(ForbiddenOutOfOrder),
		EvPreviewReady:       forbid(ForbiddenOutOfOrder),
		EvChallengeVerified:  forbid(ForbiddenOutOfOrder),
		EvCalibrationStarted: forbid(ForbiddenOutOfOrder),
		EvCalibrated:         forbid(ForbiddenAlreadyInState),
		EvCalibrationFailed:  forbid(ForbiddenOutOfOrder),
		EvRecalibrate:        allowed(),
		EvEnded:              allowed(),
		EvSkip:               allowed(),
		EvProceed:            forbid(ForbiddenUseSkip),
		EvResumed:            forbid(ForbiddenOutOfOrder),
	},
	Resuming: {
		EvTriggered:          forbid(ForbiddenResuming),
		EvCameraRequested:    forbid(ForbiddenResuming),
		EvPreviewReady:       forbid(ForbiddenResuming),
		EvChallengeVerified:  forbid(ForbiddenResuming),
		EvCalibrationStarted: forbid(ForbiddenResuming),
		EvCalibrated:         forbid(ForbiddenResuming),
		EvCalibrationFailed:  forbid(ForbiddenResuming),
		EvRecalibrate:        forbid(ForbiddenResuming),
		EvEnded:              forbid(ForbiddenResuming),
		EvSkip:               forbid(ForbiddenResuming),
		EvProceed:            forbid(ForbiddenResuming),
		EvResumed:            allowed(),
	},
}

// TransitionFor returns the allowed transition for state+event.
func TransitionFor(from State, ev EventKind) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}

// DecisionFor returns the explicit decision for state x event.
func DecisionFor(from State, ev EventKind) (Decision, bool) {
	m, ok := decisionTable[from]
	if !ok {
		return Decision{}, false
	}
	d, ok := m[ev]
	return d, ok
}
