// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID     = "session_id"
	FieldCameraID      = "camera_session_id"
	FieldRequestID     = "request_id"
	FieldCorrelationID = "correlation_id"
	FieldChallengeID   = "challenge_id"
	FieldBreakID       = "break_id"
	FieldGeneration    = "generation"
	FieldVariant       = "variant"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Attention fields
	FieldLooking    = "looking"
	FieldFocused    = "focused"
	FieldShouldPlay = "should_play"
	FieldDiffSum    = "diff_sum"
	FieldCountdown  = "countdown"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Trace fields
	FieldTraceID = "trace_id"
	FieldSpanID  = "span_id"
)
