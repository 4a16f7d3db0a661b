// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by gazegate spans.
const (
	SessionIDKey  = "gazegate.session_id"
	VariantKey    = "gazegate.variant"
	GenerationKey = "gazegate.generation"
	BreakIDKey    = "gazegate.break_id"

	InferenceOpKey      = "inference.op"
	InferenceLookingKey = "inference.looking"
	FrameWidthKey       = "frame.width"
	FrameHeightKey      = "frame.height"
	FrameBytesKey       = "frame.bytes"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// SessionAttributes creates controller session span attributes.
func SessionAttributes(sessionID, variant string, generation uint64) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if sessionID != "" {
		attrs = append(attrs, attribute.String(SessionIDKey, sessionID))
	}
	if variant != "" {
		attrs = append(attrs, attribute.String(VariantKey, variant))
	}
	return append(attrs, attribute.Int64(GenerationKey, int64(generation)))
}

// FrameAttributes describes a still frame sent for inference.
func FrameAttributes(width, height, size int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(FrameWidthKey, width),
		attribute.Int(FrameHeightKey, height),
		attribute.Int(FrameBytesKey, size),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}

// RecordError marks span as failed. A nil err is ignored.
func RecordError(span trace.Span, err error, errorType string) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetAttributes(ErrorAttributes(errorType)...)
	span.SetStatus(codes.Error, err.Error())
}
