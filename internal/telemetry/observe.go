// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Gate observability keys.
const (
	GatePlayKey   = "gazegate.gate.play"
	GateReasonKey = "gazegate.gate.reason"

	gateMeter      = "gazegate.gate"
	gateTransition = "gazegate_gate_transitions_total"
)

// EmitGateTransition records an applied play/pause transition on the meter
// and, when ctx carries a recording span, as a span event.
func EmitGateTransition(ctx context.Context, sessionID, variant string, generation uint64, play bool, reason string) {
	// Looked up per call so a provider installed after startup is honoured.
	meter := otel.GetMeterProvider().Meter(gateMeter)
	counter, err := meter.Int64Counter(gateTransition,
		metric.WithDescription("Applied playback gate transitions"))
	if err == nil {
		counter.Add(ctx, 1, metric.WithAttributes(
			attribute.String(VariantKey, variant),
			attribute.Bool(GatePlayKey, play),
			attribute.String(GateReasonKey, reason),
		))
	}

	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	attrs := append(SessionAttributes(sessionID, variant, generation),
		attribute.Bool(GatePlayKey, play),
		attribute.String(GateReasonKey, reason),
	)
	span.AddEvent("gate.transition", trace.WithAttributes(attrs...))
}
