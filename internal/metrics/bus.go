// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BusPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gazegate_bus_published_total",
		Help: "Notifications published on the in-memory bus by topic and level",
	}, []string{"topic", "level"})

	BusDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gazegate_bus_dropped_total",
		Help: "In-memory bus message drops by topic and reason",
	}, []string{"topic", "reason"})
)

// IncBusPublished records a published notification.
func IncBusPublished(topic, level string) {
	if topic == "" {
		topic = "unknown"
	}
	switch level {
	case "info", "warning", "error":
	default:
		level = "unknown"
	}
	BusPublishedTotal.WithLabelValues(topic, level).Inc()
}

// IncBusDrop records a message dropped on a full subscriber.
func IncBusDrop(topic string) {
	IncBusDropReason(topic, "full")
}

// IncBusDropReason records a dropped bus message with a concrete reason.
func IncBusDropReason(topic, reason string) {
	if topic == "" {
		topic = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	BusDroppedTotal.WithLabelValues(topic, reason).Inc()
}
