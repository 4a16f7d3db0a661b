// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package bus carries viewer notifications. Every user-visible failure is
// published with at least one action the viewer can take next.
package bus

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TopicNotifications is the topic family controllers publish viewer
// notifications on. Each session uses its own topic, see SessionTopic.
const TopicNotifications = "notifications"

// SessionTopic returns the notification topic of one session.
func SessionTopic(sessionID string) string { return TopicNotifications + "." + sessionID }

// Family strips the per-session suffix so metric labels stay bounded.
func Family(topic string) string {
	if i := strings.IndexByte(topic, '.'); i >= 0 {
		return topic[:i]
	}
	return topic
}

// Level is the notification severity.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Action is a next step offered to the viewer.
type Action string

const (
	ActionRetryCamera      Action = "retry_camera"
	ActionRetryCalibration Action = "retry_calibration"
	ActionRefreshChallenge Action = "refresh_challenge"
	ActionProceed          Action = "proceed"
)

// Notification is a toast-style message.
type Notification struct {
	ID      string    `json:"id"`
	Session string    `json:"sessionId,omitempty"`
	Level   Level     `json:"level"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Actions []Action  `json:"actions,omitempty"`
	At      time.Time `json:"at"`
}

// New builds a notification with a fresh id.
func New(level Level, title, message string, actions ...Action) Notification {
	return Notification{
		ID:      uuid.NewString(),
		Level:   level,
		Title:   title,
		Message: message,
		Actions: actions,
		At:      time.Now(),
	}
}

// Subscriber receives messages for one topic.
type Subscriber interface {
	// C returns a read-only message channel.
	C() <-chan Notification
	// Close unsubscribes.
	Close() error
}

// Bus is the notification transport.
type Bus interface {
	Publish(ctx context.Context, topic string, n Notification) error
	Subscribe(ctx context.Context, topic string) (Subscriber, error)
}

// Drain returns every message currently buffered on sub without blocking.
func Drain(sub Subscriber) []Notification {
	var out []Notification
	for {
		select {
		case n, ok := <-sub.C():
			if !ok {
				return out
			}
			out = append(out, n)
		default:
			return out
		}
	}
}
