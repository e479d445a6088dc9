// Package notifications delivers application events to best-effort sinks.
// Delivery carries no guarantee: failures are logged and counted, never
// surfaced to the code that published the event.
package notifications

import (
	"context"
	"time"

	"github.com/rolewarden/rolewarden/internal/pkg/ctxlog"
)

// Event types published by the application.
const (
	EventUserRoleChanged = "user_role_changed"
	EventUserRegistered  = "user_registered"
)

// Event is the envelope delivered to sinks.
type Event struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// Sink delivers a single event somewhere.
type Sink interface {
	Name() string
	Send(ctx context.Context, event Event) error
}

// LogSink writes events to the structured log. It is the baseline sink and
// never fails.
type LogSink struct{}

// NewLogSink creates a log sink.
func NewLogSink() *LogSink {
	return &LogSink{}
}

// Name implements Sink.
func (s *LogSink) Name() string { return "log" }

// Send implements Sink.
func (s *LogSink) Send(ctx context.Context, event Event) error {
	ctxlog.FromContext(ctx).Info("event published",
		"type", event.Type,
		"occurred_at", event.OccurredAt,
		"data", event.Data,
	)
	return nil
}
