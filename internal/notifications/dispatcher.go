package notifications

import (
	"context"
	"time"

	"github.com/rolewarden/rolewarden/internal/pkg/ctxlog"
)

// Dispatcher fans events out to every configured sink. Publish never returns
// an error: a sink failure is logged and counted, and the remaining sinks are
// still attempted.
type Dispatcher struct {
	sinks []Sink
}

// NewDispatcher creates a dispatcher over the given sinks.
func NewDispatcher(sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks}
}

// Publish delivers an event to all sinks, best-effort.
func (d *Dispatcher) Publish(ctx context.Context, eventType string, payload any) {
	event := Event{
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}

	for _, sink := range d.sinks {
		if err := sink.Send(ctx, event); err != nil {
			ctxlog.FromContext(ctx).Warn("event delivery failed",
				"sink", sink.Name(),
				"type", eventType,
				"error", err,
			)
			EventsFailed.WithLabelValues(sink.Name(), eventType).Inc()
			continue
		}
		EventsDelivered.WithLabelValues(sink.Name(), eventType).Inc()
	}
}
