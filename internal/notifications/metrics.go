package notifications

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsDelivered counts events successfully delivered per sink.
	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rolewarden",
			Subsystem: "notifications",
			Name:      "events_delivered_total",
			Help:      "Number of events delivered to a sink",
		},
		[]string{"sink", "type"},
	)

	// EventsFailed counts events a sink failed to deliver.
	EventsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rolewarden",
			Subsystem: "notifications",
			Name:      "events_failed_total",
			Help:      "Number of events a sink failed to deliver",
		},
		[]string{"sink", "type"},
	)
)
