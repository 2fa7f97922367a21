// Package metrics exposes the worker's Prometheus instrumentation: one
// counter per parser, per event type, and per timestamp-resolution
// quality, plus a handler to serve them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the counter vectors the ingest job runner updates as it
// processes blocks and events.
type Metrics struct {
	EventsByParser    *prometheus.CounterVec
	EventsByType      *prometheus.CounterVec
	BlocksByQuality   *prometheus.CounterVec
	UnknownSignatures prometheus.Counter
	JobsCompleted     prometheus.Counter
	JobsFailed        prometheus.Counter
}

// New registers and returns the runner's metrics on the default Prometheus
// registry (the one Handler serves). Calling it twice in one process
// panics on duplicate registration.
func New() *Metrics {
	return &Metrics{
		EventsByParser: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bugpanel",
			Subsystem: "ingest",
			Name:      "events_by_parser_total",
			Help:      "Events emitted, labeled by parser id.",
		}, []string{"parser_id"}),
		EventsByType: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bugpanel",
			Subsystem: "ingest",
			Name:      "events_by_type_total",
			Help:      "Events emitted, labeled by event type.",
		}, []string{"event_type"}),
		BlocksByQuality: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bugpanel",
			Subsystem: "ingest",
			Name:      "blocks_by_timestamp_quality_total",
			Help:      "Normalized blocks, labeled by occurred_at_quality.",
		}, []string{"quality"}),
		UnknownSignatures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "bugpanel",
			Subsystem: "ingest",
			Name:      "unknown_signature_lines_total",
			Help:      "Payload lines that matched no parser.",
		}),
		JobsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "bugpanel",
			Subsystem: "ingest",
			Name:      "jobs_completed_total",
			Help:      "Ingest jobs that completed successfully.",
		}),
		JobsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "bugpanel",
			Subsystem: "ingest",
			Name:      "jobs_failed_total",
			Help:      "Ingest jobs that ended in failure.",
		}),
	}
}

// Handler serves the default Prometheus registry, used for the
// /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
