package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the proxy's prometheus collectors. Constructed once in main
// against a registry, passed down like any other dependency.
type Metrics struct {
	TurnsStarted   *prometheus.CounterVec
	TurnsFinalized *prometheus.CounterVec
	UpstreamErrors *prometheus.CounterVec
	TurnLatency    *prometheus.HistogramVec
	FinalizeErrors prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TurnsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_turns_started_total",
			Help: "Chat turns dispatched upstream, by model.",
		}, []string{"model"}),
		TurnsFinalized: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_turns_finalized_total",
			Help: "Chat turns whose answer was persisted, by model and outcome.",
		}, []string{"model", "outcome"}),
		UpstreamErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_upstream_errors_total",
			Help: "Non-2xx upstream replies, by model and status code.",
		}, []string{"model", "status"}),
		TurnLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chat_turn_duration_seconds",
			Help:    "Wall time from dispatch to end of stream.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"model"}),
		FinalizeErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "chat_finalize_errors_total",
			Help: "Post-stream store failures (logged, never surfaced).",
		}),
	}
}
