package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	// WebhookEvents counts inbound platform events by type and outcome.
	WebhookEvents *prometheus.CounterVec

	// Evaluations counts evaluation attempts by trigger mode and outcome.
	Evaluations *prometheus.CounterVec

	// WebhookDuration observes end-to-end webhook handling time.
	WebhookDuration *prometheus.HistogramVec
}

// New registers the service collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		WebhookEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Inbound webhook events by event type and result.",
		}, []string{"type", "result"}),

		Evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "evaluations_total",
			Help: "Evaluation attempts by trigger mode and result.",
		}, []string{"mode", "result"}),

		WebhookDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "webhook_request_duration_seconds",
			Help:    "Webhook handling duration by event type.",
			Buckets: prometheus.DefBuckets,
		}, []string{"type"}),
	}
}

// NewDefault registers on the default Prometheus registry.
func NewDefault() *Metrics {
	return New(prometheus.DefaultRegisterer)
}
