package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	PendingDepth    prometheus.Gauge
	PublishedTotal  prometheus.Counter
	PublishFailures prometheus.Counter
	PublishDuration prometheus.Histogram
	BatchSize       prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PendingDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "memberpass_audit_outbox_pending",
			Help: "Audit outbox entries not yet relayed to Kafka",
		}),
		PublishedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "memberpass_audit_outbox_published_total",
			Help: "Audit outbox entries relayed to Kafka",
		}),
		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "memberpass_audit_outbox_publish_failures_total",
			Help: "Failed outbox fetches and publishes",
		}),
		PublishDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "memberpass_audit_outbox_publish_duration_seconds",
			Help:    "Time to publish one outbox entry",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		BatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "memberpass_audit_outbox_batch_size",
			Help:    "Entries fetched per non-empty poll",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
	}
}
