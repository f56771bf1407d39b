package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	PassesMinted         *prometheus.CounterVec
	MintFailures         *prometheus.CounterVec
	MintDuration         prometheus.Histogram
	EditionConflicts     *prometheus.CounterVec
	Compensations        *prometheus.CounterVec
	CompensationFailures *prometheus.CounterVec
	Verifications        *prometheus.CounterVec
	AdminOperations      *prometheus.CounterVec
}

// New registers the pass metrics with reg. Passing prometheus.DefaultRegisterer
// exposes them on the process /metrics endpoint; tests pass a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PassesMinted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "memberpass_passes_minted_total",
			Help: "Total number of member passes minted",
		}, []string{"tier"}),
		MintFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "memberpass_mint_failures_total",
			Help: "Mint attempts rejected or failed, by error code",
		}, []string{"code"}),
		MintDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "memberpass_mint_duration_seconds",
			Help:    "Duration of the mint transaction",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		EditionConflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "memberpass_edition_conflicts_total",
			Help: "Edition counter compare-and-swap conflicts that forced a retry",
		}, []string{"tier"}),
		Compensations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "memberpass_mint_compensations_total",
			Help: "Compensating actions run after a post-payment mint failure",
		}, []string{"step"}),
		CompensationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "memberpass_mint_compensation_failures_total",
			Help: "Compensating actions that failed and need manual reconciliation",
		}, []string{"step"}),
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "memberpass_verifications_total",
			Help: "Pass verifications by outcome",
		}, []string{"outcome"}),
		AdminOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "memberpass_admin_operations_total",
			Help: "Platform administration operations by name and outcome",
		}, []string{"operation", "outcome"}),
	}
}

func (m *Metrics) IncrementMinted(tier string) {
	m.PassesMinted.WithLabelValues(tier).Inc()
}

func (m *Metrics) IncrementMintFailure(code string) {
	m.MintFailures.WithLabelValues(code).Inc()
}

func (m *Metrics) ObserveMint(start time.Time) {
	m.MintDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementEditionConflict(tier string) {
	m.EditionConflicts.WithLabelValues(tier).Inc()
}

func (m *Metrics) IncrementCompensation(step string, ok bool) {
	m.Compensations.WithLabelValues(step).Inc()
	if !ok {
		m.CompensationFailures.WithLabelValues(step).Inc()
	}
}

func (m *Metrics) IncrementVerification(outcome string) {
	m.Verifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementAdmin(operation, outcome string) {
	m.AdminOperations.WithLabelValues(operation, outcome).Inc()
}
