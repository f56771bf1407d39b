// Package circuit tracks consecutive failures of an optional downstream, such
// as the Kafka audit sink, so callers can degrade to a fallback instead of
// failing every request.
package circuit

import (
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type State int

const (
	StateClosed State = iota
	StateOpen
)

func (s State) String() string {
	if s == StateOpen {
		return "open"
	}
	return "closed"
}

// Metrics are shared by every breaker registered against the same registry.
type Metrics struct {
	State       *prometheus.GaugeVec
	Transitions *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		State: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "memberpass_circuit_open",
			Help: "1 while the named circuit breaker is open",
		}, []string{"breaker"}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "memberpass_circuit_transitions_total",
			Help: "Circuit breaker state transitions by target state",
		}, []string{"breaker", "state"}),
	}
}

// Breaker is a two-state breaker. It opens after failureThreshold
// consecutive failures and closes after successThreshold consecutive
// successes while open. Callers keep probing the primary path while open.
type Breaker struct {
	name             string
	failureThreshold int
	successThreshold int
	logger           *slog.Logger
	metrics          *Metrics

	mu           sync.Mutex
	state        State
	failureCount int
	successCount int
}

type Option func(*Breaker)

// WithFailureThreshold defaults to 5.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithSuccessThreshold defaults to 3.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

// WithLogger logs every transition.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Breaker) {
		b.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(b *Breaker) {
		b.metrics = m
	}
}

func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		state:            StateClosed,
		failureThreshold: 5,
		successThreshold: 3,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	if b.metrics != nil {
		b.metrics.State.WithLabelValues(name).Set(0)
	}
	return b
}

func (b *Breaker) Name() string {
	return b.name
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Record feeds the outcome of one call on the primary path and reports
// whether the caller should fall back. A failure falls back only once the
// breaker is open.
func (b *Breaker) Record(err error) (useFallback bool) {
	b.mu.Lock()
	var changed bool
	if err != nil {
		changed = b.fail()
	} else {
		changed = b.succeed()
	}
	state := b.state
	b.mu.Unlock()

	if changed {
		b.report(state, err)
	}
	return err != nil && state == StateOpen
}

func (b *Breaker) fail() bool {
	b.failureCount++
	b.successCount = 0
	if b.state == StateClosed && b.failureCount >= b.failureThreshold {
		b.state = StateOpen
		return true
	}
	return false
}

func (b *Breaker) succeed() bool {
	if b.state == StateClosed {
		b.failureCount = 0
		return false
	}
	b.successCount++
	if b.successCount < b.successThreshold {
		return false
	}
	b.state = StateClosed
	b.failureCount = 0
	b.successCount = 0
	return true
}

func (b *Breaker) report(state State, cause error) {
	if b.metrics != nil {
		open := 0.0
		if state == StateOpen {
			open = 1
		}
		b.metrics.State.WithLabelValues(b.name).Set(open)
		b.metrics.Transitions.WithLabelValues(b.name, state.String()).Inc()
	}
	if b.logger == nil {
		return
	}
	if state == StateOpen {
		b.logger.Warn("circuit opened, falling back",
			"breaker", b.name,
			"failures", b.failureThreshold,
			"error", cause,
		)
		return
	}
	b.logger.Info("circuit closed, primary path recovered", "breaker", b.name)
}
