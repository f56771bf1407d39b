package outbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"memberpass/internal/audit"
	"memberpass/internal/platform/kafka/producer"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = 500 * time.Millisecond
	defaultRetention    = 24 * time.Hour
	drainTimeout        = 10 * time.Second
)

// Relay polls the store and publishes pending entries to Kafka. An entry is
// marked processed only after the broker acknowledged it, so delivery is at
// least once.
type Relay struct {
	store        Store
	producer     audit.MessageProducer
	topic        string
	batchSize    int
	pollInterval time.Duration
	retention    time.Duration
	metrics      *Metrics
	logger       *slog.Logger
	now          func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Relay)

func WithTopic(topic string) Option {
	return func(r *Relay) {
		if topic != "" {
			r.topic = topic
		}
	}
}

func WithBatchSize(size int) Option {
	return func(r *Relay) {
		if size > 0 {
			r.batchSize = size
		}
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(r *Relay) {
		if interval > 0 {
			r.pollInterval = interval
		}
	}
}

// WithRetention sets how long relayed entries are kept before cleanup.
func WithRetention(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.retention = d
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func NewRelay(store Store, prod audit.MessageProducer, opts ...Option) *Relay {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Relay{
		store:        store,
		producer:     prod,
		topic:        audit.DefaultTopic,
		batchSize:    defaultBatchSize,
		pollInterval: defaultPollInterval,
		retention:    defaultRetention,
		logger:       slog.New(slog.DiscardHandler),
		now:          time.Now,
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Relay) Start() {
	r.wg.Add(1)
	go r.run()
}

func (r *Relay) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	cleanup := time.NewTicker(r.retention / 4)
	defer cleanup.Stop()

	for {
		select {
		case <-r.ctx.Done():
			r.drain()
			return
		case <-ticker.C:
			r.Poll(r.ctx)
			r.updatePending(r.ctx)
		case <-cleanup.C:
			r.cleanup(r.ctx)
		}
	}
}

// Poll relays one batch and returns how many entries were published.
func (r *Relay) Poll(ctx context.Context) int {
	entries, err := r.store.FetchUnprocessed(ctx, r.batchSize)
	if err != nil {
		r.logger.Error("failed to fetch outbox entries", "error", err)
		r.incFailures()
		return 0
	}
	if len(entries) == 0 {
		return 0
	}
	if r.metrics != nil {
		r.metrics.BatchSize.Observe(float64(len(entries)))
	}

	published := 0
	for _, entry := range entries {
		if err := r.publish(ctx, entry); err != nil {
			r.logger.Error("failed to publish outbox entry",
				"id", entry.ID,
				"action", entry.Action,
				"error", err,
			)
			r.incFailures()
			// retried on the next poll
			continue
		}
		if err := r.store.MarkProcessed(ctx, entry.ID, r.now()); err != nil {
			// republished on the next poll; consumers dedupe on the event ID
			r.logger.Error("failed to mark outbox entry processed", "id", entry.ID, "error", err)
			continue
		}
		published++
		if r.metrics != nil {
			r.metrics.PublishedTotal.Inc()
		}
	}
	return published
}

func (r *Relay) publish(ctx context.Context, entry *Entry) error {
	start := time.Now()
	err := r.producer.Produce(ctx, &producer.Message{
		Topic: r.topic,
		Key:   []byte(entry.Principal),
		Value: entry.Payload,
		Headers: map[string]string{
			"action":   entry.Action,
			"event_id": entry.ID.String(),
		},
	})
	if err == nil && r.metrics != nil {
		r.metrics.PublishDuration.Observe(time.Since(start).Seconds())
	}
	return err
}

func (r *Relay) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for ctx.Err() == nil {
		if r.Poll(ctx) == 0 {
			return
		}
	}
	r.logger.Warn("outbox drain timed out with entries pending")
}

func (r *Relay) updatePending(ctx context.Context) {
	if r.metrics == nil {
		return
	}
	count, err := r.store.CountPending(ctx)
	if err != nil {
		r.logger.Warn("failed to count pending outbox entries", "error", err)
		return
	}
	r.metrics.PendingDepth.Set(float64(count))
}

func (r *Relay) cleanup(ctx context.Context) {
	n, err := r.store.DeleteProcessedBefore(ctx, r.now().Add(-r.retention))
	if err != nil {
		r.logger.Warn("failed to delete relayed outbox entries", "error", err)
		return
	}
	if n > 0 {
		r.logger.Debug("deleted relayed outbox entries", "count", n)
	}
}

func (r *Relay) incFailures() {
	if r.metrics != nil {
		r.metrics.PublishFailures.Inc()
	}
}

// Stop cancels polling, drains what is pending and waits for the loop to exit.
func (r *Relay) Stop(ctx context.Context) error {
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
