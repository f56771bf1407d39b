package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"memberpass/internal/platform/kafka/producer"
	"memberpass/pkg/platform/circuit"
)

const DefaultTopic = "memberpass.audit"

// MessageProducer is satisfied by producer.Producer and producer.NoopProducer.
type MessageProducer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// KafkaStore publishes each event as JSON, keyed by principal so one
// principal's events stay ordered within a partition.
type KafkaStore struct {
	producer MessageProducer
	topic    string
	breaker  *circuit.Breaker
}

type KafkaOption func(*KafkaStore)

// WithBreaker makes produce failures non-fatal once the breaker opens. Events
// still reach the other sinks of a FanOut while Kafka is down.
func WithBreaker(b *circuit.Breaker) KafkaOption {
	return func(s *KafkaStore) {
		s.breaker = b
	}
}

func NewKafkaStore(p MessageProducer, topic string, opts ...KafkaOption) *KafkaStore {
	if topic == "" {
		topic = DefaultTopic
	}
	s := &KafkaStore{producer: p, topic: topic}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *KafkaStore) Append(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	headers := map[string]string{"action": event.Action}
	if event.RequestID != "" {
		headers["request_id"] = event.RequestID
	}
	err = s.producer.Produce(ctx, &producer.Message{
		Topic:   s.topic,
		Key:     []byte(event.Principal),
		Value:   value,
		Headers: headers,
	})
	if s.breaker != nil && s.breaker.Record(err) {
		return nil
	}
	return err
}
