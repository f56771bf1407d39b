// Package outbox persists audit events next to the pass data and relays them
// to Kafka from a background worker, so a broker outage never loses events
// that were accepted.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"memberpass/internal/audit"
)

// Entry is one pending or relayed audit event.
type Entry struct {
	ID          uuid.UUID
	Principal   string
	Action      string
	Payload     []byte // JSON-encoded audit.Event
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

func (e *Entry) IsPending() bool {
	return e.ProcessedAt == nil
}

// Store must be safe for concurrent use. FetchUnprocessed returns the oldest
// entries first.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	FetchUnprocessed(ctx context.Context, limit int) ([]*Entry, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error
	CountPending(ctx context.Context) (int64, error)
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}

// Sink adapts a Store to audit.Store.
type Sink struct {
	store Store
}

func NewSink(store Store) *Sink {
	return &Sink{store: store}
}

func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	entryID, err := uuid.Parse(event.ID)
	if err != nil {
		entryID = uuid.New()
	}
	createdAt := event.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return s.store.Append(ctx, &Entry{
		ID:        entryID,
		Principal: event.Principal,
		Action:    event.Action,
		Payload:   payload,
		CreatedAt: createdAt,
	})
}
