// Package memory is the in-process KeyedStore used for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"memberpass/internal/platform/kvstore"
	"memberpass/internal/sentinel"
	psync "memberpass/pkg/platform/sync"
)

// InMemory keeps entries in a sync.Map; per-key check-and-write sequences run
// under a sharded mutex.
type InMemory struct {
	entries sync.Map // key -> kvstore.Entry
	locks   *psync.ShardedMutex
	now     func() time.Time
}

func New() *InMemory {
	return &InMemory{
		locks: psync.NewShardedMutex(),
		now:   time.Now,
	}
}

func (s *InMemory) Get(_ context.Context, key string) (*kvstore.Entry, error) {
	v, ok := s.entries.Load(key)
	if !ok {
		return nil, fmt.Errorf("get %s: %w", key, sentinel.ErrNotFound)
	}
	return copyEntry(v.(kvstore.Entry)), nil
}

func (s *InMemory) CreateIfAbsent(_ context.Context, key string, value []byte) (*kvstore.Entry, error) {
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	if _, exists := s.entries.Load(key); exists {
		return nil, fmt.Errorf("create %s: %w", key, sentinel.ErrAlreadyUsed)
	}
	entry := kvstore.Entry{
		Key:       key,
		Value:     append([]byte(nil), value...),
		Version:   kvstore.InitialVersion,
		UpdatedAt: s.now(),
	}
	s.entries.Store(key, entry)
	return copyEntry(entry), nil
}

func (s *InMemory) CompareAndSwap(_ context.Context, key string, expectedVersion uint64, value []byte) (*kvstore.Entry, error) {
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	v, ok := s.entries.Load(key)
	if !ok {
		return nil, fmt.Errorf("swap %s: %w", key, sentinel.ErrNotFound)
	}
	current := v.(kvstore.Entry)
	if current.Version != expectedVersion {
		return nil, fmt.Errorf("swap %s at version %d (have %d): %w", key, expectedVersion, current.Version, sentinel.ErrConflict)
	}
	next := kvstore.Entry{
		Key:       key,
		Value:     append([]byte(nil), value...),
		Version:   current.Version + 1,
		UpdatedAt: s.now(),
	}
	s.entries.Store(key, next)
	return copyEntry(next), nil
}

// Len returns the number of stored keys.
func (s *InMemory) Len() int {
	n := 0
	s.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func copyEntry(e kvstore.Entry) *kvstore.Entry {
	e.Value = append([]byte(nil), e.Value...)
	return &e
}
