// Package kvstore defines the versioned keyed-record store the pass service
// persists its configuration, edition counters and credentials in.
//
// Every backend offers the same three primitives: Get, CreateIfAbsent and
// CompareAndSwap. Versions start at 1 on creation and increase by exactly one
// on every successful swap.
package kvstore

import (
	"context"
	"time"
)

// Entry is a stored value together with the version it was read at.
type Entry struct {
	Key       string
	Value     []byte
	Version   uint64
	UpdatedAt time.Time
}

// Store is the KeyedStore contract.
//
// Errors are internal/sentinel values, possibly wrapped:
//   - Get: ErrNotFound when the key is absent.
//   - CreateIfAbsent: ErrAlreadyUsed when the key exists.
//   - CompareAndSwap: ErrNotFound when the key is absent, ErrConflict when
//     the stored version differs from expectedVersion.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	CreateIfAbsent(ctx context.Context, key string, value []byte) (*Entry, error)
	CompareAndSwap(ctx context.Context, key string, expectedVersion uint64, value []byte) (*Entry, error)
}

// InitialVersion is the version of a freshly created entry.
const InitialVersion uint64 = 1
