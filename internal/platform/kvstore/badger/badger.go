// Package badger is an embedded, on-disk kvstore backend. Badger's optimistic
// transactions detect concurrent writers to the same key at commit time.
package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"memberpass/internal/platform/kvstore"
	"memberpass/internal/sentinel"
)

// headerSize is the stored prefix ahead of the value: version then updated_at
// in unix nanoseconds, both big-endian uint64.
const headerSize = 16

// commitAttempts bounds internal retries when badger reports a transaction
// conflict. A retried attempt re-reads the key, so a real version mismatch
// still surfaces as ErrConflict.
const commitAttempts = 8

type Store struct {
	db     *badger.DB
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*config)

type config struct {
	dir    string
	logger *slog.Logger
}

// WithDir persists to dir. Without it the store runs fully in memory.
func WithDir(dir string) Option {
	return func(c *config) {
		c.dir = dir
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

func Open(opts ...Option) (*Store, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	badgerOpts := badger.DefaultOptions(cfg.dir).
		WithLogger(newLogger(cfg.logger)).
		WithLoggingLevel(badger.WARNING)
	if cfg.dir == "" {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db, logger: cfg.logger, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Health reports whether the database is still open.
func (s *Store) Health(context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger database closed")
	}
	return nil
}

func (s *Store) Get(_ context.Context, key string) (*kvstore.Entry, error) {
	var entry *kvstore.Entry
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		entry, err = readEntry(txn, key)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return entry, nil
}

func (s *Store) CreateIfAbsent(_ context.Context, key string, value []byte) (*kvstore.Entry, error) {
	var created *kvstore.Entry
	err := s.update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		switch {
		case err == nil:
			return sentinel.ErrAlreadyUsed
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		created = &kvstore.Entry{
			Key:       key,
			Value:     append([]byte(nil), value...),
			Version:   kvstore.InitialVersion,
			UpdatedAt: s.now().UTC(),
		}
		return txn.Set([]byte(key), encode(created))
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", key, err)
	}
	return created, nil
}

func (s *Store) CompareAndSwap(_ context.Context, key string, expectedVersion uint64, value []byte) (*kvstore.Entry, error) {
	var swapped *kvstore.Entry
	err := s.update(func(txn *badger.Txn) error {
		current, err := readEntry(txn, key)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return sentinel.ErrConflict
		}
		swapped = &kvstore.Entry{
			Key:       key,
			Value:     append([]byte(nil), value...),
			Version:   current.Version + 1,
			UpdatedAt: s.now().UTC(),
		}
		return txn.Set([]byte(key), encode(swapped))
	})
	if err != nil {
		return nil, fmt.Errorf("swap %s at version %d: %w", key, expectedVersion, err)
	}
	return swapped, nil
}

// update runs fn in a read-write transaction, retrying when the commit loses
// to a concurrent writer.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	var err error
	for range commitAttempts {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	s.logger.Warn("badger commit retries exhausted", "attempts", commitAttempts)
	return errors.Join(err, sentinel.ErrConflict)
}

func readEntry(txn *badger.Txn, key string) (*kvstore.Entry, error) {
	item, err := txn.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return decode(key, raw)
}

func encode(e *kvstore.Entry) []byte {
	buf := make([]byte, headerSize+len(e.Value))
	binary.BigEndian.PutUint64(buf[0:8], e.Version)
	binary.BigEndian.PutUint64(buf[8:16], uint64(e.UpdatedAt.UnixNano()))
	copy(buf[headerSize:], e.Value)
	return buf
}

func decode(key string, raw []byte) (*kvstore.Entry, error) {
	if len(raw) < headerSize {
		return nil, fmt.Errorf("corrupt entry %s: %w", key, sentinel.ErrInvalidInput)
	}
	return &kvstore.Entry{
		Key:       key,
		Version:   binary.BigEndian.Uint64(raw[0:8]),
		UpdatedAt: time.Unix(0, int64(binary.BigEndian.Uint64(raw[8:16]))).UTC(),
		Value:     raw[headerSize:],
	}, nil
}
