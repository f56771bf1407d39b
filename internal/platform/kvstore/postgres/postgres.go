// Package postgres persists kvstore entries in the kv_entries table.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"memberpass/internal/platform/kvstore"
	"memberpass/internal/sentinel"
)

// PostgresStore implements kvstore.Store with single-statement atomic writes.
type PostgresStore struct {
	db *sql.DB
}

func New(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*kvstore.Entry, error) {
	query := `
		SELECT key, value, version, updated_at
		FROM kv_entries
		WHERE key = $1
	`
	entry, err := scanEntry(s.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get %s: %w", key, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return entry, nil
}

func (s *PostgresStore) CreateIfAbsent(ctx context.Context, key string, value []byte) (*kvstore.Entry, error) {
	query := `
		INSERT INTO kv_entries (key, value, version, updated_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING key, value, version, updated_at
	`
	entry, err := scanEntry(s.db.QueryRowContext(ctx, query, key, value, int64(kvstore.InitialVersion)))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create %s: %w", key, sentinel.ErrAlreadyUsed)
		}
		return nil, fmt.Errorf("create %s: %w", key, err)
	}
	return entry, nil
}

// CompareAndSwap guards the update with the expected version in the WHERE
// clause. When no row matches, a follow-up existence check tells a missing key
// from a stale version.
func (s *PostgresStore) CompareAndSwap(ctx context.Context, key string, expectedVersion uint64, value []byte) (*kvstore.Entry, error) {
	query := `
		UPDATE kv_entries
		SET value = $3, version = version + 1, updated_at = NOW()
		WHERE key = $1 AND version = $2
		RETURNING key, value, version, updated_at
	`
	entry, err := scanEntry(s.db.QueryRowContext(ctx, query, key, int64(expectedVersion), value))
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("swap %s: %w", key, err)
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM kv_entries WHERE key = $1)`, key).Scan(&exists); err != nil {
		return nil, fmt.Errorf("swap %s: %w", key, err)
	}
	if !exists {
		return nil, fmt.Errorf("swap %s: %w", key, sentinel.ErrNotFound)
	}
	return nil, fmt.Errorf("swap %s at version %d: %w", key, expectedVersion, sentinel.ErrConflict)
}

type entryRow interface {
	Scan(dest ...any) error
}

func scanEntry(row entryRow) (*kvstore.Entry, error) {
	var entry kvstore.Entry
	var version int64
	if err := row.Scan(&entry.Key, &entry.Value, &version, &entry.UpdatedAt); err != nil {
		return nil, err
	}
	entry.Version = uint64(version)
	return &entry, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
