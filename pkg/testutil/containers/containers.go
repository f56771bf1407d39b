//go:build integration

// Package containers starts the services integration tests run against. Each
// service starts at most once per test binary and is shared by every suite
// in it; the testcontainers reaper removes them when the binary exits.
package containers

import (
	"sync"
	"testing"
)

type Manager struct {
	postgres shared[*PostgresContainer]
	kafka    shared[*KafkaContainer]
	redis    shared[*RedisContainer]
}

type shared[T any] struct {
	mu      sync.Mutex
	value   T
	started bool
}

func (s *shared[T]) get(t *testing.T, start func(*testing.T) T) T {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		s.value = start(t)
		s.started = true
	}
	return s.value
}

var manager Manager

func GetManager() *Manager {
	return &manager
}

// GetPostgres returns a migrated Postgres instance.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	return m.postgres.get(t, NewPostgresContainer)
}

func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	t.Helper()
	return m.kafka.get(t, NewKafkaContainer)
}

func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	return m.redis.get(t, NewRedisContainer)
}
