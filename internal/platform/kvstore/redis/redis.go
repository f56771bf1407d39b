// Package redis stores kvstore entries as Redis hashes. Writes run as Lua
// scripts so each check-and-write is atomic on the server.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"memberpass/internal/platform/kvstore"
	"memberpass/internal/sentinel"
)

const defaultPrefix = "memberpass:kv:"

// Script results.
const (
	resultOK       = 1
	resultExists   = 0
	resultMissing  = -1
	resultConflict = -2
)

// KEYS[1]=key ARGV[1]=value ARGV[2]=updated_at
var createScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("HSET", KEYS[1], "value", ARGV[1], "version", 1, "updated_at", ARGV[2])
return 1
`)

// KEYS[1]=key ARGV[1]=expected version ARGV[2]=value ARGV[3]=updated_at
var swapScript = redis.NewScript(`
local current = redis.call("HGET", KEYS[1], "version")
if not current then
	return -1
end
if current ~= ARGV[1] then
	return -2
end
redis.call("HSET", KEYS[1], "value", ARGV[2], "version", tonumber(current) + 1, "updated_at", ARGV[3])
return 1
`)

// RedisStore implements kvstore.Store on a go-redis client.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

type Option func(*RedisStore)

// WithPrefix namespaces keys, e.g. per deployment.
func WithPrefix(prefix string) Option {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

func New(client redis.UniversalClient, opts ...Option) *RedisStore {
	s := &RedisStore{client: client, prefix: defaultPrefix, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) Get(ctx context.Context, key string) (*kvstore.Entry, error) {
	fields, err := s.client.HGetAll(ctx, s.prefix+key).Result()
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("get %s: %w", key, sentinel.ErrNotFound)
	}
	return decodeEntry(key, fields)
}

func (s *RedisStore) CreateIfAbsent(ctx context.Context, key string, value []byte) (*kvstore.Entry, error) {
	now := s.now().UTC()
	res, err := createScript.Run(ctx, s.client, []string{s.prefix + key}, value, now.UnixNano()).Int()
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", key, err)
	}
	if res == resultExists {
		return nil, fmt.Errorf("create %s: %w", key, sentinel.ErrAlreadyUsed)
	}
	return &kvstore.Entry{
		Key:       key,
		Value:     append([]byte(nil), value...),
		Version:   kvstore.InitialVersion,
		UpdatedAt: now,
	}, nil
}

func (s *RedisStore) CompareAndSwap(ctx context.Context, key string, expectedVersion uint64, value []byte) (*kvstore.Entry, error) {
	now := s.now().UTC()
	res, err := swapScript.Run(ctx, s.client, []string{s.prefix + key},
		strconv.FormatUint(expectedVersion, 10), value, now.UnixNano()).Int()
	if err != nil {
		return nil, fmt.Errorf("swap %s: %w", key, err)
	}
	switch res {
	case resultOK:
		return &kvstore.Entry{
			Key:       key,
			Value:     append([]byte(nil), value...),
			Version:   expectedVersion + 1,
			UpdatedAt: now,
		}, nil
	case resultMissing:
		return nil, fmt.Errorf("swap %s: %w", key, sentinel.ErrNotFound)
	case resultConflict:
		return nil, fmt.Errorf("swap %s at version %d: %w", key, expectedVersion, sentinel.ErrConflict)
	default:
		return nil, fmt.Errorf("swap %s: unexpected script result %d", key, res)
	}
}

func decodeEntry(key string, fields map[string]string) (*kvstore.Entry, error) {
	version, err := strconv.ParseUint(fields["version"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode %s version: %w", key, errors.Join(err, sentinel.ErrInvalidInput))
	}
	nanos, err := strconv.ParseInt(fields["updated_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode %s updated_at: %w", key, errors.Join(err, sentinel.ErrInvalidInput))
	}
	return &kvstore.Entry{
		Key:       key,
		Value:     []byte(fields["value"]),
		Version:   version,
		UpdatedAt: time.Unix(0, nanos).UTC(),
	}, nil
}
