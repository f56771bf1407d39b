// Package sync provides key-scoped locking for the in-memory stores.
package sync

import (
	"hash/fnv"
	"sync"
)

const shardCount = 32

// ShardedMutex guards per-key read-modify-write sequences. Keys hash onto a
// fixed set of shards so unrelated keys rarely contend.
type ShardedMutex struct {
	shards [shardCount]sync.Mutex
}

func NewShardedMutex() *ShardedMutex {
	return &ShardedMutex{}
}

// Lock acquires the shard owning key. Empty keys use shard 0.
func (m *ShardedMutex) Lock(key string) {
	m.shards[shardFor(key)].Lock()
}

func (m *ShardedMutex) Unlock(key string) {
	m.shards[shardFor(key)].Unlock()
}

// LockPair acquires the shards of two keys in index order, so concurrent
// transfers a→b and b→a cannot deadlock. Keys on the same shard lock once.
// The returned func releases both.
func (m *ShardedMutex) LockPair(a, b string) (unlock func()) {
	i, j := shardFor(a), shardFor(b)
	if i == j {
		m.shards[i].Lock()
		return m.shards[i].Unlock
	}
	if i > j {
		i, j = j, i
	}
	m.shards[i].Lock()
	m.shards[j].Lock()
	return func() {
		m.shards[j].Unlock()
		m.shards[i].Unlock()
	}
}

func shardFor(key string) int {
	if key == "" {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % shardCount)
}
