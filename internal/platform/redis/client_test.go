package redis

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberpass/internal/platform/config"
)

func TestNewWithoutURLIsDisabled(t *testing.T) {
	client, err := New(context.Background(), config.RedisConfig{}, nil)
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(context.Background(), config.RedisConfig{URL: "http://not-redis"}, nil)
	assert.ErrorContains(t, err, "parse redis URL")
}

func TestPoolMetricsRecordDeltas(t *testing.T) {
	m := NewPoolMetrics(prometheus.NewRegistry())

	last := m.record(&redis.PoolStats{Hits: 5, Misses: 2, TotalConns: 4, IdleConns: 3}, nil)
	last = m.record(&redis.PoolStats{Hits: 8, Misses: 2, Timeouts: 1, TotalConns: 6, IdleConns: 1}, last)

	assert.Equal(t, 8.0, promtestutil.ToFloat64(m.hits))
	assert.Equal(t, 2.0, promtestutil.ToFloat64(m.misses))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.timeouts))
	assert.Equal(t, 6.0, promtestutil.ToFloat64(m.totalConns))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.idleConns))
	assert.Equal(t, uint32(8), last.Hits)
}
