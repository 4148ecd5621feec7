package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidConfig(t *testing.T) {
	_, err := NewMemory(0, time.Minute)
	assert.EqualError(t, err, "limit must be greater than 0")
	_, err = NewMemory(10, 0)
	assert.EqualError(t, err, "window must be greater than 0")
	_, err = NewRedis(nil, 10, time.Minute, "")
	assert.EqualError(t, err, "redis client is required")
	_, err = NewRedis(&redis.Client{}, -1, time.Minute, "")
	assert.EqualError(t, err, "limit must be greater than 0")
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(3, time.Minute)
	require.NoError(t, err)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	for i := 2; i >= 0; i-- {
		d, err := m.Allow(ctx, "user:alice")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, i, d.Remaining)
	}

	d, err := m.Allow(ctx, "user:alice")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, int64(60), d.RetryAfterSeconds(now))

	d, err = m.Allow(ctx, "user:bob")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "keys are limited independently")

	now = now.Add(20 * time.Second)
	d, err = m.Allow(ctx, "user:alice")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "one token refills every third of the window")
	assert.Equal(t, 0, d.Remaining)

	now = now.Add(3 * time.Minute)
	assert.Equal(t, 2, m.Sweep())
	assert.Empty(t, m.buckets)
}

func TestRedis(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	r, err := NewRedis(client, 2, time.Minute, "metabridge:ratelimit:")
	require.NoError(t, err)
	now := time.Now()
	r.now = func() time.Time { return now }

	d, err := r.Allow(ctx, "user:alice")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)

	now = now.Add(time.Millisecond)
	d, err = r.Allow(ctx, "user:alice")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	now = now.Add(time.Millisecond)
	d, err = r.Allow(ctx, "user:alice")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.True(t, mr.Exists("metabridge:ratelimit:user:alice"))

	now = now.Add(time.Minute + time.Second)
	d, err = r.Allow(ctx, "user:alice")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "entries older than the window are trimmed")

	require.NoError(t, r.Reset(ctx, "user:alice"))
	assert.False(t, mr.Exists("metabridge:ratelimit:user:alice"))

	mr.Close()
	_, err = r.Allow(ctx, "user:alice")
	assert.Error(t, err)
}
