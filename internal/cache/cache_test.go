package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestMemoryCache(t *testing.T, maxKeys int) (*memoryCache, *time.Time) {
	t.Helper()
	c := NewMemoryCache(&Config{MaxKeys: maxKeys}, zap.NewNop()).(*memoryCache)
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	t.Cleanup(func() { c.Close() })
	return c, &now
}

func TestMemoryCache_SetGetExpiry(t *testing.T) {
	c, now := newTestMemoryCache(t, 0)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", "v", time.Minute))
	require.NoError(t, c.Set(ctx, "forever", "v", 0))

	got, ok, err := c.Get(ctx, "short")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", got)

	*now = now.Add(2 * time.Minute)

	_, ok, _ = c.Get(ctx, "short")
	assert.False(t, ok, "expired key")

	_, ok, _ = c.Get(ctx, "forever")
	assert.True(t, ok, "key without ttl never expires")
}

func TestMemoryCache_Increment(t *testing.T) {
	c, now := newTestMemoryCache(t, 0)
	ctx := context.Background()

	n, err := c.Increment(ctx, "attempts", 1, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = c.Increment(ctx, "attempts", 2, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	*now = now.Add(90 * time.Second)
	n, err = c.Increment(ctx, "attempts", 1, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "window restarts after the first ttl")

	require.NoError(t, c.Set(ctx, "name", "taro", 0))
	_, err = c.Increment(ctx, "name", 1, 0)
	assert.ErrorIs(t, err, ErrNotNumeric)
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, now := newTestMemoryCache(t, 2)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", "1", 0))
	*now = now.Add(time.Second)
	require.NoError(t, c.Set(ctx, "b", "2", 0))
	*now = now.Add(time.Second)
	_, _, _ = c.Get(ctx, "a")
	*now = now.Add(time.Second)
	require.NoError(t, c.Set(ctx, "c", "3", 0))

	_, ok, _ := c.Get(ctx, "b")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "a")
	assert.True(t, ok)
}

func TestMemoryCache_HealthAfterClose(t *testing.T) {
	c, _ := newTestMemoryCache(t, 0)
	assert.NoError(t, c.Health(context.Background()))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Error(t, c.Health(context.Background()))
}

func TestNewCache_UnknownProvider(t *testing.T) {
	_, err := NewCache(&Config{Provider: "memcached"}, nil)
	assert.Error(t, err)
}
