package storage

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyBuilders(t *testing.T) {
	assert.Equal(t, "qb:cart:sess-1", CartKey("sess-1"))
	assert.Equal(t, "qb:location:sess-1", LocationKey(" sess-1 "))
	assert.Equal(t, "qb:geocode:22.7196:75.8577", GeocodeKey(22.71962, 75.85771))
	assert.Equal(t, "qb:session:abc", SessionKey("abc"))
	assert.Equal(t, "qb:rate_limit:geocode", RateLimitKey("geocode"))
	assert.Equal(t, "qb", Key())
	assert.Equal(t, "qb:a:b", Key("a", "", "b"))
}

func TestMemoryReadWriteRemove(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()

	_, found, err := kv.Read(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, kv.Write(ctx, "k", "v", 0))
	got, found, err := kv.Read(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", got)

	require.NoError(t, kv.Remove(ctx, "k"))
	_, found, _ = kv.Read(ctx, "k")
	assert.False(t, found)
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	kv := NewMemory()
	kv.now = func() time.Time { return now }

	require.NoError(t, kv.Write(ctx, "k", "v", time.Minute))
	_, found, _ := kv.Read(ctx, "k")
	assert.True(t, found)

	now = now.Add(time.Minute)
	_, found, _ = kv.Read(ctx, "k")
	assert.False(t, found)
	assert.Equal(t, 0, kv.Len())
}

func TestMemoryFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	kv := NewMemory()
	kv.now = func() time.Time { return now }

	for i := int64(1); i <= 2; i++ {
		allowed, count, err := kv.FixedWindowAllow(ctx, "geocode:10.0.0.1", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, i, count)
	}
	allowed, count, err := kv.FixedWindowAllow(ctx, "geocode:10.0.0.1", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, int64(3), count)

	allowed, _, _ = kv.FixedWindowAllow(ctx, "geocode:10.0.0.2", 2, time.Minute)
	assert.True(t, allowed)

	now = now.Add(time.Minute)
	allowed, count, _ = kv.FixedWindowAllow(ctx, "geocode:10.0.0.1", 2, time.Minute)
	assert.True(t, allowed)
	assert.Equal(t, int64(1), count)
}

func TestMemorySweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	kv := NewMemory()
	kv.now = func() time.Time { return now }

	for i := 0; i < 100; i++ {
		require.NoError(t, kv.Write(ctx, GeocodeKey(float64(i), 75.8577), "{}", time.Minute))
		_, _, err := kv.FixedWindowAllow(ctx, "geocode:ip:10.0.0."+strconv.Itoa(i), 60, time.Minute)
		require.NoError(t, err)
	}
	require.NoError(t, kv.Write(ctx, SessionKey("sess-1"), "guest", 0))
	require.NoError(t, kv.Write(ctx, CartKey("sess-1"), "[]", 48*time.Hour))

	assert.Equal(t, 0, kv.Sweep(ctx))
	now = now.Add(24 * time.Hour)
	assert.Equal(t, 200, kv.Sweep(ctx))
	assert.Equal(t, 2, kv.Len())

	_, found, err := kv.Read(ctx, CartKey("sess-1"))
	require.NoError(t, err)
	assert.True(t, found)
}
