package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheSetGet(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	type payload struct {
		Symbol string
		Rate   string
	}

	require.NoError(t, c.Set(ctx, "k", payload{Symbol: "BTCUSDT", Rate: "0.0001"}, time.Minute))

	var got payload
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, "BTCUSDT", got.Symbol)

	var missing payload
	assert.ErrorIs(t, c.Get(ctx, "absent", &missing), ErrCacheMiss)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	var got string
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestMemoryCacheRateLimit(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := c.CheckRateLimit(ctx, "binance:history", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := c.CheckRateLimit(ctx, "binance:history", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// a different key has its own window
	ok, err = c.CheckRateLimit(ctx, "bybit:history", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
