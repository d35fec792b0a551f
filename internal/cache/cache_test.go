package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strategyforge/gateway/internal/config"
	"github.com/strategyforge/gateway/internal/observability"
)

func TestNew(t *testing.T) {
	t.Parallel()

	metrics := WithMetrics(NewMetrics("test", nil))

	t.Run("nil config", func(t *testing.T) {
		_, err := New(nil, nil)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("disabled", func(t *testing.T) {
		c, err := New(&config.CacheConfig{}, nil)
		require.NoError(t, err)

		_, err = c.Get(context.Background(), "k")
		assert.ErrorIs(t, err, ErrCacheDisabled)
		assert.ErrorIs(t, c.Set(context.Background(), "k", []byte("v"), 0), ErrCacheDisabled)
		assert.NoError(t, c.Close())
	})

	t.Run("memory", func(t *testing.T) {
		c, err := New(&config.CacheConfig{Enabled: true, TTL: config.Duration(time.Minute)},
			observability.NopLogger(), metrics)
		require.NoError(t, err)
		defer c.Close()

		_, ok := c.(*memoryCache)
		assert.True(t, ok)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := &config.CacheConfig{Enabled: true, Type: config.CacheTypeRedis}
		cfg.Redis.URL = "redis://" + mr.Addr()

		c, err := New(cfg, observability.NopLogger(), metrics)
		require.NoError(t, err)
		defer c.Close()

		_, ok := c.(*redisCache)
		assert.True(t, ok)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := New(&config.CacheConfig{Enabled: true, Type: "memcached"}, nil, metrics)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestTopStrategiesKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "top-strategies:limit=10", TopStrategiesKey(10))
	assert.NotEqual(t, TopStrategiesKey(5), TopStrategiesKey(50))
}
