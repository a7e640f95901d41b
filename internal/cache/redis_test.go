// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := newRedisCache(client, "", zerolog.Nop())
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestRedisCache_SetGet(t *testing.T) {
	mr, c := setupMiniRedis(t)
	ctx := context.Background()

	c.Set(ctx, "progress/u1/1", []byte(`{"modules":[]}`), 5*time.Minute)

	got, ok := c.Get(ctx, "progress/u1/1")
	require.True(t, ok)
	assert.JSONEq(t, `{"modules":[]}`, string(got))
	assert.True(t, mr.Exists("courseflow:progress/u1/1"))

	s := c.Stats()
	assert.Equal(t, int64(1), s.Sets)
	assert.Equal(t, int64(1), s.Hits)
	assert.Equal(t, 1, s.CurrentSize)
}

func TestRedisCache_MissAndExpiry(t *testing.T) {
	mr, c := setupMiniRedis(t)
	ctx := context.Background()

	_, ok := c.Get(ctx, "nope")
	assert.False(t, ok)

	c.Set(ctx, "k", []byte("v"), time.Second)
	mr.FastForward(2 * time.Second)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, int64(2), c.Stats().Misses)
}

func TestRedisCache_Delete(t *testing.T) {
	_, c := setupMiniRedis(t)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	c.Delete(ctx, "k")
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedisCache_ServerDownIsMiss(t *testing.T) {
	mr, c := setupMiniRedis(t)
	ctx := context.Background()
	c.Set(ctx, "k", []byte("v"), time.Minute)

	mr.Close()
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Error(t, c.HealthCheck(ctx))
}

func TestRedisCache_PrefixIsolation(t *testing.T) {
	mr, c := setupMiniRedis(t)
	ctx := context.Background()
	require.NoError(t, mr.Set("other:key", "x"))

	c.Set(ctx, "k", []byte("v"), time.Minute)
	assert.Equal(t, 1, c.Stats().CurrentSize)
}

func TestNewRedisCacheConnects(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(RedisConfig{Addr: mr.Addr(), KeyPrefix: "test:"}, zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	c.Set(context.Background(), "a", []byte("1"), time.Minute)
	assert.True(t, mr.Exists("test:a"))
}
