package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T, prefix string) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, prefix), mr
}

func TestRedisSetGetDelete(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t, "rental-service")

	_, err := c.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Set(ctx, "revoked:abc", "1", 0))
	assert.True(t, mr.Exists("rental-service:revoked:abc"))
	assert.Zero(t, mr.TTL("rental-service:revoked:abc"))

	got, err := c.Get(ctx, "revoked:abc")
	require.NoError(t, err)
	assert.Equal(t, "1", got)

	ok, err := c.Exists(ctx, "revoked:abc")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, "revoked:abc"))
	ok, err = c.Exists(ctx, "revoked:abc")
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = c.Get(ctx, "revoked:abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisTTLExpiry(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t, "svc:")

	require.NoError(t, c.Set(ctx, "rental-owner:r1", "u1", time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("svc:rental-owner:r1"))

	mr.FastForward(59 * time.Second)
	got, err := c.Get(ctx, "rental-owner:r1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got)

	mr.FastForward(2 * time.Second)
	_, err = c.Get(ctx, "rental-owner:r1")
	assert.ErrorIs(t, err, ErrNotFound)
	ok, err := c.Exists(ctx, "rental-owner:r1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisBackendFailure(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t, "svc")
	mr.Close()

	_, err := c.Get(ctx, "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Error(t, c.Set(ctx, "k", "v", time.Minute))
	_, err = c.Exists(ctx, "k")
	assert.Error(t, err)
}

func TestNewPicksBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	assert.IsType(t, &Redis{}, New(client, "svc"))
	assert.IsType(t, &Memory{}, New(nil, "svc"))
}

func TestKeyPrefix(t *testing.T) {
	assert.Equal(t, "", keyPrefix(""))
	assert.Equal(t, "svc:", keyPrefix("svc"))
	assert.Equal(t, "svc:", keyPrefix("svc:"))
}
