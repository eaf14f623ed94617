package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedalhub/rental-service/internal/cache"
)

func TestRevocations(t *testing.T) {
	ctx := context.Background()
	r := NewRevocations(cache.NewMemory(""))
	r.now = func() time.Time { return testEpoch }

	revoked, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, r.Revoke(ctx, "jti-1", testEpoch.Add(time.Hour)))
	revoked, err = r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	require.NoError(t, r.Revoke(ctx, "jti-old", testEpoch.Add(-time.Second)))
	revoked, err = r.IsRevoked(ctx, "jti-old")
	require.NoError(t, err)
	assert.False(t, revoked)

	assert.Error(t, r.Revoke(ctx, "", testEpoch.Add(time.Hour)))
}

func TestRevocationsOnRedisExpireWithToken(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := NewRevocations(cache.New(client, "bike-rental-service"))
	r.now = func() time.Time { return testEpoch }

	require.NoError(t, r.Revoke(ctx, "jti-1", testEpoch.Add(15*time.Minute)))
	assert.True(t, mr.Exists("bike-rental-service:revoked:jti-1"))
	assert.Equal(t, 15*time.Minute, mr.TTL("bike-rental-service:revoked:jti-1"))

	revoked, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	mr.FastForward(15*time.Minute + time.Second)
	revoked, err = r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}
