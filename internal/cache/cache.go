// Package cache provides a small key/value store used for token revocation and
// owner lookups. Redis backs it when configured, otherwise an in-process cache.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by Get when the key does not exist or has expired.
var ErrNotFound = errors.New("cache: key not found")

// Cache defines the operations shared by all backends.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// New returns a Redis-backed cache when client is non-nil, otherwise a memory cache.
// Keys are stored as "<prefix>:<key>".
func New(client *redis.Client, prefix string) Cache {
	if client != nil {
		return NewRedis(client, prefix)
	}
	return NewMemory(prefix)
}

func keyPrefix(prefix string) string {
	if prefix == "" || strings.HasSuffix(prefix, ":") {
		return prefix
	}
	return prefix + ":"
}
