package auth

import (
	"context"
	"errors"
	"time"

	"github.com/pedalhub/rental-service/internal/cache"
)

const revokedKeyPrefix = "revoked:"

// RevocationChecker answers whether a token id has been revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Revocations is a deny-list of token ids kept until each token would have expired anyway.
type Revocations struct {
	store cache.Cache
	now   func() time.Time
}

// NewRevocations builds a deny-list on top of store.
func NewRevocations(store cache.Cache) *Revocations {
	return &Revocations{store: store, now: time.Now}
}

// Revoke adds tokenID to the deny-list until expiresAt. Already expired tokens are ignored.
func (r *Revocations) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return errors.New("token has no id")
	}
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	return r.store.Set(ctx, revokedKeyPrefix+tokenID, "1", ttl)
}

// IsRevoked reports whether tokenID is on the deny-list.
func (r *Revocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	return r.store.Exists(ctx, revokedKeyPrefix+tokenID)
}
