// Package revocation tracks invalidated tokens and per-user mass-revocation
// boundaries. Two independent mechanisms are kept: a blacklist of individual
// access tokens (entries expire with the token's natural lifetime) and a
// per-user revocation instant that invalidates every token issued before it.
package revocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Registry is the shared revocation store contract.
type Registry interface {
	// BlacklistToken marks a specific access token invalid for the
	// remainder of its natural lifetime.
	BlacklistToken(ctx context.Context, token string, ttl time.Duration) error

	// IsTokenBlacklisted reports whether the token has been blacklisted.
	IsTokenBlacklisted(ctx context.Context, token string) (bool, error)

	// RevokeUser records now as the user's revocation boundary. Every
	// token issued before that instant is invalid from this point on.
	RevokeUser(ctx context.Context, userID string) error

	// IsUserRevoked reports whether a token issued at issuedAt falls
	// before the user's revocation boundary.
	IsUserRevoked(ctx context.Context, userID string, issuedAt time.Time) (bool, error)
}

// tokenDigest derives the storage key for a token. Raw JWTs are long and
// carry claims in the clear; only a digest ever reaches the store.
func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
