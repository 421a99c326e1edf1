package revocation

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryRegistry is an in-process revocation store for single-instance
// deployments. Its state does not propagate across instances, so running
// more than one replica against it silently breaks the revocation
// guarantee; the constructor logs this degradation loudly and callers must
// opt into it through configuration.
type MemoryRegistry struct {
	mu         sync.RWMutex
	tokens     map[string]time.Time // digest -> entry expiry
	boundaries map[string]time.Time // user id -> revocation boundary
}

// NewMemoryRegistry builds the in-process store.
func NewMemoryRegistry(logger *slog.Logger) *MemoryRegistry {
	logger.Warn("revocation registry running in-process: revocations will NOT propagate across instances; use the redis store for horizontal scaling")

	return &MemoryRegistry{
		tokens:     make(map[string]time.Time),
		boundaries: make(map[string]time.Time),
	}
}

func (m *MemoryRegistry) BlacklistToken(_ context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[tokenDigest(token)] = time.Now().Add(ttl)
	return nil
}

func (m *MemoryRegistry) IsTokenBlacklisted(_ context.Context, token string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	expiry, ok := m.tokens[tokenDigest(token)]
	if !ok {
		return false, nil
	}
	return time.Now().Before(expiry), nil
}

func (m *MemoryRegistry) RevokeUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boundaries[userID] = time.Now()
	return nil
}

func (m *MemoryRegistry) IsUserRevoked(_ context.Context, userID string, issuedAt time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	boundary, ok := m.boundaries[userID]
	if !ok {
		return false, nil
	}
	return issuedAt.Before(boundary), nil
}

// Purge drops token entries past their natural expiry and user boundaries
// older than maxBoundaryAge. Returns the number of entries removed.
func (m *MemoryRegistry) Purge(maxBoundaryAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	removed := 0

	for digest, expiry := range m.tokens {
		if now.After(expiry) {
			delete(m.tokens, digest)
			removed++
		}
	}

	cutoff := now.Add(-maxBoundaryAge)
	for userID, boundary := range m.boundaries {
		if boundary.Before(cutoff) {
			delete(m.boundaries, userID)
			removed++
		}
	}

	return removed
}
