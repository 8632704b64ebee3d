package auth

import (
	"context"
	"errors"
	"sync"
	"time"
)

// RevocationStore records revoked token ids until the tokens would have expired.
// Implementations must be safe for concurrent use; shared deployments need a
// store every instance can see, such as RedisRevocationStore.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

var errEmptyTokenID = errors.New("token id is required")

// pruneEvery sets how many writes pass between full sweeps of the memory store.
const pruneEvery = 256

// MemoryRevocationStore keeps revocations in process memory.
// Only suitable for a single instance and for tests.
type MemoryRevocationStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	writes  int
	now     func() time.Time
}

// NewMemoryRevocationStore creates an empty store. A nil clock means time.Now.
func NewMemoryRevocationStore(now func() time.Time) *MemoryRevocationStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryRevocationStore{
		entries: make(map[string]time.Time),
		now:     now,
	}
}

// Revoke marks jti as revoked for ttl.
func (s *MemoryRevocationStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return errEmptyTokenID
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl <= 0 {
		return nil
	}

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[jti] = now.Add(ttl)
	s.writes++
	if s.writes%pruneEvery == 0 {
		s.pruneLocked(now)
	}
	return nil
}

// IsRevoked reports whether jti has a live revocation entry.
func (s *MemoryRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	expiresAt, ok := s.entries[jti]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return s.now().Before(expiresAt), nil
}

// Prune drops expired entries and returns how many were removed.
func (s *MemoryRevocationStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneLocked(s.now())
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryRevocationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryRevocationStore) pruneLocked(now time.Time) int {
	removed := 0
	for jti, expiresAt := range s.entries {
		if !now.Before(expiresAt) {
			delete(s.entries, jti)
			removed++
		}
	}
	return removed
}
