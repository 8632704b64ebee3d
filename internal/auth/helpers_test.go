package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bankcore/banking-api/internal/domain"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type failingStore struct{}

var errStoreDown = errors.New("connection refused")

func (failingStore) Revoke(context.Context, string, time.Duration) error { return errStoreDown }

func (failingStore) IsRevoked(context.Context, string) (bool, error) { return false, errStoreDown }

type stubIdentities map[string]domain.Identity

func (s stubIdentities) FindBySubject(_ context.Context, subject string) (*domain.Identity, error) {
	identity, ok := s[subject]
	if !ok {
		return nil, domain.ErrIdentityNotFound
	}
	return &identity, nil
}

func testTokenConfig() TokenConfig {
	return TokenConfig{
		Secret:            testSecret,
		AccessTTL:         60 * time.Minute,
		ResetTTL:          15 * time.Minute,
		RevocationTimeout: 250 * time.Millisecond,
		FailClosed:        true,
	}
}

func newTestManager(t *testing.T, clock *fakeClock, store RevocationStore) *TokenManager {
	t.Helper()
	if store == nil {
		store = NewMemoryRevocationStore(clock.Now)
	}
	tm, err := NewTokenManager(testTokenConfig(), store, WithClock(clock.Now))
	require.NoError(t, err)
	return tm
}
