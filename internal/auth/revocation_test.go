package auth

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRevocationStoreExpiresEntries(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryRevocationStore(clock.Now)
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "jti-1", time.Minute))
	require.NoError(t, store.Revoke(ctx, "jti-2", time.Hour))

	revoked, err := store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	clock.Advance(2 * time.Minute)
	revoked, err = store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	assert.Equal(t, 1, store.Prune())
	assert.Equal(t, 1, store.Len())

	revoked, err = store.IsRevoked(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestMemoryRevocationStoreValidatesInput(t *testing.T) {
	store := NewMemoryRevocationStore(nil)
	ctx := context.Background()

	assert.Error(t, store.Revoke(ctx, "", time.Minute))
	require.NoError(t, store.Revoke(ctx, "jti", 0))
	assert.Equal(t, 0, store.Len())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, store.Revoke(cancelled, "jti", time.Minute), context.Canceled)
	_, err := store.IsRevoked(cancelled, "jti")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryRevocationStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryRevocationStore(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				jti := fmt.Sprintf("%d-%d", worker, j)
				_ = store.Revoke(ctx, jti, time.Minute)
				revoked, err := store.IsRevoked(ctx, jti)
				assert.NoError(t, err)
				assert.True(t, revoked)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1600, store.Len())
}

func newTestRedisStore(t *testing.T) (*RedisRevocationStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRevocationStore(client, ""), mr
}

func TestRedisRevocationStore(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "abc", 30*time.Minute))
	assert.True(t, mr.Exists("jwt:blacklist:abc"))
	assert.Equal(t, 30*time.Minute, mr.TTL("jwt:blacklist:abc"))

	revoked, err := store.IsRevoked(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = store.IsRevoked(ctx, "other")
	require.NoError(t, err)
	assert.False(t, revoked)

	mr.FastForward(31 * time.Minute)
	revoked, err = store.IsRevoked(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisRevocationStoreSharedBetweenManagers(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	first, err := NewTokenManager(testTokenConfig(), store)
	require.NoError(t, err)
	second, err := NewTokenManager(testTokenConfig(), store)
	require.NoError(t, err)

	token, _, err := first.Issue("a@b.com", "ROLE_USER")
	require.NoError(t, err)
	claims, err := second.Verify(ctx, token)
	require.NoError(t, err)

	require.NoError(t, first.Revoke(ctx, claims))
	_, err = second.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestRedisRevocationStoreUnavailable(t *testing.T) {
	store, mr := newTestRedisStore(t)
	mr.Close()

	_, err := store.IsRevoked(context.Background(), "abc")
	assert.Error(t, err)
	assert.Error(t, store.Revoke(context.Background(), "abc", time.Minute))
}
