package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankcore/banking-api/internal/config"
	"github.com/bankcore/banking-api/internal/domain"
)

func TestNewTokenManagerRejectsBadConfig(t *testing.T) {
	store := NewMemoryRevocationStore(nil)

	cfg := testTokenConfig()
	cfg.Secret = "too-short"
	_, err := NewTokenManager(cfg, store)
	assert.ErrorIs(t, err, config.ErrSecretMisconfigured)

	cfg = testTokenConfig()
	cfg.AccessTTL = 0
	_, err = NewTokenManager(cfg, store)
	assert.ErrorIs(t, err, config.ErrTTLOutOfRange)

	_, err = NewTokenManager(testTokenConfig(), nil)
	assert.Error(t, err)
}

func TestIssueVerifyRevoke(t *testing.T) {
	clock := newFakeClock()
	tm := newTestManager(t, clock, nil)
	ctx := context.Background()

	token, expiresAt, err := tm.Issue("a@b.com", domain.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(time.Hour), expiresAt)

	claims, err := tm.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", claims.Subject)
	assert.Equal(t, domain.RoleUser, claims.Role)
	assert.NotEmpty(t, claims.ID)
	assert.False(t, IsPasswordResetToken(claims))

	require.NoError(t, tm.Revoke(ctx, claims))

	_, err = tm.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrTokenRevoked)
	assert.Equal(t, ReasonRevoked, ReasonOf(err))
}

func TestVerifyRoundTripsRoles(t *testing.T) {
	tm := newTestManager(t, newFakeClock(), nil)
	for _, role := range []domain.Role{domain.RoleUser, domain.RoleAdmin} {
		token, _, err := tm.Issue("someone@bank.test", role)
		require.NoError(t, err)

		claims, err := tm.Verify(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, role, claims.Role)
	}
}

func TestIssueGeneratesDistinctTokenIDs(t *testing.T) {
	clock := newFakeClock()
	tm := newTestManager(t, clock, nil)

	seen := map[string]struct{}{}
	for i := 0; i < 50; i++ {
		token, _, err := tm.Issue("a@b.com", domain.RoleUser)
		require.NoError(t, err)
		claims, err := tm.Verify(context.Background(), token)
		require.NoError(t, err)
		_, dup := seen[claims.ID]
		require.False(t, dup, "duplicate jti %s", claims.ID)
		seen[claims.ID] = struct{}{}
		clock.Advance(time.Second)
	}
}

func TestVerifyExpiredAfterTTL(t *testing.T) {
	clock := newFakeClock()
	cfg := testTokenConfig()
	cfg.AccessTTL = time.Minute
	tm, err := NewTokenManager(cfg, NewMemoryRevocationStore(clock.Now), WithClock(clock.Now))
	require.NoError(t, err)

	token, _, err := tm.Issue("a@b.com", domain.RoleUser)
	require.NoError(t, err)

	clock.Advance(59 * time.Second)
	_, err = tm.Verify(context.Background(), token)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, err = tm.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.Equal(t, ReasonExpired, ReasonOf(err))
}

func TestVerifyReportsExpiredBeforeRevoked(t *testing.T) {
	clock := newFakeClock()
	tm := newTestManager(t, clock, nil)
	ctx := context.Background()

	token, _, err := tm.Issue("a@b.com", domain.RoleUser)
	require.NoError(t, err)
	claims, err := tm.Verify(ctx, token)
	require.NoError(t, err)
	require.NoError(t, tm.Revoke(ctx, claims))

	clock.Advance(2 * time.Hour)
	_, err = tm.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyRejectsForgedTokens(t *testing.T) {
	clock := newFakeClock()
	tm := newTestManager(t, clock, nil)

	token, _, err := tm.Issue("a@b.com", domain.RoleUser)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = tm.Verify(context.Background(), tampered)
	assert.ErrorIs(t, err, ErrTokenSignatureInvalid)

	otherCfg := testTokenConfig()
	otherCfg.Secret = strings.Repeat("z", 32)
	other, err := NewTokenManager(otherCfg, NewMemoryRevocationStore(clock.Now), WithClock(clock.Now))
	require.NoError(t, err)
	foreign, _, err := other.Issue("a@b.com", domain.RoleAdmin)
	require.NoError(t, err)

	_, err = tm.Verify(context.Background(), foreign)
	assert.ErrorIs(t, err, ErrTokenSignatureInvalid)
	assert.Equal(t, ReasonSignatureInvalid, ReasonOf(err))
}

func TestVerifyRejectsForgedExpiredToken(t *testing.T) {
	clock := newFakeClock()
	tm := newTestManager(t, clock, nil)

	claims := &Claims{
		Role: domain.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "forged",
			Subject:   "a@b.com",
			ExpiresAt: jwt.NewNumericDate(clock.Now().Add(-time.Hour)),
		},
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(strings.Repeat("x", 32)))
	require.NoError(t, err)

	_, err = tm.Verify(context.Background(), forged)
	assert.ErrorIs(t, err, ErrTokenSignatureInvalid)
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	clock := newFakeClock()
	tm := newTestManager(t, clock, nil)

	claims := &Claims{
		Role: domain.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "x",
			Subject:   "a@b.com",
			ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
		},
	}
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = tm.Verify(context.Background(), hs512)
	assert.ErrorIs(t, err, ErrTokenSignatureInvalid)
}

func TestVerifyMalformed(t *testing.T) {
	tm := newTestManager(t, newFakeClock(), nil)

	for _, token := range []string{"", "garbage", "a.b.c", "....."} {
		_, err := tm.Verify(context.Background(), token)
		assert.ErrorIs(t, err, ErrTokenMalformed, "token %q", token)
		assert.Equal(t, ReasonMalformed, ReasonOf(err))
	}
}

func TestVerifyRequiresExpiry(t *testing.T) {
	tm := newTestManager(t, newFakeClock(), nil)

	claims := &Claims{
		Role:             domain.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{ID: "no-exp", Subject: "a@b.com"},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = tm.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestPasswordResetToken(t *testing.T) {
	clock := newFakeClock()
	tm := newTestManager(t, clock, nil)

	token, expiresAt, err := tm.IssuePasswordResetToken("a@b.com", "987654321")
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(15*time.Minute), expiresAt)

	claims, err := tm.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, IsPasswordResetToken(claims))
	assert.Equal(t, "987654321", claims.NationalID)
	assert.Empty(t, claims.Role)

	clock.Advance(16 * time.Minute)
	_, err = tm.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyFailClosedWhenStoreDown(t *testing.T) {
	clock := newFakeClock()
	tm := newTestManager(t, clock, failingStore{})

	token, _, err := tm.Issue("a@b.com", domain.RoleUser)
	require.NoError(t, err)

	_, err = tm.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrRevocationUnavailable)
	assert.Equal(t, ReasonRevocationUnavailable, ReasonOf(err))
}

func TestVerifyFailOpenWhenStoreDown(t *testing.T) {
	clock := newFakeClock()
	cfg := testTokenConfig()
	cfg.FailClosed = false
	tm, err := NewTokenManager(cfg, failingStore{}, WithClock(clock.Now))
	require.NoError(t, err)

	token, _, err := tm.Issue("a@b.com", domain.RoleUser)
	require.NoError(t, err)

	claims, err := tm.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", claims.Subject)
}

func TestRevokeUsesRemainingLifetime(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryRevocationStore(clock.Now)
	tm := newTestManager(t, clock, store)
	ctx := context.Background()

	token, _, err := tm.Issue("a@b.com", domain.RoleUser)
	require.NoError(t, err)
	claims, err := tm.Verify(ctx, token)
	require.NoError(t, err)

	clock.Advance(45 * time.Minute)
	assert.Equal(t, 15*time.Minute, tm.Remaining(claims))
	require.NoError(t, tm.Revoke(ctx, claims))

	revoked, err := store.IsRevoked(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	clock.Advance(15 * time.Minute)
	revoked, err = store.IsRevoked(ctx, claims.ID)
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRevokeSkipsExpiredTokens(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryRevocationStore(clock.Now)
	tm := newTestManager(t, clock, store)

	token, _, err := tm.Issue("a@b.com", domain.RoleUser)
	require.NoError(t, err)
	claims, err := tm.Verify(context.Background(), token)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	require.NoError(t, tm.Revoke(context.Background(), claims))
	assert.Equal(t, 0, store.Len())

	assert.ErrorIs(t, tm.Revoke(context.Background(), nil), ErrTokenMalformed)
}

type slowStore struct{ MemoryRevocationStore }

func (s *slowStore) IsRevoked(ctx context.Context, _ string) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}

func TestVerifyBoundsRevocationLookup(t *testing.T) {
	clock := newFakeClock()
	cfg := testTokenConfig()
	cfg.RevocationTimeout = 20 * time.Millisecond
	tm, err := NewTokenManager(cfg, &slowStore{}, WithClock(clock.Now))
	require.NoError(t, err)

	token, _, err := tm.Issue("a@b.com", domain.RoleUser)
	require.NoError(t, err)

	start := time.Now()
	_, err = tm.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrRevocationUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestTokenTypes(t *testing.T) {
	tm := newTestManager(t, newFakeClock(), nil)
	ctx := context.Background()

	access, _, err := tm.Issue("a@b.com", domain.RoleUser)
	require.NoError(t, err)
	claims, err := tm.Verify(ctx, access)
	require.NoError(t, err)
	assert.True(t, IsAccessToken(claims))

	reset, _, err := tm.IssuePasswordResetToken("a@b.com", "987654321")
	require.NoError(t, err)
	claims, err = tm.Verify(ctx, reset)
	require.NoError(t, err)
	assert.False(t, IsAccessToken(claims))
	assert.False(t, IsAccessToken(nil))
}

func TestInspectSkipsRevocationStore(t *testing.T) {
	clock := newFakeClock()
	tm := newTestManager(t, clock, failingStore{})

	token, _, err := tm.Issue("a@b.com", domain.RoleUser)
	require.NoError(t, err)

	claims, err := tm.Inspect(token)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", claims.Subject)

	_, err = tm.Inspect("garbage")
	assert.ErrorIs(t, err, ErrTokenMalformed)

	clock.Advance(2 * time.Hour)
	_, err = tm.Inspect(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}
