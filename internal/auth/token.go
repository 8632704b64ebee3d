package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bankcore/banking-api/internal/config"
	"github.com/bankcore/banking-api/internal/domain"
)

// TokenManager issues HS256 tokens and validates them against the revocation store.
type TokenManager struct {
	secret        []byte
	accessTTL     time.Duration
	resetTTL      time.Duration
	revocations   RevocationStore
	lookupTimeout time.Duration
	failClosed    bool
	logger        *zap.Logger
	now           func() time.Time
}

// TokenConfig carries the values NewTokenManager needs from configuration.
type TokenConfig struct {
	Secret            string
	AccessTTL         time.Duration
	ResetTTL          time.Duration
	RevocationTimeout time.Duration
	FailClosed        bool
}

// TokenOption customizes a TokenManager.
type TokenOption func(*TokenManager)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) TokenOption {
	return func(tm *TokenManager) {
		if now != nil {
			tm.now = now
		}
	}
}

// WithLogger sets the logger used for revocation diagnostics.
func WithLogger(logger *zap.Logger) TokenOption {
	return func(tm *TokenManager) {
		if logger != nil {
			tm.logger = logger
		}
	}
}

// TokenConfigFrom adapts the auth section of the service config.
func TokenConfigFrom(cfg config.AuthConfig) TokenConfig {
	return TokenConfig{
		Secret:            cfg.JWTSecret,
		AccessTTL:         cfg.AccessTokenTTL(),
		ResetTTL:          cfg.PasswordResetTTL(),
		RevocationTimeout: cfg.RevocationTimeout(),
		FailClosed:        cfg.FailClosed(),
	}
}

// NewTokenManager builds a new manager. The secret must hold at least 256 bits.
func NewTokenManager(cfg TokenConfig, revocations RevocationStore, opts ...TokenOption) (*TokenManager, error) {
	if len([]byte(cfg.Secret)) < config.MinSecretBytes {
		return nil, fmt.Errorf("%w: signing key must be at least %d bytes", config.ErrSecretMisconfigured, config.MinSecretBytes)
	}
	if cfg.AccessTTL <= 0 || cfg.ResetTTL <= 0 {
		return nil, fmt.Errorf("%w: token lifetimes must be positive", config.ErrTTLOutOfRange)
	}
	if revocations == nil {
		return nil, errors.New("revocation store is required")
	}

	tm := &TokenManager{
		secret:        []byte(cfg.Secret),
		accessTTL:     cfg.AccessTTL,
		resetTTL:      cfg.ResetTTL,
		revocations:   revocations,
		lookupTimeout: cfg.RevocationTimeout,
		failClosed:    cfg.FailClosed,
		logger:        zap.NewNop(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(tm)
	}
	return tm, nil
}

// Claims describes JWT payload.
type Claims struct {
	Role       domain.Role      `json:"role,omitempty"`
	Type       domain.TokenType `json:"type,omitempty"`
	NationalID string           `json:"nationalId,omitempty"`
	jwt.RegisteredClaims
}

// AccessTTL returns the configured access token lifetime.
func (tm *TokenManager) AccessTTL() time.Duration {
	return tm.accessTTL
}

// Issue builds and signs an access token for the subject.
func (tm *TokenManager) Issue(subject string, role domain.Role) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.New("subject is required")
	}
	claims := tm.newClaims(subject, tm.accessTTL)
	claims.Type = domain.TokenTypeAccess
	claims.Role = role
	return tm.sign(claims)
}

// IssuePasswordResetToken builds a short-lived token that only the reset flow accepts.
func (tm *TokenManager) IssuePasswordResetToken(subject, nationalID string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.New("subject is required")
	}
	claims := tm.newClaims(subject, tm.resetTTL)
	claims.Type = domain.TokenTypePasswordReset
	claims.NationalID = nationalID
	return tm.sign(claims)
}

// IsPasswordResetToken reports whether the claims belong to a reset token.
func IsPasswordResetToken(claims *Claims) bool {
	return claims != nil && claims.Type == domain.TokenTypePasswordReset
}

// IsAccessToken reports whether the claims may authenticate regular requests.
func IsAccessToken(claims *Claims) bool {
	return claims != nil && claims.Type == domain.TokenTypeAccess
}

// Inspect checks signature and expiry only, without consulting the revocation
// store. Callers must not treat the result as proof the token is still usable.
func (tm *TokenManager) Inspect(tokenStr string) (claims *Claims, err error) {
	defer func() {
		if r := recover(); r != nil {
			claims = nil
			err = fmt.Errorf("%w: %v", ErrTokenMalformed, r)
		}
	}()
	return tm.parse(tokenStr)
}

// Verify checks signature, expiry and revocation, in that order.
// The returned error is always one of the package token errors.
func (tm *TokenManager) Verify(ctx context.Context, tokenStr string) (claims *Claims, err error) {
	defer func() {
		if r := recover(); r != nil {
			claims = nil
			err = fmt.Errorf("%w: %v", ErrTokenMalformed, r)
		}
	}()

	claims, err = tm.parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if err := tm.checkRevocation(ctx, claims.ID); err != nil {
		return nil, err
	}
	return claims, nil
}

// Revoke blacklists the token for the rest of its lifetime.
func (tm *TokenManager) Revoke(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ID == "" {
		return ErrTokenMalformed
	}
	ttl := tm.Remaining(claims)
	if ttl <= 0 {
		return nil
	}
	return tm.revocations.Revoke(ctx, claims.ID, ttl)
}

// Remaining returns how long the token stays valid, never negative.
func (tm *TokenManager) Remaining(claims *Claims) time.Duration {
	if claims == nil || claims.ExpiresAt == nil {
		return 0
	}
	remaining := claims.ExpiresAt.Time.Sub(tm.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (tm *TokenManager) newClaims(subject string, ttl time.Duration) *Claims {
	now := tm.now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

func (tm *TokenManager) sign(claims *Claims) (string, time.Time, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, claims.ExpiresAt.Time, nil
}

// parse verifies the signature first and only then validates time claims, so
// a forged token never reports as merely expired.
func (tm *TokenManager) parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, classifyParseError(err)
	}
	if !parsed.Valid {
		return nil, ErrTokenMalformed
	}

	validator := jwt.NewValidator(jwt.WithExpirationRequired(), jwt.WithTimeFunc(tm.now))
	if err := validator.Validate(claims); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing jti or subject", ErrTokenMalformed)
	}
	return claims, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrTokenSignatureInvalid, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}

func (tm *TokenManager) checkRevocation(ctx context.Context, jti string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if tm.lookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, tm.lookupTimeout)
		defer cancel()
	}

	revoked, err := tm.revocations.IsRevoked(ctx, jti)
	if err != nil {
		if tm.failClosed {
			tm.logger.Error("revocation lookup failed; rejecting token", zap.String("jti", jti), zap.Error(err))
			return fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
		}
		tm.logger.Warn("revocation lookup failed; accepting token", zap.String("jti", jti), zap.Error(err))
		return nil
	}
	if revoked {
		return ErrTokenRevoked
	}
	return nil
}
