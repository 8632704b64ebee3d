package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bankcore/banking-api/internal/observability"
)

const principalKey = "auth_principal"

type principalCtxKey struct{}

// AuthMiddleware attaches a principal when the request carries a valid bearer
// token. It never rejects a request; guards further down decide access.
type AuthMiddleware struct {
	tokens     *TokenManager
	logger     *zap.Logger
	metrics    *observability.Metrics
	skipPrefix []string
}

// DefaultAuthSkipPrefixes are paths that never need a principal.
var DefaultAuthSkipPrefixes = []string{"/health/", "/actuator/health"}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, logger *zap.Logger, metrics *observability.Metrics) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{
		tokens:     tokens,
		logger:     logger,
		metrics:    metrics,
		skipPrefix: DefaultAuthSkipPrefixes,
	}
}

// Handle runs the per-request authentication attempt.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	path := c.Path()
	for _, prefix := range m.skipPrefix {
		if strings.HasPrefix(path, prefix) {
			return c.Next()
		}
	}

	token, ok := BearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return c.Next()
	}

	result := m.authenticate(c.UserContext(), token)
	m.metrics.RecordAuth(result.Outcome)
	if result.Principal != nil {
		c.Locals(principalKey, result.Principal)
		c.SetUserContext(WithPrincipal(c.UserContext(), result.Principal))
	}
	return c.Next()
}

// AuthResult is the outcome of one bearer token: either a Principal or the
// outcome name explaining why the request stays anonymous.
type AuthResult struct {
	Principal *Principal
	Outcome   string
}

// Outcome names recorded alongside the token Reasons.
const (
	OutcomeAuthenticated = "authenticated"
	OutcomeResetToken    = "reset_token"
	OutcomeUnknownType   = "unknown_token_type"
	OutcomeMissingRole   = "missing_role"
	OutcomePanic         = "panic"
)

func (m *AuthMiddleware) authenticate(ctx context.Context, token string) (result AuthResult) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("authentication panicked; continuing unauthenticated", zap.Any("panic", r))
			result = AuthResult{Outcome: OutcomePanic}
		}
	}()

	claims, err := m.tokens.Verify(ctx, token)
	if err != nil {
		reason := ReasonOf(err)
		m.logger.Debug("bearer token rejected", zap.String("reason", string(reason)), zap.Error(err))
		return AuthResult{Outcome: string(reason)}
	}
	if IsPasswordResetToken(claims) {
		m.logger.Debug("password reset token presented as bearer", zap.String("jti", claims.ID))
		return AuthResult{Outcome: OutcomeResetToken}
	}
	if !IsAccessToken(claims) {
		return AuthResult{Outcome: OutcomeUnknownType}
	}
	if claims.Role == "" {
		return AuthResult{Outcome: OutcomeMissingRole}
	}

	m.logger.Debug("authenticated request", zap.String("subject", observability.MaskEmail(claims.Subject)))
	return AuthResult{
		Principal: &Principal{Subject: claims.Subject, Role: claims.Role, Active: true},
		Outcome:   OutcomeAuthenticated,
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// WithPrincipal stores the principal on a context for code below the HTTP layer.
func WithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, principal)
}

// PrincipalFrom reads a principal stored by WithPrincipal.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	principal, ok := ctx.Value(principalCtxKey{}).(*Principal)
	return principal, ok && principal != nil
}
