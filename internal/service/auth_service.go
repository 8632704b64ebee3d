package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bankcore/banking-api/internal/auth"
	"github.com/bankcore/banking-api/internal/config"
	"github.com/bankcore/banking-api/internal/domain"
	"github.com/bankcore/banking-api/internal/events"
	"github.com/bankcore/banking-api/internal/observability"
	"github.com/bankcore/banking-api/internal/repository"
	apperrors "github.com/bankcore/banking-api/pkg/util/errorutil"
)

// AuthService coordinates login, logout, token verification and password reset.
type AuthService struct {
	customers  repository.CustomerRepository
	tokens     *auth.TokenManager
	resolver   *auth.PrincipalResolver
	dispatcher events.Dispatcher
	sender     ResetTokenSender
	logger     *zap.Logger
	bcryptCost int
	now        func() time.Time
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Customers  repository.CustomerRepository
	Tokens     *auth.TokenManager
	Resolver   *auth.PrincipalResolver
	Dispatcher events.Dispatcher
	Logger     *zap.Logger

	// ResetSender delivers password reset tokens. Defaults to a logging sender.
	ResetSender ResetTokenSender
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Customer  *domain.Customer
	Role      domain.Role
	Token     string
	ExpiresAt time.Time
	ExpiresIn time.Duration
}

// VerifyResult describes a token that is still good to use.
type VerifyResult struct {
	Customer  *domain.Customer
	Role      domain.Role
	ExpiresIn time.Duration
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sender := deps.ResetSender
	if sender == nil {
		sender = NewLogResetTokenSender(logger)
	}
	return &AuthService{
		customers:  deps.Customers,
		tokens:     deps.Tokens,
		resolver:   deps.Resolver,
		dispatcher: deps.Dispatcher,
		sender:     sender,
		logger:     logger,
		bcryptCost: cfg.BcryptCost,
		now:        time.Now,
	}
}

var errInvalidCredentials = apperrors.NewUnauthorized("invalid email or password")

// Login authenticates a customer and issues an access token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)

	customer, err := s.customers.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			s.loginFailed(ctx, email, "unknown_email")
			return nil, errInvalidCredentials
		}
		return nil, apperrors.NewInternalError(err)
	}
	if !customer.Active {
		s.loginFailed(ctx, email, "inactive")
		return nil, apperrors.NewAccountInactive()
	}
	if err := auth.ComparePassword(customer.PasswordHash, password); err != nil {
		s.loginFailed(ctx, email, "bad_password")
		return nil, errInvalidCredentials
	}

	principal, err := s.resolver.Resolve(ctx, customer.Email)
	if err != nil {
		return nil, mapResolveError(err)
	}

	token, expiresAt, err := s.tokens.Issue(principal.Subject, principal.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.publish(ctx, events.EventLoginSucceeded, principal.Subject, events.LoginSucceededPayload{
		Role:      principal.Role,
		ExpiresAt: expiresAt,
	})
	s.logger.Info("customer logged in", zap.String("email", observability.MaskEmail(principal.Subject)))

	return &LoginResult{
		Customer:  customer,
		Role:      principal.Role,
		Token:     token,
		ExpiresAt: expiresAt,
		ExpiresIn: s.tokens.AccessTTL(),
	}, nil
}

// Logout revokes the presented token. Revocation store failures are logged
// and swallowed so the caller always sees a completed logout.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Verify(ctx, token)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrTokenRevoked):
		return nil
	case errors.Is(err, auth.ErrRevocationUnavailable):
		s.logger.Error("logout could not check revocation store; revoking anyway", zap.Error(err))
		claims, err = s.tokens.Inspect(token)
		if err != nil {
			return nil
		}
	default:
		return apperrors.NewInvalidToken(http.StatusBadRequest)
	}

	persisted := s.revoke(ctx, claims)
	s.publish(ctx, events.EventLogout, claims.Subject, nil)
	s.logger.Info("customer logged out",
		zap.String("jti", claims.ID),
		zap.String("email", observability.MaskEmail(claims.Subject)),
		zap.Bool("revocation_persisted", persisted))
	return nil
}

// Verify reports whether token is usable and who it belongs to.
func (s *AuthService) Verify(ctx context.Context, token string) (*VerifyResult, error) {
	claims, err := s.tokens.Verify(ctx, token)
	if err != nil {
		s.logger.Debug("token verification failed", zap.String("reason", string(auth.ReasonOf(err))))
		return nil, apperrors.NewInvalidToken(http.StatusUnauthorized)
	}
	if !auth.IsAccessToken(claims) {
		return nil, apperrors.NewInvalidToken(http.StatusUnauthorized)
	}

	principal, err := s.resolver.Resolve(ctx, claims.Subject)
	if err != nil {
		return nil, mapResolveError(err)
	}
	customer, err := s.customers.GetByEmail(ctx, principal.Subject)
	if err != nil {
		return nil, mapCustomerError(err)
	}

	return &VerifyResult{
		Customer:  customer,
		Role:      principal.Role,
		ExpiresIn: s.tokens.Remaining(claims),
	}, nil
}

// CurrentCustomer loads the customer behind an authenticated principal.
func (s *AuthService) CurrentCustomer(ctx context.Context, principal *auth.Principal) (*domain.Customer, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthorized("not authenticated")
	}
	customer, err := s.customers.GetByEmail(ctx, principal.Subject)
	if err != nil {
		return nil, mapCustomerError(err)
	}
	return customer, nil
}

// SearchCustomer looks a customer up by email for administrators.
func (s *AuthService) SearchCustomer(ctx context.Context, email string) (*domain.Customer, error) {
	customer, err := s.customers.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, mapCustomerError(err)
	}
	return customer, nil
}

// RequestPasswordReset hands a reset token to the delivery channel when email
// and national id match an active customer. The token never goes back to the
// caller, and every other outcome looks the same from the outside.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email, nationalID string) error {
	email = normalizeEmail(email)

	customer, err := s.customers.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			s.resetDenied(email, "unknown_email")
			return nil
		}
		return apperrors.NewInternalError(err)
	}
	if !sameIdentifier(customer.NationalID, nationalID) {
		s.resetDenied(email, "identifier_mismatch")
		return nil
	}
	if !customer.Active {
		s.resetDenied(email, "inactive")
		return nil
	}

	token, expiresAt, err := s.tokens.IssuePasswordResetToken(customer.Email, customer.NationalID)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := s.sender.SendResetToken(ctx, customer, token, expiresAt); err != nil {
		s.logger.Error("password reset delivery failed",
			zap.String("email", observability.MaskEmail(customer.Email)), zap.Error(err))
		return nil
	}

	s.publish(ctx, events.EventPasswordResetRequested, customer.Email, nil)
	return nil
}

func (s *AuthService) resetDenied(email, reason string) {
	s.logger.Warn("password reset not issued", zap.String("email", observability.MaskEmail(email)), zap.String("reason", reason))
}

// ConfirmPasswordReset sets a new password and burns the reset token.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	claims, err := s.tokens.Verify(ctx, token)
	if err != nil || !auth.IsPasswordResetToken(claims) {
		return apperrors.NewInvalidToken(http.StatusBadRequest)
	}

	customer, err := s.customers.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			return apperrors.NewInvalidToken(http.StatusBadRequest)
		}
		return apperrors.NewInternalError(err)
	}
	if !sameIdentifier(customer.NationalID, claims.NationalID) {
		return apperrors.NewInvalidToken(http.StatusBadRequest)
	}
	if !customer.Active {
		return apperrors.NewAccountInactive()
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := s.customers.UpdatePasswordHash(ctx, customer.ID, hash); err != nil {
		return mapCustomerError(err)
	}

	s.revoke(ctx, claims)
	s.publish(ctx, events.EventPasswordResetCompleted, customer.Email, events.PasswordResetPayload{TokenID: claims.ID})
	return nil
}

func (s *AuthService) revoke(ctx context.Context, claims *auth.Claims) bool {
	err := s.tokens.Revoke(ctx, claims)
	if err != nil {
		s.logger.Error("failed to revoke token", zap.String("jti", claims.ID), zap.Error(err))
	}
	s.publish(ctx, events.EventTokenRevoked, claims.Subject, events.TokenRevokedPayload{
		TokenID:   claims.ID,
		TokenType: claims.Type,
		Persisted: err == nil,
	})
	return err == nil
}

func (s *AuthService) loginFailed(ctx context.Context, email, reason string) {
	s.logger.Warn("login failed", zap.String("email", observability.MaskEmail(email)), zap.String("reason", reason))
	s.publish(ctx, events.EventLoginFailed, email, events.LoginFailedPayload{Reason: reason})
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, subject string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Subject:   subject,
		Timestamp: s.now().UTC(),
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(eventType)), zap.Error(err))
	}
}

func mapResolveError(err error) error {
	switch {
	case errors.Is(err, auth.ErrAccountNotFound):
		return apperrors.NewUnauthorized("user not found")
	case errors.Is(err, auth.ErrAccountInactive):
		return apperrors.NewAccountInactive()
	default:
		return apperrors.NewInternalError(err)
	}
}

func mapCustomerError(err error) error {
	if errors.Is(err, domain.ErrIdentityNotFound) {
		return apperrors.NewNotFound("customer", nil)
	}
	return apperrors.NewInternalError(err)
}

func sameIdentifier(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
