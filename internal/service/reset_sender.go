package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bankcore/banking-api/internal/domain"
	"github.com/bankcore/banking-api/internal/observability"
)

// ResetTokenSender delivers a password reset token to the customer out of band.
type ResetTokenSender interface {
	SendResetToken(ctx context.Context, customer *domain.Customer, token string, expiresAt time.Time) error
}

// LogResetTokenSender stands in for SMS delivery. It only logs a masked token.
type LogResetTokenSender struct {
	logger *zap.Logger
}

// NewLogResetTokenSender creates the sender.
func NewLogResetTokenSender(logger *zap.Logger) *LogResetTokenSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogResetTokenSender{logger: logger.Named("reset_delivery")}
}

// SendResetToken satisfies ResetTokenSender.
func (s *LogResetTokenSender) SendResetToken(_ context.Context, customer *domain.Customer, token string, expiresAt time.Time) error {
	s.logger.Info("password reset token ready for delivery",
		zap.String("email", observability.MaskEmail(customer.Email)),
		zap.String("phone", observability.MaskIdentifier(customer.PhoneNumber)),
		zap.String("token", observability.MaskIdentifier(token)),
		zap.Time("expires_at", expiresAt))
	return nil
}
