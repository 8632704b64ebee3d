package events

import (
	"time"

	"github.com/bankcore/banking-api/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventLoginSucceeded         EventType = "login_succeeded"
	EventLoginFailed            EventType = "login_failed"
	EventLogout                 EventType = "logout"
	EventTokenRevoked           EventType = "token_revoked"
	EventPasswordResetRequested EventType = "password_reset_requested"
	EventPasswordResetCompleted EventType = "password_reset_completed"
)

// Event represents an authentication event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Subject   string      `json:"subject"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// LoginSucceededPayload payload.
type LoginSucceededPayload struct {
	Role      domain.Role `json:"role"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// LoginFailedPayload payload.
type LoginFailedPayload struct {
	Reason string `json:"reason"`
}

// TokenRevokedPayload payload. Persisted is false when the store write failed.
type TokenRevokedPayload struct {
	TokenID   string           `json:"token_id"`
	TokenType domain.TokenType `json:"token_type,omitempty"`
	Persisted bool             `json:"persisted"`
}

// PasswordResetPayload payload.
type PasswordResetPayload struct {
	TokenID string `json:"token_id"`
}
