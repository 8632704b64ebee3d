package dto

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// LoginRequest payload for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks required fields.
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 255), is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// PasswordResetRequest payload for POST /api/auth/password-reset/request.
type PasswordResetRequest struct {
	Email      string `json:"email"`
	NationalID string `json:"national_id"`
}

// Validate checks required fields.
func (r PasswordResetRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.NationalID, validation.Required, validation.Length(5, 20), is.Alphanumeric),
	)
}

// PasswordResetConfirmRequest payload for POST /api/auth/password-reset/confirm.
type PasswordResetConfirmRequest struct {
	Token           string `json:"token"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Validate checks required fields and that both passwords match.
func (r PasswordResetConfirmRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(8, 128)),
		validation.Field(&r.ConfirmPassword, validation.Required, validation.In(r.NewPassword).Error("passwords do not match")),
	)
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	ExpiresIn int64     `json:"expires_in"`
}

// CustomerResponse is the public view of a customer.
type CustomerResponse struct {
	ID         string `json:"id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	NationalID string `json:"national_id"`
	Active     bool   `json:"active"`
}

// PasswordResetAcceptedMessage is returned whether or not a token was issued.
const PasswordResetAcceptedMessage = "If the details match an active account, a reset code has been sent."

// PasswordResetResponse acknowledges a reset request without revealing its outcome.
type PasswordResetResponse struct {
	Message string `json:"message"`
}
