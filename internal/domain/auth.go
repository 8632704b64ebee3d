package domain

import "errors"

// Role is the single authority string carried in access tokens.
type Role string

const (
	RoleUser  Role = "ROLE_USER"
	RoleAdmin Role = "ROLE_ADMIN"
)

// TokenType discriminates token flavors that must not authenticate requests.
type TokenType string

const (
	TokenTypeAccess        TokenType = ""
	TokenTypePasswordReset TokenType = "PASSWORD_RESET"
)

// ErrIdentityNotFound is returned by identity lookups for unknown subjects.
var ErrIdentityNotFound = errors.New("identity not found")

// Identity is the slice of a customer record the auth layer needs.
type Identity struct {
	Subject         string
	Active          bool
	AdminIdentifier string
}
