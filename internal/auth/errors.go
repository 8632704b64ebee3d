package auth

import "errors"

var (
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenRevoked          = errors.New("token revoked")
	// ErrRevocationUnavailable is returned when the revocation store cannot
	// answer and the manager is configured to fail closed.
	ErrRevocationUnavailable = errors.New("revocation store unavailable")

	ErrAccountNotFound = errors.New("account not found")
	ErrAccountInactive = errors.New("account inactive")
)

// Reason names why a token was not accepted.
type Reason string

const (
	ReasonNone                  Reason = ""
	ReasonMalformed             Reason = "malformed"
	ReasonSignatureInvalid      Reason = "signature_invalid"
	ReasonExpired               Reason = "expired"
	ReasonRevoked               Reason = "revoked"
	ReasonRevocationUnavailable Reason = "revocation_unavailable"
)

// ReasonOf maps a Verify error onto its Reason. Unknown errors count as malformed.
func ReasonOf(err error) Reason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrTokenSignatureInvalid):
		return ReasonSignatureInvalid
	case errors.Is(err, ErrTokenExpired):
		return ReasonExpired
	case errors.Is(err, ErrTokenRevoked):
		return ReasonRevoked
	case errors.Is(err, ErrRevocationUnavailable):
		return ReasonRevocationUnavailable
	default:
		return ReasonMalformed
	}
}
