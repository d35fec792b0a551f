package jwt

import (
	"errors"
	"fmt"
)

// Sentinel errors for token validation.
var (
	// ErrInvalidToken indicates that the token could not be verified.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired indicates that the token has expired.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenNotYetValid indicates that the token is not yet valid.
	ErrTokenNotYetValid = errors.New("token not yet valid")

	// ErrInvalidIssuer indicates that the token issuer does not match.
	ErrInvalidIssuer = errors.New("invalid issuer")

	// ErrDiscoveryFailed indicates that OIDC discovery failed.
	ErrDiscoveryFailed = errors.New("OIDC discovery failed")

	// ErrJWKSUnavailable indicates that the key set could not be fetched.
	ErrJWKSUnavailable = errors.New("JWKS unavailable")
)

// ValidationError wraps a token validation failure.
type ValidationError struct {
	Reason error
	Cause  error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%v: %v", e.Reason, e.Cause)
	}
	return e.Reason.Error()
}

// Unwrap returns the reason and the underlying cause.
func (e *ValidationError) Unwrap() []error {
	return []error{e.Reason, e.Cause}
}

func newValidationError(reason, cause error) *ValidationError {
	return &ValidationError{Reason: reason, Cause: cause}
}
