package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors for authentication operations.
var (
	// ErrNoCredentials indicates that no credentials were provided.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrInvalidCredentials indicates that the provided credentials are invalid.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnsupportedMode indicates an unknown auth mode.
	ErrUnsupportedMode = errors.New("unsupported auth mode")

	// ErrMissingVerifier indicates that a mode lacks a verifier it needs.
	ErrMissingVerifier = errors.New("missing verifier for auth mode")
)

// AuthError represents an authentication failure of one mechanism.
type AuthError struct {
	Type  AuthType
	Cause error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("auth error (%s): %v", e.Type, e.Cause)
	}
	return fmt.Sprintf("auth error (%s)", e.Type)
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error {
	return e.Cause
}

// Is matches ErrInvalidCredentials whatever the mechanism.
func (e *AuthError) Is(target error) bool {
	return target == ErrInvalidCredentials
}

// WrapAuthError wraps err with the mechanism that produced it.
func WrapAuthError(err error, authType AuthType) error {
	if err == nil {
		return nil
	}
	return &AuthError{Type: authType, Cause: err}
}
