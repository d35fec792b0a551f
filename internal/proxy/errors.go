package proxy

import (
	"errors"
	"fmt"
)

// Sentinel errors for forwarding.
var (
	// ErrUnknownOperation indicates that no policy is registered for an operation.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrDuplicateOperation indicates two policies share an operation name.
	ErrDuplicateOperation = errors.New("duplicate operation")

	// ErrInvalidPolicy indicates a policy is missing required parts.
	ErrInvalidPolicy = errors.New("invalid route policy")

	// ErrCircuitOpen is the synthetic transport failure of a short-circuited call.
	ErrCircuitOpen = errors.New("circuit open")
)

// ForwardError describes a forwarding failure that ended in a fallback.
type ForwardError struct {
	Operation string
	Attempts  int
	Cause     error
}

// Error implements the error interface.
func (e *ForwardError) Error() string {
	return fmt.Sprintf("forward %s failed after %d attempt(s): %v", e.Operation, e.Attempts, e.Cause)
}

// Unwrap returns the underlying error.
func (e *ForwardError) Unwrap() error {
	return e.Cause
}
