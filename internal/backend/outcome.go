package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
)

// OutcomeKind tags the result of one backend attempt.
type OutcomeKind int

const (
	// OutcomeSuccess is a 2xx answer with a JSON body.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeApplicationError is a non-2xx answer from a reachable backend.
	OutcomeApplicationError
	// OutcomeTransportFailure means no usable answer was received.
	OutcomeTransportFailure
)

// String returns the string representation of the kind.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeApplicationError:
		return "application_error"
	case OutcomeTransportFailure:
		return "transport_failure"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of one backend attempt.
type Outcome struct {
	Kind       OutcomeKind
	StatusCode int
	Body       []byte
	Err        error
}

// Success builds a success outcome.
func Success(status int, body []byte) Outcome {
	return Outcome{Kind: OutcomeSuccess, StatusCode: status, Body: body}
}

// ApplicationError builds an application error outcome.
func ApplicationError(status int, body []byte) Outcome {
	return Outcome{Kind: OutcomeApplicationError, StatusCode: status, Body: body}
}

// TransportFailure builds a transport failure outcome.
func TransportFailure(err error) Outcome {
	return Outcome{Kind: OutcomeTransportFailure, Err: err}
}

// Sentinel transport failure reasons.
var (
	ErrMalformedResponse = errors.New("malformed backend response")
	ErrTimeout           = errors.New("backend timeout")
	ErrUnreachable       = errors.New("backend unreachable")
)

// TransportError describes why an attempt produced no usable answer.
type TransportError struct {
	Method string
	Path   string
	Reason error
	Err    error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v: %v", e.Method, e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Reason)
}

// Unwrap returns both the reason and the underlying cause.
func (e *TransportError) Unwrap() []error {
	return []error{e.Reason, e.Err}
}

// classifyTransportError maps a low level error to a failure reason.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return ErrTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrUnreachable
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return ErrUnreachable
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrMalformedResponse
	}

	return ErrUnreachable
}
