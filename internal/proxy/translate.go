package proxy

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/strategyforge/gateway/internal/backend"
)

// Source tells where a response came from.
type Source int

const (
	// SourceBackend marks a response relayed from the backend.
	SourceBackend Source = iota
	// SourceFallback marks a response produced by a route fallback.
	SourceFallback
	// SourceGateway marks a response produced by the gateway itself.
	SourceGateway
)

// String returns the string representation of the source.
func (s Source) String() string {
	switch s {
	case SourceBackend:
		return "backend"
	case SourceFallback:
		return "fallback"
	case SourceGateway:
		return "gateway"
	default:
		return "unknown"
	}
}

// Response is what the gateway returns for an operation.
type Response struct {
	StatusCode int
	Body       []byte
	Source     Source
}

// ErrorEnvelope is the gateway-owned error body.
type ErrorEnvelope struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// Envelope encodes an error envelope.
func Envelope(summary, detail string) []byte {
	b, err := json.Marshal(ErrorEnvelope{Error: summary, Detail: detail})
	if err != nil {
		// Both fields are strings; Marshal cannot fail.
		return []byte(`{"error":"Internal Server Error","detail":""}`)
	}
	return b
}

// ErrorResponse builds a gateway error response.
func ErrorResponse(status int, summary, detail string) Response {
	return Response{StatusCode: status, Body: Envelope(summary, detail), Source: SourceGateway}
}

// FromOutcome converts a backend success or application error into a
// response. JSON bodies pass through unchanged; anything else is wrapped
// once in an envelope.
func FromOutcome(outcome backend.Outcome) Response {
	resp := Response{StatusCode: outcome.StatusCode, Source: SourceBackend}

	trimmed := bytes.TrimSpace(outcome.Body)
	switch {
	case len(trimmed) > 0 && json.Valid(trimmed):
		resp.Body = outcome.Body
	case outcome.Kind == backend.OutcomeSuccess:
		resp.Body = []byte("{}")
	case len(trimmed) == 0:
		text := http.StatusText(outcome.StatusCode)
		resp.Body = Envelope(text, text)
	default:
		resp.Body = Envelope(http.StatusText(outcome.StatusCode), string(outcome.Body))
	}
	return resp
}

// FallbackFunc produces the degraded response of a route. cause is the
// terminal transport failure, ErrCircuitOpen for a short-circuit, or the
// context error when the caller gave up.
type FallbackFunc func(cause error) Response

// UnavailableFallback answers 503 with summary and a short description of
// the cause.
func UnavailableFallback(summary string) FallbackFunc {
	return func(cause error) Response {
		return Response{
			StatusCode: http.StatusServiceUnavailable,
			Body:       Envelope(summary, describeCause(cause)),
			Source:     SourceFallback,
		}
	}
}

// StaticFallback answers with a fixed status and JSON body.
func StaticFallback(status int, body []byte) FallbackFunc {
	return func(error) Response {
		return Response{StatusCode: status, Body: body, Source: SourceFallback}
	}
}

// describeCause keeps internal addresses out of client-facing bodies.
func describeCause(cause error) string {
	switch {
	case cause == nil:
		return "unknown"
	case errors.Is(cause, ErrCircuitOpen):
		return ErrCircuitOpen.Error()
	case errors.Is(cause, backend.ErrTimeout):
		return backend.ErrTimeout.Error()
	case errors.Is(cause, backend.ErrMalformedResponse):
		return backend.ErrMalformedResponse.Error()
	case errors.Is(cause, backend.ErrUnreachable):
		return backend.ErrUnreachable.Error()
	default:
		return cause.Error()
	}
}
