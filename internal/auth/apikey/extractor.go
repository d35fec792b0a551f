package apikey

import (
	"errors"
	"net/http"
)

// DefaultHeader is the header carrying the API key.
const DefaultHeader = "X-API-Key"

// ErrMissingAPIKeyHeader indicates that the request carries no API key.
var ErrMissingAPIKeyHeader = errors.New("missing API key header")

// Extractor defines the interface for extracting API keys from HTTP requests.
type Extractor interface {
	// Extract extracts an API key from the request.
	Extract(r *http.Request) (string, error)
}

// HeaderExtractor extracts API keys from an HTTP header. The value is
// returned exactly as sent.
type HeaderExtractor struct {
	header string
}

// NewHeaderExtractor creates a new header extractor.
// If header is empty, it defaults to "X-API-Key".
func NewHeaderExtractor(header string) *HeaderExtractor {
	if header == "" {
		header = DefaultHeader
	}
	return &HeaderExtractor{header: header}
}

// Header returns the header name.
func (e *HeaderExtractor) Header() string {
	return e.header
}

// Extract extracts the API key from the header.
func (e *HeaderExtractor) Extract(r *http.Request) (string, error) {
	value := r.Header.Get(e.header)
	if value == "" {
		return "", ErrMissingAPIKeyHeader
	}
	return value, nil
}

// ExtractorFunc is a function type that implements Extractor.
type ExtractorFunc func(r *http.Request) (string, error)

// Extract implements Extractor.
func (f ExtractorFunc) Extract(r *http.Request) (string, error) {
	return f(r)
}
