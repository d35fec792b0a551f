package apikey

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/strategyforge/gateway/internal/observability"
)

// Hash algorithm constants.
const (
	HashAlgBcrypt    = "bcrypt"
	HashAlgPlaintext = "plaintext"
)

// KeyID is the principal label of an identity admitted by API key.
const KeyID = "api-key"

// Common errors for API key validation.
var (
	// ErrInvalidAPIKey indicates that the API key is invalid.
	ErrInvalidAPIKey = errors.New("invalid API key")

	// ErrEmptyAPIKey indicates that the API key is empty.
	ErrEmptyAPIKey = errors.New("API key is empty")

	// ErrNoSecret indicates that no secret was configured.
	ErrNoSecret = errors.New("API key secret is not configured")
)

// bcryptPrefixes mark a configured secret as a bcrypt hash.
var bcryptPrefixes = []string{"$2a$", "$2b$", "$2y$"}

// KeyInfo contains information about a validated API key.
type KeyInfo struct {
	// ID is the principal label for the key.
	ID string `json:"id"`

	// Roles is a list of roles granted to the key.
	Roles []string `json:"roles,omitempty"`
}

// Validator validates API keys.
type Validator interface {
	// Validate validates an API key and returns key information.
	Validate(ctx context.Context, key string) (*KeyInfo, error)
}

// validator implements the Validator interface.
type validator struct {
	secret  []byte
	hashAlg string
	logger  observability.Logger
	metrics *Metrics
}

// ValidatorOption is a functional option for the validator.
type ValidatorOption func(*validator)

// WithValidatorLogger sets the logger for the validator.
func WithValidatorLogger(logger observability.Logger) ValidatorOption {
	return func(v *validator) {
		v.logger = logger
	}
}

// WithValidatorMetrics sets the metrics for the validator.
func WithValidatorMetrics(metrics *Metrics) ValidatorOption {
	return func(v *validator) {
		v.metrics = metrics
	}
}

// NewValidator creates a validator for secret. A blank secret is an error:
// callers disable API key authentication instead of configuring one.
func NewValidator(secret string, opts ...ValidatorOption) (Validator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrNoSecret
	}

	v := &validator{
		secret:  []byte(secret),
		hashAlg: DetectHashAlg(secret),
		logger:  observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.metrics == nil {
		v.metrics = GetSharedMetrics()
	}
	return v, nil
}

// DetectHashAlg reports whether secret is a bcrypt hash or plaintext.
func DetectHashAlg(secret string) string {
	for _, prefix := range bcryptPrefixes {
		if strings.HasPrefix(secret, prefix) {
			return HashAlgBcrypt
		}
	}
	return HashAlgPlaintext
}

// Validate implements Validator.
func (v *validator) Validate(_ context.Context, key string) (*KeyInfo, error) {
	start := time.Now()

	if key == "" {
		v.metrics.RecordValidation("error", v.hashAlg, time.Since(start))
		return nil, ErrEmptyAPIKey
	}

	if !v.matches(key) {
		v.metrics.RecordValidation("error", v.hashAlg, time.Since(start))
		v.logger.Debug("API key rejected", observability.String("hash_alg", v.hashAlg))
		return nil, ErrInvalidAPIKey
	}

	v.metrics.RecordValidation("success", v.hashAlg, time.Since(start))
	return &KeyInfo{ID: KeyID, Roles: []string{"user"}}, nil
}

func (v *validator) matches(key string) bool {
	if v.hashAlg == HashAlgBcrypt {
		return bcrypt.CompareHashAndPassword(v.secret, []byte(key)) == nil
	}
	return subtle.ConstantTimeCompare(v.secret, []byte(key)) == 1
}

// Ensure validator implements Validator.
var _ Validator = (*validator)(nil)
