package auth

import (
	"fmt"
	"strings"
)

// Mode selects which trust mechanism the gate applies.
type Mode string

// Auth modes. Values match the auth.mode configuration strings.
const (
	ModeOpen        Mode = "open"
	ModeAPIKey      Mode = "apikey"
	ModeJWT         Mode = "jwt"
	ModeAPIKeyOrJWT Mode = "apikey_or_jwt"
)

// ParseMode parses a configured mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeOpen, ModeAPIKey, ModeJWT, ModeAPIKeyOrJWT:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMode, s)
	}
}

// String implements fmt.Stringer.
func (m Mode) String() string {
	return string(m)
}

// requires returns the verifier types the mode consults, in order.
func (m Mode) requires() []AuthType {
	switch m {
	case ModeAPIKey:
		return []AuthType{AuthTypeAPIKey}
	case ModeJWT:
		return []AuthType{AuthTypeJWT}
	case ModeAPIKeyOrJWT:
		return []AuthType{AuthTypeAPIKey, AuthTypeJWT}
	default:
		return nil
	}
}
