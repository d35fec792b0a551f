package jwt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DiscoveryPath is appended to the issuer to locate its metadata.
const DiscoveryPath = "/.well-known/openid-configuration"

// DiscoveryDocument holds the parts of the OIDC discovery document the
// gateway uses.
type DiscoveryDocument struct {
	// Issuer is the issuer identifier.
	Issuer string `json:"issuer"`

	// JWKSUri is the JWKS endpoint URL.
	JWKSUri string `json:"jwks_uri"`

	// IDTokenSigningAlgValuesSupported is the list of supported signing algorithms.
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported,omitempty"`
}

// DiscoveryURL returns the discovery URL of issuer.
func DiscoveryURL(issuer string) string {
	return strings.TrimRight(issuer, "/") + DiscoveryPath
}

// Discover fetches and checks the discovery document of issuer.
func Discover(ctx context.Context, client *http.Client, issuer string) (*DiscoveryDocument, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, DiscoveryURL(issuer), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", ErrDiscoveryFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch discovery document: %w", ErrDiscoveryFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: discovery endpoint returned status %d", ErrDiscoveryFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", ErrDiscoveryFailed, err)
	}

	var doc DiscoveryDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: failed to parse discovery document: %w", ErrDiscoveryFailed, err)
	}

	if strings.TrimRight(doc.Issuer, "/") != strings.TrimRight(issuer, "/") {
		return nil, fmt.Errorf("%w: issuer mismatch: expected %s, got %s", ErrDiscoveryFailed, issuer, doc.Issuer)
	}
	if doc.JWKSUri == "" {
		return nil, fmt.Errorf("%w: discovery document has no jwks_uri", ErrDiscoveryFailed)
	}

	return &doc, nil
}
