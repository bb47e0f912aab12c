// Package oidc adapts an OpenID Connect provider (Keycloak) to middleware.Verifier.
package oidc

import (
	"context"
	"fmt"
	"strings"

	"github.com/castboard/castboard/pkg/middleware"
	"github.com/coreos/go-oidc/v3/oidc"
)

// Verifier wraps the OIDC provider and token verifier
type Verifier struct {
	verifier *oidc.IDTokenVerifier
}

// KeycloakIssuer returns the issuer URL of a Keycloak realm. An empty realm
// means baseURL already points at the realm.
func KeycloakIssuer(baseURL, realm string) string {
	baseURL = strings.TrimRight(baseURL, "/")
	if realm == "" {
		return baseURL
	}
	return baseURL + "/realms/" + realm
}

// NewVerifier discovers the provider at issuer and verifies tokens issued to clientID
func NewVerifier(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	return &Verifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

// Verify checks signature, issuer, audience and expiry of raw.
func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return idToken, nil
}
