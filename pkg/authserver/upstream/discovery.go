// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/stacklok/mcp-authbridge/pkg/logger"
)

// Endpoints are the upstream URLs resolved by discovery.
type Endpoints struct {
	AuthURL  string
	TokenURL string
}

// Discover resolves the authorization and token endpoints of issuer through
// OIDC discovery. The discovered endpoints must use the issuer's scheme.
func Discover(ctx context.Context, issuer string, client *http.Client) (*Endpoints, error) {
	if client != nil {
		ctx = oidc.ClientContext(ctx, client)
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC endpoints: %w", err)
	}

	endpoint := provider.Endpoint()
	endpoints := &Endpoints{
		AuthURL:  endpoint.AuthURL,
		TokenURL: endpoint.TokenURL,
	}
	if err := validateEndpointOrigins(issuer, endpoints); err != nil {
		return nil, fmt.Errorf("invalid discovery document: %w", err)
	}

	logger.Debugw("upstream endpoints discovered",
		"issuer", issuer,
		"authorization_endpoint", endpoints.AuthURL,
		"token_endpoint", endpoints.TokenURL,
	)

	return endpoints, nil
}

// validateEndpointOrigins rejects endpoints whose scheme differs from the
// issuer's. Google serves its token endpoint from another host, so hosts are
// not compared.
func validateEndpointOrigins(issuer string, endpoints *Endpoints) error {
	issuerURL, err := url.Parse(issuer)
	if err != nil {
		return fmt.Errorf("invalid issuer: %w", err)
	}
	for name, raw := range map[string]string{
		"authorization_endpoint": endpoints.AuthURL,
		"token_endpoint":         endpoints.TokenURL,
	} {
		u, err := url.Parse(raw)
		if raw == "" || err != nil {
			return fmt.Errorf("%s is missing or malformed", name)
		}
		if u.Scheme != issuerURL.Scheme {
			return fmt.Errorf("%s scheme %q does not match issuer scheme %q", name, u.Scheme, issuerURL.Scheme)
		}
	}
	return nil
}
