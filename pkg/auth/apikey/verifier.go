// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package apikey verifies x-api-key credentials against the identity API.
package apikey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stacklok/mcp-authbridge/pkg/auth"
	bridgeerrors "github.com/stacklok/mcp-authbridge/pkg/errors"
	"github.com/stacklok/mcp-authbridge/pkg/networking"
)

// DefaultTimeout is the verification request timeout when none is configured.
const DefaultTimeout = 10 * time.Second

const maxResponseSize = 16 * 1024

// ErrNotConfigured is the cause of every rejection when no identity API is set.
var ErrNotConfigured = errors.New("API key verification is not configured")

//go:generate mockgen -destination=mocks/mock_verifier.go -package=mocks -source=verifier.go Verifier

// Verifier resolves an API key to a principal.
type Verifier interface {
	Verify(ctx context.Context, apiKey string) (*auth.Principal, error)
}

type verifyRequest struct {
	Strategy string `json:"strategy"`
	APIKey   string `json:"apikey"`
}

type verifyResponse struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Type      string `json:"type"`
}

// HTTPVerifier posts API keys to the identity API's authentication endpoint.
type HTTPVerifier struct {
	url    string
	client networking.HTTPClient
}

var _ Verifier = (*HTTPVerifier)(nil)

// NewHTTPVerifier creates a verifier for verifyURL. An empty URL yields a
// verifier that rejects every key. A nil client is replaced by one using
// timeout.
func NewHTTPVerifier(verifyURL string, client networking.HTTPClient, timeout time.Duration) (*HTTPVerifier, error) {
	if client == nil {
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c, err := networking.NewHttpClientBuilder().
			WithPrivateIPs(true).
			WithInsecureHTTP(true).
			WithTimeout(timeout).
			Build()
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
		client = c
	}
	return &HTTPVerifier{url: verifyURL, client: client}, nil
}

// Verify returns an API key principal, or an InvalidAPIKey error.
func (v *HTTPVerifier) Verify(ctx context.Context, apiKey string) (*auth.Principal, error) {
	if v.url == "" {
		return nil, bridgeerrors.NewInvalidAPIKeyError("Invalid API key", ErrNotConfigured)
	}

	result, err := networking.FetchJSON[verifyResponse](ctx, v.client, v.url,
		networking.WithJSONBody(verifyRequest{Strategy: "apikey", APIKey: apiKey}),
		networking.WithMaxResponseSize(maxResponseSize),
	)
	if err != nil {
		return nil, bridgeerrors.NewInvalidAPIKeyError("Invalid API key", err)
	}

	user := result.Data
	if user.Email == "" {
		return nil, bridgeerrors.NewInvalidAPIKeyError("Invalid API key", errors.New("identity API returned no email"))
	}
	return auth.NewAPIKeyPrincipal(user.Email, user.FirstName, user.LastName, user.Type), nil
}
