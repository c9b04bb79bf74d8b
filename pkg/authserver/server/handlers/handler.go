// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/mcp-authbridge/pkg/authserver/clients"
	"github.com/stacklok/mcp-authbridge/pkg/authserver/provider"
	"github.com/stacklok/mcp-authbridge/pkg/authserver/upstream"
	"github.com/stacklok/mcp-authbridge/pkg/oauth"
)

// OAuthProvider is the part of provider.Provider the handlers drive.
type OAuthProvider interface {
	Clients() clients.Resolver
	Authorize(ctx context.Context, client *oauth.ClientMetadata, params provider.AuthorizationParams) (string, error)
	ExchangeAuthorizationCode(
		ctx context.Context, client *oauth.ClientMetadata, code, codeVerifier, redirectURI string,
	) (*upstream.Tokens, error)
	ExchangeRefreshToken(
		ctx context.Context, client *oauth.ClientMetadata, refreshToken string, scopes []string,
	) (*upstream.Tokens, error)
	VerifyAccessToken(ctx context.Context, token string) (*provider.TokenInfo, error)
}

var _ OAuthProvider = (*provider.Provider)(nil)

// ClientRegistrar persists dynamically registered clients.
type ClientRegistrar interface {
	Register(ctx context.Context, client *oauth.ClientMetadata) (*oauth.ClientMetadata, error)
}

// Config describes the public shape of the authorization server.
type Config struct {
	// Issuer is the base URL of the bridge, without a trailing slash.
	Issuer string

	// ResourcePath is the path of the protected MCP endpoint, e.g. "/mcp".
	ResourcePath string

	// ScopesSupported is advertised in both metadata documents and bounds
	// the scope a client may register.
	ScopesSupported []string
}

// Handler provides HTTP handlers for the OAuth authorization server endpoints.
type Handler struct {
	provider  OAuthProvider
	registrar ClientRegistrar
	config    Config
	now       func() time.Time
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(p OAuthProvider, registrar ClientRegistrar, cfg Config) *Handler {
	return &Handler{
		provider:  p,
		registrar: registrar,
		config:    cfg,
		now:       time.Now,
	}
}

// Routes returns a router with all OAuth endpoints and metadata documents registered.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	h.OAuthRoutes(r)
	h.WellKnownRoutes(r)
	return r
}

// OAuthRoutes registers the authorize, token, register and introspect endpoints.
func (h *Handler) OAuthRoutes(r chi.Router) {
	r.Get("/authorize", h.AuthorizeHandler)
	r.Post("/authorize", h.AuthorizeHandler)
	r.Post("/token", h.TokenHandler)
	r.Post("/register", h.RegisterClientHandler)
	r.Post("/introspect", h.IntrospectHandler)
}

// WellKnownRoutes registers the RFC 8414 and RFC 9728 metadata documents.
// The protected resource document is served both at the bare well-known path
// and at the path suffixed with the resource path.
func (h *Handler) WellKnownRoutes(r chi.Router) {
	r.Get(oauth.WellKnownAuthorizationServerPath, h.OAuthDiscoveryHandler)

	r.Get(oauth.WellKnownProtectedResourcePath, h.ProtectedResourceHandler)
	r.Options(oauth.WellKnownProtectedResourcePath, h.ProtectedResourceHandler)
	if h.config.ResourcePath != "" && h.config.ResourcePath != "/" {
		r.Get(oauth.WellKnownProtectedResourcePath+h.config.ResourcePath, h.ProtectedResourceHandler)
		r.Options(oauth.WellKnownProtectedResourcePath+h.config.ResourcePath, h.ProtectedResourceHandler)
	}
}
