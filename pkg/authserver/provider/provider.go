// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package provider implements the OAuth server provider that fronts the
// upstream identity provider.
//
// The bridge never issues tokens of its own. Authorization redirects straight
// to the upstream with the bridge's upstream credentials, and the tokens the
// upstream returns are handed to the MCP client unchanged. PKCE verification
// is left to the upstream, which receives the client's challenge and later
// its verifier.
package provider

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/stacklok/mcp-authbridge/pkg/authserver/clients"
	"github.com/stacklok/mcp-authbridge/pkg/authserver/upstream"
	bridgeerrors "github.com/stacklok/mcp-authbridge/pkg/errors"
	"github.com/stacklok/mcp-authbridge/pkg/logger"
	"github.com/stacklok/mcp-authbridge/pkg/oauth"
	"github.com/stacklok/mcp-authbridge/pkg/storage"
)

// Config is the immutable provider configuration.
type Config struct {
	// UpstreamClientID is the audience every verified token must carry.
	UpstreamClientID string

	// AllowedEmailDomain restricts sign-in to one email domain, with or
	// without the leading "@".
	AllowedEmailDomain string
}

// AuthorizationParams are the validated parameters of an /authorize request.
type AuthorizationParams struct {
	RedirectURI   string
	CodeChallenge string
	State         string
	Scopes        []string

	// Resource is accepted from clients but never sent upstream.
	Resource string
}

// TokenInfo describes a verified access token.
type TokenInfo struct {
	Token    string
	ClientID string
	Scopes   []string

	// ExpiresAt is in epoch seconds. Zero when the upstream reported no expiry.
	ExpiresAt int64

	Email   string
	Subject string

	// Extra holds the remaining upstream token info fields.
	Extra map[string]any
}

// Provider drives the authorization code and refresh flows against the upstream.
type Provider struct {
	upstreamClientID string
	emailSuffix      string

	upstream upstream.IdentityProvider
	clients  clients.Resolver
	bindings storage.BindingStore

	now func() time.Time
}

// New creates a Provider.
func New(
	cfg Config,
	idp upstream.IdentityProvider,
	registry clients.Resolver,
	bindings storage.BindingStore,
) (*Provider, error) {
	if cfg.UpstreamClientID == "" {
		return nil, errors.New("upstream client id is required")
	}
	suffix := normalizeDomain(cfg.AllowedEmailDomain)
	if suffix == "" {
		return nil, errors.New("allowed email domain is required")
	}
	if idp == nil || registry == nil || bindings == nil {
		return nil, errors.New("upstream provider, client registry and binding store are required")
	}

	return &Provider{
		upstreamClientID: cfg.UpstreamClientID,
		emailSuffix:      suffix,
		upstream:         idp,
		clients:          registry,
		bindings:         bindings,
		now:              time.Now,
	}, nil
}

func normalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	if d == "" || strings.HasPrefix(d, "@") {
		return d
	}
	return "@" + d
}

// Clients returns the client registry the provider resolves clients with.
func (p *Provider) Clients() clients.Resolver {
	return p.clients
}

// SkipLocalPKCEValidation reports that code verifiers are checked upstream.
func (*Provider) SkipLocalPKCEValidation() bool {
	return true
}

// Authorize returns the upstream URL the user agent is redirected to.
func (p *Provider) Authorize(_ context.Context, client *oauth.ClientMetadata, params AuthorizationParams) (string, error) {
	if params.Resource != "" {
		logger.Debugw("dropping resource indicator for upstream authorization",
			"client_id", client.ClientID,
			"resource", params.Resource,
		)
	}

	redirectURL, err := p.upstream.AuthorizationURL(upstream.AuthorizationRequest{
		RedirectURI:   params.RedirectURI,
		CodeChallenge: params.CodeChallenge,
		State:         params.State,
	})
	if err != nil {
		return "", bridgeerrors.NewInvalidArgumentError("failed to build upstream authorization URL", err)
	}
	return redirectURL, nil
}

// ChallengeForAuthorizationCode always returns an empty challenge; the
// upstream verifies the code verifier.
func (*Provider) ChallengeForAuthorizationCode(_ context.Context, _ *oauth.ClientMetadata, _ string) (string, error) {
	return "", nil
}

// ExchangeAuthorizationCode exchanges code upstream, checks who signed in and
// records the user binding the first time a user authenticates against client.
func (p *Provider) ExchangeAuthorizationCode(
	ctx context.Context,
	client *oauth.ClientMetadata,
	code, codeVerifier, redirectURI string,
) (*upstream.Tokens, error) {
	tokens, err := p.upstream.ExchangeCode(ctx, code, codeVerifier, redirectURI)
	if err != nil {
		return nil, err
	}
	if tokens.AccessToken == "" {
		return nil, bridgeerrors.NewUpstreamMissingFieldError("access_token")
	}

	info, err := p.upstream.TokenInfo(ctx, tokens.AccessToken)
	if err != nil {
		return nil, err
	}
	if info.Subject == "" {
		return nil, bridgeerrors.NewUpstreamMissingFieldError("sub")
	}
	if info.Email == "" {
		return nil, bridgeerrors.NewUpstreamMissingFieldError("email")
	}
	if !p.emailAllowed(info.Email) {
		logger.Warnw("sign-in outside the allowed domain rejected", "client_id", client.ClientID)
		return nil, bridgeerrors.NewDomainRestrictedError(p.emailSuffix)
	}

	mechanism := client.Mechanism()
	created, err := p.bindings.RecordIfAbsent(ctx, mechanism, storage.UserBinding{
		ClientID:       client.ClientID,
		UpstreamUserID: info.Subject,
		Email:          info.Email,
		TokenInfo:      info.Raw,
		UpdatedAt:      p.now().UTC(),
	})
	if err != nil {
		return nil, bridgeerrors.NewInternalError("failed to record user binding", err)
	}
	if created {
		logger.Infow("new user authenticated",
			"email", info.Email,
			"client_id", client.ClientID,
			"upstream_user_id", info.Subject,
			"mechanism", mechanism.String(),
		)
	}

	return tokens, nil
}

// ExchangeRefreshToken refreshes an upstream access token.
func (p *Provider) ExchangeRefreshToken(
	ctx context.Context,
	_ *oauth.ClientMetadata,
	refreshToken string,
	scopes []string,
) (*upstream.Tokens, error) {
	return p.upstream.RefreshToken(ctx, refreshToken, scopes)
}

// VerifyAccessToken checks that token was issued to the bridge's upstream
// client for a user of the allowed domain.
func (p *Provider) VerifyAccessToken(ctx context.Context, token string) (*TokenInfo, error) {
	info, err := p.upstream.TokenInfo(ctx, token)
	if err != nil {
		return nil, err
	}
	if info.Audience != p.upstreamClientID {
		return nil, bridgeerrors.NewAudienceMismatchError("token was not issued to this client")
	}
	if !p.emailAllowed(info.Email) {
		return nil, bridgeerrors.NewDomainRestrictedError(p.emailSuffix)
	}

	result := &TokenInfo{
		Token:     token,
		ClientID:  info.Audience,
		Scopes:    info.Scopes,
		Email:     info.Email,
		Subject:   info.Subject,
		Extra:     map[string]any{},
	}
	if !info.Expiry.IsZero() {
		result.ExpiresAt = info.Expiry.UnixMilli() / 1000
	}
	if info.AuthorizedParty != "" {
		result.Extra["azp"] = info.AuthorizedParty
	}
	if info.AccessType != "" {
		result.Extra["access_type"] = info.AccessType
	}
	result.Extra["email_verified"] = info.EmailVerified
	if result.Scopes == nil {
		result.Scopes = []string{}
	}
	return result, nil
}

func (p *Provider) emailAllowed(email string) bool {
	return email != "" && strings.HasSuffix(strings.ToLower(email), p.emailSuffix)
}
