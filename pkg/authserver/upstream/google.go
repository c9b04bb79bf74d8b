// Copyright 2025 Stacklok, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	bridgeerrors "github.com/stacklok/mcp-authbridge/pkg/errors"
	"github.com/stacklok/mcp-authbridge/pkg/logger"
	"github.com/stacklok/mcp-authbridge/pkg/networking"
	"github.com/stacklok/mcp-authbridge/pkg/oauth"
)

// maxResponseSize caps upstream token and tokeninfo responses.
const maxResponseSize = 64 * 1024

// defaultTimeout applies when no HTTP client is injected.
const defaultTimeout = 10 * time.Second

// Compile-time interface compliance check.
var _ IdentityProvider = (*GoogleProvider)(nil)

// GoogleProvider implements IdentityProvider against Google's OAuth 2.0 endpoints.
type GoogleProvider struct {
	config       *Config
	oauth2Config *oauth2.Config
	httpClient   *http.Client
	now          func() time.Time
}

// Option configures a GoogleProvider.
type Option func(*GoogleProvider)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *GoogleProvider) {
		p.httpClient = client
	}
}

// NewGoogleProvider creates a new upstream provider from the given config.
func NewGoogleProvider(config *Config, opts ...Option) (*GoogleProvider, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	p := &GoogleProvider{
		config: config,
		oauth2Config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Scopes:       config.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   config.AuthURL,
				TokenURL:  config.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		now: time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.httpClient == nil {
		client, err := networking.NewHttpClientBuilder().WithTimeout(defaultTimeout).Build()
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
		p.httpClient = client
	}

	logger.Infow("upstream provider created",
		"authorization_endpoint", config.AuthURL,
		"token_endpoint", config.TokenURL,
		"client_id", config.ClientID,
	)

	return p, nil
}

// AuthorizationURL builds the URL to redirect the user to the upstream IdP.
// Offline access and the consent prompt are always requested so the upstream
// issues a refresh token.
func (p *GoogleProvider) AuthorizationURL(req AuthorizationRequest) (string, error) {
	if req.RedirectURI == "" {
		return "", errors.New("redirect_uri is required")
	}
	if req.CodeChallenge == "" {
		return "", errors.New("code_challenge is required")
	}

	logger.Debugw("building authorization URL",
		"authorization_endpoint", p.config.AuthURL,
		"has_state", req.State != "",
	)

	conf := *p.oauth2Config
	conf.RedirectURL = req.RedirectURI

	return conf.AuthCodeURL(req.State,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("code_challenge", req.CodeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", oauth.PKCEChallengeMethodS256),
	), nil
}

// ExchangeCode exchanges an authorization code for tokens with the upstream IdP.
func (p *GoogleProvider) ExchangeCode(ctx context.Context, code, codeVerifier, redirectURI string) (*Tokens, error) {
	if code == "" {
		return nil, bridgeerrors.NewInvalidArgumentError("authorization code is required", nil)
	}

	logger.Infow("exchanging authorization code for tokens",
		"token_endpoint", p.config.TokenURL,
		"has_pkce_verifier", codeVerifier != "",
	)

	conf := *p.oauth2Config
	conf.RedirectURL = redirectURI

	var opts []oauth2.AuthCodeOption
	if codeVerifier != "" {
		opts = append(opts, oauth2.VerifierOption(codeVerifier))
	}

	token, err := conf.Exchange(p.clientContext(ctx), code, opts...)
	if err != nil {
		return nil, p.exchangeError(err)
	}

	tokens := tokensFromOAuth2(token)
	if tokens.AccessToken == "" {
		return nil, bridgeerrors.NewUpstreamMissingFieldError("access_token")
	}
	tokens.normalizeExpiresIn(p.now())

	logger.Infow("authorization code exchange successful",
		"has_refresh_token", tokens.RefreshToken != "",
		"expires_in", tokens.ExpiresIn,
	)

	return tokens, nil
}

// refreshResponse is the upstream refresh grant payload.
type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	Scope        string `json:"scope"`
	ExpiresIn    int64  `json:"expires_in"`
}

// RefreshToken exchanges a refresh token for a new access token. Any non-2xx
// answer is an UpstreamRefreshFailed error and no tokens are returned.
func (p *GoogleProvider) RefreshToken(ctx context.Context, refreshToken string, scopes []string) (*Tokens, error) {
	if refreshToken == "" {
		return nil, bridgeerrors.NewInvalidArgumentError("refresh token is required", nil)
	}

	logger.Infow("refreshing tokens",
		"token_endpoint", p.config.TokenURL,
	)

	params := url.Values{
		"grant_type":    {oauth.GrantTypeRefreshToken},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"refresh_token": {refreshToken},
	}
	if len(scopes) > 0 {
		params.Set("scopes", strings.Join(scopes, " "))
	}

	result, err := networking.FetchJSONWithForm[refreshResponse](ctx, p.httpClient, p.config.TokenURL, params,
		networking.WithMaxResponseSize(maxResponseSize),
	)
	if err != nil {
		if networking.IsHTTPError(err, 0) {
			logger.Errorw("token refresh failed", "error", err)
			return nil, bridgeerrors.NewUpstreamRefreshFailedError(err)
		}
		return nil, bridgeerrors.NewUpstreamError("token refresh request failed", err)
	}

	resp := result.Data
	if resp.AccessToken == "" {
		return nil, bridgeerrors.NewUpstreamMissingFieldError("access_token")
	}

	now := p.now()
	tokens := &Tokens{
		AccessToken:  resp.AccessToken,
		TokenType:    resp.TokenType,
		RefreshToken: resp.RefreshToken,
		IDToken:      resp.IDToken,
		Scope:        resp.Scope,
		ExpiresIn:    resp.ExpiresIn,
	}
	if resp.ExpiresIn > 0 {
		tokens.Expiry = now.Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	tokens.normalizeExpiresIn(now)

	logger.Infow("token refresh successful",
		"has_new_refresh_token", tokens.RefreshToken != "",
		"expires_in", tokens.ExpiresIn,
	)

	return tokens, nil
}

// clientContext makes x/oauth2 use the provider's HTTP client.
func (p *GoogleProvider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// exchangeError converts an x/oauth2 failure into the bridge taxonomy.
func (p *GoogleProvider) exchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		httpErr := networking.ErrorFromResponse(retrieveErr.Response.StatusCode, p.config.TokenURL, retrieveErr.Body)
		if retrieveErr.ErrorCode != "" {
			httpErr.Code = retrieveErr.ErrorCode
		}
		return bridgeerrors.NewUpstreamError("authorization code exchange failed", httpErr)
	}
	return bridgeerrors.NewUpstreamError("authorization code exchange failed", err)
}

func tokensFromOAuth2(token *oauth2.Token) *Tokens {
	tokens := &Tokens{
		AccessToken:  token.AccessToken,
		TokenType:    token.Type(),
		RefreshToken: token.RefreshToken,
		ExpiresIn:    token.ExpiresIn,
		Expiry:       token.Expiry,
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		tokens.IDToken = idToken
	}
	if scope, ok := token.Extra("scope").(string); ok {
		tokens.Scope = scope
	}
	return tokens
}
