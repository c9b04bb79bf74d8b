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

//go:generate mockgen -destination=mocks/mock_provider.go -package=mocks -source=types.go IdentityProvider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"time"
)

// AuthorizationRequest carries the per-request parameters of an upstream
// authorization redirect.
type AuthorizationRequest struct {
	// RedirectURI is the MCP client's callback; the upstream redirects there directly.
	RedirectURI string

	// CodeChallenge is the client's S256 PKCE challenge, forwarded unchanged.
	CodeChallenge string

	// State is forwarded only when non-empty.
	State string
}

// Tokens represents the tokens obtained from the upstream Identity Provider.
// The JSON form is the token response returned to MCP clients.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`

	// Expiry is when the access token expires. Zero when the upstream did not say.
	Expiry time.Time `json:"-"`
}

// normalizeExpiresIn recomputes ExpiresIn as whole seconds left until Expiry.
func (t *Tokens) normalizeExpiresIn(now time.Time) {
	if t.Expiry.IsZero() {
		return
	}
	t.ExpiresIn = int64(math.Floor(t.Expiry.Sub(now).Seconds()))
}

// TokenInfo is the upstream's description of an access token.
type TokenInfo struct {
	// Audience is the upstream client the token was issued to.
	Audience string

	// Subject is the stable upstream user id.
	Subject string

	Email         string
	EmailVerified bool

	// AuthorizedParty is the azp claim.
	AuthorizedParty string
	AccessType      string

	// Scope is the space separated scope string and Scopes its split form.
	Scope  string
	Scopes []string

	// Expiry is the absolute expiry with millisecond precision.
	Expiry time.Time

	// Raw is the unmodified upstream response.
	Raw json.RawMessage
}

// IdentityProvider handles communication with the upstream Identity Provider.
type IdentityProvider interface {
	// AuthorizationURL builds the URL to redirect the user to the upstream IdP.
	AuthorizationURL(req AuthorizationRequest) (string, error)

	// ExchangeCode exchanges an authorization code for tokens with the upstream IdP.
	ExchangeCode(ctx context.Context, code, codeVerifier, redirectURI string) (*Tokens, error)

	// RefreshToken exchanges a refresh token for a new access token.
	RefreshToken(ctx context.Context, refreshToken string, scopes []string) (*Tokens, error)

	// TokenInfo looks up the owner and audience of an access token.
	TokenInfo(ctx context.Context, accessToken string) (*TokenInfo, error)
}

// Config holds the upstream client credentials and endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	Scopes       []string

	AuthURL      string
	TokenURL     string
	TokenInfoURL string
}

// Validate checks that Config has all required fields and valid values.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return errors.New("client_id is required")
	}
	if c.ClientSecret == "" {
		return errors.New("client_secret is required")
	}
	for name, endpoint := range map[string]string{
		"authorization endpoint": c.AuthURL,
		"token endpoint":         c.TokenURL,
		"tokeninfo endpoint":     c.TokenInfoURL,
	} {
		u, err := url.Parse(endpoint)
		if endpoint == "" || err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, endpoint)
		}
	}
	return nil
}
