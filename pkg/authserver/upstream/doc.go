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

// Package upstream talks to the single upstream Identity Provider the bridge
// delegates identity assertion to.
//
// # Architecture
//
// The package is designed around the IdentityProvider interface, which
// captures the four calls the bridge makes against the upstream:
//
//   - AuthorizationURL: build the redirect URL for user authentication
//   - ExchangeCode: exchange an authorization code for tokens
//   - RefreshToken: refresh an access token with a refresh token
//   - TokenInfo: look up who an access token belongs to
//
// GoogleProvider is the only implementation. The authorize URL and the code
// exchange go through golang.org/x/oauth2. The refresh and tokeninfo calls are
// plain form POSTs so that their failure modes stay distinguishable.
//
// # Errors
//
// Every upstream HTTP failure is returned as an UpstreamError (see
// pkg/errors) wrapping a networking.HTTPError that carries the upstream status
// and a body preview. A refresh rejected by the upstream is an
// UpstreamRefreshFailed error instead. No call is retried.
//
// # Discovery
//
// When an issuer is configured, Discover resolves the authorization and token
// endpoints through OIDC discovery instead of using the static Google URLs.
//
// # Usage
//
//	provider, err := upstream.NewGoogleProvider(&upstream.Config{
//	    ClientID:     "your-client-id",
//	    ClientSecret: "your-client-secret",
//	    Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email"},
//	    AuthURL:      "https://accounts.google.com/o/oauth2/v2/auth",
//	    TokenURL:     "https://oauth2.googleapis.com/token",
//	    TokenInfoURL: "https://oauth2.googleapis.com/tokeninfo",
//	})
//	if err != nil {
//	    return err
//	}
//
//	authURL, err := provider.AuthorizationURL(upstream.AuthorizationRequest{
//	    RedirectURI:   "https://client.example.com/callback",
//	    CodeChallenge: challenge,
//	    State:         state,
//	})
package upstream
