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

package registration

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/mcp-authbridge/pkg/oauth"
)

func TestValidateRedirectURI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		uri         string
		expectError bool
	}{
		// HTTPS - allowed for any host
		{name: "https with any host", uri: "https://example.com/callback"},
		{name: "https with custom domain", uri: "https://myapp.example.org:8443/oauth/callback"},

		// HTTP loopback addresses - allowed per RFC 8252
		{name: "http with 127.0.0.1", uri: "http://127.0.0.1/callback"},
		{name: "http with 127.0.0.1 and port", uri: "http://127.0.0.1:8080/callback"},
		{name: "http with localhost and port", uri: "http://localhost:9000/callback"},

		// HTTP non-loopback - not allowed
		{name: "http with non-loopback host", uri: "http://example.com/callback", expectError: true},
		{name: "http with private IP", uri: "http://192.168.1.1/callback", expectError: true},

		// Invalid URI format
		{name: "missing scheme", uri: "://invalid", expectError: true},
		{name: "relative", uri: "/callback", expectError: true},
		{name: "fragment", uri: "https://example.com/cb#frag", expectError: true},
		{name: "javascript scheme", uri: "javascript:alert(1)", expectError: true},

		// Private-use URI schemes - allowed for native apps per RFC 8252 Section 7.1
		{name: "cursor scheme allowed", uri: "cursor://anysphere.cursor-retrieval/oauth/callback"},
		{name: "vscode scheme allowed", uri: "vscode://callback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateRedirectURI(tt.uri)

			if tt.expectError {
				require.NotNil(t, err, "expected error for URI %q", tt.uri)
				assert.Equal(t, DCRErrorInvalidRedirectURI, err.Error)
			} else {
				assert.Nil(t, err, "unexpected error for URI %q: %v", tt.uri, err)
			}
		})
	}
}

func TestValidateDCRRequest(t *testing.T) {
	t.Parallel()

	supportedScopes := []string{"email", "profile"}

	tests := []struct {
		name               string
		request            *oauth.ClientMetadata
		errorCode          string
		expectedAuthMethod string
		expectedGrants     []string
		expectedResponses  []string
	}{
		{
			name:               "valid minimal request defaults to a confidential client",
			request:            &oauth.ClientMetadata{RedirectURIs: []string{"https://client.example.com/cb"}},
			expectedAuthMethod: oauth.TokenEndpointAuthMethodClientSecretPost,
			expectedGrants:     defaultGrantTypes,
			expectedResponses:  defaultResponseTypes,
		},
		{
			name: "public client",
			request: &oauth.ClientMetadata{
				RedirectURIs:            []string{"http://localhost:8080/callback"},
				ClientName:              "My Test Client",
				TokenEndpointAuthMethod: "none",
				GrantTypes:              []string{"authorization_code"},
				ResponseTypes:           []string{"code"},
				Scope:                   "email",
			},
			expectedAuthMethod: oauth.TokenEndpointAuthMethodNone,
			expectedGrants:     []string{"authorization_code"},
			expectedResponses:  []string{"code"},
		},
		{
			name:      "empty redirect_uris",
			request:   &oauth.ClientMetadata{},
			errorCode: DCRErrorInvalidRedirectURI,
		},
		{
			name: "too many redirect URIs",
			request: &oauth.ClientMetadata{RedirectURIs: []string{
				"http://127.0.0.1:1/cb", "http://127.0.0.1:2/cb", "http://127.0.0.1:3/cb",
				"http://127.0.0.1:4/cb", "http://127.0.0.1:5/cb", "http://127.0.0.1:6/cb",
				"http://127.0.0.1:7/cb", "http://127.0.0.1:8/cb", "http://127.0.0.1:9/cb",
				"http://127.0.0.1:10/cb", "http://127.0.0.1:11/cb",
			}},
			errorCode: DCRErrorInvalidRedirectURI,
		},
		{
			name:      "invalid redirect URI in list",
			request:   &oauth.ClientMetadata{RedirectURIs: []string{"http://127.0.0.1/cb", "http://example.com/cb"}},
			errorCode: DCRErrorInvalidRedirectURI,
		},
		{
			name: "client_name too long",
			request: &oauth.ClientMetadata{
				RedirectURIs: []string{"https://client.example.com/cb"},
				ClientName:   strings.Repeat("a", MaxClientNameLength+1),
			},
			errorCode: DCRErrorInvalidClientMetadata,
		},
		{
			name: "unsupported auth method",
			request: &oauth.ClientMetadata{
				RedirectURIs:            []string{"https://client.example.com/cb"},
				TokenEndpointAuthMethod: "private_key_jwt",
			},
			errorCode: DCRErrorInvalidClientMetadata,
		},
		{
			name: "refresh_token only",
			request: &oauth.ClientMetadata{
				RedirectURIs: []string{"https://client.example.com/cb"},
				GrantTypes:   []string{"refresh_token"},
			},
			errorCode: DCRErrorInvalidClientMetadata,
		},
		{
			name: "implicit grant",
			request: &oauth.ClientMetadata{
				RedirectURIs: []string{"https://client.example.com/cb"},
				GrantTypes:   []string{"authorization_code", "implicit"},
			},
			errorCode: DCRErrorInvalidClientMetadata,
		},
		{
			name: "token response type",
			request: &oauth.ClientMetadata{
				RedirectURIs:  []string{"https://client.example.com/cb"},
				ResponseTypes: []string{"code", "token"},
			},
			errorCode: DCRErrorInvalidClientMetadata,
		},
		{
			name: "unknown scope",
			request: &oauth.ClientMetadata{
				RedirectURIs: []string{"https://client.example.com/cb"},
				Scope:        "email admin",
			},
			errorCode: DCRErrorInvalidClientMetadata,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, dcrErr := ValidateDCRRequest(tt.request, supportedScopes)

			if tt.errorCode != "" {
				require.NotNil(t, dcrErr)
				assert.Equal(t, tt.errorCode, dcrErr.Error)
				assert.Nil(t, result)
				return
			}

			require.Nil(t, dcrErr, "unexpected error: %v", dcrErr)
			assert.Equal(t, tt.expectedAuthMethod, result.TokenEndpointAuthMethod)
			assert.ElementsMatch(t, tt.expectedGrants, result.GrantTypes)
			assert.ElementsMatch(t, tt.expectedResponses, result.ResponseTypes)
			assert.Equal(t, tt.request.RedirectURIs, result.RedirectURIs)
			assert.Equal(t, tt.request.ClientName, result.ClientName)
		})
	}
}

func TestValidateDCRRequest_DropsServerIssuedFields(t *testing.T) {
	t.Parallel()

	result, dcrErr := ValidateDCRRequest(&oauth.ClientMetadata{
		ClientID:              "chosen-by-client",
		ClientSecret:          "also-chosen",
		ClientIDIssuedAt:      1,
		ClientSecretExpiresAt: 2,
		RedirectURIs:          []string{"https://client.example.com/cb"},
	}, nil)
	require.Nil(t, dcrErr)

	assert.Empty(t, result.ClientID)
	assert.Empty(t, result.ClientSecret)
	assert.Zero(t, result.ClientIDIssuedAt)
	assert.Zero(t, result.ClientSecretExpiresAt)
}

func TestDCRErrorConstants(t *testing.T) {
	t.Parallel()

	// Verify error code constants match RFC 7591 Section 3.2.2
	assert.Equal(t, "invalid_redirect_uri", DCRErrorInvalidRedirectURI)
	assert.Equal(t, "invalid_client_metadata", DCRErrorInvalidClientMetadata)
}
