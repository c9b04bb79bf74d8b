// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

// Response types
const (
	// ResponseTypeCode is the authorization code response type.
	ResponseTypeCode = "code"
)

// Grant types
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
)

// Token endpoint authentication methods (RFC 7591 Section 2)
const (
	// TokenEndpointAuthMethodNone marks a public client with no secret.
	TokenEndpointAuthMethodNone = "none"

	// TokenEndpointAuthMethodClientSecretPost sends the secret in the form body.
	TokenEndpointAuthMethodClientSecretPost = "client_secret_post"

	// TokenEndpointAuthMethodClientSecretBasic sends the secret with HTTP Basic auth.
	TokenEndpointAuthMethodClientSecretBasic = "client_secret_basic"
)

// PKCEChallengeMethodS256 is the only supported PKCE method.
const PKCEChallengeMethodS256 = "S256"

// TokenTypeBearer is the token_type returned for access tokens.
const TokenTypeBearer = "Bearer"

// Well-known metadata paths
const (
	WellKnownAuthorizationServerPath = "/.well-known/oauth-authorization-server"
	WellKnownProtectedResourcePath   = "/.well-known/oauth-protected-resource"
)
