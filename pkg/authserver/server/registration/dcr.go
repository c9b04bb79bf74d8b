// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package registration validates RFC 7591 Dynamic Client Registration
// requests before the bridge assigns credentials to a new client.
package registration

import (
	"fmt"
	"slices"
	"strings"

	"github.com/stacklok/mcp-authbridge/pkg/oauth"
)

// RFC 7591 section 3.2.2 error codes.
const (
	DCRErrorInvalidRedirectURI    = "invalid_redirect_uri"
	DCRErrorInvalidClientMetadata = "invalid_client_metadata"
)

// Request size limits.
const (
	MaxRedirectURICount = 10
	MaxClientNameLength = 256
)

// DCRError is the JSON error body of a rejected registration.
type DCRError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func invalidMetadata(format string, args ...any) *DCRError {
	return &DCRError{Error: DCRErrorInvalidClientMetadata, ErrorDescription: fmt.Sprintf(format, args...)}
}

// SupportedAuthMethods are the token endpoint auth methods a client may
// register with. The first one is the default.
var SupportedAuthMethods = []string{
	oauth.TokenEndpointAuthMethodClientSecretPost,
	oauth.TokenEndpointAuthMethodNone,
}

// listField describes a multi-valued metadata member: what it defaults to,
// which value it must contain and which values are accepted.
type listField struct {
	name     string
	defaults []string
	required string
	allowed  []string
}

var (
	grantTypesField = listField{
		name:     "grant_type",
		defaults: []string{oauth.GrantTypeAuthorizationCode, oauth.GrantTypeRefreshToken},
		required: oauth.GrantTypeAuthorizationCode,
		allowed:  []string{oauth.GrantTypeAuthorizationCode, oauth.GrantTypeRefreshToken},
	}
	responseTypesField = listField{
		name:     "response_type",
		defaults: []string{oauth.ResponseTypeCode},
		required: oauth.ResponseTypeCode,
		allowed:  []string{oauth.ResponseTypeCode},
	}
)

func (f listField) resolve(values []string) ([]string, *DCRError) {
	if len(values) == 0 {
		return slices.Clone(f.defaults), nil
	}
	if !slices.Contains(values, f.required) {
		return nil, invalidMetadata("%ss must include '%s'", f.name, f.required)
	}
	for _, v := range values {
		if !slices.Contains(f.allowed, v) {
			return nil, invalidMetadata("unsupported %s: %s", f.name, v)
		}
	}
	return values, nil
}

// ValidateDCRRequest checks req and returns a copy with defaults applied and
// server-issued fields cleared. When supportedScopes is non-empty every
// requested scope must be one of them.
func ValidateDCRRequest(req *oauth.ClientMetadata, supportedScopes []string) (*oauth.ClientMetadata, *DCRError) {
	switch n := len(req.RedirectURIs); {
	case n == 0:
		return nil, &DCRError{Error: DCRErrorInvalidRedirectURI, ErrorDescription: "redirect_uris is required"}
	case n > MaxRedirectURICount:
		return nil, &DCRError{
			Error:            DCRErrorInvalidRedirectURI,
			ErrorDescription: fmt.Sprintf("too many redirect_uris (maximum %d)", MaxRedirectURICount),
		}
	}
	for _, uri := range req.RedirectURIs {
		if err := ValidateRedirectURI(uri); err != nil {
			return nil, err
		}
	}

	if len(req.ClientName) > MaxClientNameLength {
		return nil, invalidMetadata("client_name too long (maximum %d characters)", MaxClientNameLength)
	}

	authMethod := req.TokenEndpointAuthMethod
	if authMethod == "" {
		authMethod = SupportedAuthMethods[0]
	}
	if !slices.Contains(SupportedAuthMethods, authMethod) {
		return nil, invalidMetadata("unsupported token_endpoint_auth_method: %s", authMethod)
	}

	grantTypes, dcrErr := grantTypesField.resolve(req.GrantTypes)
	if dcrErr != nil {
		return nil, dcrErr
	}
	responseTypes, dcrErr := responseTypesField.resolve(req.ResponseTypes)
	if dcrErr != nil {
		return nil, dcrErr
	}

	if len(supportedScopes) > 0 {
		for _, s := range strings.Fields(req.Scope) {
			if !slices.Contains(supportedScopes, s) {
				return nil, invalidMetadata("unsupported scope: %s", s)
			}
		}
	}

	client := *req
	client.ClientID = ""
	client.ClientSecret = ""
	client.ClientIDIssuedAt = 0
	client.ClientSecretExpiresAt = 0
	client.TokenEndpointAuthMethod = authMethod
	client.GrantTypes = grantTypes
	client.ResponseTypes = responseTypes
	return &client, nil
}

// ValidateRedirectURI accepts https URIs, http on loopback hosts and
// private-use schemes used by native MCP clients (RFC 8252).
func ValidateRedirectURI(uri string) *DCRError {
	if err := oauth.ValidateRedirectURI(uri, oauth.RedirectURIPolicyAllowPrivateUse); err != nil {
		return &DCRError{Error: DCRErrorInvalidRedirectURI, ErrorDescription: err.Error()}
	}
	return nil
}
