// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/stacklok/mcp-authbridge/pkg/logger"
	"github.com/stacklok/mcp-authbridge/pkg/oauth"
)

// DefaultDiscoveryCacheMaxAge is the Cache-Control max-age for metadata documents (1 hour).
const DefaultDiscoveryCacheMaxAge = 3600

// buildOAuthMetadata constructs the OAuth 2.0 Authorization Server Metadata (RFC 8414).
func (h *Handler) buildOAuthMetadata() oauth.AuthorizationServerMetadata {
	issuer := h.config.Issuer

	return oauth.AuthorizationServerMetadata{
		// REQUIRED
		Issuer: issuer,

		// RECOMMENDED
		AuthorizationEndpoint:  issuer + "/authorize",
		TokenEndpoint:          issuer + "/token",
		RegistrationEndpoint:   issuer + "/register",
		IntrospectionEndpoint:  issuer + "/introspect",
		ResponseTypesSupported: []string{oauth.ResponseTypeCode},
		ScopesSupported:        h.config.ScopesSupported,

		// OPTIONAL
		GrantTypesSupported: []string{
			oauth.GrantTypeAuthorizationCode,
			oauth.GrantTypeRefreshToken,
		},
		CodeChallengeMethodsSupported: []string{oauth.PKCEChallengeMethodS256},
		TokenEndpointAuthMethodsSupported: []string{
			oauth.TokenEndpointAuthMethodClientSecretPost,
			oauth.TokenEndpointAuthMethodNone,
		},
		ClientIDMetadataDocumentSupported: true,
	}
}

// OAuthDiscoveryHandler handles GET /.well-known/oauth-authorization-server requests.
func (h *Handler) OAuthDiscoveryHandler(w http.ResponseWriter, _ *http.Request) {
	writeMetadata(w, h.buildOAuthMetadata())
}

// ProtectedResourceHandler serves the RFC 9728 protected resource metadata
// of the MCP endpoint. It is readable from any origin.
func (h *Handler) ProtectedResourceHandler(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, mcp-protocol-version")

	if req.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeMetadata(w, oauth.ProtectedResourceMetadata{
		Resource:               h.config.Issuer + h.config.ResourcePath,
		AuthorizationServers:   []string{h.config.Issuer},
		ScopesSupported:        h.config.ScopesSupported,
		BearerMethodsSupported: []string{"header"},
	})
}

func writeMetadata(w http.ResponseWriter, metadata any) {
	data, err := json.Marshal(metadata)
	if err != nil {
		logger.Errorw("failed to encode metadata document",
			"error", err.Error(),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", DefaultDiscoveryCacheMaxAge))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, _ = w.Write(data)
}
