// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	"github.com/ory/fosite"

	"github.com/stacklok/mcp-authbridge/pkg/authserver/upstream"
	"github.com/stacklok/mcp-authbridge/pkg/logger"
	"github.com/stacklok/mcp-authbridge/pkg/oauth"
)

// TokenHandler handles POST /token requests.
// It authenticates the client and relays the authorization_code and
// refresh_token grants to the upstream.
func (h *Handler) TokenHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	req.Body = http.MaxBytesReader(w, req.Body, maxFormBodySize)
	if err := req.ParseForm(); err != nil {
		writeOAuthError(w, fosite.ErrInvalidRequest.WithHint("malformed request body"))
		return
	}
	form := req.PostForm

	clientID := form.Get("client_id")
	if clientID == "" {
		writeOAuthError(w, fosite.ErrInvalidRequest.WithHint("client_id is required"))
		return
	}

	client, err := h.provider.Clients().Resolve(ctx, clientID)
	if err != nil {
		writeOAuthError(w, clientResolutionError(err))
		return
	}

	if rfcErr := h.authenticateClient(client, form.Get("client_secret")); rfcErr != nil {
		writeOAuthError(w, rfcErr)
		return
	}

	grantType := form.Get("grant_type")
	if len(client.GrantTypes) > 0 && grantType != "" && !slices.Contains(client.GrantTypes, grantType) {
		writeOAuthError(w, fosite.ErrUnauthorizedClient.WithHintf("Client is not allowed to use grant_type %s", grantType))
		return
	}

	var tokens *upstream.Tokens
	switch grantType {
	case oauth.GrantTypeAuthorizationCode:
		code := form.Get("code")
		verifier := form.Get("code_verifier")
		if code == "" {
			writeOAuthError(w, fosite.ErrInvalidRequest.WithHint("code is required"))
			return
		}
		if verifier == "" {
			writeOAuthError(w, fosite.ErrInvalidRequest.WithHint("code_verifier is required"))
			return
		}
		tokens, err = h.provider.ExchangeAuthorizationCode(ctx, client, code, verifier, form.Get("redirect_uri"))

	case oauth.GrantTypeRefreshToken:
		refreshToken := form.Get("refresh_token")
		if refreshToken == "" {
			writeOAuthError(w, fosite.ErrInvalidRequest.WithHint("refresh_token is required"))
			return
		}
		tokens, err = h.provider.ExchangeRefreshToken(ctx, client, refreshToken, strings.Fields(form.Get("scope")))

	case "":
		writeOAuthError(w, fosite.ErrInvalidRequest.WithHint("grant_type is required"))
		return

	default:
		writeOAuthError(w, fosite.ErrUnsupportedGrantType.WithHintf("grant_type %s is not supported", grantType))
		return
	}
	if err != nil {
		writeOAuthError(w, tokenExchangeError(err))
		return
	}

	body, err := json.Marshal(tokens)
	if err != nil {
		logger.Errorw("failed to encode token response", "error", err)
		writeOAuthError(w, fosite.ErrServerError.WithHint("failed to encode token response"))
		return
	}
	if err := oauth.ValidateTokenResponse(body); err != nil {
		logger.Errorw("upstream returned an invalid token response", "client_id", client.ClientID, "error", err)
		writeOAuthError(w, fosite.ErrServerError.WithHint("invalid token response"))
		return
	}

	logger.Debugw("issued tokens",
		"client_id", client.ClientID,
		"grant_type", grantType,
		"expires_in", tokens.ExpiresIn,
	)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// authenticateClient checks the client secret of confidential clients.
func (h *Handler) authenticateClient(client *oauth.ClientMetadata, presented string) *fosite.RFC6749Error {
	if client.IsPublic() {
		return nil
	}
	if presented == "" {
		return fosite.ErrInvalidClient.WithHint("client_secret is required")
	}
	if !oauth.ClientSecretMatches(client.ClientSecret, presented) {
		return fosite.ErrInvalidClient.WithHint("Invalid client_secret")
	}
	if client.SecretExpired(h.now()) {
		return fosite.ErrInvalidClient.WithHint("Client secret has expired")
	}
	return nil
}
