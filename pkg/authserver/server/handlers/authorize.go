// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"
	"slices"
	"strings"

	"github.com/ory/fosite"

	"github.com/stacklok/mcp-authbridge/pkg/authserver/provider"
	"github.com/stacklok/mcp-authbridge/pkg/logger"
	"github.com/stacklok/mcp-authbridge/pkg/oauth"
)

// maxFormBodySize bounds form-encoded request bodies.
const maxFormBodySize = 64 * 1024

// AuthorizeHandler handles GET and POST /authorize requests.
// It validates the client's authorization request and redirects to the upstream IDP.
func (h *Handler) AuthorizeHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	req.Body = http.MaxBytesReader(w, req.Body, maxFormBodySize)
	if err := req.ParseForm(); err != nil {
		writeOAuthError(w, fosite.ErrInvalidRequest.WithHint("malformed request"))
		return
	}

	clientID := req.Form.Get("client_id")
	if clientID == "" {
		writeOAuthError(w, fosite.ErrInvalidRequest.WithHint("client_id is required"))
		return
	}

	client, err := h.provider.Clients().Resolve(ctx, clientID)
	if err != nil {
		writeOAuthError(w, clientResolutionError(err))
		return
	}

	// Until the redirect URI is known to belong to the client, errors are
	// rendered here instead of being redirected.
	redirectURI := req.Form.Get("redirect_uri")
	switch {
	case redirectURI == "" && len(client.RedirectURIs) == 1:
		redirectURI = client.RedirectURIs[0]
	case redirectURI == "":
		writeOAuthError(w, fosite.ErrInvalidRequest.WithHint("redirect_uri must be specified when the client has multiple registered URIs"))
		return
	case !client.HasRedirectURI(redirectURI):
		writeOAuthError(w, fosite.ErrInvalidRequest.WithHint("Unregistered redirect_uri"))
		return
	}

	state := req.Form.Get("state")

	if rt := req.Form.Get("response_type"); rt != oauth.ResponseTypeCode {
		redirectOAuthError(w, req, redirectURI, state,
			fosite.ErrUnsupportedResponseType.WithHint("response_type must be 'code'"))
		return
	}

	codeChallenge := req.Form.Get("code_challenge")
	if codeChallenge == "" {
		redirectOAuthError(w, req, redirectURI, state,
			fosite.ErrInvalidRequest.WithHint("code_challenge is required"))
		return
	}
	if method := req.Form.Get("code_challenge_method"); method != "" && method != oauth.PKCEChallengeMethodS256 {
		redirectOAuthError(w, req, redirectURI, state,
			fosite.ErrInvalidRequest.WithHint("code_challenge_method must be 'S256'"))
		return
	}

	scopes := strings.Fields(req.Form.Get("scope"))
	if client.Scope != "" {
		allowed := strings.Fields(client.Scope)
		for _, s := range scopes {
			if !slices.Contains(allowed, s) {
				redirectOAuthError(w, req, redirectURI, state,
					fosite.ErrInvalidScope.WithHintf("Client was not registered with scope %s", s))
				return
			}
		}
	}

	logger.Debugw("authorization request accepted",
		"client_id", client.ClientID,
		"mechanism", client.Mechanism().String(),
		"scope_count", len(scopes),
	)

	upstreamURL, err := h.provider.Authorize(ctx, client, provider.AuthorizationParams{
		RedirectURI:   redirectURI,
		CodeChallenge: codeChallenge,
		State:         state,
		Scopes:        scopes,
		Resource:      req.Form.Get("resource"),
	})
	if err != nil {
		logger.Errorw("failed to build upstream authorization URL", "error", err)
		redirectOAuthError(w, req, redirectURI, state,
			fosite.ErrServerError.WithHint("failed to build authorization URL"))
		return
	}

	// Redirect user to upstream IDP
	http.Redirect(w, req, upstreamURL, http.StatusFound)
}
