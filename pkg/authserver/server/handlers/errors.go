// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/ory/fosite"

	bridgeerrors "github.com/stacklok/mcp-authbridge/pkg/errors"
	"github.com/stacklok/mcp-authbridge/pkg/logger"
	"github.com/stacklok/mcp-authbridge/pkg/networking"
)

// oauthErrorResponse is the RFC 6749 Section 5.2 error body.
type oauthErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func describe(e *fosite.RFC6749Error) string {
	parts := make([]string, 0, 2)
	if e.DescriptionField != "" {
		parts = append(parts, e.DescriptionField)
	}
	if e.HintField != "" {
		parts = append(parts, e.HintField)
	}
	return strings.Join(parts, " ")
}

func statusOf(e *fosite.RFC6749Error) int {
	if e.CodeField == 0 {
		return http.StatusBadRequest
	}
	return e.CodeField
}

// writeOAuthError writes err as a JSON OAuth error response.
func writeOAuthError(w http.ResponseWriter, err *fosite.RFC6749Error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(statusOf(err))
	if encErr := json.NewEncoder(w).Encode(oauthErrorResponse{
		Error:            err.ErrorField,
		ErrorDescription: describe(err),
	}); encErr != nil {
		logger.Debugw("failed to encode OAuth error response", "error", encErr)
	}
}

// redirectOAuthError sends the user agent back to a trusted redirect URI
// with the error in the query (RFC 6749 Section 4.1.2.1).
func redirectOAuthError(w http.ResponseWriter, req *http.Request, redirectURI, state string, err *fosite.RFC6749Error) {
	u, parseErr := url.Parse(redirectURI)
	if parseErr != nil {
		writeOAuthError(w, err)
		return
	}
	q := u.Query()
	q.Set("error", err.ErrorField)
	if desc := describe(err); desc != "" {
		q.Set("error_description", desc)
	}
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	http.Redirect(w, req, u.String(), http.StatusFound)
}

// clientResolutionError maps a registry failure to an OAuth error.
func clientResolutionError(err error) *fosite.RFC6749Error {
	switch {
	case bridgeerrors.IsClientNotFound(err):
		return fosite.ErrInvalidClient.WithHint("Invalid client_id")
	case bridgeerrors.IsSpoofedClientID(err):
		return fosite.ErrInvalidClient.WithHint("Client metadata document does not match client_id")
	default:
		logger.Errorw("failed to resolve client", "error", err)
		return fosite.ErrServerError.WithHint("failed to resolve client")
	}
}

// tokenExchangeError maps a provider failure on the token endpoint to an
// OAuth error. Upstream 4xx answers and sign-in policy failures are
// invalid_grant; anything else is a server error.
func tokenExchangeError(err error) *fosite.RFC6749Error {
	var bridgeErr *bridgeerrors.Error
	description := ""
	if errors.As(err, &bridgeErr) {
		description = bridgeErr.Message
	}

	switch {
	case bridgeerrors.IsDomainRestricted(err), bridgeerrors.IsAudienceMismatch(err):
		return fosite.ErrInvalidGrant.WithHint(description)
	case bridgeerrors.IsUpstreamRefreshFailed(err):
		return fosite.ErrInvalidGrant.WithHint(description)
	case bridgeerrors.IsUpstream(err):
		if status := networking.StatusCodeOf(err); status >= 400 && status < 500 {
			return fosite.ErrInvalidGrant.WithHint(description)
		}
	case bridgeerrors.IsInvalidArgument(err):
		return fosite.ErrInvalidRequest.WithHint(description)
	}

	logger.Errorw("token exchange failed", "error", err)
	return fosite.ErrServerError.WithHint("token exchange failed")
}
