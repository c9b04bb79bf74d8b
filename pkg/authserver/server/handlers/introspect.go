// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"maps"
	"mime"
	"net/http"
	"strings"

	"github.com/stacklok/mcp-authbridge/pkg/logger"
)

type introspectRequest struct {
	Token string `json:"token"`
}

// IntrospectHandler handles POST /introspect requests (RFC 7662).
// The token may arrive form-encoded or as a JSON object.
func (h *Handler) IntrospectHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	req.Body = http.MaxBytesReader(w, req.Body, maxFormBodySize)

	token, ok := readIntrospectToken(req)
	if !ok || token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Token is required"})
		return
	}

	info, err := h.provider.VerifyAccessToken(ctx, token)
	if err != nil {
		logger.Debugw("token introspection rejected", "error", err)
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"active":            false,
			"error":             "Unauthorized",
			"error_description": "Invalid token: " + err.Error(),
		})
		return
	}

	response := make(map[string]any, len(info.Extra)+6)
	maps.Copy(response, info.Extra)
	response["active"] = true
	response["client_id"] = info.ClientID
	response["scope"] = strings.Join(info.Scopes, " ")
	if info.ExpiresAt != 0 {
		response["exp"] = info.ExpiresAt
	}
	response["sub"] = info.Subject
	response["email"] = info.Email

	writeJSON(w, http.StatusOK, response)
}

func readIntrospectToken(req *http.Request) (string, bool) {
	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var body introspectRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			return "", false
		}
		return body.Token, true
	}
	if err := req.ParseForm(); err != nil {
		return "", false
	}
	return req.PostForm.Get("token"), true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Debugw("failed to encode response", "error", err)
	}
}
