// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"mime"
	"net/http"

	"github.com/google/uuid"

	"github.com/stacklok/mcp-authbridge/pkg/authserver/server/registration"
	"github.com/stacklok/mcp-authbridge/pkg/logger"
	"github.com/stacklok/mcp-authbridge/pkg/oauth"
)

const maxDCRBodySize = 64 * 1024

// RegisterClientHandler serves POST /register (RFC 7591). The client id is a
// fresh UUID; confidential clients also receive a secret.
func (h *Handler) RegisterClientHandler(w http.ResponseWriter, req *http.Request) {
	log := logger.FromContext(req.Context())

	if mediaType, _, err := mime.ParseMediaType(req.Header.Get("Content-Type")); err != nil || mediaType != "application/json" {
		writeJSON(w, http.StatusBadRequest, &registration.DCRError{
			Error:            registration.DCRErrorInvalidClientMetadata,
			ErrorDescription: "Content-Type must be application/json",
		})
		return
	}

	var metadata oauth.ClientMetadata
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxDCRBodySize)).Decode(&metadata); err != nil {
		writeJSON(w, http.StatusBadRequest, &registration.DCRError{
			Error:            registration.DCRErrorInvalidClientMetadata,
			ErrorDescription: "invalid JSON request body",
		})
		return
	}

	client, dcrErr := registration.ValidateDCRRequest(&metadata, h.config.ScopesSupported)
	if dcrErr != nil {
		log.Debug("client registration rejected", "error", dcrErr.Error, "description", dcrErr.ErrorDescription)
		writeJSON(w, http.StatusBadRequest, dcrErr)
		return
	}

	client.ClientID = uuid.NewString()
	client.ClientIDIssuedAt = h.now().Unix()
	if client.TokenEndpointAuthMethod != oauth.TokenEndpointAuthMethodNone {
		secret, err := oauth.GenerateClientSecret()
		if err != nil {
			log.Error("failed to generate client secret", "error", err)
			writeJSON(w, http.StatusInternalServerError, registrationServerError("failed to create client"))
			return
		}
		client.ClientSecret = secret
	}

	registered, err := h.registrar.Register(req.Context(), client)
	if err != nil {
		log.Error("failed to register client", "error", err)
		writeJSON(w, http.StatusInternalServerError, registrationServerError("failed to register client"))
		return
	}

	log.Info("registered DCR client",
		"client_id", registered.ClientID,
		"client_name", registered.ClientName,
		"token_endpoint_auth_method", registered.TokenEndpointAuthMethod,
	)

	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, http.StatusCreated, registered)
}

func registrationServerError(description string) *registration.DCRError {
	return &registration.DCRError{Error: "server_error", ErrorDescription: description}
}
