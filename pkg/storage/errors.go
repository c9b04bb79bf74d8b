// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/stacklok/toolhive-core/httperr"

	"github.com/stacklok/mcp-authbridge/pkg/oauth"
)

var (
	// ErrNotFound is returned when no client or binding matches the lookup.
	ErrNotFound = httperr.WithCode(
		errors.New("record not found"),
		http.StatusNotFound,
	)

	// ErrInvalidRecord is returned when a record lacks its key fields.
	ErrInvalidRecord = httperr.WithCode(
		errors.New("invalid record"),
		http.StatusBadRequest,
	)
)

// ValidateClient checks that client can be stored.
func ValidateClient(client *oauth.ClientMetadata) error {
	if client == nil || client.ClientID == "" {
		return fmt.Errorf("%w: client_id is required", ErrInvalidRecord)
	}
	return nil
}

// ValidateBinding checks that binding can be stored.
func ValidateBinding(binding UserBinding) error {
	if binding.ClientID == "" || binding.UpstreamUserID == "" {
		return fmt.Errorf("%w: client id and upstream user id are required", ErrInvalidRecord)
	}
	return nil
}
