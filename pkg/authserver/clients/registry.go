// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package clients resolves OAuth client ids to client records.
//
// Two registration mechanisms coexist. A client id that is an https URL is a
// Client ID Metadata Document (CIMD): the record is fetched from that URL on
// every resolution and must name itself. Any other id was issued by Dynamic
// Client Registration (DCR) and is looked up in the durable client store.
package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	bridgeerrors "github.com/stacklok/mcp-authbridge/pkg/errors"
	"github.com/stacklok/mcp-authbridge/pkg/logger"
	"github.com/stacklok/mcp-authbridge/pkg/networking"
	"github.com/stacklok/mcp-authbridge/pkg/oauth"
	"github.com/stacklok/mcp-authbridge/pkg/storage"
)

// Defaults for CIMD fetches.
const (
	DefaultFetchTimeout    = 10 * time.Second
	DefaultMaxDocumentSize = 64 * 1024
)

// Resolver resolves a client id to its record.
type Resolver interface {
	Resolve(ctx context.Context, clientID string) (*oauth.ClientMetadata, error)
}

// Registry resolves and registers OAuth clients.
type Registry struct {
	store           storage.ClientStore
	httpClient      networking.HTTPClient
	maxDocumentSize int64
}

var _ Resolver = (*Registry)(nil)

// Option configures a Registry.
type Option func(*Registry)

// WithHTTPClient sets the client used for CIMD fetches.
func WithHTTPClient(client networking.HTTPClient) Option {
	return func(r *Registry) {
		r.httpClient = client
	}
}

// WithMaxDocumentSize caps the size of a fetched metadata document.
func WithMaxDocumentSize(n int64) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxDocumentSize = n
		}
	}
}

// NewRegistry creates a Registry backed by store. Without WithHTTPClient,
// CIMD documents are fetched over HTTPS only and never from private
// addresses.
func NewRegistry(store storage.ClientStore, opts ...Option) (*Registry, error) {
	if store == nil {
		return nil, errors.New("client store is required")
	}

	r := &Registry{
		store:           store,
		maxDocumentSize: DefaultMaxDocumentSize,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.httpClient == nil {
		client, err := networking.NewHttpClientBuilder().WithTimeout(DefaultFetchTimeout).Build()
		if err != nil {
			return nil, fmt.Errorf("failed to create CIMD HTTP client: %w", err)
		}
		r.httpClient = client
	}

	return r, nil
}

// Resolve returns the record for clientID. An unknown DCR id or an
// unreachable CIMD document is a ClientNotFound error. A CIMD document that
// names a different client_id is a SpoofedClientID error.
func (r *Registry) Resolve(ctx context.Context, clientID string) (*oauth.ClientMetadata, error) {
	if clientID == "" {
		return nil, bridgeerrors.NewClientNotFoundError("client_id is required", nil)
	}

	if oauth.MechanismFor(clientID) == oauth.MechanismCIMD {
		return r.fetchMetadataDocument(ctx, clientID)
	}

	logger.Debugw("resolving DCR client", "client_id", clientID)

	client, err := r.store.GetClient(ctx, clientID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, bridgeerrors.NewClientNotFoundError(fmt.Sprintf("client %s is not registered", clientID), err)
	}
	if err != nil {
		return nil, bridgeerrors.NewInternalError("failed to load client", err)
	}
	return client, nil
}

func (r *Registry) fetchMetadataDocument(ctx context.Context, clientID string) (*oauth.ClientMetadata, error) {
	logger.Debugw("fetching client metadata document", "client_id", clientID)

	result, err := networking.FetchJSON[json.RawMessage](ctx, r.httpClient, clientID,
		networking.WithMaxResponseSize(r.maxDocumentSize),
		networking.WithoutContentTypeValidation(),
	)
	if err != nil {
		logger.Warnw("client metadata document fetch failed", "client_id", clientID, "error", err)
		return nil, bridgeerrors.NewClientNotFoundError("failed to fetch client metadata document", err)
	}

	// The document must name itself before anything else in it is trusted.
	if docClientID := gjson.GetBytes(result.Data, "client_id").String(); docClientID != clientID {
		logger.Warnw("client metadata document names another client",
			"client_id", clientID,
			"document_client_id", docClientID,
		)
		return nil, bridgeerrors.NewSpoofedClientIDError("client_id in metadata does not match the URL", nil)
	}

	if err := oauth.ValidateClientMetadataDocument(result.Data); err != nil {
		return nil, bridgeerrors.NewClientNotFoundError("client metadata document is invalid", err)
	}

	var client oauth.ClientMetadata
	if err := json.Unmarshal(result.Data, &client); err != nil {
		return nil, bridgeerrors.NewClientNotFoundError("client metadata document is invalid", err)
	}

	if client.TokenEndpointAuthMethod == "" {
		client.TokenEndpointAuthMethod = oauth.TokenEndpointAuthMethodNone
	}
	return &client, nil
}

// Register persists a DCR client keyed by its client_id. A record with the
// same id is replaced. CIMD ids cannot be registered.
func (r *Registry) Register(ctx context.Context, client *oauth.ClientMetadata) (*oauth.ClientMetadata, error) {
	if client == nil || client.ClientID == "" {
		return nil, bridgeerrors.NewInvalidArgumentError("client_id is required", nil)
	}
	if client.Mechanism() == oauth.MechanismCIMD {
		return nil, bridgeerrors.NewInvalidArgumentError("URL client ids are resolved through their metadata document", nil)
	}

	logger.Infow("registering DCR client",
		"client_id", client.ClientID,
		"client_name", client.ClientName,
	)

	if err := r.store.RegisterClient(ctx, client); err != nil {
		return nil, bridgeerrors.NewInternalError("failed to register client", err)
	}
	return client, nil
}
