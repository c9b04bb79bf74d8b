// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package storage provides the durable storage interfaces of the auth bridge:
// registered OAuth clients and first-seen user bindings.
package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stacklok/mcp-authbridge/pkg/oauth"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=interfaces.go ClientStore,BindingStore,Store

// ClientStore persists clients registered through Dynamic Client Registration.
type ClientStore interface {
	// GetClient returns the client registered under clientID, or ErrNotFound.
	GetClient(ctx context.Context, clientID string) (*oauth.ClientMetadata, error)
	// RegisterClient stores client keyed by its ClientID. An existing record
	// with the same id is replaced.
	RegisterClient(ctx context.Context, client *oauth.ClientMetadata) error
}

// BindingStore records which upstream users have authenticated against which clients.
type BindingStore interface {
	// RecordIfAbsent inserts binding unless a row for (ClientID, UpstreamUserID)
	// already exists. The existence check and the insert run in one
	// transaction. created is true only when a row was inserted.
	RecordIfAbsent(ctx context.Context, mechanism oauth.RegistrationMechanism, binding UserBinding) (created bool, err error)
	// GetBinding returns a stored binding, or ErrNotFound.
	GetBinding(ctx context.Context, mechanism oauth.RegistrationMechanism, clientID, upstreamUserID string) (*UserBinding, error)
}

// Store is a complete storage backend.
type Store interface {
	ClientStore
	BindingStore
	// Ping checks connectivity to the backend.
	Ping(ctx context.Context) error
	// SchemaVersion returns the latest applied migration version.
	SchemaVersion(ctx context.Context) (int64, error)
	// Close releases any resources held by the store.
	Close() error
}

// UserBinding records that an upstream identity authenticated against a client.
type UserBinding struct {
	ClientID       string
	UpstreamUserID string
	Email          string
	// TokenInfo is the raw upstream token info document at first sight.
	TokenInfo json.RawMessage
	UpdatedAt time.Time
}

// BindingTable returns the table and client column holding bindings for a
// registration mechanism. DCR bindings live in the legacy oauth_client_users
// table keyed by oauth_client_id.
func BindingTable(mechanism oauth.RegistrationMechanism) (table, clientColumn string) {
	if mechanism == oauth.MechanismCIMD {
		return "mcp_auth_users", "client_id"
	}
	return "oauth_client_users", "oauth_client_id"
}
