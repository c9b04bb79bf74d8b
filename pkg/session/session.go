// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package session binds MCP session identifiers to the email of the principal
// that created them. Sessions expire a fixed TTL after creation and are never
// renewed on use.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DefaultTTL is the lifetime of a session and of its key/value entries.
const DefaultTTL = 24 * time.Hour

// DefaultKeyPrefix namespaces every key written by the store.
const DefaultKeyPrefix = "mcp:"

// idBytes is the entropy of a session identifier.
const idBytes = 32

// maxCreateAttempts bounds retries on identifier collisions.
const maxCreateAttempts = 3

// Store maps session identifiers to emails and holds per-session values.
type Store interface {
	// Create stores a fresh session bound to email and returns its identifier.
	Create(ctx context.Context, email string) (string, error)
	// Validate fails with SessionNotFound when the session is missing or
	// expired, and with SessionEmailMismatch when it belongs to another email.
	Validate(ctx context.Context, sessionID, email string) error
	// Get returns the value stored under key, or nil when there is none.
	Get(ctx context.Context, sessionID, key string) (any, error)
	// Set stores value under key with the session TTL.
	Set(ctx context.Context, sessionID, key string, value any) error
	// Ping checks connectivity to the backend.
	Ping(ctx context.Context) error
	// Close releases the backend.
	Close() error
}

// Options configure a Store.
type Options struct {
	TTL       time.Duration
	KeyPrefix string
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.KeyPrefix == "" {
		o.KeyPrefix = DefaultKeyPrefix
	}
	return o
}

func (o Options) sessionKey(sessionID string) string {
	return o.KeyPrefix + "sessions:" + sessionID
}

func (o Options) valueKey(sessionID, key string) string {
	return o.KeyPrefix + sessionID + ":" + key
}

// NewID returns a random, URL-safe session identifier.
func NewID() (string, error) {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// encodeValue stores strings raw and everything else as JSON.
func encodeValue(value any) (string, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("failed to encode session value: %w", err)
	}
	return string(data), nil
}

// decodeValue turns JSON objects and arrays back into values. Anything else,
// including text that only looks like JSON, comes back as a string.
func decodeValue(raw string) any {
	if (strings.HasPrefix(raw, "{") && strings.HasSuffix(raw, "}")) ||
		(strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]")) {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			return v
		}
	}
	return raw
}
