// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"

	"github.com/patrickmn/go-cache"

	apperrors "github.com/stacklok/mcp-authbridge/pkg/errors"
)

// MemoryStore implements Store in process memory. Sessions do not survive a
// restart and are not shared between replicas, so it is meant for local
// development and tests.
type MemoryStore struct {
	cache *cache.Cache
	opts  Options
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an in-memory store.
func NewMemoryStore(opts Options) *MemoryStore {
	opts = opts.withDefaults()
	return &MemoryStore{
		cache: cache.New(opts.TTL, opts.TTL/2),
		opts:  opts,
	}
}

// Create stores a new session for email.
func (s *MemoryStore) Create(_ context.Context, email string) (string, error) {
	for range maxCreateAttempts {
		id, err := NewID()
		if err != nil {
			return "", err
		}
		if err := s.cache.Add(s.opts.sessionKey(id), email, s.opts.TTL); err == nil {
			return id, nil
		}
	}
	return "", apperrors.NewInternalError("failed to allocate a unique session id", nil)
}

// Validate checks that sessionID exists and is bound to email.
func (s *MemoryStore) Validate(_ context.Context, sessionID, email string) error {
	v, ok := s.cache.Get(s.opts.sessionKey(sessionID))
	if !ok {
		return apperrors.NewSessionNotFoundError("session not found or expired")
	}
	if v.(string) != email {
		return apperrors.NewSessionEmailMismatchError("session belongs to a different user")
	}
	return nil
}

// Get returns the value stored under key for sessionID.
func (s *MemoryStore) Get(_ context.Context, sessionID, key string) (any, error) {
	v, ok := s.cache.Get(s.opts.valueKey(sessionID, key))
	if !ok {
		return nil, nil
	}
	return decodeValue(v.(string)), nil
}

// Set stores value under key for sessionID.
func (s *MemoryStore) Set(_ context.Context, sessionID, key string, value any) error {
	raw, err := encodeValue(value)
	if err != nil {
		return err
	}
	s.cache.Set(s.opts.valueKey(sessionID, key), raw, s.opts.TTL)
	return nil
}

// Ping always succeeds.
func (*MemoryStore) Ping(context.Context) error { return nil }

// Close drops every entry.
func (s *MemoryStore) Close() error {
	s.cache.Flush()
	return nil
}
