// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package postgres implements storage.Store on PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklok/mcp-authbridge/pkg/logger"
	"github.com/stacklok/mcp-authbridge/pkg/oauth"
	"github.com/stacklok/mcp-authbridge/pkg/storage"
)

const defaultMaxConns = 10

// Store implements storage.Store using a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ storage.Store = (*Store)(nil)

// Options tune Open.
type Options struct {
	// ConnectAttempts bounds the startup ping retries. Zero means 5.
	ConnectAttempts uint
	// MaxConns caps the pool size. Zero means 10.
	MaxConns int32
}

// Open connects to dsn, waits for the server to answer and applies migrations.
func Open(ctx context.Context, dsn string, opts Options) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	cfg.MaxConns = defaultMaxConns
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	attempts := opts.ConnectAttempts
	if attempts == 0 {
		attempts = 5
	}
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, pool.Ping(ctx)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(attempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warnw("database not ready, retrying", "error", err, "retry_in", next)
		}),
	)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return NewStore(pool), nil
}

// NewStore wraps an existing pool. Migrations are not applied.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: time.Now}
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// GetClient returns the DCR client registered under clientID.
func (s *Store) GetClient(ctx context.Context, clientID string) (*oauth.ClientMetadata, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM oauth_clients WHERE oauth_client_id = $1`, clientID,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying client: %w", err)
	}

	var client oauth.ClientMetadata
	if err := json.Unmarshal(data, &client); err != nil {
		return nil, fmt.Errorf("decoding client %s: %w", clientID, err)
	}
	return &client, nil
}

// RegisterClient upserts client keyed by its ClientID.
func (s *Store) RegisterClient(ctx context.Context, client *oauth.ClientMetadata) error {
	if err := storage.ValidateClient(client); err != nil {
		return err
	}
	data, err := json.Marshal(client)
	if err != nil {
		return fmt.Errorf("encoding client: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO oauth_clients (oauth_client_id, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (oauth_client_id) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at`,
		client.ClientID, data, s.now(),
	)
	if err != nil {
		return fmt.Errorf("upserting client: %w", err)
	}
	return nil
}

// RecordIfAbsent inserts binding unless one exists for the same client and user.
func (s *Store) RecordIfAbsent(
	ctx context.Context, mechanism oauth.RegistrationMechanism, binding storage.UserBinding,
) (bool, error) {
	if err := storage.ValidateBinding(binding); err != nil {
		return false, err
	}
	table, clientCol := storage.BindingTable(mechanism)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists int
	err = tx.QueryRow(ctx,
		`SELECT 1 FROM `+table+` WHERE `+clientCol+` = $1 AND google_user_id = $2`,
		binding.ClientID, binding.UpstreamUserID,
	).Scan(&exists)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return false, fmt.Errorf("looking up binding: %w", err)
	}

	updatedAt := binding.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.now()
	}

	tag, err := tx.Exec(ctx,
		`INSERT INTO `+table+` (`+clientCol+`, google_user_id, email, token_info, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING`,
		binding.ClientID, binding.UpstreamUserID, binding.Email, nullableJSON(binding.TokenInfo), updatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("inserting binding: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("committing transaction: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetBinding returns the binding for clientID and upstreamUserID.
func (s *Store) GetBinding(
	ctx context.Context, mechanism oauth.RegistrationMechanism, clientID, upstreamUserID string,
) (*storage.UserBinding, error) {
	table, clientCol := storage.BindingTable(mechanism)

	var (
		b         storage.UserBinding
		tokenInfo []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT `+clientCol+`, google_user_id, email, token_info, updated_at
		FROM `+table+` WHERE `+clientCol+` = $1 AND google_user_id = $2`,
		clientID, upstreamUserID,
	).Scan(&b.ClientID, &b.UpstreamUserID, &b.Email, &tokenInfo, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying binding: %w", err)
	}
	if len(tokenInfo) > 0 {
		b.TokenInfo = json.RawMessage(tokenInfo)
	}
	return &b, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
