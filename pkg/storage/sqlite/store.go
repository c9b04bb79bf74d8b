// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stacklok/mcp-authbridge/pkg/oauth"
	"github.com/stacklok/mcp-authbridge/pkg/storage"
)

// Store implements storage.Store using SQLite.
type Store struct {
	wrapper *DB
	db      *sql.DB
	now     func() time.Time
}

var _ storage.Store = (*Store)(nil)

// NewStore creates a new SQLite-backed Store.
func NewStore(db *DB) *Store {
	return &Store{wrapper: db, db: db.DB(), now: time.Now}
}

// OpenStore opens the database at path and returns a Store on it.
func OpenStore(ctx context.Context, path string) (*Store, error) {
	db, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return NewStore(db), nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.wrapper.Close()
}

// GetClient returns the DCR client registered under clientID.
func (s *Store) GetClient(ctx context.Context, clientID string) (*oauth.ClientMetadata, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM oauth_clients WHERE oauth_client_id = ?`, clientID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying client: %w", err)
	}

	var client oauth.ClientMetadata
	if err := json.Unmarshal([]byte(data), &client); err != nil {
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

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO oauth_clients (oauth_client_id, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (oauth_client_id) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at`,
		client.ClientID, string(data), s.now().Unix(),
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollback(tx)

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM `+table+` WHERE `+clientCol+` = ? AND google_user_id = ?`, // #nosec G202 - table and column come from BindingTable
		binding.ClientID, binding.UpstreamUserID,
	).Scan(&exists)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("looking up binding: %w", err)
	}

	updatedAt := binding.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.now()
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO `+table+` (`+clientCol+`, google_user_id, email, token_info, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`, // #nosec G202 - table and column come from BindingTable
		binding.ClientID, binding.UpstreamUserID, binding.Email, nullableJSON(binding.TokenInfo), updatedAt.Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("inserting binding: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing transaction: %w", err)
	}
	return n == 1, nil
}

// GetBinding returns the binding for clientID and upstreamUserID.
func (s *Store) GetBinding(
	ctx context.Context, mechanism oauth.RegistrationMechanism, clientID, upstreamUserID string,
) (*storage.UserBinding, error) {
	table, clientCol := storage.BindingTable(mechanism)

	var (
		b         storage.UserBinding
		tokenInfo sql.NullString
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT `+clientCol+`, google_user_id, email, token_info, updated_at
		FROM `+table+` WHERE `+clientCol+` = ? AND google_user_id = ?`, // #nosec G202 - table and column come from BindingTable
		clientID, upstreamUserID,
	).Scan(&b.ClientID, &b.UpstreamUserID, &b.Email, &tokenInfo, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying binding: %w", err)
	}

	if tokenInfo.Valid {
		b.TokenInfo = json.RawMessage(tokenInfo.String)
	}
	b.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &b, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
