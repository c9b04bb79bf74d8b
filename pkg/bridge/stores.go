// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"

	"github.com/stacklok/mcp-authbridge/pkg/config"
	"github.com/stacklok/mcp-authbridge/pkg/logger"
	"github.com/stacklok/mcp-authbridge/pkg/session"
	"github.com/stacklok/mcp-authbridge/pkg/storage"
	"github.com/stacklok/mcp-authbridge/pkg/storage/postgres"
	"github.com/stacklok/mcp-authbridge/pkg/storage/sqlite"
)

// OpenStore opens the client and binding store selected by cfg. Pending
// migrations are applied before it returns.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (storage.Store, error) {
	switch cfg.Type {
	case config.StoreTypeSQLite, "":
		path := cfg.Path
		if path == "" {
			path = config.DefaultSQLitePath
		}
		logger.Debugw("opening sqlite store", "path", path)
		store, err := sqlite.OpenStore(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return store, nil

	case config.StoreTypePostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("store.dsn is required for the postgres store")
		}
		logger.Debug("opening postgres store")
		store, err := postgres.Open(ctx, cfg.DSN, postgres.Options{})
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}

// OpenSessions creates the session store selected by cfg.
func OpenSessions(ctx context.Context, cfg config.SessionConfig) (session.Store, error) {
	opts := session.Options{TTL: cfg.TTL}

	switch cfg.Backend {
	case config.SessionBackendRedis, "":
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("session.redis_url is required for the redis backend")
		}
		store, err := session.NewRedisStore(ctx, cfg.RedisURL, cfg.ConnectAttempts, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return store, nil

	case config.SessionBackendMemory:
		logger.Warn("using in-memory sessions; sessions are lost on restart and not shared between replicas")
		return session.NewMemoryStore(opts), nil

	default:
		return nil, fmt.Errorf("unknown session backend: %s", cfg.Backend)
	}
}
