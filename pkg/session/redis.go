// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/stacklok/mcp-authbridge/pkg/errors"
	"github.com/stacklok/mcp-authbridge/pkg/logger"
)

// Default timeouts for Redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

// RedisStore implements Store on Redis.
type RedisStore struct {
	client redis.UniversalClient
	opts   Options
}

var _ Store = (*RedisStore)(nil)

var redisLoggerOnce sync.Once

// NewRedisStore connects to the Redis server at redisURL. The initial ping is
// retried up to attempts times with exponential backoff.
func NewRedisStore(ctx context.Context, redisURL string, attempts uint, opts Options) (*RedisStore, error) {
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if redisOpts.DialTimeout == 0 {
		redisOpts.DialTimeout = DefaultDialTimeout
	}
	if redisOpts.ReadTimeout == 0 {
		redisOpts.ReadTimeout = DefaultReadTimeout
	}
	if redisOpts.WriteTimeout == 0 {
		redisOpts.WriteTimeout = DefaultWriteTimeout
	}
	if attempts == 0 {
		attempts = 1
	}

	redisLoggerOnce.Do(func() {
		redis.SetLogger(logger.PrintfLogger{Component: "redis"})
	})
	client := redis.NewClient(redisOpts)

	_, err = backoff.Retry(ctx, func() (string, error) {
		return client.Ping(ctx).Result()
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(attempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warnw("redis not ready, retrying", "error", err, "retry_in", next)
		}),
	)
	if err != nil {
		// Close the client to prevent resource leak
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, opts), nil
}

// NewRedisStoreWithClient creates a RedisStore with a pre-configured client.
// This is useful for testing with miniredis.
func NewRedisStoreWithClient(client redis.UniversalClient, opts Options) *RedisStore {
	return &RedisStore{client: client, opts: opts.withDefaults()}
}

// Create stores a new session for email.
func (s *RedisStore) Create(ctx context.Context, email string) (string, error) {
	for range maxCreateAttempts {
		id, err := NewID()
		if err != nil {
			return "", err
		}
		ok, err := s.client.SetNX(ctx, s.opts.sessionKey(id), email, s.opts.TTL).Result()
		if err != nil {
			return "", fmt.Errorf("failed to store session: %w", err)
		}
		if ok {
			return id, nil
		}
	}
	return "", apperrors.NewInternalError("failed to allocate a unique session id", nil)
}

// Validate checks that sessionID exists and is bound to email.
func (s *RedisStore) Validate(ctx context.Context, sessionID, email string) error {
	stored, err := s.client.Get(ctx, s.opts.sessionKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return apperrors.NewSessionNotFoundError("session not found or expired")
	}
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if stored != email {
		return apperrors.NewSessionEmailMismatchError("session belongs to a different user")
	}
	return nil
}

// Get returns the value stored under key for sessionID.
func (s *RedisStore) Get(ctx context.Context, sessionID, key string) (any, error) {
	raw, err := s.client.Get(ctx, s.opts.valueKey(sessionID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session value: %w", err)
	}
	return decodeValue(raw), nil
}

// Set stores value under key for sessionID.
func (s *RedisStore) Set(ctx context.Context, sessionID, key string, value any) error {
	raw, err := encodeValue(value)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.opts.valueKey(sessionID, key), raw, s.opts.TTL).Err(); err != nil {
		return fmt.Errorf("failed to store session value: %w", err)
	}
	return nil
}

// Ping checks Redis connectivity (health check).
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
