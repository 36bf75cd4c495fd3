// SPDX-FileCopyrightText: Copyright 2025 Guildgate Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/guildgate/guildgate/pkg/provider"
)

// Default timeouts for Redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

// Composite key types, preserved from the historical key layout so existing
// deployments keep their sessions across an upgrade.
const (
	keyTypeUser    = "oauth"
	keyTypeAdmin   = "oauth_admin"
	keyTypePending = "oauthstate"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string

	// Username and Password are optional ACL credentials.
	Username string
	Password string

	// DB selects the Redis logical database.
	DB int

	// KeyPrefix namespaces all keys, e.g. "guildgate:".
	KeyPrefix string

	// Timeouts (defaults: Dial=5s, Read=3s, Write=3s).
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RedisStore implements Store on a Redis backend, enabling multiple
// server replicas to share session authorization state.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, keyPrefix: cfg.KeyPrefix}, nil
}

// NewRedisStoreWithClient creates a RedisStore with a pre-configured client.
// This is useful for testing with miniredis.
func NewRedisStoreWithClient(client redis.UniversalClient, keyPrefix string) *RedisStore {
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

// Close closes the Redis client connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks Redis connectivity (health check).
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) key(keyType, sessionID string) string {
	return s.keyPrefix + keyType + ":" + sessionID
}

// BeginLogin records the pending anti-forgery state for a session.
// Records carry no TTL: their lifetime is bounded by the host session,
// which is cleared through Clear on logout.
func (s *RedisStore) BeginLogin(ctx context.Context, sessionID, state string) error {
	return s.client.Set(ctx, s.key(keyTypePending, sessionID), state, 0).Err()
}

// PendingState returns the session's pending anti-forgery state.
func (s *RedisStore) PendingState(ctx context.Context, sessionID string) (string, error) {
	state, err := s.client.Get(ctx, s.key(keyTypePending, sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get pending state: %w", err)
	}
	return state, nil
}

// Commit records an admitted identity and its admin flag, and consumes the
// pending state.
func (s *RedisStore) Commit(ctx context.Context, sessionID string, user *provider.Identity, admin bool) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}

	adminValue := "0"
	if admin {
		adminValue = "1"
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(keyTypeUser, sessionID), data, 0)
	pipe.Set(ctx, s.key(keyTypeAdmin, sessionID), adminValue, 0)
	pipe.Del(ctx, s.key(keyTypePending, sessionID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	return nil
}

// Lookup returns the committed record for a session. The returned identity
// is deserialized from Redis and acts as a defensive copy.
func (s *RedisStore) Lookup(ctx context.Context, sessionID string) (*Record, error) {
	data, err := s.client.Get(ctx, s.key(keyTypeUser, sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var identity provider.Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal identity: %w", err)
	}

	admin, err := s.client.Get(ctx, s.key(keyTypeAdmin, sessionID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get admin flag: %w", err)
	}

	return &Record{User: &identity, Admin: admin == "1"}, nil
}

// Clear removes all state for a session. Idempotent.
func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	keys := []string{
		s.key(keyTypeUser, sessionID),
		s.key(keyTypeAdmin, sessionID),
		s.key(keyTypePending, sessionID),
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Compile-time interface compliance check.
var _ Store = (*RedisStore)(nil)
