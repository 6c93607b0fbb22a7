// Package redis provides a Redis-backed projection cache for hot read paths.
// Cached values are throwaway copies of Postgres and Mongo reads; every write
// path invalidates the owning user's keys, and a miss simply falls through to
// the source of truth.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	walletKeyPrefix = "wallet:"
	userKeyPrefix   = "user:"
)

// ErrCacheMiss indicates the key was not present
var ErrCacheMiss = errors.New("cache miss")

// ProjectionCache caches serialized read models keyed by user
type ProjectionCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewProjectionCache creates a projection cache over an established Redis client
func NewProjectionCache(logger *slog.Logger, client *redis.Client) *ProjectionCache {
	return &ProjectionCache{
		client: client,
		logger: logger,
	}
}

// WalletKey builds the cache key for a user's wallet projection
func WalletKey(userID uuid.UUID) string {
	return walletKeyPrefix + userID.String()
}

// UserKey builds the cache key for a user record
func UserKey(userID uuid.UUID) string {
	return userKeyPrefix + userID.String()
}

// Get loads a cached value into dest. Returns ErrCacheMiss when absent so
// callers can distinguish a miss from a Redis failure.
func (c *ProjectionCache) Get(ctx context.Context, key string, dest any) error {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		c.logger.Error("Failed to read from cache", "key", key, "error", err)
		return fmt.Errorf("failed to read from cache: %w", err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		// A corrupt value is as good as a miss. Drop it so the next write repairs it.
		c.logger.Error("Failed to decode cached value, dropping key", "key", key, "error", err)
		c.client.Del(ctx, key)
		return ErrCacheMiss
	}

	return nil
}

// Set stores a value under the key with the given TTL
func (c *ProjectionCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for cache: %w", err)
	}

	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.logger.Error("Failed to write to cache", "key", key, "error", err)
		return fmt.Errorf("failed to write to cache: %w", err)
	}

	return nil
}

// InvalidateUser removes every cached projection belonging to the user. Called
// after any balance change so the next read reflects the new state immediately
// instead of waiting out the TTL.
func (c *ProjectionCache) InvalidateUser(ctx context.Context, userID uuid.UUID) error {
	keys := []string{WalletKey(userID), UserKey(userID)}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Error("Failed to invalidate cache for user",
			"user_id", userID.String(),
			"error", err)
		return fmt.Errorf("failed to invalidate cache for user: %w", err)
	}

	c.logger.Debug("Invalidated cache for user", "user_id", userID.String())
	return nil
}
