// Package cache keeps recently served user profiles in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hamhub/internal/models"

	"github.com/go-redis/redis/v8"
)

const profileKeyPrefix = "profile:"

// DefaultProfileTTL bounds how stale a cached profile can get.
const DefaultProfileTTL = 5 * time.Minute

// RedisProfileCache stores profiles as JSON under "profile:<id>".
// The password hash is never written because models.User does not serialize it.
type RedisProfileCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProfileCache wraps an existing client.
func NewRedisProfileCache(client *redis.Client, ttl time.Duration) *RedisProfileCache {
	if ttl <= 0 {
		ttl = DefaultProfileTTL
	}
	return &RedisProfileCache{client: client, ttl: ttl}
}

// Connect parses url, pings the server and returns a ready cache.
func Connect(ctx context.Context, url string, ttl time.Duration) (*RedisProfileCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisProfileCache(client, ttl), nil
}

// GetProfile returns the cached profile; ok is false on a miss.
func (c *RedisProfileCache) GetProfile(ctx context.Context, userID string) (*models.User, bool, error) {
	data, err := c.client.Get(ctx, profileKeyPrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cached profile %s: %w", userID, err)
	}

	var user models.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached profile %s: %w", userID, err)
	}
	return &user, true, nil
}

// SetProfile caches user for the configured TTL.
func (c *RedisProfileCache) SetProfile(ctx context.Context, user *models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode profile %s: %w", user.ID, err)
	}
	if err := c.client.Set(ctx, profileKeyPrefix+user.ID, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache profile %s: %w", user.ID, err)
	}
	return nil
}

// DeleteProfile drops a cached profile.
func (c *RedisProfileCache) DeleteProfile(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, profileKeyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("failed to evict profile %s: %w", userID, err)
	}
	return nil
}

// Close closes the Redis client.
func (c *RedisProfileCache) Close() error {
	return c.client.Close()
}
