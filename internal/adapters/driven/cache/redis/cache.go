// Package redis provides the key/value cache and feature-flag store
// adapters backed by Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/communitykit/communitybot/internal/core/domain"
	"github.com/communitykit/communitybot/internal/core/ports/driven"
)

// Ensure Client implements the interfaces.
var (
	_ driven.Cache            = (*Client)(nil)
	_ driven.FeatureFlagStore = (*Client)(nil)
)

// Key layout. Flags live under their own prefix so a cache flush can
// leave them untouched.
const (
	cachePrefix = "cache:"
	flagPrefix  = "flag:"
)

// Config holds the Redis connection settings.
type Config struct {
	// Addr is the host:port of the Redis server (default: localhost:6379).
	Addr string

	// Password authenticates the connection. Empty means none.
	Password string

	// DB selects the logical database.
	DB int
}

// Client is a Redis-backed cache and feature-flag store.
type Client struct {
	rdb *redis.Client
}

// New creates the client. The connection is verified lazily on first use.
func New(cfg Config) *Client {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	return &Client{
		rdb: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

// Ping verifies the connection.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Get returns the cached value for key, or domain.ErrCacheMiss.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	value, err := c.rdb.Get(ctx, cachePrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("redis: get %s: %w", key, err)
	}
	return value, nil
}

// Set stores a value with the given TTL. Zero TTL means no expiry.
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, cachePrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, cachePrefix+key).Err(); err != nil {
		return fmt.Errorf("redis: delete %s: %w", key, err)
	}
	return nil
}

// Enabled reports whether a flag is switched on. A missing flag is off.
func (c *Client) Enabled(ctx context.Context, flag string) (bool, error) {
	value, err := c.rdb.Get(ctx, flagPrefix+flag).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis: flag %s: %w", flag, err)
	}
	return value == "1" || value == "true" || value == "on", nil
}

// Tag returns the tag value for a flag, or domain.ErrFlagUnset.
func (c *Client) Tag(ctx context.Context, flag, tag string) (string, error) {
	value, err := c.rdb.Get(ctx, flagPrefix+flag+":"+tag).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrFlagUnset
	}
	if err != nil {
		return "", fmt.Errorf("redis: flag tag %s/%s: %w", flag, tag, err)
	}
	return value, nil
}
