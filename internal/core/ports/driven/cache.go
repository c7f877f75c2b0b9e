package driven

import (
	"context"
	"time"
)

// Cache is a string key/value cache with per-entry expiry.
// Backed by Redis in production, an in-memory map in tests.
type Cache interface {
	// Get returns the value for key, or domain.ErrCacheMiss.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value with the given TTL. Zero TTL means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// FeatureFlagStore reads feature flags and their string tags.
// Flags gate features per workspace; tags carry small configuration values
// such as the ";"-separated list of indexed channels.
type FeatureFlagStore interface {
	// Enabled reports whether a flag is switched on.
	Enabled(ctx context.Context, flag string) (bool, error)

	// Tag returns the tag value for a flag, or domain.ErrFlagUnset.
	Tag(ctx context.Context, flag, tag string) (string, error)
}
