// Package cache defines the cache client interface and factory types.
package cache

import (
	"context"
	"time"
)

// Type represents the type of cache.
type Type string

const (
	// TypeRedis represents a Redis cache.
	TypeRedis Type = "redis"
)

// Client defines the cache operations used by the service. The cache is
// operational state only (rate-limit counters); nothing authoritative lives
// here.
type Client interface {
	// Get retrieves a value by key. Returns nil if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with a TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Returns true if the key existed.
	Delete(ctx context.Context, key string) (bool, error)

	// Incr increments the counter at key, creating it with the given TTL on
	// first increment, and returns the new count.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Ping checks if the cache connection is alive.
	Ping(ctx context.Context) error

	// Close closes the cache connection.
	Close() error
}
