// Package storage defines the key-value store interface that holds the novel catalog
// snapshot and the proxied cache entries, and its backends.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is missing or expired.
var ErrNotFound = errors.New("key not found")

// Store is a string key-value store with optional per-key expiry.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key. ttl <= 0 means the value never expires.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}
