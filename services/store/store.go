// Package store provides the namespaced key/value cache backing playlist
// rewrites and resolved best-source entries. Every entry carries its own
// TTL; reads after expiry miss even if the backend has not evicted yet.
package store

import (
	"context"
	"time"
)

// Cache namespaces used across the application.
const (
	NamespaceBestSource = "best-source"
	NamespacePlaylist   = "m3u8"
)

// Store is the cache contract. Implementations must be safe for concurrent
// use. Callers treat Get errors as a miss and Set errors as a dropped
// write; a failing store never aborts the caller's primary operation.
type Store interface {
	// Get returns the value for key, or found=false on miss or expiry.
	Get(ctx context.Context, namespace, key string) (value []byte, found bool, err error)

	// GetMany resolves a set of keys in one round trip. The returned map
	// contains only keys that were present and unexpired.
	GetMany(ctx context.Context, namespace string, keys []string) (map[string][]byte, error)

	// Set writes value under key with the given TTL. Last writer wins.
	Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error

	// Delete removes an entry; deleting a missing key is not an error.
	Delete(ctx context.Context, namespace, key string) error

	Close() error
}
