// Package cache provides the persistent key-value storage behind the remote
// fetch cache.
//
// # Backends
//
// All backends implement [Cache], a byte-level store with optional TTL:
//
//   - [FileCache]: JSON files under a directory (CLI default)
//   - [MemoryCache]: process-local map (tests, --cache=memory)
//   - [RedisCache]: shared cache for multi-instance preview servers
//   - [MongoCache]: document-per-key collection
//   - [NullCache]: caching disabled
//
// # Module records
//
// [ModuleStore] layers typed access to [module.Record] values on top of any
// backend. Records are written without expiry: registry URLs are assumed to
// be content-immutable (version-pinned), so a stored record can never go
// stale. Registries without that guarantee need a versioned key or a TTL.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-level key-value store.
//
// Get returns (data, true, nil) on a hit and (nil, false, nil) on a miss.
// A ttl of 0 passed to Set means the entry never expires.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Keyer builds cache keys. Implementations must be deterministic.
type Keyer interface {
	// ModuleKey returns the key for a loaded module address.
	ModuleKey(address string) string
}

// DefaultKeyer produces unscoped keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default key scheme.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// ModuleKey returns "module:<address>".
func (DefaultKeyer) ModuleKey(address string) string { return "module:" + address }
