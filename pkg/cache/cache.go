// Package cache provides pluggable caching for resolved gallery pages.
//
// The engine itself never caches: one request is in flight at a time and
// responses are applied directly. Hosts that want page caching compose a
// cache-backed source around their real data source (see pkg/source). This
// package supplies the backends:
//   - file: JSON entries on disk for CLI usage
//   - redis: shared cache for multi-instance deployments
//   - null: caching disabled (tests, benchmarks)
//
// Keys are generated through a Keyer so that different sources, option sets,
// and users never collide.
package cache

import (
	"context"
	"time"
)

// Cache is the interface implemented by all cache backends.
type Cache interface {
	// Get retrieves a value. The second return value reports whether the
	// key was present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with a time-to-live. A ttl of 0 means the entry
	// never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources (connections, file handles).
	Close() error
}

// PageKeyOpts are the request parameters that affect page identity.
// Two requests with the same cursor but different limits must not share
// a cache entry.
type PageKeyOpts struct {
	Limit int
}

// Keyer generates cache keys for the different cached value types.
type Keyer interface {
	// PageKey generates a key for a resolved page of items.
	// source identifies the data source (e.g., "http:localhost:8080",
	// "mongo:gallery.samples"); cursor is the opaque request key.
	PageKey(source string, cursor any, opts PageKeyOpts) string
}

// DefaultKeyer is the standard key generator.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard key generator.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// PageKey generates a key of the form "page:<sha256(source, cursor, opts)>".
func (k *DefaultKeyer) PageKey(source string, cursor any, opts PageKeyOpts) string {
	return hashKey("page", source, cursor, opts)
}
