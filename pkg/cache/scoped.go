package cache

// ScopedKeyer wraps a Keyer with a prefix for multi-tenant isolation.
// This is useful when several galleries (or several users' views of the
// same gallery) share a cache backend and must not see each other's pages.
//
// Example usage:
//
//	// User-specific keys for private galleries
//	userKeyer := NewScopedKeyer(NewDefaultKeyer(), "user:abc123:")
//
//	// Global keys for public datasets
//	globalKeyer := NewDefaultKeyer()
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// PageKey generates a prefixed key for a resolved page.
func (k *ScopedKeyer) PageKey(source string, cursor any, opts PageKeyOpts) string {
	return k.prefix + k.inner.PageKey(source, cursor, opts)
}
