package cache

// ScopedKeyer wraps a Keyer with a prefix so several deployments can share
// one backend (for example one Redis instance) without colliding.
//
// Example usage:
//
//	// Per-registry keys
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "unpkg:")
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

// ModuleKey generates a prefixed key for a module record.
func (k *ScopedKeyer) ModuleKey(address string) string {
	return k.prefix + k.inner.ModuleKey(address)
}
