package cache

// ScopedKeyer wraps a Keyer with a prefix for multi-run isolation. This
// keeps count-cache entries from two categories (or two credentials run
// against a shared Redis instance) from colliding.
//
// Example usage:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), runID.String()+":")
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

// CountKey generates a prefixed key for a bucket combination count.
func (k *ScopedKeyer) CountKey(categoryID string, filters map[string]string) string {
	return k.prefix + k.inner.CountKey(categoryID, filters)
}
