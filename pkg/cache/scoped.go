package cache

// ScopedKeyer wraps a Keyer with a prefix so several deployments (or
// registries) can share one Redis database without colliding.
//
// Example usage:
//
//	// Keys for a private registry mirror
//	mirror := NewScopedKeyer(NewDefaultKeyer(), "mirror:")
//
//	// Keys for the public registry
//	public := NewDefaultKeyer()
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
	if prefix == "" {
		return inner
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

func (k *ScopedKeyer) SearchKey(query string, limit, offset int) string {
	return k.prefix + k.inner.SearchKey(query, limit, offset)
}

func (k *ScopedKeyer) InfoKey(name, version string) string {
	return k.prefix + k.inner.InfoKey(name, version)
}

func (k *ScopedKeyer) VulnKey(name, version string) string {
	return k.prefix + k.inner.VulnKey(name, version)
}
