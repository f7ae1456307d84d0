package cache

// Key namespaces. The namespace is also the keyType reported to hooks.
const (
	NamespaceSearch = "search"
	NamespaceInfo   = "info"
	NamespaceVulns  = "vulns"
)

// Keyer builds cache keys for each cached lookup.
type Keyer interface {
	SearchKey(query string, limit, offset int) string
	InfoKey(name, version string) string
	VulnKey(name, version string) string
}

// DefaultKeyer produces keys of the form namespace:part:part.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// SearchKey returns search:<query>:<limit>:<offset>.
func (DefaultKeyer) SearchKey(query string, limit, offset int) string {
	return Key(NamespaceSearch, query, limit, offset)
}

// InfoKey returns info:<name>:<version>. An empty version means "latest".
func (DefaultKeyer) InfoKey(name, version string) string {
	return Key(NamespaceInfo, name, versionOrLatest(version))
}

// VulnKey returns vulns:<name>:<version>.
func (DefaultKeyer) VulnKey(name, version string) string {
	return Key(NamespaceVulns, name, versionOrLatest(version))
}

func versionOrLatest(v string) string {
	if v == "" {
		return "latest"
	}
	return v
}
