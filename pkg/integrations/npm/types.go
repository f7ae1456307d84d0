package npm

import "time"

// Packument is the full registry document for one package
// (GET /<name>). Fields that appear in several shapes across the registry
// history are typed any and read through the extract helpers.
type Packument struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	DistTags    map[string]string   `json:"dist-tags"`
	Versions    map[string]Manifest `json:"versions"`
	Time        map[string]string   `json:"time"`
	Maintainers any                 `json:"maintainers"`
	Author      any                 `json:"author"`
	Repository  any                 `json:"repository"`
	Homepage    any                 `json:"homepage"`
	License     any                 `json:"license"`
	Keywords    any                 `json:"keywords"`
}

// Manifest is one version entry of a Packument.
type Manifest struct {
	Name             string            `json:"name"`
	Version          string            `json:"version"`
	Description      string            `json:"description"`
	Keywords         any               `json:"keywords"`
	License          any               `json:"license"`
	Licenses         any               `json:"licenses"`
	Author           any               `json:"author"`
	Maintainers      any               `json:"maintainers"`
	Homepage         any               `json:"homepage"`
	Repository       any               `json:"repository"`
	Dependencies     map[string]string `json:"dependencies"`
	DevDependencies  map[string]string `json:"devDependencies"`
	PeerDependencies map[string]string `json:"peerDependencies"`
	Deprecated       any               `json:"deprecated"`
}

// PublishedAt returns the publish time of version, if recorded.
func (p *Packument) PublishedAt(version string) *time.Time {
	raw, ok := p.Time[version]
	if !ok {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &t
}

// SearchResponse is the body of GET /-/v1/search.
type SearchResponse struct {
	Objects []SearchObject `json:"objects"`
	Total   int            `json:"total"`
	Time    string         `json:"time"`
}

// SearchObject is one search hit.
type SearchObject struct {
	Package     SearchPackage `json:"package"`
	Score       SearchScore   `json:"score"`
	SearchScore float64       `json:"searchScore"`
}

// SearchPackage is the package summary inside a search hit.
type SearchPackage struct {
	Name        string            `json:"name"`
	Scope       string            `json:"scope"`
	Version     string            `json:"version"`
	Description string            `json:"description"`
	Keywords    []string          `json:"keywords"`
	Date        *time.Time        `json:"date"`
	Links       map[string]string `json:"links"`
	Publisher   struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	} `json:"publisher"`
}

// SearchScore is the registry ranking of a hit.
type SearchScore struct {
	Final  float64 `json:"final"`
	Detail struct {
		Quality     float64 `json:"quality"`
		Popularity  float64 `json:"popularity"`
		Maintenance float64 `json:"maintenance"`
	} `json:"detail"`
}

// DownloadsPoint is the body of GET /downloads/point/<period>/<name>.
type DownloadsPoint struct {
	Downloads int64  `json:"downloads"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Package   string `json:"package"`
}
