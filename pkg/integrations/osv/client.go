// Package osv provides an HTTP client for the OSV.dev vulnerability
// database.
//
// OSV answers range queries: given an ecosystem, a package name and an
// optional version it returns the vulnerabilities that apply.
//
//	c := osv.NewClient(http, "")
//	vulns, err := c.Query(ctx, "npm", "minimist", "1.2.0")
package osv

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/matzehuels/pkgintel/pkg/integrations"
)

// DefaultURL is the public OSV API.
const DefaultURL = "https://api.osv.dev"

// maxPages bounds how many result pages one query follows.
const maxPages = 10

// Range kinds.
const (
	RangeSemver    = "SEMVER"
	RangeEcosystem = "ECOSYSTEM"
	RangeGit       = "GIT"
)

// Vuln is one OSV record.
type Vuln struct {
	ID               string           `json:"id"`
	Summary          string           `json:"summary"`
	Details          string           `json:"details"`
	Aliases          []string         `json:"aliases"`
	Published        *time.Time       `json:"published"`
	Modified         *time.Time       `json:"modified"`
	Withdrawn        *time.Time       `json:"withdrawn"`
	Severity         []Severity       `json:"severity"`
	Affected         []Affected       `json:"affected"`
	References       []Reference      `json:"references"`
	DatabaseSpecific DatabaseSpecific `json:"database_specific"`
}

// Severity is a typed severity score. For CVSS_V3 and CVSS_V4 the score
// is a vector string.
type Severity struct {
	Type  string `json:"type"`
	Score string `json:"score"`
}

// Affected lists the affected ranges of one package.
type Affected struct {
	Package           Package          `json:"package"`
	Ranges            []Range          `json:"ranges"`
	Versions          []string         `json:"versions"`
	DatabaseSpecific  DatabaseSpecific `json:"database_specific"`
	EcosystemSpecific map[string]any   `json:"ecosystem_specific"`
}

// Package identifies an affected package.
type Package struct {
	Name      string `json:"name"`
	Ecosystem string `json:"ecosystem"`
	PURL      string `json:"purl,omitempty"`
}

// Range is an ordered list of events over one versioning scheme.
type Range struct {
	Type   string  `json:"type"`
	Events []Event `json:"events"`
}

// Event opens or closes an affected interval. Exactly one field is set.
type Event struct {
	Introduced   string `json:"introduced,omitempty"`
	Fixed        string `json:"fixed,omitempty"`
	LastAffected string `json:"last_affected,omitempty"`
	Limit        string `json:"limit,omitempty"`
}

// Reference is a link attached to a record.
type Reference struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// DatabaseSpecific holds the fields this client reads from the free-form
// database_specific object. GitHub-sourced records carry a textual
// severity here.
type DatabaseSpecific struct {
	Severity string `json:"severity"`
	URL      string `json:"url"`
}

// AdvisoryURL returns the most useful link for v: an ADVISORY reference,
// then the first reference, then the osv.dev page.
func (v *Vuln) AdvisoryURL() string {
	for _, ref := range v.References {
		if ref.Type == "ADVISORY" {
			return ref.URL
		}
	}
	if len(v.References) > 0 {
		return v.References[0].URL
	}
	return "https://osv.dev/vulnerability/" + v.ID
}

type queryRequest struct {
	Package   Package `json:"package"`
	Version   string  `json:"version,omitempty"`
	PageToken string  `json:"page_token,omitempty"`
}

type queryResponse struct {
	Vulns         []Vuln `json:"vulns"`
	NextPageToken string `json:"next_page_token"`
}

// Client talks to the OSV API.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a Client. An empty baseURL takes [DefaultURL].
func NewClient(http *integrations.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{Client: http, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Query returns the vulnerabilities recorded for name in ecosystem. With
// a version, OSV only returns records whose ranges contain it. Withdrawn
// records are skipped.
func (c *Client) Query(ctx context.Context, ecosystem, name, version string) ([]Vuln, error) {
	req := queryRequest{
		Package: Package{Name: name, Ecosystem: ecosystem},
		Version: version,
	}

	var out []Vuln
	for page := 0; page < maxPages; page++ {
		var resp queryResponse
		if err := c.PostJSON(ctx, c.baseURL+"/v1/query", req, &resp); err != nil {
			return nil, fmt.Errorf("osv query %s: %w", name, err)
		}
		for _, v := range resp.Vulns {
			if v.Withdrawn == nil {
				out = append(out, v)
			}
		}
		if resp.NextPageToken == "" {
			return out, nil
		}
		req.PageToken = resp.NextPageToken
	}
	c.Logger().Warn("osv results truncated", "package", name, "pages", maxPages)
	return out, nil
}
