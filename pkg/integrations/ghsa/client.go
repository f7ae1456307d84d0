// Package ghsa provides an HTTP client for the GitHub Advisory Database
// (the global security advisories REST endpoint).
//
// Advisories are queried by ecosystem and affected package name:
//
//	c := ghsa.NewClient(http, "", os.Getenv("GITHUB_TOKEN"))
//	advisories, err := c.Advisories(ctx, "npm", "lodash")
//
// A token is optional. Unauthenticated requests work but share a much
// lower rate limit.
package ghsa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/matzehuels/pkgintel/pkg/integrations"
)

// DefaultURL is the public GitHub REST API.
const DefaultURL = "https://api.github.com"

// maxPerPage is the largest page the endpoint serves.
const maxPerPage = 100

// Advisory is one entry of GET /advisories.
type Advisory struct {
	GHSAID          string          `json:"ghsa_id"`
	CVEID           string          `json:"cve_id"`
	URL             string          `json:"url"`
	HTMLURL         string          `json:"html_url"`
	Summary         string          `json:"summary"`
	Description     string          `json:"description"`
	Severity        string          `json:"severity"`
	Identifiers     []Identifier    `json:"identifiers"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
	CVSS            *CVSS           `json:"cvss"`
	PublishedAt     *time.Time      `json:"published_at"`
	UpdatedAt       *time.Time      `json:"updated_at"`
	WithdrawnAt     *time.Time      `json:"withdrawn_at"`
}

// Identifier is an alternative id of an advisory (GHSA or CVE).
type Identifier struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// CVSS carries the advisory's CVSS score, when GitHub computed one.
type CVSS struct {
	VectorString string  `json:"vector_string"`
	Score        float64 `json:"score"`
}

// Vulnerability ties an advisory to one package and version range.
type Vulnerability struct {
	Package                Package        `json:"package"`
	VulnerableVersionRange string         `json:"vulnerable_version_range"`
	FirstPatchedVersion    PatchedVersion `json:"first_patched_version"`
}

// Package identifies an affected package.
type Package struct {
	Ecosystem string `json:"ecosystem"`
	Name      string `json:"name"`
}

// PatchedVersion is the first fixed version. The global endpoint sends a
// plain string while repository advisories send {"identifier": "..."};
// both decode here.
type PatchedVersion string

func (p *PatchedVersion) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*p = PatchedVersion(s)
		return nil
	}
	var obj struct {
		Identifier string `json:"identifier"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*p = PatchedVersion(obj.Identifier)
	return nil
}

// Aliases returns every identifier of a that differs from its GHSA id.
func (a *Advisory) Aliases() []string {
	var out []string
	seen := map[string]bool{a.GHSAID: true}
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	add(a.CVEID)
	for _, id := range a.Identifiers {
		add(id.Value)
	}
	return out
}

// Client talks to the GitHub advisories endpoint.
type Client struct {
	*integrations.Client
	baseURL string
	token   string
}

// NewClient creates a Client. An empty baseURL takes [DefaultURL]; an
// empty token sends unauthenticated requests.
func NewClient(http *integrations.Client, baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{Client: http, baseURL: strings.TrimSuffix(baseURL, "/"), token: token}
}

// Advisories lists the reviewed advisories affecting name in ecosystem.
// Withdrawn advisories are skipped.
func (c *Client) Advisories(ctx context.Context, ecosystem, name string) ([]Advisory, error) {
	q := url.Values{}
	q.Set("ecosystem", ecosystem)
	q.Set("affects", name)
	q.Set("per_page", fmt.Sprint(maxPerPage))

	var raw []Advisory
	if err := c.GetWithHeaders(ctx, c.baseURL+"/advisories?"+q.Encode(), c.headers(), &raw); err != nil {
		return nil, fmt.Errorf("github advisories for %s: %w", name, err)
	}

	out := raw[:0]
	for _, a := range raw {
		if a.WithdrawnAt == nil {
			out = append(out, a)
		}
	}
	return out, nil
}

func (c *Client) headers() map[string]string {
	h := map[string]string{
		"Accept":               "application/vnd.github+json",
		"X-GitHub-Api-Version": "2022-11-28",
	}
	if c.token != "" {
		h["Authorization"] = "Bearer " + c.token
	}
	return h
}
