package npm

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/matzehuels/pkgintel/pkg/integrations"
)

// Default endpoints.
const (
	DefaultRegistryURL  = "https://registry.npmjs.org"
	DefaultDownloadsURL = "https://api.npmjs.org"
)

// Search ranking weights sent with every query.
const (
	weightQuality     = "0.65"
	weightPopularity  = "0.98"
	weightMaintenance = "0.5"
)

// Client talks to the npm registry and the npm downloads API.
type Client struct {
	*integrations.Client
	registryURL  string
	downloadsURL string
}

// NewClient creates a Client. Empty URLs take the public defaults.
func NewClient(http *integrations.Client, registryURL, downloadsURL string) *Client {
	if registryURL == "" {
		registryURL = DefaultRegistryURL
	}
	if downloadsURL == "" {
		downloadsURL = DefaultDownloadsURL
	}
	return &Client{
		Client:       http,
		registryURL:  strings.TrimSuffix(registryURL, "/"),
		downloadsURL: strings.TrimSuffix(downloadsURL, "/"),
	}
}

// Search runs a registry text search. Results keep the registry's order.
func (c *Client) Search(ctx context.Context, text string, size, from int) (*SearchResponse, error) {
	q := url.Values{}
	q.Set("text", text)
	q.Set("size", strconv.Itoa(size))
	q.Set("from", strconv.Itoa(from))
	q.Set("quality", weightQuality)
	q.Set("popularity", weightPopularity)
	q.Set("maintenance", weightMaintenance)

	var resp SearchResponse
	if err := c.Get(ctx, c.registryURL+"/-/v1/search?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("npm search %q: %w", text, err)
	}
	return &resp, nil
}

// Packument fetches the full registry document for name.
// A missing package surfaces as a NOT_FOUND coded error.
func (c *Client) Packument(ctx context.Context, name string) (*Packument, error) {
	var doc Packument
	if err := c.Get(ctx, c.registryURL+"/"+integrations.EscapePackageName(name), &doc); err != nil {
		return nil, fmt.Errorf("npm package %s: %w", name, err)
	}
	return &doc, nil
}

// Downloads fetches the download count of name over period
// (last-day, last-week, last-month, last-year).
func (c *Client) Downloads(ctx context.Context, period, name string) (*DownloadsPoint, error) {
	u := fmt.Sprintf("%s/downloads/point/%s/%s", c.downloadsURL, url.PathEscape(period), name)
	var point DownloadsPoint
	if err := c.Get(ctx, u, &point); err != nil {
		return nil, fmt.Errorf("npm downloads %s: %w", name, err)
	}
	return &point, nil
}

// ResolveVersion maps a requested version or dist-tag to a concrete
// version present in doc. An empty request means the "latest" tag.
func (p *Packument) ResolveVersion(requested string) (string, bool) {
	if requested == "" {
		requested = "latest"
	}
	if _, ok := p.Versions[requested]; ok {
		return requested, true
	}
	if tagged, ok := p.DistTags[requested]; ok {
		if _, ok := p.Versions[tagged]; ok {
			return tagged, true
		}
	}
	if v := strings.TrimPrefix(requested, "v"); v != requested {
		if _, ok := p.Versions[v]; ok {
			return v, true
		}
	}
	return "", false
}
