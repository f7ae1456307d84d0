// Package bundlephobia provides an HTTP client for the bundlephobia
// bundle-size API.
package bundlephobia

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/matzehuels/pkgintel/pkg/integrations"
)

// DefaultURL is the public bundlephobia endpoint.
const DefaultURL = "https://bundlephobia.com"

// Size is the body of GET /api/size.
type Size struct {
	Name            string `json:"name"`
	Version         string `json:"version"`
	Description     string `json:"description"`
	Size            int64  `json:"size"`
	Gzip            int64  `json:"gzip"`
	DependencyCount int    `json:"dependencyCount"`
	HasJSModule     any    `json:"hasJSModule"`
	HasJSNext       bool   `json:"hasJSNext"`
	HasSideEffects  any    `json:"hasSideEffects"`
}

// ESModule reports whether the package ships an ES module build.
// The API returns either a bool or the module entry path.
func (s *Size) ESModule() bool { return truthy(s.HasJSModule) || s.HasJSNext }

// SideEffects reports whether the package declares side effects. A list
// of files with side effects counts as true.
func (s *Size) SideEffects() bool { return truthy(s.HasSideEffects) }

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	}
	return false
}

// Client talks to the bundlephobia API.
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

// Size fetches the bundle size of name at version, or of the latest
// version when version is empty.
func (c *Client) Size(ctx context.Context, name, version string) (*Size, error) {
	spec := name
	if version != "" {
		spec += "@" + version
	}
	var size Size
	u := c.baseURL + "/api/size?package=" + url.QueryEscape(spec)
	if err := c.GetWithHeaders(ctx, u, map[string]string{"X-Bundlephobia-User": "pkgintel"}, &size); err != nil {
		return nil, fmt.Errorf("bundlephobia %s: %w", spec, err)
	}
	return &size, nil
}
