// Package registry normalizes npm registry, downloads API and bundle-size
// responses into [model] records.
//
// The upstream clients return raw API shapes; this package owns the
// mapping rules (version resolution, loose author/license fields, PURL
// construction) and the failure policy of each call:
//
//   - GetPackageInfo and GetDownloadStats fail hard.
//   - GetBundleSize never fails; unknown sizes come back zeroed.
//   - PackageExists never fails; any error reads as "does not exist".
package registry

import (
	"context"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	packageurl "github.com/package-url/packageurl-go"

	"github.com/matzehuels/pkgintel/pkg/errors"
	"github.com/matzehuels/pkgintel/pkg/integrations/bundlephobia"
	"github.com/matzehuels/pkgintel/pkg/integrations/npm"
	"github.com/matzehuels/pkgintel/pkg/model"
)

// Client is the registry facade used by the orchestrator.
type Client struct {
	npm     *npm.Client
	bundles *bundlephobia.Client
	logger  *log.Logger
}

// New creates a Client. A nil logger uses log.Default().
func New(npmClient *npm.Client, bundles *bundlephobia.Client, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	return &Client{npm: npmClient, bundles: bundles, logger: logger}
}

// Search runs a registry search. limit is clamped to [1,100] and offset
// floored at 0. Results keep the registry's ranking order.
func (c *Client) Search(ctx context.Context, query string, limit, offset int) ([]model.SearchResult, error) {
	limit = min(max(limit, errors.MinSearchLimit), errors.MaxSearchLimit)
	offset = max(offset, 0)

	resp, err := c.npm.Search(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}

	results := make([]model.SearchResult, 0, len(resp.Objects))
	for _, obj := range resp.Objects {
		p := obj.Package
		results = append(results, model.SearchResult{
			Name:        p.Name,
			Version:     p.Version,
			Description: p.Description,
			Keywords:    p.Keywords,
			Publisher:   p.Publisher.Username,
			Links:       p.Links,
			Date:        p.Date,
			Score: model.Score{
				Final:       obj.Score.Final,
				Quality:     obj.Score.Detail.Quality,
				Popularity:  obj.Score.Detail.Popularity,
				Maintenance: obj.Score.Detail.Maintenance,
			},
		})
	}
	return results, nil
}

// GetPackageInfo fetches the base record of name at version. An empty
// version resolves to the "latest" dist-tag; other dist-tags resolve too.
// A missing package or version fails with PACKAGE_NOT_FOUND.
func (c *Client) GetPackageInfo(ctx context.Context, name, version string) (*model.PackageRecord, error) {
	doc, err := c.npm.Packument(ctx, name)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.Wrap(errors.ErrCodePackageNotFound, err, "package %s not found", name)
		}
		return nil, err
	}

	resolved, ok := doc.ResolveVersion(version)
	if !ok {
		if version == "" {
			version = "latest"
		}
		return nil, errors.New(errors.ErrCodePackageNotFound, "package %s has no version %s", name, version)
	}
	return buildRecord(doc, resolved), nil
}

func buildRecord(doc *npm.Packument, version string) *model.PackageRecord {
	m := doc.Versions[version]
	rec := &model.PackageRecord{
		Name:             coalesce(m.Name, doc.Name),
		Version:          version,
		Description:      coalesce(m.Description, doc.Description),
		License:          coalesce(npm.ExtractLicense(m.License), npm.ExtractLicense(m.Licenses), npm.ExtractLicense(doc.License)),
		Keywords:         npm.ExtractKeywords(m.Keywords),
		Dependencies:     m.Dependencies,
		DevDependencies:  m.DevDependencies,
		PeerDependencies: m.PeerDependencies,
		Repository:       npm.ExtractRepoURL(m.Repository, doc.Repository),
		Homepage:         coalesce(npm.ExtractString(m.Homepage), npm.ExtractString(doc.Homepage)),
		Deprecated:       npm.ExtractDeprecated(m.Deprecated),
		PublishedAt:      doc.PublishedAt(version),
		DistTags:         doc.DistTags,
	}
	if rec.Keywords == nil {
		rec.Keywords = npm.ExtractKeywords(doc.Keywords)
	}

	author := m.Author
	if author == nil {
		author = doc.Author
	}
	if p := npm.ParsePerson(author); p != nil {
		rec.Author = &model.Author{Name: p.Name, Email: p.Email, URL: p.URL}
	}

	maintainers := m.Maintainers
	if maintainers == nil {
		maintainers = doc.Maintainers
	}
	for _, p := range npm.ParsePeople(maintainers) {
		rec.Maintainers = append(rec.Maintainers, model.Author{Name: p.Name, Email: p.Email, URL: p.URL})
	}

	rec.PURL = PURL(rec.Name, version)
	return rec
}

// GetDownloadStats fetches the download count of name over period.
func (c *Client) GetDownloadStats(ctx context.Context, name string, period model.Period) (*model.DownloadStats, error) {
	if !period.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidInput, "unsupported download period %q", period)
	}
	point, err := c.npm.Downloads(ctx, string(period), name)
	if err != nil {
		return nil, err
	}
	return &model.DownloadStats{
		Package:   coalesce(point.Package, name),
		Period:    period,
		Downloads: point.Downloads,
		Start:     point.Start,
		End:       point.End,
	}, nil
}

// GetBundleSize returns the bundle footprint of name at version. Size data
// is missing for many packages, so every failure yields a zeroed record.
func (c *Client) GetBundleSize(ctx context.Context, name, version string) *model.BundleSize {
	size, err := c.bundles.Size(ctx, name, version)
	if err != nil {
		c.logger.Debug("bundle size unavailable", "package", name, "version", version, "error", err)
		return &model.BundleSize{Name: name, Version: version}
	}
	return &model.BundleSize{
		Name:            coalesce(size.Name, name),
		Version:         coalesce(size.Version, version),
		Size:            size.Size,
		Gzip:            size.Gzip,
		DependencyCount: size.DependencyCount,
		HasJSModule:     size.ESModule(),
		HasSideEffects:  size.SideEffects(),
	}
}

// PackageExists reports whether the registry knows name. Any error,
// including network failures, reads as false.
func (c *Client) PackageExists(ctx context.Context, name string) bool {
	_, err := c.npm.Packument(ctx, name)
	if err != nil && !errors.IsNotFound(err) {
		c.logger.Debug("existence probe failed", "package", name, "error", err)
	}
	return err == nil
}

// GetVersions lists every published version of name, newest first by
// publish time. Versions without a recorded time sort last.
func (c *Client) GetVersions(ctx context.Context, name string) ([]model.Version, error) {
	doc, err := c.npm.Packument(ctx, name)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.Wrap(errors.ErrCodePackageNotFound, err, "package %s not found", name)
		}
		return nil, err
	}

	versions := make([]model.Version, 0, len(doc.Versions))
	for number, m := range doc.Versions {
		versions = append(versions, model.Version{
			Number:      number,
			PublishedAt: doc.PublishedAt(number),
			Deprecated:  npm.ExtractDeprecated(m.Deprecated),
		})
	}
	sort.Slice(versions, func(i, j int) bool {
		a, b := versions[i].PublishedAt, versions[j].PublishedAt
		switch {
		case a == nil && b == nil:
			return versions[i].Number > versions[j].Number
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.After(*b)
	})
	return versions, nil
}

// PURL returns the package URL of an npm package, e.g.
// "pkg:npm/lodash@4.17.21". Scoped names become a namespace.
func PURL(name, version string) string {
	return packageurl.NewPackageURL(packageurl.TypeNPM, npmScope(name), npm.BaseName(name), version, nil, "").ToString()
}

// ParsePURL reads an npm package URL back into a name and version.
func ParsePURL(purl string) (name, version string, err error) {
	p, err := packageurl.FromString(purl)
	if err != nil {
		return "", "", errors.Wrap(errors.ErrCodeInvalidPackage, err, "invalid package URL %q", purl)
	}
	if p.Type != packageurl.TypeNPM {
		return "", "", errors.New(errors.ErrCodeInvalidPackage, "package URL %q is not an npm package", purl)
	}
	name = p.Name
	if p.Namespace != "" {
		name = "@" + strings.TrimPrefix(p.Namespace, "@") + "/" + p.Name
	}
	return name, p.Version, nil
}

func npmScope(name string) string {
	if ns := npm.Namespace(name); ns != "" {
		return "@" + ns
	}
	return ""
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
