// Package orchestrator composes the registry, the vulnerability scanner and
// the package manager runner behind one API.
//
// Lookups are cache-aside: search results are cached for 15 minutes,
// package records and vulnerability reports for an hour. A package record
// is built from a base registry lookup (a hard failure when it fails) plus
// three concurrent enrichments (downloads, bundle size, security) that are
// each allowed to fail; a failed enrichment leaves its field nil.
//
// Package manager operations resolve the dialect from the project
// directory when none is given and never return a Go error: failures are
// reported in the [model.OperationResult].
//
// All collaborators are passed in through [Deps]:
//
//	o := orchestrator.New(orchestrator.Deps{
//	    Registry: registry.New(npmClient, bundleClient, logger),
//	    Scanner:  security.NewScanner(ghsaClient, osvClient, logger),
//	    Runner:   pm.NewRunner(pm.RunnerOptions{Logger: logger}),
//	    Cache:    cache.NewMemory(cache.Options{}),
//	})
package orchestrator

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pkgintel/pkg/cache"
	"github.com/matzehuels/pkgintel/pkg/model"
	"github.com/matzehuels/pkgintel/pkg/observability"
	"github.com/matzehuels/pkgintel/pkg/pm"
)

// Cache lifetimes.
const (
	DefaultSearchTTL = 15 * time.Minute
	DefaultInfoTTL   = time.Hour
	DefaultVulnTTL   = time.Hour
)

// EnrichmentPeriod is the download window attached to package records.
const EnrichmentPeriod = model.PeriodWeek

// Registry is the package registry facade. Implemented by *registry.Client.
type Registry interface {
	Search(ctx context.Context, query string, limit, offset int) ([]model.SearchResult, error)
	GetPackageInfo(ctx context.Context, name, version string) (*model.PackageRecord, error)
	GetDownloadStats(ctx context.Context, name string, period model.Period) (*model.DownloadStats, error)
	GetBundleSize(ctx context.Context, name, version string) *model.BundleSize
	PackageExists(ctx context.Context, name string) bool
	GetVersions(ctx context.Context, name string) ([]model.Version, error)
}

// Scanner checks packages for known vulnerabilities. Implemented by
// *security.Scanner.
type Scanner interface {
	CheckVulnerabilities(ctx context.Context, name, version string) (*model.SecurityInfo, error)
}

// Runner executes package manager operations. Implemented by *pm.Runner.
type Runner interface {
	Run(ctx context.Context, op model.Operation, dialect model.Dialect, opts pm.Options) *model.OperationResult
}

// Deps are the collaborators of an Orchestrator. Registry, Scanner and
// Runner are required; the rest default.
type Deps struct {
	Registry Registry
	Scanner  Scanner
	Runner   Runner

	Cache  cache.Cache  // default cache.NewNullCache()
	Keyer  cache.Keyer  // default cache.NewDefaultKeyer()
	Hooks  observability.ToolHooks
	Logger *log.Logger

	// Detect resolves the dialect of a directory. Default pm.Detect.
	Detect func(dir string) model.DetectionResult
}

// Option tunes an Orchestrator.
type Option func(*Orchestrator)

// WithSearchTTL overrides how long search results are cached.
func WithSearchTTL(ttl time.Duration) Option {
	return func(o *Orchestrator) { o.searchTTL = ttl }
}

// WithInfoTTL overrides how long package records are cached.
func WithInfoTTL(ttl time.Duration) Option {
	return func(o *Orchestrator) { o.infoTTL = ttl }
}

// WithVulnTTL overrides how long vulnerability reports are cached.
func WithVulnTTL(ttl time.Duration) Option {
	return func(o *Orchestrator) { o.vulnTTL = ttl }
}

// WithRefresh makes every lookup bypass cached values. Fresh results are
// still written back.
func WithRefresh(refresh bool) Option {
	return func(o *Orchestrator) { o.refresh = refresh }
}

// Orchestrator is safe for concurrent use.
type Orchestrator struct {
	registry Registry
	scanner  Scanner
	runner   Runner
	cache    cache.Cache
	keyer    cache.Keyer
	hooks    observability.ToolHooks
	logger   *log.Logger
	detect   func(string) model.DetectionResult

	searchTTL time.Duration
	infoTTL   time.Duration
	vulnTTL   time.Duration
	refresh   bool
}

// New creates an Orchestrator.
func New(deps Deps, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:  deps.Registry,
		scanner:   deps.Scanner,
		runner:    deps.Runner,
		cache:     deps.Cache,
		keyer:     deps.Keyer,
		hooks:     deps.Hooks,
		logger:    deps.Logger,
		detect:    deps.Detect,
		searchTTL: DefaultSearchTTL,
		infoTTL:   DefaultInfoTTL,
		vulnTTL:   DefaultVulnTTL,
	}
	if o.cache == nil {
		o.cache = cache.NewNullCache()
	}
	if o.keyer == nil {
		o.keyer = cache.NewDefaultKeyer()
	}
	if o.hooks == nil {
		o.hooks = observability.NoopToolHooks{}
	}
	if o.logger == nil {
		o.logger = log.Default()
	}
	if o.detect == nil {
		o.detect = pm.Detect
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SearchPackages searches the registry. Results are cached per
// (query, limit, offset).
func (o *Orchestrator) SearchPackages(ctx context.Context, query string, limit, offset int) (results []model.SearchResult, err error) {
	defer o.track(ctx, ToolSearchPackages)(&err)

	key := o.keyer.SearchKey(query, limit, offset)
	return cached(ctx, o, key, o.searchTTL, func() ([]model.SearchResult, error) {
		return o.registry.Search(ctx, query, limit, offset)
	})
}

// GetPackageInfo returns the enriched record of name at version (latest
// when empty). Only the base lookup can fail.
func (o *Orchestrator) GetPackageInfo(ctx context.Context, name, version string) (rec *model.PackageRecord, err error) {
	defer o.track(ctx, ToolGetPackageInfo)(&err)
	return o.packageInfo(ctx, name, version)
}

func (o *Orchestrator) packageInfo(ctx context.Context, name, version string) (*model.PackageRecord, error) {
	key := o.keyer.InfoKey(name, version)
	return cached(ctx, o, key, o.infoTTL, func() (*model.PackageRecord, error) {
		rec, err := o.registry.GetPackageInfo(ctx, name, version)
		if err != nil {
			return nil, err
		}
		o.enrich(ctx, rec)
		return rec, nil
	})
}

// enrich fills the optional fields of rec concurrently. Each goroutine
// owns one field.
func (o *Orchestrator) enrich(ctx context.Context, rec *model.PackageRecord) {
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		stats, err := o.registry.GetDownloadStats(ctx, rec.Name, EnrichmentPeriod)
		if err != nil {
			o.logger.Warn("download stats unavailable", "package", rec.Name, "error", err)
			return
		}
		rec.DownloadStats = stats
	}()

	go func() {
		defer wg.Done()
		if size := o.registry.GetBundleSize(ctx, rec.Name, rec.Version); size != nil && size.Known() {
			rec.BundleSize = size
		}
	}()

	go func() {
		defer wg.Done()
		info, err := o.vulnerabilities(ctx, rec.Name, rec.Version)
		if err != nil {
			o.logger.Warn("security info unavailable", "package", rec.Name, "error", err)
			return
		}
		rec.Security = info
	}()

	wg.Wait()
}

// CheckVulnerabilities scans name at version (every advisory naming the
// package when version is empty).
func (o *Orchestrator) CheckVulnerabilities(ctx context.Context, name, version string) (info *model.SecurityInfo, err error) {
	defer o.track(ctx, ToolCheckVulnerabilities)(&err)
	return o.vulnerabilities(ctx, name, version)
}

func (o *Orchestrator) vulnerabilities(ctx context.Context, name, version string) (*model.SecurityInfo, error) {
	key := o.keyer.VulnKey(name, version)
	return cached(ctx, o, key, o.vulnTTL, func() (*model.SecurityInfo, error) {
		return o.scanner.CheckVulnerabilities(ctx, name, version)
	})
}

// GetDownloadStats returns the download count of name over period. Not
// cached.
func (o *Orchestrator) GetDownloadStats(ctx context.Context, name string, period model.Period) (stats *model.DownloadStats, err error) {
	defer o.track(ctx, ToolGetDownloadStats)(&err)
	return o.registry.GetDownloadStats(ctx, name, period)
}

// GetVersions lists the published versions of name, newest first.
func (o *Orchestrator) GetVersions(ctx context.Context, name string) (versions []model.Version, err error) {
	defer o.track(ctx, ToolGetVersions)(&err)
	return o.registry.GetVersions(ctx, name)
}

// PackageExists reports whether the registry knows name.
func (o *Orchestrator) PackageExists(ctx context.Context, name string) bool {
	return o.registry.PackageExists(ctx, name)
}

// DetectPackageManager reports the dialect governing dir.
func (o *Orchestrator) DetectPackageManager(dir string) model.DetectionResult {
	return o.detect(dir)
}

// CacheMetrics returns the cache counters.
func (o *Orchestrator) CacheMetrics() cache.Metrics {
	return o.cache.Metrics()
}

// cached implements cache-aside for JSON-serializable values. Cache
// failures are logged and never change the outcome.
func cached[T any](ctx context.Context, o *Orchestrator, key string, ttl time.Duration, fetch func() (T, error)) (T, error) {
	if !o.refresh {
		data, ok, err := o.cache.Get(ctx, key)
		switch {
		case err != nil:
			o.logger.Warn("cache read failed", "key", key, "error", err)
		case ok:
			var v T
			if err := json.Unmarshal(data, &v); err == nil {
				return v, nil
			}
			o.logger.Warn("discarding unreadable cache entry", "key", key)
			_ = o.cache.Delete(ctx, key)
		}
	}

	v, err := fetch()
	if err != nil {
		return v, err
	}

	data, err := json.Marshal(v)
	if err != nil {
		o.logger.Warn("cache encode failed", "key", key, "error", err)
		return v, nil
	}
	if err := o.cache.Set(ctx, key, data, ttl); err != nil {
		o.logger.Warn("cache write failed", "key", key, "error", err)
	}
	return v, nil
}

// track reports a tool call to the hooks. Use as
// defer o.track(ctx, name)(&err).
func (o *Orchestrator) track(ctx context.Context, tool string) func(*error) {
	start := time.Now()
	o.hooks.OnToolStart(ctx, tool)
	return func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		o.hooks.OnToolComplete(ctx, tool, time.Since(start), err)
	}
}
