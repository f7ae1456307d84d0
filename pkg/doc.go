// Package pkg provides the core libraries of pkgintel, a package
// intelligence service for the npm ecosystem.
//
// # Overview
//
// pkgintel answers questions about JavaScript packages and drives the local
// package manager. The pkg directory is organized into four areas:
//
//  1. [orchestrator] - The entry point every tool calls
//  2. Lookups - [registry] and [security] over the [integrations] clients
//  3. Local operations - [pm] (npm, yarn and pnpm)
//  4. Infrastructure - [cache], [httputil], [observability], [config], [errors]
//
// # Architecture
//
// A lookup flows through:
//
//	tool call (CLI command or HTTP)
//	         ↓
//	    [orchestrator] (cache-aside)
//	         ↓                       ↓
//	    [registry] ──────────── [security]
//	    npm, bundlephobia       GitHub advisories, OSV
//	         ↓
//	    [model].PackageRecord
//
// A package manager operation skips the cache:
//
//	[orchestrator] → [pm].Detect (when no dialect is given) → [pm].Runner → exec
//
// # Quick Start
//
//	import (
//	    "github.com/matzehuels/pkgintel/pkg/cache"
//	    "github.com/matzehuels/pkgintel/pkg/integrations"
//	    "github.com/matzehuels/pkgintel/pkg/integrations/bundlephobia"
//	    "github.com/matzehuels/pkgintel/pkg/integrations/ghsa"
//	    "github.com/matzehuels/pkgintel/pkg/integrations/npm"
//	    "github.com/matzehuels/pkgintel/pkg/integrations/osv"
//	    "github.com/matzehuels/pkgintel/pkg/orchestrator"
//	    "github.com/matzehuels/pkgintel/pkg/pm"
//	    "github.com/matzehuels/pkgintel/pkg/registry"
//	    "github.com/matzehuels/pkgintel/pkg/security"
//	)
//
//	http := integrations.NewClient(integrations.Options{})
//	o := orchestrator.New(orchestrator.Deps{
//	    Registry: registry.New(npm.NewClient(http, "", ""), bundlephobia.NewClient(http, ""), nil),
//	    Scanner:  security.NewScanner(ghsa.NewClient(http, "", token), osv.NewClient(http, ""), nil),
//	    Runner:   pm.NewRunner(pm.RunnerOptions{}),
//	    Cache:    cache.NewMemory(cache.Options{}),
//	})
//
//	rec, err := o.GetPackageInfo(ctx, "express", "")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(rec.Version, rec.Security.Severity)
//
// # Main Packages
//
// [orchestrator] - Cache-aside lookups, concurrent enrichment (downloads,
// bundle size, vulnerabilities) with per-field failure containment, and
// delegation of package manager operations.
//
// [registry] - Normalizes npm registry documents, download counts and
// bundlephobia sizes into [model] records.
//
// [security] - Scans the GitHub Advisory Database and OSV concurrently,
// matches version ranges with one semver algorithm, scores CVSS v3 vectors
// and deduplicates across sources.
//
// [pm] - Lock file based dialect detection, argument vectors for every
// dialect and operation, and bounded subprocess execution.
//
// [cache] - TTL key-value store with memory, Redis, file and null backends.
//
// [httputil] - Retries with exponential backoff, per-host circuit breakers
// and a DNS-caching transport.
//
// [observability] - Cache, HTTP and tool hooks with no-op and Prometheus
// implementations.
//
// # Testing
//
//	go test ./...                           # All tests
//	go test ./pkg/security/...              # Specific package
//	go test -tags integration ./pkg/...     # Include live upstream tests
//
// [orchestrator]: https://pkg.go.dev/github.com/matzehuels/pkgintel/pkg/orchestrator
// [registry]: https://pkg.go.dev/github.com/matzehuels/pkgintel/pkg/registry
// [security]: https://pkg.go.dev/github.com/matzehuels/pkgintel/pkg/security
// [integrations]: https://pkg.go.dev/github.com/matzehuels/pkgintel/pkg/integrations
// [pm]: https://pkg.go.dev/github.com/matzehuels/pkgintel/pkg/pm
// [cache]: https://pkg.go.dev/github.com/matzehuels/pkgintel/pkg/cache
// [httputil]: https://pkg.go.dev/github.com/matzehuels/pkgintel/pkg/httputil
// [observability]: https://pkg.go.dev/github.com/matzehuels/pkgintel/pkg/observability
// [config]: https://pkg.go.dev/github.com/matzehuels/pkgintel/pkg/config
// [errors]: https://pkg.go.dev/github.com/matzehuels/pkgintel/pkg/errors
// [model]: https://pkg.go.dev/github.com/matzehuels/pkgintel/pkg/model
package pkg
