// Package integrations provides HTTP clients for the upstream APIs pkgintel
// aggregates.
//
// # Overview
//
// Each upstream has its own subpackage holding the raw API schema and a
// thin client:
//
//   - [npm]: registry search, package documents and download counts
//   - [bundlephobia]: minified/gzipped bundle sizes
//   - [ghsa]: GitHub Advisory Database (global advisories endpoint)
//   - [osv]: OSV range-query API
//
// These clients return the upstream's own shapes. Normalization into
// pkgintel records happens one layer up, in pkg/registry and pkg/security.
//
// # Shared Infrastructure
//
// The [Client] type provides the HTTP behaviour every subpackage shares:
//
//   - a 30s deadline per logical call, surfacing as a TIMEOUT error
//   - retries with exponential backoff for network errors, 5xx and 429
//   - one circuit breaker per upstream host
//   - status mapping: 404 becomes NOT_FOUND (and wraps [ErrNotFound])
//
// [npm]: github.com/matzehuels/pkgintel/pkg/integrations/npm
// [bundlephobia]: github.com/matzehuels/pkgintel/pkg/integrations/bundlephobia
// [ghsa]: github.com/matzehuels/pkgintel/pkg/integrations/ghsa
// [osv]: github.com/matzehuels/pkgintel/pkg/integrations/osv
package integrations
