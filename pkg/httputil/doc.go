// Package httputil provides HTTP plumbing shared by the upstream API clients.
//
// # Overview
//
//   - [Retry]: retry with randomized exponential backoff (cenk/backoff)
//   - [Breakers]: one circuit breaker per upstream host (rubyist/circuitbreaker)
//   - [NewHTTPClient]: an http.Client with a DNS-caching dialer (rs/dnscache)
//
// # Retry
//
// [Retry] only retries errors wrapped with [RetryableError]:
//
//   - Network errors
//   - 5xx server errors
//   - 429 rate limit responses
//
// Everything else (404, 400, decode failures) is returned on the first
// attempt:
//
//	err := httputil.Retry(ctx, 3, 500*time.Millisecond, func() error {
//	    return fetch()
//	})
//
// # Circuit breaking
//
// [Breakers.Call] groups calls by URL host. Only retryable failures trip a
// breaker; an open breaker fails fast with an error wrapping [ErrCircuitOpen].
//
// # Defaults
//
//   - Request timeout: 30 seconds
//   - Attempts: 3, initial delay 500ms, doubling
//   - Breaker: trips after 5 consecutive failures, 30s cooldown up to 5m
package httputil
