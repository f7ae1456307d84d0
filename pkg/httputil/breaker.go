package httputil

import (
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
)

// ErrCircuitOpen is returned when a host's breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker open")

// BreakerOptions tunes the per-host breakers.
type BreakerOptions struct {
	// Threshold is the number of consecutive failures that trips a breaker.
	Threshold int64
	// Cooldown is the initial open interval before a trial request.
	Cooldown time.Duration
	// MaxCooldown caps the exponentially growing open interval.
	MaxCooldown time.Duration
}

// DefaultBreakerOptions trips after 5 consecutive failures and retries
// after 30s, backing off to 5 minutes.
var DefaultBreakerOptions = BreakerOptions{
	Threshold:   5,
	Cooldown:    30 * time.Second,
	MaxCooldown: 5 * time.Minute,
}

// Breakers holds one circuit breaker per upstream host, so an outage of the
// bundle-size service does not block registry lookups.
type Breakers struct {
	opts     BreakerOptions
	breakers map[string]*circuit.Breaker
	mu       sync.RWMutex
}

// NewBreakers creates an empty breaker set. Zero option fields take the
// defaults.
func NewBreakers(opts BreakerOptions) *Breakers {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultBreakerOptions.Threshold
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultBreakerOptions.Cooldown
	}
	if opts.MaxCooldown <= 0 {
		opts.MaxCooldown = DefaultBreakerOptions.MaxCooldown
	}
	return &Breakers{opts: opts, breakers: make(map[string]*circuit.Breaker)}
}

func (b *Breakers) get(host string) *circuit.Breaker {
	b.mu.RLock()
	breaker, exists := b.breakers[host]
	b.mu.RUnlock()
	if exists {
		return breaker
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if breaker, exists := b.breakers[host]; exists {
		return breaker
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = b.opts.Cooldown
	expBackoff.MaxInterval = b.opts.MaxCooldown
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	breaker = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(b.opts.Threshold),
	})
	b.breakers[host] = breaker
	return breaker
}

// Call runs fn under the breaker for rawURL's host. Only errors for which
// IsRetryable is true count as breaker failures; a 404 says nothing about
// upstream health. When the breaker is open fn is not called and the
// returned error wraps ErrCircuitOpen and is retryable.
func (b *Breakers) Call(rawURL string, fn func() error) error {
	host := HostOf(rawURL)
	breaker := b.get(host)

	if !breaker.Ready() {
		return Retryable(fmt.Errorf("%w for %s", ErrCircuitOpen, host))
	}

	var permanent error
	err := breaker.Call(func() error {
		err := fn()
		if err != nil && !IsRetryable(err) {
			permanent = err
			return nil
		}
		return err
	}, 0)
	if permanent != nil {
		return permanent
	}
	if errors.Is(err, circuit.ErrBreakerOpen) {
		return Retryable(fmt.Errorf("%w for %s", ErrCircuitOpen, host))
	}
	return err
}

// State reports "open" or "closed" for every host seen so far.
func (b *Breakers) State() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	states := make(map[string]string, len(b.breakers))
	for host, breaker := range b.breakers {
		if breaker.Tripped() {
			states[host] = "open"
		} else {
			states[host] = "closed"
		}
	}
	return states
}

// HostOf extracts the host used to group breakers.
func HostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		if len(rawURL) > 50 {
			return rawURL[:50]
		}
		return rawURL
	}
	return parsed.Host
}
