package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	pkgerrors "github.com/matzehuels/pkgintel/pkg/errors"
	"github.com/matzehuels/pkgintel/pkg/httputil"
	"github.com/matzehuels/pkgintel/pkg/observability"
)

// Options configures a [Client]. Zero values take the defaults.
type Options struct {
	// HTTP is the underlying client. Defaults to httputil.NewHTTPClient.
	HTTP *http.Client

	// Breakers is shared between clients so each upstream host has exactly
	// one breaker. Defaults to a private set.
	Breakers *httputil.Breakers

	// Headers are applied to every request.
	Headers map[string]string

	// Timeout bounds one logical call, retries included. Default 30s.
	Timeout time.Duration

	// Attempts and Delay tune retries. Defaults 3 and 500ms.
	Attempts int
	Delay    time.Duration

	Hooks  observability.HTTPHooks
	Logger *log.Logger
}

// Client provides shared HTTP functionality for all upstream API clients.
// It handles timeouts, retries, circuit breaking, common headers and maps
// HTTP failures to coded errors.
type Client struct {
	http     *http.Client
	breakers *httputil.Breakers
	headers  map[string]string
	timeout  time.Duration
	attempts int
	delay    time.Duration
	hooks    observability.HTTPHooks
	logger   *log.Logger
}

// NewClient creates a Client from opts.
func NewClient(opts Options) *Client {
	c := &Client{
		http:     opts.HTTP,
		breakers: opts.Breakers,
		headers:  opts.Headers,
		timeout:  opts.Timeout,
		attempts: opts.Attempts,
		delay:    opts.Delay,
		hooks:    opts.Hooks,
		logger:   opts.Logger,
	}
	if c.timeout <= 0 {
		c.timeout = httputil.DefaultTimeout
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	if c.breakers == nil {
		c.breakers = httputil.NewBreakers(httputil.DefaultBreakerOptions)
	}
	if c.attempts <= 0 {
		c.attempts = httputil.DefaultAttempts
	}
	if c.delay <= 0 {
		c.delay = httputil.DefaultDelay
	}
	if c.hooks == nil {
		c.hooks = observability.NoopHTTPHooks{}
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	return c
}

// Logger returns the client's logger.
func (c *Client) Logger() *log.Logger { return c.logger }

// Get performs an HTTP GET request and JSON-decodes the response into v.
func (c *Client) Get(ctx context.Context, url string, v any) error {
	return c.GetWithHeaders(ctx, url, nil, v)
}

// GetWithHeaders performs an HTTP GET with additional headers merged with defaults.
// Request-specific headers override client defaults for the same key.
func (c *Client) GetWithHeaders(ctx context.Context, url string, headers map[string]string, v any) error {
	return c.do(ctx, http.MethodGet, url, nil, headers, v)
}

// PostJSON encodes body as JSON, POSTs it and decodes the response into v.
func (c *Client) PostJSON(ctx context.Context, url string, body, v any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrCodeInternal, err, "encode request for %s", url)
	}
	headers := map[string]string{"Content-Type": "application/json"}
	return c.do(ctx, http.MethodPost, url, data, headers, v)
}

func (c *Client) do(ctx context.Context, method, rawURL string, body []byte, headers map[string]string, v any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := httputil.Retry(ctx, c.attempts, c.delay, func() error {
		return c.breakers.Call(rawURL, func() error {
			return c.once(ctx, method, rawURL, body, headers, v)
		})
	})
	if err == nil {
		return nil
	}
	return classify(method, rawURL, err)
}

func (c *Client) once(ctx context.Context, method, rawURL string, body []byte, headers map[string]string, v any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrCodeInternal, err, "build request for %s", rawURL)
	}
	req.Header.Set("Accept", "application/json")
	for k, val := range c.headers {
		req.Header.Set(k, val)
	}
	for k, val := range headers {
		req.Header.Set(k, val)
	}

	host, path := req.URL.Host, req.URL.Path
	c.hooks.OnRequest(ctx, method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		c.hooks.OnError(ctx, method, host, path, err)
		c.logger.Debug("upstream request failed", "method", method, "url", rawURL, "error", err)
		return httputil.Retryable(fmt.Errorf("%w: %w", ErrNetwork, err))
	}
	defer resp.Body.Close()
	c.hooks.OnResponse(ctx, method, host, path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp); err != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return err
	}
	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrCodeNetwork, err, "decode response from %s", host)
	}
	return nil
}

// checkStatus maps a response status to an error. 5xx and 429 are
// retryable; 404 is NotFound; any other non-2xx is a plain HTTPError.
func checkStatus(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return pkgerrors.Wrap(pkgerrors.ErrCodeNotFound, ErrNotFound, "%s", resp.Request.URL.Redacted())
	case code == http.StatusTooManyRequests:
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		return httputil.Retryable(pkgerrors.Wrap(pkgerrors.ErrCodeRateLimited,
			&pkgerrors.RateLimitedError{RetryAfter: retryAfter}, "%s", resp.Request.URL.Host))
	case code >= 500:
		return httputil.Retryable(pkgerrors.Wrap(pkgerrors.ErrCodeNetwork,
			&HTTPError{StatusCode: code, URL: resp.Request.URL.Redacted()}, "upstream error"))
	default:
		return pkgerrors.Wrap(pkgerrors.ErrCodeInternal,
			&HTTPError{StatusCode: code, URL: resp.Request.URL.Redacted()}, "unexpected response")
	}
}

// classify turns whatever Retry returned into a coded error.
func classify(method, rawURL string, err error) error {
	var re *httputil.RetryableError
	if errors.As(err, &re) {
		err = re.Err
	}
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return pkgerrors.Wrap(pkgerrors.ErrCodeTimeout, err, "%s %s", method, redact(rawURL))
	case pkgerrors.GetCode(err) != "":
		return err
	case errors.Is(err, context.Canceled):
		return err
	default:
		return pkgerrors.Wrap(pkgerrors.ErrCodeNetwork, err, "%s %s", method, redact(rawURL))
	}
}

func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Redacted()
}
