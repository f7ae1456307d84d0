package httputil

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func TestRetryable(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should return nil")
	}

	err := Retryable(errTransient)
	if !IsRetryable(err) {
		t.Error("IsRetryable should return true for wrapped error")
	}
	if err.Error() != errTransient.Error() {
		t.Errorf("Error message should be preserved: %s", err.Error())
	}
	if !errors.Is(err, errTransient) {
		t.Error("errors.Is should see through RetryableError")
	}
	if IsRetryable(errTransient) {
		t.Error("IsRetryable should return false for unwrapped error")
	}
}

func TestRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("success on first try", func(t *testing.T) {
		calls := 0
		err := Retry(ctx, 3, time.Millisecond, func() error {
			calls++
			return nil
		})
		if err != nil || calls != 1 {
			t.Errorf("Retry() = %v after %d calls, want nil after 1", err, calls)
		}
	})

	t.Run("non-retryable stops immediately", func(t *testing.T) {
		calls := 0
		permanent := errors.New("not found")
		err := Retry(ctx, 3, time.Millisecond, func() error {
			calls++
			return permanent
		})
		if err != permanent {
			t.Errorf("Retry() = %v, want %v", err, permanent)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("retryable recovers", func(t *testing.T) {
		calls := 0
		err := Retry(ctx, 3, time.Millisecond, func() error {
			calls++
			if calls < 2 {
				return Retryable(errTransient)
			}
			return nil
		})
		if err != nil || calls != 2 {
			t.Errorf("Retry() = %v after %d calls, want nil after 2", err, calls)
		}
	})

	t.Run("attempts exhausted", func(t *testing.T) {
		calls := 0
		err := Retry(ctx, 3, time.Millisecond, func() error {
			calls++
			return Retryable(errTransient)
		})
		if !errors.Is(err, errTransient) {
			t.Errorf("Retry() = %v, want %v", err, errTransient)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})
}

func TestRetryContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, 3, time.Millisecond, func() error {
		calls++
		return Retryable(errTransient)
	})
	if err != context.Canceled {
		t.Errorf("Retry() = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
}

func TestBreakersTripOnTransientFailures(t *testing.T) {
	b := NewBreakers(BreakerOptions{Threshold: 2, Cooldown: time.Hour})
	url := "https://bundlephobia.com/api/size?package=react"

	calls := 0
	fail := func() error {
		calls++
		return Retryable(errTransient)
	}

	_ = b.Call(url, fail)
	_ = b.Call(url, fail)

	err := b.Call(url, fail)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Call() = %v, want ErrCircuitOpen", err)
	}
	if !IsRetryable(err) {
		t.Error("open breaker error should be retryable")
	}
	if calls != 2 {
		t.Errorf("fn called %d times, want 2", calls)
	}
	if got := b.State()["bundlephobia.com"]; got != "open" {
		t.Errorf("State() = %q, want open", got)
	}

	// Other hosts are unaffected.
	if err := b.Call("https://registry.npmjs.org/react", func() error { return nil }); err != nil {
		t.Errorf("other host Call() = %v, want nil", err)
	}
}

func TestBreakersIgnorePermanentFailures(t *testing.T) {
	b := NewBreakers(BreakerOptions{Threshold: 1})
	url := "https://registry.npmjs.org/missing"
	notFound := errors.New("not found")

	for i := 0; i < 3; i++ {
		if err := b.Call(url, func() error { return notFound }); err != notFound {
			t.Fatalf("Call() = %v, want %v", err, notFound)
		}
	}
	if got := b.State()["registry.npmjs.org"]; got != "closed" {
		t.Errorf("State() = %q, want closed", got)
	}
}

func TestHostOf(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://registry.npmjs.org/react", "registry.npmjs.org"},
		{"https://api.osv.dev/v1/query", "api.osv.dev"},
		{"http://localhost:4873/x", "localhost:4873"},
		{"not a url", "not a url"},
	}
	for _, tt := range tests {
		if got := HostOf(tt.url); got != tt.want {
			t.Errorf("HostOf(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestNewHTTPClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := NewHTTPClient(ctx, time.Second, time.Minute)
	if client.Timeout != time.Second {
		t.Errorf("Timeout = %v, want 1s", client.Timeout)
	}

	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Errorf("body = %q, want ok", body)
	}
}
