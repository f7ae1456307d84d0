package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/pkgintel/pkg/config"
	"github.com/matzehuels/pkgintel/pkg/observability"
)

func TestNewCacheBackends(t *testing.T) {
	mr := miniredis.RunT(t)
	logger := log.NewWithOptions(&strings.Builder{}, log.Options{})

	tests := []struct {
		name    string
		backend string
		setup   func(*config.Config)
		want    string
	}{
		{"memory", config.BackendMemory, nil, "*cache.Memory"},
		{"none", config.BackendNone, nil, "*cache.NullCache"},
		{"file", config.BackendFile, func(c *config.Config) { c.Cache.Dir = t.TempDir() }, "*cache.FileCache"},
		{"redis", config.BackendRedis, func(c *config.Config) { c.Cache.RedisURL = "redis://" + mr.Addr() }, "*cache.Redis"},
		{"redis unreachable", config.BackendRedis, func(c *config.Config) { c.Cache.RedisURL = "redis://127.0.0.1:1" }, "*cache.NullCache"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			cfg := config.Default()
			cfg.Cache.Backend = tt.backend
			if tt.setup != nil {
				tt.setup(cfg)
			}
			c, err := newCache(ctx, cfg, observability.NoopCacheHooks{}, logger)
			if err != nil {
				t.Fatalf("newCache() error: %v", err)
			}
			defer c.Close()

			if got := fmt.Sprintf("%T", c); got != tt.want {
				t.Errorf("newCache(%s) = %s, want %s", tt.backend, got, tt.want)
			}
		})
	}
}

func TestCachePathCommand(t *testing.T) {
	setupEnv(t, newFakeUpstream(t))

	out, err := runCLI(t, "cache", "path")
	if err != nil {
		t.Fatalf("cache path error: %v", err)
	}
	want, _ := config.CacheDir()
	if strings.TrimSpace(out) != want {
		t.Errorf("cache path = %q, want %q", strings.TrimSpace(out), want)
	}

	dir := filepath.Join(t.TempDir(), "elsewhere")
	t.Setenv("PKGINTEL_CACHE_DIR", dir)
	out, err = runCLI(t, "cache", "path")
	if err != nil {
		t.Fatalf("cache path error: %v", err)
	}
	if strings.TrimSpace(out) != dir {
		t.Errorf("cache path = %q, want %q", strings.TrimSpace(out), dir)
	}
}

func TestCacheClearEmpty(t *testing.T) {
	setupEnv(t, newFakeUpstream(t))

	out, err := runCLI(t, "cache", "clear")
	if err != nil {
		t.Fatalf("cache clear error: %v", err)
	}
	if !strings.Contains(out, "Cache is empty") {
		t.Errorf("cache clear output = %q", out)
	}
}
