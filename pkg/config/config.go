// Package config loads pkgintel settings.
//
// Settings come from three layers, later layers winning:
//
//  1. built-in defaults ([Default])
//  2. a TOML file, by default $XDG_CONFIG_HOME/pkgintel/config.toml
//  3. PKGINTEL_* environment variables
//
// A missing default file is not an error; a missing file named explicitly
// is. Unknown keys in the file are rejected so typos do not go unnoticed.
//
// Example file:
//
//	[registry]
//	github_token = "ghp_..."
//
//	[cache]
//	backend = "redis"
//	redis_url = "redis://localhost:6379/0"
//	search_ttl = "5m"
//
//	[log]
//	level = "debug"
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/pkgintel/pkg/errors"
	"github.com/matzehuels/pkgintel/pkg/integrations/bundlephobia"
	"github.com/matzehuels/pkgintel/pkg/integrations/ghsa"
	"github.com/matzehuels/pkgintel/pkg/integrations/npm"
	"github.com/matzehuels/pkgintel/pkg/integrations/osv"
)

const appName = "pkgintel"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PKGINTEL_"

// Cache backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendFile   = "file"
	BackendNone   = "none"
)

// Config is the complete pkgintel configuration.
type Config struct {
	Registry RegistryConfig `toml:"registry"`
	HTTP     HTTPConfig     `toml:"http"`
	Cache    CacheConfig    `toml:"cache"`
	PM       PMConfig       `toml:"pm"`
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
}

// RegistryConfig holds upstream endpoints.
type RegistryConfig struct {
	NPM          string `toml:"npm"`
	Downloads    string `toml:"downloads"`
	Bundlephobia string `toml:"bundlephobia"`
	GitHub       string `toml:"github"`
	OSV          string `toml:"osv"`

	// GitHubToken raises the advisory API rate limit. Falls back to
	// $GITHUB_TOKEN.
	GitHubToken string `toml:"github_token"`
}

// HTTPConfig tunes outbound requests.
type HTTPConfig struct {
	Timeout    time.Duration `toml:"timeout"`
	Attempts   int           `toml:"attempts"`
	Delay      time.Duration `toml:"delay"`
	DNSRefresh time.Duration `toml:"dns_refresh"`
}

// CacheConfig selects and tunes the cache backend.
type CacheConfig struct {
	Backend    string        `toml:"backend"`
	Dir        string        `toml:"dir"`
	RedisURL   string        `toml:"redis_url"`
	Prefix     string        `toml:"prefix"`
	DefaultTTL time.Duration `toml:"default_ttl"`
	MaxEntries int           `toml:"max_entries"`
	SearchTTL  time.Duration `toml:"search_ttl"`
	InfoTTL    time.Duration `toml:"info_ttl"`
	VulnTTL    time.Duration `toml:"vuln_ttl"`
}

// PMConfig tunes package manager runs.
type PMConfig struct {
	Timeout time.Duration `toml:"timeout"`
}

// LogConfig selects the log level and output format (text, json or logfmt).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig configures `pkgintel serve`.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Registry: RegistryConfig{
			NPM:          npm.DefaultRegistryURL,
			Downloads:    npm.DefaultDownloadsURL,
			Bundlephobia: bundlephobia.DefaultURL,
			GitHub:       ghsa.DefaultURL,
			OSV:          osv.DefaultURL,
		},
		HTTP: HTTPConfig{
			Timeout:    30 * time.Second,
			Attempts:   3,
			Delay:      500 * time.Millisecond,
			DNSRefresh: 5 * time.Minute,
		},
		Cache: CacheConfig{
			Backend:    BackendMemory,
			Prefix:     appName + ":",
			DefaultTTL: time.Hour,
			MaxEntries: 10000,
			SearchTTL:  15 * time.Minute,
			InfoTTL:    time.Hour,
			VulnTTL:    time.Hour,
		},
		PM:     PMConfig{Timeout: 60 * time.Second},
		Log:    LogConfig{Level: "info", Format: "text"},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Dir returns the config directory, respecting XDG_CONFIG_HOME.
func Dir() (string, error) {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// CacheDir returns the directory of the file cache backend, respecting
// XDG_CACHE_HOME.
func CacheDir() (string, error) {
	return xdgDir("XDG_CACHE_HOME", ".cache")
}

func xdgDir(env, fallback string) (string, error) {
	base := os.Getenv(env)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, fallback)
	}
	return filepath.Join(base, appName), nil
}

// DefaultPath returns the location of the default config file.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load builds the configuration from defaults, the file at path and the
// environment, then validates it. An empty path means [DefaultPath].
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}
	if path != "" {
		if err := cfg.loadFile(path, explicit); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if cfg.Registry.GitHubToken == "" {
		cfg.Registry.GitHubToken = os.Getenv("GITHUB_TOKEN")
	}
	if cfg.Cache.Backend == BackendFile && cfg.Cache.Dir == "" {
		dir, err := CacheDir()
		if err != nil {
			return nil, fmt.Errorf("resolve cache dir: %w", err)
		}
		cfg.Cache.Dir = dir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string, required bool) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return errors.New(errors.ErrCodeInvalidInput, "config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"NPM_REGISTRY":     &c.Registry.NPM,
		"DOWNLOADS_URL":    &c.Registry.Downloads,
		"BUNDLEPHOBIA_URL": &c.Registry.Bundlephobia,
		"GITHUB_API_URL":   &c.Registry.GitHub,
		"OSV_URL":          &c.Registry.OSV,
		"GITHUB_TOKEN":     &c.Registry.GitHubToken,
		"CACHE_BACKEND":    &c.Cache.Backend,
		"CACHE_DIR":        &c.Cache.Dir,
		"REDIS_URL":        &c.Cache.RedisURL,
		"LOG_LEVEL":        &c.Log.Level,
		"LOG_FORMAT":       &c.Log.Format,
		"LISTEN_ADDR":      &c.Server.Addr,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"HTTP_TIMEOUT": &c.HTTP.Timeout,
		"CACHE_TTL":    &c.Cache.DefaultTTL,
		"SEARCH_TTL":   &c.Cache.SearchTTL,
		"INFO_TTL":     &c.Cache.InfoTTL,
		"VULN_TTL":     &c.Cache.VulnTTL,
		"PM_TIMEOUT":   &c.PM.Timeout,
	}
	for key, dst := range durations {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "%s%s", EnvPrefix, key)
		}
		*dst = d
	}

	ints := map[string]*int{
		"HTTP_ATTEMPTS":     &c.HTTP.Attempts,
		"CACHE_MAX_ENTRIES": &c.Cache.MaxEntries,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "%s%s", EnvPrefix, key)
		}
		*dst = n
	}
	return nil
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	var problems []string
	bad := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch c.Cache.Backend {
	case BackendMemory, BackendFile, BackendNone:
	case BackendRedis:
		if c.Cache.RedisURL == "" {
			bad("cache.redis_url is required for the redis backend")
		}
	default:
		bad("cache.backend must be one of memory, redis, file, none (got %q)", c.Cache.Backend)
	}
	if c.Cache.MaxEntries < 0 {
		bad("cache.max_entries must not be negative")
	}
	for name, d := range map[string]time.Duration{
		"http.timeout":      c.HTTP.Timeout,
		"http.delay":        c.HTTP.Delay,
		"cache.default_ttl": c.Cache.DefaultTTL,
		"cache.search_ttl":  c.Cache.SearchTTL,
		"cache.info_ttl":    c.Cache.InfoTTL,
		"cache.vuln_ttl":    c.Cache.VulnTTL,
		"pm.timeout":        c.PM.Timeout,
	} {
		if d < 0 {
			bad("%s must not be negative", name)
		}
	}
	if c.HTTP.Attempts < 1 {
		bad("http.attempts must be at least 1")
	}
	for name, u := range map[string]string{
		"registry.npm":          c.Registry.NPM,
		"registry.downloads":    c.Registry.Downloads,
		"registry.bundlephobia": c.Registry.Bundlephobia,
		"registry.github":       c.Registry.GitHub,
		"registry.osv":          c.Registry.OSV,
	} {
		if err := errors.ValidateURL(u); err != nil {
			bad("%s: %s", name, errors.UserMessage(err))
		}
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		bad("log.level: %v", err)
	}
	switch c.Log.Format {
	case "text", "json", "logfmt":
	default:
		bad("log.format must be text, json or logfmt (got %q)", c.Log.Format)
	}

	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return errors.New(errors.ErrCodeInvalidInput, "invalid config: %s", strings.Join(problems, "; "))
}

// LogLevel returns the parsed log level, info when unparseable.
func (c *Config) LogLevel() log.Level {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// LogFormatter returns the charmbracelet formatter for Log.Format.
func (c *Config) LogFormatter() log.Formatter {
	switch c.Log.Format {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}

// Masked returns a copy of c with secrets replaced.
func (c *Config) Masked() Config {
	out := *c
	if out.Registry.GitHubToken != "" {
		out.Registry.GitHubToken = "********"
	}
	return out
}

// Write encodes c as TOML. Secrets are masked.
func (c *Config) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c.Masked())
}
