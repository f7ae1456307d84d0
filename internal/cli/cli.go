// Package cli implements the pkgintel command-line interface.
//
// Every command loads the configuration, builds an orchestrator from it and
// calls exactly one orchestrator method. Results are printed as styled text,
// or as JSON with --json.
//
// # Commands
//
//   - search, info, vulns, versions, downloads: registry and advisory lookups
//   - detect, install, update, remove, outdated, audit, cache-clean:
//     package manager operations in a project directory
//   - serve: the HTTP tool server
//   - cache, config: local housekeeping
//
// # Logging
//
// Logs go to stderr. --verbose (-v) switches to debug level; the config
// file's [log] section sets the default level and format.
package cli

import (
	"context"
	"io"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pkgintel/pkg/buildinfo"
	"github.com/matzehuels/pkgintel/pkg/cache"
	"github.com/matzehuels/pkgintel/pkg/config"
	"github.com/matzehuels/pkgintel/pkg/httputil"
	"github.com/matzehuels/pkgintel/pkg/integrations"
	"github.com/matzehuels/pkgintel/pkg/integrations/bundlephobia"
	"github.com/matzehuels/pkgintel/pkg/integrations/ghsa"
	"github.com/matzehuels/pkgintel/pkg/integrations/npm"
	"github.com/matzehuels/pkgintel/pkg/integrations/osv"
	"github.com/matzehuels/pkgintel/pkg/observability"
	"github.com/matzehuels/pkgintel/pkg/orchestrator"
	"github.com/matzehuels/pkgintel/pkg/pm"
	"github.com/matzehuels/pkgintel/pkg/registry"
	"github.com/matzehuels/pkgintel/pkg/security"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "pkgintel"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	jsonOutput bool
	refresh    bool
	verbose    bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "pkgintel answers questions about npm packages and runs package managers",
		Long:          `pkgintel searches the npm registry, enriches package metadata with download counts, bundle sizes and known vulnerabilities, and drives npm, yarn and pnpm with consistent flags.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if c.verbose {
				c.SetLogLevel(LogDebug)
			}
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/pkgintel/config.toml)")
	flags.BoolVar(&c.jsonOutput, "json", false, "print raw JSON records")
	flags.BoolVar(&c.refresh, "refresh", false, "bypass cached results")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(c.searchCommand())
	root.AddCommand(c.infoCommand())
	root.AddCommand(c.vulnsCommand())
	root.AddCommand(c.versionsCommand())
	root.AddCommand(c.downloadsCommand())
	root.AddCommand(c.detectCommand())
	for _, op := range operations {
		root.AddCommand(c.operationCommand(op))
	}
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Orchestrator Factory
// =============================================================================

// loadConfig reads the configuration and applies its log settings unless
// --verbose already forced debug output.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if !c.verbose {
		c.Logger.SetLevel(cfg.LogLevel())
	}
	c.Logger.SetFormatter(cfg.LogFormatter())
	return cfg, nil
}

// app is a fully wired orchestrator plus the resources it holds.
type app struct {
	cfg      *config.Config
	orch     *orchestrator.Orchestrator
	cache    cache.Cache
	breakers *httputil.Breakers
}

func (a *app) Close() error { return a.cache.Close() }

// newApp builds every component from cfg. hooks may be zero.
func (c *CLI) newApp(ctx context.Context, cfg *config.Config, hooks observability.Hooks) (*app, error) {
	hooks = hooks.WithDefaults()

	store, err := newCache(ctx, cfg, hooks.Cache, c.Logger)
	if err != nil {
		return nil, err
	}

	breakers := httputil.NewBreakers(httputil.DefaultBreakerOptions)
	httpClient := integrations.NewClient(integrations.Options{
		HTTP:     httputil.NewHTTPClient(ctx, cfg.HTTP.Timeout, cfg.HTTP.DNSRefresh),
		Breakers: breakers,
		Headers:  map[string]string{"User-Agent": buildinfo.UserAgent()},
		Timeout:  cfg.HTTP.Timeout,
		Attempts: cfg.HTTP.Attempts,
		Delay:    cfg.HTTP.Delay,
		Hooks:    hooks.HTTP,
		Logger:   c.Logger,
	})

	reg := registry.New(
		npm.NewClient(httpClient, cfg.Registry.NPM, cfg.Registry.Downloads),
		bundlephobia.NewClient(httpClient, cfg.Registry.Bundlephobia),
		c.Logger,
	)
	scanner := security.NewScanner(
		ghsa.NewClient(httpClient, cfg.Registry.GitHub, cfg.Registry.GitHubToken),
		osv.NewClient(httpClient, cfg.Registry.OSV),
		c.Logger,
	)
	runner := pm.NewRunner(pm.RunnerOptions{Timeout: cfg.PM.Timeout, Logger: c.Logger})

	orch := orchestrator.New(orchestrator.Deps{
		Registry: reg,
		Scanner:  scanner,
		Runner:   runner,
		Cache:    store,
		Keyer:    keyerFor(cfg),
		Hooks:    hooks.Tool,
		Logger:   c.Logger,
	},
		orchestrator.WithSearchTTL(cfg.Cache.SearchTTL),
		orchestrator.WithInfoTTL(cfg.Cache.InfoTTL),
		orchestrator.WithVulnTTL(cfg.Cache.VulnTTL),
		orchestrator.WithRefresh(c.refresh),
	)
	return &app{cfg: cfg, orch: orch, cache: store, breakers: breakers}, nil
}

// withApp loads the config, builds the app, runs fn and releases the app.
func (c *CLI) withApp(ctx context.Context, fn func(*app) error) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	a, err := c.newApp(ctx, cfg, observability.Hooks{})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// keyerFor scopes cache keys by registry host when a mirror is configured,
// so a shared cache never mixes records from different registries.
func keyerFor(cfg *config.Config) cache.Keyer {
	if cfg.Registry.NPM == npm.DefaultRegistryURL {
		return cache.NewDefaultKeyer()
	}
	host := cfg.Registry.NPM
	if u, err := url.Parse(cfg.Registry.NPM); err == nil && u.Host != "" {
		host = u.Host
	}
	return cache.NewScopedKeyer(cache.NewDefaultKeyer(), host+":")
}
