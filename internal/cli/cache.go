package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pkgintel/pkg/cache"
	"github.com/matzehuels/pkgintel/pkg/config"
	"github.com/matzehuels/pkgintel/pkg/observability"
)

// janitorInterval is how often the memory backend purges expired entries.
const janitorInterval = time.Minute

// newCache opens the backend selected by cfg.Cache.Backend.
func newCache(ctx context.Context, cfg *config.Config, hooks observability.CacheHooks, logger *log.Logger) (cache.Cache, error) {
	opts := cache.Options{
		DefaultTTL: cfg.Cache.DefaultTTL,
		MaxEntries: cfg.Cache.MaxEntries,
		Hooks:      hooks,
		Logger:     logger,
	}

	switch cfg.Cache.Backend {
	case config.BackendNone:
		return cache.NewNullCache(), nil
	case config.BackendFile:
		return cache.NewFileCache(cfg.Cache.Dir, opts)
	case config.BackendRedis:
		r, err := cache.OpenRedis(ctx, cfg.Cache.RedisURL, cfg.Cache.Prefix, opts)
		if err != nil {
			// Lookups proceed uncached.
			logger.Warn("redis unavailable, caching disabled", "error", err)
			return cache.NewNullCache(), nil
		}
		return r, nil
	default:
		m := cache.NewMemory(opts)
		m.StartJanitor(ctx, janitorInterval)
		return m, nil
	}
}

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the pkgintel result cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every entry of the file cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := c.fileCacheDir()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if _, err := os.Stat(dir); os.IsNotExist(err) {
				printInfo(out, "Cache is empty")
				return nil
			}

			fc, err := cache.NewFileCache(dir, cache.Options{Logger: c.Logger})
			if err != nil {
				return err
			}
			if err := fc.Clear(); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}

			printSuccess(out, "Cleared cached results")
			printDetail(out, "Directory: %s", dir)
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the file cache directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := c.fileCacheDir()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	}
}

// fileCacheDir is the configured cache.dir, or the XDG default.
func (c *CLI) fileCacheDir() (string, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.Cache.Dir != "" {
		return cfg.Cache.Dir, nil
	}
	dir, err := config.CacheDir()
	if err != nil {
		return "", fmt.Errorf("get cache dir: %w", err)
	}
	return dir, nil
}
