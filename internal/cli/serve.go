package cli

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pkgintel/internal/server"
	"github.com/matzehuels/pkgintel/pkg/observability"
)

func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr        string
		noMetrics   bool
		callTimeout = server.DefaultCallTimeout
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tools over HTTP",
		Long: `Serve every pkgintel tool as POST /tools/{name} with a JSON argument
object. GET /tools lists the tools, GET /healthz reports cache statistics
and upstream circuit breaker state, and GET /metrics exposes Prometheus
metrics.`,
		Example: `  pkgintel serve --addr :9090
  curl -s localhost:9090/tools/search_packages -d '{"query":"react","limit":3}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}

			reg := prometheus.NewRegistry()
			hooks := observability.Hooks{}
			if !noMetrics {
				reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
				hooks = observability.NewPrometheus(reg).Hooks()
			}

			a, err := c.newApp(ctx, cfg, hooks)
			if err != nil {
				return err
			}
			defer a.Close()

			opts := server.Options{
				Orchestrator: a.orch,
				Breakers:     a.breakers,
				CallTimeout:  callTimeout,
				Logger:       c.Logger,
			}
			if !noMetrics {
				opts.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
			}
			return server.New(opts).ListenAndServe(ctx, cfg.Server.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().DurationVar(&callTimeout, "call-timeout", callTimeout, "upper bound for a single tool call")
	cmd.Flags().BoolVar(&noMetrics, "no-metrics", false, "disable the /metrics endpoint")
	return cmd
}
