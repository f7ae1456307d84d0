package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pkgintel/pkg/errors"
	"github.com/matzehuels/pkgintel/pkg/model"
	"github.com/matzehuels/pkgintel/pkg/orchestrator"
	"github.com/matzehuels/pkgintel/pkg/pm"
)

// operationSpec describes one package manager subcommand.
type operationSpec struct {
	op      model.Operation
	use     string
	short   string
	example string

	// packages is "required", "optional" or "" (no positional args).
	packages string
	flags    []string
	run      func(*orchestrator.Orchestrator) func(context.Context, model.Dialect, pm.Options) *model.OperationResult
}

var operations = []operationSpec{
	{
		op: model.OpInstall, use: "install [package[@version]...]",
		short:    "Install dependencies, or add packages",
		example:  "  pkgintel install\n  pkgintel install lodash@4.17.21 --exact\n  pkgintel install typescript --dev --pm pnpm",
		packages: "optional",
		flags:    []string{"dev", "global", "exact"},
		run: func(o *orchestrator.Orchestrator) func(context.Context, model.Dialect, pm.Options) *model.OperationResult {
			return o.InstallPackages
		},
	},
	{
		op: model.OpUpdate, use: "update [package...]",
		short:    "Update dependencies within their declared ranges",
		example:  "  pkgintel update\n  pkgintel update react --latest",
		packages: "optional",
		flags:    []string{"global", "latest"},
		run: func(o *orchestrator.Orchestrator) func(context.Context, model.Dialect, pm.Options) *model.OperationResult {
			return o.UpdatePackages
		},
	},
	{
		op: model.OpRemove, use: "remove <package>...",
		short:    "Remove packages",
		packages: "required",
		flags:    []string{"global"},
		run: func(o *orchestrator.Orchestrator) func(context.Context, model.Dialect, pm.Options) *model.OperationResult {
			return o.RemovePackages
		},
	},
	{
		op: model.OpOutdated, use: "outdated",
		short: "List outdated dependencies",
		run: func(o *orchestrator.Orchestrator) func(context.Context, model.Dialect, pm.Options) *model.OperationResult {
			return o.CheckOutdated
		},
	},
	{
		op: model.OpAudit, use: "audit",
		short:   "Audit installed dependencies for vulnerabilities",
		example: "  pkgintel audit --production\n  pkgintel audit --fix --force",
		flags:   []string{"production", "fix", "force"},
		run: func(o *orchestrator.Orchestrator) func(context.Context, model.Dialect, pm.Options) *model.OperationResult {
			return o.AuditDependencies
		},
	},
	{
		op: model.OpCacheClean, use: "cache-clean",
		short: "Clean the package manager's download cache",
		run: func(o *orchestrator.Orchestrator) func(context.Context, model.Dialect, pm.Options) *model.OperationResult {
			return o.CleanCache
		},
	},
}

var flagUsage = map[string]string{
	"dev":        "save as a development dependency",
	"global":     "operate on global packages",
	"exact":      "pin the exact version",
	"latest":     "ignore declared ranges and take the latest versions",
	"production": "audit runtime dependencies only",
	"fix":        "apply available fixes",
	"force":      "allow breaking upgrades when fixing",
}

func (c *CLI) operationCommand(spec operationSpec) *cobra.Command {
	var (
		dir     string
		dialect string
		opts    pm.Options
	)
	bools := map[string]*bool{
		"dev": &opts.Dev, "global": &opts.Global, "exact": &opts.Exact, "latest": &opts.Latest,
		"production": &opts.Production, "fix": &opts.Fix, "force": &opts.Force,
	}

	cmd := &cobra.Command{
		Use:     spec.use,
		Short:   spec.short,
		Example: spec.example,
		Args:    operationArgs(spec.packages),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := model.ParseDialect(dialect)
			if err != nil {
				return errors.New(errors.ErrCodeInvalidDialect, "%v", err)
			}
			if err := errors.ValidatePath(dir); err != nil {
				return err
			}
			for _, p := range args {
				if err := errors.ValidatePackageSpec(p); err != nil {
					return err
				}
			}
			opts.Dir = dir
			opts.Packages = args
			ctx := cmd.Context()

			return c.withApp(ctx, func(a *app) error {
				run := spec.run(a.orch)
				res, _ := spin(ctx, c, fmt.Sprintf("Running %s", spec.op), func() (*model.OperationResult, error) {
					return run(ctx, d, opts), nil
				})
				if c.jsonOutput {
					if err := printJSON(cmd.OutOrStdout(), res); err != nil {
						return err
					}
				} else {
					renderOperation(cmd.OutOrStdout(), res)
				}
				if !res.Success {
					return fmt.Errorf("%s failed", strings.Join(res.Command, " "))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "C", ".", "project directory")
	cmd.Flags().StringVar(&dialect, "pm", "", "package manager: npm, yarn or pnpm (default: detect)")
	for _, name := range spec.flags {
		cmd.Flags().BoolVar(bools[name], name, false, flagUsage[name])
	}
	return cmd
}

func operationArgs(mode string) cobra.PositionalArgs {
	switch mode {
	case "required":
		return cobra.MinimumNArgs(1)
	case "optional":
		return cobra.ArbitraryArgs
	}
	return cobra.NoArgs
}

func renderOperation(w io.Writer, res *model.OperationResult) {
	command := strings.Join(res.Command, " ")
	for _, warning := range res.Warnings {
		printWarning(w, "%s", warning)
	}
	if res.Output != "" {
		fmt.Fprintln(w, strings.TrimRight(res.Output, "\n"))
	}

	switch {
	case res.Success:
		printSuccess(w, "%s %s", command, StyleDim.Render(res.Duration.Round(time.Millisecond).String()))
	case res.TimedOut:
		printError(w, "%s timed out after %s", command, res.Duration.Round(time.Millisecond))
	default:
		printError(w, "%s exited with code %d", orDefault(command, string(res.Operation)), res.ExitCode)
		for _, e := range res.Errors {
			printDetail(w, "%s", e)
		}
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// =============================================================================
// detect
// =============================================================================

func (c *CLI) detectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "detect [dir]",
		Short: "Detect which package manager a project uses",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			if err := errors.ValidatePath(dir); err != nil {
				return err
			}
			res := pm.Detect(dir)
			if c.jsonOutput {
				return printJSON(cmd.OutOrStdout(), res)
			}
			renderDetection(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func renderDetection(w io.Writer, res model.DetectionResult) {
	printKeyValue(w, "Manager", string(res.Dialect))
	if res.LockFile == "" {
		printKeyValue(w, "Lock file", StyleDim.Render("none (default)"))
	} else {
		printKeyValue(w, "Lock file", res.LockFile)
	}
	printKeyValue(w, "Version", res.Version)
}
