package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pkgintel/pkg/errors"
	"github.com/matzehuels/pkgintel/pkg/model"
	"github.com/matzehuels/pkgintel/pkg/orchestrator"
	"github.com/matzehuels/pkgintel/pkg/registry"
)

// =============================================================================
// search
// =============================================================================

func (c *CLI) searchCommand() *cobra.Command {
	var (
		limit  int
		offset int
		pick   bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the npm registry",
		Example: `  pkgintel search "date formatting"
  pkgintel search react --limit 5 --pick`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			if err := errors.ValidateQuery(query); err != nil {
				return err
			}
			if err := errors.ValidatePagination(limit, offset); err != nil {
				return err
			}
			ctx := cmd.Context()

			return c.withApp(ctx, func(a *app) error {
				results, err := spin(ctx, c, "Searching "+query, func() ([]model.SearchResult, error) {
					return a.orch.SearchPackages(ctx, query, limit, offset)
				})
				if err != nil {
					return err
				}

				if pick && !c.jsonOutput {
					chosen, err := pickPackage(results)
					if err != nil || chosen == "" {
						return err
					}
					return c.showPackage(ctx, cmd.OutOrStdout(), a, chosen, "")
				}
				if c.jsonOutput {
					return printJSON(cmd.OutOrStdout(), results)
				}
				renderSearch(cmd.OutOrStdout(), query, results)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of results (1-100)")
	cmd.Flags().IntVar(&offset, "offset", 0, "skip this many results")
	cmd.Flags().BoolVarP(&pick, "pick", "p", false, "choose a result interactively and show its details")
	return cmd
}

func renderSearch(w io.Writer, query string, results []model.SearchResult) {
	if len(results) == 0 {
		printInfo(w, "No packages match %q", query)
		return
	}
	for _, r := range results {
		fmt.Fprintf(w, "%s %s  %s\n",
			StyleTitle.Render(r.Name),
			StyleDim.Render(r.Version),
			StyleNumber.Render(fmt.Sprintf("%.2f", r.Score.Final)))
		if r.Description != "" {
			printDetail(w, "%s", truncate(r.Description, 100))
		}
	}
	fmt.Fprintln(w)
	printNextStep(w, "Details", "pkgintel info "+results[0].Name)
}

// =============================================================================
// info
// =============================================================================

func (c *CLI) infoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info <package[@version]>",
		Short: "Show package metadata with downloads, bundle size and vulnerabilities",
		Example: `  pkgintel info express
  pkgintel info @types/node@20.1.0 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, version, err := parseSpec(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return c.withApp(ctx, func(a *app) error {
				return c.showPackage(ctx, cmd.OutOrStdout(), a, name, version)
			})
		},
	}
}

func (c *CLI) showPackage(ctx context.Context, w io.Writer, a *app, name, version string) error {
	prog := newProgress(c.Logger)
	lookup, _ := spin(ctx, c, "Fetching "+name, func() (orchestrator.Lookup, error) {
		return a.orch.LookupPackage(ctx, name, version), nil
	})
	switch lookup.Outcome {
	case orchestrator.Found:
	case orchestrator.NotFound:
		return &ExitError{Code: ExitNotFound, Err: fmt.Errorf("%w (try: %s search %s)", lookup.Err, appName, name)}
	case orchestrator.Transient:
		return &ExitError{Code: ExitUnavailable, Err: lookup.Err}
	default:
		return lookup.Err
	}
	rec := lookup.Record
	prog.done("package info", "package", name)

	if c.jsonOutput {
		return printJSON(w, rec)
	}
	renderPackage(w, rec)
	return nil
}

func renderPackage(w io.Writer, rec *model.PackageRecord) {
	fmt.Fprintln(w, StyleTitle.Render(rec.Name)+" "+StyleDim.Render(rec.Version))
	if rec.Description != "" {
		fmt.Fprintln(w, rec.Description)
	}
	fmt.Fprintln(w)

	if rec.Deprecated != "" {
		printWarning(w, "Deprecated: %s", rec.Deprecated)
	}
	printKeyValue(w, "License", rec.License)
	if rec.Author != nil {
		printKeyValue(w, "Author", formatAuthor(*rec.Author))
	}
	if n := len(rec.Maintainers); n > 0 {
		printKeyValue(w, "Maintainers", fmt.Sprintf("%d", n))
	}
	printKeyValue(w, "Repository", rec.Repository)
	printKeyValue(w, "Homepage", rec.Homepage)
	if rec.PublishedAt != nil {
		printKeyValue(w, "Published", rec.PublishedAt.Format("2006-01-02"))
	}
	printKeyValue(w, "Dependencies", fmt.Sprintf("%d", len(rec.Dependencies)))
	if len(rec.Keywords) > 0 {
		printKeyValue(w, "Keywords", strings.Join(rec.Keywords, ", "))
	}

	if s := rec.DownloadStats; s != nil {
		printKeyValue(w, "Downloads", fmt.Sprintf("%s (%s)", formatCount(s.Downloads), s.Period))
	}
	if b := rec.BundleSize; b != nil {
		printKeyValue(w, "Bundle size", fmt.Sprintf("%s min, %s gzip", formatBytes(b.Size), formatBytes(b.Gzip)))
	}
	if sec := rec.Security; sec != nil {
		fmt.Fprintln(w)
		renderSecurity(w, sec)
	}
}

func formatAuthor(a model.Author) string {
	s := a.Name
	if a.Email != "" {
		s += " <" + a.Email + ">"
	}
	return strings.TrimSpace(s)
}

// =============================================================================
// vulns
// =============================================================================

func (c *CLI) vulnsCommand() *cobra.Command {
	var failOn string

	cmd := &cobra.Command{
		Use:   "vulns <package[@version]>",
		Short: "Check a package for known vulnerabilities",
		Long: `Check a package against the GitHub Advisory Database and OSV.

Without a version every advisory naming the package is listed.`,
		Example: `  pkgintel vulns lodash@4.17.11
  pkgintel vulns minimist --fail-on high`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, version, err := parseSpec(args[0])
			if err != nil {
				return err
			}
			var threshold model.Severity
			if failOn != "" {
				sev, ok := model.ParseSeverity(failOn)
				if !ok {
					return errors.New(errors.ErrCodeInvalidInput, "unknown severity %q", failOn)
				}
				threshold = sev
			}
			ctx := cmd.Context()

			return c.withApp(ctx, func(a *app) error {
				info, err := spin(ctx, c, "Scanning "+args[0], func() (*model.SecurityInfo, error) {
					return a.orch.CheckVulnerabilities(ctx, name, version)
				})
				if err != nil {
					return err
				}

				if c.jsonOutput {
					if err := printJSON(cmd.OutOrStdout(), info); err != nil {
						return err
					}
				} else {
					renderSecurity(cmd.OutOrStdout(), info)
				}
				if failOn != "" && info.HasVulnerabilities && info.Severity >= threshold {
					return fmt.Errorf("%s has %s vulnerabilities", args[0], info.Severity)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&failOn, "fail-on", "", "exit non-zero at or above this severity (low, moderate, high, critical)")
	return cmd
}

func renderSecurity(w io.Writer, info *model.SecurityInfo) {
	if !info.HasVulnerabilities {
		printSuccess(w, "No known vulnerabilities %s", StyleDim.Render("("+strings.Join(info.Sources, ", ")+")"))
		return
	}

	var counts []string
	for _, sev := range model.Severities {
		if n := info.Counts[sev]; n > 0 {
			counts = append(counts, fmt.Sprintf("%d %s", n, sev))
		}
	}
	printWarning(w, "%d vulnerabilities: %s", info.Count(), strings.Join(counts, ", "))
	printDetail(w, "Sources: %s", strings.Join(info.Sources, ", "))
	fmt.Fprintln(w)

	for _, v := range info.Vulnerabilities {
		fmt.Fprintf(w, "%s %s %s\n", renderSeverity(v.Severity), StyleValue.Render(v.ID), v.Title)
		if len(v.AffectedVersions) > 0 {
			printDetail(w, "Affected: %s", strings.Join(v.AffectedVersions, " || "))
		}
		if v.Recommendation != "" {
			printDetail(w, "%s", v.Recommendation)
		}
		if v.URL != "" {
			fmt.Fprintln(w, "  "+StyleLink.Render(v.URL))
		}
	}
}

// =============================================================================
// versions
// =============================================================================

func (c *CLI) versionsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "versions <package>",
		Short: "List published versions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := errors.ValidateNpmPackageName(args[0]); err != nil {
				return err
			}
			ctx := cmd.Context()

			return c.withApp(ctx, func(a *app) error {
				versions, err := spin(ctx, c, "Fetching versions", func() ([]model.Version, error) {
					return a.orch.GetVersions(ctx, args[0])
				})
				if err != nil {
					return err
				}
				if limit > 0 && len(versions) > limit {
					versions = versions[:limit]
				}
				if c.jsonOutput {
					return printJSON(cmd.OutOrStdout(), versions)
				}
				renderVersions(cmd.OutOrStdout(), versions)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most this many versions (0 for all)")
	return cmd
}

func renderVersions(w io.Writer, versions []model.Version) {
	for _, v := range versions {
		line := StyleValue.Render(fmt.Sprintf("%-20s", v.Number))
		if v.PublishedAt != nil {
			line += " " + StyleDim.Render(v.PublishedAt.Format("2006-01-02"))
		}
		if v.Deprecated != "" {
			line += " " + StyleWarning.Render("deprecated")
		}
		fmt.Fprintln(w, line)
	}
}

// =============================================================================
// downloads
// =============================================================================

func (c *CLI) downloadsCommand() *cobra.Command {
	var period string

	cmd := &cobra.Command{
		Use:   "downloads <package>",
		Short: "Show download counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := errors.ValidateNpmPackageName(args[0]); err != nil {
				return err
			}
			ctx := cmd.Context()

			return c.withApp(ctx, func(a *app) error {
				stats, err := a.orch.GetDownloadStats(ctx, args[0], model.Period(period))
				if err != nil {
					return err
				}
				if c.jsonOutput {
					return printJSON(cmd.OutOrStdout(), stats)
				}
				printKeyValue(cmd.OutOrStdout(), stats.Package, fmt.Sprintf("%s downloads (%s)", formatCount(stats.Downloads), stats.Period))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&period, "period", string(model.PeriodWeek), "last-day, last-week, last-month or last-year")
	return cmd
}

// parseSpec splits and validates "name[@version]".
// parseSpec accepts "name[@version]" or an npm package URL such as
// "pkg:npm/%40types/node@20.1.0".
func parseSpec(spec string) (name, version string, err error) {
	if strings.HasPrefix(spec, "pkg:") {
		name, version, err = registry.ParsePURL(spec)
		if err != nil {
			return "", "", err
		}
		if err := errors.ValidateNpmPackageName(name); err != nil {
			return "", "", err
		}
		return name, version, nil
	}
	if err := errors.ValidatePackageSpec(spec); err != nil {
		return "", "", err
	}
	name, version = errors.SplitPackageSpec(spec)
	return name, version, nil
}
