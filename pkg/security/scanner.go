// Package security scans npm packages against two independent advisory
// databases and folds the results into one [model.SecurityInfo].
//
// The advisory source (GitHub Advisory Database) is queried by ecosystem
// and package name; the range-query source (OSV) by ecosystem, name and
// version. Both run concurrently. One failing source is tolerated and only
// narrows the result; both failing is an error.
//
// Version matching uses a single algorithm for both sources (see [Affects]
// and [AffectsOSV]). Advisories whose ranges cannot be evaluated are
// reported as affecting the package.
package security

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pkgintel/pkg/errors"
	"github.com/matzehuels/pkgintel/pkg/integrations/ghsa"
	"github.com/matzehuels/pkgintel/pkg/integrations/osv"
	"github.com/matzehuels/pkgintel/pkg/model"
)

// Source names recorded on vulnerabilities and in SecurityInfo.Sources.
const (
	SourceGitHub = "github"
	SourceOSV    = "osv"
)

const ecosystem = "npm"

// AdvisorySource lists advisories by ecosystem and affected package.
// Implemented by [ghsa.Client].
type AdvisorySource interface {
	Advisories(ctx context.Context, ecosystem, name string) ([]ghsa.Advisory, error)
}

// RangeSource answers range queries. Implemented by [osv.Client].
type RangeSource interface {
	Query(ctx context.Context, ecosystem, name, version string) ([]osv.Vuln, error)
}

// Scanner runs vulnerability checks. Either source may be nil, in which
// case it is not consulted.
type Scanner struct {
	advisories AdvisorySource
	ranges     RangeSource
	logger     *log.Logger
}

// NewScanner creates a Scanner. A nil logger uses log.Default().
func NewScanner(advisories AdvisorySource, ranges RangeSource, logger *log.Logger) *Scanner {
	if logger == nil {
		logger = log.Default()
	}
	return &Scanner{advisories: advisories, ranges: ranges, logger: logger}
}

type sourceResult struct {
	name  string
	vulns []model.Vulnerability
	err   error
}

// CheckVulnerabilities scans name, optionally at version. With an empty
// version every advisory naming the package is reported.
func (s *Scanner) CheckVulnerabilities(ctx context.Context, name, version string) (*model.SecurityInfo, error) {
	var results []*sourceResult
	var wg sync.WaitGroup

	if s.advisories != nil {
		r := &sourceResult{name: SourceGitHub}
		results = append(results, r)
		wg.Add(1)
		go func() {
			defer wg.Done()
			advisories, err := s.advisories.Advisories(ctx, ecosystem, name)
			if err != nil {
				r.err = err
				return
			}
			r.vulns = fromAdvisories(advisories, name, version)
		}()
	}
	if s.ranges != nil {
		r := &sourceResult{name: SourceOSV}
		results = append(results, r)
		wg.Add(1)
		go func() {
			defer wg.Done()
			vulns, err := s.ranges.Query(ctx, ecosystem, name, version)
			if err != nil {
				r.err = err
				return
			}
			r.vulns = fromOSV(vulns, name, version)
		}()
	}
	wg.Wait()

	if len(results) == 0 {
		return nil, errors.New(errors.ErrCodeInternal, "no vulnerability sources configured")
	}

	var (
		sources []string
		lists   [][]model.Vulnerability
		errs    []error
	)
	for _, r := range results {
		if r.err != nil {
			s.logger.Warn("vulnerability source failed", "source", r.name, "package", name, "error", r.err)
			errs = append(errs, fmt.Errorf("%s: %w", r.name, r.err))
			continue
		}
		sources = append(sources, r.name)
		lists = append(lists, r.vulns)
	}
	if len(sources) == 0 {
		return nil, errors.Wrap(errors.ErrCodeNetwork, stderrors.Join(errs...), "all vulnerability sources failed for %s", name)
	}

	vulns := Dedupe(lists...)
	sort.SliceStable(vulns, func(i, j int) bool { return vulns[i].Severity > vulns[j].Severity })
	return model.NewSecurityInfo(vulns, sources), nil
}

// Dedupe merges vulnerability lists, keeping the first occurrence of each
// id. A later record is also dropped when its id or one of its aliases
// matches an id or alias already kept.
func Dedupe(lists ...[]model.Vulnerability) []model.Vulnerability {
	seen := make(map[string]bool)
	var out []model.Vulnerability
	for _, list := range lists {
		for _, v := range list {
			if seen[v.ID] || anySeen(seen, v.Aliases) {
				continue
			}
			seen[v.ID] = true
			for _, alias := range v.Aliases {
				seen[alias] = true
			}
			out = append(out, v)
		}
	}
	return out
}

func anySeen(seen map[string]bool, ids []string) bool {
	for _, id := range ids {
		if seen[id] {
			return true
		}
	}
	return false
}

func fromAdvisories(advisories []ghsa.Advisory, name, version string) []model.Vulnerability {
	var out []model.Vulnerability
	for _, a := range advisories {
		var ranges []string
		var patched string
		affected := false
		for _, v := range a.Vulnerabilities {
			if !strings.EqualFold(v.Package.Ecosystem, ecosystem) || v.Package.Name != name {
				continue
			}
			if version != "" && !Affects(version, v.VulnerableVersionRange) {
				continue
			}
			affected = true
			if v.VulnerableVersionRange != "" {
				ranges = append(ranges, v.VulnerableVersionRange)
			}
			if patched == "" {
				patched = string(v.FirstPatchedVersion)
			}
		}
		if !affected {
			continue
		}

		vuln := model.Vulnerability{
			ID:               a.GHSAID,
			Title:            a.Summary,
			AffectedVersions: ranges,
			Recommendation:   recommendation(name, patched),
			Aliases:          a.Aliases(),
			PublishedAt:      a.PublishedAt,
			UpdatedAt:        a.UpdatedAt,
			URL:              a.HTMLURL,
			Source:           SourceGitHub,
		}
		if a.CVSS != nil {
			vuln.Score = a.CVSS.Score
		}
		vuln.Severity = normalizeSeverity(a.Severity, vuln.Score)
		out = append(out, vuln)
	}
	return out
}

func fromOSV(vulns []osv.Vuln, name, version string) []model.Vulnerability {
	var out []model.Vulnerability
	for _, v := range vulns {
		var ranges []string
		var matched []osv.Affected
		for _, a := range v.Affected {
			if !strings.EqualFold(a.Package.Ecosystem, ecosystem) || a.Package.Name != name {
				continue
			}
			if version != "" && !AffectsOSV(version, a) {
				continue
			}
			matched = append(matched, a)
			ranges = append(ranges, describeRanges(a)...)
		}
		if len(matched) == 0 {
			continue
		}

		vuln := model.Vulnerability{
			ID:               v.ID,
			Title:            coalesce(v.Summary, firstLine(v.Details), v.ID),
			AffectedVersions: ranges,
			Recommendation:   recommendation(name, fixedVersion(version, matched)),
			Aliases:          v.Aliases,
			PublishedAt:      v.Published,
			UpdatedAt:        v.Modified,
			URL:              v.AdvisoryURL(),
			Source:           SourceOSV,
		}
		vuln.Score = osvScore(v.Severity)
		vuln.Severity = normalizeSeverity(v.DatabaseSpecific.Severity, vuln.Score)
		out = append(out, vuln)
	}
	return out
}

// normalizeSeverity prefers a recognized textual severity and falls back
// to bucketing the numeric score.
func normalizeSeverity(text string, score float64) model.Severity {
	if sev, ok := model.ParseSeverity(text); ok {
		return sev
	}
	return model.SeverityFromScore(score)
}

// osvScore derives a numeric score from OSV severity entries. CVSS v3 and
// v4 vectors are scored; plain numbers are taken as is.
func osvScore(entries []osv.Severity) float64 {
	var best float64
	for _, e := range entries {
		var score float64
		switch {
		case strings.HasPrefix(e.Score, "CVSS:"):
			s, err := CVSSBaseScore(e.Score)
			if err != nil {
				continue
			}
			score = s
		default:
			s, err := strconv.ParseFloat(e.Score, 64)
			if err != nil {
				continue
			}
			score = s
		}
		best = max(best, score)
	}
	return best
}

func recommendation(name, fixed string) string {
	if fixed == "" {
		return "No patched version available. Consider an alternative package."
	}
	return fmt.Sprintf("Upgrade %s to version %s or later.", name, fixed)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
