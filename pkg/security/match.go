package security

import (
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/matzehuels/pkgintel/pkg/integrations/osv"
)

// Affects reports whether version falls inside a GitHub-style vulnerable
// range such as "< 4.17.12", ">= 1.0.0, < 1.2.3" or "= 2.0.0". Comma
// separated comparators must all hold; "||" separates alternatives.
//
// Ranges that cannot be evaluated (empty, unparseable, or an unparseable
// version) report true.
func Affects(version, rangeExpr string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return true
	}
	rangeExpr = strings.TrimSpace(rangeExpr)
	if rangeExpr == "" {
		return true
	}

	for _, alt := range strings.Split(rangeExpr, "||") {
		ok, valid := matchAll(v, alt)
		if !valid {
			return true
		}
		if ok {
			return true
		}
	}
	return false
}

// matchAll evaluates a comma separated comparator list.
func matchAll(v *semver.Version, expr string) (ok, valid bool) {
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		op, rest := splitOperator(part)
		bound, err := semver.NewVersion(strings.TrimSpace(rest))
		if err != nil {
			return false, false
		}
		if !compare(v.Compare(bound), op) {
			return false, true
		}
	}
	return true, true
}

func splitOperator(s string) (op, rest string) {
	for _, candidate := range []string{">=", "<=", "!=", "==", ">", "<", "="} {
		if r, ok := strings.CutPrefix(s, candidate); ok {
			return candidate, r
		}
	}
	return "=", s
}

func compare(c int, op string) bool {
	switch op {
	case ">=":
		return c >= 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case "<":
		return c < 0
	case "!=":
		return c != 0
	default:
		return c == 0
	}
}

// AffectsOSV reports whether version is inside an OSV affected entry.
// The explicit versions list is checked first, then every SEMVER and
// ECOSYSTEM range. An entry without usable data reports true, as does an
// unparseable version.
func AffectsOSV(version string, a osv.Affected) bool {
	for _, listed := range a.Versions {
		if listed == version {
			return true
		}
	}

	v, err := semver.NewVersion(version)
	if err != nil {
		return true
	}

	usable := len(a.Versions) > 0
	for _, r := range a.Ranges {
		if r.Type != osv.RangeSemver && r.Type != osv.RangeEcosystem {
			continue
		}
		in, valid := inRange(v, r.Events)
		if !valid {
			return true
		}
		usable = true
		if in {
			return true
		}
	}
	return !usable
}

type event struct {
	kind    string
	version *semver.Version
}

const (
	eventIntroduced   = "introduced"
	eventFixed        = "fixed"
	eventLastAffected = "last_affected"
)

// zeroVersion stands for the OSV "0" introduced marker.
var zeroVersion = semver.New(0, 0, 0, "", "")

// inRange walks the sorted events of one range. introduced opens an
// affected interval, fixed closes it at that version, last_affected closes
// it after that version.
func inRange(v *semver.Version, raw []osv.Event) (in, valid bool) {
	events := make([]event, 0, len(raw))
	for _, e := range raw {
		var kind, value string
		switch {
		case e.Introduced != "":
			kind, value = eventIntroduced, e.Introduced
		case e.Fixed != "":
			kind, value = eventFixed, e.Fixed
		case e.LastAffected != "":
			kind, value = eventLastAffected, e.LastAffected
		default:
			continue
		}
		if kind == eventIntroduced && value == "0" {
			events = append(events, event{kind, zeroVersion})
			continue
		}
		parsed, err := semver.NewVersion(value)
		if err != nil {
			return false, false
		}
		events = append(events, event{kind, parsed})
	}
	if len(events) == 0 {
		return false, false
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].version.LessThan(events[j].version)
	})

	for _, e := range events {
		switch e.kind {
		case eventIntroduced:
			if v.Compare(e.version) >= 0 {
				in = true
			}
		case eventFixed:
			if v.Compare(e.version) >= 0 {
				in = false
			}
		case eventLastAffected:
			if v.Compare(e.version) > 0 {
				in = false
			}
		}
	}
	return in, true
}

// describeRanges renders OSV ranges as GitHub-style range strings.
func describeRanges(a osv.Affected) []string {
	var out []string
	for _, r := range a.Ranges {
		if r.Type != osv.RangeSemver && r.Type != osv.RangeEcosystem {
			continue
		}
		var current []string
		flush := func() {
			if len(current) > 0 {
				out = append(out, strings.Join(current, ", "))
				current = nil
			}
		}
		for _, e := range r.Events {
			switch {
			case e.Introduced != "":
				flush()
				if e.Introduced != "0" {
					current = append(current, ">= "+e.Introduced)
				}
			case e.Fixed != "":
				current = append(current, "< "+e.Fixed)
				flush()
			case e.LastAffected != "":
				current = append(current, "<= "+e.LastAffected)
				flush()
			}
		}
		if len(current) > 0 {
			flush()
		} else if n := len(r.Events); n > 0 && r.Events[n-1].Introduced == "0" {
			out = append(out, "*")
		}
	}
	if len(out) == 0 && len(a.Versions) > 0 {
		out = append(out, strings.Join(a.Versions, " || "))
	}
	return out
}

// fixedVersion picks the upgrade target from OSV fixed events: the lowest
// fix above version, or the highest fix when version is unknown.
func fixedVersion(version string, affected []osv.Affected) string {
	v, _ := semver.NewVersion(version)
	var best *semver.Version
	var bestRaw string
	for _, a := range affected {
		for _, r := range a.Ranges {
			for _, e := range r.Events {
				if e.Fixed == "" {
					continue
				}
				f, err := semver.NewVersion(e.Fixed)
				if err != nil {
					continue
				}
				switch {
				case v != nil:
					if f.GreaterThan(v) && (best == nil || f.LessThan(best)) {
						best, bestRaw = f, e.Fixed
					}
				case best == nil || f.GreaterThan(best):
					best, bestRaw = f, e.Fixed
				}
			}
		}
	}
	return bestRaw
}
