package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Severity is an ordered vulnerability severity. Higher values are worse.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityModerate
	SeverityHigh
	SeverityCritical
)

var severityNames = [...]string{"info", "low", "moderate", "high", "critical"}

// Severities lists every severity from worst to least severe.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityModerate, SeverityLow, SeverityInfo}

func (s Severity) String() string {
	if s < SeverityInfo || s > SeverityCritical {
		return "info"
	}
	return severityNames[s]
}

// ParseSeverity maps a textual severity to a Severity.
// "medium" is accepted as an alias of moderate; unknown text maps to info
// and ok=false.
func ParseSeverity(s string) (sev Severity, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return SeverityCritical, true
	case "high":
		return SeverityHigh, true
	case "moderate", "medium":
		return SeverityModerate, true
	case "low":
		return SeverityLow, true
	case "info", "informational", "none":
		return SeverityInfo, true
	}
	return SeverityInfo, false
}

// SeverityFromScore buckets a numeric (CVSS-style) score.
func SeverityFromScore(score float64) Severity {
	switch {
	case score >= 9.0:
		return SeverityCritical
	case score >= 7.0:
		return SeverityHigh
	case score >= 4.0:
		return SeverityModerate
	case score > 0:
		return SeverityLow
	default:
		return SeverityInfo
	}
}

func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Severity) UnmarshalText(b []byte) error {
	v, ok := ParseSeverity(string(b))
	if !ok {
		return fmt.Errorf("unknown severity %q", string(b))
	}
	*s = v
	return nil
}

// Vulnerability is a normalized advisory. ID is the cross-source dedup key.
type Vulnerability struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Severity         Severity   `json:"severity"`
	Score            float64    `json:"score,omitempty"`
	AffectedVersions []string   `json:"affectedVersions,omitempty"`
	Recommendation   string     `json:"recommendation,omitempty"`
	Aliases          []string   `json:"aliases,omitempty"`
	PublishedAt      *time.Time `json:"publishedAt,omitempty"`
	UpdatedAt        *time.Time `json:"updatedAt,omitempty"`
	URL              string     `json:"url,omitempty"`
	Source           string     `json:"source"`
}

// SecurityInfo is the aggregated result of a vulnerability scan.
type SecurityInfo struct {
	Vulnerabilities    []Vulnerability  `json:"vulnerabilities"`
	HasVulnerabilities bool             `json:"hasVulnerabilities"`
	Severity           Severity         `json:"severity"`
	Counts             map[Severity]int `json:"counts"`
	Sources            []string         `json:"sources"`
}

// Count returns the number of vulnerabilities.
func (s *SecurityInfo) Count() int { return len(s.Vulnerabilities) }

// NewSecurityInfo builds a SecurityInfo from an already deduplicated set.
// The aggregate severity is the worst severity present, or info when empty.
func NewSecurityInfo(vulns []Vulnerability, sources []string) *SecurityInfo {
	info := &SecurityInfo{
		Vulnerabilities: vulns,
		Severity:        SeverityInfo,
		Counts:          make(map[Severity]int, len(Severities)),
		Sources:         sources,
	}
	if info.Vulnerabilities == nil {
		info.Vulnerabilities = []Vulnerability{}
	}
	for _, v := range vulns {
		info.Counts[v.Severity]++
		if v.Severity > info.Severity {
			info.Severity = v.Severity
		}
	}
	info.HasVulnerabilities = len(vulns) > 0
	return info
}

// MarshalJSON is needed because Severity map keys must encode as names.
func (s SecurityInfo) MarshalJSON() ([]byte, error) {
	type alias SecurityInfo
	counts := make(map[string]int, len(s.Counts))
	for k, v := range s.Counts {
		counts[k.String()] = v
	}
	return json.Marshal(struct {
		alias
		Counts map[string]int `json:"counts"`
	}{alias(s), counts})
}

func (s *SecurityInfo) UnmarshalJSON(b []byte) error {
	type alias SecurityInfo
	var raw struct {
		alias
		Counts map[string]int `json:"counts"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = SecurityInfo(raw.alias)
	s.Counts = make(map[Severity]int, len(raw.Counts))
	for k, v := range raw.Counts {
		sev, _ := ParseSeverity(k)
		s.Counts[sev] = v
	}
	return nil
}
