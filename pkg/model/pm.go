package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Dialect identifies a package manager command-line tool.
type Dialect string

const (
	DialectNPM  Dialect = "npm"
	DialectYarn Dialect = "yarn"
	DialectPNPM Dialect = "pnpm"
)

// Dialects lists the supported package managers.
var Dialects = []Dialect{DialectNPM, DialectYarn, DialectPNPM}

// ParseDialect accepts a dialect name case-insensitively. The empty string
// is valid and means "detect".
func ParseDialect(s string) (Dialect, error) {
	d := Dialect(strings.ToLower(strings.TrimSpace(s)))
	if d == "" {
		return "", nil
	}
	for _, v := range Dialects {
		if d == v {
			return d, nil
		}
	}
	return "", fmt.Errorf("unsupported package manager %q", s)
}

// DetectionResult reports which package manager a project directory uses.
type DetectionResult struct {
	Dialect  Dialect `json:"dialect"`
	LockFile string  `json:"lockFile,omitempty"`
	Version  string  `json:"version,omitempty"`
}

// Operation is a package manager operation kind.
type Operation string

const (
	OpInstall    Operation = "install"
	OpUpdate     Operation = "update"
	OpRemove     Operation = "remove"
	OpAudit      Operation = "audit"
	OpOutdated   Operation = "outdated"
	OpCacheClean Operation = "cache-clean"
)

// Informational reports whether a non-zero exit still counts as success.
// outdated and audit exit non-zero whenever they have findings.
func (o Operation) Informational() bool {
	return o == OpOutdated || o == OpAudit
}

// OperationResult is the structured outcome of one package manager run.
// Failures are reported here rather than as Go errors.
type OperationResult struct {
	Success   bool            `json:"success"`
	Operation Operation       `json:"operation"`
	Dialect   Dialect         `json:"dialect"`
	Command   []string        `json:"command"`
	Output    string          `json:"output,omitempty"`
	Parsed    json.RawMessage `json:"parsed,omitempty"`
	Errors    []string        `json:"errors,omitempty"`
	Warnings  []string        `json:"warnings,omitempty"`
	ExitCode  int             `json:"exitCode"`
	TimedOut  bool            `json:"timedOut,omitempty"`
	Duration  time.Duration   `json:"duration"`
}
