// Package pm detects and drives the npm, yarn and pnpm command-line tools.
//
// Detection is a pure function of the lock files present in a project
// directory (see [Detect]). Every operation is built into a dialect-specific
// argument vector by [BuildArgs] and executed by a [Runner] as a bounded
// subprocess. Outcomes, including failures and timeouts, are returned as
// [model.OperationResult] values, never as errors.
//
// outdated and audit exit non-zero whenever they have findings, so for
// those two operations a non-zero exit still counts as success.
package pm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pkgintel/pkg/errors"
	"github.com/matzehuels/pkgintel/pkg/model"
)

// DefaultTimeout bounds one package manager run.
const DefaultTimeout = 60 * time.Second

// maxErrorLines caps how many stderr lines are copied into Errors.
const maxErrorLines = 20

// RunnerOptions configures a [Runner]. Zero values take the defaults.
type RunnerOptions struct {
	Executor Executor      // default NewCommandExecutor()
	Timeout  time.Duration // default DefaultTimeout
	Logger   *log.Logger
}

// Runner executes package manager operations.
type Runner struct {
	exec    Executor
	timeout time.Duration
	logger  *log.Logger
}

// NewRunner creates a Runner.
func NewRunner(opts RunnerOptions) *Runner {
	r := &Runner{exec: opts.Executor, timeout: opts.Timeout, logger: opts.Logger}
	if r.exec == nil {
		r.exec = NewCommandExecutor()
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	if r.logger == nil {
		r.logger = log.Default()
	}
	return r
}

// Install adds packages, or installs the whole project when none are given.
func (r *Runner) Install(ctx context.Context, dialect model.Dialect, opts Options) *model.OperationResult {
	return r.Run(ctx, model.OpInstall, dialect, opts)
}

// Update upgrades the given packages, or all of them.
func (r *Runner) Update(ctx context.Context, dialect model.Dialect, opts Options) *model.OperationResult {
	return r.Run(ctx, model.OpUpdate, dialect, opts)
}

// Remove uninstalls packages.
func (r *Runner) Remove(ctx context.Context, dialect model.Dialect, opts Options) *model.OperationResult {
	return r.Run(ctx, model.OpRemove, dialect, opts)
}

// Outdated lists dependencies with newer versions available.
func (r *Runner) Outdated(ctx context.Context, dialect model.Dialect, opts Options) *model.OperationResult {
	return r.Run(ctx, model.OpOutdated, dialect, opts)
}

// Audit reports, and optionally fixes, known vulnerabilities.
func (r *Runner) Audit(ctx context.Context, dialect model.Dialect, opts Options) *model.OperationResult {
	return r.Run(ctx, model.OpAudit, dialect, opts)
}

// CleanCache clears the package manager's cache or store.
func (r *Runner) CleanCache(ctx context.Context, dialect model.Dialect, opts Options) *model.OperationResult {
	return r.Run(ctx, model.OpCacheClean, dialect, opts)
}

// Run executes op. An empty dialect is detected from opts.Dir.
func (r *Runner) Run(ctx context.Context, op model.Operation, dialect model.Dialect, opts Options) *model.OperationResult {
	start := time.Now()
	if dialect == "" {
		dialect = Detect(opts.Dir).Dialect
	}
	result := &model.OperationResult{Operation: op, Dialect: dialect}
	defer func() { result.Duration = time.Since(start) }()

	for _, spec := range opts.Packages {
		if err := errors.ValidatePackageSpec(spec); err != nil {
			result.Errors = []string{errors.UserMessage(err)}
			return result
		}
	}

	args, warnings, err := BuildArgs(op, dialect, opts)
	if err != nil {
		result.Errors = []string{errors.UserMessage(err)}
		return result
	}
	result.Command = append([]string{string(dialect)}, args...)
	result.Warnings = warnings
	for _, w := range warnings {
		r.logger.Warn(w, "dialect", dialect, "operation", op)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.logger.Debug("running package manager", "command", strings.Join(result.Command, " "), "dir", opts.Dir)
	res, err := r.exec.Run(ctx, opts.Dir, string(dialect), args)
	result.ExitCode = res.ExitCode
	result.Output = combine(res.Stdout, res.Stderr)
	result.Parsed = parseJSON(res.Stdout)

	switch {
	case ctx.Err() == context.DeadlineExceeded:
		result.TimedOut = true
		result.Errors = []string{fmt.Sprintf("%s timed out after %s", result.Command[0], r.timeout)}
		r.logger.Warn("package manager timed out", "command", strings.Join(result.Command, " "), "timeout", r.timeout)
		return result
	case err != nil:
		result.ExitCode = -1
		result.Errors = []string{errors.Wrap(errors.ErrCodeSubprocess, err, "run %s", dialect).Error()}
		return result
	}

	result.Success = res.ExitCode == 0 || op.Informational()
	if !result.Success {
		result.Errors = errorLines(res.Stderr)
		if len(result.Errors) == 0 {
			result.Errors = []string{fmt.Sprintf("%s exited with status %d", dialect, res.ExitCode)}
		}
	}
	return result
}

func combine(stdout, stderr []byte) string {
	out := strings.TrimSpace(string(stdout))
	errOut := strings.TrimSpace(string(stderr))
	switch {
	case out == "":
		return errOut
	case errOut == "":
		return out
	}
	return out + "\n" + errOut
}

// parseJSON returns stdout as JSON when it is one document, or as an
// array when it is newline-delimited JSON (yarn). Anything else is nil.
func parseJSON(stdout []byte) json.RawMessage {
	data := bytes.TrimSpace(stdout)
	if len(data) == 0 {
		return nil
	}
	if json.Valid(data) {
		return json.RawMessage(data)
	}

	var lines []json.RawMessage
	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			return nil
		}
		lines = append(lines, json.RawMessage(line))
	}
	out, err := json.Marshal(lines)
	if err != nil {
		return nil
	}
	return out
}

func errorLines(stderr []byte) []string {
	var out []string
	for _, line := range strings.Split(string(stderr), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == maxErrorLines {
			break
		}
	}
	return out
}
