package orchestrator

import (
	"context"
	"strings"

	"github.com/matzehuels/pkgintel/pkg/errors"
	"github.com/matzehuels/pkgintel/pkg/model"
	"github.com/matzehuels/pkgintel/pkg/pm"
)

// InstallPackages installs opts.Packages, or the whole project when empty.
// An empty dialect is detected from opts.Dir.
func (o *Orchestrator) InstallPackages(ctx context.Context, dialect model.Dialect, opts pm.Options) *model.OperationResult {
	return o.operate(ctx, ToolInstallPackages, model.OpInstall, dialect, opts)
}

// UpdatePackages updates opts.Packages, or every dependency when empty.
func (o *Orchestrator) UpdatePackages(ctx context.Context, dialect model.Dialect, opts pm.Options) *model.OperationResult {
	return o.operate(ctx, ToolUpdatePackages, model.OpUpdate, dialect, opts)
}

// RemovePackages uninstalls opts.Packages.
func (o *Orchestrator) RemovePackages(ctx context.Context, dialect model.Dialect, opts pm.Options) *model.OperationResult {
	return o.operate(ctx, ToolRemovePackages, model.OpRemove, dialect, opts)
}

// CheckOutdated lists outdated dependencies.
func (o *Orchestrator) CheckOutdated(ctx context.Context, dialect model.Dialect, opts pm.Options) *model.OperationResult {
	return o.operate(ctx, ToolCheckOutdated, model.OpOutdated, dialect, opts)
}

// AuditDependencies runs the package manager's audit.
func (o *Orchestrator) AuditDependencies(ctx context.Context, dialect model.Dialect, opts pm.Options) *model.OperationResult {
	return o.operate(ctx, ToolAuditDependencies, model.OpAudit, dialect, opts)
}

// CleanCache clears the package manager cache.
func (o *Orchestrator) CleanCache(ctx context.Context, dialect model.Dialect, opts pm.Options) *model.OperationResult {
	return o.operate(ctx, ToolCleanCache, model.OpCacheClean, dialect, opts)
}

func (o *Orchestrator) operate(ctx context.Context, tool string, op model.Operation, dialect model.Dialect, opts pm.Options) *model.OperationResult {
	var err error
	defer o.track(ctx, tool)(&err)

	if dialect == "" {
		detected := o.detect(opts.Dir)
		dialect = detected.Dialect
		o.logger.Debug("detected package manager", "dialect", dialect, "lockfile", detected.LockFile, "dir", opts.Dir)
	}

	res := o.runner.Run(ctx, op, dialect, opts)
	if !res.Success {
		code := errors.ErrCodeSubprocess
		switch {
		case res.TimedOut:
			code = errors.ErrCodeTimeout
		case len(res.Command) == 0:
			code = errors.ErrCodeInvalidInput
		}
		err = errors.New(code, "%s %s: %s", dialect, op, strings.Join(res.Errors, "; "))
	}
	return res
}
