package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/matzehuels/pkgintel/pkg/errors"
	"github.com/matzehuels/pkgintel/pkg/model"
	"github.com/matzehuels/pkgintel/pkg/orchestrator"
	"github.com/matzehuels/pkgintel/pkg/pm"
	"github.com/matzehuels/pkgintel/pkg/registry"
)

// DefaultSearchLimit applies when a search call names no limit.
const DefaultSearchLimit = 20

type toolFunc func(ctx context.Context, raw json.RawMessage) (any, error)

type searchArgs struct {
	Query  string `json:"query"`
	Limit  *int   `json:"limit"`
	Offset int    `json:"offset"`
}

type packageArgs struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type downloadArgs struct {
	Name   string       `json:"name"`
	Period model.Period `json:"period"`
}

type projectArgs struct {
	Path    string `json:"path"`
	Dialect string `json:"packageManager"`
}

// operationArgs covers every package manager tool; flags a tool does not
// use are ignored by the argument builder.
type operationArgs struct {
	projectArgs
	Packages   []string `json:"packages"`
	Dev        bool     `json:"dev"`
	Global     bool     `json:"global"`
	Exact      bool     `json:"exact"`
	Latest     bool     `json:"latest"`
	Production bool     `json:"production"`
	Fix        bool     `json:"fix"`
	Force      bool     `json:"force"`
}

func (a operationArgs) options() pm.Options {
	return pm.Options{
		Dir:        a.Path,
		Packages:   a.Packages,
		Dev:        a.Dev,
		Global:     a.Global,
		Exact:      a.Exact,
		Latest:     a.Latest,
		Production: a.Production,
		Fix:        a.Fix,
		Force:      a.Force,
	}
}

func (s *Server) toolTable() map[string]toolFunc {
	o := s.orch
	ops := map[string]func(context.Context, model.Dialect, pm.Options) *model.OperationResult{
		orchestrator.ToolInstallPackages:   o.InstallPackages,
		orchestrator.ToolUpdatePackages:    o.UpdatePackages,
		orchestrator.ToolRemovePackages:    o.RemovePackages,
		orchestrator.ToolCheckOutdated:     o.CheckOutdated,
		orchestrator.ToolAuditDependencies: o.AuditDependencies,
		orchestrator.ToolCleanCache:        o.CleanCache,
	}

	tools := map[string]toolFunc{
		orchestrator.ToolSearchPackages: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var a searchArgs
			if err := decode(raw, &a); err != nil {
				return nil, err
			}
			limit := DefaultSearchLimit
			if a.Limit != nil {
				limit = *a.Limit
			}
			if err := errors.ValidateQuery(a.Query); err != nil {
				return nil, err
			}
			if err := errors.ValidatePagination(limit, a.Offset); err != nil {
				return nil, err
			}
			return o.SearchPackages(ctx, a.Query, limit, a.Offset)
		},
		orchestrator.ToolGetPackageInfo: func(ctx context.Context, raw json.RawMessage) (any, error) {
			a, err := decodePackage(raw)
			if err != nil {
				return nil, err
			}
			lookup := o.LookupPackage(ctx, a.Name, a.Version)
			switch lookup.Outcome {
			case orchestrator.Found:
				return lookup.Record, nil
			case orchestrator.NotFound:
				return nil, withStatus(http.StatusNotFound, lookup.Err)
			case orchestrator.Transient:
				s.logger.Warn("registry unavailable", "package", a.Name, "error", lookup.Err)
				return nil, withStatus(http.StatusBadGateway, lookup.Err)
			default:
				return nil, lookup.Err
			}
		},
		orchestrator.ToolCheckVulnerabilities: func(ctx context.Context, raw json.RawMessage) (any, error) {
			a, err := decodePackage(raw)
			if err != nil {
				return nil, err
			}
			return o.CheckVulnerabilities(ctx, a.Name, a.Version)
		},
		orchestrator.ToolGetDownloadStats: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var a downloadArgs
			if err := decode(raw, &a); err != nil {
				return nil, err
			}
			if err := errors.ValidateNpmPackageName(a.Name); err != nil {
				return nil, err
			}
			if a.Period == "" {
				a.Period = model.PeriodWeek
			}
			return o.GetDownloadStats(ctx, a.Name, a.Period)
		},
		orchestrator.ToolGetVersions: func(ctx context.Context, raw json.RawMessage) (any, error) {
			a, err := decodePackage(raw)
			if err != nil {
				return nil, err
			}
			return o.GetVersions(ctx, a.Name)
		},
		orchestrator.ToolDetectPackageManager: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var a projectArgs
			if err := decode(raw, &a); err != nil {
				return nil, err
			}
			if err := errors.ValidatePath(a.Path); err != nil {
				return nil, err
			}
			return o.DetectPackageManager(a.Path), nil
		},
	}

	for name, op := range ops {
		op := op
		tools[name] = func(ctx context.Context, raw json.RawMessage) (any, error) {
			var a operationArgs
			if err := decode(raw, &a); err != nil {
				return nil, err
			}
			dialect, err := validateOperation(a)
			if err != nil {
				return nil, err
			}
			return op(ctx, dialect, a.options()), nil
		}
	}
	return tools
}

func validateOperation(a operationArgs) (model.Dialect, error) {
	if err := errors.ValidatePath(a.Path); err != nil {
		return "", err
	}
	dialect, err := model.ParseDialect(a.Dialect)
	if err != nil {
		return "", errors.New(errors.ErrCodeInvalidDialect, "%v", err)
	}
	for _, spec := range a.Packages {
		if err := errors.ValidatePackageSpec(spec); err != nil {
			return "", err
		}
	}
	return dialect, nil
}

func decodePackage(raw json.RawMessage) (packageArgs, error) {
	var a packageArgs
	if err := decode(raw, &a); err != nil {
		return a, err
	}
	if strings.HasPrefix(a.Name, "pkg:") {
		name, version, err := registry.ParsePURL(a.Name)
		if err != nil {
			return a, err
		}
		a.Name = name
		if a.Version == "" {
			a.Version = version
		}
	}
	if err := errors.ValidateNpmPackageName(a.Name); err != nil {
		return a, err
	}
	return a, nil
}

// decode reads a JSON argument object strictly. An absent body is an
// empty object.
func decode(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New(errors.ErrCodeInvalidInput, "invalid arguments: %v", err)
	}
	return nil
}
