package orchestrator

import (
	"context"

	"github.com/matzehuels/pkgintel/pkg/errors"
	"github.com/matzehuels/pkgintel/pkg/model"
)

// Outcome classifies a package lookup.
type Outcome int

const (
	// Found means Record is set.
	Found Outcome = iota
	// NotFound means the registry has no such package or version.
	NotFound
	// Transient means the registry could not be reached; retrying may help.
	Transient
	// Failed covers everything else, such as invalid input.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	case Transient:
		return "transient"
	default:
		return "failed"
	}
}

// Lookup is the tagged result of [Orchestrator.LookupPackage]. Record is
// set only for Found; Err is set for every other outcome.
type Lookup struct {
	Outcome Outcome
	Record  *model.PackageRecord
	Err     error
}

// LookupPackage is GetPackageInfo with the failure modes spelled out, so
// callers switch on the outcome instead of inspecting errors.
func (o *Orchestrator) LookupPackage(ctx context.Context, name, version string) Lookup {
	rec, err := o.GetPackageInfo(ctx, name, version)
	return classify(rec, err)
}

func classify(rec *model.PackageRecord, err error) Lookup {
	switch {
	case err == nil:
		return Lookup{Outcome: Found, Record: rec}
	case errors.IsNotFound(err):
		return Lookup{Outcome: NotFound, Err: err}
	case errors.IsTransient(err):
		return Lookup{Outcome: Transient, Err: err}
	default:
		return Lookup{Outcome: Failed, Err: err}
	}
}
