package pm

import (
	"fmt"

	"github.com/matzehuels/pkgintel/pkg/errors"
	"github.com/matzehuels/pkgintel/pkg/model"
)

// Options are the flags of one package manager operation. Flags that do
// not apply to the operation are ignored; flags the dialect cannot express
// are dropped with a warning.
type Options struct {
	// Dir is the project directory. Empty means the working directory.
	Dir string

	// Packages are package specs ("lodash", "lodash@4.17.21").
	Packages []string

	Dev    bool // install: save as a dev dependency
	Global bool // install, update, remove
	Exact  bool // install: pin the exact version
	Latest bool // update: ignore declared ranges

	Production bool // audit: runtime dependencies only
	Fix        bool // audit: apply fixes
	Force      bool // audit fix: allow breaking upgrades
}

// BuildArgs returns the argument vector (without the binary name) for op
// under dialect, plus warnings for every flag that had to be dropped.
func BuildArgs(op model.Operation, dialect model.Dialect, opts Options) (args, warnings []string, err error) {
	b := &argBuilder{dialect: dialect}

	switch op {
	case model.OpInstall:
		err = b.install(opts)
	case model.OpUpdate:
		err = b.update(opts)
	case model.OpRemove:
		err = b.remove(opts)
	case model.OpOutdated:
		b.outdated(opts)
	case model.OpAudit:
		b.audit(opts)
	case model.OpCacheClean:
		b.cacheClean()
	default:
		return nil, nil, errors.New(errors.ErrCodeInvalidInput, "unknown operation %q", op)
	}
	if err != nil {
		return nil, nil, err
	}
	if b.args == nil {
		return nil, nil, errors.New(errors.ErrCodeInvalidDialect, "unsupported package manager %q", dialect)
	}
	return b.args, b.warnings, nil
}

type argBuilder struct {
	dialect  model.Dialect
	args     []string
	warnings []string
}

func (b *argBuilder) warn(format string, args ...any) {
	b.warnings = append(b.warnings, fmt.Sprintf(format, args...))
}

func (b *argBuilder) install(o Options) error {
	if o.Global && len(o.Packages) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "global install requires at least one package")
	}
	if o.Global && o.Dev {
		b.warn("--dev has no effect on a global install; ignored")
		o.Dev = false
	}
	if len(o.Packages) == 0 && (o.Dev || o.Exact) {
		b.warn("dev and exact flags need package names; ignored")
		o.Dev, o.Exact = false, false
	}

	switch b.dialect {
	case model.DialectNPM:
		b.args = []string{"install"}
		b.flag(o.Global, "--global")
		b.flag(o.Dev, "--save-dev")
		b.flag(o.Exact, "--save-exact")
	case model.DialectYarn:
		switch {
		case len(o.Packages) == 0:
			b.args = []string{"install"}
		case o.Global:
			b.args = []string{"global", "add"}
		default:
			b.args = []string{"add"}
		}
		b.flag(o.Dev, "--dev")
		b.flag(o.Exact, "--exact")
	case model.DialectPNPM:
		if len(o.Packages) == 0 {
			b.args = []string{"install"}
		} else {
			b.args = []string{"add"}
		}
		b.flag(o.Global, "-g")
		b.flag(o.Dev, "-D")
		b.flag(o.Exact, "--save-exact")
	default:
		return nil
	}
	b.args = append(b.args, o.Packages...)
	return nil
}

func (b *argBuilder) update(o Options) error {
	switch b.dialect {
	case model.DialectNPM:
		b.args = []string{"update"}
		b.flag(o.Global, "--global")
		if o.Latest {
			b.warn("npm update has no --latest flag; ignored (use install <pkg>@latest)")
		}
	case model.DialectYarn:
		if o.Global {
			b.args = []string{"global", "upgrade"}
		} else {
			b.args = []string{"upgrade"}
		}
		b.flag(o.Latest, "--latest")
	case model.DialectPNPM:
		b.args = []string{"update"}
		b.flag(o.Global, "-g")
		b.flag(o.Latest, "--latest")
	default:
		return nil
	}
	b.args = append(b.args, o.Packages...)
	return nil
}

func (b *argBuilder) remove(o Options) error {
	if len(o.Packages) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "remove requires at least one package")
	}
	switch b.dialect {
	case model.DialectNPM:
		b.args = []string{"uninstall"}
		b.flag(o.Global, "--global")
	case model.DialectYarn:
		if o.Global {
			b.args = []string{"global", "remove"}
		} else {
			b.args = []string{"remove"}
		}
	case model.DialectPNPM:
		b.args = []string{"remove"}
		b.flag(o.Global, "-g")
	default:
		return nil
	}
	b.args = append(b.args, o.Packages...)
	return nil
}

func (b *argBuilder) outdated(o Options) {
	switch b.dialect {
	case model.DialectNPM, model.DialectYarn:
		b.args = []string{"outdated", "--json"}
	case model.DialectPNPM:
		b.args = []string{"outdated", "--format", "json"}
	default:
		return
	}
	b.args = append(b.args, o.Packages...)
}

func (b *argBuilder) audit(o Options) {
	if o.Force && !o.Fix {
		b.warn("--force only applies together with fix; ignored")
		o.Force = false
	}
	switch b.dialect {
	case model.DialectNPM:
		b.args = []string{"audit"}
		b.flag(o.Fix, "fix")
		b.flag(o.Force, "--force")
		b.flag(o.Production, "--production")
		b.args = append(b.args, "--json")
	case model.DialectYarn:
		b.args = []string{"audit", "--json"}
		if o.Fix {
			b.warn("yarn audit cannot apply fixes; running a report only")
		}
		if o.Production {
			b.args = append(b.args, "--groups", "dependencies")
		}
	case model.DialectPNPM:
		b.args = []string{"audit", "--json"}
		b.flag(o.Fix, "--fix")
		if o.Force {
			b.warn("pnpm audit has no --force flag; ignored")
		}
		b.flag(o.Production, "--prod")
	}
}

func (b *argBuilder) cacheClean() {
	switch b.dialect {
	case model.DialectNPM:
		b.args = []string{"cache", "clean", "--force"}
	case model.DialectYarn:
		b.args = []string{"cache", "clean"}
	case model.DialectPNPM:
		b.args = []string{"store", "prune"}
	}
}

func (b *argBuilder) flag(on bool, flag string) {
	if on {
		b.args = append(b.args, flag)
	}
}
