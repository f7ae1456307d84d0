package pm

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/pkgintel/pkg/model"
)

// lockFile ties a lock file name to the dialect that writes it.
type lockFile struct {
	name    string
	dialect model.Dialect
}

// lockFiles is checked in order; the first existing file wins.
var lockFiles = []lockFile{
	{"pnpm-lock.yaml", model.DialectPNPM},
	{"yarn.lock", model.DialectYarn},
	{"npm-shrinkwrap.json", model.DialectNPM},
	{"package-lock.json", model.DialectNPM},
}

// DefaultDialect is used when a directory has no lock file.
const DefaultDialect = model.DialectNPM

// Detect reports which package manager governs dir. It only checks for
// lock files and reads package.json; nothing is written or executed.
//
// The version comes from the package.json "packageManager" field
// ("pnpm@8.15.1+sha256...") when it names the detected dialect.
func Detect(dir string) model.DetectionResult {
	result := model.DetectionResult{Dialect: DefaultDialect}
	for _, lf := range lockFiles {
		path := filepath.Join(dir, lf.name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			result = model.DetectionResult{Dialect: lf.dialect, LockFile: path}
			break
		}
	}

	if d, version := packageManagerField(dir); d == result.Dialect {
		result.Version = version
	}
	return result
}

func packageManagerField(dir string) (model.Dialect, string) {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return "", ""
	}
	var manifest struct {
		PackageManager string `json:"packageManager"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return "", ""
	}
	name, version, ok := strings.Cut(manifest.PackageManager, "@")
	if !ok {
		return "", ""
	}
	version, _, _ = strings.Cut(version, "+")
	d, err := model.ParseDialect(name)
	if err != nil {
		return "", ""
	}
	return d, version
}
