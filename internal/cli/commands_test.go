package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pkgintel/pkg/errors"
	"github.com/matzehuels/pkgintel/pkg/model"
)

// fakeUpstream serves the registry, downloads, bundlephobia, GitHub
// advisories and OSV endpoints from one httptest server.
type fakeUpstream struct {
	*httptest.Server
	packuments atomic.Int32
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{}
	mux := http.NewServeMux()
	mux.HandleFunc("/-/v1/search", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"objects":[
			{"package":{"name":"left-pad","version":"1.3.0","description":"String left pad"},"score":{"final":0.61}},
			{"package":{"name":"pad-left","version":"2.1.0"},"score":{"final":0.42}}
		],"total":2}`))
	})
	mux.HandleFunc("/left-pad", func(w http.ResponseWriter, r *http.Request) {
		f.packuments.Add(1)
		w.Write([]byte(`{
			"name":"left-pad",
			"dist-tags":{"latest":"1.3.0"},
			"versions":{
				"1.0.0":{"version":"1.0.0","description":"String left pad","license":"WTFPL"},
				"1.3.0":{"version":"1.3.0","description":"String left pad","license":"WTFPL","deprecated":"use String.prototype.padStart()"}
			},
			"time":{"1.0.0":"2014-03-18T00:00:00.000Z","1.3.0":"2018-04-09T00:00:00.000Z"}
		}`))
	})
	mux.HandleFunc("/downloads/point/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"downloads":2500000,"start":"2024-01-01","end":"2024-01-07","package":"left-pad"}`))
	})
	mux.HandleFunc("/api/size", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"left-pad","version":"1.3.0","size":1536,"gzip":612,"dependencyCount":0}`))
	})
	mux.HandleFunc("/advisories", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("affects") != "left-pad" {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`[{
			"ghsa_id":"GHSA-aaaa-bbbb-cccc",
			"summary":"Prototype pollution in left-pad",
			"severity":"high",
			"html_url":"https://github.com/advisories/GHSA-aaaa-bbbb-cccc",
			"vulnerabilities":[{"package":{"ecosystem":"npm","name":"left-pad"},"vulnerable_version_range":"< 1.3.0","first_patched_version":"1.3.0"}]
		}]`))
	})
	mux.HandleFunc("/v1/query", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"vulns":[]}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

// setupEnv points every upstream at f and isolates config and cache dirs.
func setupEnv(t *testing.T, f *fakeUpstream) {
	t.Helper()
	for _, kv := range os.Environ() {
		if k, _, _ := strings.Cut(kv, "="); strings.HasPrefix(k, "PKGINTEL_") || k == "GITHUB_TOKEN" {
			t.Setenv(k, "")
			os.Unsetenv(k)
		}
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	for _, key := range []string{"NPM_REGISTRY", "DOWNLOADS_URL", "BUNDLEPHOBIA_URL", "GITHUB_API_URL", "OSV_URL"} {
		t.Setenv("PKGINTEL_"+key, f.URL)
	}
	t.Setenv("PKGINTEL_HTTP_ATTEMPTS", "1")
}

// runCLI executes args and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	c := New(&stderr, log.InfoLevel)
	root := c.RootCommand()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestSearchCommand(t *testing.T) {
	setupEnv(t, newFakeUpstream(t))

	out, err := runCLI(t, "search", "left", "pad", "--limit", "2")
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	for _, want := range []string{"left-pad", "pad-left", "String left pad", "pkgintel info left-pad"} {
		if !strings.Contains(out, want) {
			t.Errorf("search output missing %q:\n%s", want, out)
		}
	}
}

func TestSearchCommandJSON(t *testing.T) {
	setupEnv(t, newFakeUpstream(t))

	out, err := runCLI(t, "search", "left-pad", "--json")
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	var results []model.SearchResult
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("search --json output is not JSON: %v\n%s", err, out)
	}
	if len(results) != 2 || results[0].Name != "left-pad" {
		t.Errorf("results = %+v", results)
	}
}

func TestSearchCommandValidation(t *testing.T) {
	setupEnv(t, newFakeUpstream(t))

	_, err := runCLI(t, "search", "react", "--limit", "500")
	if !errors.IsInvalid(err) {
		t.Errorf("search --limit 500 error = %v, want invalid input", err)
	}
}

func TestInfoCommand(t *testing.T) {
	setupEnv(t, newFakeUpstream(t))

	out, err := runCLI(t, "info", "left-pad")
	if err != nil {
		t.Fatalf("info error: %v", err)
	}
	for _, want := range []string{
		"left-pad", "1.3.0", "WTFPL",
		"Deprecated: use String.prototype.padStart()",
		"2.5M (last-week)",
		"1.5 kB min, 612 B gzip",
		"No known vulnerabilities",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("info output missing %q:\n%s", want, out)
		}
	}
}

func TestInfoCommandJSON(t *testing.T) {
	setupEnv(t, newFakeUpstream(t))

	out, err := runCLI(t, "info", "left-pad@1.0.0", "--json")
	if err != nil {
		t.Fatalf("info error: %v", err)
	}
	var rec model.PackageRecord
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		t.Fatalf("info --json output is not JSON: %v", err)
	}
	if rec.Version != "1.0.0" {
		t.Errorf("Version = %q, want 1.0.0", rec.Version)
	}
	if rec.Security == nil || rec.Security.Count() != 1 {
		t.Errorf("Security = %+v, want one vulnerability", rec.Security)
	}
	if rec.BundleSize == nil || rec.BundleSize.Gzip != 612 {
		t.Errorf("BundleSize = %+v", rec.BundleSize)
	}
}

func TestInfoCommandNotFound(t *testing.T) {
	setupEnv(t, newFakeUpstream(t))

	_, err := runCLI(t, "info", "does-not-exist")
	if !errors.IsNotFound(err) {
		t.Errorf("info error = %v, want not found", err)
	}
	if got := ExitCode(err); got != ExitNotFound {
		t.Errorf("ExitCode() = %d, want %d", got, ExitNotFound)
	}
}

func TestInfoCommandUnavailable(t *testing.T) {
	up := newFakeUpstream(t)
	setupEnv(t, up)
	up.Close()

	_, err := runCLI(t, "info", "left-pad")
	if !errors.IsTransient(err) {
		t.Errorf("info error = %v, want transient", err)
	}
	if got := ExitCode(err); got != ExitUnavailable {
		t.Errorf("ExitCode() = %d, want %d", got, ExitUnavailable)
	}
}

func TestInfoCommandPackageURL(t *testing.T) {
	setupEnv(t, newFakeUpstream(t))

	out, err := runCLI(t, "info", "pkg:npm/left-pad@1.0.0", "--json")
	if err != nil {
		t.Fatalf("info error: %v", err)
	}
	var rec model.PackageRecord
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		t.Fatalf("info --json output is not JSON: %v", err)
	}
	if rec.Name != "left-pad" || rec.Version != "1.0.0" {
		t.Errorf("record = %s@%s, want left-pad@1.0.0", rec.Name, rec.Version)
	}

	if _, err := runCLI(t, "info", "pkg:pypi/requests@2.0"); !errors.IsInvalid(err) {
		t.Errorf("info pypi purl error = %v, want invalid input", err)
	}
}

func TestInfoCommandInvalidSpec(t *testing.T) {
	setupEnv(t, newFakeUpstream(t))

	_, err := runCLI(t, "info", "Bad Name")
	if !errors.IsInvalid(err) {
		t.Errorf("info error = %v, want invalid input", err)
	}
}

func TestVulnsCommand(t *testing.T) {
	setupEnv(t, newFakeUpstream(t))

	out, err := runCLI(t, "vulns", "left-pad@1.0.0")
	if err != nil {
		t.Fatalf("vulns error: %v", err)
	}
	for _, want := range []string{"1 vulnerabilities", "1 high", "GHSA-aaaa-bbbb-cccc", "HIGH"} {
		if !strings.Contains(out, want) {
			t.Errorf("vulns output missing %q:\n%s", want, out)
		}
	}

	if _, err := runCLI(t, "vulns", "left-pad@1.0.0", "--fail-on", "moderate"); err == nil {
		t.Error("vulns --fail-on moderate should fail for a high severity finding")
	}
	if _, err := runCLI(t, "vulns", "left-pad@1.0.0", "--fail-on", "critical"); err != nil {
		t.Errorf("vulns --fail-on critical error = %v, want nil", err)
	}
	if _, err := runCLI(t, "vulns", "left-pad", "--fail-on", "severe"); !errors.IsInvalid(err) {
		t.Errorf("vulns --fail-on severe error = %v, want invalid input", err)
	}
}

func TestVersionsCommand(t *testing.T) {
	setupEnv(t, newFakeUpstream(t))

	out, err := runCLI(t, "versions", "left-pad")
	if err != nil {
		t.Fatalf("versions error: %v", err)
	}
	newest := strings.Index(out, "1.3.0")
	oldest := strings.Index(out, "1.0.0")
	if newest < 0 || oldest < 0 || newest > oldest {
		t.Errorf("versions output not newest first:\n%s", out)
	}
	if !strings.Contains(out, "deprecated") {
		t.Errorf("versions output should flag deprecated versions:\n%s", out)
	}

	out, err = runCLI(t, "versions", "left-pad", "--limit", "1")
	if err != nil {
		t.Fatalf("versions --limit error: %v", err)
	}
	if strings.Contains(out, "1.0.0") {
		t.Errorf("versions --limit 1 output = %q", out)
	}
}

func TestDownloadsCommand(t *testing.T) {
	setupEnv(t, newFakeUpstream(t))

	out, err := runCLI(t, "downloads", "left-pad", "--period", "last-week")
	if err != nil {
		t.Fatalf("downloads error: %v", err)
	}
	if !strings.Contains(out, "2.5M downloads (last-week)") {
		t.Errorf("downloads output = %q", out)
	}

	if _, err := runCLI(t, "downloads", "left-pad", "--period", "fortnight"); !errors.IsInvalid(err) {
		t.Errorf("downloads --period fortnight error = %v, want invalid input", err)
	}
}

func TestFileCacheAcrossRuns(t *testing.T) {
	f := newFakeUpstream(t)
	setupEnv(t, f)
	t.Setenv("PKGINTEL_CACHE_BACKEND", "file")

	for i := 0; i < 2; i++ {
		if _, err := runCLI(t, "info", "left-pad"); err != nil {
			t.Fatalf("info run %d error: %v", i, err)
		}
	}
	if got := f.packuments.Load(); got != 1 {
		t.Errorf("packument fetched %d times, want 1 (second run cached)", got)
	}

	if _, err := runCLI(t, "info", "left-pad", "--refresh"); err != nil {
		t.Fatalf("info --refresh error: %v", err)
	}
	if got := f.packuments.Load(); got != 2 {
		t.Errorf("packument fetched %d times after --refresh, want 2", got)
	}

	out, err := runCLI(t, "cache", "clear")
	if err != nil {
		t.Fatalf("cache clear error: %v", err)
	}
	if !strings.Contains(out, "Cleared cached results") {
		t.Errorf("cache clear output = %q", out)
	}
	if _, err := runCLI(t, "info", "left-pad"); err != nil {
		t.Fatalf("info after clear error: %v", err)
	}
	if got := f.packuments.Load(); got != 3 {
		t.Errorf("packument fetched %d times after clear, want 3", got)
	}
}

func TestDetectCommand(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pnpm-lock.yaml"), []byte("lockfileVersion: '9.0'\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "detect", dir, "--json")
	if err != nil {
		t.Fatalf("detect error: %v", err)
	}
	var res model.DetectionResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("detect --json output is not JSON: %v", err)
	}
	if res.Dialect != model.DialectPNPM || res.LockFile != "pnpm-lock.yaml" {
		t.Errorf("detect = %+v, want pnpm via pnpm-lock.yaml", res)
	}
}

func TestOperationCommandValidation(t *testing.T) {
	setupEnv(t, newFakeUpstream(t))

	tests := []struct {
		name string
		args []string
	}{
		{"bad dialect", []string{"install", "--pm", "bun"}},
		{"bad package", []string{"install", "Not Valid"}},
		{"remove needs packages", []string{"remove"}},
		{"outdated takes no packages", []string{"outdated", "react"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCLI(t, tt.args...); err == nil {
				t.Errorf("%v: expected error", tt.args)
			}
		})
	}

	_, err := runCLI(t, "install", "--pm", "bun")
	if errors.GetCode(err) != errors.ErrCodeInvalidDialect {
		t.Errorf("install --pm bun code = %v, want %v", errors.GetCode(err), errors.ErrCodeInvalidDialect)
	}
}

func TestOperationFlags(t *testing.T) {
	root := New(&bytes.Buffer{}, log.InfoLevel).RootCommand()

	tests := []struct {
		cmd   string
		flags []string
		not   []string
	}{
		{"install", []string{"dev", "global", "exact", "dir", "pm"}, []string{"fix"}},
		{"update", []string{"global", "latest"}, []string{"dev"}},
		{"remove", []string{"global"}, []string{"exact"}},
		{"audit", []string{"production", "fix", "force"}, []string{"dev"}},
		{"outdated", []string{"dir", "pm"}, []string{"global"}},
		{"cache-clean", []string{"dir", "pm"}, []string{"force"}},
	}

	for _, tt := range tests {
		cmd, _, err := root.Find([]string{tt.cmd})
		if err != nil || cmd.Name() != tt.cmd {
			t.Fatalf("Find(%q) = %v, %v", tt.cmd, cmd, err)
		}
		for _, f := range tt.flags {
			if cmd.Flags().Lookup(f) == nil {
				t.Errorf("%s: missing --%s", tt.cmd, f)
			}
		}
		for _, f := range tt.not {
			if cmd.Flags().Lookup(f) != nil {
				t.Errorf("%s: unexpected --%s", tt.cmd, f)
			}
		}
	}
}

func TestConfigCommand(t *testing.T) {
	setupEnv(t, newFakeUpstream(t))
	t.Setenv("PKGINTEL_GITHUB_TOKEN", "ghp_secret")

	out, err := runCLI(t, "config", "show")
	if err != nil {
		t.Fatalf("config show error: %v", err)
	}
	if strings.Contains(out, "ghp_secret") {
		t.Error("config show leaked the GitHub token")
	}
	if !strings.Contains(out, "[cache]") {
		t.Errorf("config show output = %q, want TOML", out)
	}

	out, err = runCLI(t, "config", "path")
	if err != nil {
		t.Fatalf("config path error: %v", err)
	}
	if !strings.HasSuffix(strings.TrimSpace(out), filepath.Join("pkgintel", "config.toml")) {
		t.Errorf("config path = %q", out)
	}
}

func TestBadConfigFile(t *testing.T) {
	setupEnv(t, newFakeUpstream(t))
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[cache]\nbackend = \"memcached\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := runCLI(t, "info", "left-pad", "--config", path); err == nil {
		t.Error("info with an invalid config should fail")
	}
}
