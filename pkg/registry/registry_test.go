package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pkgintel/pkg/errors"
	"github.com/matzehuels/pkgintel/pkg/integrations"
	"github.com/matzehuels/pkgintel/pkg/integrations/bundlephobia"
	"github.com/matzehuels/pkgintel/pkg/integrations/npm"
	"github.com/matzehuels/pkgintel/pkg/model"
)

var leftPad = map[string]any{
	"name":        "left-pad",
	"description": "String left pad",
	"dist-tags":   map[string]string{"latest": "1.3.0"},
	"license":     "WTFPL",
	"versions": map[string]any{
		"1.2.0": map[string]any{"version": "1.2.0", "deprecated": "use String.prototype.padStart()"},
		"1.3.0": map[string]any{
			"name":         "left-pad",
			"version":      "1.3.0",
			"description":  "String left pad",
			"license":      "WTFPL",
			"author":       "azer <azer@roadbeats.com> (http://azer.bike)",
			"maintainers":  []any{map[string]any{"name": "stevemao", "email": "steve@x.io"}},
			"repository":   map[string]any{"type": "git", "url": "git+ssh://git@github.com/stevemao/left-pad.git"},
			"keywords":     []any{"leftpad", "left", "pad"},
			"dependencies": map[string]string{},
			"deprecated":   "use String.prototype.padStart()",
		},
	},
	"time": map[string]string{
		"1.2.0": "2017-12-12T00:00:00.000Z",
		"1.3.0": "2018-04-09T01:41:31.000Z",
	},
}

type fixture struct {
	bundleStatus int
}

func newTestClient(t *testing.T, f fixture) *Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/-/v1/search", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("size"); got != "100" {
			t.Errorf("search size = %q, want clamped 100", got)
		}
		if got := r.URL.Query().Get("from"); got != "0" {
			t.Errorf("search from = %q, want 0", got)
		}
		w.Write([]byte(`{"objects":[
			{"package":{"name":"left-pad","version":"1.3.0","publisher":{"username":"stevemao"}},"score":{"final":0.5,"detail":{"quality":0.1,"popularity":0.2,"maintenance":0.3}}},
			{"package":{"name":"pad-left","version":"2.1.0"},"score":{"final":0.4}}
		]}`))
	})
	mux.HandleFunc("/left-pad", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(leftPad)
	})
	mux.HandleFunc("/downloads/point/last-week/left-pad", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"downloads":1500000,"start":"2024-01-01","end":"2024-01-07","package":"left-pad"}`))
	})
	mux.HandleFunc("/api/size", func(w http.ResponseWriter, r *http.Request) {
		if f.bundleStatus != 0 {
			w.WriteHeader(f.bundleStatus)
			return
		}
		w.Write([]byte(`{"name":"left-pad","version":"1.3.0","size":1200,"gzip":600,"dependencyCount":0,"hasJSModule":false,"hasSideEffects":true}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	logger := log.NewWithOptions(&strings.Builder{}, log.Options{})
	client := integrations.NewClient(integrations.Options{
		HTTP:     server.Client(),
		Attempts: 1,
		Delay:    time.Millisecond,
		Logger:   logger,
	})
	return New(npm.NewClient(client, server.URL, server.URL), bundlephobia.NewClient(client, server.URL), logger)
}

func TestSearch(t *testing.T) {
	c := newTestClient(t, fixture{})

	results, err := c.Search(context.Background(), "pad", 500, -3)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Search() returned %d results, want 2", len(results))
	}
	if results[0].Name != "left-pad" || results[1].Name != "pad-left" {
		t.Errorf("Search() order = %s, %s; want registry order", results[0].Name, results[1].Name)
	}
	want := model.Score{Final: 0.5, Quality: 0.1, Popularity: 0.2, Maintenance: 0.3}
	if results[0].Score != want {
		t.Errorf("Score = %+v, want %+v", results[0].Score, want)
	}
	if results[0].Publisher != "stevemao" {
		t.Errorf("Publisher = %q", results[0].Publisher)
	}
}

func TestGetPackageInfo(t *testing.T) {
	c := newTestClient(t, fixture{})

	rec, err := c.GetPackageInfo(context.Background(), "left-pad", "")
	if err != nil {
		t.Fatalf("GetPackageInfo() error: %v", err)
	}
	if rec.Name != "left-pad" || rec.Version != "1.3.0" || rec.License != "WTFPL" {
		t.Errorf("record = %s@%s %s", rec.Name, rec.Version, rec.License)
	}
	wantAuthor := model.Author{Name: "azer", Email: "azer@roadbeats.com", URL: "http://azer.bike"}
	if rec.Author == nil || *rec.Author != wantAuthor {
		t.Errorf("Author = %+v, want %+v", rec.Author, wantAuthor)
	}
	if len(rec.Maintainers) != 1 || rec.Maintainers[0].Name != "stevemao" {
		t.Errorf("Maintainers = %+v", rec.Maintainers)
	}
	if rec.Repository != "https://github.com/stevemao/left-pad" {
		t.Errorf("Repository = %q", rec.Repository)
	}
	if rec.PURL != "pkg:npm/left-pad@1.3.0" {
		t.Errorf("PURL = %q", rec.PURL)
	}
	if rec.Deprecated == "" {
		t.Error("Deprecated should be set")
	}
	if rec.PublishedAt == nil || rec.PublishedAt.Year() != 2018 {
		t.Errorf("PublishedAt = %v", rec.PublishedAt)
	}
	if rec.DownloadStats != nil || rec.BundleSize != nil || rec.Security != nil {
		t.Error("base record should carry no enrichment")
	}
}

func TestGetPackageInfoVersions(t *testing.T) {
	c := newTestClient(t, fixture{})

	rec, err := c.GetPackageInfo(context.Background(), "left-pad", "1.2.0")
	if err != nil {
		t.Fatalf("GetPackageInfo(1.2.0) error: %v", err)
	}
	if rec.Version != "1.2.0" || rec.License != "WTFPL" {
		t.Errorf("record = %s %s, want 1.2.0 with package-level license", rec.Version, rec.License)
	}

	_, err = c.GetPackageInfo(context.Background(), "left-pad", "9.9.9")
	if !errors.Is(err, errors.ErrCodePackageNotFound) {
		t.Errorf("GetPackageInfo(9.9.9) error = %v, want PACKAGE_NOT_FOUND", err)
	}
}

func TestGetPackageInfoNotFound(t *testing.T) {
	c := newTestClient(t, fixture{})

	_, err := c.GetPackageInfo(context.Background(), "does-not-exist", "")
	if !errors.Is(err, errors.ErrCodePackageNotFound) {
		t.Errorf("GetPackageInfo() error = %v, want PACKAGE_NOT_FOUND", err)
	}
	if !errors.IsNotFound(err) {
		t.Error("IsNotFound() should hold")
	}
}

func TestGetDownloadStats(t *testing.T) {
	c := newTestClient(t, fixture{})

	stats, err := c.GetDownloadStats(context.Background(), "left-pad", model.PeriodWeek)
	if err != nil {
		t.Fatalf("GetDownloadStats() error: %v", err)
	}
	if stats.Downloads != 1500000 || stats.Period != model.PeriodWeek {
		t.Errorf("stats = %+v", stats)
	}

	if _, err := c.GetDownloadStats(context.Background(), "left-pad", "last-decade"); !errors.IsInvalid(err) {
		t.Errorf("GetDownloadStats(last-decade) error = %v, want INVALID_INPUT", err)
	}
	if _, err := c.GetDownloadStats(context.Background(), "left-pad", model.PeriodMonth); err == nil {
		t.Error("GetDownloadStats() should fail hard on 404")
	}
}

func TestGetBundleSize(t *testing.T) {
	c := newTestClient(t, fixture{})

	size := c.GetBundleSize(context.Background(), "left-pad", "1.3.0")
	if !size.Known() || size.Size != 1200 || size.Gzip != 600 || !size.HasSideEffects {
		t.Errorf("GetBundleSize() = %+v", size)
	}
}

func TestGetBundleSizeSoftFails(t *testing.T) {
	c := newTestClient(t, fixture{bundleStatus: http.StatusServiceUnavailable})

	size := c.GetBundleSize(context.Background(), "left-pad", "1.3.0")
	if size == nil {
		t.Fatal("GetBundleSize() = nil, want zeroed record")
	}
	if size.Known() {
		t.Errorf("GetBundleSize() = %+v, want zeroed", size)
	}
}

func TestPackageExists(t *testing.T) {
	c := newTestClient(t, fixture{})

	if !c.PackageExists(context.Background(), "left-pad") {
		t.Error("PackageExists(left-pad) = false, want true")
	}
	if c.PackageExists(context.Background(), "nope") {
		t.Error("PackageExists(nope) = true, want false")
	}
}

func TestPackageExistsNetworkError(t *testing.T) {
	logger := log.NewWithOptions(&strings.Builder{}, log.Options{})
	client := integrations.NewClient(integrations.Options{Attempts: 1, Timeout: time.Second, Logger: logger})
	c := New(npm.NewClient(client, "http://127.0.0.1:1", ""), nil, logger)

	if c.PackageExists(context.Background(), "left-pad") {
		t.Error("PackageExists() on unreachable registry = true, want false")
	}
}

func TestGetVersions(t *testing.T) {
	c := newTestClient(t, fixture{})

	versions, err := c.GetVersions(context.Background(), "left-pad")
	if err != nil {
		t.Fatalf("GetVersions() error: %v", err)
	}
	if len(versions) != 2 || versions[0].Number != "1.3.0" || versions[1].Number != "1.2.0" {
		t.Errorf("GetVersions() = %+v, want newest first", versions)
	}
}

func TestPURL(t *testing.T) {
	if got := PURL("lodash", "4.17.21"); got != "pkg:npm/lodash@4.17.21" {
		t.Errorf("PURL() = %q", got)
	}

	tests := []struct {
		purl, name, version string
	}{
		{"pkg:npm/lodash@4.17.21", "lodash", "4.17.21"},
		{"pkg:npm/%40babel/core@7.24.0", "@babel/core", "7.24.0"},
		{PURL("@types/node", "20.1.0"), "@types/node", "20.1.0"},
	}
	for _, tt := range tests {
		name, version, err := ParsePURL(tt.purl)
		if err != nil {
			t.Fatalf("ParsePURL(%q) error: %v", tt.purl, err)
		}
		if name != tt.name || version != tt.version {
			t.Errorf("ParsePURL(%q) = (%q, %q), want (%q, %q)", tt.purl, name, version, tt.name, tt.version)
		}
	}

	if _, _, err := ParsePURL("pkg:pypi/requests@2.0"); !errors.IsInvalid(err) {
		t.Errorf("ParsePURL(pypi) error = %v, want INVALID_PACKAGE", err)
	}
}
