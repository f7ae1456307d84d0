package osv

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
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(integrations.NewClient(integrations.Options{
		HTTP:     server.Client(),
		Attempts: 1,
		Delay:    time.Millisecond,
		Logger:   log.NewWithOptions(&strings.Builder{}, log.Options{}),
	}), server.URL)
}

func TestQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/query" {
			t.Errorf("request = %s %s, want POST /v1/query", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Package.Name != "minimist" || req.Package.Ecosystem != "npm" || req.Version != "1.2.0" {
			t.Errorf("request = %+v", req)
		}
		w.Write([]byte(`{"vulns":[
			{
				"id": "GHSA-xvch-5gv4-984h",
				"summary": "Prototype Pollution in minimist",
				"aliases": ["CVE-2021-44906"],
				"published": "2022-03-18T00:01:09Z",
				"severity": [{"type": "CVSS_V3", "score": "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H"}],
				"affected": [{
					"package": {"name": "minimist", "ecosystem": "npm"},
					"ranges": [{"type": "SEMVER", "events": [{"introduced": "0"}, {"fixed": "1.2.6"}]}]
				}],
				"references": [{"type": "WEB", "url": "https://example.com"}, {"type": "ADVISORY", "url": "https://nvd.nist.gov/vuln/detail/CVE-2021-44906"}],
				"database_specific": {"severity": "CRITICAL"}
			},
			{"id": "OSV-WITHDRAWN", "withdrawn": "2023-01-01T00:00:00Z"}
		]}`))
	})

	vulns, err := c.Query(context.Background(), "npm", "minimist", "1.2.0")
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(vulns) != 1 {
		t.Fatalf("Query() returned %d vulns, want 1", len(vulns))
	}
	v := vulns[0]
	if v.ID != "GHSA-xvch-5gv4-984h" || v.DatabaseSpecific.Severity != "CRITICAL" {
		t.Errorf("vuln = %+v", v)
	}
	if got := v.Affected[0].Ranges[0].Events[1].Fixed; got != "1.2.6" {
		t.Errorf("fixed = %q, want 1.2.6", got)
	}
	if got := v.AdvisoryURL(); got != "https://nvd.nist.gov/vuln/detail/CVE-2021-44906" {
		t.Errorf("AdvisoryURL() = %q", got)
	}
}

func TestQueryPaging(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req queryRequest
		json.NewDecoder(r.Body).Decode(&req)
		switch req.PageToken {
		case "":
			w.Write([]byte(`{"vulns":[{"id":"A"}],"next_page_token":"p2"}`))
		case "p2":
			w.Write([]byte(`{"vulns":[{"id":"B"}]}`))
		default:
			t.Errorf("unexpected page token %q", req.PageToken)
		}
	})

	vulns, err := c.Query(context.Background(), "npm", "lodash", "")
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if calls != 2 || len(vulns) != 2 || vulns[1].ID != "B" {
		t.Errorf("Query() = %v after %d calls", vulns, calls)
	}
}

func TestQueryEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	vulns, err := c.Query(context.Background(), "npm", "left-pad", "1.3.0")
	if err != nil || len(vulns) != 0 {
		t.Errorf("Query() = %v, %v, want empty", vulns, err)
	}
}

func TestQueryError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	if _, err := c.Query(context.Background(), "npm", "lodash", ""); !errors.IsTransient(err) {
		t.Errorf("Query() error = %v, want transient", err)
	}
}

func TestAdvisoryURLFallback(t *testing.T) {
	v := Vuln{ID: "OSV-1"}
	if got := v.AdvisoryURL(); got != "https://osv.dev/vulnerability/OSV-1" {
		t.Errorf("AdvisoryURL() = %q", got)
	}
}
