package ghsa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pkgintel/pkg/integrations"
)

const advisoriesBody = `[
  {
    "ghsa_id": "GHSA-jf85-cpcp-j695",
    "cve_id": "CVE-2019-10744",
    "html_url": "https://github.com/advisories/GHSA-jf85-cpcp-j695",
    "summary": "Prototype Pollution in lodash",
    "severity": "critical",
    "identifiers": [{"type": "GHSA", "value": "GHSA-jf85-cpcp-j695"}, {"type": "CVE", "value": "CVE-2019-10744"}],
    "vulnerabilities": [{
      "package": {"ecosystem": "npm", "name": "lodash"},
      "vulnerable_version_range": "< 4.17.12",
      "first_patched_version": "4.17.12"
    }],
    "cvss": {"vector_string": "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:N/I:H/A:H", "score": 9.1},
    "published_at": "2019-07-10T19:45:23Z",
    "updated_at": "2023-09-11T16:22:18Z",
    "withdrawn_at": null
  },
  {
    "ghsa_id": "GHSA-xxxx-xxxx-xxxx",
    "summary": "Withdrawn",
    "severity": "low",
    "withdrawn_at": "2020-01-01T00:00:00Z"
  }
]`

func newTestClient(t *testing.T, token string, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(integrations.NewClient(integrations.Options{
		HTTP:   server.Client(),
		Delay:  time.Millisecond,
		Logger: log.NewWithOptions(&strings.Builder{}, log.Options{}),
	}), server.URL, token)
}

func TestAdvisories(t *testing.T) {
	c := newTestClient(t, "s3cret", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/advisories" {
			t.Errorf("path = %q, want /advisories", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("ecosystem") != "npm" || q.Get("affects") != "lodash" {
			t.Errorf("query = %v", q)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer s3cret" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Accept"); got != "application/vnd.github+json" {
			t.Errorf("Accept = %q", got)
		}
		w.Write([]byte(advisoriesBody))
	})

	advisories, err := c.Advisories(context.Background(), "npm", "lodash")
	if err != nil {
		t.Fatalf("Advisories() error: %v", err)
	}
	if len(advisories) != 1 {
		t.Fatalf("Advisories() returned %d, want 1 (withdrawn skipped)", len(advisories))
	}
	a := advisories[0]
	if a.GHSAID != "GHSA-jf85-cpcp-j695" || a.Severity != "critical" {
		t.Errorf("advisory = %+v", a)
	}
	if a.CVSS == nil || a.CVSS.Score != 9.1 {
		t.Errorf("CVSS = %+v", a.CVSS)
	}
	v := a.Vulnerabilities[0]
	if v.VulnerableVersionRange != "< 4.17.12" || v.FirstPatchedVersion != "4.17.12" {
		t.Errorf("vulnerability = %+v", v)
	}
	if got, want := a.Aliases(), []string{"CVE-2019-10744"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Aliases() = %v, want %v", got, want)
	}
}

func TestAdvisoriesWithoutToken(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("Authorization = %q, want empty", got)
		}
		w.Write([]byte(`[]`))
	})

	advisories, err := c.Advisories(context.Background(), "npm", "left-pad")
	if err != nil {
		t.Fatalf("Advisories() error: %v", err)
	}
	if len(advisories) != 0 {
		t.Errorf("Advisories() = %v, want empty", advisories)
	}
}

func TestPatchedVersionShapes(t *testing.T) {
	tests := []struct {
		in   string
		want PatchedVersion
	}{
		{`"1.2.3"`, "1.2.3"},
		{`{"identifier":"2.0.0"}`, "2.0.0"},
		{`null`, ""},
	}
	for _, tt := range tests {
		var p PatchedVersion
		if err := json.Unmarshal([]byte(tt.in), &p); err != nil {
			t.Fatalf("Unmarshal(%s) error: %v", tt.in, err)
		}
		if p != tt.want {
			t.Errorf("Unmarshal(%s) = %q, want %q", tt.in, p, tt.want)
		}
	}
}
