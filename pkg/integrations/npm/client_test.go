package npm

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
	client := integrations.NewClient(integrations.Options{
		HTTP:   server.Client(),
		Delay:  time.Millisecond,
		Logger: log.NewWithOptions(&strings.Builder{}, log.Options{}),
	})
	return NewClient(client, server.URL, server.URL)
}

func TestSearch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/-/v1/search" {
			t.Errorf("path = %q, want /-/v1/search", r.URL.Path)
		}
		q := r.URL.Query()
		want := map[string]string{
			"text": "date format", "size": "2", "from": "4",
			"quality": "0.65", "popularity": "0.98", "maintenance": "0.5",
		}
		for k, v := range want {
			if got := q.Get(k); got != v {
				t.Errorf("query %s = %q, want %q", k, got, v)
			}
		}
		w.Write([]byte(`{"objects":[
			{"package":{"name":"date-fns","version":"3.6.0","publisher":{"username":"kossnocorp"}},"score":{"final":0.9,"detail":{"quality":0.8,"popularity":0.7,"maintenance":0.6}}},
			{"package":{"name":"dayjs","version":"1.11.10"},"score":{"final":0.8}}
		],"total":2}`))
	})

	resp, err := c.Search(context.Background(), "date format", 2, 4)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(resp.Objects) != 2 || resp.Objects[0].Package.Name != "date-fns" || resp.Objects[1].Package.Name != "dayjs" {
		t.Fatalf("Search() objects = %+v", resp.Objects)
	}
	if got := resp.Objects[0].Score.Detail.Popularity; got != 0.7 {
		t.Errorf("popularity = %v, want 0.7", got)
	}
	if got := resp.Objects[0].Package.Publisher.Username; got != "kossnocorp" {
		t.Errorf("publisher = %q", got)
	}
}

func TestPackument(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/@types%2Fnode" {
			t.Errorf("path = %q, want /@types%%2Fnode", r.URL.EscapedPath())
		}
		json.NewEncoder(w).Encode(map[string]any{
			"name":      "@types/node",
			"dist-tags": map[string]string{"latest": "20.1.0", "next": "21.0.0-beta"},
			"versions": map[string]any{
				"20.1.0":      map[string]any{"version": "20.1.0", "license": "MIT"},
				"21.0.0-beta": map[string]any{"version": "21.0.0-beta"},
			},
			"time": map[string]string{"20.1.0": "2023-05-01T10:00:00.000Z"},
		})
	})

	doc, err := c.Packument(context.Background(), "@types/node")
	if err != nil {
		t.Fatalf("Packument() error: %v", err)
	}
	if doc.Versions["20.1.0"].License != "MIT" {
		t.Errorf("license = %v", doc.Versions["20.1.0"].License)
	}
	if p := doc.PublishedAt("20.1.0"); p == nil || p.Year() != 2023 {
		t.Errorf("PublishedAt() = %v", p)
	}
	if p := doc.PublishedAt("21.0.0-beta"); p != nil {
		t.Errorf("PublishedAt() for unrecorded version = %v, want nil", p)
	}
}

func TestPackumentNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"Not found"}`))
	})

	_, err := c.Packument(context.Background(), "nope-nope-nope")
	if !errors.IsNotFound(err) {
		t.Errorf("Packument() error = %v, want NOT_FOUND", err)
	}
}

func TestDownloads(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/downloads/point/last-week/react" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"downloads":24000000,"start":"2024-01-01","end":"2024-01-07","package":"react"}`))
	})

	point, err := c.Downloads(context.Background(), "last-week", "react")
	if err != nil {
		t.Fatalf("Downloads() error: %v", err)
	}
	if point.Downloads != 24000000 || point.Start != "2024-01-01" {
		t.Errorf("Downloads() = %+v", point)
	}
}

func TestDownloadsServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	if _, err := c.Downloads(context.Background(), "last-week", "react"); !errors.IsTransient(err) {
		t.Errorf("Downloads() error = %v, want transient", err)
	}
}

func TestResolveVersion(t *testing.T) {
	doc := &Packument{
		DistTags: map[string]string{"latest": "2.0.0", "next": "3.0.0-rc.1", "stale": "9.9.9"},
		Versions: map[string]Manifest{"1.0.0": {}, "2.0.0": {}, "3.0.0-rc.1": {}},
	}

	tests := []struct {
		requested string
		want      string
		ok        bool
	}{
		{"", "2.0.0", true},
		{"latest", "2.0.0", true},
		{"next", "3.0.0-rc.1", true},
		{"1.0.0", "1.0.0", true},
		{"v1.0.0", "1.0.0", true},
		{"4.0.0", "", false},
		{"stale", "", false},
	}

	for _, tt := range tests {
		got, ok := doc.ResolveVersion(tt.requested)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ResolveVersion(%q) = (%q, %v), want (%q, %v)", tt.requested, got, ok, tt.want, tt.ok)
		}
	}
}
