package model

import "time"

// PackageRecord is the enriched view of one package version.
// DownloadStats, BundleSize and Security are nil when the enrichment
// source could not be consulted.
type PackageRecord struct {
	Name             string            `json:"name"`
	Version          string            `json:"version"`
	Description      string            `json:"description,omitempty"`
	License          string            `json:"license,omitempty"`
	Author           *Author           `json:"author,omitempty"`
	Maintainers      []Author          `json:"maintainers,omitempty"`
	Keywords         []string          `json:"keywords,omitempty"`
	Dependencies     map[string]string `json:"dependencies,omitempty"`
	DevDependencies  map[string]string `json:"devDependencies,omitempty"`
	PeerDependencies map[string]string `json:"peerDependencies,omitempty"`
	Repository       string            `json:"repository,omitempty"`
	Homepage         string            `json:"homepage,omitempty"`
	PURL             string            `json:"purl,omitempty"`
	Deprecated       string            `json:"deprecated,omitempty"`
	PublishedAt      *time.Time        `json:"publishedAt,omitempty"`
	DistTags         map[string]string `json:"distTags,omitempty"`

	DownloadStats *DownloadStats `json:"downloadStats,omitempty"`
	BundleSize    *BundleSize    `json:"bundleSize,omitempty"`
	Security      *SecurityInfo  `json:"security,omitempty"`
}

// Author is a person attached to a package (author or maintainer).
type Author struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	URL   string `json:"url,omitempty"`
}

// Period is a fixed download-statistics window.
type Period string

const (
	PeriodDay   Period = "last-day"
	PeriodWeek  Period = "last-week"
	PeriodMonth Period = "last-month"
	PeriodYear  Period = "last-year"
)

// Periods lists the supported download windows.
var Periods = []Period{PeriodDay, PeriodWeek, PeriodMonth, PeriodYear}

// Valid reports whether p is one of the supported windows.
func (p Period) Valid() bool {
	for _, v := range Periods {
		if p == v {
			return true
		}
	}
	return false
}

// DownloadStats is a point-in-time download count.
type DownloadStats struct {
	Package   string `json:"package"`
	Period    Period `json:"period"`
	Downloads int64  `json:"downloads"`
	Start     string `json:"start,omitempty"`
	End       string `json:"end,omitempty"`
}

// BundleSize describes the minified bundle footprint of a package.
// The zero value means the size is unknown.
type BundleSize struct {
	Name            string `json:"name,omitempty"`
	Version         string `json:"version,omitempty"`
	Size            int64  `json:"size"`
	Gzip            int64  `json:"gzip"`
	DependencyCount int    `json:"dependencyCount"`
	HasJSModule     bool   `json:"hasJSModule"`
	HasSideEffects  bool   `json:"hasSideEffects"`
}

// Known reports whether the record carries real size data.
func (b BundleSize) Known() bool { return b.Size > 0 || b.Gzip > 0 }

// Version is one published version of a package.
type Version struct {
	Number      string     `json:"number"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	Deprecated  string     `json:"deprecated,omitempty"`
}

// SearchResult is a single registry search hit.
type SearchResult struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Description string            `json:"description,omitempty"`
	Keywords    []string          `json:"keywords,omitempty"`
	Publisher   string            `json:"publisher,omitempty"`
	Links       map[string]string `json:"links,omitempty"`
	Date        *time.Time        `json:"date,omitempty"`
	Score       Score             `json:"score"`
}

// Score is the registry's ranking of a search hit.
type Score struct {
	Final       float64 `json:"final"`
	Quality     float64 `json:"quality"`
	Popularity  float64 `json:"popularity"`
	Maintenance float64 `json:"maintenance"`
}
