// Package model defines the plain records exchanged between the package
// intelligence components.
//
// Records are built fresh for every lookup and are treated as immutable once
// returned: the orchestrator caches them by value (JSON), so mutating a record
// after it has been handed out never affects other callers.
//
// # Records
//
//   - [PackageRecord]: registry metadata plus optional enrichment
//     ([DownloadStats], [BundleSize], [SecurityInfo])
//   - [SearchResult]: one registry search hit with its ranking [Score]
//   - [Vulnerability] and [SecurityInfo]: normalized advisory data
//   - [DetectionResult] and [OperationResult]: package manager detection and
//     command outcomes
package model
