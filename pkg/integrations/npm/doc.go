// Package npm provides an HTTP client for the npm registry and the npm
// downloads API.
//
// # Overview
//
// Three endpoints are used:
//
//   - GET /-/v1/search: text search with fixed ranking weights
//   - GET /<name>: the full package document ("packument")
//   - GET /downloads/point/<period>/<name> on api.npmjs.org
//
// # Usage
//
//	c := npm.NewClient(integrations.NewClient(integrations.Options{}), "", "")
//	doc, err := c.Packument(ctx, "express")
//	if err != nil {
//	    return err
//	}
//	version, ok := doc.ResolveVersion("latest")
//
// # Loose fields
//
// Registry documents are decades old and fields such as author, license,
// repository and keywords appear in several shapes. The Extract* and
// [ParsePerson] helpers read every shape seen in practice and never fail.
package npm
