// Package registry is the client for the upstream npm registry.
//
// Three upstream services are read:
//
//   - The replication endpoint serves the change log. Changes returns one
//     page after a sequence token and CurrentSequence returns the head.
//     EnumeratePackages walks the whole log to list every live package.
//   - The registry serves packuments, parsed into Packument by ParsePackument.
//     Only the fields the search index needs are extracted, with gjson, so
//     multi-megabyte documents are never decoded into maps.
//   - The downloads API serves weekly download counts, one package at a time
//     or up to MaxBulkDownloads unscoped packages per request.
//
// Scoped names are escaped with EscapeName before they are placed in a
// path. A 404 from any endpoint is reported as ErrNotFound.
//
// # Usage
//
//	reg := registry.NewHTTPClient(httpClient,
//	    "https://registry.npmjs.org",
//	    "https://replicate.npmjs.com",
//	    "https://api.npmjs.org")
//	page, err := reg.Changes(ctx, "0", 1000)
package registry
