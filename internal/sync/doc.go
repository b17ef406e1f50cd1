// Package sync brings search index documents up to date with the registry.
//
// # Processor
//
// Processor handles the two sync job kinds:
//
//   - ProcessSync: one package, driven by the change feed. A deletion removes
//     the document without touching the registry. Otherwise the previously
//     indexed document is read first, the packument and weekly downloads are
//     fetched, and the new document is upserted.
//   - ProcessBulk: a chunk of backfill work. Downloads are fetched through the
//     bulk endpoint where the registry allows it, every document is upserted
//     in one batch, and synced/failed counts are reported to the backfill.
//
// # Follow-up steps
//
// After a single-package upsert whose version differs from the previously
// indexed one, the update is handed to the Notifier and then to the
// ReleaseDetector. Both run in their own error boundary: the document is
// already durable, so a failure is logged and never turns into a job retry.
// Release detection also runs the first time a package is indexed.
//
// # Error classification
//
// A package missing upstream (registry.ErrNotFound) is a skip. Other
// upstream failures are returned so the queue retries the job with backoff.
package sync
