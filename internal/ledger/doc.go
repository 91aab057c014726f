// Package ledger implements the change-detection ledger: a persistent
// per-URL record of last-known state and the decision logic that turns a
// freshness probe into a skip-or-refetch verdict.
//
// The ledger is independent of the crawl engine. A crawl run seeds it
// with entries as documents are stored; a delta run walks the known URLs,
// probes each with a HEAD request, and re-acquires only what changed.
//
// Persistence is a single SQLite table keyed by URL. Every check updates
// the row's last_checked time, success or failure; checksum, freshness
// token and file reference change only after a verified successful
// re-download, so transient failures preserve last-known-good state.
package ledger
