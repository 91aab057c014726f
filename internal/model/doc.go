// Package model defines the core data structures used throughout pothi.
//
// This package contains the following main types:
//   - CrawlTarget: A URL queued for crawling, with provenance and depth
//   - StoredDocument: A document persisted to the documents directory
//   - CrawlRecord: An append-only acquisition record (JSONL)
//   - RunReport: A summary of one crawl or delta run
//
// Design decision: We separate models into their own package to avoid
// circular dependencies. Multiple packages (crawler, store, ledger,
// report) need these types, so centralizing them prevents import cycles.
package model
