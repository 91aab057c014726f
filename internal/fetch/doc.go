// Package fetch performs HTTP retrieval for the crawler.
//
// The Fetcher issues GET and HEAD requests with separate connect and read
// timeouts, a stable browser-like identity, bounded retries with linearly
// increasing backoff, and per-origin politeness enforced through the gate.
// Response bodies are streamed, never buffered; classification into
// html/document/other happens on headers and URL suffix alone.
//
// All failures are reported as typed errors (see Error), never panics.
// The caller decides whether a failure ends the target or the run.
package fetch
