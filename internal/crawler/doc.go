// Package crawler implements link extraction and the crawl engine.
//
// The engine walks an explicit worklist (breadth-first) from each seed,
// fetching pages through the politeness-gated fetcher, extracting links
// from HTML, dispatching document links straight to the document store,
// and feeding in-scope page links back into the frontier. A visited set
// guarantees each normalized URL is fetched at most once per run.
//
// Multiple seeds run concurrently through the Batch runner; the shared
// politeness gate keeps same-origin requests serialized across seeds.
package crawler
