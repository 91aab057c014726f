package model

// CrawlTarget is a URL queued for crawling.
// Targets are immutable once created and are consumed exactly once by the
// crawl engine; the engine's visited set enforces at-most-once processing
// per normalized URL per run.
type CrawlTarget struct {
	// URL is the absolute URL to visit.
	URL string

	// Referrer is the URL of the page that linked here.
	// Empty for seed URLs.
	Referrer string

	// Depth is the link distance from the seed. Seeds are depth 0.
	Depth int
}
