package crawler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/pothi-dev/pothi/internal/fetch"
	"github.com/pothi-dev/pothi/internal/ledger"
	"github.com/pothi-dev/pothi/internal/model"
	"github.com/pothi-dev/pothi/internal/store"
)

// Result aggregates the outcome of one seed's crawl.
type Result struct {
	// Seed is the root URL the crawl started from.
	Seed string

	// PagesVisited is the number of HTML pages fetched and expanded.
	PagesVisited int

	// DocumentsStored is the number of documents newly written to disk.
	DocumentsStored int

	// DocumentsReused is the number of duplicate-skip hits.
	DocumentsReused int

	// DocumentsFlagged is the number of stored documents carrying
	// integrity flags.
	DocumentsFlagged int

	// Skipped counts targets not fetched or not kept: robots denials,
	// uninteresting content types, and oversize documents.
	Skipped int

	// Failures lists every URL-level failure under this seed.
	Failures []model.Failure

	// Cancelled reports the crawl stopped early on context cancellation.
	Cancelled bool
}

// Engine crawls one seed to completion.
//
// The engine owns its frontier and visited set exclusively; neither is
// shared between engines or persisted across runs. All mutation happens
// on the single goroutine running Run, so no locking is needed — the
// concurrency boundary is the Batch runner, which gives each seed its own
// Engine.
//
// Design decision: The frontier is an explicit queue processed
// iteratively, not recursion. Deep link graphs would otherwise risk stack
// depth, and a worklist makes cancellation and the depth/page caps
// straightforward.
type Engine struct {
	// fetcher retrieves pages and documents, politeness included.
	fetcher *fetch.Fetcher

	// docStore persists documents.
	docStore *store.DocumentStore

	// recorder emits acquisition records.
	recorder *store.Recorder

	// ledger, when non-nil, is seeded with an entry per stored document
	// so later delta runs know what to track.
	ledger *ledger.Ledger

	// runID tags records emitted by this run.
	runID string

	// maxDepth bounds link-following depth; 0 means seed page only.
	maxDepth int

	// maxPages bounds pages fetched for this seed.
	maxPages int

	// maxBodySize bounds how much HTML is read per page.
	maxBodySize int64

	// docExtensions drive link classification.
	docExtensions []string

	// logger records progress and failures.
	logger *slog.Logger

	// visited is the set of normalized URLs already dispatched to the
	// fetcher in this run. Guarantees at-most-once fetching per URL.
	visited map[string]bool

	result *Result
}

// Option configures an Engine.
type Option func(*Engine)

// WithLimits sets the depth and page caps.
func WithLimits(maxDepth, maxPages int) Option {
	return func(e *Engine) {
		e.maxDepth = maxDepth
		e.maxPages = maxPages
	}
}

// WithMaxBodySize sets the HTML read limit.
func WithMaxBodySize(size int64) Option {
	return func(e *Engine) {
		e.maxBodySize = size
	}
}

// WithDocumentExtensions sets the extensions used for link classification.
func WithDocumentExtensions(exts []string) Option {
	return func(e *Engine) {
		e.docExtensions = exts
	}
}

// WithLedger seeds the change-detection ledger as documents are stored.
func WithLedger(l *ledger.Ledger) Option {
	return func(e *Engine) {
		e.ledger = l
	}
}

// WithRunID tags emitted records with a run identifier.
func WithRunID(id string) Option {
	return func(e *Engine) {
		e.runID = id
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an Engine for one seed crawl.
func NewEngine(f *fetch.Fetcher, s *store.DocumentStore, r *store.Recorder, opts ...Option) *Engine {
	e := &Engine{
		fetcher:       f,
		docStore:      s,
		recorder:      r,
		maxDepth:      25,
		maxPages:      5000,
		maxBodySize:   5 * 1024 * 1024,
		docExtensions: []string{".pdf", ".epub", ".doc", ".docx"},
		visited:       make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Run crawls the seed to frontier exhaustion (or a cap) and returns the
// aggregated result. One target's failure never aborts the run; a
// cancelled context stops dispatching new targets and lets the in-flight
// store operation finish, preserving the atomic-write invariant.
func (e *Engine) Run(ctx context.Context, seed string) (*Result, error) {
	extractor, err := NewLinkExtractor(seed, e.docExtensions)
	if err != nil {
		return nil, err
	}

	e.result = &Result{Seed: seed}
	queue := []model.CrawlTarget{{URL: seed, Depth: 0}}

	for len(queue) > 0 && e.result.PagesVisited < e.maxPages {
		select {
		case <-ctx.Done():
			e.result.Cancelled = true
			return e.result, ctx.Err()
		default:
		}

		target := queue[0]
		queue = queue[1:]

		norm := normalizeURL(target.URL)
		if e.visited[norm] {
			continue
		}
		e.visited[norm] = true

		queue = e.step(ctx, extractor, target, queue)
	}

	e.logger.Info("seed crawl finished",
		"seed", seed,
		"pages", e.result.PagesVisited,
		"stored", e.result.DocumentsStored,
		"reused", e.result.DocumentsReused,
		"failures", len(e.result.Failures),
	)
	return e.result, nil
}

// step fetches one target, routes the response, and returns the queue
// with any newly discovered page links appended.
func (e *Engine) step(ctx context.Context, extractor *LinkExtractor, target model.CrawlTarget, queue []model.CrawlTarget) []model.CrawlTarget {
	result, err := e.fetcher.Fetch(ctx, target.URL, target.Referrer)
	if err != nil {
		e.recordFetchError(target.URL, err)
		return queue
	}

	switch result.Kind {
	case fetch.KindHTML:
		return e.expand(ctx, extractor, target, result, queue)
	case fetch.KindDocument:
		// The target itself is a document (seed pointing at a PDF, or a
		// page link that turned out to be one).
		e.acquireFetched(ctx, target.Referrer, target.URL, result)
		return queue
	default:
		_ = result.Close()
		e.result.Skipped++
		e.logger.Debug("skipping uninteresting content",
			"url", target.URL,
			"content_type", result.ContentType,
		)
		return queue
	}
}

// expand extracts links from an HTML response, dispatches document links
// to the store immediately, and enqueues in-scope page links.
func (e *Engine) expand(ctx context.Context, extractor *LinkExtractor, target model.CrawlTarget, result *fetch.Result, queue []model.CrawlTarget) []model.CrawlTarget {
	base, err := url.Parse(result.URL)
	if err != nil {
		_ = result.Close()
		e.addFailure(target.URL, "parse", err.Error())
		return queue
	}

	links, err := extractor.Extract(io.LimitReader(result.Body, e.maxBodySize), base, result.ContentType)
	_ = result.Close()
	e.result.PagesVisited++

	if err != nil {
		// Malformed HTML or undetectable encoding: log, skip the page,
		// keep crawling.
		e.addFailure(target.URL, "parse", err.Error())
		return queue
	}

	// Document links found inline are dispatched immediately rather than
	// queued: a URL ending in a document extension cannot be HTML, so a
	// classification round-trip would be wasted.
	for _, docURL := range links.Documents {
		select {
		case <-ctx.Done():
			return queue
		default:
		}

		norm := normalizeURL(docURL)
		if e.visited[norm] {
			continue
		}
		e.visited[norm] = true
		e.acquire(ctx, result.URL, docURL)
	}

	if target.Depth >= e.maxDepth {
		return queue
	}
	for _, pageURL := range links.Pages {
		if e.visited[normalizeURL(pageURL)] {
			continue
		}
		queue = append(queue, model.CrawlTarget{
			URL:      pageURL,
			Referrer: result.URL,
			Depth:    target.Depth + 1,
		})
	}
	return queue
}

// acquire fetches a document link and hands it to the store.
func (e *Engine) acquire(ctx context.Context, discoveringURL, docURL string) {
	result, err := e.fetcher.Fetch(ctx, docURL, discoveringURL)
	if err != nil {
		e.recordFetchError(docURL, err)
		return
	}
	e.acquireFetched(ctx, discoveringURL, docURL, result)
}

// acquireFetched stores an already-fetched document response and emits
// the acquisition record and ledger entry.
func (e *Engine) acquireFetched(ctx context.Context, discoveringURL, docURL string, result *fetch.Result) {
	defer func() { _ = result.Close() }()

	doc, err := e.docStore.Save(ctx, docURL, result)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrTooLarge):
			e.result.Skipped++
			e.logger.Warn("document too large, skipping", "url", docURL, "error", err)
		case errors.Is(err, store.ErrEmptyDownload):
			e.addFailure(docURL, "integrity", err.Error())
		case errors.Is(err, context.Canceled):
			e.result.Cancelled = true
		default:
			e.addFailure(docURL, "storage", err.Error())
		}
		return
	}

	if doc.Reused {
		e.result.DocumentsReused++
		return
	}

	e.result.DocumentsStored++
	if doc.Flagged() {
		e.result.DocumentsFlagged++
	}

	if err := e.recorder.Append(model.CrawlRecord{
		RunID:          e.runID,
		DiscoveringURL: discoveringURL,
		DownloadURL:    docURL,
		LocalFileName:  doc.LocalName,
		DownloadedAt:   doc.StoredAt,
	}); err != nil {
		e.addFailure(docURL, "record", err.Error())
	}

	if e.ledger != nil {
		entry := &ledger.Entry{
			URL:          docURL,
			LastModified: result.LastModified,
			Checksum:     doc.Checksum,
			FilePath:     doc.Path,
			LastChecked:  time.Now(),
		}
		if err := e.ledger.RecordSuccess(ctx, entry); err != nil {
			e.addFailure(docURL, "ledger", err.Error())
		}
	}
}

// recordFetchError routes a fetch error into the right counter.
func (e *Engine) recordFetchError(targetURL string, err error) {
	switch {
	case errors.Is(err, fetch.ErrPolicyDenied):
		// A robots denial is a routing decision, not a fault.
		e.result.Skipped++
		e.logger.Debug("robots policy denied", "url", targetURL)
	case errors.Is(err, context.Canceled):
		e.result.Cancelled = true
	default:
		kind := "network"
		var ferr *fetch.Error
		if errors.As(err, &ferr) {
			kind = string(ferr.Kind)
		}
		e.addFailure(targetURL, kind, err.Error())
	}
}

// addFailure records one URL-level failure, reported exactly once.
func (e *Engine) addFailure(targetURL, kind, message string) {
	e.result.Failures = append(e.result.Failures, model.Failure{
		URL:     targetURL,
		Kind:    kind,
		Message: message,
	})
	e.logger.Warn("target failed",
		"url", targetURL,
		"kind", kind,
		"error", message,
	)
}

// normalizeURL canonicalizes a URL for visited-set membership: fragments
// dropped, scheme and host lowercased, empty path normalized to "/".
func normalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}
