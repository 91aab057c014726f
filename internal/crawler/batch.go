package crawler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pothi-dev/pothi/internal/model"
)

// Batch runs one Engine per seed with bounded concurrency.
//
// Design decision: We use errgroup.SetLimit rather than a hand-rolled
// worker pool because it handles the concurrency bound and cancellation
// correctly with less code. Each seed gets a fresh Engine (its own
// frontier and visited set); only the gate, fetcher, store, recorder and
// ledger are shared, and each of those is safe for concurrent use. The
// shared politeness gate is what keeps two seeds on the same origin from
// violating the spacing rule.
type Batch struct {
	// engineFactory creates a fresh Engine per seed. A factory rather
	// than a shared Engine because the visited set must not leak between
	// seeds.
	engineFactory func() *Engine

	// concurrency is the maximum number of seeds crawled at once.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// results collects per-seed outcomes; guarded by mu.
	results []*Result
	mu      sync.Mutex
}

// BatchOption configures a Batch.
type BatchOption func(*Batch)

// WithConcurrency sets the maximum number of concurrent seed crawls.
// Default is 3.
func WithConcurrency(n int) BatchOption {
	return func(b *Batch) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithBatchLogger sets the logger for batch-level events.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *Batch) {
		b.logger = logger
	}
}

// NewBatch creates a Batch that builds engines with engineFactory.
func NewBatch(engineFactory func() *Engine, opts ...BatchOption) *Batch {
	b := &Batch{
		engineFactory: engineFactory,
		concurrency:   3,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// Run crawls all seeds and returns the aggregated run report.
// A seed's failure (or cancellation mid-seed) never prevents the other
// seeds from finishing their own partial work; the report carries
// whatever completed.
func (b *Batch) Run(ctx context.Context, runID string, seeds []string) *model.RunReport {
	report := &model.RunReport{
		RunID:     runID,
		Mode:      model.ModeCrawl,
		Seeds:     seeds,
		StartedAt: time.Now().UTC(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for _, seed := range seeds {
		g.Go(func() error {
			b.logger.Info("starting seed crawl", "seed", seed)

			engine := b.engineFactory()
			result, err := engine.Run(gctx, seed)
			if err != nil && result == nil {
				// Unusable seed URL; record and move on.
				b.mu.Lock()
				b.results = append(b.results, &Result{
					Seed:     seed,
					Failures: []model.Failure{{URL: seed, Kind: "seed", Message: err.Error()}},
				})
				b.mu.Unlock()
				return nil
			}

			b.mu.Lock()
			b.results = append(b.results, result)
			b.mu.Unlock()
			// Cancellation is reflected in the result; returning the
			// error here would tear down sibling seeds' bookkeeping.
			return nil
		})
	}

	_ = g.Wait()

	for _, r := range b.results {
		report.PagesVisited += r.PagesVisited
		report.DocumentsStored += r.DocumentsStored
		report.DocumentsReused += r.DocumentsReused
		report.DocumentsFlagged += r.DocumentsFlagged
		report.TargetsSkipped += r.Skipped
		report.Failures = append(report.Failures, r.Failures...)
		report.SeedSummaries = append(report.SeedSummaries, model.SeedSummary{
			Seed:            r.Seed,
			PagesVisited:    r.PagesVisited,
			DocumentsStored: r.DocumentsStored,
			DocumentsReused: r.DocumentsReused,
			Failures:        len(r.Failures),
		})
		if r.Cancelled {
			report.Cancelled = true
		}
	}

	report.FinishedAt = time.Now().UTC()
	return report
}
