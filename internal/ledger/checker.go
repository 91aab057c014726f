package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pothi-dev/pothi/internal/fetch"
	"github.com/pothi-dev/pothi/internal/model"
	"github.com/pothi-dev/pothi/internal/store"
)

// Decision is the verdict of one change check.
type Decision struct {
	// Refetch is true when the URL needs re-acquisition.
	Refetch bool

	// Reason explains the verdict for logging and reports.
	Reason string
}

// Checker walks ledger-known URLs and re-acquires the ones that changed.
// It owns no state of its own; everything durable lives in the Ledger.
type Checker struct {
	ledger  *Ledger
	fetcher *fetch.Fetcher
	store   *store.DocumentStore
	logger  *slog.Logger
}

// NewChecker creates a Checker over the given ledger, fetcher and store.
func NewChecker(l *Ledger, f *fetch.Fetcher, s *store.DocumentStore, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{ledger: l, fetcher: f, store: s, logger: logger}
}

// Outcome is the result of processing one URL.
type Outcome struct {
	// URL is the checked URL.
	URL string

	// Decision is the verdict that was reached.
	Decision Decision

	// Refetched is true when a re-download completed and the ledger row
	// was updated with new state.
	Refetched bool

	// Err is set when the probe or the re-download failed. The ledger
	// keeps its last-known-good state; only last_checked advanced.
	Err error
}

// Check probes a URL and returns the decision without acting on it.
// The entry's last_checked time advances unconditionally, probe success
// or not.
func (c *Checker) Check(ctx context.Context, url string) (Decision, error) {
	now := time.Now()
	defer func() {
		if err := c.ledger.Touch(ctx, url, now); err != nil {
			c.logger.Warn("failed to advance last_checked", "url", url, "error", err)
		}
	}()

	head, err := c.fetcher.Head(ctx, url)
	if err != nil {
		if errors.Is(err, fetch.ErrPolicyDenied) {
			return Decision{Refetch: false, Reason: "denied by robots policy"}, nil
		}
		return Decision{}, fmt.Errorf("freshness probe failed: %w", err)
	}

	entry, err := c.ledger.Get(ctx, url)
	if err != nil {
		return Decision{}, err
	}

	return c.decide(entry, head.LastModified), nil
}

// decide applies the decision policy in priority order.
//
// 1. No entry: the URL is new.
// 2. Server now exposes a freshness token where none was stored.
// 3. The freshness token changed.
// 4. No token on either side: fall back to the local file. A missing
//    file forces a refetch; otherwise the recomputed content hash
//    decides.
// 5. Otherwise nothing changed.
func (c *Checker) decide(entry *Entry, serverToken string) Decision {
	if entry == nil {
		return Decision{Refetch: true, Reason: "new URL"}
	}

	if serverToken != "" {
		if entry.LastModified == "" {
			return Decision{Refetch: true, Reason: "server now reports modification time"}
		}
		if serverToken != entry.LastModified {
			return Decision{Refetch: true, Reason: "modification time changed"}
		}
		return Decision{Refetch: false, Reason: "modification time unchanged"}
	}

	if entry.LastModified == "" {
		if entry.FilePath == "" {
			return Decision{Refetch: true, Reason: "file missing, no freshness token"}
		}
		if _, err := os.Stat(entry.FilePath); err != nil {
			return Decision{Refetch: true, Reason: "file missing, no freshness token"}
		}
		current, err := store.HashFile(entry.FilePath)
		if err != nil {
			return Decision{Refetch: true, Reason: "local file unreadable"}
		}
		if entry.Checksum != "" && current != entry.Checksum {
			return Decision{Refetch: true, Reason: "content hash changed"}
		}
	}

	return Decision{Refetch: false, Reason: "unchanged"}
}

// Process checks one URL and performs the re-download when the decision
// calls for it. A failed refetch leaves the stored checksum, token and
// file reference untouched; only last_checked advances.
func (c *Checker) Process(ctx context.Context, url string) Outcome {
	out := Outcome{URL: url}

	decision, err := c.Check(ctx, url)
	if err != nil {
		out.Err = err
		return out
	}
	out.Decision = decision
	if !decision.Refetch {
		return out
	}

	c.logger.Info("refetching document", "url", url, "reason", decision.Reason)

	now := time.Now()
	result, err := c.fetcher.Fetch(ctx, url, "")
	if err != nil {
		out.Err = fmt.Errorf("refetch failed: %w", err)
		c.touch(ctx, url, now)
		return out
	}
	defer func() { _ = result.Close() }()

	doc, err := c.store.Save(ctx, url, result)
	if err != nil {
		out.Err = fmt.Errorf("refetch store failed: %w", err)
		c.touch(ctx, url, now)
		return out
	}

	checksum := doc.Checksum
	if checksum == "" {
		// Duplicate-skip path: nothing streamed, so hash from disk.
		if checksum, err = store.HashFile(doc.Path); err != nil {
			out.Err = fmt.Errorf("failed to hash stored file: %w", err)
			c.touch(ctx, url, now)
			return out
		}
	}

	token := result.LastModified
	if err := c.ledger.RecordSuccess(ctx, &Entry{
		URL:          url,
		LastModified: token,
		Checksum:     checksum,
		FilePath:     doc.Path,
		LastChecked:  now,
	}); err != nil {
		out.Err = err
		return out
	}

	out.Refetched = true
	return out
}

// Run processes every ledger-known URL and returns a delta run report.
// One URL's failure never stops the pass; cancellation stops dispatching
// new checks and marks the report cancelled.
func (c *Checker) Run(ctx context.Context, runID string) (*model.RunReport, error) {
	urls, err := c.ledger.URLs(ctx)
	if err != nil {
		return nil, err
	}

	report := &model.RunReport{
		RunID:     runID,
		Mode:      model.ModeDelta,
		StartedAt: time.Now().UTC(),
	}

	for _, url := range urls {
		select {
		case <-ctx.Done():
			report.Cancelled = true
			report.FinishedAt = time.Now().UTC()
			return report, ctx.Err()
		default:
		}

		out := c.Process(ctx, url)
		report.URLsChecked++
		switch {
		case out.Err != nil:
			report.Failures = append(report.Failures, model.Failure{
				URL:     url,
				Kind:    "delta",
				Message: out.Err.Error(),
			})
			c.logger.Warn("delta check failed", "url", url, "error", out.Err)
		case out.Refetched:
			report.URLsRefetched++
		default:
			report.URLsUnchanged++
			c.logger.Debug("no change", "url", url, "reason", out.Decision.Reason)
		}
	}

	report.FinishedAt = time.Now().UTC()
	return report, nil
}

// touch advances last_checked, logging rather than failing on error.
func (c *Checker) touch(ctx context.Context, url string, when time.Time) {
	if err := c.ledger.Touch(ctx, url, when); err != nil {
		c.logger.Warn("failed to advance last_checked", "url", url, "error", err)
	}
}
