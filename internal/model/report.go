package model

import "time"

// RunMode distinguishes the two run types pothi performs.
type RunMode string

const (
	// ModeCrawl is a full crawl of the seed list.
	ModeCrawl RunMode = "crawl"

	// ModeDelta is a change-detection pass over ledger-known URLs.
	ModeDelta RunMode = "delta"
)

// Failure describes one URL-level failure during a run.
// Every failure is reported exactly once, with enough context to diagnose
// without replaying the run.
type Failure struct {
	// URL is the target that failed.
	URL string `json:"url"`

	// Kind is the failure class (e.g., "network", "http", "parse",
	// "storage").
	Kind string `json:"kind"`

	// Message is the underlying cause.
	Message string `json:"message"`
}

// SeedSummary aggregates results for one seed within a run.
type SeedSummary struct {
	// Seed is the root URL.
	Seed string `json:"seed"`

	// PagesVisited is the number of pages fetched under this seed.
	PagesVisited int `json:"pages_visited"`

	// DocumentsStored is the number of documents written to disk.
	DocumentsStored int `json:"documents_stored"`

	// DocumentsReused is the number of duplicate-skip hits.
	DocumentsReused int `json:"documents_reused"`

	// Failures is the number of failed targets under this seed.
	Failures int `json:"failures"`
}

// RunReport summarizes one crawl or delta run.
// It is the payload consumed by the report writers.
type RunReport struct {
	// RunID is the unique identifier of this run.
	RunID string `json:"run_id"`

	// Mode is the run type.
	Mode RunMode `json:"mode"`

	// Seeds is the seed list the run started from. For delta runs this is
	// the set of ledger-known URLs' origins.
	Seeds []string `json:"seeds,omitempty"`

	// StartedAt and FinishedAt bound the run in UTC.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// PagesVisited is the total number of HTML pages fetched.
	PagesVisited int `json:"pages_visited"`

	// DocumentsStored is the number of documents newly written to disk.
	DocumentsStored int `json:"documents_stored"`

	// DocumentsReused is the number of duplicate-skip hits (zero bytes
	// transferred).
	DocumentsReused int `json:"documents_reused"`

	// DocumentsFlagged is the number of stored documents with integrity
	// flags.
	DocumentsFlagged int `json:"documents_flagged"`

	// TargetsSkipped counts targets skipped by robots policy or
	// classification.
	TargetsSkipped int `json:"targets_skipped"`

	// URLsChecked, URLsRefetched and URLsUnchanged are populated by delta
	// runs only.
	URLsChecked   int `json:"urls_checked,omitempty"`
	URLsRefetched int `json:"urls_refetched,omitempty"`
	URLsUnchanged int `json:"urls_unchanged,omitempty"`

	// SeedSummaries holds per-seed aggregates for crawl runs.
	SeedSummaries []SeedSummary `json:"seed_summaries,omitempty"`

	// Failures lists every URL-level failure of the run.
	Failures []Failure `json:"failures,omitempty"`

	// Cancelled reports that the run stopped early on a cancellation
	// signal. Partial results above are still valid.
	Cancelled bool `json:"cancelled,omitempty"`
}

// Duration returns the wall-clock duration of the run.
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// FailureCount returns the number of URL-level failures.
func (r *RunReport) FailureCount() int {
	return len(r.Failures)
}
