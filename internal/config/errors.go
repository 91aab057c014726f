package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoSeeds is returned when the seed list is empty after merging
	// defaults, the config file, and CLI arguments.
	ErrNoSeeds = errors.New("no seed URLs: provide seeds via arguments or the config file")

	// ErrInvalidTimeout is returned when a timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: connect and read timeouts must be positive")

	// ErrInvalidRetryAttempts is returned when the retry budget is negative.
	// Use 0 to disable retries entirely.
	ErrInvalidRetryAttempts = errors.New("invalid retry attempts: must be non-negative")

	// ErrInvalidDelay is returned when a politeness delay is negative.
	// Use 0 for no spacing between requests.
	ErrInvalidDelay = errors.New("invalid delay: request and download delays must be non-negative")

	// ErrInvalidMaxDepth is returned when the depth cap is negative.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be non-negative")

	// ErrInvalidMaxPages is returned when the page cap is not positive.
	// A cap of zero would mean no crawling at all.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidFileSizeBounds is returned when the min/max document size
	// bounds are inconsistent.
	ErrInvalidFileSizeBounds = errors.New("invalid file size bounds: need 0 <= min <= max and max > 0")

	// ErrInvalidConcurrency is returned when the seed concurrency is not
	// positive.
	ErrInvalidConcurrency = errors.New("invalid seed concurrency: must be positive")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are specified. Only one output format can be used.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
