package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// The network timeouts and pacing values are tuned for the public archive
// sites in the default seed list, which are slow and easily overwhelmed.
const (
	// DefaultConnectTimeout is the TCP/TLS connection establishment timeout.
	// Archive sites frequently sit behind slow frontends, so this is more
	// generous than a typical API client default.
	DefaultConnectTimeout = 15 * time.Second

	// DefaultReadTimeout is the per-request read timeout. Scanned-book PDFs
	// run into the hundreds of megabytes, so this covers time to response
	// headers rather than total transfer time.
	DefaultReadTimeout = 60 * time.Second

	// DefaultRetryAttempts is the number of times a retryable fetch failure
	// (network error, 5xx, 429) is retried before the URL is abandoned.
	DefaultRetryAttempts = 3

	// DefaultRetryDelay is the base backoff between retries. The delay
	// increases linearly: 1x, 2x, 3x per attempt.
	DefaultRetryDelay = 5 * time.Second

	// DefaultRequestDelay is the minimum spacing between requests to the
	// same origin. This is a politeness setting; some hosts in the built-in
	// special-site table override it with a larger value.
	DefaultRequestDelay = 2 * time.Second

	// DefaultDownloadDelay is the minimum spacing before a document
	// download to the same origin. Downloads are heavier than page
	// fetches, so they get extra spacing.
	DefaultDownloadDelay = 3 * time.Second

	// DefaultMaxFileSize is the largest document accepted for download.
	// Responses declaring a larger Content-Length are skipped up front.
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB

	// DefaultMinFileSize is the smallest document considered plausible.
	// Smaller files are kept but flagged, since a 200-byte "PDF" is almost
	// always an HTML error page served with the wrong content type.
	DefaultMinFileSize = 1024 // 1KB

	// DefaultMaxDepth bounds link-following depth from each seed. Depth 0
	// means only the seed page itself.
	DefaultMaxDepth = 25

	// DefaultMaxPages bounds the total pages fetched per seed. This is a
	// hardening guard against calendar-style infinite link graphs, not a
	// tuning knob for normal runs.
	DefaultMaxPages = 5000

	// DefaultMaxBodySize limits how much of an HTML response is read for
	// link extraction. Pages larger than this are truncated.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultSeedConcurrency is the number of seeds crawled concurrently.
	// Same-origin spacing is still enforced by the shared politeness gate,
	// so this only parallelizes across distinct sites.
	DefaultSeedConcurrency = 3

	// AppName is the application name used for XDG directory paths.
	AppName = "pothi"
)

// DefaultDocumentExtensions are the URL suffixes treated as document links.
// Matching is case-insensitive.
var DefaultDocumentExtensions = []string{".pdf", ".epub", ".doc", ".docx"}

// DefaultDocumentContentTypes are the MIME types treated as documents when
// the URL suffix is inconclusive.
var DefaultDocumentContentTypes = []string{
	"application/pdf",
	"application/epub+zip",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// DefaultUserAgents is the pool of browser identities. One is chosen per
// fetcher and held stable for the whole run; rotating mid-run looks more
// like a bot, not less.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:89.0) Gecko/20100101 Firefox/89.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:89.0) Gecko/20100101 Firefox/89.0",
}

// DefaultSeeds is the built-in seed list of scanned-document archive sites.
// A .pothi config file or CLI arguments replace this list entirely.
var DefaultSeeds = []string{
	"https://sanskritdocuments.org/scannedbooks/asisanskritpdfs.html",
	"https://sanskritdocuments.org/scannedbooks/asiallpdfs.html",
	"https://indianculture.gov.in/ebooks",
	"https://ignca.gov.in/divisionss/asi-books/",
	"https://archive.org/details/TFIC_ASI_Books/ACatalogueOfTheSamskritManuscriptsInTheAdyarLibraryPt.1/",
	"https://indianmanuscripts.com/",
	"https://niimh.nic.in/ebooks/ayuhandbook/index.php",
}

// Config holds all configuration options for pothi.
//
// Design decision: The struct is populated from CLI flags plus the optional
// .pothi file and passed through the application via dependency injection
// rather than global state. Each run constructs its own gate, fetcher,
// store and recorder from one Config, with lifetime equal to the run.
type Config struct {
	// Seeds is the ordered list of root URLs to crawl.
	Seeds []string

	// DocumentsDir is the directory where downloaded documents are stored.
	// Defaults to <XDG data dir>/pothi/files.
	DocumentsDir string

	// RecordsDir is the directory holding the append-only JSONL crawl
	// records. Defaults to <XDG data dir>/pothi/records.
	RecordsDir string

	// LedgerDir is the directory holding the change-detection ledger
	// database. Defaults to the XDG data dir.
	LedgerDir string

	// ConnectTimeout is the connection establishment timeout per request.
	ConnectTimeout time.Duration

	// ReadTimeout is the response header read timeout per request.
	ReadTimeout time.Duration

	// RetryAttempts is the retry budget for retryable fetch failures.
	RetryAttempts int

	// RetryDelay is the base backoff between retries (grows linearly).
	RetryDelay time.Duration

	// RequestDelay is the default same-origin spacing between requests.
	RequestDelay time.Duration

	// DownloadDelay is the same-origin spacing before document downloads.
	DownloadDelay time.Duration

	// MaxDepth is the maximum link-following depth per seed.
	// 0 means only the seed page itself.
	MaxDepth int

	// MaxPages is the maximum number of pages fetched per seed.
	MaxPages int

	// MaxFileSize is the largest accepted document in bytes.
	MaxFileSize int64

	// MinFileSize is the smallest plausible document in bytes. Smaller
	// downloads are flagged as suspect.
	MinFileSize int64

	// MaxBodySize limits how many bytes of an HTML page are read.
	MaxBodySize int64

	// SeedConcurrency is the number of seeds crawled concurrently.
	SeedConcurrency int

	// UserAgent overrides the rotated browser identity when non-empty.
	UserAgent string

	// DocumentExtensions are the URL suffixes classified as documents.
	DocumentExtensions []string

	// DocumentContentTypes are the MIME types classified as documents.
	DocumentContentTypes []string

	// Verbose enables slog.LevelDebug output.
	Verbose bool

	// ConfigFilePath is the path to the .pothi configuration file.
	// Empty means search the current directory then the home directory.
	ConfigFilePath string

	// SiteConfigs holds per-host overrides loaded from the config file,
	// merged over the built-in special-site table.
	SiteConfigs *File

	// JSONReport switches the run summary to JSON output.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport switches the run summary to Markdown output.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile writes the run summary to this path instead of stdout.
	ReportFile string
}

// NewConfig creates a new Config with default values.
// Many defaults are non-zero, so relying on zero values would be wrong;
// this constructor also documents what the defaults are.
func NewConfig() *Config {
	return &Config{
		Seeds:                append([]string(nil), DefaultSeeds...),
		DocumentsDir:         filepath.Join(XDGDataDir(), "files"),
		RecordsDir:           filepath.Join(XDGDataDir(), "records"),
		LedgerDir:            XDGDataDir(),
		ConnectTimeout:       DefaultConnectTimeout,
		ReadTimeout:          DefaultReadTimeout,
		RetryAttempts:        DefaultRetryAttempts,
		RetryDelay:           DefaultRetryDelay,
		RequestDelay:         DefaultRequestDelay,
		DownloadDelay:        DefaultDownloadDelay,
		MaxDepth:             DefaultMaxDepth,
		MaxPages:             DefaultMaxPages,
		MaxFileSize:          DefaultMaxFileSize,
		MinFileSize:          DefaultMinFileSize,
		MaxBodySize:          DefaultMaxBodySize,
		SeedConcurrency:      DefaultSeedConcurrency,
		DocumentExtensions:   append([]string(nil), DefaultDocumentExtensions...),
		DocumentContentTypes: append([]string(nil), DefaultDocumentContentTypes...),
		SiteConfigs:          BuiltinSiteConfigs(),
	}
}

// XDGDataDir returns the XDG data directory for pothi.
// On Linux: ~/.local/share/pothi
// On macOS: ~/Library/Application Support/pothi
// On Windows: %LOCALAPPDATA%\pothi
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for pothi.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first specific error found; fixing one error often makes
// the others irrelevant. Called once after CLI parsing, before any network
// or filesystem activity.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeeds
	}
	if c.ConnectTimeout <= 0 || c.ReadTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.RetryAttempts < 0 {
		return ErrInvalidRetryAttempts
	}
	if c.RequestDelay < 0 || c.DownloadDelay < 0 {
		return ErrInvalidDelay
	}
	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}
	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.MinFileSize < 0 || c.MaxFileSize <= 0 || c.MinFileSize > c.MaxFileSize {
		return ErrInvalidFileSizeBounds
	}
	if c.SeedConcurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return nil
}
