package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// DBFileName is the ledger database file name.
const DBFileName = "pothi.db"

// Ledger provides SQLite-backed storage for per-URL change-detection
// state.
//
// Design decision: SQLite over a JSON file because row updates must be
// transactional: a check either fully commits its row or leaves prior
// state untouched, and the delta and crawl paths may touch the ledger
// from different goroutines.
type Ledger struct {
	// db is the underlying SQL connection.
	db *sql.DB

	// dbPath is the path to the database file.
	dbPath string
}

// Options configures Ledger behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent
	// performance. Recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default ledger options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Entry is one row of the ledger: the last-known state of a tracked URL.
// At most one entry exists per URL; entries are never deleted
// automatically.
type Entry struct {
	// URL is the tracked document URL (primary key).
	URL string

	// LastModified is the server's freshness token from the last
	// verified download, verbatim and opaque. Empty if the server never
	// provided one.
	LastModified string

	// Checksum is the SHA-256 of the last verified download. Only
	// trustworthy while the referenced file still exists.
	Checksum string

	// FilePath is the local path of the last verified download.
	FilePath string

	// LastChecked is when the URL was last probed, successfully or not.
	LastChecked time.Time
}

// Open opens or creates a Ledger in the given directory.
// With CreateIfNotExists false, a missing database is an error; this lets
// the delta command refuse to run before any crawl has populated state.
func Open(dir string, opts Options) (*Ledger, error) {
	dbPath := filepath.Join(dir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("ledger not found at %s (run a crawl first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check ledger path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	// modernc.org/sqlite connection modes: rwc allows creation, rw
	// requires the file to exist.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	// SQLite supports a single writer; one connection avoids lock churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	l := &Ledger{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := l.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create ledger schema: %w", err)
	}

	return l, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Path returns the database file path.
func (l *Ledger) Path() string {
	return l.dbPath
}

// createTables creates the ledger schema if it doesn't exist.
func (l *Ledger) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS docs (
		url TEXT PRIMARY KEY,
		last_modified TEXT NOT NULL DEFAULT '',
		checksum TEXT NOT NULL DEFAULT '',
		file_path TEXT NOT NULL DEFAULT '',
		last_checked DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_docs_last_checked ON docs(last_checked);
	`
	_, err := l.db.ExecContext(context.Background(), schema)
	return err
}

// Get retrieves the entry for a URL, or nil if none exists.
func (l *Ledger) Get(ctx context.Context, url string) (*Entry, error) {
	query := `
	SELECT url, last_modified, checksum, file_path, last_checked
	FROM docs WHERE url = ?
	`

	var entry Entry
	var lastChecked string
	err := l.db.QueryRowContext(ctx, query, url).Scan(
		&entry.URL,
		&entry.LastModified,
		&entry.Checksum,
		&entry.FilePath,
		&lastChecked,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}

	entry.LastChecked = parseTimestamp(lastChecked)
	return &entry, nil
}

// Touch advances last_checked for a URL, creating a bare row if none
// exists. Called unconditionally after every check, success or failure,
// so last_checked strictly advances while checksum, token and file path
// stay untouched.
func (l *Ledger) Touch(ctx context.Context, url string, when time.Time) error {
	query := `
	INSERT INTO docs (url, last_checked) VALUES (?, ?)
	ON CONFLICT(url) DO UPDATE SET last_checked = excluded.last_checked
	`
	if _, err := l.db.ExecContext(ctx, query, url, when.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to touch ledger entry: %w", err)
	}
	return nil
}

// RecordSuccess upserts the full entry after a verified successful
// download. This is the only path that changes the stored checksum,
// freshness token, or file reference.
func (l *Ledger) RecordSuccess(ctx context.Context, entry *Entry) error {
	query := `
	INSERT INTO docs (url, last_modified, checksum, file_path, last_checked)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		last_modified = excluded.last_modified,
		checksum = excluded.checksum,
		file_path = excluded.file_path,
		last_checked = excluded.last_checked
	`
	when := entry.LastChecked
	if when.IsZero() {
		when = time.Now()
	}
	_, err := l.db.ExecContext(ctx, query,
		entry.URL,
		entry.LastModified,
		entry.Checksum,
		entry.FilePath,
		when.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to record ledger entry: %w", err)
	}
	return nil
}

// URLs returns all tracked URLs in insertion-stable (alphabetical) order.
func (l *Ledger) URLs(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT url FROM docs ORDER BY url`)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger URLs: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan ledger URL: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// Count returns the number of tracked URLs.
func (l *Ledger) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM docs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}
	return n, nil
}

// timestampFormats contains the timestamp formats SQLite may return,
// most specific first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp attempts each known format and falls back to zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
