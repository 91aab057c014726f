package model

import "time"

// Document integrity flags recorded on StoredDocument.Flags.
// Flagged documents are kept on disk; the flags mark them for review by
// downstream consumers rather than rejecting them outright.
const (
	// FlagSignatureMismatch marks a file whose leading bytes do not match
	// the signature expected for its extension (e.g., a ".pdf" that does
	// not start with "%PDF-").
	FlagSignatureMismatch = "signature-mismatch"

	// FlagUndersized marks a file smaller than the configured minimum
	// plausible document size.
	FlagUndersized = "undersized"
)

// StoredDocument is a document persisted to the documents directory.
//
// Invariant: a StoredDocument for a given source URL is either absent or a
// complete, fully-written file. Partial writes are never visible under the
// final name; the store writes to a temporary sibling and renames.
type StoredDocument struct {
	// LocalName is the stable file name, derived from a fingerprint of the
	// source URL plus the URL path basename. The same URL always maps to
	// the same name across runs.
	LocalName string `json:"local_name"`

	// Path is the absolute path of the stored file.
	Path string `json:"path"`

	// SourceURL is the URL the document was downloaded from.
	SourceURL string `json:"source_url"`

	// Size is the stored file size in bytes.
	Size int64 `json:"size"`

	// StoredAt is when the file was written (or, for a duplicate skip,
	// when the existing file was found).
	StoredAt time.Time `json:"stored_at"`

	// Checksum is the SHA-256 of the stored bytes, computed while
	// streaming. Empty for duplicate-skip results, where nothing was
	// read; the ledger recomputes from disk when it needs one.
	Checksum string `json:"checksum,omitempty"`

	// Reused reports that an existing file satisfied the request and no
	// bytes were transferred.
	Reused bool `json:"reused,omitempty"`

	// Flags lists integrity concerns detected during storage.
	Flags []string `json:"flags,omitempty"`
}

// Flagged reports whether any integrity flag was recorded.
func (d *StoredDocument) Flagged() bool {
	return len(d.Flags) > 0
}

// CrawlRecord is one entry in the append-only acquisition log.
// Records are write-once; nothing in pothi mutates or deletes them. The
// JSONL file is the handoff boundary toward the metadata and
// text-extraction stages.
type CrawlRecord struct {
	// RunID identifies the run that produced this record.
	RunID string `json:"run_id"`

	// DiscoveringURL is the page on which the document link was found.
	DiscoveringURL string `json:"discovering_url"`

	// DownloadURL is the URL the document was fetched from.
	DownloadURL string `json:"download_url"`

	// LocalFileName is the stored file's name in the documents directory.
	LocalFileName string `json:"local_file_name"`

	// DownloadedAt is the UTC acquisition time.
	DownloadedAt time.Time `json:"downloaded_at"`
}
