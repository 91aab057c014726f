package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pothi-dev/pothi/internal/fetch"
	"github.com/pothi-dev/pothi/internal/model"
)

// Storage errors.
var (
	// ErrEmptyDownload is returned when a download completes with zero
	// bytes. The temporary file is removed; nothing reaches the final
	// name.
	ErrEmptyDownload = errors.New("download produced zero bytes")

	// ErrTooLarge is returned when the declared or actual size exceeds
	// the configured maximum. Declared oversizes are rejected before any
	// body transfer.
	ErrTooLarge = errors.New("document exceeds maximum size")
)

// fileSignatures maps document extensions to their expected leading bytes.
// EPUB and DOCX are ZIP containers; legacy DOC is an OLE compound file.
var fileSignatures = map[string][][]byte{
	".pdf":  {[]byte("%PDF-")},
	".epub": {{0x50, 0x4B, 0x03, 0x04}},
	".docx": {{0x50, 0x4B, 0x03, 0x04}},
	".doc":  {{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}},
}

// DocumentStore writes documents into a single directory with stable,
// fingerprint-derived names.
//
// Invariant: the final path for a URL either does not exist or holds a
// complete file. All writes go through a temporary sibling and an atomic
// rename; any failure during streaming removes the temporary file.
type DocumentStore struct {
	// dir is the documents directory.
	dir string

	// minSize flags smaller downloads as suspect (kept, flagged).
	minSize int64

	// maxSize rejects larger downloads (skipped, not stored).
	maxSize int64

	// logger records store outcomes.
	logger *slog.Logger
}

// Option configures a DocumentStore.
type Option func(*DocumentStore)

// WithSizeBounds sets the minimum plausible and maximum accepted document
// sizes in bytes.
func WithSizeBounds(minSize, maxSize int64) Option {
	return func(s *DocumentStore) {
		s.minSize = minSize
		s.maxSize = maxSize
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *DocumentStore) {
		s.logger = logger
	}
}

// NewDocumentStore creates a store rooted at dir, creating the directory
// if needed. Failure to create the directory is fatal to the run; there
// is nowhere to put any document.
func NewDocumentStore(dir string, opts ...Option) (*DocumentStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create documents directory: %w", err)
	}

	s := &DocumentStore{
		dir:     dir,
		minSize: 1024,
		maxSize: 100 * 1024 * 1024,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Dir returns the documents directory.
func (s *DocumentStore) Dir() string {
	return s.dir
}

// LocalName returns the deterministic file name for a source URL:
// the first 8 hex characters of the URL's SHA-256 plus the path basename.
// The fingerprint prefix keeps two different URLs sharing a basename from
// colliding, while the basename keeps the directory human-navigable.
func (s *DocumentStore) LocalName(sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	fingerprint := hex.EncodeToString(sum[:])[:8]

	basename := "download"
	if u, err := url.Parse(sourceURL); err == nil {
		if b := path.Base(u.Path); b != "" && b != "/" && b != "." {
			basename = sanitizeBasename(b)
		}
	}
	return fingerprint + "_" + basename
}

// LocalPath returns the absolute destination path for a source URL.
func (s *DocumentStore) LocalPath(sourceURL string) string {
	return filepath.Join(s.dir, s.LocalName(sourceURL))
}

// Save persists a fetched document and returns its StoredDocument.
//
// If a file already exists at the destination and its size matches the
// server-declared content length, the existing file is returned with
// Reused set and the body is left unread: zero bytes of the document are
// transferred. Otherwise the body is streamed to a temporary sibling,
// hashed on the way through, verified, and atomically renamed into place.
//
// Save never closes result.Body; that stays with the caller.
func (s *DocumentStore) Save(ctx context.Context, sourceURL string, result *fetch.Result) (*model.StoredDocument, error) {
	name := s.LocalName(sourceURL)
	dest := filepath.Join(s.dir, name)

	// Declared oversize: skip before transferring anything.
	if result.ContentLength > 0 && result.ContentLength > s.maxSize {
		return nil, fmt.Errorf("%w: %s declares %d bytes", ErrTooLarge, sourceURL, result.ContentLength)
	}

	// Duplicate-skip: an existing complete file of the declared size
	// satisfies the request without any body transfer.
	if info, err := os.Stat(dest); err == nil && result.ContentLength >= 0 && info.Size() == result.ContentLength {
		s.logger.Debug("document already stored, skipping download",
			"url", sourceURL,
			"file", name,
			"size", info.Size(),
		)
		return &model.StoredDocument{
			LocalName: name,
			Path:      dest,
			SourceURL: sourceURL,
			Size:      info.Size(),
			StoredAt:  info.ModTime().UTC(),
			Reused:    true,
		}, nil
	}

	doc, err := s.stream(ctx, sourceURL, name, dest, result.Body)
	if err != nil {
		return nil, err
	}

	s.logger.Info("document stored",
		"url", sourceURL,
		"file", doc.LocalName,
		"size", doc.Size,
		"flags", strings.Join(doc.Flags, ","),
	)
	return doc, nil
}

// stream copies the body to a temporary file and renames it into place.
func (s *DocumentStore) stream(ctx context.Context, sourceURL, name, dest string, body io.Reader) (*model.StoredDocument, error) {
	tmp, err := os.CreateTemp(s.dir, name+".part-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	hasher := sha256.New()
	written, copyErr := copyWithContext(ctx, io.MultiWriter(tmp, hasher), io.LimitReader(body, s.maxSize+1))
	if copyErr != nil {
		cleanup()
		return nil, fmt.Errorf("failed to stream %s: %w", sourceURL, copyErr)
	}
	if written > s.maxSize {
		cleanup()
		return nil, fmt.Errorf("%w: %s exceeded %d bytes mid-stream", ErrTooLarge, sourceURL, s.maxSize)
	}
	if written == 0 {
		cleanup()
		return nil, fmt.Errorf("%w: %s", ErrEmptyDownload, sourceURL)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to finish temp file: %w", err)
	}

	flags := s.inspect(tmpPath, name, written)

	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to move document into place: %w", err)
	}

	return &model.StoredDocument{
		LocalName: name,
		Path:      dest,
		SourceURL: sourceURL,
		Size:      written,
		StoredAt:  time.Now().UTC(),
		Checksum:  hex.EncodeToString(hasher.Sum(nil)),
		Flags:     flags,
	}, nil
}

// inspect collects integrity flags for a completed temporary file.
// Flags mark the document for review; they never reject it.
func (s *DocumentStore) inspect(tmpPath, name string, size int64) []string {
	var flags []string

	if size < s.minSize {
		flags = append(flags, model.FlagUndersized)
	}

	ext := strings.ToLower(filepath.Ext(name))
	signatures, known := fileSignatures[ext]
	if !known {
		return flags
	}

	head := make([]byte, 8)
	f, err := os.Open(tmpPath) //nolint:gosec // Path is under the store's own directory
	if err != nil {
		return flags
	}
	n, _ := io.ReadFull(f, head)
	_ = f.Close()

	matched := false
	for _, sig := range signatures {
		if n >= len(sig) && bytes.Equal(head[:len(sig)], sig) {
			matched = true
			break
		}
	}
	if !matched {
		flags = append(flags, model.FlagSignatureMismatch)
	}
	return flags
}

// HashFile computes the SHA-256 of a stored file, streaming in 8KB
// chunks. Used by the change-detection ledger to recompute checksums.
func HashFile(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // Ledger-tracked file path
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// copyWithContext copies src to dst in chunks, checking for cancellation
// between chunks. A cancelled copy returns the context error so the
// caller can remove the partial temporary file; the final destination is
// never touched.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64
	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			wn, writeErr := dst.Write(buf[:n])
			written += int64(wn)
			if writeErr != nil {
				return written, writeErr
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

// sanitizeBasename strips characters that are unsafe in file names.
func sanitizeBasename(name string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_")
	cleaned := replacer.Replace(name)
	if cleaned == "" {
		return "download"
	}
	return cleaned
}
