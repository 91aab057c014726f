package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pothi-dev/pothi/internal/model"
)

// RecordsFileName is the name of the append-only acquisition log.
const RecordsFileName = "records.jsonl"

// Recorder appends acquisition records as line-delimited JSON.
//
// Records are write-once: the file is opened append-only and nothing in
// pothi ever rewrites it. Appends are serialized by a mutex so concurrent
// seed crawls cannot interleave partial lines.
type Recorder struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewRecorder opens (or creates) the records file under dir.
// Failure here is fatal to the run: without the record log, downstream
// metadata and extraction stages would silently miss acquisitions.
func NewRecorder(dir string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create records directory: %w", err)
	}

	path := filepath.Join(dir, RecordsFileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640) //nolint:gosec // Path is under the configured records dir
	if err != nil {
		return nil, fmt.Errorf("failed to open records file: %w", err)
	}

	return &Recorder{file: f, path: path}, nil
}

// Path returns the records file path.
func (r *Recorder) Path() string {
	return r.path
}

// Append writes one record as a single JSON line.
func (r *Recorder) Append(record model.CrawlRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to serialize crawl record: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append crawl record: %w", err)
	}
	return nil
}

// Close closes the records file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}
