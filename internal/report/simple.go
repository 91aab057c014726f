package report

import (
	"fmt"
	"io"

	"github.com/pothi-dev/pothi/internal/model"
)

// SimpleWriter outputs a human-readable plain-text summary.
// This is the default terminal output.
type SimpleWriter struct {
	baseWriter
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer) *SimpleWriter {
	return &SimpleWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report as plain text.
func (w *SimpleWriter) Write(report *model.RunReport) (int, error) {
	var total int

	write := func(format string, args ...any) error {
		n, err := fmt.Fprintf(w.output, format, args...)
		total += n
		return err
	}

	status := "completed"
	if report.Cancelled {
		status = "cancelled"
	}

	if err := write("pothi %s run %s (%s, %s)\n",
		report.Mode, report.RunID, status, report.Duration().Round(1e9)); err != nil {
		return total, err
	}

	switch report.Mode {
	case model.ModeDelta:
		if err := write("  checked: %d  refetched: %d  unchanged: %d  failures: %d\n",
			report.URLsChecked, report.URLsRefetched, report.URLsUnchanged, report.FailureCount()); err != nil {
			return total, err
		}
	default:
		if err := write("  pages: %d  stored: %d  reused: %d  flagged: %d  skipped: %d  failures: %d\n",
			report.PagesVisited, report.DocumentsStored, report.DocumentsReused,
			report.DocumentsFlagged, report.TargetsSkipped, report.FailureCount()); err != nil {
			return total, err
		}
		for _, s := range report.SeedSummaries {
			if err := write("  seed %s: pages %d, stored %d, reused %d, failures %d\n",
				s.Seed, s.PagesVisited, s.DocumentsStored, s.DocumentsReused, s.Failures); err != nil {
				return total, err
			}
		}
	}

	for _, f := range report.Failures {
		if err := write("  FAIL [%s] %s: %s\n", f.Kind, f.URL, f.Message); err != nil {
			return total, err
		}
	}

	return total, nil
}
