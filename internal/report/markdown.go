package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"

	"github.com/pothi-dev/pothi/internal/model"
)

// MarkdownWriter outputs run reports in GitHub-flavored Markdown.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given
// writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	if report.Mode == model.ModeCrawl {
		w.writeSeeds(md, report)
	}
	w.writeFailures(md, report)

	return len(md.String()), md.Build()
}

// writeHeader writes the title and run metadata.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.RunReport) {
	md.H1("Pothi Run Report")
	md.PlainText("")

	status := "completed"
	if report.Cancelled {
		status = "cancelled"
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run ID", "`" + report.RunID + "`"},
			{"Mode", string(report.Mode)},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration().Round(1e9).String()},
			{"Status", status},
		},
	})
	md.PlainText("")
}

// writeSummary writes the top-line counters.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.RunReport) {
	md.H2("Summary")
	md.PlainText("")

	var rows [][]string
	switch report.Mode {
	case model.ModeDelta:
		rows = [][]string{
			{"URLs checked", strconv.Itoa(report.URLsChecked)},
			{"Refetched", strconv.Itoa(report.URLsRefetched)},
			{"Unchanged", strconv.Itoa(report.URLsUnchanged)},
			{"Failures", strconv.Itoa(report.FailureCount())},
		}
	default:
		rows = [][]string{
			{"Pages visited", strconv.Itoa(report.PagesVisited)},
			{"Documents stored", strconv.Itoa(report.DocumentsStored)},
			{"Documents reused", strconv.Itoa(report.DocumentsReused)},
			{"Documents flagged", strconv.Itoa(report.DocumentsFlagged)},
			{"Targets skipped", strconv.Itoa(report.TargetsSkipped)},
			{"Failures", strconv.Itoa(report.FailureCount())},
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeSeeds writes the per-seed breakdown for crawl runs.
func (w *MarkdownWriter) writeSeeds(md *markdown.Markdown, report *model.RunReport) {
	if len(report.SeedSummaries) == 0 {
		return
	}

	md.H2("Seeds")
	md.PlainText("")

	rows := make([][]string, 0, len(report.SeedSummaries))
	for _, s := range report.SeedSummaries {
		rows = append(rows, []string{
			s.Seed,
			strconv.Itoa(s.PagesVisited),
			strconv.Itoa(s.DocumentsStored),
			strconv.Itoa(s.DocumentsReused),
			strconv.Itoa(s.Failures),
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Seed", "Pages", "Stored", "Reused", "Failures"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFailures lists URL-level failures, capped to keep reports readable.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, report *model.RunReport) {
	if len(report.Failures) == 0 {
		return
	}

	const maxListed = 50

	md.H2("Failures")
	md.PlainText("")

	rows := make([][]string, 0, len(report.Failures))
	for i, f := range report.Failures {
		if i >= maxListed {
			break
		}
		rows = append(rows, []string{f.URL, f.Kind, f.Message})
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Kind", "Cause"},
		Rows:   rows,
	})
	if len(report.Failures) > maxListed {
		md.PlainText("")
		md.PlainText("... and " + strconv.Itoa(len(report.Failures)-maxListed) + " more.")
	}
	md.PlainText("")
}
