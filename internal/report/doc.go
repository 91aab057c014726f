// Package report renders run summaries in multiple output formats.
//
// Three writers share one interface: SimpleWriter for terminal output,
// JSONWriter for tool integration, and MarkdownWriter for documentation
// and sharing. All of them consume the model.RunReport produced by a
// crawl or delta run.
package report
