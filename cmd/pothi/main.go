// Package main provides the entry point for the pothi CLI.
//
// Pothi discovers, downloads, and catalogs scanned-document files
// (PDF/EPUB) from a fixed list of archive sites, and tracks changes to
// previously seen documents so unchanged content is never re-downloaded.
//
// Usage:
//
//	pothi crawl [seed-url...]
//	pothi delta
//
// See --help for all available options.
package main

// main is the entry point for pothi.
func main() {
	Execute()
}
