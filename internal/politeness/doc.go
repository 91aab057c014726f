// Package politeness implements the per-origin courtesy rules that every
// request must pass through: robots.txt policy evaluation and minimum
// inter-request spacing.
//
// The Gate is a leaf component with no knowledge of crawling. The fetcher
// consults it before every request; the crawl engine never talks to it
// directly.
package politeness
