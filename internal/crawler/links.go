package crawler

import (
	"io"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// Links holds the classified output of one page's link extraction.
// Page and document links are emitted distinctly so the engine can route
// documents straight to the store without another HTML-classification
// round trip: a URL ending in a document extension cannot be HTML.
type Links struct {
	// Pages are in-scope page URLs to feed back into the frontier.
	Pages []string

	// Documents are in-scope document URLs to dispatch to the store.
	Documents []string
}

// LinkExtractor parses HTML and yields absolute, classified links.
//
// Design decision: We use golang.org/x/net/html rather than regex because
// it correctly handles the malformed HTML common on old archive sites,
// and html/charset handles the Latin-1 and UTF-16 pages some of them
// still serve.
type LinkExtractor struct {
	// rootHost is the crawl's scope anchor. A URL is in scope if its host
	// equals rootHost or is a subdomain of it. Leading "www." is ignored
	// on both sides.
	rootHost string

	// docExtensions are the URL suffixes classified as documents.
	docExtensions []string
}

// NewLinkExtractor creates an extractor scoped to the root URL's host.
func NewLinkExtractor(rootURL string, docExtensions []string) (*LinkExtractor, error) {
	u, err := url.Parse(rootURL)
	if err != nil {
		return nil, err
	}
	return &LinkExtractor{
		rootHost:      normalizeHost(u.Host),
		docExtensions: docExtensions,
	}, nil
}

// Extract parses HTML from r and returns classified absolute links.
// base is the page's own URL, used to resolve relative hrefs; contentType
// is the declared Content-Type, used for encoding detection.
//
// Anchors with unresolvable or non-HTTP hrefs are dropped silently;
// malformed markup is tolerated as far as the parser allows.
func (e *LinkExtractor) Extract(r io.Reader, base *url.URL, contentType string) (*Links, error) {
	decoded, err := charset.NewReader(r, contentType)
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(decoded)
	if err != nil {
		return nil, err
	}

	links := &Links{}
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href, ok := anchorHref(n); ok {
				e.classify(href, base, seen, links)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return links, nil
}

// classify resolves one href and appends it to the right bucket.
func (e *LinkExtractor) classify(href string, base *url.URL, seen map[string]bool, links *Links) {
	href = strings.TrimSpace(href)
	if href == "" {
		return
	}

	ref, err := url.Parse(href)
	if err != nil {
		return
	}

	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return
	}

	// Fragments never change the fetched resource.
	resolved.Fragment = ""

	abs := resolved.String()
	if seen[abs] {
		return
	}
	seen[abs] = true

	if !e.InScope(resolved.Host) {
		return
	}

	if e.isDocumentPath(resolved.Path) {
		links.Documents = append(links.Documents, abs)
		return
	}
	links.Pages = append(links.Pages, abs)
}

// InScope reports whether a host belongs to the crawl's root domain.
// A host is in scope when it equals the root host or is a subdomain of it.
func (e *LinkExtractor) InScope(host string) bool {
	h := normalizeHost(host)
	return h == e.rootHost || strings.HasSuffix(h, "."+e.rootHost)
}

// isDocumentPath reports whether a URL path ends in a document extension.
func (e *LinkExtractor) isDocumentPath(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	for _, docExt := range e.docExtensions {
		if ext == docExt {
			return true
		}
	}
	return false
}

// anchorHref returns the href attribute of an anchor node.
func anchorHref(n *html.Node) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key == "href" {
			return attr.Val, true
		}
	}
	return "", false
}

// normalizeHost lowercases a host, drops any port, and strips a leading
// "www." so that www.example.org and example.org share a scope.
func normalizeHost(host string) string {
	h := strings.ToLower(host)
	if i := strings.LastIndex(h, ":"); i >= 0 && !strings.Contains(h[i:], "]") {
		h = h[:i]
	}
	return strings.TrimPrefix(h, "www.")
}
