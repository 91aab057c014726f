package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pothi-dev/pothi/internal/config"
	"github.com/pothi-dev/pothi/internal/politeness"
)

// newTestGate returns a gate with no pacing delay, suitable for tests.
func newTestGate() *politeness.Gate {
	return politeness.NewGate(
		politeness.WithDefaultDelay(0),
		politeness.WithDownloadDelay(0),
		politeness.WithHTTPClient(&http.Client{Timeout: time.Second}),
	)
}

// TestFetcherFetch verifies basic retrieval, classification, and headers.
func TestFetcherFetch(t *testing.T) {
	t.Parallel()

	t.Run("html page is classified and streamed", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/robots.txt" {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("Last-Modified", "Wed, 01 Jan 2025 00:00:00 GMT")
			_, _ = w.Write([]byte("<html><body>hello</body></html>"))
		}))
		defer srv.Close()

		f := NewFetcher(newTestGate(), time.Second, time.Second)
		result, err := f.Fetch(context.Background(), srv.URL+"/index.html", "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer func() { _ = result.Close() }()

		if result.Kind != KindHTML {
			t.Errorf("expected KindHTML, got %s", result.Kind)
		}
		if result.LastModified != "Wed, 01 Jan 2025 00:00:00 GMT" {
			t.Errorf("expected Last-Modified to pass through verbatim, got %q", result.LastModified)
		}
		body, err := io.ReadAll(result.Body)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(body), "hello") {
			t.Errorf("unexpected body: %s", body)
		}
	})

	t.Run("browser identity and accept headers are sent", func(t *testing.T) {
		t.Parallel()

		var gotUA, gotAccept string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/robots.txt" {
				http.NotFound(w, r)
				return
			}
			gotUA = r.Header.Get("User-Agent")
			gotAccept = r.Header.Get("Accept")
		}))
		defer srv.Close()

		f := NewFetcher(newTestGate(), time.Second, time.Second,
			WithUserAgent("test-agent/1.0"))
		result, err := f.Fetch(context.Background(), srv.URL+"/x", "")
		if err != nil {
			t.Fatal(err)
		}
		_ = result.Close()

		if gotUA != "test-agent/1.0" {
			t.Errorf("expected pinned user agent, got %q", gotUA)
		}
		if !strings.Contains(gotAccept, "text/html") {
			t.Errorf("expected Accept header, got %q", gotAccept)
		}
	})

	t.Run("referer is sent only for hosts that require it", func(t *testing.T) {
		t.Parallel()

		var gotReferer string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/robots.txt" {
				http.NotFound(w, r)
				return
			}
			gotReferer = r.Header.Get("Referer")
		}))
		defer srv.Close()

		host := strings.TrimPrefix(srv.URL, "http://")
		hostname := host[:strings.LastIndex(host, ":")]

		sites := &config.File{
			Sites: map[string]config.SiteConfig{
				hostname: {RequireReferer: true},
			},
		}

		f := NewFetcher(newTestGate(), time.Second, time.Second,
			WithSiteConfigs(sites))
		result, err := f.Fetch(context.Background(), srv.URL+"/doc.pdf", "https://example.org/listing.html")
		if err != nil {
			t.Fatal(err)
		}
		_ = result.Close()

		if gotReferer != "https://example.org/listing.html" {
			t.Errorf("expected discovering page as Referer, got %q", gotReferer)
		}
	})

	t.Run("robots denial returns ErrPolicyDenied without fetching", func(t *testing.T) {
		t.Parallel()

		var pageFetched bool
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/robots.txt" {
				_, _ = w.Write([]byte("User-agent: *\nDisallow: /\n"))
				return
			}
			pageFetched = true
		}))
		defer srv.Close()

		f := NewFetcher(newTestGate(), time.Second, time.Second)
		_, err := f.Fetch(context.Background(), srv.URL+"/page.html", "")
		if !errors.Is(err, ErrPolicyDenied) {
			t.Errorf("expected ErrPolicyDenied, got %v", err)
		}
		if pageFetched {
			t.Error("expected no page fetch after robots denial")
		}
	})
}

// TestFetcherRetry verifies the retry policy end to end.
func TestFetcherRetry(t *testing.T) {
	t.Parallel()

	t.Run("5xx is retried until success", func(t *testing.T) {
		t.Parallel()

		var attempts int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/robots.txt" {
				http.NotFound(w, r)
				return
			}
			attempts++
			if attempts < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "text/html")
		}))
		defer srv.Close()

		f := NewFetcher(newTestGate(), time.Second, time.Second,
			WithRetry(3, time.Millisecond))
		result, err := f.Fetch(context.Background(), srv.URL+"/flaky.html", "")
		if err != nil {
			t.Fatalf("expected success after retries, got %v", err)
		}
		_ = result.Close()

		if attempts != 3 {
			t.Errorf("expected 3 attempts, got %d", attempts)
		}
	})

	t.Run("404 is terminal and not retried", func(t *testing.T) {
		t.Parallel()

		var attempts int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/robots.txt" {
				http.NotFound(w, r)
				return
			}
			attempts++
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		f := NewFetcher(newTestGate(), time.Second, time.Second,
			WithRetry(3, time.Millisecond))
		_, err := f.Fetch(context.Background(), srv.URL+"/gone.html", "")

		var ferr *Error
		if !errors.As(err, &ferr) {
			t.Fatalf("expected *Error, got %v", err)
		}
		if ferr.StatusCode != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", ferr.StatusCode)
		}
		if attempts != 1 {
			t.Errorf("expected 1 attempt, got %d", attempts)
		}
	})

	t.Run("retry budget exhaustion reports the last failure", func(t *testing.T) {
		t.Parallel()

		var attempts int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/robots.txt" {
				http.NotFound(w, r)
				return
			}
			attempts++
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		f := NewFetcher(newTestGate(), time.Second, time.Second,
			WithRetry(2, time.Millisecond))
		_, err := f.Fetch(context.Background(), srv.URL+"/down.html", "")

		var ferr *Error
		if !errors.As(err, &ferr) {
			t.Fatalf("expected *Error, got %v", err)
		}
		if ferr.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d", ferr.StatusCode)
		}
		// Initial attempt plus two retries.
		if attempts != 3 {
			t.Errorf("expected 3 attempts, got %d", attempts)
		}
	})

	t.Run("per-host retry override applies", func(t *testing.T) {
		t.Parallel()

		var attempts int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/robots.txt" {
				http.NotFound(w, r)
				return
			}
			attempts++
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		host := strings.TrimPrefix(srv.URL, "http://")
		hostname := host[:strings.LastIndex(host, ":")]
		sites := &config.File{
			Sites: map[string]config.SiteConfig{
				hostname: {MaxRetries: 1},
			},
		}

		f := NewFetcher(newTestGate(), time.Second, time.Second,
			WithRetry(5, time.Millisecond),
			WithSiteConfigs(sites))
		_, err := f.Fetch(context.Background(), srv.URL+"/x", "")
		if err == nil {
			t.Fatal("expected an error")
		}
		if attempts != 2 {
			t.Errorf("expected 2 attempts (1 + 1 retry), got %d", attempts)
		}
	})
}

// TestFetcherHead verifies the freshness probe.
func TestFetcherHead(t *testing.T) {
	t.Parallel()

	t.Run("last-modified passes through verbatim", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/robots.txt" {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodHead {
				t.Errorf("expected HEAD, got %s", r.Method)
			}
			w.Header().Set("Last-Modified", "Thu, 02 Jan 2025 12:00:00 GMT")
		}))
		defer srv.Close()

		f := NewFetcher(newTestGate(), time.Second, time.Second)
		head, err := f.Head(context.Background(), srv.URL+"/doc.pdf")
		if err != nil {
			t.Fatal(err)
		}
		if head.LastModified != "Thu, 02 Jan 2025 12:00:00 GMT" {
			t.Errorf("expected verbatim token, got %q", head.LastModified)
		}
	})

	t.Run("missing last-modified yields empty token", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/robots.txt" {
				http.NotFound(w, r)
			}
		}))
		defer srv.Close()

		f := NewFetcher(newTestGate(), time.Second, time.Second)
		head, err := f.Head(context.Background(), srv.URL+"/doc.pdf")
		if err != nil {
			t.Fatal(err)
		}
		if head.LastModified != "" {
			t.Errorf("expected empty token, got %q", head.LastModified)
		}
	})

	t.Run("robots denial returns ErrPolicyDenied", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/robots.txt" {
				_, _ = w.Write([]byte("User-agent: *\nDisallow: /\n"))
			}
		}))
		defer srv.Close()

		f := NewFetcher(newTestGate(), time.Second, time.Second)
		if _, err := f.Head(context.Background(), srv.URL+"/doc.pdf"); !errors.Is(err, ErrPolicyDenied) {
			t.Errorf("expected ErrPolicyDenied, got %v", err)
		}
	})
}

// TestClassify verifies response routing by content type and URL suffix.
func TestClassify(t *testing.T) {
	t.Parallel()

	f := NewFetcher(newTestGate(), time.Second, time.Second)

	tests := []struct {
		name        string
		url         string
		contentType string
		want        Kind
	}{
		{name: "html content type", url: "https://example.org/page", contentType: "text/html; charset=utf-8", want: KindHTML},
		{name: "xhtml content type", url: "https://example.org/page", contentType: "application/xhtml+xml", want: KindHTML},
		{name: "pdf content type", url: "https://example.org/x", contentType: "application/pdf", want: KindDocument},
		{name: "epub content type", url: "https://example.org/x", contentType: "application/epub+zip", want: KindDocument},
		{name: "octet-stream with pdf suffix", url: "https://example.org/book.pdf", contentType: "application/octet-stream", want: KindDocument},
		{name: "octet-stream with query string", url: "https://example.org/book.PDF?dl=1", contentType: "application/octet-stream", want: KindDocument},
		{name: "octet-stream without suffix", url: "https://example.org/data.bin", contentType: "application/octet-stream", want: KindOther},
		{name: "image", url: "https://example.org/cover.jpg", contentType: "image/jpeg", want: KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := f.Classify(tt.url, tt.contentType); got != tt.want {
				t.Errorf("Classify(%q, %q) = %s, want %s", tt.url, tt.contentType, got, tt.want)
			}
		})
	}
}

// TestIsDocumentURL verifies suffix matching is case-insensitive and
// path-only.
func TestIsDocumentURL(t *testing.T) {
	t.Parallel()

	f := NewFetcher(newTestGate(), time.Second, time.Second)

	tests := []struct {
		name string
		url  string
		want bool
	}{
		{name: "pdf", url: "https://example.org/a.pdf", want: true},
		{name: "uppercase extension", url: "https://example.org/a.PDF", want: true},
		{name: "epub", url: "https://example.org/b.epub", want: true},
		{name: "docx", url: "https://example.org/c.docx", want: true},
		{name: "query string ignored", url: "https://example.org/a.pdf?version=2", want: true},
		{name: "extension in query only", url: "https://example.org/view?file=a.pdf", want: false},
		{name: "html", url: "https://example.org/index.html", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := f.IsDocumentURL(tt.url); got != tt.want {
				t.Errorf("IsDocumentURL(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

// TestFetcherDownloadSpacing verifies document fetches honor the download
// spacing floor on the shared per-origin pacer.
func TestFetcherDownloadSpacing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 body"))
	}))
	defer srv.Close()

	gate := politeness.NewGate(
		politeness.WithDefaultDelay(0),
		politeness.WithDownloadDelay(80*time.Millisecond),
		politeness.WithHTTPClient(&http.Client{Timeout: time.Second}),
	)
	f := NewFetcher(gate, time.Second, time.Second, WithRetry(0, time.Millisecond))

	fetchDoc := func(path string) {
		t.Helper()
		result, err := f.Fetch(context.Background(), srv.URL+path, "")
		if err != nil {
			t.Fatal(err)
		}
		_, _ = io.ReadAll(result.Body)
		_ = result.Close()
	}

	fetchDoc("/a.pdf")
	start := time.Now()
	fetchDoc("/b.pdf")
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("expected download spacing between documents, got %v", elapsed)
	}
}
