package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/pothi-dev/pothi/internal/config"
	"github.com/pothi-dev/pothi/internal/politeness"
)

// Kind classifies a response for routing by the crawl engine.
type Kind string

const (
	// KindHTML is a page to extract links from.
	KindHTML Kind = "html"

	// KindDocument is a downloadable document (pdf/epub/doc/docx).
	KindDocument Kind = "document"

	// KindOther is anything else; the engine skips it.
	KindOther Kind = "other"
)

// Result is the outcome of one successful retrieval.
// The Body streams directly from the connection and must be closed by the
// caller; a Result is consumed immediately by the branch that classifies
// it and never retained.
type Result struct {
	// URL is the final URL after redirects.
	URL string

	// StatusCode is the HTTP status (always 2xx on a Result).
	StatusCode int

	// ContentType is the declared Content-Type header verbatim, including
	// any charset parameter; the link extractor needs the parameter for
	// encoding detection.
	ContentType string

	// ContentLength is the declared length, -1 when unknown.
	ContentLength int64

	// LastModified is the server's Last-Modified header verbatim.
	// Opaque; used by the change-detection ledger as a freshness token.
	LastModified string

	// Kind is the routing classification.
	Kind Kind

	// Body is the streaming response body.
	Body io.ReadCloser
}

// Close releases the underlying connection.
func (r *Result) Close() error {
	return r.Body.Close()
}

// HeadResult is the outcome of a HEAD probe.
type HeadResult struct {
	// StatusCode is the HTTP status.
	StatusCode int

	// LastModified is the Last-Modified header verbatim, empty if absent.
	LastModified string

	// ContentLength is the declared length, -1 when unknown.
	ContentLength int64
}

// Fetcher retrieves URLs politely.
// One Fetcher is constructed per run and shared by all workers; it owns
// the HTTP client and holds a single browser identity stable for the run.
type Fetcher struct {
	// client is the HTTP client. Its transport carries the connect and
	// read timeouts; there is no overall request deadline so large
	// document bodies can stream for as long as they make progress.
	client *http.Client

	// gate enforces robots policy and per-origin spacing.
	gate *politeness.Gate

	// userAgent is the identity sent with every request.
	userAgent string

	// sites resolves per-host retry and header overrides.
	sites *config.File

	// retryAttempts is the default retry budget.
	retryAttempts int

	// retryDelay is the base backoff; actual backoff grows linearly.
	retryDelay time.Duration

	// docExtensions and docContentTypes drive classification.
	docExtensions   []string
	docContentTypes []string

	// logger records attempts and failures.
	logger *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithUserAgent pins the browser identity instead of picking one from the
// default pool.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithRetry sets the retry budget and base backoff.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(f *Fetcher) {
		f.retryAttempts = attempts
		f.retryDelay = delay
	}
}

// WithSiteConfigs sets the per-host override table.
func WithSiteConfigs(sites *config.File) Option {
	return func(f *Fetcher) {
		f.sites = sites
	}
}

// WithDocumentTypes sets the extension and MIME-type lists used to
// classify responses as documents.
func WithDocumentTypes(extensions, contentTypes []string) Option {
	return func(f *Fetcher) {
		f.docExtensions = extensions
		f.docContentTypes = contentTypes
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a Fetcher gated by the given politeness Gate.
//
// Design decision: We build the http.Client here rather than accepting one
// because the connect/read timeout split lives in the transport and
// getting it wrong silently disables timeouts. Tests that need a custom
// client can still reach the server through httptest URLs.
func NewFetcher(gate *politeness.Gate, connectTimeout, readTimeout time.Duration, opts ...Option) *Fetcher {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: connectTimeout,
		}).DialContext,
		ResponseHeaderTimeout: readTimeout,
		MaxIdleConnsPerHost:   2,
	}

	f := &Fetcher{
		client: &http.Client{
			Transport: transport,
			// Redirects are followed; ten hops matches net/http's default
			// policy and is plenty for archive mirrors.
		},
		gate:            gate,
		userAgent:       config.DefaultUserAgents[rand.Intn(len(config.DefaultUserAgents))],
		retryAttempts:   config.DefaultRetryAttempts,
		retryDelay:      config.DefaultRetryDelay,
		docExtensions:   config.DefaultDocumentExtensions,
		docContentTypes: config.DefaultDocumentContentTypes,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// Fetch retrieves a URL with retries, returning a streaming Result.
// referrer is the discovering page URL; it is sent as the Referer header
// for hosts whose site config requires one.
//
// Returns ErrPolicyDenied if robots.txt disallows the URL, or a *Error
// after the retry budget is exhausted. The caller must close Result.Body.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, referrer string) (*Result, error) {
	if !f.gate.Allowed(ctx, rawURL) {
		return nil, ErrPolicyDenied
	}

	// Document transfers get the download spacing floor; HEAD probes and
	// page fetches use the regular per-origin delay.
	wait := f.gate.Wait
	if f.IsDocumentURL(rawURL) {
		wait = f.gate.WaitDownload
	}

	var lastErr *Error
	for attempt := 0; attempt <= f.retriesFor(rawURL); attempt++ {
		if attempt > 0 {
			// Linear backoff: base, 2x base, 3x base...
			if err := sleepCtx(ctx, time.Duration(attempt)*f.retryDelay); err != nil {
				return nil, err
			}
			f.logger.Debug("retrying fetch",
				"url", rawURL,
				"attempt", attempt,
				"last_error", lastErr,
			)
		}

		if err := wait(ctx, politeness.Origin(rawURL)); err != nil {
			return nil, err
		}

		result, ferr := f.doGet(ctx, rawURL, referrer)
		if ferr == nil {
			return result, nil
		}
		lastErr = ferr
		if !ferr.Retryable() {
			break
		}
	}

	return nil, lastErr
}

// Head probes a URL for its freshness token without transferring the body.
// Used by the change-detection ledger. Head applies the same politeness
// and retry rules as Fetch.
func (f *Fetcher) Head(ctx context.Context, rawURL string) (*HeadResult, error) {
	if !f.gate.Allowed(ctx, rawURL) {
		return nil, ErrPolicyDenied
	}

	var lastErr *Error
	for attempt := 0; attempt <= f.retriesFor(rawURL); attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, time.Duration(attempt)*f.retryDelay); err != nil {
				return nil, err
			}
		}

		if err := f.gate.Wait(ctx, politeness.Origin(rawURL)); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
		if err != nil {
			return nil, &Error{URL: rawURL, Kind: FailureNetwork, Err: err}
		}
		f.setHeaders(req, "")

		resp, err := f.client.Do(req)
		if err != nil {
			lastErr = classifyTransportError(rawURL, err)
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			lastErr = &Error{URL: rawURL, Kind: FailureHTTP, StatusCode: resp.StatusCode}
			if !lastErr.Retryable() {
				break
			}
			continue
		}

		return &HeadResult{
			StatusCode:    resp.StatusCode,
			LastModified:  resp.Header.Get("Last-Modified"),
			ContentLength: resp.ContentLength,
		}, nil
	}

	return nil, lastErr
}

// doGet performs a single GET attempt.
func (f *Fetcher) doGet(ctx context.Context, rawURL, referrer string) (*Result, *Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{URL: rawURL, Kind: FailureNetwork, Err: err}
	}
	f.setHeaders(req, referrer)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(rawURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, &Error{URL: rawURL, Kind: FailureHTTP, StatusCode: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Result{
		URL:           finalURL,
		StatusCode:    resp.StatusCode,
		ContentType:   contentType,
		ContentLength: resp.ContentLength,
		LastModified:  resp.Header.Get("Last-Modified"),
		Kind:          f.Classify(finalURL, contentType),
		Body:          resp.Body,
	}, nil
}

// setHeaders applies the browser identity, accept headers, per-host
// config headers, and the Referer when the host requires one.
func (f *Fetcher) setHeaders(req *http.Request, referrer string) {
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf,application/epub+zip;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	if f.sites == nil {
		return
	}
	sc := f.sites.GetSiteConfig(req.URL.Hostname())
	if sc.RequireReferer {
		ref := referrer
		if ref == "" {
			ref = req.URL.Scheme + "://" + req.URL.Host + "/"
		}
		req.Header.Set("Referer", ref)
	}
	if sc.Cookie != "" {
		req.Header.Set("Cookie", sc.Cookie)
	}
	for k, v := range sc.Headers {
		req.Header.Set(k, v)
	}
}

// retriesFor returns the retry budget for a URL's host.
func (f *Fetcher) retriesFor(rawURL string) int {
	if f.sites != nil {
		if u, err := url.Parse(rawURL); err == nil {
			if sc := f.sites.GetSiteConfig(u.Hostname()); sc.MaxRetries > 0 {
				return sc.MaxRetries
			}
		}
	}
	return f.retryAttempts
}

// Classify routes a response by declared content type or URL suffix.
// The suffix check is case-insensitive and looks at the URL path only,
// ignoring query strings.
func (f *Fetcher) Classify(rawURL, contentType string) Kind {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "html") || strings.Contains(ct, "xhtml") {
		return KindHTML
	}
	for _, t := range f.docContentTypes {
		if strings.HasPrefix(ct, t) {
			return KindDocument
		}
	}
	// Some archives serve PDFs as application/octet-stream; fall through
	// to the suffix check for those.
	if f.IsDocumentURL(rawURL) {
		return KindDocument
	}
	return KindOther
}

// IsDocumentURL reports whether a URL's path ends in a known document
// extension.
func (f *Fetcher) IsDocumentURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	for _, e := range f.docExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// classifyTransportError maps a transport-level error to a typed failure.
func classifyTransportError(rawURL string, err error) *Error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{URL: rawURL, Kind: FailureTimeout, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{URL: rawURL, Kind: FailureTimeout, Err: err}
	}
	return &Error{URL: rawURL, Kind: FailureNetwork, Err: err}
}

// sleepCtx sleeps for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
