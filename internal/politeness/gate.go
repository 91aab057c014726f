package politeness

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/pothi-dev/pothi/internal/config"
)

// Gate enforces per-origin politeness: robots.txt policy and minimum
// spacing between requests to the same origin.
//
// Design decision: Spacing is sleep-before-call rather than a token
// bucket. The engine issues requests from a small number of workers (one
// per seed), so single-flight pacing per origin is sufficient and much
// simpler to reason about. Concurrent fetches to different origins never
// block each other; concurrent fetches to the same origin serialize on
// that origin's pacer.
type Gate struct {
	// client fetches robots.txt. It should be a plain client without
	// browser headers; robots fetches identify the crawler honestly.
	client *http.Client

	// defaultDelay is the spacing applied to origins without an override.
	defaultDelay time.Duration

	// downloadDelay is the minimum spacing before a document download.
	// Downloads are heavier than page fetches; WaitDownload applies the
	// larger of this and the origin's regular delay.
	downloadDelay time.Duration

	// sites resolves per-host delay overrides.
	sites *config.File

	// logger records policy fetches and denials.
	logger *slog.Logger

	// mu guards robots and pacers.
	mu sync.Mutex

	// robots caches the parsed policy per origin. A nil entry means the
	// policy was unreachable or unparseable and the origin is permissive.
	robots map[string]*robotstxt.RobotsData

	// pacers holds one pacer per origin.
	pacers map[string]*pacer
}

// pacer tracks the last request time for one origin.
// Lock ordering: a pacer's mutex is only held during Wait for its own
// origin; the Gate's mutex is never held while sleeping.
type pacer struct {
	mu   sync.Mutex
	last time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithHTTPClient sets the client used for robots.txt fetches.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gate) {
		g.client = client
	}
}

// WithDefaultDelay sets the spacing for origins without an override.
func WithDefaultDelay(d time.Duration) Option {
	return func(g *Gate) {
		g.defaultDelay = d
	}
}

// WithDownloadDelay sets the minimum spacing before document downloads.
func WithDownloadDelay(d time.Duration) Option {
	return func(g *Gate) {
		g.downloadDelay = d
	}
}

// WithSiteConfigs sets the per-host override table.
func WithSiteConfigs(sites *config.File) Option {
	return func(g *Gate) {
		g.sites = sites
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

// NewGate creates a Gate with the given options.
func NewGate(opts ...Option) *Gate {
	g := &Gate{
		client:        &http.Client{Timeout: 30 * time.Second},
		defaultDelay:  config.DefaultRequestDelay,
		downloadDelay: config.DefaultDownloadDelay,
		robots:        make(map[string]*robotstxt.RobotsData),
		pacers:        make(map[string]*pacer),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// Allowed reports whether the origin's robots.txt permits fetching rawURL.
// The policy is fetched once per origin, best-effort: if /robots.txt is
// unreachable or unparseable, the origin defaults to permissive.
func (g *Gate) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	data := g.policyFor(ctx, u)
	if data == nil {
		return true
	}
	// The query string is part of the tested path; rules like
	// "Disallow: /*?download" must match.
	p := u.Path
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return data.TestAgent(p, "*")
}

// DelayFor returns the minimum inter-request spacing for an origin,
// honoring per-host overrides from the site config table.
func (g *Gate) DelayFor(origin string) time.Duration {
	if g.sites != nil {
		host := origin
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			host = u.Hostname()
		}
		if sc := g.sites.GetSiteConfig(host); sc.Delay > 0 {
			return sc.Delay
		}
	}
	return g.defaultDelay
}

// Wait blocks until the origin's spacing requirement is satisfied, then
// records the request time. It returns early with the context error if the
// context is cancelled while waiting.
func (g *Gate) Wait(ctx context.Context, origin string) error {
	return g.wait(ctx, origin, g.DelayFor(origin))
}

// WaitDownload is Wait with the download spacing floor applied: the
// effective delay is the larger of the origin's regular delay and the
// gate's download delay. Document transfers and page fetches share one
// pacer per origin, so a download also pushes back the next page fetch.
func (g *Gate) WaitDownload(ctx context.Context, origin string) error {
	delay := g.DelayFor(origin)
	if g.downloadDelay > delay {
		delay = g.downloadDelay
	}
	return g.wait(ctx, origin, delay)
}

func (g *Gate) wait(ctx context.Context, origin string, delay time.Duration) error {
	p := g.pacerFor(origin)

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.last.IsZero() {
		if remaining := delay - time.Since(p.last); remaining > 0 {
			timer := time.NewTimer(remaining)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	p.last = time.Now()
	return nil
}

// Origin returns the scheme+host origin key for a URL, or the input
// unchanged if it does not parse.
func Origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Scheme + "://" + strings.ToLower(u.Host)
}

// pacerFor returns the pacer for an origin, creating it if needed.
func (g *Gate) pacerFor(origin string) *pacer {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pacers[origin]
	if !ok {
		p = &pacer{}
		g.pacers[origin] = p
	}
	return p
}

// policyFor returns the cached robots policy for a URL's origin, fetching
// it on first use.
func (g *Gate) policyFor(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	origin := u.Scheme + "://" + strings.ToLower(u.Host)

	g.mu.Lock()
	data, cached := g.robots[origin]
	g.mu.Unlock()
	if cached {
		return data
	}

	data = g.fetchPolicy(ctx, origin)

	g.mu.Lock()
	g.robots[origin] = data
	g.mu.Unlock()
	return data
}

// fetchPolicy retrieves and parses /robots.txt for an origin.
// Any failure yields nil, which callers treat as permissive.
func (g *Gate) fetchPolicy(ctx context.Context, origin string) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Debug("robots.txt unreachable, defaulting to permissive",
			"origin", origin,
			"error", err,
		)
		return nil
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		g.logger.Debug("robots.txt unparseable, defaulting to permissive",
			"origin", origin,
			"error", err,
		)
		return nil
	}

	g.logger.Debug("robots.txt loaded", "origin", origin)
	return data
}
