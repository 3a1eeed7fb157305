package crawler

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"

	"github.com/nao1215/wikiexport/internal/log"
	"github.com/nao1215/wikiexport/internal/model"
)

// Fetcher defaults.
const (
	defaultDelay       = 2 * time.Second
	defaultMaxBodySize = 10 * 1024 * 1024 // 10MB
	maxRedirects       = 10
)

// Fetcher retrieves pages while honoring robots.txt and a per-origin delay.
// Like the frontier it is driven by the single crawl loop and is not safe
// for concurrent use.
type Fetcher struct {
	client *http.Client
	scope  *Scope
	logger *slog.Logger

	userAgent     string
	respectRobots bool
	strictRobots  bool
	maxBodySize   int64

	defaultDelay  time.Duration
	delayOverride time.Duration
	hasOverride   bool
	siteDelay     func(host string) time.Duration

	robots     *robotsCache
	politeness *politeness
	delays     map[string]time.Duration
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithUserAgent sets the agent name matched against robots.txt groups.
// The HTTP header itself is set by the client's transport.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithDefaultDelay sets the delay used when nothing else specifies one.
func WithDefaultDelay(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.defaultDelay = d
	}
}

// WithDelayOverride forces the delay for every origin, ignoring the site
// file and robots.txt Crawl-delay.
func WithDelayOverride(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.delayOverride = d
		f.hasOverride = true
	}
}

// WithSiteDelay supplies per-host delays from the site file.
// The function returns 0 for hosts without a configured delay.
func WithSiteDelay(fn func(host string) time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.siteDelay = fn
	}
}

// WithRobots toggles robots.txt handling. strict treats an unreachable or
// failing robots.txt as disallowing everything.
func WithRobots(respect, strict bool) FetcherOption {
	return func(f *Fetcher) {
		f.respectRobots = respect
		f.strictRobots = strict
	}
}

// WithMaxBodySize sets the maximum decoded body size to read.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *Fetcher) {
		f.maxBodySize = size
	}
}

// WithRedirectScope rejects redirects that leave the scope's host.
func WithRedirectScope(s *Scope) FetcherOption {
	return func(f *Fetcher) {
		f.scope = s
	}
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a Fetcher around client. The client is expected to
// set the User-Agent header; see internal/httpclient.
func NewFetcher(client *http.Client, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:        client,
		logger:        log.NewDiscardLogger(),
		respectRobots: true,
		maxBodySize:   defaultMaxBodySize,
		defaultDelay:  defaultDelay,
		politeness:    newPoliteness(),
		delays:        make(map[string]time.Duration),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.robots = newRobotsCache(client, f.userAgent, f.strictRobots, f.logger)
	f.robots.pace = func(ctx context.Context, u *url.URL) error {
		return f.politeness.wait(ctx, hostKey(u), f.configuredDelay(u))
	}
	return f
}

// DelayFor returns the effective delay for the origin of u, fetching
// robots.txt if needed. Precedence: override, site file, Crawl-delay, default.
func (f *Fetcher) DelayFor(ctx context.Context, u *url.URL) time.Duration {
	key := hostKey(u)
	if d, ok := f.delays[key]; ok {
		return d
	}

	d := f.resolveDelay(ctx, u)
	f.delays[key] = d
	f.logger.Debug("crawl delay", "origin", key, "delay", d)
	return d
}

func (f *Fetcher) resolveDelay(ctx context.Context, u *url.URL) time.Duration {
	if f.hasOverride || f.siteConfigured(u) || !f.respectRobots {
		return f.configuredDelay(u)
	}
	if d := f.robots.get(ctx, u).delay; d > 0 {
		return d
	}
	return f.defaultDelay
}

// configuredDelay is the delay known without robots.txt: override, site
// file, default. It also spaces the robots.txt request itself.
func (f *Fetcher) configuredDelay(u *url.URL) time.Duration {
	if f.hasOverride {
		return f.delayOverride
	}
	if f.siteConfigured(u) {
		return f.siteDelay(u.Hostname())
	}
	return f.defaultDelay
}

func (f *Fetcher) siteConfigured(u *url.URL) bool {
	return f.siteDelay != nil && f.siteDelay(u.Hostname()) > 0
}

// Fetch retrieves rawURL, which must already be normalized.
//
// Failures are returned as *model.FetchError. A cancelled context is
// returned as the context's error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*model.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &model.FetchError{Kind: model.FetchNetwork, URL: rawURL, Err: err}
	}

	if err := f.checkRobots(ctx, u); err != nil {
		return nil, err
	}
	if err := f.politeness.wait(ctx, hostKey(u), f.DelayFor(ctx, u)); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &model.FetchError{Kind: model.FetchNetwork, URL: rawURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &model.FetchError{Kind: model.FetchNetwork, URL: rawURL, Err: err}
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	client := *f.client
	client.CheckRedirect = f.checkRedirect

	f.logger.Debug("fetching", "url", rawURL)
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var fetchErr *model.FetchError
		if errors.As(err, &fetchErr) {
			fetchErr.URL = rawURL
			return nil, fetchErr
		}
		return nil, &model.FetchError{Kind: model.FetchNetwork, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return nil, &model.FetchError{
			Kind:       model.FetchHTTPStatus,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
		}
	}

	contentType := resp.Header.Get("Content-Type")
	body, err := f.readBody(resp, contentType)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &model.FetchError{Kind: model.FetchNetwork, URL: rawURL, StatusCode: resp.StatusCode, Err: err}
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		if landed, err := Normalize(resp.Request.URL.String()); err == nil {
			finalURL = landed
		}
	}

	return &model.Response{
		RequestURL:  rawURL,
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        body,
	}, nil
}

// checkRobots fails with FetchRobotsDisallowed when robots.txt forbids u.
func (f *Fetcher) checkRobots(ctx context.Context, u *url.URL) error {
	if !f.respectRobots {
		return nil
	}
	rules := f.robots.get(ctx, u)
	if rules.allowed(u, f.userAgent) {
		return nil
	}
	f.logger.Debug("disallowed by robots.txt", "url", u.String())
	return &model.FetchError{Kind: model.FetchRobotsDisallowed, URL: u.String(), Err: rules.unreachable}
}

// checkRedirect holds every redirect hop to the scope's host, robots.txt
// and the per-origin delay.
func (f *Fetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return &model.FetchError{
			Kind: model.FetchNetwork,
			Err:  fmt.Errorf("stopped after %d redirects", maxRedirects),
		}
	}
	if f.scope != nil && !f.scope.InHost(req.URL) {
		return &model.FetchError{
			Kind: model.FetchOutOfScope,
			Err:  fmt.Errorf("redirected to %s", req.URL.Redacted()),
		}
	}
	if err := f.checkRobots(req.Context(), req.URL); err != nil {
		return err
	}
	if err := f.politeness.wait(req.Context(), hostKey(req.URL), f.DelayFor(req.Context(), req.URL)); err != nil {
		return err
	}
	f.logger.Debug("following redirect", "from", via[len(via)-1].URL.String(), "to", req.URL.String())
	return nil
}

// readBody decompresses, caps and charset-decodes the response body.
func (f *Fetcher) readBody(resp *http.Response, contentType string) ([]byte, error) {
	decoded, err := decompress(resp.Body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, err
	}
	if c, ok := decoded.(io.Closer); ok && decoded != resp.Body {
		defer c.Close()
	}

	var r io.Reader = io.LimitReader(decoded, f.maxBodySize)
	if isTextual(contentType) {
		r, err = charset.NewReader(r, contentType)
		if err != nil {
			return nil, fmt.Errorf("decode charset: %w", err)
		}
	}
	return io.ReadAll(r)
}

// decompress wraps body according to Content-Encoding.
func decompress(body io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return body, nil
	case "gzip", "x-gzip":
		return gzip.NewReader(body)
	case "br":
		return brotli.NewReader(body), nil
	case "deflate":
		// "deflate" is zlib-wrapped per RFC 9110, but some servers send raw DEFLATE.
		br := bufio.NewReader(body)
		header, err := br.Peek(2)
		if err == nil && isZlibHeader(header) {
			return zlib.NewReader(br)
		}
		return flate.NewReader(br), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}

func isZlibHeader(b []byte) bool {
	return b[0]&0x0f == 8 && (uint16(b[0])<<8|uint16(b[1]))%31 == 0
}

// isTextual reports whether a Content-Type is worth charset decoding.
func isTextual(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return contentType == ""
	}
	return strings.HasPrefix(mediaType, "text/") || strings.HasSuffix(mediaType, "+xml")
}

// statusError reports an unexpected robots.txt status.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d %s", e.code, http.StatusText(e.code))
}
