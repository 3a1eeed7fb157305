package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/temoto/robotstxt"
)

// maxRobotsSize caps how much of a robots.txt file is read.
const maxRobotsSize = 512 * 1024

// ErrRobotsUnreachable wraps the network failure behind a strict-mode
// robots.txt denial. The host itself could not be reached.
var ErrRobotsUnreachable = errors.New("robots.txt unreachable")

// robotsRules is the parsed robots.txt of one origin.
type robotsRules struct {
	data  *robotstxt.RobotsData
	delay time.Duration
	// unreachable is the transport error that left the rules unknown.
	unreachable error
}

// allowed reports whether the crawler may fetch u.
func (r *robotsRules) allowed(u *url.URL, userAgent string) bool {
	return r.data.TestAgent(u.RequestURI(), userAgent)
}

// robotsCache fetches each origin's robots.txt once and keeps the parsed
// rules for the lifetime of the fetcher.
type robotsCache struct {
	client    *http.Client
	userAgent string
	strict    bool
	logger    *slog.Logger
	rules     map[string]*robotsRules

	// pace holds the robots.txt request to the origin's request spacing.
	pace func(ctx context.Context, u *url.URL) error
}

func newRobotsCache(client *http.Client, userAgent string, strict bool, logger *slog.Logger) *robotsCache {
	// robots.txt redirects are followed without the crawler's redirect hook.
	rc := *client
	rc.CheckRedirect = nil

	return &robotsCache{
		client:    &rc,
		userAgent: userAgent,
		strict:    strict,
		logger:    logger,
		rules:     make(map[string]*robotsRules),
	}
}

// get returns the rules for u's origin, fetching robots.txt on first use.
// Rules from a fetch cut short by ctx are not cached.
func (c *robotsCache) get(ctx context.Context, u *url.URL) *robotsRules {
	key := hostKey(u)
	if r, ok := c.rules[key]; ok {
		return r
	}

	r := c.fetch(ctx, u, key)
	if ctx.Err() == nil {
		c.rules[key] = r
	}
	return r
}

func (c *robotsCache) fetch(ctx context.Context, u *url.URL, origin string) *robotsRules {
	robotsURL := origin + "/robots.txt"

	if c.pace != nil {
		if err := c.pace(ctx, u); err != nil {
			return c.unavailable(robotsURL, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return c.unavailable(robotsURL, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		rules := c.unavailable(robotsURL, err)
		rules.unreachable = fmt.Errorf("%w: %w", ErrRobotsUnreachable, err)
		return rules
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return c.unavailable(robotsURL, &statusError{code: resp.StatusCode})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsSize))
	if err != nil {
		return c.unavailable(robotsURL, err)
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		c.logger.Warn("ignoring unparsable robots.txt", "url", robotsURL, "error", err)
		data, _ = robotstxt.FromStatusAndBytes(http.StatusNotFound, nil) //nolint:errcheck // 4xx always parses
	}

	rules := &robotsRules{data: data}
	if group := data.FindGroup(c.userAgent); group != nil {
		rules.delay = group.CrawlDelay
	}
	c.logger.Debug("loaded robots.txt", "url", robotsURL, "status", resp.StatusCode, "crawl_delay", rules.delay)
	return rules
}

// unavailable returns the rules used when robots.txt cannot be retrieved:
// allow-all by default, disallow-all in strict mode.
func (c *robotsCache) unavailable(robotsURL string, err error) *robotsRules {
	status := http.StatusNotFound
	if c.strict {
		status = http.StatusServiceUnavailable
	}
	c.logger.Warn("robots.txt unavailable", "url", robotsURL, "error", err, "strict", c.strict)

	data, _ := robotstxt.FromStatusAndBytes(status, nil) //nolint:errcheck // 4xx and 5xx always parse
	return &robotsRules{data: data}
}
