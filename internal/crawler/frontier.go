package crawler

import (
	"log/slog"
	"net/url"

	"github.com/nao1215/wikiexport/internal/log"
)

// Entry is one URL taken from the frontier.
type Entry struct {
	// URL is the normalized URL.
	URL string

	// Order is the discovery order, starting at 0 for the seed.
	Order int

	// Seed is true for the crawl's starting URL.
	Seed bool
}

// Frontier is the FIFO queue of pending URLs together with the seen and
// visited sets. It is owned by the single crawl loop and is not safe for
// concurrent use.
//
// A URL is "seen" once it has been queued or processed, and "visited" once
// it has been dequeued or reached through a redirect. The page limit counts
// dequeued URLs.
type Frontier struct {
	scope    *Scope
	maxPages int
	logger   *slog.Logger

	queue   []Entry
	seen    map[string]bool
	visited map[string]bool

	nextOrder int
	attempted int
	accepted  int
}

// FrontierOption configures a Frontier.
type FrontierOption func(*Frontier)

// WithMaxPages bounds the number of URLs that can be dequeued.
// 0 means unlimited.
func WithMaxPages(n int) FrontierOption {
	return func(f *Frontier) {
		f.maxPages = n
	}
}

// WithScope sets the eligibility rules for enqueued URLs.
// Without it only the seed's host is accepted.
func WithScope(s *Scope) FrontierOption {
	return func(f *Frontier) {
		f.scope = s
	}
}

// WithFrontierLogger sets the logger used for skipped URLs.
func WithFrontierLogger(logger *slog.Logger) FrontierOption {
	return func(f *Frontier) {
		f.logger = logger
	}
}

// NewFrontier creates a frontier holding only the seed.
// The seed is exempt from the scope rules other than being absolute http(s).
func NewFrontier(seed string, opts ...FrontierOption) (*Frontier, error) {
	normalized, err := Normalize(seed)
	if err != nil {
		return nil, err
	}
	seedURL, err := url.Parse(normalized)
	if err != nil {
		return nil, err
	}

	f := &Frontier{
		logger:  log.NewDiscardLogger(),
		seen:    make(map[string]bool),
		visited: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.scope == nil {
		f.scope = NewScope(seedURL, WithWikiPrefix(""))
	}

	f.push(normalized, true)
	return f, nil
}

func (f *Frontier) push(normalized string, seed bool) {
	f.queue = append(f.queue, Entry{URL: normalized, Order: f.nextOrder, Seed: seed})
	f.nextOrder++
	f.seen[normalized] = true
	f.accepted++
}

// Enqueue adds raw to the queue if it is in scope, not yet seen, and the
// page limit has not been reached. It reports whether the URL was added.
func (f *Frontier) Enqueue(raw string) bool {
	if f.LimitReached() {
		return false
	}

	normalized, err := Normalize(raw)
	if err != nil {
		return false
	}
	if f.seen[normalized] {
		return false
	}

	u, err := url.Parse(normalized)
	if err != nil {
		return false
	}
	if ok, rule := f.scope.Check(u); !ok {
		f.logger.Debug("skipping out-of-scope URL", "url", normalized, "rule", rule)
		return false
	}

	f.push(normalized, false)
	return true
}

// Dequeue returns the next unvisited URL in FIFO order and marks it
// visited. It returns false when the queue is empty or the limit is reached.
func (f *Frontier) Dequeue() (Entry, bool) {
	for len(f.queue) > 0 {
		if f.LimitReached() {
			return Entry{}, false
		}

		entry := f.queue[0]
		f.queue[0] = Entry{}
		f.queue = f.queue[1:]

		if f.visited[entry.URL] {
			continue
		}
		f.visited[entry.URL] = true
		f.attempted++
		return entry, true
	}
	return Entry{}, false
}

// MarkSeen records that raw was processed, typically a redirect landing
// URL. It is idempotent and reports whether raw was newly visited; false
// means the content was already handled in this run.
func (f *Frontier) MarkSeen(raw string) bool {
	normalized, err := Normalize(raw)
	if err != nil {
		return false
	}
	f.seen[normalized] = true
	if f.visited[normalized] {
		return false
	}
	f.visited[normalized] = true
	return true
}

// Seen reports whether raw has been queued or processed.
func (f *Frontier) Seen(raw string) bool {
	normalized, err := Normalize(raw)
	if err != nil {
		return false
	}
	return f.seen[normalized]
}

// Attempted returns the number of dequeued URLs.
func (f *Frontier) Attempted() int {
	return f.attempted
}

// Accepted returns the number of distinct URLs ever added to the queue,
// the seed included.
func (f *Frontier) Accepted() int {
	return f.accepted
}

// Pending returns the number of queued URLs, including any that will be
// skipped at dequeue because a redirect already reached them.
func (f *Frontier) Pending() int {
	return len(f.queue)
}

// LimitReached reports whether the page limit has been used up.
func (f *Frontier) LimitReached() bool {
	return f.maxPages > 0 && f.attempted >= f.maxPages
}
