package extract

import (
	"io"
	"log/slog"
	"mime"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/wikiexport/internal/log"
	"github.com/nao1215/wikiexport/internal/model"
)

// DefaultContentSelectors locate the main content, most specific first.
var DefaultContentSelectors = []string{
	"#mw-content-text",
	"#bodyContent",
	"main",
	"article",
	"[role=main]",
	"#content",
	"body",
}

// Extractor converts wiki HTML into Markdown and discovers site links.
type Extractor struct {
	chromeRules      []ChromeRule
	disabled         map[string]bool
	contentSelectors []string
	resolver         LinkResolver
	internal         func(*url.URL) bool
	logger           *slog.Logger

	rules []compiledRule
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithExtraChromeSelectors appends site-specific selectors as a rule named "site".
func WithExtraChromeSelectors(selectors []string) Option {
	return func(e *Extractor) {
		if len(selectors) == 0 {
			return
		}
		e.chromeRules = append(e.chromeRules, ChromeRule{
			Name:     "site",
			Selector: strings.Join(selectors, ", "),
		})
	}
}

// WithoutChromeRules disables rules by name.
func WithoutChromeRules(names ...string) Option {
	return func(e *Extractor) {
		for _, name := range names {
			e.disabled[name] = true
		}
	}
}

// WithContentSelectors puts site-specific content selectors ahead of the defaults.
func WithContentSelectors(selectors []string) Option {
	return func(e *Extractor) {
		e.contentSelectors = append(append([]string{}, selectors...), e.contentSelectors...)
	}
}

// WithLinkResolver sets the resolver used to point internal links at
// already written files.
func WithLinkResolver(r LinkResolver) Option {
	return func(e *Extractor) {
		e.resolver = r
	}
}

// WithLinkScope sets which link targets count as internal. By default a
// link is internal when it shares the source page's host.
func WithLinkScope(internal func(*url.URL) bool) Option {
	return func(e *Extractor) {
		e.internal = internal
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// New creates an Extractor. It fails when a chrome rule selector does not parse.
func New(opts ...Option) (*Extractor, error) {
	e := &Extractor{
		chromeRules:      append([]ChromeRule{}, DefaultChromeRules...),
		disabled:         make(map[string]bool),
		contentSelectors: append([]string{}, DefaultContentSelectors...),
		logger:           log.NewDiscardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}

	rules, err := compileRules(e.chromeRules, e.disabled)
	if err != nil {
		return nil, err
	}
	e.rules = rules
	return e, nil
}

// Extract converts the HTML document served from sourceURL.
//
// The title heading is not part of the returned Markdown. Links holds the
// internal anchor targets of the whole document in document order, chrome
// included; PendingLinks holds the body links that the resolver could not
// map to a file yet.
func (e *Extractor) Extract(r io.Reader, sourceURL string) (*model.ExtractedPage, error) {
	source, err := url.Parse(sourceURL)
	if err != nil {
		return nil, &model.ExtractError{Kind: model.ExtractParse, URL: sourceURL, Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, &model.ExtractError{Kind: model.ExtractParse, URL: sourceURL, Err: err}
	}

	title := extractTitle(doc, source)

	root := e.contentRoot(doc)
	if root == nil {
		return nil, &model.ExtractError{Kind: model.ExtractNoContent, URL: sourceURL}
	}

	base := source
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := source.Parse(href); err == nil {
			base = b
		}
	}

	internal := e.internal
	if internal == nil {
		internal = func(u *url.URL) bool { return strings.EqualFold(u.Host, source.Host) }
	}
	// Discovery covers the whole document, navboxes and sidebars included.
	links := newLinkSet(base, internal, e.resolver)
	links.collect(doc.Selection)

	removed := stripChrome(root.Get(0), e.rules)
	if h1 := root.Find("h1").First(); h1.Length() > 0 && collapseSpace(h1.Text()) == title {
		h1.Remove()
	}

	body, err := newConverter(links).convert(root.Get(0))
	if err != nil {
		return nil, &model.ExtractError{Kind: model.ExtractParse, URL: sourceURL, Err: err}
	}
	if body == "" {
		return nil, &model.ExtractError{Kind: model.ExtractNoContent, URL: sourceURL}
	}

	e.logger.Debug("extracted page",
		"url", sourceURL,
		"title", title,
		"links", len(links.links),
		"pending_links", len(links.pending),
		"chrome_removed", removed,
	)

	return &model.ExtractedPage{
		Title:        title,
		Markdown:     body,
		Links:        links.links,
		PendingLinks: links.pending,
	}, nil
}

// contentRoot returns the first element matched by the content selectors.
func (e *Extractor) contentRoot(doc *goquery.Document) *goquery.Selection {
	for _, selector := range e.contentSelectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			return sel
		}
	}
	return nil
}

// IsHTML reports whether a Content-Type header names an HTML document.
// A missing Content-Type is treated as HTML.
func IsHTML(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
