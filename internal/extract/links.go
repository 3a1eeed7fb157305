package extract

import (
	"net/url"
	"slices"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/wikiexport/internal/crawler"
)

// LinkResolver maps a normalized page URL to the file it was written to.
type LinkResolver interface {
	Resolve(normalizedURL string) (filename string, ok bool)
}

// linkSet resolves the anchors of one document. It records the site links
// in document order and decides what each anchor points to in Markdown.
type linkSet struct {
	base     *url.URL
	internal func(*url.URL) bool
	resolver LinkResolver

	targets map[string]string // href -> normalized absolute URL, "" if unusable
	seen    map[string]bool
	links   []string
	pending []string
}

func newLinkSet(base *url.URL, internal func(*url.URL) bool, resolver LinkResolver) *linkSet {
	return &linkSet{
		base:     base,
		internal: internal,
		resolver: resolver,
		targets:  make(map[string]string),
		seen:     make(map[string]bool),
	}
}

// collect walks every anchor under sel and records internal targets.
func (l *linkSet) collect(sel *goquery.Selection) {
	sel.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		target := l.resolve(href)
		if target == "" || l.seen[target] {
			return
		}
		u, err := url.Parse(target)
		if err != nil || !l.internal(u) {
			return
		}
		l.seen[target] = true
		l.links = append(l.links, target)
	})
}

// resolve returns the normalized absolute URL of href, or "" when href
// does not lead to a page.
func (l *linkSet) resolve(href string) string {
	if target, ok := l.targets[href]; ok {
		return target
	}
	target := crawler.ResolveReference(l.base, href)
	l.targets[href] = target
	return target
}

// destination returns the Markdown link destination for href: the escaped
// local filename when the target page has been written, otherwise the
// absolute URL. Internal targets without a file yet are remembered as pending.
func (l *linkSet) destination(href string) string {
	target := l.resolve(href)
	if target == "" {
		return ""
	}
	if !l.seen[target] {
		return target
	}
	if l.resolver != nil {
		if filename, ok := l.resolver.Resolve(target); ok {
			return url.PathEscape(filename)
		}
	}
	if !slices.Contains(l.pending, target) {
		l.pending = append(l.pending, target)
	}
	return target
}
