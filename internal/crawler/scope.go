package crawler

import (
	"net/url"
	"path/filepath"
	"strings"
)

// DefaultExcludedNamespaces are MediaWiki namespaces that hold no article
// content. Category pages are crawled because they index member pages.
var DefaultExcludedNamespaces = []string{
	"Special",
	"File",
	"Image",
	"Media",
	"Talk",
	"User",
	"User talk",
	"Template",
	"Template talk",
	"Help",
	"Help talk",
	"MediaWiki",
	"MediaWiki talk",
	"Module",
	"Module talk",
	"Category talk",
	"File talk",
	"Project talk",
	"Portal talk",
}

// nonArticleParams mark revision, diff and print views of a page.
var nonArticleParams = []string{"oldid", "diff", "curid", "printable"}

// Scope decides which discovered URLs are eligible for the frontier.
type Scope struct {
	host           string
	sameHost       bool
	wikiPrefix     string
	namespaces     map[string]bool
	ignorePatterns []string
	followPatterns []string
}

// ScopeOption configures a Scope.
type ScopeOption func(*Scope)

// WithSameHost toggles the same-host restriction. It is on by default.
func WithSameHost(enabled bool) ScopeOption {
	return func(s *Scope) {
		s.sameHost = enabled
	}
}

// WithWikiPrefix sets the article path prefix. Empty allows every path.
func WithWikiPrefix(prefix string) ScopeOption {
	return func(s *Scope) {
		s.wikiPrefix = prefix
	}
}

// WithExcludedNamespaces adds namespaces to the built-in exclusion list.
func WithExcludedNamespaces(namespaces []string) ScopeOption {
	return func(s *Scope) {
		for _, ns := range namespaces {
			s.namespaces[canonicalNamespace(ns)] = true
		}
	}
}

// WithIgnorePatterns sets URL path patterns to skip.
// Patterns use glob syntax (e.g., "/wiki/Archive*", "*.pdf").
func WithIgnorePatterns(patterns []string) ScopeOption {
	return func(s *Scope) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns to follow.
// If set, only URLs matching at least one pattern are crawled.
func WithFollowPatterns(patterns []string) ScopeOption {
	return func(s *Scope) {
		s.followPatterns = patterns
	}
}

// NewScope creates a Scope anchored at the seed's host.
func NewScope(seed *url.URL, opts ...ScopeOption) *Scope {
	s := &Scope{
		host:       canonicalHost(strings.ToLower(seed.Scheme), seed.Host),
		sameHost:   true,
		wikiPrefix: "/wiki/",
		namespaces: make(map[string]bool, len(DefaultExcludedNamespaces)),
	}
	for _, ns := range DefaultExcludedNamespaces {
		s.namespaces[canonicalNamespace(ns)] = true
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InHost reports whether u uses http(s) and, when the same-host
// restriction is on, lives on the seed's host. Redirects are held to this
// check only.
func (s *Scope) InHost(u *url.URL) bool {
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	if !s.sameHost {
		return u.Host != ""
	}
	return canonicalHost(scheme, u.Host) == s.host
}

// Allows reports whether a discovered URL is eligible for crawling.
func (s *Scope) Allows(u *url.URL) bool {
	ok, _ := s.Check(u)
	return ok
}

// Check is Allows with the name of the rule that rejected u.
func (s *Scope) Check(u *url.URL) (bool, string) {
	if !s.InHost(u) {
		return false, "host"
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	if s.wikiPrefix != "" && !strings.HasPrefix(path, s.wikiPrefix) {
		return false, "wiki_prefix"
	}

	q := u.Query()
	for _, p := range nonArticleParams {
		if q.Has(p) {
			return false, "non_article"
		}
	}
	if action := q.Get("action"); action != "" && action != "view" {
		return false, "non_article"
	}

	title := q.Get("title")
	if title == "" {
		title = strings.TrimPrefix(path, s.wikiPrefix)
		title = strings.TrimPrefix(title, "/")
	}
	if s.excludedTitle(title) {
		return false, "namespace"
	}

	if !s.matchesPatterns(path) {
		return false, "pattern"
	}
	return true, ""
}

// excludedTitle reports whether a page title lives in an excluded namespace.
func (s *Scope) excludedTitle(title string) bool {
	ns, _, found := strings.Cut(title, ":")
	if !found {
		return false
	}
	ns = canonicalNamespace(ns)
	if s.namespaces[ns] {
		return true
	}
	return strings.HasSuffix(ns, " talk")
}

// canonicalNamespace folds "User_talk", "user talk" and "USER TALK" together.
func canonicalNamespace(ns string) string {
	return strings.ToLower(strings.TrimSpace(strings.ReplaceAll(ns, "_", " ")))
}

// matchesPatterns applies the ignore and follow patterns.
//
// Logic:
//  1. If the path matches any ignore pattern, skip it
//  2. If follow patterns are set and the path matches none, skip it
//  3. Otherwise, crawl it
func (s *Scope) matchesPatterns(path string) bool {
	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(s.followPatterns) > 0 {
		for _, pattern := range s.followPatterns {
			if matchPattern(pattern, path) {
				return true
			}
		}
		return false
	}

	return true
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//   - a trailing /* to match everything below a directory
//
// Examples:
//   - "/wiki/Archive/*" matches "/wiki/Archive/2019"
//   - "*.pdf" matches "/wiki/File.pdf"
//   - "/wiki/Draft?" matches "/wiki/Draft1"
func matchPattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		ext := strings.TrimPrefix(pattern, "*")
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// Slash-free patterns also match against the last path segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(path))
		if err == nil && matched {
			return true
		}
	}

	return false
}
