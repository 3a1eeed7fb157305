package model

import (
	"fmt"
	"net/http"
)

// FetchErrorKind classifies why a fetch failed.
type FetchErrorKind string

const (
	// FetchNetwork covers DNS, connection, TLS, timeout and body read failures.
	FetchNetwork FetchErrorKind = "network"
	// FetchHTTPStatus is a response outside the 2xx range.
	FetchHTTPStatus FetchErrorKind = "http_status"
	// FetchRobotsDisallowed means robots.txt forbids the URL. No request was sent.
	FetchRobotsDisallowed FetchErrorKind = "robots_disallowed"
	// FetchOutOfScope is a redirect that left the crawl scope.
	FetchOutOfScope FetchErrorKind = "out_of_scope"
)

// FetchError is returned by the fetcher for a single URL.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

// Error implements error.
func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchHTTPStatus:
		return fmt.Sprintf("fetch %s: status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	case FetchRobotsDisallowed:
		if e.Err != nil {
			return fmt.Sprintf("fetch %s: disallowed by robots.txt: %v", e.URL, e.Err)
		}
		return fmt.Sprintf("fetch %s: disallowed by robots.txt", e.URL)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// ExtractErrorKind classifies why extraction failed.
type ExtractErrorKind string

const (
	// ExtractNotHTML is a response whose content type is not HTML.
	ExtractNotHTML ExtractErrorKind = "not_html"
	// ExtractNoContent is a document without extractable main content.
	ExtractNoContent ExtractErrorKind = "no_content"
	// ExtractParse is a document the HTML parser rejected.
	ExtractParse ExtractErrorKind = "parse"
)

// ExtractError is returned by the extractor for a single document.
type ExtractError struct {
	Kind ExtractErrorKind
	URL  string
	Err  error
}

// Error implements error.
func (e *ExtractError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("extract %s: %s", e.URL, e.Kind)
}

// Unwrap returns the underlying error.
func (e *ExtractError) Unwrap() error {
	return e.Err
}

// IOError is a filesystem failure while writing output.
// Unlike fetch and extract errors it aborts the run.
type IOError struct {
	Op   string
	Path string
	Err  error
}

// Error implements error.
func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *IOError) Unwrap() error {
	return e.Err
}
