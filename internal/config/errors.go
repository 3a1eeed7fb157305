package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// Callers compare them with errors.Is.
var (
	// ErrNoSeed is returned when no seed URL was given.
	ErrNoSeed = errors.New("no seed URL specified: provide the wiki page to start from")

	// ErrInvalidSeedURL is returned when the seed is not an absolute http(s) URL.
	ErrInvalidSeedURL = errors.New("invalid seed URL: must be an absolute http or https URL with a host")

	// ErrNoOutputDir is returned when the output directory is empty.
	ErrNoOutputDir = errors.New("no output directory specified")

	// ErrInvalidMaxPages is returned when the page limit is negative.
	// Use 0 for an unlimited crawl.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative (0 means unlimited)")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	// Use 0 for no delay between requests.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is not positive.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be positive")

	// ErrNoUserAgent is returned when the user agent is empty.
	ErrNoUserAgent = errors.New("user agent must not be empty")

	// ErrInvalidReportFormat is returned for an unknown --format value.
	ErrInvalidReportFormat = errors.New("invalid report format: must be text, json or markdown")

	// ErrInvalidProxyAddress is returned when the proxy is not host:port.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")
)
