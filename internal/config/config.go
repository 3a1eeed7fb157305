package config

import (
	"net"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "wikiexport"

	// DefaultOutputDir is where pages and the manifest are written.
	DefaultOutputDir = "wiki_export"

	// DefaultMaxPages of 0 means the crawl is bounded only by the site itself.
	DefaultMaxPages = 0

	// DefaultCrawlDelay is the minimum spacing between requests to one host
	// when neither --delay, the site file, nor robots.txt Crawl-delay set one.
	DefaultCrawlDelay = 2 * time.Second

	// DefaultTimeout is the per-request timeout including redirects and body read.
	DefaultTimeout = 25 * time.Second

	// DefaultUserAgent identifies the crawler to wiki operators and is the
	// agent name matched against robots.txt groups.
	DefaultUserAgent = "WikiExportBot/1.0 (+https://github.com/nao1215/wikiexport)"

	// DefaultWikiPrefix restricts discovered links to MediaWiki article paths.
	DefaultWikiPrefix = "/wiki/"

	// DefaultMaxBodySize caps how much of a response body is read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultReportFormat is the summary format printed after a crawl.
	DefaultReportFormat = ReportFormatText
)

// Report formats accepted by --format.
const (
	ReportFormatText     = "text"
	ReportFormatJSON     = "json"
	ReportFormatMarkdown = "markdown"
)

// Config holds all configuration options for one crawl.
// It is populated from CLI flags and the site file, then passed down
// explicitly; nothing reads global state.
type Config struct {
	// SeedURL is the page the crawl starts from. Its host defines the scope.
	SeedURL string

	// OutputDir receives pages/<slug>.md and manifest.jsonl.
	OutputDir string

	// MaxPages bounds the number of URLs attempted. 0 means unlimited.
	MaxPages int

	// CrawlDelay is the fallback per-host delay used when no override is set
	// and robots.txt does not declare a Crawl-delay.
	CrawlDelay time.Duration

	// DelayOverride, when DelayOverridden is true, replaces every other delay
	// source including robots.txt Crawl-delay.
	DelayOverride   time.Duration
	DelayOverridden bool

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// UserAgent is sent with every request and matched against robots.txt.
	UserAgent string

	// WikiPrefix restricts discovered links to paths with this prefix.
	// Empty allows every path on the host.
	WikiPrefix string

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// RespectRobots enables robots.txt checks. Disabling it is not recommended.
	RespectRobots bool

	// StrictRobots treats an unreachable or failing robots.txt as disallow-all
	// instead of the permissive default.
	StrictRobots bool

	// SameHost limits the crawl to the seed's host.
	SameHost bool

	// ProxyAddress is an optional SOCKS5 proxy in host:port form.
	ProxyAddress string

	// Force clears an output directory that already holds a previous export.
	Force bool

	// FrontMatter prefixes each page with YAML front matter.
	FrontMatter bool

	// SaveHistory records the run in the history database.
	SaveHistory bool

	// HistoryDir is the directory of the history database.
	// Defaults to the XDG data directory.
	HistoryDir string

	// ReportFormat selects the summary format: text, json or markdown.
	ReportFormat string

	// ReportFile, when set, also receives the summary in the format implied
	// by its extension.
	ReportFile string

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON switches log output to JSON.
	LogJSON bool

	// ConfigFilePath is the site file path given with --config.
	ConfigFilePath string

	// SiteConfigs holds the loaded site file. Never nil after buildConfig.
	SiteConfigs *File
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		OutputDir:     DefaultOutputDir,
		MaxPages:      DefaultMaxPages,
		CrawlDelay:    DefaultCrawlDelay,
		Timeout:       DefaultTimeout,
		UserAgent:     DefaultUserAgent,
		WikiPrefix:    DefaultWikiPrefix,
		MaxBodySize:   DefaultMaxBodySize,
		RespectRobots: true,
		SameHost:      true,
		FrontMatter:   true,
		SaveHistory:   true,
		HistoryDir:    XDGDataDir(),
		ReportFormat:  DefaultReportFormat,
		SiteConfigs:   &File{Sites: make(map[string]SiteConfig)},
	}
}

// XDGDataDir returns the XDG data directory for wikiexport.
// On Linux: ~/.local/share/wikiexport
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for wikiexport.
// On Linux: ~/.config/wikiexport
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as a sentinel error.
func (c *Config) Validate() error {
	if c.SeedURL == "" {
		return ErrNoSeed
	}
	if err := ValidateSeedURL(c.SeedURL); err != nil {
		return err
	}
	if c.OutputDir == "" {
		return ErrNoOutputDir
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.CrawlDelay < 0 || (c.DelayOverridden && c.DelayOverride < 0) {
		return ErrInvalidCrawlDelay
	}
	if c.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}
	if c.UserAgent == "" {
		return ErrNoUserAgent
	}
	switch c.ReportFormat {
	case ReportFormatText, ReportFormatJSON, ReportFormatMarkdown:
	default:
		return ErrInvalidReportFormat
	}
	if c.ProxyAddress != "" && !isValidProxyAddress(c.ProxyAddress) {
		return ErrInvalidProxyAddress
	}
	return nil
}

// ValidateSeedURL checks that raw is an absolute http(s) URL with a host.
func ValidateSeedURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidSeedURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidSeedURL
	}
	if u.Hostname() == "" {
		return ErrInvalidSeedURL
	}
	return nil
}

// isValidProxyAddress checks for a "host:port" address with a port in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}
