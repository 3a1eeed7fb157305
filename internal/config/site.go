package config

import "time"

// SiteConfig holds per-wiki configuration.
// It lets one site file tune scope, politeness and extraction for several wikis.
type SiteConfig struct {
	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// CrawlDelay overrides robots.txt Crawl-delay and the default delay.
	// The --delay flag still takes precedence. Zero means unset.
	CrawlDelay time.Duration `yaml:"crawlDelay,omitempty"`

	// WikiPrefix overrides the article path prefix. A pointer so that an
	// explicit empty string ("follow every path") can be told apart from unset.
	WikiPrefix *string `yaml:"wikiPrefix,omitempty"`

	// ExcludeNamespaces adds namespaces (e.g. "Portal") to the built-in list.
	ExcludeNamespaces []string `yaml:"excludeNamespaces,omitempty"`

	// IgnorePatterns are URL path globs to skip during crawling.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns are URL path globs to follow.
	// If specified, only URLs matching these patterns are crawled.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`

	// ChromeSelectors are extra CSS selectors removed before conversion.
	ChromeSelectors []string `yaml:"chromeSelectors,omitempty"`

	// DisableChromeRules names built-in chrome rules to switch off.
	DisableChromeRules []string `yaml:"disableChromeRules,omitempty"`

	// ContentSelectors are tried, in order, before the built-in content roots.
	ContentSelectors []string `yaml:"contentSelectors,omitempty"`
}

// File represents the structure of the .wikiexport site file.
type File struct {
	// Sites maps wiki hosts (e.g. "en.wikipedia.org") to their configuration.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults applies to every site unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for host merged over the defaults.
// Scalars replace, headers merge key by key, and lists replace wholesale.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	if result.Headers != nil {
		headers := make(map[string]string, len(result.Headers))
		for k, v := range result.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}

	siteConfig, ok := cf.Sites[host]
	if !ok {
		return result
	}

	if siteConfig.CrawlDelay != 0 {
		result.CrawlDelay = siteConfig.CrawlDelay
	}
	if siteConfig.WikiPrefix != nil {
		result.WikiPrefix = siteConfig.WikiPrefix
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range siteConfig.Headers {
			result.Headers[k] = v
		}
	}
	if len(siteConfig.ExcludeNamespaces) > 0 {
		result.ExcludeNamespaces = siteConfig.ExcludeNamespaces
	}
	if len(siteConfig.IgnorePatterns) > 0 {
		result.IgnorePatterns = siteConfig.IgnorePatterns
	}
	if len(siteConfig.FollowPatterns) > 0 {
		result.FollowPatterns = siteConfig.FollowPatterns
	}
	if len(siteConfig.ChromeSelectors) > 0 {
		result.ChromeSelectors = siteConfig.ChromeSelectors
	}
	if len(siteConfig.DisableChromeRules) > 0 {
		result.DisableChromeRules = siteConfig.DisableChromeRules
	}
	if len(siteConfig.ContentSelectors) > 0 {
		result.ContentSelectors = siteConfig.ContentSelectors
	}

	return result
}

// Site returns the merged site configuration for host.
// It is safe to call when no site file was loaded.
func (c *Config) Site(host string) SiteConfig {
	if c.SiteConfigs == nil {
		return SiteConfig{}
	}
	return c.SiteConfigs.GetSiteConfig(host)
}

// EffectiveWikiPrefix returns the article prefix for host.
func (c *Config) EffectiveWikiPrefix(host string) string {
	if p := c.Site(host).WikiPrefix; p != nil {
		return *p
	}
	return c.WikiPrefix
}
