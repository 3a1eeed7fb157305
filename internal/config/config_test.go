package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
// Changes to defaults must be intentional; these subtests fail otherwise.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default OutputDir is wiki_export", func(t *testing.T) {
		t.Parallel()
		if cfg.OutputDir != "wiki_export" {
			t.Errorf("expected OutputDir to be 'wiki_export', got '%s'", cfg.OutputDir)
		}
	})

	t.Run("default MaxPages is unlimited", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxPages != 0 {
			t.Errorf("expected MaxPages to be 0, got %d", cfg.MaxPages)
		}
	})

	t.Run("default CrawlDelay is 2 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.CrawlDelay != 2*time.Second {
			t.Errorf("expected CrawlDelay to be 2s, got %v", cfg.CrawlDelay)
		}
	})

	t.Run("default Timeout is 25 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 25*time.Second {
			t.Errorf("expected Timeout to be 25s, got %v", cfg.Timeout)
		}
	})

	t.Run("default WikiPrefix is /wiki/", func(t *testing.T) {
		t.Parallel()
		if cfg.WikiPrefix != "/wiki/" {
			t.Errorf("expected WikiPrefix to be '/wiki/', got %q", cfg.WikiPrefix)
		}
	})

	t.Run("robots.txt is respected by default", func(t *testing.T) {
		t.Parallel()
		if !cfg.RespectRobots {
			t.Error("expected RespectRobots to be true")
		}
		if cfg.StrictRobots {
			t.Error("expected StrictRobots to be false")
		}
	})

	t.Run("default crawl is same-host with front matter", func(t *testing.T) {
		t.Parallel()
		if !cfg.SameHost {
			t.Error("expected SameHost to be true")
		}
		if !cfg.FrontMatter {
			t.Error("expected FrontMatter to be true")
		}
	})

	t.Run("default UserAgent identifies the bot", func(t *testing.T) {
		t.Parallel()
		if cfg.UserAgent != DefaultUserAgent {
			t.Errorf("expected UserAgent %q, got %q", DefaultUserAgent, cfg.UserAgent)
		}
	})

	t.Run("SiteConfigs is never nil", func(t *testing.T) {
		t.Parallel()
		if cfg.SiteConfigs == nil || cfg.SiteConfigs.Sites == nil {
			t.Error("expected SiteConfigs to be initialized")
		}
	})
}

// TestConfigValidate tests the Validate method with various configurations.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	// validConfig returns a minimal valid configuration.
	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.SeedURL = "https://wiki.example.org/wiki/Main_Page"
		return cfg
	}

	t.Run("valid config returns nil", func(t *testing.T) {
		t.Parallel()
		if err := validConfig().Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"empty seed", func(c *Config) { c.SeedURL = "" }, ErrNoSeed},
		{"relative seed", func(c *Config) { c.SeedURL = "/wiki/Main_Page" }, ErrInvalidSeedURL},
		{"ftp seed", func(c *Config) { c.SeedURL = "ftp://wiki.example.org/" }, ErrInvalidSeedURL},
		{"seed without host", func(c *Config) { c.SeedURL = "https:///wiki/A" }, ErrInvalidSeedURL},
		{"empty output dir", func(c *Config) { c.OutputDir = "" }, ErrNoOutputDir},
		{"negative max pages", func(c *Config) { c.MaxPages = -1 }, ErrInvalidMaxPages},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidTimeout},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, ErrInvalidTimeout},
		{"negative crawl delay", func(c *Config) { c.CrawlDelay = -time.Second }, ErrInvalidCrawlDelay},
		{"negative delay override", func(c *Config) {
			c.DelayOverride = -time.Second
			c.DelayOverridden = true
		}, ErrInvalidCrawlDelay},
		{"zero body size", func(c *Config) { c.MaxBodySize = 0 }, ErrInvalidMaxBodySize},
		{"empty user agent", func(c *Config) { c.UserAgent = "" }, ErrNoUserAgent},
		{"unknown format", func(c *Config) { c.ReportFormat = "xml" }, ErrInvalidReportFormat},
		{"proxy without port", func(c *Config) { c.ProxyAddress = "127.0.0.1" }, ErrInvalidProxyAddress},
		{"proxy with bad port", func(c *Config) { c.ProxyAddress = "127.0.0.1:70000" }, ErrInvalidProxyAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name+" returns error", func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	t.Run("zero delay and valid proxy are accepted", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.CrawlDelay = 0
		cfg.DelayOverridden = true
		cfg.ProxyAddress = "127.0.0.1:9050"
		cfg.ReportFormat = ReportFormatMarkdown
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})
}

// TestFileGetSiteConfig tests merging of site configuration over defaults.
func TestFileGetSiteConfig(t *testing.T) {
	t.Parallel()

	empty := ""
	file := &File{
		Defaults: SiteConfig{
			Headers:        map[string]string{"Accept-Language": "en"},
			CrawlDelay:     3 * time.Second,
			IgnorePatterns: []string{"/wiki/Archive*"},
		},
		Sites: map[string]SiteConfig{
			"wiki.example.org": {
				Headers:         map[string]string{"X-Team": "docs"},
				WikiPrefix:      &empty,
				ChromeSelectors: []string{".banner"},
			},
			"slow.example.org": {
				CrawlDelay: 10 * time.Second,
			},
		},
	}

	t.Run("unknown host returns defaults", func(t *testing.T) {
		t.Parallel()
		cfg := file.GetSiteConfig("other.example.org")
		if cfg.CrawlDelay != 3*time.Second {
			t.Errorf("expected default delay 3s, got %v", cfg.CrawlDelay)
		}
		if cfg.WikiPrefix != nil {
			t.Errorf("expected nil wiki prefix, got %q", *cfg.WikiPrefix)
		}
	})

	t.Run("headers merge with defaults", func(t *testing.T) {
		t.Parallel()
		cfg := file.GetSiteConfig("wiki.example.org")
		if cfg.Headers["Accept-Language"] != "en" || cfg.Headers["X-Team"] != "docs" {
			t.Errorf("expected merged headers, got %v", cfg.Headers)
		}
		if len(cfg.IgnorePatterns) != 1 {
			t.Errorf("expected inherited ignore pattern, got %v", cfg.IgnorePatterns)
		}
		if len(cfg.ChromeSelectors) != 1 {
			t.Errorf("expected site chrome selector, got %v", cfg.ChromeSelectors)
		}
	})

	t.Run("merging does not mutate defaults", func(t *testing.T) {
		t.Parallel()
		_ = file.GetSiteConfig("wiki.example.org")
		if _, ok := file.Defaults.Headers["X-Team"]; ok {
			t.Error("site headers leaked into defaults")
		}
	})

	t.Run("explicit empty wiki prefix is kept", func(t *testing.T) {
		t.Parallel()
		c := NewConfig()
		c.SiteConfigs = file
		if got := c.EffectiveWikiPrefix("wiki.example.org"); got != "" {
			t.Errorf("expected empty prefix, got %q", got)
		}
		if got := c.EffectiveWikiPrefix("slow.example.org"); got != DefaultWikiPrefix {
			t.Errorf("expected default prefix, got %q", got)
		}
	})

	t.Run("site delay overrides default delay", func(t *testing.T) {
		t.Parallel()
		cfg := file.GetSiteConfig("slow.example.org")
		if cfg.CrawlDelay != 10*time.Second {
			t.Errorf("expected 10s, got %v", cfg.CrawlDelay)
		}
	})

	t.Run("nil SiteConfigs yields empty site", func(t *testing.T) {
		t.Parallel()
		c := &Config{WikiPrefix: "/w/"}
		if got := c.EffectiveWikiPrefix("wiki.example.org"); got != "/w/" {
			t.Errorf("expected '/w/', got %q", got)
		}
	})
}

// TestLoadConfigFile tests the LoadConfigFile function.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.wikiexport")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()
		configPath := filepath.Join(t.TempDir(), ".wikiexport")

		content := `defaults:
  crawlDelay: 3s
  excludeNamespaces:
    - Portal
sites:
  wiki.example.org:
    wikiPrefix: "/w/"
    headers:
      X-Team: "docs"
    ignorePatterns:
      - "/w/Archive*"
    disableChromeRules:
      - heuristic
    contentSelectors:
      - "#main-article"
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Defaults.CrawlDelay != 3*time.Second {
			t.Errorf("expected default delay 3s, got %v", cfg.Defaults.CrawlDelay)
		}
		if len(cfg.Defaults.ExcludeNamespaces) != 1 {
			t.Errorf("expected 1 excluded namespace, got %v", cfg.Defaults.ExcludeNamespaces)
		}

		site, ok := cfg.Sites["wiki.example.org"]
		if !ok {
			t.Fatal("expected wiki.example.org in sites")
		}
		if site.WikiPrefix == nil || *site.WikiPrefix != "/w/" {
			t.Errorf("expected wiki prefix /w/")
		}
		if site.Headers["X-Team"] != "docs" {
			t.Errorf("expected X-Team header")
		}
		if len(site.DisableChromeRules) != 1 || site.DisableChromeRules[0] != "heuristic" {
			t.Errorf("unexpected disabled rules %v", site.DisableChromeRules)
		}
		if len(site.ContentSelectors) != 1 {
			t.Errorf("expected 1 content selector, got %d", len(site.ContentSelectors))
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()
		configPath := filepath.Join(t.TempDir(), ".wikiexport")

		if err := os.WriteFile(configPath, []byte(`invalid: yaml: content: [}`), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfigFile(configPath); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("initializes nil Sites map", func(t *testing.T) {
		t.Parallel()
		configPath := filepath.Join(t.TempDir(), ".wikiexport")

		if err := os.WriteFile(configPath, []byte("defaults:\n  crawlDelay: 1s\n"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Sites == nil {
			t.Error("expected Sites map to be initialized")
		}
	})
}

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()
		configPath := filepath.Join(t.TempDir(), "custom.yaml")

		if err := os.WriteFile(configPath, []byte("defaults: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if result := FindConfigFile(configPath); result != configPath {
			t.Errorf("expected %q, got %q", configPath, result)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()
		if result := FindConfigFile("/nonexistent/path/config.yaml"); result != "" {
			t.Errorf("expected empty string, got %q", result)
		}
	})
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	if XDGDataDir() == "" {
		t.Error("expected non-empty XDG data dir")
	}
	if filepath.Base(XDGConfigDir()) != AppName {
		t.Errorf("expected XDG config dir to end in %q, got %q", AppName, XDGConfigDir())
	}
}
