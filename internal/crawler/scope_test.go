package crawler

import (
	"net/url"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse %q: %v", raw, err)
	}
	return u
}

// TestScopeCheck tests discovery eligibility rules.
func TestScopeCheck(t *testing.T) {
	t.Parallel()

	seed := mustParse(t, "https://wiki.example.org/wiki/Main_Page")
	scope := NewScope(seed)

	tests := []struct {
		name string
		url  string
		want bool
		rule string
	}{
		{"article on seed host", "https://wiki.example.org/wiki/Go", true, ""},
		{"category page", "https://wiki.example.org/wiki/Category:Languages", true, ""},
		{"view action", "https://wiki.example.org/wiki/Go?action=view", true, ""},
		{"other host", "https://other.example.org/wiki/Go", false, "host"},
		{"subdomain", "https://en.wiki.example.org/wiki/Go", false, "host"},
		{"non-http scheme", "ftp://wiki.example.org/wiki/Go", false, "host"},
		{"outside wiki prefix", "https://wiki.example.org/about", false, "wiki_prefix"},
		{"index.php", "https://wiki.example.org/w/index.php?title=Go", false, "wiki_prefix"},
		{"special page", "https://wiki.example.org/wiki/Special:Random", false, "namespace"},
		{"file page", "https://wiki.example.org/wiki/File:Logo.png", false, "namespace"},
		{"talk page", "https://wiki.example.org/wiki/Talk:Go", false, "namespace"},
		{"user talk underscore", "https://wiki.example.org/wiki/User_talk:Alice", false, "namespace"},
		{"custom talk namespace", "https://wiki.example.org/wiki/Portal_talk:Science", false, "namespace"},
		{"lowercase namespace", "https://wiki.example.org/wiki/special:Search", false, "namespace"},
		{"title with colon in main namespace", "https://wiki.example.org/wiki/Star_Wars:_Episode_I", true, ""},
		{"old revision", "https://wiki.example.org/wiki/Go?oldid=42", false, "non_article"},
		{"diff view", "https://wiki.example.org/wiki/Go?diff=prev", false, "non_article"},
		{"printable", "https://wiki.example.org/wiki/Go?printable=yes", false, "non_article"},
		{"edit action", "https://wiki.example.org/wiki/Go?action=edit", false, "non_article"},
		{"history action", "https://wiki.example.org/wiki/Go?action=history", false, "non_article"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, rule := scope.Check(mustParse(t, tt.url))
			if got != tt.want || rule != tt.rule {
				t.Errorf("Check(%q) = %v, %q; want %v, %q", tt.url, got, rule, tt.want, tt.rule)
			}
		})
	}
}

// TestScopeOptions tests configurable scope rules.
func TestScopeOptions(t *testing.T) {
	t.Parallel()

	seed := mustParse(t, "https://wiki.example.org/wiki/Main_Page")

	t.Run("empty wiki prefix allows every path", func(t *testing.T) {
		t.Parallel()

		scope := NewScope(seed, WithWikiPrefix(""))
		if !scope.Allows(mustParse(t, "https://wiki.example.org/docs/intro")) {
			t.Error("expected path outside /wiki/ to be allowed")
		}
		if scope.Allows(mustParse(t, "https://wiki.example.org/Special:Random")) {
			t.Error("expected namespace rules to still apply")
		}
	})

	t.Run("same host can be disabled", func(t *testing.T) {
		t.Parallel()

		scope := NewScope(seed, WithSameHost(false))
		if !scope.Allows(mustParse(t, "https://mirror.example.net/wiki/Go")) {
			t.Error("expected other host to be allowed")
		}
		if scope.InHost(mustParse(t, "mailto:someone@example.org")) {
			t.Error("expected non-http URL to stay out of scope")
		}
	})

	t.Run("extra namespaces are excluded", func(t *testing.T) {
		t.Parallel()

		scope := NewScope(seed, WithExcludedNamespaces([]string{"Portal"}))
		if scope.Allows(mustParse(t, "https://wiki.example.org/wiki/Portal:Science")) {
			t.Error("expected Portal namespace to be excluded")
		}
	})

	t.Run("ignore takes precedence over follow", func(t *testing.T) {
		t.Parallel()

		scope := NewScope(seed,
			WithIgnorePatterns([]string{"/wiki/Archive/*"}),
			WithFollowPatterns([]string{"/wiki/*"}),
		)

		tests := []struct {
			url  string
			want bool
		}{
			{"https://wiki.example.org/wiki/Go", true},
			{"https://wiki.example.org/wiki/Archive/2019", false},
		}
		for _, tt := range tests {
			if got := scope.Allows(mustParse(t, tt.url)); got != tt.want {
				t.Errorf("Allows(%q) = %v, want %v", tt.url, got, tt.want)
			}
		}
	})

	t.Run("follow patterns restrict to matching URLs", func(t *testing.T) {
		t.Parallel()

		scope := NewScope(seed, WithFollowPatterns([]string{"/wiki/Go*"}))
		if !scope.Allows(mustParse(t, "https://wiki.example.org/wiki/Gopher")) {
			t.Error("expected matching URL to be allowed")
		}
		if scope.Allows(mustParse(t, "https://wiki.example.org/wiki/Rust")) {
			t.Error("expected non-matching URL to be skipped")
		}
	})

	t.Run("default port is ignored when comparing hosts", func(t *testing.T) {
		t.Parallel()

		scope := NewScope(seed)
		if !scope.InHost(mustParse(t, "https://WIKI.example.org:443/wiki/Go")) {
			t.Error("expected host comparison to ignore case and default port")
		}
	})
}

// TestMatchPattern tests glob matching on URL paths.
func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		{"directory prefix match", "/wiki/Archive/*", "/wiki/Archive/2019", true},
		{"directory prefix exact", "/wiki/Archive/*", "/wiki/Archive", true},
		{"directory prefix partial no match", "/wiki/Archive/*", "/wiki/Archives", false},
		{"nested directory", "/wiki/Archive/*", "/wiki/Archive/2019/May", true},
		{"extension", "*.pdf", "/wiki/Manual.pdf", true},
		{"extension no match", "*.pdf", "/wiki/Manual", false},
		{"exact", "/wiki/Sandbox", "/wiki/Sandbox", true},
		{"exact no match", "/wiki/Sandbox", "/wiki/Sandbox2", false},
		{"single character", "/wiki/Draft?", "/wiki/Draft1", true},
		{"single character no match", "/wiki/Draft?", "/wiki/Draft10", false},
		{"star within segment", "/wiki/Go*", "/wiki/Gopher", true},
		{"segment-only pattern", "Sandbox*", "/wiki/Sandbox_2", true},
		{"invalid pattern", "/wiki/[", "/wiki/[", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := matchPattern(tt.pattern, tt.path); got != tt.want {
				t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}
}
