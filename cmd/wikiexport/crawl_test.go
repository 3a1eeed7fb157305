package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/wikiexport/internal/config"
	"github.com/nao1215/wikiexport/internal/model"
	"github.com/nao1215/wikiexport/internal/output"
	"github.com/nao1215/wikiexport/internal/pipeline"
	"github.com/nao1215/wikiexport/internal/report"
)

// writeSiteFile writes a site file and returns its path.
func writeSiteFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".wikiexport")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestNewCrawlCmd tests the crawl command creation.
func TestNewCrawlCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()

	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{"out", "o", config.DefaultOutputDir},
		{"max-pages", "n", "0"},
		{"delay", "d", "2s"},
		{"timeout", "t", "25s"},
		{"force", "f", "false"},
		{"config", "c", ""},
		{"format", "", "text"},
		{"wiki-prefix", "", "/wiki/"},
		{"same-host", "", "true"},
		{"no-robots", "", "false"},
		{"strict-robots", "", "false"},
		{"no-front-matter", "", "false"},
		{"no-history", "", "false"},
		{"proxy", "", ""},
		{"log-json", "", "false"},
		{"report-file", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("expected default %q, got %q", tt.defValue, flag.DefValue)
			}
		})
	}

	t.Run("requires exactly one seed", func(t *testing.T) {
		t.Parallel()

		if _, _, err := executeRoot(t, "crawl"); err == nil {
			t.Error("expected error without a seed")
		}
	})
}

// TestBuildConfig tests flag and site file handling.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	siteFile := writeSiteFile(t, `
defaults:
  crawlDelay: 3s
sites:
  wiki.example.test:
    wikiPrefix: /w/
    headers:
      Authorization: "Bearer secret"
`)

	parse := func(t *testing.T, args ...string) *config.Config {
		t.Helper()

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags(append([]string{"-c", siteFile}, args...)); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildConfig(cmd, []string{"https://wiki.example.test/wiki/Main_Page"})
		if err != nil {
			t.Fatalf("buildConfig() failed: %v", err)
		}
		return cfg
	}

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		cfg := parse(t)
		if cfg.DelayOverridden {
			t.Error("expected no delay override without --delay")
		}
		if !cfg.RespectRobots || !cfg.FrontMatter || !cfg.SaveHistory || !cfg.SameHost {
			t.Errorf("unexpected defaults %+v", cfg)
		}
		if cfg.SeedURL != "https://wiki.example.test/wiki/Main_Page" {
			t.Errorf("unexpected seed %q", cfg.SeedURL)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected valid config, got %v", err)
		}
	})

	t.Run("site file values apply", func(t *testing.T) {
		t.Parallel()

		cfg := parse(t)
		if got := cfg.EffectiveWikiPrefix("wiki.example.test"); got != "/w/" {
			t.Errorf("expected site prefix /w/, got %q", got)
		}
		if got := cfg.Site("other.test").CrawlDelay; got != 3*time.Second {
			t.Errorf("expected default crawl delay 3s, got %s", got)
		}
		if cfg.Site("wiki.example.test").Headers["Authorization"] != "Bearer secret" {
			t.Error("expected site headers")
		}
	})

	t.Run("explicit delay overrides", func(t *testing.T) {
		t.Parallel()

		cfg := parse(t, "--delay", "0s")
		if !cfg.DelayOverridden || cfg.DelayOverride != 0 {
			t.Errorf("expected zero delay override, got %v/%s", cfg.DelayOverridden, cfg.DelayOverride)
		}
	})

	t.Run("wiki prefix flag beats site file", func(t *testing.T) {
		t.Parallel()

		cfg := parse(t, "--wiki-prefix", "")
		if got := cfg.EffectiveWikiPrefix("wiki.example.test"); got != "" {
			t.Errorf("expected empty prefix, got %q", got)
		}
	})

	t.Run("negated flags", func(t *testing.T) {
		t.Parallel()

		cfg := parse(t, "--no-robots", "--no-front-matter", "--no-history", "--same-host=false", "--log-json")
		if cfg.RespectRobots || cfg.FrontMatter || cfg.SaveHistory || cfg.SameHost || !cfg.LogJSON {
			t.Errorf("unexpected config %+v", cfg)
		}
	})

	t.Run("missing explicit site file", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"-c", filepath.Join(t.TempDir(), "missing.yaml")}); err != nil {
			t.Fatal(err)
		}
		if _, err := buildConfig(cmd, []string{"https://wiki.example.test/"}); !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})
}

// newCommandWiki serves a two-page wiki.
func newCommandWiki(t *testing.T) *httptest.Server {
	t.Helper()

	page := func(title, body string) string {
		return fmt.Sprintf(`<!DOCTYPE html><html><head><title>%s</title></head><body>
<div id="mw-navigation"><a href="/wiki/Special:Search">search</a></div>
<h1 id="firstHeading">%s</h1>
<div id="mw-content-text">%s</div>
</body></html>`, title, title, body)
	}
	pages := map[string]string{
		"/wiki/Main_Page": page("Main Page", `<p>Read the <a href="/wiki/Guide">guide</a> or <a href="/wiki/Missing">this</a>.</p>`),
		"/wiki/Guide":     page("Guide", `<p>Back to the <a href="/wiki/Main_Page">main page</a>.</p>`),
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func readManifest(t *testing.T, dir string) []model.ManifestEntry {
	t.Helper()

	entries, err := output.ReadManifest(filepath.Join(dir, output.ManifestFile))
	if err != nil {
		t.Fatalf("failed to read manifest: %v", err)
	}
	return entries
}

// TestCrawlCommand runs whole crawls through the root command.
func TestCrawlCommand(t *testing.T) {
	t.Parallel()

	t.Run("exports, records history and compares runs", func(t *testing.T) {
		t.Parallel()

		srv := newCommandWiki(t)
		siteFile := writeSiteFile(t, "sites: {}\n")
		outDir := filepath.Join(t.TempDir(), "export")
		historyDir := t.TempDir()
		seed := srv.URL + "/wiki/Main_Page"

		reportFile := filepath.Join(t.TempDir(), "summary.md")
		crawlArgs := []string{"crawl", seed, "-c", siteFile, "-o", outDir, "--delay", "0s",
			"--history-dir", historyDir, "--format", "json", "--report-file", reportFile}

		stdout, stderr, err := executeRoot(t, crawlArgs...)
		if err != nil {
			t.Fatalf("crawl failed: %v\n%s", err, stderr)
		}

		var got report.JSONReport
		if err := json.Unmarshal([]byte(stdout), &got); err != nil {
			t.Fatalf("summary is not JSON: %v\n%s", err, stdout)
		}
		if got.Status != "complete" || got.Summary.Written != 2 || got.Summary.Attempted != 3 {
			t.Errorf("unexpected summary %+v", got.Summary)
		}
		if got.Summary.ErrorKinds[string(model.FetchHTTPStatus)] != 1 {
			t.Errorf("expected one http_status failure, got %v", got.Summary.ErrorKinds)
		}
		if got.Summary.RunID == 0 {
			t.Error("expected a history run ID")
		}

		md, err := os.ReadFile(reportFile)
		if err != nil {
			t.Fatalf("expected a report file: %v", err)
		}
		if !strings.Contains(string(md), "# Wiki Export Summary") {
			t.Errorf("expected a Markdown report file, got:\n%s", md)
		}

		entries := readManifest(t, outDir)
		if len(entries) != 2 || entries[0].Filename != "Main_Page.md" || entries[1].Filename != "Guide.md" {
			t.Fatalf("unexpected manifest %+v", entries)
		}
		content, err := os.ReadFile(filepath.Join(outDir, "pages", "Main_Page.md"))
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(content), "(Guide.md)") {
			t.Errorf("expected relinked guide link, got:\n%s", content)
		}
		if strings.Contains(string(content), "search") {
			t.Errorf("expected navigation to be stripped, got:\n%s", content)
		}

		// A second crawl without --force refuses the existing export.
		if _, _, err := executeRoot(t, crawlArgs...); !errors.Is(err, output.ErrOutputNotEmpty) {
			t.Fatalf("expected ErrOutputNotEmpty, got %v", err)
		}

		if _, stderr, err := executeRoot(t, append(crawlArgs, "--force")...); err != nil {
			t.Fatalf("forced crawl failed: %v\n%s", err, stderr)
		}
		if len(readManifest(t, outDir)) != 2 {
			t.Error("expected the forced crawl to rewrite the manifest")
		}

		stdout, _, err = executeRoot(t, "history", "--history-dir", historyDir, "--format", "json")
		if err != nil {
			t.Fatalf("history failed: %v", err)
		}
		var runs []struct {
			ID      int64  `json:"id"`
			Status  string `json:"status"`
			Written int    `json:"written"`
		}
		if err := json.Unmarshal([]byte(stdout), &runs); err != nil {
			t.Fatalf("history is not JSON: %v\n%s", err, stdout)
		}
		if len(runs) != 2 || runs[0].Status != "complete" || runs[0].Written != 2 {
			t.Fatalf("unexpected runs %+v", runs)
		}

		stdout, _, err = executeRoot(t, "compare", "--history-dir", historyDir, "--format", "json")
		if err != nil {
			t.Fatalf("compare failed: %v", err)
		}
		var cmp struct {
			Added     []any `json:"added"`
			Removed   []any `json:"removed"`
			Changed   []any `json:"changed"`
			Unchanged int   `json:"unchanged"`
		}
		if err := json.Unmarshal([]byte(stdout), &cmp); err != nil {
			t.Fatalf("comparison is not JSON: %v\n%s", err, stdout)
		}
		if cmp.Unchanged != 2 || len(cmp.Added)+len(cmp.Removed)+len(cmp.Changed) != 0 {
			t.Errorf("expected identical runs, got %+v", cmp)
		}

		stdout, _, err = executeRoot(t, "history", "show", fmt.Sprint(runs[0].ID), "--history-dir", historyDir)
		if err != nil {
			t.Fatalf("history show failed: %v", err)
		}
		if !strings.Contains(stdout, "/wiki/Missing") {
			t.Errorf("expected the failed page in run details, got:\n%s", stdout)
		}
	})

	t.Run("unreachable seed fails", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		seed := srv.URL + "/wiki/Main_Page"
		srv.Close()

		outDir := filepath.Join(t.TempDir(), "export")
		stdout, _, err := executeRoot(t, "crawl", seed,
			"-c", writeSiteFile(t, "sites: {}\n"),
			"-o", outDir, "--delay", "0s", "--no-history", "--timeout", "2s")
		if !errors.Is(err, pipeline.ErrSeedUnreachable) {
			t.Fatalf("expected ErrSeedUnreachable, got %v", err)
		}
		if !strings.Contains(stdout, "Failed") {
			t.Errorf("expected a failed summary, got:\n%s", stdout)
		}
		if _, err := os.Stat(filepath.Join(outDir, "manifest.jsonl")); !os.IsNotExist(err) {
			t.Error("expected no manifest after an unreachable seed")
		}
	})

	t.Run("invalid configuration", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name string
			args []string
			want error
		}{
			{"relative seed", []string{"crawl", "/wiki/Main_Page"}, config.ErrInvalidSeedURL},
			{"negative limit", []string{"crawl", "https://wiki.example.test/", "-n", "-1"}, config.ErrInvalidMaxPages},
			{"bad format", []string{"crawl", "https://wiki.example.test/", "--format", "xml"}, config.ErrInvalidReportFormat},
			{"bad proxy", []string{"crawl", "https://wiki.example.test/", "--proxy", "nope"}, config.ErrInvalidProxyAddress},
		}
		for _, tt := range tests {
			args := append(tt.args, "-c", writeSiteFile(t, "sites: {}\n"), "--no-history")
			if _, _, err := executeRoot(t, args...); !errors.Is(err, tt.want) {
				t.Errorf("%s: expected %v, got %v", tt.name, tt.want, err)
			}
		}
	})
}
