package output

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/wikiexport/internal/model"
)

var fixedTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func openTestWriter(t *testing.T, dir string, opts ...Option) *Writer {
	t.Helper()

	opts = append([]Option{WithClock(func() time.Time { return fixedTime })}, opts...)
	w, err := Open(dir, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path) //nolint:gosec // test path
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

// TestOpen tests export directory preparation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates only the pages directory", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "export")
		w := openTestWriter(t, dir)

		if info, err := os.Stat(filepath.Join(dir, PagesDir)); err != nil || !info.IsDir() {
			t.Fatalf("expected pages directory, got %v", err)
		}
		entries, err := os.ReadDir(filepath.Join(dir, PagesDir))
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 0 {
			t.Errorf("expected probe file to be removed, found %d entries", len(entries))
		}
		if _, err := os.Stat(w.ManifestPath()); !os.IsNotExist(err) {
			t.Errorf("expected no manifest before the first page, got %v", err)
		}
	})

	t.Run("finish creates an empty manifest", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		w := openTestWriter(t, dir)
		if _, err := w.Finish(context.Background()); err != nil {
			t.Fatalf("Finish() failed: %v", err)
		}
		if w.ManifestPath() != filepath.Join(dir, ManifestFile) {
			t.Errorf("unexpected manifest path %q", w.ManifestPath())
		}
		entries, err := ReadManifest(w.ManifestPath())
		if err != nil {
			t.Fatalf("ReadManifest() failed: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("expected no entries, got %d", len(entries))
		}
	})

	t.Run("refuses an existing export", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		w := openTestWriter(t, dir)
		if _, err := w.Write(&model.ExtractedPage{Title: "A", Markdown: "a"}, "https://example.test/wiki/A", nil); err != nil {
			t.Fatal(err)
		}
		_ = w.Close()

		_, err := Open(dir)
		if !errors.Is(err, ErrOutputNotEmpty) {
			t.Errorf("expected ErrOutputNotEmpty, got %v", err)
		}
	})

	t.Run("force clears the previous export", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		w := openTestWriter(t, dir)
		if _, err := w.Write(&model.ExtractedPage{Title: "Old", Markdown: "old"}, "https://example.test/wiki/Old", nil); err != nil {
			t.Fatal(err)
		}
		_ = w.Close()

		notes := filepath.Join(dir, "notes.txt")
		if err := os.WriteFile(notes, []byte("keep"), 0o600); err != nil {
			t.Fatal(err)
		}

		openTestWriter(t, dir, WithForce(true))

		if _, err := os.Stat(filepath.Join(dir, PagesDir, "Old.md")); !os.IsNotExist(err) {
			t.Errorf("expected old page to be removed, got %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, ManifestFile)); !os.IsNotExist(err) {
			t.Errorf("expected old manifest to be removed, got %v", err)
		}
		if _, err := os.Stat(notes); err != nil {
			t.Errorf("expected unrelated files to be kept, got %v", err)
		}
	})

	t.Run("unusable directory is an IO error", func(t *testing.T) {
		t.Parallel()

		file := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}

		_, err := Open(file)
		var ioErr *model.IOError
		if !errors.As(err, &ioErr) {
			t.Errorf("expected *model.IOError, got %v", err)
		}
	})
}

// TestWriterWrite tests page files and manifest lines.
func TestWriterWrite(t *testing.T) {
	t.Parallel()

	t.Run("page file has front matter heading and body", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		w := openTestWriter(t, dir)

		record, err := w.Write(&model.ExtractedPage{Title: "Page One", Markdown: "Hello **world**"}, "https://example.test/wiki/Page_One", nil)
		if err != nil {
			t.Fatalf("Write() failed: %v", err)
		}
		if record.Filename != "Page_One.md" {
			t.Errorf("expected Page_One.md, got %q", record.Filename)
		}
		if record.Hash == "" {
			t.Error("expected hash to be set")
		}

		content := readFile(t, filepath.Join(dir, PagesDir, record.Filename))
		parts := strings.SplitN(content, "---\n", 3)
		if len(parts) != 3 || parts[0] != "" {
			t.Fatalf("expected front matter block, got:\n%s", content)
		}
		var fm frontMatter
		if err := yaml.Unmarshal([]byte(parts[1]), &fm); err != nil {
			t.Fatalf("front matter is not YAML: %v", err)
		}
		if fm.Title != "Page One" || fm.SourceURL != "https://example.test/wiki/Page_One" || fm.FetchedAt != "2025-03-01T12:00:00Z" {
			t.Errorf("unexpected front matter %+v", fm)
		}
		if want := "\n# Page One\n\nHello **world**\n"; parts[2] != want {
			t.Errorf("body = %q, want %q", parts[2], want)
		}
	})

	t.Run("front matter can be disabled", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		w := openTestWriter(t, dir, WithFrontMatter(false))

		record, err := w.Write(&model.ExtractedPage{Title: "Plain", Markdown: "text"}, "https://example.test/wiki/Plain", nil)
		if err != nil {
			t.Fatal(err)
		}
		if got := readFile(t, filepath.Join(dir, PagesDir, record.Filename)); got != "# Plain\n\ntext\n" {
			t.Errorf("unexpected content %q", got)
		}
	})

	t.Run("manifest round-trips with the pages directory", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		w := openTestWriter(t, dir)

		pages := []struct{ title, url string }{
			{"Home", "https://example.test/wiki/Home"},
			{"Same Title", "https://example.test/wiki/A"},
			{"Same Title", "https://example.test/wiki/B"},
			{"same_title", "https://example.test/wiki/C"},
		}
		for _, p := range pages {
			if _, err := w.Write(&model.ExtractedPage{Title: p.title, Markdown: "body of " + p.url}, p.url, nil); err != nil {
				t.Fatal(err)
			}
		}

		entries, err := ReadManifest(w.ManifestPath())
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != len(pages) {
			t.Fatalf("expected %d entries, got %d", len(pages), len(entries))
		}

		wantFiles := []string{"Home.md", "Same_Title.md", "Same_Title_2.md", "same_title_3.md"}
		onDisk := make(map[string]bool)
		files, err := filepath.Glob(filepath.Join(dir, PagesDir, "*.md"))
		if err != nil {
			t.Fatal(err)
		}
		for _, f := range files {
			onDisk[filepath.Base(f)] = true
		}
		if len(onDisk) != len(entries) {
			t.Errorf("expected %d files, found %d", len(entries), len(onDisk))
		}
		for i, e := range entries {
			if e.Filename != wantFiles[i] {
				t.Errorf("entry %d: expected filename %q, got %q", i, wantFiles[i], e.Filename)
			}
			if !onDisk[e.Filename] {
				t.Errorf("manifest names missing file %q", e.Filename)
			}
			if e.SourceURL != pages[i].url || e.Title != pages[i].title {
				t.Errorf("entry %d: unexpected %+v", i, e)
			}
			if e.FetchedAt != "2025-03-01T12:00:00Z" || len(e.Hash) != 64 {
				t.Errorf("entry %d: unexpected fetched_at/sha256 %+v", i, e)
			}
		}
	})

	t.Run("aliases resolve to the written file", func(t *testing.T) {
		t.Parallel()

		w := openTestWriter(t, t.TempDir())
		if _, err := w.Write(&model.ExtractedPage{Title: "New", Markdown: "x"}, "https://example.test/wiki/New", []string{"https://example.test/wiki/Old"}); err != nil {
			t.Fatal(err)
		}
		for _, u := range []string{"https://example.test/wiki/New", "https://example.test/wiki/Old"} {
			if name, ok := w.Resolve(u); !ok || name != "New.md" {
				t.Errorf("Resolve(%q) = %q, %v", u, name, ok)
			}
		}
		if _, ok := w.Resolve("https://example.test/wiki/Other"); ok {
			t.Error("expected unknown URL not to resolve")
		}
		if w.Written() != 1 {
			t.Errorf("expected 1 written, got %d", w.Written())
		}
	})
}

// TestRelinkPage tests which occurrences of a target are rewritten.
func TestRelinkPage(t *testing.T) {
	t.Parallel()

	const target = "https://example.test/wiki/Later"
	links := []linkRewrite{newLinkRewrite(target, "Later.md")}

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"inline link", "See [later](" + target + ").", "See [later](Later.md)."},
		{"adjacent links", "[a](" + target + ")[b](" + target + ")", "[a](Later.md)[b](Later.md)"},
		{"escaped label characters", `[a \[1\]](` + target + ")", `[a \[1\]](Later.md)`},
		{"image", "![map](" + target + ")", "![map](Later.md)"},
		{"escaped bracket is text", `Text \](` + target + ")", `Text \](` + target + ")"},
		{"escaped link is text", `\[later](` + target + ")", `\[later](` + target + ")"},
		{"bare url", "Visit " + target + " today", "Visit " + target + " today"},
		{"parenthesized url", "(" + target + ")", "(" + target + ")"},
		{"other target", "[x](" + target + "_2)", "[x](" + target + "_2)"},
		{
			"front matter untouched",
			"---\ntitle: x](" + target + ")\n---\n\n[later](" + target + ")\n",
			"---\ntitle: x](" + target + ")\n---\n\n[later](Later.md)\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := relinkPage(tt.content, links); got != tt.want {
				t.Errorf("relinkPage() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

// TestWriterRelink tests rewriting of links to pages written later.
func TestWriterRelink(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w := openTestWriter(t, dir, WithFrontMatter(false))

	later := "https://example.test/wiki/Later"
	never := "https://example.test/wiki/Never"
	first, err := w.Write(&model.ExtractedPage{
		Title:        "First",
		Markdown:     "See [later](" + later + ") and [never](" + never + ").",
		PendingLinks: []string{later, never},
	}, "https://example.test/wiki/First", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(&model.ExtractedPage{Title: "Later (page)", Markdown: "x"}, later, nil); err != nil {
		t.Fatal(err)
	}

	changed, err := w.Relink(context.Background())
	if err != nil {
		t.Fatalf("Relink() failed: %v", err)
	}
	if changed != 1 {
		t.Errorf("expected 1 changed file, got %d", changed)
	}

	want := "# First\n\nSee [later](Later_page.md) and [never](" + never + ").\n"
	if got := readFile(t, filepath.Join(dir, PagesDir, first.Filename)); got != want {
		t.Errorf("relinked content =\n%q\nwant\n%q", got, want)
	}

	changed, err = w.Relink(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if changed != 0 {
		t.Errorf("expected second relink to change nothing, got %d", changed)
	}

	t.Run("cancelled context stops relinking", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := w.Relink(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
