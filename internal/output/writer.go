package output

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"gopkg.in/yaml.v3"

	"github.com/nao1215/wikiexport/internal/log"
	"github.com/nao1215/wikiexport/internal/model"
)

// Layout of an export directory.
const (
	PagesDir     = "pages"
	ManifestFile = "manifest.jsonl"
	pageExt      = ".md"
	tempPattern  = ".wikiexport-*.tmp"
)

// ErrOutputNotEmpty is returned by Open when the directory already holds
// an export and WithForce was not given.
var ErrOutputNotEmpty = errors.New("output directory already contains an export (use --force to overwrite)")

// Writer persists pages and the manifest for one run.
// It is used from the single crawl loop and is not safe for concurrent use.
type Writer struct {
	dir          string
	pagesDir     string
	manifestPath string
	force        bool
	frontMatter  bool
	now          func() time.Time
	logger       *slog.Logger

	manifest *manifest
	slugs    *slugAllocator
	byURL    map[string]string
	pending  map[string][]string
	order    []string
	written  int
}

// Option configures a Writer.
type Option func(*Writer)

// WithForce clears an existing export instead of refusing it.
func WithForce(force bool) Option {
	return func(w *Writer) {
		w.force = force
	}
}

// WithFrontMatter toggles the YAML front matter block. It is on by default.
func WithFrontMatter(enabled bool) Option {
	return func(w *Writer) {
		w.frontMatter = enabled
	}
}

// WithClock sets the time source for fetched_at.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		w.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Writer) {
		w.logger = logger
	}
}

// Open prepares dir for a new export: it creates the pages directory,
// refuses or clears a previous export, and checks that files can be
// created. The manifest is created with the first page or by Finish, so a
// run that fails before writing anything leaves at most an empty pages
// directory behind.
func Open(dir string, opts ...Option) (*Writer, error) {
	w := &Writer{
		dir:          dir,
		pagesDir:     filepath.Join(dir, PagesDir),
		manifestPath: filepath.Join(dir, ManifestFile),
		frontMatter:  true,
		now:          time.Now,
		logger:       log.NewDiscardLogger(),
		slugs:        newSlugAllocator(),
		byURL:        make(map[string]string),
		pending:      make(map[string][]string),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := os.MkdirAll(w.pagesDir, 0o750); err != nil {
		return nil, &model.IOError{Op: "create", Path: w.pagesDir, Err: err}
	}
	if err := w.guard(); err != nil {
		return nil, err
	}
	if err := probe(w.pagesDir); err != nil {
		return nil, err
	}
	return w, nil
}

// openManifest opens manifest.jsonl on first use.
func (w *Writer) openManifest() (*manifest, error) {
	if w.manifest != nil {
		return w.manifest, nil
	}
	m, err := openManifest(w.manifestPath)
	if err != nil {
		return nil, err
	}
	w.manifest = m
	return m, nil
}

// guard refuses an existing export unless force is set, in which case the
// manifest and page files are removed.
func (w *Writer) guard() error {
	manifestPath := w.manifestPath
	pages, err := filepath.Glob(filepath.Join(w.pagesDir, "*"+pageExt))
	if err != nil {
		return &model.IOError{Op: "list", Path: w.pagesDir, Err: err}
	}
	info, statErr := os.Stat(manifestPath)
	hasManifest := statErr == nil && info.Size() > 0
	if !hasManifest && len(pages) == 0 {
		return nil
	}
	if !w.force {
		return fmt.Errorf("%s: %w", w.dir, ErrOutputNotEmpty)
	}

	w.logger.Info("clearing previous export", "dir", w.dir, "pages", len(pages))
	temps, _ := filepath.Glob(filepath.Join(w.pagesDir, tempPattern)) //nolint:errcheck // pattern is constant
	for _, path := range append(pages, temps...) {
		if err := os.Remove(path); err != nil {
			return &model.IOError{Op: "remove", Path: path, Err: err}
		}
	}
	if err := os.Remove(manifestPath); err != nil && !os.IsNotExist(err) {
		return &model.IOError{Op: "remove", Path: manifestPath, Err: err}
	}
	return nil
}

// probe creates and removes a temp file to fail early on read-only outputs.
func probe(dir string) error {
	f, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return &model.IOError{Op: "write", Path: dir, Err: err}
	}
	name := f.Name()
	_ = f.Close()
	if err := os.Remove(name); err != nil {
		return &model.IOError{Op: "remove", Path: name, Err: err}
	}
	return nil
}

// Write stores one page and appends its manifest line. The page file is
// complete on disk before the manifest line is written. aliases are other
// URLs (such as a redirect source) that should resolve to the same file.
func (w *Writer) Write(page *model.ExtractedPage, sourceURL string, aliases []string) (*model.PageRecord, error) {
	record := &model.PageRecord{
		Title:     page.Title,
		SourceURL: sourceURL,
		Filename:  w.slugs.allocate(page.Title),
		FetchedAt: w.now().UTC(),
		Markdown:  page.Markdown,
	}
	record.ComputeHash()

	content, err := w.render(record)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(w.pagesDir, record.Filename)
	if err := writeFileAtomic(path, content); err != nil {
		return nil, err
	}
	m, err := w.openManifest()
	if err != nil {
		return nil, err
	}
	if err := m.append(record.ManifestEntry()); err != nil {
		return nil, err
	}

	w.byURL[sourceURL] = record.Filename
	for _, alias := range aliases {
		if _, taken := w.byURL[alias]; !taken {
			w.byURL[alias] = record.Filename
		}
	}
	if len(page.PendingLinks) > 0 {
		w.pending[record.Filename] = append([]string{}, page.PendingLinks...)
		w.order = append(w.order, record.Filename)
	}
	w.written++

	w.logger.Debug("page written", "file", record.Filename, "url", sourceURL, "pending_links", len(page.PendingLinks))
	return record, nil
}

// frontMatter is the YAML header of a page file.
type frontMatter struct {
	Title     string `yaml:"title"`
	SourceURL string `yaml:"source_url"`
	FetchedAt string `yaml:"fetched_at"`
}

// render builds the page file: optional front matter, the title heading,
// then the body.
func (w *Writer) render(record *model.PageRecord) ([]byte, error) {
	var buf bytes.Buffer
	if w.frontMatter {
		header, err := yaml.Marshal(frontMatter{
			Title:     record.Title,
			SourceURL: record.SourceURL,
			FetchedAt: record.FetchedAt.Format(time.RFC3339),
		})
		if err != nil {
			return nil, fmt.Errorf("marshal front matter: %w", err)
		}
		buf.WriteString("---\n")
		buf.Write(header)
		buf.WriteString("---\n\n")
	}

	md := markdown.NewMarkdown(&buf).H1(strings.TrimSpace(record.Title))
	if record.Markdown != "" {
		md.PlainText("").PlainText(record.Markdown)
	}
	if err := md.Build(); err != nil {
		return nil, fmt.Errorf("render %s: %w", record.Filename, err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Resolve returns the filename a normalized URL was written to.
func (w *Writer) Resolve(normalizedURL string) (string, bool) {
	name, ok := w.byURL[normalizedURL]
	return name, ok
}

// Written returns the number of pages written.
func (w *Writer) Written() int {
	return w.written
}

// Dir returns the export directory.
func (w *Writer) Dir() string {
	return w.dir
}

// ManifestPath returns the path of manifest.jsonl.
func (w *Writer) ManifestPath() string {
	return w.manifestPath
}

// Finish ends the run: it makes sure manifest.jsonl exists, even when no
// page was written, and runs the relink pass. It returns the number of
// relinked files.
func (w *Writer) Finish(ctx context.Context) (int, error) {
	if _, err := w.openManifest(); err != nil {
		return 0, err
	}
	return w.Relink(ctx)
}

// Close closes the manifest if it was opened.
func (w *Writer) Close() error {
	if w.manifest == nil {
		return nil
	}
	err := w.manifest.close()
	w.manifest = nil
	return err
}

// writeFileAtomic writes data to a temp file in the same directory and
// renames it over path.
func writeFileAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), tempPattern)
	if err != nil {
		return &model.IOError{Op: "write", Path: path, Err: err}
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return &model.IOError{Op: "write", Path: path, Err: err}
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return &model.IOError{Op: "sync", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return &model.IOError{Op: "close", Path: path, Err: err}
	}
	if err := os.Chmod(tmp, 0o644); err != nil { //nolint:gosec // export files are meant to be shared
		_ = os.Remove(tmp)
		return &model.IOError{Op: "chmod", Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return &model.IOError{Op: "rename", Path: path, Err: err}
	}
	return nil
}
