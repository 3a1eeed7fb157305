package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/nao1215/wikiexport/internal/extract"
	"github.com/nao1215/wikiexport/internal/model"
)

// errNoResponse is returned when a step runs before the fetch step.
var errNoResponse = errors.New("job has no response")

// Fetcher retrieves one URL. *crawler.Fetcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*model.Response, error)
}

// VisitMarker records redirect landing URLs. *crawler.Frontier implements it.
type VisitMarker interface {
	// MarkSeen reports whether raw was newly visited.
	MarkSeen(raw string) bool
}

// Extractor converts an HTML document to a page. *extract.Extractor implements it.
type Extractor interface {
	Extract(r io.Reader, sourceURL string) (*model.ExtractedPage, error)
}

// PageWriter persists a page. *output.Writer implements it.
type PageWriter interface {
	Write(page *model.ExtractedPage, sourceURL string, aliases []string) (*model.PageRecord, error)
}

// LinkQueue accepts discovered links. *crawler.Frontier implements it.
type LinkQueue interface {
	// Enqueue reports whether the link was accepted.
	Enqueue(raw string) bool
}

// FetchStep downloads the job's URL.
//
// When the response was redirected, the landing URL is marked visited so
// the same content is not written twice; a landing URL that was already
// visited ends the job with model.ErrDuplicate.
type FetchStep struct {
	fetcher Fetcher
	marker  VisitMarker
	logger  *slog.Logger
}

// FetchStepOption configures a FetchStep.
type FetchStepOption func(*FetchStep)

// WithVisitMarker enables redirect deduplication.
func WithVisitMarker(m VisitMarker) FetchStepOption {
	return func(s *FetchStep) {
		s.marker = m
	}
}

// WithFetchLogger sets a custom logger for the fetch step.
func WithFetchLogger(logger *slog.Logger) FetchStepOption {
	return func(s *FetchStep) {
		s.logger = logger
	}
}

// NewFetchStep creates a fetch step.
func NewFetchStep(fetcher Fetcher, opts ...FetchStepOption) *FetchStep {
	s := &FetchStep{
		fetcher: fetcher,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *FetchStep) Name() string {
	return "fetch"
}

// Do executes the fetch step.
func (s *FetchStep) Do(ctx context.Context, job *model.PageJob) error {
	resp, err := s.fetcher.Fetch(ctx, job.URL)
	if err != nil {
		return err
	}
	job.Response = resp

	if resp.Redirected() {
		s.logger.Debug("followed redirect", "url", job.URL, "final_url", resp.FinalURL)
		if s.marker != nil && !s.marker.MarkSeen(resp.FinalURL) {
			return fmt.Errorf("%s: %w", resp.FinalURL, model.ErrDuplicate)
		}
	}

	s.logger.Debug("fetched page",
		"url", job.URL,
		"status", resp.StatusCode,
		"content_type", resp.ContentType,
		"bytes", len(resp.Body),
	)
	return nil
}

// ExtractStep converts the fetched HTML to Markdown.
// Responses that are not HTML fail with an ExtractError of kind not_html.
type ExtractStep struct {
	extractor Extractor
	logger    *slog.Logger
}

// ExtractStepOption configures an ExtractStep.
type ExtractStepOption func(*ExtractStep)

// WithExtractLogger sets a custom logger for the extract step.
func WithExtractLogger(logger *slog.Logger) ExtractStepOption {
	return func(s *ExtractStep) {
		s.logger = logger
	}
}

// NewExtractStep creates an extract step.
func NewExtractStep(extractor Extractor, opts ...ExtractStepOption) *ExtractStep {
	s := &ExtractStep{
		extractor: extractor,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ExtractStep) Name() string {
	return "extract"
}

// Do executes the extract step.
func (s *ExtractStep) Do(_ context.Context, job *model.PageJob) error {
	if job.Response == nil {
		return errNoResponse
	}
	if !extract.IsHTML(job.Response.ContentType) {
		return &model.ExtractError{
			Kind: model.ExtractNotHTML,
			URL:  job.SourceURL(),
			Err:  fmt.Errorf("content type %q", job.Response.ContentType),
		}
	}

	page, err := s.extractor.Extract(bytes.NewReader(job.Response.Body), job.SourceURL())
	if err != nil {
		return err
	}
	job.Page = page

	s.logger.Debug("extracted page",
		"url", job.SourceURL(),
		"title", page.Title,
		"links", len(page.Links),
	)
	return nil
}

// PersistStep writes the page file and its manifest line.
type PersistStep struct {
	writer PageWriter
	logger *slog.Logger
}

// PersistStepOption configures a PersistStep.
type PersistStepOption func(*PersistStep)

// WithPersistLogger sets a custom logger for the persist step.
func WithPersistLogger(logger *slog.Logger) PersistStepOption {
	return func(s *PersistStep) {
		s.logger = logger
	}
}

// NewPersistStep creates a persist step.
func NewPersistStep(writer PageWriter, opts ...PersistStepOption) *PersistStep {
	s := &PersistStep{
		writer: writer,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do executes the persist step.
func (s *PersistStep) Do(_ context.Context, job *model.PageJob) error {
	if job.Page == nil {
		return errors.New("job has no extracted page")
	}

	record, err := s.writer.Write(job.Page, job.SourceURL(), job.Aliases())
	if err != nil {
		return err
	}
	job.Record = record

	s.logger.Debug("persisted page", "url", record.SourceURL, "file", record.Filename)
	return nil
}

// DiscoverStep queues the page's internal links. It runs after the page
// is persisted so that a page that fails never contributes links.
type DiscoverStep struct {
	queue  LinkQueue
	logger *slog.Logger
}

// DiscoverStepOption configures a DiscoverStep.
type DiscoverStepOption func(*DiscoverStep)

// WithDiscoverLogger sets a custom logger for the discover step.
func WithDiscoverLogger(logger *slog.Logger) DiscoverStepOption {
	return func(s *DiscoverStep) {
		s.logger = logger
	}
}

// NewDiscoverStep creates a discover step.
func NewDiscoverStep(queue LinkQueue, opts ...DiscoverStepOption) *DiscoverStep {
	s := &DiscoverStep{
		queue:  queue,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *DiscoverStep) Name() string {
	return "discover"
}

// Do executes the discover step.
func (s *DiscoverStep) Do(_ context.Context, job *model.PageJob) error {
	if job.Page == nil {
		return nil
	}

	for _, link := range job.Page.Links {
		if s.queue.Enqueue(link) {
			job.Discovered++
		}
	}

	s.logger.Debug("discovered links",
		"url", job.SourceURL(),
		"links", len(job.Page.Links),
		"queued", job.Discovered,
	)
	return nil
}
