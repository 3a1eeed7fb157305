package model

import (
	"errors"
	"sort"
	"time"
)

// Outcome is the final state of one attempted URL.
type Outcome string

const (
	// OutcomeWritten means a page file and manifest line were produced.
	OutcomeWritten Outcome = "written"
	// OutcomeFetchFailed means the fetch failed (network, status or scope).
	OutcomeFetchFailed Outcome = "fetch_failed"
	// OutcomeRobotsDisallowed means robots.txt forbade the URL.
	OutcomeRobotsDisallowed Outcome = "robots_disallowed"
	// OutcomeExtractFailed means the document had no usable content.
	OutcomeExtractFailed Outcome = "extract_failed"
	// OutcomeDuplicate means a redirect landed on an already processed URL.
	OutcomeDuplicate Outcome = "duplicate"
)

// PageResult is the outcome of one attempted URL as recorded in history.
type PageResult struct {
	URL       string    `json:"url"`
	FinalURL  string    `json:"final_url,omitempty"`
	Outcome   Outcome   `json:"outcome"`
	Filename  string    `json:"filename,omitempty"`
	Title     string    `json:"title,omitempty"`
	Hash      string    `json:"sha256,omitempty"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// NewPageResult classifies a finished job and its pipeline error.
// A nil error with a record means the page was written.
func NewPageResult(job *PageJob, err error) PageResult {
	result := PageResult{
		URL: job.URL,
		At:  time.Now(),
	}
	if job.Response != nil && job.Response.Redirected() {
		result.FinalURL = job.Response.FinalURL
	}

	var fetchErr *FetchError
	var extractErr *ExtractError
	switch {
	case err == nil && job.Record != nil:
		result.Outcome = OutcomeWritten
		result.Filename = job.Record.Filename
		result.Title = job.Record.Title
		result.Hash = job.Record.Hash
		return result
	case errors.Is(err, ErrDuplicate):
		result.Outcome = OutcomeDuplicate
	case errors.As(err, &fetchErr):
		result.Outcome = OutcomeFetchFailed
		if fetchErr.Kind == FetchRobotsDisallowed {
			result.Outcome = OutcomeRobotsDisallowed
		}
		result.ErrorKind = string(fetchErr.Kind)
	case errors.As(err, &extractErr):
		result.Outcome = OutcomeExtractFailed
		result.ErrorKind = string(extractErr.Kind)
	default:
		result.Outcome = OutcomeFetchFailed
	}
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

// ErrDuplicate is returned when a redirect lands on a URL that was already
// processed in this run.
var ErrDuplicate = errors.New("redirect target already processed")

// RunSummary is the end-of-run report.
type RunSummary struct {
	// RunID is the history database ID, or 0 when history is disabled.
	RunID int64 `json:"run_id,omitempty"`

	SeedURL   string    `json:"seed_url"`
	OutputDir string    `json:"output_dir"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`

	// Attempted is the number of URLs taken from the frontier.
	Attempted int `json:"attempted"`
	// Written is the number of pages persisted.
	Written int `json:"written"`
	// Skipped counts attempted URLs that produced no page, by outcome.
	Skipped map[Outcome]int `json:"skipped"`
	// ErrorKinds counts failures by error kind (network, not_html, ...).
	ErrorKinds map[string]int `json:"error_kinds"`
	// Discovered is the number of distinct URLs accepted into the frontier.
	Discovered int `json:"discovered"`
	// Relinked is the number of page files rewritten by the final relink pass.
	Relinked int `json:"relinked"`

	// LimitReached is true when the page limit ended the crawl.
	LimitReached bool `json:"limit_reached"`
	// Interrupted is true when the crawl was cancelled.
	Interrupted bool `json:"interrupted"`
	// Error is set when the run ended with a fatal error.
	Error string `json:"error,omitempty"`
}

// NewRunSummary creates an empty summary for a run.
func NewRunSummary(seedURL, outputDir string) *RunSummary {
	return &RunSummary{
		SeedURL:    seedURL,
		OutputDir:  outputDir,
		StartedAt:  time.Now(),
		Skipped:    make(map[Outcome]int),
		ErrorKinds: make(map[string]int),
	}
}

// Add counts one page result.
func (s *RunSummary) Add(r PageResult) {
	s.Attempted++
	if r.Outcome == OutcomeWritten {
		s.Written++
		return
	}
	s.Skipped[r.Outcome]++
	if r.ErrorKind != "" {
		s.ErrorKinds[r.ErrorKind]++
	}
}

// TotalSkipped returns the number of attempted URLs that produced no page.
func (s *RunSummary) TotalSkipped() int {
	total := 0
	for _, n := range s.Skipped {
		total += n
	}
	return total
}

// Elapsed returns the run duration.
func (s *RunSummary) Elapsed() time.Duration {
	if s.EndedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// SkippedOutcomes returns the skipped outcomes with a nonzero count, sorted.
func (s *RunSummary) SkippedOutcomes() []Outcome {
	outcomes := make([]Outcome, 0, len(s.Skipped))
	for o, n := range s.Skipped {
		if n > 0 {
			outcomes = append(outcomes, o)
		}
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i] < outcomes[j] })
	return outcomes
}

// Status returns a one-word description of how the run ended.
func (s *RunSummary) Status() string {
	switch {
	case s.Error != "":
		return "failed"
	case s.Interrupted:
		return "interrupted"
	case s.LimitReached:
		return "limit_reached"
	default:
		return "complete"
	}
}
