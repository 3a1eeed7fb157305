package model

import (
	"errors"
	"fmt"
	"testing"
)

// TestNewPageResult tests classification of pipeline outcomes.
func TestNewPageResult(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		err         error
		record      *PageRecord
		wantOutcome Outcome
		wantKind    string
	}{
		{
			name:        "written page",
			record:      &PageRecord{Filename: "a.md", Title: "A"},
			wantOutcome: OutcomeWritten,
		},
		{
			name:        "network failure",
			err:         &FetchError{Kind: FetchNetwork, URL: "u", Err: errors.New("refused")},
			wantOutcome: OutcomeFetchFailed,
			wantKind:    "network",
		},
		{
			name:        "robots disallowed",
			err:         &FetchError{Kind: FetchRobotsDisallowed, URL: "u"},
			wantOutcome: OutcomeRobotsDisallowed,
			wantKind:    "robots_disallowed",
		},
		{
			name:        "wrapped extract error",
			err:         fmt.Errorf("step extract: %w", &ExtractError{Kind: ExtractNoContent, URL: "u"}),
			wantOutcome: OutcomeExtractFailed,
			wantKind:    "no_content",
		},
		{
			name:        "duplicate landing",
			err:         fmt.Errorf("step fetch: %w", ErrDuplicate),
			wantOutcome: OutcomeDuplicate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			job := NewPageJob("https://example.test/wiki/A", 1, false)
			job.Record = tt.record

			result := NewPageResult(job, tt.err)
			if result.Outcome != tt.wantOutcome {
				t.Errorf("expected outcome %q, got %q", tt.wantOutcome, result.Outcome)
			}
			if result.ErrorKind != tt.wantKind {
				t.Errorf("expected error kind %q, got %q", tt.wantKind, result.ErrorKind)
			}
			if tt.err != nil && result.Error == "" {
				t.Error("expected error message to be recorded")
			}
		})
	}
}

// TestRunSummary tests counting of results.
func TestRunSummary(t *testing.T) {
	t.Parallel()

	s := NewRunSummary("https://example.test/wiki/Home", "out")
	s.Add(PageResult{Outcome: OutcomeWritten})
	s.Add(PageResult{Outcome: OutcomeWritten})
	s.Add(PageResult{Outcome: OutcomeFetchFailed, ErrorKind: "http_status"})
	s.Add(PageResult{Outcome: OutcomeExtractFailed, ErrorKind: "not_html"})
	s.Add(PageResult{Outcome: OutcomeFetchFailed, ErrorKind: "network"})

	if s.Attempted != 5 {
		t.Errorf("expected 5 attempted, got %d", s.Attempted)
	}
	if s.Written != 2 {
		t.Errorf("expected 2 written, got %d", s.Written)
	}
	if s.TotalSkipped() != 3 {
		t.Errorf("expected 3 skipped, got %d", s.TotalSkipped())
	}
	if s.Skipped[OutcomeFetchFailed] != 2 {
		t.Errorf("expected 2 fetch failures, got %d", s.Skipped[OutcomeFetchFailed])
	}

	outcomes := s.SkippedOutcomes()
	if len(outcomes) != 2 || outcomes[0] != OutcomeExtractFailed || outcomes[1] != OutcomeFetchFailed {
		t.Errorf("unexpected skipped outcomes %v", outcomes)
	}

	if s.Status() != "complete" {
		t.Errorf("expected complete status, got %q", s.Status())
	}
	s.LimitReached = true
	if s.Status() != "limit_reached" {
		t.Errorf("expected limit_reached status, got %q", s.Status())
	}
	s.Interrupted = true
	if s.Status() != "interrupted" {
		t.Errorf("expected interrupted status, got %q", s.Status())
	}
	s.Error = "seed URL is unreachable"
	if s.Status() != "failed" {
		t.Errorf("expected failed status, got %q", s.Status())
	}
}

// TestErrorMessages tests that error kinds render with the URL.
func TestErrorMessages(t *testing.T) {
	t.Parallel()

	fetchErr := &FetchError{Kind: FetchHTTPStatus, URL: "https://example.test/x", StatusCode: 404}
	if got := fetchErr.Error(); got != "fetch https://example.test/x: status 404 Not Found" {
		t.Errorf("unexpected message %q", got)
	}

	cause := errors.New("disk full")
	ioErr := &IOError{Op: "write", Path: "out/pages/a.md", Err: cause}
	if !errors.Is(ioErr, cause) {
		t.Error("IOError should unwrap to its cause")
	}
}
