package report

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nao1215/wikiexport/internal/database"
	"github.com/nao1215/wikiexport/internal/model"
)

// Output formats accepted by New.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// ErrUnknownFormat is returned by New for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown output format (use text, json or markdown)")

// Writer defines the interface for run summary output.
// Implementations write the end-of-run summary in various formats.
type Writer interface {
	// Write outputs the summary to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(summary *model.RunSummary) (int, error)
}

// RunListWriter renders crawl history for the history and compare commands.
type RunListWriter interface {
	// WriteRuns outputs a list of runs, newest first.
	WriteRuns(runs []database.RunRecord) (int, error)

	// WriteRun outputs one run with its page outcomes.
	WriteRun(run *database.RunRecord, pages []model.PageResult) (int, error)

	// WriteComparison outputs the difference between two runs.
	WriteComparison(cmp *database.Comparison) (int, error)
}

// FormatWriter is a Writer that can also render history.
type FormatWriter interface {
	Writer
	RunListWriter
}

// New returns the writer for format. An empty format means text.
func New(format string, output io.Writer, version string) (FormatWriter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText:
		return NewSimpleWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint(), WithVersion(version)), nil
	case FormatMarkdown, "md":
		return NewMarkdownWriter(output), nil
	default:
		return nil, fmt.Errorf("%q: %w", format, ErrUnknownFormat)
	}
}

// ForFile returns the summary writer for a report file, chosen by extension:
// .json and .md/.markdown select those formats, anything else is text with
// every section shown.
func ForFile(path string, output io.Writer, version string) Writer {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return NewJSONWriter(output, WithPrettyPrint(), WithVersion(version))
	case ".md", ".markdown":
		return NewMarkdownWriter(output)
	default:
		return NewSimpleWriter(output, WithShowEmpty(true))
	}
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the summary to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(summary *model.RunSummary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// statusText describes how a run ended.
func statusText(summary *model.RunSummary) string {
	switch summary.Status() {
	case "failed":
		return "Failed - " + summary.Error
	case "interrupted":
		return "Interrupted (partial export)"
	case "limit_reached":
		return "Page limit reached"
	default:
		return "Complete"
	}
}

// outcomeLabel is the display name of a skip outcome.
func outcomeLabel(o model.Outcome) string {
	switch o {
	case model.OutcomeFetchFailed:
		return "Fetch failed"
	case model.OutcomeRobotsDisallowed:
		return "Disallowed by robots.txt"
	case model.OutcomeExtractFailed:
		return "No extractable content"
	case model.OutcomeDuplicate:
		return "Duplicate (redirect)"
	default:
		return string(o)
	}
}

// sortedKeys returns the keys of a count map with nonzero values, sorted.
func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k, n := range m {
		if n > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
