package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/wikiexport/internal/database"
	"github.com/nao1215/wikiexport/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// version is written into the summary wrapper.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion sets the tool version recorded in summary output.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// JSONReport wraps a run summary with the version that produced it.
type JSONReport struct {
	// Version is the wikiexport version that generated this report.
	Version string `json:"version"`

	// Status is the one-word run status.
	Status string `json:"status"`

	// Summary is the end-of-run summary.
	Summary *model.RunSummary `json:"summary"`
}

// JSONRun is one run with its page outcomes.
type JSONRun struct {
	Run   *database.RunRecord `json:"run"`
	Pages []model.PageResult  `json:"pages"`
}

// Write outputs the run summary wrapped with metadata.
func (w *JSONWriter) Write(summary *model.RunSummary) (int, error) {
	return w.writeJSON(&JSONReport{
		Version: w.version,
		Status:  summary.Status(),
		Summary: summary,
	})
}

// WriteRuns outputs the run list as a JSON array.
func (w *JSONWriter) WriteRuns(runs []database.RunRecord) (int, error) {
	if runs == nil {
		runs = []database.RunRecord{}
	}
	return w.writeJSON(runs)
}

// WriteRun outputs one run and its pages.
func (w *JSONWriter) WriteRun(run *database.RunRecord, pages []model.PageResult) (int, error) {
	if pages == nil {
		pages = []model.PageResult{}
	}
	return w.writeJSON(&JSONRun{Run: run, Pages: pages})
}

// WriteComparison outputs a run comparison.
func (w *JSONWriter) WriteComparison(cmp *database.Comparison) (int, error) {
	return w.writeJSON(cmp)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}
