package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/wikiexport/internal/database"
	"github.com/nao1215/wikiexport/internal/model"
)

// timeLayout is used for every timestamp in text output.
const timeLayout = "2006-01-02 15:04:05 MST"

// SimpleWriter outputs human-readable text reports.
// Plain ASCII formatting keeps the output readable when piped to a file.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with nothing to list are shown.
	showEmpty bool

	// verbose lists every page in WriteRun, not only the skipped ones.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the run summary in human-readable format.
func (w *SimpleWriter) Write(summary *model.RunSummary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeCounts(&sb, summary)
	w.writeSkipped(&sb, summary)
	w.writeErrorKinds(&sb, summary)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, summary *model.RunSummary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        WIKIEXPORT SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	if summary.RunID > 0 {
		sb.WriteString(fmt.Sprintf("Run:            #%d\n", summary.RunID))
	}
	sb.WriteString(fmt.Sprintf("Seed URL:       %s\n", summary.SeedURL))
	sb.WriteString(fmt.Sprintf("Output:         %s\n", summary.OutputDir))
	sb.WriteString(fmt.Sprintf("Started:        %s\n", summary.StartedAt.Format(timeLayout)))
	sb.WriteString(fmt.Sprintf("Elapsed:        %s\n", summary.Elapsed().Round(time.Millisecond)))
	sb.WriteString(fmt.Sprintf("Status:         %s\n", statusText(summary)))
	sb.WriteString("\n")
}

// writeCounts writes the page counters.
func (w *SimpleWriter) writeCounts(sb *strings.Builder, summary *model.RunSummary) {
	writeSection(sb, "PAGES")

	sb.WriteString(fmt.Sprintf("  Attempted:   %d\n", summary.Attempted))
	sb.WriteString(fmt.Sprintf("  Written:     %d\n", summary.Written))
	sb.WriteString(fmt.Sprintf("  Skipped:     %d\n", summary.TotalSkipped()))
	sb.WriteString(fmt.Sprintf("  Discovered:  %d\n", summary.Discovered))
	sb.WriteString(fmt.Sprintf("  Relinked:    %d\n", summary.Relinked))
	sb.WriteString("\n")
}

// writeSkipped writes the skipped pages grouped by outcome.
func (w *SimpleWriter) writeSkipped(sb *strings.Builder, summary *model.RunSummary) {
	outcomes := summary.SkippedOutcomes()
	if len(outcomes) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "SKIPPED")
	if len(outcomes) == 0 {
		sb.WriteString("  No pages skipped\n")
	}
	for _, o := range outcomes {
		sb.WriteString(fmt.Sprintf("  [-] %-28s %d\n", outcomeLabel(o), summary.Skipped[o]))
	}
	sb.WriteString("\n")
}

// writeErrorKinds writes failure counts by error kind.
func (w *SimpleWriter) writeErrorKinds(sb *strings.Builder, summary *model.RunSummary) {
	kinds := sortedKeys(summary.ErrorKinds)
	if len(kinds) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "ERRORS BY KIND")
	if len(kinds) == 0 {
		sb.WriteString("  No errors\n")
	}
	for _, k := range kinds {
		sb.WriteString(fmt.Sprintf("  [!] %-28s %d\n", k, summary.ErrorKinds[k]))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

// WriteRuns outputs the run history as a table.
func (w *SimpleWriter) WriteRuns(runs []database.RunRecord) (int, error) {
	var sb strings.Builder

	if len(runs) == 0 {
		sb.WriteString("No runs recorded.\n")
		return w.output.Write([]byte(sb.String()))
	}

	sb.WriteString(fmt.Sprintf("%-6s %-20s %-14s %7s %7s %7s  %s\n",
		"ID", "STARTED", "STATUS", "PAGES", "WRITTEN", "SKIPPED", "SEED"))
	sb.WriteString(strings.Repeat("-", 100))
	sb.WriteString("\n")
	for _, run := range runs {
		sb.WriteString(fmt.Sprintf("%-6d %-20s %-14s %7d %7d %7d  %s\n",
			run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Status,
			run.Attempted,
			run.Written,
			run.Skipped,
			truncateString(run.SeedURL, 60),
		))
	}

	return w.output.Write([]byte(sb.String()))
}

// WriteRun outputs one run with its page outcomes.
// Written pages are listed only in verbose mode.
func (w *SimpleWriter) WriteRun(run *database.RunRecord, pages []model.PageResult) (int, error) {
	var sb strings.Builder

	writeSection(&sb, fmt.Sprintf("RUN #%d", run.ID))
	sb.WriteString(fmt.Sprintf("Seed URL:    %s\n", run.SeedURL))
	sb.WriteString(fmt.Sprintf("Output:      %s\n", run.OutputDir))
	sb.WriteString(fmt.Sprintf("Started:     %s\n", run.StartedAt.Local().Format(timeLayout)))
	if !run.EndedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("Ended:       %s\n", run.EndedAt.Local().Format(timeLayout)))
	}
	sb.WriteString(fmt.Sprintf("Status:      %s\n", run.Status))
	sb.WriteString(fmt.Sprintf("Pages:       %d attempted, %d written, %d skipped, %d discovered\n",
		run.Attempted, run.Written, run.Skipped, run.Discovered))
	if run.Summary != nil && run.Summary.Error != "" {
		sb.WriteString(fmt.Sprintf("Error:       %s\n", run.Summary.Error))
	}
	sb.WriteString("\n")

	for _, p := range pages {
		if p.Outcome == model.OutcomeWritten {
			if w.verbose {
				sb.WriteString(fmt.Sprintf("  [+] %s -> %s\n", p.URL, p.Filename))
			}
			continue
		}
		line := fmt.Sprintf("  [-] %s (%s)", p.URL, outcomeLabel(p.Outcome))
		if p.Error != "" {
			line += ": " + truncateString(p.Error, 80)
		}
		sb.WriteString(line + "\n")
	}

	return w.output.Write([]byte(sb.String()))
}

// WriteComparison outputs the page differences between two runs.
func (w *SimpleWriter) WriteComparison(cmp *database.Comparison) (int, error) {
	var sb strings.Builder

	writeSection(&sb, fmt.Sprintf("COMPARE RUN #%d -> #%d", cmp.RunA, cmp.RunB))

	sb.WriteString(fmt.Sprintf("  Added:      %d\n", len(cmp.Added)))
	sb.WriteString(fmt.Sprintf("  Removed:    %d\n", len(cmp.Removed)))
	sb.WriteString(fmt.Sprintf("  Changed:    %d\n", len(cmp.Changed)))
	sb.WriteString(fmt.Sprintf("  Unchanged:  %d\n\n", cmp.Unchanged))

	for _, d := range cmp.Added {
		sb.WriteString(fmt.Sprintf("  [+] %s (%s)\n", d.SourceURL, d.FileB))
	}
	for _, d := range cmp.Removed {
		sb.WriteString(fmt.Sprintf("  [-] %s (%s)\n", d.SourceURL, d.FileA))
	}
	for _, d := range cmp.Changed {
		sb.WriteString(fmt.Sprintf("  [~] %s (%s)\n", d.SourceURL, d.FileB))
	}

	return w.output.Write([]byte(sb.String()))
}

// writeSection writes a titled divider.
func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}
