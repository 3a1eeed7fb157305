package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/wikiexport/internal/database"
	"github.com/nao1215/wikiexport/internal/model"
)

// MarkdownWriter outputs reports in Markdown format, for keeping a crawl
// log next to the export or pasting it into an issue.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run summary in Markdown format.
func (w *MarkdownWriter) Write(summary *model.RunSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeCounts(md, summary)
	w.writeErrorKinds(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the run information table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *model.RunSummary) {
	md.H1("Wiki Export Summary")
	md.PlainText("")

	rows := [][]string{
		{"Seed URL", "`" + summary.SeedURL + "`"},
		{"Output", "`" + summary.OutputDir + "`"},
		{"Started", summary.StartedAt.Format(timeLayout)},
		{"Elapsed", summary.Elapsed().Round(time.Millisecond).String()},
		{"Status", w.getStatusText(summary)},
	}
	if summary.RunID > 0 {
		rows = append([][]string{{"Run", "#" + strconv.FormatInt(summary.RunID, 10)}}, rows...)
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// getStatusText returns the status text with an indicator.
func (w *MarkdownWriter) getStatusText(summary *model.RunSummary) string {
	switch summary.Status() {
	case "failed":
		return "❌ " + statusText(summary)
	case "interrupted", "limit_reached":
		return "⚠️ " + statusText(summary)
	default:
		return "✅ " + statusText(summary)
	}
}

// writeCounts writes the page counters, the outcome chart and a status alert.
func (w *MarkdownWriter) writeCounts(md *markdown.Markdown, summary *model.RunSummary) {
	md.H2("Pages")
	md.PlainText("")

	rows := [][]string{
		{"Attempted", strconv.Itoa(summary.Attempted)},
		{"Written", strconv.Itoa(summary.Written)},
	}
	for _, o := range summary.SkippedOutcomes() {
		rows = append(rows, []string{outcomeLabel(o), strconv.Itoa(summary.Skipped[o])})
	}
	rows = append(rows,
		[]string{"Discovered", strconv.Itoa(summary.Discovered)},
		[]string{"Relinked", strconv.Itoa(summary.Relinked)},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Pages", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	if summary.Attempted > 0 {
		w.writePieChart(md, summary)
	}
	w.writeAlert(md, summary)
}

// writePieChart writes a mermaid pie chart of page outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary *model.RunSummary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Page Outcomes"),
		piechart.WithShowData(true),
	)

	if summary.Written > 0 {
		chart.LabelAndIntValue("Written", uint64(summary.Written))
	}
	for _, o := range summary.SkippedOutcomes() {
		chart.LabelAndIntValue(outcomeLabel(o), uint64(summary.Skipped[o])) //nolint:gosec // counts are never negative
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert matching how the run ended.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, summary *model.RunSummary) {
	switch {
	case summary.Error != "":
		md.Cautionf("The crawl failed: %s", summary.Error)
	case summary.Interrupted:
		md.Warningf("The crawl was interrupted. %d page(s) were written before it stopped.", summary.Written)
	case summary.LimitReached:
		md.Importantf("The page limit stopped the crawl after %d page(s).", summary.Attempted)
	case summary.TotalSkipped() > 0:
		md.Note(strconv.Itoa(summary.TotalSkipped()) + " page(s) were skipped.")
	default:
		md.Tip("Every attempted page was exported.")
	}
	md.PlainText("")
}

// writeErrorKinds writes failure counts by error kind.
func (w *MarkdownWriter) writeErrorKinds(md *markdown.Markdown, summary *model.RunSummary) {
	kinds := sortedKeys(summary.ErrorKinds)
	if len(kinds) == 0 {
		return
	}

	md.H2("Errors")
	md.PlainText("")

	rows := make([][]string, len(kinds))
	for i, k := range kinds {
		rows[i] = []string{"`" + k + "`", strconv.Itoa(summary.ErrorKinds[k])}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Kind", "Count"},
		Rows:   rows,
	})
	md.PlainText("")
}

// WriteRuns outputs the run history as a table.
func (w *MarkdownWriter) WriteRuns(runs []database.RunRecord) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("Crawl History")
	md.PlainText("")

	if len(runs) == 0 {
		md.PlainText("No runs recorded.")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(runs))
	for i, run := range runs {
		rows[i] = []string{
			strconv.FormatInt(run.ID, 10),
			run.StartedAt.Local().Format(timeLayout),
			run.Status,
			strconv.Itoa(run.Written) + "/" + strconv.Itoa(run.Attempted),
			truncateString(run.SeedURL, 60),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"ID", "Started", "Status", "Written", "Seed"},
		Rows:   rows,
	})

	return len(md.String()), md.Build()
}

// WriteRun outputs one run with a table of its pages.
func (w *MarkdownWriter) WriteRun(run *database.RunRecord, pages []model.PageResult) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("Run #" + strconv.FormatInt(run.ID, 10))
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed URL", "`" + run.SeedURL + "`"},
			{"Output", "`" + run.OutputDir + "`"},
			{"Started", run.StartedAt.Local().Format(timeLayout)},
			{"Status", run.Status},
			{"Written", strconv.Itoa(run.Written) + "/" + strconv.Itoa(run.Attempted)},
		},
	})
	md.PlainText("")

	if len(pages) > 0 {
		md.H2("Pages")
		md.PlainText("")
		rows := make([][]string, len(pages))
		for i, p := range pages {
			file := p.Filename
			if file == "" {
				file = "-"
			}
			rows[i] = []string{truncateString(p.URL, 70), string(p.Outcome), file}
		}
		md.Table(markdown.TableSet{
			Header: []string{"URL", "Outcome", "File"},
			Rows:   rows,
		})
		md.PlainText("")

		for _, p := range pages {
			if p.Error != "" {
				md.Details(p.URL, p.Error)
			}
		}
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// WriteComparison outputs the page differences between two runs.
func (w *MarkdownWriter) WriteComparison(cmp *database.Comparison) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("Run #" + strconv.FormatInt(cmp.RunA, 10) + " vs #" + strconv.FormatInt(cmp.RunB, 10))
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Change", "Pages"},
		Rows: [][]string{
			{"Added", strconv.Itoa(len(cmp.Added))},
			{"Removed", strconv.Itoa(len(cmp.Removed))},
			{"Changed", strconv.Itoa(len(cmp.Changed))},
			{"Unchanged", strconv.Itoa(cmp.Unchanged)},
		},
	})
	md.PlainText("")

	w.writeDiffs(md, "Added", cmp.Added, func(d database.PageDiff) string { return d.FileB })
	w.writeDiffs(md, "Removed", cmp.Removed, func(d database.PageDiff) string { return d.FileA })
	w.writeDiffs(md, "Changed", cmp.Changed, func(d database.PageDiff) string { return d.FileB })

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeDiffs(md *markdown.Markdown, title string, diffs []database.PageDiff, file func(database.PageDiff) string) {
	if len(diffs) == 0 {
		return
	}
	md.H2(title)
	md.PlainText("")
	items := make([]string, len(diffs))
	for i, d := range diffs {
		items[i] = "`" + file(d) + "` " + d.SourceURL
	}
	md.BulletList(items...)
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [wikiexport](https://github.com/nao1215/wikiexport)*")
}
