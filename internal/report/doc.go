// Package report renders crawl results.
//
// Three formats are supported:
//   - SimpleWriter: human-readable text for the terminal
//   - JSONWriter: structured JSON for scripts
//   - MarkdownWriter: Markdown with tables and a mermaid outcome chart
//
// Every writer renders the end-of-run model.RunSummary (Writer) and the
// history views read from the database package (RunListWriter). New picks
// a writer by format name.
package report
