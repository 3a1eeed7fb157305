// Package pipeline runs the crawl.
//
// Each URL taken from the frontier becomes a model.PageJob that passes
// through four steps in order: fetch, extract, persist and discover. A
// step fails the page by returning an error, and the remaining steps are
// skipped; links are therefore only discovered from pages that were
// written.
//
// The Runner owns the loop around the pipeline. It processes one page at a
// time, classifies every outcome into the run summary, stops on the page
// limit or cancellation, and finishes the output (relinking) at the end.
// Only an unreachable seed or an output failure ends a run with an error.
package pipeline
