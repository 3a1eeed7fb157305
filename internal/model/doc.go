// Package model defines the data structures shared by the crawler, extractor,
// output writer, history database and report writers.
//
// This package contains the following main types:
//   - Response: a fetched HTTP response after redirects and decoding
//   - ExtractedPage: the Markdown candidate produced from one HTML document
//   - PageRecord: a persisted page, immutable once written
//   - ManifestEntry: one line of manifest.jsonl
//   - PageJob: the unit of work carried through the per-page pipeline
//   - RunSummary: the counts reported at the end of a crawl
//
// Error kinds (FetchError, ExtractError, IOError) live here as well so that
// every package can classify failures with errors.As without import cycles.
package model
