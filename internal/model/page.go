package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Response is the result of fetching one URL.
type Response struct {
	// RequestURL is the normalized URL that was requested.
	RequestURL string `json:"request_url"`

	// FinalURL is the normalized URL of the response after redirects.
	// It equals RequestURL when no redirect happened.
	FinalURL string `json:"final_url"`

	// StatusCode is the HTTP status code of the final response.
	StatusCode int `json:"status_code"`

	// ContentType is the raw Content-Type header of the final response.
	ContentType string `json:"content_type"`

	// Body is the decompressed, UTF-8 decoded response body.
	// It is truncated at the fetcher's maximum body size.
	Body []byte `json:"-"`
}

// Redirected reports whether the request landed on a different URL.
func (r *Response) Redirected() bool {
	return r.FinalURL != "" && r.FinalURL != r.RequestURL
}

// ExtractedPage is what the content extractor produces for one document.
type ExtractedPage struct {
	// Title is the page title used for the heading and the filename.
	Title string

	// Markdown is the converted body, without front matter or title heading.
	Markdown string

	// Links are normalized same-site anchor targets found in the document,
	// in document order without duplicates.
	Links []string

	// PendingLinks are internal links that could not be resolved to a local
	// file at extraction time. They are left as absolute URLs in Markdown and
	// rewritten later if the target gets written.
	PendingLinks []string
}

// PageRecord is a successfully processed page.
// It is created once the page file is on disk and never mutated afterward.
type PageRecord struct {
	// Title is the extracted page title.
	Title string `json:"title"`

	// SourceURL is the normalized URL the content was served from.
	SourceURL string `json:"source_url"`

	// Filename is the file name under the pages directory.
	Filename string `json:"filename"`

	// FetchedAt is when the page was fetched.
	FetchedAt time.Time `json:"fetched_at"`

	// Hash is the SHA-256 of the Markdown body.
	Hash string `json:"sha256"`

	// Markdown is the body that was written.
	Markdown string `json:"-"`
}

// ComputeHash calculates the SHA-256 hash of the Markdown body.
// An empty body leaves Hash empty.
func (p *PageRecord) ComputeHash() {
	if p.Markdown == "" {
		p.Hash = ""
		return
	}
	sum := sha256.Sum256([]byte(p.Markdown))
	p.Hash = hex.EncodeToString(sum[:])
}

// ManifestEntry returns the manifest line for this record.
func (p *PageRecord) ManifestEntry() ManifestEntry {
	return ManifestEntry{
		Title:     p.Title,
		SourceURL: p.SourceURL,
		Filename:  p.Filename,
		FetchedAt: p.FetchedAt.UTC().Format(time.RFC3339),
		Hash:      p.Hash,
	}
}

// ManifestEntry is one JSON object in manifest.jsonl.
type ManifestEntry struct {
	Title     string `json:"title"`
	SourceURL string `json:"source_url"`
	Filename  string `json:"filename"`
	FetchedAt string `json:"fetched_at"`
	Hash      string `json:"sha256"`
}
