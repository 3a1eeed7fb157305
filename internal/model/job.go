package model

import "time"

// PageJob carries one frontier entry through the per-page pipeline.
// Each step fills in the fields it owns; later steps read what earlier
// steps produced.
type PageJob struct {
	// URL is the normalized URL taken from the frontier.
	URL string

	// Order is the discovery order of the URL.
	Order int

	// Seed is true for the crawl's starting URL.
	Seed bool

	// StartedAt is when the job was created.
	StartedAt time.Time

	// Response is set by the fetch step.
	Response *Response

	// Page is set by the extract step.
	Page *ExtractedPage

	// Record is set by the persist step.
	Record *PageRecord

	// Discovered is the number of links the discover step added to the frontier.
	Discovered int

	// StepsDone lists completed step names in order.
	StepsDone []string
}

// NewPageJob creates a job for the given frontier URL.
func NewPageJob(url string, order int, seed bool) *PageJob {
	return &PageJob{
		URL:       url,
		Order:     order,
		Seed:      seed,
		StartedAt: time.Now(),
	}
}

// SourceURL returns the URL whose content the job processed: the redirect
// landing URL when there is one, otherwise the requested URL.
func (j *PageJob) SourceURL() string {
	if j.Response != nil && j.Response.FinalURL != "" {
		return j.Response.FinalURL
	}
	return j.URL
}

// Aliases returns the other URLs that lead to the same content.
func (j *PageJob) Aliases() []string {
	if j.Response != nil && j.Response.Redirected() {
		return []string{j.URL}
	}
	return nil
}
