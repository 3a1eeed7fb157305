package extract

import (
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extractTitle returns the page title, trying in order the MediaWiki
// heading, og:title, <title>, the first <h1>, and finally the URL.
func extractTitle(doc *goquery.Document, source *url.URL) string {
	candidates := []func() string{
		func() string { return doc.Find("#firstHeading").First().Text() },
		func() string {
			content, _ := doc.Find(`meta[property="og:title"]`).First().Attr("content")
			return content
		},
		func() string { return doc.Find("head title").First().Text() },
		func() string { return doc.Find("h1").First().Text() },
	}
	for _, candidate := range candidates {
		if title := collapseSpace(candidate()); title != "" {
			return title
		}
	}
	return titleFromURL(source)
}

// titleFromURL derives a readable title from the title query parameter or
// the last path segment, falling back to the host name.
func titleFromURL(u *url.URL) string {
	raw := u.Query().Get("title")
	if raw == "" {
		raw = path.Base(strings.TrimRight(u.Path, "/"))
		if raw == "." || raw == "/" {
			raw = ""
		}
		if unescaped, err := url.PathUnescape(raw); err == nil {
			raw = unescaped
		}
	}
	title := collapseSpace(strings.ReplaceAll(raw, "_", " "))
	if title == "" {
		return u.Hostname()
	}
	return title
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
