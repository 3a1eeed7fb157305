// Package crawler provides the crawl frontier and the polite fetcher.
//
// # Components
//
//   - Frontier: FIFO queue of normalized URLs with seen and visited sets
//     and an optional limit on attempted pages
//   - Scope: eligibility rules for discovered URLs (same host, wiki prefix,
//     MediaWiki namespaces, non-article views, glob patterns)
//   - Fetcher: HTTP GET with robots.txt, per-origin delay, redirect
//     scoping, decompression and charset decoding
//
// # Politeness
//
// Each origin's robots.txt is fetched once, before the first request to
// that origin, and cached for the fetcher's lifetime. Requests to the same
// origin are spaced by the effective delay: an explicit override, then the
// site file, then the robots.txt Crawl-delay, then the default.
//
// # Usage
//
//	frontier, err := crawler.NewFrontier(seed, crawler.WithMaxPages(100), crawler.WithScope(scope))
//	fetcher := crawler.NewFetcher(httpClient, crawler.WithUserAgent(ua))
//	for entry, ok := frontier.Dequeue(); ok; entry, ok = frontier.Dequeue() {
//		resp, err := fetcher.Fetch(ctx, entry.URL)
//		...
//	}
//
// Neither the Frontier nor the Fetcher is safe for concurrent use; the
// crawl loop is sequential.
package crawler
