// Package httpclient builds the HTTP clients used to talk to wikis.
//
// A Client optionally routes every connection through a SOCKS5 proxy,
// keeps a cookie jar for the lifetime of a crawl, and injects the
// configured User-Agent and per-site headers into every request,
// including redirect hops.
//
// The package is designed to be used with dependency injection: create a
// Client and pass the *http.Client it builds to the fetcher rather than
// relying on http.DefaultClient.
package httpclient
