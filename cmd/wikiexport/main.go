// Package main provides the entry point for the wikiexport CLI.
//
// wikiexport crawls a MediaWiki site from a seed page and writes every
// article as a Markdown file plus a JSON Lines manifest.
//
// Usage:
//
//	wikiexport crawl <seed-url>
//	wikiexport history
//	wikiexport compare <run-a> <run-b>
//
// See --help for all available options.
package main

// main is the entry point for wikiexport.
func main() {
	Execute()
}
