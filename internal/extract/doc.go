// Package extract turns a fetched wiki page into Markdown.
//
// Extraction runs in four passes over one parsed document: the title is
// read from the MediaWiki heading or page metadata, the main content
// element is located, chrome (navigation, sidebars, footers, edit links,
// scripts) is removed by a prioritized list of CSS selector rules, and the
// remaining tree is rendered block by block with the
// github.com/nao1215/markdown builder.
//
// Anchors that point back into the crawled site are reported as Links for
// the frontier. When a LinkResolver knows the file a target was written
// to, the Markdown link points at that file; otherwise it keeps the
// absolute URL and is listed in PendingLinks so the output writer can
// rewrite it after the crawl.
package extract
