// Package config provides configuration structures and utilities for wikiexport.
// It defines the crawl policy (seed, scope, limits, politeness), output options,
// and the optional per-wiki YAML site file.
package config
