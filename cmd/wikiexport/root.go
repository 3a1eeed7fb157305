package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for wikiexport.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wikiexport",
		Short: "Export a MediaWiki site to Markdown files",
		Long: `wikiexport crawls a MediaWiki site starting from a seed page and writes
each article as a Markdown file under <out>/pages, together with a
manifest.jsonl that lists every exported page.

The crawl stays on the seed's host, honors robots.txt and Crawl-delay,
and waits between requests. Every run is recorded in a local history
database so that two exports of the same wiki can be compared.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
