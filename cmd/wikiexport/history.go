package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/nao1215/wikiexport/internal/config"
	"github.com/nao1215/wikiexport/internal/database"
	"github.com/nao1215/wikiexport/internal/report"
	"github.com/spf13/cobra"
)

// defaultHistoryLimit is the number of runs listed by default.
const defaultHistoryLimit = 20

// addHistoryFlags adds the flags shared by the commands that read history.
func addHistoryFlags(cmd *cobra.Command) {
	cmd.Flags().String("history-dir", config.XDGDataDir(),
		"Directory of the history database")
	cmd.Flags().String("format", config.DefaultReportFormat,
		"Output format: text, json or markdown")
}

// openHistory opens the existing history database named by --history-dir
// and returns a writer for --format.
func openHistory(cmd *cobra.Command) (*database.HistoryDB, report.FormatWriter, error) {
	dir, err := cmd.Flags().GetString("history-dir")
	if err != nil {
		return nil, nil, err
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return nil, nil, err
	}

	// Resolve the writer first so a bad --format fails without touching the database.
	writer, err := report.New(format, cmd.OutOrStdout(), getVersion())
	if err != nil {
		return nil, nil, err
	}

	db, err := database.Open(dir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return nil, nil, err
	}
	return db, writer, nil
}

// parseRunID parses a positional run ID.
func parseRunID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid run ID %q: must be a positive integer", arg)
	}
	return id, nil
}

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded crawl runs",
		Long: `History lists the crawl runs recorded in the history database, newest
first. Use 'history show <id>' to see the outcome of every page in a run.

History is only a record: a crawl never reads it and always starts again
from the seed.

Examples:
  # List the last 20 runs
  wikiexport history

  # List every run as JSON
  wikiexport history --limit 0 --format json

  # Show the skipped pages of run 3
  wikiexport history show 3`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	addHistoryFlags(cmd)
	cmd.Flags().IntP("limit", "l", defaultHistoryLimit,
		"Maximum number of runs to list (0 lists all)")

	cmd.AddCommand(newHistoryShowCmd())

	return cmd
}

// runHistoryCmd lists runs.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	if limit < 0 {
		return errors.New("invalid limit: must be non-negative (0 lists all)")
	}

	db, writer, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(context.Background(), limit)
	if err != nil {
		return err
	}

	_, err = writer.WriteRuns(runs)
	return err
}

// newHistoryShowCmd creates the history show subcommand.
func newHistoryShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the page outcomes of one run",
		Long: `Show prints one run and the outcome of every URL it attempted.
Text output lists only skipped pages unless --all is given.`,
		Args: cobra.ExactArgs(1),
		RunE: runHistoryShowCmd,
	}

	addHistoryFlags(cmd)
	cmd.Flags().BoolP("all", "a", false,
		"List written pages too (text output)")

	return cmd
}

// runHistoryShowCmd prints one run.
func runHistoryShowCmd(cmd *cobra.Command, args []string) error {
	id, err := parseRunID(args[0])
	if err != nil {
		return err
	}
	all, err := cmd.Flags().GetBool("all")
	if err != nil {
		return err
	}

	db, writer, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	// --all switches the text writer to verbose.
	if _, ok := writer.(*report.SimpleWriter); ok && all {
		writer = report.NewSimpleWriter(cmd.OutOrStdout(), report.WithVerbose(true))
	}

	ctx := context.Background()
	run, err := db.GetRun(ctx, id)
	if err != nil {
		return err
	}
	pages, err := db.ListPages(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list pages: %w", err)
	}

	_, err = writer.WriteRun(run, pages)
	return err
}
