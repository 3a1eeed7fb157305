package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

// NewCompareCmd creates the compare command.
// It compares the pages written by two recorded runs.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [run-a] [run-b]",
		Short: "Compare the pages of two crawl runs",
		Long: `Compare shows how an export changed between two recorded runs:
- Added pages were written by the second run only
- Removed pages were written by the first run only
- Changed pages were written by both with a different Markdown body

Pages are matched by their final source URL and compared by the sha256
recorded in the manifest. With no arguments the two most recent runs are
compared; with one argument that run is compared with the latest run.

Examples:
  # Compare the two most recent runs
  wikiexport compare

  # Compare run 3 with run 7
  wikiexport compare 3 7

  # Output the comparison as Markdown
  wikiexport compare --format markdown 3 7`,
		Args: cobra.MaximumNArgs(2),
		RunE: runCompareCmd,
	}

	addHistoryFlags(cmd)

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	// Validate arguments before opening the database.
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := parseRunID(arg)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	db, writer, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()

	if len(ids) < 2 {
		runs, err := db.ListRuns(ctx, 2)
		if err != nil {
			return err
		}
		switch {
		case len(ids) == 1 && len(runs) > 0:
			ids = append(ids, runs[0].ID)
		case len(ids) == 0 && len(runs) == 2:
			ids = []int64{runs[1].ID, runs[0].ID}
		default:
			return errors.New("at least two recorded runs are needed (use 'wikiexport history' to list runs)")
		}
	}

	cmp, err := db.ComparePages(ctx, ids[0], ids[1])
	if err != nil {
		return err
	}

	_, err = writer.WriteComparison(cmp)
	return err
}
