package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/giygas/priorauth-checker/lookup"
)

// NewLookupCmd creates the "lookup" subcommand.
func NewLookupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup <title>",
		Short: "Print the reference rows matching a policy title",
		Args:  cobra.ExactArgs(1),
		RunE:  runLookup,
	}

	cmd.Flags().String("db", os.Getenv("LOOKUP_DB_PATH"), "SQLite reference table (built-in table when empty)")
	cmd.Flags().Int("limit", lookup.DefaultSearchLimit, "Maximum number of rows to print")

	return cmd
}

func runLookup(cmd *cobra.Command, args []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 1 {
		return exitError(exitUsage, "--limit must be at least 1")
	}

	ctx := cmd.Context()
	store, err := lookup.Open(ctx, dbPath)
	if err != nil {
		return exitError(exitFailure, "open reference table: %v", err)
	}
	defer store.Close()

	results, err := store.Search(ctx, args[0], limit)
	if err != nil {
		return exitError(exitFailure, "lookup: %v", err)
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintf(out, "No %s match found.\n", store.Source())
		return nil
	}

	fmt.Fprintf(out, "Found %d match(es):\n", len(results))
	for _, e := range results {
		fmt.Fprintf(out, "- %s (ID: %s, Version: %s)\n", e.Title, e.PolicyID, e.PolicyVersion)
	}
	return nil
}
