package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/giygas/priorauth-checker/lookup"
)

// NewImportCmd creates the "import" subcommand.
func NewImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Build the SQLite reference table from a CSV export",
		Long: "Reads a CSV with the columns NCD_mnl_sect_title, NCD_id and NCD_vrsn_num " +
			"and inserts its rows, in file order, into the ncd_lookup table of the SQLite file.",
		Args: cobra.NoArgs,
		RunE: runImport,
	}

	cmd.Flags().String("csv", "", "CSV export to import")
	cmd.Flags().String("db", "", "SQLite file to create or extend")
	cmd.Flags().Bool("truncate", false, "Remove existing rows before importing")
	_ = cmd.MarkFlagRequired("csv")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runImport(cmd *cobra.Command, _ []string) error {
	csvPath, _ := cmd.Flags().GetString("csv")
	dbPath, _ := cmd.Flags().GetString("db")
	truncate, _ := cmd.Flags().GetBool("truncate")

	f, err := os.Open(csvPath)
	if err != nil {
		return exitError(exitUsage, "open csv: %v", err)
	}
	defer f.Close()

	report, err := lookup.Import(cmd.Context(), f, dbPath, lookup.ImportOptions{Truncate: truncate})
	if err != nil {
		return exitError(exitFailure, "import: %v", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Imported %d rows into %s\n", report.Inserted, dbPath)
	if report.Skipped > 0 {
		fmt.Fprintf(out, "Skipped %d of %d rows, see the log for details\n", report.Skipped, report.Rows)
	}
	return nil
}
