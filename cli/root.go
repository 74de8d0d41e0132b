// Package cli implements the priorauth-checker command line: the MCP server
// itself and the tools that build and query the reference table.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/giygas/priorauth-checker/config"
)

// NewRootCmd builds the command tree. Running it without a subcommand
// starts the server.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   config.AppName,
		Short: "MCP server fetching CMS National Coverage Determinations",
		Long: "priorauth-checker serves the fetch_ncd_policy MCP tool over stdio. " +
			"It resolves policy titles to NCD identifiers and fetches the matching CMS record.",
		// SilenceUsage prevents printing usage on every error
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         runServe,
	}

	root.PersistentFlags().Bool("verbose", false, "Log at info level even when ENV=test")

	root.Version = config.AppVersion
	root.SetVersionTemplate(fmt.Sprintf("%s version %s\n", config.AppName, config.AppVersion))

	root.AddCommand(NewServeCmd())
	root.AddCommand(NewImportCmd())
	root.AddCommand(NewLookupCmd())
	return root
}
