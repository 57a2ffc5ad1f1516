package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/synapselabs/synapse/cmd/synapse/commands"
	"github.com/synapselabs/synapse/logger"
	"github.com/synapselabs/synapse/version"
)

var jsonLogs bool

var rootCmd = &cobra.Command{
	Use:   "synapse",
	Short: "Synapse - privacy-aware federated query engine",
	Long: `Synapse - privacy-aware federated knowledge queries.

A query fans out to every silo the caller is authorized to read, blends the
retrieved material with calibrated differential-privacy noise, and merges the
results into one ranked, attributed answer. Budget consumption is tracked in
an append-only audit ledger.

Available commands:
  query  - Run a federated query
  silo   - Manage silo registrations
  doc    - Manage silo documents
  budget - Inspect or reset the privacy budget ledger

Examples:
  synapse query "incident response playbook" --user alice --org acme
  synapse silo ls
  synapse budget
  synapse budget reset --actor alice --justification "new reporting period"`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Emit structured JSON logs")

	rootCmd.AddCommand(commands.QueryCmd)
	rootCmd.AddCommand(commands.SiloCmd)
	rootCmd.AddCommand(commands.DocCmd)
	rootCmd.AddCommand(commands.BudgetCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.String())
	},
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
