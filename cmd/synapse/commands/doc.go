package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/synapselabs/synapse/storage"
)

// DocCmd manages documents in the bundled silo document store.
var DocCmd = &cobra.Command{
	Use:   "doc",
	Short: "Manage silo documents",
	Long: `Manage documents in the bundled silo-local document store.

Documents added here are what the query engine's bundled searcher retrieves.
Embedding-indexed documents come from an external pipeline; this command only
handles plain text content.

Examples:
  synapse doc add --silo eng-docs --content "Deployment runbook: ..."
  synapse doc rm 2f1c...`,
}

var (
	docSiloFlag    string
	docContentFlag string
)

var docAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a text document to a silo",
	RunE:  runDocAdd,
}

var docRmCmd = &cobra.Command{
	Use:   "rm <document-id>",
	Short: "Remove a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocRm,
}

func init() {
	DocCmd.AddCommand(docAddCmd)
	DocCmd.AddCommand(docRmCmd)

	docAddCmd.Flags().StringVar(&docSiloFlag, "silo", "", "Silo ID the document belongs to (required)")
	docAddCmd.Flags().StringVar(&docContentFlag, "content", "", "Document content (required)")
	docAddCmd.MarkFlagRequired("silo")
	docAddCmd.MarkFlagRequired("content")
}

func runDocAdd(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	// The silo must exist; documents in an unknown partition are unreachable.
	if _, err := eng.registry.Get(docSiloFlag); err != nil {
		return err
	}

	doc := &storage.Document{
		SiloID:  docSiloFlag,
		Content: docContentFlag,
	}
	if err := eng.docs.Save(doc); err != nil {
		return err
	}

	pterm.Success.Printf("Added document %s to silo %s\n", doc.ID, docSiloFlag)
	return nil
}

func runDocRm(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	if err := eng.docs.Delete(args[0]); err != nil {
		return err
	}

	pterm.Success.Printf("Removed document %s\n", args[0])
	return nil
}
