package commands

import (
	"encoding/json"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/synapselabs/synapse/errors"
	"github.com/synapselabs/synapse/types"
)

// SiloCmd manages silo registrations.
var SiloCmd = &cobra.Command{
	Use:   "silo",
	Short: "Manage silo registrations",
	Long: `Manage the registry of known silos.

Silo metadata (ownership, classification, access rules) is administered here
and persisted to the database; the query engine reads it to resolve candidates
and evaluate permissions.

Examples:
  synapse silo ls
  synapse silo register --file eng-docs.json
  synapse silo rm eng-docs`,
}

var siloRegisterFileFlag string

var siloLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List registered silos",
	RunE:  runSiloLs,
}

var siloRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a silo from a JSON metadata file",
	RunE:  runSiloRegister,
}

var siloRmCmd = &cobra.Command{
	Use:   "rm <silo-id>",
	Short: "Remove a silo registration",
	Args:  cobra.ExactArgs(1),
	RunE:  runSiloRm,
}

func init() {
	SiloCmd.AddCommand(siloLsCmd)
	SiloCmd.AddCommand(siloRegisterCmd)
	SiloCmd.AddCommand(siloRmCmd)

	siloRegisterCmd.Flags().StringVar(&siloRegisterFileFlag, "file", "", "Path to a JSON SiloMetadata file (required)")
	siloRegisterCmd.MarkFlagRequired("file")
}

func runSiloLs(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	silos := eng.registry.List()
	if len(silos) == 0 {
		pterm.Info.Println("No silos registered")
		return nil
	}

	data := pterm.TableData{{"ID", "Name", "Org", "Team", "Classification", "Revision"}}
	for _, meta := range silos {
		data = append(data, []string{
			meta.ID,
			meta.Name,
			meta.OrganizationID,
			meta.TeamID,
			meta.Classification.String(),
			pterm.Sprintf("%d", meta.Revision),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func runSiloRegister(cmd *cobra.Command, args []string) error {
	blob, err := os.ReadFile(siloRegisterFileFlag)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", siloRegisterFileFlag)
	}

	var meta types.SiloMetadata
	if err := json.Unmarshal(blob, &meta); err != nil {
		return errors.Wrapf(err, "malformed silo metadata in %s", siloRegisterFileFlag)
	}

	eng, err := buildEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	if err := eng.registry.Register(meta); err != nil {
		return err
	}
	registered, err := eng.registry.Get(meta.ID)
	if err != nil {
		return err
	}
	if err := eng.siloStore.Save(registered); err != nil {
		return err
	}

	pterm.Success.Printf("Registered silo %s (%s)\n", meta.ID, meta.Name)
	return nil
}

func runSiloRm(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	if err := eng.registry.Delete(args[0]); err != nil {
		return err
	}
	if err := eng.siloStore.Delete(args[0]); err != nil {
		return err
	}

	pterm.Success.Printf("Removed silo %s\n", args[0])
	return nil
}
