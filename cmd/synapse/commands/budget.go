package commands

import (
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/synapselabs/synapse/privacy"
)

var (
	budgetSinceFlag        string
	resetActorFlag         string
	resetJustificationFlag string
)

// BudgetCmd inspects and administers the privacy budget ledger.
var BudgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Show the privacy budget ledger",
	Long: `Show the process-wide privacy budget: total, spent, remaining, and the
append-only consumption history aggregated per mechanism.

Examples:
  synapse budget
  synapse budget --since 2026-08-01T00:00:00Z
  synapse budget reset --actor alice --justification "new reporting period"`,
	RunE: runBudgetShow,
}

var budgetResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset spent budget (privileged, always audited)",
	Long: `Zero the spent privacy budget.

This voids every differential-privacy guarantee issued under the prior budget
window. The reset is appended to the audit ledger with the acting principal
and justification; it is never silent.`,
	RunE: runBudgetReset,
}

func init() {
	BudgetCmd.AddCommand(budgetResetCmd)

	BudgetCmd.Flags().StringVar(&budgetSinceFlag, "since", "", "Only show history at or after this RFC3339 timestamp")
	budgetResetCmd.Flags().StringVar(&resetActorFlag, "actor", "", "Acting principal (required)")
	budgetResetCmd.Flags().StringVar(&resetJustificationFlag, "justification", "", "Why the budget is being reset (required)")
	budgetResetCmd.MarkFlagRequired("actor")
	budgetResetCmd.MarkFlagRequired("justification")
}

func runBudgetShow(cmd *cobra.Command, args []string) error {
	var since time.Time
	if budgetSinceFlag != "" {
		parsed, err := time.Parse(time.RFC3339, budgetSinceFlag)
		if err != nil {
			return err
		}
		since = parsed
	}

	eng, err := buildEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	report := eng.budget.Report(since)

	pterm.DefaultSection.Println("Privacy Budget")
	pterm.Printf("Total:     %.4f\n", report.Total)
	pterm.Printf("Spent:     %.4f\n", report.Spent)
	pterm.Printf("Remaining: %.4f\n", report.Remaining)

	if len(report.Mechanisms) > 0 {
		pterm.Println()
		data := pterm.TableData{{"Mechanism", "Entries", "Epsilon"}}
		for _, mechanism := range []string{
			privacy.MechanismLaplace,
			privacy.MechanismGaussian,
			privacy.MechanismExponential,
			privacy.MechanismReset,
		} {
			usage, ok := report.Mechanisms[mechanism]
			if !ok {
				continue
			}
			data = append(data, []string{
				mechanism,
				pterm.Sprintf("%d", usage.Count),
				pterm.Sprintf("%.4f", usage.TotalEpsilon),
			})
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
			return err
		}
	}

	return nil
}

func runBudgetReset(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	entry, err := eng.budget.Reset(resetActorFlag, resetJustificationFlag)
	if err != nil {
		return err
	}

	pterm.Warning.Println("Privacy budget reset. All guarantees issued under the prior window are void.")
	pterm.Printf("Audited at %s by %s: %s\n",
		entry.Timestamp.Format(time.RFC3339), entry.Actor, entry.Note)
	return nil
}
