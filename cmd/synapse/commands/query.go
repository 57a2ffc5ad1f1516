package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/synapselabs/synapse/types"
)

var (
	queryUserFlag       string
	queryOrgFlag        string
	queryTeamsFlag      []string
	queryRolesFlag      []string
	queryLevelsFlag     []string
	queryClearanceFlag  string
	queryProjectsFlag   []string
	queryMaxResultsFlag int
	queryEpsilonFlag    float64
	queryIncludeFlag    []string
	queryExcludeFlag    []string
)

// QueryCmd runs one federated query from the command line.
var QueryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Run a federated query across authorized silos",
	Long: `Run a privacy-protected query across every silo the given user context is
authorized to read.

Relevance scores in the output carry calibrated noise; the epsilon spent is
debited from the process-wide privacy budget and recorded in the audit ledger.

Examples:
  synapse query "incident response playbook" --user alice --org acme --team platform
  synapse query "Q3 roadmap" --user bob --org acme --level internal --max-results 5`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	QueryCmd.Flags().StringVar(&queryUserFlag, "user", "", "User ID issuing the query (required)")
	QueryCmd.Flags().StringVar(&queryOrgFlag, "org", "", "User's organization ID (required)")
	QueryCmd.Flags().StringSliceVar(&queryTeamsFlag, "team", nil, "Team memberships")
	QueryCmd.Flags().StringSliceVar(&queryRolesFlag, "role", nil, "Held roles")
	QueryCmd.Flags().StringSliceVar(&queryLevelsFlag, "level", []string{"internal"}, "Held access levels (public, internal, confidential, restricted)")
	QueryCmd.Flags().StringVar(&queryClearanceFlag, "clearance", "", "Security clearance (confidential, secret, top_secret)")
	QueryCmd.Flags().StringSliceVar(&queryProjectsFlag, "project", nil, "Project memberships")
	QueryCmd.Flags().IntVar(&queryMaxResultsFlag, "max-results", 0, "Result cap (0 uses the configured default)")
	QueryCmd.Flags().Float64Var(&queryEpsilonFlag, "epsilon", 0, "Per-query privacy budget (0 uses the configured default)")
	QueryCmd.Flags().StringSliceVar(&queryIncludeFlag, "include-silo", nil, "Restrict the query to these silo IDs")
	QueryCmd.Flags().StringSliceVar(&queryExcludeFlag, "exclude-silo", nil, "Exclude these silo IDs")

	QueryCmd.MarkFlagRequired("user")
	QueryCmd.MarkFlagRequired("org")
}

func runQuery(cmd *cobra.Command, args []string) error {
	user, err := buildUserContext()
	if err != nil {
		return err
	}

	eng, err := buildEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	resp, err := eng.router.Route(context.Background(), types.QueryRequest{
		Query:         args[0],
		User:          user,
		MaxResults:    queryMaxResultsFlag,
		EpsilonBudget: queryEpsilonFlag,
		IncludeSilos:  queryIncludeFlag,
		ExcludeSilos:  queryExcludeFlag,
	})
	if err != nil {
		return err
	}

	renderResponse(resp)
	return nil
}

func buildUserContext() (types.UserContext, error) {
	levels := make([]types.Classification, 0, len(queryLevelsFlag))
	for _, name := range queryLevelsFlag {
		level, err := types.ParseClassification(name)
		if err != nil {
			return types.UserContext{}, err
		}
		levels = append(levels, level)
	}

	clearance, err := types.ParseClearance(queryClearanceFlag)
	if err != nil {
		return types.UserContext{}, err
	}

	return types.UserContext{
		UserID:         queryUserFlag,
		OrganizationID: queryOrgFlag,
		TeamIDs:        queryTeamsFlag,
		Roles:          queryRolesFlag,
		AccessLevels:   levels,
		Clearance:      clearance,
		Projects:       queryProjectsFlag,
	}, nil
}

func renderResponse(resp *types.QueryResponse) {
	if len(resp.Results) == 0 {
		pterm.Warning.Println("No results")
	} else {
		data := pterm.TableData{{"Score", "Silo", "Team", "Content"}}
		for _, res := range resp.Results {
			data = append(data, []string{
				fmt.Sprintf("%.3f", res.RelevanceScore),
				res.Attribution.SiloName,
				res.Attribution.Team,
				truncate(res.Content, 70),
			})
		}
		pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	}

	if len(resp.Limitations) > 0 {
		pterm.Println()
		pterm.Info.Println("Limitations:")
		for _, lim := range resp.Limitations {
			name := lim.SiloName
			if name == "" {
				name = lim.SiloID
			}
			pterm.Printf("  %s: %s\n", name, lim.Reason)
		}
	}

	pterm.Println()
	pterm.Printf("Query %s: %d results, epsilon spent %.4f, elapsed %s\n",
		resp.QueryID, len(resp.Results), resp.EpsilonSpent, resp.Elapsed.Round(time.Millisecond))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
