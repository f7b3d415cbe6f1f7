package cli

import (
	"fmt"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/spectracehq/audit-sdk-go/history"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List agents with recorded audits",
	Args:  cobra.NoArgs,
	RunE:  runAgents,
}

func init() {
	rootCmd.AddCommand(agentsCmd)
}

type agentSummary struct {
	AgentID   string     `json:"agentId"`
	Audits    int        `json:"audits"`
	LastRisk  float64    `json:"lastRisk"`
	LastAudit *time.Time `json:"lastAudit,omitempty"`
}

func runAgents(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store)

	agents, err := store.Agents(ctx)
	if err != nil {
		return err
	}

	summaries := make([]agentSummary, 0, len(agents))
	for _, id := range agents {
		results, err := store.ListResults(ctx, history.ListQuery{AgentID: id})
		if err != nil {
			return err
		}
		s := agentSummary{AgentID: id, Audits: len(results)}
		if len(results) > 0 {
			s.LastRisk = results[0].RiskScore
			s.LastAudit = results[0].CompletedAt
		}
		summaries = append(summaries, s)
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(out, summaries)
	}
	if len(summaries) == 0 {
		fmt.Fprintln(out, "no recorded audits")
		return nil
	}
	fmt.Fprintf(out, "%-24s %8s  %-18s %s\n", "AGENT", "AUDITS", "LAST AUDIT", "LAST RISK")
	for _, s := range summaries {
		fmt.Fprintf(out, "%-24s %8s  %-18s %s\n",
			s.AgentID, humanize.Comma(int64(s.Audits)), ago(s.LastAudit), riskString(s.LastRisk))
	}
	return nil
}
