package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spectracehq/audit-sdk-go/drift"
)

var (
	driftWindow int
	driftLimit  int
)

var driftCmd = &cobra.Command{
	Use:   "drift <agent-id>",
	Short: "Classify an agent's recent risk trend",
	Long: `Compare the agent's recent average risk against its older history and
classify the movement as increasing, decreasing, or stable.

Examples:
  spectrace drift agent-1
  spectrace drift agent-1 --window 5 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runDrift,
}

func init() {
	driftCmd.Flags().IntVar(&driftWindow, "window", 0, "Recent window size (default from config)")
	driftCmd.Flags().IntVar(&driftLimit, "limit", 200, "Maximum history length to load")
	rootCmd.AddCommand(driftCmd)
}

func runDrift(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	agentID := args[0]

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store)

	scores, err := store.RiskHistory(ctx, agentID, driftLimit)
	if err != nil {
		return err
	}

	cfg := pipeline.DriftConfig()
	if driftWindow > 0 {
		cfg.RecentWindow = driftWindow
	}
	res, err := drift.Compute(scores, cfg)
	if errors.Is(err, drift.ErrInsufficientHistory) {
		window := cfg.RecentWindow
		if window <= 0 {
			window = drift.DefaultConfig().RecentWindow
		}
		return fmt.Errorf("agent %s has %d recorded audit(s), drift needs at least %d", agentID, len(scores), 2*window)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(out, res)
	}
	fmt.Fprintf(out, "Agent %s: %s\n", agentID, trendString(res.Trend))
	fmt.Fprintf(out, "  Drift score:    %+.2f\n", res.Score)
	fmt.Fprintf(out, "  Recent avg:     %s (last %d audits)\n", riskString(res.RecentAvg), res.RecentWindow)
	fmt.Fprintf(out, "  Historical avg: %s (previous %d audits)\n", riskString(res.HistoricalAvg), res.HistoryLen-res.RecentWindow)
	return nil
}
