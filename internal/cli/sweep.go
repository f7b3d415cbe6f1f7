package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spectracehq/audit-sdk-go/cron"
)

var (
	sweepAgent  string
	sweepWindow int
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a drift sweep across recorded agents",
	Long: `Compute risk drift for every recorded agent (or a single one) and route
alerts for increasing trends through the configured channels.

Examples:
  spectrace sweep
  spectrace sweep --agent agent-1 --window 5`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().StringVar(&sweepAgent, "agent", "", "Sweep a single agent instead of all")
	sweepCmd.Flags().IntVar(&sweepWindow, "window", 0, "Recent window size (default from config)")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store)

	router, err := pipeline.AlertRouter()
	if err != nil {
		return err
	}
	sweeper, err := cron.NewSweeper(store,
		cron.WithRouter(router),
		cron.WithSink(buildSink()),
		cron.WithDriftConfig(pipeline.DriftConfig()),
	)
	if err != nil {
		return err
	}

	summary, err := sweeper.Sweep(ctx, cron.SweepConfig{AgentID: sweepAgent, RecentWindow: sweepWindow})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), summary)
	return nil
}
