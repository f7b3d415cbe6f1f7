package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var similarK int

var similarCmd = &cobra.Command{
	Use:   "similar <trace-file>",
	Short: "Find recorded traces that behaved like a given trace",
	Long: `Embed a trace and search the similarity index for the nearest
previously audited traces. The query trace itself is not indexed.

Examples:
  spectrace similar trace.json
  spectrace similar trace.json -k 10 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runSimilar,
}

func init() {
	similarCmd.Flags().IntVarP(&similarK, "top", "k", 5, "Number of neighbors to return")
	rootCmd.AddCommand(similarCmd)
}

func runSimilar(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	tr, err := readTraceFile(args[0])
	if err != nil {
		return err
	}

	encoder, cleanup, err := buildEncoder(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	vec, err := encoder.Encode(ctx, tr)
	if err != nil {
		return err
	}
	matches, err := encoder.FindSimilar(ctx, vec, similarK)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(out, matches)
	}
	if len(matches) == 0 {
		fmt.Fprintln(out, "no indexed traces to compare against")
		return nil
	}
	fmt.Fprintf(out, "%-40s %s\n", "TRACE", "DISTANCE")
	for _, m := range matches {
		fmt.Fprintf(out, "%-40s %.4f\n", m.TraceID, m.Distance)
	}
	return nil
}
