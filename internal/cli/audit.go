package cli

import (
	"github.com/spf13/cobra"
)

var auditRulesPath string

var auditCmd = &cobra.Command{
	Use:   "audit <trace-file>",
	Short: "Run a full audit over a completed trace",
	Long: `Audit a completed execution trace: embed it into the similarity index,
score deception and rule compliance, and persist the result to the
history store.

The trace file is a JSON execution trace; "-" reads from stdin.

Examples:
  spectrace audit trace.json
  spectrace audit trace.json --rules ./rules.json --json
  cat trace.json | spectrace audit -`,
	Args: cobra.ExactArgs(1),
	RunE: runAudit,
}

var previewCmd = &cobra.Command{
	Use:   "preview <trace-file>",
	Short: "Audit a trace in any state without persisting anything",
	Long: `Preview an audit: score the trace without touching the similarity index
or the history store. Works on running and failed traces as well as
completed ones.`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

func init() {
	auditCmd.Flags().StringVar(&auditRulesPath, "rules", "", "Ruleset file replacing the built-in rules")
	previewCmd.Flags().StringVar(&auditRulesPath, "rules", "", "Ruleset file replacing the built-in rules")
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(previewCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	tr, err := readTraceFile(args[0])
	if err != nil {
		return err
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store)

	auditor, cleanup, err := buildAuditor(ctx, store, auditRulesPath)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := auditor.Audit(ctx, tr)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(cmd.OutOrStdout(), res)
	}
	printResult(cmd.OutOrStdout(), res)
	return nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	tr, err := readTraceFile(args[0])
	if err != nil {
		return err
	}

	auditor, cleanup, err := buildAuditor(ctx, nil, auditRulesPath)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := auditor.Preview(ctx, tr)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(cmd.OutOrStdout(), res)
	}
	printResult(cmd.OutOrStdout(), res)
	return nil
}
