package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spectracehq/audit-sdk-go/compliance"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Validate and inspect compliance rulesets",
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate <ruleset-file>",
	Short: "Compile a ruleset file and report errors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rules, err := compliance.LoadFile(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ok: %d rule(s)\n", rules.Len())
		return nil
	},
}

var rulesShowCmd = &cobra.Command{
	Use:   "show [ruleset-file]",
	Short: "List the rules in a ruleset file, or the built-in rules",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			rules *compliance.RuleSet
			err   error
		)
		if len(args) == 1 {
			rules, err = compliance.LoadFile(args[0])
		} else {
			rules, err = loadRules("")
			if err == nil && rules == nil {
				rules = compliance.DefaultRuleSet()
			}
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOut {
			return printJSON(out, rules.Rules())
		}
		fmt.Fprintf(out, "%-24s %-10s %-6s %s\n", "ID", "SEVERITY", "SCOPE", "NAME")
		for _, r := range rules.Rules() {
			scope := string(r.Scope)
			if scope == "" {
				scope = "step"
			}
			fmt.Fprintf(out, "%-24s %-10s %-6s %s\n", r.ID, r.Severity, scope, r.Name)
		}
		return nil
	},
}

var rulesSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema ruleset files are validated against",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		schema, err := compliance.Schema()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(schema))
		return nil
	},
}

func init() {
	rulesCmd.AddCommand(rulesValidateCmd)
	rulesCmd.AddCommand(rulesShowCmd)
	rulesCmd.AddCommand(rulesSchemaCmd)
	rootCmd.AddCommand(rulesCmd)
}
