// Package cli implements the spectrace command line: one-shot audits,
// similarity and drift queries, ruleset tooling, and the monitoring server.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spectracehq/audit-sdk-go/internal/config"
)

var (
	cfgFile string
	envFile string
	jsonOut bool
	verbose bool

	// pipeline holds the decoded --config file. Zero when none was given;
	// every section falls back to its package defaults.
	pipeline config.File
)

var rootCmd = &cobra.Command{
	Use:   "spectrace",
	Short: "Behavior audits for agent execution traces",
	Long: `spectrace audits recorded agent executions: it embeds traces for
similarity search, scores deception and rule compliance, and tracks
per-agent risk drift over time.

Core Commands:
  audit        Run a full audit over a completed trace
  preview      Audit a trace in any state without persisting anything
  similar      Find recorded traces that behaved like a given trace
  drift        Classify an agent's recent risk trend
  sweep        Run a drift sweep across recorded agents
  agents       List agents with recorded audits
  rules        Validate and inspect compliance rulesets
  serve        Serve the monitoring API over recorded audits

Environment variables override the --config file; flags override both.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

// Execute runs the CLI. The context carries the process signal handling and
// is threaded through every command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Pipeline config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Dotenv file to load (default: .env)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline events while running")
}

func initConfig(_ *cobra.Command, _ []string) error {
	config.LoadDotenv(envFile)

	path := strings.TrimSpace(cfgFile)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("AUDIT_CONFIG"))
	}
	if path == "" {
		return nil
	}
	f, err := config.Load(path)
	if err != nil {
		return err
	}
	pipeline = f
	applyConfigToEnv(f)
	return nil
}

// applyConfigToEnv pushes config file values into the environment the
// component factories read. Already-set variables win, which keeps the
// documented precedence: env over file.
func applyConfigToEnv(f config.File) {
	setenvDefault("AUDIT_EMBEDDER", f.Embedder.Provider)
	if f.Embedder.Dimension > 0 {
		setenvDefault("AUDIT_EMBED_DIMENSION", fmt.Sprintf("%d", f.Embedder.Dimension))
	}
	switch strings.ToLower(f.Embedder.Provider) {
	case "openai":
		setenvDefault("OPENAI_EMBED_MODEL", f.Embedder.Model)
	case "ollama":
		setenvDefault("OLLAMA_EMBED_MODEL", f.Embedder.Model)
	case "gemini":
		setenvDefault("GEMINI_EMBED_MODEL", f.Embedder.Model)
	}

	setenvDefault("AUDIT_HISTORY_BACKEND", f.History.Backend)
	setenvDefault("AUDIT_SQLITE_PATH", f.History.SQLitePath)
	setenvDefault("AUDIT_REDIS_ADDR", f.History.RedisAddr)
}

func setenvDefault(key, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	if strings.TrimSpace(os.Getenv(key)) != "" {
		return
	}
	_ = os.Setenv(key, value)
}
