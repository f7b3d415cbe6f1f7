package cli

import (
	"context"
	"errors"
	"log"

	"github.com/spf13/cobra"

	"github.com/spectracehq/audit-sdk-go/cron"
	"github.com/spectracehq/audit-sdk-go/history"
	"github.com/spectracehq/audit-sdk-go/internal/config"
	"github.com/spectracehq/audit-sdk-go/monitor"
	"github.com/spectracehq/audit-sdk-go/observe"
	"github.com/spectracehq/audit-sdk-go/observe/ws"
)

var (
	serveAddr      string
	serveAPIKey    string
	serveSweepCron string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the monitoring API over recorded audits",
	Long: `Start the HTTP monitoring server: audit queries, per-agent drift, the
violation summary, and a websocket event stream. With --sweep-cron a
scheduled drift sweep runs in-process and streams its findings.

Examples:
  spectrace serve
  spectrace serve --addr 0.0.0.0:8090 --api-key $AUDIT_API_KEY
  spectrace serve --sweep-cron "@hourly"`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, then 127.0.0.1:8090)")
	serveCmd.Flags().StringVar(&serveAPIKey, "api-key", "", "Require this API key on every endpoint except the health check")
	serveCmd.Flags().StringVar(&serveSweepCron, "sweep-cron", "", "Cron expression for a scheduled drift sweep")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store)

	hub := ws.NewHub()
	defer hub.Close()

	addr := serveAddr
	if addr == "" {
		addr = pipeline.Monitor.Addr
	}
	if addr == "" {
		addr = config.GetenvDefault("AUDIT_MONITOR_ADDR", "")
	}
	apiKey := serveAPIKey
	if apiKey == "" {
		apiKey = pipeline.Monitor.APIKey
	}
	if apiKey == "" {
		apiKey = config.GetenvDefault("AUDIT_API_KEY", "")
	}

	server, err := monitor.NewServer(monitor.Config{
		Addr:   addr,
		Store:  store,
		Hub:    hub,
		APIKey: apiKey,
		Drift:  pipeline.DriftConfig(),
	})
	if err != nil {
		return err
	}

	if serveSweepCron != "" {
		scheduler, err := buildSweepScheduler(store, hub)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	log.Printf("[cli] monitor listening on %s", server.Addr())
	err = server.ListenAndServe(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func buildSweepScheduler(store history.Store, hub *ws.Hub) (*cron.Scheduler, error) {
	router, err := pipeline.AlertRouter()
	if err != nil {
		return nil, err
	}
	sweeper, err := cron.NewSweeper(store,
		cron.WithRouter(router),
		cron.WithSink(observe.NewMultiSink(observe.LogSink{}, hub)),
		cron.WithDriftConfig(pipeline.DriftConfig()),
	)
	if err != nil {
		return nil, err
	}
	scheduler, err := cron.NewScheduler(sweeper)
	if err != nil {
		return nil, err
	}
	if err := scheduler.Add("risk-sweep", serveSweepCron, cron.SweepConfig{}); err != nil {
		return nil, err
	}
	return scheduler, nil
}
