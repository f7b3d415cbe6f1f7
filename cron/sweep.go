// Package cron runs recurring drift sweeps over audited agents using cron
// expressions. Each sweep pulls risk histories from the store, computes
// drift per agent, and dispatches alerts for increasing trends.
package cron

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/spectracehq/audit-sdk-go/alert"
	"github.com/spectracehq/audit-sdk-go/drift"
	"github.com/spectracehq/audit-sdk-go/history"
	"github.com/spectracehq/audit-sdk-go/observe"
	"github.com/spectracehq/audit-sdk-go/trace"
)

const defaultHistoryLimit = 200

// Sweeper computes drift for audited agents and raises alerts for the ones
// trending up. Agents with too little history are skipped, not failed.
type Sweeper struct {
	store        history.Store
	router       *alert.Router
	sink         observe.Sink
	driftCfg     drift.Config
	historyLimit int
}

type SweeperOption func(*Sweeper)

// WithRouter dispatches an alert for every agent whose risk trend is
// increasing. Without a router, sweeps only emit drift events.
func WithRouter(r *alert.Router) SweeperOption {
	return func(s *Sweeper) { s.router = r }
}

// WithSink emits a drift event per swept agent.
func WithSink(sink observe.Sink) SweeperOption {
	return func(s *Sweeper) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithDriftConfig sets the windowing policy used for every sweep.
func WithDriftConfig(cfg drift.Config) SweeperOption {
	return func(s *Sweeper) { s.driftCfg = cfg }
}

// WithHistoryLimit caps how many of the newest risk scores are fetched per
// agent.
func WithHistoryLimit(limit int) SweeperOption {
	return func(s *Sweeper) {
		if limit > 0 {
			s.historyLimit = limit
		}
	}
}

func NewSweeper(store history.Store, opts ...SweeperOption) (*Sweeper, error) {
	if store == nil {
		return nil, fmt.Errorf("cron: history store is required")
	}
	s := &Sweeper{
		store:        store,
		sink:         observe.NoopSink{},
		driftCfg:     drift.DefaultConfig(),
		historyLimit: defaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sweep computes drift for the agents the config selects and returns a short
// run summary. Per-agent store failures are logged and counted rather than
// aborting the rest of the sweep.
func (s *Sweeper) Sweep(ctx context.Context, cfg SweepConfig) (string, error) {
	agents := []string{cfg.AgentID}
	if cfg.AgentID == "" {
		var err error
		agents, err = s.store.Agents(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to list agents: %w", err)
		}
	}

	var swept, alerted, skipped, failed int
	for _, agentID := range agents {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		res, err := s.sweepAgent(ctx, agentID, cfg)
		if errors.Is(err, drift.ErrInsufficientHistory) {
			skipped++
			continue
		}
		if err != nil {
			log.Printf("[cron] drift sweep failed for agent %s: %v", agentID, err)
			failed++
			continue
		}

		swept++
		if err := s.sink.Emit(ctx, observe.DriftComputed(agentID, res)); err != nil {
			log.Printf("[cron] failed to emit drift event for agent %s: %v", agentID, err)
		}

		a, ok := alert.FromDrift(agentID, res)
		if !ok || s.router == nil {
			continue
		}
		alerted++
		if err := s.router.Dispatch(ctx, a); err != nil {
			log.Printf("[cron] drift alert for agent %s failed: %v", agentID, err)
		}
	}

	summary := fmt.Sprintf("swept %d agent(s), %d alerted, %d skipped", swept, alerted, skipped)
	if failed > 0 {
		summary += fmt.Sprintf(", %d failed", failed)
	}
	return summary, nil
}

func (s *Sweeper) sweepAgent(ctx context.Context, agentID string, cfg SweepConfig) (trace.DriftResult, error) {
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = s.historyLimit
	}
	scores, err := s.store.RiskHistory(ctx, agentID, limit)
	if err != nil {
		return trace.DriftResult{}, fmt.Errorf("risk history: %w", err)
	}

	driftCfg := s.driftCfg
	if cfg.RecentWindow > 0 {
		driftCfg.RecentWindow = cfg.RecentWindow
	}
	return drift.Compute(scores, driftCfg)
}
