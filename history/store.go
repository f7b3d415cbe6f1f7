// Package history persists audit results and serves the queries the drift
// analyzer and monitoring surfaces need: per-agent risk series, violation
// aggregates, and audit lookups.
package history

import (
	"context"
	"errors"

	"github.com/spectracehq/audit-sdk-go/trace"
)

var ErrNotFound = errors.New("history: not found")

// ListQuery narrows ListResults. Zero values mean "no constraint".
type ListQuery struct {
	AgentID string
	MinRisk float64
	Limit   int
	Offset  int
}

// ViolationSummary aggregates rule hits across saved audit results.
type ViolationSummary struct {
	Total      int64            `json:"total"`
	ByRule     map[string]int64 `json:"byRule"`
	BySeverity map[string]int64 `json:"bySeverity"`
}

type Store interface {
	SaveResult(ctx context.Context, res trace.AuditResult) error
	GetResult(ctx context.Context, auditID string) (trace.AuditResult, error)
	ListResults(ctx context.Context, query ListQuery) ([]trace.AuditResult, error)

	// RiskHistory returns up to limit risk scores for the agent in
	// chronological order, oldest first.
	RiskHistory(ctx context.Context, agentID string, limit int) ([]float64, error)
	ViolationCounts(ctx context.Context, agentID string) (ViolationSummary, error)
	Agents(ctx context.Context) ([]string, error)

	Close() error
}
