// Package sqlite is the durable history backend. Full results are stored
// as JSON payloads with scalar columns alongside for the risk-series and
// aggregate queries.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/spectracehq/audit-sdk-go/history"
	"github.com/spectracehq/audit-sdk-go/trace"
)

//go:embed schema.sql
var schemaSQL string

const (
	defaultBusyTimeout = 5 * time.Second
	defaultLimit       = 50
	defaultRiskLimit   = 200
)

type Store struct {
	db          *sql.DB
	busyTimeout time.Duration
	enableWAL   bool
	maxOpenConn int
}

type Option func(*Store)

func WithBusyTimeout(timeout time.Duration) Option {
	return func(s *Store) {
		if timeout >= 0 {
			s.busyTimeout = timeout
		}
	}
}

func WithWAL(enabled bool) Option {
	return func(s *Store) {
		s.enableWAL = enabled
	}
}

func WithMaxOpenConns(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxOpenConn = n
		}
	}
}

func New(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	s := &Store{
		busyTimeout: defaultBusyTimeout,
		enableWAL:   true,
		maxOpenConn: 1,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(s.maxOpenConn)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s.db = db
	if err := s.initialize(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	if s.busyTimeout > 0 {
		ms := int(s.busyTimeout / time.Millisecond)
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d;", ms)); err != nil {
			return fmt.Errorf("failed to set busy_timeout: %w", err)
		}
	}
	if s.enableWAL {
		if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("failed to enable wal: %w", err)
		}
	}
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

var _ history.Store = (*Store)(nil)

func (s *Store) SaveResult(ctx context.Context, res trace.AuditResult) error {
	if res.AuditID == "" {
		return fmt.Errorf("audit_id is required")
	}
	if res.TraceID == "" {
		return fmt.Errorf("trace_id is required")
	}
	if res.AgentID == "" {
		res.AgentID = "unknown"
	}

	createdAt := time.Now().UTC()
	if res.CompletedAt != nil {
		createdAt = res.CompletedAt.UTC()
	}

	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal audit result: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	const upsert = `
INSERT INTO audit_results (
  audit_id, trace_id, agent_id, risk_score, deception, max_severity, violation_count, payload, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(audit_id) DO UPDATE SET
  trace_id=excluded.trace_id,
  agent_id=excluded.agent_id,
  risk_score=excluded.risk_score,
  deception=excluded.deception,
  max_severity=excluded.max_severity,
  violation_count=excluded.violation_count,
  payload=excluded.payload,
  created_at=excluded.created_at;
`
	_, err = tx.ExecContext(
		ctx,
		upsert,
		res.AuditID,
		res.TraceID,
		res.AgentID,
		res.RiskScore,
		res.DeceptionProbability,
		string(res.MaxSeverity()),
		len(res.Violations),
		string(payload),
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save audit result: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM violations WHERE audit_id = ?;", res.AuditID); err != nil {
		return fmt.Errorf("failed to clear old violations: %w", err)
	}
	const insertViolation = `
INSERT INTO violations (audit_id, agent_id, rule_id, severity, step_index, created_at)
VALUES (?, ?, ?, ?, ?, ?);
`
	for _, v := range res.Violations {
		var stepIndex any
		if v.StepIndex != nil {
			stepIndex = *v.StepIndex
		}
		_, err := tx.ExecContext(
			ctx,
			insertViolation,
			res.AuditID,
			res.AgentID,
			v.RuleID,
			string(v.Severity),
			stepIndex,
			createdAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("failed to save violation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audit result: %w", err)
	}
	return nil
}

func (s *Store) GetResult(ctx context.Context, auditID string) (trace.AuditResult, error) {
	if strings.TrimSpace(auditID) == "" {
		return trace.AuditResult{}, fmt.Errorf("audit_id is required")
	}

	var payload string
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM audit_results WHERE audit_id = ?;", auditID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return trace.AuditResult{}, history.ErrNotFound
		}
		return trace.AuditResult{}, fmt.Errorf("failed to load audit result: %w", err)
	}

	var res trace.AuditResult
	if err := json.Unmarshal([]byte(payload), &res); err != nil {
		return trace.AuditResult{}, fmt.Errorf("failed to decode audit result: %w", err)
	}
	return res, nil
}

func (s *Store) ListResults(ctx context.Context, query history.ListQuery) ([]trace.AuditResult, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	offset := query.Offset
	if offset < 0 {
		offset = 0
	}

	var (
		where []string
		args  []any
	)
	if query.AgentID != "" {
		where = append(where, "agent_id = ?")
		args = append(args, query.AgentID)
	}
	if query.MinRisk > 0 {
		where = append(where, "risk_score >= ?")
		args = append(args, query.MinRisk)
	}

	sqlText := "SELECT payload FROM audit_results"
	if len(where) > 0 {
		sqlText += " WHERE " + strings.Join(where, " AND ")
	}
	sqlText += " ORDER BY created_at DESC, audit_id DESC LIMIT ? OFFSET ?;"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit results: %w", err)
	}
	defer rows.Close()

	out := make([]trace.AuditResult, 0, limit)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		var res trace.AuditResult
		if err := json.Unmarshal([]byte(payload), &res); err != nil {
			return nil, fmt.Errorf("failed to decode audit result: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit results: %w", err)
	}
	return out, nil
}

func (s *Store) RiskHistory(ctx context.Context, agentID string, limit int) ([]float64, error) {
	if strings.TrimSpace(agentID) == "" {
		return nil, fmt.Errorf("agent_id is required")
	}
	if limit <= 0 {
		limit = defaultRiskLimit
	}

	// Newest N selected first, then flipped to chronological order.
	const q = `
SELECT risk_score FROM (
  SELECT risk_score, created_at, audit_id
  FROM audit_results
  WHERE agent_id = ?
  ORDER BY created_at DESC, audit_id DESC
  LIMIT ?
) ORDER BY created_at ASC, audit_id ASC;
`
	rows, err := s.db.QueryContext(ctx, q, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load risk history: %w", err)
	}
	defer rows.Close()

	out := make([]float64, 0, limit)
	for rows.Next() {
		var score float64
		if err := rows.Scan(&score); err != nil {
			return nil, fmt.Errorf("failed to scan risk score: %w", err)
		}
		out = append(out, score)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate risk history: %w", err)
	}
	return out, nil
}

func (s *Store) ViolationCounts(ctx context.Context, agentID string) (history.ViolationSummary, error) {
	summary := history.ViolationSummary{
		ByRule:     map[string]int64{},
		BySeverity: map[string]int64{},
	}

	where := ""
	var args []any
	if agentID != "" {
		where = " WHERE agent_id = ?"
		args = append(args, agentID)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT rule_id, severity, COUNT(*) FROM violations"+where+" GROUP BY rule_id, severity;", args...)
	if err != nil {
		return history.ViolationSummary{}, fmt.Errorf("failed to aggregate violations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ruleID   string
			severity string
			count    int64
		)
		if err := rows.Scan(&ruleID, &severity, &count); err != nil {
			return history.ViolationSummary{}, fmt.Errorf("failed to scan violation counts: %w", err)
		}
		summary.Total += count
		summary.ByRule[ruleID] += count
		summary.BySeverity[severity] += count
	}
	if err := rows.Err(); err != nil {
		return history.ViolationSummary{}, fmt.Errorf("failed to iterate violation counts: %w", err)
	}
	return summary, nil
}

func (s *Store) Agents(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT agent_id FROM audit_results ORDER BY agent_id ASC;")
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan agent id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate agents: %w", err)
	}
	return out, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
