// Package hybrid layers a cache-tier history store over a durable one.
// Writes go through to both; single-result reads try the cache first and
// backfill it on a miss. Analytical queries always hit the durable store,
// which is the authoritative record.
package hybrid

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/spectracehq/audit-sdk-go/history"
	"github.com/spectracehq/audit-sdk-go/trace"
)

type Store struct {
	durable history.Store
	cache   history.Store
}

func New(durable history.Store, cache history.Store) (*Store, error) {
	if durable == nil {
		return nil, fmt.Errorf("durable store is required")
	}
	return &Store{
		durable: durable,
		cache:   cache,
	}, nil
}

var _ history.Store = (*Store)(nil)

func (h *Store) SaveResult(ctx context.Context, res trace.AuditResult) error {
	if err := h.durable.SaveResult(ctx, res); err != nil {
		return err
	}
	if h.cache != nil {
		if err := h.cache.SaveResult(ctx, res); err != nil {
			log.Printf("hybrid history cache SaveResult failed: %v", err)
		}
	}
	return nil
}

func (h *Store) GetResult(ctx context.Context, auditID string) (trace.AuditResult, error) {
	if h.cache != nil {
		res, err := h.cache.GetResult(ctx, auditID)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, history.ErrNotFound) {
			log.Printf("hybrid history cache GetResult failed: %v", err)
		}
	}

	res, err := h.durable.GetResult(ctx, auditID)
	if err != nil {
		return trace.AuditResult{}, err
	}
	if h.cache != nil {
		if err := h.cache.SaveResult(ctx, res); err != nil {
			log.Printf("hybrid history cache backfill failed: %v", err)
		}
	}
	return res, nil
}

func (h *Store) ListResults(ctx context.Context, query history.ListQuery) ([]trace.AuditResult, error) {
	return h.durable.ListResults(ctx, query)
}

func (h *Store) RiskHistory(ctx context.Context, agentID string, limit int) ([]float64, error) {
	return h.durable.RiskHistory(ctx, agentID, limit)
}

func (h *Store) ViolationCounts(ctx context.Context, agentID string) (history.ViolationSummary, error) {
	return h.durable.ViolationCounts(ctx, agentID)
}

func (h *Store) Agents(ctx context.Context) ([]string, error) {
	return h.durable.Agents(ctx)
}

func (h *Store) Close() error {
	var firstErr error
	if h.cache != nil {
		if err := h.cache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if h.durable != nil {
		if err := h.durable.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
