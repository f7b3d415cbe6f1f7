// Package redis is the cache-tier history backend. Results live under a
// TTL with per-agent sorted-set indexes, so recent-audit queries stay hot
// while a durable backend keeps the long tail.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/spectracehq/audit-sdk-go/history"
	"github.com/spectracehq/audit-sdk-go/trace"
)

const (
	defaultTTL    = 72 * time.Hour
	defaultLimit  = 50
	defaultPrefix = "audit"

	// maxIndexFetch bounds how many entries aggregate queries pull from
	// a single agent index.
	maxIndexFetch = 1000
)

type Store struct {
	client   *goredis.Client
	ttl      time.Duration
	prefix   string
	addr     string
	db       int
	password string
}

type Option func(*Store)

func WithPassword(password string) Option {
	return func(s *Store) {
		s.password = password
	}
}

func WithDB(db int) Option {
	return func(s *Store) {
		s.db = db
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if strings.TrimSpace(prefix) != "" {
			s.prefix = strings.TrimSpace(prefix)
		}
	}
}

func WithClient(client *goredis.Client) Option {
	return func(s *Store) {
		if client != nil {
			s.client = client
		}
	}
}

func New(addr string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	s := &Store{
		ttl:    defaultTTL,
		prefix: defaultPrefix,
		addr:   addr,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = goredis.NewClient(&goredis.Options{
			Addr:     s.addr,
			Password: s.password,
			DB:       s.db,
		})
	}

	if err := s.client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return s, nil
}

var _ history.Store = (*Store)(nil)

func (s *Store) SaveResult(ctx context.Context, res trace.AuditResult) error {
	if res.AuditID == "" {
		return fmt.Errorf("audit_id is required")
	}
	if res.AgentID == "" {
		res.AgentID = "unknown"
	}
	if res.CompletedAt == nil {
		now := time.Now().UTC()
		res.CompletedAt = &now
	}

	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal audit result: %w", err)
	}

	agentIdx := s.agentIndexKey(res.AgentID)

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.resultKey(res.AuditID), string(raw), s.ttl)
	pipe.ZAdd(ctx, agentIdx, goredis.Z{
		Score:  float64(res.CompletedAt.UnixNano()),
		Member: res.AuditID,
	})
	pipe.Expire(ctx, agentIdx, s.ttl)
	pipe.SAdd(ctx, s.agentsKey(), res.AgentID)
	pipe.Expire(ctx, s.agentsKey(), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save audit result in redis: %w", err)
	}
	return nil
}

func (s *Store) GetResult(ctx context.Context, auditID string) (trace.AuditResult, error) {
	if auditID == "" {
		return trace.AuditResult{}, fmt.Errorf("audit_id is required")
	}

	raw, err := s.client.Get(ctx, s.resultKey(auditID)).Result()
	if err != nil {
		if err == goredis.Nil {
			return trace.AuditResult{}, history.ErrNotFound
		}
		return trace.AuditResult{}, fmt.Errorf("failed to load audit result from redis: %w", err)
	}

	var res trace.AuditResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return trace.AuditResult{}, fmt.Errorf("failed to decode audit result from redis: %w", err)
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
		ids []string
		err error
	)
	if query.AgentID != "" {
		ids, err = s.client.ZRevRange(ctx, s.agentIndexKey(query.AgentID), int64(offset), int64(offset+limit-1)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list audit ids by agent: %w", err)
		}
	} else {
		ids, err = s.scanResultIDs(ctx, offset+limit)
		if err != nil {
			return nil, err
		}
		if offset < len(ids) {
			ids = ids[offset:]
		} else {
			ids = nil
		}
	}

	results, stale, err := s.loadResults(ctx, ids)
	if err != nil {
		return nil, err
	}
	if query.AgentID != "" && len(stale) > 0 {
		members := make([]any, 0, len(stale))
		for _, id := range stale {
			members = append(members, id)
		}
		_ = s.client.ZRem(ctx, s.agentIndexKey(query.AgentID), members...).Err()
	}

	out := results[:0]
	for _, res := range results {
		if query.MinRisk > 0 && res.RiskScore < query.MinRisk {
			continue
		}
		out = append(out, res)
	}

	sort.Slice(out, func(i, j int) bool {
		left := time.Time{}
		if out[i].CompletedAt != nil {
			left = *out[i].CompletedAt
		}
		right := time.Time{}
		if out[j].CompletedAt != nil {
			right = *out[j].CompletedAt
		}
		return left.After(right)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) RiskHistory(ctx context.Context, agentID string, limit int) ([]float64, error) {
	if agentID == "" {
		return nil, fmt.Errorf("agent_id is required")
	}
	if limit <= 0 || limit > maxIndexFetch {
		limit = maxIndexFetch
	}

	// Newest ids first, then reversed so scores come out chronological.
	ids, err := s.client.ZRevRange(ctx, s.agentIndexKey(agentID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load risk history index: %w", err)
	}
	if len(ids) == 0 {
		return []float64{}, nil
	}

	results, _, err := s.loadResults(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]float64, 0, len(results))
	for i := len(results) - 1; i >= 0; i-- {
		out = append(out, results[i].RiskScore)
	}
	return out, nil
}

func (s *Store) ViolationCounts(ctx context.Context, agentID string) (history.ViolationSummary, error) {
	summary := history.ViolationSummary{
		ByRule:     map[string]int64{},
		BySeverity: map[string]int64{},
	}

	agents := []string{agentID}
	if agentID == "" {
		var err error
		agents, err = s.Agents(ctx)
		if err != nil {
			return history.ViolationSummary{}, err
		}
	}

	for _, agent := range agents {
		ids, err := s.client.ZRevRange(ctx, s.agentIndexKey(agent), 0, maxIndexFetch-1).Result()
		if err != nil {
			return history.ViolationSummary{}, fmt.Errorf("failed to load agent index: %w", err)
		}
		results, _, err := s.loadResults(ctx, ids)
		if err != nil {
			return history.ViolationSummary{}, err
		}
		for _, res := range results {
			for _, v := range res.Violations {
				summary.Total++
				summary.ByRule[v.RuleID]++
				summary.BySeverity[string(v.Severity)]++
			}
		}
	}
	return summary, nil
}

func (s *Store) Agents(ctx context.Context) ([]string, error) {
	agents, err := s.client.SMembers(ctx, s.agentsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	sort.Strings(agents)
	return agents, nil
}

func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *Store) loadResults(ctx context.Context, ids []string) ([]trace.AuditResult, []string, error) {
	if len(ids) == 0 {
		return []trace.AuditResult{}, nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.resultKey(id)
	}
	loaded, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to mget audit results: %w", err)
	}

	out := make([]trace.AuditResult, 0, len(loaded))
	stale := make([]string, 0)
	for i, raw := range loaded {
		if raw == nil {
			stale = append(stale, ids[i])
			continue
		}
		var res trace.AuditResult
		if err := json.Unmarshal([]byte(fmt.Sprintf("%v", raw)), &res); err != nil {
			continue
		}
		out = append(out, res)
	}
	return out, stale, nil
}

func (s *Store) scanResultIDs(ctx context.Context, limit int) ([]string, error) {
	ids := make([]string, 0, limit)
	var cursor uint64
	match := s.prefix + ":result:*"
	for len(ids) < limit {
		keys, next, err := s.client.Scan(ctx, cursor, match, int64(limit)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit result keys: %w", err)
		}
		for _, key := range keys {
			if id := strings.TrimPrefix(key, s.prefix+":result:"); id != key && id != "" {
				ids = append(ids, id)
			}
			if len(ids) >= limit {
				break
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return ids, nil
}

func (s *Store) resultKey(auditID string) string {
	return fmt.Sprintf("%s:result:%s", s.prefix, auditID)
}

func (s *Store) agentIndexKey(agentID string) string {
	return fmt.Sprintf("%s:agent:%s:results", s.prefix, agentID)
}

func (s *Store) agentsKey() string {
	return s.prefix + ":agents"
}
