// Package monitor serves the read-only HTTP API over saved audit results:
// audit listings, per-agent drift, violation aggregates, and the live event
// stream.
package monitor

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/spectracehq/audit-sdk-go/drift"
	"github.com/spectracehq/audit-sdk-go/history"
	"github.com/spectracehq/audit-sdk-go/observe/ws"
)

const defaultAddr = "127.0.0.1:8090"

// Config wires the server's data sources. Store is required; Hub is optional
// and enables the websocket stream endpoint. A non-empty APIKey locks every
// endpoint except the health check.
type Config struct {
	Addr   string
	Store  history.Store
	Hub    *ws.Hub
	APIKey string
	// Drift sets the windowing policy for the drift endpoint. Zero fields
	// use the defaults.
	Drift drift.Config
}

type Server struct {
	cfg  Config
	mux  *http.ServeMux
	http *http.Server
	once sync.Once
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("monitor: history store is required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = defaultAddr
	}
	s := &Server{
		cfg: cfg,
		mux: http.NewServeMux(),
	}
	s.registerRoutes()
	s.http = &http.Server{Addr: cfg.Addr, Handler: s.Handler()}
	return s, nil
}

// Handler returns the route tree wrapped in HTTP tracing middleware.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.mux, "monitor")
}

// Addr returns the resolved listen address.
func (s *Server) Addr() string {
	return s.http.Addr
}

// ListenAndServe runs the server until the context is canceled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		err := s.http.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		log.Printf("[monitor] shutdown signal received, stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			log.Printf("[monitor] shutdown error: %v", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) Close() error {
	var outErr error
	s.once.Do(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		outErr = s.http.Shutdown(shutdownCtx)
	})
	return outErr
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/v1/audits", s.require(s.handleAudits))
	s.mux.HandleFunc("/api/v1/audits/", s.require(s.handleAuditByID))
	s.mux.HandleFunc("/api/v1/agents", s.require(s.handleAgents))
	s.mux.HandleFunc("/api/v1/agents/", s.require(s.handleAgentSubresources))
	s.mux.HandleFunc("/api/v1/violations/summary", s.require(s.handleViolationSummary))
	if s.cfg.Hub != nil {
		s.mux.HandleFunc("/api/v1/stream", s.require(s.cfg.Hub.ServeHTTP))
	} else {
		s.mux.HandleFunc("/api/v1/stream", func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusNotImplemented, fmt.Errorf("stream hub not configured"))
		})
	}
}

func (s *Server) require(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			writeError(w, http.StatusUnauthorized, fmt.Errorf("missing or invalid API key"))
			return
		}
		h(w, r)
	}
}

func (s *Server) authorized(r *http.Request) bool {
	if s.cfg.APIKey == "" {
		return true
	}
	key := extractAPIKey(r)
	return subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.APIKey)) == 1
}

func extractAPIKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	if authz := strings.TrimSpace(r.Header.Get("Authorization")); strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	// Query fallback so websocket clients can authenticate.
	if key := strings.TrimSpace(r.URL.Query().Get("api_key")); key != "" {
		return key
	}
	return ""
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleAudits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	q := history.ListQuery{
		AgentID: strings.TrimSpace(r.URL.Query().Get("agent_id")),
		MinRisk: parseFloat(r.URL.Query().Get("min_risk"), 0),
		Limit:   parseInt(r.URL.Query().Get("limit"), 50),
		Offset:  parseInt(r.URL.Query().Get("offset"), 0),
	}
	results, err := s.cfg.Store.ListResults(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleAuditByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	id := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/api/v1/audits/"))
	if id == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("audit id is required"))
		return
	}
	res, err := s.cfg.Store.GetResult(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, history.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	agents, err := s.cfg.Store.Agents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agents": agents,
		"count":  len(agents),
	})
}

func (s *Server) handleAgentSubresources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	parts := splitPath(strings.TrimPrefix(r.URL.Path, "/api/v1/agents/"))
	if len(parts) != 2 || parts[1] != "drift" {
		writeError(w, http.StatusNotFound, fmt.Errorf("unsupported agent endpoint"))
		return
	}
	s.serveAgentDrift(w, r, parts[0])
}

func (s *Server) serveAgentDrift(w http.ResponseWriter, r *http.Request, agentID string) {
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	scores, err := s.cfg.Store.RiskHistory(r.Context(), agentID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	cfg := s.cfg.Drift
	if window := parseInt(r.URL.Query().Get("window"), 0); window > 0 {
		cfg.RecentWindow = window
	}
	res, err := drift.Compute(scores, cfg)
	if errors.Is(err, drift.ErrInsufficientHistory) {
		writeJSON(w, http.StatusOK, map[string]any{
			"agentId":    agentID,
			"trend":      "insufficient_data",
			"historyLen": len(scores),
		})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"agentId":       agentID,
		"score":         res.Score,
		"trend":         res.Trend,
		"recentAvg":     res.RecentAvg,
		"historicalAvg": res.HistoricalAvg,
		"recentWindow":  res.RecentWindow,
		"historyLen":    res.HistoryLen,
	})
}

func (s *Server) handleViolationSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	agentID := strings.TrimSpace(r.URL.Query().Get("agent_id"))
	summary, err := s.cfg.Store.ViolationCounts(r.Context(), agentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func parseInt(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(raw string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fallback
	}
	return f
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, map[string]any{"error": msg})
}
