package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spectracehq/audit-sdk-go/audit"
	"github.com/spectracehq/audit-sdk-go/compliance"
	"github.com/spectracehq/audit-sdk-go/embedding"
	embedfactory "github.com/spectracehq/audit-sdk-go/embedding/factory"
	"github.com/spectracehq/audit-sdk-go/history"
	historyfactory "github.com/spectracehq/audit-sdk-go/history/factory"
	"github.com/spectracehq/audit-sdk-go/internal/config"
	"github.com/spectracehq/audit-sdk-go/observe"
	"github.com/spectracehq/audit-sdk-go/similarity"
	similaritysqlite "github.com/spectracehq/audit-sdk-go/similarity/sqlite"
	"github.com/spectracehq/audit-sdk-go/trace"
)

func openStore(ctx context.Context) (history.Store, error) {
	store, err := historyfactory.FromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}
	return store, nil
}

func closeStore(store history.Store) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		log.Printf("[cli] history store close failed: %v", err)
	}
}

// buildEncoder wires an embedder from the environment with the similarity
// index. AUDIT_SIMILARITY_PATH selects the index file; "memory" keeps the
// index in-process for throwaway runs.
func buildEncoder(ctx context.Context) (*embedding.Encoder, func(), error) {
	embedder, err := embedfactory.FromEnv(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build embedder: %w", err)
	}

	path := config.GetenvDefault("AUDIT_SIMILARITY_PATH", "./.audit/similarity.db")
	if strings.EqualFold(path, "memory") {
		encoder, err := embedding.NewEncoder(embedder, embedding.WithIndex(similarity.NewMemoryIndex(embedder.Dimension())))
		return encoder, func() {}, err
	}

	idx, err := similaritysqlite.New(path, embedder.Dimension())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open similarity index: %w", err)
	}
	cleanup := func() {
		if err := idx.Close(); err != nil {
			log.Printf("[cli] similarity index close failed: %v", err)
		}
	}
	encoder, err := embedding.NewEncoder(embedder, embedding.WithIndex(idx))
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return encoder, cleanup, nil
}

func buildAuditor(ctx context.Context, store history.Store, rulesPath string) (*audit.Auditor, func(), error) {
	encoder, cleanup, err := buildEncoder(ctx)
	if err != nil {
		return nil, nil, err
	}

	opts := []audit.Option{audit.WithSink(buildSink())}
	rules, err := loadRules(rulesPath)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if rules != nil {
		opts = append(opts, audit.WithRules(rules))
	}
	if store != nil {
		opts = append(opts, audit.WithHistory(store))
	}

	auditor, err := audit.New(encoder, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return auditor, cleanup, nil
}

// loadRules resolves the ruleset: the --rules flag, then the config file,
// then nil for the built-in set.
func loadRules(rulesPath string) (*compliance.RuleSet, error) {
	path := strings.TrimSpace(rulesPath)
	if path == "" {
		path = pipeline.Rules
	}
	if path == "" {
		return nil, nil
	}
	rules, err := compliance.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load ruleset: %w", err)
	}
	return rules, nil
}

func buildSink() observe.Sink {
	if verbose {
		return observe.LogSink{}
	}
	return observe.NoopSink{}
}

// readTraceFile decodes an execution trace from a JSON file, or from stdin
// when path is "-".
func readTraceFile(path string) (*trace.ExecutionTrace, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}

	var tr trace.ExecutionTrace
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("failed to decode trace: %w", err)
	}
	if err := tr.Validate(); err != nil {
		return nil, err
	}
	return &tr, nil
}
