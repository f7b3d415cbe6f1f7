// Package factory builds an embedder from environment configuration, for
// callers that wire the pipeline from the CLI or a deployment manifest
// rather than in code.
package factory

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spectracehq/audit-sdk-go/embedding"
	geminiemb "github.com/spectracehq/audit-sdk-go/embedding/gemini"
	localemb "github.com/spectracehq/audit-sdk-go/embedding/local"
	ollamaemb "github.com/spectracehq/audit-sdk-go/embedding/ollama"
	openaiemb "github.com/spectracehq/audit-sdk-go/embedding/openai"
)

// FromEnv selects an embedder by AUDIT_EMBEDDER (gemini, openai, ollama,
// local; default local) and configures it from the matching provider
// variables.
func FromEnv(ctx context.Context) (embedding.Embedder, error) {
	provider := strings.ToLower(strings.TrimSpace(getenv("AUDIT_EMBEDDER", "local")))
	dim := parseDim(os.Getenv("AUDIT_EMBED_DIMENSION"))

	switch provider {
	case "local", "":
		opts := []localemb.Option{}
		if dim > 0 {
			opts = append(opts, localemb.WithDimension(dim))
		}
		return localemb.New(opts...), nil

	case "openai":
		key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
		if key == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when AUDIT_EMBEDDER=openai")
		}
		opts := []openaiemb.Option{openaiemb.WithModel(getenv("OPENAI_EMBED_MODEL", "text-embedding-3-small"))}
		if baseURL := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")); baseURL != "" {
			opts = append(opts, openaiemb.WithBaseURL(baseURL))
		}
		if dim > 0 {
			opts = append(opts, openaiemb.WithDimension(dim))
		}
		return openaiemb.New(key, opts...)

	case "ollama":
		opts := []ollamaemb.Option{
			ollamaemb.WithModel(getenv("OLLAMA_EMBED_MODEL", "nomic-embed-text")),
			ollamaemb.WithBaseURL(getenv("OLLAMA_BASE_URL", "http://127.0.0.1:11434")),
		}
		if dim > 0 {
			opts = append(opts, ollamaemb.WithDimension(dim))
		}
		return ollamaemb.New(opts...)

	case "gemini":
		key := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
		if key == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required when AUDIT_EMBEDDER=gemini")
		}
		opts := []geminiemb.Option{geminiemb.WithModel(getenv("GEMINI_EMBED_MODEL", "gemini-embedding-001"))}
		if dim > 0 {
			opts = append(opts, geminiemb.WithDimension(dim))
		}
		return geminiemb.New(ctx, key, opts...)

	default:
		return nil, fmt.Errorf("unknown embedder %q (expected gemini, openai, ollama or local)", provider)
	}
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseDim(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
