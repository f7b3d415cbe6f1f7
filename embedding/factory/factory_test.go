package factory

import (
	"context"
	"testing"
)

func TestFromEnv_DefaultsToLocal(t *testing.T) {
	t.Setenv("AUDIT_EMBEDDER", "")

	e, err := FromEnv(context.Background())
	if err != nil {
		t.Fatalf("FromEnv returned error: %v", err)
	}
	if e.Name() != "local" {
		t.Fatalf("expected local embedder, got %q", e.Name())
	}
}

func TestFromEnv_LocalDimension(t *testing.T) {
	t.Setenv("AUDIT_EMBEDDER", "local")
	t.Setenv("AUDIT_EMBED_DIMENSION", "64")

	e, err := FromEnv(context.Background())
	if err != nil {
		t.Fatalf("FromEnv returned error: %v", err)
	}
	if e.Dimension() != 64 {
		t.Fatalf("expected dimension 64, got %d", e.Dimension())
	}
}

func TestFromEnv_OpenAI(t *testing.T) {
	t.Setenv("AUDIT_EMBEDDER", "openai")
	t.Setenv("OPENAI_API_KEY", "test-openai-key")

	e, err := FromEnv(context.Background())
	if err != nil {
		t.Fatalf("FromEnv returned error: %v", err)
	}
	if e.Name() != "openai" {
		t.Fatalf("expected openai embedder, got %q", e.Name())
	}
}

func TestFromEnv_OpenAIRequiresKey(t *testing.T) {
	t.Setenv("AUDIT_EMBEDDER", "openai")
	t.Setenv("OPENAI_API_KEY", "")

	if _, err := FromEnv(context.Background()); err == nil {
		t.Fatalf("expected missing key error")
	}
}

func TestFromEnv_Ollama(t *testing.T) {
	t.Setenv("AUDIT_EMBEDDER", "ollama")
	t.Setenv("OLLAMA_EMBED_MODEL", "nomic-embed-text")

	e, err := FromEnv(context.Background())
	if err != nil {
		t.Fatalf("FromEnv returned error: %v", err)
	}
	if e.Name() != "ollama" {
		t.Fatalf("expected ollama embedder, got %q", e.Name())
	}
}

func TestFromEnv_UnknownEmbedder(t *testing.T) {
	t.Setenv("AUDIT_EMBEDDER", "word2vec")

	if _, err := FromEnv(context.Background()); err == nil {
		t.Fatalf("expected unknown embedder error")
	}
}
