package local

import (
	"context"
	"math"
	"testing"
)

func TestEmbedDeterministic(t *testing.T) {
	e := New()
	ctx := context.Background()

	a, err := e.Embed(ctx, "inspect the config file before editing")
	if err != nil {
		t.Fatalf("Embed returned error: %v", err)
	}
	b, err := e.Embed(ctx, "inspect the config file before editing")
	if err != nil {
		t.Fatalf("Embed returned error: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at dimension %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestEmbedDimension(t *testing.T) {
	e := New()
	vec, err := e.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed returned error: %v", err)
	}
	if len(vec) != e.Dimension() {
		t.Errorf("len(vec) = %d, want %d", len(vec), e.Dimension())
	}

	small := New(WithDimension(16))
	vec, err = small.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed returned error: %v", err)
	}
	if len(vec) != 16 {
		t.Errorf("len(vec) = %d, want 16", len(vec))
	}
}

func TestEmbedUnitNorm(t *testing.T) {
	e := New()
	vec, err := e.Embed(context.Background(), "read the file then summarize it")
	if err != nil {
		t.Fatalf("Embed returned error: %v", err)
	}
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if math.Abs(math.Sqrt(sum)-1) > 1e-9 {
		t.Errorf("norm = %v, want 1", math.Sqrt(sum))
	}
}

func TestEmbedEmptyTextIsZeroVector(t *testing.T) {
	e := New(WithDimension(8))
	vec, err := e.Embed(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Embed returned error: %v", err)
	}
	for i, v := range vec {
		if v != 0 {
			t.Fatalf("vec[%d] = %v, want 0 for empty text", i, v)
		}
	}
}

func TestEmbedDistinguishesTexts(t *testing.T) {
	e := New()
	ctx := context.Background()

	a, err := e.Embed(ctx, "delete every file in the home directory")
	if err != nil {
		t.Fatalf("Embed returned error: %v", err)
	}
	b, err := e.Embed(ctx, "write a friendly greeting email")
	if err != nil {
		t.Fatalf("Embed returned error: %v", err)
	}

	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts produced identical vectors")
	}
}

func TestEmbedBatchOrder(t *testing.T) {
	e := New(WithDimension(32))
	texts := []string{"first text", "second text", "third text"}

	batch, err := e.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch returned error: %v", err)
	}
	if len(batch) != len(texts) {
		t.Fatalf("EmbedBatch returned %d vectors, want %d", len(batch), len(texts))
	}
	for i, text := range texts {
		single, err := e.Embed(context.Background(), text)
		if err != nil {
			t.Fatalf("Embed returned error: %v", err)
		}
		for j := range single {
			if batch[i][j] != single[j] {
				t.Fatalf("batch[%d] differs from single embed of %q", i, text)
			}
		}
	}
}

func TestEmbedHonorsCancelledContext(t *testing.T) {
	e := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := e.Embed(ctx, "anything"); err == nil {
		t.Error("Embed with cancelled context did not return an error")
	}
}
