package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ppiankov/aclarai/internal/cache"
)

func TestCachedEmbedder_OnlyEmbedsMisses(t *testing.T) {
	inner := NewHashEmbedder(4)
	c := cache.NewMemoryCache(time.Minute, time.Minute)
	emb := NewCachedEmbedder(inner, c, 0)

	first, err := emb.Embed(context.Background(), []string{"deployment", "outage"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if inner.Calls() != 1 {
		t.Fatalf("expected 1 inner call, got %d", inner.Calls())
	}

	second, err := emb.Embed(context.Background(), []string{"outage", "deployment"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if inner.Calls() != 1 {
		t.Errorf("expected cache hits only, got %d inner calls", inner.Calls())
	}
	if second[0][0] != first[1][0] || second[1][0] != first[0][0] {
		t.Error("cached vectors returned in wrong order")
	}

	_, _ = emb.Embed(context.Background(), []string{"outage", "rollback"})
	if inner.Calls() != 2 {
		t.Errorf("expected one more inner call for the miss, got %d", inner.Calls())
	}
}

func TestCachedEmbedder_PropagatesErrors(t *testing.T) {
	inner := NewHashEmbedder(4)
	inner.FailWith(errors.New("embedding service down"))
	emb := NewCachedEmbedder(inner, cache.NewMemoryCache(time.Minute, time.Minute), 0)

	if _, err := emb.Embed(context.Background(), []string{"x"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestScriptedProvider(t *testing.T) {
	p := NewScriptedProvider("").
		On(`{"selected": true}`, "SELECTION", "deployment").
		OnError(errors.New("boom"), "SELECTION")

	resp, err := p.Complete(context.Background(), CompletionRequest{System: "SELECTION", Prompt: "The deployment failed."})
	if err != nil || resp.Text != `{"selected": true}` {
		t.Fatalf("unexpected response %+v, %v", resp, err)
	}

	if _, err := p.Complete(context.Background(), CompletionRequest{System: "SELECTION", Prompt: "Hello"}); err == nil {
		t.Error("expected scripted error")
	}

	_, err = p.Complete(context.Background(), CompletionRequest{System: "OTHER"})
	if !errors.Is(err, ErrNoScript) {
		t.Errorf("expected ErrNoScript, got %v", err)
	}
	if len(p.Calls()) != 3 {
		t.Errorf("expected 3 recorded calls, got %d", len(p.Calls()))
	}
}

func TestNewProvider_Unknown(t *testing.T) {
	if _, err := NewProvider(Config{Provider: "gemini"}); err == nil {
		t.Error("expected error for unknown provider")
	}
	if _, err := NewEmbedder(Config{Provider: "anthropic"}); err == nil {
		t.Error("expected error: anthropic has no embeddings endpoint")
	}
	p, err := NewProvider(Config{Provider: "ollama", Model: "llama3.1:8b"})
	if err != nil || p.Name() != "ollama" {
		t.Errorf("unexpected provider %v, %v", p, err)
	}
}
