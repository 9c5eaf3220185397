package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ppiankov/aclarai/internal/cache"
)

// CachedEmbedder serves repeated texts from a cache and embeds only the misses
type CachedEmbedder struct {
	inner Embedder
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedEmbedder wraps inner; a zero ttl uses the cache default
func NewCachedEmbedder(inner Embedder, c cache.Cache, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: c, ttl: ttl}
}

func (e *CachedEmbedder) ModelName() string { return e.inner.ModelName() }

func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	for i, t := range texts {
		if v, ok := cache.GetVector(e.cache, cache.EmbeddingKey(e.inner.ModelName(), t)); ok {
			out[i] = v
			continue
		}
		missTexts = append(missTexts, t)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := e.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(missTexts))
	}
	for j, v := range vecs {
		out[missIdx[j]] = v
		// Cache write failures only cost a future re-embed
		_ = cache.SetVector(e.cache, cache.EmbeddingKey(e.inner.ModelName(), missTexts[j]), v, e.ttl)
	}
	return out, nil
}
