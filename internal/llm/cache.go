package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedEmbedder wraps an Embedder with an expiring LRU cache keyed by text
// content. Re-syncing a folder re-embeds only what actually changed; repeated
// queries for the same text never hit the upstream API inside the TTL.
type CachedEmbedder struct {
	inner Embedder
	cache *expirable.LRU[string, []float32]
}

// NewCachedEmbedder creates a caching wrapper around inner holding up to size
// vectors for at most ttl each.
func NewCachedEmbedder(inner Embedder, size int, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{
		inner: inner,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

// EmbedTexts returns one vector per input text, serving cached entries and
// batching the misses into a single upstream call. Duplicate texts within one
// batch are embedded once.
func (e *CachedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input array")
	}

	results := make([][]float32, len(texts))
	pos := make([]int, len(texts))
	missByKey := make(map[string]int)
	var missTexts []string

	for i, text := range texts {
		key := cacheKey(text)
		if vec, ok := e.cache.Get(key); ok {
			results[i] = vec
			pos[i] = -1
			continue
		}
		p, ok := missByKey[key]
		if !ok {
			p = len(missTexts)
			missTexts = append(missTexts, text)
			missByKey[key] = p
		}
		pos[i] = p
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	embeddings, err := e.inner.EmbedTexts(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(missTexts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(missTexts), len(embeddings))
	}

	for i := range texts {
		if pos[i] >= 0 {
			results[i] = embeddings[pos[i]]
		}
	}
	for key, p := range missByKey {
		e.cache.Add(key, embeddings[p])
	}

	return results, nil
}

// Len reports how many vectors the cache currently holds.
func (e *CachedEmbedder) Len() int {
	return e.cache.Len()
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
