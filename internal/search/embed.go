package search

import (
	"context"
	"hash/fnv"
	"math"
)

// Embedder turns text into a fixed-dimension vector for the semantic
// channel. The local hash embedder is the default; a remote model can be
// substituted without touching the searcher.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dim() int
}

// HashEmbedder is a deterministic, dependency-free embedder: each token and
// each character trigram hashes to a signed slot, and the result is
// L2-normalized. It captures lexical overlap rather than meaning, which is
// enough for invocation phrases drawn from a closed business vocabulary.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a hash embedder. Dimension must match the store's
// embedding dimension.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = 256
	}
	return &HashEmbedder{dim: dim}
}

func (e *HashEmbedder) Dim() int { return e.dim }

func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dim)
	for _, tok := range Tokens(text) {
		e.accumulate(vec, tok, 1.0)
		// Character trigrams give partial credit to near-miss spellings.
		runes := []rune(tok)
		for i := 0; i+3 <= len(runes); i++ {
			e.accumulate(vec, string(runes[i:i+3]), 0.5)
		}
	}
	normalizeL2(vec)
	return vec, nil
}

func (e *HashEmbedder) accumulate(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()
	slot := int(sum % uint64(e.dim))
	// High bit decides sign so collisions partially cancel.
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[slot] += weight
}

func normalizeL2(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
}
