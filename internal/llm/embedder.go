package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strings"
	"unicode"

	"curateai/internal/core"
)

// Embedder maps text to a fixed-dimension comparison vector. Implementations
// must be deterministic (same text yields an identical vector), side-effect
// free, and safe for concurrent use. Callers must not assume which
// implementation they are given.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Dimensions() int
}

// HashEmbedder is a deterministic, offline embedder built on token feature
// hashing: each token is hashed into a signed bucket of the output vector.
// Texts sharing most of their tokens land close together under cosine
// similarity, which preserves the locality property callers rely on.
type HashEmbedder struct{}

// NewHashEmbedder creates the deterministic fallback embedder.
func NewHashEmbedder() HashEmbedder { return HashEmbedder{} }

// Embed hashes the text's tokens into a 768-dimension vector. It never fails.
func (HashEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, core.EmbeddingDimensions)
	for _, token := range tokenize(text) {
		sum := sha256.Sum256([]byte(token))
		idx := binary.BigEndian.Uint32(sum[:4]) % core.EmbeddingDimensions
		if sum[4]&1 == 0 {
			vec[idx]++
		} else {
			vec[idx]--
		}
	}
	return vec, nil
}

// Dimensions returns the fixed embedding dimension.
func (HashEmbedder) Dimensions() int { return core.EmbeddingDimensions }

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
