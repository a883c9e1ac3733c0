// Package vectorstore provides storage and similarity search over angle
// embeddings. Vectors are stored alongside the audit records in SQLite and
// compared in-process with cosine similarity.
package vectorstore

import (
	"context"
	"math"
)

// VectorStore provides semantic search operations over stored embeddings.
type VectorStore interface {
	// Store saves the embedding computed for an angle.
	Store(ctx context.Context, angleID string, embedding []float64) error

	// Search finds stored angles similar to the query embedding, ordered by
	// similarity (highest first), truncated to limit.
	Search(ctx context.Context, query []float64, limit int) ([]SearchResult, error)

	// PriorEmbeddings returns the most recently stored embeddings, newest
	// first, as the historical snapshot for a redundancy pass.
	PriorEmbeddings(ctx context.Context, limit int) ([][]float64, error)
}

// SearchResult contains a similar angle and its similarity score.
type SearchResult struct {
	AngleID    string  // Unique identifier of the stored angle
	Similarity float64 // Cosine similarity (higher = more similar)
}

// CosineSimilarity computes the cosine of the angle between two vectors:
// dot product divided by the product of Euclidean norms. It returns 0.0 when
// either vector has zero norm and never divides by zero.
func CosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
	}
	for _, x := range a {
		normA += x * x
	}
	for _, y := range b {
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
