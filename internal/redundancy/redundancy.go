// Package redundancy removes semantically duplicate insight angles. Angles
// are embedded and compared with cosine similarity against a growing pool of
// accepted angles, so of two near-duplicates only the first survives.
package redundancy

import (
	"context"
	"fmt"
	"log/slog"

	"curateai/internal/core"
	"curateai/internal/llm"
	"curateai/internal/logger"
	"curateai/internal/vectorstore"
)

// DefaultSimilarityThreshold is the cosine similarity at or above which two
// angles count as duplicates.
const DefaultSimilarityThreshold = 0.85

// Rejection records one angle suppressed as redundant.
type Rejection struct {
	Angle  core.InsightAngle // The suppressed angle
	Reason string            // Includes the measured similarity
}

// Filter deduplicates angles by embedding similarity.
type Filter struct {
	embedder  llm.Embedder
	threshold float64
	log       *slog.Logger
}

// NewFilter creates a redundancy filter. A non-positive threshold falls back
// to the default.
func NewFilter(embedder llm.Embedder, threshold float64) *Filter {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return &Filter{
		embedder:  embedder,
		threshold: threshold,
		log:       logger.Get(),
	}
}

// Deduplicate processes angles in input order against a pool seeded with the
// prior embeddings. An angle whose maximum similarity to the pool reaches the
// threshold is rejected; otherwise it is kept and its embedding joins the
// pool. Results are order-sensitive: of two mutual duplicates, the one
// processed first wins. An embedding failure aborts the pass, because
// skipping comparison would let duplicates through silently.
func (f *Filter) Deduplicate(ctx context.Context, angles []core.InsightAngle, prior [][]float64) ([]core.InsightAngle, []AngleEmbedding, []Rejection, error) {
	pool := make([][]float64, 0, len(prior)+len(angles))
	pool = append(pool, prior...)

	var kept []core.InsightAngle
	var keptEmbeddings []AngleEmbedding
	var rejected []Rejection

	for _, angle := range angles {
		embedding, err := f.embedder.Embed(ctx, embeddingText(angle))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to embed angle %s: %w", angle.ID, err)
		}

		maxSim := 0.0
		for _, existing := range pool {
			if sim := vectorstore.CosineSimilarity(embedding, existing); sim > maxSim {
				maxSim = sim
			}
		}

		if maxSim >= f.threshold {
			reason := fmt.Sprintf("Too similar to prior angle (similarity: %.2f >= %.2f)", maxSim, f.threshold)
			rejected = append(rejected, Rejection{Angle: angle, Reason: reason})
			f.log.Debug("Rejected redundant angle", "angle_id", angle.ID, "similarity", maxSim)
			continue
		}

		pool = append(pool, embedding)
		kept = append(kept, angle)
		keptEmbeddings = append(keptEmbeddings, AngleEmbedding{AngleID: angle.ID, Embedding: embedding})
	}

	f.log.Info("Deduplicated angles",
		"input_count", len(angles),
		"kept", len(kept),
		"rejected", len(rejected),
		"prior_pool_size", len(prior),
	)
	return kept, keptEmbeddings, rejected, nil
}

// AngleEmbedding pairs a kept angle's ID with the embedding computed for it,
// so the caller can persist embeddings without recomputing them.
type AngleEmbedding struct {
	AngleID   string
	Embedding []float64
}

// embeddingText is the canonical text an angle is embedded from. Stance and
// rationale together capture what makes two angles "the same take".
func embeddingText(angle core.InsightAngle) string {
	return angle.Stance + " " + angle.WhyItMatters
}
