package relevance

import (
	"context"
	"strings"
	"time"

	"curateai/internal/core"
)

// HeuristicScorer is the default scoring function: a deterministic stand-in
// for an LLM judge built from keyword, recency, and source-authority signals.
type HeuristicScorer struct {
	now func() time.Time
}

// NewHeuristicScorer creates the default scorer.
func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{now: time.Now}
}

// Score produces the three axis scores for a topic.
func (hs *HeuristicScorer) Score(_ context.Context, topic core.CandidateTopic) (AxisScores, error) {
	return AxisScores{
		Relevance: 0.5,
		Novelty:   hs.noveltyScore(topic.PublishedAt),
		Impact:    authorityScore(topic.URL),
	}, nil
}

// noveltyScore maps publication age to a freshness score: 1.0 for today,
// decreasing in steps with age. Unknown dates score neutral.
func (hs *HeuristicScorer) noveltyScore(published time.Time) float64 {
	if published.IsZero() {
		return 0.5
	}

	days := hs.now().Sub(published).Hours() / 24
	switch {
	case days <= 1:
		return 1.0
	case days <= 7:
		return 0.8
	case days <= 30:
		return 0.6
	case days <= 90:
		return 0.4
	default:
		return 0.2
	}
}

var highAuthorityDomains = []string{
	"github.com", "arxiv.org", "ieee.org", "acm.org",
	"nature.com", "science.org", "mit.edu", "stanford.edu",
	"google.com", "microsoft.com", "openai.com", "anthropic.com",
}

var mediumAuthorityDomains = []string{
	"medium.com", "dev.to", "hashnode.com", "substack.com",
	"techcrunch.com", "arstechnica.com", "wired.com", "theverge.com",
}

// authorityScore provides basic domain authority scoring as the impact axis.
func authorityScore(rawURL string) float64 {
	if rawURL == "" {
		return 0.5
	}
	lowered := strings.ToLower(rawURL)

	for _, domain := range highAuthorityDomains {
		if strings.Contains(lowered, domain) {
			return 0.9
		}
	}
	for _, domain := range mediumAuthorityDomains {
		if strings.Contains(lowered, domain) {
			return 0.7
		}
	}
	return 0.5
}
