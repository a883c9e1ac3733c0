// Package relevance scores and filters candidate topics. A fast heuristic
// pre-filter rejects obvious noise before the scoring function runs; scored
// topics are then thresholded, ranked, and truncated.
package relevance

import (
	"context"
	"fmt"
	"strings"

	"curateai/internal/core"
)

// hypeIndicators are phrases that mark marketing/hype content. Three or more
// matches reject a topic outright.
var hypeIndicators = []string{
	"revolutionary", "game-changing", "disrupting", "unprecedented",
	"breakthrough", "magic", "secret", "exclusive", "limited time",
	"you won't believe", "amazing", "incredible", "unbelievable",
}

// aiKeywords is the domain-relevance lexicon; a topic matching none of these
// is rejected as off-topic.
var aiKeywords = []string{
	"ai", "ml", "machine learning", "neural", "llm", "transformer", "model",
}

// practicalIndicators boost the relevance axis: +0.05 per match, capped at +0.20.
var practicalIndicators = []string{
	"benchmark", "performance", "latency", "throughput", "accuracy",
	"implementation", "code", "open source", "api", "sdk",
	"tutorial", "guide", "how to", "production", "deployment",
}

const (
	practicalBoostPerMatch = 0.05
	practicalBoostCap      = 0.20
	minSummaryLength       = 50
	hypeRejectCount        = 3
)

// AxisScores are the three relevance axes produced by a scorer, each in [0,1].
type AxisScores struct {
	Relevance float64
	Novelty   float64
	Impact    float64
}

// Scorer produces axis scores for a topic that survived the pre-filter.
// The production path may delegate to an LLM judge; the default is the
// deterministic heuristic scorer.
type Scorer interface {
	Score(ctx context.Context, topic core.CandidateTopic) (AxisScores, error)
}

// Prefilter applies the heuristic rejection rules. It is a pure function of
// the topic text: the same input always yields the same verdict and reason.
func Prefilter(topic core.CandidateTopic) (reason string, rejected bool) {
	combined := strings.ToLower(topic.Title + " " + topic.Summary)

	hypeCount := 0
	for _, h := range hypeIndicators {
		if strings.Contains(combined, h) {
			hypeCount++
		}
	}
	if hypeCount >= hypeRejectCount {
		return fmt.Sprintf("High hype content (matched %d hype indicators)", hypeCount), true
	}

	if len(topic.Summary) < minSummaryLength {
		return "Insufficient summary content", true
	}

	for _, kw := range aiKeywords {
		if strings.Contains(combined, kw) {
			return "", false
		}
	}
	return "Not AI/ML related content", true
}

// PracticalBoost computes the additive relevance boost from the practicality
// lexicon.
func PracticalBoost(topic core.CandidateTopic) float64 {
	combined := strings.ToLower(topic.Title + " " + topic.Summary)
	boost := 0.0
	for _, p := range practicalIndicators {
		if strings.Contains(combined, p) {
			boost += practicalBoostPerMatch
		}
	}
	if boost > practicalBoostCap {
		boost = practicalBoostCap
	}
	return boost
}
