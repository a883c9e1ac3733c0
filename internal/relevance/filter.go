package relevance

import (
	"context"
	"log/slog"
	"sort"

	"curateai/internal/core"
	"curateai/internal/logger"
)

// Options configures one filtering pass.
type Options struct {
	MinCombinedScore float64 // inclusive lower bound on the combined score
	MaxTopics        int     // cap on the number of returned topics
}

// DefaultOptions returns the standard thresholds.
func DefaultOptions() Options {
	return Options{MinCombinedScore: 0.4, MaxTopics: 15}
}

// Result distinguishes the three ways a topic can fail to reach the output:
// heuristic rejection (audited), falling below the combined-score threshold,
// and a scoring failure (dropped, not counted as rejected).
type Result struct {
	Kept            []core.ScoredTopic // passed threshold, ranked, truncated
	Rejected        []core.ScoredTopic // heuristically rejected, with reasons
	BelowThreshold  []core.ScoredTopic // scored but under the combined threshold
	ScoringFailures int                // topics dropped because scoring errored
}

// Filter applies the heuristic pre-filter and the scoring function to a
// batch of candidate topics.
type Filter struct {
	scorer Scorer
	log    *slog.Logger
}

// NewFilter creates a filter over the given scorer.
func NewFilter(scorer Scorer) *Filter {
	return &Filter{scorer: scorer, log: logger.Get()}
}

// Apply scores and filters topics. Kept topics are sorted by combined score
// descending (stable, so input order breaks ties) and truncated to
// opts.MaxTopics. A per-topic scoring error never aborts the batch.
func (f *Filter) Apply(ctx context.Context, topics []core.CandidateTopic, opts Options) Result {
	if opts.MaxTopics <= 0 {
		opts.MaxTopics = 15
	}

	var result Result
	var scored []core.ScoredTopic

	for _, topic := range topics {
		if reason, rejected := Prefilter(topic); rejected {
			result.Rejected = append(result.Rejected, core.ScoredTopic{
				CandidateTopic:  topic,
				Rejected:        true,
				RejectionReason: reason,
			})
			f.log.Debug("Rejected topic", "title", truncate(topic.Title, 50), "reason", reason)
			continue
		}

		axes, err := f.scorer.Score(ctx, topic)
		if err != nil {
			// Isolated: the topic is dropped, not counted as rejected
			f.log.Warn("Scoring failed for topic", "title", truncate(topic.Title, 50), "error", err.Error())
			result.ScoringFailures++
			continue
		}

		relevance := clamp01(axes.Relevance + PracticalBoost(topic))
		combined := (relevance + axes.Novelty + axes.Impact) / 3

		scored = append(scored, core.ScoredTopic{
			CandidateTopic: topic,
			RelevanceScore: relevance,
			NoveltyScore:   axes.Novelty,
			ImpactScore:    axes.Impact,
			CombinedScore:  combined,
		})
	}

	// Inclusive threshold: a topic scoring exactly the minimum is retained.
	// Below-threshold topics keep their scores so the audit trail can tell
	// "scored too low" apart from "rejected for cause".
	var passed []core.ScoredTopic
	for _, topic := range scored {
		if topic.CombinedScore >= opts.MinCombinedScore {
			passed = append(passed, topic)
		} else {
			result.BelowThreshold = append(result.BelowThreshold, topic)
		}
	}

	sort.SliceStable(passed, func(i, j int) bool {
		return passed[i].CombinedScore > passed[j].CombinedScore
	})
	if len(passed) > opts.MaxTopics {
		passed = passed[:opts.MaxTopics]
	}
	result.Kept = passed

	f.log.Info("Filtered topics",
		"input_count", len(topics),
		"rejected", len(result.Rejected),
		"below_threshold", len(result.BelowThreshold),
		"scoring_failures", result.ScoringFailures,
		"returned", len(result.Kept),
	)
	return result
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
