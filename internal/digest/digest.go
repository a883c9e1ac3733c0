// Package digest assembles the final bounded brief from accepted angles.
// Compression is deterministic string work: the opinionated content was
// already produced upstream, the editor only shapes it for delivery.
package digest

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"curateai/internal/core"
	"curateai/internal/logger"
)

const (
	// MaxBriefAngles bounds the digest.
	MaxBriefAngles = 5
	// maxInsightLength is the compressed stance budget (about two lines).
	maxInsightLength = 200
	// maxFramingPoints caps the framing bullets per angle.
	maxFramingPoints = 5
	// maxFramingPointLength keeps each bullet scannable.
	maxFramingPointLength = 50
	// maxSupportingLinks caps the links per angle.
	maxSupportingLinks = 5
	// maxAngleAssets caps the visual assets per angle.
	maxAngleAssets = 3
)

// Stats carries the audit counters the brief reports alongside the angles.
type Stats struct {
	TopicsConsidered int // topics entering the pipeline after merge
	TopicsFiltered   int // topics that passed the relevance filter
	AnglesGenerated  int // angles produced before dedup
}

// Editor compresses accepted angles into a DigestBrief.
type Editor struct {
	now func() time.Time
	log *slog.Logger
}

// NewEditor creates a digest editor.
func NewEditor() *Editor {
	return &Editor{now: time.Now, log: logger.Get()}
}

// BuildBrief assembles the brief from deduplicated angles, assumed already
// ordered by preference. It takes at most MaxBriefAngles and compresses each.
// topicTitles maps topic IDs to their titles for attribution; assets maps
// angle IDs to their curated assets and may be nil.
func (e *Editor) BuildBrief(runID string, angles []core.InsightAngle, topicTitles map[string]string, assets map[string][]core.CuratedAsset, stats Stats) core.DigestBrief {
	selected := angles
	if len(selected) > MaxBriefAngles {
		selected = selected[:MaxBriefAngles]
	}

	final := make([]core.FinalAngle, 0, len(selected))
	for _, angle := range selected {
		title := topicTitles[angle.TopicID]
		if title == "" {
			title = "Unknown Topic"
		}
		final = append(final, compressAngle(angle, title, assets[angle.ID]))
	}

	e.log.Info("Assembled digest brief",
		"run_id", runID,
		"angles", len(final),
		"topics_considered", stats.TopicsConsidered,
	)

	return core.DigestBrief{
		RunID:            runID,
		GeneratedAt:      e.now().UTC(),
		Angles:           final,
		TopicsConsidered: stats.TopicsConsidered,
		TopicsFiltered:   stats.TopicsFiltered,
		AnglesGenerated:  stats.AnglesGenerated,
	}
}

// compressAngle shapes one angle for the brief: stance truncated at a
// sentence boundary when possible, framing points derived from second-order
// effects, links collected from curated link assets and evidence, visual
// assets carried alongside.
func compressAngle(angle core.InsightAngle, topicTitle string, assets []core.CuratedAsset) core.FinalAngle {
	insight := compressText(angle.Stance, maxInsightLength)

	framing := make([]string, 0, maxFramingPoints)
	for _, effect := range angle.SecondOrderEffects {
		if len(framing) >= maxFramingPoints {
			break
		}
		framing = append(framing, compressText(effect, maxFramingPointLength))
	}
	// Two framing points minimum; pad from the rationale when effects run short
	if len(framing) < 2 && angle.WhyItMatters != "" {
		framing = append(framing, compressText(angle.WhyItMatters, maxFramingPointLength))
	}

	var links []string
	seen := make(map[string]bool)
	addLink := func(u string) {
		if u == "" || seen[u] || len(links) >= maxSupportingLinks {
			return
		}
		seen[u] = true
		links = append(links, u)
	}

	var visual []core.CuratedAsset
	for _, asset := range assets {
		if asset.Kind == core.AssetLink {
			addLink(asset.URL)
		} else if len(visual) < maxAngleAssets {
			visual = append(visual, asset)
		}
	}
	for _, evidence := range angle.SupportingEvidence {
		if strings.HasPrefix(evidence, "http://") || strings.HasPrefix(evidence, "https://") {
			addLink(evidence)
		}
	}

	return core.FinalAngle{
		Insight:         insight,
		WhyItMatters:    angle.WhyItMatters,
		RelevantFor:     angle.RelevantFor,
		FramingPoints:   framing,
		SupportingLinks: links,
		Assets:          visual,
		Confidence:      angle.Confidence,
		TopicTitle:      topicTitle,
	}
}

// compressText truncates at a sentence boundary when one fits the budget,
// otherwise hard-truncates with an ellipsis. Limits count runes, so a
// truncation never splits a multi-byte character.
func compressText(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if idx := strings.Index(s, ". "); idx >= 0 {
		if sentence := s[:idx+1]; utf8.RuneCountInString(sentence) <= limit {
			return sentence
		}
	}
	return string(runes[:limit-3]) + "..."
}

// ValidateBrief reports structural problems with an assembled brief. An empty
// slice means the brief is well-formed.
func ValidateBrief(brief core.DigestBrief) []string {
	var issues []string

	if len(brief.Angles) > MaxBriefAngles {
		issues = append(issues, fmt.Sprintf("brief has %d angles, maximum is %d", len(brief.Angles), MaxBriefAngles))
	}
	for i, angle := range brief.Angles {
		if angle.Insight == "" {
			issues = append(issues, fmt.Sprintf("angle %d has no insight", i))
		}
		if utf8.RuneCountInString(angle.Insight) > maxInsightLength {
			issues = append(issues, fmt.Sprintf("angle %d insight exceeds %d chars", i, maxInsightLength))
		}
		if len(angle.RelevantFor) == 0 {
			issues = append(issues, fmt.Sprintf("angle %d names no audience", i))
		}
		if len(angle.FramingPoints) > maxFramingPoints {
			issues = append(issues, fmt.Sprintf("angle %d has %d framing points, maximum is %d", i, len(angle.FramingPoints), maxFramingPoints))
		}
	}
	return issues
}
