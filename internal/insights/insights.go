// Package insights turns scored topics into opinionated angles. Each angle
// must take a clear stance; neutral summaries are refused and the topic
// yields no angle.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"curateai/internal/core"
	"curateai/internal/llm"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

// ErrNoStance indicates the model produced a neutral take, which is not a
// valid angle. The caller skips the topic rather than publishing a summary.
var ErrNoStance = errors.New("generated take is neutral, no angle produced")

// Generator produces one insight angle from a scored topic.
type Generator interface {
	Generate(ctx context.Context, topic core.ScoredTopic) (core.InsightAngle, error)
}

// LLMGenerator generates angles via Gemini structured output.
type LLMGenerator struct {
	client *llm.Client
}

// NewLLMGenerator creates a generator over the given LLM client.
func NewLLMGenerator(client *llm.Client) *LLMGenerator {
	return &LLMGenerator{client: client}
}

// generatedInsight mirrors the response schema.
type generatedInsight struct {
	Stance             string   `json:"stance"`
	WhyItMatters       string   `json:"why_it_matters"`
	SecondOrderEffects []string `json:"second_order_effects"`
	RelevantFor        []string `json:"relevant_for"`
	Confidence         float64  `json:"confidence"`
	SupportingEvidence []string `json:"supporting_evidence"`
	IsNeutralTake      bool     `json:"is_neutral_take"`
}

// insightSchema constrains the model output so every field the angle needs is
// present and typed. The is_neutral_take flag lets the model self-report a
// take it could not make opinionated.
func insightSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"stance": {
				Type:        genai.TypeString,
				Description: "Your opinionated take on this topic. Must be a clear position, not neutral.",
			},
			"why_it_matters": {
				Type:        genai.TypeString,
				Description: "Why this matters. Be specific and avoid generic statements.",
			},
			"second_order_effects": {
				Type:        genai.TypeArray,
				Items:       &genai.Schema{Type: genai.TypeString},
				Description: "Downstream implications. What this enables or disrupts.",
			},
			"relevant_for": {
				Type:        genai.TypeArray,
				Items:       &genai.Schema{Type: genai.TypeString},
				Description: "Specific audience segments (e.g. 'ML engineers at startups', 'AI product managers').",
			},
			"confidence": {
				Type:        genai.TypeNumber,
				Description: "How confident are you in this angle? (0-1)",
			},
			"supporting_evidence": {
				Type:        genai.TypeArray,
				Items:       &genai.Schema{Type: genai.TypeString},
				Description: "Key evidence points that support your stance.",
			},
			"is_neutral_take": {
				Type:        genai.TypeBoolean,
				Description: "True if this take is too neutral or generic. Should be false for good angles.",
			},
		},
		Required: []string{
			"stance", "why_it_matters", "second_order_effects",
			"relevant_for", "confidence", "is_neutral_take",
		},
	}
}

// Generate produces one angle for the topic. It returns ErrNoStance when the
// model flags its own take as neutral, and a validation error when the output
// misses required substance.
func (g *LLMGenerator) Generate(ctx context.Context, topic core.ScoredTopic) (core.InsightAngle, error) {
	prompt := buildPrompt(topic)

	raw, err := g.client.GenerateStructured(ctx, prompt, insightSchema())
	if err != nil {
		return core.InsightAngle{}, fmt.Errorf("failed to generate angle: %w", err)
	}

	var out generatedInsight
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return core.InsightAngle{}, fmt.Errorf("failed to parse angle response: %w", err)
	}

	if out.IsNeutralTake {
		return core.InsightAngle{}, ErrNoStance
	}
	if out.Stance == "" || out.WhyItMatters == "" {
		return core.InsightAngle{}, fmt.Errorf("angle response missing stance or rationale")
	}
	if len(out.SecondOrderEffects) == 0 {
		return core.InsightAngle{}, fmt.Errorf("angle response missing second-order effects")
	}
	if len(out.RelevantFor) == 0 {
		return core.InsightAngle{}, fmt.Errorf("angle response missing target audience")
	}

	return core.InsightAngle{
		ID:                 uuid.NewString(),
		TopicID:            topic.ID,
		Stance:             out.Stance,
		WhyItMatters:       out.WhyItMatters,
		SecondOrderEffects: out.SecondOrderEffects,
		RelevantFor:        out.RelevantFor,
		Confidence:         clamp01(out.Confidence),
		SupportingEvidence: out.SupportingEvidence,
	}, nil
}

func buildPrompt(topic core.ScoredTopic) string {
	return fmt.Sprintf(`You are an opinionated AI industry analyst. Generate one insight angle for the topic below.

Requirements:
- Take a clear stance. Never produce a neutral summary.
- Explain why it matters beyond the obvious.
- Identify 2-5 second-order effects: what this enables or disrupts downstream.
- Name 1-4 specific audience segments this is relevant for.
- If you genuinely cannot form an opinionated take, set is_neutral_take to true.

Topic: %s
Source: %s (%s)
URL: %s
Summary: %s`,
		topic.Title, topic.Source, topic.SourceKind, topic.URL, topic.Summary)
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
