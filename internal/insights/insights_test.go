package insights

import (
	"strings"
	"testing"

	"curateai/internal/core"
)

func TestInsightSchemaRequiredFields(t *testing.T) {
	schema := insightSchema()

	for _, field := range []string{"stance", "why_it_matters", "second_order_effects", "relevant_for", "confidence", "is_neutral_take"} {
		if _, ok := schema.Properties[field]; !ok {
			t.Errorf("schema missing property %q", field)
		}
		found := false
		for _, req := range schema.Required {
			if req == field {
				found = true
			}
		}
		if !found {
			t.Errorf("field %q should be required", field)
		}
	}

	// Evidence is optional; the model may have nothing concrete to cite
	if _, ok := schema.Properties["supporting_evidence"]; !ok {
		t.Error("schema missing supporting_evidence property")
	}
	for _, req := range schema.Required {
		if req == "supporting_evidence" {
			t.Error("supporting_evidence must not be required")
		}
	}
}

func TestBuildPromptIncludesTopicFields(t *testing.T) {
	topic := core.ScoredTopic{
		CandidateTopic: core.CandidateTopic{
			Title:      "Speculative decoding in production",
			Source:     "arXiv",
			SourceKind: core.SourceArxiv,
			URL:        "https://arxiv.org/abs/1234.5678",
			Summary:    "Measured speedups across batch sizes.",
		},
	}

	prompt := buildPrompt(topic)
	for _, want := range []string{topic.Title, topic.URL, topic.Summary, "is_neutral_take"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestClamp01(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{-0.5, 0}, {0, 0}, {0.42, 0.42}, {1, 1}, {1.7, 1},
	}
	for _, tt := range tests {
		if got := clamp01(tt.in); got != tt.want {
			t.Errorf("clamp01(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
