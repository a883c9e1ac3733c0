package digest

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"curateai/internal/core"
)

func sampleAngle(id string) core.InsightAngle {
	return core.InsightAngle{
		ID:           id,
		TopicID:      "topic-" + id,
		Stance:       "A short punchy stance for " + id + ".",
		WhyItMatters: "It shifts the cost curve.",
		SecondOrderEffects: []string{
			"cheaper inference at the edge",
			"new procurement criteria",
		},
		RelevantFor:        []string{"platform engineers"},
		Confidence:         0.8,
		SupportingEvidence: []string{"https://example.com/evidence", "not a link"},
	}
}

func TestBuildBriefCapsAngles(t *testing.T) {
	editor := NewEditor()

	var angles []core.InsightAngle
	titles := make(map[string]string)
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		angles = append(angles, sampleAngle(id))
		titles["topic-"+id] = "Title " + id
	}

	brief := editor.BuildBrief("run-1", angles, titles, nil, Stats{TopicsConsidered: 40, TopicsFiltered: 12, AnglesGenerated: 7})

	if len(brief.Angles) != MaxBriefAngles {
		t.Fatalf("expected %d angles, got %d", MaxBriefAngles, len(brief.Angles))
	}
	// Input order is preserved; the first angles are the chosen ones
	if brief.Angles[0].TopicTitle != "Title a" {
		t.Errorf("unexpected first angle title %q", brief.Angles[0].TopicTitle)
	}
	if brief.TopicsConsidered != 40 || brief.TopicsFiltered != 12 || brief.AnglesGenerated != 7 {
		t.Errorf("audit counters not carried through: %+v", brief)
	}
	if brief.GeneratedAt.IsZero() {
		t.Error("brief must carry a generation timestamp")
	}
}

func TestBuildBriefCompressesLongStance(t *testing.T) {
	editor := NewEditor()

	long := sampleAngle("x")
	long.Stance = "The first sentence is the real claim and fits the budget. " +
		strings.Repeat("Padding sentence that keeps going. ", 10)

	brief := editor.BuildBrief("run-1", []core.InsightAngle{long},
		map[string]string{"topic-x": "Title"}, nil, Stats{})

	insight := brief.Angles[0].Insight
	if len(insight) > 200 {
		t.Errorf("insight exceeds 200 chars: %d", len(insight))
	}
	if insight != "The first sentence is the real claim and fits the budget." {
		t.Errorf("expected truncation at the sentence boundary, got %q", insight)
	}
}

func TestBuildBriefHardTruncatesUnbrokenText(t *testing.T) {
	editor := NewEditor()

	long := sampleAngle("x")
	long.Stance = strings.Repeat("a", 300)

	brief := editor.BuildBrief("run-1", []core.InsightAngle{long},
		map[string]string{"topic-x": "Title"}, nil, Stats{})

	insight := brief.Angles[0].Insight
	if len(insight) != 200 {
		t.Errorf("expected exactly 200 chars, got %d", len(insight))
	}
	if !strings.HasSuffix(insight, "...") {
		t.Errorf("hard truncation should end with ellipsis, got %q", insight[190:])
	}
}

func TestBuildBriefFramingAndLinks(t *testing.T) {
	editor := NewEditor()

	angle := sampleAngle("x")
	brief := editor.BuildBrief("run-1", []core.InsightAngle{angle},
		map[string]string{"topic-x": "Title"}, nil, Stats{})

	final := brief.Angles[0]
	if len(final.FramingPoints) != 2 {
		t.Fatalf("expected 2 framing points, got %d", len(final.FramingPoints))
	}
	// Only URL-shaped evidence becomes a supporting link
	if len(final.SupportingLinks) != 1 || final.SupportingLinks[0] != "https://example.com/evidence" {
		t.Errorf("unexpected supporting links %v", final.SupportingLinks)
	}
}

func TestBuildBriefUnknownTopicTitle(t *testing.T) {
	editor := NewEditor()

	brief := editor.BuildBrief("run-1", []core.InsightAngle{sampleAngle("x")}, nil, nil, Stats{})
	if brief.Angles[0].TopicTitle != "Unknown Topic" {
		t.Errorf("expected placeholder title, got %q", brief.Angles[0].TopicTitle)
	}
}

func TestValidateBrief(t *testing.T) {
	good := core.DigestBrief{
		Angles: []core.FinalAngle{{
			Insight:       "Fine.",
			RelevantFor:   []string{"engineers"},
			FramingPoints: []string{"one", "two"},
		}},
	}
	if issues := ValidateBrief(good); len(issues) != 0 {
		t.Errorf("expected no issues, got %v", issues)
	}

	bad := core.DigestBrief{
		Angles: []core.FinalAngle{{
			Insight:       strings.Repeat("x", 250),
			FramingPoints: []string{"1", "2", "3", "4", "5", "6"},
		}},
	}
	issues := ValidateBrief(bad)
	if len(issues) != 3 {
		t.Errorf("expected 3 issues (length, audience, framing), got %v", issues)
	}
}

func TestBuildBriefMergesAssetLinks(t *testing.T) {
	editor := NewEditor()

	angle := sampleAngle("x")
	assets := map[string][]core.CuratedAsset{
		"x": {
			{URL: "https://example.com/figure.png", Kind: core.AssetFigure, Description: "Figure from source"},
			{URL: "https://example.com/post", Kind: core.AssetLink, Description: "Original source"},
			{URL: "https://example.com/evidence", Kind: core.AssetLink, Description: "Original source"},
		},
	}

	brief := editor.BuildBrief("run-1", []core.InsightAngle{angle},
		map[string]string{"topic-x": "Title"}, assets, Stats{})

	final := brief.Angles[0]
	// The source link comes first; the evidence URL that duplicates an asset
	// link appears once
	want := []string{"https://example.com/post", "https://example.com/evidence"}
	if len(final.SupportingLinks) != len(want) {
		t.Fatalf("unexpected links %v", final.SupportingLinks)
	}
	for i, link := range want {
		if final.SupportingLinks[i] != link {
			t.Errorf("link[%d] = %q, want %q", i, final.SupportingLinks[i], link)
		}
	}
	if len(final.Assets) != 1 || final.Assets[0].Kind != core.AssetFigure {
		t.Errorf("expected the figure carried as a visual asset, got %+v", final.Assets)
	}
}

func TestBuildBriefCapsVisualAssets(t *testing.T) {
	editor := NewEditor()

	angle := sampleAngle("x")
	var many []core.CuratedAsset
	for i := 0; i < 6; i++ {
		many = append(many, core.CuratedAsset{
			URL:         fmt.Sprintf("https://example.com/fig-%d.png", i),
			Kind:        core.AssetFigure,
			Description: "Figure from source",
		})
	}

	brief := editor.BuildBrief("run-1", []core.InsightAngle{angle},
		map[string]string{"topic-x": "Title"}, map[string][]core.CuratedAsset{"x": many}, Stats{})

	if len(brief.Angles[0].Assets) != 3 {
		t.Errorf("expected 3 visual assets, got %d", len(brief.Angles[0].Assets))
	}
}

func TestCompressTextKeepsRuneBoundaries(t *testing.T) {
	long := strings.Repeat("é", 300)
	got := compressText(long, 200)
	if !utf8.ValidString(got) {
		t.Fatalf("truncation produced invalid UTF-8: %q", got[:12])
	}
	if utf8.RuneCountInString(got) != 200 {
		t.Errorf("expected 200 runes, got %d", utf8.RuneCountInString(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("hard truncation should end with ellipsis")
	}

	short := strings.Repeat("é", 100)
	if compressText(short, 200) != short {
		t.Error("text within the rune limit must pass through unchanged")
	}
}
