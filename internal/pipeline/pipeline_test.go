package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"curateai/internal/config"
	"curateai/internal/core"
	"curateai/internal/insights"
	"curateai/internal/llm"
	"curateai/internal/redundancy"
	"curateai/internal/relevance"
	"curateai/internal/sources"
	"curateai/internal/store"
	"curateai/internal/vectorstore"
)

type listAdapter struct {
	name  string
	items []core.RawItem
}

func (a *listAdapter) Name() string { return a.name }

func (a *listAdapter) Fetch(context.Context, time.Duration) ([]core.RawItem, error) {
	return a.items, nil
}

// stanceGenerator derives a deterministic angle from the topic text.
type stanceGenerator struct {
	noStanceIDs map[string]bool
	failIDs     map[string]bool
}

func (g *stanceGenerator) Generate(_ context.Context, topic core.ScoredTopic) (core.InsightAngle, error) {
	if g.noStanceIDs[topic.ID] {
		return core.InsightAngle{}, insights.ErrNoStance
	}
	if g.failIDs[topic.ID] {
		return core.InsightAngle{}, errors.New("generation backend unavailable")
	}
	return core.InsightAngle{
		ID:                 "angle-for-" + topic.ID,
		TopicID:            topic.ID,
		Stance:             "Strong take on " + topic.Title,
		WhyItMatters:       "It changes how teams build on " + topic.Title,
		SecondOrderEffects: []string{"tooling shifts", "budget shifts"},
		RelevantFor:        []string{"engineers"},
		Confidence:         topic.CombinedScore,
	}, nil
}

func freshItem(title, url string) core.RawItem {
	return core.RawItem{
		Title:       title,
		URL:         url,
		Source:      "Test Feed",
		SourceKind:  core.SourceRSS,
		Summary:     "Detailed llm benchmark writeup about " + title + " with code and deployment notes.",
		PublishedAt: time.Now().UTC().Add(-2 * time.Hour),
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Relevance:  config.Relevance{MinCombinedScore: 0.4, MaxTopics: 15},
		Redundancy: config.Redundancy{SimilarityThreshold: 0.85},
	}
}

func newDryRunOrchestrator(adapter sources.Adapter, gen insights.Generator) *Orchestrator {
	return NewOrchestrator(
		testConfig(),
		sources.NewManagerWithAdapters(adapter),
		relevance.NewFilter(relevance.NewHeuristicScorer()),
		gen,
		redundancy.NewFilter(llm.NewHashEmbedder(), 0.85),
		nil, // curator skipped when absent
		nil, // store unused in dry-run
		nil, // vector store unused in dry-run
		nil, // notifier unused in dry-run
	)
}

func TestRunEndToEndDryRun(t *testing.T) {
	adapter := &listAdapter{name: "rss", items: []core.RawItem{
		freshItem("Quantized serving stacks", "https://github.com/org/serving"),
		freshItem("Speculative decoding tradeoffs", "https://github.com/org/decoding"),
	}}
	orch := newDryRunOrchestrator(adapter, &stanceGenerator{})

	result, err := orch.Run(context.Background(), Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if result.Run.Status != core.RunStatusCompleted {
		t.Errorf("status = %q, want completed", result.Run.Status)
	}
	if result.TopicsFound != 2 || result.TopicsKept != 2 {
		t.Errorf("expected both topics kept, found=%d kept=%d", result.TopicsFound, result.TopicsKept)
	}
	if result.AnglesGenerated != 2 || result.AnglesKept != 2 {
		t.Errorf("expected both angles kept, generated=%d kept=%d", result.AnglesGenerated, result.AnglesKept)
	}
	if result.Brief == nil {
		t.Fatal("expected a digest brief")
	}
	if len(result.Brief.Angles) != 2 {
		t.Errorf("expected 2 brief angles, got %d", len(result.Brief.Angles))
	}
	if result.Run.ConfigHash == "" || len(result.Run.ConfigHash) != 16 {
		t.Errorf("expected a 16-char config fingerprint, got %q", result.Run.ConfigHash)
	}
	if result.Run.DurationSeconds < 0 {
		t.Errorf("negative duration %v", result.Run.DurationSeconds)
	}
}

func TestRunNoTopicsFound(t *testing.T) {
	orch := newDryRunOrchestrator(&listAdapter{name: "rss"}, &stanceGenerator{})

	result, err := orch.Run(context.Background(), Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Run.Status != core.RunStatusCompleted {
		t.Errorf("empty sourcing must still complete, got %q", result.Run.Status)
	}
	if result.Message != "No topics found" {
		t.Errorf("unexpected message %q", result.Message)
	}
	if result.Brief != nil {
		t.Error("no brief expected on early exit")
	}
}

func TestRunNoTopicsPassFilter(t *testing.T) {
	offTopic := core.RawItem{
		Title:       "Sourdough hydration deep dive",
		URL:         "https://bread.example.com/post",
		SourceKind:  core.SourceRSS,
		Summary:     "A thorough look at fermentation schedules, starters and oven spring techniques.",
		PublishedAt: time.Now().UTC(),
	}
	orch := newDryRunOrchestrator(&listAdapter{name: "rss", items: []core.RawItem{offTopic}}, &stanceGenerator{})

	result, err := orch.Run(context.Background(), Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Message != "No topics passed relevance filter" {
		t.Errorf("unexpected message %q", result.Message)
	}
	if result.RejectionCounts["Not AI/ML related content"] != 1 {
		t.Errorf("expected the rejection reason to be counted, got %v", result.RejectionCounts)
	}
}

func TestRunAllAnglesRedundantAgainstHistory(t *testing.T) {
	st, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer st.Close()

	newOrch := func() *Orchestrator {
		return NewOrchestrator(
			testConfig(),
			sources.NewManagerWithAdapters(&listAdapter{name: "rss", items: []core.RawItem{
				freshItem("serving guide alpha", "https://github.com/org/a"),
				freshItem("serving guide bravo", "https://github.com/org/b"),
			}}),
			relevance.NewFilter(relevance.NewHeuristicScorer()),
			sharedWordingGenerator{},
			redundancy.NewFilter(llm.NewHashEmbedder(), 0.85),
			nil,
			st,
			vectorstore.NewSQLiteStore(st.DB()),
			nil,
		)
	}

	// First run: the two angles share all wording, so one survives
	first, err := newOrch().Run(context.Background(), Options{SkipNotify: true})
	if err != nil {
		t.Fatalf("first run returned error: %v", err)
	}
	if first.AnglesGenerated != 2 || first.AnglesKept != 1 {
		t.Fatalf("first run: generated=%d kept=%d, want 2/1", first.AnglesGenerated, first.AnglesKept)
	}

	// Second run: the theme is already in history, so nothing survives.
	// This is a successful no-content outcome, not a failure.
	second, err := newOrch().Run(context.Background(), Options{SkipNotify: true})
	if err != nil {
		t.Fatalf("second run returned error: %v", err)
	}
	if second.Run.Status != core.RunStatusCompleted {
		t.Errorf("status = %q, want completed", second.Run.Status)
	}
	if second.Message != "All angles filtered as redundant" {
		t.Errorf("unexpected message %q", second.Message)
	}
	if second.AnglesKept != 0 {
		t.Errorf("expected no surviving angles, got %d", second.AnglesKept)
	}

	var foundReason bool
	for reason := range second.RejectionCounts {
		if strings.Contains(reason, "Too similar") {
			foundReason = true
		}
	}
	if !foundReason {
		t.Errorf("expected redundancy rejection reasons, got %v", second.RejectionCounts)
	}
}

func TestRunNoStanceTopicsAreSkipped(t *testing.T) {
	adapter := &listAdapter{name: "rss", items: []core.RawItem{
		freshItem("topic one on llm infra", "https://github.com/org/one"),
	}}
	// The single topic gets no stance; the run completes without a brief
	orch := newDryRunOrchestrator(adapter, everyTopicNoStance{})

	result, err := orch.Run(context.Background(), Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Run.Status != core.RunStatusCompleted {
		t.Errorf("status = %q, want completed", result.Run.Status)
	}
	if result.Message != "No angles generated" {
		t.Errorf("unexpected message %q", result.Message)
	}
	if result.AnglesGenerated != 0 {
		t.Errorf("expected 0 angles, got %d", result.AnglesGenerated)
	}
}

type everyTopicNoStance struct{}

func (everyTopicNoStance) Generate(context.Context, core.ScoredTopic) (core.InsightAngle, error) {
	return core.InsightAngle{}, insights.ErrNoStance
}

func TestRunPersistsAuditTrail(t *testing.T) {
	st, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer st.Close()

	adapter := &listAdapter{name: "rss", items: []core.RawItem{
		freshItem("llm quantization benchmarks", "https://github.com/org/a"),
		freshItem("agent evaluation pitfalls", "https://github.com/org/b"),
		{
			Title:       "Too thin",
			URL:         "https://example.com/thin",
			SourceKind:  core.SourceRSS,
			Summary:     "short",
			PublishedAt: time.Now().UTC(),
		},
	}}

	orch := NewOrchestrator(
		testConfig(),
		sources.NewManagerWithAdapters(adapter),
		relevance.NewFilter(relevance.NewHeuristicScorer()),
		&stanceGenerator{},
		redundancy.NewFilter(llm.NewHashEmbedder(), 0.85),
		nil,
		st,
		vectorstore.NewSQLiteStore(st.DB()),
		nil,
	)

	result, err := orch.Run(context.Background(), Options{SkipNotify: true})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	ctx := context.Background()

	runs, err := st.RecentRuns(ctx, 5)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != core.RunStatusCompleted {
		t.Fatalf("expected one completed run, got %+v", runs)
	}

	// All three topics are persisted, including the one later rejected
	var topicCount int
	if err := st.DB().QueryRow(`SELECT COUNT(*) FROM topics_seen`).Scan(&topicCount); err != nil {
		t.Fatalf("count topics: %v", err)
	}
	if topicCount != 3 {
		t.Errorf("expected 3 persisted topics, got %d", topicCount)
	}

	// The thin topic shows up in the audit trail as a rejection, not a failure
	rejections, err := st.RejectionsForRun(ctx, result.Run.ID)
	if err != nil {
		t.Fatalf("RejectionsForRun failed: %v", err)
	}
	foundThin := false
	for _, rec := range rejections {
		if rec.Stage == "relevance" && rec.Reason == "Insufficient summary content" {
			foundThin = true
		}
	}
	if !foundThin {
		t.Errorf("expected the thin topic in the rejection audit, got %+v", rejections)
	}

	// Kept angles have embeddings stored for future redundancy checks
	prior, err := vectorstore.NewSQLiteStore(st.DB()).PriorEmbeddings(ctx, 10)
	if err != nil {
		t.Fatalf("PriorEmbeddings failed: %v", err)
	}
	if len(prior) != result.AnglesKept {
		t.Errorf("expected %d stored embeddings, got %d", result.AnglesKept, len(prior))
	}
}

func TestRunDeduplicatesByConfidenceOrder(t *testing.T) {
	// Generated angles share wording; the higher-confidence one must survive
	// regardless of ingestion order. Confidence follows the combined score, so
	// the github-hosted topic outranks the unknown domain.
	low := freshItem("serving guide on a blog", "https://smallblog.example.com/serving-guide")
	high := freshItem("serving guide on github", "https://github.com/org/serving-guide")

	gen := &sharedWordingGenerator{}
	orch := newDryRunOrchestrator(&listAdapter{name: "rss", items: []core.RawItem{low, high}}, gen)

	result, err := orch.Run(context.Background(), Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.AnglesKept != 1 {
		t.Fatalf("expected 1 surviving angle, got %d", result.AnglesKept)
	}
	if result.Brief == nil || len(result.Brief.Angles) != 1 {
		t.Fatal("expected a one-angle brief")
	}
	if result.Brief.Angles[0].TopicTitle != "serving guide on github" {
		t.Errorf("expected the higher-confidence angle to win, got %q", result.Brief.Angles[0].TopicTitle)
	}
}

// sharedWordingGenerator produces angles with identical stance/rationale text
// so they always collide in the redundancy filter.
type sharedWordingGenerator struct{}

func (sharedWordingGenerator) Generate(_ context.Context, topic core.ScoredTopic) (core.InsightAngle, error) {
	return core.InsightAngle{
		ID:                 "angle-for-" + topic.ID,
		TopicID:            topic.ID,
		Stance:             "Serving guides are converging on the same architecture",
		WhyItMatters:       "The stack is standardizing faster than teams realize",
		SecondOrderEffects: []string{"vendor consolidation"},
		RelevantFor:        []string{"engineers"},
		Confidence:         topic.CombinedScore,
	}, nil
}

func TestConfigFingerprintStable(t *testing.T) {
	cfg := testConfig()
	cfg.AI.Gemini.Model = "gemini-flash-lite-latest"
	cfg.Sources.LookbackDays = 3
	cfg.Sources.Arxiv.Categories = []string{"cs.AI", "cs.LG"}

	first := cfg.Fingerprint()
	second := cfg.Fingerprint()
	if first != second {
		t.Errorf("fingerprint not stable: %q vs %q", first, second)
	}
	if len(first) != 16 {
		t.Errorf("expected 16 hex chars, got %q", first)
	}

	cfg.Sources.LookbackDays = 7
	if cfg.Fingerprint() == first {
		t.Error("fingerprint must change when the lookback window changes")
	}
}

func TestRejectionCountsAggregation(t *testing.T) {
	var items []core.RawItem
	for i := 0; i < 3; i++ {
		items = append(items, core.RawItem{
			Title:       fmt.Sprintf("Thin item %d", i),
			URL:         fmt.Sprintf("https://example.com/thin-%d", i),
			SourceKind:  core.SourceRSS,
			Summary:     "nope",
			PublishedAt: time.Now().UTC(),
		})
	}
	orch := newDryRunOrchestrator(&listAdapter{name: "rss", items: items}, &stanceGenerator{})

	result, err := orch.Run(context.Background(), Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.RejectionCounts["Insufficient summary content"] != 3 {
		t.Errorf("expected 3 identical rejection reasons aggregated, got %v", result.RejectionCounts)
	}
}

// lowScorer pins every axis low so topics score under the combined threshold.
type lowScorer struct{}

func (lowScorer) Score(context.Context, core.CandidateTopic) (relevance.AxisScores, error) {
	return relevance.AxisScores{Relevance: 0.1, Novelty: 0.1, Impact: 0.1}, nil
}

func TestRunPersistsBelowThresholdScores(t *testing.T) {
	st, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer st.Close()

	orch := NewOrchestrator(
		testConfig(),
		sources.NewManagerWithAdapters(&listAdapter{name: "rss", items: []core.RawItem{
			freshItem("llm serving notes", "https://github.com/org/notes"),
		}}),
		relevance.NewFilter(lowScorer{}),
		&stanceGenerator{},
		redundancy.NewFilter(llm.NewHashEmbedder(), 0.85),
		nil,
		st,
		vectorstore.NewSQLiteStore(st.DB()),
		nil,
	)

	result, err := orch.Run(context.Background(), Options{SkipNotify: true})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Message != "No topics passed relevance filter" {
		t.Fatalf("unexpected message %q", result.Message)
	}

	// The topic scored too low, but its scores live on the row: that is what
	// separates it in the audit trail from a scoring failure (NULL scores)
	// and from a rejection (a rejected_items record)
	var combined sql.NullFloat64
	if err := st.DB().QueryRow(`SELECT combined_score FROM topics_seen`).Scan(&combined); err != nil {
		t.Fatalf("query combined_score: %v", err)
	}
	if !combined.Valid {
		t.Fatal("below-threshold topic must have persisted scores, got NULL")
	}
	if combined.Float64 <= 0 || combined.Float64 >= 0.4 {
		t.Errorf("combined_score = %v, want a positive value under the threshold", combined.Float64)
	}

	rejections, err := st.RejectionsForRun(context.Background(), result.Run.ID)
	if err != nil {
		t.Fatalf("RejectionsForRun failed: %v", err)
	}
	if len(rejections) != 0 {
		t.Errorf("below-threshold topics are not rejections, got %+v", rejections)
	}
}

// searchCountingVectors records nearest-neighbor lookups.
type searchCountingVectors struct {
	vectorstore.VectorStore
	searches int
}

func (s *searchCountingVectors) Search(ctx context.Context, query []float64, limit int) ([]vectorstore.SearchResult, error) {
	s.searches++
	return s.VectorStore.Search(ctx, query, limit)
}

func TestRunChecksNearestPriorAnglePerKeptAngle(t *testing.T) {
	st, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer st.Close()

	vectors := &searchCountingVectors{VectorStore: vectorstore.NewSQLiteStore(st.DB())}

	orch := NewOrchestrator(
		testConfig(),
		sources.NewManagerWithAdapters(&listAdapter{name: "rss", items: []core.RawItem{
			freshItem("llm quantization benchmarks", "https://github.com/org/a"),
			freshItem("agent evaluation pitfalls", "https://github.com/org/b"),
		}}),
		relevance.NewFilter(relevance.NewHeuristicScorer()),
		&stanceGenerator{},
		redundancy.NewFilter(llm.NewHashEmbedder(), 0.85),
		nil,
		st,
		vectors,
		nil,
	)

	result, err := orch.Run(context.Background(), Options{SkipNotify: true})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.AnglesKept == 0 {
		t.Fatal("expected surviving angles")
	}
	if vectors.searches != result.AnglesKept {
		t.Errorf("expected one prior-angle lookup per kept angle, got %d lookups for %d angles",
			vectors.searches, result.AnglesKept)
	}
}

// mapCurator hands back a source-link asset per angle.
type mapCurator struct {
	calls   int
	gotURLs map[string]string
}

func (c *mapCurator) Curate(_ context.Context, angles []core.InsightAngle, sourceURLs map[string]string) map[string][]core.CuratedAsset {
	c.calls++
	c.gotURLs = sourceURLs
	out := make(map[string][]core.CuratedAsset, len(angles))
	for _, angle := range angles {
		out[angle.ID] = []core.CuratedAsset{{
			URL:         sourceURLs[angle.TopicID],
			Kind:        core.AssetLink,
			Description: "Original source",
		}}
	}
	return out
}

func TestRunCuratesAssetsIntoBrief(t *testing.T) {
	adapter := &listAdapter{name: "rss", items: []core.RawItem{
		freshItem("llm serving deep dive", "https://github.com/org/serving"),
	}}
	curator := &mapCurator{}

	orch := NewOrchestrator(
		testConfig(),
		sources.NewManagerWithAdapters(adapter),
		relevance.NewFilter(relevance.NewHeuristicScorer()),
		&stanceGenerator{},
		redundancy.NewFilter(llm.NewHashEmbedder(), 0.85),
		curator,
		nil,
		nil,
		nil,
	)

	result, err := orch.Run(context.Background(), Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if curator.calls != 1 {
		t.Fatalf("expected the curator to run once, got %d", curator.calls)
	}
	if result.Brief == nil || len(result.Brief.Angles) != 1 {
		t.Fatal("expected a one-angle brief")
	}

	links := result.Brief.Angles[0].SupportingLinks
	if len(links) != 1 || links[0] != "https://github.com/org/serving" {
		t.Errorf("curated source link missing from the brief, got %v", links)
	}
	if len(curator.gotURLs) != 1 {
		t.Errorf("expected the kept topic's URL to reach the curator, got %v", curator.gotURLs)
	}
}
