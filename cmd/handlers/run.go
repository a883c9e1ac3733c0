package handlers

import (
	"context"
	"fmt"
	"os"
	"time"

	"curateai/internal/core"
	"curateai/internal/curation"
	"curateai/internal/insights"
	"curateai/internal/llm"
	"curateai/internal/logger"
	"curateai/internal/messaging"
	"curateai/internal/pipeline"
	"curateai/internal/redundancy"
	"curateai/internal/relevance"
	"curateai/internal/sources"
	"curateai/internal/store"
	"curateai/internal/vectorstore"

	"github.com/spf13/cobra"
)

// NewRunCmd creates the pipeline run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full curation pipeline once",
		Long: `Run one complete curation pass: fetch sources, filter for relevance,
generate opinionated angles, suppress redundant takes, assemble the digest,
and post it to Slack.

Examples:
  curateai run
  curateai run --dry-run
  curateai run --days 7 --skip-notify`,
		Run: runPipeline,
	}

	cmd.Flags().Bool("dry-run", false, "Skip persistence and notification")
	cmd.Flags().Bool("skip-notify", false, "Run normally but do not post the digest")
	cmd.Flags().Int("days", 0, "Override the lookback window in days")
	cmd.Flags().Bool("debug", false, "Enable debug logging")

	return cmd
}

func runPipeline(cmd *cobra.Command, _ []string) {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	skipNotify, _ := cmd.Flags().GetBool("skip-notify")
	days, _ := cmd.Flags().GetInt("days")
	debug, _ := cmd.Flags().GetBool("debug")

	if debug {
		logger.SetLevel("debug")
	}

	ctx := context.Background()

	var st *store.Store
	var vectors vectorstore.VectorStore
	if !dryRun {
		var err error
		st, err = store.NewStore(cfg.App.DataDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()
		vectors = vectorstore.NewSQLiteStore(st.DB())
	}

	// The Gemini client powers both generation and embeddings. Without an API
	// key the pipeline still runs: the deterministic embedder covers dedup and
	// generation is skipped.
	var generator insights.Generator
	var embedder llm.Embedder = llm.NewHashEmbedder()

	client, err := llm.NewClient(ctx, cfg.AI.Gemini.APIKey, cfg.AI.Gemini.Model, cfg.AI.Gemini.EmbeddingModel)
	if err != nil {
		logger.Warn("LLM client unavailable, no angles will be generated", "error", err.Error())
		generator = noStanceGenerator{}
	} else {
		generator = insights.NewLLMGenerator(client)
		embedder = client
	}

	orchestrator := pipeline.NewOrchestrator(
		cfg,
		sources.NewManager(cfg.Sources),
		relevance.NewFilter(relevance.NewHeuristicScorer()),
		generator,
		redundancy.NewFilter(embedder, cfg.Redundancy.SimilarityThreshold),
		curation.NewCurator(cfg.Sources.RequestTimeoutDuration()),
		st,
		vectors,
		messaging.NewNotifier(cfg.Messaging.SlackWebhookURL),
	)

	opts := pipeline.Options{
		DryRun:     dryRun,
		SkipNotify: skipNotify,
	}
	if days > 0 {
		opts.Lookback = time.Duration(days) * 24 * time.Hour
	}

	result, err := orchestrator.Run(ctx, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Pipeline failed: %v\n", err)
		os.Exit(1)
	}

	printResult(result)
}

// noStanceGenerator stands in when no LLM is configured. It refuses every
// topic, so the pipeline still exercises sourcing and filtering end to end.
type noStanceGenerator struct{}

func (noStanceGenerator) Generate(context.Context, core.ScoredTopic) (core.InsightAngle, error) {
	return core.InsightAngle{}, insights.ErrNoStance
}

func printResult(result pipeline.Result) {
	fmt.Printf("Run %s completed in %.1fs\n", result.Run.ID, result.Run.DurationSeconds)
	if result.Message != "" {
		fmt.Printf("  %s\n", result.Message)
	}
	fmt.Printf("  Topics found:     %d\n", result.TopicsFound)
	fmt.Printf("  Topics kept:      %d\n", result.TopicsKept)
	fmt.Printf("  Angles generated: %d\n", result.AnglesGenerated)
	fmt.Printf("  Angles kept:      %d\n", result.AnglesKept)

	if len(result.RejectionCounts) > 0 {
		fmt.Println("  Rejections:")
		for reason, count := range result.RejectionCounts {
			fmt.Printf("    %dx %s\n", count, reason)
		}
	}

	if result.Brief != nil {
		fmt.Printf("\nDigest (%d angles):\n", len(result.Brief.Angles))
		for i, angle := range result.Brief.Angles {
			fmt.Printf("  %d. %s (confidence %.2f)\n", i+1, angle.Insight, angle.Confidence)
		}
	}
}
