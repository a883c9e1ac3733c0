// Package pipeline orchestrates one curation run: source ingestion, relevance
// filtering, angle generation, redundancy suppression, asset curation, digest
// assembly, and notification. The orchestrator owns run identity, the config
// fingerprint, duration measurement, and the write-through audit trail.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"curateai/internal/config"
	"curateai/internal/core"
	"curateai/internal/digest"
	"curateai/internal/insights"
	"curateai/internal/logger"
	"curateai/internal/messaging"
	"curateai/internal/redundancy"
	"curateai/internal/relevance"
	"curateai/internal/sources"
	"curateai/internal/store"
	"curateai/internal/vectorstore"

	"github.com/google/uuid"
)

// Stage names the discrete phases of a run, in order.
type Stage string

const (
	StageStarted       Stage = "started"
	StageSourcing      Stage = "sourcing"
	StageFiltering     Stage = "filtering"
	StageGenerating    Stage = "generating"
	StageDeduplicating Stage = "deduplicating"
	StageCurating      Stage = "curating"
	StageEditing       Stage = "editing"
	StageCompleted     Stage = "completed"
	StageFailed        Stage = "failed"
)

// priorEmbeddingLimit bounds the historical snapshot seeded into the
// redundancy pool each run.
const priorEmbeddingLimit = 200

// Options configures one pipeline run.
type Options struct {
	DryRun     bool          // skip persistence and notification
	SkipNotify bool          // run normally but do not post the digest
	Lookback   time.Duration // override for the configured lookback window
}

// Result summarizes a finished run for the caller.
type Result struct {
	Run             core.PipelineRun  // terminal run record
	Brief           *core.DigestBrief // nil on early exit before assembly
	Message         string            // explanatory message on no-content outcomes
	TopicsFound     int               // topics after merge/dedup
	TopicsKept      int               // topics that passed the relevance filter
	AnglesGenerated int               // angles produced before redundancy
	AnglesKept      int               // angles surviving redundancy
	RejectionCounts map[string]int    // rejection reason -> count, across stages
}

// AssetCurator collects supporting assets for accepted angles from their
// topics' source pages, keyed by angle ID.
type AssetCurator interface {
	Curate(ctx context.Context, angles []core.InsightAngle, sourceURLs map[string]string) map[string][]core.CuratedAsset
}

// Orchestrator wires the pipeline stages together.
type Orchestrator struct {
	cfg       *config.Config
	manager   *sources.Manager
	filter    *relevance.Filter
	generator insights.Generator
	dedup     *redundancy.Filter
	curator   AssetCurator
	store     *store.Store
	vectors   vectorstore.VectorStore
	notifier  *messaging.Notifier
	editor    *digest.Editor
	log       *slog.Logger
}

// NewOrchestrator assembles a pipeline from its stage collaborators.
func NewOrchestrator(
	cfg *config.Config,
	manager *sources.Manager,
	filter *relevance.Filter,
	generator insights.Generator,
	dedup *redundancy.Filter,
	curator AssetCurator,
	st *store.Store,
	vectors vectorstore.VectorStore,
	notifier *messaging.Notifier,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		manager:   manager,
		filter:    filter,
		generator: generator,
		dedup:     dedup,
		curator:   curator,
		store:     st,
		vectors:   vectors,
		notifier:  notifier,
		editor:    digest.NewEditor(),
		log:       logger.Get(),
	}
}

// Run executes one complete pipeline run. No-content outcomes (no topics, none
// pass filtering, all angles redundant) complete successfully with an
// explanatory message. Only stage-fatal failures return a non-nil error, after
// the run record has been marked failed.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (Result, error) {
	started := time.Now()
	run := core.PipelineRun{
		ID:         uuid.NewString(),
		StartedAt:  started.UTC(),
		Status:     core.RunStatusRunning,
		ConfigHash: o.cfg.Fingerprint(),
	}
	result := Result{Run: run, RejectionCounts: make(map[string]int)}

	o.log.Info("Pipeline run starting",
		"run_id", run.ID,
		"config_hash", run.ConfigHash,
		"dry_run", opts.DryRun,
	)

	if !opts.DryRun {
		if err := o.store.CreateRun(ctx, run); err != nil {
			return o.fail(ctx, opts, started, result, StageStarted, err)
		}
	}

	// sourcing
	lookback := opts.Lookback
	if lookback <= 0 {
		lookback = o.cfg.Sources.Lookback()
	}
	topics, mergeStats := o.manager.Merge(ctx, lookback)
	result.TopicsFound = len(topics)
	o.log.Info("Sourcing complete",
		"run_id", run.ID,
		"stage", string(StageSourcing),
		"topics", len(topics),
		"duplicates_removed", mergeStats.DuplicatesRemoved,
	)

	if !opts.DryRun {
		for _, topic := range topics {
			if err := o.store.SaveTopic(ctx, run.ID, topic); err != nil {
				return o.fail(ctx, opts, started, result, StageSourcing, err)
			}
		}
	}
	if len(topics) == 0 {
		return o.completeEmpty(ctx, opts, started, result, "No topics found")
	}

	// filtering
	filterResult := o.filter.Apply(ctx, topics, relevance.Options{
		MinCombinedScore: o.cfg.Relevance.MinCombinedScore,
		MaxTopics:        o.cfg.Relevance.MaxTopics,
	})
	result.TopicsKept = len(filterResult.Kept)

	if !opts.DryRun {
		for _, topic := range filterResult.Kept {
			if err := o.store.UpdateTopicScores(ctx, topic); err != nil {
				return o.fail(ctx, opts, started, result, StageFiltering, err)
			}
		}
		// Below-threshold topics keep their scores on the topic row; that is
		// what distinguishes them in the audit trail from scoring failures
		// (NULL scores) and rejections (a rejected_items record)
		for _, topic := range filterResult.BelowThreshold {
			if err := o.store.UpdateTopicScores(ctx, topic); err != nil {
				return o.fail(ctx, opts, started, result, StageFiltering, err)
			}
		}
		for _, rejected := range filterResult.Rejected {
			rec := core.RejectionRecord{
				RunID:    run.ID,
				ItemKind: "topic",
				ItemID:   rejected.ID,
				Reason:   rejected.RejectionReason,
				Stage:    "relevance",
			}
			if err := o.store.SaveRejection(ctx, rec); err != nil {
				return o.fail(ctx, opts, started, result, StageFiltering, err)
			}
		}
	}
	for _, rejected := range filterResult.Rejected {
		result.RejectionCounts[rejected.RejectionReason]++
	}
	if len(filterResult.Kept) == 0 {
		return o.completeEmpty(ctx, opts, started, result, "No topics passed relevance filter")
	}

	// generating: per-topic failures are isolated, a topic without a stance
	// simply yields no angle
	var angles []core.InsightAngle
	topicTitles := make(map[string]string, len(filterResult.Kept))
	topicURLs := make(map[string]string, len(filterResult.Kept))
	for _, topic := range filterResult.Kept {
		topicTitles[topic.ID] = topic.Title
		topicURLs[topic.ID] = topic.URL

		angle, err := o.generator.Generate(ctx, topic)
		if err != nil {
			if errors.Is(err, insights.ErrNoStance) {
				o.log.Info("No stance for topic", "run_id", run.ID, "topic_id", topic.ID)
			} else {
				o.log.Warn("Angle generation failed", "run_id", run.ID, "topic_id", topic.ID, "error", err.Error())
			}
			continue
		}
		angles = append(angles, angle)

		if !opts.DryRun {
			if err := o.store.SaveAngle(ctx, run.ID, angle, nil); err != nil {
				return o.fail(ctx, opts, started, result, StageGenerating, err)
			}
		}
	}
	result.AnglesGenerated = len(angles)
	o.log.Info("Generation complete",
		"run_id", run.ID,
		"stage", string(StageGenerating),
		"angles", len(angles),
	)
	if len(angles) == 0 {
		return o.completeEmpty(ctx, opts, started, result, "No angles generated")
	}

	// deduplicating: input ordered by confidence descending so the strongest
	// statement of a theme is the one that survives
	sort.SliceStable(angles, func(i, j int) bool {
		return angles[i].Confidence > angles[j].Confidence
	})

	var prior [][]float64
	if !opts.DryRun {
		var err error
		prior, err = o.vectors.PriorEmbeddings(ctx, priorEmbeddingLimit)
		if err != nil {
			return o.fail(ctx, opts, started, result, StageDeduplicating, err)
		}
	}

	kept, keptEmbeddings, redundant, err := o.dedup.Deduplicate(ctx, angles, prior)
	if err != nil {
		return o.fail(ctx, opts, started, result, StageDeduplicating, err)
	}
	result.AnglesKept = len(kept)

	if !opts.DryRun {
		// Nearest-neighbor reporting runs before the new embeddings are
		// stored, so each lookup only sees genuinely prior angles
		for _, ae := range keptEmbeddings {
			neighbors, err := o.vectors.Search(ctx, ae.Embedding, 1)
			if err != nil {
				o.log.Warn("Prior-angle similarity lookup failed", "run_id", run.ID, "angle_id", ae.AngleID, "error", err.Error())
				continue
			}
			if len(neighbors) > 0 {
				o.log.Debug("Nearest prior angle",
					"run_id", run.ID,
					"angle_id", ae.AngleID,
					"prior_angle_id", neighbors[0].AngleID,
					"similarity", neighbors[0].Similarity,
				)
			}
		}
		for _, ae := range keptEmbeddings {
			if err := o.vectors.Store(ctx, ae.AngleID, ae.Embedding); err != nil {
				return o.fail(ctx, opts, started, result, StageDeduplicating, err)
			}
		}
		for _, rej := range redundant {
			rec := core.RejectionRecord{
				RunID:    run.ID,
				ItemKind: "angle",
				ItemID:   rej.Angle.ID,
				Reason:   rej.Reason,
				Stage:    "redundancy",
			}
			if err := o.store.SaveRejection(ctx, rec); err != nil {
				return o.fail(ctx, opts, started, result, StageDeduplicating, err)
			}
		}
	}
	for _, rej := range redundant {
		result.RejectionCounts[rej.Reason]++
	}
	if len(kept) == 0 {
		return o.completeEmpty(ctx, opts, started, result, "All angles filtered as redundant")
	}

	// curating: failures inside the curator are isolated per angle, an angle
	// without assets still reaches the brief
	var assets map[string][]core.CuratedAsset
	if o.curator != nil {
		assets = o.curator.Curate(ctx, kept, topicURLs)
		total := 0
		for _, angleAssets := range assets {
			total += len(angleAssets)
		}
		o.log.Info("Curation complete",
			"run_id", run.ID,
			"stage", string(StageCurating),
			"angles", len(kept),
			"assets", total,
		)
	}

	// editing
	brief := o.editor.BuildBrief(run.ID, kept, topicTitles, assets, digest.Stats{
		TopicsConsidered: result.TopicsFound,
		TopicsFiltered:   result.TopicsKept,
		AnglesGenerated:  result.AnglesGenerated,
	})
	if issues := digest.ValidateBrief(brief); len(issues) > 0 {
		o.log.Warn("Brief validation issues", "run_id", run.ID, "issues", fmt.Sprintf("%v", issues))
	}
	result.Brief = &brief

	// notification failure does not fail the run; the digest is persisted
	// and can be re-sent
	if !opts.DryRun && !opts.SkipNotify && o.notifier != nil && o.notifier.Configured() {
		if err := o.notifier.SendDigest(ctx, brief); err != nil {
			o.log.Warn("Digest notification failed", "run_id", run.ID, "error", err.Error())
		}
	}

	return o.complete(ctx, opts, started, result, "")
}

// completeEmpty finishes a run that produced no digest. This is a success
// outcome, not a failure.
func (o *Orchestrator) completeEmpty(ctx context.Context, opts Options, started time.Time, result Result, message string) (Result, error) {
	o.log.Info("Pipeline run completed without content", "run_id", result.Run.ID, "message", message)
	return o.complete(ctx, opts, started, result, message)
}

func (o *Orchestrator) complete(ctx context.Context, opts Options, started time.Time, result Result, message string) (Result, error) {
	duration := time.Since(started)
	result.Run.Status = core.RunStatusCompleted
	result.Run.CompletedAt = time.Now().UTC()
	result.Run.DurationSeconds = duration.Seconds()
	result.Message = message

	if !opts.DryRun {
		if err := o.store.CompleteRun(ctx, result.Run.ID, core.RunStatusCompleted, duration, ""); err != nil {
			// The pipeline itself succeeded; losing the final status update is
			// logged but does not turn success into failure
			o.log.Error("Failed to record run completion", "run_id", result.Run.ID, "error", err.Error())
		}
	}

	o.log.Info("Pipeline run completed",
		"run_id", result.Run.ID,
		"duration_seconds", duration.Seconds(),
		"topics_found", result.TopicsFound,
		"topics_kept", result.TopicsKept,
		"angles_generated", result.AnglesGenerated,
		"angles_kept", result.AnglesKept,
	)
	return result, nil
}

// fail marks the run failed with the captured error text and propagates the
// error to the caller.
func (o *Orchestrator) fail(ctx context.Context, opts Options, started time.Time, result Result, stage Stage, err error) (Result, error) {
	duration := time.Since(started)
	wrapped := fmt.Errorf("stage %s: %w", stage, err)

	result.Run.Status = core.RunStatusFailed
	result.Run.CompletedAt = time.Now().UTC()
	result.Run.DurationSeconds = duration.Seconds()
	result.Run.Error = wrapped.Error()

	o.log.Error("Pipeline run failed", "run_id", result.Run.ID, "stage", string(stage), "error", wrapped.Error())

	if !opts.DryRun {
		if cerr := o.store.CompleteRun(ctx, result.Run.ID, core.RunStatusFailed, duration, wrapped.Error()); cerr != nil {
			o.log.Error("Failed to record run failure", "run_id", result.Run.ID, "error", cerr.Error())
		}
	}
	return result, wrapped
}
