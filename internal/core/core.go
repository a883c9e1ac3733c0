package core

import "time"

// SourceKind tags the adapter family a raw item came from.
type SourceKind string

const (
	SourceRSS       SourceKind = "rss"        // RSS/Atom feed
	SourceReddit    SourceKind = "reddit"     // subreddit listing
	SourceWebSearch SourceKind = "web_search" // web search result
	SourceArxiv     SourceKind = "arxiv"      // arXiv API entry
)

// RawItem represents a single piece of content fetched by a source adapter.
// It is immutable once created and lives only within one pipeline run.
type RawItem struct {
	Title       string            `json:"title"`        // Item title
	URL         string            `json:"url"`          // Canonical URL (dedup key after normalization)
	Source      string            `json:"source"`       // Source name (feed name, r/subreddit, "arXiv", ...)
	SourceKind  SourceKind        `json:"source_kind"`  // Adapter family that produced this item
	Category    string            `json:"category"`     // Content category (news, research, discussion, ...)
	Summary     string            `json:"summary"`      // Plain-text summary, length-capped per adapter
	PublishedAt time.Time         `json:"published_at"` // Publication time (zero value when unknown)
	Authors     []string          `json:"authors"`      // Authors in source order, may be empty
	Tags        []string          `json:"tags"`         // Tags/categories from the source
	Engagement  float64           `json:"engagement"`   // Engagement score (Reddit score etc.), 0 when absent
	Metadata    map[string]string `json:"metadata"`     // Source-specific metadata, dropped at topic conversion
}

// CandidateTopic is a RawItem reshaped for the pipeline: it gains a run-unique
// identifier and sheds source-specific metadata. URL is the dedup key within a run.
type CandidateTopic struct {
	ID          string     `json:"id"`           // Unique per run
	Title       string     `json:"title"`        // Topic title
	Source      string     `json:"source"`       // Source name
	SourceKind  SourceKind `json:"source_kind"`  // Adapter family
	URL         string     `json:"url"`          // URL to the original content
	Summary     string     `json:"summary"`      // Plain-text summary
	PublishedAt time.Time  `json:"published_at"` // Publication time (zero value when unknown)
	Authors     []string   `json:"authors"`      // Authors if available
	Tags        []string   `json:"tags"`         // Relevant tags/categories
}

// ScoredTopic is a CandidateTopic with relevance axis scores attached.
// Score fields are set once, by the relevance filter.
type ScoredTopic struct {
	CandidateTopic
	RelevanceScore  float64 `json:"relevance_score"`  // Practical relevance (0-1)
	NoveltyScore    float64 `json:"novelty_score"`    // Novelty/freshness (0-1)
	ImpactScore     float64 `json:"impact_score"`     // Long-term impact potential (0-1)
	CombinedScore   float64 `json:"combined_score"`   // Mean of the three axes (0-1)
	Rejected        bool    `json:"rejected"`         // Set only by the heuristic pre-filter
	RejectionReason string  `json:"rejection_reason"` // Required iff Rejected
}

// InsightAngle is an opinionated, audience-targeted claim derived from one topic.
// TopicID is a reference, not ownership; one topic may yield zero or more angles.
type InsightAngle struct {
	ID                 string   `json:"id"`                  // Unique identifier
	TopicID            string   `json:"topic_id"`            // ID of the source topic
	Stance             string   `json:"stance"`              // The opinionated take, never neutral
	WhyItMatters       string   `json:"why_it_matters"`      // Rationale for the stance
	SecondOrderEffects []string `json:"second_order_effects"` // Downstream implications, at least one
	RelevantFor        []string `json:"relevant_for"`        // Target audience segments, at least one
	Confidence         float64  `json:"confidence"`          // Confidence in this angle (0-1)
	SupportingEvidence []string `json:"supporting_evidence"` // Key evidence points, may be empty
}

// RejectionRecord is one entry in the append-only audit trail of suppressed items.
type RejectionRecord struct {
	RunID    string `json:"run_id"`    // Pipeline run that suppressed the item
	ItemKind string `json:"item_kind"` // "topic" or "angle"
	ItemID   string `json:"item_id"`   // ID of the suppressed item
	Reason   string `json:"reason"`    // Human-readable rejection reason
	Stage    string `json:"stage"`     // Pipeline stage that rejected it ("relevance", "redundancy")
}

// RunStatus is the terminal disposition of a pipeline run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// PipelineRun is the root of run-scoped state, exclusively owned by the
// orchestrator. All other entities reference it by ID but do not own it.
type PipelineRun struct {
	ID              string    `json:"id"`               // Run UUID
	StartedAt       time.Time `json:"started_at"`       // Wall-clock start
	CompletedAt     time.Time `json:"completed_at"`     // Zero value while running
	Status          RunStatus `json:"status"`           // running, completed, failed
	ConfigHash      string    `json:"config_hash"`      // Fingerprint of the config snapshot
	DurationSeconds float64   `json:"duration_seconds"` // Set once on completion
	Error           string    `json:"error"`            // Captured error text on failure
}

// Asset kinds produced by the curator.
const (
	AssetFigure = "figure" // image extracted from the source page
	AssetReadme = "readme" // repository README
	AssetLink   = "link"   // the source page itself
)

// CuratedAsset is a supporting artifact collected for an angle from its
// topic's source page.
type CuratedAsset struct {
	URL         string `json:"url"`          // Asset URL
	Kind        string `json:"kind"`         // figure, readme, or link
	Description string `json:"description"`  // What the asset shows
	SourceTitle string `json:"source_title"` // Originating page or repo, may be empty
}

// FinalAngle is a polished angle ready for the digest brief.
type FinalAngle struct {
	Insight         string         `json:"insight"`          // Core insight, compressed to <=200 chars
	WhyItMatters    string         `json:"why_it_matters"`   // Concise explanation of importance
	RelevantFor     []string       `json:"relevant_for"`     // Target audience segments
	FramingPoints   []string       `json:"framing_points"`   // Suggested framing bullets (2-5)
	SupportingLinks []string       `json:"supporting_links"` // Supporting URLs
	Assets          []CuratedAsset `json:"assets"`           // Visual assets (figures, READMEs), at most 3
	Confidence      float64        `json:"confidence"`       // Confidence score (0-1)
	TopicTitle      string         `json:"topic_title"`      // Title of the original topic
}

// DigestBrief is the bounded, ordered digest assembled at the end of a run,
// together with the audit summary for that run.
type DigestBrief struct {
	RunID            string      `json:"run_id"`            // Pipeline run ID
	GeneratedAt      time.Time   `json:"generated_at"`      // Assembly timestamp
	Angles           []FinalAngle `json:"angles"`           // Top angles, at most MaxBriefAngles
	TopicsConsidered int         `json:"topics_considered"` // Total topics entering the pipeline
	TopicsFiltered   int         `json:"topics_filtered"`   // Topics that passed the relevance filter
	AnglesGenerated  int         `json:"angles_generated"`  // Angles generated before dedup/selection
}

// EmbeddingDimensions is the fixed length of every comparison vector in the
// system. Both the Gemini embedding model (with Matryoshka truncation) and the
// deterministic fallback produce vectors of this size.
const EmbeddingDimensions = 768
