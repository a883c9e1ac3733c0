// Package store persists pipeline runs, topics, angles, and the rejection
// audit trail in SQLite. Writes happen as each stage completes, so a failed
// run still leaves its partial records behind.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"curateai/internal/core"

	_ "github.com/mattn/go-sqlite3"
)

// Store represents the SQLite-backed pipeline store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new store instance with a SQLite database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "curateai.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		db:   db,
		path: dbPath,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initialize creates the necessary tables
func (s *Store) initialize() error {
	runsTable := `
	CREATE TABLE IF NOT EXISTS pipeline_runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME,
		completed_at DATETIME,
		status TEXT,
		config_hash TEXT,
		duration_seconds REAL,
		error TEXT
	);`

	topicsTable := `
	CREATE TABLE IF NOT EXISTS topics_seen (
		id TEXT PRIMARY KEY,
		run_id TEXT,
		title TEXT,
		url TEXT,
		source TEXT,
		source_kind TEXT,
		summary TEXT,
		published_at DATETIME,
		relevance_score REAL,
		novelty_score REAL,
		impact_score REAL,
		combined_score REAL,
		first_seen DATETIME,
		FOREIGN KEY (run_id) REFERENCES pipeline_runs (id)
	);`

	anglesTable := `
	CREATE TABLE IF NOT EXISTS angles_generated (
		id TEXT PRIMARY KEY,
		run_id TEXT,
		topic_id TEXT,
		stance TEXT,
		why_it_matters TEXT,
		second_order_effects TEXT,
		relevant_for TEXT,
		confidence REAL,
		supporting_evidence TEXT,
		embedding TEXT,
		created_at DATETIME,
		FOREIGN KEY (run_id) REFERENCES pipeline_runs (id)
	);`

	rejectionsTable := `
	CREATE TABLE IF NOT EXISTS rejected_items (
		run_id TEXT,
		item_kind TEXT,
		item_id TEXT,
		reason TEXT,
		stage TEXT,
		rejected_at DATETIME,
		FOREIGN KEY (run_id) REFERENCES pipeline_runs (id)
	);`

	tables := []string{runsTable, topicsTable, anglesTable, rejectionsTable}
	for _, table := range tables {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle so the vector store can share the same
// database file and tables.
func (s *Store) DB() *sql.DB {
	return s.db
}

// CreateRun inserts a new run row in running state.
func (s *Store) CreateRun(ctx context.Context, run core.PipelineRun) error {
	query := `
	INSERT INTO pipeline_runs (id, started_at, status, config_hash)
	VALUES (?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query, run.ID, run.StartedAt, string(run.Status), run.ConfigHash)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// CompleteRun records the terminal state of a run. errMsg is empty on success.
func (s *Store) CompleteRun(ctx context.Context, runID string, status core.RunStatus, duration time.Duration, errMsg string) error {
	query := `
	UPDATE pipeline_runs
	SET completed_at = ?, status = ?, duration_seconds = ?, error = ?
	WHERE id = ?`

	_, err := s.db.ExecContext(ctx, query, time.Now().UTC(), string(status), duration.Seconds(), errMsg, runID)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// SaveTopic stores a candidate topic as soon as ingestion produces it.
func (s *Store) SaveTopic(ctx context.Context, runID string, topic core.CandidateTopic) error {
	query := `
	INSERT OR REPLACE INTO topics_seen
	(id, run_id, title, url, source, source_kind, summary, published_at, first_seen)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		topic.ID,
		runID,
		topic.Title,
		topic.URL,
		topic.Source,
		string(topic.SourceKind),
		topic.Summary,
		topic.PublishedAt,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save topic: %w", err)
	}
	return nil
}

// UpdateTopicScores writes the relevance axis scores after filtering.
func (s *Store) UpdateTopicScores(ctx context.Context, topic core.ScoredTopic) error {
	query := `
	UPDATE topics_seen
	SET relevance_score = ?, novelty_score = ?, impact_score = ?, combined_score = ?
	WHERE id = ?`

	_, err := s.db.ExecContext(ctx, query,
		topic.RelevanceScore,
		topic.NoveltyScore,
		topic.ImpactScore,
		topic.CombinedScore,
		topic.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update topic scores: %w", err)
	}
	return nil
}

// SaveAngle stores a generated angle together with its embedding. The
// embedding may be nil when the angle was never embedded.
func (s *Store) SaveAngle(ctx context.Context, runID string, angle core.InsightAngle, embedding []float64) error {
	effects, _ := json.Marshal(angle.SecondOrderEffects)
	audiences, _ := json.Marshal(angle.RelevantFor)
	evidence, _ := json.Marshal(angle.SupportingEvidence)

	var embeddingJSON []byte
	if embedding != nil {
		embeddingJSON, _ = json.Marshal(embedding)
	}

	query := `
	INSERT OR REPLACE INTO angles_generated
	(id, run_id, topic_id, stance, why_it_matters, second_order_effects,
	 relevant_for, confidence, supporting_evidence, embedding, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		angle.ID,
		runID,
		angle.TopicID,
		angle.Stance,
		angle.WhyItMatters,
		string(effects),
		string(audiences),
		angle.Confidence,
		string(evidence),
		string(embeddingJSON),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save angle: %w", err)
	}
	return nil
}

// SaveRejection appends one record to the audit trail.
func (s *Store) SaveRejection(ctx context.Context, rec core.RejectionRecord) error {
	query := `
	INSERT INTO rejected_items (run_id, item_kind, item_id, reason, stage, rejected_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		rec.RunID,
		rec.ItemKind,
		rec.ItemID,
		rec.Reason,
		rec.Stage,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save rejection: %w", err)
	}
	return nil
}

// RejectionsForRun returns the audit trail of one run in insertion order.
func (s *Store) RejectionsForRun(ctx context.Context, runID string) ([]core.RejectionRecord, error) {
	query := `
	SELECT run_id, item_kind, item_id, reason, stage
	FROM rejected_items
	WHERE run_id = ?
	ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rejections: %w", err)
	}
	defer rows.Close()

	var records []core.RejectionRecord
	for rows.Next() {
		var rec core.RejectionRecord
		if err := rows.Scan(&rec.RunID, &rec.ItemKind, &rec.ItemID, &rec.Reason, &rec.Stage); err != nil {
			return nil, fmt.Errorf("failed to scan rejection: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RecentRuns returns the most recent runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]core.PipelineRun, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
	SELECT id, started_at, completed_at, status, config_hash, duration_seconds, error
	FROM pipeline_runs
	ORDER BY started_at DESC
	LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []core.PipelineRun
	for rows.Next() {
		var run core.PipelineRun
		var status string
		var completedAt sql.NullTime
		var duration sql.NullFloat64
		var errMsg sql.NullString

		if err := rows.Scan(&run.ID, &run.StartedAt, &completedAt, &status, &run.ConfigHash, &duration, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Status = core.RunStatus(status)
		if completedAt.Valid {
			run.CompletedAt = completedAt.Time
		}
		run.DurationSeconds = duration.Float64
		run.Error = errMsg.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
