package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// SQLiteStore implements VectorStore over the angles_generated table. It
// shares the database handle with the pipeline store, so embeddings live in
// the same file as the audit records they belong to.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a vector store over an existing database handle.
// The angles_generated table must already exist.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Store saves the embedding for an angle that was already persisted.
func (s *SQLiteStore) Store(ctx context.Context, angleID string, embedding []float64) error {
	if len(embedding) == 0 {
		return fmt.Errorf("cannot store empty embedding")
	}

	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE angles_generated SET embedding = ? WHERE id = ?`,
		string(data), angleID)
	if err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		// The angle row must exist first; insert a bare row so the embedding
		// is not lost when Store is called before SaveAngle.
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO angles_generated (id, embedding, created_at) VALUES (?, ?, ?)`,
			angleID, string(data), time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to store embedding: %w", err)
		}
	}
	return nil
}

// Search scans all stored embeddings and returns the closest matches by
// cosine similarity, highest first. The corpus is small enough (hundreds of
// angles) that a linear scan beats maintaining an index.
func (s *SQLiteStore) Search(ctx context.Context, query []float64, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, embedding FROM angles_generated WHERE embedding IS NOT NULL AND embedding != ''`)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}

		var embedding []float64
		if err := json.Unmarshal([]byte(data), &embedding); err != nil {
			continue // skip rows with unreadable embeddings
		}

		results = append(results, SearchResult{
			AngleID:    id,
			Similarity: CosineSimilarity(query, embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// PriorEmbeddings returns the most recently stored embeddings, newest first.
// The redundancy filter seeds its comparison pool with this snapshot so new
// angles are also checked against history, not just the current batch.
func (s *SQLiteStore) PriorEmbeddings(ctx context.Context, limit int) ([][]float64, error) {
	if limit <= 0 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT embedding FROM angles_generated
		 WHERE embedding IS NOT NULL AND embedding != ''
		 ORDER BY created_at DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query prior embeddings: %w", err)
	}
	defer rows.Close()

	var embeddings [][]float64
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}

		var embedding []float64
		if err := json.Unmarshal([]byte(data), &embedding); err != nil {
			continue
		}
		embeddings = append(embeddings, embedding)
	}
	return embeddings, rows.Err()
}
