package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/critiqlab/critiq/internal/model"
)

// FeedbackVectorRepo is the similarity tier: feedback entries stored next to
// the embedding of the content they were produced for, searchable by cosine
// similarity within a single feedback type.
type FeedbackVectorRepo struct {
	db *sqlx.DB
}

func NewFeedbackVectorRepo(db *sqlx.DB) *FeedbackVectorRepo {
	return &FeedbackVectorRepo{db: db}
}

func (r *FeedbackVectorRepo) Upsert(ctx context.Context, contentHash string, vector []float32, entry *model.FeedbackEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO feedback_vectors (content_hash, feedback_type, embedding, payload, ctime)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (content_hash, feedback_type) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			payload = EXCLUDED.payload,
			ctime = EXCLUDED.ctime
	`
	_, err = r.db.ExecContext(ctx, query,
		contentHash,
		entry.Result.FeedbackType,
		pgvector.NewVector(vector),
		payload,
		time.Now().Unix(),
	)
	return err
}

type ScoredEntry struct {
	Entry      *model.FeedbackEntry
	Similarity float64
}

// QueryNearest returns at most k entries of the given feedback type with
// cosine similarity >= minSimilarity, best first. The floor and the type
// filter live in the query itself so irrelevant candidates never leave the
// database.
func (r *FeedbackVectorRepo) QueryNearest(ctx context.Context, vector []float32, feedbackType string, k int, minSimilarity float64) ([]ScoredEntry, error) {
	const query = `
		SELECT payload, 1 - (embedding <=> $1) AS similarity
		FROM feedback_vectors
		WHERE feedback_type = $2 AND 1 - (embedding <=> $1) >= $3
		ORDER BY embedding <=> $1
		LIMIT $4
	`
	rows, err := r.db.QueryxContext(ctx, query, pgvector.NewVector(vector), feedbackType, minSimilarity, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []ScoredEntry
	for rows.Next() {
		var blob []byte
		var similarity float64
		if err := rows.Scan(&blob, &similarity); err != nil {
			return nil, err
		}
		entry := &model.FeedbackEntry{}
		if err := json.Unmarshal(blob, entry); err != nil {
			return nil, err
		}
		results = append(results, ScoredEntry{Entry: entry, Similarity: similarity})
	}
	return results, rows.Err()
}

func (r *FeedbackVectorRepo) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	const query = `DELETE FROM feedback_vectors WHERE ctime < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
