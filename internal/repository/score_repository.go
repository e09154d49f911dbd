package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/internal/models"
)

// ScoreRepository persists derived score triples per conduct. Scores are
// always recomputed from checks before being written; rows exist for
// compatibility with consumers that read the store directly.
type ScoreRepository struct {
	db *sqlx.DB
}

// NewScoreRepository creates a new score repository.
func NewScoreRepository(db *sqlx.DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

const upsertScoreQuery = `INSERT INTO evaluation_scores (id, evaluation_id, conduct_id, t1_score, t2_score, final_score, updated_at)
    VALUES (:id, :evaluation_id, :conduct_id, :t1_score, :t2_score, :final_score, :updated_at)
    ON CONFLICT (evaluation_id, conduct_id)
    DO UPDATE SET t1_score = EXCLUDED.t1_score, t2_score = EXCLUDED.t2_score, final_score = EXCLUDED.final_score, updated_at = EXCLUDED.updated_at`

// Upsert inserts or updates the score row for one conduct.
func (r *ScoreRepository) Upsert(ctx context.Context, score *models.ConductScore) error {
	if score.ID == "" {
		score.ID = uuid.NewString()
	}
	score.UpdatedAt = time.Now().UTC()
	if _, err := r.db.NamedExecContext(ctx, upsertScoreQuery, score); err != nil {
		return fmt.Errorf("upsert score: %w", err)
	}
	return nil
}

// BulkUpsert writes many score rows in one transaction.
func (r *ScoreRepository) BulkUpsert(ctx context.Context, scores []models.ConductScore) error {
	if len(scores) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for i := range scores {
		if scores[i].ID == "" {
			scores[i].ID = uuid.NewString()
		}
		scores[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, upsertScoreQuery, scores[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("bulk upsert score: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit scores: %w", err)
	}
	return nil
}

// ListByEvaluation returns every score row for an evaluation.
func (r *ScoreRepository) ListByEvaluation(ctx context.Context, evaluationID string) ([]models.ConductScore, error) {
	const query = `SELECT id, evaluation_id, conduct_id, t1_score, t2_score, final_score, updated_at
        FROM evaluation_scores WHERE evaluation_id = $1 ORDER BY conduct_id`
	var scores []models.ConductScore
	if err := r.db.SelectContext(ctx, &scores, query, evaluationID); err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	return scores, nil
}
