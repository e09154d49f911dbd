package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/internal/models"
)

// CriterionRepository persists the row-per-criterion checklist state.
type CriterionRepository struct {
	db *sqlx.DB
}

// NewCriterionRepository creates a new criterion repository.
func NewCriterionRepository(db *sqlx.DB) *CriterionRepository {
	return &CriterionRepository{db: db}
}

const upsertCriterionQuery = `INSERT INTO evaluation_criteria (id, evaluation_id, conduct_id, tramo, criterion_index, is_checked, updated_at)
    VALUES (:id, :evaluation_id, :conduct_id, :tramo, :criterion_index, :is_checked, :updated_at)
    ON CONFLICT (evaluation_id, conduct_id, tramo, criterion_index)
    DO UPDATE SET is_checked = EXCLUDED.is_checked, updated_at = EXCLUDED.updated_at`

// Upsert inserts or updates a single criterion check.
func (r *CriterionRepository) Upsert(ctx context.Context, check *models.CriterionCheck) error {
	if check.ID == "" {
		check.ID = uuid.NewString()
	}
	check.UpdatedAt = time.Now().UTC()
	if _, err := r.db.NamedExecContext(ctx, upsertCriterionQuery, check); err != nil {
		return fmt.Errorf("upsert criterion: %w", err)
	}
	return nil
}

// BulkUpsert writes many criterion checks in one transaction. Used when a
// fork replays the in-memory state against the new evaluation id.
func (r *CriterionRepository) BulkUpsert(ctx context.Context, checks []models.CriterionCheck) error {
	if len(checks) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for i := range checks {
		if checks[i].ID == "" {
			checks[i].ID = uuid.NewString()
		}
		checks[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, upsertCriterionQuery, checks[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("bulk upsert criterion: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit criteria: %w", err)
	}
	return nil
}

// ResetTramo1 deletes every tier-1 row for the evaluation. The scoring-mode
// bulk rewrite replays the mode defaults afterwards so the row-per-criterion
// layout stays consistent.
func (r *CriterionRepository) ResetTramo1(ctx context.Context, evaluationID string) error {
	const query = `DELETE FROM evaluation_criteria WHERE evaluation_id = $1 AND tramo = $2`
	if _, err := r.db.ExecContext(ctx, query, evaluationID, models.Tramo1); err != nil {
		return fmt.Errorf("reset tramo 1: %w", err)
	}
	return nil
}

// ListByEvaluation returns every criterion row for an evaluation.
func (r *CriterionRepository) ListByEvaluation(ctx context.Context, evaluationID string) ([]models.CriterionCheck, error) {
	const query = `SELECT id, evaluation_id, conduct_id, tramo, criterion_index, is_checked, updated_at
        FROM evaluation_criteria WHERE evaluation_id = $1 ORDER BY conduct_id, tramo, criterion_index`
	var checks []models.CriterionCheck
	if err := r.db.SelectContext(ctx, &checks, query, evaluationID); err != nil {
		return nil, fmt.Errorf("list criteria: %w", err)
	}
	return checks, nil
}
