package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/internal/models"
)

// EvidenceRepository persists the free-text evidence per conduct.
type EvidenceRepository struct {
	db *sqlx.DB
}

// NewEvidenceRepository creates a new evidence repository.
func NewEvidenceRepository(db *sqlx.DB) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

const upsertEvidenceQuery = `INSERT INTO evaluation_evidence (id, evaluation_id, conduct_id, evidence_text, updated_at)
    VALUES (:id, :evaluation_id, :conduct_id, :evidence_text, :updated_at)
    ON CONFLICT (evaluation_id, conduct_id)
    DO UPDATE SET evidence_text = EXCLUDED.evidence_text, updated_at = EXCLUDED.updated_at`

// Upsert inserts or updates the evidence text for one conduct.
func (r *EvidenceRepository) Upsert(ctx context.Context, note *models.EvidenceNote) error {
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	note.UpdatedAt = time.Now().UTC()
	if _, err := r.db.NamedExecContext(ctx, upsertEvidenceQuery, note); err != nil {
		return fmt.Errorf("upsert evidence: %w", err)
	}
	return nil
}

// BulkUpsert writes many evidence notes in one transaction.
func (r *EvidenceRepository) BulkUpsert(ctx context.Context, notes []models.EvidenceNote) error {
	if len(notes) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for i := range notes {
		if notes[i].ID == "" {
			notes[i].ID = uuid.NewString()
		}
		notes[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, upsertEvidenceQuery, notes[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("bulk upsert evidence: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit evidence: %w", err)
	}
	return nil
}

// ListByEvaluation returns every evidence row for an evaluation.
func (r *EvidenceRepository) ListByEvaluation(ctx context.Context, evaluationID string) ([]models.EvidenceNote, error) {
	const query = `SELECT id, evaluation_id, conduct_id, evidence_text, updated_at
        FROM evaluation_evidence WHERE evaluation_id = $1 ORDER BY conduct_id`
	var notes []models.EvidenceNote
	if err := r.db.SelectContext(ctx, &notes, query, evaluationID); err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	return notes, nil
}
