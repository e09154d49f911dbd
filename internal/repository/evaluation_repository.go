package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/internal/models"
)

// EvaluationRepository handles evaluation row persistence. Version numbers
// are strictly increasing per (worker_id, period), assigned inside a
// transaction against the current max.
type EvaluationRepository struct {
	db *sqlx.DB
}

// NewEvaluationRepository creates a new evaluation repository.
func NewEvaluationRepository(db *sqlx.DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

const evaluationColumns = `id, worker_id, period, version, use_t1_seven_points, auto_save, is_new, created_at, updated_at`

// Find returns the latest evaluation for a worker and period.
func (r *EvaluationRepository) Find(ctx context.Context, workerID, period string) (*models.Evaluation, error) {
	query := fmt.Sprintf(`SELECT %s FROM evaluations WHERE worker_id = $1 AND period = $2 ORDER BY version DESC LIMIT 1`, evaluationColumns)
	var evaluation models.Evaluation
	if err := r.db.GetContext(ctx, &evaluation, query, workerID, period); err != nil {
		return nil, err
	}
	return &evaluation, nil
}

// GetByID returns a single evaluation row.
func (r *EvaluationRepository) GetByID(ctx context.Context, id string) (*models.Evaluation, error) {
	query := fmt.Sprintf(`SELECT %s FROM evaluations WHERE id = $1`, evaluationColumns)
	var evaluation models.Evaluation
	if err := r.db.GetContext(ctx, &evaluation, query, id); err != nil {
		return nil, err
	}
	return &evaluation, nil
}

// GetBundle returns the evaluation together with every child row set.
func (r *EvaluationRepository) GetBundle(ctx context.Context, id string) (*models.EvaluationBundle, error) {
	evaluation, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	bundle := &models.EvaluationBundle{Evaluation: *evaluation}

	const criteriaQuery = `SELECT id, evaluation_id, conduct_id, tramo, criterion_index, is_checked, updated_at
        FROM evaluation_criteria WHERE evaluation_id = $1 ORDER BY conduct_id, tramo, criterion_index`
	if err := r.db.SelectContext(ctx, &bundle.Criteria, criteriaQuery, id); err != nil {
		return nil, fmt.Errorf("select criteria: %w", err)
	}

	const evidenceQuery = `SELECT id, evaluation_id, conduct_id, evidence_text, updated_at
        FROM evaluation_evidence WHERE evaluation_id = $1 ORDER BY conduct_id`
	if err := r.db.SelectContext(ctx, &bundle.Evidence, evidenceQuery, id); err != nil {
		return nil, fmt.Errorf("select evidence: %w", err)
	}

	const filesQuery = `SELECT id, evaluation_id, competency_id, conduct_id, original_name, stored_name, mime_type, size_bytes, uploaded_at
        FROM evidence_files WHERE evaluation_id = $1 ORDER BY uploaded_at`
	if err := r.db.SelectContext(ctx, &bundle.Files, filesQuery, id); err != nil {
		return nil, fmt.Errorf("select files: %w", err)
	}

	const scoresQuery = `SELECT id, evaluation_id, conduct_id, t1_score, t2_score, final_score, updated_at
        FROM evaluation_scores WHERE evaluation_id = $1 ORDER BY conduct_id`
	if err := r.db.SelectContext(ctx, &bundle.Scores, scoresQuery, id); err != nil {
		return nil, fmt.Errorf("select scores: %w", err)
	}

	return bundle, nil
}

// Create inserts a fresh evaluation with version = max+1 for the pair.
func (r *EvaluationRepository) Create(ctx context.Context, workerID, period string) (*models.Evaluation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	evaluation, err := insertNextVersion(ctx, tx, workerID, period, false, false)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit evaluation: %w", err)
	}
	return evaluation, nil
}

// Fork creates a new evaluation row for the same worker and period with
// version = max+1, carrying over the settings flags. Child rows are not
// copied; the caller replays whatever content the new version should hold.
func (r *EvaluationRepository) Fork(ctx context.Context, evaluationID string) (*models.Evaluation, error) {
	source, err := r.GetByID(ctx, evaluationID)
	if err != nil {
		return nil, err
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	forked, err := insertNextVersion(ctx, tx, source.WorkerID, source.Period, source.UseT1SevenPoints, source.AutoSave)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit fork: %w", err)
	}
	return forked, nil
}

func insertNextVersion(ctx context.Context, tx *sqlx.Tx, workerID, period string, sevenPoints, autoSave bool) (*models.Evaluation, error) {
	var version int
	const maxQuery = `SELECT COALESCE(MAX(version), 0) FROM evaluations WHERE worker_id = $1 AND period = $2`
	if err := tx.GetContext(ctx, &version, maxQuery, workerID, period); err != nil {
		return nil, fmt.Errorf("max version: %w", err)
	}

	evaluation := &models.Evaluation{
		ID:               uuid.NewString(),
		WorkerID:         workerID,
		Period:           period,
		Version:          version + 1,
		UseT1SevenPoints: sevenPoints,
		AutoSave:         autoSave,
		IsNew:            true,
		CreatedAt:        time.Now().UTC(),
	}
	const insertQuery = `INSERT INTO evaluations (id, worker_id, period, version, use_t1_seven_points, auto_save, is_new, created_at)
        VALUES (:id, :worker_id, :period, :version, :use_t1_seven_points, :auto_save, :is_new, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, evaluation); err != nil {
		return nil, fmt.Errorf("insert evaluation: %w", err)
	}
	return evaluation, nil
}

// List returns every evaluation for a worker, newest period and version first.
func (r *EvaluationRepository) List(ctx context.Context, workerID string) ([]models.Evaluation, error) {
	query := fmt.Sprintf(`SELECT %s FROM evaluations WHERE worker_id = $1 ORDER BY period DESC, version DESC`, evaluationColumns)
	var evaluations []models.Evaluation
	if err := r.db.SelectContext(ctx, &evaluations, query, workerID); err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	return evaluations, nil
}

// Delete removes the evaluation and cascades over every child table.
func (r *EvaluationRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	for _, table := range []string{"evaluation_criteria", "evaluation_evidence", "evidence_files", "evaluation_scores"} {
		query := fmt.Sprintf("DELETE FROM %s WHERE evaluation_id = $1", table)
		if _, err := tx.ExecContext(ctx, query, id); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM evaluations WHERE id = $1", id); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("delete evaluation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

// UpdateSettings persists the per-evaluation toggles that are present.
func (r *EvaluationRepository) UpdateSettings(ctx context.Context, id string, settings models.EvaluationSettings) error {
	if settings.UseT1SevenPoints == nil && settings.AutoSave == nil {
		return nil
	}
	query := "UPDATE evaluations SET "
	var args []interface{}
	if settings.UseT1SevenPoints != nil {
		args = append(args, *settings.UseT1SevenPoints)
		query += fmt.Sprintf("use_t1_seven_points = $%d", len(args))
	}
	if settings.AutoSave != nil {
		if len(args) > 0 {
			query += ", "
		}
		args = append(args, *settings.AutoSave)
		query += fmt.Sprintf("auto_save = $%d", len(args))
	}
	args = append(args, id)
	query += fmt.Sprintf(" WHERE id = $%d", len(args))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}

// Touch stamps updated_at and clears the advisory is_new flag.
func (r *EvaluationRepository) Touch(ctx context.Context, id string) error {
	const query = `UPDATE evaluations SET updated_at = $1, is_new = FALSE WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("touch evaluation: %w", err)
	}
	return nil
}
