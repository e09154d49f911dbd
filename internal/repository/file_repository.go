package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/internal/models"
)

// FileRepository persists evidence file metadata. Binary payloads live in
// the file storage collaborator.
type FileRepository struct {
	db *sqlx.DB
}

// NewFileRepository creates a new file metadata repository.
func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

// Create inserts a metadata row for an uploaded file.
func (r *FileRepository) Create(ctx context.Context, file *models.EvidenceFile) error {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	if file.UploadedAt.IsZero() {
		file.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO evidence_files (id, evaluation_id, competency_id, conduct_id, original_name, stored_name, mime_type, size_bytes, uploaded_at)
        VALUES (:id, :evaluation_id, :competency_id, :conduct_id, :original_name, :stored_name, :mime_type, :size_bytes, :uploaded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, file); err != nil {
		return fmt.Errorf("insert file metadata: %w", err)
	}
	return nil
}

// GetByID returns one metadata row.
func (r *FileRepository) GetByID(ctx context.Context, id string) (*models.EvidenceFile, error) {
	const query = `SELECT id, evaluation_id, competency_id, conduct_id, original_name, stored_name, mime_type, size_bytes, uploaded_at
        FROM evidence_files WHERE id = $1`
	var file models.EvidenceFile
	if err := r.db.GetContext(ctx, &file, query, id); err != nil {
		return nil, err
	}
	return &file, nil
}

// ListByEvaluation returns every file row for an evaluation in upload order.
func (r *FileRepository) ListByEvaluation(ctx context.Context, evaluationID string) ([]models.EvidenceFile, error) {
	const query = `SELECT id, evaluation_id, competency_id, conduct_id, original_name, stored_name, mime_type, size_bytes, uploaded_at
        FROM evidence_files WHERE evaluation_id = $1 ORDER BY uploaded_at`
	var files []models.EvidenceFile
	if err := r.db.SelectContext(ctx, &files, query, evaluationID); err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

// Delete removes one metadata row.
func (r *FileRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM evidence_files WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete file metadata: %w", err)
	}
	return nil
}

// DeleteByConduct removes every metadata row for one conduct of an evaluation.
func (r *FileRepository) DeleteByConduct(ctx context.Context, evaluationID, conductID string) error {
	const query = `DELETE FROM evidence_files WHERE evaluation_id = $1 AND conduct_id = $2`
	if _, err := r.db.ExecContext(ctx, query, evaluationID, conductID); err != nil {
		return fmt.Errorf("delete conduct files: %w", err)
	}
	return nil
}
