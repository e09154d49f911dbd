package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/internal/models"
)

// WorkerRepository reads the worker roster.
type WorkerRepository struct {
	db *sqlx.DB
}

// NewWorkerRepository creates a new worker repository.
func NewWorkerRepository(db *sqlx.DB) *WorkerRepository {
	return &WorkerRepository{db: db}
}

// List returns the full roster ordered by name.
func (r *WorkerRepository) List(ctx context.Context) ([]models.Worker, error) {
	const query = `SELECT id, full_name, worker_group, created_at, updated_at FROM workers ORDER BY full_name`
	var workers []models.Worker
	if err := r.db.SelectContext(ctx, &workers, query); err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	return workers, nil
}

// FindByID returns one worker.
func (r *WorkerRepository) FindByID(ctx context.Context, id string) (*models.Worker, error) {
	const query = `SELECT id, full_name, worker_group, created_at, updated_at FROM workers WHERE id = $1`
	var worker models.Worker
	if err := r.db.GetContext(ctx, &worker, query, id); err != nil {
		return nil, err
	}
	return &worker, nil
}
