package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/internal/models"
	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/internal/rubric"
	appErrors "github.com/kketzal/EVALUACION-DESEMPENO-sub000/pkg/errors"
)

const workerListCacheKey = "workers:list"

type workerRepository interface {
	List(ctx context.Context) ([]models.Worker, error)
	FindByID(ctx context.Context, id string) (*models.Worker, error)
}

// WorkerService serves the evaluable roster and each worker's visible rubric.
type WorkerService struct {
	repo   workerRepository
	cache  *CacheService
	logger *zap.Logger
}

// NewWorkerService constructs the worker service.
func NewWorkerService(repo workerRepository, cache *CacheService, logger *zap.Logger) *WorkerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerService{repo: repo, cache: cache, logger: logger}
}

// List returns every worker, cached for roster screens.
func (s *WorkerService) List(ctx context.Context) ([]models.Worker, error) {
	var cached []models.Worker
	if hit, err := s.cache.Get(ctx, workerListCacheKey, &cached); err == nil && hit {
		return cached, nil
	}
	workers, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, "WORKER_LIST_FAILED", 500, "failed to list workers")
	}
	if err := s.cache.Set(ctx, workerListCacheKey, workers, 0); err != nil {
		s.logger.Debug("cache worker list", zap.Error(err))
	}
	return workers, nil
}

// Get returns one worker.
func (s *WorkerService) Get(ctx context.Context, id string) (*models.Worker, error) {
	worker, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "worker not found")
		}
		return nil, appErrors.Wrap(err, "WORKER_LOOKUP_FAILED", 500, "failed to look up worker")
	}
	return worker, nil
}

// Rubric returns the competencies visible to one worker's group.
func (s *WorkerService) Rubric(ctx context.Context, workerID string) ([]models.Competency, error) {
	worker, err := s.Get(ctx, workerID)
	if err != nil {
		return nil, err
	}
	return rubric.ForGroup(worker.Group), nil
}
