package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/pkg/jobs"
)

const purgeJobType = "evaluation-binary-purge"

type dirRemover interface {
	DeleteDir(dir string) error
}

// PurgeService removes evidence-file binaries for deleted evaluations in the
// background. The metadata rows are already gone by the time a job runs;
// only the on-disk directory remains to clean up.
type PurgeService struct {
	storage dirRemover
	queue   *jobs.Queue
	logger  *zap.Logger
}

// NewPurgeService builds the service and its retrying queue.
func NewPurgeService(storage dirRemover, logger *zap.Logger) *PurgeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &PurgeService{storage: storage, logger: logger}
	s.queue = jobs.NewQueue("binary-purge", s.handle, jobs.QueueConfig{
		Workers:    1,
		MaxRetries: 3,
		RetryDelay: 5 * time.Second,
		Logger:     logger,
	})
	return s
}

// Start launches the queue workers.
func (s *PurgeService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the queue.
func (s *PurgeService) Stop() {
	s.queue.Stop()
}

// EnqueuePurge schedules the removal of an evaluation's file directory.
func (s *PurgeService) EnqueuePurge(evaluationID string) error {
	return s.queue.Enqueue(jobs.Job{
		ID:     uuid.NewString(),
		Type:   purgeJobType,
		Target: evaluationID,
	})
}

func (s *PurgeService) handle(ctx context.Context, job jobs.Job) error {
	if err := s.storage.DeleteDir(job.Target); err != nil {
		return fmt.Errorf("purge binaries for %s: %w", job.Target, err)
	}
	s.logger.Info("evaluation binaries purged", zap.String("evaluation_id", job.Target))
	return nil
}
