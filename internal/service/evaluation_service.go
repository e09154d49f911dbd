package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/internal/models"
	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/internal/rubric"
	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/internal/scoring"
	appErrors "github.com/kketzal/EVALUACION-DESEMPENO-sub000/pkg/errors"
)

var periodPattern = regexp.MustCompile(`^(\d{4})-(\d{4})$`)

type evaluationStore interface {
	Find(ctx context.Context, workerID, period string) (*models.Evaluation, error)
	GetByID(ctx context.Context, id string) (*models.Evaluation, error)
	GetBundle(ctx context.Context, id string) (*models.EvaluationBundle, error)
	Create(ctx context.Context, workerID, period string) (*models.Evaluation, error)
	Fork(ctx context.Context, evaluationID string) (*models.Evaluation, error)
	List(ctx context.Context, workerID string) ([]models.Evaluation, error)
	Delete(ctx context.Context, id string) error
	UpdateSettings(ctx context.Context, id string, settings models.EvaluationSettings) error
	Touch(ctx context.Context, id string) error
}

type criterionStore interface {
	Upsert(ctx context.Context, check *models.CriterionCheck) error
	BulkUpsert(ctx context.Context, checks []models.CriterionCheck) error
	ResetTramo1(ctx context.Context, evaluationID string) error
}

type evidenceStore interface {
	Upsert(ctx context.Context, note *models.EvidenceNote) error
	BulkUpsert(ctx context.Context, notes []models.EvidenceNote) error
}

type scoreStore interface {
	Upsert(ctx context.Context, score *models.ConductScore) error
	BulkUpsert(ctx context.Context, scores []models.ConductScore) error
}

type fileStore interface {
	Create(ctx context.Context, file *models.EvidenceFile) error
	GetByID(ctx context.Context, id string) (*models.EvidenceFile, error)
	Delete(ctx context.Context, id string) error
}

type workerReader interface {
	FindByID(ctx context.Context, id string) (*models.Worker, error)
}

type blobStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Delete(filename string) error
	DeleteDir(dir string) error
}

// sessionMirror replicates session state to a shared cache so the UI can
// recover editing context across reloads. Mirror failures are tolerated.
type sessionMirror interface {
	Mirror(ctx context.Context, state *SessionState) error
	Drop(ctx context.Context, sessionID string) error
}

type binaryPurger interface {
	EnqueuePurge(evaluationID string) error
}

// FileUpload is one incoming attachment stream.
type FileUpload struct {
	OriginalName string
	MimeType     string
	SizeBytes    int64
	Reader       io.Reader
}

// EvaluationService owns the editing lifecycle: session state, creation on
// first edit, version forking, score recomputation and row persistence.
type EvaluationService struct {
	evaluations evaluationStore
	criteria    criterionStore
	evidence    evidenceStore
	scores      scoreStore
	files       fileStore
	workers     workerReader
	storage     blobStorage
	mirror      sessionMirror
	purger      binaryPurger
	sessions    *SessionRegistry
	metrics     *MetricsService
	logger      *zap.Logger

	maxFileSizeBytes int64
	allowedMIMEs     map[string]bool
}

// EvaluationServiceConfig carries upload constraints.
type EvaluationServiceConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// NewEvaluationService constructs the lifecycle service.
func NewEvaluationService(
	evaluations evaluationStore,
	criteria criterionStore,
	evidence evidenceStore,
	scores scoreStore,
	files fileStore,
	workers workerReader,
	storage blobStorage,
	mirror sessionMirror,
	purger binaryPurger,
	sessions *SessionRegistry,
	metrics *MetricsService,
	cfg EvaluationServiceConfig,
	logger *zap.Logger,
) *EvaluationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sessions == nil {
		sessions = NewSessionRegistry(0)
	}
	if cfg.MaxFileSizeBytes <= 0 {
		cfg.MaxFileSizeBytes = 10 << 20
	}
	allowed := make(map[string]bool, len(cfg.AllowedMIMEs))
	for _, m := range cfg.AllowedMIMEs {
		allowed[m] = true
	}
	return &EvaluationService{
		evaluations:      evaluations,
		criteria:         criteria,
		evidence:         evidence,
		scores:           scores,
		files:            files,
		workers:          workers,
		storage:          storage,
		mirror:           mirror,
		purger:           purger,
		sessions:         sessions,
		metrics:          metrics,
		logger:           logger,
		maxFileSizeBytes: cfg.MaxFileSizeBytes,
		allowedMIMEs:     allowed,
	}
}

// StartSession opens a fresh editing session.
func (s *EvaluationService) StartSession(ctx context.Context) (*SessionState, error) {
	sess := s.sessions.Create()
	s.metrics.SessionOpened()
	sess.mu.Lock()
	defer sess.mu.Unlock()
	state := sess.state()
	s.mirrorState(ctx, state)
	return state, nil
}

// EndSession drops the session and its cache mirror.
func (s *EvaluationService) EndSession(ctx context.Context, sessionID string) error {
	if _, err := s.sessions.Get(sessionID); err == nil {
		s.metrics.SessionClosed()
	}
	s.sessions.Delete(sessionID)
	if s.mirror != nil {
		if err := s.mirror.Drop(ctx, sessionID); err != nil {
			s.logger.Warn("drop session mirror", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	return nil
}

// GetState returns the current session view.
func (s *EvaluationService) GetState(ctx context.Context, sessionID string) (*SessionState, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state(), nil
}

// SelectWorker points the session at a worker and period. When a stored
// evaluation exists for the pair its latest version is hydrated; otherwise
// the session presents an empty state and nothing is created yet.
func (s *EvaluationService) SelectWorker(ctx context.Context, sessionID, workerID, period string) (*SessionState, error) {
	if err := validatePeriod(period); err != nil {
		return nil, err
	}
	worker, err := s.workers.FindByID(ctx, workerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "worker not found")
		}
		return nil, appErrors.Wrap(err, "WORKER_LOOKUP_FAILED", 500, "failed to look up worker")
	}

	existing, err := s.evaluations.Find(ctx, worker.ID, period)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, "EVALUATION_LOOKUP_FAILED", 500, "failed to look up evaluation")
	}
	if existing != nil {
		return s.LoadByID(ctx, sessionID, existing.ID)
	}

	// No stored evaluation: keep the selection so a later edit or an
	// explicit create knows the pair, and surface the distinguished
	// not-found condition. Nothing is created here.
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.loadGen++
	resetToEmpty(sess, worker.ID, period)
	s.mirrorState(ctx, sess.state())
	return nil, appErrors.ErrEvaluationNotFound
}

// LoadByID hydrates the session from a stored evaluation. The session lock
// is released while the bundle loads; a hydration that finishes after a
// newer load started is discarded.
func (s *EvaluationService) LoadByID(ctx context.Context, sessionID, evaluationID string) (*SessionState, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	sess.loadGen++
	gen := sess.loadGen
	sess.mu.Unlock()

	bundle, err := s.evaluations.GetBundle(ctx, evaluationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrEvaluationNotFound
		}
		return nil, appErrors.Wrap(err, "EVALUATION_LOAD_FAILED", 500, "failed to load evaluation")
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.loadGen != gen {
		s.logger.Debug("discarding stale evaluation load",
			zap.String("session_id", sessionID),
			zap.String("evaluation_id", evaluationID))
		return sess.state(), nil
	}

	eval := bundle.Evaluation
	resetToEmpty(sess, eval.WorkerID, eval.Period)
	sess.evaluationID = eval.ID
	sess.version = eval.Version
	sess.useT1SevenPoints = eval.UseT1SevenPoints
	sess.autoSave = eval.AutoSave
	sess.isNew = eval.UpdatedAt == nil && !bundle.HasChildRows()
	sess.versionFlow = fmt.Sprintf("v%d", eval.Version)

	sess.checks = CriteriaFromRows(bundle.Criteria)
	sess.evidence = EvidenceFromRows(bundle.Evidence)
	sess.files = FilesFromRows(bundle.Files, s.logger)
	sess.scores = ScoresFromRows(bundle.Scores)
	s.fillConductDefaults(ctx, sess)
	sess.captureSnapshot()
	sess.hasUnsavedChanges = false

	state := sess.state()
	s.mirrorState(ctx, state)
	return state, nil
}

// CreateEvaluation explicitly opens a new version for the session's worker
// and period, independent of any existing saved content.
func (s *EvaluationService) CreateEvaluation(ctx context.Context, sessionID string) (*SessionState, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.worker == "" || sess.period == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session has no worker and period selected")
	}
	eval, err := s.evaluations.Create(ctx, sess.worker, sess.period)
	if err != nil {
		return nil, appErrors.Wrap(err, "EVALUATION_CREATE_FAILED", 500, "failed to create evaluation")
	}
	sess.loadGen++
	resetToEmpty(sess, eval.WorkerID, eval.Period)
	sess.evaluationID = eval.ID
	sess.version = eval.Version
	sess.useT1SevenPoints = eval.UseT1SevenPoints
	sess.autoSave = eval.AutoSave
	sess.isNew = true
	sess.versionFlow = fmt.Sprintf("v%d", eval.Version)
	s.fillConductDefaults(ctx, sess)
	sess.captureSnapshot()
	s.metrics.RecordEvaluationCreated()

	state := sess.state()
	s.mirrorState(ctx, state)
	return state, nil
}

// UpdateCriterion toggles one checkbox, recomputes the conduct score and
// persists both rows. The in-memory state keeps the edit even when
// persistence fails so typed work is never silently reverted.
func (s *EvaluationService) UpdateCriterion(ctx context.Context, sessionID, conductID string, tramo, index int, checked bool) (*SessionState, error) {
	if !rubric.HasConduct(conductID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown conduct "+conductID)
	}
	if err := validateCriterionPosition(tramo, index); err != nil {
		return nil, err
	}
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := s.ensureEditable(ctx, sess); err != nil {
		return nil, err
	}

	checks := DensifyChecks(sess.checks[conductID])
	if tramo == models.Tramo1 {
		checks.T1[index] = checked
	} else {
		checks.T2[index] = checked
	}
	sess.checks[conductID] = checks
	score := scoring.Calculate(checks, sess.useT1SevenPoints)
	sess.scores[conductID] = score
	sess.hasUnsavedChanges = sess.differsFromSnapshot()

	persistErr := s.persistCriterion(ctx, sess, conductID, tramo, index, checked, score)
	if persistErr == nil {
		s.afterPersist(ctx, sess)
	}
	state := sess.state()
	s.mirrorState(ctx, state)
	return state, persistErr
}

// UpdateEvidence records the free-text note for a conduct.
func (s *EvaluationService) UpdateEvidence(ctx context.Context, sessionID, conductID, text string) (*SessionState, error) {
	if !rubric.HasConduct(conductID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown conduct "+conductID)
	}
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := s.ensureEditable(ctx, sess); err != nil {
		return nil, err
	}

	sess.evidence[conductID] = text
	sess.hasUnsavedChanges = sess.differsFromSnapshot()

	note := &models.EvidenceNote{
		ID:           uuid.NewString(),
		EvaluationID: sess.evaluationID,
		ConductID:    conductID,
		Text:         text,
		UpdatedAt:    time.Now().UTC(),
	}
	var persistErr error
	if err := s.evidence.Upsert(ctx, note); err != nil {
		s.logger.Error("persist evidence note", zap.String("conduct_id", conductID), zap.Error(err))
		persistErr = appErrors.Wrap(err, appErrors.ErrPersistence.Code, 502, "failed to persist evidence note")
	} else {
		s.afterPersist(ctx, sess)
	}
	state := sess.state()
	s.mirrorState(ctx, state)
	return state, persistErr
}

// AddFiles stores uploaded attachments for a conduct: binary to file
// storage, metadata row per file, session state updated as each one lands.
func (s *EvaluationService) AddFiles(ctx context.Context, sessionID, conductID string, uploads []FileUpload) (*SessionState, error) {
	_, competencyID, ok := rubric.FindConduct(conductID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown conduct "+conductID)
	}
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := s.ensureEditable(ctx, sess); err != nil {
		return nil, err
	}

	for _, up := range uploads {
		if up.SizeBytes > s.maxFileSizeBytes {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("file %s exceeds the %d byte limit", up.OriginalName, s.maxFileSizeBytes))
		}
		if len(s.allowedMIMEs) > 0 && !s.allowedMIMEs[up.MimeType] {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported file type "+up.MimeType)
		}
	}

	for _, up := range uploads {
		id := uuid.NewString()
		storedName := id + filepath.Ext(up.OriginalName)
		relPath := filepath.Join(sess.evaluationID, conductID, storedName)
		if _, err := s.storage.SaveStream(relPath, up.Reader); err != nil {
			s.logger.Error("store evidence file", zap.String("file", up.OriginalName), zap.Error(err))
			return nil, appErrors.Wrap(err, "FILE_STORE_FAILED", 500, "failed to store file "+up.OriginalName)
		}
		record := &models.EvidenceFile{
			ID:           id,
			EvaluationID: sess.evaluationID,
			CompetencyID: competencyID,
			ConductID:    conductID,
			OriginalName: up.OriginalName,
			StoredName:   storedName,
			MimeType:     up.MimeType,
			SizeBytes:    up.SizeBytes,
			UploadedAt:   time.Now().UTC(),
		}
		if err := s.files.Create(ctx, record); err != nil {
			s.logger.Error("persist evidence file metadata", zap.String("file", up.OriginalName), zap.Error(err))
			if delErr := s.storage.Delete(relPath); delErr != nil {
				s.logger.Warn("remove orphaned upload", zap.String("path", relPath), zap.Error(delErr))
			}
			return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, 502, "failed to persist file metadata")
		}
		sess.files[conductID] = append(sess.files[conductID], *record)
	}
	sess.hasUnsavedChanges = sess.differsFromSnapshot()
	s.afterPersist(ctx, sess)

	state := sess.state()
	s.mirrorState(ctx, state)
	return state, nil
}

// RemoveFile deletes an attachment. Like every other edit it forks a saved
// evaluation first; the binary itself is deleted physically because blob
// storage is shared across versions rather than copied on fork.
func (s *EvaluationService) RemoveFile(ctx context.Context, sessionID, fileID string) (*SessionState, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.evaluationID != "" {
		if err := s.ensureEditable(ctx, sess); err != nil {
			return nil, err
		}
	}

	var record *models.EvidenceFile
	for conductID, files := range sess.files {
		for i, f := range files {
			if f.ID == fileID {
				record = &files[i]
				sess.files[conductID] = append(files[:i:i], files[i+1:]...)
				if len(sess.files[conductID]) == 0 {
					delete(sess.files, conductID)
				}
				break
			}
		}
		if record != nil {
			break
		}
	}
	if record == nil {
		stored, err := s.files.GetByID(ctx, fileID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
			}
			return nil, appErrors.Wrap(err, "FILE_LOOKUP_FAILED", 500, "failed to look up file")
		}
		record = stored
	}

	if err := s.files.Delete(ctx, fileID); err != nil {
		s.logger.Error("delete evidence file metadata", zap.String("file_id", fileID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, 502, "failed to delete file metadata")
	}
	relPath := filepath.Join(record.EvaluationID, record.ConductID, record.StoredName)
	if err := s.storage.Delete(relPath); err != nil {
		s.logger.Warn("delete evidence file binary", zap.String("path", relPath), zap.Error(err))
	}
	sess.hasUnsavedChanges = sess.differsFromSnapshot()

	state := sess.state()
	s.mirrorState(ctx, state)
	return state, nil
}

// SetScoringMode switches between the standard and seven-point first-tier
// scale. Every visible conduct's first-tier checks reset to the new mode's
// default and all scores recompute.
func (s *EvaluationService) SetScoringMode(ctx context.Context, sessionID string, useSevenPoints bool) (*SessionState, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := s.ensureEditable(ctx, sess); err != nil {
		return nil, err
	}

	sess.useT1SevenPoints = useSevenPoints
	for _, conductID := range s.visibleConducts(ctx, sess) {
		checks := DensifyChecks(sess.checks[conductID])
		checks.T1 = scoring.DefaultT1(useSevenPoints)
		sess.checks[conductID] = checks
		sess.scores[conductID] = scoring.Calculate(checks, useSevenPoints)
	}
	sess.hasUnsavedChanges = sess.differsFromSnapshot()

	persistErr := s.persistModeSwitch(ctx, sess, useSevenPoints)
	if persistErr == nil {
		s.afterPersist(ctx, sess)
	}
	state := sess.state()
	s.mirrorState(ctx, state)
	return state, persistErr
}

// SetAutoSave toggles autosave. The flag is advisory and never forks a
// version.
func (s *EvaluationService) SetAutoSave(ctx context.Context, sessionID string, enabled bool) (*SessionState, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.autoSave = enabled
	if sess.evaluationID != "" {
		settings := models.EvaluationSettings{AutoSave: &enabled}
		if err := s.evaluations.UpdateSettings(ctx, sess.evaluationID, settings); err != nil {
			s.logger.Error("persist autosave flag", zap.String("evaluation_id", sess.evaluationID), zap.Error(err))
			return sess.state(), appErrors.Wrap(err, appErrors.ErrPersistence.Code, 502, "failed to persist autosave setting")
		}
	}
	state := sess.state()
	s.mirrorState(ctx, state)
	return state, nil
}

// Save marks the current state as the saved baseline.
func (s *EvaluationService) Save(ctx context.Context, sessionID string) (*SessionState, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.evaluationID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session has no evaluation to save")
	}
	if err := s.evaluations.Touch(ctx, sess.evaluationID); err != nil {
		s.logger.Error("mark evaluation saved", zap.String("evaluation_id", sess.evaluationID), zap.Error(err))
		return sess.state(), appErrors.Wrap(err, appErrors.ErrPersistence.Code, 502, "failed to mark evaluation saved")
	}
	sess.isNew = false
	sess.captureSnapshot()
	sess.hasUnsavedChanges = false

	state := sess.state()
	s.mirrorState(ctx, state)
	return state, nil
}

// DetectChanges reports whether the session differs from its saved baseline.
func (s *EvaluationService) DetectChanges(ctx context.Context, sessionID string) (bool, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return false, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	changed := sess.differsFromSnapshot()
	sess.hasUnsavedChanges = changed
	return changed, nil
}

// ListEvaluations returns all stored versions for a worker.
func (s *EvaluationService) ListEvaluations(ctx context.Context, workerID string) ([]models.Evaluation, error) {
	evals, err := s.evaluations.List(ctx, workerID)
	if err != nil {
		return nil, appErrors.Wrap(err, "EVALUATION_LIST_FAILED", 500, "failed to list evaluations")
	}
	return evals, nil
}

// GetBundle returns one stored evaluation with all its rows.
func (s *EvaluationService) GetBundle(ctx context.Context, evaluationID string) (*models.EvaluationBundle, error) {
	bundle, err := s.evaluations.GetBundle(ctx, evaluationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrEvaluationNotFound
		}
		return nil, appErrors.Wrap(err, "EVALUATION_LOAD_FAILED", 500, "failed to load evaluation")
	}
	return bundle, nil
}

// DeleteEvaluation removes a stored version, its rows and queues the binary
// purge. Sessions pointing at the deleted id are reset.
func (s *EvaluationService) DeleteEvaluation(ctx context.Context, evaluationID string) error {
	if _, err := s.evaluations.GetByID(ctx, evaluationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrEvaluationNotFound
		}
		return appErrors.Wrap(err, "EVALUATION_LOOKUP_FAILED", 500, "failed to look up evaluation")
	}
	if err := s.evaluations.Delete(ctx, evaluationID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, 502, "failed to delete evaluation")
	}
	s.sessions.DetachEvaluation(evaluationID)
	if s.purger != nil {
		if err := s.purger.EnqueuePurge(evaluationID); err != nil {
			s.logger.Warn("enqueue binary purge", zap.String("evaluation_id", evaluationID), zap.Error(err))
		}
	}
	return nil
}

// ensureEditable guarantees the session points at a writable evaluation
// before a mutation lands. A session with no evaluation yet gets one created
// for its worker and period. A session editing an already-saved evaluation
// forks a new version first, at most once per session, and replays the
// in-memory state onto the fork. Caller must hold sess.mu.
func (s *EvaluationService) ensureEditable(ctx context.Context, sess *Session) error {
	if sess.evaluationID == "" {
		if sess.worker == "" || sess.period == "" {
			return appErrors.Clone(appErrors.ErrValidation, "session has no worker and period selected")
		}
		eval, err := s.evaluations.Create(ctx, sess.worker, sess.period)
		if err != nil {
			return appErrors.Wrap(err, "EVALUATION_CREATE_FAILED", 500, "failed to create evaluation")
		}
		sess.evaluationID = eval.ID
		sess.version = eval.Version
		sess.useT1SevenPoints = eval.UseT1SevenPoints
		sess.autoSave = eval.AutoSave
		sess.isNew = true
		sess.versionFlow = fmt.Sprintf("v%d", eval.Version)
		s.fillConductDefaults(ctx, sess)
		sess.captureSnapshot()
		s.metrics.RecordEvaluationCreated()
		s.logger.Info("evaluation created on first edit",
			zap.String("evaluation_id", eval.ID),
			zap.String("worker_id", eval.WorkerID),
			zap.Int("version", eval.Version))
		return nil
	}

	if sess.isNew || sess.versionForked {
		return nil
	}

	forked, err := s.evaluations.Fork(ctx, sess.evaluationID)
	if err != nil {
		return appErrors.Wrap(err, "EVALUATION_FORK_FAILED", 500, "failed to fork evaluation version")
	}
	originalVersion := sess.version
	sess.originalVersionID = sess.evaluationID
	sess.evaluationID = forked.ID
	sess.version = forked.Version
	sess.versionForked = true
	sess.isNew = true
	sess.versionFlow = fmt.Sprintf("v%d → v%d", originalVersion, forked.Version)

	if err := s.replayState(ctx, sess); err != nil {
		return err
	}
	s.metrics.RecordEvaluationCreated()
	s.metrics.RecordVersionFork()
	s.logger.Info("evaluation version forked",
		zap.String("from_id", sess.originalVersionID),
		zap.String("to_id", forked.ID),
		zap.Int("version", forked.Version))
	return nil
}

// replayState copies the session's in-memory rows onto the freshly forked
// evaluation id. File metadata stays behind with the original version.
func (s *EvaluationService) replayState(ctx context.Context, sess *Session) error {
	checks := FlattenChecks(sess.evaluationID, sess.checks)
	if len(checks) > 0 {
		if err := s.criteria.BulkUpsert(ctx, checks); err != nil {
			return appErrors.Wrap(err, appErrors.ErrPersistence.Code, 502, "failed to replay criteria onto fork")
		}
	}
	notes := make([]models.EvidenceNote, 0, len(sess.evidence))
	now := time.Now().UTC()
	for conductID, text := range sess.evidence {
		if text == "" {
			continue
		}
		notes = append(notes, models.EvidenceNote{
			ID:           uuid.NewString(),
			EvaluationID: sess.evaluationID,
			ConductID:    conductID,
			Text:         text,
			UpdatedAt:    now,
		})
	}
	if len(notes) > 0 {
		if err := s.evidence.BulkUpsert(ctx, notes); err != nil {
			return appErrors.Wrap(err, appErrors.ErrPersistence.Code, 502, "failed to replay evidence onto fork")
		}
	}
	scoreRows := make([]models.ConductScore, 0, len(sess.scores))
	for conductID, score := range sess.scores {
		scoreRows = append(scoreRows, models.ConductScore{
			ID:           uuid.NewString(),
			EvaluationID: sess.evaluationID,
			ConductID:    conductID,
			T1Score:      score.T1,
			T2Score:      score.T2,
			FinalScore:   score.Final,
			UpdatedAt:    now,
		})
	}
	if len(scoreRows) > 0 {
		if err := s.scores.BulkUpsert(ctx, scoreRows); err != nil {
			return appErrors.Wrap(err, appErrors.ErrPersistence.Code, 502, "failed to replay scores onto fork")
		}
	}
	return nil
}

func (s *EvaluationService) persistCriterion(ctx context.Context, sess *Session, conductID string, tramo, index int, checked bool, score models.Score) error {
	now := time.Now().UTC()
	check := &models.CriterionCheck{
		ID:             uuid.NewString(),
		EvaluationID:   sess.evaluationID,
		ConductID:      conductID,
		Tramo:          tramo,
		CriterionIndex: index,
		Checked:        checked,
		UpdatedAt:      now,
	}
	if err := s.criteria.Upsert(ctx, check); err != nil {
		s.logger.Error("persist criterion check", zap.String("conduct_id", conductID), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, 502, "failed to persist criterion")
	}
	row := &models.ConductScore{
		ID:           uuid.NewString(),
		EvaluationID: sess.evaluationID,
		ConductID:    conductID,
		T1Score:      score.T1,
		T2Score:      score.T2,
		FinalScore:   score.Final,
		UpdatedAt:    now,
	}
	if err := s.scores.Upsert(ctx, row); err != nil {
		s.logger.Error("persist conduct score", zap.String("conduct_id", conductID), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, 502, "failed to persist score")
	}
	return nil
}

// persistModeSwitch rewrites the first-tier rows: settings flag update,
// delete of all tramo 1 rows, then replay of the now-true defaults plus the
// recomputed scores.
func (s *EvaluationService) persistModeSwitch(ctx context.Context, sess *Session, useSevenPoints bool) error {
	settings := models.EvaluationSettings{UseT1SevenPoints: &useSevenPoints}
	if err := s.evaluations.UpdateSettings(ctx, sess.evaluationID, settings); err != nil {
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, 502, "failed to persist scoring mode")
	}
	if err := s.criteria.ResetTramo1(ctx, sess.evaluationID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, 502, "failed to reset first-tier criteria")
	}
	checks := FlattenChecks(sess.evaluationID, sess.checks)
	var t1Checks []models.CriterionCheck
	for _, c := range checks {
		if c.Tramo == models.Tramo1 {
			t1Checks = append(t1Checks, c)
		}
	}
	if len(t1Checks) > 0 {
		if err := s.criteria.BulkUpsert(ctx, t1Checks); err != nil {
			return appErrors.Wrap(err, appErrors.ErrPersistence.Code, 502, "failed to persist first-tier defaults")
		}
	}
	now := time.Now().UTC()
	scoreRows := make([]models.ConductScore, 0, len(sess.scores))
	for conductID, score := range sess.scores {
		scoreRows = append(scoreRows, models.ConductScore{
			ID:           uuid.NewString(),
			EvaluationID: sess.evaluationID,
			ConductID:    conductID,
			T1Score:      score.T1,
			T2Score:      score.T2,
			FinalScore:   score.Final,
			UpdatedAt:    now,
		})
	}
	if len(scoreRows) > 0 {
		if err := s.scores.BulkUpsert(ctx, scoreRows); err != nil {
			return appErrors.Wrap(err, appErrors.ErrPersistence.Code, 502, "failed to persist recomputed scores")
		}
	}
	return nil
}

// afterPersist applies autosave semantics once a mutation has landed in the
// store. Caller must hold sess.mu.
func (s *EvaluationService) afterPersist(ctx context.Context, sess *Session) {
	if !sess.autoSave {
		return
	}
	if err := s.evaluations.Touch(ctx, sess.evaluationID); err != nil {
		s.logger.Warn("autosave touch", zap.String("evaluation_id", sess.evaluationID), zap.Error(err))
		return
	}
	sess.isNew = false
	sess.captureSnapshot()
	sess.hasUnsavedChanges = false
}

// fillConductDefaults guarantees every visible conduct carries dense check
// slices at the rubric's fixed per-tier lengths and a score entry. Stored
// rows address single criteria, so a partially persisted conduct hydrates
// with short slices; densifying here keeps index-addressed edits in range.
// Stored score rows are trusted when present; anything derivable but missing
// is recomputed from the checks. Caller must hold sess.mu.
func (s *EvaluationService) fillConductDefaults(ctx context.Context, sess *Session) {
	for _, conductID := range s.visibleConducts(ctx, sess) {
		checks := DensifyChecks(sess.checks[conductID])
		sess.checks[conductID] = checks
		if _, ok := sess.scores[conductID]; !ok {
			sess.scores[conductID] = scoring.Calculate(checks, sess.useT1SevenPoints)
		}
	}
}

// visibleConducts resolves the conduct ids the session's worker actually
// sees, falling back to the full catalogue when the worker is unknown.
func (s *EvaluationService) visibleConducts(ctx context.Context, sess *Session) []string {
	if sess.worker != "" {
		worker, err := s.workers.FindByID(ctx, sess.worker)
		if err == nil {
			var ids []string
			for _, comp := range rubric.ForGroup(worker.Group) {
				for _, conduct := range comp.Conducts {
					ids = append(ids, conduct.ID)
				}
			}
			return ids
		}
		s.logger.Warn("resolve worker group", zap.String("worker_id", sess.worker), zap.Error(err))
	}
	return rubric.ConductIDs()
}

func (s *EvaluationService) mirrorState(ctx context.Context, state *SessionState) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Mirror(ctx, state); err != nil {
		s.logger.Warn("mirror session state", zap.String("session_id", state.SessionID), zap.Error(err))
	}
}

func resetToEmpty(sess *Session, workerID, period string) {
	sess.worker = workerID
	sess.period = period
	sess.evaluationID = ""
	sess.version = 0
	sess.isNew = false
	sess.useT1SevenPoints = false
	sess.autoSave = false
	sess.hasUnsavedChanges = false
	sess.snapshot = nil
	sess.versionForked = false
	sess.originalVersionID = ""
	sess.versionFlow = ""
	sess.checks = make(map[string]models.CriteriaChecks)
	sess.evidence = make(map[string]string)
	sess.scores = make(map[string]models.Score)
	sess.files = make(map[string][]models.EvidenceFile)
}

func validatePeriod(period string) error {
	m := periodPattern.FindStringSubmatch(period)
	if m == nil {
		return appErrors.Clone(appErrors.ErrValidation, "period must look like 2023-2024")
	}
	from, _ := strconv.Atoi(m[1])
	to, _ := strconv.Atoi(m[2])
	if to != from+1 {
		return appErrors.Clone(appErrors.ErrValidation, "period years must be consecutive")
	}
	return nil
}

func validateCriterionPosition(tramo, index int) error {
	switch tramo {
	case models.Tramo1:
		if index < 0 || index >= models.T1CriteriaCount {
			return appErrors.Clone(appErrors.ErrValidation, "first-tier criterion index out of range")
		}
	case models.Tramo2:
		if index < 0 || index >= models.T2CriteriaCount {
			return appErrors.Clone(appErrors.ErrValidation, "second-tier criterion index out of range")
		}
	default:
		return appErrors.Clone(appErrors.ErrValidation, "tramo must be 1 or 2")
	}
	return nil
}
