package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/internal/models"
	appErrors "github.com/kketzal/EVALUACION-DESEMPENO-sub000/pkg/errors"
)

type mockEvaluationStore struct {
	evaluations map[string]models.Evaluation
	criteria    map[string][]models.CriterionCheck
	evidence    map[string][]models.EvidenceNote
	files       map[string][]models.EvidenceFile
	scores      map[string][]models.ConductScore
	deleted     []string
	touched     []string
	seq         int
}

func newMockEvaluationStore() *mockEvaluationStore {
	return &mockEvaluationStore{
		evaluations: make(map[string]models.Evaluation),
		criteria:    make(map[string][]models.CriterionCheck),
		evidence:    make(map[string][]models.EvidenceNote),
		files:       make(map[string][]models.EvidenceFile),
		scores:      make(map[string][]models.ConductScore),
	}
}

func (m *mockEvaluationStore) nextVersion(workerID, period string) int {
	max := 0
	for _, e := range m.evaluations {
		if e.WorkerID == workerID && e.Period == period && e.Version > max {
			max = e.Version
		}
	}
	return max + 1
}

func (m *mockEvaluationStore) insert(workerID, period string, sevenPoints, autoSave bool) models.Evaluation {
	m.seq++
	eval := models.Evaluation{
		ID:               fmt.Sprintf("eval-%d", m.seq),
		WorkerID:         workerID,
		Period:           period,
		Version:          m.nextVersion(workerID, period),
		UseT1SevenPoints: sevenPoints,
		AutoSave:         autoSave,
		IsNew:            true,
		CreatedAt:        time.Now().UTC(),
	}
	m.evaluations[eval.ID] = eval
	return eval
}

func (m *mockEvaluationStore) Find(ctx context.Context, workerID, period string) (*models.Evaluation, error) {
	var best *models.Evaluation
	for id := range m.evaluations {
		e := m.evaluations[id]
		if e.WorkerID == workerID && e.Period == period {
			if best == nil || e.Version > best.Version {
				copy := e
				best = &copy
			}
		}
	}
	if best == nil {
		return nil, sql.ErrNoRows
	}
	return best, nil
}

func (m *mockEvaluationStore) GetByID(ctx context.Context, id string) (*models.Evaluation, error) {
	if e, ok := m.evaluations[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEvaluationStore) GetBundle(ctx context.Context, id string) (*models.EvaluationBundle, error) {
	e, ok := m.evaluations[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.EvaluationBundle{
		Evaluation: e,
		Criteria:   m.criteria[id],
		Evidence:   m.evidence[id],
		Files:      m.files[id],
		Scores:     m.scores[id],
	}, nil
}

func (m *mockEvaluationStore) Create(ctx context.Context, workerID, period string) (*models.Evaluation, error) {
	eval := m.insert(workerID, period, false, false)
	return &eval, nil
}

func (m *mockEvaluationStore) Fork(ctx context.Context, evaluationID string) (*models.Evaluation, error) {
	orig, ok := m.evaluations[evaluationID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	eval := m.insert(orig.WorkerID, orig.Period, orig.UseT1SevenPoints, orig.AutoSave)
	return &eval, nil
}

func (m *mockEvaluationStore) List(ctx context.Context, workerID string) ([]models.Evaluation, error) {
	var out []models.Evaluation
	for _, e := range m.evaluations {
		if e.WorkerID == workerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockEvaluationStore) Delete(ctx context.Context, id string) error {
	if _, ok := m.evaluations[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.evaluations, id)
	delete(m.criteria, id)
	delete(m.evidence, id)
	delete(m.files, id)
	delete(m.scores, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockEvaluationStore) UpdateSettings(ctx context.Context, id string, settings models.EvaluationSettings) error {
	e, ok := m.evaluations[id]
	if !ok {
		return sql.ErrNoRows
	}
	if settings.UseT1SevenPoints != nil {
		e.UseT1SevenPoints = *settings.UseT1SevenPoints
	}
	if settings.AutoSave != nil {
		e.AutoSave = *settings.AutoSave
	}
	m.evaluations[id] = e
	return nil
}

func (m *mockEvaluationStore) Touch(ctx context.Context, id string) error {
	e, ok := m.evaluations[id]
	if !ok {
		return sql.ErrNoRows
	}
	now := time.Now().UTC()
	e.UpdatedAt = &now
	e.IsNew = false
	m.evaluations[id] = e
	m.touched = append(m.touched, id)
	return nil
}

type mockCriterionStore struct {
	upserts []models.CriterionCheck
	bulk    [][]models.CriterionCheck
	resets  []string
	failAll bool
}

func (m *mockCriterionStore) Upsert(ctx context.Context, check *models.CriterionCheck) error {
	if m.failAll {
		return errors.New("criterion store unavailable")
	}
	m.upserts = append(m.upserts, *check)
	return nil
}

func (m *mockCriterionStore) BulkUpsert(ctx context.Context, checks []models.CriterionCheck) error {
	if m.failAll {
		return errors.New("criterion store unavailable")
	}
	m.bulk = append(m.bulk, checks)
	return nil
}

func (m *mockCriterionStore) ResetTramo1(ctx context.Context, evaluationID string) error {
	m.resets = append(m.resets, evaluationID)
	return nil
}

type mockEvidenceStore struct {
	upserts []models.EvidenceNote
	bulk    [][]models.EvidenceNote
}

func (m *mockEvidenceStore) Upsert(ctx context.Context, note *models.EvidenceNote) error {
	m.upserts = append(m.upserts, *note)
	return nil
}

func (m *mockEvidenceStore) BulkUpsert(ctx context.Context, notes []models.EvidenceNote) error {
	m.bulk = append(m.bulk, notes)
	return nil
}

type mockScoreStore struct {
	upserts []models.ConductScore
	bulk    [][]models.ConductScore
}

func (m *mockScoreStore) Upsert(ctx context.Context, score *models.ConductScore) error {
	m.upserts = append(m.upserts, *score)
	return nil
}

func (m *mockScoreStore) BulkUpsert(ctx context.Context, scores []models.ConductScore) error {
	m.bulk = append(m.bulk, scores)
	return nil
}

type mockFileStore struct {
	files   map[string]models.EvidenceFile
	deleted []string
}

func (m *mockFileStore) Create(ctx context.Context, file *models.EvidenceFile) error {
	if m.files == nil {
		m.files = make(map[string]models.EvidenceFile)
	}
	m.files[file.ID] = *file
	return nil
}

func (m *mockFileStore) GetByID(ctx context.Context, id string) (*models.EvidenceFile, error) {
	if f, ok := m.files[id]; ok {
		return &f, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFileStore) Delete(ctx context.Context, id string) error {
	delete(m.files, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type mockWorkerReader struct {
	workers map[string]models.Worker
}

func (m *mockWorkerReader) FindByID(ctx context.Context, id string) (*models.Worker, error) {
	if w, ok := m.workers[id]; ok {
		return &w, nil
	}
	return nil, sql.ErrNoRows
}

type mockBlobStorage struct {
	saved   map[string][]byte
	removed []string
}

func (m *mockBlobStorage) SaveStream(filename string, r io.Reader) (string, error) {
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	m.saved[filename] = buf.Bytes()
	return filename, nil
}

func (m *mockBlobStorage) Delete(filename string) error {
	delete(m.saved, filename)
	m.removed = append(m.removed, filename)
	return nil
}

func (m *mockBlobStorage) DeleteDir(dir string) error {
	m.removed = append(m.removed, dir)
	return nil
}

type mockMirror struct {
	states  []SessionState
	dropped []string
}

func (m *mockMirror) Mirror(ctx context.Context, state *SessionState) error {
	m.states = append(m.states, *state)
	return nil
}

func (m *mockMirror) Drop(ctx context.Context, sessionID string) error {
	m.dropped = append(m.dropped, sessionID)
	return nil
}

type mockPurger struct {
	purged []string
}

func (m *mockPurger) EnqueuePurge(evaluationID string) error {
	m.purged = append(m.purged, evaluationID)
	return nil
}

type lifecycleFixture struct {
	svc      *EvaluationService
	evals    *mockEvaluationStore
	criteria *mockCriterionStore
	evidence *mockEvidenceStore
	scores   *mockScoreStore
	files    *mockFileStore
	blob     *mockBlobStorage
	mirror   *mockMirror
	purger   *mockPurger
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()
	f := &lifecycleFixture{
		evals:    newMockEvaluationStore(),
		criteria: &mockCriterionStore{},
		evidence: &mockEvidenceStore{},
		scores:   &mockScoreStore{},
		files:    &mockFileStore{},
		blob:     &mockBlobStorage{},
		mirror:   &mockMirror{},
		purger:   &mockPurger{},
	}
	workers := &mockWorkerReader{workers: map[string]models.Worker{
		"w1": {ID: "w1", FullName: "Ana Garcia", Group: models.GroupGeneral},
	}}
	f.svc = NewEvaluationService(
		f.evals, f.criteria, f.evidence, f.scores, f.files,
		workers, f.blob, f.mirror, f.purger,
		NewSessionRegistry(time.Hour), nil,
		EvaluationServiceConfig{
			MaxFileSizeBytes: 1024,
			AllowedMIMEs:     []string{"application/pdf"},
		},
		zap.NewNop(),
	)
	return f
}

func (f *lifecycleFixture) startSelected(t *testing.T) string {
	t.Helper()
	state, err := f.svc.StartSession(context.Background())
	require.NoError(t, err)
	_, err = f.svc.SelectWorker(context.Background(), state.SessionID, "w1", "2023-2024")
	require.ErrorIs(t, err, appErrors.ErrEvaluationNotFound)
	return state.SessionID
}

func TestSelectWorkerWithoutEvaluation(t *testing.T) {
	f := newLifecycleFixture(t)
	state, err := f.svc.StartSession(context.Background())
	require.NoError(t, err)

	_, err = f.svc.SelectWorker(context.Background(), state.SessionID, "w1", "2023-2024")
	assert.ErrorIs(t, err, appErrors.ErrEvaluationNotFound)

	// Selection sticks so a later edit knows the pair.
	got, err := f.svc.GetState(context.Background(), state.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "w1", got.WorkerID)
	assert.Equal(t, "2023-2024", got.Period)
	assert.Empty(t, got.EvaluationID)
}

func TestSelectWorkerRejectsBadPeriod(t *testing.T) {
	f := newLifecycleFixture(t)
	state, err := f.svc.StartSession(context.Background())
	require.NoError(t, err)

	for _, period := range []string{"2023", "2023-2026", "23-24", "2024-2023"} {
		_, err := f.svc.SelectWorker(context.Background(), state.SessionID, "w1", period)
		assert.Error(t, err, period)
		assert.NotErrorIs(t, err, appErrors.ErrEvaluationNotFound, period)
	}
}

func TestFirstEditCreatesVersionOne(t *testing.T) {
	f := newLifecycleFixture(t)
	sessionID := f.startSelected(t)

	state, err := f.svc.UpdateCriterion(context.Background(), sessionID, "A1", models.Tramo1, 0, true)
	require.NoError(t, err)

	assert.NotEmpty(t, state.EvaluationID)
	assert.Equal(t, 1, state.Version)
	assert.True(t, state.IsNew)
	assert.Equal(t, "v1", state.VersionFlow)
	require.Len(t, f.criteria.upserts, 1)
	assert.Equal(t, state.EvaluationID, f.criteria.upserts[0].EvaluationID)
	require.Len(t, f.scores.upserts, 1)
	assert.Equal(t, 5, f.scores.upserts[0].FinalScore)
}

func TestExplicitCreateIncrementsVersion(t *testing.T) {
	f := newLifecycleFixture(t)
	sessionID := f.startSelected(t)

	first, err := f.svc.CreateEvaluation(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)

	second, err := f.svc.CreateEvaluation(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)
	assert.NotEqual(t, first.EvaluationID, second.EvaluationID)
}

func TestEditingSavedEvaluationForksOnce(t *testing.T) {
	f := newLifecycleFixture(t)

	// Saved evaluation with content: v1, updated_at set, one checked box.
	saved := f.evals.insert("w1", "2023-2024", false, false)
	now := time.Now().UTC()
	e := f.evals.evaluations[saved.ID]
	e.UpdatedAt = &now
	f.evals.evaluations[saved.ID] = e
	f.evals.criteria[saved.ID] = []models.CriterionCheck{
		{ID: "c1", EvaluationID: saved.ID, ConductID: "A1", Tramo: models.Tramo1, CriterionIndex: 0, Checked: true},
	}

	state, err := f.svc.StartSession(context.Background())
	require.NoError(t, err)
	loaded, err := f.svc.SelectWorker(context.Background(), state.SessionID, "w1", "2023-2024")
	require.NoError(t, err)
	assert.False(t, loaded.IsNew)
	assert.Equal(t, "v1", loaded.VersionFlow)

	after, err := f.svc.UpdateCriterion(context.Background(), state.SessionID, "A1", models.Tramo1, 1, true)
	require.NoError(t, err)
	assert.Equal(t, 2, after.Version)
	assert.NotEqual(t, saved.ID, after.EvaluationID)
	assert.Equal(t, "v1 → v2", after.VersionFlow)

	// The in-memory checked boxes were replayed onto the fork.
	require.NotEmpty(t, f.criteria.bulk)
	for _, c := range f.criteria.bulk[0] {
		assert.Equal(t, after.EvaluationID, c.EvaluationID)
		assert.True(t, c.Checked)
	}

	// A second edit in the same session must not fork again.
	again, err := f.svc.UpdateCriterion(context.Background(), state.SessionID, "A1", models.Tramo1, 2, true)
	require.NoError(t, err)
	assert.Equal(t, after.EvaluationID, again.EvaluationID)
	assert.Equal(t, 2, again.Version)
	assert.Len(t, f.evals.evaluations, 2)

	// The original row is untouched.
	orig, err := f.evals.GetByID(context.Background(), saved.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, orig.Version)
}

func TestFreshEvaluationDoesNotFork(t *testing.T) {
	f := newLifecycleFixture(t)
	sessionID := f.startSelected(t)

	first, err := f.svc.UpdateCriterion(context.Background(), sessionID, "A1", models.Tramo1, 0, true)
	require.NoError(t, err)
	second, err := f.svc.UpdateCriterion(context.Background(), sessionID, "A2", models.Tramo2, 0, true)
	require.NoError(t, err)

	assert.Equal(t, first.EvaluationID, second.EvaluationID)
	assert.Len(t, f.evals.evaluations, 1)
}

func TestIsNewDerivation(t *testing.T) {
	f := newLifecycleFixture(t)

	// updated_at null and no child rows: new.
	blank := f.evals.insert("w1", "2023-2024", false, false)
	state, err := f.svc.StartSession(context.Background())
	require.NoError(t, err)
	loaded, err := f.svc.LoadByID(context.Background(), state.SessionID, blank.ID)
	require.NoError(t, err)
	assert.True(t, loaded.IsNew)

	// Child rows present: not new even with updated_at still null.
	f.evals.criteria[blank.ID] = []models.CriterionCheck{
		{ID: "c1", EvaluationID: blank.ID, ConductID: "A1", Tramo: models.Tramo1, CriterionIndex: 0, Checked: true},
	}
	reloaded, err := f.svc.LoadByID(context.Background(), state.SessionID, blank.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsNew)
}

func TestPersistenceFailureKeepsLocalEdit(t *testing.T) {
	f := newLifecycleFixture(t)
	sessionID := f.startSelected(t)

	// Create the evaluation first so the failure hits the criterion write.
	_, err := f.svc.CreateEvaluation(context.Background(), sessionID)
	require.NoError(t, err)

	f.criteria.failAll = true
	_, err = f.svc.UpdateCriterion(context.Background(), sessionID, "A1", models.Tramo1, 0, true)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPersistence.Code, appErrors.FromError(err).Code)

	state, err := f.svc.GetState(context.Background(), sessionID)
	require.NoError(t, err)
	require.Contains(t, state.Checks, "A1")
	assert.True(t, state.Checks["A1"].T1[0])
	assert.Equal(t, 5, state.Scores["A1"].Final)
}

func TestUpdateCriterionValidation(t *testing.T) {
	f := newLifecycleFixture(t)
	sessionID := f.startSelected(t)

	_, err := f.svc.UpdateCriterion(context.Background(), sessionID, "Z9", models.Tramo1, 0, true)
	assert.Error(t, err)

	_, err = f.svc.UpdateCriterion(context.Background(), sessionID, "A1", 3, 0, true)
	assert.Error(t, err)

	_, err = f.svc.UpdateCriterion(context.Background(), sessionID, "A1", models.Tramo1, models.T1CriteriaCount, true)
	assert.Error(t, err)

	_, err = f.svc.UpdateCriterion(context.Background(), sessionID, "A1", models.Tramo2, models.T2CriteriaCount, true)
	assert.Error(t, err)

	// Nothing was created by rejected edits.
	assert.Empty(t, f.evals.evaluations)
}

func TestSetScoringModeResetsFirstTier(t *testing.T) {
	f := newLifecycleFixture(t)
	sessionID := f.startSelected(t)

	_, err := f.svc.UpdateCriterion(context.Background(), sessionID, "A1", models.Tramo1, 0, true)
	require.NoError(t, err)

	state, err := f.svc.SetScoringMode(context.Background(), sessionID, true)
	require.NoError(t, err)

	assert.True(t, state.UseT1SevenPoints)
	// Seven-point default: three of four first-tier boxes checked, score 6+3.
	checks := state.Checks["A1"]
	assert.Equal(t, []bool{true, true, true, false}, checks.T1)
	require.NotNil(t, state.Scores["A1"].T1)
	assert.Equal(t, 9, *state.Scores["A1"].T1)
	assert.Equal(t, 9, state.Scores["A1"].Final)

	require.NotEmpty(t, f.criteria.resets)
	require.NotEmpty(t, f.scores.bulk)
}

func TestSetAutoSaveNeverForks(t *testing.T) {
	f := newLifecycleFixture(t)

	saved := f.evals.insert("w1", "2023-2024", false, false)
	now := time.Now().UTC()
	e := f.evals.evaluations[saved.ID]
	e.UpdatedAt = &now
	f.evals.evaluations[saved.ID] = e
	f.evals.criteria[saved.ID] = []models.CriterionCheck{
		{ID: "c1", EvaluationID: saved.ID, ConductID: "A1", Tramo: models.Tramo1, CriterionIndex: 0, Checked: true},
	}

	state, err := f.svc.StartSession(context.Background())
	require.NoError(t, err)
	_, err = f.svc.LoadByID(context.Background(), state.SessionID, saved.ID)
	require.NoError(t, err)

	toggled, err := f.svc.SetAutoSave(context.Background(), state.SessionID, true)
	require.NoError(t, err)
	assert.True(t, toggled.AutoSave)
	assert.Equal(t, saved.ID, toggled.EvaluationID)
	assert.Len(t, f.evals.evaluations, 1)
}

func TestAutoSaveMarksSavedOnEachEdit(t *testing.T) {
	f := newLifecycleFixture(t)
	sessionID := f.startSelected(t)

	_, err := f.svc.CreateEvaluation(context.Background(), sessionID)
	require.NoError(t, err)
	_, err = f.svc.SetAutoSave(context.Background(), sessionID, true)
	require.NoError(t, err)

	state, err := f.svc.UpdateCriterion(context.Background(), sessionID, "A1", models.Tramo1, 0, true)
	require.NoError(t, err)
	assert.False(t, state.IsNew)
	assert.False(t, state.HasUnsavedChanges)
	assert.NotEmpty(t, f.evals.touched)
}

func TestSaveAndChangeDetection(t *testing.T) {
	f := newLifecycleFixture(t)
	sessionID := f.startSelected(t)

	_, err := f.svc.UpdateCriterion(context.Background(), sessionID, "A1", models.Tramo1, 0, true)
	require.NoError(t, err)

	changed, err := f.svc.DetectChanges(context.Background(), sessionID)
	require.NoError(t, err)
	assert.True(t, changed)

	saved, err := f.svc.Save(context.Background(), sessionID)
	require.NoError(t, err)
	assert.False(t, saved.IsNew)
	assert.False(t, saved.HasUnsavedChanges)

	changed, err = f.svc.DetectChanges(context.Background(), sessionID)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = f.svc.UpdateEvidence(context.Background(), sessionID, "A1", "atendió la incidencia")
	require.NoError(t, err)
	changed, err = f.svc.DetectChanges(context.Background(), sessionID)
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestAddAndRemoveFiles(t *testing.T) {
	f := newLifecycleFixture(t)
	sessionID := f.startSelected(t)

	state, err := f.svc.AddFiles(context.Background(), sessionID, "A1", []FileUpload{
		{OriginalName: "informe.pdf", MimeType: "application/pdf", SizeBytes: 100, Reader: bytes.NewBufferString("pdfdata")},
	})
	require.NoError(t, err)
	require.Len(t, state.Files["A1"], 1)
	record := state.Files["A1"][0]
	assert.Equal(t, "informe.pdf", record.OriginalName)
	assert.Len(t, f.blob.saved, 1)

	after, err := f.svc.RemoveFile(context.Background(), sessionID, record.ID)
	require.NoError(t, err)
	assert.Empty(t, after.Files["A1"])
	assert.Contains(t, f.files.deleted, record.ID)
	assert.NotEmpty(t, f.blob.removed)
}

func TestAddFilesValidation(t *testing.T) {
	f := newLifecycleFixture(t)
	sessionID := f.startSelected(t)

	_, err := f.svc.AddFiles(context.Background(), sessionID, "A1", []FileUpload{
		{OriginalName: "big.pdf", MimeType: "application/pdf", SizeBytes: 4096, Reader: bytes.NewBufferString("x")},
	})
	assert.Error(t, err)

	_, err = f.svc.AddFiles(context.Background(), sessionID, "A1", []FileUpload{
		{OriginalName: "script.exe", MimeType: "application/octet-stream", SizeBytes: 10, Reader: bytes.NewBufferString("x")},
	})
	assert.Error(t, err)
	assert.Empty(t, f.blob.saved)
}

func TestDeleteEvaluationDetachesSessionsAndPurges(t *testing.T) {
	f := newLifecycleFixture(t)
	sessionID := f.startSelected(t)

	created, err := f.svc.CreateEvaluation(context.Background(), sessionID)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteEvaluation(context.Background(), created.EvaluationID))
	assert.Contains(t, f.evals.deleted, created.EvaluationID)
	assert.Contains(t, f.purger.purged, created.EvaluationID)

	state, err := f.svc.GetState(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Empty(t, state.EvaluationID)

	err = f.svc.DeleteEvaluation(context.Background(), created.EvaluationID)
	assert.ErrorIs(t, err, appErrors.ErrEvaluationNotFound)
}

func TestHydrationFillsDefaultsAndRecomputes(t *testing.T) {
	f := newLifecycleFixture(t)

	saved := f.evals.insert("w1", "2023-2024", false, false)
	f.evals.criteria[saved.ID] = []models.CriterionCheck{
		{ID: "c1", EvaluationID: saved.ID, ConductID: "A1", Tramo: models.Tramo1, CriterionIndex: 0, Checked: true},
		{ID: "c2", EvaluationID: saved.ID, ConductID: "A1", Tramo: models.Tramo2, CriterionIndex: 0, Checked: true},
	}
	// No stored score rows at all: everything must come from the checks.

	state, err := f.svc.StartSession(context.Background())
	require.NoError(t, err)
	loaded, err := f.svc.LoadByID(context.Background(), state.SessionID, saved.ID)
	require.NoError(t, err)

	score := loaded.Scores["A1"]
	require.NotNil(t, score.T1)
	assert.Equal(t, 5, *score.T1)
	require.NotNil(t, score.T2)
	assert.Equal(t, 9, *score.T2)
	assert.Equal(t, 9, score.Final)

	// Conducts the rubric defines but storage never saw are present with
	// defaults: group GENERAL hides competencies C and D.
	assert.Contains(t, loaded.Checks, "B1")
	assert.NotContains(t, loaded.Checks, "C1")
	assert.Equal(t, 0, loaded.Scores["B1"].Final)
}

func TestHydrationDensifiesSparseChecks(t *testing.T) {
	f := newLifecycleFixture(t)

	// One stored row addressing a single criterion index. The in-memory
	// slices still come back at the rubric's fixed tier lengths.
	saved := f.evals.insert("w1", "2023-2024", false, false)
	f.evals.criteria[saved.ID] = []models.CriterionCheck{
		{ID: "c1", EvaluationID: saved.ID, ConductID: "A1", Tramo: models.Tramo1, CriterionIndex: 0, Checked: true},
	}

	state, err := f.svc.StartSession(context.Background())
	require.NoError(t, err)
	loaded, err := f.svc.LoadByID(context.Background(), state.SessionID, saved.ID)
	require.NoError(t, err)

	checks := loaded.Checks["A1"]
	require.Len(t, checks.T1, models.T1CriteriaCount)
	require.Len(t, checks.T2, models.T2CriteriaCount)
	assert.True(t, checks.T1[0])
	assert.False(t, checks.T1[models.T1CriteriaCount-1])

	for conductID, c := range loaded.Checks {
		assert.Len(t, c.T1, models.T1CriteriaCount, conductID)
		assert.Len(t, c.T2, models.T2CriteriaCount, conductID)
	}
}

func TestNewEvaluationInitializesAllConducts(t *testing.T) {
	f := newLifecycleFixture(t)
	sessionID := f.startSelected(t)

	created, err := f.svc.CreateEvaluation(context.Background(), sessionID)
	require.NoError(t, err)

	// Every conduct the GENERAL group sees exists immediately, all boxes
	// unchecked, score zero.
	require.Contains(t, created.Checks, "A1")
	require.Contains(t, created.Checks, "B2")
	assert.NotContains(t, created.Checks, "C1")
	assert.Len(t, created.Checks["A1"].T1, models.T1CriteriaCount)
	assert.Len(t, created.Checks["A1"].T2, models.T2CriteriaCount)
	require.Contains(t, created.Scores, "A1")
	assert.Equal(t, 0, created.Scores["A1"].Final)

	// The create-on-first-edit path initializes the same way.
	g := newLifecycleFixture(t)
	editSession := g.startSelected(t)
	state, err := g.svc.UpdateCriterion(context.Background(), editSession, "A1", models.Tramo1, 0, true)
	require.NoError(t, err)
	require.Contains(t, state.Checks, "B2")
	assert.Len(t, state.Checks["B2"].T1, models.T1CriteriaCount)
	assert.Equal(t, 0, state.Scores["B2"].Final)
}

func TestRemoveFileForksSavedEvaluation(t *testing.T) {
	f := newLifecycleFixture(t)

	saved := f.evals.insert("w1", "2023-2024", false, false)
	now := time.Now().UTC()
	e := f.evals.evaluations[saved.ID]
	e.UpdatedAt = &now
	f.evals.evaluations[saved.ID] = e
	record := models.EvidenceFile{
		ID: "f1", EvaluationID: saved.ID, CompetencyID: "A", ConductID: "A1",
		OriginalName: "informe.pdf", StoredName: "f1.pdf", MimeType: "application/pdf", SizeBytes: 100,
	}
	f.evals.files[saved.ID] = []models.EvidenceFile{record}
	f.files.files = map[string]models.EvidenceFile{record.ID: record}

	state, err := f.svc.StartSession(context.Background())
	require.NoError(t, err)
	loaded, err := f.svc.LoadByID(context.Background(), state.SessionID, saved.ID)
	require.NoError(t, err)
	assert.False(t, loaded.IsNew)

	after, err := f.svc.RemoveFile(context.Background(), state.SessionID, record.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, after.Version)
	assert.NotEqual(t, saved.ID, after.EvaluationID)
	assert.Equal(t, "v1 → v2", after.VersionFlow)
	assert.Empty(t, after.Files["A1"])
	assert.Contains(t, f.files.deleted, record.ID)
}

func TestSessionExpiry(t *testing.T) {
	registry := NewSessionRegistry(10 * time.Millisecond)
	sess := registry.Create()
	sess.lastAccess = time.Now().Add(-time.Minute)

	_, err := registry.Get(sess.ID())
	assert.ErrorIs(t, err, appErrors.ErrSessionNotFound)
}
