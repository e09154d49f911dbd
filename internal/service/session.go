package service

import (
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/internal/models"
	appErrors "github.com/kketzal/EVALUACION-DESEMPENO-sub000/pkg/errors"
)

// SessionState is the serializable view of an editing session, returned to
// API consumers and mirrored to the cache port.
type SessionState struct {
	SessionID         string                           `json:"session_id"`
	EvaluationID      string                           `json:"evaluation_id,omitempty"`
	WorkerID          string                           `json:"worker_id,omitempty"`
	Period            string                           `json:"period,omitempty"`
	Version           int                              `json:"version,omitempty"`
	IsNew             bool                             `json:"is_new"`
	UseT1SevenPoints  bool                             `json:"use_t1_seven_points"`
	AutoSave          bool                             `json:"auto_save"`
	HasUnsavedChanges bool                             `json:"has_unsaved_changes"`
	VersionFlow       string                           `json:"version_flow,omitempty"`
	Checks            map[string]models.CriteriaChecks `json:"checks"`
	Evidence          map[string]string                `json:"evidence"`
	Scores            map[string]models.Score          `json:"scores"`
	Files             map[string][]models.EvidenceFile `json:"files"`
}

// stateSnapshot is the saved-state baseline used for change detection. File
// identity matters for "content changed", not the metadata details, so only
// ids are kept per conduct.
type stateSnapshot struct {
	checks   map[string]models.CriteriaChecks
	evidence map[string]string
	scores   map[string]models.Score
	fileIDs  map[string][]string
}

// Session owns the in-memory representation of "the evaluation being
// edited". All mutating operations go through the owning service, which
// serializes them with the session mutex.
type Session struct {
	mu sync.Mutex

	id     string
	worker string
	period string

	evaluationID string
	version      int
	isNew        bool

	useT1SevenPoints  bool
	autoSave          bool
	hasUnsavedChanges bool

	checks   map[string]models.CriteriaChecks
	evidence map[string]string
	scores   map[string]models.Score
	files    map[string][]models.EvidenceFile

	snapshot *stateSnapshot

	// Version-fork bookkeeping, reset whenever a different evaluation is
	// loaded. versionForked guards against re-forking within one session.
	versionForked     bool
	originalVersionID string
	versionFlow       string

	// loadGen discards hydration results that resolve after a newer load
	// has started.
	loadGen uint64

	lastAccess time.Time
}

func newSession() *Session {
	return &Session{
		id:         uuid.NewString(),
		checks:     make(map[string]models.CriteriaChecks),
		evidence:   make(map[string]string),
		scores:     make(map[string]models.Score),
		files:      make(map[string][]models.EvidenceFile),
		lastAccess: time.Now().UTC(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// state builds the serializable view. Caller must hold s.mu.
func (s *Session) state() *SessionState {
	state := &SessionState{
		SessionID:         s.id,
		EvaluationID:      s.evaluationID,
		WorkerID:          s.worker,
		Period:            s.period,
		Version:           s.version,
		IsNew:             s.isNew,
		UseT1SevenPoints:  s.useT1SevenPoints,
		AutoSave:          s.autoSave,
		HasUnsavedChanges: s.hasUnsavedChanges,
		VersionFlow:       s.versionFlow,
		Checks:            make(map[string]models.CriteriaChecks, len(s.checks)),
		Evidence:          make(map[string]string, len(s.evidence)),
		Scores:            make(map[string]models.Score, len(s.scores)),
		Files:             make(map[string][]models.EvidenceFile, len(s.files)),
	}
	for id, checks := range s.checks {
		state.Checks[id] = checks.Clone()
	}
	for id, text := range s.evidence {
		state.Evidence[id] = text
	}
	for id, score := range s.scores {
		state.Scores[id] = score
	}
	for id, files := range s.files {
		state.Files[id] = append([]models.EvidenceFile(nil), files...)
	}
	return state
}

// captureSnapshot records the current state as the saved baseline. Caller
// must hold s.mu.
func (s *Session) captureSnapshot() {
	snap := &stateSnapshot{
		checks:   make(map[string]models.CriteriaChecks, len(s.checks)),
		evidence: make(map[string]string, len(s.evidence)),
		scores:   make(map[string]models.Score, len(s.scores)),
		fileIDs:  make(map[string][]string, len(s.files)),
	}
	for id, checks := range s.checks {
		snap.checks[id] = checks.Clone()
	}
	for id, text := range s.evidence {
		snap.evidence[id] = text
	}
	for id, score := range s.scores {
		snap.scores[id] = score
	}
	for id, files := range s.files {
		ids := make([]string, 0, len(files))
		for _, f := range files {
			ids = append(ids, f.ID)
		}
		snap.fileIDs[id] = ids
	}
	s.snapshot = snap
}

// differsFromSnapshot performs the deep-structural comparison against the
// saved baseline. A session without a snapshot counts as changed as soon as
// it holds any state. Caller must hold s.mu.
func (s *Session) differsFromSnapshot() bool {
	current := &stateSnapshot{
		checks:   s.checks,
		evidence: s.evidence,
		scores:   s.scores,
		fileIDs:  make(map[string][]string, len(s.files)),
	}
	for id, files := range s.files {
		ids := make([]string, 0, len(files))
		for _, f := range files {
			ids = append(ids, f.ID)
		}
		current.fileIDs[id] = ids
	}
	if s.snapshot == nil {
		return len(s.checks) > 0 || len(s.evidence) > 0 || len(s.scores) > 0 || len(s.files) > 0
	}
	return !reflect.DeepEqual(normalizeSnapshot(current), normalizeSnapshot(s.snapshot))
}

// normalizeSnapshot drops empty entries so that default-initialized conducts
// compare equal to absent ones.
func normalizeSnapshot(snap *stateSnapshot) *stateSnapshot {
	out := &stateSnapshot{
		checks:   make(map[string]models.CriteriaChecks),
		evidence: make(map[string]string),
		scores:   make(map[string]models.Score),
		fileIDs:  make(map[string][]string),
	}
	for id, checks := range snap.checks {
		if anyChecked(checks.T1) || anyChecked(checks.T2) {
			out.checks[id] = DensifyChecks(checks.Clone())
		}
	}
	for id, text := range snap.evidence {
		if text != "" {
			out.evidence[id] = text
		}
	}
	for id, score := range snap.scores {
		if score.T1 != nil || score.T2 != nil || score.Final != 0 {
			out.scores[id] = score
		}
	}
	for id, ids := range snap.fileIDs {
		if len(ids) > 0 {
			out.fileIDs[id] = ids
		}
	}
	return out
}

func anyChecked(criteria []bool) bool {
	for _, c := range criteria {
		if c {
			return true
		}
	}
	return false
}

// SessionRegistry owns the live editing sessions. Expired sessions are
// pruned lazily on create.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
}

// NewSessionRegistry builds a registry with the given idle TTL.
func NewSessionRegistry(ttl time.Duration) *SessionRegistry {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &SessionRegistry{sessions: make(map[string]*Session), ttl: ttl}
}

// Create opens a new session.
func (r *SessionRegistry) Create() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked()
	sess := newSession()
	r.sessions[sess.id] = sess
	return sess
}

// Get returns the session or ErrSessionNotFound.
func (r *SessionRegistry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, appErrors.ErrSessionNotFound
	}
	if time.Since(sess.lastAccess) > r.ttl {
		delete(r.sessions, id)
		return nil, appErrors.ErrSessionNotFound
	}
	sess.lastAccess = time.Now().UTC()
	return sess, nil
}

// Delete drops a session.
func (r *SessionRegistry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// DetachEvaluation clears session state referencing a deleted evaluation.
func (r *SessionRegistry) DetachEvaluation(evaluationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sess := range r.sessions {
		sess.mu.Lock()
		if sess.evaluationID == evaluationID {
			sess.evaluationID = ""
			sess.version = 0
			sess.isNew = false
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
		sess.mu.Unlock()
	}
}

func (r *SessionRegistry) pruneLocked() {
	cutoff := time.Now().UTC().Add(-r.ttl)
	for id, sess := range r.sessions {
		if sess.lastAccess.Before(cutoff) {
			delete(r.sessions, id)
		}
	}
}
