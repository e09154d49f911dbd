package models

import "time"

// Evaluation is the unit of persistence: one versioned scoring record for a
// worker and biennial period. Once it has saved content it is never updated
// in place; edits fork a new row with version = max+1.
type Evaluation struct {
	ID               string `db:"id" json:"id"`
	WorkerID         string `db:"worker_id" json:"worker_id"`
	Period           string `db:"period" json:"period"`
	Version          int    `db:"version" json:"version"`
	UseT1SevenPoints bool   `db:"use_t1_seven_points" json:"use_t1_seven_points"`
	AutoSave         bool   `db:"auto_save" json:"auto_save"`
	// IsNew is the store's own advisory flag. The authoritative "new"
	// derivation is updated_at IS NULL plus the absence of child rows.
	IsNew     bool       `db:"is_new" json:"is_new"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at"`
}

// EvaluationSettings carries the per-evaluation toggles.
type EvaluationSettings struct {
	UseT1SevenPoints *bool `json:"use_t1_seven_points,omitempty"`
	AutoSave         *bool `json:"auto_save,omitempty"`
}

// EvaluationBundle is the full row set the store returns for one evaluation.
type EvaluationBundle struct {
	Evaluation Evaluation       `json:"evaluation"`
	Criteria   []CriterionCheck `json:"criteria"`
	Evidence   []EvidenceNote   `json:"evidence"`
	Files      []EvidenceFile   `json:"files"`
	Scores     []ConductScore   `json:"scores"`
}

// HasChildRows reports whether the bundle carries any saved content.
func (b *EvaluationBundle) HasChildRows() bool {
	return len(b.Criteria) > 0 || len(b.Evidence) > 0 || len(b.Files) > 0 || len(b.Scores) > 0
}
