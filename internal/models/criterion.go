package models

import "time"

// Criteria tiers. Tramo 1 covers baseline competence, tramo 2 excellence.
const (
	Tramo1 = 1
	Tramo2 = 2
)

// Fixed per-tier checklist lengths.
const (
	T1CriteriaCount = 4
	T2CriteriaCount = 5
)

// CriterionCheck is one persisted checkbox: row-per-criterion layout.
type CriterionCheck struct {
	ID             string    `db:"id" json:"id"`
	EvaluationID   string    `db:"evaluation_id" json:"evaluation_id"`
	ConductID      string    `db:"conduct_id" json:"conduct_id"`
	Tramo          int       `db:"tramo" json:"tramo"`
	CriterionIndex int       `db:"criterion_index" json:"criterion_index"`
	Checked        bool      `db:"is_checked" json:"is_checked"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// CriteriaChecks is the nested in-memory shape for one conduct.
type CriteriaChecks struct {
	T1 []bool `json:"t1"`
	T2 []bool `json:"t2"`
}

// Clone returns a deep copy.
func (c CriteriaChecks) Clone() CriteriaChecks {
	out := CriteriaChecks{T1: make([]bool, len(c.T1)), T2: make([]bool, len(c.T2))}
	copy(out.T1, c.T1)
	copy(out.T2, c.T2)
	return out
}
