package models

import "time"

// EvidenceNote is the free-text evidence attached to one conduct.
type EvidenceNote struct {
	ID           string    `db:"id" json:"id"`
	EvaluationID string    `db:"evaluation_id" json:"evaluation_id"`
	ConductID    string    `db:"conduct_id" json:"conduct_id"`
	Text         string    `db:"evidence_text" json:"evidence_text"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
