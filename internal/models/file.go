package models

import "time"

// EvidenceFile is the metadata record for an uploaded attachment. The binary
// payload lives in file storage; the core only tracks this row. Records
// without an id are treated as corrupt and dropped on load.
type EvidenceFile struct {
	ID           string    `db:"id" json:"id"`
	EvaluationID string    `db:"evaluation_id" json:"evaluation_id"`
	CompetencyID string    `db:"competency_id" json:"competency_id"`
	ConductID    string    `db:"conduct_id" json:"conduct_id"`
	OriginalName string    `db:"original_name" json:"original_name"`
	StoredName   string    `db:"stored_name" json:"stored_name"`
	MimeType     string    `db:"mime_type" json:"mime_type"`
	SizeBytes    int64     `db:"size_bytes" json:"size_bytes"`
	UploadedAt   time.Time `db:"uploaded_at" json:"uploaded_at"`
}
