package models

import "time"

// Score is the derived triple for one conduct. T1/T2 are nil when their tier
// has no checked criteria; Final is always concrete (0 when neither tier is
// attained).
type Score struct {
	T1    *int `json:"t1"`
	T2    *int `json:"t2"`
	Final int  `json:"final"`
}

// Equal compares two score triples.
func (s Score) Equal(other Score) bool {
	return intPtrEqual(s.T1, other.T1) && intPtrEqual(s.T2, other.T2) && s.Final == other.Final
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ConductScore is the persisted score row for one conduct.
type ConductScore struct {
	ID           string    `db:"id" json:"id"`
	EvaluationID string    `db:"evaluation_id" json:"evaluation_id"`
	ConductID    string    `db:"conduct_id" json:"conduct_id"`
	T1Score      *int      `db:"t1_score" json:"t1_score"`
	T2Score      *int      `db:"t2_score" json:"t2_score"`
	FinalScore   int       `db:"final_score" json:"final_score"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Triple converts the row into the in-memory score shape.
func (c ConductScore) Triple() Score {
	return Score{T1: c.T1Score, T2: c.T2Score, Final: c.FinalScore}
}
