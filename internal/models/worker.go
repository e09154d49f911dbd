package models

import "time"

// WorkerGroup partitions workers into the two rubric visibility groups.
// Each group has two competencies hidden from it (the complementary pair of
// the other group's hidden set).
type WorkerGroup string

const (
	// GroupGeneral covers administrative and support staff.
	GroupGeneral WorkerGroup = "GENERAL"
	// GroupTechnical covers laboratory and technical staff.
	GroupTechnical WorkerGroup = "TECNICO"
)

// Valid reports whether the group is one of the two fixed values.
func (g WorkerGroup) Valid() bool {
	return g == GroupGeneral || g == GroupTechnical
}

// Worker is an evaluated employee.
type Worker struct {
	ID        string      `db:"id" json:"id"`
	FullName  string      `db:"full_name" json:"full_name"`
	Group     WorkerGroup `db:"worker_group" json:"group"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}
