package dto

// SelectWorkerRequest points a session at a worker and biennial period.
type SelectWorkerRequest struct {
	WorkerID string `json:"worker_id" binding:"required"`
	Period   string `json:"period" binding:"required"`
}

// CriterionUpdateRequest toggles one checkbox.
type CriterionUpdateRequest struct {
	ConductID      string `json:"conduct_id" binding:"required"`
	Tramo          int    `json:"tramo" binding:"required"`
	CriterionIndex *int   `json:"criterion_index" binding:"required"`
	Checked        *bool  `json:"checked" binding:"required"`
}

// EvidenceUpdateRequest sets the free-text evidence for a conduct.
type EvidenceUpdateRequest struct {
	ConductID string `json:"conduct_id" binding:"required"`
	Text      string `json:"text"`
}

// ScoringModeRequest switches the first-tier scale.
type ScoringModeRequest struct {
	UseT1SevenPoints *bool `json:"use_t1_seven_points" binding:"required"`
}

// AutoSaveRequest toggles autosave.
type AutoSaveRequest struct {
	AutoSave *bool `json:"auto_save" binding:"required"`
}

// ChangeDetectionResponse reports unsaved-changes status.
type ChangeDetectionResponse struct {
	HasUnsavedChanges bool `json:"has_unsaved_changes"`
}
