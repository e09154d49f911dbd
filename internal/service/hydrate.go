package service

import (
	"go.uber.org/zap"

	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/internal/models"
)

// Transforms between the store's flat row shape and the nested in-memory
// maps keyed by conduct id. These are the only bridge between the two
// shapes; they are pure and total over nil or partial input.

// CriteriaFromRows groups flat criterion rows into per-conduct check slices.
// Slices grow to the highest criterion index seen; indices never observed
// stay false. DensifyChecks pads the result to the rubric tier lengths.
func CriteriaFromRows(rows []models.CriterionCheck) map[string]models.CriteriaChecks {
	out := make(map[string]models.CriteriaChecks, len(rows))
	for _, row := range rows {
		if row.CriterionIndex < 0 {
			continue
		}
		checks := out[row.ConductID]
		switch row.Tramo {
		case models.Tramo1:
			checks.T1 = setAt(checks.T1, row.CriterionIndex, row.Checked)
		case models.Tramo2:
			checks.T2 = setAt(checks.T2, row.CriterionIndex, row.Checked)
		default:
			continue
		}
		out[row.ConductID] = checks
	}
	return out
}

// DensifyChecks pads both tiers to the rubric's fixed per-tier lengths,
// defaulting missing entries to false. Oversized input is preserved.
func DensifyChecks(checks models.CriteriaChecks) models.CriteriaChecks {
	for len(checks.T1) < models.T1CriteriaCount {
		checks.T1 = append(checks.T1, false)
	}
	for len(checks.T2) < models.T2CriteriaCount {
		checks.T2 = append(checks.T2, false)
	}
	return checks
}

// EvidenceFromRows maps evidence rows into the conduct-keyed text map.
func EvidenceFromRows(rows []models.EvidenceNote) map[string]string {
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.ConductID] = row.Text
	}
	return out
}

// FilesFromRows groups file rows by conduct id, preserving row order.
// Records lacking an id are corrupt and silently dropped (logged): they
// would otherwise block unrelated delete or display operations.
func FilesFromRows(rows []models.EvidenceFile, logger *zap.Logger) map[string][]models.EvidenceFile {
	out := make(map[string][]models.EvidenceFile, len(rows))
	for _, row := range rows {
		if row.ID == "" {
			if logger != nil {
				logger.Warn("dropping evidence file without id",
					zap.String("evaluation_id", row.EvaluationID),
					zap.String("conduct_id", row.ConductID),
					zap.String("original_name", row.OriginalName))
			}
			continue
		}
		out[row.ConductID] = append(out[row.ConductID], row)
	}
	return out
}

// ScoresFromRows maps score rows into the conduct-keyed score map.
func ScoresFromRows(rows []models.ConductScore) map[string]models.Score {
	out := make(map[string]models.Score, len(rows))
	for _, row := range rows {
		out[row.ConductID] = row.Triple()
	}
	return out
}

// FlattenChecks converts the nested check map back into flat rows carrying
// only the checked criteria, addressed at the given evaluation id. Used to
// replay in-memory state against a freshly forked evaluation.
func FlattenChecks(evaluationID string, checks map[string]models.CriteriaChecks) []models.CriterionCheck {
	var rows []models.CriterionCheck
	for conductID, conduct := range checks {
		for i, checked := range conduct.T1 {
			if checked {
				rows = append(rows, models.CriterionCheck{
					EvaluationID:   evaluationID,
					ConductID:      conductID,
					Tramo:          models.Tramo1,
					CriterionIndex: i,
					Checked:        true,
				})
			}
		}
		for i, checked := range conduct.T2 {
			if checked {
				rows = append(rows, models.CriterionCheck{
					EvaluationID:   evaluationID,
					ConductID:      conductID,
					Tramo:          models.Tramo2,
					CriterionIndex: i,
					Checked:        true,
				})
			}
		}
	}
	return rows
}

func setAt(slice []bool, index int, value bool) []bool {
	for len(slice) <= index {
		slice = append(slice, false)
	}
	slice[index] = value
	return slice
}
