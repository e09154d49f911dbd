// Package scoring derives conduct scores from checklist state. All functions
// are pure and total over boolean slices of any length.
package scoring

import (
	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/internal/models"
)

// Calculate maps a conduct's criteria-check state to its score triple.
//
// Tier 1 is linear: 4+c1 in normal mode (5-8), 6+c1 in seven-point mode
// (7-10), nil when no criterion is checked. Tier 2 is a step function:
// nil, 9 for one or two checks, 10 for three or more. The final score is
// t2 when attained, otherwise t1, otherwise 0.
func Calculate(checks models.CriteriaChecks, useSevenPointMode bool) models.Score {
	c1 := countChecked(checks.T1)
	c2 := countChecked(checks.T2)

	var score models.Score

	if c1 > 0 {
		base := 4
		if useSevenPointMode {
			base = 6
		}
		t1 := base + c1
		score.T1 = &t1
	}

	if c2 > 0 {
		t2 := 9
		if c2 >= 3 {
			t2 = 10
		}
		score.T2 = &t2
	}

	switch {
	case score.T2 != nil:
		score.Final = *score.T2
	case score.T1 != nil:
		score.Final = *score.T1
	default:
		score.Final = 0
	}

	return score
}

// DefaultT1 returns the tier-1 reset pattern applied when the scoring mode
// changes: seven-point mode checks the first three criteria only, normal
// mode checks all four.
func DefaultT1(useSevenPointMode bool) []bool {
	t1 := make([]bool, models.T1CriteriaCount)
	limit := models.T1CriteriaCount
	if useSevenPointMode {
		limit = 3
	}
	for i := 0; i < limit; i++ {
		t1[i] = true
	}
	return t1
}

// EmptyChecks returns an all-false check state sized to the rubric tiers.
func EmptyChecks() models.CriteriaChecks {
	return models.CriteriaChecks{
		T1: make([]bool, models.T1CriteriaCount),
		T2: make([]bool, models.T2CriteriaCount),
	}
}

func countChecked(criteria []bool) int {
	count := 0
	for _, checked := range criteria {
		if checked {
			count++
		}
	}
	return count
}
