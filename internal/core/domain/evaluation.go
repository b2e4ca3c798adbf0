package domain

import "strings"

// CriterionResult is a single scorecard criterion as answered by the
// external evaluator.
type CriterionResult struct {
	Name      string `json:"name"`
	Answer    string `json:"answer"`
	Weight    int    `json:"weight"`
	Rationale string `json:"rationale,omitempty"`
}

// Evaluation is the result document returned by the external evaluator and
// written onto the ticket's eval field.
type Evaluation struct {
	Results           []CriterionResult `json:"results"`
	ZeroToleranceFlag bool              `json:"zero_tolerance_flag"`
	TotalScore        int               `json:"total_score"`
	Summary           string            `json:"summary,omitempty"`
}

// ComputeTotalScore sums the weights of affirmatively answered criteria.
// A zero-tolerance violation forces the total to zero regardless of the
// individual answers.
func (e *Evaluation) ComputeTotalScore() int {
	if e.ZeroToleranceFlag {
		return 0
	}
	total := 0
	for _, r := range e.Results {
		if strings.EqualFold(r.Answer, "YES") {
			total += r.Weight
		}
	}
	return total
}
