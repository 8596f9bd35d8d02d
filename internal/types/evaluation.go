package types

import (
	"fmt"
	"time"
)

// Verdict is the Scorer's decision for one evaluation
type Verdict string

const (
	VerdictApproved        Verdict = "APPROVED"
	VerdictNeedsRefinement Verdict = "NEEDS_REFINEMENT"
)

// IsValid checks if the verdict value is valid
func (v Verdict) IsValid() bool {
	return v == VerdictApproved || v == VerdictNeedsRefinement
}

// Suggestion is one actionable improvement tied to a rubric dimension.
// Lower Priority values come first; structural mismatches use priority 0.
type Suggestion struct {
	Dimension string `json:"dimension" validate:"required"`
	Text      string `json:"text" validate:"required,max=500"`
	Priority  int    `json:"priority" validate:"min=0,max=10"`
}

// StructuralFinding is one counted structural element, as reported by the
// evaluator, compared against what the request demands.
type StructuralFinding struct {
	Requirement string `json:"requirement" validate:"required"`
	Expected    int    `json:"expected" validate:"min=0"`
	Found       int    `json:"found" validate:"min=0"`
}

// EvaluationResult is one scoring event. Instances are owned by the
// evaluation history and never mutated after creation.
type EvaluationResult struct {
	Round              int                 `json:"round"`
	Verdict            Verdict             `json:"verdict"`
	OverallScore       float64             `json:"overall_score"`
	DimensionScores    map[string]float64  `json:"dimension_scores"`
	Reasoning          string              `json:"reasoning"`
	Suggestions        []Suggestion        `json:"suggestions"`
	StructuralFindings []StructuralFinding `json:"structural_findings,omitempty"`
	Compliant          bool                `json:"compliant"`
	EvaluatedAt        time.Time           `json:"evaluated_at"`
}

const (
	minReasoningLen = 10
	maxReasoningLen = 1000
	maxSuggestions  = 10
)

// Validate checks the shape constraints of a result. Weighted-sum
// consistency depends on the rubric and is checked by the rubric package.
func (r *EvaluationResult) Validate() error {
	if !r.Verdict.IsValid() {
		return fmt.Errorf("invalid verdict: %s", r.Verdict)
	}
	if r.OverallScore < 0 || r.OverallScore > 1 {
		return fmt.Errorf("overall_score must be between 0 and 1 (got %f)", r.OverallScore)
	}
	for name, score := range r.DimensionScores {
		if score < 0 || score > 1 {
			return fmt.Errorf("dimension %s score must be between 0 and 1 (got %f)", name, score)
		}
	}
	if n := len([]rune(r.Reasoning)); n < minReasoningLen || n > maxReasoningLen {
		return fmt.Errorf("reasoning must be %d-%d characters (got %d)", minReasoningLen, maxReasoningLen, n)
	}
	if len(r.Suggestions) > maxSuggestions {
		return fmt.Errorf("at most %d suggestions allowed (got %d)", maxSuggestions, len(r.Suggestions))
	}
	for i, s := range r.Suggestions {
		if _, ok := r.DimensionScores[s.Dimension]; !ok {
			return fmt.Errorf("suggestion %d references unknown dimension %q", i+1, s.Dimension)
		}
	}
	return nil
}

// Approved reports whether the result carries an approval verdict
func (r *EvaluationResult) Approved() bool {
	return r.Verdict == VerdictApproved
}
