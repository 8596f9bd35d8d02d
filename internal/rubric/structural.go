package rubric

import (
	"fmt"
	"sort"
	"time"

	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

const maxSuggestions = 10

// Requirement is a mandatory count constraint derived from the request,
// e.g. "true_false section has 5 questions".
type Requirement struct {
	Name        string
	Description string
	Expected    int
}

// Violation is a requirement the artifact does not meet
type Violation struct {
	Requirement Requirement
	Found       int
	// Unreported is set when the evaluator did not report the requirement
	Unreported bool
}

// Message describes the mismatch with both counts
func (v Violation) Message() string {
	if v.Unreported {
		return fmt.Sprintf("%s: could not confirm the required count of %d; make it explicit",
			v.Requirement.Description, v.Requirement.Expected)
	}
	return fmt.Sprintf("%s: found %d, but %d are required", v.Requirement.Description, v.Found, v.Requirement.Expected)
}

// CheckFindings compares evaluator-reported counts against the requirements.
// A requirement without a finding is a violation: compliance has to be shown.
func CheckFindings(reqs []Requirement, findings []types.StructuralFinding) []Violation {
	byName := make(map[string]types.StructuralFinding, len(findings))
	for _, f := range findings {
		byName[f.Requirement] = f
	}
	var violations []Violation
	for _, req := range reqs {
		f, ok := byName[req.Name]
		switch {
		case !ok:
			violations = append(violations, Violation{Requirement: req, Unreported: true})
		case f.Found != req.Expected:
			violations = append(violations, Violation{Requirement: req, Found: f.Found})
		}
	}
	return violations
}

// ApplyStructuralOverride builds the final result for a scored artifact.
// With violations present the structural dimension is capped at
// StructuralCap, the overall score is recomputed from the capped scores,
// the verdict is forced to NEEDS_REFINEMENT and each mismatch becomes a
// priority-0 suggestion ahead of every other suggestion.
func ApplyStructuralOverride(r *Rubric, result types.EvaluationResult, violations []Violation, threshold float64) (types.EvaluationResult, error) {
	scores := make(map[string]float64, len(result.DimensionScores))
	for k, v := range result.DimensionScores {
		scores[k] = v
	}
	suggestions := append([]types.Suggestion(nil), result.Suggestions...)
	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Priority < suggestions[j].Priority
	})

	compliant := len(violations) == 0
	if !compliant {
		dim, ok := r.StructuralDimension()
		if !ok {
			return result, fmt.Errorf("rubric %s has structural requirements but no structural dimension", r.Kind)
		}
		if scores[dim.Name] > StructuralCap {
			scores[dim.Name] = StructuralCap
		}
		mismatch := make([]types.Suggestion, 0, len(violations))
		for _, v := range violations {
			mismatch = append(mismatch, types.Suggestion{
				Dimension: dim.Name,
				Text:      v.Message(),
				Priority:  0,
			})
		}
		suggestions = append(mismatch, suggestions...)
	}
	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}

	overall, err := r.WeightedScore(scores)
	if err != nil {
		return result, err
	}

	out := result
	out.DimensionScores = scores
	out.OverallScore = overall
	out.Suggestions = suggestions
	out.Compliant = compliant
	out.Verdict = types.VerdictNeedsRefinement
	if compliant && overall >= threshold {
		out.Verdict = types.VerdictApproved
	}
	if out.EvaluatedAt.IsZero() {
		out.EvaluatedAt = time.Now()
	}
	return out, nil
}
