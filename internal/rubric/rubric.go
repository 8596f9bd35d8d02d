// Package rubric defines the weighted scoring dimensions for each artifact
// kind and the deterministic structural compliance override applied after
// every evaluation.
package rubric

import (
	"fmt"
	"math"
	"strings"

	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

const (
	// DimensionCount is the number of dimensions every rubric must declare
	DimensionCount = 5

	weightTolerance = 1e-6

	// OverallTolerance bounds how far a reported overall score may drift
	// from the weighted sum of its dimension scores
	OverallTolerance = 0.01

	// StructuralCap is the maximum structural dimension score when a
	// mandatory structural constraint is violated
	StructuralCap = 0.4
)

// Dimension is one independently scored quality axis
type Dimension struct {
	Name        string
	Weight      float64
	Description string
	// Structural marks the dimension capped by structural violations
	Structural bool
}

// Rubric is the ordered set of dimensions for one artifact kind
type Rubric struct {
	Kind       types.ArtifactKind
	Dimensions []Dimension
}

// Validate checks the rubric is well formed
func (r *Rubric) Validate() error {
	if len(r.Dimensions) != DimensionCount {
		return fmt.Errorf("rubric %s must have exactly %d dimensions (got %d)", r.Kind, DimensionCount, len(r.Dimensions))
	}
	seen := make(map[string]bool, len(r.Dimensions))
	structural := 0
	total := 0.0
	for _, d := range r.Dimensions {
		if d.Name == "" {
			return fmt.Errorf("rubric %s has a dimension without a name", r.Kind)
		}
		if seen[d.Name] {
			return fmt.Errorf("rubric %s has duplicate dimension %q", r.Kind, d.Name)
		}
		seen[d.Name] = true
		if d.Weight <= 0 || d.Weight >= 1 {
			return fmt.Errorf("dimension %s weight must be in (0, 1) (got %f)", d.Name, d.Weight)
		}
		if d.Structural {
			structural++
		}
		total += d.Weight
	}
	if structural > 1 {
		return fmt.Errorf("rubric %s has %d structural dimensions, at most 1 allowed", r.Kind, structural)
	}
	if math.Abs(total-1) > weightTolerance {
		return fmt.Errorf("rubric %s weights sum to %f, want 1", r.Kind, total)
	}
	return nil
}

// Names returns dimension names in rubric order
func (r *Rubric) Names() []string {
	names := make([]string, len(r.Dimensions))
	for i, d := range r.Dimensions {
		names[i] = d.Name
	}
	return names
}

// Dimension looks up a dimension by name
func (r *Rubric) Dimension(name string) (Dimension, bool) {
	for _, d := range r.Dimensions {
		if d.Name == name {
			return d, true
		}
	}
	return Dimension{}, false
}

// StructuralDimension returns the structural dimension, if the rubric has one
func (r *Rubric) StructuralDimension() (Dimension, bool) {
	for _, d := range r.Dimensions {
		if d.Structural {
			return d, true
		}
	}
	return Dimension{}, false
}

// WeightedScore computes the overall score. scores must contain exactly
// the rubric's dimensions.
func (r *Rubric) WeightedScore(scores map[string]float64) (float64, error) {
	if len(scores) != len(r.Dimensions) {
		return 0, fmt.Errorf("expected %d dimension scores, got %d", len(r.Dimensions), len(scores))
	}
	total := 0.0
	for _, d := range r.Dimensions {
		s, ok := scores[d.Name]
		if !ok {
			return 0, fmt.Errorf("missing score for dimension %q", d.Name)
		}
		if s < 0 || s > 1 {
			return 0, fmt.Errorf("dimension %s score must be between 0 and 1 (got %f)", d.Name, s)
		}
		total += d.Weight * s
	}
	return roundScore(total), nil
}

// ConsistentOverall reports whether overall matches the weighted sum of scores
func (r *Rubric) ConsistentOverall(overall float64, scores map[string]float64) bool {
	want, err := r.WeightedScore(scores)
	if err != nil {
		return false
	}
	return math.Abs(want-overall) <= OverallTolerance
}

// MaxNonCompliantScore is the best overall score an artifact can reach
// while its structural dimension is capped.
func (r *Rubric) MaxNonCompliantScore() float64 {
	d, ok := r.StructuralDimension()
	if !ok {
		return 1
	}
	return roundScore(1 - d.Weight*(1-StructuralCap))
}

// Describe renders the rubric for prompts
func (r *Rubric) Describe() string {
	var b strings.Builder
	for _, d := range r.Dimensions {
		fmt.Fprintf(&b, "- %s (weight %.2f): %s\n", d.Name, d.Weight, d.Description)
	}
	return b.String()
}

// roundScore trims float noise so equal sums compare equal
func roundScore(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
