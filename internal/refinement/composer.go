// Package refinement composes follow-up instructions from evaluation feedback.
package refinement

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gabormeresz/profAssistant-sub000/internal/ai"
	"github.com/gabormeresz/profAssistant-sub000/internal/rubric"
	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

const defaultDraftTokens = 6000

// RankedDimension is one dimension of the latest evaluation
type RankedDimension struct {
	Name  string
	Score float64
}

// RankDimensions splits the latest scores into dimensions below threshold,
// weakest first, and dimensions at or above it. Ties keep rubric order.
func RankDimensions(r *rubric.Rubric, scores map[string]float64, threshold float64) (weak, strong []RankedDimension) {
	for _, name := range r.Names() {
		score, ok := scores[name]
		if !ok {
			continue
		}
		d := RankedDimension{Name: name, Score: score}
		if score < threshold {
			weak = append(weak, d)
		} else {
			strong = append(strong, d)
		}
	}
	sort.SliceStable(weak, func(i, j int) bool { return weak[i].Score < weak[j].Score })
	return weak, strong
}

// Composer builds refinement instructions. It has no side effects.
type Composer struct {
	// Threshold separates dimensions to improve from dimensions to preserve
	Threshold float64
	// DraftTokens bounds how much of the prior draft is quoted back
	DraftTokens int
}

// NewComposer creates a Composer for the given approval threshold
func NewComposer(threshold float64) *Composer {
	return &Composer{Threshold: threshold, DraftTokens: defaultDraftTokens}
}

// Compose returns the follow-up instruction for the next generation round
func (c *Composer) Compose(r *rubric.Rubric, prior string, history []types.EvaluationResult) string {
	var b strings.Builder

	if len(history) == 0 {
		b.WriteString("Revise the draft below. Improve accuracy, structure and clarity while keeping everything the request asked for.\n\n")
		c.writeDraft(&b, prior)
		return b.String()
	}

	latest := history[len(history)-1]
	fmt.Fprintf(&b, "Your draft scored %.2f; the approval bar is %.2f. Revise it using the reviewer feedback below.\n\n",
		latest.OverallScore, c.Threshold)

	b.WriteString("## Previous feedback\n")
	for i, h := range history {
		round := h.Round
		if round == 0 {
			round = i + 1
		}
		fmt.Fprintf(&b, "### Round %d: score %.2f (%s)\n", round, h.OverallScore, h.Verdict)
		if h.Reasoning != "" {
			b.WriteString(h.Reasoning)
			b.WriteString("\n")
		}
		for _, s := range orderedSuggestions(h.Suggestions) {
			fmt.Fprintf(&b, "- [%s] %s\n", s.Dimension, s.Text)
		}
		b.WriteString("\n")
	}

	weak, strong := RankDimensions(r, latest.DimensionScores, c.Threshold)
	if len(weak) > 0 {
		b.WriteString("## Focus areas (weakest first)\n")
		for i, d := range weak {
			desc := ""
			if dim, ok := r.Dimension(d.Name); ok {
				desc = ": " + dim.Description
			}
			fmt.Fprintf(&b, "%d. %s (%.2f)%s\n", i+1, d.Name, d.Score, desc)
		}
		b.WriteString("\n")
	}
	if len(strong) > 0 {
		b.WriteString("## Preserve\n")
		b.WriteString("These dimensions already meet the bar. Keep what makes them work:\n")
		for _, d := range strong {
			fmt.Fprintf(&b, "- %s (%.2f)\n", d.Name, d.Score)
		}
		b.WriteString("\n")
	}
	if !latest.Compliant {
		b.WriteString("Structural requirements come first: fix every count mismatch before polishing content.\n\n")
	}

	c.writeDraft(&b, prior)
	b.WriteString("\nReturn the complete revised artifact, not a list of changes.")
	return b.String()
}

func (c *Composer) writeDraft(b *strings.Builder, prior string) {
	if strings.TrimSpace(prior) == "" {
		return
	}
	limit := c.DraftTokens
	if limit <= 0 {
		limit = defaultDraftTokens
	}
	b.WriteString("## Previous draft\n")
	b.WriteString(ai.TruncateToTokens(prior, limit))
	b.WriteString("\n")
}

func orderedSuggestions(in []types.Suggestion) []types.Suggestion {
	out := append([]types.Suggestion(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}
