package iterative

import "strings"

// plateauEpsilon absorbs float noise so an improvement of exactly
// MinImprovement (0.55 - 0.5) is not read as a plateau
const plateauEpsilon = 1e-9

// Decision is the routing outcome of an EVALUATE visit
type Decision struct {
	Next   State
	Reason ExitReason
}

// Decide routes after an evaluation. scores holds the overall scores of
// the successful evaluations of this turn, in order; count is
// evaluation_count including the visit just made.
//
// The checks short-circuit in order: empty history, approval, retry
// budget, plateau. Approval is checked before plateau so [0.5, 0.82]
// approves rather than being compared against the previous round.
func Decide(scores []float64, count int, cfg LoopConfig) Decision {
	respond := func(reason ExitReason) Decision {
		return Decision{Next: StateRespond, Reason: reason}
	}

	if len(scores) == 0 {
		return respond(ExitEmptyHistory)
	}
	latest := scores[len(scores)-1]
	if latest >= cfg.ApprovalThreshold {
		return respond(ExitApproved)
	}
	if count >= cfg.MaxRetries {
		return respond(ExitBudgetExhausted)
	}
	if len(scores) >= 2 {
		improvement := latest - scores[len(scores)-2]
		if improvement < cfg.MinImprovement-plateauEpsilon {
			return respond(ExitPlateau)
		}
	}
	return Decision{Next: StateRefine}
}

// countLines counts the number of lines in text
func countLines(text string) int {
	if text == "" {
		return 0
	}
	return strings.Count(text, "\n") + 1
}

// countDiffLines estimates how many lines changed between two drafts.
// It compares line by line, which is enough to tell a rewrite from a touch-up.
func countDiffLines(prev, current string) int {
	prevLines := strings.Split(prev, "\n")
	currLines := strings.Split(current, "\n")

	diff := 0
	n := len(prevLines)
	if len(currLines) > n {
		n = len(currLines)
	}
	for i := 0; i < n; i++ {
		switch {
		case i >= len(prevLines), i >= len(currLines):
			diff++
		case prevLines[i] != currLines[i]:
			diff++
		}
	}
	return diff
}

// diffPercent is the share of current's lines that changed from prev
func diffPercent(prev, current string) float64 {
	total := countLines(current)
	if prev == "" || total == 0 {
		return 0
	}
	return float64(countDiffLines(prev, current)) / float64(total) * 100
}
