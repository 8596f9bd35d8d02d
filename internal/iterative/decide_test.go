package iterative

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	cfg := DefaultLoopConfig()

	tests := []struct {
		name   string
		scores []float64
		count  int
		want   Decision
	}{
		{"empty history", nil, 1, Decision{Next: StateRespond, Reason: ExitEmptyHistory}},
		{"empty history with budget left", []float64{}, 2, Decision{Next: StateRespond, Reason: ExitEmptyHistory}},
		{"approved on first round", []float64{0.8}, 1, Decision{Next: StateRespond, Reason: ExitApproved}},
		{"low first round refines", []float64{0.5}, 1, Decision{Next: StateRefine}},
		{"improvement at boundary continues", []float64{0.5, 0.55}, 2, Decision{Next: StateRefine}},
		{"improvement below boundary plateaus", []float64{0.5, 0.549}, 2, Decision{Next: StateRespond, Reason: ExitPlateau}},
		{"approval checked before plateau", []float64{0.5, 0.82}, 2, Decision{Next: StateRespond, Reason: ExitApproved}},
		{"approval on flat scores", []float64{0.8, 0.8}, 2, Decision{Next: StateRespond, Reason: ExitApproved}},
		{"budget exhausted", []float64{0.3, 0.5, 0.7}, 3, Decision{Next: StateRespond, Reason: ExitBudgetExhausted}},
		{"budget counts failed rounds", []float64{0.4}, 3, Decision{Next: StateRespond, Reason: ExitBudgetExhausted}},
		{"budget checked before plateau", []float64{0.5, 0.5}, 3, Decision{Next: StateRespond, Reason: ExitBudgetExhausted}},
		{"regression plateaus", []float64{0.6, 0.4}, 2, Decision{Next: StateRespond, Reason: ExitPlateau}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.scores, tt.count, cfg))
		})
	}
}

func TestDecideZeroMinImprovement(t *testing.T) {
	cfg := DefaultLoopConfig()
	cfg.MinImprovement = 0

	assert.Equal(t, StateRefine, Decide([]float64{0.5, 0.5}, 2, cfg).Next)
	assert.Equal(t, ExitPlateau, Decide([]float64{0.5, 0.49}, 2, cfg).Reason)
}

func TestLoopConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultLoopConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*LoopConfig)
		want   string
	}{
		{"zero threshold", func(c *LoopConfig) { c.ApprovalThreshold = 0 }, "approval_threshold"},
		{"threshold above one", func(c *LoopConfig) { c.ApprovalThreshold = 1.5 }, "approval_threshold"},
		{"no retries", func(c *LoopConfig) { c.MaxRetries = 0 }, "max_retries"},
		{"too many retries", func(c *LoopConfig) { c.MaxRetries = 11 }, "max_retries"},
		{"negative improvement", func(c *LoopConfig) { c.MinImprovement = -0.1 }, "min_improvement"},
		{"negative tool rounds", func(c *LoopConfig) { c.MaxToolRounds = -1 }, "max_tool_rounds"},
		{"negative timeout", func(c *LoopConfig) { c.TurnTimeout = -1 }, "turn_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultLoopConfig()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestDiffPercent(t *testing.T) {
	assert.Zero(t, diffPercent("", "a\nb"))
	assert.Zero(t, diffPercent("a\nb", ""))
	assert.Zero(t, diffPercent("a\nb", "a\nb"))
	assert.InDelta(t, 50.0, diffPercent("a\nb", "a\nc"), 1e-9)
	assert.InDelta(t, 100.0, diffPercent("a", "b\nc"), 1e-9)
	assert.Equal(t, 3, countLines("a\nb\nc"))
	assert.Equal(t, 0, countLines(""))
}
