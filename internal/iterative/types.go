package iterative

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

// State is a node of the loop state machine
type State string

const (
	StateInit         State = "INIT"
	StateBuildContext State = "BUILD_CONTEXT"
	StateGenerate     State = "GENERATE"
	StateTools        State = "TOOLS"
	StateEvaluate     State = "EVALUATE"
	StateRefine       State = "REFINE"
	StateToolsRefine  State = "TOOLS_REFINE"
	StateRespond      State = "RESPOND"
	StateDone         State = "DONE"
	StateError        State = "ERROR"
)

// ExitReason explains why the loop left EVALUATE for RESPOND
type ExitReason string

const (
	// ExitEmptyHistory means no evaluation succeeded this turn, so there is
	// no feedback to refine with
	ExitEmptyHistory ExitReason = "empty_history"
	// ExitApproved means the latest score reached the approval threshold
	ExitApproved ExitReason = "approved"
	// ExitBudgetExhausted means evaluation_count reached MaxRetries
	ExitBudgetExhausted ExitReason = "budget_exhausted"
	// ExitPlateau means the last round improved by less than MinImprovement
	ExitPlateau ExitReason = "plateau"
)

// LoopConfig controls the refinement loop
type LoopConfig struct {
	// ApprovalThreshold is the overall score at which a draft is approved
	// Default: 0.8, Range: (0, 1]
	ApprovalThreshold float64 `yaml:"approval_threshold"`

	// MaxRetries bounds evaluation_count per turn
	// Default: 3, Range: 1-10
	MaxRetries int `yaml:"max_retries"`

	// MinImprovement is the score gain below which refinement is treated as
	// a plateau. Exactly MinImprovement still counts as progress.
	// Default: 0.05, Range: [0, 1)
	MinImprovement float64 `yaml:"min_improvement"`

	// MaxToolRounds caps tool exchanges per generation phase. Once reached,
	// tools are withheld so the model has to answer.
	// Default: 4, Range: 0-20
	MaxToolRounds int `yaml:"max_tool_rounds"`

	// TurnTimeout bounds a whole turn. Zero means no timeout.
	// Default: 10m
	TurnTimeout time.Duration `yaml:"turn_timeout"`

	// NoWait fails a turn with types.ErrThreadBusy instead of waiting when
	// another turn holds the thread
	// Default: false
	NoWait bool `yaml:"no_wait"`
}

// DefaultLoopConfig returns the default loop configuration
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		ApprovalThreshold: 0.8,
		MaxRetries:        3,
		MinImprovement:    0.05,
		MaxToolRounds:     4,
		TurnTimeout:       10 * time.Minute,
	}
}

// Validate checks if the configuration has valid values
func (c LoopConfig) Validate() error {
	if c.ApprovalThreshold <= 0 || c.ApprovalThreshold > 1 {
		return fmt.Errorf("approval_threshold must be in (0, 1] (got %f)", c.ApprovalThreshold)
	}
	if c.MaxRetries < 1 || c.MaxRetries > 10 {
		return fmt.Errorf("max_retries must be between 1 and 10 (got %d)", c.MaxRetries)
	}
	if c.MinImprovement < 0 || c.MinImprovement >= 1 {
		return fmt.Errorf("min_improvement must be in [0, 1) (got %f)", c.MinImprovement)
	}
	if c.MaxToolRounds < 0 || c.MaxToolRounds > 20 {
		return fmt.Errorf("max_tool_rounds must be between 0 and 20 (got %d)", c.MaxToolRounds)
	}
	if c.TurnTimeout < 0 {
		return fmt.Errorf("turn_timeout cannot be negative (got %v)", c.TurnTimeout)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c LoopConfig) String() string {
	return fmt.Sprintf("LoopConfig{ApprovalThreshold: %.2f, MaxRetries: %d, MinImprovement: %.2f, MaxToolRounds: %d, TurnTimeout: %v, NoWait: %t}",
		c.ApprovalThreshold, c.MaxRetries, c.MinImprovement, c.MaxToolRounds, c.TurnTimeout, c.NoWait)
}

// TurnResult is the outcome of one Run
type TurnResult struct {
	ThreadID string
	Turn     int

	// Artifact is the validated structured object, nil when extraction failed
	Artifact     any
	ArtifactJSON json.RawMessage

	// Score is the latest successful overall score, nil if none succeeded
	Score           *float64
	Evaluations     []types.EvaluationResult
	EvaluationCount int
	ExitReason      ExitReason
	Duration        time.Duration
}
