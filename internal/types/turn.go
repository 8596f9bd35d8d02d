package types

import (
	"fmt"
	"time"
)

// TurnRecord summarizes one completed or failed turn of a thread
type TurnRecord struct {
	ThreadID        string       `json:"thread_id"`
	Turn            int          `json:"turn"`
	Kind            ArtifactKind `json:"kind"`
	Score           float64      `json:"score"`
	EvaluationCount int          `json:"evaluation_count"`
	ExitReason      string       `json:"exit_reason,omitempty"`
	ErrorKind       ErrorKind    `json:"error_kind,omitempty"`
	StartedAt       time.Time    `json:"started_at"`
	CompletedAt     time.Time    `json:"completed_at"`
}

// Duration returns how long the turn took
func (r *TurnRecord) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// Validate checks the record can be stored
func (r *TurnRecord) Validate() error {
	if r.ThreadID == "" {
		return fmt.Errorf("thread_id is required")
	}
	if r.Turn < 1 {
		return fmt.Errorf("turn must be positive (got %d)", r.Turn)
	}
	if r.Score < 0 || r.Score > 1 {
		return fmt.Errorf("score must be between 0 and 1 (got %f)", r.Score)
	}
	return nil
}
