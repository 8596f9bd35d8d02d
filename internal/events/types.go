// Package events defines the lifecycle notifications emitted while a turn
// runs. The stream is a side channel: nothing flows back into the loop.
package events

import (
	"time"

	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

// EventType is the kind of lifecycle event
type EventType string

const (
	// EventTypeThreadIDAssigned is emitted once when a first call creates a thread
	EventTypeThreadIDAssigned EventType = "thread_id_assigned"
	// EventTypeProgress is emitted at every state transition
	EventTypeProgress EventType = "progress"
	// EventTypeComplete carries the validated artifact
	EventTypeComplete EventType = "complete"
	// EventTypeError carries the error kind and a generic user-facing message
	EventTypeError EventType = "error"
)

// Stage names what the loop is doing for progress events
type Stage string

const (
	StageInitializing    Stage = "initializing"
	StageBuildingContext Stage = "building_context"
	StageGenerating      Stage = "generating"
	StageResearching     Stage = "researching"
	StageEvaluating      Stage = "evaluating"
	StageRefining        Stage = "refining"
	StageExtracting      Stage = "extracting"
)

// Event is one lifecycle notification for a thread
type Event struct {
	// ID is the unique identifier for this event
	ID string `json:"id"`
	// Type is the type of event
	Type EventType `json:"type"`
	// ThreadID is the conversation the event belongs to
	ThreadID string `json:"thread_id"`
	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`
	// Stage is set on progress events
	Stage Stage `json:"stage,omitempty"`
	// Message is a human-readable description, never raw error text
	Message string `json:"message,omitempty"`
	// ErrorKind is set on error events
	ErrorKind types.ErrorKind `json:"error_kind,omitempty"`
	// Data contains structured, type-specific data (must be JSON-serializable)
	Data map[string]interface{} `json:"data,omitempty"`
}

// ProgressData contains structured data for progress events
type ProgressData struct {
	State           string   `json:"state"`
	Round           int      `json:"round,omitempty"`
	EvaluationCount int      `json:"evaluation_count,omitempty"`
	Score           *float64 `json:"score,omitempty"`
	Tools           []string `json:"tools,omitempty"`
}

// CompleteData contains the final artifact and loop outcome
type CompleteData struct {
	Kind            types.ArtifactKind `json:"kind"`
	Artifact        interface{}        `json:"artifact"`
	Score           *float64           `json:"score,omitempty"`
	EvaluationCount int                `json:"evaluation_count"`
	ExitReason      string             `json:"exit_reason"`
}

// Sink receives lifecycle events. Emit must not block the loop.
type Sink interface {
	Emit(event *Event)
}
