package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

func newEvent(threadID string, eventType EventType, message string) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		ThreadID:  threadID,
		Timestamp: time.Now(),
		Message:   message,
	}
}

// NewThreadIDAssignedEvent announces the id of a newly created thread
func NewThreadIDAssignedEvent(threadID string) *Event {
	return newEvent(threadID, EventTypeThreadIDAssigned, "conversation started")
}

// NewProgressEvent creates a progress event for a stage with type-safe data.
func NewProgressEvent(threadID string, stage Stage, message string, data ProgressData) (*Event, error) {
	event := newEvent(threadID, EventTypeProgress, message)
	event.Stage = stage
	if err := event.SetProgressData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewCompleteEvent creates the terminal success event with type-safe data.
func NewCompleteEvent(threadID string, data CompleteData) (*Event, error) {
	event := newEvent(threadID, EventTypeComplete, "artifact ready")
	if err := event.SetCompleteData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewErrorEvent creates the terminal failure event. Only the kind and its
// generic user message are carried; details stay in logs.
func NewErrorEvent(threadID string, kind types.ErrorKind) *Event {
	event := newEvent(threadID, EventTypeError, types.UserMessage(kind))
	event.ErrorKind = kind
	return event
}
