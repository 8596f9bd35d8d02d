package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// MarshalCheckpoint validates and serializes a state for storage.
// UpdatedAt is stamped on the caller's state.
func MarshalCheckpoint(state *ConversationState) ([]byte, error) {
	if state == nil {
		return nil, fmt.Errorf("cannot save nil state")
	}
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("invalid checkpoint: %w", err)
	}
	state.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	return data, nil
}

// UnmarshalCheckpoint deserializes and validates a stored state
func UnmarshalCheckpoint(data []byte) (*ConversationState, error) {
	var state ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("corrupt checkpoint: %w", err)
	}
	return &state, nil
}
