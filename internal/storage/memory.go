package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

// MemoryStore keeps checkpoints in process memory as serialized JSON, so
// callers never share state with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	checkpoints map[string][]byte
	turns       map[string][]types.TurnRecord
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		checkpoints: make(map[string][]byte),
		turns:       make(map[string][]types.TurnRecord),
	}
}

func (m *MemoryStore) Load(ctx context.Context, threadID string) (*types.ConversationState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	data, ok := m.checkpoints[threadID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrThreadNotFound, threadID)
	}
	return types.UnmarshalCheckpoint(data)
}

func (m *MemoryStore) Save(ctx context.Context, state *types.ConversationState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := types.MarshalCheckpoint(state)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.checkpoints[state.ThreadID] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) RecordTurn(ctx context.Context, record types.TurnRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("invalid turn record: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing := m.turns[record.ThreadID]
	for i := range existing {
		if existing[i].Turn == record.Turn {
			existing[i] = record
			return nil
		}
	}
	m.turns[record.ThreadID] = append(existing, record)
	return nil
}

func (m *MemoryStore) ListTurns(ctx context.Context, threadID string) ([]types.TurnRecord, error) {
	m.mu.RLock()
	out := append([]types.TurnRecord(nil), m.turns[threadID]...)
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Turn < out[j].Turn })
	return out, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
