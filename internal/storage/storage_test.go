package storage

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabormeresz/profAssistant-sub000/internal/storage/badger"
	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

func backends(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store {
			s, err := NewStore(context.Background(), Config{Backend: BackendSQLite, Path: filepath.Join(t.TempDir(), "threads.db")}, nil)
			require.NoError(t, err)
			return s
		},
		"badger": func(t *testing.T) Store {
			s, err := badger.New(badger.InMemoryConfig())
			require.NoError(t, err)
			return s
		},
	}
}

func sampleState() *types.ConversationState {
	score := 0.62
	state := types.NewConversationState("thread-1", &types.GenerationRequest{
		Kind:       types.KindPresentation,
		Topic:      "Cells",
		SlideCount: 8,
	})
	state.Turn = 1
	state.AppendMessage(types.NewSystemMessage("system"))
	state.AppendMessage(types.NewUserMessage("make slides"))
	state.AppendMessage(types.NewAssistantMessage("# Slide 1"))
	state.Draft = "# Slide 1"
	state.EvaluationCount = 2
	state.EvaluationHistory = []types.EvaluationResult{{Round: 2, Verdict: types.VerdictNeedsRefinement, OverallScore: score}}
	state.CurrentScore = &score
	state.FinalArtifact = json.RawMessage(`{"title":"Cells"}`)
	state.Scratch = []types.Message{types.NewUserMessage("transient")}
	return state
}

func TestStoreContract(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)
			defer store.Close()

			_, err := store.Load(ctx, "missing")
			assert.True(t, errors.Is(err, types.ErrThreadNotFound), "got %v", err)

			state := sampleState()
			require.NoError(t, store.Save(ctx, state))
			assert.False(t, state.UpdatedAt.IsZero())

			loaded, err := store.Load(ctx, "thread-1")
			require.NoError(t, err)
			assert.Equal(t, state.MessageHistory, loaded.MessageHistory)
			assert.Equal(t, 2, loaded.EvaluationCount)
			assert.InDelta(t, 0.62, *loaded.CurrentScore, 1e-9)
			assert.JSONEq(t, `{"title":"Cells"}`, string(loaded.FinalArtifact))
			assert.Equal(t, 8, loaded.Request.SlideCount)
			assert.Nil(t, loaded.Scratch, "scratch messages are never persisted")

			// loaded state does not alias the store
			loaded.MessageHistory[0].Content = "mutated"
			again, err := store.Load(ctx, "thread-1")
			require.NoError(t, err)
			assert.Equal(t, "system", again.MessageHistory[0].Content)

			// overwrite
			state.Turn = 2
			state.AppendMessage(types.NewUserMessage("shorter please"))
			require.NoError(t, store.Save(ctx, state))
			loaded, err = store.Load(ctx, "thread-1")
			require.NoError(t, err)
			assert.Equal(t, 2, loaded.Turn)
			assert.Len(t, loaded.MessageHistory, 4)

			assert.Error(t, store.Save(ctx, &types.ConversationState{Kind: types.KindPresentation}), "thread id required")
		})
	}
}

func TestStoreTurnHistory(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)
			defer store.Close()

			start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
			for _, turn := range []int{10, 2, 1} {
				require.NoError(t, store.RecordTurn(ctx, types.TurnRecord{
					ThreadID:        "t",
					Turn:            turn,
					Kind:            types.KindAssessment,
					Score:           0.5,
					EvaluationCount: turn,
					ExitReason:      "plateau",
					StartedAt:       start,
					CompletedAt:     start.Add(time.Duration(turn) * time.Second),
				}))
			}
			require.NoError(t, store.RecordTurn(ctx, types.TurnRecord{
				ThreadID: "t", Turn: 2, Kind: types.KindAssessment, Score: 0.85, ExitReason: "approved",
				StartedAt: start, CompletedAt: start,
			}))
			require.NoError(t, store.RecordTurn(ctx, types.TurnRecord{
				ThreadID: "other", Turn: 1, Kind: types.KindAssessment, StartedAt: start, CompletedAt: start,
			}))

			turns, err := store.ListTurns(ctx, "t")
			require.NoError(t, err)
			require.Len(t, turns, 3)
			assert.Equal(t, []int{1, 2, 10}, []int{turns[0].Turn, turns[1].Turn, turns[2].Turn})
			assert.Equal(t, "approved", turns[1].ExitReason)
			assert.InDelta(t, 0.85, turns[1].Score, 1e-9)
			assert.Equal(t, 10*time.Second, turns[2].Duration())
			assert.True(t, turns[0].StartedAt.Equal(start))

			none, err := store.ListTurns(ctx, "nobody")
			require.NoError(t, err)
			assert.Empty(t, none)

			assert.Error(t, store.RecordTurn(ctx, types.TurnRecord{ThreadID: "t", Turn: 0}))
		})
	}
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{Backend: BackendMemory}.Validate())
	assert.ErrorContains(t, Config{Backend: BackendSQLite}.Validate(), "path is required")
	assert.ErrorContains(t, Config{Backend: "postgres"}.Validate(), "unknown storage backend")

	_, err := NewStore(context.Background(), Config{Backend: "nope"}, nil)
	assert.Error(t, err)

	s, err := NewStore(context.Background(), Config{Backend: BackendBadger, Path: t.TempDir()}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}
