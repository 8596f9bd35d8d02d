package iterative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabormeresz/profAssistant-sub000/internal/ai"
	"github.com/gabormeresz/profAssistant-sub000/internal/ai/aitest"
	"github.com/gabormeresz/profAssistant-sub000/internal/artifacts"
	"github.com/gabormeresz/profAssistant-sub000/internal/evaluation"
	"github.com/gabormeresz/profAssistant-sub000/internal/events"
	"github.com/gabormeresz/profAssistant-sub000/internal/storage"
	"github.com/gabormeresz/profAssistant-sub000/internal/tools"
	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

const deckJSON = `{"title":"Cells","slides":[{"title":"Intro","bullets":["Cells are small"]}]}`

// scoreStep is one scripted Scorer outcome
type scoreStep struct {
	score float64
	err   error
}

func scores(values ...float64) []scoreStep {
	out := make([]scoreStep, 0, len(values))
	for _, v := range values {
		out = append(out, scoreStep{score: v})
	}
	return out
}

// mockScorer replays scripted scores and records its inputs
type mockScorer struct {
	mu     sync.Mutex
	steps  []scoreStep
	inputs []evaluation.Input

	// onEvaluate runs before the scripted step, when set
	onEvaluate func(ctx context.Context, in evaluation.Input) error
}

func (m *mockScorer) Evaluate(ctx context.Context, in evaluation.Input) (*types.EvaluationResult, error) {
	m.mu.Lock()
	m.inputs = append(m.inputs, in)
	hook := m.onEvaluate
	var step scoreStep
	ok := len(m.steps) > 0
	if ok {
		step = m.steps[0]
		m.steps = m.steps[1:]
	}
	m.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, in); err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: no scripted score", types.ErrEvaluationFailed)
	}
	if step.err != nil {
		return nil, step.err
	}
	return scoredResult(in, step.score), nil
}

func (m *mockScorer) Inputs() []evaluation.Input {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]evaluation.Input(nil), m.inputs...)
}

func scoredResult(in evaluation.Input, score float64) *types.EvaluationResult {
	dims := make(map[string]float64)
	for _, name := range in.Rubric.Names() {
		dims[name] = score
	}
	verdict := types.VerdictNeedsRefinement
	if score >= 0.8 {
		verdict = types.VerdictApproved
	}
	return &types.EvaluationResult{
		Round:           in.Round,
		Verdict:         verdict,
		OverallScore:    score,
		DimensionScores: dims,
		Reasoning:       "scripted evaluation",
		Compliant:       true,
		EvaluatedAt:     time.Now(),
	}
}

// mockTool answers every query with a fixed text
type mockTool struct {
	name  string
	calls int
}

func (m *mockTool) Spec() ai.ToolSpec {
	return ai.ToolSpec{Name: m.name, Description: "test tool", Parameters: map[string]interface{}{}}
}

func (m *mockTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	m.calls++
	return "cells are the basic unit of life", nil
}

type testEnv struct {
	controller *Controller
	model      *aitest.ScriptedModel
	scorer     *mockScorer
	store      *storage.MemoryStore
	metrics    *InMemoryMetricsCollector
}

func newTestEnv(t *testing.T, steps []scoreStep, mutate ...func(*Deps, *LoopConfig)) *testEnv {
	t.Helper()
	env := &testEnv{
		model:   aitest.NewScriptedModel(),
		scorer:  &mockScorer{steps: steps},
		store:   storage.NewMemoryStore(),
		metrics: NewInMemoryMetricsCollector(),
	}
	deps := Deps{
		Model:   env.model,
		Scorer:  env.scorer,
		Store:   env.store,
		Metrics: env.metrics,
	}
	cfg := DefaultLoopConfig()
	for _, m := range mutate {
		m(&deps, &cfg)
	}
	c, err := NewController(deps, cfg)
	require.NoError(t, err)
	env.controller = c
	return env
}

func presentationRequest() *types.GenerationRequest {
	return &types.GenerationRequest{Kind: types.KindPresentation, Topic: "Cells", SlideCount: 1}
}

func followUp(threadID, message string) *types.GenerationRequest {
	return &types.GenerationRequest{ThreadID: threadID, Kind: types.KindPresentation, Message: message}
}

func lastEvent(t *testing.T, rec *events.Recorder) *events.Event {
	t.Helper()
	evs := rec.Events()
	require.NotEmpty(t, evs)
	return evs[len(evs)-1]
}

func TestRunApprovesFirstDraft(t *testing.T) {
	env := newTestEnv(t, scores(0.85))
	env.model.On(ai.PurposeGenerate, aitest.Text("# Intro\n- Cells are small"))
	env.model.On(ai.PurposeExtract, aitest.Text(deckJSON))

	rec := &events.Recorder{}
	result, err := env.controller.Run(context.Background(), presentationRequest(), rec)
	require.NoError(t, err)

	assert.Equal(t, ExitApproved, result.ExitReason)
	assert.Equal(t, 1, result.EvaluationCount)
	assert.Equal(t, 1, result.Turn)
	require.NotNil(t, result.Score)
	assert.InDelta(t, 0.85, *result.Score, 1e-9)
	deck, ok := result.Artifact.(*artifacts.Presentation)
	require.True(t, ok)
	assert.Equal(t, "Cells", deck.Title)
	assert.JSONEq(t, deckJSON, string(result.ArtifactJSON))

	assert.Equal(t, events.EventTypeThreadIDAssigned, rec.Types()[0])
	assert.Equal(t, events.EventTypeComplete, lastEvent(t, rec).Type)
	assert.Equal(t, []events.Stage{
		events.StageInitializing,
		events.StageBuildingContext,
		events.StageGenerating,
		events.StageEvaluating,
		events.StageExtracting,
	}, rec.Stages())

	complete, err := lastEvent(t, rec).GetCompleteData()
	require.NoError(t, err)
	assert.Equal(t, "approved", complete.ExitReason)
	assert.Equal(t, 1, complete.EvaluationCount)

	state, err := env.store.Load(context.Background(), result.ThreadID)
	require.NoError(t, err)
	require.Len(t, state.MessageHistory, 3)
	assert.Equal(t, types.RoleSystem, state.MessageHistory[0].Role)
	assert.Equal(t, types.RoleUser, state.MessageHistory[1].Role)
	assert.Equal(t, types.NewAssistantMessage("# Intro\n- Cells are small"), state.MessageHistory[2])
	assert.NotEmpty(t, state.FinalArtifact)
	assert.Empty(t, state.Error)

	turns, err := env.store.ListTurns(context.Background(), result.ThreadID)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.InDelta(t, 0.85, turns[0].Score, 1e-9)
	assert.Equal(t, "approved", turns[0].ExitReason)

	snap := env.metrics.Snapshot()
	assert.Equal(t, 1, snap.TotalTurns)
	assert.Equal(t, 1, snap.TotalEvaluations)
	assert.Equal(t, 1, snap.ByExitReason[ExitApproved])
}

func TestRunTerminatesWhenScorerAlwaysFails(t *testing.T) {
	failing := []scoreStep{
		{err: types.ErrEvaluationFailed},
		{err: types.ErrEvaluationFailed},
		{err: types.ErrEvaluationFailed},
		{err: types.ErrEvaluationFailed},
	}
	env := newTestEnv(t, failing)
	env.model.On(ai.PurposeGenerate, aitest.Text("draft"))
	env.model.On(ai.PurposeExtract, aitest.Text(deckJSON))

	rec := &events.Recorder{}
	result, err := env.controller.Run(context.Background(), presentationRequest(), rec)
	require.NoError(t, err)

	// No feedback means no refinement, even with retry budget left
	assert.Equal(t, ExitEmptyHistory, result.ExitReason)
	assert.Equal(t, 1, result.EvaluationCount)
	assert.Nil(t, result.Score)
	assert.Empty(t, result.Evaluations)
	assert.Len(t, env.model.RequestsFor(ai.PurposeGenerate), 1)
	assert.NotContains(t, rec.Stages(), events.StageRefining)
	assert.NotNil(t, result.Artifact)

	snap := env.metrics.Snapshot()
	assert.Equal(t, 1, snap.FailedEvaluations)
}

func TestRunRetryBudget(t *testing.T) {
	env := newTestEnv(t, scores(0.3, 0.5, 0.7, 0.9))
	env.model.On(ai.PurposeGenerate, aitest.Text("v1"), aitest.Text("v2"), aitest.Text("v3"))
	env.model.On(ai.PurposeExtract, aitest.Text(deckJSON))

	result, err := env.controller.Run(context.Background(), presentationRequest(), nil)
	require.NoError(t, err)

	assert.Equal(t, ExitBudgetExhausted, result.ExitReason)
	assert.Equal(t, 3, result.EvaluationCount)
	require.Len(t, result.Evaluations, 3)

	var rounds []int
	for _, in := range env.scorer.Inputs() {
		rounds = append(rounds, in.Round)
	}
	assert.Equal(t, []int{1, 2, 3}, rounds)
	assert.Len(t, env.model.RequestsFor(ai.PurposeGenerate), 3)
	assert.InDelta(t, 0.7, *result.Score, 1e-9)
}

func TestRunFailedEvaluationIsCountedButNotRecorded(t *testing.T) {
	steps := []scoreStep{{score: 0.4}, {err: types.ErrEvaluationFailed}, {score: 0.6}}
	env := newTestEnv(t, steps)
	env.model.On(ai.PurposeGenerate, aitest.Text("v1"), aitest.Text("v2"), aitest.Text("v3"))
	env.model.On(ai.PurposeExtract, aitest.Text(deckJSON))

	result, err := env.controller.Run(context.Background(), presentationRequest(), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, result.EvaluationCount)
	require.Len(t, result.Evaluations, 2)
	assert.Equal(t, 1, result.Evaluations[0].Round)
	assert.Equal(t, 3, result.Evaluations[1].Round)
	assert.Equal(t, ExitBudgetExhausted, result.ExitReason)

	evals := env.metrics.Evaluations()
	require.Len(t, evals, 3)
	assert.Equal(t, EvaluationFailed, evals[1].Outcome)
	assert.Zero(t, evals[1].Score)
}

func TestRunExitReasons(t *testing.T) {
	tests := []struct {
		name       string
		scores     []float64
		wantExit   ExitReason
		wantRounds int
	}{
		{"improvement at threshold continues", []float64{0.5, 0.55, 0.57}, ExitPlateau, 3},
		{"improvement below threshold stops", []float64{0.5, 0.52}, ExitPlateau, 2},
		{"approval wins over plateau", []float64{0.5, 0.82}, ExitApproved, 2},
		{"regression stops", []float64{0.6, 0.4}, ExitPlateau, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, scores(tt.scores...), func(_ *Deps, cfg *LoopConfig) {
				cfg.MaxRetries = 5
			})
			env.model.On(ai.PurposeGenerate,
				aitest.Text("v1"), aitest.Text("v2"), aitest.Text("v3"), aitest.Text("v4"))
			env.model.On(ai.PurposeExtract, aitest.Text(deckJSON))

			result, err := env.controller.Run(context.Background(), presentationRequest(), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantExit, result.ExitReason)
			assert.Equal(t, tt.wantRounds, result.EvaluationCount)
		})
	}
}

func TestRunRefinementUsesLatestDraft(t *testing.T) {
	env := newTestEnv(t, scores(0.5, 0.9))
	env.model.On(ai.PurposeGenerate, aitest.Text("v1"), aitest.Text("v2"))
	env.model.On(ai.PurposeExtract, aitest.Text(deckJSON))

	result, err := env.controller.Run(context.Background(), presentationRequest(), nil)
	require.NoError(t, err)

	reqs := env.model.RequestsFor(ai.PurposeGenerate)
	require.Len(t, reqs, 2)
	msgs := reqs[1].Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, types.NewAssistantMessage("v1"), msgs[2])
	assert.Equal(t, types.RoleUser, msgs[3].Role)
	assert.Contains(t, msgs[3].Content, "scored 0.50")

	// Only the approved draft is persisted
	state, err := env.store.Load(context.Background(), result.ThreadID)
	require.NoError(t, err)
	require.Len(t, state.MessageHistory, 3)
	assert.Equal(t, "v2", state.MessageHistory[2].Content)

	extract := env.model.RequestsFor(ai.PurposeExtract)
	require.Len(t, extract, 1)
	assert.True(t, strings.Contains(extract[0].Messages[0].Content, "v2"))
}

func TestRunToolRound(t *testing.T) {
	tool := &mockTool{name: "web_search"}
	env := newTestEnv(t, scores(0.9), func(deps *Deps, _ *LoopConfig) {
		deps.Tools = tools.NewInvoker(tools.DefaultInvokerConfig(), nil, tool)
	})
	call := types.ToolCall{ID: "call_1", Name: "web_search", Arguments: json.RawMessage(`{"query":"cells"}`)}
	env.model.On(ai.PurposeGenerate, aitest.ToolCalls(call), aitest.Text("draft with research"))
	env.model.On(ai.PurposeExtract, aitest.Text(deckJSON))

	rec := &events.Recorder{}
	result, err := env.controller.Run(context.Background(), presentationRequest(), rec)
	require.NoError(t, err)
	assert.Equal(t, 1, tool.calls)

	reqs := env.model.RequestsFor(ai.PurposeGenerate)
	require.Len(t, reqs, 2)
	assert.Len(t, reqs[0].Tools, 1)
	msgs := reqs[1].Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, []types.ToolCall{call}, msgs[2].ToolCalls)
	assert.Equal(t, types.RoleTool, msgs[3].Role)
	assert.Equal(t, "call_1", msgs[3].ToolCallID)
	assert.Equal(t, "cells are the basic unit of life", msgs[3].Content)

	assert.Equal(t, []events.Stage{
		events.StageInitializing,
		events.StageBuildingContext,
		events.StageGenerating,
		events.StageResearching,
		events.StageGenerating,
		events.StageEvaluating,
		events.StageExtracting,
	}, rec.Stages())

	// Tool exchanges never reach the persisted history
	state, err := env.store.Load(context.Background(), result.ThreadID)
	require.NoError(t, err)
	for _, m := range state.MessageHistory {
		assert.NotEqual(t, types.RoleTool, m.Role)
		assert.Empty(t, m.ToolCalls)
	}
	assert.Equal(t, 1, env.metrics.Turns()[0].ToolCalls)
}

func TestRunWithholdsToolsAfterMaxRounds(t *testing.T) {
	tool := &mockTool{name: "web_search"}
	env := newTestEnv(t, scores(0.9), func(deps *Deps, cfg *LoopConfig) {
		deps.Tools = tools.NewInvoker(tools.DefaultInvokerConfig(), nil, tool)
		cfg.MaxToolRounds = 1
	})
	call := types.ToolCall{ID: "call_1", Name: "web_search", Arguments: json.RawMessage(`{"query":"cells"}`)}
	again := types.ToolCall{ID: "call_2", Name: "web_search", Arguments: json.RawMessage(`{"query":"more"}`)}
	env.model.On(ai.PurposeGenerate,
		aitest.ToolCalls(call),
		aitest.Step{Response: &ai.Response{Text: "final draft", ToolCalls: []types.ToolCall{again}}},
	)
	env.model.On(ai.PurposeExtract, aitest.Text(deckJSON))

	_, err := env.controller.Run(context.Background(), presentationRequest(), nil)
	require.NoError(t, err)

	reqs := env.model.RequestsFor(ai.PurposeGenerate)
	require.Len(t, reqs, 2)
	assert.Len(t, reqs[0].Tools, 1)
	assert.Empty(t, reqs[1].Tools)
	assert.Equal(t, 1, tool.calls)

	inputs := env.scorer.Inputs()
	require.Len(t, inputs, 1)
	assert.Equal(t, "final draft", inputs[0].Content)
}

func TestRunGenerationFailureDegrades(t *testing.T) {
	env := newTestEnv(t, scores(0.9))
	env.model.On(ai.PurposeGenerate, aitest.Fail(errors.New("provider down")))

	rec := &events.Recorder{}
	result, err := env.controller.Run(context.Background(), presentationRequest(), rec)

	// Nothing was generated, so extraction has nothing to map
	var extractionErr *types.ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	assert.Equal(t, types.ExtractionEmpty, extractionErr.Kind)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.EvaluationCount)
	assert.Equal(t, ExitEmptyHistory, result.ExitReason)
	assert.Empty(t, env.scorer.Inputs())
}

func TestRunExtractionFailure(t *testing.T) {
	env := newTestEnv(t, scores(0.9))
	env.model.On(ai.PurposeGenerate, aitest.Text("draft"))
	env.model.On(ai.PurposeExtract, aitest.Text(`{"title":"Cells","slides":[{"title":"A","bullets":["a"]},{"title":"B","bullets":["b"]}]}`))

	rec := &events.Recorder{}
	result, err := env.controller.Run(context.Background(), presentationRequest(), rec)

	var extractionErr *types.ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	require.NotNil(t, result)
	assert.Nil(t, result.Artifact)
	assert.Empty(t, result.ArtifactJSON)

	last := lastEvent(t, rec)
	assert.Equal(t, events.EventTypeError, last.Type)
	assert.Equal(t, types.ErrorKindExtraction, last.ErrorKind)
	assert.Equal(t, types.UserMessage(types.ErrorKindExtraction), last.Message)

	state, err := env.store.Load(context.Background(), result.ThreadID)
	require.NoError(t, err)
	assert.NotEmpty(t, state.Error)
	assert.Empty(t, state.FinalArtifact)

	turns, err := env.store.ListTurns(context.Background(), result.ThreadID)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, types.ErrorKindExtraction, turns[0].ErrorKind)
}

func TestRunFollowUp(t *testing.T) {
	env := newTestEnv(t, scores(0.9, 0.85))
	env.model.On(ai.PurposeGenerate, aitest.Text("v1"), aitest.Text("v2 with examples"))
	env.model.On(ai.PurposeExtract, aitest.Text(deckJSON), aitest.Text(deckJSON))

	first, err := env.controller.Run(context.Background(), presentationRequest(), nil)
	require.NoError(t, err)

	rec := &events.Recorder{}
	second, err := env.controller.Run(context.Background(), followUp(first.ThreadID, "Add more examples"), rec)
	require.NoError(t, err)

	assert.Equal(t, first.ThreadID, second.ThreadID)
	assert.Equal(t, 2, second.Turn)
	assert.Equal(t, 1, second.EvaluationCount)
	assert.NotContains(t, rec.Types(), events.EventTypeThreadIDAssigned)

	inputs := env.scorer.Inputs()
	require.Len(t, inputs, 2)
	assert.Contains(t, inputs[1].Context, "Follow-up request: Add more examples")
	assert.Contains(t, inputs[1].Context, "Cells")
	require.Len(t, inputs[1].Requirements, 1)
	assert.Equal(t, 1, inputs[1].Requirements[0].Expected)

	state, err := env.store.Load(context.Background(), first.ThreadID)
	require.NoError(t, err)
	require.Len(t, state.MessageHistory, 5)
	assert.Equal(t, types.NewUserMessage("Add more examples"), state.MessageHistory[3])
	assert.Equal(t, "v2 with examples", state.MessageHistory[4].Content)
	assert.False(t, state.IsFirstCall)
	assert.Len(t, state.EvaluationHistory, 1)

	turns, err := env.store.ListTurns(context.Background(), first.ThreadID)
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}

func TestRunFollowUpUnknownThread(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := &events.Recorder{}
	result, err := env.controller.Run(context.Background(), followUp("missing", "more"), rec)
	assert.Nil(t, result)

	var validationErr *types.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "thread_id", validationErr.Field)
	assert.Equal(t, types.ErrorKindValidation, lastEvent(t, rec).ErrorKind)
	assert.Empty(t, env.model.Requests())
}

func TestRunRejectsInvalidRequest(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := &events.Recorder{}
	_, err := env.controller.Run(context.Background(), &types.GenerationRequest{Kind: types.KindPresentation, SlideCount: 3}, rec)

	var validationErr *types.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "topic", validationErr.Field)
	assert.Equal(t, []events.EventType{events.EventTypeError}, rec.Types())
	assert.Empty(t, env.model.Requests())
}

func TestRunCanceledTurnIsNotSaved(t *testing.T) {
	env := newTestEnv(t, scores(0.9))
	env.model.On(ai.PurposeGenerate, aitest.Text("v1"), aitest.Text("v2"))
	env.model.On(ai.PurposeExtract, aitest.Text(deckJSON))

	first, err := env.controller.Run(context.Background(), presentationRequest(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.scorer.onEvaluate = func(ctx context.Context, _ evaluation.Input) error {
		cancel()
		return ctx.Err()
	}

	rec := &events.Recorder{}
	_, err = env.controller.Run(ctx, followUp(first.ThreadID, "shorter please"), rec)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, types.ErrorKindCanceled, lastEvent(t, rec).ErrorKind)

	state, err := env.store.Load(context.Background(), first.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, 1, state.Turn)
	assert.Len(t, state.MessageHistory, 3)

	turns, err := env.store.ListTurns(context.Background(), first.ThreadID)
	require.NoError(t, err)
	assert.Len(t, turns, 1)
}

func TestRunSerializesTurnsOnSameThread(t *testing.T) {
	locks := storage.NewThreadLocks()
	env := newTestEnv(t, scores(0.9), func(deps *Deps, _ *LoopConfig) {
		deps.Locks = locks
	})
	env.model.On(ai.PurposeGenerate, aitest.Text("v1"))
	env.model.On(ai.PurposeExtract, aitest.Text(deckJSON))

	first, err := env.controller.Run(context.Background(), presentationRequest(), nil)
	require.NoError(t, err)

	release, err := locks.TryAcquire(first.ThreadID)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = env.controller.Run(ctx, followUp(first.ThreadID, "again"), nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunAnnouncesThreadIDWhileLockHeld(t *testing.T) {
	locks := storage.NewThreadLocks()
	env := newTestEnv(t, scores(0.9), func(deps *Deps, _ *LoopConfig) {
		deps.Locks = locks
	})
	env.model.On(ai.PurposeGenerate, aitest.Text("v1"))
	env.model.On(ai.PurposeExtract, aitest.Text(deckJSON))

	var announced bool
	var lockErr error
	sink := events.SinkFunc(func(e *events.Event) {
		if e.Type != events.EventTypeThreadIDAssigned {
			return
		}
		announced = true
		release, err := locks.TryAcquire(e.ThreadID)
		if err == nil {
			release()
		}
		lockErr = err
	})

	_, err := env.controller.Run(context.Background(), presentationRequest(), sink)
	require.NoError(t, err)
	require.True(t, announced)
	assert.ErrorIs(t, lockErr, types.ErrThreadBusy, "a follow-up started on the announcement must not win the lock")
}

func TestRunNoWaitFailsBusyThread(t *testing.T) {
	locks := storage.NewThreadLocks()
	env := newTestEnv(t, scores(0.9), func(deps *Deps, cfg *LoopConfig) {
		deps.Locks = locks
		cfg.NoWait = true
	})
	env.model.On(ai.PurposeGenerate, aitest.Text("v1"))
	env.model.On(ai.PurposeExtract, aitest.Text(deckJSON))

	first, err := env.controller.Run(context.Background(), presentationRequest(), nil)
	require.NoError(t, err)

	release, err := locks.TryAcquire(first.ThreadID)
	require.NoError(t, err)
	defer release()

	rec := &events.Recorder{}
	result, err := env.controller.Run(context.Background(), followUp(first.ThreadID, "again"), rec)
	require.ErrorIs(t, err, types.ErrThreadBusy)
	assert.Nil(t, result)

	last := lastEvent(t, rec)
	assert.Equal(t, events.EventTypeError, last.Type)
	assert.Equal(t, types.ErrorKindBusy, last.ErrorKind)
}

func TestNewControllerValidation(t *testing.T) {
	model := aitest.NewScriptedModel()
	scorer := &mockScorer{}
	store := storage.NewMemoryStore()

	_, err := NewController(Deps{Scorer: scorer, Store: store}, DefaultLoopConfig())
	assert.ErrorContains(t, err, "model is required")

	_, err = NewController(Deps{Model: model, Store: store}, DefaultLoopConfig())
	assert.ErrorContains(t, err, "scorer is required")

	_, err = NewController(Deps{Model: model, Scorer: scorer}, DefaultLoopConfig())
	assert.ErrorContains(t, err, "store is required")

	cfg := DefaultLoopConfig()
	cfg.MaxRetries = 0
	_, err = NewController(Deps{Model: model, Scorer: scorer, Store: store}, cfg)
	assert.ErrorContains(t, err, "max_retries")

	// Structural weight 0.35 lets non-compliant drafts reach 0.79
	cfg = DefaultLoopConfig()
	cfg.ApprovalThreshold = 0.75
	_, err = NewController(Deps{Model: model, Scorer: scorer, Store: store}, cfg)
	assert.ErrorContains(t, err, "non-compliant")
}
