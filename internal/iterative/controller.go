package iterative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gabormeresz/profAssistant-sub000/internal/ai"
	"github.com/gabormeresz/profAssistant-sub000/internal/artifacts"
	"github.com/gabormeresz/profAssistant-sub000/internal/evaluation"
	"github.com/gabormeresz/profAssistant-sub000/internal/events"
	"github.com/gabormeresz/profAssistant-sub000/internal/extraction"
	"github.com/gabormeresz/profAssistant-sub000/internal/refinement"
	"github.com/gabormeresz/profAssistant-sub000/internal/rubric"
	"github.com/gabormeresz/profAssistant-sub000/internal/storage"
	"github.com/gabormeresz/profAssistant-sub000/internal/tools"
	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

const documentSearchLimit = 5

// Evaluator scores one draft. *evaluation.Scorer implements it.
type Evaluator interface {
	Evaluate(ctx context.Context, in evaluation.Input) (*types.EvaluationResult, error)
}

// Deps are the collaborators of a Controller
type Deps struct {
	// Model drives generation and extraction
	Model  ai.Model
	Scorer Evaluator
	// Composer defaults to refinement.NewComposer(cfg.ApprovalThreshold)
	Composer *refinement.Composer
	// Tools is optional; without it the model is never offered tools
	Tools *tools.Invoker
	// Documents backs the request-scoped document search tool
	Documents tools.DocumentSearcher
	Store     storage.Store
	// Locks defaults to a private lock table
	Locks *storage.ThreadLocks
	// Domains defaults to artifacts.DefaultRegistry()
	Domains *artifacts.Registry
	Metrics MetricsCollector
	Logger  *slog.Logger
	// MaxTokens bounds each generation call; zero uses the model default
	MaxTokens int
}

// Controller runs the generate, evaluate and refine loop for every
// artifact kind. It holds no per-turn state and is safe for concurrent
// use across threads.
type Controller struct {
	cfg       LoopConfig
	generator *Generator
	model     ai.Model
	scorer    Evaluator
	composer  *refinement.Composer
	tools     *tools.Invoker
	documents tools.DocumentSearcher
	store     storage.Store
	locks     *storage.ThreadLocks
	domains   *artifacts.Registry
	metrics   MetricsCollector
	logger    *slog.Logger
}

// NewController validates the configuration and wires the collaborators
func NewController(deps Deps, cfg LoopConfig) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid loop config: %w", err)
	}
	if deps.Model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if deps.Scorer == nil {
		return nil, fmt.Errorf("scorer is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Composer == nil {
		deps.Composer = refinement.NewComposer(cfg.ApprovalThreshold)
	}
	if deps.Locks == nil {
		deps.Locks = storage.NewThreadLocks()
	}
	if deps.Domains == nil {
		deps.Domains = artifacts.DefaultRegistry()
	}
	if err := deps.Domains.Validate(cfg.ApprovalThreshold); err != nil {
		return nil, fmt.Errorf("invalid artifact domain: %w", err)
	}
	if deps.Metrics == nil {
		deps.Metrics = nopCollector{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Controller{
		cfg:       cfg,
		generator: NewGenerator(deps.Model, deps.MaxTokens),
		model:     deps.Model,
		scorer:    deps.Scorer,
		composer:  deps.Composer,
		tools:     deps.Tools,
		documents: deps.Documents,
		store:     deps.Store,
		locks:     deps.Locks,
		domains:   deps.Domains,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
	}, nil
}

// Config returns the loop configuration
func (c *Controller) Config() LoopConfig {
	return c.cfg
}

// Run executes one turn. A request without a thread id starts a new
// thread; otherwise the thread's checkpoint is resumed with req.Message as
// the follow-up.
//
// Validation, extraction, persistence and cancellation errors are
// returned. Generation, evaluation and tool failures degrade to a
// best-effort artifact instead. On extraction failure the partial
// TurnResult is returned alongside the error.
func (c *Controller) Run(ctx context.Context, req *types.GenerationRequest, sink events.Sink) (*TurnResult, error) {
	if sink == nil {
		sink = events.Discard
	}
	if req == nil {
		err := types.NewValidationError("", "request is required")
		sink.Emit(events.NewErrorEvent("", types.KindOf(err)))
		return nil, err
	}
	if c.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.TurnTimeout)
		defer cancel()
	}

	ctx, span := startTurnSpan(ctx, req)
	t := &turn{
		c:       c,
		req:     req,
		sink:    sink,
		logger:  c.logger.With(slog.String("kind", string(req.Kind))),
		started: time.Now(),
	}
	defer t.releaseLock()

	result, err := t.run(ctx)
	annotateTurn(span, t)
	endSpan(span, err)
	return result, err
}

// turn is the per-run working set. It is owned by a single goroutine.
type turn struct {
	c       *Controller
	req     *types.GenerationRequest
	sink    events.Sink
	logger  *slog.Logger
	started time.Time
	release func()

	threadID     string
	state        *types.ConversationState
	domain       *artifacts.Domain
	extractor    extraction.Extractor
	invoker      *tools.Invoker
	evalContext  string
	requirements []rubric.Requirement

	// pending holds tool calls awaiting the next TOOLS step
	pending []types.ToolCall
	// content is the output of the latest generation phase
	content string
	// prevContent is the content evaluated in the previous round
	prevContent string
	// attemptScore is the latest attempt's score, 0 when it failed
	attemptScore float64
	needCompose  bool
	exit         ExitReason
	toolCalls    int
	artifact     any
}

func (t *turn) run(ctx context.Context) (*TurnResult, error) {
	if err := t.req.Validate(); err != nil {
		return t.fail(ctx, err)
	}
	domain, err := t.c.domains.Lookup(t.req.Kind)
	if err != nil {
		return t.fail(ctx, err)
	}
	t.domain = domain

	current := StateInit
	for current != StateDone {
		if err := ctx.Err(); err != nil {
			return t.fail(ctx, err)
		}
		next, err := t.step(ctx, current)
		if err != nil {
			return t.fail(ctx, err)
		}
		current = next
	}
	return t.result(), nil
}

// step runs one state and returns the next
func (t *turn) step(ctx context.Context, current State) (next State, err error) {
	start := time.Now()
	stepCtx, span := startStepSpan(ctx, current, t.round())
	defer func() {
		t.c.metrics.RecordStep(current, time.Since(start))
		endSpan(span, err)
	}()

	switch current {
	case StateInit:
		return t.initialize(stepCtx)
	case StateBuildContext:
		return t.buildContext()
	case StateGenerate:
		t.progress(events.StageGenerating, current, "generating draft")
		return t.generate(stepCtx, StateTools)
	case StateTools, StateToolsRefine:
		return t.runTools(stepCtx, current)
	case StateEvaluate:
		return t.evaluate(stepCtx)
	case StateRefine:
		return t.refine(stepCtx)
	case StateRespond:
		return t.respond(stepCtx)
	default:
		return StateError, fmt.Errorf("unknown state %s", current)
	}
}

// initialize assigns or resumes the thread and takes its lock
func (t *turn) initialize(ctx context.Context) (State, error) {
	first := t.req.IsFirstCall()
	if first {
		t.threadID = uuid.New().String()
	} else {
		t.threadID = strings.TrimSpace(t.req.ThreadID)
	}
	t.logger = t.logger.With(slog.String("thread_id", t.threadID))

	// A new thread id is announced only while its lock is held
	release, err := t.acquire(ctx)
	if err != nil {
		return StateError, err
	}
	t.release = release
	if first {
		t.sink.Emit(events.NewThreadIDAssignedEvent(t.threadID))
	}
	t.progress(events.StageInitializing, StateInit, "initializing")

	if first {
		t.state = types.NewConversationState(t.threadID, t.req)
		return StateBuildContext, nil
	}

	state, err := t.c.store.Load(ctx, t.threadID)
	switch {
	case errors.Is(err, types.ErrThreadNotFound):
		return StateError, types.NewValidationError("thread_id", fmt.Sprintf("no conversation with id %s", t.threadID))
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return StateError, ctxErr
		}
		return StateError, &types.PersistenceError{Op: "load", Err: err}
	}
	if state.Kind != t.req.Kind {
		return StateError, types.NewValidationError("kind",
			fmt.Sprintf("conversation %s produces %s, not %s", t.threadID, state.Kind, t.req.Kind))
	}
	if state.Request == nil {
		return StateError, &types.PersistenceError{Op: "load", Err: fmt.Errorf("checkpoint %s has no request", t.threadID)}
	}
	t.state = state
	return StateBuildContext, nil
}

func (t *turn) acquire(ctx context.Context) (func(), error) {
	if t.c.cfg.NoWait {
		return t.c.locks.TryAcquire(t.threadID)
	}
	return t.c.locks.Acquire(ctx, t.threadID)
}

// buildContext seeds or extends the persisted history and clears the
// per-turn fields
func (t *turn) buildContext() (State, error) {
	t.progress(events.StageBuildingContext, StateBuildContext, "building context")

	s := t.state
	params := s.Request
	if t.req.IsFirstCall() {
		s.IsFirstCall = true
		s.AppendMessage(types.NewSystemMessage(t.domain.SystemPrompt(params)))
		s.AppendMessage(types.NewUserMessage(t.domain.UserPrompt(params)))
		t.evalContext = t.domain.Context(params)
	} else {
		s.IsFirstCall = false
		s.AppendMessage(types.NewUserMessage(t.req.Message))
		t.evalContext = t.domain.Context(params) + "\n\nFollow-up request: " + t.req.Message
	}
	s.Turn++
	s.ResetTurn()

	t.requirements = t.domain.Requirements(params)
	t.extractor = t.domain.NewExtractor(params, t.c.model, t.logger)
	t.invoker = t.toolsFor(params)
	return StateGenerate, nil
}

// toolsFor adds the document search tool when the turn has a document session
func (t *turn) toolsFor(params *types.GenerationRequest) *tools.Invoker {
	session := t.req.DocumentSessionID
	if session == "" {
		session = params.DocumentSessionID
	}
	if t.c.documents == nil || session == "" {
		return t.c.tools
	}
	docs := tools.NewDocumentSearchTool(t.c.documents, session, documentSearchLimit)
	if t.c.tools == nil {
		return tools.NewInvoker(tools.DefaultInvokerConfig(), t.logger, docs)
	}
	return t.c.tools.With(docs)
}

// generate makes one model call for the current phase. Tool requests route
// to toolState; anything else, including a failed call, routes to EVALUATE.
func (t *turn) generate(ctx context.Context, toolState State) (State, error) {
	s := t.state
	var specs []ai.ToolSpec
	if s.ToolRounds < t.c.cfg.MaxToolRounds {
		specs = t.invoker.Specs()
	}

	resp, err := t.c.generator.Generate(ctx, "", s.WorkingMessages(), specs)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return StateError, ctxErr
		}
		t.logger.Warn("generation failed, evaluating without a draft",
			slog.Int("round", t.round()),
			slog.Any("error", fmt.Errorf("%w: %w", types.ErrGenerationFailed, err)))
		s.PendingResponse = nil
		t.content = ""
		return StateEvaluate, nil
	}

	msg := resp.Message()
	s.PendingResponse = &msg
	if resp.HasToolCalls() {
		if len(specs) > 0 {
			s.Scratch = append(s.Scratch, msg)
			t.pending = resp.ToolCalls
			return toolState, nil
		}
		t.logger.Debug("model requested tools after they were withheld, using its text as the answer",
			slog.Int("tool_rounds", s.ToolRounds))
	}
	t.content = resp.Text
	return StateEvaluate, nil
}

// runTools executes the pending tool calls and feeds the results back
func (t *turn) runTools(ctx context.Context, current State) (State, error) {
	s := t.state
	calls := t.pending
	t.pending = nil

	names := make([]string, 0, len(calls))
	for _, call := range calls {
		names = append(names, call.Name)
	}
	t.progressTools(current, names)

	for _, result := range t.invoker.Invoke(ctx, calls) {
		s.Scratch = append(s.Scratch, types.NewToolMessage(result))
	}
	if err := ctx.Err(); err != nil {
		return StateError, err
	}
	s.ToolRounds++
	t.toolCalls += len(calls)

	if current == StateToolsRefine {
		return StateRefine, nil
	}
	return StateGenerate, nil
}

// evaluate scores the latest content and decides where to go next
func (t *turn) evaluate(ctx context.Context) (State, error) {
	s := t.state
	t.progress(events.StageEvaluating, StateEvaluate, "evaluating draft")

	start := time.Now()
	s.EvaluationCount++
	round := s.EvaluationCount
	content := t.content
	if strings.TrimSpace(content) != "" {
		s.Draft = content
	}

	var result *types.EvaluationResult
	var err error
	if strings.TrimSpace(content) == "" {
		err = fmt.Errorf("%w: no draft was generated", types.ErrEvaluationFailed)
	} else {
		result, err = t.c.scorer.Evaluate(ctx, evaluation.Input{
			Rubric:       t.domain.Rubric,
			Requirements: t.requirements,
			Context:      t.evalContext,
			Content:      content,
			Round:        round,
		})
	}
	if err != nil && ctx.Err() != nil {
		return StateError, ctx.Err()
	}

	metrics := &EvaluationMetrics{
		Kind:        s.Kind,
		Round:       round,
		DiffPercent: diffPercent(t.prevContent, content),
		Duration:    time.Since(start),
	}
	if err != nil {
		t.attemptScore = 0
		metrics.Outcome = EvaluationFailed
		t.logger.Warn("evaluation failed, scoring attempt as 0",
			slog.Int("round", round),
			slog.Any("error", err))
	} else {
		s.EvaluationHistory = append(s.EvaluationHistory, *result)
		score := result.OverallScore
		s.CurrentScore = &score
		t.attemptScore = score
		metrics.Outcome = EvaluationOK
		metrics.Score = score
		t.logger.Info("draft evaluated",
			slog.Int("round", round),
			slog.Float64("score", score),
			slog.String("verdict", string(result.Verdict)),
			slog.Bool("compliant", result.Compliant))
	}
	t.c.metrics.RecordEvaluation(metrics)
	if content != "" {
		t.prevContent = content
	}

	decision := Decide(t.scores(), s.EvaluationCount, t.c.cfg)
	if decision.Next == StateRespond {
		t.exit = decision.Reason
		t.logger.Info("refinement loop finished",
			slog.String("exit_reason", string(decision.Reason)),
			slog.Int("evaluation_count", s.EvaluationCount))
		return StateRespond, nil
	}
	t.needCompose = true
	return StateRefine, nil
}

// refine composes the feedback instruction on entry from EVALUATE, then
// runs a generation round on it
func (t *turn) refine(ctx context.Context) (State, error) {
	s := t.state
	if t.needCompose {
		t.needCompose = false
		t.progress(events.StageRefining, StateRefine, "refining draft")
		instruction := t.c.composer.Compose(t.domain.Rubric, s.Draft, s.EvaluationHistory)
		s.Scratch = []types.Message{
			types.NewAssistantMessage(s.Draft),
			types.NewUserMessage(instruction),
		}
		s.ToolRounds = 0
	} else {
		t.progress(events.StageRefining, StateRefine, "continuing refinement")
	}
	return t.generate(ctx, StateToolsRefine)
}

// respond commits the draft to history and extracts the structured artifact
func (t *turn) respond(ctx context.Context) (State, error) {
	s := t.state
	t.progress(events.StageExtracting, StateRespond, "extracting artifact")

	s.Scratch = nil
	s.PendingResponse = nil
	if s.Draft != "" {
		s.AppendMessage(types.NewAssistantMessage(s.Draft))
	}

	artifact, err := t.extractor(ctx, s.Draft)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return StateError, ctxErr
		}
		return StateError, err
	}
	raw, err := json.Marshal(artifact)
	if err != nil {
		return StateError, fmt.Errorf("failed to encode artifact: %w", err)
	}
	t.artifact = artifact
	s.FinalArtifact = raw

	if err := t.persist(ctx); err != nil {
		return StateError, err
	}
	t.c.metrics.RecordTurn(t.turnMetrics(""))

	complete, err := events.NewCompleteEvent(t.threadID, events.CompleteData{
		Kind:            s.Kind,
		Artifact:        artifact,
		Score:           s.CurrentScore,
		EvaluationCount: s.EvaluationCount,
		ExitReason:      string(t.exit),
	})
	if err != nil {
		t.logger.Warn("failed to build complete event", slog.Any("error", err))
	} else {
		t.sink.Emit(complete)
	}
	t.logger.Info("turn complete",
		slog.Int("turn", s.Turn),
		slog.Int("evaluation_count", s.EvaluationCount),
		slog.Duration("duration", time.Since(t.started)))
	return StateDone, nil
}

// fail ends the turn with err. Canceled turns are not saved so the prior
// checkpoint stays intact; extraction failures are saved with the error.
func (t *turn) fail(ctx context.Context, err error) (*TurnResult, error) {
	kind := types.KindOf(err)
	var result *TurnResult

	switch kind {
	case types.ErrorKindCanceled:
		t.logger.Info("turn canceled", slog.Any("error", err))
	case types.ErrorKindExtraction:
		t.state.Error = err.Error()
		if saveErr := t.persist(ctx); saveErr != nil {
			t.logger.Error("failed to save checkpoint after extraction failure", slog.Any("error", saveErr))
			err = saveErr
			kind = types.KindOf(saveErr)
		}
		result = t.result()
		t.logger.Error("turn failed", slog.String("error_kind", string(kind)), slog.Any("error", err))
	default:
		t.logger.Error("turn failed", slog.String("error_kind", string(kind)), slog.Any("error", err))
	}

	if t.state != nil {
		t.c.metrics.RecordTurn(t.turnMetrics(kind))
	}
	t.sink.Emit(events.NewErrorEvent(t.eventThreadID(), kind))
	return result, err
}

// persist saves the checkpoint and records the turn summary
func (t *turn) persist(ctx context.Context) error {
	s := t.state
	if err := t.c.store.Save(ctx, s); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &types.PersistenceError{Op: "save", Err: err}
	}

	record := types.TurnRecord{
		ThreadID:        s.ThreadID,
		Turn:            s.Turn,
		Kind:            s.Kind,
		EvaluationCount: s.EvaluationCount,
		ExitReason:      string(t.exit),
		StartedAt:       t.started,
		CompletedAt:     time.Now(),
	}
	if s.CurrentScore != nil {
		record.Score = *s.CurrentScore
	}
	if s.Error != "" {
		record.ErrorKind = types.ErrorKindExtraction
	}
	if err := t.c.store.RecordTurn(ctx, record); err != nil {
		t.logger.Warn("failed to record turn history", slog.Any("error", err))
	}
	return nil
}

func (t *turn) releaseLock() {
	if t.release != nil {
		t.release()
	}
}

// round is the evaluation round currently being produced
func (t *turn) round() int {
	if t.state == nil {
		return 0
	}
	if t.exit != "" {
		return t.state.EvaluationCount
	}
	return t.state.EvaluationCount + 1
}

// scores returns the successful scores of this turn in order
func (t *turn) scores() []float64 {
	out := make([]float64, 0, len(t.state.EvaluationHistory))
	for _, r := range t.state.EvaluationHistory {
		out = append(out, r.OverallScore)
	}
	return out
}

func (t *turn) eventThreadID() string {
	if t.threadID != "" {
		return t.threadID
	}
	return strings.TrimSpace(t.req.ThreadID)
}

func (t *turn) progress(stage events.Stage, state State, message string) {
	data := events.ProgressData{State: string(state), Round: t.round()}
	if t.state != nil {
		data.EvaluationCount = t.state.EvaluationCount
		if t.state.EvaluationCount > 0 && (state == StateRefine || state == StateRespond) {
			score := t.attemptScore
			data.Score = &score
		}
	}
	t.emitProgress(stage, message, data)
}

func (t *turn) progressTools(state State, names []string) {
	data := events.ProgressData{
		State:           string(state),
		Round:           t.round(),
		EvaluationCount: t.state.EvaluationCount,
		Tools:           names,
	}
	t.emitProgress(events.StageResearching, "researching: "+strings.Join(names, ", "), data)
}

func (t *turn) emitProgress(stage events.Stage, message string, data events.ProgressData) {
	event, err := events.NewProgressEvent(t.eventThreadID(), stage, message, data)
	if err != nil {
		t.logger.Warn("failed to build progress event", slog.Any("error", err))
		return
	}
	t.sink.Emit(event)
}

func (t *turn) turnMetrics(kind types.ErrorKind) *TurnMetrics {
	s := t.state
	return &TurnMetrics{
		ThreadID:        s.ThreadID,
		Kind:            s.Kind,
		Turn:            s.Turn,
		ExitReason:      t.exit,
		ErrorKind:       kind,
		EvaluationCount: s.EvaluationCount,
		Scores:          t.scores(),
		ToolCalls:       t.toolCalls,
		Duration:        time.Since(t.started),
	}
}

func (t *turn) result() *TurnResult {
	if t.state == nil {
		return nil
	}
	s := t.state
	return &TurnResult{
		ThreadID:        s.ThreadID,
		Turn:            s.Turn,
		Artifact:        t.artifact,
		ArtifactJSON:    s.FinalArtifact,
		Score:           s.CurrentScore,
		Evaluations:     append([]types.EvaluationResult(nil), s.EvaluationHistory...),
		EvaluationCount: s.EvaluationCount,
		ExitReason:      t.exit,
		Duration:        time.Since(t.started),
	}
}
