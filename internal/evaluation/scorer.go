// Package evaluation scores generated artifacts against a weighted rubric.
package evaluation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/gabormeresz/profAssistant-sub000/internal/ai"
	"github.com/gabormeresz/profAssistant-sub000/internal/rubric"
	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

const evaluationMaxTokens = 2048

// Input is everything the Scorer needs for one attempt
type Input struct {
	Rubric       *rubric.Rubric
	Requirements []rubric.Requirement
	// Context describes the original request (topic, objectives, structure)
	Context string
	Content string
	Round   int
}

// evaluatorOutput is the schema the evaluator model must emit
type evaluatorOutput struct {
	Verdict            string                    `json:"verdict" validate:"required,oneof=APPROVED NEEDS_REFINEMENT"`
	OverallScore       float64                   `json:"overall_score" validate:"min=0,max=1"`
	DimensionScores    map[string]float64        `json:"dimension_scores" validate:"required,len=5,dive,min=0,max=1"`
	Reasoning          string                    `json:"reasoning" validate:"min=10,max=1000"`
	Suggestions        []types.Suggestion        `json:"suggestions" validate:"required,max=10,dive"`
	StructuralFindings []types.StructuralFinding `json:"structural_findings" validate:"dive"`
}

// Scorer runs the evaluator model and enforces the result invariants
type Scorer struct {
	model     ai.Model
	threshold float64
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewScorer creates a Scorer approving results at or above threshold
func NewScorer(model ai.Model, threshold float64, logger *slog.Logger) (*Scorer, error) {
	if model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("approval threshold must be in (0, 1] (got %f)", threshold)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{
		model:     model,
		threshold: threshold,
		validate:  validator.New(),
		logger:    logger,
	}, nil
}

// Evaluate scores one artifact. Every failure wraps types.ErrEvaluationFailed
// and never yields a default result.
func (s *Scorer) Evaluate(ctx context.Context, in Input) (*types.EvaluationResult, error) {
	if in.Rubric == nil {
		return nil, fmt.Errorf("%w: rubric is required", types.ErrEvaluationFailed)
	}
	if len(in.Requirements) > 0 && in.Rubric.MaxNonCompliantScore() >= s.threshold {
		return nil, fmt.Errorf("%w: rubric %s lets non-compliant artifacts reach %.2f",
			types.ErrEvaluationFailed, in.Rubric.Kind, in.Rubric.MaxNonCompliantScore())
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("%w: nothing to evaluate", types.ErrEvaluationFailed)
	}

	resp, err := s.model.Invoke(ctx, &ai.Request{
		Purpose:   ai.PurposeEvaluate,
		System:    buildSystemPrompt(in.Rubric, in.Requirements),
		Messages:  []types.Message{types.NewUserMessage(buildUserPrompt(in.Context, in.Content))},
		Schema:    evaluationSchema(in.Rubric, in.Requirements),
		MaxTokens: evaluationMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: evaluator call: %w", types.ErrEvaluationFailed, err)
	}

	// No repair: a reply cut off at max_tokens is a failed evaluation
	parsed := ai.ParseStrict[evaluatorOutput](resp.Text, ai.ParseOptions{Context: "evaluation"})
	if !parsed.Success {
		return nil, fmt.Errorf("%w: %s", types.ErrEvaluationFailed, parsed.Error)
	}
	out := parsed.Data

	if err := s.validate.Struct(out); err != nil {
		return nil, fmt.Errorf("%w: schema violation: %w", types.ErrEvaluationFailed, err)
	}
	for _, name := range in.Rubric.Names() {
		if _, ok := out.DimensionScores[name]; !ok {
			return nil, fmt.Errorf("%w: missing dimension %q", types.ErrEvaluationFailed, name)
		}
	}
	if !in.Rubric.ConsistentOverall(out.OverallScore, out.DimensionScores) {
		want, _ := in.Rubric.WeightedScore(out.DimensionScores)
		return nil, fmt.Errorf("%w: overall_score %.3f does not match weighted sum %.3f",
			types.ErrEvaluationFailed, out.OverallScore, want)
	}

	result := types.EvaluationResult{
		Round:              in.Round,
		Verdict:            types.Verdict(out.Verdict),
		OverallScore:       out.OverallScore,
		DimensionScores:    out.DimensionScores,
		Reasoning:          strings.TrimSpace(out.Reasoning),
		Suggestions:        out.Suggestions,
		StructuralFindings: out.StructuralFindings,
		EvaluatedAt:        time.Now(),
	}

	violations := rubric.CheckFindings(in.Requirements, out.StructuralFindings)
	final, err := rubric.ApplyStructuralOverride(in.Rubric, result, violations, s.threshold)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrEvaluationFailed, err)
	}
	if err := final.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrEvaluationFailed, err)
	}

	if len(violations) > 0 {
		s.logger.Info("structural requirements not met",
			slog.String("kind", string(in.Rubric.Kind)),
			slog.Int("round", in.Round),
			slog.Int("violations", len(violations)),
			slog.Float64("reported_score", out.OverallScore),
			slog.Float64("capped_score", final.OverallScore))
	}
	s.logger.Debug("artifact evaluated",
		slog.String("kind", string(in.Rubric.Kind)),
		slog.Int("round", in.Round),
		slog.Float64("score", final.OverallScore),
		slog.String("verdict", string(final.Verdict)))

	return &final, nil
}
