package artifacts

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gabormeresz/profAssistant-sub000/internal/ai"
	"github.com/gabormeresz/profAssistant-sub000/internal/extraction"
	"github.com/gabormeresz/profAssistant-sub000/internal/rubric"
	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

func assessmentContext(req *types.GenerationRequest) string {
	var lines []string
	lines = append(lines, "Required question sections:")
	for _, c := range req.QuestionTypeConfigs {
		lines = append(lines, fmt.Sprintf("- %s: exactly %d questions, %d points each", c.Type, c.Count, c.PointsEach))
	}
	lines = append(lines, fmt.Sprintf("Total points: %d", req.TotalPoints()))
	return baseContext(req, strings.Join(lines, "\n"))
}

// AssessmentDomain configures assessment generation
func AssessmentDomain() *Domain {
	return &Domain{
		Kind:         types.KindAssessment,
		Rubric:       rubric.Assessment(),
		SystemPrompt: systemPrompt("You write fair, unambiguous assessments with a complete answer key. Put each question type in its own headed section."),
		UserPrompt:   userPrompt("an assessment with an answer key", assessmentContext),
		Context:      assessmentContext,
		Requirements: assessmentRequirements,
		NewExtractor: func(req *types.GenerationRequest, model ai.Model, logger *slog.Logger) extraction.Extractor {
			return extraction.New(model, AssessmentSchema(req.QuestionTypeConfigs), logger)
		},
	}
}

func assessmentRequirements(req *types.GenerationRequest) []rubric.Requirement {
	reqs := make([]rubric.Requirement, 0, len(req.QuestionTypeConfigs))
	for _, c := range req.QuestionTypeConfigs {
		reqs = append(reqs, rubric.Requirement{
			Name:        string(c.Type),
			Description: fmt.Sprintf("%s questions", c.Type),
			Expected:    c.Count,
		})
	}
	return reqs
}

// AssessmentSchema locks section types, per-section question counts and
// per-question points to the requested configuration.
func AssessmentSchema(configs []types.QuestionTypeConfig) extraction.Schema[Assessment] {
	enum := make([]string, 0, len(configs))
	for _, c := range configs {
		enum = append(enum, string(c.Type))
	}
	sections := extraction.Exactly("sections", len(configs))

	return extraction.Schema[Assessment]{
		Name:        "assessment",
		Description: describeSections(configs),
		Document: object([]string{"title", "sections"}, map[string]interface{}{
			"title": str(),
			"sections": array(object([]string{"question_type", "questions"}, map[string]interface{}{
				"question_type": map[string]interface{}{"type": "string", "enum": enum},
				"questions": array(object([]string{"prompt", "answer", "points"}, map[string]interface{}{
					"prompt":  str(),
					"options": array(str(), 0, 0),
					"answer":  str(),
					"points":  integer(),
				}), 1, 0),
			}), len(configs), len(configs)),
		}),
		Validate: func(a *Assessment) error {
			if err := extraction.ConstrainCollection(a.Sections, sections, nil); err != nil {
				return err
			}
			for _, c := range configs {
				var matching []AssessmentSection
				for _, s := range a.Sections {
					if s.QuestionType == c.Type {
						matching = append(matching, s)
					}
				}
				if err := extraction.ConstrainCollection(matching, extraction.Exactly(string(c.Type)+" sections", 1), nil); err != nil {
					return err
				}
				questions := extraction.Exactly(string(c.Type)+" questions", c.Count).WithDiscriminator(strconv.Itoa(c.PointsEach))
				if err := extraction.ConstrainCollection(matching[0].Questions, questions, questionPoints); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func questionPoints(q Question) string {
	return strconv.Itoa(q.Points)
}

func describeSections(configs []types.QuestionTypeConfig) string {
	parts := make([]string, 0, len(configs))
	for _, c := range configs {
		parts = append(parts, fmt.Sprintf("%s: exactly %d questions worth %d points each", c.Type, c.Count, c.PointsEach))
	}
	return "One section per question type. " + strings.Join(parts, "; ")
}
