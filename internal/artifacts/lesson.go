package artifacts

import (
	"fmt"
	"log/slog"

	"github.com/gabormeresz/profAssistant-sub000/internal/ai"
	"github.com/gabormeresz/profAssistant-sub000/internal/extraction"
	"github.com/gabormeresz/profAssistant-sub000/internal/rubric"
	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

func lessonContext(req *types.GenerationRequest) string {
	return baseContext(req, fmt.Sprintf("Lesson duration: %d minutes", req.DurationMinutes))
}

// LessonPlanDomain configures lesson plan generation
func LessonPlanDomain() *Domain {
	return &Domain{
		Kind:         types.KindLessonPlan,
		Rubric:       rubric.LessonPlan(),
		SystemPrompt: systemPrompt("You are an instructional designer who writes detailed, timed lesson plans."),
		UserPrompt:   userPrompt("a lesson plan with timed activities", lessonContext),
		Context:      lessonContext,
		Requirements: func(req *types.GenerationRequest) []rubric.Requirement {
			return []rubric.Requirement{{Name: "total_minutes", Description: "minutes across all activities", Expected: req.DurationMinutes}}
		},
		NewExtractor: func(req *types.GenerationRequest, model ai.Model, logger *slog.Logger) extraction.Extractor {
			return extraction.New(model, LessonPlanSchema(req.DurationMinutes), logger)
		},
	}
}

// LessonPlanSchema requires activity timings to add up to the duration
func LessonPlanSchema(duration int) extraction.Schema[LessonPlan] {
	activities := extraction.CollectionConstraint{Field: "activities", Min: 1, Max: 20}
	return extraction.Schema[LessonPlan]{
		Name:        "lesson_plan",
		Description: fmt.Sprintf("%s; activity minutes must total %d", extraction.Describe(activities), duration),
		Document: object([]string{"title", "duration_minutes", "objectives", "activities", "assessment"}, map[string]interface{}{
			"title":            str(),
			"duration_minutes": integer(),
			"objectives":       array(str(), 1, 0),
			"activities": array(object([]string{"name", "minutes", "description"}, map[string]interface{}{
				"name":        str(),
				"minutes":     integer(),
				"description": str(),
			}), 1, 20),
			"assessment": str(),
			"materials":  array(str(), 0, 0),
		}),
		Validate: func(p *LessonPlan) error {
			if err := extraction.ConstrainCollection(p.Activities, activities, nil); err != nil {
				return err
			}
			if p.DurationMinutes != duration {
				return fmt.Errorf("duration_minutes is %d, expected %d", p.DurationMinutes, duration)
			}
			if total := p.TotalMinutes(); total != duration {
				return fmt.Errorf("activities total %d minutes, expected %d", total, duration)
			}
			return nil
		},
	}
}
