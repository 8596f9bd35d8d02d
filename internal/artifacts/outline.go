package artifacts

import (
	"fmt"
	"log/slog"

	"github.com/gabormeresz/profAssistant-sub000/internal/ai"
	"github.com/gabormeresz/profAssistant-sub000/internal/extraction"
	"github.com/gabormeresz/profAssistant-sub000/internal/rubric"
	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

func outlineContext(req *types.GenerationRequest) string {
	return baseContext(req, fmt.Sprintf("Number of classes: %d", req.NumberOfClasses))
}

// CourseOutlineDomain configures course outline generation
func CourseOutlineDomain() *Domain {
	return &Domain{
		Kind:         types.KindCourseOutline,
		Rubric:       rubric.CourseOutline(),
		SystemPrompt: systemPrompt("You are an experienced curriculum designer who writes course outlines for university teachers."),
		UserPrompt:   userPrompt("a course outline with one section per class", outlineContext),
		Context:      outlineContext,
		Requirements: func(req *types.GenerationRequest) []rubric.Requirement {
			return []rubric.Requirement{{Name: "classes", Description: "class sessions", Expected: req.NumberOfClasses}}
		},
		NewExtractor: func(req *types.GenerationRequest, model ai.Model, logger *slog.Logger) extraction.Extractor {
			return extraction.New(model, CourseOutlineSchema(req.NumberOfClasses), logger)
		},
	}
}

// CourseOutlineSchema locks the class count to the request
func CourseOutlineSchema(classes int) extraction.Schema[CourseOutline] {
	count := extraction.Exactly("classes", classes)
	return extraction.Schema[CourseOutline]{
		Name:        "course_outline",
		Description: extraction.Describe(count),
		Document: object([]string{"title", "classes"}, map[string]interface{}{
			"title":       str(),
			"description": str(),
			"classes": array(object([]string{"number", "title", "objectives", "topics"}, map[string]interface{}{
				"number":     integer(),
				"title":      str(),
				"objectives": array(str(), 1, 0),
				"topics":     array(str(), 1, 0),
			}), classes, classes),
		}),
		Validate: func(o *CourseOutline) error {
			if err := extraction.ConstrainCollection(o.Classes, count, nil); err != nil {
				return err
			}
			for i, c := range o.Classes {
				if c.Number != i+1 {
					return fmt.Errorf("classes[%d] is numbered %d, expected %d", i, c.Number, i+1)
				}
			}
			return nil
		},
	}
}
