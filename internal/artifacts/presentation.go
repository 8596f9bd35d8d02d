package artifacts

import (
	"fmt"
	"log/slog"

	"github.com/gabormeresz/profAssistant-sub000/internal/ai"
	"github.com/gabormeresz/profAssistant-sub000/internal/extraction"
	"github.com/gabormeresz/profAssistant-sub000/internal/rubric"
	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

func presentationContext(req *types.GenerationRequest) string {
	return baseContext(req, fmt.Sprintf("Number of slides: %d", req.SlideCount))
}

// PresentationDomain configures slide deck generation
func PresentationDomain() *Domain {
	return &Domain{
		Kind:         types.KindPresentation,
		Rubric:       rubric.Presentation(),
		SystemPrompt: systemPrompt("You write clear lecture slide decks with concise bullets and helpful speaker notes."),
		UserPrompt:   userPrompt("a slide deck, one heading per slide", presentationContext),
		Context:      presentationContext,
		Requirements: func(req *types.GenerationRequest) []rubric.Requirement {
			return []rubric.Requirement{{Name: "slides", Description: "slides", Expected: req.SlideCount}}
		},
		NewExtractor: func(req *types.GenerationRequest, model ai.Model, logger *slog.Logger) extraction.Extractor {
			return extraction.New(model, PresentationSchema(req.SlideCount), logger)
		},
	}
}

// PresentationSchema locks the slide count to the request
func PresentationSchema(slides int) extraction.Schema[Presentation] {
	count := extraction.Exactly("slides", slides)
	return extraction.Schema[Presentation]{
		Name:        "presentation",
		Description: extraction.Describe(count, extraction.CollectionConstraint{Field: "bullets per slide", Min: 1, Max: 8}),
		Document: object([]string{"title", "slides"}, map[string]interface{}{
			"title": str(),
			"slides": array(object([]string{"title", "bullets"}, map[string]interface{}{
				"title":         str(),
				"bullets":       array(str(), 1, 8),
				"speaker_notes": str(),
			}), slides, slides),
		}),
		Validate: func(p *Presentation) error {
			return extraction.ConstrainCollection(p.Slides, count, nil)
		},
	}
}
