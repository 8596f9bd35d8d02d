package iterative

import (
	"context"

	"github.com/gabormeresz/profAssistant-sub000/internal/ai"
	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

// Generator is the generation step: one model call that either requests
// tools or answers. It neither routes nor touches evaluation state.
type Generator struct {
	model     ai.Model
	maxTokens int
}

// NewGenerator creates a generator. maxTokens <= 0 uses the model default.
func NewGenerator(model ai.Model, maxTokens int) *Generator {
	return &Generator{model: model, maxTokens: maxTokens}
}

// Generate invokes the model. tools may be nil to force a final answer.
func (g *Generator) Generate(ctx context.Context, system string, messages []types.Message, tools []ai.ToolSpec) (*ai.Response, error) {
	return g.model.Invoke(ctx, &ai.Request{
		Purpose:   ai.PurposeGenerate,
		System:    system,
		Messages:  messages,
		Tools:     tools,
		MaxTokens: g.maxTokens,
	})
}
