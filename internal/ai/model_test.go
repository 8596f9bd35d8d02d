package ai

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

func TestRequestSystemPromptAppendsSchema(t *testing.T) {
	req := &Request{
		System: "You are an evaluator.",
		Schema: &Schema{
			Name:     "evaluation",
			Document: map[string]interface{}{"type": "object"},
		},
	}
	prompt := req.SystemPrompt()
	assert.True(t, strings.HasPrefix(prompt, "You are an evaluator."))
	assert.Contains(t, prompt, "evaluation schema")
	assert.Contains(t, prompt, `"type": "object"`)

	plain := &Request{System: "plain"}
	assert.Equal(t, "plain", plain.SystemPrompt())
}

func TestResponseHasToolCalls(t *testing.T) {
	var nilResp *Response
	assert.False(t, nilResp.HasToolCalls())
	assert.False(t, (&Response{Text: "done"}).HasToolCalls())
	assert.True(t, (&Response{ToolCalls: []types.ToolCall{{ID: "1", Name: "web_search"}}}).HasToolCalls())
}

func TestNewModelRequiresKnownProvider(t *testing.T) {
	_, err := NewModel(Config{Provider: "cohere", APIKey: "k"})
	require.Error(t, err)

	m, err := NewModel(Config{Provider: "openai", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIModel{}, m)

	m, err = NewModel(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &AnthropicModel{}, m)
}

func TestToOpenAIMessages(t *testing.T) {
	history := []types.Message{
		types.NewSystemMessage("seed"),
		types.NewUserMessage("write a quiz"),
		types.NewAssistantMessage("", types.ToolCall{ID: "c1", Name: "web_search", Arguments: json.RawMessage(`{"query":"x"}`)}),
		types.NewToolMessage(types.ToolResult{CallID: "c1", Name: "web_search", Content: "[1] result"}),
	}
	out := toOpenAIMessages("system prompt", history)
	require.Len(t, out, 5)
	assert.Equal(t, openai.ChatMessageRoleSystem, out[0].Role)
	assert.Equal(t, "system prompt", out[0].Content)
	assert.Equal(t, openai.ChatMessageRoleAssistant, out[3].Role)
	require.Len(t, out[3].ToolCalls, 1)
	assert.Equal(t, `{"query":"x"}`, out[3].ToolCalls[0].Function.Arguments)
	assert.Equal(t, openai.ChatMessageRoleTool, out[4].Role)
	assert.Equal(t, "c1", out[4].ToolCallID)
}

func TestToAnthropicMessagesLiftsSystemAndMergesResults(t *testing.T) {
	history := []types.Message{
		types.NewSystemMessage("seed"),
		types.NewUserMessage("write a quiz"),
		types.NewAssistantMessage("", types.ToolCall{ID: "a", Name: "web_search"}, types.ToolCall{ID: "b", Name: "wikipedia_search"}),
		types.NewToolMessage(types.ToolResult{CallID: "a", Content: "one"}),
		types.NewToolMessage(types.ToolResult{CallID: "b", Content: "two"}),
	}
	out, system := toAnthropicMessages(history)
	assert.Equal(t, "seed", system)
	// user, assistant(tool_use x2), user(tool_result x2)
	require.Len(t, out, 3)
	assert.Len(t, out[1].Content, 2)
	assert.Len(t, out[2].Content, 2)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, estimateTokens("  "))
	assert.Equal(t, 2, estimateTokens("two words"))
	assert.Equal(t, 25, estimateTokens(strings.Repeat("a", 100)))
}
