package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

// OpenAIModel invokes any OpenAI-compatible chat completions endpoint
type OpenAIModel struct {
	client    *openai.Client
	model     string
	maxTokens int
	retry     *retrier
	logger    *slog.Logger
}

var _ Model = (*OpenAIModel)(nil)

// NewOpenAIModel creates an OpenAI-backed model. cfg.APIKey must be set.
func NewOpenAIModel(cfg Config) *OpenAIModel {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	model := cfg.Model
	if model == "" {
		model = ModelGPT4o
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIModel{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     model,
		maxTokens: cfg.MaxTokens,
		retry:     newRetrier(cfg.Retry, logger),
		logger:    logger,
	}
}

// Invoke sends the request as a chat completion
func (m *OpenAIModel) Invoke(ctx context.Context, req *Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 && m.maxTokens > 0 {
		maxTokens = m.maxTokens
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	chatReq := openai.ChatCompletionRequest{
		Model:               m.model,
		Messages:            toOpenAIMessages(req.SystemPrompt(), req.Messages),
		MaxCompletionTokens: maxTokens,
	}
	if req.Schema != nil && len(req.Tools) == 0 {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	for _, spec := range req.Tools {
		chatReq.Tools = append(chatReq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters: map[string]interface{}{
					"type":       "object",
					"properties": spec.Parameters,
					"required":   spec.Required,
				},
			},
		})
	}

	var completion openai.ChatCompletionResponse
	err := m.retry.do(ctx, string(req.Purpose), func(attemptCtx context.Context) error {
		resp, apiErr := m.client.CreateChatCompletion(attemptCtx, chatReq)
		if apiErr != nil {
			return apiErr
		}
		completion = resp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI returned no choices")
	}

	choice := completion.Choices[0]
	resp := &Response{
		Text:       choice.Message.Content,
		StopReason: string(choice.FinishReason),
		Usage: Usage{
			InputTokens:  int64(completion.Usage.PromptTokens),
			OutputTokens: int64(completion.Usage.CompletionTokens),
		},
	}
	for _, call := range choice.Message.ToolCalls {
		args := json.RawMessage(call.Function.Arguments)
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		resp.ToolCalls = append(resp.ToolCalls, types.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: args,
		})
	}

	m.logger.Debug("openai call complete",
		slog.String("purpose", string(req.Purpose)),
		slog.String("finish_reason", resp.StopReason),
		slog.Int("tool_calls", len(resp.ToolCalls)),
		slog.Int64("input_tokens", resp.Usage.InputTokens),
		slog.Int64("output_tokens", resp.Usage.OutputTokens))

	return resp, nil
}

func toOpenAIMessages(system string, history []types.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, msg := range history {
		switch msg.Role {
		case types.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: msg.Content})
		case types.RoleUser:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: msg.Content})
		case types.RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Content,
				ToolCallID: msg.ToolCallID,
			})
		case types.RoleAssistant:
			m := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: msg.Content}
			for _, call := range msg.ToolCalls {
				m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
					ID:   call.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      call.Name,
						Arguments: string(call.Arguments),
					},
				})
			}
			out = append(out, m)
		}
	}
	return out
}
