package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

// AnthropicModel invokes Claude through the Messages API
type AnthropicModel struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	retry     *retrier
	logger    *slog.Logger
}

var _ Model = (*AnthropicModel)(nil)

// NewAnthropicModel creates an Anthropic-backed model. cfg.APIKey must be set.
func NewAnthropicModel(cfg Config) *AnthropicModel {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	model := cfg.Model
	if model == "" {
		model = ModelSonnet
	}
	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	return &AnthropicModel{
		client:    &client,
		model:     model,
		maxTokens: cfg.MaxTokens,
		retry:     newRetrier(cfg.Retry, logger),
		logger:    logger,
	}
}

// Invoke sends the request and translates the reply into a Response
func (m *AnthropicModel) Invoke(ctx context.Context, req *Request) (*Response, error) {
	params, err := m.buildParams(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var message *anthropic.Message
	err = m.retry.do(ctx, string(req.Purpose), func(attemptCtx context.Context) error {
		resp, apiErr := m.client.Messages.New(attemptCtx, params)
		if apiErr != nil {
			return apiErr
		}
		message = resp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call failed: %w", err)
	}

	resp := &Response{
		StopReason: string(message.StopReason),
		Usage: Usage{
			InputTokens:  message.Usage.InputTokens,
			OutputTokens: message.Usage.OutputTokens,
		},
	}
	for _, block := range message.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Text += b.Text
		case anthropic.ToolUseBlock:
			resp.ToolCalls = append(resp.ToolCalls, types.ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: json.RawMessage(b.Input),
			})
		}
	}

	m.logger.Debug("anthropic call complete",
		slog.String("purpose", string(req.Purpose)),
		slog.String("stop_reason", resp.StopReason),
		slog.Int("tool_calls", len(resp.ToolCalls)),
		slog.Int64("input_tokens", resp.Usage.InputTokens),
		slog.Int64("output_tokens", resp.Usage.OutputTokens),
		slog.Duration("duration", time.Since(start)))

	return resp, nil
}

func (m *AnthropicModel) buildParams(req *Request) (anthropic.MessageNewParams, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 && m.maxTokens > 0 {
		maxTokens = m.maxTokens
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		MaxTokens: int64(maxTokens),
	}

	system := req.SystemPrompt()
	messages, inlineSystem := toAnthropicMessages(req.Messages)
	if inlineSystem != "" {
		if system != "" {
			system = inlineSystem + "\n\n" + system
		} else {
			system = inlineSystem
		}
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(messages) == 0 {
		return params, fmt.Errorf("anthropic request needs at least one non-system message")
	}
	params.Messages = messages

	for _, spec := range req.Tools {
		tool := anthropic.ToolParam{
			Name:        spec.Name,
			Description: anthropic.String(spec.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: spec.Parameters,
				Required:   spec.Required,
			},
		}
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return params, nil
}

// toAnthropicMessages maps history onto Anthropic turns. System messages are
// lifted out since the API takes them as a separate parameter; consecutive
// tool results are merged into one user turn as the API requires.
func toAnthropicMessages(history []types.Message) ([]anthropic.MessageParam, string) {
	var system string
	var out []anthropic.MessageParam
	var pendingResults []anthropic.ContentBlockParamUnion

	flushResults := func() {
		if len(pendingResults) > 0 {
			out = append(out, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, msg := range history {
		switch msg.Role {
		case types.RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
		case types.RoleTool:
			pendingResults = append(pendingResults,
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, msg.IsError))
		case types.RoleUser:
			flushResults()
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case types.RoleAssistant:
			flushResults()
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				var input any = map[string]any{}
				if len(call.Arguments) > 0 {
					input = call.Arguments
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, input, call.Name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		}
	}
	flushResults()
	return out, system
}
