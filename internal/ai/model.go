package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

// Model constants. Environment overrides are applied by the config package.
const (
	// ModelSonnet is the default Anthropic model for generation and scoring
	ModelSonnet = "claude-sonnet-4-5-20250929"

	// ModelGPT4o is the default model for OpenAI-compatible endpoints
	ModelGPT4o = "gpt-4o"

	defaultMaxTokens = 4096
)

// Purpose tags what a model call is for. The same invocation primitive
// underlies generation, evaluation and extraction.
type Purpose string

const (
	PurposeGenerate Purpose = "generate"
	PurposeEvaluate Purpose = "evaluate"
	PurposeExtract  Purpose = "extract"
)

// ToolSpec describes a tool the model may call
type ToolSpec struct {
	Name        string
	Description string
	// Parameters is a JSON schema "properties" object
	Parameters map[string]interface{}
	Required   []string
}

// Schema constrains a model response to a JSON document
type Schema struct {
	Name        string
	Description string
	Document    map[string]interface{}
}

// Instructions renders the schema as a prompt appendix
func (s *Schema) Instructions() string {
	doc, err := json.MarshalIndent(s.Document, "", "  ")
	if err != nil {
		doc = []byte("{}")
	}
	var b strings.Builder
	b.WriteString("Respond ONLY with a single JSON object that matches the ")
	b.WriteString(s.Name)
	b.WriteString(" schema below. Do not wrap it in markdown and do not add commentary.\n")
	if s.Description != "" {
		b.WriteString(s.Description)
		b.WriteString("\n")
	}
	b.WriteString("JSON schema:\n")
	b.Write(doc)
	return b.String()
}

// Request is one model invocation
type Request struct {
	Purpose   Purpose
	System    string
	Messages  []types.Message
	Tools     []ToolSpec
	Schema    *Schema
	MaxTokens int
}

// SystemPrompt returns the system text with schema instructions appended
func (r *Request) SystemPrompt() string {
	if r.Schema == nil {
		return r.System
	}
	if r.System == "" {
		return r.Schema.Instructions()
	}
	return r.System + "\n\n" + r.Schema.Instructions()
}

func (r *Request) maxTokens() int {
	if r.MaxTokens <= 0 {
		return defaultMaxTokens
	}
	return r.MaxTokens
}

// Usage reports token consumption of one call
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Response is either final text or a set of tool-call requests
type Response struct {
	Text       string
	ToolCalls  []types.ToolCall
	StopReason string
	Usage      Usage
}

// HasToolCalls reports whether the model asked for tools instead of answering
func (r *Response) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// Message converts the response into an assistant history entry
func (r *Response) Message() types.Message {
	return types.NewAssistantMessage(r.Text, r.ToolCalls...)
}

// Model is the invocation primitive shared by every component
type Model interface {
	Invoke(ctx context.Context, req *Request) (*Response, error)
}

// Provider names accepted by NewModel
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Config selects and configures a model provider
type Config struct {
	Provider  string      // anthropic (default) or openai
	APIKey    string      // falls back to ANTHROPIC_API_KEY / OPENAI_API_KEY
	Model     string      // provider default when empty
	BaseURL   string      // optional, OpenAI-compatible endpoints only
	MaxTokens int         // default max tokens per call
	Retry     RetryConfig // uses DefaultRetryConfig when zero
	Logger    *slog.Logger
}

// NewModel builds the configured provider
func NewModel(cfg Config) (Model, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.Timeout == 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	switch strings.ToLower(cfg.Provider) {
	case "", ProviderAnthropic:
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
			if cfg.APIKey == "" {
				return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
			}
		}
		return NewAnthropicModel(cfg), nil
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
			if cfg.APIKey == "" {
				return nil, fmt.Errorf("OPENAI_API_KEY not set")
			}
		}
		return NewOpenAIModel(cfg), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}
