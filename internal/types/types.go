package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ArtifactKind identifies which educational artifact a conversation produces
type ArtifactKind string

const (
	KindCourseOutline ArtifactKind = "course_outline"
	KindLessonPlan    ArtifactKind = "lesson_plan"
	KindPresentation  ArtifactKind = "presentation"
	KindAssessment    ArtifactKind = "assessment"
)

// IsValid checks if the artifact kind value is valid
func (k ArtifactKind) IsValid() bool {
	switch k {
	case KindCourseOutline, KindLessonPlan, KindPresentation, KindAssessment:
		return true
	}
	return false
}

// AllArtifactKinds returns the supported kinds in display order
func AllArtifactKinds() []ArtifactKind {
	return []ArtifactKind{KindCourseOutline, KindLessonPlan, KindPresentation, KindAssessment}
}

// Role tags a message in the conversation history
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// IsValid checks if the role value is valid
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// ToolCall is a tool invocation requested by the model
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolResult is the outcome of one ToolCall, always delivered back to the model
type ToolResult struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// Message is one role-tagged entry of the conversation history.
// Assistant messages may carry tool calls; tool messages carry the
// ToolCallID they answer.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
	IsError    bool       `json:"is_error,omitempty"`
}

// NewSystemMessage creates a system message
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message with optional tool calls
func NewAssistantMessage(content string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// NewToolMessage wraps a tool result as a history message
func NewToolMessage(result ToolResult) Message {
	return Message{
		Role:       RoleTool,
		Content:    result.Content,
		ToolCallID: result.CallID,
		Name:       result.Name,
		IsError:    result.IsError,
	}
}

// ConversationState is the mutable state threaded through one workflow run.
// It is persisted as a checkpoint keyed by ThreadID after every turn.
type ConversationState struct {
	ThreadID       string       `json:"thread_id"`
	Kind           ArtifactKind `json:"kind"`
	IsFirstCall    bool         `json:"is_first_call"`
	Turn           int          `json:"turn"`
	MessageHistory []Message    `json:"message_history"`

	// Request holds the first-call parameters so follow-up turns are scored
	// against the same requirements.
	Request *GenerationRequest `json:"request,omitempty"`

	// Per-turn fields, cleared by ResetTurn
	PendingResponse   *Message           `json:"-"`
	Scratch           []Message          `json:"-"`
	ToolRounds        int                `json:"-"`
	Draft             string             `json:"draft,omitempty"`
	EvaluationCount   int                `json:"evaluation_count"`
	EvaluationHistory []EvaluationResult `json:"evaluation_history"`
	CurrentScore      *float64           `json:"current_score,omitempty"`
	FinalArtifact     json.RawMessage    `json:"final_artifact,omitempty"`
	Error             string             `json:"error,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversationState creates the state for a brand new thread
func NewConversationState(threadID string, req *GenerationRequest) *ConversationState {
	stored := *req
	stored.ThreadID = threadID
	return &ConversationState{
		ThreadID:    threadID,
		Kind:        req.Kind,
		IsFirstCall: true,
		Request:     &stored,
	}
}

// ResetTurn clears every per-turn field. The evaluation history is
// intentionally scoped to a single turn: each follow-up restarts the
// quality loop from scratch.
func (s *ConversationState) ResetTurn() {
	s.PendingResponse = nil
	s.Scratch = nil
	s.ToolRounds = 0
	s.Draft = ""
	s.EvaluationCount = 0
	s.EvaluationHistory = []EvaluationResult{}
	s.CurrentScore = nil
	s.FinalArtifact = nil
	s.Error = ""
}

// AppendMessage appends to the persisted history
func (s *ConversationState) AppendMessage(m Message) {
	s.MessageHistory = append(s.MessageHistory, m)
}

// LastEvaluation returns the most recent successful evaluation, or nil
func (s *ConversationState) LastEvaluation() *EvaluationResult {
	if len(s.EvaluationHistory) == 0 {
		return nil
	}
	return &s.EvaluationHistory[len(s.EvaluationHistory)-1]
}

// WorkingMessages returns the persisted history followed by the transient
// scratch messages of the current generation phase.
func (s *ConversationState) WorkingMessages() []Message {
	out := make([]Message, 0, len(s.MessageHistory)+len(s.Scratch))
	out = append(out, s.MessageHistory...)
	return append(out, s.Scratch...)
}

// Validate checks the persisted invariants of a loaded checkpoint
func (s *ConversationState) Validate() error {
	if strings.TrimSpace(s.ThreadID) == "" {
		return fmt.Errorf("thread_id is required")
	}
	if !s.Kind.IsValid() {
		return fmt.Errorf("invalid artifact kind: %s", s.Kind)
	}
	if s.EvaluationCount < 0 {
		return fmt.Errorf("evaluation_count cannot be negative (got %d)", s.EvaluationCount)
	}
	if len(s.EvaluationHistory) > s.EvaluationCount {
		return fmt.Errorf("evaluation_history has %d entries but only %d evaluations ran",
			len(s.EvaluationHistory), s.EvaluationCount)
	}
	if s.CurrentScore != nil && (*s.CurrentScore < 0 || *s.CurrentScore > 1) {
		return fmt.Errorf("current_score must be between 0 and 1 (got %f)", *s.CurrentScore)
	}
	for i, m := range s.MessageHistory {
		if !m.Role.IsValid() {
			return fmt.Errorf("message %d has invalid role: %s", i, m.Role)
		}
	}
	return nil
}
