// Package aitest provides a scripted ai.Model for tests.
package aitest

import (
	"context"
	"errors"
	"sync"

	"github.com/gabormeresz/profAssistant-sub000/internal/ai"
	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

// ErrScriptExhausted is returned when a ScriptedModel runs out of steps
var ErrScriptExhausted = errors.New("aitest: no scripted response left")

// Step is one scripted reply. Exactly one of Response or Err is used.
type Step struct {
	Response *ai.Response
	Err      error
}

// Text returns a step replying with final text
func Text(text string) Step {
	return Step{Response: &ai.Response{Text: text, StopReason: "end_turn"}}
}

// ToolCalls returns a step requesting the given tool calls
func ToolCalls(calls ...types.ToolCall) Step {
	return Step{Response: &ai.Response{ToolCalls: calls, StopReason: "tool_use"}}
}

// Fail returns a step that fails with err
func Fail(err error) Step {
	return Step{Err: err}
}

// ScriptedModel replays steps per Purpose in FIFO order and records every
// request. A Handler, when set, takes precedence over scripted steps.
type ScriptedModel struct {
	mu       sync.Mutex
	steps    map[ai.Purpose][]Step
	requests []ai.Request

	// Handler answers requests dynamically
	Handler func(ctx context.Context, req *ai.Request) (*ai.Response, error)
}

var _ ai.Model = (*ScriptedModel)(nil)

// NewScriptedModel creates an empty script
func NewScriptedModel() *ScriptedModel {
	return &ScriptedModel{steps: make(map[ai.Purpose][]Step)}
}

// On queues steps for a purpose and returns the model for chaining
func (m *ScriptedModel) On(purpose ai.Purpose, steps ...Step) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps[purpose] = append(m.steps[purpose], steps...)
	return m
}

// Invoke implements ai.Model
func (m *ScriptedModel) Invoke(ctx context.Context, req *ai.Request) (*ai.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	recorded := *req
	recorded.Messages = append([]types.Message(nil), req.Messages...)
	m.requests = append(m.requests, recorded)
	handler := m.Handler
	var step Step
	var ok bool
	if handler == nil {
		queue := m.steps[req.Purpose]
		if len(queue) > 0 {
			step, ok = queue[0], true
			m.steps[req.Purpose] = queue[1:]
		}
	}
	m.mu.Unlock()

	if handler != nil {
		return handler(ctx, req)
	}
	if !ok {
		return nil, ErrScriptExhausted
	}
	if step.Err != nil {
		return nil, step.Err
	}
	resp := *step.Response
	return &resp, nil
}

// Requests returns a copy of every request received so far
func (m *ScriptedModel) Requests() []ai.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ai.Request(nil), m.requests...)
}

// RequestsFor returns the recorded requests of one purpose
func (m *ScriptedModel) RequestsFor(purpose ai.Purpose) []ai.Request {
	var out []ai.Request
	for _, r := range m.Requests() {
		if r.Purpose == purpose {
			out = append(out, r)
		}
	}
	return out
}

// Remaining returns how many steps are left for a purpose
func (m *ScriptedModel) Remaining(purpose ai.Purpose) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.steps[purpose])
}
