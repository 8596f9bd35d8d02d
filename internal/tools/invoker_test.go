package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabormeresz/profAssistant-sub000/internal/ai"
	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

// mockTool records calls and delegates to executeFunc
type mockTool struct {
	name        string
	executeFunc func(ctx context.Context, args json.RawMessage) (string, error)
	calls       int
}

func (m *mockTool) Spec() ai.ToolSpec {
	return ai.ToolSpec{Name: m.name, Description: m.name, Parameters: queryParameters, Required: []string{"query"}}
}

func (m *mockTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	m.calls++
	return m.executeFunc(ctx, args)
}

func echoTool(name string) *mockTool {
	return &mockTool{name: name, executeFunc: func(_ context.Context, args json.RawMessage) (string, error) {
		q, err := parseQuery(args)
		if err != nil {
			return "", err
		}
		return "result for " + q, nil
	}}
}

func call(id, name, args string) types.ToolCall {
	return types.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(args)}
}

type observed struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *observed) observer() ToolObserver {
	return func(tool, outcome string, _ time.Duration) {
		o.mu.Lock()
		o.outcomes = append(o.outcomes, tool+":"+outcome)
		o.mu.Unlock()
	}
}

func TestInvokerResultsInOrder(t *testing.T) {
	inv := NewInvoker(DefaultInvokerConfig(), nil, echoTool("a"), echoTool("b"))

	results := inv.Invoke(context.Background(), []types.ToolCall{
		call("1", "b", `{"query":"x"}`),
		call("2", "a", `{"query":"y"}`),
		call("3", "missing", `{}`),
	})
	require.Len(t, results, 3)
	assert.Equal(t, "1", results[0].CallID)
	assert.Equal(t, "result for x", results[0].Content)
	assert.Equal(t, "2", results[1].CallID)
	assert.Equal(t, "result for y", results[1].Content)
	assert.True(t, results[2].IsError)
	assert.Equal(t, `Error: unknown tool "missing"`, results[2].Content)

	specs := inv.Specs()
	require.Len(t, specs, 2)
	assert.Equal(t, "a", specs[0].Name)
	assert.Equal(t, "b", specs[1].Name)
}

func TestInvokerFailuresBecomeResults(t *testing.T) {
	failing := &mockTool{name: "fail", executeFunc: func(context.Context, json.RawMessage) (string, error) {
		return "", errors.New("upstream 503")
	}}
	panicking := &mockTool{name: "panic", executeFunc: func(context.Context, json.RawMessage) (string, error) {
		panic("boom")
	}}
	empty := &mockTool{name: "empty", executeFunc: func(context.Context, json.RawMessage) (string, error) {
		return "  \n", nil
	}}
	inv := NewInvoker(DefaultInvokerConfig(), nil, failing, panicking, empty, echoTool("echo"))

	results := inv.Invoke(context.Background(), []types.ToolCall{
		call("1", "fail", `{"query":"x"}`),
		call("2", "panic", `{"query":"x"}`),
		call("3", "empty", `{"query":"x"}`),
		call("4", "echo", `{"query":"cells"`),
		call("5", "echo", ``),
		call("6", "echo", `[1, 2`),
	})
	assert.Equal(t, "Error: upstream 503", results[0].Content)
	assert.True(t, results[0].IsError)
	assert.Equal(t, "Error: tool panicked: boom", results[1].Content)
	assert.True(t, results[1].IsError)
	assert.Equal(t, noResults, results[2].Content)
	assert.False(t, results[2].IsError)
	assert.Equal(t, "result for cells", results[3].Content, "unterminated arguments are repaired")
	assert.False(t, results[3].IsError)
	assert.Equal(t, "Error: missing arguments: query is required", results[4].Content)
	assert.True(t, strings.HasPrefix(results[5].Content, "Error: invalid arguments"), results[5].Content)
}

func TestInvokerSanitizesAndTruncates(t *testing.T) {
	noisy := &mockTool{name: "noisy", executeFunc: func(context.Context, json.RawMessage) (string, error) {
		return "line\x00one\x1b\r\n\tline two", nil
	}}
	long := &mockTool{name: "long", executeFunc: func(context.Context, json.RawMessage) (string, error) {
		return strings.Repeat("photosynthesis converts light energy ", 200), nil
	}}
	cfg := DefaultInvokerConfig()
	cfg.MaxResultTokens = 20
	inv := NewInvoker(cfg, nil, noisy, long)

	results := inv.Invoke(context.Background(), []types.ToolCall{
		call("1", "noisy", `{}`),
		call("2", "long", `{}`),
	})
	assert.Equal(t, "lineone\n\tline two", results[0].Content)
	assert.True(t, strings.HasSuffix(results[1].Content, "..."))
	assert.Less(t, len(results[1].Content), 200)
}

func TestInvokerCache(t *testing.T) {
	var obs observed
	tool := echoTool("search")
	cfg := DefaultInvokerConfig()
	cfg.Observer = obs.observer()
	inv := NewInvoker(cfg, nil, tool)

	now := time.Now()
	inv.cache.now = func() time.Time { return now }

	first := inv.Invoke(context.Background(), []types.ToolCall{call("1", "search", `{"query":"cells"}`)})
	second := inv.Invoke(context.Background(), []types.ToolCall{call("2", "search", `{ "query": "cells" }`)})
	assert.Equal(t, first[0].Content, second[0].Content)
	assert.Equal(t, "2", second[0].CallID, "cached results carry the current call id")
	assert.Equal(t, 1, tool.calls)

	now = now.Add(defaultCacheTTL)
	inv.Invoke(context.Background(), []types.ToolCall{call("3", "search", `{"query":"cells"}`)})
	assert.Equal(t, 2, tool.calls, "expired entries are refetched")

	assert.Equal(t, []string{"search:ok", "search:cached", "search:ok"}, obs.outcomes)
}

func TestInvokerDoesNotCacheErrorsOrExcludedTools(t *testing.T) {
	fails := 0
	flaky := &mockTool{name: "flaky", executeFunc: func(context.Context, json.RawMessage) (string, error) {
		fails++
		if fails == 1 {
			return "", errors.New("timeout")
		}
		return "ok", nil
	}}
	docs := &mockTool{name: DocumentSearchName, executeFunc: func(context.Context, json.RawMessage) (string, error) {
		return "doc", nil
	}}
	inv := NewInvoker(DefaultInvokerConfig(), nil, flaky, docs)

	ctx := context.Background()
	assert.True(t, inv.Invoke(ctx, []types.ToolCall{call("1", "flaky", `{}`)})[0].IsError)
	assert.Equal(t, "ok", inv.Invoke(ctx, []types.ToolCall{call("2", "flaky", `{}`)})[0].Content)

	inv.Invoke(ctx, []types.ToolCall{call("3", DocumentSearchName, `{"query":"a"}`)})
	inv.Invoke(ctx, []types.ToolCall{call("4", DocumentSearchName, `{"query":"a"}`)})
	assert.Equal(t, 2, docs.calls)
}

func TestInvokerWithSharesCache(t *testing.T) {
	base := echoTool("search")
	inv := NewInvoker(DefaultInvokerConfig(), nil, base)
	scoped := inv.With(echoTool("extra"))

	assert.Len(t, inv.Specs(), 1)
	assert.Len(t, scoped.Specs(), 2)

	inv.Invoke(context.Background(), []types.ToolCall{call("1", "search", `{"query":"q"}`)})
	scoped.Invoke(context.Background(), []types.ToolCall{call("2", "search", `{"query":"q"}`)})
	assert.Equal(t, 1, base.calls)
}

func TestCacheKeyCanonical(t *testing.T) {
	assert.Equal(t, cacheKey("t", json.RawMessage(`{"b":1,"a":2}`)), cacheKey("t", json.RawMessage(`{"a":2, "b":1}`)))
	assert.NotEqual(t, cacheKey("t", json.RawMessage(`{"a":1}`)), cacheKey("u", json.RawMessage(`{"a":1}`)))
	assert.Equal(t, "t:{}", cacheKey("t", nil))
}
