package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gabormeresz/profAssistant-sub000/internal/ai"
	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

const noResults = "No results found."

// Tool call outcomes reported to a ToolObserver
const (
	OutcomeOK     = "ok"
	OutcomeError  = "error"
	OutcomeCached = "cached"
)

// ToolObserver is notified after every call
type ToolObserver func(tool, outcome string, elapsed time.Duration)

// InvokerConfig configures result handling
type InvokerConfig struct {
	MaxResultTokens int
	Cache           CacheConfig
	Observer        ToolObserver
}

// DefaultInvokerConfig returns the defaults used by the CLI
func DefaultInvokerConfig() InvokerConfig {
	return InvokerConfig{
		MaxResultTokens: 1500,
		Cache:           DefaultCacheConfig(),
	}
}

// Invoker dispatches tool calls to registered tools
type Invoker struct {
	cfg    InvokerConfig
	tools  map[string]Tool
	order  []string
	cache  *resultCache
	logger *slog.Logger
}

// NewInvoker creates an invoker. Tools registered later replace earlier
// tools of the same name.
func NewInvoker(cfg InvokerConfig, logger *slog.Logger, tools ...Tool) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	inv := &Invoker{
		cfg:    cfg,
		tools:  make(map[string]Tool),
		cache:  newResultCache(cfg.Cache),
		logger: logger,
	}
	inv.register(tools...)
	return inv
}

func (inv *Invoker) register(tools ...Tool) {
	for _, t := range tools {
		name := t.Spec().Name
		if _, exists := inv.tools[name]; !exists {
			inv.order = append(inv.order, name)
		}
		inv.tools[name] = t
	}
}

// With returns an invoker with extra tools that shares this invoker's
// configuration and cache. Used for request-scoped tools.
func (inv *Invoker) With(tools ...Tool) *Invoker {
	cp := &Invoker{
		cfg:    inv.cfg,
		tools:  make(map[string]Tool, len(inv.tools)+len(tools)),
		order:  append([]string(nil), inv.order...),
		cache:  inv.cache,
		logger: inv.logger,
	}
	for k, v := range inv.tools {
		cp.tools[k] = v
	}
	cp.register(tools...)
	return cp
}

// Specs returns the specs of every registered tool, in registration order
func (inv *Invoker) Specs() []ai.ToolSpec {
	if inv == nil {
		return nil
	}
	specs := make([]ai.ToolSpec, 0, len(inv.order))
	for _, name := range inv.order {
		specs = append(specs, inv.tools[name].Spec())
	}
	return specs
}

// Invoke executes calls sequentially in request order. It always returns
// exactly one result per call.
func (inv *Invoker) Invoke(ctx context.Context, calls []types.ToolCall) []types.ToolResult {
	results := make([]types.ToolResult, 0, len(calls))
	for _, call := range calls {
		results = append(results, inv.invokeOne(ctx, call))
	}
	return results
}

func (inv *Invoker) invokeOne(ctx context.Context, call types.ToolCall) types.ToolResult {
	start := time.Now()
	result := types.ToolResult{CallID: call.ID, Name: call.Name}

	tool, ok := inv.tools[call.Name]
	if !ok {
		inv.observe(call.Name, OutcomeError, start)
		result.Content = fmt.Sprintf("Error: unknown tool %q", call.Name)
		result.IsError = true
		return result
	}

	args := inv.repairArguments(call)
	key := cacheKey(call.Name, args)
	if content, hit := inv.cache.get(call.Name, key); hit {
		inv.observe(call.Name, OutcomeCached, start)
		result.Content = content
		return result
	}

	output, err := inv.execute(ctx, tool, args)
	if err != nil {
		inv.logger.Warn("tool call failed",
			slog.String("tool", call.Name),
			slog.String("call_id", call.ID),
			slog.Any("error", err))
		inv.observe(call.Name, OutcomeError, start)
		result.Content = "Error: " + sanitize(err.Error())
		result.IsError = true
		return result
	}

	output = sanitize(output)
	if strings.TrimSpace(output) == "" {
		output = noResults
	}
	output = ai.TruncateToTokens(output, inv.cfg.MaxResultTokens)
	inv.cache.put(call.Name, key, output)
	inv.observe(call.Name, OutcomeOK, start)
	result.Content = output
	return result
}

// repairArguments fixes malformed argument JSON from the model, such as a
// missing closing brace. Arguments that cannot be repaired into an object
// are passed through so the tool reports them.
func (inv *Invoker) repairArguments(call types.ToolCall) json.RawMessage {
	if len(call.Arguments) == 0 || json.Valid(call.Arguments) {
		return call.Arguments
	}
	parsed := ai.Parse[map[string]interface{}](string(call.Arguments), ai.ParseOptions{
		Context:   "tool arguments",
		LogErrors: ai.Bool(false),
	})
	if !parsed.Success {
		return call.Arguments
	}
	repaired, err := json.Marshal(parsed.Data)
	if err != nil {
		return call.Arguments
	}
	inv.logger.Debug("repaired tool arguments",
		slog.String("tool", call.Name),
		slog.String("call_id", call.ID),
		slog.String("strategy", parsed.Strategy))
	return repaired
}

// execute runs one tool, turning panics into errors
func (inv *Invoker) execute(ctx context.Context, tool Tool, args json.RawMessage) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()
	return tool.Execute(ctx, args)
}

func (inv *Invoker) observe(tool, outcome string, start time.Time) {
	if inv.cfg.Observer != nil {
		inv.cfg.Observer(tool, outcome, time.Since(start))
	}
}

// sanitize drops control characters other than newlines and tabs
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == '\r':
			return -1
		case r < 0x20 || r == 0x7f || (r >= 0x80 && r < 0xa0):
			return -1
		}
		return r
	}, s)
}
