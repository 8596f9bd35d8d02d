// Package tools executes model-requested tool calls. Every failure is
// returned to the model as an error result so the loop never aborts on a
// broken tool.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gabormeresz/profAssistant-sub000/internal/ai"
)

// Tool is one callable capability
type Tool interface {
	Spec() ai.ToolSpec
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// Snippet is one retrieved passage, labeled with where it came from
type Snippet struct {
	Source string
	Text   string
	Score  float64
}

// DocumentSearcher retrieves passages from documents a user uploaded to a session
type DocumentSearcher interface {
	Search(ctx context.Context, query, sessionID string, limit int) ([]Snippet, error)
}

// queryArgs is the argument shape shared by every search tool
type queryArgs struct {
	Query string `json:"query"`
}

func parseQuery(args json.RawMessage) (string, error) {
	var a queryArgs
	if len(args) == 0 {
		return "", fmt.Errorf("missing arguments: query is required")
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Query == "" {
		return "", fmt.Errorf("query parameter required")
	}
	return a.Query, nil
}

var queryParameters = map[string]interface{}{
	"query": map[string]interface{}{
		"type":        "string",
		"description": "Search query",
	},
}
