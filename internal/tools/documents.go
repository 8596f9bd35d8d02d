package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gabormeresz/profAssistant-sub000/internal/ai"
)

const DocumentSearchName = "search_documents"

// DocumentSearchTool searches the documents attached to one session. The
// session is fixed at construction; the model cannot choose it.
type DocumentSearchTool struct {
	searcher  DocumentSearcher
	sessionID string
	limit     int
}

// NewDocumentSearchTool binds searcher to sessionID
func NewDocumentSearchTool(searcher DocumentSearcher, sessionID string, limit int) *DocumentSearchTool {
	if limit <= 0 {
		limit = 5
	}
	return &DocumentSearchTool{searcher: searcher, sessionID: sessionID, limit: limit}
}

func (t *DocumentSearchTool) Spec() ai.ToolSpec {
	return ai.ToolSpec{
		Name:        DocumentSearchName,
		Description: "Search the teaching materials the user uploaded for this request. Prefer these over web sources when they cover the topic.",
		Parameters:  queryParameters,
		Required:    []string{"query"},
	}
}

func (t *DocumentSearchTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	query, err := parseQuery(args)
	if err != nil {
		return "", err
	}
	snippets, err := t.searcher.Search(ctx, query, t.sessionID, t.limit)
	if err != nil {
		return "", fmt.Errorf("document search failed: %w", err)
	}
	var b strings.Builder
	for i, s := range snippets {
		fmt.Fprintf(&b, "[%d] Source: %s\n%s\n\n", i+1, s.Source, strings.TrimSpace(s.Text))
	}
	return strings.TrimSpace(b.String()), nil
}
