package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/gabormeresz/profAssistant-sub000/internal/ai"
)

const (
	WebSearchName     = "web_search"
	defaultDuckDuckGo = "https://html.duckduckgo.com/html/"
)

// WebSearchTool searches the web through the DuckDuckGo HTML endpoint
type WebSearchTool struct {
	cfg HTTPConfig
}

// NewWebSearchTool creates the tool. BaseURL defaults to DuckDuckGo.
func NewWebSearchTool(cfg HTTPConfig) *WebSearchTool {
	return &WebSearchTool{cfg: cfg.withDefaults(defaultDuckDuckGo)}
}

func (t *WebSearchTool) Spec() ai.ToolSpec {
	return ai.ToolSpec{
		Name:        WebSearchName,
		Description: "Search the web for current facts, definitions, and examples. Returns titles, URLs, and snippets.",
		Parameters:  queryParameters,
		Required:    []string{"query"},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	query, err := parseQuery(args)
	if err != nil {
		return "", err
	}

	body, err := t.cfg.get(ctx, t.cfg.BaseURL+"?q="+url.QueryEscape(query))
	if err != nil {
		return "", fmt.Errorf("web search failed: %w", err)
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", fmt.Errorf("failed to parse search results: %w", err)
	}

	var b strings.Builder
	n := 0
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		link := s.Find(".result__a").First()
		title := collapse(link.Text())
		if title == "" {
			return true
		}
		href, _ := link.Attr("href")
		n++
		fmt.Fprintf(&b, "[%d] %s - %s\n", n, title, resolveResultURL(href))
		if snippet := collapse(s.Find(".result__snippet").Text()); snippet != "" {
			b.WriteString(snippet)
			b.WriteString("\n")
		}
		b.WriteString("\n")
		return n < t.cfg.MaxResults
	})
	return strings.TrimSpace(b.String()), nil
}

// resolveResultURL unwraps DuckDuckGo redirect links (/l/?uddg=<target>)
func resolveResultURL(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}

// collapse trims and folds internal whitespace
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
