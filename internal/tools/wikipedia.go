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

const WikipediaSearchName = "wikipedia_search"

// WikipediaTool searches Wikipedia through the MediaWiki search API
type WikipediaTool struct {
	cfg      HTTPConfig
	language string
}

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
		} `json:"search"`
	} `json:"query"`
}

// NewWikipediaTool creates the tool for a language edition ("en" by default)
func NewWikipediaTool(cfg HTTPConfig, language string) *WikipediaTool {
	if language == "" {
		language = "en"
	}
	return &WikipediaTool{
		cfg:      cfg.withDefaults(fmt.Sprintf("https://%s.wikipedia.org/w/api.php", language)),
		language: language,
	}
}

func (t *WikipediaTool) Spec() ai.ToolSpec {
	return ai.ToolSpec{
		Name:        WikipediaSearchName,
		Description: "Search Wikipedia for encyclopedic background on a topic. Returns article titles, URLs, and snippets.",
		Parameters:  queryParameters,
		Required:    []string{"query"},
	}
}

func (t *WikipediaTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	query, err := parseQuery(args)
	if err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("format", "json")
	params.Set("utf8", "1")
	params.Set("srsearch", query)
	params.Set("srlimit", fmt.Sprint(t.cfg.MaxResults))

	body, err := t.cfg.get(ctx, t.cfg.BaseURL+"?"+params.Encode())
	if err != nil {
		return "", fmt.Errorf("wikipedia search failed: %w", err)
	}
	defer body.Close()

	var resp wikiSearchResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return "", fmt.Errorf("failed to decode wikipedia response: %w", err)
	}

	var b strings.Builder
	for i, hit := range resp.Query.Search {
		if i >= t.cfg.MaxResults {
			break
		}
		fmt.Fprintf(&b, "[%d] %s - %s\n%s\n\n", i+1, hit.Title, t.articleURL(hit.Title), stripHTML(hit.Snippet))
	}
	return strings.TrimSpace(b.String()), nil
}

func (t *WikipediaTool) articleURL(title string) string {
	return fmt.Sprintf("https://%s.wikipedia.org/wiki/%s", t.language, url.PathEscape(strings.ReplaceAll(title, " ", "_")))
}

// stripHTML returns the text content of an HTML fragment
func stripHTML(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapse(fragment)
	}
	return collapse(doc.Text())
}
