package tools

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"
)

type chunk struct {
	source string
	text   string
	terms  map[string]int
}

// KeywordIndex is an in-memory DocumentSearcher ranking paragraphs by
// query term overlap.
type KeywordIndex struct {
	mu       sync.RWMutex
	sessions map[string][]chunk
}

var _ DocumentSearcher = (*KeywordIndex)(nil)

// NewKeywordIndex creates an empty index
func NewKeywordIndex() *KeywordIndex {
	return &KeywordIndex{sessions: make(map[string][]chunk)}
}

// Add indexes text under sessionID, one chunk per blank-line separated paragraph
func (k *KeywordIndex) Add(sessionID, source, text string) int {
	var chunks []chunk
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		terms := make(map[string]int)
		for _, t := range words(para) {
			terms[t]++
		}
		chunks = append(chunks, chunk{source: source, text: para, terms: terms})
	}
	k.mu.Lock()
	k.sessions[sessionID] = append(k.sessions[sessionID], chunks...)
	k.mu.Unlock()
	return len(chunks)
}

// Search implements DocumentSearcher. Chunks must match at least one
// query term; ties keep insertion order.
func (k *KeywordIndex) Search(ctx context.Context, query, sessionID string, limit int) ([]Snippet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := tokenize(query)

	k.mu.RLock()
	chunks := k.sessions[sessionID]
	k.mu.RUnlock()

	var hits []Snippet
	for _, c := range chunks {
		matched, freq := 0, 0
		for _, t := range terms {
			if n := c.terms[t]; n > 0 {
				matched++
				freq += n
			}
		}
		if matched == 0 {
			continue
		}
		// distinct matches dominate, frequency breaks ties
		score := float64(matched) + float64(freq)/float64(freq+len(c.terms))
		hits = append(hits, Snippet{Source: c.source, Text: c.text, Score: score})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// words lowercases and splits on non-alphanumerics, dropping short words
func words(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 3 {
			out = append(out, f)
		}
	}
	return out
}

// tokenize returns the distinct words of s
func tokenize(s string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range words(s) {
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}
