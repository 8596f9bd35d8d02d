// Package ai provides the model invocation primitive shared by generation,
// evaluation and extraction, plus helpers for parsing model output.
package ai

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var (
	// Matches ```json\n{...}\n```, ```{...}```, ``` json{...}``` and similar
	codeFenceStartRegex = regexp.MustCompile(`(?s)^` + "`" + `{3}(?:json|javascript|js)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}\s*$`)
	codeFenceAnyRegex   = regexp.MustCompile(`(?s)` + "`" + `{3}(?:json|javascript|js)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}`)

	trailingCommaRegex     = regexp.MustCompile(`,(\s*[}\]])`)
	singleLineCommentRegex = regexp.MustCompile(`(?m)^\s*//.*$`)
	multiLineCommentRegex  = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

const defaultMaxInputSize = 10 * 1024 * 1024

// ParseResult is the outcome of a parse. Failures carry the reason and the
// original text rather than panicking.
type ParseResult[T any] struct {
	Success      bool
	Data         T
	Error        string
	Strategy     string
	OriginalText string
}

// Err returns the failure as an error, or nil on success
func (r ParseResult[T]) Err() error {
	if r.Success {
		return nil
	}
	return fmt.Errorf("%s", r.Error)
}

// ParseOptions configures parsing. Nil pointer fields take their defaults.
type ParseOptions struct {
	Context      string // Prefix for error messages and logs
	Repair       *bool  // Allow cleanup and jsonrepair strategies (default: true)
	LogErrors    *bool  // Log failed strategies at debug level (default: true)
	MaxInputSize int    // Maximum input size in bytes (0 = 10MB)
}

// Bool returns a pointer for ParseOptions fields
func Bool(v bool) *bool {
	return &v
}

type resolvedOptions struct {
	context      string
	repair       bool
	logErrors    bool
	maxInputSize int
}

func resolveOptions(opts []ParseOptions) resolvedOptions {
	r := resolvedOptions{repair: true, logErrors: true, maxInputSize: defaultMaxInputSize}
	if len(opts) == 0 {
		return r
	}
	o := opts[0]
	r.context = o.Context
	if o.Repair != nil {
		r.repair = *o.Repair
	}
	if o.LogErrors != nil {
		r.logErrors = *o.LogErrors
	}
	if o.MaxInputSize > 0 {
		r.maxInputSize = o.MaxInputSize
	}
	return r
}

// Parse decodes model output into T, trying progressively more forgiving
// strategies:
//  1. Direct JSON parse
//  2. Remove code fences
//  3. Extract the outermost JSON value from mixed content
//  4. Strip trailing commas and comments (repair only)
//  5. jsonrepair (repair only)
func Parse[T any](text string, opts ...ParseOptions) ParseResult[T] {
	options := resolveOptions(opts)

	if len(text) > options.maxInputSize {
		return failure[T](fmt.Sprintf("input exceeds size limit (%d > %d bytes)", len(text), options.maxInputSize),
			truncate(text, 1000), options.context)
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return failure[T]("empty input", text, options.context)
	}

	candidates := []struct {
		strategy string
		build    func(string) (string, error)
		repair   bool
	}{
		{"direct", func(s string) (string, error) { return s, nil }, false},
		{"code_fence", func(s string) (string, error) { return removeCodeFences(s), nil }, false},
		{"extract", func(s string) (string, error) { return extractJSON(removeCodeFences(s)), nil }, false},
		{"cleanup", func(s string) (string, error) { return cleanupJSON(extractJSON(removeCodeFences(s))), nil }, true},
		{"jsonrepair", func(s string) (string, error) { return jsonrepair.JSONRepair(removeCodeFences(s)) }, true},
	}

	var lastErr error
	tried := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if c.repair && !options.repair {
			continue
		}
		candidate, err := c.build(trimmed)
		if err != nil {
			lastErr = err
			continue
		}
		if candidate == "" || tried[candidate] {
			continue
		}
		tried[candidate] = true

		var data T
		if err := json.Unmarshal([]byte(candidate), &data); err != nil {
			lastErr = err
			if options.logErrors {
				slog.Debug("JSON parse strategy failed",
					"strategy", c.strategy,
					"error", err.Error(),
					"textPreview", truncate(text, 100),
					"context", options.context)
			}
			continue
		}
		return ParseResult[T]{Success: true, Data: data, Strategy: c.strategy, OriginalText: text}
	}

	msg := "all JSON parsing strategies failed"
	if lastErr != nil {
		msg += ": " + lastErr.Error()
	}
	return failure[T](msg, text, options.context)
}

// ParseStrict decodes model output without any repair strategy. Fences and
// surrounding prose are tolerated, altered JSON is not.
func ParseStrict[T any](text string, opts ...ParseOptions) ParseResult[T] {
	var o ParseOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	o.Repair = Bool(false)
	return Parse[T](text, o)
}

// removeCodeFences strips markdown code fences anywhere in text
func removeCodeFences(text string) string {
	cleaned := codeFenceStartRegex.ReplaceAllString(text, "$1")
	if cleaned == text {
		cleaned = codeFenceAnyRegex.ReplaceAllString(text, "$1")
	}
	if strings.HasPrefix(cleaned, "`") && strings.HasSuffix(cleaned, "`") {
		cleaned = strings.Trim(cleaned, "`")
	}
	return strings.TrimSpace(cleaned)
}

// cleanupJSON removes trailing commas and comments. Single quotes are left
// alone since they appear in valid string content.
func cleanupJSON(text string) string {
	cleaned := trailingCommaRegex.ReplaceAllString(text, "$1")
	cleaned = singleLineCommentRegex.ReplaceAllString(cleaned, "")
	cleaned = multiLineCommentRegex.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

// extractJSON returns the outermost balanced object or array in text, or
// "" if none is found. Braces inside JSON strings are skipped.
func extractJSON(text string) string {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return ""
	}
	open := text[start]
	closer := byte('}')
	if open == '[' {
		closer = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

func failure[T any](message, text, context string) ParseResult[T] {
	if context != "" {
		message = context + ": " + message
	}
	return ParseResult[T]{Error: message, OriginalText: text}
}

// truncate shortens s to maxLen bytes without splitting a rune
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
