package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/gabormeresz/profAssistant-sub000/internal/events"
)

// displayEvent prints one lifecycle event as a single line
func displayEvent(w io.Writer, event *events.Event) {
	fmt.Fprintln(w, formatEventLine(event))
}

// formatEventLine renders emoji, timestamp, stage and message, followed by
// the pipe-separated metadata when the event carries any
func formatEventLine(event *events.Event) string {
	timestamp := event.Timestamp.Format("15:04:05")
	label := string(event.Type)
	if event.Stage != "" {
		label = string(event.Stage)
	}

	line := fmt.Sprintf("%s [%s] %s: %s",
		getEventEmoji(event),
		timestamp,
		color.New(color.FgMagenta).Sprint(label),
		messageColor(event).Sprint(truncateString(event.Message, 60)),
	)

	if metadata := extractEventMetadata(event); metadata != "" {
		gray := color.New(color.FgHiBlack)
		line += "  " + gray.Sprint(metadata)
	}
	return line
}

// getEventEmoji returns the icon for an event type or progress stage
func getEventEmoji(event *events.Event) string {
	switch event.Type {
	case events.EventTypeThreadIDAssigned:
		return "📌"
	case events.EventTypeComplete:
		return "✅"
	case events.EventTypeError:
		return "❌"
	}

	switch event.Stage {
	case events.StageInitializing:
		return "🚀"
	case events.StageBuildingContext:
		return "📚"
	case events.StageGenerating:
		return "📝"
	case events.StageResearching:
		return "🔧"
	case events.StageEvaluating:
		return "🔍"
	case events.StageRefining:
		return "🩹"
	case events.StageExtracting:
		return "📦"
	default:
		return "•"
	}
}

func messageColor(event *events.Event) *color.Color {
	switch event.Type {
	case events.EventTypeError:
		return color.New(color.FgRed)
	case events.EventTypeComplete:
		return color.New(color.FgGreen)
	default:
		return color.New(color.Reset)
	}
}

// extractEventMetadata pulls the few fields worth showing from event data
func extractEventMetadata(event *events.Event) string {
	var fields []string

	switch event.Type {
	case events.EventTypeThreadIDAssigned:
		fields = []string{event.ThreadID}

	case events.EventTypeError:
		fields = []string{string(event.ErrorKind)}

	case events.EventTypeComplete:
		// complete: score | evaluations | exit_reason
		if score := getFloatField(event.Data, "score", -1); score >= 0 {
			fields = append(fields, fmt.Sprintf("score %.2f", score))
		}
		fields = append(fields,
			fmt.Sprintf("%d evaluations", getIntField(event.Data, "evaluation_count", 0)),
			getStringField(event.Data, "exit_reason", ""),
		)

	case events.EventTypeProgress:
		// progress: round | score | tools
		if round := getIntField(event.Data, "round", 0); round > 0 {
			fields = append(fields, fmt.Sprintf("round %d", round))
		}
		if score := getFloatField(event.Data, "score", -1); score >= 0 {
			fields = append(fields, fmt.Sprintf("score %.2f", score))
		}
		if tools := getStringSliceField(event.Data, "tools"); len(tools) > 0 {
			fields = append(fields, truncateString(strings.Join(tools, ","), 30))
		}
	}

	return truncateString(joinFields(fields), 70)
}

// Helper functions to safely extract typed fields from event data
func getStringField(data map[string]interface{}, key, defaultValue string) string {
	if val, ok := data[key].(string); ok {
		return val
	}
	return defaultValue
}

func getIntField(data map[string]interface{}, key string, defaultValue int) int {
	if val, ok := data[key].(int); ok {
		return val
	}
	if val, ok := data[key].(float64); ok {
		return int(val)
	}
	return defaultValue
}

func getFloatField(data map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := data[key].(float64); ok {
		return val
	}
	if val, ok := data[key].(int); ok {
		return float64(val)
	}
	return defaultValue
}

func getStringSliceField(data map[string]interface{}, key string) []string {
	switch val := data[key].(type) {
	case []string:
		return val
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, v := range val {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// joinFields joins non-empty metadata fields with " | "
func joinFields(fields []string) string {
	nonEmpty := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			nonEmpty = append(nonEmpty, f)
		}
	}
	return strings.Join(nonEmpty, " | ")
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}
