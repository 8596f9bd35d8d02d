package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabormeresz/profAssistant-sub000/internal/events"
	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

func init() {
	color.NoColor = true
}

func TestExtractEventMetadata(t *testing.T) {
	score := 0.72
	progress, err := events.NewProgressEvent("t-1", events.StageRefining, "refining draft", events.ProgressData{
		State: "REFINE",
		Round: 2,
		Score: &score,
	})
	require.NoError(t, err)

	research, err := events.NewProgressEvent("t-1", events.StageResearching, "calling tools", events.ProgressData{
		State: "TOOLS_GENERATE",
		Tools: []string{"web_search", "wikipedia"},
	})
	require.NoError(t, err)

	final := 0.91
	complete, err := events.NewCompleteEvent("t-1", events.CompleteData{
		Kind:            types.KindPresentation,
		Artifact:        map[string]interface{}{"title": "x"},
		Score:           &final,
		EvaluationCount: 3,
		ExitReason:      "approved",
	})
	require.NoError(t, err)

	tests := []struct {
		name     string
		event    *events.Event
		expected string
	}{
		{name: "refining", event: progress, expected: "round 2 | score 0.72"},
		{name: "researching", event: research, expected: "web_search,wikipedia"},
		{name: "complete", event: complete, expected: "score 0.91 | 3 evaluations | approved"},
		{name: "error", event: events.NewErrorEvent("t-1", types.ErrorKindBusy), expected: "busy"},
		{name: "thread id", event: events.NewThreadIDAssignedEvent("t-1"), expected: "t-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractEventMetadata(tt.event))
		})
	}
}

func TestExtractEventMetadata_UntypedData(t *testing.T) {
	// Events decoded from JSON carry float64 numbers and []interface{} lists
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(`{"round":1,"tools":["document_search"]}`), &data))

	event := &events.Event{Type: events.EventTypeProgress, Stage: events.StageResearching, Data: data}
	assert.Equal(t, "round 1 | document_search", extractEventMetadata(event))
}

func TestFormatEventLine(t *testing.T) {
	event := events.NewErrorEvent("t-1", types.ErrorKindExtraction)
	event.Timestamp = time.Date(2026, 1, 2, 9, 30, 15, 0, time.UTC)

	line := formatEventLine(event)
	assert.True(t, strings.HasPrefix(line, "❌ [09:30:15] error: "), line)
	assert.Contains(t, line, "extraction")
	assert.NotContains(t, line, "\n")
}

func TestDisplayEvent(t *testing.T) {
	var buf bytes.Buffer
	event, err := events.NewProgressEvent("t-1", events.StageEvaluating, "scoring draft", events.ProgressData{State: "EVALUATE"})
	require.NoError(t, err)

	displayEvent(&buf, event)
	assert.Contains(t, buf.String(), "🔍")
	assert.Contains(t, buf.String(), "evaluating: scoring draft")
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abcdefg...", truncateString("abcdefghijklmnop", 10))
	assert.Equal(t, "...", truncateString("abcdef", 2))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
	assert.Equal(t, "2.0m", formatDuration(2*time.Minute))
	assert.Equal(t, "1.5h", formatDuration(90*time.Minute))
}
