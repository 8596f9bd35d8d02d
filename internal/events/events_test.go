package events

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

func TestProgressEventRoundTrip(t *testing.T) {
	score := 0.72
	event, err := NewProgressEvent("thread-1", StageEvaluating, "scored draft", ProgressData{
		State:           "EVALUATE",
		Round:           2,
		EvaluationCount: 2,
		Score:           &score,
	})
	require.NoError(t, err)
	assert.Equal(t, EventTypeProgress, event.Type)
	assert.Equal(t, StageEvaluating, event.Stage)
	assert.NotEmpty(t, event.ID)

	data, err := event.GetProgressData()
	require.NoError(t, err)
	assert.Equal(t, 2, data.Round)
	require.NotNil(t, data.Score)
	assert.InDelta(t, 0.72, *data.Score, 1e-9)
}

func TestCompleteEventCarriesArtifact(t *testing.T) {
	event, err := NewCompleteEvent("thread-1", CompleteData{
		Kind:            types.KindAssessment,
		Artifact:        map[string]interface{}{"title": "Quiz"},
		EvaluationCount: 1,
		ExitReason:      "approved",
	})
	require.NoError(t, err)

	data, err := event.GetCompleteData()
	require.NoError(t, err)
	assert.Equal(t, types.KindAssessment, data.Kind)
	assert.Equal(t, "Quiz", data.Artifact.(map[string]interface{})["title"])
}

func TestErrorEventHidesDetails(t *testing.T) {
	event := NewErrorEvent("thread-1", types.ErrorKindExtraction)
	assert.Equal(t, types.ErrorKindExtraction, event.ErrorKind)
	assert.Equal(t, types.UserMessage(types.ErrorKindExtraction), event.Message)

	raw, err := json.Marshal(event)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), `"error_kind":"extraction"`))
}

func TestChannelSinkDropsWhenFull(t *testing.T) {
	sink := NewChannelSink(1)
	sink.Emit(NewThreadIDAssignedEvent("a"))
	sink.Emit(NewThreadIDAssignedEvent("b"))
	assert.Equal(t, int64(1), sink.Dropped())

	sink.Close()
	var got []string
	for e := range sink.Events() {
		got = append(got, e.ThreadID)
	}
	assert.Equal(t, []string{"a"}, got)
}

func TestRecorderAndMultiSink(t *testing.T) {
	var r1, r2 Recorder
	sink := MultiSink(&r1, nil, &r2)
	sink.Emit(NewThreadIDAssignedEvent("t"))
	progress, err := NewProgressEvent("t", StageGenerating, "", ProgressData{State: "GENERATE"})
	require.NoError(t, err)
	sink.Emit(progress)

	assert.Equal(t, []EventType{EventTypeThreadIDAssigned, EventTypeProgress}, r1.Types())
	assert.Equal(t, []Stage{StageGenerating}, r2.Stages())
}
