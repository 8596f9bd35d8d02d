package iterative

import (
	"sort"
	"sync"
	"time"

	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

// Evaluation outcomes
const (
	EvaluationOK     = "ok"
	EvaluationFailed = "failed"
)

// MetricsCollector provides instrumentation for the refinement loop.
// Implementations must be safe for concurrent use: turns on different
// threads run in parallel.
type MetricsCollector interface {
	// RecordEvaluation is called once per EVALUATE visit
	RecordEvaluation(m *EvaluationMetrics)

	// RecordToolCall is called once per tool call, cached or not
	RecordToolCall(tool, outcome string, elapsed time.Duration)

	// RecordStep is called when a state step finishes
	RecordStep(state State, elapsed time.Duration)

	// RecordTurn is called when a turn completes or fails
	RecordTurn(m *TurnMetrics)

	// Snapshot returns rolled-up statistics across all turns
	Snapshot() *AggregateMetrics
}

// EvaluationMetrics captures one EVALUATE visit
type EvaluationMetrics struct {
	Kind    types.ArtifactKind
	Round   int
	Outcome string
	// Score is 0 for failed evaluations
	Score float64
	// DiffPercent is how much of the draft changed since the previous round
	DiffPercent float64
	Duration    time.Duration
}

// TurnMetrics captures a whole turn
type TurnMetrics struct {
	ThreadID        string
	Kind            types.ArtifactKind
	Turn            int
	ExitReason      ExitReason
	ErrorKind       types.ErrorKind
	EvaluationCount int
	// Scores are the successful overall scores, in round order
	Scores    []float64
	ToolCalls int
	Duration  time.Duration
}

// Improvement is the score delta from the first to the last successful round
func (m *TurnMetrics) Improvement() float64 {
	if len(m.Scores) < 2 {
		return 0
	}
	return m.Scores[len(m.Scores)-1] - m.Scores[0]
}

// AggregateMetrics provides rolled-up statistics across turns
type AggregateMetrics struct {
	TotalTurns  int
	FailedTurns int

	// TotalEvaluations counts EVALUATE visits; FailedEvaluations those
	// that produced no result
	TotalEvaluations  int
	FailedEvaluations int

	// MeanEvaluations is the average evaluation_count per turn
	MeanEvaluations float64
	P50Evaluations  int
	P95Evaluations  int

	// MeanFinalScore averages the last successful score of scored turns
	MeanFinalScore float64

	// MeanImprovement averages first-to-last score gain of multi-round turns
	MeanImprovement float64

	ToolCalls     map[string]int
	StepDurations map[State]time.Duration
	ByExitReason  map[ExitReason]int
	ByKind        map[types.ArtifactKind]*KindMetrics
	TotalDuration time.Duration
}

// KindMetrics provides aggregate statistics for one artifact kind
type KindMetrics struct {
	Count           int
	ApprovedCount   int
	MeanEvaluations float64
	MeanFinalScore  float64
	scored          int
}

// InMemoryMetricsCollector is a simple in-memory implementation of MetricsCollector.
// It stores all metrics in memory for analysis and testing.
type InMemoryMetricsCollector struct {
	mu          sync.Mutex
	turns       []*TurnMetrics
	evaluations []*EvaluationMetrics
	toolCalls   map[string]int
	steps       map[State]time.Duration
}

var _ MetricsCollector = (*InMemoryMetricsCollector)(nil)

// NewInMemoryMetricsCollector creates a new in-memory metrics collector
func NewInMemoryMetricsCollector() *InMemoryMetricsCollector {
	return &InMemoryMetricsCollector{
		toolCalls: make(map[string]int),
		steps:     make(map[State]time.Duration),
	}
}

// RecordEvaluation implements MetricsCollector
func (m *InMemoryMetricsCollector) RecordEvaluation(metrics *EvaluationMetrics) {
	if metrics == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evaluations = append(m.evaluations, metrics)
}

// RecordToolCall implements MetricsCollector
func (m *InMemoryMetricsCollector) RecordToolCall(tool, outcome string, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolCalls[tool]++
}

// RecordStep implements MetricsCollector
func (m *InMemoryMetricsCollector) RecordStep(state State, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps[state] += elapsed
}

// RecordTurn implements MetricsCollector
func (m *InMemoryMetricsCollector) RecordTurn(metrics *TurnMetrics) {
	if metrics == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, metrics)
}

// Turns returns all collected turn metrics (useful for analysis)
func (m *InMemoryMetricsCollector) Turns() []*TurnMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*TurnMetrics(nil), m.turns...)
}

// Evaluations returns all collected evaluation metrics
func (m *InMemoryMetricsCollector) Evaluations() []*EvaluationMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*EvaluationMetrics(nil), m.evaluations...)
}

// Snapshot implements MetricsCollector
func (m *InMemoryMetricsCollector) Snapshot() *AggregateMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	agg := &AggregateMetrics{
		ToolCalls:     make(map[string]int, len(m.toolCalls)),
		StepDurations: make(map[State]time.Duration, len(m.steps)),
		ByExitReason:  make(map[ExitReason]int),
		ByKind:        make(map[types.ArtifactKind]*KindMetrics),
	}
	for k, v := range m.toolCalls {
		agg.ToolCalls[k] = v
	}
	for k, v := range m.steps {
		agg.StepDurations[k] = v
	}
	for _, e := range m.evaluations {
		agg.TotalEvaluations++
		if e.Outcome != EvaluationOK {
			agg.FailedEvaluations++
		}
	}

	var counts []int
	var scoreSum, improvementSum float64
	scored, improved := 0, 0
	for _, turn := range m.turns {
		agg.TotalTurns++
		agg.TotalDuration += turn.Duration
		counts = append(counts, turn.EvaluationCount)
		if turn.ErrorKind != "" {
			agg.FailedTurns++
		}
		if turn.ExitReason != "" {
			agg.ByExitReason[turn.ExitReason]++
		}
		if len(turn.Scores) > 0 {
			scored++
			scoreSum += turn.Scores[len(turn.Scores)-1]
		}
		if len(turn.Scores) > 1 {
			improved++
			improvementSum += turn.Improvement()
		}
		updateKindMetrics(agg.ByKind, turn)
	}

	if agg.TotalTurns > 0 {
		total := 0
		for _, c := range counts {
			total += c
		}
		agg.MeanEvaluations = float64(total) / float64(agg.TotalTurns)
		sort.Ints(counts)
		agg.P50Evaluations = percentile(counts, 50)
		agg.P95Evaluations = percentile(counts, 95)
	}
	if scored > 0 {
		agg.MeanFinalScore = scoreSum / float64(scored)
	}
	if improved > 0 {
		agg.MeanImprovement = improvementSum / float64(improved)
	}
	return agg
}

// updateKindMetrics folds one turn into its kind's running means
func updateKindMetrics(byKind map[types.ArtifactKind]*KindMetrics, turn *TurnMetrics) {
	km := byKind[turn.Kind]
	if km == nil {
		km = &KindMetrics{}
		byKind[turn.Kind] = km
	}
	km.Count++
	if turn.ExitReason == ExitApproved {
		km.ApprovedCount++
	}
	km.MeanEvaluations += (float64(turn.EvaluationCount) - km.MeanEvaluations) / float64(km.Count)
	if len(turn.Scores) > 0 {
		km.scored++
		final := turn.Scores[len(turn.Scores)-1]
		km.MeanFinalScore += (final - km.MeanFinalScore) / float64(km.scored)
	}
}

// percentile calculates the Nth percentile from a sorted slice
func percentile(sorted []int, p int) int {
	if len(sorted) == 0 {
		return 0
	}
	index := (len(sorted) * p) / 100
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

// nopCollector discards everything
type nopCollector struct{}

func (nopCollector) RecordEvaluation(*EvaluationMetrics) {}
func (nopCollector) RecordToolCall(string, string, time.Duration) {}
func (nopCollector) RecordStep(State, time.Duration) {}
func (nopCollector) RecordTurn(*TurnMetrics) {}
func (nopCollector) Snapshot() *AggregateMetrics { return &AggregateMetrics{} }
