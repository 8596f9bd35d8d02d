package iterative

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector exports loop metrics to Prometheus. It keeps an
// in-memory collector alongside so Snapshot keeps working.
type PrometheusCollector struct {
	*InMemoryMetricsCollector

	evaluationScore *prometheus.HistogramVec
	evaluations     *prometheus.CounterVec
	turns           *prometheus.CounterVec
	turnDuration    *prometheus.HistogramVec
	toolCalls       *prometheus.CounterVec
	stepDuration    *prometheus.HistogramVec
}

var _ MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheusCollector creates and registers the loop metrics. A nil
// registerer uses prometheus.DefaultRegisterer.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &PrometheusCollector{
		InMemoryMetricsCollector: NewInMemoryMetricsCollector(),
		evaluationScore: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "profassist",
				Name:      "evaluation_score",
				Help:      "Overall score of each successful evaluation.",
				Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
			},
			[]string{"kind"},
		),
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "profassist",
				Name:      "evaluations_total",
				Help:      "Number of evaluation attempts.",
			},
			[]string{"kind", "outcome"},
		),
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "profassist",
				Name:      "turns_total",
				Help:      "Number of finished turns.",
			},
			[]string{"kind", "exit_reason", "error_kind"},
		),
		turnDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "profassist",
				Name:      "turn_duration_seconds",
				Help:      "Wall time of a whole turn.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			},
			[]string{"kind"},
		),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "profassist",
				Name:      "tool_calls_total",
				Help:      "Number of tool calls.",
			},
			[]string{"tool", "outcome"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "profassist",
				Name:      "step_duration_seconds",
				Help:      "Duration of each state step.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"state"},
		),
	}

	for _, collector := range []prometheus.Collector{
		c.evaluationScore, c.evaluations, c.turns, c.turnDuration, c.toolCalls, c.stepDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("failed to register loop metrics: %w", err)
		}
	}
	return c, nil
}

// RecordEvaluation implements MetricsCollector
func (c *PrometheusCollector) RecordEvaluation(m *EvaluationMetrics) {
	if m == nil {
		return
	}
	c.InMemoryMetricsCollector.RecordEvaluation(m)
	c.evaluations.WithLabelValues(string(m.Kind), m.Outcome).Inc()
	if m.Outcome == EvaluationOK {
		c.evaluationScore.WithLabelValues(string(m.Kind)).Observe(m.Score)
	}
}

// RecordToolCall implements MetricsCollector
func (c *PrometheusCollector) RecordToolCall(tool, outcome string, elapsed time.Duration) {
	c.InMemoryMetricsCollector.RecordToolCall(tool, outcome, elapsed)
	c.toolCalls.WithLabelValues(tool, outcome).Inc()
}

// RecordStep implements MetricsCollector
func (c *PrometheusCollector) RecordStep(state State, elapsed time.Duration) {
	c.InMemoryMetricsCollector.RecordStep(state, elapsed)
	c.stepDuration.WithLabelValues(string(state)).Observe(elapsed.Seconds())
}

// RecordTurn implements MetricsCollector
func (c *PrometheusCollector) RecordTurn(m *TurnMetrics) {
	if m == nil {
		return
	}
	c.InMemoryMetricsCollector.RecordTurn(m)
	c.turns.WithLabelValues(string(m.Kind), string(m.ExitReason), string(m.ErrorKind)).Inc()
	c.turnDuration.WithLabelValues(string(m.Kind)).Observe(m.Duration.Seconds())
}
