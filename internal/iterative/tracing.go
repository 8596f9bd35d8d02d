package iterative

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gabormeresz/profAssistant-sub000/internal/types"
)

var tracer = otel.Tracer("profassist.iterative")

// startTurnSpan opens the span covering one Run
func startTurnSpan(ctx context.Context, req *types.GenerationRequest) (context.Context, trace.Span) {
	return tracer.Start(ctx, "iterative.Run",
		trace.WithAttributes(
			attribute.String("profassist.kind", string(req.Kind)),
			attribute.Bool("profassist.first_call", req.IsFirstCall()),
		),
	)
}

// startStepSpan opens a child span for one state step
func startStepSpan(ctx context.Context, state State, round int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "iterative."+string(state),
		trace.WithAttributes(
			attribute.String("profassist.state", string(state)),
			attribute.Int("profassist.round", round),
		),
	)
}

// endSpan records err on span, if any, and ends it
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// annotateTurn attaches the turn outcome to its span
func annotateTurn(span trace.Span, t *turn) {
	if t.threadID != "" {
		span.SetAttributes(attribute.String("profassist.thread_id", t.threadID))
	}
	if t.state == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.Int("profassist.turn", t.state.Turn),
		attribute.Int("profassist.evaluation_count", t.state.EvaluationCount),
		attribute.String("profassist.exit_reason", string(t.exit)),
	}
	if t.state.CurrentScore != nil {
		attrs = append(attrs, attribute.Float64("profassist.score", *t.state.CurrentScore))
	}
	span.SetAttributes(attrs...)
}
