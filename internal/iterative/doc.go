// Package iterative runs the generate, evaluate and refine loop that turns a
// generation request into a validated educational artifact.
//
// # Overview
//
// One Controller serves every artifact kind. Kind-specific behavior (rubric,
// prompts, structural requirements, target schema) comes from an
// artifacts.Domain, so the state machine exists exactly once.
//
// # State machine
//
//	INIT -> BUILD_CONTEXT -> GENERATE <-> TOOLS
//	                            |
//	                            v
//	                         EVALUATE -> REFINE <-> TOOLS_REFINE
//	                            ^          |
//	                            +----------+
//	                            |
//	                            v
//	                         RESPOND -> DONE
//
// ERROR is reachable from every state.
//
// EVALUATE increments evaluation_count once per visit, whether or not the
// Scorer produced a result. Failed evaluations score 0 and are not added to
// the history. Decide then routes to RESPOND when any of these hold, checked
// in order:
//
//   - no evaluation succeeded this turn (nothing to refine with)
//   - the latest score reached the approval threshold
//   - evaluation_count reached the retry budget
//   - the last round improved by less than MinImprovement
//
// Otherwise the loop refines. This bounds every turn to MaxRetries
// evaluations even when the Scorer always fails.
//
// # Tools
//
// Tool exchanges live in the turn's scratch messages and never reach the
// persisted history. After MaxToolRounds exchanges in one generation phase
// the model is no longer offered tools.
//
// # Persistence
//
// The checkpoint is saved once per turn, after it completes or fails
// extraction. Canceled turns are not saved, so the previous checkpoint stays
// valid. ThreadLocks serializes turns on the same thread.
//
// # Observability
//
// Progress events go to an events.Sink at every state transition. A
// MetricsCollector sees every evaluation, tool call, step and turn;
// PrometheusCollector exports them. Each turn and step gets an
// OpenTelemetry span from the global tracer provider.
package iterative
