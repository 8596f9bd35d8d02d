package events

import (
	"sync"
	"sync/atomic"
)

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(event *Event)

// Emit calls f(event)
func (f SinkFunc) Emit(event *Event) {
	f(event)
}

// Discard drops every event
var Discard Sink = SinkFunc(func(*Event) {})

// ChannelSink forwards events to a buffered channel. When the consumer
// falls behind, events are dropped instead of stalling the loop.
type ChannelSink struct {
	ch      chan *Event
	dropped atomic.Int64
	once    sync.Once
}

// NewChannelSink creates a sink with the given buffer size
func NewChannelSink(buffer int) *ChannelSink {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelSink{ch: make(chan *Event, buffer)}
}

// Emit performs a non-blocking send
func (s *ChannelSink) Emit(event *Event) {
	select {
	case s.ch <- event:
	default:
		s.dropped.Add(1)
	}
}

// Events returns the receive side of the sink
func (s *ChannelSink) Events() <-chan *Event {
	return s.ch
}

// Dropped returns how many events were discarded
func (s *ChannelSink) Dropped() int64 {
	return s.dropped.Load()
}

// Close closes the channel. Emit must not be called afterwards.
func (s *ChannelSink) Close() {
	s.once.Do(func() { close(s.ch) })
}

// Recorder keeps every event in memory, for tests and summaries
type Recorder struct {
	mu     sync.Mutex
	events []*Event
}

// Emit appends the event
func (r *Recorder) Emit(event *Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Event(nil), r.events...)
}

// Types returns the recorded event types in order
func (r *Recorder) Types() []EventType {
	var out []EventType
	for _, e := range r.Events() {
		out = append(out, e.Type)
	}
	return out
}

// Stages returns the stages of recorded progress events in order
func (r *Recorder) Stages() []Stage {
	var out []Stage
	for _, e := range r.Events() {
		if e.Type == EventTypeProgress {
			out = append(out, e.Stage)
		}
	}
	return out
}

// MultiSink fans events out to several sinks
func MultiSink(sinks ...Sink) Sink {
	return SinkFunc(func(event *Event) {
		for _, s := range sinks {
			if s != nil {
				s.Emit(event)
			}
		}
	})
}
