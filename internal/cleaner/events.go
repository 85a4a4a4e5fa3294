package cleaner

import (
	"log/slog"
	"sync"
)

type EventKind string

const (
	EventDiscarded EventKind = "discarded"
	EventTruncated EventKind = "truncated"
)

// Event is a structured diagnostic raised while cleaning a batch.
type Event struct {
	Kind   EventKind
	Family string
	Line   int
	Reason string
	Field  string // set for EventTruncated
	Value  string // original value for EventTruncated
	Raw    string
	Stage  LineState // last state the line reached
	Err    error     // the underlying *RowError for EventDiscarded
}

// Sink receives events. Implementations must not retain the cleaner's state;
// they are called synchronously, in line order.
type Sink interface {
	Emit(Event)
}

type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Collector keeps every event in memory.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *Collector) Emit(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

// Events returns a copy of the collected events.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Kind returns the collected events of one kind.
func (c *Collector) Kind(kind EventKind) []Event {
	var out []Event
	for _, e := range c.Events() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// MultiSink fans events out to several sinks in order.
func MultiSink(sinks ...Sink) Sink {
	return SinkFunc(func(e Event) {
		for _, s := range sinks {
			if s != nil {
				s.Emit(e)
			}
		}
	})
}

// LogSink writes discards at error level and truncations at warn level.
func LogSink(logger *slog.Logger) Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return SinkFunc(func(e Event) {
		switch e.Kind {
		case EventDiscarded:
			logger.Error("line discarded",
				"family", e.Family,
				"line", e.Line,
				"reason", e.Reason,
				"stage", string(e.Stage),
				"raw", e.Raw,
			)
		case EventTruncated:
			logger.Warn("field too long, truncated",
				"family", e.Family,
				"line", e.Line,
				"field", e.Field,
				"original", e.Value,
			)
		}
	})
}
