// Package event defines the build engine's output stream.
//
// The engine never prints: every log line, stage transition, and
// progress update is emitted as an Event into a Sink. Consumers (plain
// stdout, the TUI monitor, test collectors) drain the stream
// independently, which keeps the build logic free of any particular
// presentation technology.
package event

import "sync"

// Event is one item in the engine's output stream.
// Concrete types: Line, Stage, Progress.
type Event interface {
	event()
}

// Line is one line of subprocess or engine output, in arrival order.
type Line string

// Stage marks the start of a named pipeline stage for a target.
type Stage struct {
	Target string
	Name   string
}

// Progress is the orchestrator's completion fraction in [0, 1].
// Within one orchestration run it is monotonically non-decreasing.
type Progress float64

func (Line) event()     {}
func (Stage) event()    {}
func (Progress) event() {}

// Sink receives events from the engine. Emit must be safe to call from
// the orchestration goroutine; implementations decide how to render.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event. Useful as a default.
var Discard Sink = SinkFunc(func(Event) {})

// Collector is a Sink that records events in order, for tests.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *Collector) Emit(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

// Events returns a copy of everything emitted so far.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Lines returns just the Line events, in order.
func (c *Collector) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var lines []string
	for _, e := range c.events {
		if l, ok := e.(Line); ok {
			lines = append(lines, string(l))
		}
	}
	return lines
}
