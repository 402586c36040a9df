// Package trace records which pipeline steps ran for each task invocation.
package trace

import (
	"sync"

	"github.com/rs/zerolog"
)

// Kind is the outcome of a step within one task invocation.
type Kind string

const (
	// StepApplied means the step ran and succeeded.
	StepApplied Kind = "applied"
	// StepSkipped means the step's condition excluded it for this invocation.
	StepSkipped Kind = "skipped"
	// StepFailed means the step ran and returned an error.
	StepFailed Kind = "failed"
)

// Event describes one step outcome.
type Event struct {
	Task string
	Step string
	Kind Kind
	// Env is the environment flag the invocation ran under.
	Env string
	// Files is the number of files the step produced.
	Files int
}

// Sink receives events. Record must not panic and has no error result; the
// caller must assume it may be a no-op.
type Sink interface {
	Record(event Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Record(Event) {}

// SafeRecord records an event and swallows panics from a buggy sink.
func SafeRecord(s Sink, event Event) {
	if s == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	s.Record(event)
}

// Recorder is a concurrency-safe in-memory collector.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Record(event Event) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

// Snapshot returns a point-in-time copy of all recorded events.
func (r *Recorder) Snapshot() []Event {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Steps returns, in order, the names of the steps of task that had kind.
func (r *Recorder) Steps(task string, kind Kind) []string {
	var out []string
	for _, e := range r.Snapshot() {
		if e.Task == task && e.Kind == kind {
			out = append(out, e.Step)
		}
	}
	return out
}

// Reset discards all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// LogSink writes every event to a logger at debug level.
type LogSink struct {
	Logger zerolog.Logger
}

func (s LogSink) Record(e Event) {
	s.Logger.Debug().
		Str("task", e.Task).
		Str("step", e.Step).
		Str("env", e.Env).
		Int("files", e.Files).
		Msg(string(e.Kind))
}

// Multi fans events out to several sinks.
type Multi []Sink

func (m Multi) Record(e Event) {
	for _, s := range m {
		SafeRecord(s, e)
	}
}
