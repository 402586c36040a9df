// Package watch re-runs composites when the files they read change.
//
// A Session dispatches debounced file system events to bindings. Each
// binding owns a set of root relative glob patterns and a target to run;
// a binding never runs concurrently with itself. Changes that arrive while
// its target is running are folded into one follow-up run.
package watch

import (
	"errors"
	"time"
)

// Common errors returned by watchers.
var (
	ErrWatcherClosed = errors.New("watcher is closed")
	ErrPathNotExist  = errors.New("path does not exist")
)

// Op is a set of file system operations.
type Op uint32

const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
)

// String returns a human-readable representation of the operation set.
func (op Op) String() string {
	if op == 0 {
		return "NONE"
	}
	var s string
	for _, o := range []struct {
		op   Op
		name string
	}{{OpCreate, "CREATE"}, {OpWrite, "WRITE"}, {OpRemove, "REMOVE"}, {OpRename, "RENAME"}} {
		if op.Has(o.op) {
			if s != "" {
				s += "|"
			}
			s += o.name
		}
	}
	return s
}

// Has returns true if the set includes o.
func (op Op) Has(o Op) bool {
	return op&o == o
}

// Event is a change to a single path.
type Event struct {
	// Path is the absolute path of the affected file or directory.
	Path string
	Op   Op
	Time time.Time
}

// Watcher delivers file system events.
type Watcher interface {
	// Events returns the event channel. It is closed by Close.
	Events() <-chan Event

	// Errors returns the error channel. It is closed by Close.
	Errors() <-chan error

	Close() error
}
