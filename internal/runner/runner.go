package runner

import "context"

// Runnable is a named unit of work.
type Runnable interface {
	// Name identifies the unit in logs, metrics and errors.
	Name() string
	// Run performs the work. It blocks until the work is complete.
	Run(ctx context.Context) error
}

// Func adapts a function to a Runnable.
func Func(name string, fn func(ctx context.Context) error) Runnable {
	return &funcRunnable{name: name, fn: fn}
}

type funcRunnable struct {
	name string
	fn   func(ctx context.Context) error
}

func (f *funcRunnable) Name() string                  { return f.name }
func (f *funcRunnable) Run(ctx context.Context) error { return f.fn(ctx) }
