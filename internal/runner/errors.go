package runner

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoTasks is returned when a composite is built without children.
var ErrNoTasks = errors.New("no tasks")

// nonFatalError marks an error that must not stop a series.
type nonFatalError struct {
	err error
}

func (e *nonFatalError) Error() string { return e.err.Error() }
func (e *nonFatalError) Unwrap() error { return e.err }

// NonFatal marks err as non-fatal. A series that sees a non-fatal child
// error records it and keeps going. NonFatal(nil) is nil.
func NonFatal(err error) error {
	if err == nil {
		return nil
	}
	if IsNonFatal(err) {
		return err
	}
	return &nonFatalError{err: err}
}

// IsNonFatal reports whether err is non-fatal. Wrapped errors are inspected
// through their chain; a joined error is non-fatal only when every error it
// joins is.
func IsNonFatal(err error) bool {
	switch e := err.(type) {
	case nil:
		return false
	case *nonFatalError:
		return true
	case interface{ Unwrap() []error }:
		errs := e.Unwrap()
		if len(errs) == 0 {
			return false
		}
		for _, err := range errs {
			if !IsNonFatal(err) {
				return false
			}
		}
		return true
	case interface{ Unwrap() error }:
		return IsNonFatal(e.Unwrap())
	}
	return false
}

// TaskError attributes an error to the task that produced it.
type TaskError struct {
	Task string
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s: %v", e.Task, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// critical escalates the failure of a child to the whole process.
type critical struct {
	Runnable
	cancel context.CancelCauseFunc
}

// Critical wraps r so that a failure cancels the context owned by cancel,
// using the error as the cause. Use it for children of a parallel composite
// whose failure must bring down their siblings, such as a server that cannot
// bind its port.
func Critical(r Runnable, cancel context.CancelCauseFunc) Runnable {
	return &critical{Runnable: r, cancel: cancel}
}

func (c *critical) Run(ctx context.Context) error {
	err := c.Runnable.Run(ctx)
	if err != nil && ctx.Err() == nil {
		c.cancel(&TaskError{Task: c.Name(), Err: err})
	}
	return err
}
