package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ExecutionState represents the state of an execution.
type ExecutionState string

const (
	// ExecutionStatePending indicates the runnable has not started yet.
	ExecutionStatePending ExecutionState = "pending"
	// ExecutionStateRunning indicates the runnable is currently running.
	ExecutionStateRunning ExecutionState = "running"
	// ExecutionStateSucceeded indicates the runnable completed successfully.
	ExecutionStateSucceeded ExecutionState = "succeeded"
	// ExecutionStateFailed indicates the runnable returned an error.
	ExecutionStateFailed ExecutionState = "failed"
	// ExecutionStateCanceled indicates the run was stopped by its context.
	ExecutionStateCanceled ExecutionState = "canceled"
)

// Execution represents a running or completed run of a Runnable.
type Execution struct {
	// ID is a unique identifier for this execution.
	ID string

	// Name is the name of the runnable being executed.
	Name string

	// Parent is the ID of the execution that started this one, if any.
	Parent string

	state     ExecutionState
	startTime time.Time
	endTime   time.Time
	err       error

	// cancel cancels the execution context.
	cancel context.CancelFunc

	// done is closed when execution completes.
	done     chan struct{}
	doneOnce sync.Once

	mu sync.RWMutex
}

// ExecutionListener receives execution events.
type ExecutionListener interface {
	// OnExecutionStarted is called when execution starts.
	OnExecutionStarted(exec *Execution)

	// OnExecutionCompleted is called when execution completes.
	OnExecutionCompleted(exec *Execution)
}

// Executor starts runnables and notifies listeners about their lifecycle.
type Executor struct {
	listeners   []ExecutionListener
	listenersMu sync.RWMutex
}

// NewExecutor creates a new executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// AddListener adds an execution listener.
func (e *Executor) AddListener(listener ExecutionListener) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	e.listeners = append(e.listeners, listener)
}

// RemoveListener removes an execution listener.
func (e *Executor) RemoveListener(listener ExecutionListener) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()

	for i, l := range e.listeners {
		if l == listener {
			e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
			return
		}
	}
}

type parentKey struct{}

// Start runs r in the background and returns its execution handle
// immediately.
func (e *Executor) Start(ctx context.Context, r Runnable) *Execution {
	parent, _ := ctx.Value(parentKey{}).(string)
	execCtx, cancel := context.WithCancel(ctx)

	exec := &Execution{
		ID:     uuid.NewString(),
		Name:   r.Name(),
		Parent: parent,
		state:  ExecutionStatePending,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go e.runExecution(context.WithValue(execCtx, parentKey{}, exec.ID), exec, r)

	return exec
}

// Run runs r and waits for it to complete.
func (e *Executor) Run(ctx context.Context, r Runnable) error {
	exec := e.Start(ctx, r)
	<-exec.Done()
	return exec.Err()
}

// runExecution handles the actual run.
func (e *Executor) runExecution(ctx context.Context, exec *Execution, r Runnable) {
	defer exec.cancel()

	exec.mu.Lock()
	exec.startTime = time.Now()
	exec.state = ExecutionStateRunning
	exec.mu.Unlock()

	e.notifyStarted(exec)

	err := e.safeRun(ctx, r)

	exec.mu.Lock()
	exec.endTime = time.Now()
	switch {
	case err == nil:
		exec.state = ExecutionStateSucceeded
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		exec.state = ExecutionStateCanceled
		exec.err = err
	default:
		exec.state = ExecutionStateFailed
		exec.err = attribute(r.Name(), err)
	}
	exec.mu.Unlock()

	e.notifyCompleted(exec)
	exec.markDone()
}

// safeRun converts a panic in r into an error.
func (e *Executor) safeRun(ctx context.Context, r Runnable) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return r.Run(ctx)
}

// attribute wraps err with the task name unless a task error is already
// inside it.
func attribute(name string, err error) error {
	var te *TaskError
	if errors.As(err, &te) {
		return err
	}
	nonFatal := IsNonFatal(err)
	err = &TaskError{Task: name, Err: err}
	if nonFatal {
		return NonFatal(err)
	}
	return err
}

// Notification helpers

func (e *Executor) snapshotListeners() []ExecutionListener {
	e.listenersMu.RLock()
	defer e.listenersMu.RUnlock()
	listeners := make([]ExecutionListener, len(e.listeners))
	copy(listeners, e.listeners)
	return listeners
}

func (e *Executor) notifyStarted(exec *Execution) {
	for _, l := range e.snapshotListeners() {
		l.OnExecutionStarted(exec)
	}
}

func (e *Executor) notifyCompleted(exec *Execution) {
	for _, l := range e.snapshotListeners() {
		l.OnExecutionCompleted(exec)
	}
}

// Execution methods

// Done returns a channel that's closed when execution completes.
func (ex *Execution) Done() <-chan struct{} {
	return ex.done
}

// markDone closes the done channel exactly once.
func (ex *Execution) markDone() {
	ex.doneOnce.Do(func() {
		close(ex.done)
	})
}

// State returns the current execution state.
func (ex *Execution) State() ExecutionState {
	ex.mu.RLock()
	defer ex.mu.RUnlock()
	return ex.state
}

// Err returns the error the execution finished with, if any.
func (ex *Execution) Err() error {
	ex.mu.RLock()
	defer ex.mu.RUnlock()
	return ex.err
}

// IsRunning returns true if the execution is still running.
func (ex *Execution) IsRunning() bool {
	return ex.State() == ExecutionStateRunning
}

// Duration returns the execution duration.
func (ex *Execution) Duration() time.Duration {
	ex.mu.RLock()
	defer ex.mu.RUnlock()

	if ex.startTime.IsZero() {
		return 0
	}

	end := ex.endTime
	if end.IsZero() {
		end = time.Now()
	}

	return end.Sub(ex.startTime)
}
