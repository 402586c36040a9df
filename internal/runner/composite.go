package runner

import (
	"context"
	"errors"
)

// Composite is a named group of runnables executed in series or in parallel.
type Composite struct {
	name     string
	parallel bool
	children []Runnable
	exec     *Executor
}

// Series returns a composite that runs children one after another.
func (e *Executor) Series(name string, children ...Runnable) *Composite {
	return &Composite{name: name, children: children, exec: e}
}

// Parallel returns a composite that runs children concurrently.
func (e *Executor) Parallel(name string, children ...Runnable) *Composite {
	return &Composite{name: name, parallel: true, children: children, exec: e}
}

// Name returns the composite name.
func (c *Composite) Name() string { return c.name }

// Children returns the direct children in declaration order.
func (c *Composite) Children() []Runnable {
	out := make([]Runnable, len(c.children))
	copy(out, c.children)
	return out
}

// IsParallel reports whether children run concurrently.
func (c *Composite) IsParallel() bool { return c.parallel }

// Run executes the children.
func (c *Composite) Run(ctx context.Context) error {
	if len(c.children) == 0 {
		return ErrNoTasks
	}
	if c.parallel {
		return c.runParallel(ctx)
	}
	return c.runSeries(ctx)
}

func (c *Composite) runSeries(ctx context.Context) error {
	var errs []error
	for _, child := range c.children {
		if ctx.Err() != nil {
			errs = append(errs, context.Cause(ctx))
			break
		}

		exec := c.exec.Start(ctx, child)
		<-exec.Done()

		if err := exec.Err(); err != nil {
			errs = append(errs, err)
			if !IsNonFatal(err) {
				break
			}
		}
	}
	return errors.Join(errs...)
}

func (c *Composite) runParallel(ctx context.Context) error {
	execs := make([]*Execution, len(c.children))
	for i, child := range c.children {
		execs[i] = c.exec.Start(ctx, child)
	}

	var errs []error
	for _, exec := range execs {
		<-exec.Done()
		if err := exec.Err(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
