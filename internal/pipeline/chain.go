package pipeline

import (
	"context"

	"github.com/dshills/sitepipe/internal/config"
)

// Step transforms the files flowing through a chain.
type Step interface {
	// Name identifies the step in traces and logs.
	Name() string
	// Apply returns the files that continue down the chain. A step may
	// return fewer, more or different files than it was given.
	Apply(ctx context.Context, files []*File) ([]*File, error)
}

// StepFunc adapts a function to a Step.
func StepFunc(name string, fn func(ctx context.Context, files []*File) ([]*File, error)) Step {
	return &funcStep{name: name, fn: fn}
}

type funcStep struct {
	name string
	fn   func(ctx context.Context, files []*File) ([]*File, error)
}

func (s *funcStep) Name() string { return s.name }

func (s *funcStep) Apply(ctx context.Context, files []*File) ([]*File, error) {
	return s.fn(ctx, files)
}

// EachFile returns a step applying fn to every file independently. A nil
// result drops the file; an error stops the step.
func EachFile(name string, fn func(ctx context.Context, f *File) (*File, error)) Step {
	return StepFunc(name, func(ctx context.Context, files []*File) ([]*File, error) {
		out := make([]*File, 0, len(files))
		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			nf, err := fn(ctx, f)
			if err != nil {
				return nil, err
			}
			if nf != nil {
				out = append(out, nf)
			}
		}
		return out, nil
	})
}

// Predicate decides whether a stage runs under an environment flag.
type Predicate func(env config.Env) bool

// Always is the predicate of unconditional stages.
func Always(config.Env) bool { return true }

// Dev selects development-only stages.
func Dev(env config.Env) bool { return env.IsDev() }

// Prod selects production-only stages.
func Prod(env config.Env) bool { return env.IsProd() }

// Stage is a step guarded by a predicate.
type Stage struct {
	Step Step
	When Predicate
}

// Chain is an ordered list of stages.
type Chain struct {
	stages []Stage
}

// NewChain creates an empty chain.
func NewChain() *Chain {
	return &Chain{}
}

// Pipe appends an unconditional step.
func (c *Chain) Pipe(step Step) *Chain {
	return c.PipeIf(Always, step)
}

// PipeIf appends a step that runs only when when(env) holds. A nil step is
// not appended.
func (c *Chain) PipeIf(when Predicate, step Step) *Chain {
	if step == nil {
		return c
	}
	if when == nil {
		when = Always
	}
	c.stages = append(c.stages, Stage{Step: step, When: when})
	return c
}

// Stages returns the stages in order.
func (c *Chain) Stages() []Stage {
	if c == nil {
		return nil
	}
	return append([]Stage(nil), c.stages...)
}

// Plan evaluates every predicate against env and splits the steps into
// those that run and those that are skipped, each in chain order.
func (c *Chain) Plan(env config.Env) (active, skipped []Step) {
	if c == nil {
		return nil, nil
	}
	for _, s := range c.stages {
		if s.When(env) {
			active = append(active, s.Step)
		} else {
			skipped = append(skipped, s.Step)
		}
	}
	return active, skipped
}
