package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dshills/sitepipe/internal/config"
	"github.com/dshills/sitepipe/internal/log"
	"github.com/dshills/sitepipe/internal/runner"
	"github.com/dshills/sitepipe/internal/trace"
)

// Workspace is what every task of one project shares: where files live,
// which environment the steps are planned for and where step outcomes are
// traced.
type Workspace struct {
	Root   string
	Env    config.Env
	Tracer trace.Sink
}

// Task reads its sources, runs them through its chain and writes the result
// under its destination.
type Task struct {
	name  string
	ws    *Workspace
	src   Sources
	chain *Chain
	dest  string
}

// Task creates a task in the workspace. dest is relative to the root; an
// empty dest writes nothing.
func (w *Workspace) Task(name string, src Sources, chain *Chain, dest string) *Task {
	if chain == nil {
		chain = NewChain()
	}
	return &Task{name: name, ws: w, src: src, chain: chain, dest: dest}
}

// Name returns the task name.
func (t *Task) Name() string { return t.name }

// Sources returns the task's sources.
func (t *Task) Sources() Sources { return t.src }

// Chain returns the task's chain.
func (t *Task) Chain() *Chain { return t.chain }

// Dest returns the destination directory relative to the root.
func (t *Task) Dest() string { return t.dest }

// Run executes the task once. Step errors marked non-fatal are logged and the
// chain continues with the files the step returned; the task then returns
// them joined and still marked non-fatal. Any other error stops the task.
func (t *Task) Run(ctx context.Context) error {
	l := log.Component(log.Get(ctx), "pipeline")
	env := t.ws.Env.String()

	files, err := t.src.Resolve(t.ws.Root)
	if err != nil {
		return err
	}

	active, skipped := t.chain.Plan(t.ws.Env)
	for _, s := range skipped {
		trace.SafeRecord(t.ws.Tracer, trace.Event{Task: t.name, Step: s.Name(), Kind: trace.StepSkipped, Env: env})
	}

	var soft []error
	for _, step := range active {
		if err := ctx.Err(); err != nil {
			return err
		}

		out, err := step.Apply(ctx, files)
		if err != nil {
			trace.SafeRecord(t.ws.Tracer, trace.Event{Task: t.name, Step: step.Name(), Kind: trace.StepFailed, Env: env, Files: len(out)})
			if !runner.IsNonFatal(err) {
				return fmt.Errorf("%s: %w", step.Name(), err)
			}
			l.Warn().Err(err).Str("task", t.name).Str("step", step.Name()).Msg("step reported errors")
			soft = append(soft, err)
			files = out
			continue
		}
		trace.SafeRecord(t.ws.Tracer, trace.Event{Task: t.name, Step: step.Name(), Kind: trace.StepApplied, Env: env, Files: len(out)})
		files = out
	}

	if t.dest != "" {
		if err := WriteFiles(filepath.Join(t.ws.Root, t.dest), files); err != nil {
			return err
		}
		l.Debug().Str("task", t.name).Str("dest", t.dest).Int("files", len(files)).Msg("wrote files")
	}

	return runner.NonFatal(errors.Join(soft...))
}

// WriteFiles writes files under dir at their relative paths, creating
// parent directories as needed.
func WriteFiles(dir string, files []*File) error {
	for _, f := range files {
		if f.Dir {
			continue
		}
		if f.Contents == nil {
			return fmt.Errorf("%w: %s", ErrNoContents, f.Path)
		}
		target := filepath.Join(dir, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
		}
		mode := f.Mode
		if mode == 0 {
			mode = 0o644
		}
		if err := os.WriteFile(target, f.Contents, mode); err != nil {
			return fmt.Errorf("writing %s: %w", target, err)
		}
	}
	return nil
}

// Remove is a step that deletes every file and directory it receives from
// disk. It passes nothing on.
func Remove() Step {
	return StepFunc("remove", func(ctx context.Context, files []*File) ([]*File, error) {
		for _, f := range files {
			if err := os.RemoveAll(f.Abs()); err != nil {
				return nil, fmt.Errorf("removing %s: %w", f.Path, err)
			}
		}
		return nil, nil
	})
}
