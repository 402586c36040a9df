package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dshills/sitepipe/internal/log"
	"github.com/dshills/sitepipe/internal/pipeline"
	"github.com/dshills/sitepipe/internal/runner"
)

// Binding re-runs Target when a path matching Patterns changes.
type Binding struct {
	Name string

	// Patterns are root relative globs; a leading ! excludes.
	Patterns []string

	Target runner.Runnable

	// Notify is called after every run that did not fail fatally.
	Notify func()
}

// Options configures a Session.
type Options struct {
	// Debounce is the quiet period per path before an event is dispatched.
	Debounce time.Duration

	// Dirs are the root relative directories to watch. Empty means root.
	Dirs []string

	// Ignore holds gitignore-style rules for paths that are never watched.
	Ignore []string

	// Watcher replaces the fsnotify watcher. The session closes it.
	Watcher Watcher
}

// Session dispatches file changes under a root to bindings. It implements
// runner.Runnable so it can run alongside the dev server.
type Session struct {
	name     string
	root     string
	exec     *runner.Executor
	opts     Options
	bindings []*binding
}

type binding struct {
	Binding
	src pipeline.Sources

	mu      sync.Mutex
	running bool
	dirty   bool
}

// NewSession creates a session for the project at root. Targets run through
// exec so their executions are observed by its listeners.
func NewSession(name, root string, exec *runner.Executor, opts Options, bindings ...Binding) *Session {
	s := &Session{name: name, root: root, exec: exec, opts: opts}
	for _, b := range bindings {
		s.bindings = append(s.bindings, &binding{Binding: b, src: pipeline.Src(b.Patterns...)})
	}
	return s
}

// Name returns the session name.
func (s *Session) Name() string { return s.name }

// Bindings returns the configured bindings.
func (s *Session) Bindings() []Binding {
	out := make([]Binding, len(s.bindings))
	for i, b := range s.bindings {
		out[i] = b.Binding
	}
	return out
}

// Run watches until ctx is done, then waits for in-flight runs to finish.
// Errors from triggered runs are logged and never end the session.
func (s *Session) Run(ctx context.Context) error {
	l := log.Component(log.Get(ctx), "watch")
	ctx = log.Set(ctx, l)

	root, err := filepath.Abs(s.root)
	if err != nil {
		return err
	}

	w := s.opts.Watcher
	if w == nil {
		ig, err := NewIgnore(s.opts.Ignore...)
		if err != nil {
			return err
		}
		fw, err := NewFSWatcher(root, ig, 0)
		if err != nil {
			return err
		}
		dirs := s.opts.Dirs
		if len(dirs) == 0 {
			dirs = []string{"."}
		}
		for _, d := range dirs {
			if err := fw.WatchRecursive(filepath.Join(root, d)); err != nil {
				_ = fw.Close()
				return fmt.Errorf("watching %s: %w", d, err)
			}
		}
		l.Debug().Int("dirs", fw.WatchedDirs()).Msg("watching")
		w = NewDebouncer(fw, s.opts.Debounce)
	}
	defer w.Close()

	for _, b := range s.bindings {
		l.Info().Str("binding", b.Name).Strs("patterns", b.Patterns).Msg("watching for changes")
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events():
			if !ok {
				return nil
			}
			s.dispatch(ctx, root, event, &wg)

		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			l.Warn().Err(err).Msg("watcher error")
		}
	}
}

func (s *Session) dispatch(ctx context.Context, root string, event Event, wg *sync.WaitGroup) {
	rel, err := filepath.Rel(root, event.Path)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	for _, b := range s.bindings {
		if !b.src.Match(rel) {
			continue
		}
		log.Get(ctx).Debug().Str("binding", b.Name).Str("path", rel).Stringer("op", event.Op).Msg("change")
		s.trigger(ctx, b, wg)
	}
}

// trigger starts b unless it is running, in which case it is marked dirty
// and runs once more when the current run completes.
func (s *Session) trigger(ctx context.Context, b *binding, wg *sync.WaitGroup) {
	b.mu.Lock()
	if b.running {
		b.dirty = true
		b.mu.Unlock()
		return
	}
	b.running = true
	b.mu.Unlock()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			s.runOnce(ctx, b)

			b.mu.Lock()
			if !b.dirty || ctx.Err() != nil {
				b.running, b.dirty = false, false
				b.mu.Unlock()
				return
			}
			b.dirty = false
			b.mu.Unlock()
		}
	}()
}

func (s *Session) runOnce(ctx context.Context, b *binding) {
	l := log.Get(ctx)
	err := s.exec.Run(ctx, b.Target)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		l.Error().Err(err).Str("binding", b.Name).Bool("fatal", !runner.IsNonFatal(err)).Msg("rebuild failed")
	}
	if (err == nil || runner.IsNonFatal(err)) && b.Notify != nil {
		b.Notify()
	}
}
