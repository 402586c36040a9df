// Package site assembles the project's tasks, composites and watch bindings
// from configuration.
//
// Every task the project defines is addressable by name:
//
//	clean copyhtml styles copycss copyfonts copyimg script icon
//	stream server build default
package site

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"sort"

	"github.com/dshills/sitepipe/internal/assets"
	"github.com/dshills/sitepipe/internal/config"
	"github.com/dshills/sitepipe/internal/devserver"
	"github.com/dshills/sitepipe/internal/metrics"
	"github.com/dshills/sitepipe/internal/pipeline"
	"github.com/dshills/sitepipe/internal/runner"
	"github.com/dshills/sitepipe/internal/trace"
	"github.com/dshills/sitepipe/internal/watch"
)

// ErrUnknownTask is returned for a task name the site does not define.
var ErrUnknownTask = errors.New("unknown task")

// Options supplies the collaborators a Site does not build itself.
type Options struct {
	// Executor runs every task. Defaults to a new executor.
	Executor *runner.Executor

	// Compiler compiles Sass. Defaults to the sass CLI from the config.
	Compiler assets.Compiler

	// Tracer receives step outcomes.
	Tracer trace.Sink

	// Metrics, when set, is served by the dev server and counts reloads.
	Metrics *metrics.Metrics

	// Watcher replaces the file system watcher of the stream task.
	Watcher watch.Watcher
}

// Site is the set of tasks built from one configuration.
type Site struct {
	cfg    *config.Config
	exec   *runner.Executor
	ws     *pipeline.Workspace
	tasks  map[string]runner.Runnable
	order  []string
	stream *watch.Session
	server *devserver.Server
}

// New builds every task. It fails when the configuration names unknown
// browser or language targets or an invalid attribute pattern.
func New(cfg *config.Config, opts Options) (*Site, error) {
	s := &Site{
		cfg:   cfg,
		exec:  opts.Executor,
		tasks: make(map[string]runner.Runnable),
		ws: &pipeline.Workspace{
			Root:   cfg.Paths.Root,
			Env:    cfg.Env,
			Tracer: opts.Tracer,
		},
	}
	if s.exec == nil {
		s.exec = runner.NewExecutor()
	}
	compiler := opts.Compiler
	if compiler == nil {
		compiler = &assets.SassCLI{Binary: cfg.Styles.Sass, Args: cfg.Styles.SassArgs}
	}

	prefix, err := assets.Prefix(cfg.Styles.Targets)
	if err != nil {
		return nil, fmt.Errorf("styles.targets: %w", err)
	}
	transpile, err := assets.Transpile(cfg.Scripts.Target)
	if err != nil {
		return nil, fmt.Errorf("scripts.target: %w", err)
	}
	styleLua, err := assets.Lua(absAll(cfg, cfg.Styles.Transforms)...)
	if err != nil {
		return nil, fmt.Errorf("styles.transforms: %w", err)
	}
	scriptLua, err := assets.Lua(absAll(cfg, cfg.Scripts.Transforms)...)
	if err != nil {
		return nil, fmt.Errorf("scripts.transforms: %w", err)
	}
	strip, err := regexp.Compile(cfg.Icons.StripAttrs)
	if err != nil {
		return nil, fmt.Errorf("icons.strip_attrs: %w", err)
	}

	s.add(s.ws.Task("clean",
		pipeline.Sources{Patterns: []string{path.Join(cfg.Paths.Dist, "**/*")}, SkipRead: true, Dirs: true},
		pipeline.NewChain().Pipe(pipeline.Remove()),
		""))

	s.add(s.ws.Task("copyhtml",
		pipeline.Src(cfg.HTML.Inputs...),
		pipeline.NewChain().PipeIf(pipeline.Prod, assets.MinifyHTML()),
		cfg.HTML.Dest))

	s.add(s.ws.Task("styles",
		pipeline.Src(cfg.Styles.Inputs...),
		pipeline.NewChain().
			PipeIf(pipeline.Dev, assets.InitSourceMaps()).
			Pipe(assets.SassGlob()).
			Pipe(assets.Sass(compiler)).
			Pipe(assets.Concat(cfg.Styles.Output)).
			Pipe(prefix).
			Pipe(styleLua).
			PipeIf(pipeline.Prod, assets.GroupMediaQueries()).
			PipeIf(pipeline.Prod, assets.MinifyCSS()).
			PipeIf(pipeline.Dev, assets.WriteSourceMaps()),
		cfg.Styles.Dest))

	s.add(s.ws.Task("copycss",
		pipeline.Src(path.Join(cfg.Styles.Dest, cfg.Styles.Output)),
		nil,
		cfg.Paths.Dist))

	s.add(s.ws.Task("copyfonts", pipeline.Src(cfg.Fonts.Inputs...), nil, cfg.Fonts.Dest))

	s.add(s.ws.Task("copyimg", pipeline.Src(cfg.Images.Inputs...), nil, cfg.Images.Dest))

	s.add(s.ws.Task("script",
		pipeline.Src(cfg.Scripts.Inputs...),
		pipeline.NewChain().
			PipeIf(pipeline.Dev, assets.InitSourceMaps()).
			Pipe(assets.Concat(cfg.Scripts.Output)).
			Pipe(scriptLua).
			PipeIf(pipeline.Prod, transpile).
			PipeIf(pipeline.Prod, assets.MinifyJS()).
			PipeIf(pipeline.Dev, assets.WriteSourceMaps()),
		cfg.Scripts.Dest))

	s.add(s.ws.Task("icon",
		pipeline.Src(cfg.Icons.Inputs...),
		pipeline.NewChain().
			Pipe(assets.CleanSVG(strip)).
			Pipe(assets.MinifySVG()).
			Pipe(assets.Sprite(cfg.Icons.Sprite)),
		cfg.Icons.Dest))

	srvOpts := devserver.Options{
		Root: cfg.Abs(cfg.Paths.Dist),
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}
	if opts.Metrics != nil {
		srvOpts.Metrics = opts.Metrics.Handler()
		srvOpts.OnReload = opts.Metrics.ObserveReload
	}
	s.server = devserver.New(srvOpts)

	debounce, err := cfg.DebounceDelay()
	if err != nil {
		return nil, fmt.Errorf("watch.debounce: %w", err)
	}
	s.stream = watch.NewSession("stream", cfg.Paths.Root, s.exec, watch.Options{
		Debounce: debounce,
		Dirs:     []string{cfg.Paths.Src},
		Ignore:   append(append([]string{}, cfg.Watch.Ignore...), "/"+path.Clean(cfg.Paths.Dist)+"/"),
		Watcher:  opts.Watcher,
	}, s.bindings()...)
	s.add(s.stream)
	s.add(s.server)

	s.add(s.exec.Series("build", s.buildSteps()...))
	s.add(runner.Func("default", s.runDefault))

	return s, nil
}

func (s *Site) add(r runner.Runnable) {
	s.tasks[r.Name()] = r
	s.order = append(s.order, r.Name())
}

func (s *Site) buildSteps() []runner.Runnable {
	return s.must("clean", "copyhtml", "script", "styles", "copycss", "copyfonts", "copyimg", "icon")
}

func (s *Site) must(names ...string) []runner.Runnable {
	out := make([]runner.Runnable, len(names))
	for i, n := range names {
		out[i] = s.tasks[n]
	}
	return out
}

// bindings rebuild what a change affects and then reload the browser.
func (s *Site) bindings() []watch.Binding {
	reload := s.server.Reload
	c := s.cfg
	return []watch.Binding{
		{
			Name:     "styles",
			Patterns: c.Styles.Watch,
			Target:   s.exec.Series("styles:watch", s.must("styles", "copycss", "copyhtml")...),
			Notify:   reload,
		},
		{Name: "html", Patterns: c.HTML.Watch, Target: s.tasks["copyhtml"], Notify: reload},
		{Name: "scripts", Patterns: c.Scripts.Watch, Target: s.tasks["script"], Notify: reload},
		{Name: "icons", Patterns: c.Icons.Watch, Target: s.tasks["icon"], Notify: reload},
	}
}

// runDefault builds once, then watches and serves until ctx is done. A
// server that cannot start stops the watcher too.
func (s *Site) runDefault(ctx context.Context) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	steps := append(s.buildSteps(), s.exec.Parallel("watch+serve",
		s.stream,
		runner.Critical(s.server, cancel),
	))
	return s.exec.Series("default", steps...).Run(ctx)
}

// Task returns the named task or composite.
func (s *Site) Task(name string) (runner.Runnable, error) {
	r, ok := s.tasks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, name)
	}
	return r, nil
}

// Names returns every task name in definition order.
func (s *Site) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Run runs the named tasks one after another through the executor. With a
// single name the task runs directly.
func (s *Site) Run(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return runner.ErrNoTasks
	}
	steps := make([]runner.Runnable, 0, len(names))
	var unknown []string
	for _, n := range names {
		r, ok := s.tasks[n]
		if !ok {
			unknown = append(unknown, n)
			continue
		}
		steps = append(steps, r)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: %q", ErrUnknownTask, unknown)
	}
	if len(steps) == 1 {
		return s.exec.Run(ctx, steps[0])
	}
	return s.exec.Run(ctx, s.exec.Series("run", steps...))
}

// Executor returns the executor tasks run on.
func (s *Site) Executor() *runner.Executor { return s.exec }

// Server returns the dev server.
func (s *Site) Server() *devserver.Server { return s.server }

// Stream returns the watch session.
func (s *Site) Stream() *watch.Session { return s.stream }

// Describe returns a one-line description of a task for listings.
func (s *Site) Describe(name string) string {
	switch r := s.tasks[name].(type) {
	case *pipeline.Task:
		return fmt.Sprintf("%v -> %s", r.Sources().Patterns, destOrNone(r.Dest()))
	case *runner.Composite:
		kind := "series"
		if r.IsParallel() {
			kind = "parallel"
		}
		return fmt.Sprintf("%s(%s)", kind, joinNames(r.Children()))
	case *watch.Session:
		return fmt.Sprintf("watch %d bindings", len(r.Bindings()))
	case *devserver.Server:
		return fmt.Sprintf("serve %s on %s:%d", s.cfg.Paths.Dist, s.cfg.Server.Host, s.cfg.Server.Port)
	}
	if name == "default" {
		return fmt.Sprintf("series(%s, parallel(stream, server))", joinNames(s.buildSteps()))
	}
	return ""
}

func destOrNone(d string) string {
	if d == "" {
		return "(removed)"
	}
	return d
}

func joinNames(rs []runner.Runnable) string {
	var out string
	for i, r := range rs {
		if i > 0 {
			out += ", "
		}
		out += r.Name()
	}
	return out
}

func absAll(cfg *config.Config, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = cfg.Abs(p)
	}
	return out
}
