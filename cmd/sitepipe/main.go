// Package main is the entry point for sitepipe.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/dshills/sitepipe/internal/config"
	"github.com/dshills/sitepipe/internal/log"
	"github.com/dshills/sitepipe/internal/metrics"
	"github.com/dshills/sitepipe/internal/runner"
	"github.com/dshills/sitepipe/internal/site"
	"github.com/dshills/sitepipe/internal/trace"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if err := newCommand(stdout, stderr).Run(ctx, args); err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			fmt.Fprintln(stderr, "Interrupted")
			return 130
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newCommand(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "sitepipe",
		Usage:     "build front-end assets and serve them with live reload",
		Version:   fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to sitepipe.toml or sitepipe.yaml",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug, info, warn, error); overrides the config",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runTasks(ctx, cmd, stderr, "default")
		},
		Commands: []*cli.Command{
			{
				Name:  "default",
				Usage: "build once, then rebuild on change and serve with live reload",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runTasks(ctx, cmd, stderr, "default")
				},
			},
			{
				Name:  "build",
				Usage: "build once",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runTasks(ctx, cmd, stderr, "build")
				},
			},
			{
				Name:      "run",
				Usage:     "run the named tasks in series",
				ArgsUsage: "<task>...",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					names := cmd.Args().Slice()
					if len(names) == 0 {
						return errors.New("run: no task names given (see 'sitepipe tasks')")
					}
					return runTasks(ctx, cmd, stderr, names...)
				},
			},
			{
				Name:  "tasks",
				Usage: "list tasks and composites",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					s, _, err := setup(ctx, cmd, stderr)
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
					for _, name := range s.Names() {
						fmt.Fprintf(tw, "%s\t%s\n", name, s.Describe(name))
					}
					return tw.Flush()
				},
			},
		},
	}
}

// setup loads configuration and builds the site with logging, metrics and
// tracing attached.
func setup(ctx context.Context, cmd *cli.Command, stderr io.Writer) (*site.Site, context.Context, error) {
	cfg, err := config.Load(config.Options{Path: cmd.String("config")})
	if err != nil {
		return nil, ctx, fmt.Errorf("failed to load config: %w", err)
	}
	if lvl := cmd.String("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
		if err := cfg.Validate(); err != nil {
			return nil, ctx, err
		}
	}

	logger := log.New(log.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: stderr,
	})
	ctx = log.Set(ctx, logger)

	m := metrics.New()
	exec := runner.NewExecutor()
	exec.AddListener(&runner.LogListener{Logger: logger})
	exec.AddListener(m)

	s, err := site.New(cfg, site.Options{
		Executor: exec,
		Metrics:  m,
		Tracer:   trace.LogSink{Logger: log.Component(&logger, "trace")},
	})
	if err != nil {
		return nil, ctx, fmt.Errorf("failed to initialize: %w", err)
	}

	logger.Debug().
		Str("env", cfg.Env.String()).
		Str("root", cfg.Paths.Root).
		Msg("configuration loaded")
	return s, ctx, nil
}

func runTasks(ctx context.Context, cmd *cli.Command, stderr io.Writer, names ...string) error {
	s, ctx, err := setup(ctx, cmd, stderr)
	if err != nil {
		return err
	}
	return s.Run(ctx, names...)
}
