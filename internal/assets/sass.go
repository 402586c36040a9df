package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"github.com/dshills/sitepipe/internal/log"
	"github.com/dshills/sitepipe/internal/pipeline"
	"github.com/dshills/sitepipe/internal/runner"
	"github.com/dshills/sitepipe/internal/sourcemap"
)

// CompileError is a stylesheet that failed to compile.
type CompileError struct {
	// Path is the input file, relative to its base.
	Path    string
	Problem Problem
	// Output is the compiler's diagnostic output.
	Output string
}

func (e *CompileError) Error() string {
	if e.Problem.Message == "" {
		return fmt.Sprintf("compiling %s: %s", e.Path, strings.TrimSpace(e.Output))
	}
	p := e.Problem
	if p.File == "" || p.File == "-" || p.File == "stdin" {
		p.File = e.Path
	}
	return "compiling " + p.String()
}

// Compiler turns one Sass source into CSS.
type Compiler interface {
	// Compile returns the CSS for f. When withMap is set it also returns a
	// source map of the CSS back to the Sass sources. A source that does not
	// compile yields a *CompileError; any other error means the compiler
	// itself could not run.
	Compile(ctx context.Context, f *pipeline.File, withMap bool) ([]byte, *sourcemap.Map, error)
}

// SassCLI compiles with the dart-sass command line tool.
type SassCLI struct {
	// Binary is the sass executable. Defaults to "sass".
	Binary string
	// Args are appended to every invocation.
	Args []string
}

// Compile runs sass with the file on stdin.
func (c *SassCLI) Compile(ctx context.Context, f *pipeline.File, withMap bool) ([]byte, *sourcemap.Map, error) {
	bin := c.Binary
	if bin == "" {
		bin = "sass"
	}

	args := []string{"--stdin", "--load-path=" + filepath.Dir(f.Abs())}
	if f.Ext() == ".sass" {
		args = append(args, "--indented")
	}
	if withMap {
		args = append(args, "--embed-source-map", "--embed-sources")
	} else {
		args = append(args, "--no-source-map")
	}
	args = append(args, c.Args...)

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = f.Base
	cmd.Stdin = bytes.NewReader(f.Contents)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			problem, _ := matchProblem(stderr.String(), sassPatterns)
			return nil, nil, &CompileError{Path: f.Path, Problem: problem, Output: stderr.String()}
		}
		return nil, nil, fmt.Errorf("running %s: %w", bin, err)
	}

	if !withMap {
		return stdout.Bytes(), nil, nil
	}

	css, m, err := sourcemap.Extract(stdout.String())
	if err != nil {
		return nil, nil, err
	}
	if m != nil {
		for i, s := range m.Sources {
			// The stdin source shows up under a placeholder URL.
			if s == "-" || s == "stdin" || strings.HasPrefix(s, "data:") {
				m.Sources[i] = f.Path
			}
		}
	}
	return []byte(css), m, nil
}

// Sass compiles .scss and .sass files to CSS with c. Plain .css files pass
// through unchanged and partials (names starting with "_") are dropped.
//
// A file that fails to compile is dropped and reported; the remaining files
// continue and the step returns the compile errors marked non-fatal. A
// compiler that cannot run at all stops the step.
func Sass(c Compiler) pipeline.Step {
	return pipeline.StepFunc("sass", func(ctx context.Context, files []*pipeline.File) ([]*pipeline.File, error) {
		l := log.Component(log.Get(ctx), "sass")

		out := make([]*pipeline.File, 0, len(files))
		var compileErrs []error
		for _, f := range files {
			ext := f.Ext()
			if ext != ".scss" && ext != ".sass" {
				out = append(out, f)
				continue
			}
			if strings.HasPrefix(f.Basename(), "_") {
				continue
			}

			css, m, err := c.Compile(ctx, f, f.Map != nil)
			if err != nil {
				var ce *CompileError
				if errors.As(err, &ce) {
					l.Error().Str("file", f.Path).Msg(ce.Error())
					compileErrs = append(compileErrs, ce)
					continue
				}
				return nil, err
			}

			nf := f.WithPath(cssPath(f.Path))
			nf.Contents = css
			if f.Map != nil {
				if m == nil {
					m = sourcemap.Identity(nf.Path, string(css))
				}
				nf.Map = m
			}
			out = append(out, nf)
		}
		return out, runner.NonFatal(errors.Join(compileErrs...))
	})
}

// cssPath returns p with its extension replaced by .css.
func cssPath(p string) string {
	return strings.TrimSuffix(p, path.Ext(p)) + ".css"
}
