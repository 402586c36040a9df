package assets

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/dshills/sitepipe/internal/pipeline"
	"github.com/dshills/sitepipe/internal/sourcemap"
)

var (
	// ErrUnknownTarget is returned for a browser or language target esbuild
	// does not know.
	ErrUnknownTarget = errors.New("unknown target")

	targetPattern = regexp.MustCompile(`^([a-z]+)\s*([0-9][0-9.]*)$`)

	engineNames = map[string]api.EngineName{
		"chrome":  api.EngineChrome,
		"edge":    api.EngineEdge,
		"firefox": api.EngineFirefox,
		"ie":      api.EngineIE,
		"ios":     api.EngineIOS,
		"node":    api.EngineNode,
		"opera":   api.EngineOpera,
		"safari":  api.EngineSafari,
	}

	languageTargets = map[string]api.Target{
		"es5":    api.ES5,
		"es2015": api.ES2015,
		"es2016": api.ES2016,
		"es2017": api.ES2017,
		"es2018": api.ES2018,
		"es2019": api.ES2019,
		"es2020": api.ES2020,
		"es2021": api.ES2021,
		"es2022": api.ES2022,
		"esnext": api.ESNext,
	}
)

// ParseEngines converts browser targets such as "chrome58" or "safari 11"
// to esbuild engines.
func ParseEngines(targets []string) ([]api.Engine, error) {
	engines := make([]api.Engine, 0, len(targets))
	for _, t := range targets {
		m := targetPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(t)))
		if m == nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, t)
		}
		name, ok := engineNames[m[1]]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, t)
		}
		engines = append(engines, api.Engine{Name: name, Version: m[2]})
	}
	return engines, nil
}

// ParseTarget converts a language level such as "es2015" to an esbuild target.
func ParseTarget(s string) (api.Target, error) {
	t, ok := languageTargets[strings.ToLower(s)]
	if !ok {
		return api.DefaultTarget, fmt.Errorf("%w: %q", ErrUnknownTarget, s)
	}
	return t, nil
}

// Prefix adds the vendor prefixes the browser targets need and lowers
// syntax they do not support.
func Prefix(targets []string) (pipeline.Step, error) {
	engines, err := ParseEngines(targets)
	if err != nil {
		return nil, err
	}
	return pipeline.EachFile("prefix", func(ctx context.Context, f *pipeline.File) (*pipeline.File, error) {
		return transform(f, api.TransformOptions{
			Loader:  api.LoaderCSS,
			Engines: engines,
		})
	}), nil
}

// Transpile lowers scripts to the given language level.
func Transpile(target string) (pipeline.Step, error) {
	t, err := ParseTarget(target)
	if err != nil {
		return nil, err
	}
	return pipeline.EachFile("transpile", func(ctx context.Context, f *pipeline.File) (*pipeline.File, error) {
		return transform(f, api.TransformOptions{
			Loader: api.LoaderJS,
			Target: t,
		})
	}), nil
}

// transform runs an esbuild transform over f. A tracked source map is fed
// in inline and the transform's map replaces it.
func transform(f *pipeline.File, opts api.TransformOptions) (*pipeline.File, error) {
	if f.Contents == nil {
		return nil, fmt.Errorf("%w: %s", pipeline.ErrNoContents, f.Path)
	}

	input := string(f.Contents)
	opts.Sourcefile = f.Path
	opts.LogLevel = api.LogLevelSilent
	if f.Map != nil {
		embedded, err := sourcemap.Embed(input, f.Map, sourcemap.StyleFor(f.Path))
		if err != nil {
			return nil, err
		}
		input = embedded
		opts.Sourcemap = api.SourceMapExternal
		opts.SourcesContent = api.SourcesContentInclude
	}

	result := api.Transform(input, opts)
	if len(result.Errors) > 0 {
		errs := make([]error, len(result.Errors))
		for i, msg := range result.Errors {
			errs[i] = formatMessage(f.Path, msg)
		}
		return nil, errors.Join(errs...)
	}

	nf := f.Clone()
	nf.Contents = result.Code
	if f.Map != nil {
		m, err := sourcemap.Parse(result.Map)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Path, err)
		}
		nf.Map = m
	}
	return nf, nil
}

func formatMessage(file string, msg api.Message) error {
	if msg.Location == nil {
		return fmt.Errorf("%s: %s", file, msg.Text)
	}
	return fmt.Errorf("%s:%d:%d: %s", file, msg.Location.Line, msg.Location.Column+1, msg.Text)
}
