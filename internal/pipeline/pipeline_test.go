package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/sitepipe/internal/config"
	"github.com/dshills/sitepipe/internal/runner"
	"github.com/dshills/sitepipe/internal/trace"
)

// writeTree creates files under root from a path -> contents map.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for p, contents := range files {
		full := filepath.Join(root, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(contents), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func paths(files []*File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func join(s []string) string { return strings.Join(s, ",") }

func TestSources_OrderAndDedupe(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"vendor/b.css":   "b",
		"vendor/a.css":   "a",
		"app/main.scss":  "m",
		"app/x/deep.css": "d",
	})

	src := Src("app/main.scss", "vendor/*.css", "vendor/a.css")
	files, err := src.Resolve(root)
	if err != nil {
		t.Fatal(err)
	}

	if got := join(paths(files)); got != "main.scss,a.css,b.css" {
		t.Errorf("paths = %s", got)
	}
	if string(files[0].Contents) != "m" {
		t.Errorf("contents = %q", files[0].Contents)
	}
	if files[1].Base != filepath.Join(root, "vendor") {
		t.Errorf("Base = %q", files[1].Base)
	}
}

func TestSources_GlobStarPreservesRelativePath(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"app/fonts/a.woff":         "1",
		"app/fonts/roboto/b.woff2": "2",
	})

	files, err := Src("app/fonts/**/*").Resolve(root)
	if err != nil {
		t.Fatal(err)
	}
	if got := join(paths(files)); got != "a.woff,roboto/b.woff2" {
		t.Errorf("paths = %s", got)
	}
}

func TestSources_Negation(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"app/images/logo.png":        "p",
		"app/images/icons/a.svg":     "<svg/>",
		"app/images/photos/x.jpg":    "j",
		"app/images/icons/sub/b.svg": "<svg/>",
	})

	files, err := Src("app/images/**/*", "!app/images/icons/**").Resolve(root)
	if err != nil {
		t.Fatal(err)
	}
	if got := join(paths(files)); got != "logo.png,photos/x.jpg" {
		t.Errorf("paths = %s", got)
	}
}

func TestSources_MissingLiteral(t *testing.T) {
	root := t.TempDir()
	_, err := Src("node_modules/normalize.css/normalize.css").Resolve(root)
	if !errors.Is(err, ErrMissingInput) {
		t.Errorf("err = %v, want ErrMissingInput", err)
	}
}

func TestSources_EmptyGlob(t *testing.T) {
	files, err := Src("app/js/*.js").Resolve(t.TempDir())
	if err != nil || len(files) != 0 {
		t.Errorf("Resolve = %v, %v; want no files and no error", files, err)
	}
}

func TestSources_BadPattern(t *testing.T) {
	_, err := Src("app/[").Resolve(t.TempDir())
	if !errors.Is(err, ErrBadPattern) {
		t.Errorf("err = %v, want ErrBadPattern", err)
	}
}

func TestSources_DirsWithoutRead(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"dist/index.html":   "x",
		"dist/fonts/a.woff": "y",
	})

	files, err := Sources{Patterns: []string{"dist/**/*"}, SkipRead: true, Dirs: true}.Resolve(root)
	if err != nil {
		t.Fatal(err)
	}
	if got := join(paths(files)); got != "fonts,fonts/a.woff,index.html" {
		t.Errorf("paths = %s", got)
	}
	for _, f := range files {
		if f.Contents != nil {
			t.Errorf("%s was read", f.Path)
		}
		if f.Path == "fonts" && !f.Dir {
			t.Error("fonts should be a directory")
		}
	}
}

func TestSources_Match(t *testing.T) {
	src := Src("app/images/**/*", "!app/images/icons/**")
	tests := map[string]bool{
		"app/images/a.png":       true,
		"app/images/icons/a.svg": false,
		"app/js/main.js":         false,
		"./app/images/b/c.jpg":   true,
	}
	for p, want := range tests {
		if got := src.Match(p); got != want {
			t.Errorf("Match(%q) = %v, want %v", p, got, want)
		}
	}
}

func namedStep(name string) Step {
	return StepFunc(name, func(ctx context.Context, files []*File) ([]*File, error) {
		return files, nil
	})
}

func TestChain_Plan(t *testing.T) {
	chain := NewChain().
		PipeIf(Dev, namedStep("sourcemaps.init")).
		Pipe(namedStep("sass")).
		PipeIf(Prod, namedStep("minify")).
		PipeIf(Dev, namedStep("sourcemaps.write"))

	tests := []struct {
		env     config.Env
		active  string
		skipped string
	}{
		{config.EnvDev, "sourcemaps.init,sass,sourcemaps.write", "minify"},
		{config.EnvProd, "sass,minify", "sourcemaps.init,sourcemaps.write"},
		{"", "sass", "sourcemaps.init,minify,sourcemaps.write"},
		{"staging", "sass", "sourcemaps.init,minify,sourcemaps.write"},
	}

	for _, tt := range tests {
		active, skipped := chain.Plan(tt.env)
		if got := join(stepNames(active)); got != tt.active {
			t.Errorf("env %q active = %s, want %s", tt.env, got, tt.active)
		}
		if got := join(stepNames(skipped)); got != tt.skipped {
			t.Errorf("env %q skipped = %s, want %s", tt.env, got, tt.skipped)
		}
	}
}

func stepNames(steps []Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Name()
	}
	return out
}

func upper() Step {
	return EachFile("upper", func(ctx context.Context, f *File) (*File, error) {
		c := f.Clone()
		c.Contents = bytes.ToUpper(c.Contents)
		return c, nil
	})
}

func TestTask_RunWritesAndTraces(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"app/js/main.js":     "a();",
		"app/js/lib/util.js": "u();",
	})

	rec := trace.NewRecorder()
	ws := &Workspace{Root: root, Env: config.EnvProd, Tracer: rec}
	task := ws.Task("script", Src("app/js/**/*.js"),
		NewChain().PipeIf(Dev, namedStep("sourcemaps.init")).PipeIf(Prod, upper()), "dist")

	if err := task.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(filepath.Join(root, "dist", "lib", "util.js"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "U();" {
		t.Errorf("util.js = %q", got)
	}

	if s := rec.Steps("script", trace.StepApplied); join(s) != "upper" {
		t.Errorf("applied = %v", s)
	}
	if s := rec.Steps("script", trace.StepSkipped); join(s) != "sourcemaps.init" {
		t.Errorf("skipped = %v", s)
	}
}

func TestTask_Idempotent(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"app/index.html": "<p>hi</p>"})

	ws := &Workspace{Root: root}
	task := ws.Task("copyhtml", Src("app/index.html"), nil, "dist")

	var outputs [2][]byte
	for i := range outputs {
		if err := task.Run(context.Background()); err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(filepath.Join(root, "dist", "index.html"))
		if err != nil {
			t.Fatal(err)
		}
		outputs[i] = data
	}
	if !bytes.Equal(outputs[0], outputs[1]) {
		t.Errorf("outputs differ: %q vs %q", outputs[0], outputs[1])
	}
}

func TestTask_NonFatalStepContinues(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"app/a.css": "a", "app/b.css": "b"})

	compile := errors.New("b.css: syntax error")
	dropB := StepFunc("compile", func(ctx context.Context, files []*File) ([]*File, error) {
		var out []*File
		for _, f := range files {
			if f.Path != "b.css" {
				out = append(out, f)
			}
		}
		return out, runner.NonFatal(compile)
	})

	rec := trace.NewRecorder()
	ws := &Workspace{Root: root, Tracer: rec}
	err := ws.Task("styles", Src("app/*.css"), NewChain().Pipe(dropB).Pipe(upper()), "out").Run(context.Background())

	if !errors.Is(err, compile) || !runner.IsNonFatal(err) {
		t.Fatalf("err = %v, want non-fatal compile error", err)
	}
	if data, _ := os.ReadFile(filepath.Join(root, "out", "a.css")); string(data) != "A" {
		t.Errorf("a.css = %q, want A", data)
	}
	if _, err := os.Stat(filepath.Join(root, "out", "b.css")); !os.IsNotExist(err) {
		t.Error("b.css should not be written")
	}
	if s := rec.Steps("styles", trace.StepFailed); join(s) != "compile" {
		t.Errorf("failed = %v", s)
	}
}

func TestTask_FatalStepAborts(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"app/a.js": "a"})

	boom := errors.New("boom")
	ws := &Workspace{Root: root}
	err := ws.Task("script", Src("app/*.js"),
		NewChain().Pipe(StepFunc("fail", func(context.Context, []*File) ([]*File, error) { return nil, boom })),
		"dist").Run(context.Background())

	if !errors.Is(err, boom) || runner.IsNonFatal(err) {
		t.Fatalf("err = %v, want fatal boom", err)
	}
	if _, err := os.Stat(filepath.Join(root, "dist")); !os.IsNotExist(err) {
		t.Error("dist should not exist after a fatal step")
	}
}

func TestTask_MissingInputIsFatal(t *testing.T) {
	ws := &Workspace{Root: t.TempDir()}
	err := ws.Task("styles", Src("app/scss/main.scss"), nil, "app/css").Run(context.Background())
	if !errors.Is(err, ErrMissingInput) || runner.IsNonFatal(err) {
		t.Errorf("err = %v, want fatal ErrMissingInput", err)
	}
}

func TestRemove(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"dist/index.html":         "x",
		"dist/images/icons/s.svg": "y",
		"app/index.html":          "keep",
	})

	ws := &Workspace{Root: root}
	clean := ws.Task("clean", Sources{Patterns: []string{"dist/**/*"}, SkipRead: true, Dirs: true},
		NewChain().Pipe(Remove()), "")
	if err := clean.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(filepath.Join(root, "dist"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("dist not empty: %v", entries)
	}
	if _, err := os.Stat(filepath.Join(root, "app", "index.html")); err != nil {
		t.Error("sources outside dist were removed")
	}

	// Cleaning an already clean tree is fine.
	if err := clean.Run(context.Background()); err != nil {
		t.Errorf("second clean: %v", err)
	}
}

func TestWriteFiles_NoContents(t *testing.T) {
	err := WriteFiles(t.TempDir(), []*File{{Path: "a.txt"}})
	if !errors.Is(err, ErrNoContents) {
		t.Errorf("err = %v, want ErrNoContents", err)
	}
}
