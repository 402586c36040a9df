package assets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/dshills/sitepipe/internal/pipeline"
	"github.com/dshills/sitepipe/internal/runner"
	"github.com/dshills/sitepipe/internal/sourcemap"
)

// fakeCompiler compiles by upper-casing, and fails for the listed paths.
type fakeCompiler struct {
	fail map[string]bool
}

func (c *fakeCompiler) Compile(ctx context.Context, f *pipeline.File, withMap bool) ([]byte, *sourcemap.Map, error) {
	if c.fail[f.Path] {
		return nil, nil, &CompileError{
			Path:    f.Path,
			Problem: Problem{File: "-", Line: 2, Column: 16, Message: `expected "}".`},
		}
	}
	return []byte(strings.ToUpper(string(f.Contents))), nil, nil
}

func file(p, contents string) *pipeline.File {
	return pipeline.NewFile("/project/app", p, []byte(contents))
}

func names(files []*pipeline.File) string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return strings.Join(out, ",")
}

func TestSass_CompileErrorDropsFile(t *testing.T) {
	step := Sass(&fakeCompiler{fail: map[string]bool{"scss/broken.scss": true}})

	in := []*pipeline.File{
		file("normalize.css", "html{}"),
		file("scss/broken.scss", "a { color: red;"),
		file("scss/_vars.scss", "$c: red;"),
		file("scss/main.scss", "a{}"),
	}
	out, err := step.Apply(context.Background(), in)

	if err == nil || !runner.IsNonFatal(err) {
		t.Fatalf("err = %v, want non-fatal compile error", err)
	}
	var ce *CompileError
	if !errors.As(err, &ce) || ce.Path != "scss/broken.scss" {
		t.Errorf("err = %v, want CompileError for broken.scss", err)
	}
	if !strings.Contains(err.Error(), "scss/broken.scss:2:16") {
		t.Errorf("err message = %q, want file location", err.Error())
	}

	if got := names(out); got != "normalize.css,scss/main.css" {
		t.Errorf("out = %s", got)
	}
	if string(out[1].Contents) != "A{}" {
		t.Errorf("main.css = %q", out[1].Contents)
	}
}

func TestSass_NoErrors(t *testing.T) {
	out, err := Sass(&fakeCompiler{}).Apply(context.Background(), []*pipeline.File{file("main.scss", "a{}")})
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if len(out) != 1 || out[0].Path != "main.css" {
		t.Errorf("out = %s", names(out))
	}
}

func TestSass_TrackedMapSurvives(t *testing.T) {
	in := file("main.scss", "a{}")
	in.Map = sourcemap.Identity("main.scss", "a{}")

	out, err := Sass(&fakeCompiler{}).Apply(context.Background(), []*pipeline.File{in})
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Map == nil {
		t.Error("compiled file lost its source map")
	}
}

func TestSass_CompilerUnavailable(t *testing.T) {
	step := Sass(&SassCLI{Binary: "sitepipe-test-no-such-sass"})
	_, err := step.Apply(context.Background(), []*pipeline.File{file("main.scss", "a{}")})
	if err == nil {
		t.Fatal("expected an error")
	}
	if runner.IsNonFatal(err) {
		t.Errorf("missing compiler should be fatal: %v", err)
	}
}

func TestMatchProblem_DartSass(t *testing.T) {
	stderr := "Error: expected \"}\".\n" +
		"  ╷\n" +
		"2 │ a { color: red;\n" +
		"  │                ^\n" +
		"  ╵\n" +
		"  - 2:16  root stylesheet\n"

	p, ok := matchProblem(stderr, sassPatterns)
	if !ok {
		t.Fatal("no match")
	}
	if p.Message != `expected "}".` || p.File != "-" || p.Line != 2 || p.Column != 16 {
		t.Errorf("problem = %+v", p)
	}
}

func TestMatchProblem_ImportedFile(t *testing.T) {
	stderr := "Error: Undefined variable.\n" +
		"  app/scss/_vars.scss 3:10  @import\n" +
		"  - 1:9                     root stylesheet\n"

	p, _ := matchProblem(stderr, sassPatterns)
	if p.File != "app/scss/_vars.scss" || p.Line != 3 || p.Column != 10 {
		t.Errorf("problem = %+v", p)
	}
}

func TestSassGlob(t *testing.T) {
	base := t.TempDir()
	for _, p := range []string{"scss/blocks/_header.scss", "scss/blocks/footer.scss", "scss/blocks/notes.txt"} {
		full := filepath.Join(base, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(""), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	in := pipeline.NewFile(base, "scss/main.scss", []byte("@import 'vars';\n@import \"blocks/*\";\nbody{}\n"))
	out, err := SassGlob().Apply(context.Background(), []*pipeline.File{in})
	if err != nil {
		t.Fatal(err)
	}

	want := "@import 'vars';\n@import \"blocks/_header.scss\";\n@import \"blocks/footer.scss\";\nbody{}\n"
	if got := string(out[0].Contents); got != want {
		t.Errorf("contents =\n%s\nwant\n%s", got, want)
	}
}

func TestConcat(t *testing.T) {
	out, err := Concat("main.min.js").Apply(context.Background(), []*pipeline.File{
		file("vendor.js", "v()"),
		file("main.js", "m()\n"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Path != "main.min.js" {
		t.Fatalf("out = %s", names(out))
	}
	if got := string(out[0].Contents); got != "v()\nm()\n" {
		t.Errorf("contents = %q", got)
	}
	if out[0].Map != nil {
		t.Error("untracked inputs should not produce a map")
	}

	none, err := Concat("x.js").Apply(context.Background(), nil)
	if err != nil || len(none) != 0 {
		t.Errorf("empty concat = %v, %v", none, err)
	}
}

func TestSourceMaps_InitConcatWrite(t *testing.T) {
	ctx := context.Background()
	files := []*pipeline.File{file("a.js", "a()\n"), file("b.js", "b()\n")}

	files, err := InitSourceMaps().Apply(ctx, files)
	if err != nil {
		t.Fatal(err)
	}
	files, err = Concat("main.min.js").Apply(ctx, files)
	if err != nil {
		t.Fatal(err)
	}
	if files[0].Map == nil || len(files[0].Map.Sources) != 2 {
		t.Fatalf("concat map = %+v", files[0].Map)
	}
	files, err = WriteSourceMaps().Apply(ctx, files)
	if err != nil {
		t.Fatal(err)
	}

	got := string(files[0].Contents)
	if !strings.HasPrefix(got, "a()\nb()\n//# sourceMappingURL=data:application/json") {
		t.Errorf("contents = %q", got)
	}
	_, m, err := sourcemap.Extract(got)
	if err != nil || m == nil || m.File != "main.min.js" {
		t.Errorf("embedded map = %+v, %v", m, err)
	}
	if files[0].Map != nil {
		t.Error("map should no longer be tracked")
	}
}

func TestGroupMediaQueries(t *testing.T) {
	in := "a{color:red}" +
		"@media (max-width:600px){a{color:blue}}" +
		"b{color:green}" +
		"@media print{b{display:none}}" +
		"@media (max-width:600px){b{color:black}}"

	out, err := GroupMediaQueries().Apply(context.Background(), []*pipeline.File{file("style.css", in)})
	if err != nil {
		t.Fatal(err)
	}
	got := string(out[0].Contents)

	if n := strings.Count(got, "@media"); n != 2 {
		t.Errorf("got %d media blocks, want 2: %s", n, got)
	}
	first := strings.Index(got, "@media")
	if strings.Index(got, "color:green") > first || strings.Index(got, "color:red") > first {
		t.Errorf("plain rules should precede media blocks: %s", got)
	}
	width := strings.Index(got, "max-width")
	printAt := strings.Index(got, "print")
	if width > printAt {
		t.Errorf("media blocks should keep first-seen order: %s", got)
	}
	if blue, black := strings.Index(got, "color:blue"), strings.Index(got, "color:black"); blue < width || black < width || black > printAt {
		t.Errorf("rules not grouped under their query: %s", got)
	}
}

func TestMinifyCSS(t *testing.T) {
	out, err := MinifyCSS().Apply(context.Background(), []*pipeline.File{file("style.min.css", "a {\n  color : red ;\n}\n")})
	if err != nil {
		t.Fatal(err)
	}
	if got := string(out[0].Contents); got != "a{color:red}" {
		t.Errorf("contents = %q", got)
	}
}

func TestMinifyJS(t *testing.T) {
	src := "// comment\nvar answer = 40 + 2;\n"
	out, err := MinifyJS().Apply(context.Background(), []*pipeline.File{file("main.min.js", src)})
	if err != nil {
		t.Fatal(err)
	}
	got := string(out[0].Contents)
	if strings.Contains(got, "comment") || len(got) >= len(src) {
		t.Errorf("contents = %q", got)
	}
}

func TestMinifyHTML(t *testing.T) {
	src := "<!DOCTYPE html>\n<html>\n  <body>\n    <p>  hi  </p>\n  </body>\n</html>\n"
	out, err := MinifyHTML().Apply(context.Background(), []*pipeline.File{file("index.html", src)})
	if err != nil {
		t.Fatal(err)
	}
	got := string(out[0].Contents)
	if !strings.Contains(got, "</body>") || len(got) >= len(src) {
		t.Errorf("contents = %q", got)
	}
}

func TestTranspile(t *testing.T) {
	step, err := Transpile("es2015")
	if err != nil {
		t.Fatal(err)
	}
	out, err := step.Apply(context.Background(), []*pipeline.File{file("main.js", "let x = y ** 3;\n")})
	if err != nil {
		t.Fatal(err)
	}
	if got := string(out[0].Contents); strings.Contains(got, "**") {
		t.Errorf("exponent operator not lowered: %q", got)
	}

	if _, err := Transpile("es3"); !errors.Is(err, ErrUnknownTarget) {
		t.Errorf("Transpile(es3) err = %v", err)
	}
}

func TestTranspile_SyntaxError(t *testing.T) {
	step, _ := Transpile("es2015")
	_, err := step.Apply(context.Background(), []*pipeline.File{file("main.js", "let = ;")})
	if err == nil || !strings.Contains(err.Error(), "main.js:1:") {
		t.Errorf("err = %v", err)
	}
}

func TestPrefix_KeepsMap(t *testing.T) {
	step, err := Prefix([]string{"chrome58", "safari11"})
	if err != nil {
		t.Fatal(err)
	}

	in := file("style.min.css", "a {\n  user-select: none;\n}\n")
	in.Map = sourcemap.Identity("main.scss", string(in.Contents))

	out, err := step.Apply(context.Background(), []*pipeline.File{in})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out[0].Contents), "user-select") {
		t.Errorf("contents = %q", out[0].Contents)
	}
	if out[0].Map == nil || out[0].Map.Version != 3 {
		t.Errorf("map = %+v", out[0].Map)
	}
}

func TestParseEngines(t *testing.T) {
	engines, err := ParseEngines([]string{"chrome58", "Firefox 57", "edge16"})
	if err != nil {
		t.Fatal(err)
	}
	if len(engines) != 3 || engines[1].Version != "57" {
		t.Errorf("engines = %+v", engines)
	}

	for _, bad := range []string{"netscape4", "chrome", ""} {
		if _, err := ParseEngines([]string{bad}); !errors.Is(err, ErrUnknownTarget) {
			t.Errorf("ParseEngines(%q) err = %v", bad, err)
		}
	}
}

const arrowIcon = `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="24" height="24" viewBox="0 0 24 24" fill="none">
  <!-- exported -->
  <path d="M5 12h14" stroke="#000" data-name="line"/>
  <g fill="red"><circle cx="12" cy="12" r="3" style="opacity:.5"/></g>
</svg>`

func TestCleanSVG(t *testing.T) {
	strip := regexp.MustCompile(`^(fill|stroke|style|width|height|data.*)$`)
	out, err := CleanSVG(strip).Apply(context.Background(), []*pipeline.File{file("icons/arrow.svg", arrowIcon)})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out[0].Contents), "exported") {
		t.Errorf("clean-svg alone should keep comments: %s", out[0].Contents)
	}
	out, err = MinifySVG().Apply(context.Background(), out)
	if err != nil {
		t.Fatal(err)
	}
	got := string(out[0].Contents)

	for _, gone := range []string{"fill=", "stroke=", "style=", "width=", "height=", "data-name", "exported"} {
		if strings.Contains(got, gone) {
			t.Errorf("%s survived: %s", gone, got)
		}
	}
	for _, kept := range []string{"viewBox", "<path", "<circle", "cx="} {
		if !strings.Contains(got, kept) {
			t.Errorf("%s missing: %s", kept, got)
		}
	}
}

func TestSprite(t *testing.T) {
	files := []*pipeline.File{
		file("arrow.svg", `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24"><path d="M5 12h14"/></svg>`),
		file("close.svg", `<svg viewBox="0 0 16 16"><g><line x1="0" y1="0" x2="16" y2="16"></line></g></svg>`),
	}

	out, err := Sprite("sprite.svg").Apply(context.Background(), files)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Path != "sprite.svg" {
		t.Fatalf("out = %s", names(out))
	}

	want := `<svg xmlns="http://www.w3.org/2000/svg">` +
		`<symbol id="arrow" viewBox="0 0 24 24"><path d="M5 12h14"/></symbol>` +
		`<symbol id="close" viewBox="0 0 16 16"><g><line x1="0" y1="0" x2="16" y2="16"></line></g></symbol>` +
		`</svg>`
	if got := string(out[0].Contents); got != want {
		t.Errorf("sprite =\n%s\nwant\n%s", got, want)
	}
}

func TestSprite_Prolog(t *testing.T) {
	src := `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
		`<!-- exported -->` + "\n" +
		`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10"><g fill="none"/></svg>` + "\n"

	out, err := Sprite("sprite.svg").Apply(context.Background(), []*pipeline.File{file("a.svg", src)})
	if err != nil {
		t.Fatal(err)
	}
	want := `<svg xmlns="http://www.w3.org/2000/svg">` +
		`<symbol id="a" viewBox="0 0 10 10"><g fill="none"/></symbol>` +
		`</svg>`
	if got := string(out[0].Contents); got != want {
		t.Errorf("sprite =\n%s\nwant\n%s", got, want)
	}
}

func TestSprite_NotSVG(t *testing.T) {
	_, err := Sprite("sprite.svg").Apply(context.Background(), []*pipeline.File{file("x.svg", "<html></html>")})
	if !errors.Is(err, ErrNotSVG) {
		t.Errorf("err = %v, want ErrNotSVG", err)
	}
}
