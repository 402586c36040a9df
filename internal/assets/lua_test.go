package assets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/sitepipe/internal/pipeline"
)

func writeScript(t *testing.T, name, src string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLua_TransformsInOrder(t *testing.T) {
	px2rem := writeScript(t, "px2rem.lua", `
function transform(path, contents)
  return (string.gsub(contents, "(%d+)px", function(n) return (tonumber(n) / 16) .. "rem" end))
end
`)
	banner := writeScript(t, "banner.lua", `
function transform(path, contents)
  return "/* " .. path .. " */" .. contents
end
`)
	step, err := Lua(px2rem, banner)
	if err != nil {
		t.Fatal(err)
	}
	if step.Name() != "lua" {
		t.Errorf("Name() = %q", step.Name())
	}

	out, err := step.Apply(context.Background(), []*pipeline.File{file("main.css", "a{margin:32px}")})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(out[0].Contents), "/* main.css */a{margin:2rem}"; got != want {
		t.Errorf("contents = %q, want %q", got, want)
	}
}

func TestLua_NilKeepsContents(t *testing.T) {
	p := writeScript(t, "noop.lua", `
function transform(path, contents)
  if path == "skip.js" then return nil end
  return string.upper(contents)
end
`)
	step, err := Lua(p)
	if err != nil {
		t.Fatal(err)
	}
	out, err := step.Apply(context.Background(), []*pipeline.File{
		file("skip.js", "let a"),
		file("app.js", "let b"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(out[0].Contents) != "let a" || string(out[1].Contents) != "LET B" {
		t.Errorf("contents = %q, %q", out[0].Contents, out[1].Contents)
	}
}

func TestLua_NoScripts(t *testing.T) {
	step, err := Lua()
	if err != nil || step != nil {
		t.Fatalf("Lua() = %v, %v, want nil step", step, err)
	}
	if got := len(pipeline.NewChain().Pipe(step).Stages()); got != 0 {
		t.Errorf("chain has %d stages, want nil step ignored", got)
	}
}

func TestLua_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{"missing transform", `x = 1`, "no transform function"},
		{"runtime error", `function transform(p, c) error("boom") end`, "boom"},
		{"wrong result", `function transform(p, c) return 42 end`, "want string or nil"},
		{"sandboxed io", `function transform(p, c) return io.open(p) end`, "open"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step, err := Lua(writeScript(t, "s.lua", tt.src))
			if err != nil {
				t.Fatal(err)
			}
			_, err = step.Apply(context.Background(), []*pipeline.File{file("a.css", "a{}")})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}

	t.Run("missing contents", func(t *testing.T) {
		step, err := Lua(writeScript(t, "s.lua", `function transform(p, c) return c end`))
		if err != nil {
			t.Fatal(err)
		}
		_, err = step.Apply(context.Background(), []*pipeline.File{pipeline.NewFile("/p", "a.css", nil)})
		if !errors.Is(err, pipeline.ErrNoContents) {
			t.Errorf("err = %v, want ErrNoContents", err)
		}
	})
}

func TestLua_CompileErrors(t *testing.T) {
	if _, err := Lua(filepath.Join(t.TempDir(), "absent.lua")); err == nil {
		t.Error("missing script: want error")
	}
	if _, err := Lua(writeScript(t, "bad.lua", `function transform(`)); err == nil {
		t.Error("syntax error: want error")
	}
}
