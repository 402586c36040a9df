package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	luaparse "github.com/yuin/gopher-lua/parse"

	"github.com/dshills/sitepipe/internal/pipeline"
)

// ErrNoTransform is returned when a script does not define a global
// transform function.
var ErrNoTransform = errors.New("script defines no transform function")

// luaScript is a compiled transform script.
type luaScript struct {
	name  string
	proto *lua.FunctionProto
}

// Lua passes every file through the scripts in order. Each script defines
//
//	function transform(path, contents) ... end
//
// A string result replaces the contents and nil keeps them. Scripts run in a
// fresh sandbox per invocation with only the base, table, string and math
// libraries. Scripts are compiled once, here. With no scripts Lua returns a
// nil step, which a chain ignores.
func Lua(paths ...string) (pipeline.Step, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	scripts := make([]luaScript, 0, len(paths))
	for _, p := range paths {
		s, err := compileScript(p)
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, s)
	}

	return pipeline.StepFunc("lua", func(ctx context.Context, files []*pipeline.File) ([]*pipeline.File, error) {
		if len(files) == 0 {
			return files, nil
		}

		L := newSandbox()
		defer L.Close()
		L.SetContext(ctx)

		fns := make([]*lua.LFunction, len(scripts))
		for i, s := range scripts {
			fn, err := loadTransform(L, s)
			if err != nil {
				return nil, err
			}
			fns[i] = fn
		}

		out := make([]*pipeline.File, 0, len(files))
		for _, f := range files {
			if f.Contents == nil {
				return nil, fmt.Errorf("%w: %s", pipeline.ErrNoContents, f.Path)
			}
			contents := string(f.Contents)
			for i, fn := range fns {
				res, err := callTransform(L, fn, f.Path, contents)
				if err != nil {
					return nil, fmt.Errorf("%s: %s: %w", scripts[i].name, f.Path, err)
				}
				contents = res
			}
			nf := f.Clone()
			nf.Contents = []byte(contents)
			nf.Map = nil
			out = append(out, nf)
		}
		return out, nil
	}), nil
}

func compileScript(p string) (luaScript, error) {
	src, err := os.ReadFile(p)
	if err != nil {
		return luaScript{}, fmt.Errorf("reading script: %w", err)
	}
	name := filepath.Base(p)
	chunk, err := luaparse.Parse(bytes.NewReader(src), name)
	if err != nil {
		return luaScript{}, fmt.Errorf("parsing %s: %w", p, err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return luaScript{}, fmt.Errorf("compiling %s: %w", p, err)
	}
	return luaScript{name: name, proto: proto}, nil
}

func newSandbox() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

// loadTransform runs the script's top level and takes its transform global.
func loadTransform(L *lua.LState, s luaScript) (*lua.LFunction, error) {
	L.SetGlobal("transform", lua.LNil)
	if err := L.CallByParam(lua.P{Fn: L.NewFunctionFromProto(s.proto), NRet: 0, Protect: true}); err != nil {
		return nil, fmt.Errorf("loading %s: %w", s.name, err)
	}
	fn, ok := L.GetGlobal("transform").(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("%s: %w", s.name, ErrNoTransform)
	}
	L.SetGlobal("transform", lua.LNil)
	return fn, nil
}

func callTransform(L *lua.LState, fn *lua.LFunction, path, contents string) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()

	if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, lua.LString(path), lua.LString(contents)); err != nil {
		return "", err
	}
	ret := L.Get(-1)
	L.Pop(1)

	switch v := ret.(type) {
	case lua.LString:
		return string(v), nil
	case *lua.LNilType:
		return contents, nil
	default:
		return "", fmt.Errorf("transform returned %s, want string or nil", ret.Type())
	}
}
