package assets

import (
	"bytes"
	"context"

	"github.com/dshills/sitepipe/internal/pipeline"
	"github.com/dshills/sitepipe/internal/sourcemap"
)

// Concat joins every file into one named file, in order, each input ending
// in a newline. When any input carries a source map the result carries a
// combined one. No input produces no output.
func Concat(name string) pipeline.Step {
	return pipeline.StepFunc("concat", func(ctx context.Context, files []*pipeline.File) ([]*pipeline.File, error) {
		if len(files) == 0 {
			return nil, nil
		}

		tracked := false
		for _, f := range files {
			if f.Map != nil {
				tracked = true
				break
			}
		}

		var buf bytes.Buffer
		var cm *sourcemap.Concat
		if tracked {
			cm = sourcemap.NewConcat(name)
		}
		for _, f := range files {
			content := f.Contents
			if len(content) > 0 && content[len(content)-1] != '\n' {
				content = append(append([]byte(nil), content...), '\n')
			}
			if cm != nil {
				if err := cm.Add(f.Path, string(content), f.Map); err != nil {
					return nil, err
				}
			}
			buf.Write(content)
		}

		out := pipeline.NewFile(files[0].Base, name, buf.Bytes())
		if cm != nil {
			out.Map = cm.Map()
		}
		return []*pipeline.File{out}, nil
	})
}
