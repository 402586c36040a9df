package assets

import (
	"context"
	"fmt"

	"github.com/dshills/sitepipe/internal/pipeline"
	"github.com/dshills/sitepipe/internal/sourcemap"
)

// InitSourceMaps starts tracking a source map for every file. Each file is
// mapped to itself until a later step rewrites it.
func InitSourceMaps() pipeline.Step {
	return pipeline.EachFile("sourcemaps.init", func(ctx context.Context, f *pipeline.File) (*pipeline.File, error) {
		if f.Contents == nil {
			return nil, fmt.Errorf("%w: %s", pipeline.ErrNoContents, f.Path)
		}
		nf := f.Clone()
		content, m, err := sourcemap.Extract(string(f.Contents))
		if err != nil || m == nil {
			m = sourcemap.Identity(f.Path, string(f.Contents))
		} else {
			nf.Contents = []byte(content)
		}
		nf.Map = m
		return nf, nil
	})
}

// WriteSourceMaps embeds each file's source map as an inline data URL
// comment and stops tracking it.
func WriteSourceMaps() pipeline.Step {
	return pipeline.EachFile("sourcemaps.write", func(ctx context.Context, f *pipeline.File) (*pipeline.File, error) {
		if f.Map == nil {
			return f, nil
		}
		m := *f.Map
		m.File = f.Basename()
		out, err := sourcemap.Embed(string(f.Contents), &m, sourcemap.StyleFor(f.Path))
		if err != nil {
			return nil, fmt.Errorf("writing source map for %s: %w", f.Path, err)
		}
		nf := f.Clone()
		nf.Contents = []byte(out)
		nf.Map = nil
		return nf, nil
	})
}
