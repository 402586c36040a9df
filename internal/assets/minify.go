package assets

import (
	"context"
	"fmt"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/svg"

	"github.com/dshills/sitepipe/internal/pipeline"
)

const (
	mediaCSS  = "text/css"
	mediaJS   = "application/javascript"
	mediaHTML = "text/html"
	mediaSVG  = "image/svg+xml"
)

var minifier = newMinifier()

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc(mediaCSS, css.Minify)
	m.AddFunc(mediaJS, js.Minify)
	m.Add(mediaHTML, &html.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
	})
	m.AddFunc(mediaSVG, svg.Minify)
	return m
}

func minifyStep(name, mediatype string) pipeline.Step {
	return pipeline.EachFile(name, func(ctx context.Context, f *pipeline.File) (*pipeline.File, error) {
		if f.Contents == nil {
			return nil, fmt.Errorf("%w: %s", pipeline.ErrNoContents, f.Path)
		}
		out, err := minifier.Bytes(mediatype, f.Contents)
		if err != nil {
			return nil, fmt.Errorf("minifying %s: %w", f.Path, err)
		}
		nf := f.Clone()
		nf.Contents = out
		nf.Map = nil
		return nf, nil
	})
}

// MinifyCSS minifies stylesheets.
func MinifyCSS() pipeline.Step { return minifyStep("minify-css", mediaCSS) }

// MinifyJS minifies scripts.
func MinifyJS() pipeline.Step { return minifyStep("minify-js", mediaJS) }

// MinifyHTML minifies HTML documents.
func MinifyHTML() pipeline.Step { return minifyStep("minify-html", mediaHTML) }

// MinifySVG minifies SVG documents.
func MinifySVG() pipeline.Step { return minifyStep("minify-svg", mediaSVG) }
