package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/xml"

	"github.com/dshills/sitepipe/internal/pipeline"
)

// ErrNotSVG is returned when a file has no root <svg> element.
var ErrNotSVG = errors.New("no svg root element")

// CleanSVG removes every attribute whose name matches strip from every
// element. Follow it with MinifySVG to drop comments and the prolog.
func CleanSVG(strip *regexp.Regexp) pipeline.Step {
	return pipeline.EachFile("clean-svg", func(ctx context.Context, f *pipeline.File) (*pipeline.File, error) {
		if f.Contents == nil {
			return nil, fmt.Errorf("%w: %s", pipeline.ErrNoContents, f.Path)
		}
		stripped, err := stripAttributes(f.Contents, strip)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Path, err)
		}
		nf := f.Clone()
		nf.Contents = stripped
		return nf, nil
	})
}

func stripAttributes(src []byte, strip *regexp.Regexp) ([]byte, error) {
	l := xml.NewLexer(parse.NewInput(bytes.NewReader(src)))
	var out bytes.Buffer
	for {
		tt, data := l.Next()
		switch tt {
		case xml.ErrorToken:
			if err := l.Err(); err != io.EOF {
				return nil, err
			}
			return out.Bytes(), nil
		case xml.AttributeToken:
			if strip != nil && strip.Match(l.Text()) {
				continue
			}
			writeAttr(&out, l.Text(), l.AttrVal())
		default:
			out.Write(data)
		}
	}
}

func writeAttr(w *bytes.Buffer, name, val []byte) {
	w.WriteByte(' ')
	w.Write(name)
	w.WriteByte('=')
	if len(val) > 0 && (val[0] == '"' || val[0] == '\'') {
		w.Write(val)
		return
	}
	w.WriteByte('"')
	w.Write(val)
	w.WriteByte('"')
}

// icon is the parts of an SVG document a sprite symbol needs.
type icon struct {
	viewBox string
	inner   []byte
}

// parseIcon extracts the root element's viewBox and its children.
func parseIcon(src []byte) (icon, error) {
	l := xml.NewLexer(parse.NewInput(bytes.NewReader(src)))

	var (
		ic     icon
		inner  bytes.Buffer
		depth  int
		inRoot bool
		inTag  bool
		done   bool
	)
	for {
		tt, data := l.Next()
		switch tt {
		case xml.ErrorToken:
			if err := l.Err(); err != io.EOF {
				return icon{}, err
			}
			if !done {
				return icon{}, ErrNotSVG
			}
			ic.inner = inner.Bytes()
			return ic, nil

		case xml.StartTagToken:
			if done {
				continue
			}
			if !inRoot {
				if !strings.EqualFold(string(l.Text()), "svg") {
					return icon{}, ErrNotSVG
				}
				inRoot, inTag = true, true
				continue
			}
			depth++
			inner.Write(data)

		case xml.AttributeToken:
			// Prolog attributes come before the root.
			if done || !inRoot {
				continue
			}
			if inTag && depth == 0 {
				if strings.EqualFold(string(l.Text()), "viewBox") {
					ic.viewBox = strings.Trim(string(l.AttrVal()), `"'`)
				}
				continue
			}
			writeAttr(&inner, l.Text(), l.AttrVal())

		case xml.StartTagCloseToken:
			if inTag && depth == 0 {
				inTag = false
				continue
			}
			if inRoot && !done {
				inner.Write(data)
			}

		case xml.StartTagCloseVoidToken:
			if inTag && depth == 0 {
				// <svg/> has no children.
				inTag, done = false, true
				continue
			}
			if inRoot && !done {
				depth--
				inner.Write(data)
			}

		case xml.EndTagToken:
			if !inRoot || done {
				continue
			}
			if depth == 0 {
				done = true
				continue
			}
			depth--
			inner.Write(data)

		case xml.StartTagPIToken, xml.StartTagClosePIToken, xml.DOCTYPEToken, xml.CommentToken:
			// Prolog and comments are not part of a symbol.

		default:
			if inRoot && !done && !inTag {
				inner.Write(data)
			}
		}
	}
}

// Sprite combines SVG icons into a single file of <symbol> elements, one per
// icon, with the icon's base name as its id.
func Sprite(name string) pipeline.Step {
	return pipeline.StepFunc("sprite", func(ctx context.Context, files []*pipeline.File) ([]*pipeline.File, error) {
		if len(files) == 0 {
			return nil, nil
		}

		var b bytes.Buffer
		b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg">`)
		for _, f := range files {
			ic, err := parseIcon(f.Contents)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.Path, err)
			}
			id := strings.TrimSuffix(f.Basename(), path.Ext(f.Path))
			b.WriteString(`<symbol id="` + id + `"`)
			if ic.viewBox != "" {
				b.WriteString(` viewBox="` + ic.viewBox + `"`)
			}
			b.WriteString(">")
			b.Write(ic.inner)
			b.WriteString("</symbol>")
		}
		b.WriteString("</svg>")

		return []*pipeline.File{pipeline.NewFile(files[0].Base, name, b.Bytes())}, nil
	})
}
