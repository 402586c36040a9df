package assets

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"

	"github.com/dshills/sitepipe/internal/pipeline"
)

// GroupMediaQueries merges top-level @media blocks with the same query into
// one block and moves the merged blocks after all other rules, in the order
// their queries first appear.
func GroupMediaQueries() pipeline.Step {
	return pipeline.EachFile("group-media-queries", func(ctx context.Context, f *pipeline.File) (*pipeline.File, error) {
		if f.Contents == nil {
			return nil, fmt.Errorf("%w: %s", pipeline.ErrNoContents, f.Path)
		}
		out, err := groupMediaQueries(f.Contents)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Path, err)
		}
		nf := f.Clone()
		nf.Contents = out
		nf.Map = nil
		return nf, nil
	})
}

func groupMediaQueries(src []byte) ([]byte, error) {
	p := css.NewParser(parse.NewInput(bytes.NewReader(src)), false)

	var (
		head    bytes.Buffer
		queries []string
		bodies  = make(map[string]*bytes.Buffer)
		// cur is where output goes: head, or the body of the open media block.
		cur   = &head
		depth int
		// mediaDepth is the depth of the open top-level media block, or -1.
		mediaDepth = -1
	)

	for {
		gt, _, data := p.Next()
		switch gt {
		case css.ErrorGrammar:
			if err := p.Err(); err != io.EOF {
				return nil, err
			}
			var out bytes.Buffer
			out.Write(head.Bytes())
			for _, q := range queries {
				out.WriteString("@media " + q + "{")
				out.Write(bodies[q].Bytes())
				out.WriteString("}")
			}
			return out.Bytes(), nil

		case css.BeginAtRuleGrammar:
			prelude := values(p.Values())
			if depth == 0 && strings.EqualFold(string(data), "@media") {
				key := collapseSpace(prelude)
				body, ok := bodies[key]
				if !ok {
					body = &bytes.Buffer{}
					bodies[key] = body
					queries = append(queries, key)
				}
				cur = body
				mediaDepth = depth
				depth++
				continue
			}
			cur.Write(data)
			if prelude != "" {
				cur.WriteString(" " + prelude)
			}
			cur.WriteString("{")
			depth++

		case css.EndAtRuleGrammar:
			depth--
			if depth == mediaDepth {
				cur = &head
				mediaDepth = -1
				continue
			}
			cur.WriteString("}")

		case css.AtRuleGrammar:
			cur.Write(data)
			if v := values(p.Values()); v != "" {
				cur.WriteString(" " + v)
			}
			cur.WriteString(";")

		case css.QualifiedRuleGrammar:
			cur.WriteString(values(p.Values()) + ",")

		case css.BeginRulesetGrammar:
			cur.WriteString(values(p.Values()) + "{")
			depth++

		case css.EndRulesetGrammar:
			cur.WriteString("}")
			depth--

		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			cur.Write(data)
			cur.WriteString(":" + values(p.Values()) + ";")

		case css.CommentGrammar:
			cur.Write(data)

		default:
			cur.Write(data)
			for _, v := range p.Values() {
				cur.Write(v.Data)
			}
		}
	}
}

func values(tokens []css.Token) string {
	var b strings.Builder
	for _, t := range tokens {
		b.Write(t.Data)
	}
	return strings.TrimSpace(b.String())
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
