package assets

import (
	"context"
	"fmt"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/dshills/sitepipe/internal/pipeline"
)

var globImport = regexp.MustCompile(`(?m)^([ \t]*)@import\s+(["'])([^"']*[*?{\[][^"']*)(["'])\s*;?[ \t]*$`)

// SassGlob expands glob imports such as @import "blocks/**/*.scss"; into
// one import per matching file, in lexical order. Patterns are relative to
// the importing file. A pattern that matches nothing expands to nothing.
func SassGlob() pipeline.Step {
	return pipeline.EachFile("sass-glob", func(ctx context.Context, f *pipeline.File) (*pipeline.File, error) {
		ext := f.Ext()
		if ext != ".scss" && ext != ".sass" {
			return f, nil
		}
		if !globImport.Match(f.Contents) {
			return f, nil
		}

		dir := path.Dir(f.Path)
		fsys := os.DirFS(f.Base)

		var expandErr error
		out := globImport.ReplaceAllFunc(f.Contents, func(line []byte) []byte {
			m := globImport.FindSubmatch(line)
			indent, quote, pattern := string(m[1]), string(m[2]), string(m[3])

			matches, err := doublestar.Glob(fsys, path.Join(dir, pattern))
			if err != nil {
				expandErr = fmt.Errorf("expanding %q in %s: %w", pattern, f.Path, err)
				return line
			}
			sort.Strings(matches)

			var b strings.Builder
			for _, match := range matches {
				if match == f.Path || (path.Ext(match) != ".scss" && path.Ext(match) != ".sass" && path.Ext(match) != ".css") {
					continue
				}
				rel := strings.TrimPrefix(match, dir+"/")
				if dir == "." {
					rel = match
				}
				if b.Len() > 0 {
					b.WriteByte('\n')
				}
				b.WriteString(indent + "@import " + quote + rel + quote)
				if ext == ".scss" {
					b.WriteByte(';')
				}
			}
			return []byte(b.String())
		})
		if expandErr != nil {
			return nil, expandErr
		}

		nf := f.Clone()
		nf.Contents = out
		return nf, nil
	})
}
