package watch

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Ignore matches root relative paths against gitignore-style rules:
//   - *.swp           matches at any depth
//   - /dist/          matches dist at the root only, as a directory
//   - node_modules/   matches the directory and everything below it
//   - !keep.swp       re-includes a path an earlier rule ignored
//
// Later rules override earlier ones.
type Ignore struct {
	rules []ignoreRule
}

type ignoreRule struct {
	original string
	glob     string
	negate   bool
	dirOnly  bool
}

// NewIgnore compiles the given rules. Blank lines and # comments are skipped.
func NewIgnore(patterns ...string) (*Ignore, error) {
	ig := &Ignore{}
	for _, p := range patterns {
		if err := ig.Add(p); err != nil {
			return nil, err
		}
	}
	return ig, nil
}

// Add appends one rule.
func (ig *Ignore) Add(pattern string) error {
	p := strings.TrimRight(pattern, " \t")
	if p == "" || strings.HasPrefix(p, "#") {
		return nil
	}

	r := ignoreRule{original: p}
	if strings.HasPrefix(p, "!") {
		r.negate = true
		p = p[1:]
	}
	if strings.HasSuffix(p, "/") {
		r.dirOnly = true
		p = strings.TrimSuffix(p, "/")
	}
	rooted := strings.HasPrefix(p, "/")
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return fmt.Errorf("invalid ignore pattern %q", pattern)
	}
	if !rooted && !strings.Contains(p, "/") {
		p = "**/" + p
	}
	if !doublestar.ValidatePattern(p) {
		return fmt.Errorf("invalid ignore pattern %q", pattern)
	}
	r.glob = p

	ig.rules = append(ig.rules, r)
	return nil
}

// Match reports whether the slash separated, root relative path rel is
// ignored. A path is also ignored when one of its parent directories is.
func (ig *Ignore) Match(rel string, isDir bool) bool {
	if ig == nil || rel == "" || rel == "." {
		return false
	}
	rel = path.Clean(rel)

	ignored := false
	for _, r := range ig.rules {
		if r.matches(rel, isDir) {
			ignored = !r.negate
		}
	}
	return ignored
}

func (r ignoreRule) matches(rel string, isDir bool) bool {
	if !r.dirOnly || isDir {
		if ok, _ := doublestar.Match(r.glob, rel); ok {
			return true
		}
	}
	for dir := path.Dir(rel); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if ok, _ := doublestar.Match(r.glob, dir); ok {
			return true
		}
	}
	return false
}

// Patterns returns the rules as written.
func (ig *Ignore) Patterns() []string {
	out := make([]string, len(ig.rules))
	for i, r := range ig.rules {
		out[i] = r.original
	}
	return out
}
