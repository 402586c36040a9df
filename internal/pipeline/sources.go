package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Sources selects the input files of a task.
type Sources struct {
	// Patterns are glob patterns relative to the project root, matched in
	// order. A pattern starting with "!" excludes matches of every other
	// pattern. "**" matches any number of directories.
	Patterns []string
	// SkipRead leaves File.Contents nil.
	SkipRead bool
	// Dirs includes matched directories as well as files.
	Dirs bool
}

// Src returns sources that read every file matched by patterns.
func Src(patterns ...string) Sources {
	return Sources{Patterns: patterns}
}

// Resolve matches the patterns under root. Files are ordered by the first
// pattern that matched them, then lexically, and each file appears once.
// A literal pattern naming a path that does not exist is an error; a glob
// that matches nothing is not.
func (s Sources) Resolve(root string) ([]*File, error) {
	var include, exclude []string
	for _, p := range s.Patterns {
		neg := strings.HasPrefix(p, "!")
		p = cleanPattern(strings.TrimPrefix(p, "!"))
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: %q", ErrBadPattern, p)
		}
		if neg {
			exclude = append(exclude, p)
		} else {
			include = append(include, p)
		}
	}

	fsys := os.DirFS(root)
	seen := make(map[string]bool)
	var files []*File

	for _, pattern := range include {
		base, _ := doublestar.SplitPattern(pattern)

		var matches []string
		var dirs map[string]bool
		if isLiteral(pattern) {
			info, err := os.Stat(filepath.Join(root, filepath.FromSlash(pattern)))
			if err != nil {
				if os.IsNotExist(err) {
					return nil, fmt.Errorf("%w: %s", ErrMissingInput, pattern)
				}
				return nil, err
			}
			if info.IsDir() {
				if !s.Dirs {
					continue
				}
				dirs = map[string]bool{pattern: true}
			}
			matches = []string{pattern}
		} else {
			dirs = make(map[string]bool)
			err := doublestar.GlobWalk(fsys, pattern, func(match string, d fs.DirEntry) error {
				if d.IsDir() {
					if !s.Dirs {
						return nil
					}
					dirs[match] = true
				}
				matches = append(matches, match)
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("matching %s: %w", pattern, err)
			}
			sort.Strings(matches)
		}

		for _, m := range matches {
			if seen[m] || excluded(m, exclude) {
				continue
			}
			seen[m] = true

			rel := m
			if base != "." {
				rel = strings.TrimPrefix(m, base+"/")
			}
			f := &File{
				Base: filepath.Join(root, filepath.FromSlash(base)),
				Path: rel,
				Dir:  dirs[m],
				Mode: 0o644,
			}
			if !s.SkipRead && !f.Dir {
				if err := readFile(f); err != nil {
					return nil, err
				}
			}
			files = append(files, f)
		}
	}
	return files, nil
}

// Match reports whether the root relative path p is selected by the
// patterns without touching the file system.
func (s Sources) Match(p string) bool {
	p = cleanPattern(p)
	matched := false
	for _, pattern := range s.Patterns {
		if strings.HasPrefix(pattern, "!") {
			if ok, _ := doublestar.Match(cleanPattern(pattern[1:]), p); ok {
				return false
			}
			continue
		}
		if ok, _ := doublestar.Match(cleanPattern(pattern), p); ok {
			matched = true
		}
	}
	return matched
}

func readFile(f *File) error {
	p := f.Abs()
	info, err := os.Stat(p)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return err
	}
	f.Contents = data
	f.Mode = info.Mode().Perm()
	return nil
}

func excluded(p string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
	}
	return false
}

func cleanPattern(p string) string {
	return path.Clean(filepath.ToSlash(p))
}

func isLiteral(p string) bool {
	return !strings.ContainsAny(p, `*?[{\`)
}
