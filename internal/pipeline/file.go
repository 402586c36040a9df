// Package pipeline implements tasks that read files matched by glob patterns,
// pass them through an ordered chain of steps and write the results to a
// destination directory.
package pipeline

import (
	"io/fs"
	"path"
	"path/filepath"

	"github.com/dshills/sitepipe/internal/sourcemap"
)

// File is one file flowing through a chain.
type File struct {
	// Base is the directory the file was matched under: the static prefix
	// of its glob pattern, resolved against the project root.
	Base string
	// Path is the slash separated path relative to Base. It is preserved
	// under the destination directory.
	Path string
	// Contents is nil for files matched without reading.
	Contents []byte
	Mode     fs.FileMode
	// Map is the file's source map while maps are tracked.
	Map *sourcemap.Map
	// Dir marks a matched directory.
	Dir bool
}

// NewFile creates an in-memory file.
func NewFile(base, p string, contents []byte) *File {
	return &File{Base: base, Path: p, Contents: contents, Mode: 0o644}
}

// Abs returns the file's location on disk.
func (f *File) Abs() string {
	return filepath.Join(f.Base, filepath.FromSlash(f.Path))
}

// Ext returns the file extension including the dot.
func (f *File) Ext() string {
	return path.Ext(f.Path)
}

// Basename returns the last element of Path.
func (f *File) Basename() string {
	return path.Base(f.Path)
}

// Clone returns a shallow copy of f with its own contents slice.
func (f *File) Clone() *File {
	c := *f
	if f.Contents != nil {
		c.Contents = append([]byte(nil), f.Contents...)
	}
	return &c
}

// WithPath returns a copy of f moved to p, keeping Base.
func (f *File) WithPath(p string) *File {
	c := *f
	c.Path = p
	return &c
}
