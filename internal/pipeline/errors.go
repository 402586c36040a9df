package pipeline

import "errors"

var (
	// ErrMissingInput is returned when a non-glob source path does not exist.
	ErrMissingInput = errors.New("missing input")

	// ErrBadPattern is returned for a malformed glob pattern.
	ErrBadPattern = errors.New("bad glob pattern")

	// ErrNoContents is returned when a step needs file contents that were
	// never read.
	ErrNoContents = errors.New("file contents not read")
)
