package watch

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FSWatcher watches a directory tree with fsnotify. Directories created
// after the watch starts are watched too. Ignored paths are never watched
// and produce no events; permission-only changes are dropped.
type FSWatcher struct {
	mu sync.Mutex

	watcher *fsnotify.Watcher
	root    string
	ignore  *Ignore
	dirs    map[string]bool

	events chan Event
	errors chan error

	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// NewFSWatcher creates a watcher for paths under root. Nothing is watched
// until WatchRecursive is called.
func NewFSWatcher(root string, ignore *Ignore, bufferSize int) (*FSWatcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if bufferSize <= 0 {
		bufferSize = 100
	}

	w := &FSWatcher{
		watcher: fsw,
		root:    abs,
		ignore:  ignore,
		dirs:    make(map[string]bool),
		events:  make(chan Event, bufferSize),
		errors:  make(chan error, bufferSize),
		closeCh: make(chan struct{}),
	}

	w.closedWg.Add(1)
	go w.processLoop()

	return w, nil
}

// WatchRecursive watches dir and every directory below it that is not
// ignored.
func (w *FSWatcher) WatchRecursive(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrPathNotExist
		}
		return err
	}
	if !info.IsDir() {
		return w.add(abs)
	}

	return filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root && w.ignored(p, true) {
			return filepath.SkipDir
		}
		if err := w.add(p); err != nil {
			w.sendError(err)
		}
		return nil
	})
}

func (w *FSWatcher) add(p string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if w.dirs[p] {
		return nil
	}
	if err := w.watcher.Add(p); err != nil {
		return err
	}
	w.dirs[p] = true
	return nil
}

// Events returns the event channel.
func (w *FSWatcher) Events() <-chan Event {
	return w.events
}

// Errors returns the error channel.
func (w *FSWatcher) Errors() <-chan error {
	return w.errors
}

// Close stops the watcher.
func (w *FSWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.closedWg.Wait()

	close(w.events)
	close(w.errors)

	return w.watcher.Close()
}

// WatchedDirs returns the number of directories being watched.
func (w *FSWatcher) WatchedDirs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.dirs)
}

func (w *FSWatcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case fsEvent, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(fsEvent)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.sendError(err)
		}
	}
}

func (w *FSWatcher) handleFSEvent(fsEvent fsnotify.Event) {
	op := convertOp(fsEvent.Op)
	if op == 0 {
		return
	}

	var isDir bool
	if op.Has(OpCreate) {
		if info, err := os.Stat(fsEvent.Name); err == nil && info.IsDir() {
			isDir = true
		}
	}
	if w.ignored(fsEvent.Name, isDir) {
		return
	}

	w.sendEvent(Event{Path: fsEvent.Name, Op: op, Time: time.Now()})

	if isDir {
		if err := w.WatchRecursive(fsEvent.Name); err != nil && !errors.Is(err, ErrPathNotExist) {
			w.sendError(err)
		}
	}
}

func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsOp.Has(fsnotify.Rename) {
		op |= OpRename
	}
	return op
}

func (w *FSWatcher) ignored(p string, isDir bool) bool {
	rel, err := filepath.Rel(w.root, p)
	if err != nil {
		return false
	}
	return w.ignore.Match(filepath.ToSlash(rel), isDir)
}

func (w *FSWatcher) sendEvent(event Event) {
	select {
	case w.events <- event:
	case <-w.closeCh:
	}
}

func (w *FSWatcher) sendError(err error) {
	select {
	case w.errors <- err:
	default:
		// Channel full, drop error
	}
}

var _ Watcher = (*FSWatcher)(nil)
