package watch

import (
	"sync"
	"time"
)

// DefaultDebounce is used when a non-positive delay is given.
const DefaultDebounce = 100 * time.Millisecond

// Debouncer wraps a Watcher and coalesces events per path. An event is
// delivered once its path has been quiet for the delay; the delivered Op
// is the union of every coalesced operation.
type Debouncer struct {
	inner Watcher
	delay time.Duration

	mu       sync.Mutex
	pending  map[string]*pendingEvent
	events   chan Event
	errors   chan error
	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

type pendingEvent struct {
	event Event
	timer *time.Timer
}

// NewDebouncer starts debouncing inner's events.
func NewDebouncer(inner Watcher, delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}

	d := &Debouncer{
		inner:   inner,
		delay:   delay,
		pending: make(map[string]*pendingEvent),
		events:  make(chan Event, 100),
		errors:  make(chan error, 100),
		closeCh: make(chan struct{}),
	}

	d.closedWg.Add(1)
	go d.processLoop()

	return d
}

// Events returns the debounced event channel.
func (d *Debouncer) Events() <-chan Event {
	return d.events
}

// Errors returns the error channel.
func (d *Debouncer) Errors() <-chan error {
	return d.errors
}

// Close drops pending events and closes the inner watcher.
func (d *Debouncer) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.closeCh)
	for p, pe := range d.pending {
		pe.timer.Stop()
		delete(d.pending, p)
	}
	d.mu.Unlock()

	d.closedWg.Wait()

	// Timers that already fired may still be sending.
	d.mu.Lock()
	close(d.events)
	close(d.errors)
	d.mu.Unlock()

	return d.inner.Close()
}

// Flush delivers every pending event now.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	paths := make([]string, 0, len(d.pending))
	for p, pe := range d.pending {
		pe.timer.Stop()
		paths = append(paths, p)
	}
	d.mu.Unlock()

	for _, p := range paths {
		d.fire(p)
	}
}

// PendingCount returns the number of paths waiting to be delivered.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *Debouncer) processLoop() {
	defer d.closedWg.Done()

	for {
		select {
		case <-d.closeCh:
			return

		case event, ok := <-d.inner.Events():
			if !ok {
				return
			}
			d.handleEvent(event)

		case err, ok := <-d.inner.Errors():
			if !ok {
				return
			}
			select {
			case d.errors <- err:
			case <-d.closeCh:
			default:
			}
		}
	}
}

func (d *Debouncer) handleEvent(event Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	if pe, ok := d.pending[event.Path]; ok {
		pe.event.Op |= event.Op
		pe.event.Time = event.Time
		pe.timer.Reset(d.delay)
		return
	}

	p := event.Path
	d.pending[p] = &pendingEvent{
		event: event,
		timer: time.AfterFunc(d.delay, func() { d.fire(p) }),
	}
}

func (d *Debouncer) fire(p string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	pe, ok := d.pending[p]
	if !ok || d.closed {
		return
	}
	delete(d.pending, p)

	select {
	case d.events <- pe.event:
	default:
		// Channel full, drop event
	}
}

var _ Watcher = (*Debouncer)(nil)
