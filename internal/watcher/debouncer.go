package watcher

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Debouncer holds events until no new event has arrived for the window,
// then emits one batch sorted by name. Events for the same name merge:
//   - CREATE + MODIFY = CREATE
//   - CREATE + DELETE or RENAME = nothing
//   - MODIFY + DELETE = DELETE
//   - DELETE + CREATE = MODIFY
type Debouncer struct {
	window  time.Duration
	pending map[string]*pendingEvent
	mu      sync.Mutex
	output  chan []FileEvent
	timer   *time.Timer
	stopped bool
}

type pendingEvent struct {
	event   FileEvent
	firstOp Operation
}

// NewDebouncer creates a debouncer with the given quiet window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]*pendingEvent),
		output:  make(chan []FileEvent, 10),
	}
}

// Add records an event and restarts the quiet window.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if existing, ok := d.pending[event.Name]; ok {
		if merged, keep := merge(existing, event); keep {
			existing.event = merged
		} else {
			delete(d.pending, event.Name)
		}
	} else {
		d.pending[event.Name] = &pendingEvent{event: event, firstOp: event.Operation}
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// merge folds next into the pending event. keep is false when the two
// cancel out.
func merge(existing *pendingEvent, next FileEvent) (merged FileEvent, keep bool) {
	gone := next.Operation == OpDelete || next.Operation == OpRename

	switch existing.firstOp {
	case OpCreate:
		if gone {
			return FileEvent{}, false
		}
		merged = existing.event
		merged.Timestamp = next.Timestamp
		return merged, true
	case OpDelete, OpRename:
		if next.Operation == OpCreate || next.Operation == OpModify {
			existing.firstOp = OpModify
			next.Operation = OpModify
		}
		return next, true
	default:
		return next, true
	}
}

// flush emits all pending events.
func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	events := make([]FileEvent, 0, len(d.pending))
	for _, pe := range d.pending {
		events = append(events, pe.event)
	}
	d.pending = make(map[string]*pendingEvent)
	sort.Slice(events, func(i, j int) bool { return events[i].Name < events[j].Name })

	select {
	case d.output <- events:
	default:
		slog.Warn("debouncer output full, dropping batch",
			slog.Int("batch_size", len(events)))
	}
}

// Output returns the channel of debounced batches.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.output
}

// Stop stops the debouncer and closes the output channel.
// Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
