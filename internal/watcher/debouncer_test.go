package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveBatch(t *testing.T, d *Debouncer, timeout time.Duration) []FileEvent {
	t.Helper()
	select {
	case events := <-d.Output():
		return events
	case <-time.After(timeout):
		t.Fatal("timeout waiting for debounced batch")
		return nil
	}
}

func TestDebouncer_SingleEvent_PassesThrough(t *testing.T) {
	// Given: a debouncer with short window
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	// When: a single event is added
	d.Add(FileEvent{Name: "scan.pdf", Operation: OpCreate, Timestamp: time.Now()})

	// Then: the event passes through after the window
	events := receiveBatch(t, d, 500*time.Millisecond)
	require.Len(t, events, 1)
	assert.Equal(t, "scan.pdf", events[0].Name)
	assert.Equal(t, OpCreate, events[0].Operation)
}

func TestDebouncer_WritesInProgress_OneEvent(t *testing.T) {
	// Given: a debouncer with a 100ms window
	d := NewDebouncer(100 * time.Millisecond)
	defer d.Stop()

	// When: a scanner creates a file and keeps writing to it
	d.Add(FileEvent{Name: "scan.pdf", Operation: OpCreate, Timestamp: time.Now()})
	for i := 0; i < 5; i++ {
		time.Sleep(20 * time.Millisecond)
		d.Add(FileEvent{Name: "scan.pdf", Operation: OpModify, Timestamp: time.Now()})
	}

	// Then: a single CREATE comes out once writing stops
	events := receiveBatch(t, d, time.Second)
	require.Len(t, events, 1)
	assert.Equal(t, OpCreate, events[0].Operation)
}

func TestDebouncer_Merge(t *testing.T) {
	tests := []struct {
		name  string
		ops   []Operation
		want  Operation
		empty bool
	}{
		{name: "create then modify", ops: []Operation{OpCreate, OpModify}, want: OpCreate},
		{name: "create then delete", ops: []Operation{OpCreate, OpDelete}, empty: true},
		{name: "create then rename away", ops: []Operation{OpCreate, OpRename}, empty: true},
		{name: "modify then delete", ops: []Operation{OpModify, OpDelete}, want: OpDelete},
		{name: "delete then create", ops: []Operation{OpDelete, OpCreate}, want: OpModify},
		{name: "delete create delete", ops: []Operation{OpDelete, OpCreate, OpDelete}, want: OpDelete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDebouncer(30 * time.Millisecond)
			defer d.Stop()

			for _, op := range tt.ops {
				d.Add(FileEvent{Name: "a.pdf", Operation: op, Timestamp: time.Now()})
			}

			if tt.empty {
				select {
				case events := <-d.Output():
					assert.Empty(t, events)
				case <-time.After(150 * time.Millisecond):
				}
				return
			}
			events := receiveBatch(t, d, 500*time.Millisecond)
			require.Len(t, events, 1)
			assert.Equal(t, tt.want, events[0].Operation)
		})
	}
}

func TestDebouncer_BatchSortedByName(t *testing.T) {
	// Given: a debouncer with short window
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	// When: events for different files arrive out of order
	d.Add(FileEvent{Name: "c.pdf", Operation: OpCreate, Timestamp: time.Now()})
	d.Add(FileEvent{Name: "a.pdf", Operation: OpModify, Timestamp: time.Now()})
	d.Add(FileEvent{Name: "b.pdf", Operation: OpDelete, Timestamp: time.Now()})

	// Then: one batch holds all three in name order
	events := receiveBatch(t, d, 500*time.Millisecond)
	require.Len(t, events, 3)
	assert.Equal(t, "a.pdf", events[0].Name)
	assert.Equal(t, "b.pdf", events[1].Name)
	assert.Equal(t, "c.pdf", events[2].Name)
}

func TestDebouncer_Stop_ClosesOutput(t *testing.T) {
	// Given: a debouncer with a pending event
	d := NewDebouncer(50 * time.Millisecond)
	d.Add(FileEvent{Name: "a.pdf", Operation: OpCreate})

	// When: stopped twice
	d.Stop()
	d.Stop()

	// Then: output is closed and later adds are ignored
	_, ok := <-d.Output()
	assert.False(t, ok, "channel should be closed")
	d.Add(FileEvent{Name: "b.pdf", Operation: OpCreate})
}
