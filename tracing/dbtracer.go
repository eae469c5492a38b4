package tracing

import (
	"sync"

	"github.com/awygle/udptherbone/datarecording"
	"github.com/awygle/udptherbone/sim/hooking"
)

// EventTable is the table DBTracer writes to.
const EventTable = "trace_events"

type eventEntry struct {
	Step      uint64
	Component string
	Position  string
	Item      string
	Detail    string
}

// DBTracer stores events into a data recorder. It can be restricted to a set
// of positions so that per-byte positions do not flood the table.
type DBTracer struct {
	mu      sync.Mutex
	backend datarecording.DataRecorder
	only    map[*hooking.HookPos]bool
	stored  uint64
}

// NewDBTracer creates a DBTracer and its table.
func NewDBTracer(backend datarecording.DataRecorder) *DBTracer {
	backend.CreateTable(EventTable, eventEntry{})

	return &DBTracer{
		backend: backend,
		only:    make(map[*hooking.HookPos]bool),
	}
}

// Only restricts the tracer to the given positions.
func (t *DBTracer) Only(positions ...*hooking.HookPos) *DBTracer {
	for _, p := range positions {
		t.only[p] = true
	}

	return t
}

// Trace stores e.
func (t *DBTracer) Trace(e Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.only) > 0 && !t.only[e.Pos] {
		return
	}

	t.backend.InsertData(EventTable, eventEntry{
		Step:      e.Step,
		Component: e.Component,
		Position:  e.Pos.Name,
		Item:      FormatValue(e.Item),
		Detail:    FormatValue(e.Detail),
	})
	t.stored++
}

// Stored returns the number of events stored.
func (t *DBTracer) Stored() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.stored
}

// Terminate flushes the backend.
func (t *DBTracer) Terminate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.backend.Flush()
}
