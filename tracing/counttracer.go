package tracing

import (
	"sort"
	"sync"
)

// Count is the number of events seen at one position of one component.
type Count struct {
	Component string `json:"component"`
	Pos       string `json:"pos"`
	Count     uint64 `json:"count"`
}

type countKey struct {
	component string
	pos       string
}

// CountTracer counts events per component and hook position. It is safe to
// read while the domain runs in another goroutine.
type CountTracer struct {
	lock   sync.Mutex
	counts map[countKey]uint64
}

// NewCountTracer creates a CountTracer.
func NewCountTracer() *CountTracer {
	return &CountTracer{counts: make(map[countKey]uint64)}
}

// Trace counts e.
func (t *CountTracer) Trace(e Event) {
	t.lock.Lock()
	t.counts[countKey{e.Component, e.Pos.Name}]++
	t.lock.Unlock()
}

// Count returns the number of events at pos of component.
func (t *CountTracer) Count(component, pos string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.counts[countKey{component, pos}]
}

// Counts returns every non-zero count ordered by component then position.
func (t *CountTracer) Counts() []Count {
	t.lock.Lock()
	defer t.lock.Unlock()

	counts := make([]Count, 0, len(t.counts))
	for k, n := range t.counts {
		counts = append(counts, Count{Component: k.component, Pos: k.pos, Count: n})
	}

	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Component != counts[j].Component {
			return counts[i].Component < counts[j].Component
		}

		return counts[i].Pos < counts[j].Pos
	})

	return counts
}

// Reset forgets every count.
func (t *CountTracer) Reset() {
	t.lock.Lock()
	t.counts = make(map[countKey]uint64)
	t.lock.Unlock()
}
