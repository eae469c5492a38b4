package timing

import (
	"container/heap"
	"sync"
)

// EventQueue orders events by time.
type EventQueue interface {
	Push(evt Event)
	Pop() Event
	Peek() Event
	Len() int
}

// NewEventQueue returns a heap-based, goroutine-safe EventQueue. Events with
// the same time pop in the order they were pushed.
func NewEventQueue() EventQueue {
	return &heapQueue{}
}

type queuedEvent struct {
	evt Event
	seq uint64
}

type eventHeap []queuedEvent

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].evt.Time() != h[j].evt.Time() {
		return h[i].evt.Time() < h[j].evt.Time()
	}

	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x interface{}) {
	*h = append(*h, x.(queuedEvent))
}

func (h *eventHeap) Pop() interface{} {
	old := *h
	last := old[len(old)-1]
	*h = old[:len(old)-1]

	return last
}

type heapQueue struct {
	lock   sync.Mutex
	events eventHeap
	seq    uint64
}

func (q *heapQueue) Push(evt Event) {
	q.lock.Lock()
	defer q.lock.Unlock()

	q.seq++
	heap.Push(&q.events, queuedEvent{evt: evt, seq: q.seq})
}

func (q *heapQueue) Pop() Event {
	q.lock.Lock()
	defer q.lock.Unlock()

	return heap.Pop(&q.events).(queuedEvent).evt
}

func (q *heapQueue) Peek() Event {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.events[0].evt
}

func (q *heapQueue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()

	return len(q.events)
}
