// Package queueing provides the bounded queues that components keep between
// their internal stages.
package queueing

import (
	"log"

	"github.com/awygle/udptherbone/sim/hooking"
	"github.com/awygle/udptherbone/sim/naming"
)

// HookPosBufPush is invoked after an item is pushed.
var HookPosBufPush = &hooking.HookPos{Name: "BufPush"}

// HookPosBufPop is invoked after an item is popped.
var HookPosBufPop = &hooking.HookPos{Name: "BufPop"}

// HookPosBufRetract is invoked after items are retracted.
var HookPosBufRetract = &hooking.HookPos{Name: "BufRetract"}

// Buffer is a bounded FIFO with one producer and one consumer.
type Buffer[T any] struct {
	hooking.HookableBase
	naming.NamedBase

	capacity int
	items    []T
}

// NewBuffer creates a Buffer that holds at most capacity items.
func NewBuffer[T any](name string, capacity int) *Buffer[T] {
	if capacity <= 0 {
		log.Panicf("buffer %s: capacity must be positive", name)
	}

	return &Buffer[T]{
		NamedBase: naming.MakeNamedBase(name),
		capacity:  capacity,
		items:     make([]T, 0, capacity),
	}
}

// CanPush reports whether one more item fits.
func (b *Buffer[T]) CanPush() bool {
	return len(b.items) < b.capacity
}

// Push appends an item. Pushing into a full buffer panics.
func (b *Buffer[T]) Push(item T) {
	if len(b.items) >= b.capacity {
		log.Panicf("buffer %s overflow", b.Name())
	}

	b.items = append(b.items, item)
	b.invoke(HookPosBufPush, item, nil)
}

// Pop removes and returns the oldest item. ok is false if the buffer is
// empty.
func (b *Buffer[T]) Pop() (item T, ok bool) {
	if len(b.items) == 0 {
		return item, false
	}

	item = b.items[0]

	var zero T
	b.items[0] = zero
	b.items = b.items[1:]

	b.invoke(HookPosBufPop, item, nil)

	return item, true
}

// Peek returns the oldest item without removing it.
func (b *Buffer[T]) Peek() (item T, ok bool) {
	if len(b.items) == 0 {
		return item, false
	}

	return b.items[0], true
}

// Retract removes the n most recently pushed items. It is used to roll back
// a packet whose capture was abandoned.
func (b *Buffer[T]) Retract(n int) {
	if n == 0 {
		return
	}

	if n < 0 || n > len(b.items) {
		log.Panicf("buffer %s: cannot retract %d of %d items",
			b.Name(), n, len(b.items))
	}

	b.items = b.items[:len(b.items)-n]
	b.invoke(HookPosBufRetract, nil, n)
}

// Size returns the number of items held.
func (b *Buffer[T]) Size() int {
	return len(b.items)
}

// Capacity returns the maximum number of items.
func (b *Buffer[T]) Capacity() int {
	return b.capacity
}

func (b *Buffer[T]) invoke(pos *hooking.HookPos, item, detail interface{}) {
	if b.NumHooks() == 0 {
		return
	}

	b.InvokeHook(hooking.HookCtx{
		Domain: b,
		Pos:    pos,
		Item:   item,
		Detail: detail,
	})
}
