package modeling

import (
	"log"

	"github.com/awygle/udptherbone/sim/hooking"
	"github.com/awygle/udptherbone/sim/naming"
	"github.com/awygle/udptherbone/sim/queueing"
)

// HookPosChannelPush is invoked at commit when an offered item enters a
// channel.
var HookPosChannelPush = &hooking.HookPos{Name: "ChannelPush"}

// HookPosChannelPop is invoked at commit when an accepted item leaves a
// channel.
var HookPosChannelPop = &hooking.HookPos{Name: "ChannelPop"}

// A Committer holds state that changes only when the domain commits a step.
type Committer interface {
	naming.Named

	// Commit applies the changes staged during the step and reports whether
	// anything moved.
	Commit() bool

	// Size returns the number of committed items.
	Size() int

	// Capacity returns the maximum number of items.
	Capacity() int
}

// DefaultChannelCapacity lets a producer and a consumer transfer one item
// every step under evaluate-then-commit.
const DefaultChannelCapacity = 2

// Channel is a unidirectional flow-controlled conduit between exactly one
// producer and one consumer. Both sides see the state committed at the end
// of the previous step. The producer may offer one item per step if the
// committed occupancy is below capacity; the consumer may accept the
// committed head once per step. An offered item cannot be changed or
// withdrawn.
type Channel[T any] struct {
	hooking.HookableBase
	naming.NamedBase

	items *queueing.Buffer[T]

	staged    T
	hasStaged bool
	accepted  bool

	transfers uint64
}

// NewChannel creates a channel. A capacity of 0 selects
// DefaultChannelCapacity.
func NewChannel[T any](name string, capacity int) *Channel[T] {
	if capacity == 0 {
		capacity = DefaultChannelCapacity
	}

	return &Channel[T]{
		NamedBase: naming.MakeNamedBase(name),
		items:     queueing.NewBuffer[T](name, capacity),
	}
}

// CanOffer reports whether the producer may offer an item this step.
func (c *Channel[T]) CanOffer() bool {
	return !c.hasStaged && c.items.CanPush()
}

// Offer stages an item. It returns false and leaves the channel untouched if
// the channel cannot take it this step.
func (c *Channel[T]) Offer(item T) bool {
	if !c.CanOffer() {
		return false
	}

	c.staged = item
	c.hasStaged = true

	return true
}

// Peek returns the item the consumer may accept this step.
func (c *Channel[T]) Peek() (item T, ok bool) {
	if c.accepted {
		return item, false
	}

	return c.items.Peek()
}

// Accept takes the item returned by Peek. Accepting without an available
// item panics.
func (c *Channel[T]) Accept() {
	if c.accepted || c.items.Size() == 0 {
		log.Panicf("channel %s: nothing to accept", c.Name())
	}

	c.accepted = true
}

// Commit applies the accepted pop and the staged push.
func (c *Channel[T]) Commit() bool {
	moved := false

	if c.accepted {
		item, _ := c.items.Pop()
		c.accepted = false
		c.transfers++
		moved = true

		c.invoke(HookPosChannelPop, item)
	}

	if c.hasStaged {
		item := c.staged
		c.items.Push(item)

		var zero T
		c.staged = zero
		c.hasStaged = false
		moved = true

		c.invoke(HookPosChannelPush, item)
	}

	return moved
}

// Size returns the number of committed items.
func (c *Channel[T]) Size() int {
	return c.items.Size()
}

// Capacity returns the maximum number of committed items.
func (c *Channel[T]) Capacity() int {
	return c.items.Capacity()
}

// Transfers returns how many items the consumer has taken.
func (c *Channel[T]) Transfers() uint64 {
	return c.transfers
}

// Idle reports whether nothing is committed or staged.
func (c *Channel[T]) Idle() bool {
	return c.items.Size() == 0 && !c.hasStaged
}

func (c *Channel[T]) invoke(pos *hooking.HookPos, item T) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(hooking.HookCtx{Domain: c, Pos: pos, Item: item})
}
