// Package timing drives components through virtual time with a discrete
// event engine.
package timing

import (
	"github.com/awygle/udptherbone/sim/hooking"
	"github.com/awygle/udptherbone/sim/id"
)

// An Event is something that happens at a point in virtual time.
type Event interface {
	// ID returns the unique ID of the event.
	ID() string

	// Time returns when the event happens.
	Time() VTimeInSec

	// Handler returns the handler that processes the event.
	Handler() Handler

	// IsSecondary tells whether the event runs after all primary events of
	// the same time.
	IsSecondary() bool
}

// A Handler processes events.
type Handler interface {
	Handle(e Event) error
}

// HookPosBeforeEvent is invoked before an event is handled.
var HookPosBeforeEvent = &hooking.HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent is invoked after an event is handled.
var HookPosAfterEvent = &hooking.HookPos{Name: "AfterEvent"}

// EventBase carries the fields shared by all events.
type EventBase struct {
	id        string
	time      VTimeInSec
	handler   Handler
	secondary bool
}

// MakeEventBase creates an EventBase with a fresh ID.
func MakeEventBase(t VTimeInSec, handler Handler) EventBase {
	return EventBase{
		id:      id.Generate(),
		time:    t,
		handler: handler,
	}
}

// ID returns the ID of the event.
func (e EventBase) ID() string {
	return e.id
}

// Time returns when the event happens.
func (e EventBase) Time() VTimeInSec {
	return e.time
}

// Handler returns the handler of the event.
func (e EventBase) Handler() Handler {
	return e.handler
}

// IsSecondary reports whether the event is secondary.
func (e EventBase) IsSecondary() bool {
	return e.secondary
}
