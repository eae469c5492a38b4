package timing

import (
	"github.com/awygle/udptherbone/sim/hooking"
)

// TimeTeller reports the current virtual time.
type TimeTeller interface {
	Now() VTimeInSec
}

// EventScheduler accepts future events.
type EventScheduler interface {
	TimeTeller

	Schedule(e Event)
}

// An Engine runs events in time order.
type Engine interface {
	hooking.Hookable
	EventScheduler

	// Run handles events until none are left.
	Run() error

	// Pause stops the engine from handling more events until Continue is
	// called.
	Pause()

	// Continue resumes a paused engine.
	Continue()
}
