package timing

import "sync"

// A Ticker advances its state by one step. Tick returns true if the step
// made progress.
type Ticker interface {
	Tick() bool
}

// TickEvent asks a handler to tick.
type TickEvent struct {
	EventBase
}

// MakeTickEvent creates a TickEvent.
func MakeTickEvent(handler Handler, t VTimeInSec) TickEvent {
	return TickEvent{EventBase: MakeEventBase(t, handler)}
}

// TickScheduler schedules at most one pending tick per cycle for a handler.
type TickScheduler struct {
	lock    sync.Mutex
	handler Handler
	engine  Engine
	freq    Freq

	nextTick VTimeInSec
}

// NewTickScheduler creates a TickScheduler.
func NewTickScheduler(handler Handler, engine Engine, freq Freq) *TickScheduler {
	return &TickScheduler{
		handler:  handler,
		engine:   engine,
		freq:     freq,
		nextTick: -1,
	}
}

// Freq returns the tick frequency.
func (t *TickScheduler) Freq() Freq {
	return t.freq
}

// TickNow schedules a tick at the current cycle.
func (t *TickScheduler) TickNow() {
	t.schedule(t.freq.ThisTick(t.engine.Now()))
}

// TickLater schedules a tick at the next cycle.
func (t *TickScheduler) TickLater() {
	t.schedule(t.freq.NextTick(t.engine.Now()))
}

func (t *TickScheduler) schedule(at VTimeInSec) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.nextTick >= at {
		return
	}

	t.nextTick = at
	t.engine.Schedule(MakeTickEvent(t.handler, at))
}
