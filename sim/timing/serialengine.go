package timing

import (
	"fmt"
	"log"
	"sync"

	"github.com/awygle/udptherbone/sim/hooking"
)

// SerialEngine handles one event at a time on the calling goroutine.
type SerialEngine struct {
	hooking.HookableBase

	timeLock  sync.RWMutex
	now       VTimeInSec
	primary   EventQueue
	secondary EventQueue

	runLock   sync.Mutex
	gate      sync.Mutex
	pauseLock sync.Mutex
	paused    bool
}

// NewSerialEngine creates a SerialEngine.
func NewSerialEngine() *SerialEngine {
	return &SerialEngine{
		primary:   NewEventQueue(),
		secondary: NewEventQueue(),
	}
}

// Name returns the name of the engine.
func (e *SerialEngine) Name() string {
	return "Engine"
}

// Now returns the time of the event being handled, or of the last event
// handled.
func (e *SerialEngine) Now() VTimeInSec {
	e.timeLock.RLock()
	defer e.timeLock.RUnlock()

	return e.now
}

func (e *SerialEngine) setNow(t VTimeInSec) {
	e.timeLock.Lock()
	e.now = t
	e.timeLock.Unlock()
}

// Schedule queues an event. Scheduling into the past panics.
func (e *SerialEngine) Schedule(evt Event) {
	if evt.Time() < e.Now() {
		log.Panicf("event %s scheduled at %.10f, before now %.10f",
			evt.ID(), evt.Time(), e.Now())
	}

	if evt.IsSecondary() {
		e.secondary.Push(evt)
		return
	}

	e.primary.Push(evt)
}

// Run handles events until the queues are empty. It returns the first error
// returned by a handler.
func (e *SerialEngine) Run() error {
	e.runLock.Lock()
	defer e.runLock.Unlock()

	for e.primary.Len() > 0 || e.secondary.Len() > 0 {
		if err := e.handleNext(); err != nil {
			return err
		}
	}

	return nil
}

func (e *SerialEngine) handleNext() error {
	e.gate.Lock()
	defer e.gate.Unlock()

	evt := e.next()
	e.setNow(evt.Time())

	ctx := hooking.HookCtx{Domain: e, Pos: HookPosBeforeEvent, Item: evt}
	e.InvokeHook(ctx)

	err := evt.Handler().Handle(evt)

	ctx.Pos = HookPosAfterEvent
	e.InvokeHook(ctx)

	if err != nil {
		return fmt.Errorf("handle event %s: %w", evt.ID(), err)
	}

	return nil
}

func (e *SerialEngine) next() Event {
	switch {
	case e.primary.Len() == 0:
		return e.secondary.Pop()
	case e.secondary.Len() == 0:
		return e.primary.Pop()
	case e.primary.Peek().Time() <= e.secondary.Peek().Time():
		return e.primary.Pop()
	default:
		return e.secondary.Pop()
	}
}

// Pause blocks the engine before its next event.
func (e *SerialEngine) Pause() {
	e.pauseLock.Lock()
	defer e.pauseLock.Unlock()

	if e.paused {
		return
	}

	e.gate.Lock()
	e.paused = true
}

// Continue releases a paused engine.
func (e *SerialEngine) Continue() {
	e.pauseLock.Lock()
	defer e.pauseLock.Unlock()

	if !e.paused {
		return
	}

	e.paused = false
	e.gate.Unlock()
}
