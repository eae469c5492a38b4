package modeling

import (
	"log"

	"github.com/awygle/udptherbone/sim/hooking"
	"github.com/awygle/udptherbone/sim/naming"
	"github.com/awygle/udptherbone/sim/timing"
)

// HookPosAfterStep is invoked after every step. The detail is whether the
// step made progress.
var HookPosAfterStep = &hooking.HookPos{Name: "AfterStep"}

// Domain advances a set of components and channels in lock step. In every
// step all components tick against the same committed channel state, then
// all channels commit.
type Domain struct {
	naming.NamedBase
	hooking.HookableBase

	components []Component
	channels   []Committer

	engine    timing.Engine
	scheduler *timing.TickScheduler
	steps     uint64
}

// NewDomain creates an empty domain.
func NewDomain(name string) *Domain {
	return &Domain{NamedBase: naming.MakeNamedBase(name)}
}

// AttachEngine lets the engine drive the domain at freq. Each tick event runs
// one step, and the next tick is scheduled only if the step made progress.
func (d *Domain) AttachEngine(engine timing.Engine, freq timing.Freq) {
	d.engine = engine
	d.scheduler = timing.NewTickScheduler(d, engine, freq)
}

// Engine returns the attached engine, if any.
func (d *Domain) Engine() timing.Engine {
	return d.engine
}

// AddComponent registers a component. Components tick in registration order,
// which does not affect the outcome of a step.
func (d *Domain) AddComponent(c Component) {
	d.components = append(d.components, c)
}

// AddChannel registers a channel to commit after every step.
func (d *Domain) AddChannel(c Committer) {
	d.channels = append(d.channels, c)
}

// Components returns the registered components.
func (d *Domain) Components() []Component {
	return d.components
}

// Channels returns the registered channels.
func (d *Domain) Channels() []Committer {
	return d.channels
}

// Steps returns the number of steps taken.
func (d *Domain) Steps() uint64 {
	return d.steps
}

// Step runs one evaluate-then-commit cycle.
func (d *Domain) Step() bool {
	progress := false

	for _, c := range d.components {
		if c.Tick() {
			progress = true
		}
	}

	for _, ch := range d.channels {
		if ch.Commit() {
			progress = true
		}
	}

	d.steps++

	if d.NumHooks() > 0 {
		d.InvokeHook(hooking.HookCtx{
			Domain: d,
			Pos:    HookPosAfterStep,
			Item:   d.steps,
			Detail: progress,
		})
	}

	return progress
}

// StepN runs n steps.
func (d *Domain) StepN(n int) {
	for i := 0; i < n; i++ {
		d.Step()
	}
}

// StepUntilQuiet steps until a step makes no progress or max steps have run.
// It returns the number of steps taken and whether the domain went quiet.
func (d *Domain) StepUntilQuiet(max int) (steps int, quiet bool) {
	for steps < max {
		steps++

		if !d.Step() {
			return steps, true
		}
	}

	return steps, false
}

// TickLater schedules a step at the next cycle of the attached engine. Call
// it after feeding the domain from outside.
func (d *Domain) TickLater() {
	d.mustHaveEngine()
	d.scheduler.TickLater()
}

// TickNow schedules a step at the current cycle of the attached engine.
func (d *Domain) TickNow() {
	d.mustHaveEngine()
	d.scheduler.TickNow()
}

// Handle runs one step per tick event.
func (d *Domain) Handle(e timing.Event) error {
	if _, ok := e.(timing.TickEvent); !ok {
		log.Panicf("domain %s cannot handle %T", d.Name(), e)
	}

	if d.Step() {
		d.scheduler.TickLater()
	}

	return nil
}

func (d *Domain) mustHaveEngine() {
	if d.scheduler == nil {
		log.Panicf("domain %s has no engine", d.Name())
	}
}
