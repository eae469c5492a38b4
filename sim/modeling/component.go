// Package modeling composes components and channels into a step-synchronous
// domain.
package modeling

import (
	"github.com/awygle/udptherbone/sim/hooking"
	"github.com/awygle/udptherbone/sim/naming"
	"github.com/awygle/udptherbone/sim/timing"
)

// A Component is a named state machine that advances one step per Tick.
// During Tick a component may read only the committed state of its channels;
// whatever it offers or accepts takes effect when the domain commits.
type Component interface {
	naming.Named
	hooking.Hookable
	timing.Ticker
}

// Middleware is one stage of a component.
type Middleware interface {
	// Tick advances the stage. It returns true if progress is made.
	Tick() bool
}

// MiddlewareHolder ticks a list of middlewares in order.
type MiddlewareHolder struct {
	middlewares []Middleware
}

// AddMiddleware appends a middleware.
func (h *MiddlewareHolder) AddMiddleware(m Middleware) {
	h.middlewares = append(h.middlewares, m)
}

// Middlewares returns the middlewares in tick order.
func (h *MiddlewareHolder) Middlewares() []Middleware {
	return h.middlewares
}

// Tick ticks every middleware once. Every middleware runs even if an earlier
// one made no progress.
func (h *MiddlewareHolder) Tick() bool {
	progress := false

	for _, m := range h.middlewares {
		if m.Tick() {
			progress = true
		}
	}

	return progress
}

// ComponentBase bundles the name and hook support every component needs.
type ComponentBase struct {
	naming.NamedBase
	hooking.HookableBase
}

// MakeComponentBase creates a ComponentBase with a validated name.
func MakeComponentBase(name string) ComponentBase {
	return ComponentBase{NamedBase: naming.MakeNamedBase(name)}
}

// Invoke calls the hooks of the component at pos, skipping the allocation
// when no hook is attached.
func (c *ComponentBase) Invoke(
	domain hooking.Hookable,
	pos *hooking.HookPos,
	item, detail interface{},
) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: domain,
		Pos:    pos,
		Item:   item,
		Detail: detail,
	})
}
