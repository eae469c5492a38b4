// Package tracing turns hook invocations into trace events and hands them to
// tracers that count, log, or store them.
package tracing

import (
	"encoding/hex"
	"fmt"
	"reflect"

	"github.com/awygle/udptherbone/sim/hooking"
	"github.com/awygle/udptherbone/sim/naming"
)

// NamedHookable is a named object that accepts hooks.
type NamedHookable interface {
	naming.Named
	hooking.Hookable
}

// A StepTeller reports the number of steps a domain has taken.
type StepTeller interface {
	Steps() uint64
}

// Event is one hook invocation.
type Event struct {
	Step      uint64
	Component string
	Pos       *hooking.HookPos
	Item      interface{}
	Detail    interface{}
}

// Tracer receives trace events.
type Tracer interface {
	Trace(e Event)
}

// CollectTrace lets the tracer receive every hook invocation of target.
// Events are stamped with the step count of steps, which may be nil.
func CollectTrace(steps StepTeller, target NamedHookable, tracer Tracer) {
	for _, hook := range target.Hooks() {
		h, ok := hook.(*traceHook)
		if ok && h.t == tracer {
			panic(fmt.Sprintf(
				"%s already has tracer %s",
				target.Name(), reflect.TypeOf(tracer)))
		}
	}

	target.AcceptHook(&traceHook{
		t:     tracer,
		steps: steps,
		name:  target.Name(),
	})
}

type traceHook struct {
	t     Tracer
	steps StepTeller
	name  string
}

func (h *traceHook) Func(ctx hooking.HookCtx) {
	e := Event{
		Component: h.name,
		Pos:       ctx.Pos,
		Item:      ctx.Item,
		Detail:    ctx.Detail,
	}

	if h.steps != nil {
		e.Step = h.steps.Steps()
	}

	h.t.Trace(e)
}

// FormatValue renders an item or a detail for logs and tables.
func FormatValue(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""
	case []byte:
		return hex.EncodeToString(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
