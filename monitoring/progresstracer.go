package monitoring

import (
	"github.com/awygle/udptherbone/sim/hooking"
	"github.com/awygle/udptherbone/tracing"
)

// ProgressTracer moves a progress bar as hook events arrive. An event at the
// start position puts one item in progress and an event at the finish
// position moves one item to finished.
type ProgressTracer struct {
	bar    *ProgressBar
	start  *hooking.HookPos
	finish *hooking.HookPos
}

// NewProgressTracer creates a ProgressTracer driving bar.
func NewProgressTracer(
	bar *ProgressBar,
	start, finish *hooking.HookPos,
) *ProgressTracer {
	return &ProgressTracer{bar: bar, start: start, finish: finish}
}

// Trace moves the bar.
func (t *ProgressTracer) Trace(e tracing.Event) {
	switch e.Pos {
	case t.start:
		t.bar.IncrementInProgress(1)
	case t.finish:
		t.bar.MoveInProgressToFinished(1)
	}
}
