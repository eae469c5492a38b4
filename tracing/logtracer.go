package tracing

import (
	"github.com/awygle/udptherbone/sim/hooking"
	"github.com/rs/zerolog"
)

// LogTracer writes events to a zerolog logger. Positions without an assigned
// level are logged at the default level, which starts at trace.
type LogTracer struct {
	logger       zerolog.Logger
	defaultLevel zerolog.Level
	levels       map[*hooking.HookPos]zerolog.Level
}

// NewLogTracer creates a LogTracer.
func NewLogTracer(logger zerolog.Logger) *LogTracer {
	return &LogTracer{
		logger:       logger,
		defaultLevel: zerolog.TraceLevel,
		levels:       make(map[*hooking.HookPos]zerolog.Level),
	}
}

// WithLevel logs events at pos with level.
func (t *LogTracer) WithLevel(pos *hooking.HookPos, level zerolog.Level) *LogTracer {
	t.levels[pos] = level
	return t
}

// WithDefaultLevel sets the level for positions without their own.
func (t *LogTracer) WithDefaultLevel(level zerolog.Level) *LogTracer {
	t.defaultLevel = level
	return t
}

// Trace logs e.
func (t *LogTracer) Trace(e Event) {
	level, ok := t.levels[e.Pos]
	if !ok {
		level = t.defaultLevel
	}

	ev := t.logger.WithLevel(level)
	if ev == nil {
		return
	}

	ev = ev.
		Uint64("step", e.Step).
		Str("component", e.Component)

	if item := FormatValue(e.Item); item != "" {
		ev = ev.Str("item", item)
	}

	if detail := FormatValue(e.Detail); detail != "" {
		ev = ev.Str("detail", detail)
	}

	ev.Msg(e.Pos.Name)
}
