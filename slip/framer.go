package slip

import (
	"github.com/awygle/udptherbone/sim/modeling"
	"github.com/awygle/udptherbone/stream"
)

type framerState int

const (
	framerActive framerState = iota
	framerEsc
	framerEscEnd
	framerEnd
)

// Framer turns a framed stream into a SLIP byte stream. It escapes End and
// Esc, ends every packet with End, and ignores SOP. It takes input only in
// the active state, so an escape or a terminator stalls the input for one
// step.
type Framer struct {
	modeling.ComponentBase

	in  *stream.Channel
	out *stream.Channel

	state   framerState
	pending byte
	packets uint64
}

// Tick emits at most one byte.
func (f *Framer) Tick() bool {
	if !f.out.CanOffer() {
		return false
	}

	switch f.state {
	case framerEsc:
		f.out.Offer(stream.Beat{Data: f.pending})
		f.state = framerActive
	case framerEscEnd:
		f.out.Offer(stream.Beat{Data: f.pending})
		f.state = framerEnd
	case framerEnd:
		f.out.Offer(stream.Beat{Data: End})
		f.state = framerActive
		f.packets++
		f.Invoke(f, HookPosFrameEnd, nil, f.packets)
	default:
		return f.takeInput()
	}

	return true
}

func (f *Framer) takeInput() bool {
	beat, ok := f.in.Peek()
	if !ok {
		return false
	}

	f.in.Accept()

	code, escaped := escapeCode(beat.Data)

	switch {
	case escaped && beat.EOP:
		f.out.Offer(stream.Beat{Data: Esc})
		f.pending = code
		f.state = framerEscEnd
	case escaped:
		f.out.Offer(stream.Beat{Data: Esc})
		f.pending = code
		f.state = framerEsc
	case beat.EOP:
		f.out.Offer(stream.Beat{Data: beat.Data})
		f.state = framerEnd
	default:
		f.out.Offer(stream.Beat{Data: beat.Data})
	}

	return true
}

// Packets returns the number of terminators emitted.
func (f *Framer) Packets() uint64 {
	return f.packets
}

// FramerBuilder builds Framers.
type FramerBuilder struct {
	in, out *stream.Channel
}

// MakeFramerBuilder returns an empty FramerBuilder.
func MakeFramerBuilder() FramerBuilder {
	return FramerBuilder{}
}

// WithInput sets the framed input channel.
func (b FramerBuilder) WithInput(in *stream.Channel) FramerBuilder {
	b.in = in
	return b
}

// WithOutput sets the SLIP output channel.
func (b FramerBuilder) WithOutput(out *stream.Channel) FramerBuilder {
	b.out = out
	return b
}

// Build creates the Framer.
func (b FramerBuilder) Build(name string) *Framer {
	mustHaveChannels(name, b.in, b.out)

	return &Framer{
		ComponentBase: modeling.MakeComponentBase(name),
		in:            b.in,
		out:           b.out,
	}
}

func mustHaveChannels(name string, in, out *stream.Channel) {
	if in == nil || out == nil {
		panic(name + ": input and output channels are required")
	}
}
