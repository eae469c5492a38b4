package slip

import (
	"github.com/awygle/udptherbone/sim/modeling"
	"github.com/awygle/udptherbone/stream"
)

type unframerState int

const (
	unframerInit unframerState = iota
	unframerActive
	unframerEscaped
	unframerEscapedInit
)

// Unframer turns a SLIP byte stream into a framed stream. It holds one
// decoded byte back until the next input shows whether that byte ends the
// packet. An End between packets is an empty packet and is dropped.
//
// An escape followed by anything other than EscEnd or EscEsc raises Err for
// one step, drops the held byte and the offending byte, and waits for the
// next packet.
type Unframer struct {
	modeling.ComponentBase

	in  *stream.Channel
	out *stream.Channel

	state   unframerState
	held    stream.Beat
	err     bool
	errors  uint64
	packets uint64
}

// Err reports whether an illegal escape was seen in the last step.
func (u *Unframer) Err() bool {
	return u.err
}

// ErrorCount returns the number of illegal escapes seen.
func (u *Unframer) ErrorCount() uint64 {
	return u.errors
}

// Packets returns the number of packets closed with EOP.
func (u *Unframer) Packets() uint64 {
	return u.packets
}

// Tick consumes at most one input byte and emits at most one beat.
func (u *Unframer) Tick() bool {
	u.err = false

	beat, ok := u.in.Peek()
	if !ok {
		return false
	}

	b := beat.Data

	switch u.state {
	case unframerInit:
		return u.tickInit(b)
	case unframerActive:
		return u.tickActive(b)
	case unframerEscaped:
		return u.tickEscaped(b)
	default:
		return u.tickEscapedInit(b)
	}
}

func (u *Unframer) tickInit(b byte) bool {
	u.in.Accept()

	switch b {
	case End:
	case Esc:
		u.state = unframerEscapedInit
	default:
		u.held = stream.Beat{Data: b, SOP: true}
		u.state = unframerActive
	}

	return true
}

func (u *Unframer) tickActive(b byte) bool {
	if b == Esc {
		u.in.Accept()
		u.state = unframerEscaped

		return true
	}

	if !u.out.CanOffer() {
		return false
	}

	u.in.Accept()

	if b == End {
		u.held.EOP = true
		u.out.Offer(u.held)
		u.state = unframerInit
		u.packets++
		u.Invoke(u, HookPosPacketEnd, nil, u.packets)

		return true
	}

	u.out.Offer(u.held)
	u.held = stream.Beat{Data: b}

	return true
}

func (u *Unframer) tickEscaped(b byte) bool {
	decoded, legal := unescape(b)
	if !legal {
		u.in.Accept()
		u.fail(b)

		return true
	}

	if !u.out.CanOffer() {
		return false
	}

	u.in.Accept()
	u.out.Offer(u.held)
	u.held = stream.Beat{Data: decoded}
	u.state = unframerActive

	return true
}

func (u *Unframer) tickEscapedInit(b byte) bool {
	u.in.Accept()

	decoded, legal := unescape(b)
	if !legal {
		u.fail(b)
		return true
	}

	u.held = stream.Beat{Data: decoded, SOP: true}
	u.state = unframerActive

	return true
}

func (u *Unframer) fail(b byte) {
	u.err = true
	u.errors++
	u.held = stream.Beat{}
	u.state = unframerInit

	u.Invoke(u, HookPosIllegalEscape, b, u.errors)
}

// UnframerBuilder builds Unframers.
type UnframerBuilder struct {
	in, out *stream.Channel
}

// MakeUnframerBuilder returns an empty UnframerBuilder.
func MakeUnframerBuilder() UnframerBuilder {
	return UnframerBuilder{}
}

// WithInput sets the SLIP input channel.
func (b UnframerBuilder) WithInput(in *stream.Channel) UnframerBuilder {
	b.in = in
	return b
}

// WithOutput sets the framed output channel.
func (b UnframerBuilder) WithOutput(out *stream.Channel) UnframerBuilder {
	b.out = out
	return b
}

// Build creates the Unframer.
func (b UnframerBuilder) Build(name string) *Unframer {
	mustHaveChannels(name, b.in, b.out)

	return &Unframer{
		ComponentBase: modeling.MakeComponentBase(name),
		in:            b.in,
		out:           b.out,
	}
}
