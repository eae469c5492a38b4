// Package slip converts between framed byte streams and RFC 1055 SLIP
// byte streams.
package slip

import "github.com/awygle/udptherbone/sim/hooking"

// SLIP special bytes.
const (
	End    byte = 0xC0
	Esc    byte = 0xDB
	EscEnd byte = 0xDC
	EscEsc byte = 0xDD
)

// HookPosIllegalEscape is invoked when the unframer sees an escape followed
// by anything but EscEnd or EscEsc. The item is the offending byte.
var HookPosIllegalEscape = &hooking.HookPos{Name: "SlipIllegalEscape"}

// HookPosFrameEnd is invoked when the framer emits a packet terminator.
var HookPosFrameEnd = &hooking.HookPos{Name: "SlipFrameEnd"}

// HookPosPacketEnd is invoked when the unframer closes a packet.
var HookPosPacketEnd = &hooking.HookPos{Name: "SlipPacketEnd"}

func escapeCode(b byte) (code byte, escaped bool) {
	switch b {
	case End:
		return EscEnd, true
	case Esc:
		return EscEsc, true
	default:
		return b, false
	}
}

func unescape(code byte) (b byte, ok bool) {
	switch code {
	case EscEnd:
		return End, true
	case EscEsc:
		return Esc, true
	default:
		return 0, false
	}
}
