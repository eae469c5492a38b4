package udp

import (
	"fmt"

	"github.com/awygle/udptherbone/sim/hooking"
	"github.com/awygle/udptherbone/sim/modeling"
	"github.com/awygle/udptherbone/sim/queueing"
	"github.com/awygle/udptherbone/stream"
)

// DiscardReason says why an incoming packet was dropped.
type DiscardReason int

// Reasons a packet is discarded.
const (
	DiscardVersion DiscardReason = iota
	DiscardTOS
	DiscardFragment
	DiscardProtocol
	DiscardAddress
	DiscardPort
	DiscardLength
	DiscardTooLarge
	DiscardTruncated
	DiscardInterrupted
	numDiscardReasons
)

var discardReasonNames = [numDiscardReasons]string{
	"version",
	"tos",
	"fragment",
	"protocol",
	"address",
	"port",
	"length",
	"too-large",
	"truncated",
	"interrupted",
}

func (r DiscardReason) String() string {
	if r < 0 || r >= numDiscardReasons {
		return fmt.Sprintf("DiscardReason(%d)", int(r))
	}

	return discardReasonNames[r]
}

// HookPosDiscard marks a dropped packet. Item is the DiscardReason.
var HookPosDiscard = &hooking.HookPos{Name: "UDPDiscard"}

// HookPosPacketIn marks an accepted datagram. Item is the payload length.
var HookPosPacketIn = &hooking.HookPos{Name: "UDPPacketIn"}

type parseState int

const (
	parseIdle parseState = iota
	parseHeader
	parsePayload
)

// Depacketizer strips IPv4 and UDP headers from framed packets addressed to
// its listen address and port, and re-frames the payload. Packets that do
// not match are dropped without any output. A payload is released only
// after it has been captured in full, so a packet cut short never reaches
// the output.
type Depacketizer struct {
	modeling.ComponentBase
	modeling.MiddlewareHolder

	spec DepacketizerSpec

	in  *stream.Channel
	out *stream.Channel

	payload *queueing.Buffer[byte]
	lengths *queueing.Buffer[int]

	listenIP [4]byte

	state      parseState
	offset     int
	totalLen   uint16
	udpLen     uint16
	payloadLen int
	captured   int

	emitting  bool
	emitFirst bool
	remaining int

	discards [numDiscardReasons]uint64
	packets  uint64
}

// Spec returns the configuration.
func (d *Depacketizer) Spec() DepacketizerSpec {
	return d.spec
}

// Discards returns the number of packets dropped for reason.
func (d *Depacketizer) Discards(reason DiscardReason) uint64 {
	return d.discards[reason]
}

// TotalDiscards returns the number of packets dropped for any reason.
func (d *Depacketizer) TotalDiscards() uint64 {
	var n uint64
	for _, c := range d.discards {
		n += c
	}

	return n
}

// Packets returns the number of datagrams accepted.
func (d *Depacketizer) Packets() uint64 {
	return d.packets
}

// Tick runs the emit stage and then the parse stage.
func (d *Depacketizer) Tick() bool {
	return d.MiddlewareHolder.Tick()
}

func (d *Depacketizer) discard(reason DiscardReason) {
	d.payload.Retract(d.captured)
	d.captured = 0
	d.state = parseIdle
	d.discards[reason]++

	d.Invoke(d, HookPosDiscard, reason, d.discards[reason])
}

type parseMiddleware struct {
	*Depacketizer
}

func (m *parseMiddleware) Tick() bool {
	beat, ok := m.in.Peek()
	if !ok {
		return false
	}

	switch m.state {
	case parseIdle:
		return m.tickIdle(beat)
	case parseHeader:
		return m.tickHeader(beat)
	default:
		return m.tickPayload(beat)
	}
}

func (m *parseMiddleware) tickIdle(beat stream.Beat) bool {
	if !beat.SOP {
		// Trailing bytes after a complete datagram, or the rest of a
		// discarded packet.
		m.in.Accept()
		return true
	}

	if !m.lengths.CanPush() {
		return false
	}

	m.in.Accept()
	m.captured = 0
	m.offset = 0

	if beat.Data != VersionIHL {
		m.discard(DiscardVersion)
		return true
	}

	if beat.EOP {
		m.discard(DiscardTruncated)
		return true
	}

	m.state = parseHeader
	m.offset = 1

	return true
}

func (m *parseMiddleware) tickHeader(beat stream.Beat) bool {
	if beat.SOP {
		m.discard(DiscardInterrupted)
		return true
	}

	m.in.Accept()

	if reason, bad := m.checkHeaderByte(m.offset, beat.Data); bad {
		m.discard(reason)
		return true
	}

	if m.offset == HeaderLen-1 {
		return m.headerDone(beat)
	}

	if beat.EOP {
		m.discard(DiscardTruncated)
		return true
	}

	m.offset++

	return true
}

func (m *parseMiddleware) headerDone(beat stream.Beat) bool {
	if m.payloadLen == 0 {
		m.state = parseIdle
		m.packets++
		m.Invoke(m.Depacketizer, HookPosPacketIn, 0, m.packets)

		return true
	}

	if beat.EOP {
		m.discard(DiscardTruncated)
		return true
	}

	m.state = parsePayload

	return true
}

//nolint:gocyclo
func (m *parseMiddleware) checkHeaderByte(
	offset int,
	b byte,
) (DiscardReason, bool) {
	switch offset {
	case 1:
		return DiscardTOS, b != 0
	case 2:
		m.totalLen = uint16(b) << 8
	case 3:
		m.totalLen |= uint16(b)
	case 4, 5:
		return DiscardFragment, b != 0
	case 6:
		return DiscardFragment, b != FlagsDF
	case 7:
		return DiscardFragment, b != 0
	case 9:
		return DiscardProtocol, b != ProtocolUDP
	case 16, 17, 18, 19:
		return DiscardAddress, b != m.listenIP[offset-16]
	case 22:
		return DiscardPort, b != byte(m.spec.ListenPort>>8)
	case 23:
		return DiscardPort, b != byte(m.spec.ListenPort)
	case 24:
		m.udpLen = uint16(b) << 8
	case 25:
		m.udpLen |= uint16(b)
		return m.checkLengths()
	}

	return 0, false
}

func (m *parseMiddleware) checkLengths() (DiscardReason, bool) {
	if m.udpLen < UDPHeaderLen || int(m.totalLen) != int(m.udpLen)+IPHeaderLen {
		return DiscardLength, true
	}

	m.payloadLen = int(m.udpLen) - UDPHeaderLen
	if m.payloadLen > m.spec.MaxPayload() {
		return DiscardTooLarge, true
	}

	return 0, false
}

func (m *parseMiddleware) tickPayload(beat stream.Beat) bool {
	if beat.SOP {
		m.discard(DiscardInterrupted)
		return true
	}

	if !m.payload.CanPush() {
		return false
	}

	m.in.Accept()
	m.payload.Push(beat.Data)
	m.captured++

	if m.captured == m.payloadLen {
		m.lengths.Push(m.payloadLen)
		m.captured = 0
		m.state = parseIdle
		m.packets++
		m.Invoke(m.Depacketizer, HookPosPacketIn, m.payloadLen, m.packets)

		return true
	}

	if beat.EOP {
		m.discard(DiscardTruncated)
	}

	return true
}

type releaseMiddleware struct {
	*Depacketizer
}

func (m *releaseMiddleware) Tick() bool {
	if !m.out.CanOffer() {
		return false
	}

	if !m.emitting {
		n, ok := m.lengths.Peek()
		if !ok {
			return false
		}

		m.emitting = true
		m.emitFirst = true
		m.remaining = n
	}

	data, _ := m.payload.Pop()
	m.remaining--

	m.out.Offer(stream.Beat{
		Data: data,
		SOP:  m.emitFirst,
		EOP:  m.remaining == 0,
	})
	m.emitFirst = false

	if m.remaining == 0 {
		m.lengths.Pop()
		m.emitting = false
	}

	return true
}

// DepacketizerBuilder builds Depacketizers.
type DepacketizerBuilder struct {
	spec    DepacketizerSpec
	in, out *stream.Channel
}

// MakeDepacketizerBuilder returns a builder with the default spec.
func MakeDepacketizerBuilder() DepacketizerBuilder {
	return DepacketizerBuilder{spec: DefaultDepacketizerSpec()}
}

// WithSpec sets the configuration.
func (b DepacketizerBuilder) WithSpec(
	spec DepacketizerSpec,
) DepacketizerBuilder {
	b.spec = spec
	return b
}

// WithInput sets the framed packet input.
func (b DepacketizerBuilder) WithInput(in *stream.Channel) DepacketizerBuilder {
	b.in = in
	return b
}

// WithOutput sets the framed payload output.
func (b DepacketizerBuilder) WithOutput(
	out *stream.Channel,
) DepacketizerBuilder {
	b.out = out
	return b
}

// Build creates the Depacketizer. It panics if the spec is invalid or a
// channel is missing.
func (b DepacketizerBuilder) Build(name string) *Depacketizer {
	if err := b.spec.Validate(); err != nil {
		panic(fmt.Sprintf("depacketizer %s: %v", name, err))
	}

	mustHaveChannels(name, b.in, b.out)

	d := &Depacketizer{
		ComponentBase: modeling.MakeComponentBase(name),
		spec:          b.spec,
		in:            b.in,
		out:           b.out,
		payload:       queueing.NewBuffer[byte](name+".Payload", b.spec.MTU),
		lengths:       queueing.NewBuffer[int](name+".Lengths", b.spec.InFlight),
		listenIP:      b.spec.ListenIP.As4(),
	}

	d.AddMiddleware(&releaseMiddleware{Depacketizer: d})
	d.AddMiddleware(&parseMiddleware{Depacketizer: d})

	return d
}
