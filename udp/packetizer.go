package udp

import (
	"encoding/binary"
	"fmt"

	"github.com/awygle/udptherbone/sim/hooking"
	"github.com/awygle/udptherbone/sim/modeling"
	"github.com/awygle/udptherbone/sim/queueing"
	"github.com/awygle/udptherbone/stream"
)

// HookPosOverflow marks a payload that outgrew the MTU. Item is the number of
// bytes captured before the overflow.
var HookPosOverflow = &hooking.HookPos{Name: "UDPOverflow"}

// HookPosProtocolError marks input that broke the SOP/EOP framing. Item is a
// short description.
var HookPosProtocolError = &hooking.HookPos{Name: "UDPProtocolError"}

// HookPosPacketOut marks the last beat of an emitted packet. Item is the
// total packet length.
var HookPosPacketOut = &hooking.HookPos{Name: "UDPPacketOut"}

type readyPacket struct {
	length   int
	checksum uint16
}

type captureState int

const (
	captureIdle captureState = iota
	captureActive
	captureSwallow
)

// Packetizer wraps each framed payload in IPv4 and UDP headers. A payload is
// captured in full before its header is emitted, since the header carries
// the payload length and checksum. Capture and emission overlap: up to
// InFlight complete payloads wait while the next one is captured.
type Packetizer struct {
	modeling.ComponentBase
	modeling.MiddlewareHolder

	spec PacketizerSpec

	in  *stream.Channel
	out *stream.Channel

	payload  *queueing.Buffer[byte]
	inFlight *queueing.Buffer[readyPacket]

	ipBase  Checksum
	udpBase Checksum

	captureState captureState
	captured     int
	payloadSum   Checksum

	emitting  bool
	header    [HeaderLen]byte
	headerPos int
	remaining int

	overflow       bool
	overflows      uint64
	protocolErrors uint64
	packets        uint64
}

// Spec returns the configuration.
func (p *Packetizer) Spec() PacketizerSpec {
	return p.spec
}

// Overflow reports whether a payload overflowed in the last step.
func (p *Packetizer) Overflow() bool {
	return p.overflow
}

// Overflows returns the number of payloads dropped for exceeding the MTU.
func (p *Packetizer) Overflows() uint64 {
	return p.overflows
}

// ProtocolErrors returns the number of framing violations seen.
func (p *Packetizer) ProtocolErrors() uint64 {
	return p.protocolErrors
}

// Packets returns the number of packets emitted.
func (p *Packetizer) Packets() uint64 {
	return p.packets
}

// Tick runs the emit stage and then the capture stage.
func (p *Packetizer) Tick() bool {
	p.overflow = false

	return p.MiddlewareHolder.Tick()
}

func (p *Packetizer) protocolError(what string) {
	p.protocolErrors++
	p.Invoke(p, HookPosProtocolError, what, p.protocolErrors)
}

func (p *Packetizer) buildHeader(m readyPacket) {
	total := uint16(m.length + HeaderLen)
	udpLen := uint16(m.length + UDPHeaderLen)
	h := &p.header

	h[0] = VersionIHL
	h[1] = 0
	binary.BigEndian.PutUint16(h[2:], total)
	h[4], h[5] = 0, 0
	h[6], h[7] = FlagsDF, 0
	h[8] = p.spec.TTL
	h[9] = ProtocolUDP

	ip := p.ipBase
	ip.AddWord(total)
	binary.BigEndian.PutUint16(h[10:], ^ip.Sum())

	src := p.spec.SrcIP.As4()
	dst := p.spec.DstIP.As4()
	copy(h[12:16], src[:])
	copy(h[16:20], dst[:])

	binary.BigEndian.PutUint16(h[20:], p.spec.SrcPort)
	binary.BigEndian.PutUint16(h[22:], p.spec.DstPort)
	binary.BigEndian.PutUint16(h[24:], udpLen)
	binary.BigEndian.PutUint16(h[26:], m.checksum)
}

func (p *Packetizer) udpChecksum(length int, payloadSum uint16) uint16 {
	udpLen := uint16(length + UDPHeaderLen)

	c := p.udpBase
	c.AddWord(payloadSum)
	c.AddWord(udpLen)
	c.AddWord(udpLen)

	sum := c.Finish()
	if sum == 0 {
		return 0xFFFF
	}

	return sum
}

type emitMiddleware struct {
	*Packetizer
}

func (m *emitMiddleware) Tick() bool {
	if !m.out.CanOffer() {
		return false
	}

	if !m.emitting {
		meta, ok := m.inFlight.Peek()
		if !ok {
			return false
		}

		m.buildHeader(meta)
		m.emitting = true
		m.headerPos = 0
		m.remaining = meta.length
	}

	if m.headerPos < HeaderLen {
		pos := m.headerPos
		m.headerPos++

		beat := stream.Beat{
			Data: m.header[pos],
			SOP:  pos == 0,
			EOP:  pos == HeaderLen-1 && m.remaining == 0,
		}
		m.out.Offer(beat)

		if beat.EOP {
			m.finishPacket()
		}

		return true
	}

	data, _ := m.payload.Pop()
	m.remaining--

	m.out.Offer(stream.Beat{Data: data, EOP: m.remaining == 0})

	if m.remaining == 0 {
		m.finishPacket()
	}

	return true
}

func (m *emitMiddleware) finishPacket() {
	meta, _ := m.inFlight.Pop()
	m.emitting = false
	m.packets++

	m.Invoke(m.Packetizer, HookPosPacketOut, meta.length+HeaderLen, m.packets)
}

type captureMiddleware struct {
	*Packetizer
}

func (m *captureMiddleware) Tick() bool {
	beat, ok := m.in.Peek()
	if !ok {
		return false
	}

	switch m.captureState {
	case captureIdle:
		return m.tickIdle(beat)
	case captureActive:
		return m.tickActive(beat)
	default:
		return m.tickSwallow(beat)
	}
}

func (m *captureMiddleware) tickIdle(beat stream.Beat) bool {
	if !beat.SOP {
		m.in.Accept()
		m.protocolError("data without SOP")

		return true
	}

	if !m.inFlight.CanPush() || !m.payload.CanPush() {
		return false
	}

	m.captured = 0
	m.payloadSum = Checksum{}

	m.capture(beat)

	return true
}

func (m *captureMiddleware) tickActive(beat stream.Beat) bool {
	if beat.SOP {
		m.payload.Retract(m.captured)
		m.captureState = captureIdle
		m.protocolError("SOP before EOP")

		return true
	}

	if m.captured == m.spec.MaxPayload() {
		m.in.Accept()
		m.payload.Retract(m.captured)

		m.overflow = true
		m.overflows++
		m.Invoke(m.Packetizer, HookPosOverflow, m.captured, m.overflows)

		if beat.EOP {
			m.captureState = captureIdle
		} else {
			m.captureState = captureSwallow
		}

		return true
	}

	if !m.payload.CanPush() {
		return false
	}

	m.capture(beat)

	return true
}

func (m *captureMiddleware) tickSwallow(beat stream.Beat) bool {
	if beat.SOP {
		m.captureState = captureIdle
		return true
	}

	m.in.Accept()

	if beat.EOP {
		m.captureState = captureIdle
	}

	return true
}

func (m *captureMiddleware) capture(beat stream.Beat) {
	m.in.Accept()
	m.payload.Push(beat.Data)
	m.payloadSum.AddByte(beat.Data)
	m.captured++

	if !beat.EOP {
		m.captureState = captureActive
		return
	}

	m.inFlight.Push(readyPacket{
		length:   m.captured,
		checksum: m.udpChecksum(m.captured, m.payloadSum.Sum()),
	})
	m.captureState = captureIdle
}

// PacketizerBuilder builds Packetizers.
type PacketizerBuilder struct {
	spec    PacketizerSpec
	in, out *stream.Channel
}

// MakePacketizerBuilder returns a builder with the default spec.
func MakePacketizerBuilder() PacketizerBuilder {
	return PacketizerBuilder{spec: DefaultPacketizerSpec()}
}

// WithSpec sets the configuration.
func (b PacketizerBuilder) WithSpec(spec PacketizerSpec) PacketizerBuilder {
	b.spec = spec
	return b
}

// WithInput sets the framed payload input.
func (b PacketizerBuilder) WithInput(in *stream.Channel) PacketizerBuilder {
	b.in = in
	return b
}

// WithOutput sets the framed packet output.
func (b PacketizerBuilder) WithOutput(out *stream.Channel) PacketizerBuilder {
	b.out = out
	return b
}

// Build creates the Packetizer. It panics if the spec is invalid or a channel
// is missing.
func (b PacketizerBuilder) Build(name string) *Packetizer {
	if err := b.spec.Validate(); err != nil {
		panic(fmt.Sprintf("packetizer %s: %v", name, err))
	}

	mustHaveChannels(name, b.in, b.out)

	p := &Packetizer{
		ComponentBase: modeling.MakeComponentBase(name),
		spec:          b.spec,
		in:            b.in,
		out:           b.out,
		payload:       queueing.NewBuffer[byte](name+".Payload", b.spec.MTU),
		inFlight: queueing.NewBuffer[readyPacket](
			name+".InFlight", b.spec.InFlight),
	}

	p.ipBase = ipHeaderBase(b.spec.TTL, b.spec.SrcIP.As4(), b.spec.DstIP.As4())
	p.udpBase = udpHeaderBase(
		b.spec.SrcIP.As4(), b.spec.DstIP.As4(), b.spec.SrcPort, b.spec.DstPort)

	p.AddMiddleware(&emitMiddleware{Packetizer: p})
	p.AddMiddleware(&captureMiddleware{Packetizer: p})

	return p
}

// ipHeaderBase sums every IPv4 header word except the total length and the
// checksum itself.
func ipHeaderBase(ttl uint8, src, dst [4]byte) Checksum {
	var c Checksum

	c.AddWord(uint16(VersionIHL) << 8)
	c.AddWord(uint16(FlagsDF) << 8)
	c.AddWord(uint16(ttl)<<8 | uint16(ProtocolUDP))
	c.AddBytes(src[:])
	c.AddBytes(dst[:])

	return c
}

// udpHeaderBase sums the pseudo-header and UDP header words that do not
// depend on the payload.
func udpHeaderBase(src, dst [4]byte, srcPort, dstPort uint16) Checksum {
	var c Checksum

	c.AddBytes(src[:])
	c.AddBytes(dst[:])
	c.AddWord(uint16(ProtocolUDP))
	c.AddWord(srcPort)
	c.AddWord(dstPort)

	return c
}

func mustHaveChannels(name string, in, out *stream.Channel) {
	if in == nil || out == nil {
		panic(fmt.Sprintf("%s: input and output channels are required", name))
	}
}
