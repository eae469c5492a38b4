package stream

import (
	"github.com/awygle/udptherbone/sim/hooking"
	"github.com/awygle/udptherbone/sim/modeling"
)

// HookPosSinkPacket is invoked when a sink completes a packet.
var HookPosSinkPacket = &hooking.HookPos{Name: "SinkPacket"}

// HookPosSinkViolation is invoked when a sink sees broken framing.
var HookPosSinkViolation = &hooking.HookPos{Name: "SinkViolation"}

// StallPattern decides whether a sink refuses input at a step. Steps count
// from 1.
type StallPattern func(step uint64) bool

// StallEvery returns a pattern that stalls on every n-th step.
func StallEvery(n uint64) StallPattern {
	return func(step uint64) bool {
		return step%n == 0
	}
}

// Sink drains a channel and records what arrives, both as a flat byte log
// and as packets reassembled from SOP and EOP. Untagged bytes outside a
// packet only go to the byte log, so a sink can also drain continuous
// channels.
type Sink struct {
	modeling.ComponentBase

	in    *Channel
	stall StallPattern
	step  uint64

	beats      []Beat
	packets    [][]byte
	current    []byte
	inPacket   bool
	violations uint64
}

// NewSink creates a sink that reads from in.
func NewSink(name string, in *Channel) *Sink {
	return &Sink{
		ComponentBase: modeling.MakeComponentBase(name),
		in:            in,
	}
}

// WithStall sets a stall pattern.
func (s *Sink) WithStall(p StallPattern) *Sink {
	s.stall = p
	return s
}

// Tick accepts one beat unless the sink stalls at this step.
func (s *Sink) Tick() bool {
	s.step++

	beat, ok := s.in.Peek()
	if !ok {
		return false
	}

	if s.stall != nil && s.stall(s.step) {
		return true
	}

	s.in.Accept()
	s.record(beat)

	return true
}

func (s *Sink) record(beat Beat) {
	s.beats = append(s.beats, beat)

	if beat.SOP {
		if s.inPacket {
			s.violation("SOP before EOP")
		}

		s.current = nil
		s.inPacket = true
	} else if !s.inPacket {
		if beat.EOP {
			s.violation("EOP without SOP")
		}

		return
	}

	s.current = append(s.current, beat.Data)

	if beat.EOP {
		packet := s.current
		s.packets = append(s.packets, packet)
		s.current = nil
		s.inPacket = false

		s.Invoke(s, HookPosSinkPacket, packet, nil)
	}
}

func (s *Sink) violation(reason string) {
	s.violations++
	s.Invoke(s, HookPosSinkViolation, nil, reason)
}

// Beats returns every beat received.
func (s *Sink) Beats() []Beat {
	return s.beats
}

// Bytes returns the data of every beat received.
func (s *Sink) Bytes() []byte {
	data := make([]byte, len(s.beats))
	for i, b := range s.beats {
		data[i] = b.Data
	}

	return data
}

// Packets returns the completed packets.
func (s *Sink) Packets() [][]byte {
	return s.packets
}

// TakePackets returns the completed packets and forgets them.
func (s *Sink) TakePackets() [][]byte {
	p := s.packets
	s.packets = nil

	return p
}

// TakeBytes returns the received bytes and forgets them.
func (s *Sink) TakeBytes() []byte {
	data := s.Bytes()
	s.beats = nil

	return data
}

// Violations returns the number of framing violations seen.
func (s *Sink) Violations() uint64 {
	return s.violations
}
