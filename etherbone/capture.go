package etherbone

import (
	"fmt"

	"github.com/awygle/udptherbone/stream"
)

// Violation says why the capture stage dropped a request packet.
type Violation int

// Reasons a request packet is dropped.
const (
	ViolationMagic Violation = iota
	ViolationVersion
	ViolationProbe
	ViolationSizes
	ViolationTooManyReads
	ViolationTruncated
	ViolationInterrupted
	numViolations
)

var violationNames = [numViolations]string{
	"magic",
	"version",
	"probe",
	"sizes",
	"too-many-reads",
	"truncated",
	"interrupted",
}

func (v Violation) String() string {
	if v < 0 || v >= numViolations {
		return fmt.Sprintf("Violation(%d)", int(v))
	}

	return violationNames[v]
}

type captureState int

const (
	captureIdle captureState = iota
	captureMagic1
	captureVersion
	captureSizes
	captureHeaderPad
	captureFlags
	captureByteEnable
	captureWriteCount
	captureReadCount
	captureRecordPad
	captureWords
)

type captureMiddleware struct {
	*Bridge

	state     captureState
	padLeft   int
	rec       record
	wordsLeft int
	pushed    int
	word      uint64
	wordBytes int
}

func (m *captureMiddleware) Tick() bool {
	beat, ok := m.in.Peek()
	if !ok {
		return false
	}

	if m.state == captureIdle {
		return m.tickIdle(beat)
	}

	if beat.SOP {
		m.violation(ViolationInterrupted)
		return true
	}

	if !m.canTake() {
		return false
	}

	m.in.Accept()

	if !m.take(beat.Data) {
		return true
	}

	if beat.EOP {
		if m.state == captureFlags {
			m.state = captureIdle
		} else {
			m.violation(ViolationTruncated)
		}
	}

	return true
}

func (m *captureMiddleware) tickIdle(beat stream.Beat) bool {
	m.in.Accept()

	if !beat.SOP {
		return true
	}

	m.pushed = 0

	switch {
	case beat.Data != Magic0:
		m.violation(ViolationMagic)
	case beat.EOP:
		m.violation(ViolationTruncated)
	default:
		m.state = captureMagic1
	}

	return true
}

// canTake reports whether the queues have room for whatever the next byte
// completes.
func (m *captureMiddleware) canTake() bool {
	if m.state != captureWords || m.wordBytes != m.layout.align-1 {
		return true
	}

	if !m.words.CanPush() {
		return false
	}

	return m.wordsLeft > 1 || m.records.CanPush()
}

// take consumes one byte. It returns false if the byte ended the packet
// with a violation.
//
//nolint:gocyclo
func (m *captureMiddleware) take(b byte) bool {
	switch m.state {
	case captureMagic1:
		if b != Magic1 {
			m.violation(ViolationMagic)
			return false
		}

		m.state = captureVersion
	case captureVersion:
		if b&0xF0 != Version {
			m.violation(ViolationVersion)
			return false
		}

		if b&(FlagProbe|FlagProbeResponse) != 0 {
			m.violation(ViolationProbe)
			return false
		}

		m.state = captureSizes
	case captureSizes:
		if b != m.layout.sizes() {
			m.violation(ViolationSizes)
			return false
		}

		m.startPad(captureHeaderPad, captureFlags)
	case captureHeaderPad:
		m.countPad(captureFlags)
	case captureFlags:
		m.rec = record{
			wff: b&FlagWFF != 0,
			rff: b&FlagRFF != 0,
		}
		m.state = captureByteEnable
	case captureByteEnable:
		m.state = captureWriteCount
	case captureWriteCount:
		m.rec.writes = int(b)
		m.state = captureReadCount
	case captureReadCount:
		m.rec.reads = int(b)
		if m.rec.reads > m.spec.MaxReads() {
			m.violation(ViolationTooManyReads)
			return false
		}

		if m.layout.pad() == 0 {
			m.recordHeaderDone()
		} else {
			m.padLeft = m.layout.pad()
			m.state = captureRecordPad
		}
	case captureRecordPad:
		m.padLeft--
		if m.padLeft == 0 {
			m.recordHeaderDone()
		}
	case captureWords:
		m.takeWordByte(b)
	}

	return true
}

func (m *captureMiddleware) startPad(pad, next captureState) {
	if m.layout.pad() == 0 {
		m.state = next
		return
	}

	m.padLeft = m.layout.pad()
	m.state = pad
}

func (m *captureMiddleware) countPad(next captureState) {
	m.padLeft--
	if m.padLeft == 0 {
		m.state = next
	}
}

func (m *captureMiddleware) recordHeaderDone() {
	m.wordsLeft = recordWords(m.rec.writes, m.rec.reads)
	if m.wordsLeft == 0 {
		m.state = captureFlags
		return
	}

	m.word = 0
	m.wordBytes = 0
	m.state = captureWords
}

func (m *captureMiddleware) takeWordByte(b byte) {
	m.word = m.word<<8 | uint64(b)
	m.wordBytes++

	if m.wordBytes < m.layout.align {
		return
	}

	m.words.Push(m.word)
	m.pushed++
	m.wordsLeft--
	m.word = 0
	m.wordBytes = 0

	if m.wordsLeft > 0 {
		return
	}

	m.records.Push(m.rec)
	m.pushed = 0
	m.state = captureFlags
}

func (m *captureMiddleware) violation(v Violation) {
	m.words.Retract(m.pushed)
	m.pushed = 0
	m.state = captureIdle
	m.violations[v]++

	m.Invoke(m.Bridge, HookPosViolation, v, m.violations[v])
}
