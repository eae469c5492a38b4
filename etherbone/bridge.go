package etherbone

import (
	"fmt"

	"github.com/awygle/udptherbone/sim/hooking"
	"github.com/awygle/udptherbone/sim/modeling"
	"github.com/awygle/udptherbone/sim/queueing"
	"github.com/awygle/udptherbone/stream"
	"github.com/awygle/udptherbone/wishbone"
)

// HookPosViolation marks a request packet dropped by the capture stage. Item
// is the Violation.
var HookPosViolation = &hooking.HookPos{Name: "EBViolation"}

// HookPosRecordDone marks a record whose bus cycles all completed. Item is
// the number of writes and Detail the number of reads.
var HookPosRecordDone = &hooking.HookPos{Name: "EBRecordDone"}

// HookPosResponse marks the last byte of a response packet. Item is the
// number of read results carried.
var HookPosResponse = &hooking.HookPos{Name: "EBResponse"}

// Spec configures a Bridge.
type Spec struct {
	AddrWidth int
	DataWidth int

	// MTU bounds the response packet, IPv4 and UDP headers included. Records
	// with more reads than fit are dropped.
	MTU int

	// WordQueueDepth must hold the largest record: 255 writes, 255 reads
	// and two base addresses.
	WordQueueDepth   int
	RecordQueueDepth int
	ResultQueueDepth int
}

const (
	minWordQueueDepth = 2*MaxOps + 2
	udpOverhead       = 28
)

// DefaultSpec returns a 32-bit bridge for a 1500-byte MTU.
func DefaultSpec() Spec {
	return Spec{
		AddrWidth:        32,
		DataWidth:        32,
		MTU:              1500,
		WordQueueDepth:   1024,
		RecordQueueDepth: 16,
		ResultQueueDepth: 16,
	}
}

// Validate checks the spec.
func (s Spec) Validate() error {
	l, err := newLayout(s.AddrWidth, s.DataWidth)
	if err != nil {
		return err
	}

	if s.WordQueueDepth < minWordQueueDepth {
		return fmt.Errorf("etherbone: word queue depth %d below %d",
			s.WordQueueDepth, minWordQueueDepth)
	}

	if s.RecordQueueDepth < 1 || s.ResultQueueDepth < 1 {
		return fmt.Errorf("etherbone: queue depths must be positive")
	}

	if s.MaxReads() < 1 {
		return fmt.Errorf("etherbone: mtu %d cannot carry a read of %d bytes",
			s.MTU, 2*l.align)
	}

	return nil
}

// MaxReads returns the largest read count whose response fits in the MTU.
func (s Spec) MaxReads() int {
	l, err := newLayout(s.AddrWidth, s.DataWidth)
	if err != nil {
		return 0
	}

	n := (s.MTU - udpOverhead - l.headerLen()) / (2 * l.align)
	if n > MaxOps {
		n = MaxOps
	}

	return n
}

type record struct {
	writes int
	reads  int
	wff    bool
	rff    bool
}

type responseMeta struct {
	reads int
	rff   bool
}

// Bridge executes Etherbone request packets on a Wishbone bus and answers
// each record with one response packet. Three stages run every step: respond
// streams responses, execute drives the bus with one cycle outstanding, and
// capture parses the request stream into the word and record queues.
//
// A record reaches the execute stage only after it is captured in full. A
// malformed packet is dropped from the point of the error on; records
// completed before the error still run.
type Bridge struct {
	modeling.ComponentBase
	modeling.MiddlewareHolder

	spec   Spec
	layout layout

	in  *stream.Channel
	out *stream.Channel
	bus *wishbone.Bus

	words     *queueing.Buffer[uint64]
	records   *queueing.Buffer[record]
	responses *queueing.Buffer[responseMeta]
	results   *queueing.Buffer[ReadResult]

	violations [numViolations]uint64
	executed   uint64
	responded  uint64
}

// Spec returns the configuration.
func (b *Bridge) Spec() Spec {
	return b.spec
}

// Violations returns the number of packets dropped for v.
func (b *Bridge) Violations(v Violation) uint64 {
	return b.violations[v]
}

// TotalViolations returns the number of packets dropped for any reason.
func (b *Bridge) TotalViolations() uint64 {
	var n uint64
	for _, c := range b.violations {
		n += c
	}

	return n
}

// RecordsExecuted returns the number of records whose bus cycles completed.
func (b *Bridge) RecordsExecuted() uint64 {
	return b.executed
}

// Responses returns the number of response packets emitted.
func (b *Bridge) Responses() uint64 {
	return b.responded
}

// Tick runs respond, execute and capture, in that order.
func (b *Bridge) Tick() bool {
	return b.MiddlewareHolder.Tick()
}

// Builder builds Bridges.
type Builder struct {
	spec    Spec
	in, out *stream.Channel
	bus     *wishbone.Bus
}

// MakeBuilder returns a builder with the default spec.
func MakeBuilder() Builder {
	return Builder{spec: DefaultSpec()}
}

// WithSpec sets the configuration.
func (b Builder) WithSpec(spec Spec) Builder {
	b.spec = spec
	return b
}

// WithInput sets the framed request input.
func (b Builder) WithInput(in *stream.Channel) Builder {
	b.in = in
	return b
}

// WithOutput sets the framed response output.
func (b Builder) WithOutput(out *stream.Channel) Builder {
	b.out = out
	return b
}

// WithBus sets the bus the bridge masters.
func (b Builder) WithBus(bus *wishbone.Bus) Builder {
	b.bus = bus
	return b
}

// Build creates the Bridge. It panics on an invalid spec or a missing
// channel.
func (b Builder) Build(name string) *Bridge {
	if err := b.spec.Validate(); err != nil {
		panic(fmt.Sprintf("bridge %s: %v", name, err))
	}

	if b.in == nil || b.out == nil || b.bus == nil {
		panic(fmt.Sprintf("bridge %s: input, output and bus are required", name))
	}

	l, _ := newLayout(b.spec.AddrWidth, b.spec.DataWidth)

	br := &Bridge{
		ComponentBase: modeling.MakeComponentBase(name),
		spec:          b.spec,
		layout:        l,
		in:            b.in,
		out:           b.out,
		bus:           b.bus,
		words: queueing.NewBuffer[uint64](
			name+".Words", b.spec.WordQueueDepth),
		records: queueing.NewBuffer[record](
			name+".Records", b.spec.RecordQueueDepth),
		responses: queueing.NewBuffer[responseMeta](
			name+".Responses", b.spec.RecordQueueDepth),
		results: queueing.NewBuffer[ReadResult](
			name+".Results", b.spec.ResultQueueDepth),
	}

	br.AddMiddleware(&respondMiddleware{Bridge: br})
	br.AddMiddleware(&executeMiddleware{Bridge: br})
	br.AddMiddleware(&captureMiddleware{Bridge: br})

	return br
}
