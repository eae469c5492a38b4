package wishbone

import (
	"fmt"

	"github.com/awygle/udptherbone/sim/hooking"
	"github.com/awygle/udptherbone/sim/modeling"
	"github.com/awygle/udptherbone/sim/queueing"
)

// HookPosTransaction marks an acknowledged bus cycle. Item is the Request
// and Detail the Response.
var HookPosTransaction = &hooking.HookPos{Name: "BusTransaction"}

// Spec configures a Slave.
type Spec struct {
	// LatencyCycles is the number of steps between accepting a request and
	// offering its acknowledgment, not counting the two handshakes.
	LatencyCycles int

	DataWidth int
}

// DefaultSpec returns a one-cycle, 32-bit slave.
func DefaultSpec() Spec {
	return Spec{
		LatencyCycles: 1,
		DataWidth:     32,
	}
}

// Validate checks the spec.
func (s Spec) Validate() error {
	if s.LatencyCycles < 0 {
		return fmt.Errorf("wishbone: negative latency %d", s.LatencyCycles)
	}

	switch s.DataWidth {
	case 8, 16, 32, 64:
	default:
		return fmt.Errorf("wishbone: unsupported data width %d", s.DataWidth)
	}

	return nil
}

// Slave serves bus requests from a Target, one at a time. A request waits
// in a latency pipeline before the Target sees it.
type Slave struct {
	modeling.ComponentBase

	spec   Spec
	bus    *Bus
	target Target

	latency *queueing.Pipeline[Request]
	ready   *queueing.Buffer[Request]

	busy         bool
	transactions uint64
}

// Transactions returns the number of acknowledged requests.
func (s *Slave) Transactions() uint64 {
	return s.transactions
}

// Busy reports whether a request is being served.
func (s *Slave) Busy() bool {
	return s.busy
}

// Tick acknowledges a finished request, advances the latency pipeline and
// takes a new request if idle.
func (s *Slave) Tick() bool {
	progress := s.respond()
	progress = s.latency.Tick() || progress
	progress = s.take() || progress

	return progress
}

func (s *Slave) respond() bool {
	req, ok := s.ready.Peek()
	if !ok || !s.bus.Rsp.CanOffer() {
		return false
	}

	rsp := Response{ReqID: req.ID, Write: req.Write}
	mask := widthMask(s.spec.DataWidth)

	if req.Write {
		s.target.Write(req.Addr, req.Data&mask, req.Sel)
	} else {
		rsp.Data = s.target.Read(req.Addr) & mask
	}

	s.bus.Rsp.Offer(rsp)
	s.ready.Pop()
	s.busy = false
	s.transactions++

	s.Invoke(s, HookPosTransaction, req, rsp)

	return true
}

func (s *Slave) take() bool {
	if s.busy || !s.latency.CanAccept() {
		return false
	}

	req, ok := s.bus.Req.Peek()
	if !ok {
		return false
	}

	s.bus.Req.Accept()
	s.latency.Accept(req)
	s.busy = true

	return true
}

// SlaveBuilder builds Slaves.
type SlaveBuilder struct {
	spec   Spec
	bus    *Bus
	target Target
}

// MakeSlaveBuilder returns a builder with the default spec.
func MakeSlaveBuilder() SlaveBuilder {
	return SlaveBuilder{spec: DefaultSpec()}
}

// WithSpec sets the configuration.
func (b SlaveBuilder) WithSpec(spec Spec) SlaveBuilder {
	b.spec = spec
	return b
}

// WithBus sets the bus the slave serves.
func (b SlaveBuilder) WithBus(bus *Bus) SlaveBuilder {
	b.bus = bus
	return b
}

// WithTarget sets what the slave reads and writes.
func (b SlaveBuilder) WithTarget(t Target) SlaveBuilder {
	b.target = t
	return b
}

// Build creates the Slave. It panics on an invalid spec or a missing bus or
// target.
func (b SlaveBuilder) Build(name string) *Slave {
	if err := b.spec.Validate(); err != nil {
		panic(fmt.Sprintf("slave %s: %v", name, err))
	}

	if b.bus == nil || b.target == nil {
		panic(fmt.Sprintf("slave %s: bus and target are required", name))
	}

	ready := queueing.NewBuffer[Request](name+".Ready", 1)

	return &Slave{
		ComponentBase: modeling.MakeComponentBase(name),
		spec:          b.spec,
		bus:           b.bus,
		target:        b.target,
		ready:         ready,
		latency: queueing.MakePipelineBuilder[Request]().
			WithNumStage(b.spec.LatencyCycles).
			WithCyclePerStage(1).
			WithPostPipelineBuffer(ready).
			Build(name + ".Latency"),
	}
}
