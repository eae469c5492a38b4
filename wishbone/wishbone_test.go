package wishbone

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/awygle/udptherbone/sim/hooking"
	"github.com/awygle/udptherbone/sim/modeling"
)

// master issues queued requests one at a time and records responses.
type master struct {
	modeling.ComponentBase

	bus       *Bus
	queue     []Request
	waiting   bool
	responses []Response
	acked     []uint64
	step      uint64
}

func (m *master) Tick() bool {
	m.step++
	progress := false

	if rsp, ok := m.bus.Rsp.Peek(); ok {
		m.bus.Rsp.Accept()
		m.responses = append(m.responses, rsp)
		m.acked = append(m.acked, m.step)
		m.waiting = false
		progress = true
	}

	if !m.waiting && len(m.queue) > 0 && m.bus.Req.CanOffer() {
		m.bus.Req.Offer(m.queue[0])
		m.queue = m.queue[1:]
		m.waiting = true
		progress = true
	}

	return progress
}

var _ = Describe("RegisterFile", func() {
	It("should read unwritten words as zero", func() {
		f := NewRegisterFile(32)
		Expect(f.Read(0x1234)).To(BeZero())
	})

	It("should honor byte selects", func() {
		f := NewRegisterFile(32)
		f.Write(4, 0xAABBCCDD, 0x0F)
		f.Write(4, 0x11223344, 0x05)

		Expect(f.Read(4)).To(Equal(uint64(0xAA22CC44)))
	})

	It("should truncate data to the word width", func() {
		f := NewRegisterFile(16)
		f.Write(0, 0x12345678, SelAll)
		f.Poke(1, 0xFFFFFF)

		Expect(f.Read(0)).To(Equal(uint64(0x5678)))
		Expect(f.Read(1)).To(Equal(uint64(0xFFFF)))
	})

	It("should keep all 64 bits of wide words", func() {
		f := NewRegisterFile(64)
		f.Write(0, 0x0102030405060708, SelAll)
		f.Write(0, 0xFF00000000000000, 0x80)

		Expect(f.Read(0)).To(Equal(uint64(0xFF02030405060708)))
	})

	It("should list addresses in order", func() {
		f := NewRegisterFile(32)
		f.Poke(9, 1)
		f.Poke(3, 1)
		f.Poke(5, 1)

		Expect(f.Addresses()).To(Equal([]uint64{3, 5, 9}))
	})
})

var _ = Describe("Slave", func() {
	var (
		mockCtrl *gomock.Controller
		target   *MockTarget
		domain   *modeling.Domain
		bus      *Bus
		m        *master
	)

	build := func(spec Spec) *Slave {
		s := MakeSlaveBuilder().
			WithSpec(spec).
			WithBus(bus).
			WithTarget(target).
			Build("Test.Slave")

		domain.AddComponent(m)
		domain.AddComponent(s)

		for _, c := range bus.Channels() {
			domain.AddChannel(c)
		}

		return s
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		target = NewMockTarget(mockCtrl)
		domain = modeling.NewDomain("Test")
		bus = NewBus("Test.Bus")
		m = &master{
			ComponentBase: modeling.MakeComponentBase("Test.Master"),
			bus:           bus,
		}
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should perform a write and acknowledge it", func() {
		s := build(DefaultSpec())
		req := NewWriteRequest(0x10, 0xCAFEF00D)
		m.queue = []Request{req}

		target.EXPECT().Write(uint64(0x10), uint64(0xCAFEF00D), SelAll)

		domain.StepUntilQuiet(100)

		Expect(m.responses).To(Equal([]Response{{ReqID: req.ID, Write: true}}))
		Expect(s.Transactions()).To(Equal(uint64(1)))
		Expect(s.Busy()).To(BeFalse())
	})

	It("should return read data masked to the word width", func() {
		spec := DefaultSpec()
		spec.DataWidth = 16
		build(spec)

		req := NewReadRequest(0x20)
		m.queue = []Request{req}

		target.EXPECT().Read(uint64(0x20)).Return(uint64(0x12345678))

		domain.StepUntilQuiet(100)

		Expect(m.responses).To(HaveLen(1))
		Expect(m.responses[0].ReqID).To(Equal(req.ID))
		Expect(m.responses[0].Data).To(Equal(uint64(0x5678)))
		Expect(m.responses[0].Write).To(BeFalse())
	})

	It("should serve requests in order", func() {
		build(DefaultSpec())
		m.queue = []Request{
			NewWriteRequest(1, 11),
			NewReadRequest(1),
			NewWriteRequest(2, 22),
		}

		gomock.InOrder(
			target.EXPECT().Write(uint64(1), uint64(11), SelAll),
			target.EXPECT().Read(uint64(1)).Return(uint64(11)),
			target.EXPECT().Write(uint64(2), uint64(22), SelAll),
		)

		domain.StepUntilQuiet(100)

		Expect(m.responses).To(HaveLen(3))
		Expect(m.responses[1].Data).To(Equal(uint64(11)))
	})

	It("should delay acknowledgments by the configured latency", func() {
		ackStep := func(latency int) uint64 {
			domain = modeling.NewDomain("Test")
			bus = NewBus("Test.Bus")
			m = &master{
				ComponentBase: modeling.MakeComponentBase("Test.Master"),
				bus:           bus,
				queue:         []Request{NewReadRequest(0)},
			}

			spec := DefaultSpec()
			spec.LatencyCycles = latency
			build(spec)

			domain.StepUntilQuiet(100)
			Expect(m.acked).To(HaveLen(1))

			return m.acked[0]
		}

		target.EXPECT().Read(gomock.Any()).Return(uint64(0)).Times(3)

		fast := ackStep(0)
		Expect(ackStep(1)).To(Equal(fast + 1))
		Expect(ackStep(5)).To(Equal(fast + 5))
	})

	It("should report transactions through hooks", func() {
		s := build(DefaultSpec())
		f := NewRegisterFile(32)
		s.target = f

		var seen []Request
		s.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			if ctx.Pos == HookPosTransaction {
				seen = append(seen, ctx.Item.(Request))
			}
		}))

		m.queue = []Request{NewWriteRequest(3, 33), NewReadRequest(3)}
		domain.StepUntilQuiet(100)

		Expect(seen).To(HaveLen(2))
		Expect(seen[0].Write).To(BeTrue())
		Expect(m.responses[1].Data).To(Equal(uint64(33)))
	})

	It("should reject invalid specs", func() {
		Expect(Spec{LatencyCycles: -1, DataWidth: 32}.Validate()).
			To(HaveOccurred())
		Expect(Spec{DataWidth: 24}.Validate()).To(HaveOccurred())
		Expect(func() { MakeSlaveBuilder().Build("Bad") }).To(Panic())
	})
})
