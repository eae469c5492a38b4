package modeling

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/awygle/udptherbone/sim/hooking"
)

var _ = Describe("Channel", func() {
	var ch *Channel[int]

	BeforeEach(func() {
		ch = NewChannel[int]("Ch", 0)
	})

	It("should default to a capacity of two", func() {
		Expect(ch.Capacity()).To(Equal(DefaultChannelCapacity))
	})

	It("should not show an offered item before commit", func() {
		Expect(ch.Offer(1)).To(BeTrue())

		_, ok := ch.Peek()
		Expect(ok).To(BeFalse())
		Expect(ch.CanOffer()).To(BeFalse())
		Expect(ch.Offer(2)).To(BeFalse())

		Expect(ch.Commit()).To(BeTrue())

		v, ok := ch.Peek()
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(1))
	})

	It("should let the consumer accept once per step", func() {
		ch.Offer(1)
		ch.Commit()
		ch.Offer(2)
		ch.Commit()

		ch.Accept()
		_, ok := ch.Peek()
		Expect(ok).To(BeFalse())
		Expect(func() { ch.Accept() }).To(Panic())

		ch.Commit()
		v, _ := ch.Peek()
		Expect(v).To(Equal(2))
		Expect(ch.Transfers()).To(Equal(uint64(1)))
	})

	It("should stall the producer when full", func() {
		ch.Offer(1)
		ch.Commit()
		ch.Offer(2)
		ch.Commit()

		Expect(ch.CanOffer()).To(BeFalse())

		ch.Accept()
		Expect(ch.CanOffer()).To(BeFalse())
		ch.Commit()

		Expect(ch.CanOffer()).To(BeTrue())
	})

	It("should move one item per step in steady state", func() {
		next := 0
		var got []int

		for step := 0; step < 10; step++ {
			if v, ok := ch.Peek(); ok {
				ch.Accept()
				got = append(got, v)
			}

			if ch.Offer(next) {
				next++
			}

			ch.Commit()
		}

		Expect(got).To(Equal([]int{0, 1, 2, 3, 4, 5, 6, 7, 8}))
	})

	It("should report no movement when nothing happens", func() {
		Expect(ch.Commit()).To(BeFalse())
		Expect(ch.Idle()).To(BeTrue())
	})

	It("should invoke hooks at commit", func() {
		var positions []*hooking.HookPos
		ch.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			positions = append(positions, ctx.Pos)
		}))

		ch.Offer(1)
		ch.Commit()
		ch.Accept()
		ch.Commit()

		Expect(positions).To(Equal([]*hooking.HookPos{
			HookPosChannelPush, HookPosChannelPop,
		}))
	})
})
