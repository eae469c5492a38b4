package timing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("TickScheduler", func() {
	var (
		engine    *SerialEngine
		ticks     []VTimeInSec
		scheduler *TickScheduler
		remaining int
	)

	BeforeEach(func() {
		engine = NewSerialEngine()
		ticks = nil
		remaining = 3

		var h handlerFunc
		h = func(e Event) error {
			ticks = append(ticks, e.Time())
			remaining--
			if remaining > 0 {
				scheduler.TickLater()
			}
			return nil
		}
		scheduler = NewTickScheduler(h, engine, 1*GHz)
	})

	It("should tick until the handler stops asking", func() {
		scheduler.TickNow()

		Expect(engine.Run()).To(Succeed())
		Expect(ticks).To(HaveLen(3))
		Expect(ticks[0]).To(BeNumerically("~", 0, 1e-18))
		Expect(ticks[2]).To(BeNumerically("~", 2e-9, 1e-18))
	})

	It("should not schedule the same cycle twice", func() {
		scheduler.TickNow()
		scheduler.TickNow()
		remaining = 1

		Expect(engine.Run()).To(Succeed())
		Expect(ticks).To(HaveLen(1))
	})

	It("should report its frequency", func() {
		Expect(scheduler.Freq()).To(Equal(1 * GHz))
	})
})
