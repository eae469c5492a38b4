package timing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Freq", func() {
	f := 1 * GHz

	It("should compute the period", func() {
		Expect(f.Period()).To(BeNumerically("~", 1e-9, 1e-18))
	})

	It("should find this tick", func() {
		Expect(f.ThisTick(10.2e-9)).To(BeNumerically("~", 11e-9, 1e-18))
		Expect(f.ThisTick(10e-9)).To(BeNumerically("~", 10e-9, 1e-18))
	})

	It("should find the next tick", func() {
		Expect(f.NextTick(10e-9)).To(BeNumerically("~", 11e-9, 1e-18))
		Expect(f.NextTick(10.5e-9)).To(BeNumerically("~", 11e-9, 1e-18))
	})

	It("should count cycles", func() {
		Expect(f.Cycle(25e-9)).To(Equal(uint64(25)))
		Expect(f.NCyclesLater(3, 10e-9)).To(BeNumerically("~", 13e-9, 1e-18))
	})

	It("should panic on a zero frequency", func() {
		Expect(func() { Freq(0).Period() }).To(Panic())
	})
})
