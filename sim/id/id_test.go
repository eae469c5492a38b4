package id

import (
	"github.com/rs/xid"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Generator", func() {
	AfterEach(func() {
		mu.Lock()
		generator = nil
		mu.Unlock()
	})

	It("should default to sequential IDs", func() {
		Expect(Generate()).To(Equal("1"))
		Expect(Generate()).To(Equal("2"))
	})

	It("should generate xid strings in parallel mode", func() {
		UseParallel()

		a := Generate()
		b := Generate()

		_, err := xid.FromString(a)
		Expect(err).NotTo(HaveOccurred())
		Expect(a).NotTo(Equal(b))
	})

	It("should not switch after first use", func() {
		Generate()

		Expect(func() { UseParallel() }).To(Panic())
	})
})
