package queueing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Pipeline", func() {
	var (
		post     *Buffer[string]
		pipeline *Pipeline[string]
	)

	BeforeEach(func() {
		post = NewBuffer[string]("Post", 1)
		pipeline = MakePipelineBuilder[string]().
			WithNumStage(3).
			WithCyclePerStage(2).
			WithPostPipelineBuffer(post).
			Build("Pipeline")
	})

	It("should delay items by stages times cycles", func() {
		pipeline.Accept("a")
		Expect(pipeline.CanAccept()).To(BeFalse())

		ticks := 0
		for post.Size() == 0 {
			Expect(pipeline.Tick()).To(BeTrue())
			ticks++
		}

		Expect(ticks).To(Equal(6))
		v, _ := post.Peek()
		Expect(v).To(Equal("a"))
	})

	It("should hold items when the post buffer is full", func() {
		pipeline.Accept("a")
		for i := 0; i < 6; i++ {
			pipeline.Tick()
		}

		Expect(pipeline.CanAccept()).To(BeTrue())
		pipeline.Accept("b")
		for i := 0; i < 10; i++ {
			pipeline.Tick()
		}

		Expect(post.Size()).To(Equal(1))
		Expect(pipeline.Len()).To(Equal(1))
		Expect(pipeline.Tick()).To(BeFalse())

		post.Pop()
		Expect(pipeline.Tick()).To(BeTrue())
		v, _ := post.Peek()
		Expect(v).To(Equal("b"))
	})

	It("should pass items through with zero stages", func() {
		direct := MakePipelineBuilder[string]().
			WithNumStage(0).
			WithPostPipelineBuffer(post).
			Build("Direct")

		Expect(direct.CanAccept()).To(BeTrue())
		direct.Accept("x")
		Expect(post.Size()).To(Equal(1))
		Expect(direct.CanAccept()).To(BeFalse())
	})
})
