package queueing

import (
	"log"

	"github.com/awygle/udptherbone/sim/hooking"
	"github.com/awygle/udptherbone/sim/naming"
)

// Pipeline delays items by a fixed number of stages before moving them into
// a post-pipeline buffer. Each stage holds at most one item.
type Pipeline[T any] struct {
	hooking.HookableBase
	naming.NamedBase

	stages        []pipelineStage[T]
	cyclePerStage int
	post          *Buffer[T]
}

type pipelineStage[T any] struct {
	item      T
	occupied  bool
	cycleLeft int
}

// PipelineBuilder builds pipelines.
type PipelineBuilder[T any] struct {
	numStage      int
	cyclePerStage int
	post          *Buffer[T]
}

// MakePipelineBuilder returns a builder for a 1-stage, 1-cycle pipeline.
func MakePipelineBuilder[T any]() PipelineBuilder[T] {
	return PipelineBuilder[T]{
		numStage:      1,
		cyclePerStage: 1,
	}
}

// WithNumStage sets the number of stages. Zero stages pass items straight to
// the post-pipeline buffer.
func (b PipelineBuilder[T]) WithNumStage(n int) PipelineBuilder[T] {
	b.numStage = n
	return b
}

// WithCyclePerStage sets how long an item stays in each stage.
func (b PipelineBuilder[T]) WithCyclePerStage(n int) PipelineBuilder[T] {
	b.cyclePerStage = n
	return b
}

// WithPostPipelineBuffer sets where items go after the last stage.
func (b PipelineBuilder[T]) WithPostPipelineBuffer(
	buf *Buffer[T],
) PipelineBuilder[T] {
	b.post = buf
	return b
}

// Build creates the pipeline.
func (b PipelineBuilder[T]) Build(name string) *Pipeline[T] {
	if b.post == nil {
		log.Panicf("pipeline %s: post-pipeline buffer is not set", name)
	}

	if b.numStage < 0 || b.cyclePerStage < 1 {
		log.Panicf("pipeline %s: invalid shape", name)
	}

	return &Pipeline[T]{
		NamedBase:     naming.MakeNamedBase(name),
		stages:        make([]pipelineStage[T], b.numStage),
		cyclePerStage: b.cyclePerStage,
		post:          b.post,
	}
}

// CanAccept reports whether the first stage is free.
func (p *Pipeline[T]) CanAccept() bool {
	if len(p.stages) == 0 {
		return p.post.CanPush()
	}

	return !p.stages[0].occupied
}

// Accept puts an item into the first stage. It panics if the stage is busy.
func (p *Pipeline[T]) Accept(item T) {
	if len(p.stages) == 0 {
		p.post.Push(item)
		return
	}

	if p.stages[0].occupied {
		log.Panicf("pipeline %s is not free", p.Name())
	}

	p.stages[0] = pipelineStage[T]{
		item:      item,
		occupied:  true,
		cycleLeft: p.cyclePerStage - 1,
	}
}

// Tick advances every item by one cycle, last stage first.
func (p *Pipeline[T]) Tick() (madeProgress bool) {
	for i := len(p.stages) - 1; i >= 0; i-- {
		stage := &p.stages[i]
		if !stage.occupied {
			continue
		}

		if stage.cycleLeft > 0 {
			stage.cycleLeft--
			madeProgress = true

			continue
		}

		if i == len(p.stages)-1 {
			if !p.post.CanPush() {
				continue
			}

			p.post.Push(stage.item)
			*stage = pipelineStage[T]{}
			madeProgress = true

			continue
		}

		next := &p.stages[i+1]
		if next.occupied {
			continue
		}

		*next = pipelineStage[T]{
			item:      stage.item,
			occupied:  true,
			cycleLeft: p.cyclePerStage - 1,
		}
		*stage = pipelineStage[T]{}
		madeProgress = true
	}

	return madeProgress
}

// Len returns the number of items inside the stages.
func (p *Pipeline[T]) Len() int {
	n := 0

	for _, s := range p.stages {
		if s.occupied {
			n++
		}
	}

	return n
}
