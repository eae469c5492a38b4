package stream

import (
	"sync"

	"github.com/awygle/udptherbone/sim/hooking"
	"github.com/awygle/udptherbone/sim/modeling"
)

// HookPosSourceSend is invoked when a source offers a beat.
var HookPosSourceSend = &hooking.HookPos{Name: "SourceSend"}

// Source feeds queued beats into a channel, one per step. It can be filled
// from another goroutine between steps.
type Source struct {
	modeling.ComponentBase

	out *Channel

	lock    sync.Mutex
	pending []Beat
	sent    uint64
}

// NewSource creates a source that writes into out.
func NewSource(name string, out *Channel) *Source {
	return &Source{
		ComponentBase: modeling.MakeComponentBase(name),
		out:           out,
	}
}

// PushPacket queues a framed packet. Empty packets cannot be expressed on a
// framed channel and are ignored.
func (s *Source) PushPacket(packet []byte) {
	s.PushBeats(Frame(packet)...)
}

// PushBytes queues untagged bytes.
func (s *Source) PushBytes(data []byte) {
	s.PushBeats(Raw(data)...)
}

// PushBeats queues beats as given, including malformed framing.
func (s *Source) PushBeats(beats ...Beat) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.pending = append(s.pending, beats...)
}

// Pending returns the number of beats not yet offered.
func (s *Source) Pending() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return len(s.pending)
}

// Sent returns the number of beats offered so far.
func (s *Source) Sent() uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.sent
}

// Tick offers the next beat if the channel has room.
func (s *Source) Tick() bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	if len(s.pending) == 0 || !s.out.Offer(s.pending[0]) {
		return false
	}

	beat := s.pending[0]
	s.pending = s.pending[1:]
	s.sent++

	s.Invoke(s, HookPosSourceSend, beat, nil)

	return true
}
