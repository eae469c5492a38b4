// Package wishbone models a single-master register bus with explicit
// acknowledgment, and targets that serve it.
package wishbone

import (
	"fmt"

	"github.com/awygle/udptherbone/sim/id"
	"github.com/awygle/udptherbone/sim/modeling"
)

// SelAll enables every byte lane of a 64-bit word.
const SelAll uint8 = 0xFF

// Request is one bus cycle issued by the master.
type Request struct {
	ID    string
	Addr  uint64
	Data  uint64
	Sel   uint8
	Write bool
}

func (r Request) String() string {
	if r.Write {
		return fmt.Sprintf("W[%#x]=%#x sel=%02x", r.Addr, r.Data, r.Sel)
	}

	return fmt.Sprintf("R[%#x]", r.Addr)
}

// NewReadRequest creates a read of addr.
func NewReadRequest(addr uint64) Request {
	return Request{
		ID:   id.Generate(),
		Addr: addr,
		Sel:  SelAll,
	}
}

// NewWriteRequest creates a write of data to addr with every byte enabled.
func NewWriteRequest(addr, data uint64) Request {
	return Request{
		ID:    id.Generate(),
		Addr:  addr,
		Data:  data,
		Sel:   SelAll,
		Write: true,
	}
}

// Response acknowledges a Request. Reads carry the data read.
type Response struct {
	ReqID string
	Data  uint64
	Write bool
}

// Bus pairs the request and acknowledgment channels between one master and
// one target. Each request is acknowledged by exactly one response.
type Bus struct {
	Req *modeling.Channel[Request]
	Rsp *modeling.Channel[Response]
}

// NewBus creates a bus whose channels are named after name.
func NewBus(name string) *Bus {
	return &Bus{
		Req: modeling.NewChannel[Request](name+".Req", 0),
		Rsp: modeling.NewChannel[Response](name+".Rsp", 0),
	}
}

// Channels returns both channels so they can be registered with a domain.
func (b *Bus) Channels() []modeling.Committer {
	return []modeling.Committer{b.Req, b.Rsp}
}
