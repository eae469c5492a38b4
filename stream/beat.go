// Package stream defines the byte beats that flow between pipeline stages,
// and simple components that feed and drain them.
package stream

import (
	"fmt"

	"github.com/awygle/udptherbone/sim/modeling"
)

// Beat is one byte on a channel, optionally marking the start or the end of
// a packet. On continuous (unframed) channels both flags are false.
type Beat struct {
	Data byte
	SOP  bool
	EOP  bool
}

func (b Beat) String() string {
	flags := ""
	if b.SOP {
		flags += "S"
	}

	if b.EOP {
		flags += "E"
	}

	return fmt.Sprintf("%02x%s", b.Data, flags)
}

// Channel carries beats.
type Channel = modeling.Channel[Beat]

// NewChannel creates a beat channel. A capacity of 0 selects the default.
func NewChannel(name string, capacity int) *Channel {
	return modeling.NewChannel[Beat](name, capacity)
}

// Frame tags a packet's bytes with SOP on the first and EOP on the last. An
// empty packet has no beats.
func Frame(packet []byte) []Beat {
	beats := make([]Beat, len(packet))

	for i, b := range packet {
		beats[i] = Beat{
			Data: b,
			SOP:  i == 0,
			EOP:  i == len(packet)-1,
		}
	}

	return beats
}

// Raw wraps bytes as untagged beats.
func Raw(data []byte) []Beat {
	beats := make([]Beat, len(data))

	for i, b := range data {
		beats[i] = Beat{Data: b}
	}

	return beats
}
