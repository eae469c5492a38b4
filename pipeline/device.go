// Package pipeline assembles the codec components into the device and host
// ends of a SLIP link, and runs them together.
package pipeline

import (
	"github.com/awygle/udptherbone/etherbone"
	"github.com/awygle/udptherbone/sim/modeling"
	"github.com/awygle/udptherbone/slip"
	"github.com/awygle/udptherbone/stream"
	"github.com/awygle/udptherbone/udp"
	"github.com/awygle/udptherbone/wishbone"
)

// Device is the bridge end of the link:
//
//	SerialIn → Unframer → Depacketizer → Bridge → Packetizer → Framer → SerialOut
//
// with the Bridge driving a Slave in front of the Target.
type Device struct {
	Unframer     *slip.Unframer
	Depacketizer *udp.Depacketizer
	Bridge       *etherbone.Bridge
	Slave        *wishbone.Slave
	Packetizer   *udp.Packetizer
	Framer       *slip.Framer
	Target       wishbone.Target

	SerialIn  *stream.Channel
	SerialOut *stream.Channel

	channels []modeling.Committer
}

// Components returns the device components in pipeline order.
func (d *Device) Components() []modeling.Component {
	return []modeling.Component{
		d.Unframer,
		d.Depacketizer,
		d.Bridge,
		d.Slave,
		d.Packetizer,
		d.Framer,
	}
}

// Channels returns the channels the device owns. The serial channels are
// included unless they were supplied from outside.
func (d *Device) Channels() []modeling.Committer {
	return d.channels
}

// Register adds the components and channels to domain.
func (d *Device) Register(domain *modeling.Domain) {
	register(domain, d.Components(), d.channels)
}

func register(
	domain *modeling.Domain,
	components []modeling.Component,
	channels []modeling.Committer,
) {
	for _, c := range components {
		domain.AddComponent(c)
	}

	for _, c := range channels {
		domain.AddChannel(c)
	}
}
