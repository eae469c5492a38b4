package pipeline

import (
	"github.com/awygle/udptherbone/config"
	"github.com/awygle/udptherbone/etherbone"
	"github.com/awygle/udptherbone/seriallink"
	"github.com/awygle/udptherbone/sim/modeling"
	"github.com/awygle/udptherbone/sim/naming"
	"github.com/awygle/udptherbone/sim/timing"
	"github.com/awygle/udptherbone/slip"
	"github.com/awygle/udptherbone/stream"
	"github.com/awygle/udptherbone/tracing"
	"github.com/awygle/udptherbone/udp"
	"github.com/awygle/udptherbone/wishbone"
)

// Builder builds devices, hosts, and the domains that run them from a
// configuration.
type Builder struct {
	cfg     config.Config
	target  wishbone.Target
	tracers []tracing.Tracer
}

// MakeBuilder returns a Builder with the default configuration.
func MakeBuilder() Builder {
	return Builder{cfg: config.Default()}
}

// WithConfig sets the configuration.
func (b Builder) WithConfig(cfg config.Config) Builder {
	b.cfg = cfg
	return b
}

// WithTarget sets what the device bus reads and writes. A register file is
// created if none is set.
func (b Builder) WithTarget(t wishbone.Target) Builder {
	b.target = t
	return b
}

// WithTracer attaches tracer to every component of the domains built.
func (b Builder) WithTracer(t tracing.Tracer) Builder {
	b.tracers = append(append([]tracing.Tracer(nil), b.tracers...), t)
	return b
}

func (b Builder) newChannel(name string) *stream.Channel {
	return stream.NewChannel(name, b.cfg.Sim.ChannelCapacity)
}

func (b Builder) deviceDepacketizerSpec() udp.DepacketizerSpec {
	spec := udp.DefaultDepacketizerSpec()
	spec.ListenIP = b.cfg.Device.IP
	spec.ListenPort = b.cfg.Device.Port
	spec.MTU = b.cfg.Device.MTU
	spec.InFlight = b.cfg.Device.InFlight

	return spec
}

func (b Builder) devicePacketizerSpec() udp.PacketizerSpec {
	spec := udp.DefaultPacketizerSpec()
	spec.SrcIP = b.cfg.Device.IP
	spec.SrcPort = b.cfg.Device.Port
	spec.DstIP = b.cfg.Host.IP
	spec.DstPort = b.cfg.Host.Port
	spec.MTU = b.cfg.Device.MTU
	spec.InFlight = b.cfg.Device.InFlight
	spec.TTL = b.cfg.Device.TTL

	return spec
}

func (b Builder) hostDepacketizerSpec() udp.DepacketizerSpec {
	spec := b.deviceDepacketizerSpec()
	spec.ListenIP = b.cfg.Host.IP
	spec.ListenPort = b.cfg.Host.Port

	return spec
}

func (b Builder) hostPacketizerSpec() udp.PacketizerSpec {
	spec := b.devicePacketizerSpec()
	spec.SrcIP, spec.DstIP = b.cfg.Host.IP, b.cfg.Device.IP
	spec.SrcPort, spec.DstPort = b.cfg.Host.Port, b.cfg.Device.Port

	return spec
}

func (b Builder) bridgeSpec() etherbone.Spec {
	spec := etherbone.DefaultSpec()
	spec.AddrWidth = b.cfg.Bus.AddrWidth
	spec.DataWidth = b.cfg.Bus.DataWidth
	spec.MTU = b.cfg.Device.MTU

	return spec
}

func (b Builder) slaveSpec() wishbone.Spec {
	return wishbone.Spec{
		LatencyCycles: b.cfg.Bus.LatencyCycles,
		DataWidth:     b.cfg.Bus.DataWidth,
	}
}

// Codec returns the host codec for the configured bus.
func (b Builder) Codec() etherbone.Codec {
	return etherbone.Codec{
		AddrWidth: b.cfg.Bus.AddrWidth,
		DataWidth: b.cfg.Bus.DataWidth,
	}
}

// BuildDevice builds a device. Nil serial channels are created and owned by
// the device.
func (b Builder) BuildDevice(name string, serialIn, serialOut *stream.Channel) *Device {
	d := &Device{Target: b.target}
	if d.Target == nil {
		d.Target = wishbone.NewRegisterFile(b.cfg.Bus.DataWidth)
	}

	d.SerialIn = serialIn
	if d.SerialIn == nil {
		d.SerialIn = b.newChannel(naming.BuildName(name, "SerialIn"))
		d.channels = append(d.channels, d.SerialIn)
	}

	d.SerialOut = serialOut
	if d.SerialOut == nil {
		d.SerialOut = b.newChannel(naming.BuildName(name, "SerialOut"))
		d.channels = append(d.channels, d.SerialOut)
	}

	ipIn := b.newChannel(naming.BuildName(name, "IPIn"))
	ebIn := b.newChannel(naming.BuildName(name, "EBIn"))
	ebOut := b.newChannel(naming.BuildName(name, "EBOut"))
	ipOut := b.newChannel(naming.BuildName(name, "IPOut"))
	bus := wishbone.NewBus(naming.BuildName(name, "Bus"))

	d.channels = append(d.channels, ipIn, ebIn, ebOut, ipOut)
	d.channels = append(d.channels, bus.Channels()...)

	d.Unframer = slip.MakeUnframerBuilder().
		WithInput(d.SerialIn).
		WithOutput(ipIn).
		Build(naming.BuildName(name, "Unframer"))
	d.Depacketizer = udp.MakeDepacketizerBuilder().
		WithSpec(b.deviceDepacketizerSpec()).
		WithInput(ipIn).
		WithOutput(ebIn).
		Build(naming.BuildName(name, "Depacketizer"))
	d.Bridge = etherbone.MakeBuilder().
		WithSpec(b.bridgeSpec()).
		WithInput(ebIn).
		WithOutput(ebOut).
		WithBus(bus).
		Build(naming.BuildName(name, "Bridge"))
	d.Slave = wishbone.MakeSlaveBuilder().
		WithSpec(b.slaveSpec()).
		WithBus(bus).
		WithTarget(d.Target).
		Build(naming.BuildName(name, "Slave"))
	d.Packetizer = udp.MakePacketizerBuilder().
		WithSpec(b.devicePacketizerSpec()).
		WithInput(ebOut).
		WithOutput(ipOut).
		Build(naming.BuildName(name, "Packetizer"))
	d.Framer = slip.MakeFramerBuilder().
		WithInput(ipOut).
		WithOutput(d.SerialOut).
		Build(naming.BuildName(name, "Framer"))

	return d
}

// BuildHost builds a host. Nil serial channels are created and owned by the
// host.
func (b Builder) BuildHost(name string, serialIn, serialOut *stream.Channel) *Host {
	h := &Host{Codec: b.Codec()}

	h.SerialIn = serialIn
	if h.SerialIn == nil {
		h.SerialIn = b.newChannel(naming.BuildName(name, "SerialIn"))
		h.channels = append(h.channels, h.SerialIn)
	}

	h.SerialOut = serialOut
	if h.SerialOut == nil {
		h.SerialOut = b.newChannel(naming.BuildName(name, "SerialOut"))
		h.channels = append(h.channels, h.SerialOut)
	}

	reqOut := b.newChannel(naming.BuildName(name, "EBOut"))
	ipOut := b.newChannel(naming.BuildName(name, "IPOut"))
	ipIn := b.newChannel(naming.BuildName(name, "IPIn"))
	rspIn := b.newChannel(naming.BuildName(name, "EBIn"))

	h.channels = append(h.channels, reqOut, ipOut, ipIn, rspIn)

	h.Requests = stream.NewSource(naming.BuildName(name, "Requests"), reqOut)
	h.Packetizer = udp.MakePacketizerBuilder().
		WithSpec(b.hostPacketizerSpec()).
		WithInput(reqOut).
		WithOutput(ipOut).
		Build(naming.BuildName(name, "Packetizer"))
	h.Framer = slip.MakeFramerBuilder().
		WithInput(ipOut).
		WithOutput(h.SerialOut).
		Build(naming.BuildName(name, "Framer"))
	h.Unframer = slip.MakeUnframerBuilder().
		WithInput(h.SerialIn).
		WithOutput(ipIn).
		Build(naming.BuildName(name, "Unframer"))
	h.Depacketizer = udp.MakeDepacketizerBuilder().
		WithSpec(b.hostDepacketizerSpec()).
		WithInput(ipIn).
		WithOutput(rspIn).
		Build(naming.BuildName(name, "Depacketizer"))
	h.Responses = stream.NewSink(naming.BuildName(name, "Responses"), rspIn)

	return h
}

// BuildLoopback builds a host and a device wired back to back in one
// domain.
func (b Builder) BuildLoopback(name string) *Loopback {
	l := &Loopback{Domain: modeling.NewDomain(name)}

	l.Device = b.BuildDevice(naming.BuildName(name, "Device"), nil, nil)
	l.Host = b.BuildHost(naming.BuildName(name, "Host"),
		l.Device.SerialOut, l.Device.SerialIn)

	l.Host.Register(l.Domain)
	l.Device.Register(l.Domain)

	b.attachTracers(l.Domain, l.Host.Components())
	b.attachTracers(l.Domain, l.Device.Components())

	return l
}

// BuildServer builds a device served from port, driven by a serial engine
// at the configured frequency.
func (b Builder) BuildServer(name string, port seriallink.Port) *Server {
	s := &Server{
		Domain: modeling.NewDomain(name),
		Engine: timing.NewSerialEngine(),
	}

	s.Device = b.BuildDevice(naming.BuildName(name, "Device"), nil, nil)
	s.Link = seriallink.MakeBuilder().
		WithPort(port).
		WithReceive(s.Device.SerialIn).
		WithTransmit(s.Device.SerialOut).
		Build(naming.BuildName(name, "Link"))

	s.Domain.AddComponent(s.Link)
	s.Device.Register(s.Domain)
	s.Domain.AttachEngine(s.Engine, timing.Freq(b.cfg.Sim.FreqHz))

	b.attachTracers(s.Domain, []modeling.Component{s.Link})
	b.attachTracers(s.Domain, s.Device.Components())

	return s
}

func (b Builder) attachTracers(
	domain *modeling.Domain,
	components []modeling.Component,
) {
	for _, t := range b.tracers {
		for _, c := range components {
			tracing.CollectTrace(domain, c, t)
		}
	}
}
