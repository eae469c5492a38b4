package udp

import (
	"net"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/awygle/udptherbone/sim/hooking"
	"github.com/awygle/udptherbone/sim/modeling"
	"github.com/awygle/udptherbone/stream"
)

var (
	hostIP   = netip.MustParseAddr("192.168.1.100")
	deviceIP = netip.MustParseAddr("192.168.1.50")
)

const (
	hostPort   = 1234
	devicePort = 5678
)

func packetizerSpec(mtu int) PacketizerSpec {
	spec := DefaultPacketizerSpec()
	spec.SrcIP = hostIP
	spec.DstIP = deviceIP
	spec.SrcPort = hostPort
	spec.DstPort = devicePort
	spec.MTU = mtu

	return spec
}

func depacketizerSpec(mtu int) DepacketizerSpec {
	spec := DefaultDepacketizerSpec()
	spec.ListenIP = deviceIP
	spec.ListenPort = devicePort
	spec.MTU = mtu

	return spec
}

// datagram serializes a reference packet from host to device.
func datagram(payload []byte) []byte {
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      255,
		Flags:    layers.IPv4DontFragment,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IP(hostIP.AsSlice()),
		DstIP:    net.IP(deviceIP.AsSlice()),
	}
	udp := &layers.UDP{
		SrcPort: hostPort,
		DstPort: devicePort,
	}
	Expect(udp.SetNetworkLayerForChecksum(ip)).To(Succeed())

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	Expect(gopacket.SerializeLayers(buf, opts,
		ip, udp, gopacket.Payload(payload))).To(Succeed())

	return buf.Bytes()
}

func pseudoHeaderVerifies(packet []byte) bool {
	var c Checksum

	c.AddBytes(packet[12:20])
	c.AddWord(uint16(ProtocolUDP))
	c.AddWord(uint16(len(packet) - IPHeaderLen))
	c.AddBytes(packet[IPHeaderLen:])

	return c.Sum() == 0xFFFF
}

type harness struct {
	domain *modeling.Domain
	src    *stream.Source
	sink   *stream.Sink
}

func (h *harness) run() {
	_, quiet := h.domain.StepUntilQuiet(1000000)
	Expect(quiet).To(BeTrue())
}

func newHarness(
	build func(in, out *stream.Channel) modeling.Component,
) *harness {
	h := &harness{domain: modeling.NewDomain("Test")}
	in := stream.NewChannel("Test.In", 0)
	out := stream.NewChannel("Test.Out", 0)

	h.src = stream.NewSource("Test.Src", in)
	h.sink = stream.NewSink("Test.Sink", out)

	h.domain.AddComponent(h.src)
	h.domain.AddComponent(build(in, out))
	h.domain.AddComponent(h.sink)
	h.domain.AddChannel(in)
	h.domain.AddChannel(out)

	return h
}

func randomPayload(seed, n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(seed*31 + i*7)
	}

	return p
}

var _ = Describe("Packetizer", func() {
	var (
		h *harness
		p *Packetizer
	)

	build := func(spec PacketizerSpec) {
		h = newHarness(func(in, out *stream.Channel) modeling.Component {
			p = MakePacketizerBuilder().
				WithSpec(spec).
				WithInput(in).
				WithOutput(out).
				Build("Test.Packetizer")

			return p
		})
	}

	BeforeEach(func() {
		build(packetizerSpec(DefaultMTU))
	})

	It("should produce the same bytes as a reference encoder", func() {
		payload := []byte("hello world")
		h.src.PushPacket(payload)
		h.run()

		Expect(h.sink.Packets()).To(HaveLen(1))
		out := h.sink.Packets()[0]
		Expect(out).To(Equal(datagram(payload)))
		Expect(Verify(out[:IPHeaderLen])).To(BeTrue())
		Expect(pseudoHeaderVerifies(out)).To(BeTrue())
	})

	It("should decode with the expected header fields", func() {
		payload := randomPayload(3, 100)
		h.src.PushPacket(payload)
		h.run()

		packet := gopacket.NewPacket(
			h.sink.Packets()[0], layers.LayerTypeIPv4, gopacket.Default)
		Expect(packet.ErrorLayer()).To(BeNil())

		ip := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
		Expect(ip.Version).To(Equal(uint8(4)))
		Expect(ip.IHL).To(Equal(uint8(5)))
		Expect(ip.TTL).To(Equal(uint8(255)))
		Expect(ip.Flags).To(Equal(layers.IPv4DontFragment))
		Expect(ip.Id).To(BeZero())
		Expect(ip.Length).To(Equal(uint16(HeaderLen + 100)))
		Expect(ip.SrcIP.String()).To(Equal(hostIP.String()))
		Expect(ip.DstIP.String()).To(Equal(deviceIP.String()))

		udp := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		Expect(udp.SrcPort).To(Equal(layers.UDPPort(hostPort)))
		Expect(udp.DstPort).To(Equal(layers.UDPPort(devicePort)))
		Expect(udp.Length).To(Equal(uint16(UDPHeaderLen + 100)))
		Expect(udp.Checksum).NotTo(BeZero())
		Expect(udp.Payload).To(Equal(payload))
	})

	It("should mark SOP on the first header byte and EOP on the last byte", func() {
		h.src.PushPacket([]byte("hello world"))
		h.run()

		beats := h.sink.Beats()
		Expect(beats).To(HaveLen(HeaderLen + 11))

		for i, b := range beats {
			Expect(b.SOP).To(Equal(i == 0), "beat %d", i)
			Expect(b.EOP).To(Equal(i == len(beats)-1), "beat %d", i)
		}
	})

	It("should keep checksums valid for every payload length", func() {
		build(packetizerSpec(200))

		for n := 1; n <= 200-HeaderLen; n++ {
			h.src.PushPacket(randomPayload(n, n))
		}

		h.run()

		packets := h.sink.Packets()
		Expect(packets).To(HaveLen(200 - HeaderLen))

		for i, out := range packets {
			n := i + 1
			Expect(out).To(HaveLen(HeaderLen+n), "payload %d", n)
			Expect(Verify(out[:IPHeaderLen])).To(BeTrue(), "payload %d", n)
			Expect(pseudoHeaderVerifies(out)).To(BeTrue(), "payload %d", n)
			Expect(out[HeaderLen:]).To(Equal(randomPayload(n, n)))
		}
	})

	It("should overlap capture with emission under backpressure", func() {
		spec := packetizerSpec(DefaultMTU)
		spec.InFlight = 1
		build(spec)
		h.sink.WithStall(stream.StallEvery(2))

		for i := 0; i < 10; i++ {
			h.src.PushPacket(randomPayload(i, 50+i))
		}

		h.run()

		Expect(h.sink.Packets()).To(HaveLen(10))
		Expect(h.sink.Violations()).To(BeZero())

		for i, out := range h.sink.Packets() {
			Expect(out[HeaderLen:]).To(Equal(randomPayload(i, 50+i)))
		}
	})

	It("should drop a payload that exceeds the MTU", func() {
		build(packetizerSpec(64))

		overflowSteps := 0
		h.domain.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			if ctx.Pos == modeling.HookPosAfterStep && p.Overflow() {
				overflowSteps++
			}
		}))

		hooked := 0
		p.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			if ctx.Pos == HookPosOverflow {
				hooked++
				Expect(ctx.Item).To(Equal(64 - HeaderLen))
			}
		}))

		h.src.PushPacket(randomPayload(1, 100))
		h.src.PushPacket([]byte{1, 2, 3})
		h.run()

		Expect(p.Overflows()).To(Equal(uint64(1)))
		Expect(overflowSteps).To(Equal(1))
		Expect(hooked).To(Equal(1))
		Expect(h.sink.Packets()).To(HaveLen(1))
		Expect(h.sink.Packets()[0][HeaderLen:]).To(Equal([]byte{1, 2, 3}))
	})

	It("should accept a payload that exactly fills the MTU", func() {
		build(packetizerSpec(64))

		h.src.PushPacket(randomPayload(2, 64-HeaderLen))
		h.run()

		Expect(p.Overflows()).To(BeZero())
		Expect(h.sink.Packets()).To(HaveLen(1))
		Expect(h.sink.Packets()[0]).To(HaveLen(64))
	})

	It("should drop data that arrives without SOP", func() {
		h.src.PushBeats(
			stream.Beat{Data: 9},
			stream.Beat{Data: 9, EOP: true},
		)
		h.src.PushPacket([]byte{7})
		h.run()

		Expect(p.ProtocolErrors()).To(Equal(uint64(2)))
		Expect(h.sink.Packets()).To(HaveLen(1))
		Expect(h.sink.Packets()[0][HeaderLen:]).To(Equal([]byte{7}))
	})

	It("should restart capture on SOP before EOP", func() {
		h.src.PushBeats(
			stream.Beat{Data: 1, SOP: true},
			stream.Beat{Data: 2},
			stream.Beat{Data: 3, SOP: true},
			stream.Beat{Data: 4, EOP: true},
		)
		h.run()

		Expect(p.ProtocolErrors()).To(Equal(uint64(1)))
		Expect(h.sink.Packets()).To(HaveLen(1))
		Expect(h.sink.Packets()[0][HeaderLen:]).To(Equal([]byte{3, 4}))
	})

	It("should reject invalid specs", func() {
		spec := packetizerSpec(HeaderLen)
		Expect(spec.Validate()).To(MatchError(ErrInvalidSpec))

		spec = packetizerSpec(DefaultMTU)
		spec.DstIP = netip.MustParseAddr("::1")
		Expect(spec.Validate()).To(MatchError(ErrInvalidSpec))

		spec = packetizerSpec(DefaultMTU)
		spec.InFlight = 0
		Expect(spec.Validate()).To(MatchError(ErrInvalidSpec))

		Expect(func() {
			MakePacketizerBuilder().
				WithInput(stream.NewChannel("A", 0)).
				WithOutput(stream.NewChannel("B", 0)).
				Build("Bad")
		}).To(Panic())
	})
})

var _ = Describe("Depacketizer", func() {
	var (
		h *harness
		d *Depacketizer
	)

	build := func(spec DepacketizerSpec) {
		h = newHarness(func(in, out *stream.Channel) modeling.Component {
			d = MakeDepacketizerBuilder().
				WithSpec(spec).
				WithInput(in).
				WithOutput(out).
				Build("Test.Depacketizer")

			return d
		})
	}

	BeforeEach(func() {
		build(depacketizerSpec(DefaultMTU))
	})

	It("should extract the payload of a matching datagram", func() {
		h.src.PushPacket(datagram([]byte("hello world")))
		h.run()

		Expect(h.sink.Packets()).To(Equal([][]byte{[]byte("hello world")}))
		Expect(d.Packets()).To(Equal(uint64(1)))
		Expect(d.TotalDiscards()).To(BeZero())

		beats := h.sink.Beats()
		Expect(beats[0].SOP).To(BeTrue())
		Expect(beats[len(beats)-1].EOP).To(BeTrue())
	})

	It("should ignore the checksums", func() {
		packet := datagram([]byte{1, 2, 3})
		packet[10] ^= 0xFF
		packet[26] ^= 0xFF
		h.src.PushPacket(packet)
		h.run()

		Expect(h.sink.Packets()).To(Equal([][]byte{{1, 2, 3}}))
	})

	It("should emit nothing for a zero-length datagram", func() {
		h.src.PushPacket(datagram(nil))
		h.src.PushPacket(datagram([]byte{5}))
		h.run()

		Expect(d.Packets()).To(Equal(uint64(2)))
		Expect(h.sink.Packets()).To(Equal([][]byte{{5}}))
		Expect(h.sink.Violations()).To(BeZero())
	})

	It("should ignore bytes after the UDP payload", func() {
		packet := append(datagram([]byte{1, 2}), 0xAA, 0xBB, 0xCC)
		h.src.PushPacket(packet)
		h.src.PushPacket(datagram([]byte{3}))
		h.run()

		Expect(h.sink.Packets()).To(Equal([][]byte{{1, 2}, {3}}))
	})

	DescribeTable("discarding",
		func(mutate func(p []byte) []byte, reason DiscardReason) {
			h.src.PushPacket(mutate(datagram(randomPayload(1, 40))))
			h.src.PushPacket(datagram([]byte{42}))
			h.run()

			Expect(d.Discards(reason)).To(Equal(uint64(1)))
			Expect(d.TotalDiscards()).To(Equal(uint64(1)))
			Expect(h.sink.Packets()).To(Equal([][]byte{{42}}))
			Expect(h.sink.Violations()).To(BeZero())
		},
		Entry("IPv6 version", func(p []byte) []byte {
			p[0] = 0x60
			return p
		}, DiscardVersion),
		Entry("IP options", func(p []byte) []byte {
			p[0] = 0x46
			return p
		}, DiscardVersion),
		Entry("non-zero TOS", func(p []byte) []byte {
			p[1] = 0x10
			return p
		}, DiscardTOS),
		Entry("non-zero ID", func(p []byte) []byte {
			p[5] = 1
			return p
		}, DiscardFragment),
		Entry("DF cleared", func(p []byte) []byte {
			p[6] = 0
			return p
		}, DiscardFragment),
		Entry("fragment offset", func(p []byte) []byte {
			p[7] = 8
			return p
		}, DiscardFragment),
		Entry("TCP", func(p []byte) []byte {
			p[9] = 6
			return p
		}, DiscardProtocol),
		Entry("other address", func(p []byte) []byte {
			p[19]++
			return p
		}, DiscardAddress),
		Entry("other port", func(p []byte) []byte {
			p[23]++
			return p
		}, DiscardPort),
		Entry("UDP length disagrees", func(p []byte) []byte {
			p[25]--
			return p
		}, DiscardLength),
		Entry("UDP length below header", func(p []byte) []byte {
			p[2], p[3] = 0, 24
			p[24], p[25] = 0, 4
			return p
		}, DiscardLength),
		Entry("truncated payload", func(p []byte) []byte {
			return p[:len(p)-5]
		}, DiscardTruncated),
		Entry("truncated header", func(p []byte) []byte {
			return p[:12]
		}, DiscardTruncated),
		Entry("single byte", func(p []byte) []byte {
			return p[:1]
		}, DiscardTruncated),
	)

	It("should discard a payload larger than the MTU allows", func() {
		build(depacketizerSpec(64))

		h.src.PushPacket(datagram(randomPayload(1, 64-HeaderLen+1)))
		h.src.PushPacket(datagram(randomPayload(2, 64-HeaderLen)))
		h.run()

		Expect(d.Discards(DiscardTooLarge)).To(Equal(uint64(1)))
		Expect(h.sink.Packets()).To(Equal([][]byte{randomPayload(2, 64-HeaderLen)}))
	})

	It("should discard a packet interrupted by SOP", func() {
		first := datagram(randomPayload(1, 10))[:30]
		beats := stream.Frame(first)
		beats[len(beats)-1].EOP = false

		h.src.PushBeats(beats...)
		h.src.PushPacket(datagram([]byte{9, 9}))
		h.run()

		Expect(d.Discards(DiscardInterrupted)).To(Equal(uint64(1)))
		Expect(h.sink.Packets()).To(Equal([][]byte{{9, 9}}))
	})

	It("should report discards through hooks", func() {
		var reasons []DiscardReason
		d.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			if ctx.Pos == HookPosDiscard {
				reasons = append(reasons, ctx.Item.(DiscardReason))
			}
		}))

		bad := datagram([]byte{1})
		bad[9] = 6
		h.src.PushPacket(bad)
		h.run()

		Expect(reasons).To(Equal([]DiscardReason{DiscardProtocol}))
		Expect(reasons[0].String()).To(Equal("protocol"))
	})

	It("should keep packets in order under backpressure", func() {
		spec := depacketizerSpec(DefaultMTU)
		spec.InFlight = 1
		build(spec)
		h.sink.WithStall(stream.StallEvery(3))

		for i := 0; i < 8; i++ {
			h.src.PushPacket(datagram(randomPayload(i, 20+i)))
		}

		h.run()

		Expect(h.sink.Packets()).To(HaveLen(8))

		for i, out := range h.sink.Packets() {
			Expect(out).To(Equal(randomPayload(i, 20+i)))
		}
	})
})

// newChainHarness runs a Packetizer straight into a Depacketizer.
func newChainHarness(mtu int) (*harness, *Depacketizer) {
	h := &harness{domain: modeling.NewDomain("Test")}
	in := stream.NewChannel("Test.In", 0)
	mid := stream.NewChannel("Test.Mid", 0)
	out := stream.NewChannel("Test.Out", 0)

	p := MakePacketizerBuilder().
		WithSpec(packetizerSpec(mtu)).
		WithInput(in).
		WithOutput(mid).
		Build("Test.Packetizer")
	d := MakeDepacketizerBuilder().
		WithSpec(depacketizerSpec(mtu)).
		WithInput(mid).
		WithOutput(out).
		Build("Test.Depacketizer")

	h.src = stream.NewSource("Test.Src", in)
	h.sink = stream.NewSink("Test.Sink", out)

	for _, c := range []modeling.Component{h.src, p, d, h.sink} {
		h.domain.AddComponent(c)
	}

	h.domain.AddChannel(in)
	h.domain.AddChannel(mid)
	h.domain.AddChannel(out)

	return h, d
}

var _ = Describe("Packetizer and Depacketizer", func() {
	It("should carry hello world with SOP and EOP on its ends", func() {
		h, d := newChainHarness(DefaultMTU)

		h.src.PushPacket([]byte("hello world"))
		h.run()

		beats := h.sink.Beats()
		Expect(beats).To(HaveLen(len("hello world")))
		Expect(h.sink.Bytes()).To(Equal([]byte("hello world")))
		for i, b := range beats {
			Expect(b.SOP).To(Equal(i == 0), "SOP on beat %d", i)
			Expect(b.EOP).To(Equal(i == len(beats)-1), "EOP on beat %d", i)
		}
		Expect(beats[0].Data).To(Equal(byte('h')))
		Expect(beats[len(beats)-1].Data).To(Equal(byte('d')))
		Expect(d.TotalDiscards()).To(BeZero())
	})

	It("should round trip every payload length", func() {
		const mtu = 128

		h, d := newChainHarness(mtu)
		h.sink.WithStall(stream.StallEvery(5))

		var want [][]byte
		for n := 1; n <= mtu-HeaderLen; n++ {
			payload := randomPayload(n, n)
			want = append(want, payload)
			h.src.PushPacket(payload)
		}

		h.run()

		Expect(h.sink.Packets()).To(Equal(want))
		Expect(d.TotalDiscards()).To(BeZero())
	})
})
