// Package udp wraps framed payloads in IPv4 and UDP headers and unwraps them
// again, one byte per step.
package udp

import (
	"errors"
	"fmt"
	"net/netip"
)

// Wire layout constants.
const (
	IPHeaderLen  = 20
	UDPHeaderLen = 8
	HeaderLen    = IPHeaderLen + UDPHeaderLen

	VersionIHL  byte = 0x45
	FlagsDF     byte = 0x40
	ProtocolUDP byte = 0x11
	DefaultTTL  byte = 255
	DefaultMTU       = 1500
	maxIPPacket      = 0xFFFF
)

// ErrInvalidSpec is wrapped by every Validate error.
var ErrInvalidSpec = errors.New("invalid udp spec")

// PacketizerSpec configures a Packetizer.
type PacketizerSpec struct {
	SrcIP, DstIP     netip.Addr
	SrcPort, DstPort uint16

	// MTU bounds the whole IPv4 packet and sizes the payload buffer.
	MTU int

	// InFlight bounds the number of captured packets awaiting output.
	InFlight int

	TTL uint8
}

// DefaultPacketizerSpec returns a spec with the default MTU, in-flight depth
// and TTL. Addresses and ports must still be set.
func DefaultPacketizerSpec() PacketizerSpec {
	return PacketizerSpec{
		MTU:      DefaultMTU,
		InFlight: 4,
		TTL:      DefaultTTL,
	}
}

// MaxPayload returns the largest payload that fits in the MTU.
func (s PacketizerSpec) MaxPayload() int {
	return s.MTU - HeaderLen
}

// Validate checks the spec.
func (s PacketizerSpec) Validate() error {
	if !s.SrcIP.Is4() || !s.DstIP.Is4() {
		return fmt.Errorf("%w: addresses must be IPv4", ErrInvalidSpec)
	}

	return validateSizes(s.MTU, s.InFlight)
}

// DepacketizerSpec configures a Depacketizer.
type DepacketizerSpec struct {
	ListenIP   netip.Addr
	ListenPort uint16

	MTU      int
	InFlight int
}

// DefaultDepacketizerSpec returns a spec with the default MTU and in-flight
// depth. The listen address and port must still be set.
func DefaultDepacketizerSpec() DepacketizerSpec {
	return DepacketizerSpec{
		MTU:      DefaultMTU,
		InFlight: 4,
	}
}

// MaxPayload returns the largest payload accepted.
func (s DepacketizerSpec) MaxPayload() int {
	return s.MTU - HeaderLen
}

// Validate checks the spec.
func (s DepacketizerSpec) Validate() error {
	if !s.ListenIP.Is4() {
		return fmt.Errorf("%w: listen address must be IPv4", ErrInvalidSpec)
	}

	return validateSizes(s.MTU, s.InFlight)
}

func validateSizes(mtu, inFlight int) error {
	if mtu <= HeaderLen || mtu > maxIPPacket {
		return fmt.Errorf("%w: mtu %d out of range (%d, %d]",
			ErrInvalidSpec, mtu, HeaderLen, maxIPPacket)
	}

	if inFlight < 1 {
		return fmt.Errorf("%w: in-flight depth must be at least 1",
			ErrInvalidSpec)
	}

	return nil
}
