// Package etherbone bridges Etherbone register-access packets onto a
// Wishbone bus, and encodes and decodes those packets on the host side.
package etherbone

import "fmt"

// Packet header constants.
const (
	Magic0 byte = 0x4E
	Magic1 byte = 0x6F

	Version byte = 0x10

	FlagProbe         byte = 0x01
	FlagProbeResponse byte = 0x02
	FlagNoReads       byte = 0x04
)

// Record header flag bits.
const (
	FlagBCA byte = 0x80
	FlagRCA byte = 0x40
	FlagRFF byte = 0x20
	FlagCYC byte = 0x08
	FlagWCA byte = 0x04
	FlagWFF byte = 0x02
)

// MaxOps is the largest write or read count of one record.
const MaxOps = 255

const (
	packetHeaderLen = 4
	recordHeaderLen = 4
	byteEnableAll   = 0xFF
)

// layout describes how words of a given address and data width are laid
// out on the wire.
type layout struct {
	addrBytes int
	dataBytes int
	align     int
}

func newLayout(addrWidth, dataWidth int) (layout, error) {
	if !validWidth(addrWidth) {
		return layout{}, fmt.Errorf("%w: address width %d", ErrBadWidth, addrWidth)
	}

	if !validWidth(dataWidth) {
		return layout{}, fmt.Errorf("%w: data width %d", ErrBadWidth, dataWidth)
	}

	l := layout{
		addrBytes: addrWidth / 8,
		dataBytes: dataWidth / 8,
		align:     2,
	}

	if l.addrBytes > l.align {
		l.align = l.addrBytes
	}

	if l.dataBytes > l.align {
		l.align = l.dataBytes
	}

	return l, nil
}

func validWidth(w int) bool {
	switch w {
	case 8, 16, 32, 64:
		return true
	}

	return false
}

// sizes returns the packet header byte that announces the widths.
func (l layout) sizes() byte {
	return byte(l.addrBytes<<4 | l.dataBytes)
}

// pad returns the number of zero bytes after each 4-byte header.
func (l layout) pad() int {
	if l.align > 4 {
		return l.align - 4
	}

	return 0
}

// headerLen returns the length of a packet header plus one record header.
func (l layout) headerLen() int {
	return packetHeaderLen + recordHeaderLen + 2*l.pad()
}

func (l layout) addrMask() uint64 {
	return mask(l.addrBytes)
}

func (l layout) dataMask() uint64 {
	return mask(l.dataBytes)
}

func mask(n int) uint64 {
	if n >= 8 {
		return ^uint64(0)
	}

	return 1<<uint(8*n) - 1
}

// putWord appends v as one big-endian slot of align bytes.
func (l layout) putWord(dst []byte, v uint64) []byte {
	for i := l.align - 1; i >= 0; i-- {
		dst = append(dst, byte(v>>(8*uint(i))))
	}

	return dst
}

// word reads one slot from src.
func (l layout) word(src []byte) uint64 {
	var v uint64
	for _, b := range src[:l.align] {
		v = v<<8 | uint64(b)
	}

	return v
}

// recordWords returns the number of word slots that follow a record header.
func recordWords(writes, reads int) int {
	n := writes + reads

	if writes > 0 {
		n++
	}

	if reads > 0 {
		n++
	}

	return n
}
