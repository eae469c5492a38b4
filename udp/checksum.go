package udp

// Fold reduces a 32-bit sum of 16-bit words to a 16-bit one's-complement
// sum. Two rounds of end-around carry are always enough: the first leaves
// at most 0x1FFFE, the second at most 0xFFFF.
func Fold(sum uint32) uint16 {
	sum = (sum & 0xFFFF) + (sum >> 16)
	sum = (sum & 0xFFFF) + (sum >> 16)

	return uint16(sum)
}

// Checksum accumulates the Internet checksum one byte or word at a time.
// The zero value is an empty sum. Bytes pair up big-endian; an odd trailing
// byte counts as the high half of a zero-padded word.
type Checksum struct {
	sum     uint16
	odd     bool
	pending byte
}

// AddWord adds a 16-bit word with end-around carry.
func (c *Checksum) AddWord(w uint16) {
	s := uint32(c.sum) + uint32(w)
	c.sum = Fold(s)
}

// AddByte adds one byte of a big-endian byte stream.
func (c *Checksum) AddByte(b byte) {
	if !c.odd {
		c.pending = b
		c.odd = true

		return
	}

	c.AddWord(uint16(c.pending)<<8 | uint16(b))
	c.odd = false
}

// AddBytes adds every byte of data.
func (c *Checksum) AddBytes(data []byte) {
	for _, b := range data {
		c.AddByte(b)
	}
}

// Sum returns the one's-complement sum so far.
func (c Checksum) Sum() uint16 {
	if c.odd {
		c.AddWord(uint16(c.pending) << 8)
	}

	return c.sum
}

// Finish returns the checksum to transmit: the complement of the sum.
func (c Checksum) Finish() uint16 {
	return ^c.Sum()
}

// Internet returns the checksum of data as it would be placed in a header
// whose checksum field is zero.
func Internet(data []byte) uint16 {
	var c Checksum
	c.AddBytes(data)

	return c.Finish()
}

// Verify reports whether data, including its checksum field, sums to the
// one's-complement negative zero.
func Verify(data []byte) bool {
	var c Checksum
	c.AddBytes(data)

	return c.Sum() == 0xFFFF
}
