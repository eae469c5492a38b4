package etherbone

import (
	"errors"
	"fmt"
)

// Errors returned by the codec.
var (
	ErrBadWidth    = errors.New("etherbone: unsupported width")
	ErrTooManyOps  = errors.New("etherbone: too many operations in a record")
	ErrShortPacket = errors.New("etherbone: packet shorter than its header")
	ErrBadMagic    = errors.New("etherbone: bad magic")
	ErrBadVersion  = errors.New("etherbone: unsupported version")
	ErrBadSizes    = errors.New("etherbone: unexpected address or data size")
	ErrTruncated   = errors.New("etherbone: record runs past the end of the packet")
)

// Record is one bus-access unit: writes to consecutive addresses starting at
// BaseAddr, then reads of each address in Reads.
type Record struct {
	BaseAddr uint64
	Writes   []uint64

	// ReturnAddr is sent ahead of the read addresses. The bridge ignores it.
	ReturnAddr uint64
	Reads      []uint64

	// WriteFIFO keeps every write at BaseAddr.
	WriteFIFO bool

	// ReadFIFO is echoed in the response.
	ReadFIFO bool
}

// ReadResult is one read address and the data read from it.
type ReadResult struct {
	Addr uint64
	Data uint64
}

// Response is a decoded bridge response.
type Response struct {
	NoReads  bool
	ReadFIFO bool
	Results  []ReadResult
}

// Codec encodes requests and decodes responses for a bus of the given
// widths.
type Codec struct {
	AddrWidth int
	DataWidth int
}

// EncodeRecords builds one request packet carrying records in order.
func (c Codec) EncodeRecords(records ...Record) ([]byte, error) {
	l, err := newLayout(c.AddrWidth, c.DataWidth)
	if err != nil {
		return nil, err
	}

	version := Version | FlagNoReads

	for i, r := range records {
		if len(r.Writes) > MaxOps || len(r.Reads) > MaxOps {
			return nil, fmt.Errorf("%w: record %d has %d writes and %d reads",
				ErrTooManyOps, i, len(r.Writes), len(r.Reads))
		}

		if len(r.Reads) > 0 {
			version = Version
		}
	}

	buf := []byte{Magic0, Magic1, version, l.sizes()}
	buf = appendZeros(buf, l.pad())

	for _, r := range records {
		buf = c.appendRecord(buf, l, r)
	}

	return buf, nil
}

func (c Codec) appendRecord(buf []byte, l layout, r Record) []byte {
	flags := FlagCYC
	if r.WriteFIFO {
		flags |= FlagWFF
	}

	if r.ReadFIFO {
		flags |= FlagRFF
	}

	buf = append(buf, flags, byteEnableAll, byte(len(r.Writes)), byte(len(r.Reads)))
	buf = appendZeros(buf, l.pad())

	if len(r.Writes) > 0 {
		buf = l.putWord(buf, r.BaseAddr&l.addrMask())
		for _, d := range r.Writes {
			buf = l.putWord(buf, d&l.dataMask())
		}
	}

	if len(r.Reads) > 0 {
		buf = l.putWord(buf, r.ReturnAddr&l.addrMask())
		for _, a := range r.Reads {
			buf = l.putWord(buf, a&l.addrMask())
		}
	}

	return buf
}

// EncodeWrite builds a request that writes data to consecutive addresses
// starting at addr.
func (c Codec) EncodeWrite(addr uint64, data ...uint64) ([]byte, error) {
	return c.EncodeRecords(Record{BaseAddr: addr, Writes: data})
}

// EncodeRead builds a request that reads each of addrs.
func (c Codec) EncodeRead(addrs ...uint64) ([]byte, error) {
	return c.EncodeRecords(Record{Reads: addrs})
}

// DecodeResponse parses a response packet. Results of every record are
// returned in order.
func (c Codec) DecodeResponse(packet []byte) (Response, error) {
	l, err := newLayout(c.AddrWidth, c.DataWidth)
	if err != nil {
		return Response{}, err
	}

	hdr := packetHeaderLen + l.pad()
	if len(packet) < hdr {
		return Response{}, ErrShortPacket
	}

	if packet[0] != Magic0 || packet[1] != Magic1 {
		return Response{}, fmt.Errorf("%w: %02x%02x", ErrBadMagic, packet[0], packet[1])
	}

	if packet[2]&0xF0 != Version {
		return Response{}, fmt.Errorf("%w: %#02x", ErrBadVersion, packet[2])
	}

	if packet[3] != l.sizes() {
		return Response{}, fmt.Errorf("%w: got %#02x, want %#02x",
			ErrBadSizes, packet[3], l.sizes())
	}

	rsp := Response{NoReads: packet[2]&FlagNoReads != 0}
	rest := packet[hdr:]

	for len(rest) > 0 {
		if len(rest) < recordHeaderLen+l.pad() {
			return rsp, fmt.Errorf("%w: partial record header", ErrTruncated)
		}

		flags, writes, reads := rest[0], int(rest[2]), int(rest[3])
		rsp.ReadFIFO = rsp.ReadFIFO || flags&FlagRFF != 0
		rest = rest[recordHeaderLen+l.pad():]

		// A response record carries an address and a data slot per read.
		need := (writes + 2*reads) * l.align
		if len(rest) < need {
			return rsp, fmt.Errorf("%w: need %d bytes, have %d",
				ErrTruncated, need, len(rest))
		}

		rest = rest[writes*l.align:]

		for i := 0; i < reads; i++ {
			rsp.Results = append(rsp.Results, ReadResult{
				Addr: l.word(rest),
				Data: l.word(rest[l.align:]),
			})
			rest = rest[2*l.align:]
		}
	}

	return rsp, nil
}

func appendZeros(buf []byte, n int) []byte {
	for i := 0; i < n; i++ {
		buf = append(buf, 0)
	}

	return buf
}
