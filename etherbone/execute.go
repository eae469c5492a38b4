package etherbone

import (
	"log"

	"github.com/awygle/udptherbone/wishbone"
)

type busState int

const (
	busIdle busState = iota
	busAwaitingWriteAck
	busAwaitingReadAck
)

type executeMiddleware struct {
	*Bridge

	state busState

	active      bool
	rec         record
	writesLeft  int
	readsLeft   int
	addr        uint64
	returnTaken bool

	pendingID   string
	pendingAddr uint64
}

func (m *executeMiddleware) Tick() bool {
	if m.state != busIdle {
		return m.collect()
	}

	if !m.active {
		return m.startRecord()
	}

	return m.issue()
}

func (m *executeMiddleware) startRecord() bool {
	rec, ok := m.records.Peek()
	if !ok || !m.responses.CanPush() {
		return false
	}

	m.records.Pop()
	m.responses.Push(responseMeta{reads: rec.reads, rff: rec.rff})

	m.active = true
	m.rec = rec
	m.writesLeft = rec.writes
	m.readsLeft = rec.reads
	m.returnTaken = false

	if rec.writes > 0 {
		base, _ := m.words.Pop()
		m.addr = base & m.layout.addrMask()
	}

	return true
}

func (m *executeMiddleware) issue() bool {
	switch {
	case m.writesLeft > 0:
		return m.issueWrite()
	case m.readsLeft > 0:
		return m.issueRead()
	}

	m.active = false
	m.executed++
	m.Invoke(m.Bridge, HookPosRecordDone, m.rec.writes, m.rec.reads)

	return true
}

func (m *executeMiddleware) issueWrite() bool {
	if !m.bus.Req.CanOffer() {
		return false
	}

	data, _ := m.words.Pop()

	req := wishbone.NewWriteRequest(m.addr, data&m.layout.dataMask())
	req.Sel = m.sel()
	m.bus.Req.Offer(req)

	m.pendingID = req.ID
	m.state = busAwaitingWriteAck
	m.writesLeft--

	if !m.rec.wff {
		m.addr = (m.addr + 1) & m.layout.addrMask()
	}

	return true
}

func (m *executeMiddleware) issueRead() bool {
	if !m.bus.Req.CanOffer() || !m.results.CanPush() {
		return false
	}

	if !m.returnTaken {
		m.words.Pop()
		m.returnTaken = true
	}

	addr, _ := m.words.Pop()
	addr &= m.layout.addrMask()

	req := wishbone.NewReadRequest(addr)
	req.Sel = m.sel()
	m.bus.Req.Offer(req)

	m.pendingID = req.ID
	m.pendingAddr = addr
	m.state = busAwaitingReadAck
	m.readsLeft--

	return true
}

func (m *executeMiddleware) collect() bool {
	rsp, ok := m.bus.Rsp.Peek()
	if !ok {
		return false
	}

	if rsp.ReqID != m.pendingID {
		log.Panicf("bridge %s: ack for %s while waiting for %s",
			m.Name(), rsp.ReqID, m.pendingID)
	}

	m.bus.Rsp.Accept()

	if m.state == busAwaitingReadAck {
		m.results.Push(ReadResult{
			Addr: m.pendingAddr,
			Data: rsp.Data & m.layout.dataMask(),
		})
	}

	m.state = busIdle

	return true
}

func (m *executeMiddleware) sel() uint8 {
	return uint8(1<<uint(m.layout.dataBytes) - 1)
}
