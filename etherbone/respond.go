package etherbone

import "github.com/awygle/udptherbone/stream"

type respondMiddleware struct {
	*Bridge

	emitting  bool
	sop       bool
	buf       []byte
	pos       int
	readsLeft int
	reads     int
}

func (m *respondMiddleware) Tick() bool {
	if !m.out.CanOffer() {
		return false
	}

	started := false

	if !m.emitting {
		meta, ok := m.responses.Pop()
		if !ok {
			return false
		}

		m.start(meta)
		started = true
	}

	if m.pos == len(m.buf) {
		r, ok := m.results.Pop()
		if !ok {
			return started
		}

		m.buf = m.layout.putWord(m.buf[:0], r.Addr)
		m.buf = m.layout.putWord(m.buf, r.Data)
		m.pos = 0
		m.readsLeft--
	}

	last := m.pos == len(m.buf)-1 && m.readsLeft == 0

	m.out.Offer(stream.Beat{Data: m.buf[m.pos], SOP: m.sop, EOP: last})
	m.pos++
	m.sop = false

	if last {
		m.emitting = false
		m.responded++
		m.Invoke(m.Bridge, HookPosResponse, m.reads, m.responded)
	}

	return true
}

func (m *respondMiddleware) start(meta responseMeta) {
	version := Version
	if meta.reads == 0 {
		version |= FlagNoReads
	}

	flags := FlagCYC
	if meta.rff {
		flags |= FlagRFF
	}

	l := m.layout
	m.buf = append(m.buf[:0], Magic0, Magic1, version, l.sizes())
	m.buf = appendZeros(m.buf, l.pad())
	m.buf = append(m.buf, flags, byteEnableAll, 0, byte(meta.reads))
	m.buf = appendZeros(m.buf, l.pad())

	m.emitting = true
	m.sop = true
	m.pos = 0
	m.readsLeft = meta.reads
	m.reads = meta.reads
}
