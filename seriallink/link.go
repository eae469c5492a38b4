package seriallink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/awygle/udptherbone/sim/hooking"
	"github.com/awygle/udptherbone/sim/modeling"
	"github.com/awygle/udptherbone/stream"
)

// HookPosReceived is invoked when bytes arrive from the port. The item is
// the bytes.
var HookPosReceived = &hooking.HookPos{Name: "SerialReceived"}

// HookPosTransmitted is invoked when bytes are written to the port. The item
// is the bytes.
var HookPosTransmitted = &hooking.HookPos{Name: "SerialTransmitted"}

const readChunk = 256

// Link moves bytes between a serial port and a pair of continuous channels.
// Received bytes are offered to the receive channel one per step. Bytes
// accepted from the transmit channel are collected and written to the port
// once the transmit channel runs dry.
type Link struct {
	modeling.ComponentBase

	port Port
	rx   *stream.Channel
	tx   *stream.Channel

	lock    sync.Mutex
	pending []byte
	chunks  [][]byte
	readErr error
	ready   chan struct{}

	outgoing []byte
	writeErr error

	received    uint64
	transmitted uint64
}

// Ready is signaled whenever the reader has queued bytes or has stopped.
func (l *Link) Ready() <-chan struct{} {
	return l.ready
}

// Err returns the error that stopped the reader or the last write error.
func (l *Link) Err() error {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.readErr != nil {
		return l.readErr
	}

	return l.writeErr
}

// Received returns the number of bytes offered to the receive channel.
func (l *Link) Received() uint64 {
	l.lock.Lock()
	defer l.lock.Unlock()

	return l.received
}

// Transmitted returns the number of bytes written to the port.
func (l *Link) Transmitted() uint64 {
	l.lock.Lock()
	defer l.lock.Unlock()

	return l.transmitted
}

// Start discards stale port data and starts reading in the background until
// ctx is done or the port fails. Read timeouts are not errors.
func (l *Link) Start(ctx context.Context) error {
	err := l.port.Flush()
	if err != nil {
		return fmt.Errorf("flush serial port: %w", err)
	}

	go l.read(ctx)

	return nil
}

func (l *Link) read(ctx context.Context) {
	buf := make([]byte, readChunk)

	for ctx.Err() == nil {
		n, err := l.port.Read(buf)

		if n > 0 {
			data := append([]byte(nil), buf[:n]...)

			l.lock.Lock()
			l.pending = append(l.pending, data...)
			l.chunks = append(l.chunks, data)
			l.lock.Unlock()

			l.signal()
		}

		if err != nil && !errors.Is(err, io.EOF) {
			l.lock.Lock()
			l.readErr = fmt.Errorf("read serial port: %w", err)
			l.lock.Unlock()

			l.signal()

			return
		}
	}
}

func (l *Link) signal() {
	select {
	case l.ready <- struct{}{}:
	default:
	}
}

// Tick moves at most one byte in each direction.
func (l *Link) Tick() bool {
	progress := l.receive()

	if l.transmit() {
		progress = true
	}

	return progress
}

func (l *Link) receive() bool {
	l.lock.Lock()
	chunks := l.chunks
	l.chunks = nil

	progress := false
	if len(l.pending) > 0 && l.rx.CanOffer() {
		l.rx.Offer(stream.Beat{Data: l.pending[0]})
		l.pending = l.pending[1:]
		l.received++
		progress = true
	}
	l.lock.Unlock()

	for _, c := range chunks {
		l.Invoke(l, HookPosReceived, c, nil)
	}

	return progress
}

func (l *Link) transmit() bool {
	beat, ok := l.tx.Peek()
	if ok {
		l.tx.Accept()
		l.outgoing = append(l.outgoing, beat.Data)

		return true
	}

	if len(l.outgoing) > 0 {
		l.flush()
	}

	return false
}

func (l *Link) flush() {
	data := l.outgoing
	l.outgoing = nil

	n, err := l.port.Write(data)

	l.lock.Lock()
	l.transmitted += uint64(n)
	if err != nil {
		l.writeErr = fmt.Errorf("write serial port: %w", err)
	}
	l.lock.Unlock()

	l.Invoke(l, HookPosTransmitted, data[:n], nil)
}

// Builder builds Links.
type Builder struct {
	port   Port
	rx, tx *stream.Channel
}

// MakeBuilder returns an empty Builder.
func MakeBuilder() Builder {
	return Builder{}
}

// WithPort sets the serial port.
func (b Builder) WithPort(p Port) Builder {
	b.port = p
	return b
}

// WithReceive sets the channel that received bytes are offered to.
func (b Builder) WithReceive(rx *stream.Channel) Builder {
	b.rx = rx
	return b
}

// WithTransmit sets the channel whose bytes are written to the port.
func (b Builder) WithTransmit(tx *stream.Channel) Builder {
	b.tx = tx
	return b
}

// Build creates the Link.
func (b Builder) Build(name string) *Link {
	if b.port == nil || b.rx == nil || b.tx == nil {
		panic(fmt.Sprintf("link %s needs a port and both channels", name))
	}

	return &Link{
		ComponentBase: modeling.MakeComponentBase(name),
		port:          b.port,
		rx:            b.rx,
		tx:            b.tx,
		ready:         make(chan struct{}, 1),
	}
}
