package pipeline

import (
	"fmt"

	"github.com/awygle/udptherbone/etherbone"
	"github.com/awygle/udptherbone/sim/modeling"
	"github.com/awygle/udptherbone/stream"
)

const wireMaxSteps = 1 << 20

type wireHost struct {
	domain *modeling.Domain
	host   *Host
	in     *stream.Source
	out    *stream.Sink
}

func (b Builder) buildWireHost() *wireHost {
	w := &wireHost{domain: modeling.NewDomain("Wire")}
	w.host = b.BuildHost("Wire.Host", nil, nil)
	w.in = stream.NewSource("Wire.In", w.host.SerialIn)
	w.out = stream.NewSink("Wire.Out", w.host.SerialOut)

	w.host.Register(w.domain)
	w.domain.AddComponent(w.in)
	w.domain.AddComponent(w.out)

	return w
}

func (w *wireHost) run() error {
	steps, quiet := w.domain.StepUntilQuiet(wireMaxSteps)
	if !quiet {
		return fmt.Errorf("%w after %d steps", ErrNotQuiet, steps)
	}

	return nil
}

// EncodeRequest returns the serial bytes a host sends for records: one
// Etherbone packet in one UDP datagram, SLIP framed.
func (b Builder) EncodeRequest(records ...etherbone.Record) ([]byte, error) {
	w := b.buildWireHost()

	err := w.host.Submit(records...)
	if err != nil {
		return nil, err
	}

	err = w.run()
	if err != nil {
		return nil, err
	}

	return w.out.Bytes(), nil
}

// DecodeResponses parses the serial bytes a device sends back to the host.
func (b Builder) DecodeResponses(serial []byte) ([]etherbone.Response, error) {
	w := b.buildWireHost()
	w.in.PushBytes(serial)

	err := w.run()
	if err != nil {
		return nil, err
	}

	return w.host.TakeResponses()
}
