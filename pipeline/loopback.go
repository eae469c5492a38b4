package pipeline

import (
	"errors"
	"fmt"

	"github.com/awygle/udptherbone/etherbone"
	"github.com/awygle/udptherbone/sim/modeling"
)

// Errors returned by Transact.
var (
	ErrNotQuiet         = errors.New("pipeline did not go quiet")
	ErrMissingResponses = errors.New("records left without a response")
)

// Loopback runs a Host and a Device back to back in one domain. The host's
// serial output is the device's serial input and the other way round.
type Loopback struct {
	Domain *modeling.Domain
	Host   *Host
	Device *Device
}

// Transact sends records in one request packet and steps the domain until
// it goes quiet, for at most maxSteps steps. It returns the responses in
// arrival order, one per record that carries any operation.
func (l *Loopback) Transact(
	records []etherbone.Record,
	maxSteps int,
) ([]etherbone.Response, error) {
	err := l.Host.Submit(records...)
	if err != nil {
		return nil, err
	}

	steps, quiet := l.Domain.StepUntilQuiet(maxSteps)
	if !quiet {
		return nil, fmt.Errorf("%w after %d steps", ErrNotQuiet, steps)
	}

	responses, err := l.Host.TakeResponses()
	if err != nil {
		return responses, err
	}

	expected := 0
	for _, r := range records {
		if len(r.Writes) > 0 || len(r.Reads) > 0 {
			expected++
		}
	}

	if len(responses) < expected {
		return responses, fmt.Errorf("%w: %d of %d answered",
			ErrMissingResponses, len(responses), expected)
	}

	return responses, nil
}
