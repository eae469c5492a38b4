package pipeline

import (
	"context"

	"github.com/awygle/udptherbone/seriallink"
	"github.com/awygle/udptherbone/sim/modeling"
	"github.com/awygle/udptherbone/sim/timing"
)

// Server runs a Device behind a serial port.
type Server struct {
	Domain *modeling.Domain
	Engine *timing.SerialEngine
	Device *Device
	Link   *seriallink.Link
}

// Serve moves bytes between the port and the device until ctx is done or
// the port fails.
func (s *Server) Serve(ctx context.Context) error {
	return seriallink.Serve(ctx, s.Link, s.Domain)
}
