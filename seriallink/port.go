// Package seriallink connects a serial port to the byte channels of a
// device pipeline.
package seriallink

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// ErrNoDevice is returned when no device path is configured.
var ErrNoDevice = errors.New("no serial device")

// Port is a serial port.
type Port interface {
	io.ReadWriteCloser

	// Flush discards data written but not transmitted and data received
	// but not read.
	Flush() error
}

// Config selects and configures a serial port.
type Config struct {
	Device string
	Baud   int

	// ReadTimeout bounds a read. Zero blocks until data arrives.
	ReadTimeout time.Duration
}

// DefaultConfig returns a 115200 baud configuration for device.
func DefaultConfig(device string) Config {
	return Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100 * time.Millisecond,
	}
}

// Open opens a native serial port.
func Open(cfg Config) (Port, error) {
	if cfg.Device == "" {
		return nil, ErrNoDevice
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Device, err)
	}

	return port, nil
}
