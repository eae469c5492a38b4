// Package config loads the settings shared by every command: addresses,
// bus widths, serial port, and the observability switches.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid config")

// Environment variables that override the file.
const (
	EnvSerialDevice = "UDPTHERBONE_SERIAL_DEVICE"
	EnvSerialBaud   = "UDPTHERBONE_SERIAL_BAUD"
	EnvMonitorPort  = "UDPTHERBONE_MONITOR_PORT"
	EnvLogLevel     = "UDPTHERBONE_LOG_LEVEL"
	EnvRecordPath   = "UDPTHERBONE_RECORD_PATH"
)

// Device addresses the bridge end of the link.
type Device struct {
	IP       netip.Addr
	Port     uint16
	MTU      int
	InFlight int
	TTL      uint8
}

// Host addresses the requesting end of the link.
type Host struct {
	IP   netip.Addr
	Port uint16
}

// Bus describes the Wishbone bus behind the bridge.
type Bus struct {
	AddrWidth     int
	DataWidth     int
	LatencyCycles int
}

// Serial selects the serial port.
type Serial struct {
	Device        string
	Baud          int
	ReadTimeoutMS int
}

// Sim tunes the step engine.
type Sim struct {
	FreqHz          float64
	ChannelCapacity int
	MaxSteps        int
}

// Monitor configures the HTTP monitor.
type Monitor struct {
	Enabled     bool
	Port        int
	OpenBrowser bool
}

// Recording configures the diagnostic recorder.
type Recording struct {
	Enabled bool
	Path    string
}

// Config is the complete configuration. It is immutable once loaded.
type Config struct {
	Device    Device
	Host      Host
	Bus       Bus
	Serial    Serial
	Sim       Sim
	Monitor   Monitor
	Recording Recording
	LogLevel  string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Device: Device{
			IP:       netip.MustParseAddr("192.168.1.50"),
			Port:     1234,
			MTU:      1500,
			InFlight: 4,
			TTL:      255,
		},
		Host: Host{
			IP:   netip.MustParseAddr("192.168.1.100"),
			Port: 1234,
		},
		Bus: Bus{
			AddrWidth:     32,
			DataWidth:     32,
			LatencyCycles: 1,
		},
		Serial: Serial{
			Device:        "/dev/ttyUSB0",
			Baud:          115200,
			ReadTimeoutMS: 100,
		},
		Sim: Sim{
			FreqHz:          1e6,
			ChannelCapacity: 2,
			MaxSteps:        1000000,
		},
		Monitor: Monitor{
			Port: 0,
		},
		LogLevel: "info",
	}
}

// Load reads path over the defaults, then applies the environment. Before
// reading the environment it loads envFiles, or .env in the working
// directory if it exists. Variables already set are never replaced by a
// file.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := loadEnvFiles(envFiles); err != nil {
		return Config{}, err
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadEnvFiles(files []string) error {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return fmt.Errorf("load env files: %w", err)
		}

		return nil
	}

	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	if v, ok := lookup(EnvSerialDevice); ok {
		c.Serial.Device = strings.TrimSpace(v)
	}

	if v, ok := lookup(EnvSerialBaud); ok {
		baud, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, EnvSerialBaud, err)
		}

		c.Serial.Baud = baud
	}

	if v, ok := lookup(EnvMonitorPort); ok {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, EnvMonitorPort, err)
		}

		c.Monitor.Enabled = true
		c.Monitor.Port = port
	}

	if v, ok := lookup(EnvLogLevel); ok {
		c.LogLevel = strings.TrimSpace(v)
	}

	if v, ok := lookup(EnvRecordPath); ok {
		c.Recording.Enabled = true
		c.Recording.Path = strings.TrimSpace(v)
	}

	return nil
}

// Validate checks the configuration for values no component accepts.
func (c Config) Validate() error {
	var problems []string

	if !c.Device.IP.Is4() {
		problems = append(problems, "device ip must be IPv4")
	}

	if !c.Host.IP.Is4() {
		problems = append(problems, "host ip must be IPv4")
	}

	if c.Device.MTU <= 28 || c.Device.MTU > 0xFFFF {
		problems = append(problems, fmt.Sprintf("mtu %d out of range", c.Device.MTU))
	}

	if c.Device.InFlight < 1 {
		problems = append(problems, "in_flight must be at least 1")
	}

	if !validWidth(c.Bus.AddrWidth) || !validWidth(c.Bus.DataWidth) {
		problems = append(problems, fmt.Sprintf("bus widths %d/%d not in 8, 16, 32, 64",
			c.Bus.AddrWidth, c.Bus.DataWidth))
	}

	if c.Bus.LatencyCycles < 0 {
		problems = append(problems, "latency_cycles must not be negative")
	}

	if c.Serial.Baud <= 0 {
		problems = append(problems, "baud must be positive")
	}

	if c.Sim.FreqHz <= 0 {
		problems = append(problems, "freq_hz must be positive")
	}

	if c.Sim.ChannelCapacity < 0 || c.Sim.MaxSteps <= 0 {
		problems = append(problems, "channel_capacity and max_steps must be positive")
	}

	if c.Monitor.Port < 0 || c.Monitor.Port > 0xFFFF {
		problems = append(problems, fmt.Sprintf("monitor port %d out of range", c.Monitor.Port))
	}

	if c.Recording.Enabled && c.Recording.Path == "" {
		problems = append(problems, "recording path is required")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}

	return nil
}

func validWidth(w int) bool {
	switch w {
	case 8, 16, 32, 64:
		return true
	}

	return false
}
