package config

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/BurntSushi/toml"
)

type fileConfig struct {
	Device struct {
		IP       string `toml:"ip"`
		Port     uint16 `toml:"port"`
		MTU      int    `toml:"mtu"`
		InFlight int    `toml:"in_flight"`
		TTL      uint8  `toml:"ttl"`
	} `toml:"device"`

	Host struct {
		IP   string `toml:"ip"`
		Port uint16 `toml:"port"`
	} `toml:"host"`

	Bus struct {
		AddrWidth     int `toml:"addr_width"`
		DataWidth     int `toml:"data_width"`
		LatencyCycles int `toml:"latency_cycles"`
	} `toml:"bus"`

	Serial struct {
		Device        string `toml:"device"`
		Baud          int    `toml:"baud"`
		ReadTimeoutMS int    `toml:"read_timeout_ms"`
	} `toml:"serial"`

	Sim struct {
		FreqHz          float64 `toml:"freq_hz"`
		ChannelCapacity int     `toml:"channel_capacity"`
		MaxSteps        int     `toml:"max_steps"`
	} `toml:"sim"`

	Monitor struct {
		Enabled     bool `toml:"enabled"`
		Port        int  `toml:"port"`
		OpenBrowser bool `toml:"open_browser"`
	} `toml:"monitor"`

	Recording struct {
		Enabled bool   `toml:"enabled"`
		Path    string `toml:"path"`
	} `toml:"recording"`

	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`
}

// mergeFile overrides only the keys present in the file.
//
//nolint:gocyclo,funlen
func (c *Config) mergeFile(path string) error {
	var raw fileConfig

	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("%w: unknown key %s in %s", ErrInvalid, undecoded[0], path)
	}

	if meta.IsDefined("device", "ip") {
		ip, err := parseIP(raw.Device.IP)
		if err != nil {
			return fmt.Errorf("device.ip: %w", err)
		}

		c.Device.IP = ip
	}

	if meta.IsDefined("device", "port") {
		c.Device.Port = raw.Device.Port
	}

	if meta.IsDefined("device", "mtu") {
		c.Device.MTU = raw.Device.MTU
	}

	if meta.IsDefined("device", "in_flight") {
		c.Device.InFlight = raw.Device.InFlight
	}

	if meta.IsDefined("device", "ttl") {
		c.Device.TTL = raw.Device.TTL
	}

	if meta.IsDefined("host", "ip") {
		ip, err := parseIP(raw.Host.IP)
		if err != nil {
			return fmt.Errorf("host.ip: %w", err)
		}

		c.Host.IP = ip
	}

	if meta.IsDefined("host", "port") {
		c.Host.Port = raw.Host.Port
	}

	if meta.IsDefined("bus", "addr_width") {
		c.Bus.AddrWidth = raw.Bus.AddrWidth
	}

	if meta.IsDefined("bus", "data_width") {
		c.Bus.DataWidth = raw.Bus.DataWidth
	}

	if meta.IsDefined("bus", "latency_cycles") {
		c.Bus.LatencyCycles = raw.Bus.LatencyCycles
	}

	if meta.IsDefined("serial", "device") {
		c.Serial.Device = strings.TrimSpace(raw.Serial.Device)
	}

	if meta.IsDefined("serial", "baud") {
		c.Serial.Baud = raw.Serial.Baud
	}

	if meta.IsDefined("serial", "read_timeout_ms") {
		c.Serial.ReadTimeoutMS = raw.Serial.ReadTimeoutMS
	}

	if meta.IsDefined("sim", "freq_hz") {
		c.Sim.FreqHz = raw.Sim.FreqHz
	}

	if meta.IsDefined("sim", "channel_capacity") {
		c.Sim.ChannelCapacity = raw.Sim.ChannelCapacity
	}

	if meta.IsDefined("sim", "max_steps") {
		c.Sim.MaxSteps = raw.Sim.MaxSteps
	}

	if meta.IsDefined("monitor", "enabled") {
		c.Monitor.Enabled = raw.Monitor.Enabled
	}

	if meta.IsDefined("monitor", "port") {
		c.Monitor.Port = raw.Monitor.Port
	}

	if meta.IsDefined("monitor", "open_browser") {
		c.Monitor.OpenBrowser = raw.Monitor.OpenBrowser
	}

	if meta.IsDefined("recording", "enabled") {
		c.Recording.Enabled = raw.Recording.Enabled
	}

	if meta.IsDefined("recording", "path") {
		c.Recording.Path = strings.TrimSpace(raw.Recording.Path)
	}

	if meta.IsDefined("log", "level") {
		c.LogLevel = strings.TrimSpace(raw.Log.Level)
	}

	return nil
}

func parseIP(s string) (netip.Addr, error) {
	ip, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	return ip, nil
}
