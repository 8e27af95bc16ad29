// Package config loads device connection settings from YAML.
//
// A file lists the devices to connect to and the log level:
//
//	log:
//	  level: info
//	connections:
//	  - name: press-1
//	    model: S7-1200
//	    transport: tcp
//	    address: 192.168.0.10
//	    timeout: 2s
//	  - name: mixer
//	    model: S7-200
//	    transport: ppi
//	    address: /dev/ttyUSB0
//	    slave_address: 2
//	    busy_backoff: 250ms
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tarm/serial"
	"gopkg.in/yaml.v3"

	"github.com/arloliu/go-s7/logger"
	"github.com/arloliu/go-s7/s7"
	"github.com/arloliu/go-s7/s7conn"
)

// ErrInvalidConfig is returned when a configuration file fails validation.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the content of a configuration file.
type Config struct {
	Log         LogConfig          `yaml:"log"`
	Connections []ConnectionConfig `yaml:"connections"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level     string `yaml:"level"` // debug, info, warn, error, fatal
	AddSource bool   `yaml:"add_source"`
}

// ConnectionConfig describes one device. Unset fields take the s7conn
// defaults; durations are strings such as "500ms" or "3s".
type ConnectionConfig struct {
	Name      string `yaml:"name"`
	Model     string `yaml:"model"`
	Transport string `yaml:"transport"`
	Address   string `yaml:"address"`

	Timeout        time.Duration `yaml:"timeout,omitempty"`
	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty"`
	MaxReconnect   *int          `yaml:"max_reconnect,omitempty"`

	// ISO-on-TCP
	Rack *int `yaml:"rack,omitempty"`
	Slot *int `yaml:"slot,omitempty"`

	// PPI
	SlaveAddress   *int          `yaml:"slave_address,omitempty"`
	MasterAddress  *int          `yaml:"master_address,omitempty"`
	Baud           int           `yaml:"baud,omitempty"`
	Parity         string        `yaml:"parity,omitempty"`
	FetchSleep     time.Duration `yaml:"fetch_sleep,omitempty"`
	BusyBackoff    time.Duration `yaml:"busy_backoff,omitempty"`
	BusyRetryLimit int           `yaml:"busy_retry_limit,omitempty"`
}

var parities = map[string]serial.Parity{
	"none":  serial.ParityNone,
	"odd":   serial.ParityOdd,
	"even":  serial.ParityEven,
	"mark":  serial.ParityMark,
	"space": serial.ParitySpace,
}

// DefaultConfig returns a configuration without connections.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
	}
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes and validates a YAML configuration.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the log level and every connection entry. Names must be
// unique.
func (c *Config) Validate() error {
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	seen := make(map[string]bool, len(c.Connections))
	for i := range c.Connections {
		conn := &c.Connections[i]
		if conn.Name == "" {
			return fmt.Errorf("%w: connection %d has no name", ErrInvalidConfig, i)
		}
		if seen[conn.Name] {
			return fmt.Errorf("%w: duplicate connection name %q", ErrInvalidConfig, conn.Name)
		}
		seen[conn.Name] = true

		if _, err := conn.Build(nil); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	return nil
}

// Logger builds the slog logger described by the log section.
func (c *Config) Logger() logger.Logger {
	level, err := logger.ParseLevel(c.Log.Level)
	if err != nil {
		level = logger.InfoLevel
	}

	return logger.NewSlog(level, c.Log.AddSource)
}

// ConnectionConfigs builds the s7conn configuration of every connection,
// keyed by name. l is passed to each connection; nil keeps the default logger.
func (c *Config) ConnectionConfigs(l logger.Logger) (map[string]*s7conn.ConnectionConfig, error) {
	cfgs := make(map[string]*s7conn.ConnectionConfig, len(c.Connections))
	for i := range c.Connections {
		cfg, err := c.Connections[i].Build(l)
		if err != nil {
			return nil, err
		}
		cfgs[c.Connections[i].Name] = cfg
	}

	return cfgs, nil
}

// Registry creates a registry holding a disconnected connection per entry.
func (c *Config) Registry(l logger.Logger) (*s7conn.Registry, error) {
	cfgs, err := c.ConnectionConfigs(l)
	if err != nil {
		return nil, err
	}

	reg := s7conn.NewRegistry()
	for name, cfg := range cfgs {
		if _, _, err := reg.LoadOrCreate(name, cfg); err != nil {
			return nil, errors.Join(err, reg.Close())
		}
	}

	return reg, nil
}

// Build returns the s7conn configuration of the entry.
func (cc *ConnectionConfig) Build(l logger.Logger) (*s7conn.ConnectionConfig, error) {
	model, err := s7.ParseModel(cc.Model)
	if err != nil {
		return nil, fmt.Errorf("connection %q: %w", cc.Name, err)
	}

	kind, err := s7.ParseTransportKind(cc.Transport)
	if err != nil {
		return nil, fmt.Errorf("connection %q: %w", cc.Name, err)
	}

	opts, err := cc.Options(l)
	if err != nil {
		return nil, fmt.Errorf("connection %q: %w", cc.Name, err)
	}

	cfg, err := s7conn.NewConnectionConfig(model, kind, cc.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("connection %q: %w", cc.Name, err)
	}

	return cfg, nil
}

// Options translates the set fields of the entry into connection options.
// Option values are checked when the options are applied.
func (cc *ConnectionConfig) Options(l logger.Logger) ([]s7conn.ConnOption, error) {
	kind, err := s7.ParseTransportKind(cc.Transport)
	if err != nil {
		return nil, err
	}

	var opts []s7conn.ConnOption
	if l != nil {
		opts = append(opts, s7conn.WithLogger(l))
	}
	if cc.Timeout != 0 {
		opts = append(opts, s7conn.WithTimeout(cc.Timeout))
	}
	if cc.ConnectTimeout != 0 {
		opts = append(opts, s7conn.WithConnectTimeout(cc.ConnectTimeout))
	}
	if cc.MaxReconnect != nil {
		opts = append(opts, s7conn.WithMaxReconnectAttempts(*cc.MaxReconnect))
	}

	if cc.Rack != nil || cc.Slot != nil {
		if kind != s7.Tcp {
			return nil, fmt.Errorf("rack and slot apply to tcp only, not %s", kind)
		}
		opts = append(opts, s7conn.WithRackSlot(deref(cc.Rack), deref(cc.Slot)))
	}

	if cc.SlaveAddress != nil {
		opts = append(opts, s7conn.WithSlaveAddress(*cc.SlaveAddress))
	}
	if cc.MasterAddress != nil {
		opts = append(opts, s7conn.WithMasterAddress(*cc.MasterAddress))
	}
	if cc.Baud != 0 {
		opts = append(opts, s7conn.WithBaudRate(cc.Baud))
	}
	if cc.Parity != "" {
		p, ok := parities[strings.ToLower(cc.Parity)]
		if !ok {
			return nil, fmt.Errorf("unknown parity %q", cc.Parity)
		}
		opts = append(opts, s7conn.WithParity(p))
	}
	if cc.FetchSleep != 0 {
		opts = append(opts, s7conn.WithFetchSleep(cc.FetchSleep))
	}
	if cc.BusyBackoff != 0 {
		opts = append(opts, s7conn.WithBusyBackoff(cc.BusyBackoff))
	}
	if cc.BusyRetryLimit != 0 {
		opts = append(opts, s7conn.WithBusyRetryLimit(cc.BusyRetryLimit))
	}

	return opts, nil
}

func deref(v *int) int {
	if v == nil {
		return 0
	}

	return *v
}
