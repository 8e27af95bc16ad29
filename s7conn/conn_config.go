package s7conn

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tarm/serial"

	"github.com/arloliu/go-s7/link"
	"github.com/arloliu/go-s7/logger"
	"github.com/arloliu/go-s7/s7"
)

// Default connection settings.
const (
	DefaultConnectTimeout       = 3 * time.Second
	DefaultTimeout              = 3 * time.Second
	DefaultMaxReconnectAttempts = 10

	DefaultSlaveAddress  = 2
	DefaultMasterAddress = 0

	DefaultBaudRate    = link.DefaultBaudRate
	DefaultBusyBackoff = link.DefaultBusyBackoff
)

// MaxPPIAddress is the highest station address on a PPI bus.
const MaxPPIAddress = 126

// ConnectionConfig holds the configuration of one device connection.
type ConnectionConfig struct {
	model         s7.Model
	transportKind s7.TransportKind
	address       string
	profile       s7.Profile

	connectTimeout time.Duration
	timeout        time.Duration
	maxReconnect   int

	// PPI settings.
	slaveAddress   byte
	masterAddress  byte
	baudRate       int
	parity         serial.Parity
	fetchSleep     time.Duration
	busyBackoff    time.Duration
	busyRetryLimit int

	transport link.Transport
	logger    logger.Logger
}

// NewConnectionConfig creates the configuration of a connection to a device of
// the given family.
//
// address is "host[:port]" for TCP and the serial device name for PPI. opts
// are functional options applied in order; see With* functions.
func NewConnectionConfig(model s7.Model, transport s7.TransportKind, address string, opts ...ConnOption) (*ConnectionConfig, error) {
	profile, err := s7.ProfileFor(model)
	if err != nil {
		return nil, err
	}

	cfg := &ConnectionConfig{
		model:          model,
		transportKind:  transport,
		address:        strings.TrimSpace(address),
		profile:        profile,
		connectTimeout: DefaultConnectTimeout,
		timeout:        DefaultTimeout,
		maxReconnect:   DefaultMaxReconnectAttempts,
		slaveAddress:   DefaultSlaveAddress,
		masterAddress:  DefaultMasterAddress,
		baudRate:       DefaultBaudRate,
		parity:         link.DefaultParity,
		busyBackoff:    DefaultBusyBackoff,
		logger:         logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *ConnectionConfig) validate() error {
	switch cfg.transportKind {
	case s7.Tcp:
	case s7.Ppi:
		if !cfg.model.SupportsPPI() {
			return fmt.Errorf("%w: %s has no PPI port", ErrInvalidConfig, cfg.model)
		}
		if cfg.slaveAddress == cfg.masterAddress {
			return fmt.Errorf("%w: slave and master share PPI address %d", ErrInvalidConfig, cfg.slaveAddress)
		}
	case s7.Mpi:
		return fmt.Errorf("%w: %s", ErrUnsupportedTransport, cfg.transportKind)
	default:
		return fmt.Errorf("%w: unknown transport %s", ErrInvalidConfig, cfg.transportKind)
	}

	if cfg.address == "" && cfg.transport == nil {
		return fmt.Errorf("%w: address is required", ErrInvalidConfig)
	}

	return nil
}

// --- Getters ---

// Model returns the device family.
func (cfg *ConnectionConfig) Model() s7.Model { return cfg.model }

// TransportKind returns the physical link kind.
func (cfg *ConnectionConfig) TransportKind() s7.TransportKind { return cfg.transportKind }

// Address returns the device address or serial port name.
func (cfg *ConnectionConfig) Address() string { return cfg.address }

// Profile returns the handshake profile, including any rack/slot override.
func (cfg *ConnectionConfig) Profile() s7.Profile { return cfg.profile }

// ConnectTimeout returns the handshake timeout.
func (cfg *ConnectionConfig) ConnectTimeout() time.Duration { return cfg.connectTimeout }

// Timeout returns the per-operation I/O timeout.
func (cfg *ConnectionConfig) Timeout() time.Duration { return cfg.timeout }

// MaxReconnectAttempts returns the cap of consecutive automatic reconnects; 0 means unlimited.
func (cfg *ConnectionConfig) MaxReconnectAttempts() int { return cfg.maxReconnect }

// SlaveAddress returns the PPI address of the device.
func (cfg *ConnectionConfig) SlaveAddress() byte { return cfg.slaveAddress }

// MasterAddress returns the PPI address of this station.
func (cfg *ConnectionConfig) MasterAddress() byte { return cfg.masterAddress }

// BaudRate returns the serial baud rate.
func (cfg *ConnectionConfig) BaudRate() int { return cfg.baudRate }

// Parity returns the serial parity.
func (cfg *ConnectionConfig) Parity() serial.Parity { return cfg.parity }

// FetchSleep returns the wait between a serial request and reading its reply.
func (cfg *ConnectionConfig) FetchSleep() time.Duration { return cfg.fetchSleep }

// BusyBackoff returns the wait before polling a busy PPI device.
func (cfg *ConnectionConfig) BusyBackoff() time.Duration { return cfg.busyBackoff }

// BusyRetryLimit returns the cap of busy polls per request; 0 means unlimited.
func (cfg *ConnectionConfig) BusyRetryLimit() int { return cfg.busyRetryLimit }

// GetLogger returns the configured logger.
func (cfg *ConnectionConfig) GetLogger() logger.Logger { return cfg.logger }

// --- ConnOption ---

// ConnOption is a functional option for configuring a ConnectionConfig.
type ConnOption interface {
	apply(*ConnectionConfig) error
}

type connOptFunc func(*ConnectionConfig) error

func (f connOptFunc) apply(cfg *ConnectionConfig) error { return f(cfg) }

// WithConnectTimeout sets the timeout of the whole handshake.
func WithConnectTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d <= 0 {
			return fmt.Errorf("%w: connect timeout must be positive", ErrInvalidConfig)
		}
		cfg.connectTimeout = d

		return nil
	})
}

// WithTimeout sets the I/O timeout of each send and receive.
func WithTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d <= 0 {
			return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
		}
		cfg.timeout = d

		return nil
	})
}

// WithMaxReconnectAttempts caps the consecutive automatic reconnects made on
// behalf of requests. Zero removes the cap.
func WithMaxReconnectAttempts(n int) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if n < 0 {
			return fmt.Errorf("%w: reconnect attempts %d must not be negative", ErrInvalidConfig, n)
		}
		cfg.maxReconnect = n

		return nil
	})
}

// WithSlaveAddress sets the PPI station address of the device (default 2).
func WithSlaveAddress(addr int) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if addr < 0 || addr > MaxPPIAddress {
			return fmt.Errorf("%w: slave address %d out of range [0, %d]", ErrInvalidConfig, addr, MaxPPIAddress)
		}
		cfg.slaveAddress = byte(addr)

		return nil
	})
}

// WithMasterAddress sets the PPI station address of this end (default 0).
func WithMasterAddress(addr int) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if addr < 0 || addr > MaxPPIAddress {
			return fmt.Errorf("%w: master address %d out of range [0, %d]", ErrInvalidConfig, addr, MaxPPIAddress)
		}
		cfg.masterAddress = byte(addr)

		return nil
	})
}

// WithBaudRate sets the serial baud rate (default 9600).
func WithBaudRate(baud int) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if baud <= 0 {
			return fmt.Errorf("%w: baud rate %d must be positive", ErrInvalidConfig, baud)
		}
		cfg.baudRate = baud

		return nil
	})
}

// WithParity sets the serial parity (default even).
func WithParity(p serial.Parity) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		switch p {
		case serial.ParityNone, serial.ParityOdd, serial.ParityEven, serial.ParityMark, serial.ParitySpace:
			cfg.parity = p
			return nil
		default:
			return fmt.Errorf("%w: unknown parity %q", ErrInvalidConfig, rune(p))
		}
	})
}

// WithFetchSleep sets a wait between sending a serial request and reading the reply.
func WithFetchSleep(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d < 0 {
			return fmt.Errorf("%w: fetch sleep must not be negative", ErrInvalidConfig)
		}
		cfg.fetchSleep = d

		return nil
	})
}

// WithBusyBackoff sets the wait before polling a busy PPI device (default 500ms).
func WithBusyBackoff(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d <= 0 {
			return fmt.Errorf("%w: busy backoff must be positive", ErrInvalidConfig)
		}
		cfg.busyBackoff = d

		return nil
	})
}

// WithBusyRetryLimit caps the busy polls of one request. Zero, the default,
// polls until the device answers or the context ends.
func WithBusyRetryLimit(n int) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if n < 0 {
			return fmt.Errorf("%w: busy retry limit %d must not be negative", ErrInvalidConfig, n)
		}
		cfg.busyRetryLimit = n

		return nil
	})
}

// WithRackSlot addresses the CPU in the given rack and slot on the TCP handshake.
func WithRackSlot(rack, slot int) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		p, err := cfg.profile.WithRackSlot(rack, slot)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		cfg.profile = p

		return nil
	})
}

// WithTransport replaces the transport built from the address, e.g. to reach
// the device through a converter or a test double.
func WithTransport(t link.Transport) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if t == nil {
			return errors.New("s7conn: transport must not be nil")
		}
		cfg.transport = t

		return nil
	})
}

// WithLogger sets the logger for the connection.
func WithLogger(l logger.Logger) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if l == nil {
			return errors.New("s7conn: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}

// newTransport returns the injected transport or builds one for the address.
func (cfg *ConnectionConfig) newTransport() link.Transport {
	if cfg.transport != nil {
		return cfg.transport
	}

	if cfg.transportKind == s7.Ppi {
		return link.NewSerialTransport(link.SerialConfig{
			Port:        cfg.address,
			BaudRate:    cfg.baudRate,
			Parity:      cfg.parity,
			ReadTimeout: cfg.timeout,
			FetchSleep:  cfg.fetchSleep,
		}, cfg.logger)
	}

	return link.NewTCPTransport(cfg.address, cfg.timeout, cfg.logger)
}

func (cfg *ConnectionConfig) newFraming() link.Framing {
	if cfg.transportKind == s7.Ppi {
		return &link.PPIFraming{
			Slave:          cfg.slaveAddress,
			Master:         cfg.masterAddress,
			BusyBackoff:    cfg.busyBackoff,
			BusyRetryLimit: cfg.busyRetryLimit,
			Logger:         cfg.logger,
		}
	}

	return link.TCPFraming{}
}
