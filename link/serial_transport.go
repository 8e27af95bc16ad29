package link

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"

	"github.com/arloliu/go-s7/internal/pool"
	"github.com/arloliu/go-s7/logger"
)

// PPI line defaults: 9600 baud, 8 data bits, even parity, 1 stop bit.
const (
	DefaultBaudRate    = 9600
	DefaultParity      = serial.ParityEven
	DefaultReadTimeout = time.Second
)

// SerialConfig describes a serial port.
type SerialConfig struct {
	// Port is the device name, e.g. "/dev/ttyUSB0" or "COM3".
	Port     string
	BaudRate int
	Parity   serial.Parity
	// ReadTimeout bounds each read from the port.
	ReadTimeout time.Duration
	// FetchSleep is waited between sending a request and reading the reply,
	// for slow converters that drop the first bytes of a reply.
	FetchSleep time.Duration
}

func (c SerialConfig) portConfig() *serial.Config {
	cfg := &serial.Config{
		Name:        c.Port,
		Baud:        c.BaudRate,
		ReadTimeout: c.ReadTimeout,
		Size:        8,
		Parity:      c.Parity,
		StopBits:    serial.Stop1,
	}
	if cfg.Baud <= 0 {
		cfg.Baud = DefaultBaudRate
	}
	if cfg.Parity == 0 {
		cfg.Parity = DefaultParity
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	return cfg
}

// PortOpener opens a serial port.
type PortOpener func(cfg *serial.Config) (io.ReadWriteCloser, error)

func openSerialPort(cfg *serial.Config) (io.ReadWriteCloser, error) {
	port, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, err
	}

	return port, nil
}

// SerialOption configures a SerialTransport.
type SerialOption func(*SerialTransport)

// WithPortOpener replaces the function that opens the port.
func WithPortOpener(open PortOpener) SerialOption {
	return func(t *SerialTransport) {
		if open != nil {
			t.open = open
		}
	}
}

// SerialTransport is a Transport over a serial port.
type SerialTransport struct {
	cfg    *serial.Config
	fetch  time.Duration
	open   PortOpener
	logger logger.Logger

	mu     sync.Mutex
	port   io.ReadWriteCloser
	reader *bufio.Reader
}

var _ Transport = (*SerialTransport)(nil)

// NewSerialTransport creates a serial transport. Zero values of cfg take the
// PPI defaults.
func NewSerialTransport(cfg SerialConfig, l logger.Logger, opts ...SerialOption) *SerialTransport {
	if l == nil {
		l = logger.GetLogger()
	}

	t := &SerialTransport{
		cfg:    cfg.portConfig(),
		fetch:  cfg.FetchSleep,
		open:   openSerialPort,
		logger: l,
	}
	for _, opt := range opts {
		opt(t)
	}

	return t
}

func (t *SerialTransport) String() string {
	return fmt.Sprintf("serial://%s?baud=%d&parity=%c", t.cfg.Name, t.cfg.Baud, t.cfg.Parity)
}

func (t *SerialTransport) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &TransportError{Op: "open " + t.cfg.Name, Err: err}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port != nil {
		return nil
	}

	port, err := t.open(t.cfg)
	if err != nil {
		return &TransportError{Op: "open " + t.cfg.Name, Err: err}
	}

	t.port = port
	t.reader = bufio.NewReader(port)
	t.logger.Debug("serial transport open", "port", t.cfg.Name, "baud", t.cfg.Baud)

	return nil
}

func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil
	}

	err := t.port.Close()
	t.port = nil
	t.reader = nil
	t.logger.Debug("serial transport closed", "port", t.cfg.Name)

	return err
}

func (t *SerialTransport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.port != nil
}

func (t *SerialTransport) current() (io.ReadWriteCloser, *bufio.Reader) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.port, t.reader
}

// Send discards unread input before writing, so a stale reply of an
// abandoned exchange is never taken for the reply to frame.
func (t *SerialTransport) Send(ctx context.Context, frame []byte) error {
	port, reader := t.current()
	if port == nil {
		return &TransportError{Op: "send", Err: ErrNotOpen}
	}
	if err := ctx.Err(); err != nil {
		return &TransportError{Op: "send", Err: err}
	}

	if n := reader.Buffered(); n > 0 {
		_, _ = reader.Discard(n)
	}
	if err := writeAll(port, frame); err != nil {
		return &TransportError{Op: "send", Err: err}
	}

	return nil
}

// Receive reads one frame. The port read timeout bounds each read; ctx is
// honoured between reads and during the fetch sleep.
func (t *SerialTransport) Receive(ctx context.Context, read FrameReader) ([]byte, error) {
	_, reader := t.current()
	if reader == nil {
		return nil, &TransportError{Op: "receive", Err: ErrNotOpen}
	}

	if t.fetch > 0 {
		if err := pool.Sleep(ctx, t.fetch); err != nil {
			return nil, &TransportError{Op: "receive", Err: err}
		}
	}

	frame, err := read(&ctxReader{ctx: ctx, r: reader})
	if err != nil {
		if errors.Is(err, ErrFrame) {
			return nil, err
		}

		return nil, &TransportError{Op: "receive", Err: err}
	}

	return frame, nil
}

// ctxReader stops reading once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}

	return c.r.Read(p)
}
