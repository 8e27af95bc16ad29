package link

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/arloliu/go-s7/logger"
)

// DefaultTCPPort is the ISO-on-TCP port.
const DefaultTCPPort = "102"

// DialFunc opens a network connection, see net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// TCPOption configures a TCPTransport.
type TCPOption func(*TCPTransport)

// WithDialer replaces the dialer, e.g. to connect through a proxy or to a
// net.Pipe in tests.
func WithDialer(dial DialFunc) TCPOption {
	return func(t *TCPTransport) {
		if dial != nil {
			t.dial = dial
		}
	}
}

// TCPTransport is a Transport over a TCP socket.
type TCPTransport struct {
	address string
	timeout time.Duration
	dial    DialFunc
	logger  logger.Logger

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

var _ Transport = (*TCPTransport)(nil)

// NewTCPTransport creates a transport for address ("host" or "host:port",
// port 102 by default). timeout bounds dialing and every read or write that
// has no earlier context deadline; zero disables it.
func NewTCPTransport(address string, timeout time.Duration, l logger.Logger, opts ...TCPOption) *TCPTransport {
	if l == nil {
		l = logger.GetLogger()
	}

	t := &TCPTransport{
		address: withDefaultPort(address),
		timeout: timeout,
		logger:  l,
	}
	d := &net.Dialer{}
	t.dial = d.DialContext

	for _, opt := range opts {
		opt(t)
	}

	return t
}

func withDefaultPort(address string) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}

	return net.JoinHostPort(address, DefaultTCPPort)
}

func (t *TCPTransport) String() string { return "tcp://" + t.address }

func (t *TCPTransport) Open(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return nil
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	conn, err := t.dial(ctx, "tcp", t.address)
	if err != nil {
		return &TransportError{Op: "dial " + t.address, Err: err}
	}

	t.conn = conn
	t.reader = bufio.NewReader(conn)
	t.logger.Debug("tcp transport open", "address", t.address)

	return nil
}

func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}

	err := t.conn.Close()
	t.conn = nil
	t.reader = nil
	t.logger.Debug("tcp transport closed", "address", t.address)

	return err
}

func (t *TCPTransport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.conn != nil
}

func (t *TCPTransport) current() (net.Conn, *bufio.Reader) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.conn, t.reader
}

func (t *TCPTransport) Send(ctx context.Context, frame []byte) error {
	conn, _ := t.current()
	if conn == nil {
		return &TransportError{Op: "send", Err: ErrNotOpen}
	}

	stop := interruptOnCancel(ctx, conn)
	defer stop()

	if err := conn.SetWriteDeadline(ioDeadline(ctx, t.timeout)); err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	if err := writeAll(conn, frame); err != nil {
		return &TransportError{Op: "send", Err: ctxErr(ctx, err)}
	}

	return nil
}

func (t *TCPTransport) Receive(ctx context.Context, read FrameReader) ([]byte, error) {
	conn, reader := t.current()
	if conn == nil {
		return nil, &TransportError{Op: "receive", Err: ErrNotOpen}
	}

	stop := interruptOnCancel(ctx, conn)
	defer stop()

	if err := conn.SetReadDeadline(ioDeadline(ctx, t.timeout)); err != nil {
		return nil, &TransportError{Op: "receive", Err: err}
	}

	frame, err := read(reader)
	if err != nil {
		if errors.Is(err, ErrFrame) {
			return nil, err
		}

		return nil, &TransportError{Op: "receive", Err: ctxErr(ctx, err)}
	}

	return frame, nil
}

// interruptOnCancel unblocks pending I/O on conn when ctx is cancelled.
func interruptOnCancel(ctx context.Context, conn net.Conn) func() bool {
	return context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
}

// ctxErr prefers the context error over the deadline error it caused.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	return err
}
