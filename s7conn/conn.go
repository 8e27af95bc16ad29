package s7conn

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/arloliu/go-s7/link"
	"github.com/arloliu/go-s7/logger"
	"github.com/arloliu/go-s7/s7"
)

// Connection is the logical connection to one device. It runs the handshake,
// reconnects on demand and exchanges protocol units.
//
// All methods are safe for concurrent use. Handshakes are serialized and
// exchanges are serialized by the underlying link.Linker.
type Connection struct {
	cfg      *ConnectionConfig
	logger   logger.Logger
	linker   *link.Linker
	stateMgr *connStateMgr

	// handshake admits one Connect at a time; acquiring it honours ctx.
	handshake *semaphore.Weighted

	pduRef  atomic.Uint32
	maxPdu  atomic.Uint32
	metrics ConnectionMetrics
}

// maxPPIPdu is the largest S7 PDU an SD2 frame can carry.
const maxPPIPdu = 0xFF - 3

// Result is the outcome of SendReceiveAsync.
type Result struct {
	Output any
	Err    error
}

// NewConnection creates a disconnected Connection. No I/O happens until
// Connect or the first request.
func NewConnection(cfg *ConnectionConfig, handlers ...ConnStateChangeHandler) (*Connection, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: connection config is nil", ErrInvalidConfig)
	}

	c := &Connection{
		cfg:       cfg,
		logger:    cfg.logger.With("model", cfg.model.String(), "transport", cfg.transportKind.String()),
		handshake: semaphore.NewWeighted(1),
	}
	c.linker = link.NewLinker(cfg.newTransport(), cfg.newFraming(), c.logger)
	c.stateMgr = newConnStateMgr(c, c.logger)
	c.stateMgr.AddHandler(handlers...)
	maxPdu := int(cfg.profile.MaxPdu)
	if cfg.transportKind == s7.Ppi {
		maxPdu = min(maxPdu, maxPPIPdu)
	}
	c.maxPdu.Store(uint32(maxPdu))

	return c, nil
}

// GetLogger returns the logger associated with the connection.
func (c *Connection) GetLogger() logger.Logger { return c.logger }

// GetMetrics returns the metrics associated with the connection.
func (c *Connection) GetMetrics() *ConnectionMetrics { return &c.metrics }

// GetLinkMetrics returns the frame level metrics.
func (c *Connection) GetLinkMetrics() *link.Metrics { return c.linker.Metrics() }

// Config returns the connection configuration.
func (c *Connection) Config() *ConnectionConfig { return c.cfg }

// State returns the current connection state.
func (c *Connection) State() ConnState { return c.stateMgr.State() }

// IsReady reports whether requests can be sent without a handshake.
func (c *Connection) IsReady() bool { return c.State().IsReady() }

// AddStateChangeHandler registers handlers invoked on every state change.
func (c *Connection) AddStateChangeHandler(handlers ...ConnStateChangeHandler) {
	c.stateMgr.AddHandler(handlers...)
}

// WaitState blocks until the connection reaches state or ctx is done.
func (c *Connection) WaitState(ctx context.Context, state ConnState) error {
	return c.stateMgr.WaitState(ctx, state)
}

// MaxPdu returns the PDU size negotiated by the last handshake, or the
// profile's proposal before the first one.
func (c *Connection) MaxPdu() int { return int(c.maxPdu.Load()) }

// Connect runs the handshake unless the connection is already Ready.
//
// Concurrent calls are serialized: the first one performs the handshake and
// the others return once it is done, without opening the transport again. A
// failed handshake closes the transport and leaves the connection
// Disconnected.
func (c *Connection) Connect(ctx context.Context) error {
	return c.connect(ctx, false)
}

// ConnectAsync runs Connect in a new goroutine and delivers its result.
func (c *Connection) ConnectAsync(ctx context.Context) <-chan error {
	ch := make(chan error, 1)
	go func() {
		ch <- c.Connect(ctx)
	}()

	return ch
}

// Close closes the transport. The next request reconnects.
func (c *Connection) Close() error {
	err := c.linker.Transport().Close()
	c.stateMgr.to(Disconnected)
	c.logger.Debug("s7conn: connection closed")

	return err
}

func (c *Connection) connect(ctx context.Context, auto bool) error {
	if err := c.handshake.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.handshake.Release(1)

	if c.IsReady() {
		return nil
	}

	if auto {
		limit := c.cfg.maxReconnect
		if attempts := int(c.metrics.ConnRetryGauge.Load()); limit > 0 && attempts >= limit {
			return fmt.Errorf("%w: %d consecutive attempts failed", ErrReconnectLimit, attempts)
		}
		c.metrics.incConnRetryGauge()
	}

	hctx, cancel := context.WithTimeout(ctx, c.cfg.connectTimeout)
	defer cancel()

	c.metrics.incHandshakeCount()
	c.logger.Debug("s7conn: start handshake", "address", c.linker.Transport().String(), "auto", auto)

	if err := c.doHandshake(hctx); err != nil {
		c.metrics.incHandshakeErrCount()
		c.teardown()
		c.logger.Warn("s7conn: handshake failed", "address", c.linker.Transport().String(), "error", err)

		return err
	}

	c.metrics.resetConnRetryGauge()
	c.stateMgr.to(Ready)
	c.logger.Info("s7conn: connection ready", "address", c.linker.Transport().String(), "maxPdu", c.MaxPdu())

	return nil
}

func (c *Connection) teardown() {
	_ = c.linker.Transport().Close()
	c.stateMgr.to(Disconnected)
}

// SendReceive formats input as a unit of the given kind, exchanges it and
// returns the unit's output struct.
//
// A connection that is not Ready is connected first. Automatic reconnects are
// capped by WithMaxReconnectAttempts; once the cap is reached ErrReconnectLimit
// is returned without any I/O until an explicit Connect succeeds.
//
// Transport and framing failures close the transport, so the next request
// reconnects. Device errors (*s7.ProtocolError) keep the connection.
func (c *Connection) SendReceive(ctx context.Context, kind s7.Kind, input any) (any, error) {
	if err := c.checkKind(kind); err != nil {
		return nil, err
	}

	unit, err := kind.Format(input)
	if err != nil {
		return nil, err
	}

	if !c.IsReady() {
		if err := c.connect(ctx, true); err != nil {
			return nil, err
		}
		// a concurrent Close may have won
		if !c.IsReady() {
			return nil, ErrNotReady
		}
	}

	resp, err := c.exchange(ctx, kind, unit)
	if err != nil {
		return nil, err
	}

	return kind.Unformat(resp)
}

// SendReceiveAsync runs SendReceive in a new goroutine and delivers its result.
func (c *Connection) SendReceiveAsync(ctx context.Context, kind s7.Kind, input any) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		out, err := c.SendReceive(ctx, kind, input)
		ch <- Result{Output: out, Err: err}
	}()

	return ch
}

func (c *Connection) checkKind(kind s7.Kind) error {
	isPPI := c.cfg.transportKind == s7.Ppi
	switch {
	case kind == s7.KindCreateReference && isPPI:
		return fmt.Errorf("%w: %s is not available on PPI", s7.ErrInvalidInput, kind)
	case kind.Serial() && !isPPI:
		return fmt.Errorf("%w: %s is only available on PPI", s7.ErrInvalidInput, kind)
	}

	return nil
}

// exchange sends a formatted unit, special units unframed.
func (c *Connection) exchange(ctx context.Context, kind s7.Kind, unit []byte) ([]byte, error) {
	c.metrics.incRequestCount()

	var (
		resp []byte
		err  error
	)
	if kind.Special() {
		resp, err = c.linker.SendReceiveRaw(ctx, unit)
	} else {
		resp, err = c.linker.SendReceive(ctx, unit)
	}

	if err != nil {
		c.metrics.incRequestErrCount()
		if link.IsTransportError(err) || errors.Is(err, link.ErrBusBusy) {
			c.logger.Warn("s7conn: exchange failed, closing transport", "unit", kind, "error", err)
			c.teardown()
		}

		return nil, err
	}

	return resp, nil
}

func (c *Connection) nextPduRef() uint16 {
	return uint16(c.pduRef.Add(1))
}
