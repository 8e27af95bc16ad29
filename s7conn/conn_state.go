package s7conn

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-s7/logger"
)

// ConnState represents the handshake stage of a connection.
type ConnState uint32

const (
	// Disconnected indicates that no transport is open.
	Disconnected ConnState = iota
	// TransportConnecting indicates that the socket or serial port is being opened.
	TransportConnecting
	// ReferenceEstablishing indicates that the ISO connection (or PPI link) is being requested.
	ReferenceEstablishing
	// AssociationEstablishing indicates that the S7 communication setup (or PPI confirm) is running.
	AssociationEstablishing
	// Ready indicates that requests can be exchanged.
	Ready
)

// String returns string representation of the state.
func (cs ConnState) String() string {
	switch cs {
	case Disconnected:
		return "disconnected"
	case TransportConnecting:
		return "transport-connecting"
	case ReferenceEstablishing:
		return "reference-establishing"
	case AssociationEstablishing:
		return "association-establishing"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// IsReady returns if the state is Ready.
func (cs ConnState) IsReady() bool { return cs == Ready }

// ConnStateChangeHandler is invoked on every state change of a connection.
//
// Note: the handler is invoked synchronously on the goroutine that changes
// the state. Take care with long-running implementations.
type ConnStateChangeHandler func(conn *Connection, prevState ConnState, newState ConnState)

// connStateMgr holds the state of a connection and notifies handlers.
type connStateMgr struct {
	mu       sync.Mutex
	cond     *sync.Cond
	state    atomic.Uint32
	conn     *Connection
	logger   logger.Logger
	handlers []ConnStateChangeHandler
}

func newConnStateMgr(conn *Connection, l logger.Logger) *connStateMgr {
	cs := &connStateMgr{conn: conn, logger: l}
	cs.cond = sync.NewCond(&cs.mu)
	cs.state.Store(uint32(Disconnected))

	return cs
}

func (cs *connStateMgr) State() ConnState {
	return ConnState(cs.state.Load())
}

func (cs *connStateMgr) AddHandler(handlers ...ConnStateChangeHandler) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.handlers = append(cs.handlers, handlers...)
}

// WaitState waits for the state or until the context is done.
func (cs *connStateMgr) WaitState(ctx context.Context, state ConnState) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.State() == state {
		return nil
	}

	stopFunc := context.AfterFunc(ctx, func() {
		cs.mu.Lock()
		defer cs.mu.Unlock()
		cs.cond.Broadcast()
	})
	defer stopFunc()

	for cs.State() != state {
		if err := ctx.Err(); err != nil {
			return err
		}
		cs.cond.Wait()
	}

	return nil
}

// to moves to newState and invokes the handlers. Moving to the current state
// is a no-op.
func (cs *connStateMgr) to(newState ConnState) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	prevState := cs.State()
	if prevState == newState {
		return
	}

	cs.state.Store(uint32(newState))
	cs.cond.Broadcast()

	cs.logger.Debug("connection state changed", "prevState", prevState, "newState", newState)

	for _, handler := range cs.handlers {
		if handler != nil {
			handler(cs.conn, prevState, newState)
		}
	}
}
