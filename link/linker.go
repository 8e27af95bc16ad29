package link

import (
	"context"
	"sync"

	"github.com/arloliu/go-s7/logger"
)

// Linker performs request/response exchanges over a Transport.
type Linker struct {
	transport Transport
	framing   Framing
	logger    logger.Logger
	metrics   Metrics

	mu sync.Mutex
}

// NewLinker composes transport and framing.
func NewLinker(transport Transport, framing Framing, l logger.Logger) *Linker {
	if l == nil {
		l = logger.GetLogger()
	}

	return &Linker{
		transport: transport,
		framing:   framing,
		logger:    l,
	}
}

// Transport returns the underlying transport.
func (l *Linker) Transport() Transport { return l.transport }

// Framing returns the framing in use.
func (l *Linker) Framing() Framing { return l.framing }

// Metrics returns the linker counters.
func (l *Linker) Metrics() *Metrics { return &l.metrics }

// SendReceive frames unit, exchanges it and returns the deframed response.
func (l *Linker) SendReceive(ctx context.Context, unit []byte) ([]byte, error) {
	frame, err := l.framing.Extend(unit)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	resp, err := l.exchange(ctx, frame)
	if err != nil {
		return nil, err
	}

	if rec, ok := l.framing.(Recoverer); ok {
		resp, err = rec.Recover(ctx, frame, resp, l.exchange, &l.metrics)
		if err != nil {
			l.metrics.incFrameErrCount()
			return nil, err
		}
	}

	if err := l.check(resp); err != nil {
		return nil, err
	}

	return l.framing.Deflate(resp), nil
}

// SendReceiveRaw sends a complete frame and returns the validated response
// with its framing.
func (l *Linker) SendReceiveRaw(ctx context.Context, frame []byte) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	resp, err := l.exchange(ctx, frame)
	if err != nil {
		return nil, err
	}

	if err := l.check(resp); err != nil {
		return nil, err
	}

	return resp, nil
}

func (l *Linker) exchange(ctx context.Context, frame []byte) ([]byte, error) {
	l.logger.Debug("send frame", "transport", l.transport.String(), "frame", frame)

	if err := l.transport.Send(ctx, frame); err != nil {
		l.metrics.incFrameErrCount()
		return nil, err
	}
	l.metrics.incFrameSendCount()

	resp, err := l.transport.Receive(ctx, l.framing.ReadFrame)
	if err != nil {
		l.metrics.incFrameErrCount()
		return nil, err
	}
	l.metrics.incFrameRecvCount()

	l.logger.Debug("recv frame", "transport", l.transport.String(), "frame", resp)

	return resp, nil
}

func (l *Linker) check(resp []byte) error {
	if err := l.framing.Check(resp); err != nil {
		l.metrics.incFrameErrCount()
		l.logger.Debug("response rejected", "transport", l.transport.String(), "error", err)

		return err
	}

	return nil
}
