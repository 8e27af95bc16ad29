package link

import (
	"context"
	"io"
)

// Framing wraps S7 units for one transport kind.
type Framing interface {
	// Extend turns a unit produced by package s7 into a wire frame.
	Extend(unit []byte) ([]byte, error)
	// Deflate strips the framing of a validated response.
	Deflate(frame []byte) []byte
	// Check validates a response frame.
	Check(frame []byte) error
	// ReadFrame reads one response frame from r.
	ReadFrame(r io.Reader) ([]byte, error)
}

// Exchange sends one frame and returns the next frame received.
type Exchange func(ctx context.Context, frame []byte) ([]byte, error)

// Recoverer is implemented by framings whose devices answer with transient
// replies that need follow-up requests before the real response arrives.
type Recoverer interface {
	// Recover returns the effective response to request, given its first
	// response. It may perform further exchanges.
	Recover(ctx context.Context, request, response []byte, exchange Exchange, m *Metrics) ([]byte, error)
}
