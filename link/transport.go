package link

import (
	"context"
	"io"
	"time"
)

// FrameReader reads exactly one frame from r.
type FrameReader func(r io.Reader) ([]byte, error)

// Transport is a byte-stream connection to one device.
//
// Send and Receive are not safe for concurrent use; the Linker serializes them.
// Close may be called at any time.
type Transport interface {
	// Open establishes the connection. Opening an open transport is a no-op.
	Open(ctx context.Context) error
	// Close releases the connection. Closing a closed transport is a no-op.
	Close() error
	// IsOpen reports whether the transport is open.
	IsOpen() bool
	// Send writes frame completely.
	Send(ctx context.Context, frame []byte) error
	// Receive reads one frame using read.
	Receive(ctx context.Context, read FrameReader) ([]byte, error)
	// String describes the endpoint, for logging.
	String() string
}

// ioDeadline returns the earlier of now+timeout and the context deadline. It
// returns the zero time when neither applies.
func ioDeadline(ctx context.Context, timeout time.Duration) time.Time {
	var d time.Time
	if timeout > 0 {
		d = time.Now().Add(timeout)
	}
	if dl, ok := ctx.Deadline(); ok && (d.IsZero() || dl.Before(d)) {
		d = dl
	}

	return d
}

func writeAll(w io.Writer, data []byte) error {
	for written := 0; written < len(data); {
		n, err := w.Write(data[written:])
		written += n

		if err != nil {
			return err
		}
	}

	return nil
}
