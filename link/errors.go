package link

import (
	"errors"
	"fmt"
)

var (
	// ErrFrame is returned for a response whose framing is malformed.
	ErrFrame = errors.New("link: malformed frame")
	// ErrChecksum is returned when a PPI frame check sequence does not match.
	ErrChecksum = errors.New("link: checksum mismatch")
	// ErrBusBusy is returned when a PPI device stays busy beyond the retry limit.
	ErrBusBusy = errors.New("link: device bus busy")
	// ErrNotOpen is returned by Send and Receive on a closed transport.
	ErrNotOpen = errors.New("link: transport not open")
)

// TransportError reports an I/O failure of the underlying transport.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("link: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransportError reports whether err is caused by the transport or the
// framing, that is whether the connection state is no longer trustworthy.
func IsTransportError(err error) bool {
	var te *TransportError

	return errors.As(err, &te) || errors.Is(err, ErrFrame) || errors.Is(err, ErrChecksum)
}
