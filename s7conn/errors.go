package s7conn

import "errors"

var (
	// ErrInvalidConfig is returned by NewConnectionConfig and the options for invalid settings.
	ErrInvalidConfig = errors.New("s7conn: invalid connection config")
	// ErrUnsupportedTransport is returned for transports this package cannot drive (MPI).
	ErrUnsupportedTransport = errors.New("s7conn: unsupported transport")
	// ErrReconnectLimit is returned once automatic reconnects have failed too many times in a row.
	ErrReconnectLimit = errors.New("s7conn: reconnect attempt limit reached")
	// ErrNotReady is returned when the connection is closed while a request is connecting it.
	ErrNotReady = errors.New("s7conn: connection not ready")
	// ErrHandshake is returned when the device answers a handshake step unexpectedly.
	ErrHandshake = errors.New("s7conn: handshake rejected")
	// ErrPduRefMismatch is returned when a response carries another request's PDU reference.
	ErrPduRefMismatch = errors.New("s7conn: PDU reference mismatch")
)
