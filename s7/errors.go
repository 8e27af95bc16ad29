package s7

import (
	"errors"
	"fmt"
)

var (
	// ErrShortMessage is returned when a response is too short for its layout.
	ErrShortMessage = errors.New("s7: message too short")
	// ErrUnexpectedMessage is returned when a response does not match the expected unit.
	ErrUnexpectedMessage = errors.New("s7: unexpected message")
	// ErrInvalidInput is returned when a unit is formatted from a wrong input type or value.
	ErrInvalidInput = errors.New("s7: invalid unit input")
	// ErrUnknownModel is returned for device models without a handshake profile.
	ErrUnknownModel = errors.New("s7: unknown device model")
	// ErrUnknownTransport is returned when a transport kind name cannot be parsed.
	ErrUnknownTransport = errors.New("s7: unknown transport kind")
)

var errorClasses = map[byte]string{
	0x00: "no error",
	0x81: "error in the application id of the request",
	0x82: "error in the object definition",
	0x83: "no resources available",
	0x84: "error in the structure of the service request",
	0x85: "error in the communication equipment",
	0x87: "access error",
	0xD2: "OVS error",
	0xD4: "diagnostic error",
	0xD6: "protection system error",
	0xD8: "BuB error",
	0xEF: "layer 2 specific error",
}

var errorDetails = map[uint16]string{
	0x8104: "context is not supported",
	0x8304: "no resources for new association",
	0x8404: "service or function not allowed",
	0x8500: "PDU size exceeds the negotiated maximum",
	0xD201: "syntax error in block name",
	0xD202: "syntax error in function parameter",
	0xD209: "requested block does not exist",
	0xD241: "block is protected by a password",
	0xD602: "password is incorrect",
	0xD604: "protection level too low for this job",
	0xEF01: "wrong job identifier",
}

// ErrorClassText returns the description of an error class.
func ErrorClassText(class byte) string {
	if text, ok := errorClasses[class]; ok {
		return text
	}

	return "Unknown error"
}

// ProtocolError is a negative acknowledgement from the device, carried in the
// error class and code bytes of an ack or ack-data header.
type ProtocolError struct {
	Class byte
	Code  byte
}

// Category returns the error-class description.
func (e *ProtocolError) Category() string { return ErrorClassText(e.Class) }

// Detail returns the description of the class/code pair, or "" when unknown.
func (e *ProtocolError) Detail() string {
	return errorDetails[uint16(e.Class)<<8|uint16(e.Code)]
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("s7: device error class 0x%02X code 0x%02X: %s", e.Class, e.Code, e.Category())
	if detail := e.Detail(); detail != "" {
		msg += ": " + detail
	}

	return msg
}

// AccessError reports a read or write item that the device refused.
type AccessError struct {
	Result AccessResult
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("s7: item access failed: %s (0x%02X)", e.Result, byte(e.Result))
}
