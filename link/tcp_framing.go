package link

import (
	"fmt"
	"io"

	"github.com/arloliu/go-s7/codec"
	"github.com/arloliu/go-s7/s7"
)

const (
	tpktVersion   = 0x03
	tpktHeaderLen = 4
	minTPKTLen    = 7
	maxTPKTLen    = 0xFFFF
)

// TCPFraming is the TPKT (RFC 1006) and COTP data framing of ISO-on-TCP.
type TCPFraming struct{}

var _ Framing = TCPFraming{}

// Extend overwrites the unit's 7-byte placeholder with the TPKT header and the
// COTP data header.
func (TCPFraming) Extend(unit []byte) ([]byte, error) {
	if len(unit) < s7.PlaceholderLen {
		return nil, fmt.Errorf("%w: unit of %d bytes has no header placeholder", ErrFrame, len(unit))
	}
	if len(unit) > maxTPKTLen {
		return nil, fmt.Errorf("%w: unit of %d bytes exceeds the TPKT maximum", ErrFrame, len(unit))
	}

	header := codec.MustFormat(
		byte(tpktVersion), byte(0x00), uint16(len(unit)),
		byte(0x02), s7.COTPData, byte(0x80),
	)

	frame := make([]byte, len(unit))
	copy(frame, header)
	copy(frame[s7.PlaceholderLen:], unit[s7.PlaceholderLen:])

	return frame, nil
}

// Deflate strips the TPKT and COTP headers.
func (TCPFraming) Deflate(frame []byte) []byte {
	if len(frame) <= s7.PlaceholderLen {
		return nil
	}

	return frame[s7.PlaceholderLen:]
}

// Check accepts connection confirms and error-free S7 data frames. A
// negative acknowledgement yields *s7.ProtocolError.
func (TCPFraming) Check(frame []byte) error {
	if len(frame) < 6 {
		return fmt.Errorf("%w: %d bytes", ErrFrame, len(frame))
	}

	switch frame[5] {
	case s7.COTPConnectConfirm, s7.COTPConnectRequest:
		return nil
	case s7.COTPData:
	default:
		return fmt.Errorf("%w: unexpected COTP PDU type 0x%02X", ErrFrame, frame[5])
	}

	if len(frame) < 9 {
		return fmt.Errorf("%w: data frame of %d bytes", ErrFrame, len(frame))
	}

	var at int
	switch frame[8] {
	case s7.RosctrJob, s7.RosctrAck, s7.RosctrAckData:
		at = 17
	case s7.RosctrUserData:
		at = 27
	default:
		return fmt.Errorf("%w: unexpected ROSCTR 0x%02X", ErrFrame, frame[8])
	}

	if len(frame) < at+2 {
		return fmt.Errorf("%w: %d bytes, error field at %d", ErrFrame, len(frame), at)
	}
	if frame[at] != 0 || frame[at+1] != 0 {
		return &s7.ProtocolError{Class: frame[at], Code: frame[at+1]}
	}

	return nil
}

// ReadFrame reads one TPKT.
func (TCPFraming) ReadFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, tpktHeaderLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	if header[0] != tpktVersion {
		return nil, fmt.Errorf("%w: TPKT version 0x%02X", ErrFrame, header[0])
	}

	pos := 2
	length, _ := codec.GetUShort(header, &pos)
	if length < minTPKTLen {
		return nil, fmt.Errorf("%w: TPKT length %d", ErrFrame, length)
	}

	frame := make([]byte, length)
	copy(frame, header)
	if _, err := io.ReadFull(r, frame[tpktHeaderLen:]); err != nil {
		return nil, err
	}

	return frame, nil
}
