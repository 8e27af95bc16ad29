package s7

import (
	"fmt"
)

// PPI frame delimiters and function codes.
const (
	PPIShortAck byte = 0xE5
	PPIBusy     byte = 0xF9
	PPISD1      byte = 0x10
	PPISD2      byte = 0x68
	PPIEnd      byte = 0x16

	FuncCreateReference byte = 0x49
	FuncConfirm         byte = 0x5C
	FuncSendData        byte = 0x6C
)

// PPIEnvelopeLen is the number of bytes SealPPI adds around an S7 PDU.
const PPIEnvelopeLen = PlaceholderLen + 2

// ComCreateReferenceInput addresses the PPI link request.
type ComCreateReferenceInput struct {
	SlaveAddress  byte
	MasterAddress byte
}

// ComConfirmMessageInput addresses the PPI confirm (fetch) request.
type ComConfirmMessageInput struct {
	SlaveAddress  byte
	MasterAddress byte
}

// ComOutput is the reply to a PPI control frame.
type ComOutput struct {
	SlaveAddress  byte
	MasterAddress byte
	ShortAck      bool
}

// FormatComCreateReference builds the SD1 link request.
func FormatComCreateReference(in ComCreateReferenceInput) ([]byte, error) {
	return sd1Frame(in.SlaveAddress, in.MasterAddress, FuncCreateReference), nil
}

// FormatComConfirmMessage builds the SD1 confirm request used to fetch a
// pending reply from the slave.
func FormatComConfirmMessage(in ComConfirmMessageInput) ([]byte, error) {
	return sd1Frame(in.SlaveAddress, in.MasterAddress, FuncConfirm), nil
}

// ConfirmFrame builds an SD1 confirm request.
func ConfirmFrame(slave, master byte) []byte {
	return sd1Frame(slave, master, FuncConfirm)
}

func sd1Frame(slave, master, fc byte) []byte {
	return []byte{PPISD1, slave, master, fc, slave + master + fc, PPIEnd}
}

// UnformatCom parses the reply to a PPI control frame. The reply to an SD1
// request comes from the slave, so its source address is at byte 2.
func UnformatCom(b []byte) (ComOutput, error) {
	switch {
	case len(b) == 1 && b[0] == PPIShortAck:
		return ComOutput{ShortAck: true}, nil
	case len(b) == 6 && b[0] == PPISD1:
		return ComOutput{SlaveAddress: b[2], MasterAddress: b[1]}, nil
	case len(b) > PPIEnvelopeLen && b[0] == PPISD2:
		return ComOutput{SlaveAddress: b[5], MasterAddress: b[4]}, nil
	case len(b) < 6:
		return ComOutput{}, fmt.Errorf("%w: PPI reply of %d bytes", ErrShortMessage, len(b))
	default:
		return ComOutput{}, fmt.Errorf("%w: PPI reply starting with 0x%02X", ErrUnexpectedMessage, b[0])
	}
}

// PPIChecksum returns the frame check sequence of b: the byte sum modulo 256.
func PPIChecksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}

	return sum
}

// SealPPI wraps an Ethernet-style unit in the PPI SD2 envelope. The 7-byte
// placeholder becomes "68 LE LE 68 DA SA 6C" and the checksum and end
// delimiter are appended.
func SealPPI(frame []byte, slave, master byte) ([]byte, error) {
	if len(frame) < PlaceholderLen {
		return nil, fmt.Errorf("%w: frame of %d bytes has no placeholder", ErrInvalidInput, len(frame))
	}
	le := len(frame) - 4
	if le > 0xFF {
		return nil, fmt.Errorf("%w: frame of %d bytes exceeds the PPI maximum", ErrInvalidInput, len(frame))
	}

	out := make([]byte, len(frame)+2)
	copy(out, frame)
	out[0], out[1], out[2], out[3] = PPISD2, byte(le), byte(le), PPISD2
	out[4], out[5], out[6] = slave, master, FuncSendData
	out[len(frame)] = PPIChecksum(out[4:len(frame)])
	out[len(frame)+1] = PPIEnd

	return out, nil
}
