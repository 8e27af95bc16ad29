// Package codec converts ordered lists of typed fields to and from big-endian
// byte sequences. The S7 family is always "most significant byte first" on the
// wire, independent of the host byte order, so nothing here is configurable.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrOutOfRange is returned when a read would run past the end of the buffer.
	ErrOutOfRange = errors.New("codec: read out of range")

	// ErrUnsupportedType is returned by Format for a field of unknown type.
	ErrUnsupportedType = errors.New("codec: unsupported field type")
)

// Uint24 is an unsigned value written as 3 big-endian bytes, as used by S7 bit addresses.
type Uint24 uint32

// MaxUint24 is the largest value a Uint24 can carry on the wire.
const MaxUint24 = 1<<24 - 1

// Format concatenates the big-endian encoding of each field in argument order.
//
// Supported fields are byte/uint8, int8, bool, uint16, int16, uint32, int32,
// uint64, int64, float32, float64, Uint24, []byte and []any; slices are spliced in
// place, []any recursively. Plain int and uint take 4 bytes and fail when the
// value does not fit. The result length is the sum of the field widths.
func Format(fields ...any) ([]byte, error) {
	buf := make([]byte, 0, 32)

	return appendFields(buf, fields)
}

// MustFormat is like Format but panics on an unsupported field. It is meant for
// message layouts whose field types are fixed at compile time.
func MustFormat(fields ...any) []byte {
	buf, err := Format(fields...)
	if err != nil {
		panic(err)
	}

	return buf
}

// ObjectArrayToByteArray converts a heterogeneous list of write values into its
// wire encoding with the field rules of Format. bool values take one byte
// (0 or 1), int and uint take 4 bytes (S7 DINT/DWORD); use int16 or uint16
// for INT and WORD.
func ObjectArrayToByteArray(values []any) ([]byte, error) {
	return appendFields(make([]byte, 0, len(values)*2), values)
}

func appendFields(buf []byte, fields []any) ([]byte, error) {
	var err error
	for i, f := range fields {
		buf, err = appendField(buf, f)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
	}

	return buf, nil
}

func appendField(buf []byte, f any) ([]byte, error) {
	switch v := f.(type) {
	case byte:
		return append(buf, v), nil
	case int8:
		return append(buf, byte(v)), nil
	case bool:
		if v {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil
	case uint16:
		return binary.BigEndian.AppendUint16(buf, v), nil
	case int16:
		return binary.BigEndian.AppendUint16(buf, uint16(v)), nil
	case Uint24:
		if v > MaxUint24 {
			return nil, fmt.Errorf("codec: uint24 value %d overflows 3 bytes", v)
		}
		return append(buf, byte(v>>16), byte(v>>8), byte(v)), nil
	case uint32:
		return binary.BigEndian.AppendUint32(buf, v), nil
	case int32:
		return binary.BigEndian.AppendUint32(buf, uint32(v)), nil
	case uint64:
		return binary.BigEndian.AppendUint64(buf, v), nil
	case int64:
		return binary.BigEndian.AppendUint64(buf, uint64(v)), nil
	case int:
		if v < math.MinInt32 || v > math.MaxInt32 {
			return nil, fmt.Errorf("codec: int value %d overflows 4 bytes", v)
		}
		return binary.BigEndian.AppendUint32(buf, uint32(int32(v))), nil
	case uint:
		if v > math.MaxUint32 {
			return nil, fmt.Errorf("codec: uint value %d overflows 4 bytes", v)
		}
		return binary.BigEndian.AppendUint32(buf, uint32(v)), nil
	case float32:
		return binary.BigEndian.AppendUint32(buf, math.Float32bits(v)), nil
	case float64:
		return binary.BigEndian.AppendUint64(buf, math.Float64bits(v)), nil
	case []byte:
		return append(buf, v...), nil
	case []any:
		return appendFields(buf, v)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, f)
	}
}

// GetByte reads one byte at *pos and advances *pos by 1.
func GetByte(buf []byte, pos *int) (byte, error) {
	r := Reader{buf: buf, pos: *pos}
	v, err := r.Byte()
	*pos = r.pos

	return v, err
}

// GetUShort reads a big-endian uint16 at *pos and advances *pos by 2.
func GetUShort(buf []byte, pos *int) (uint16, error) {
	r := Reader{buf: buf, pos: *pos}
	v, err := r.Uint16()
	*pos = r.pos

	return v, err
}

// GetUInt reads a big-endian uint32 at *pos and advances *pos by 4.
func GetUInt(buf []byte, pos *int) (uint32, error) {
	r := Reader{buf: buf, pos: *pos}
	v, err := r.Uint32()
	*pos = r.pos

	return v, err
}

// GetBytes returns a copy of n bytes at *pos and advances *pos by n.
func GetBytes(buf []byte, pos *int, n int) ([]byte, error) {
	r := Reader{buf: buf, pos: *pos}
	v, err := r.Bytes(n)
	*pos = r.pos

	return v, err
}
