package codec

import (
	"encoding/binary"
	"fmt"
)

// Reader is a cursor over a big-endian buffer. A failed read leaves the
// position unchanged.
type Reader struct {
	buf []byte
	pos int
}

// NewReader returns a Reader positioned at the start of buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Pos returns the current cursor position.
func (r *Reader) Pos() int { return r.pos }

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	if r.pos >= len(r.buf) {
		return 0
	}

	return len(r.buf) - r.pos
}

// Seek moves the cursor to an absolute position within the buffer.
func (r *Reader) Seek(pos int) error {
	if pos < 0 || pos > len(r.buf) {
		return fmt.Errorf("%w: seek to %d, buffer length %d", ErrOutOfRange, pos, len(r.buf))
	}
	r.pos = pos

	return nil
}

// Skip advances the cursor by n bytes.
func (r *Reader) Skip(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.pos += n

	return nil
}

func (r *Reader) Byte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++

	return v, nil
}

func (r *Reader) Uint16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2

	return v, nil
}

func (r *Reader) Uint24() (Uint24, error) {
	if err := r.need(3); err != nil {
		return 0, err
	}
	b := r.buf[r.pos : r.pos+3]
	r.pos += 3

	return Uint24(uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])), nil
}

func (r *Reader) Uint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4

	return v, nil
}

// Bytes returns a copy of the next n bytes.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+n])
	r.pos += n

	return out, nil
}

func (r *Reader) need(n int) error {
	if n < 0 || r.pos < 0 || r.pos+n > len(r.buf) {
		return fmt.Errorf("%w: need %d bytes at %d, buffer length %d", ErrOutOfRange, n, r.pos, len(r.buf))
	}

	return nil
}
