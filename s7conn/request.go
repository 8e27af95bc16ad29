package s7conn

import (
	"context"
	"fmt"

	"github.com/arloliu/go-s7/codec"
	"github.com/arloliu/go-s7/s7"
)

// S7 overhead of a single-item request or response, used to split transfers
// that do not fit the negotiated PDU size.
const (
	readResponseOverhead = 18 // header 12, parameters 2, item header 4
	writeRequestOverhead = 28 // header 10, parameters 14, item header 4
)

// CreateReference sends the ISO-on-TCP connection request of the device
// profile and returns the confirm parameters.
func (c *Connection) CreateReference(ctx context.Context) (s7.CreateReferenceOutput, error) {
	v, err := c.SendReceive(ctx, s7.KindCreateReference, c.cfg.profile.CreateReferenceInput())
	if err != nil {
		return s7.CreateReferenceOutput{}, err
	}

	return v.(s7.CreateReferenceOutput), nil
}

// EstablishAssociation sends the communication setup of the device profile and
// returns the negotiated values.
func (c *Connection) EstablishAssociation(ctx context.Context) (s7.EstablishAssociationOutput, error) {
	in := c.cfg.profile.EstablishAssociationInput(c.nextPduRef())

	v, err := c.SendReceive(ctx, s7.KindEstablishAssociation, in)
	if err != nil {
		return s7.EstablishAssociationOutput{}, err
	}

	out := v.(s7.EstablishAssociationOutput)
	if err := c.checkPduRef(in.PduRef, out.PduRef); err != nil {
		return out, err
	}

	return out, nil
}

// ReadRequest sends a read request. A refused item returns the output along
// with an *s7.AccessError.
func (c *Connection) ReadRequest(ctx context.Context, in s7.ReadRequestInput) (s7.ReadRequestOutput, error) {
	v, err := c.SendReceive(ctx, s7.KindRead, in)
	if err != nil {
		return s7.ReadRequestOutput{}, err
	}

	out := v.(s7.ReadRequestOutput)
	if err := c.checkPduRef(in.PduRef, out.PduRef); err != nil {
		return out, err
	}

	return out, out.Err()
}

// WriteRequest sends a write request. A refused item returns the output along
// with an *s7.AccessError.
func (c *Connection) WriteRequest(ctx context.Context, in s7.WriteRequestInput) (s7.WriteRequestOutput, error) {
	v, err := c.SendReceive(ctx, s7.KindWrite, in)
	if err != nil {
		return s7.WriteRequestOutput{}, err
	}

	out := v.(s7.WriteRequestOutput)
	if err := c.checkPduRef(in.PduRef, out.PduRef); err != nil {
		return out, err
	}

	return out, out.Err()
}

// ReadBytes reads n bytes starting at addr, e.g. "DB1 100" or "V 0". Reads
// larger than the negotiated PDU are split.
func (c *Connection) ReadBytes(ctx context.Context, addr string, n int) ([]byte, error) {
	def, err := s7.TranslateAddress(addr)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: read of %d bytes", s7.ErrInvalidInput, n)
	}

	data := make([]byte, 0, n)
	for len(data) < n {
		chunk := min(n-len(data), c.chunkSize(readResponseOverhead))

		part := def
		part.Address += len(data)

		out, err := c.ReadRequest(ctx, s7.NewReadRequestInput(c.nextPduRef(), part, s7.Byte, uint16(chunk)))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", part, err)
		}
		if len(out.GetValue) != chunk {
			return nil, fmt.Errorf("%w: read %s returned %d of %d bytes", s7.ErrShortMessage, part, len(out.GetValue), chunk)
		}
		data = append(data, out.GetValue...)
	}

	return data, nil
}

// ReadBool reads the bit at addr, e.g. "M 10.3".
func (c *Connection) ReadBool(ctx context.Context, addr string) (bool, error) {
	def, err := s7.TranslateAddress(addr)
	if err != nil {
		return false, err
	}

	out, err := c.ReadRequest(ctx, s7.NewReadRequestInput(c.nextPduRef(), def, s7.Bit, 1))
	if err != nil {
		return false, fmt.Errorf("read %s: %w", def, err)
	}
	if len(out.GetValue) == 0 {
		return false, fmt.Errorf("%w: read %s returned no value", s7.ErrShortMessage, def)
	}

	return out.GetValue[0]&0x01 != 0, nil
}

// WriteBytes writes data starting at addr. Writes larger than the negotiated
// PDU are split.
func (c *Connection) WriteBytes(ctx context.Context, addr string, data []byte) error {
	def, err := s7.TranslateAddress(addr)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: empty write", s7.ErrInvalidInput)
	}

	for written := 0; written < len(data); {
		chunk := min(len(data)-written, c.chunkSize(writeRequestOverhead))

		part := def
		part.Address += written

		in := s7.NewWriteRequestInput(c.nextPduRef(), part, data[written:written+chunk])
		if _, err := c.WriteRequest(ctx, in); err != nil {
			return fmt.Errorf("write %s: %w", part, err)
		}
		written += chunk
	}

	return nil
}

// WriteValues encodes values big-endian (bool as one byte) and writes them
// contiguously starting at addr.
func (c *Connection) WriteValues(ctx context.Context, addr string, values ...any) error {
	data, err := codec.ObjectArrayToByteArray(values)
	if err != nil {
		return fmt.Errorf("%w: %w", s7.ErrInvalidInput, err)
	}

	return c.WriteBytes(ctx, addr, data)
}

// checkPduRef verifies request correlation on TCP. PPI short acknowledgements
// carry no reference.
func (c *Connection) checkPduRef(want, got uint16) error {
	if c.cfg.transportKind != s7.Tcp || want == got {
		return nil
	}

	return fmt.Errorf("%w: sent %d, received %d", ErrPduRefMismatch, want, got)
}

func (c *Connection) chunkSize(overhead int) int {
	if size := c.MaxPdu() - overhead; size > 0 {
		return size
	}

	return 1
}
