package s7

import (
	"fmt"

	"github.com/arloliu/go-s7/codec"
)

// s7 header layout of a deframed response.
const (
	posPduRef      = 4
	posErrorClass  = 10
	posErrorCode   = 11
	posParamStart  = 12
	posItemResult  = 14
	posItemType    = 15
	posItemLength  = 16
	posItemPayload = 18

	itemSpecLen = 12 // 0x12 0x0A 0x10 type count db area offset[3]
)

var placeholder = make([]byte, PlaceholderLen)

// CreateReferenceInput holds the ISO-on-TCP connection request parameters.
type CreateReferenceInput struct {
	TdpuSize byte
	SrcTsap  uint16
	DstTsap  uint16
}

// CreateReferenceOutput holds the parameters of the connection confirm.
type CreateReferenceOutput struct {
	TdpuSize byte
	SrcTsap  uint16
	DstTsap  uint16
}

// FormatCreateReference builds a complete TPKT/COTP connection request. The
// result is already framed and is sent without Extend.
func FormatCreateReference(in CreateReferenceInput) ([]byte, error) {
	return codec.Format(
		byte(0x03), byte(0x00), uint16(22), // TPKT
		byte(0x11), COTPConnectRequest, uint16(0x0000), uint16(0x000C), byte(0x00),
		byte(0xC0), byte(0x01), in.TdpuSize,
		byte(0xC1), byte(0x02), in.SrcTsap,
		byte(0xC2), byte(0x02), in.DstTsap,
	)
}

// UnformatCreateReference parses a framed connection confirm. Parameters are
// scanned from offset 11; unknown parameter codes are skipped.
func UnformatCreateReference(b []byte) (CreateReferenceOutput, error) {
	var out CreateReferenceOutput
	if len(b) < 11 {
		return out, fmt.Errorf("%w: connection confirm of %d bytes", ErrShortMessage, len(b))
	}

	r := codec.NewReader(b)
	_ = r.Seek(11)
	for r.Len() >= 2 {
		code, _ := r.Byte()
		n, _ := r.Byte()
		val, err := r.Bytes(int(n))
		if err != nil {
			return out, fmt.Errorf("%w: parameter 0x%02X: %w", ErrShortMessage, code, err)
		}

		switch code {
		case 0xC0:
			if n > 0 {
				out.TdpuSize = val[n-1]
			}
		case 0xC1:
			out.SrcTsap = tsapValue(val)
		case 0xC2:
			out.DstTsap = tsapValue(val)
		}
	}

	return out, nil
}

func tsapValue(val []byte) uint16 {
	var v uint16
	for _, b := range val {
		v = v<<8 | uint16(b)
	}

	return v
}

// EstablishAssociationInput holds the setup-communication proposal.
type EstablishAssociationInput struct {
	PduRef     uint16
	MaxCalling uint16
	MaxCalled  uint16
	MaxPdu     uint16
}

// EstablishAssociationOutput holds the negotiated values.
type EstablishAssociationOutput struct {
	PduRef     uint16
	MaxCalling uint16
	MaxCalled  uint16
	MaxPdu     uint16
}

// FormatEstablishAssociation builds a setup-communication job.
func FormatEstablishAssociation(in EstablishAssociationInput) ([]byte, error) {
	return codec.Format(
		placeholder,
		ProtocolID, RosctrJob, uint16(0x0000), in.PduRef,
		uint16(8), uint16(0), // parameter and data length
		ServiceSetupComm, byte(0x00),
		in.MaxCalling, in.MaxCalled, in.MaxPdu,
	)
}

// UnformatEstablishAssociation parses a deframed setup-communication response.
func UnformatEstablishAssociation(b []byte) (EstablishAssociationOutput, error) {
	var out EstablishAssociationOutput
	if len(b) < posItemLength+4 {
		return out, fmt.Errorf("%w: association response of %d bytes", ErrShortMessage, len(b))
	}

	pos := posPduRef
	out.PduRef, _ = codec.GetUShort(b, &pos)

	pos = posItemResult
	out.MaxCalling, _ = codec.GetUShort(b, &pos)
	out.MaxCalled, _ = codec.GetUShort(b, &pos)
	out.MaxPdu, _ = codec.GetUShort(b, &pos)

	return out, nil
}

// ReadRequestInput describes a single-item read. Offset is a bit address.
type ReadRequestInput struct {
	PduRef           uint16
	TypeCode         DataType
	Area             byte
	Offset           int
	DbBlock          uint16
	NumberOfElements uint16
}

// NewReadRequestInput derives the area, block and bit offset from addr.
func NewReadRequestInput(pduRef uint16, addr AddressDef, typ DataType, count uint16) ReadRequestInput {
	return ReadRequestInput{
		PduRef:           pduRef,
		TypeCode:         typ,
		Area:             addr.AreaCode(),
		Offset:           addr.BitOffset(),
		DbBlock:          addr.DBBlock(),
		NumberOfElements: count,
	}
}

// ReadRequestOutput is the first item of a read response.
type ReadRequestOutput struct {
	PduRef       uint16
	AccessResult AccessResult
	DataType     TransportSize
	GetLength    int
	GetValue     []byte
}

// Err returns an *AccessError when the item was refused.
func (o ReadRequestOutput) Err() error {
	if o.AccessResult != NoError {
		return &AccessError{Result: o.AccessResult}
	}

	return nil
}

// FormatReadRequest builds a read-variable job for one item.
func FormatReadRequest(in ReadRequestInput) ([]byte, error) {
	if in.Offset < 0 || in.Offset > codec.MaxUint24 {
		return nil, fmt.Errorf("%w: bit offset %d", ErrInvalidInput, in.Offset)
	}

	return codec.Format(
		placeholder,
		ProtocolID, RosctrJob, uint16(0x0000), in.PduRef,
		uint16(2+itemSpecLen), uint16(0),
		ServiceReadVar, byte(1),
		itemSpec(in.TypeCode, in.NumberOfElements, in.DbBlock, in.Area, in.Offset),
	)
}

func itemSpec(typ DataType, count, db uint16, area byte, offset int) []any {
	return []any{
		byte(0x12), byte(itemSpecLen - 2), byte(0x10),
		byte(typ), count, db, area, codec.Uint24(offset),
	}
}

// UnformatReadRequest parses a deframed read response. A refused item yields
// an output without value and AccessResult set; callers use Err.
func UnformatReadRequest(b []byte) (ReadRequestOutput, error) {
	var out ReadRequestOutput
	if len(b) <= posItemResult {
		return out, fmt.Errorf("%w: read response of %d bytes", ErrShortMessage, len(b))
	}

	r := codec.NewReader(b)
	_ = r.Seek(posPduRef)
	out.PduRef, _ = r.Uint16()

	_ = r.Seek(posItemResult)
	res, _ := r.Byte()
	out.AccessResult = AccessResult(res)
	if out.AccessResult != NoError {
		if typ, err := r.Byte(); err == nil {
			out.DataType = TransportSize(typ)
		}

		return out, nil
	}

	typ, err := r.Byte()
	if err != nil {
		return out, fmt.Errorf("%w: read response: %w", ErrShortMessage, err)
	}
	out.DataType = TransportSize(typ)

	length, err := r.Uint16()
	if err != nil {
		return out, fmt.Errorf("%w: read response: %w", ErrShortMessage, err)
	}
	out.GetLength = out.DataType.ByteLength(length)

	out.GetValue, err = r.Bytes(out.GetLength)
	if err != nil {
		return out, fmt.Errorf("%w: read response value: %w", ErrShortMessage, err)
	}

	return out, nil
}

// WriteRequestInput describes a single-item byte write. Offset is a bit address.
type WriteRequestInput struct {
	PduRef  uint16
	Area    byte
	Offset  int
	DbBlock uint16
	Data    []byte
}

// NewWriteRequestInput derives the area, block and bit offset from addr.
func NewWriteRequestInput(pduRef uint16, addr AddressDef, data []byte) WriteRequestInput {
	return WriteRequestInput{
		PduRef:  pduRef,
		Area:    addr.AreaCode(),
		Offset:  addr.BitOffset(),
		DbBlock: addr.DBBlock(),
		Data:    data,
	}
}

// WriteRequestOutput is the first item of a write response.
type WriteRequestOutput struct {
	PduRef       uint16
	AccessResult AccessResult
}

// Err returns an *AccessError when the item was refused.
func (o WriteRequestOutput) Err() error {
	if o.AccessResult != NoError {
		return &AccessError{Result: o.AccessResult}
	}

	return nil
}

// FormatWriteRequest builds a write-variable job. The item is always sent as
// a byte array.
func FormatWriteRequest(in WriteRequestInput) ([]byte, error) {
	if in.Offset < 0 || in.Offset > codec.MaxUint24 {
		return nil, fmt.Errorf("%w: bit offset %d", ErrInvalidInput, in.Offset)
	}
	if len(in.Data)*8 > 0xFFFF {
		return nil, fmt.Errorf("%w: %d data bytes", ErrInvalidInput, len(in.Data))
	}

	n := uint16(len(in.Data))

	return codec.Format(
		placeholder,
		ProtocolID, RosctrJob, uint16(0x0000), in.PduRef,
		uint16(2+itemSpecLen), 4+n,
		ServiceWriteVar, byte(1),
		itemSpec(Byte, n, in.DbBlock, in.Area, in.Offset),
		byte(0x00), byte(TransportByte), n*8,
		in.Data,
	)
}

// UnformatWriteRequest parses a deframed write response. A one-byte reply is a
// PPI short acknowledgement: 0xE5 means success, anything else is treated as
// an invalid address.
func UnformatWriteRequest(b []byte) (WriteRequestOutput, error) {
	var out WriteRequestOutput
	if len(b) == 1 {
		if b[0] == PPIShortAck {
			out.AccessResult = NoError
		} else {
			out.AccessResult = InvalidAddress
		}

		return out, nil
	}
	if len(b) <= posItemResult {
		return out, fmt.Errorf("%w: write response of %d bytes", ErrShortMessage, len(b))
	}

	pos := posPduRef
	out.PduRef, _ = codec.GetUShort(b, &pos)
	out.AccessResult = AccessResult(b[posItemResult])

	return out, nil
}

// HeaderError extracts the error class and code of a deframed ack or
// ack-data response. It returns nil for jobs and error-free responses.
func HeaderError(b []byte) *ProtocolError {
	if len(b) < posParamStart || b[0] != ProtocolID {
		return nil
	}
	if b[1] != RosctrAck && b[1] != RosctrAckData {
		return nil
	}
	if b[posErrorClass] == 0 && b[posErrorCode] == 0 {
		return nil
	}

	return &ProtocolError{Class: b[posErrorClass], Code: b[posErrorCode]}
}
