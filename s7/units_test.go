package s7

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zeros(n int) []byte { return make([]byte, n) }

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}

	return out
}

func TestFormatCreateReference(t *testing.T) {
	p, err := ProfileFor(S7_300)
	require.NoError(t, err)

	b, err := KindCreateReference.Format(p.CreateReferenceInput())
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x03, 0x00, 0x00, 0x16, 0x11, 0xE0, 0x00, 0x00, 0x00, 0x0C, 0x00,
		0xC0, 0x01, 0x0A, 0xC1, 0x02, 0x01, 0x01, 0xC2, 0x02, 0x03, 0x02,
	}, b)
	assert.Len(t, b, 22)
}

func TestUnformatCreateReference(t *testing.T) {
	cc := []byte{
		0x03, 0x00, 0x00, 0x19, 0x14, 0xD0, 0x00, 0x01, 0x00, 0x0C, 0x00,
		0xC3, 0x01, 0xFF, // unknown parameter
		0xC0, 0x01, 0x0A, 0xC1, 0x02, 0x10, 0x01, 0xC2, 0x02, 0x03, 0x01,
	}

	out, err := KindCreateReference.Unformat(cc)
	require.NoError(t, err)
	assert.Equal(t, CreateReferenceOutput{TdpuSize: 0x0A, SrcTsap: 0x1001, DstTsap: 0x0301}, out)

	_, err = UnformatCreateReference(cc[:10])
	require.ErrorIs(t, err, ErrShortMessage)

	_, err = UnformatCreateReference(cc[:len(cc)-1])
	require.ErrorIs(t, err, ErrShortMessage)
}

func TestEstablishAssociation(t *testing.T) {
	p, err := ProfileFor(S7_1200)
	require.NoError(t, err)

	b, err := KindEstablishAssociation.Format(p.EstablishAssociationInput(0x0007))
	require.NoError(t, err)
	assert.Equal(t, concat(zeros(7), []byte{
		0x32, 0x01, 0x00, 0x00, 0x00, 0x07, 0x00, 0x08, 0x00, 0x00,
		0xF0, 0x00, 0x00, 0x03, 0x00, 0x03, 0x01, 0x00,
	}), b)
	assert.Len(t, b, 25)

	resp := []byte{
		0x32, 0x03, 0x00, 0x00, 0x00, 0x07, 0x00, 0x08, 0x00, 0x00, 0x00, 0x00,
		0xF0, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0xF0,
	}
	out, err := KindEstablishAssociation.Unformat(resp)
	require.NoError(t, err)
	assert.Equal(t, EstablishAssociationOutput{PduRef: 7, MaxCalling: 1, MaxCalled: 1, MaxPdu: 0xF0}, out)

	_, err = UnformatEstablishAssociation(resp[:19])
	require.ErrorIs(t, err, ErrShortMessage)
}

func TestFormatReadRequest(t *testing.T) {
	in := NewReadRequestInput(0x0102, MustTranslateAddress("M 10.3"), Bit, 1)
	assert.Equal(t, 83, in.Offset)

	b, err := KindRead.Format(in)
	require.NoError(t, err)
	assert.Equal(t, concat(zeros(7), []byte{
		0x32, 0x01, 0x00, 0x00, 0x01, 0x02, 0x00, 0x0E, 0x00, 0x00,
		0x04, 0x01,
		0x12, 0x0A, 0x10, 0x01, 0x00, 0x01, 0x00, 0x00, 0x83, 0x00, 0x00, 0x53,
	}), b)

	dbIn := NewReadRequestInput(1, MustTranslateAddress("DB5 100"), Byte, 4)
	b, err = KindRead.Format(&dbIn)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x00, 0x04, 0x00, 0x05, 0x84, 0x00, 0x03, 0x20}, b[22:])

	_, err = FormatReadRequest(ReadRequestInput{Offset: 1 << 24})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestUnformatReadRequest(t *testing.T) {
	header := []byte{0x32, 0x03, 0x00, 0x00, 0x01, 0x02, 0x00, 0x02, 0x00, 0x06, 0x00, 0x00, 0x04, 0x01}

	tests := []struct {
		name string
		item []byte
		typ  TransportSize
		want []byte
	}{
		{"bytes", []byte{0xFF, 0x04, 0x00, 0x10, 0x12, 0x34}, TransportByte, []byte{0x12, 0x34}},
		{"bit", []byte{0xFF, 0x03, 0x00, 0x01, 0x01}, TransportBit, []byte{0x01}},
		{"octet", []byte{0xFF, 0x09, 0x00, 0x03, 0x01, 0x02, 0x03}, TransportOctet, []byte{0x01, 0x02, 0x03}},
		{"real", []byte{0xFF, 0x07, 0x00, 0x04, 0x3F, 0x80, 0x00, 0x00}, TransportReal, []byte{0x3F, 0x80, 0x00, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := KindRead.Unformat(concat(header, tt.item))
			require.NoError(t, err)

			out, ok := v.(ReadRequestOutput)
			require.True(t, ok)
			assert.Equal(t, uint16(0x0102), out.PduRef)
			assert.Equal(t, NoError, out.AccessResult)
			assert.Equal(t, tt.typ, out.DataType)
			assert.Equal(t, len(tt.want), out.GetLength)
			assert.Equal(t, tt.want, out.GetValue)
			require.NoError(t, out.Err())
		})
	}
}

func TestUnformatReadRequest_Refused(t *testing.T) {
	resp := []byte{0x32, 0x03, 0x00, 0x00, 0x00, 0x09, 0x00, 0x02, 0x00, 0x04, 0x00, 0x00, 0x04, 0x01, 0x05, 0x00, 0x00, 0x00}

	out, err := UnformatReadRequest(resp)
	require.NoError(t, err)
	assert.Equal(t, InvalidAddress, out.AccessResult)
	assert.Nil(t, out.GetValue)

	var accessErr *AccessError
	require.ErrorAs(t, out.Err(), &accessErr)
	assert.Equal(t, InvalidAddress, accessErr.Result)
	assert.Equal(t, "s7: item access failed: invalid address (0x05)", accessErr.Error())
}

func TestUnformatReadRequest_Short(t *testing.T) {
	header := []byte{0x32, 0x03, 0x00, 0x00, 0x01, 0x02, 0x00, 0x02, 0x00, 0x06, 0x00, 0x00, 0x04, 0x01}

	_, err := UnformatReadRequest(header)
	require.ErrorIs(t, err, ErrShortMessage)

	// declares 4 bytes, carries 2
	_, err = UnformatReadRequest(concat(header, []byte{0xFF, 0x04, 0x00, 0x20, 0x01, 0x02}))
	require.ErrorIs(t, err, ErrShortMessage)
}

func TestFormatWriteRequest(t *testing.T) {
	in := NewWriteRequestInput(0x0003, MustTranslateAddress("DB1 0"), []byte{0xAA, 0xBB})

	b, err := KindWrite.Format(in)
	require.NoError(t, err)
	assert.Equal(t, concat(zeros(7), []byte{
		0x32, 0x01, 0x00, 0x00, 0x00, 0x03, 0x00, 0x0E, 0x00, 0x06,
		0x05, 0x01,
		0x12, 0x0A, 0x10, 0x02, 0x00, 0x02, 0x00, 0x01, 0x84, 0x00, 0x00, 0x00,
		0x00, 0x04, 0x00, 0x10, 0xAA, 0xBB,
	}), b)
}

func TestUnformatWriteRequest(t *testing.T) {
	out, err := UnformatWriteRequest([]byte{0xE5})
	require.NoError(t, err)
	assert.Equal(t, NoError, out.AccessResult)

	out, err = UnformatWriteRequest([]byte{0x00})
	require.NoError(t, err)
	assert.Equal(t, InvalidAddress, out.AccessResult)
	require.Error(t, out.Err())

	resp := []byte{0x32, 0x03, 0x00, 0x00, 0x00, 0x03, 0x00, 0x02, 0x00, 0x01, 0x00, 0x00, 0x05, 0x01, 0xFF}
	v, err := KindWrite.Unformat(resp)
	require.NoError(t, err)
	assert.Equal(t, WriteRequestOutput{PduRef: 3, AccessResult: NoError}, v)

	_, err = UnformatWriteRequest(resp[:10])
	require.ErrorIs(t, err, ErrShortMessage)
}

func TestHeaderError(t *testing.T) {
	ok := []byte{0x32, 0x03, 0x00, 0x00, 0x00, 0x01, 0x00, 0x02, 0x00, 0x00, 0x00, 0x00}
	assert.Nil(t, HeaderError(ok))

	nak := []byte{0x32, 0x02, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x83, 0x04}
	perr := HeaderError(nak)
	require.NotNil(t, perr)
	assert.Equal(t, byte(0x83), perr.Class)
	assert.Equal(t, byte(0x04), perr.Code)

	job := []byte{0x32, 0x01, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x83, 0x04}
	assert.Nil(t, HeaderError(job))
	assert.Nil(t, HeaderError(nak[:11]))
}

func TestKind(t *testing.T) {
	assert.True(t, KindCreateReference.Special())
	assert.True(t, KindComCreateReference.Special())
	assert.True(t, KindComConfirmMessage.Special())
	assert.False(t, KindEstablishAssociation.Special())
	assert.False(t, KindRead.Special())
	assert.False(t, KindWrite.Special())

	assert.True(t, KindComConfirmMessage.Serial())
	assert.False(t, KindCreateReference.Serial())

	assert.Equal(t, "ReadRequest", KindRead.String())
	assert.Equal(t, "Kind(99)", Kind(99).String())

	_, err := KindRead.Format(WriteRequestInput{})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = KindRead.Format((*ReadRequestInput)(nil))
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = Kind(99).Format(nil)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = Kind(99).Unformat(nil)
	require.ErrorIs(t, err, ErrInvalidInput)
}
