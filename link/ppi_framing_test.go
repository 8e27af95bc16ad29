package link

import (
	"bytes"
	"context"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-s7/s7"
)

func newTestPPIFraming() *PPIFraming {
	return &PPIFraming{Slave: 2, Master: 0, BusyBackoff: time.Millisecond}
}

func sealedReadRequest(t *testing.T) []byte {
	t.Helper()

	unit, err := s7.FormatReadRequest(s7.NewReadRequestInput(0, s7.MustTranslateAddress("V 100"), s7.Byte, 2))
	require.NoError(t, err)

	frame, err := newTestPPIFraming().Extend(unit)
	require.NoError(t, err)

	return frame
}

func TestPPIFraming_Extend(t *testing.T) {
	f := newTestPPIFraming()

	frame := sealedReadRequest(t)
	assert.Equal(t, []byte{0x68, 0x1B, 0x1B, 0x68, 0x02, 0x00, 0x6C}, frame[:7])

	sd1 := s7.ConfirmFrame(2, 0)
	got, err := f.Extend(sd1)
	require.NoError(t, err)
	assert.Equal(t, sd1, got, "PPI frames pass through")

	_, err = f.Extend(nil)
	require.ErrorIs(t, err, ErrFrame)
	_, err = f.Extend([]byte{0x00, 0x00})
	require.ErrorIs(t, err, ErrFrame)
}

func TestPPIFraming_Deflate(t *testing.T) {
	f := newTestPPIFraming()

	assert.Equal(t, readRespPDU, f.Deflate(ppiReply(t, readRespPDU)))
	assert.Equal(t, []byte{0xE5}, f.Deflate([]byte{0xE5}))

	sd1 := []byte{0x10, 0x00, 0x02, 0x08, 0x0A, 0x16}
	assert.Equal(t, sd1, f.Deflate(sd1))
}

func TestPPIFraming_Check(t *testing.T) {
	f := newTestPPIFraming()

	require.NoError(t, f.Check([]byte{0xE5}))
	require.NoError(t, f.Check([]byte{0x10, 0x00, 0x02, 0x00, 0x77, 0x99}), "zero function code is exempt")
	require.NoError(t, f.Check([]byte{0x10, 0x00, 0x02, 0x08, 0x0A, 0x16}))
	require.NoError(t, f.Check(ppiReply(t, readRespPDU)))

	require.ErrorIs(t, f.Check([]byte{0xF9}), ErrBusBusy)
	require.ErrorIs(t, f.Check([]byte{0x10, 0x02}), ErrFrame)
	require.ErrorIs(t, f.Check(nil), ErrFrame)
	require.ErrorIs(t, f.Check([]byte{0x10, 0x00, 0x02, 0x08, 0x0B, 0x16}), ErrChecksum)
	require.ErrorIs(t, f.Check([]byte{0x10, 0x00, 0x02, 0x08, 0x0A, 0x17}), ErrFrame)

	var perr *s7.ProtocolError
	require.ErrorAs(t, f.Check(ppiReply(t, nakPDU)), &perr)
	assert.Equal(t, byte(0x83), perr.Class)
}

func TestPPIFraming_CheckDetectsSingleBitErrors(t *testing.T) {
	f := newTestPPIFraming()
	valid := ppiReply(t, readRespPDU)

	// Header byte 1 carries the length, bytes 4.. the checksummed payload,
	// then the FCS and the end delimiter.
	positions := []int{1}
	for i := 4; i < len(valid); i++ {
		positions = append(positions, i)
	}

	for _, i := range positions {
		for bit := 0; bit < 8; bit++ {
			frame := bytes.Clone(valid)
			frame[i] ^= 1 << bit
			assert.Error(t, f.Check(frame), "flip byte %d bit %d", i, bit)
		}
	}
}

func TestPPIFraming_CheckUnsignedFCS(t *testing.T) {
	f := newTestPPIFraming()

	// a payload whose checksum is above 0x7F
	pdu := bytes.Clone(readRespPDU)
	pdu[18], pdu[19] = 0xF0, 0xF0
	frame := ppiReply(t, pdu)
	require.GreaterOrEqual(t, frame[len(frame)-2], byte(0x80))
	require.NoError(t, f.Check(frame))

	frame[len(frame)-2] ^= 0x80
	require.ErrorIs(t, f.Check(frame), ErrChecksum)
}

func TestPPIFraming_ReadFrame(t *testing.T) {
	f := newTestPPIFraming()

	sd1 := []byte{0x10, 0x00, 0x02, 0x08, 0x0A, 0x16}
	sd2 := ppiReply(t, readRespPDU)

	var stream []byte
	stream = append(stream, 0xE5, 0xF9)
	stream = append(stream, sd1...)
	stream = append(stream, sd2...)
	r := iotest.OneByteReader(bytes.NewReader(stream))

	for _, want := range [][]byte{{0xE5}, {0xF9}, sd1, sd2} {
		got, err := f.ReadFrame(r)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := f.ReadFrame(bytes.NewReader([]byte{0x42}))
	require.ErrorIs(t, err, ErrFrame)

	_, err = f.ReadFrame(bytes.NewReader([]byte{0x68, 0x10, 0x11, 0x68}))
	require.ErrorIs(t, err, ErrFrame)
}

// scriptedExchange answers each exchange with the next reply.
type scriptedExchange struct {
	sent    [][]byte
	replies [][]byte
}

func (s *scriptedExchange) exchange(_ context.Context, frame []byte) ([]byte, error) {
	s.sent = append(s.sent, bytes.Clone(frame))
	if len(s.replies) == 0 {
		return nil, &TransportError{Op: "receive", Err: context.DeadlineExceeded}
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]

	return reply, nil
}

func TestPPIFraming_RecoverBusy(t *testing.T) {
	f := newTestPPIFraming()
	req := sealedReadRequest(t)
	valid := ppiReply(t, readRespPDU)

	ex := &scriptedExchange{replies: [][]byte{valid}}
	var m Metrics

	resp, err := f.Recover(context.Background(), req, []byte{0xF9}, ex.exchange, &m)
	require.NoError(t, err)
	assert.Equal(t, valid, resp)

	require.Len(t, ex.sent, 1, "exactly one confirm exchange")
	assert.Equal(t, s7.ConfirmFrame(2, 0), ex.sent[0])
	assert.Equal(t, uint64(1), m.ConfirmCount.Load())
	assert.Equal(t, uint64(1), m.BusyRetryCount.Load())
}

func TestPPIFraming_RecoverShortAck(t *testing.T) {
	f := newTestPPIFraming()
	req := sealedReadRequest(t)
	valid := ppiReply(t, readRespPDU)

	ex := &scriptedExchange{replies: [][]byte{{0xF9}, valid}}
	var m Metrics

	resp, err := f.Recover(context.Background(), req, []byte{0xE5}, ex.exchange, &m)
	require.NoError(t, err)
	assert.Equal(t, valid, resp)
	assert.Len(t, ex.sent, 2)
	assert.Equal(t, uint64(2), m.ConfirmCount.Load())
	assert.Equal(t, uint64(1), m.BusyRetryCount.Load())

	// a confirm answered by E5 is final
	ex = &scriptedExchange{}
	resp, err = f.Recover(context.Background(), s7.ConfirmFrame(2, 0), []byte{0xE5}, ex.exchange, &m)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xE5}, resp)
	assert.Empty(t, ex.sent)

	// a link request answered by E5 fetches the reply
	sd1 := []byte{0x10, 0x00, 0x02, 0x08, 0x0A, 0x16}
	ex = &scriptedExchange{replies: [][]byte{sd1}}
	linkReq, err := s7.FormatComCreateReference(s7.ComCreateReferenceInput{SlaveAddress: 2})
	require.NoError(t, err)
	resp, err = f.Recover(context.Background(), linkReq, []byte{0xE5}, ex.exchange, &m)
	require.NoError(t, err)
	assert.Equal(t, sd1, resp)
}

func TestPPIFraming_RecoverPassThrough(t *testing.T) {
	f := newTestPPIFraming()
	valid := ppiReply(t, readRespPDU)
	ex := &scriptedExchange{}

	resp, err := f.Recover(context.Background(), sealedReadRequest(t), valid, ex.exchange, &Metrics{})
	require.NoError(t, err)
	assert.Equal(t, valid, resp)
	assert.Empty(t, ex.sent)
}

func TestPPIFraming_RecoverBusyLimit(t *testing.T) {
	f := newTestPPIFraming()
	f.BusyRetryLimit = 2

	ex := &scriptedExchange{replies: [][]byte{{0xF9}, {0xF9}, {0xF9}}}
	_, err := f.Recover(context.Background(), sealedReadRequest(t), []byte{0xF9}, ex.exchange, &Metrics{})
	require.ErrorIs(t, err, ErrBusBusy)
	assert.Len(t, ex.sent, 2)
}

func TestPPIFraming_RecoverCancelled(t *testing.T) {
	f := newTestPPIFraming()
	f.BusyBackoff = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	ex := &scriptedExchange{}
	start := time.Now()
	_, err := f.Recover(ctx, sealedReadRequest(t), []byte{0xF9}, ex.exchange, &Metrics{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Empty(t, ex.sent)
}

func TestPPIFraming_RecoverBadRequest(t *testing.T) {
	_, err := newTestPPIFraming().Recover(context.Background(), []byte{0x01}, []byte{0xF9}, nil, &Metrics{})
	require.ErrorIs(t, err, ErrFrame)
}
