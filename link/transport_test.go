package link

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarm/serial"
)

func pipeDialer(t *testing.T, dialed *string) (DialFunc, net.Conn) {
	t.Helper()

	local, remote := net.Pipe()
	t.Cleanup(func() {
		_ = local.Close()
		_ = remote.Close()
	})

	return func(_ context.Context, _, address string) (net.Conn, error) {
		*dialed = address
		return local, nil
	}, remote
}

func TestTCPTransport_SendReceive(t *testing.T) {
	var dialed string
	dial, remote := pipeDialer(t, &dialed)

	tr := NewTCPTransport("10.0.0.1", time.Second, nil, WithDialer(dial))
	assert.Equal(t, "tcp://10.0.0.1:102", tr.String())
	assert.False(t, tr.IsOpen())

	require.NoError(t, tr.Open(context.Background()))
	require.NoError(t, tr.Open(context.Background()), "second open is a no-op")
	assert.True(t, tr.IsOpen())
	assert.Equal(t, "10.0.0.1:102", dialed)

	frame := tpktFrame(t, readRespPDU)
	go func() {
		buf := make([]byte, len(frame))
		if _, err := io.ReadFull(remote, buf); err != nil {
			return
		}
		_, _ = remote.Write(buf) // echo
	}()

	require.NoError(t, tr.Send(context.Background(), frame))
	got, err := tr.Receive(context.Background(), TCPFraming{}.ReadFrame)
	require.NoError(t, err)
	assert.Equal(t, frame, got)

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	assert.False(t, tr.IsOpen())
}

func TestTCPTransport_ExplicitPort(t *testing.T) {
	tr := NewTCPTransport("plc.local:1102", 0, nil)
	assert.Equal(t, "tcp://plc.local:1102", tr.String())
}

func TestTCPTransport_NotOpen(t *testing.T) {
	tr := NewTCPTransport("10.0.0.1", time.Second, nil)

	err := tr.Send(context.Background(), []byte{1})
	require.ErrorIs(t, err, ErrNotOpen)

	_, err = tr.Receive(context.Background(), TCPFraming{}.ReadFrame)
	require.ErrorIs(t, err, ErrNotOpen)
}

func TestTCPTransport_DialError(t *testing.T) {
	dialErr := errors.New("connection refused")
	tr := NewTCPTransport("10.0.0.1", time.Second, nil, WithDialer(func(context.Context, string, string) (net.Conn, error) {
		return nil, dialErr
	}))

	err := tr.Open(context.Background())
	var te *TransportError
	require.ErrorAs(t, err, &te)
	require.ErrorIs(t, err, dialErr)
	assert.False(t, tr.IsOpen())
}

func TestTCPTransport_ReceiveCancelled(t *testing.T) {
	var dialed string
	dial, _ := pipeDialer(t, &dialed)

	tr := NewTCPTransport("10.0.0.1", 0, nil, WithDialer(dial))
	require.NoError(t, tr.Open(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := tr.Receive(ctx, TCPFraming{}.ReadFrame)
	require.ErrorIs(t, err, context.Canceled)
}

func TestTCPTransport_ReceiveTimeout(t *testing.T) {
	var dialed string
	dial, _ := pipeDialer(t, &dialed)

	tr := NewTCPTransport("10.0.0.1", 20*time.Millisecond, nil, WithDialer(dial))
	require.NoError(t, tr.Open(context.Background()))

	_, err := tr.Receive(context.Background(), TCPFraming{}.ReadFrame)
	var te *TransportError
	require.ErrorAs(t, err, &te)

	var ne net.Error
	require.ErrorAs(t, err, &ne)
	assert.True(t, ne.Timeout())
}

func TestSerialTransport(t *testing.T) {
	local, remote := net.Pipe()
	t.Cleanup(func() {
		_ = local.Close()
		_ = remote.Close()
	})

	var opened *serial.Config
	tr := NewSerialTransport(SerialConfig{Port: "/dev/ttyUSB0", FetchSleep: time.Millisecond}, nil,
		WithPortOpener(func(cfg *serial.Config) (io.ReadWriteCloser, error) {
			opened = cfg
			return local, nil
		}))
	assert.Equal(t, "serial:///dev/ttyUSB0?baud=9600&parity=E", tr.String())

	require.NoError(t, tr.Open(context.Background()))
	require.NotNil(t, opened)
	assert.Equal(t, 9600, opened.Baud)
	assert.Equal(t, serial.ParityEven, opened.Parity)
	assert.Equal(t, byte(8), opened.Size)
	assert.Equal(t, serial.Stop1, opened.StopBits)
	assert.Equal(t, DefaultReadTimeout, opened.ReadTimeout)

	confirm := []byte{0x10, 0x02, 0x00, 0x5C, 0x5E, 0x16}
	reply := ppiReply(t, readRespPDU)
	go func() {
		buf := make([]byte, len(confirm))
		if _, err := io.ReadFull(remote, buf); err != nil {
			return
		}
		_, _ = remote.Write(reply)
	}()

	require.NoError(t, tr.Send(context.Background(), confirm))
	got, err := tr.Receive(context.Background(), newTestPPIFraming().ReadFrame)
	require.NoError(t, err)
	assert.Equal(t, reply, got)

	require.NoError(t, tr.Close())
	assert.False(t, tr.IsOpen())

	err = tr.Send(context.Background(), confirm)
	require.ErrorIs(t, err, ErrNotOpen)
}

func TestSerialTransport_OpenError(t *testing.T) {
	openErr := errors.New("no such device")
	tr := NewSerialTransport(SerialConfig{Port: "COM9", BaudRate: 19200, Parity: serial.ParityNone}, nil,
		WithPortOpener(func(*serial.Config) (io.ReadWriteCloser, error) { return nil, openErr }))
	assert.Equal(t, "serial://COM9?baud=19200&parity=N", tr.String())

	err := tr.Open(context.Background())
	require.ErrorIs(t, err, openErr)
	assert.False(t, tr.IsOpen())
}

func TestSerialTransport_ReceiveCancelled(t *testing.T) {
	local, remote := net.Pipe()
	t.Cleanup(func() {
		_ = local.Close()
		_ = remote.Close()
	})

	tr := NewSerialTransport(SerialConfig{Port: "ttyS0", FetchSleep: time.Hour}, nil,
		WithPortOpener(func(*serial.Config) (io.ReadWriteCloser, error) { return local, nil }))
	require.NoError(t, tr.Open(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := tr.Receive(ctx, newTestPPIFraming().ReadFrame)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
