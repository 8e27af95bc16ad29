package link

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/arloliu/go-s7/internal/pool"
	"github.com/arloliu/go-s7/logger"
	"github.com/arloliu/go-s7/s7"
)

// DefaultBusyBackoff is the wait before polling a busy PPI device again.
const DefaultBusyBackoff = 500 * time.Millisecond

// PPIFraming is the framing of the Siemens PPI serial protocol.
//
// Units from package s7 are sealed into SD2 frames addressed from Master to
// Slave. Frames that already carry a PPI start delimiter are sent unchanged.
type PPIFraming struct {
	Slave  byte
	Master byte
	// BusyBackoff is waited before each poll of a busy device; zero means
	// DefaultBusyBackoff.
	BusyBackoff time.Duration
	// BusyRetryLimit caps the busy polls of one exchange; zero means no limit.
	BusyRetryLimit int
	Logger         logger.Logger
}

var (
	_ Framing   = (*PPIFraming)(nil)
	_ Recoverer = (*PPIFraming)(nil)
)

func (f *PPIFraming) Extend(unit []byte) ([]byte, error) {
	if len(unit) == 0 {
		return nil, fmt.Errorf("%w: empty unit", ErrFrame)
	}

	switch unit[0] {
	case s7.PPISD1, s7.PPISD2, s7.PPIShortAck:
		return unit, nil
	}

	frame, err := s7.SealPPI(unit, f.Slave, f.Master)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFrame, err)
	}

	return frame, nil
}

// Deflate strips the SD2 envelope. Short frames are returned unchanged.
func (f *PPIFraming) Deflate(frame []byte) []byte {
	if len(frame) > s7.PPIEnvelopeLen && frame[0] == s7.PPISD2 {
		return frame[s7.PlaceholderLen : len(frame)-2]
	}

	return frame
}

// Check validates the frame check sequence, the end delimiter and the
// declared length. A lone short acknowledgement and a 6-byte frame with a
// zero function code are always valid.
func (f *PPIFraming) Check(frame []byte) error {
	n := len(frame)
	switch {
	case n == 1 && frame[0] == s7.PPIShortAck:
		return nil
	case n == 1 && frame[0] == s7.PPIBusy:
		return ErrBusBusy
	case n == 6 && frame[3] == 0:
		return nil
	case n < 6:
		return fmt.Errorf("%w: PPI frame of %d bytes", ErrFrame, n)
	}

	// SD1 frames carry their FCS at byte 4 over DA, SA and FC; the SD2 rule
	// below would misread them.
	if n == 6 && frame[0] == s7.PPISD1 {
		if s7.PPIChecksum(frame[1:4]) != frame[4] {
			return fmt.Errorf("%w: SD1 FCS 0x%02X", ErrChecksum, frame[4])
		}
		if frame[5] != s7.PPIEnd {
			return fmt.Errorf("%w: end delimiter 0x%02X", ErrFrame, frame[5])
		}

		return nil
	}

	if fcs := s7.PPIChecksum(frame[4 : n-2]); fcs != frame[n-2] {
		return fmt.Errorf("%w: computed 0x%02X, frame carries 0x%02X", ErrChecksum, fcs, frame[n-2])
	}
	if frame[n-1] != s7.PPIEnd {
		return fmt.Errorf("%w: end delimiter 0x%02X", ErrFrame, frame[n-1])
	}
	if int(frame[1]) != n-6 {
		return fmt.Errorf("%w: declared length %d, frame length %d", ErrFrame, frame[1], n)
	}

	if perr := s7.HeaderError(f.Deflate(frame)); perr != nil {
		return perr
	}

	return nil
}

// ReadFrame reads a short acknowledgement, a busy reply, an SD1 or an SD2 frame.
func (f *PPIFraming) ReadFrame(r io.Reader) ([]byte, error) {
	first := make([]byte, 1)
	if _, err := io.ReadFull(r, first); err != nil {
		return nil, err
	}

	switch first[0] {
	case s7.PPIShortAck, s7.PPIBusy:
		return first, nil
	case s7.PPISD1:
		return readRest(r, first, 6)
	case s7.PPISD2:
		head, err := readRest(r, first, 4)
		if err != nil {
			return nil, err
		}
		if head[1] != head[2] || head[3] != s7.PPISD2 {
			return nil, fmt.Errorf("%w: SD2 header % X", ErrFrame, head)
		}

		return readRest(r, head, int(head[1])+6)
	default:
		return nil, fmt.Errorf("%w: unexpected PPI start byte 0x%02X", ErrFrame, first[0])
	}
}

func readRest(r io.Reader, head []byte, total int) ([]byte, error) {
	frame := make([]byte, total)
	copy(frame, head)
	if _, err := io.ReadFull(r, frame[len(head):]); err != nil {
		return nil, err
	}

	return frame, nil
}

// Recover polls the device with confirm requests while it reports busy, and
// fetches the deferred reply when it answers a request with a lone short
// acknowledgement. A confirm request answered by a short acknowledgement is
// final.
func (f *PPIFraming) Recover(ctx context.Context, request, response []byte, exchange Exchange, m *Metrics) ([]byte, error) {
	confirm, err := confirmFor(request)
	if err != nil {
		return nil, err
	}

	response, err = f.pollWhileBusy(ctx, confirm, response, exchange, m)
	if err != nil {
		return nil, err
	}

	if isSingle(response, s7.PPIShortAck) && !isConfirm(request) {
		m.incConfirmCount()
		response, err = exchange(ctx, confirm)
		if err != nil {
			return nil, err
		}

		return f.pollWhileBusy(ctx, confirm, response, exchange, m)
	}

	return response, nil
}

func (f *PPIFraming) pollWhileBusy(ctx context.Context, confirm, response []byte, exchange Exchange, m *Metrics) ([]byte, error) {
	var err error
	for retries := 0; isSingle(response, s7.PPIBusy); retries++ {
		if f.BusyRetryLimit > 0 && retries >= f.BusyRetryLimit {
			return nil, fmt.Errorf("%w: gave up after %d polls", ErrBusBusy, retries)
		}

		m.incBusyRetryCount()
		f.log().Debug("ppi device busy, polling", "retry", retries+1, "backoff", f.backoff())

		if err = pool.Sleep(ctx, f.backoff()); err != nil {
			return nil, err
		}

		m.incConfirmCount()
		response, err = exchange(ctx, confirm)
		if err != nil {
			return nil, err
		}
	}

	return response, nil
}

func (f *PPIFraming) backoff() time.Duration {
	if f.BusyBackoff > 0 {
		return f.BusyBackoff
	}

	return DefaultBusyBackoff
}

func (f *PPIFraming) log() logger.Logger {
	if f.Logger != nil {
		return f.Logger
	}

	return logger.GetLogger()
}

// confirmFor builds the confirm request addressed like request.
func confirmFor(request []byte) ([]byte, error) {
	switch {
	case len(request) >= 6 && request[0] == s7.PPISD1:
		return s7.ConfirmFrame(request[1], request[2]), nil
	case len(request) > s7.PPIEnvelopeLen && request[0] == s7.PPISD2:
		return s7.ConfirmFrame(request[4], request[5]), nil
	default:
		return nil, fmt.Errorf("%w: cannot address a confirm for a %d byte request", ErrFrame, len(request))
	}
}

func isConfirm(frame []byte) bool {
	return len(frame) == 6 && frame[0] == s7.PPISD1 && frame[3] == s7.FuncConfirm
}

func isSingle(frame []byte, b byte) bool {
	return len(frame) == 1 && frame[0] == b
}
