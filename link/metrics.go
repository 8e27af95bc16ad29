package link

import (
	"sync/atomic"
)

// Metrics contains atomic counters of a Linker.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// FrameSendCount indicates the number of frames written to the transport.
	FrameSendCount atomic.Uint64
	// FrameRecvCount indicates the number of frames read from the transport.
	FrameRecvCount atomic.Uint64
	// FrameErrCount indicates the number of exchanges that failed on I/O or validation.
	FrameErrCount atomic.Uint64

	// ConfirmCount indicates the number of PPI confirm requests sent during recovery.
	ConfirmCount atomic.Uint64
	// BusyRetryCount indicates the number of PPI busy replies retried.
	BusyRetryCount atomic.Uint64
}

func (m *Metrics) incFrameSendCount() {
	m.FrameSendCount.Add(1)
}

func (m *Metrics) incFrameRecvCount() {
	m.FrameRecvCount.Add(1)
}

func (m *Metrics) incFrameErrCount() {
	m.FrameErrCount.Add(1)
}

func (m *Metrics) incConfirmCount() {
	m.ConfirmCount.Add(1)
}

func (m *Metrics) incBusyRetryCount() {
	m.BusyRetryCount.Add(1)
}
